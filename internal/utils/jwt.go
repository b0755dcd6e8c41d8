package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"sarvin_back_end/internal/models"
)

// GenerateJWT signs an HS256 token carrying the claims AuthRequired reads.
func GenerateJWT(user models.User, secret string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"name":    user.Name,
		"role":    user.Role,
		"exp":     time.Now().Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
