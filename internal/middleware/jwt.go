package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"sarvin_back_end/internal/models"
)

const (
	ctxUserID = "user_id"
	ctxEmail  = "email"
	ctxName   = "name"
	ctxRole   = "role"
)

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "code": "Unauthorized"})
}

// AuthRequired validates an HS256 bearer token and stores its claims on the context.
func AuthRequired(secret string) gin.HandlerFunc {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, "Not authorized, no token")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			unauthorized(c, "Invalid authorization header")
			return
		}

		token, err := parser.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return key, nil
		})
		if err != nil || !token.Valid {
			unauthorized(c, "Not authorized, token failed")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			unauthorized(c, "Not authorized, token failed")
			return
		}
		userID, _ := claims["user_id"].(string)
		if userID == "" {
			unauthorized(c, "Not authorized, token has no user")
			return
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxEmail, stringClaim(claims, "email"))
		c.Set(ctxName, stringClaim(claims, "name"))
		c.Set(ctxRole, stringClaim(claims, "role"))
		c.Next()
	}
}

func stringClaim(claims jwt.MapClaims, name string) string {
	s, _ := claims[name].(string)
	return s
}

// CurrentUser returns the caller authenticated by AuthRequired.
func CurrentUser(c *gin.Context) models.User {
	return models.User{
		ID:    c.GetString(ctxUserID),
		Email: c.GetString(ctxEmail),
		Name:  c.GetString(ctxName),
		Role:  c.GetString(ctxRole),
	}
}
