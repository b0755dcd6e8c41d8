package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sarvin_back_end/internal/models"
)

// RequireAdmin lets through callers whose token carries the admin role.
func RequireAdmin(c *gin.Context) {
	if c.GetString(ctxRole) != models.RoleAdmin {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Not authorized as an admin", "code": "Forbidden"})
		return
	}
	c.Next()
}
