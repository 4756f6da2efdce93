package middleware

import (
	"net/http" // HTTP status codes

	"vcoin/internal/domain" // Importing domain models

	"github.com/gin-gonic/gin" // Gin web framework
	"gorm.io/gorm"             // GORM ORM library
)

// ActiveMemberMiddleware rejects tokens of members that were blocked, withdrawn or purged after login
func ActiveMemberMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := UserID(c)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Unauthorized"})
			return
		}
		var user domain.User
		err := db.WithContext(c.Request.Context()).Select("id", "status").First(&user, userID).Error
		if err != nil {
			// Purged accounts lose their session
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid or expired token"})
			return
		}
		if user.Status != domain.StatusActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "Account is not active"})
			return
		}
		c.Next()
	}
}
