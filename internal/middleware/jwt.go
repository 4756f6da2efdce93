package middleware

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"vcoin/internal/utils" // JWT keyring

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Structured logging
)

// Context keys set by JWTAuthMiddleware
const (
	CtxUserID  = "userID"
	CtxPhone   = "phone"
	CtxIsAdmin = "isAdmin"
)

// JWTAuthMiddleware validates JWT tokens against the keyring and extracts user information
func JWTAuthMiddleware(keys *utils.Keyring) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization") // Get Authorization header
		// Check if the Authorization header is present and properly formatted
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			// If not, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Missing or invalid Authorization header"})
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ") // Extract the token string and parse it
		claims, err := keys.ParseJWT(tokenStr)                // Parse the JWT token
		if err != nil {
			logrus.WithField("error", err.Error()).Debug("Token rejected")
			// If parsing fails, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid or expired token"})
			return
		}
		c.Set(CtxUserID, claims.UserID)   // Store userID in context
		c.Set(CtxPhone, claims.Phone)     // Store phone in context
		c.Set(CtxIsAdmin, claims.IsAdmin) // Admin flag at issue time, re-checked by AdminOnlyMiddleware
		c.Next()                          // Proceed to the next handler
	}
}

// UserID returns the authenticated user id set by JWTAuthMiddleware
func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(CtxUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
