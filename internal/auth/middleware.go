package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cribb-companion/internal/models"
)

const (
	contextUserID   = "user_id"
	contextUsername = "username"
)

// SessionSource is what the middleware needs to know about the backend session.
type SessionSource interface {
	CurrentUser() *models.User
}

// JWTMiddleware accepts the companion's own token from the Authorization header, or from
// the token query parameter for websocket upgrades. The token must belong to the user
// whose backend session is currently held.
func JWTMiddleware(jwtManager *JWTManager, sessions SessionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c.GetHeader("Authorization"))
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
			return
		}

		claims, err := jwtManager.ValidateToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		user := sessions.CurrentUser()
		if user == nil || user.ID != claims.UserID {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session expired, please log in again"})
			return
		}

		c.Set(contextUserID, claims.UserID)
		c.Set(contextUsername, claims.Username)
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// GetUserID returns the user id set by JWTMiddleware.
func GetUserID(c *gin.Context) (string, bool) {
	value, exists := c.Get(contextUserID)
	if !exists {
		return "", false
	}
	userID, ok := value.(string)
	return userID, ok && userID != ""
}
