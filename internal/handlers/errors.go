package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cribb-companion/internal/auth"
	"cribb-companion/internal/backend"
	"cribb-companion/internal/notifications"
)

// respondError maps errors from the companion's services onto UI responses. Backend 4xx
// answers keep their status; backend 5xx and transport failures become 502.
func respondError(c *gin.Context, err error) {
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
	case errors.Is(err, notifications.ErrNoGroup):
		c.JSON(http.StatusConflict, gin.H{"error": "User does not belong to a group"})
	case errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError:
		c.JSON(apiErr.StatusCode, gin.H{"error": backend.Message(err)})
	case errors.As(err, &apiErr), errors.Is(err, backend.ErrNetwork):
		c.JSON(http.StatusBadGateway, gin.H{"error": backend.Message(err)})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
