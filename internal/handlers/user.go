package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cribb-companion/internal/auth"
)

type UserHandler struct {
	sessions *auth.Manager
}

func NewUserHandler(sessions *auth.Manager) *UserHandler {
	return &UserHandler{sessions: sessions}
}

// GetCurrentUser returns the signed-in user with their group membership.
func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	user := h.sessions.CurrentUser()
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":      user,
		"has_group": user.HasGroup(),
	})
}
