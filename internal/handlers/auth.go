package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"cribb-companion/internal/auth"
	"cribb-companion/internal/backend"
	"cribb-companion/internal/models"
)

type AuthHandler struct {
	sessions   *auth.Manager
	jwtManager *auth.JWTManager
	validator  *validator.Validate
	log        logrus.FieldLogger
}

func NewAuthHandler(sessions *auth.Manager, jwtManager *auth.JWTManager, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{
		sessions:   sessions,
		jwtManager: jwtManager,
		validator:  validator.New(),
		log:        log,
	}
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Login signs in against the Cribb API and hands the UI a companion token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.sessions.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.log.WithError(err).WithField("username", req.Username).Warn("Login failed")
		if errors.Is(err, auth.ErrLoginRejected) || backend.IsUnauthorized(err) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		respondError(c, err)
		return
	}

	token, err := h.jwtManager.GenerateToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, loginResponse{Token: token, User: user})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	h.sessions.Logout()
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}
