package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cribb-companion/internal/config"
	"cribb-companion/internal/models"
)

type staticSessions struct {
	user *models.User
}

func (s staticSessions) CurrentUser() *models.User {
	return s.user
}

func TestParseExpiresIn(t *testing.T) {
	assert.Equal(t, 7*24*time.Hour, parseExpiresIn("7d"))
	assert.Equal(t, 12*time.Hour, parseExpiresIn("12h"))
	assert.Equal(t, 90*time.Minute, parseExpiresIn("1h30m"))
	assert.Equal(t, 7*24*time.Hour, parseExpiresIn(""))
	assert.Equal(t, 7*24*time.Hour, parseExpiresIn("soon"))
}

func TestGenerateAndValidateToken(t *testing.T) {
	manager := NewJWTManager(config.JWTConfig{Secret: "secret", ExpiresIn: "1h"})

	token, err := manager.GenerateToken(&models.User{ID: "u1", Username: "ana"})
	require.NoError(t, err)

	claims, err := manager.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "ana", claims.Username)

	other := NewJWTManager(config.JWTConfig{Secret: "different", ExpiresIn: "1h"})
	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	manager := NewJWTManager(config.JWTConfig{Secret: "secret", ExpiresIn: "1h"})
	token, err := manager.GenerateToken(&models.User{ID: "u1", Username: "ana"})
	require.NoError(t, err)

	newRouter := func(sessions SessionSource) *gin.Engine {
		router := gin.New()
		router.GET("/me", JWTMiddleware(manager, sessions), func(c *gin.Context) {
			userID, _ := GetUserID(c)
			c.JSON(http.StatusOK, gin.H{"user_id": userID})
		})
		return router
	}

	tests := []struct {
		name     string
		target   string
		header   string
		sessions SessionSource
		status   int
	}{
		{"header token", "/me", "Bearer " + token, staticSessions{&models.User{ID: "u1"}}, http.StatusOK},
		{"query token", "/me?token=" + token, "", staticSessions{&models.User{ID: "u1"}}, http.StatusOK},
		{"missing token", "/me", "", staticSessions{&models.User{ID: "u1"}}, http.StatusUnauthorized},
		{"garbage token", "/me", "Bearer nope", staticSessions{&models.User{ID: "u1"}}, http.StatusUnauthorized},
		{"no backend session", "/me", "Bearer " + token, staticSessions{}, http.StatusUnauthorized},
		{"different user", "/me", "Bearer " + token, staticSessions{&models.User{ID: "u2"}}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			newRouter(tt.sessions).ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
