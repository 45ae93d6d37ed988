package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"cribb-companion/internal/config"
	"cribb-companion/internal/models"
)

// Claims of the token the companion hands to its own UI. It is unrelated to the
// backend token, which never leaves the companion.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type JWTManager struct {
	secret    []byte
	expiresIn time.Duration
}

func NewJWTManager(cfg config.JWTConfig) *JWTManager {
	return &JWTManager{
		secret:    []byte(cfg.Secret),
		expiresIn: parseExpiresIn(cfg.ExpiresIn),
	}
}

// parseExpiresIn accepts Go durations and the 7d / 12h / 30m shorthand.
func parseExpiresIn(value string) time.Duration {
	expiresIn := 7 * 24 * time.Hour // default 7 days

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	if len(value) < 2 {
		return expiresIn
	}
	if n, err := strconv.Atoi(value[:len(value)-1]); err == nil {
		switch value[len(value)-1] {
		case 'd':
			expiresIn = time.Duration(n) * 24 * time.Hour
		case 'h':
			expiresIn = time.Duration(n) * time.Hour
		case 'm':
			expiresIn = time.Duration(n) * time.Minute
		}
	}
	return expiresIn
}

func (j *JWTManager) GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(j.expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

func (j *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}
