package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment   string
	Port          string
	Backend       BackendConfig
	Notifications NotificationConfig
	Transfer      TransferConfig
	Database      DatabaseConfig
	JWT           JWTConfig
	Session       SessionConfig
	CORS          CORSConfig
	Log           LogConfig
}

type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond caps outbound calls to the Cribb API. Zero disables the limiter.
	RequestsPerSecond float64
	Burst             int
}

type NotificationConfig struct {
	PollInterval time.Duration
}

type TransferConfig struct {
	ErrorDismissAfter time.Duration
}

type DatabaseConfig struct {
	URL string
}

type JWTConfig struct {
	Secret    string
	ExpiresIn string
}

type SessionConfig struct {
	File string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level string
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		Environment: getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "4200"),
		Backend: BackendConfig{
			BaseURL:           getEnv("BACKEND_URL", "http://localhost:8080"),
			Timeout:           getDuration("BACKEND_TIMEOUT", 15*time.Second),
			RequestsPerSecond: getFloat("BACKEND_RPS", 10),
			Burst:             getInt("BACKEND_BURST", 5),
		},
		Notifications: NotificationConfig{
			PollInterval: getDuration("NOTIFICATION_POLL_INTERVAL", 60*time.Second),
		},
		Transfer: TransferConfig{
			ErrorDismissAfter: getDuration("TRANSFER_ERROR_DISMISS", 3*time.Second),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		JWT: JWTConfig{
			Secret:    getEnv("JWT_SECRET", "change-this-companion-secret"),
			ExpiresIn: getEnv("JWT_EXPIRES_IN", "7d"),
		},
		Session: SessionConfig{
			File: getEnv("SESSION_FILE", ".cribb-session"),
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{
				getEnv("FRONTEND_URL", "http://localhost:4200"),
				"http://localhost:4200",
			},
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Invalid duration for %s: %q, using %s", key, value, defaultValue)
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
