package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"cribb-companion/internal/auth"
	"cribb-companion/internal/config"
	"cribb-companion/internal/database"
	"cribb-companion/internal/handlers"
	"cribb-companion/internal/metrics"
	"cribb-companion/internal/notifications"
	"cribb-companion/internal/stores"
	"cribb-companion/internal/transfer"
	"cribb-companion/internal/websocket"
)

// Services are the long-lived components the UI surface exposes.
type Services struct {
	Sessions      *auth.Manager
	JWT           *auth.JWTManager
	Notifications *notifications.Aggregator
	Cart          *stores.CartStore
	Transfer      *transfer.Transfer
	Journal       database.Journal
	History       database.History
	Hub           *websocket.Hub
}

func SetupRouter(svc Services, cfg *config.Config, log logrus.FieldLogger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))
	router.Use(metrics.GinMiddleware())

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(svc.Sessions, svc.JWT, log)
	userHandler := handlers.NewUserHandler(svc.Sessions)
	notificationHandler := handlers.NewNotificationHandler(svc.Notifications)
	cartHandler := handlers.NewCartHandler(svc.Cart, svc.Transfer)
	transferHandler := handlers.NewTransferHandler(svc.Transfer, svc.Journal, svc.History, log)
	memoryHandler := handlers.NewMemoryHandler(svc.History, log)
	wsHandler := handlers.NewWebSocketHandler(svc.Hub, cfg.CORS.AllowedOrigins)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"authenticated":  svc.Sessions.CurrentUser() != nil,
			"ws_clients":     svc.Hub.ClientCount(),
			"notifications":  svc.Notifications.UnreadCount(),
			"transfer_phase": svc.Transfer.State().Phase,
		})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Public routes
	api := router.Group("/api")
	{
		api.POST("/auth/login", authHandler.Login)
	}

	// Protected routes
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(svc.JWT, svc.Sessions))
	{
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/users/me", userHandler.GetCurrentUser)

		notificationRoutes := protected.Group("/notifications")
		{
			notificationRoutes.GET("", notificationHandler.GetNotifications)
			notificationRoutes.GET("/latest", notificationHandler.GetLatest)
			notificationRoutes.POST("/refresh", notificationHandler.Refresh)
			notificationRoutes.GET("/unread-count", notificationHandler.GetUnreadCount)
			notificationRoutes.POST("/:id/read", notificationHandler.MarkAsRead)
			notificationRoutes.DELETE("/:id", notificationHandler.DeleteNotification)
		}

		cartRoutes := protected.Group("/cart")
		{
			cartRoutes.GET("", cartHandler.GetItems)
			cartRoutes.POST("/refresh", cartHandler.Refresh)
			cartRoutes.POST("/:id/transfer", cartHandler.OpenTransfer)
		}

		transferRoutes := protected.Group("/transfer")
		{
			transferRoutes.GET("", transferHandler.GetState)
			transferRoutes.POST("/confirm", transferHandler.Confirm)
			transferRoutes.POST("/cancel", transferHandler.Cancel)
			transferRoutes.GET("/journal", transferHandler.GetJournal)
		}

		// Category memory for the transfer form
		memory := protected.Group("/memory")
		{
			memory.GET("", memoryHandler.GetMemory)
			memory.GET("/categories", memoryHandler.GetCategories)
			memory.GET("/stats", memoryHandler.GetMemoryStats)
		}

		protected.GET("/ws", wsHandler.HandleWebSocket)
		protected.GET("/ws/status", wsHandler.GetStatus)
	}

	return router
}

// WithCORS admits the configured UI origins in front of the router.
func WithCORS(handler http.Handler, cfg *config.Config) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(handler)
}

func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency":    time.Since(start),
			"request_id": requestID,
		})
		if len(c.Errors) > 0 {
			entry.WithField("errors", c.Errors.String()).Warn("Request failed")
			return
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("Request")
			return
		}
		entry.Debug("Request")
	}
}
