package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"cribb-companion/internal/api"
	"cribb-companion/internal/auth"
	"cribb-companion/internal/backend"
	"cribb-companion/internal/config"
	"cribb-companion/internal/database"
	"cribb-companion/internal/logger"
	"cribb-companion/internal/notifications"
	"cribb-companion/internal/stores"
	"cribb-companion/internal/transfer"
	"cribb-companion/internal/websocket"
)

func main() {
	// Load configuration from environment / .env
	cfg := config.Load()

	log := logger.New(cfg.Log.Level, cfg.IsProduction())
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := backend.New(backend.Config{
		BaseURL:           cfg.Backend.BaseURL,
		Timeout:           cfg.Backend.Timeout,
		RequestsPerSecond: cfg.Backend.RequestsPerSecond,
		Burst:             cfg.Backend.Burst,
	}, log)

	// Session
	store, err := auth.NewFileStore(cfg.Session.File, cfg.JWT.Secret)
	if err != nil {
		log.WithError(err).Fatal("Failed to open session store")
	}
	sessions := auth.NewManager(client, store, log)
	if _, err := sessions.Restore(); err != nil {
		log.WithError(err).Warn("Stored session could not be restored")
	}

	// Transfer journal and category memory
	journal, history, closeDB := openStorage(ctx, cfg, log)
	defer closeDB()

	cart := stores.NewCartStore(client, sessions, log)
	pantry := stores.NewPantryStore(client, sessions, log)
	aggregator := notifications.NewAggregator(client, sessions, log)
	transfers := transfer.New(pantry, cart, sessions, journal, transfer.Config{
		ErrorDismissAfter: cfg.Transfer.ErrorDismissAfter,
		Location:          time.Local,
	}, log)

	hub := websocket.NewHub(func() []websocket.Message {
		now := time.Now().Unix()
		return []websocket.Message{
			{Type: websocket.MessageTypeSession, Data: sessions.CurrentUser(), Time: now},
			{Type: websocket.MessageTypeFeedUpdate, Data: aggregator.Feed(), Time: now},
			{Type: websocket.MessageTypeUnreadCount, Data: aggregator.UnreadCount(), Time: now},
			{Type: websocket.MessageTypeCartUpdate, Data: cart.Items(), Time: now},
			{Type: websocket.MessageTypeTransferState, Data: transfers.State(), Time: now},
		}
	}, log)
	go hub.Run(ctx)

	go websocket.Forward(ctx, hub, websocket.MessageTypeFeedUpdate, aggregator.SubscribeFeed)
	go websocket.Forward(ctx, hub, websocket.MessageTypeUnreadCount, aggregator.SubscribeUnread)
	go websocket.Forward(ctx, hub, websocket.MessageTypeCartUpdate, cart.Subscribe)
	go websocket.Forward(ctx, hub, websocket.MessageTypeTransferState, transfers.Subscribe)

	poller := notifications.NewPoller(aggregator, cfg.Notifications.PollInterval, log)
	go poller.Run(ctx, sessions)
	go watchSession(ctx, sessions, cart, transfers, hub, log)

	router := api.SetupRouter(api.Services{
		Sessions:      sessions,
		JWT:           auth.NewJWTManager(cfg.JWT),
		Notifications: aggregator,
		Cart:          cart,
		Transfer:      transfers,
		Journal:       journal,
		History:       history,
		Hub:           hub,
	}, cfg, log)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.WithCORS(router, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port":    cfg.Port,
			"backend": cfg.Backend.BaseURL,
		}).Info("Companion listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
}

// openStorage uses Postgres when DATABASE_URL is set and in-memory stores otherwise.
func openStorage(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (database.Journal, database.History, func()) {
	if cfg.Database.URL == "" {
		log.Info("DATABASE_URL not set, transfer journal and history are kept in memory")
		return database.NewMemoryJournal(), database.NewMemoryHistory(), func() {}
	}

	db, err := database.Connect(ctx, cfg.Database.URL)
	if err != nil {
		log.WithError(err).Fatal("Database connection error")
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		log.WithError(err).Fatal("Database migration failed")
	}
	return database.NewPostgresJournal(db), database.NewPostgresHistory(db), db.Close
}

// watchSession keeps the cart and the transfer modal in step with login and logout.
func watchSession(ctx context.Context, sessions *auth.Manager, cart *stores.CartStore, transfers *transfer.Transfer, hub *websocket.Hub, log logrus.FieldLogger) {
	events, unsubscribe := sessions.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			hub.Publish(websocket.MessageTypeSession, event.User)

			if event.Type == auth.EventLogin {
				if _, err := cart.Refresh(ctx); err != nil {
					log.WithError(err).Warn("Initial cart load failed")
				}
				continue
			}
			cart.Reset()
			transfers.Reset()
		}
	}
}
