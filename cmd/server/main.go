package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gavelhouse/gavel/internal/api"
	"github.com/gavelhouse/gavel/internal/auction"
	"github.com/gavelhouse/gavel/internal/auction/gateway"
	"github.com/gavelhouse/gavel/internal/auction/relay"
	"github.com/gavelhouse/gavel/internal/auth"
	"github.com/gavelhouse/gavel/internal/config"
	"github.com/gavelhouse/gavel/internal/items"
	"github.com/gavelhouse/gavel/internal/storage"
	"github.com/gavelhouse/gavel/internal/storage/memory"
	"github.com/gavelhouse/gavel/internal/storage/postgres"
	redisstore "github.com/gavelhouse/gavel/internal/storage/redis"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	store, err := setupStorage(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up storage")
	}
	defer store.Close()

	clk := clockwork.NewRealClock()

	// Auth and item listing services
	authService := auth.New(store, clk, auth.Config{SessionDuration: cfg.Auth.SessionDuration()})
	itemsApp := items.NewApp(store)

	// Optional NATS relay for out-of-process event consumers
	var sinks []gateway.Sink
	if cfg.Relay.Enabled {
		pub, err := relay.New(relay.Config{
			URL:           cfg.Relay.URL,
			SubjectPrefix: cfg.Relay.SubjectPrefix,
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect event relay")
		}
		defer pub.Close()
		sinks = append(sinks, pub)
	}

	// Auction core: registry, fanout, arbiter and clock share one lock set
	registry := gateway.NewRegistry()
	fanout := gateway.NewFanout(registry, sinks...)
	locks := auction.NewItemLocks()
	arbiter := auction.NewArbiter(store, locks, fanout)
	auctionClock := auction.NewClock(store, locks, fanout, arbiter, clk, cfg.Auction.TickInterval())

	coordinator := gateway.NewCoordinator(gateway.DefaultConnectionConfig(), registry, fanout, arbiter, store, authService)

	router := api.NewRouter(api.RouterConfig{
		AuthService: authService,
		ItemsApp:    itemsApp,
		Store:       store,
		Coordinator: coordinator,
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(router)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      corsHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Context for background services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the auction clock
	go func() {
		if err := auctionClock.Run(ctx); err != nil {
			log.Error().Err(err).Msg("auction clock failed")
		}
	}()

	// Evict expired sessions periodically
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				authService.CleanExpiredSessions()
			}
		}
	}()

	// Start HTTP server
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("storage", cfg.Storage.Backend).
			Bool("relay", cfg.Relay.Enabled).
			Msg("auction server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()
	log.Info().Msg("auction server shutdown complete")
}

func setupStorage(cfg config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return memory.New(), nil

	case config.BackendPostgres:
		store, err := postgres.New(cfg.Storage.Postgres.DSN())
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(context.Background()); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil

	case config.BackendRedis:
		rcfg := redisstore.DefaultConfig()
		rcfg.URL = cfg.Storage.Redis.URL
		return redisstore.New(rcfg)

	default:
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.Storage.Backend)
	}
}

func allowedOrigins(cfg config.Config) []string {
	if len(cfg.Server.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.Server.AllowedOrigins
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
