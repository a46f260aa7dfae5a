package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pixelle-ai/mcp-broker/api/handlers"
	"github.com/pixelle-ai/mcp-broker/internal/broker"
	"github.com/pixelle-ai/mcp-broker/internal/config"
	"github.com/pixelle-ai/mcp-broker/internal/db"
	"github.com/pixelle-ai/mcp-broker/internal/genai"
	"github.com/pixelle-ai/mcp-broker/internal/relay"
	"github.com/pixelle-ai/mcp-broker/internal/repository"
	"github.com/pixelle-ai/mcp-broker/internal/session"
	"github.com/pixelle-ai/mcp-broker/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zerolog.New(os.Stderr).Error().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	// Storage backend; the local backend keeps its metadata index in SQLite.
	var fileRepo *repository.FileRepository
	if cfg.StorageType == config.StorageTypeLocal {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			log.Error().Err(err).Msg("failed to create database directory")
			os.Exit(1)
		}
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			log.Error().Err(err).Msg("failed to open database")
			os.Exit(1)
		}
		defer database.Close()
		fileRepo = repository.NewFileRepository(database)
	}

	store, err := storage.New(cfg, fileRepo, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize storage backend")
		os.Exit(1)
	}

	// The generation API client is optional; without a key its routes
	// answer with a structured configuration error.
	genClient, genErr := genai.NewClient(cfg.GenAI, log)
	if genErr != nil {
		log.Warn().Err(genErr).Msg("generation API not configured")
	}

	registry := session.NewRegistry(cfg.HistoryLimit, log)
	dispatcher := broker.NewDispatcher(registry, log)
	wsBroker := broker.NewBroker(registry, dispatcher, log)

	statusHandler := handlers.NewStatusHandler(registry)
	messageHandler := handlers.NewMessageHandler(registry)
	fileHandler := handlers.NewFileHandler(store)
	generateHandler := handlers.NewGenerateHandler(genClient, genErr)
	wsHandler := handlers.NewWebSocketHandler(wsBroker)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	wsHandler.RegisterRoutes(r)
	api := r.Group("/api")
	{
		messageHandler.RegisterRoutes(api)
		fileHandler.RegisterRoutes(api)
		generateHandler.RegisterRoutes(api)
	}
	statusHandler.RegisterRoutes(r, api)

	servers := []*http.Server{{Addr: cfg.Addr(), Handler: r}}

	if cfg.RelayEnabled() {
		relayEngine := gin.New()
		relayEngine.Use(gin.Recovery())
		relayEngine.Use(corsMiddleware())
		handlers.NewRelayHandler(relay.New(cfg.RelayTargetURL, log)).RegisterRoutes(relayEngine)
		servers = append(servers, &http.Server{Addr: cfg.RelayAddr(), Handler: relayEngine})
		log.Info().Str("addr", cfg.RelayAddr()).Str("target", cfg.RelayTargetURL).Msg("relay enabled")
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		srv := srv
		go func() {
			log.Info().Str("addr", srv.Addr).Msg("listener started")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Error().Err(err).Msg("listener failed")
		os.Exit(1)
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Str("addr", srv.Addr).Msg("shutdown incomplete")
		}
	}
	registry.CloseAll()
}

// corsMiddleware returns a permissive CORS middleware; the broker fronts
// browser clients on arbitrary origins.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
