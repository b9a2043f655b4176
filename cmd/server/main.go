package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/vatscope/traffic-server/internal/api"
	"github.com/vatscope/traffic-server/internal/config"
	"github.com/vatscope/traffic-server/internal/notify"
	"github.com/vatscope/traffic-server/internal/storage/sqlite"
	"github.com/vatscope/traffic-server/internal/traffic"
	"github.com/vatscope/traffic-server/internal/websocket"
	"github.com/vatscope/traffic-server/pkg/logger"
	"github.com/vatscope/traffic-server/pkg/metrics"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting traffic server",
		logger.String("version", Version),
		logger.String("network", cfg.Traffic.Network),
	)

	variant, ok := traffic.VariantByName(cfg.Traffic.Network)
	if !ok {
		log.Error("Unknown network", logger.String("network", cfg.Traffic.Network))
		os.Exit(1)
	}

	// Ensure the database directory exists
	dbDir := filepath.Dir(cfg.Storage.SQLitePath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		log.Error("Failed to create database directory", logger.Error(err), logger.String("path", dbDir))
		os.Exit(1)
	}

	// Create SQLite storage
	trafficStorage, err := sqlite.NewTrafficStorage(cfg.Storage.SQLitePath, log)
	if err != nil {
		log.Error("Failed to create SQLite storage", logger.Error(err))
		os.Exit(1)
	}
	defer trafficStorage.Close()
	log.Info("Using SQLite storage", logger.String("path", cfg.Storage.SQLitePath))

	// Create archive storage over the same database
	archiveStorage, err := sqlite.NewArchiveStorage(trafficStorage.GetDB(), log)
	if err != nil {
		log.Error("Failed to create archive storage", logger.Error(err))
		os.Exit(1)
	}

	// Create WebSocket server
	wsServer := websocket.NewServer(log)
	go wsServer.Run()

	// Create change notifier
	notifier := notify.NewWebSocketNotifier(wsServer, log)

	// Create status-file client
	statusClient, err := traffic.NewStatusClient(
		cfg.Traffic.StatusURLs,
		time.Duration(cfg.Traffic.RequestTimeoutSecs)*time.Second,
		log,
	)
	if err != nil {
		log.Error("Failed to create status client", logger.Error(err))
		os.Exit(1)
	}

	// Create metrics bundle
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace)
	}

	// Create and start the traffic service
	trafficService := traffic.NewService(
		statusClient,
		trafficStorage,
		archiveStorage,
		notifier,
		traffic.NewParser(variant),
		time.Duration(cfg.Traffic.FetchIntervalSecs)*time.Second,
		log,
		m,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := trafficService.Start(ctx); err != nil {
		log.Error("Failed to start traffic service", logger.Error(err))
		os.Exit(1)
	}

	// Create API router
	router := api.NewRouter(trafficService, trafficStorage, archiveStorage, cfg, log, wsServer)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error on startup", logger.String("addr", addr), logger.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	log.Info("Stopping traffic service...")
	trafficService.Stop()
	log.Info("Traffic service stopped.")

	// Cancel the main context
	cancel()

	// Shutdown the HTTP server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	}

	log.Info("Server fully stopped")
}
