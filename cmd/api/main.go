package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/panel-extensions/panel-reactflow/infrastructure/config"
	"github.com/panel-extensions/panel-reactflow/infrastructure/di"
	"github.com/panel-extensions/panel-reactflow/interfaces/http/rest"
	"github.com/panel-extensions/panel-reactflow/interfaces/websocket"
)

func main() {
	// Initialize context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize dependency container
	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer cleanup()
	logger := container.Logger
	svc := container.Service

	if err := svc.Load(ctx); err != nil {
		logger.Fatal("Failed to restore graph", zap.Error(err))
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		container.Hub.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := svc.Run(ctx); err != nil {
			logger.Error("Graph service stopped", zap.Error(err))
		}
	}()
	go func() {
		defer wg.Done()
		container.Metrics.Run(ctx, time.Minute)
	}()

	if cfg.WatchGraphFile {
		watcher, err := config.NewGraphFileWatcher(cfg.GraphFile, logger)
		if err != nil {
			logger.Fatal("Failed to watch graph file", zap.Error(err))
		}
		watcher.OnChange(func(def *config.GraphDefinition) {
			if err := svc.ReloadTypes(ctx, def.NodeTypeSpecs(), def.EdgeTypeSpecs()); err != nil {
				logger.Error("Failed to reload types", zap.Error(err))
				return
			}
			logger.Info("Types reloaded", zap.String("file", cfg.GraphFile))
		})
		watcher.Start()
		defer watcher.Stop()
	}

	// Create router
	router := rest.NewRouter(svc, container.Validator, container.Tracer, cfg.AllowedOrigins, cfg.IsDevelopment(), logger)
	wsCfg := websocket.DefaultServerConfig()
	wsCfg.AllowedOrigins = cfg.AllowedOrigins
	router.WebSocket = websocket.NewServer(svc, container.Hub, container.Validator, container.Connections, wsCfg, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
			zap.String("graph_id", cfg.GraphID),
			zap.String("storage", cfg.StorageBackend),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	// Stop the graph loop, which saves a final snapshot, then the hub.
	cancel()
	wg.Wait()

	if err := container.Metrics.Flush(shutdownCtx); err != nil {
		logger.Error("Failed to flush metrics", zap.Error(err))
	}
	if err := logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	log.Println("Server stopped")
}
