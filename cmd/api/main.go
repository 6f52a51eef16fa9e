package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/puzzle-engine/internal/config"
	"github.com/jwebster45206/puzzle-engine/internal/handlers"
	"github.com/jwebster45206/puzzle-engine/internal/logger"
	"github.com/jwebster45206/puzzle-engine/internal/middleware"
	"github.com/jwebster45206/puzzle-engine/internal/services/events"
	"github.com/jwebster45206/puzzle-engine/internal/services/queue"
	"github.com/jwebster45206/puzzle-engine/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Puzzle Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"match_policy", cfg.MatchPolicy,
		"data_dir", cfg.DataDir)

	store, err := storage.NewRedisStorage(cfg.RedisURL, cfg.DataDir, log)
	if err != nil {
		log.Error("Failed to create storage", "error", err)
		os.Exit(1)
	}
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()

	if err := store.WaitForConnection(storageCtx, 30, 2*time.Second); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	queueClient, err := queue.NewClient(cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to create queue client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			log.Error("Error closing queue client", "error", err)
		}
	}()

	triggerQueue := queue.NewTriggerQueue(queueClient)
	broadcaster := events.NewBroadcaster(queueClient.Redis(), log)
	dispatcher := handlers.NewDispatcher(triggerQueue, broadcaster, log)

	mux := http.NewServeMux()

	mux.Handle("/health", handlers.NewHealthHandler(store, log).WithQueue(queueClient))

	ruleSetHandler := handlers.NewRuleSetHandler(store, cfg.MatchPolicy, log)
	mux.Handle("/v1/rulesets", ruleSetHandler)
	mux.Handle("/v1/rulesets/", ruleSetHandler)

	mux.Handle("/v1/snapshots/", handlers.NewSnapshotHandler(store, dispatcher, cfg.MatchPolicy, log))
	mux.Handle("/v1/scenes/", handlers.NewSceneHandler(store, dispatcher, cfg.MatchPolicy, log))
	mux.Handle("/v1/events/", handlers.NewEventsHandler(queueClient.Redis(), log))

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.Logger(mux),
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: the SSE endpoint holds connections open
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
