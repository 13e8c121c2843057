package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"presucore/internal/api"
	"presucore/internal/config"
	"presucore/internal/pipeline"
	"presucore/internal/reconcile"
	"presucore/internal/store"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage. An empty STORE_PATH keeps everything in memory.
	var st *store.Store
	var sqliteStore *store.SQLiteStore
	if cfg.StorePath == "" {
		st = store.New()
		log.Info("using in-memory store")
	} else {
		var err error
		sqliteStore, err = store.NewSQLite(cfg.StorePath)
		if err != nil {
			log.Error("store init failed", "path", cfg.StorePath, "error", err)
			os.Exit(1)
		}
		st = sqliteStore.Store
		log.Info("using sqlite store", "path", cfg.StorePath)
	}

	reconciler := reconcile.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, st, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(st, orch, reconciler, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		reconciler.Close()
		if sqliteStore != nil {
			if err := sqliteStore.Close(); err != nil {
				log.Error("store close failed", "error", err)
			}
		}
	}()

	log.Info("starting presucore", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
