package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/pagetree/internal/api"
	"github.com/dgallion1/pagetree/internal/config"
	"github.com/dgallion1/pagetree/internal/index"
	"github.com/dgallion1/pagetree/internal/llm"
	"github.com/dgallion1/pagetree/internal/pipeline"
	"github.com/dgallion1/pagetree/internal/retrieval"
	"github.com/dgallion1/pagetree/internal/store"
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

	// Initialize models and storage.
	registry, err := llm.NewRegistry(ctx, cfg.ModelConfigs())
	if err != nil {
		log.Error("model registry init failed", "error", err)
		os.Exit(1)
	}
	st, err := store.NewFSStore(cfg.StoreDir, cfg.IndexCacheSize)
	if err != nil {
		log.Error("index store init failed", "error", err)
		os.Exit(1)
	}

	// Initialize pipeline and retrieval.
	builder := index.NewBuilder(registry, log)
	orch := pipeline.NewOrchestrator(cfg, builder, st, log)
	orch.Start(ctx)
	engine := retrieval.NewEngine(st, registry, log, cfg.SearchSeed)

	// Initialize HTTP server.
	srv := api.NewServer(orch, st, engine, registry, log, cfg)

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

		registry.Close()
	}()

	log.Info("starting pagetree", "port", cfg.Port, "models", len(cfg.ModelConfigs()))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
