package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baxromumarov/shelf-harvester/internal/api"
	"github.com/baxromumarov/shelf-harvester/internal/config"
	"github.com/baxromumarov/shelf-harvester/internal/core"
	"github.com/baxromumarov/shelf-harvester/internal/httpx"
	"github.com/baxromumarov/shelf-harvester/internal/render"
	"github.com/baxromumarov/shelf-harvester/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		dbStore *store.Store
		runs    api.RunStore
	)
	opts := []core.Option{core.WithLogger(logger)}
	if cfg.Store.Driver != "" {
		dbStore, err = store.Open(cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			slog.Error("failed to connect to store", "error", err)
			os.Exit(1)
		}
		defer dbStore.Close()

		// Run schema migrations to ensure tables exist
		if err := dbStore.RunMigrations(ctx); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		runs = dbStore
		opts = append(opts, core.WithStore(dbStore))
	}

	browser := render.NewBrowser(cfg.RenderOptions(), logger)
	defer browser.Close()
	opts = append(opts, core.WithRenderer(browser))

	harvester := core.NewHarvestService(
		cfg.HarvestSettings(),
		httpx.NewPoliteClient(cfg.ClientOptions()),
		httpx.NewCollyFetcher(cfg.ClientOptions()),
		opts...,
	)

	// Start periodic harvest and retention loops
	var resultStore core.ResultStore
	if dbStore != nil {
		resultStore = dbStore
	}
	scheduler := core.NewSchedulerService(harvester, resultStore, cfg.Schedule(), logger)
	scheduler.Start(ctx)

	srv := api.NewServer(harvester, runs, cfg.Server.AllowedOrigins)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	slog.Info("starting server", "port", cfg.Server.Port)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
