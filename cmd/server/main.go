// Package main runs the Datagotchi API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "github.com/Arthur-Jacobina/datagotchi/internal/app"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/httpapi"
	"github.com/Arthur-Jacobina/datagotchi/internal/app/storage/postgres"
	"github.com/Arthur-Jacobina/datagotchi/internal/config"
	"github.com/Arthur-Jacobina/datagotchi/internal/logging"
	"github.com/Arthur-Jacobina/datagotchi/internal/metrics"
	"github.com/Arthur-Jacobina/datagotchi/internal/middleware"
)

func main() {
	log := logging.New("server")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load configuration")
	}

	stores, cleanup, err := buildStores(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("initialise storage")
	}
	defer cleanup()

	application, err := app.New(cfg, stores, log)
	if err != nil {
		log.WithError(err).Fatal("initialise application")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Fatal("start application")
	}

	m := metrics.New("datagotchi")
	handler := httpapi.NewHandler(application, m, log)
	handler.Use(middleware.Metrics(m))

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst, log)
	cors := middleware.NewCORS(cfg.AllowedOrigins())

	chain := cors.Handler(middleware.Logging(log)(rateLimiter.Handler(handler)))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      chain,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Infof("%s v%s listening on :%d (%s)", cfg.AppName, cfg.AppVersion, cfg.Port, cfg.Environment)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("application shutdown")
	}
}

// buildStores opens Postgres when DATABASE_URL is set and falls back to the
// in-memory store otherwise. Open runs migrations before returning.
func buildStores(cfg *config.Config, log *logging.Logger) (app.Stores, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set; using in-memory storage")
		return app.Stores{}, func() {}, nil
	}

	store, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		return app.Stores{}, nil, fmt.Errorf("open postgres: %w", err)
	}
	log.Info("connected to postgres")

	stores := app.Stores{
		Profiles:  store,
		Sessions:  store,
		Pets:      store,
		Instances: store,
		Knowledge: store,
		Images:    store,
		Rewards:   store,
	}
	return stores, func() { _ = store.DB().Close() }, nil
}
