// Package main is the entry point for the clinic ledger API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"clinicledger/internal/app"
	"clinicledger/internal/config"
	v1 "clinicledger/internal/infrastructure/http/v1"
	"clinicledger/internal/infrastructure/http/v1/handlers"
	"clinicledger/pkg/logger"
)

var version = "dev"

func main() {
	cfg, err := config.Load(os.Getenv("CLINIC_CONFIG"))
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	log.Infow("starting clinicledger server", "version", version, "driver", cfg.Database.Driver)

	// --- Storage ---
	st, err := app.NewStorage(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to initialize storage", "error", err)
	}
	defer st.Close()

	checks := map[string]handlers.Checker{}
	if st.Pool != nil {
		checks["postgres"] = st.Pool
		log.Info("database connection established")
	}

	// --- Services ---
	svc, err := app.NewServices(st, cfg)
	if err != nil {
		log.Fatalw("failed to initialize services", "error", err)
	}
	log.Infow("engines initialized",
		"stock_policy", svc.Inventory.Policy(),
		"folio_scope", cfg.Billing.FolioScope,
	)

	// --- Router ---
	routerCfg := v1.RouterConfig{
		Logger:      log,
		Health:      handlers.NewHealthHandler(version, st.Driver, checks, st.Pool),
		Inventory:   svc.Inventory,
		Procedures:  svc.Procedures,
		Billing:     svc.Billing,
		Audit:       st.Audit,
		Development: cfg.IsDevelopment(),
	}
	if cfg.Idempotency.Enabled {
		routerCfg.Idempotency = st.Idempotency
	}
	router := v1.NewRouter(routerCfg)

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
