package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/wolfman30/atma-clinic-ai/cmd/mainconfig"
	"github.com/wolfman30/atma-clinic-ai/internal/app/bootstrap"
	appconfig "github.com/wolfman30/atma-clinic-ai/internal/config"
	"github.com/wolfman30/atma-clinic-ai/pkg/logging"
)

func main() {
	if err := appconfig.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting atma API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if err := checkProductionConfig(cfg); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	app, err := bootstrap.New(ctx, cfg, &awsCfg, logger)
	if err != nil {
		logger.Error("failed to wire application", "error", err)
		os.Exit(1)
	}
	defer app.Close()
	app.StartDeliverer(ctx)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// checkProductionConfig refuses to serve patients in production without
// durable storage, webhook signature validation and admin auth.
func checkProductionConfig(cfg *appconfig.Config) error {
	if !cfg.IsProduction() {
		return nil
	}
	var missing []string
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if strings.TrimSpace(cfg.AdminJWTSecret) == "" {
		missing = append(missing, "ADMIN_JWT_SECRET")
	}
	if bootstrap.WebhookSigningKey(cfg) == "" {
		missing = append(missing, "TWILIO_AUTH_TOKEN or TWILIO_WEBHOOK_SECRET")
	}
	if cfg.WhatsAppSimulate {
		missing = append(missing, "WHATSAPP_SIMULATE must be false")
	}
	if len(missing) > 0 {
		return fmt.Errorf("production requires: %s", strings.Join(missing, ", "))
	}
	return nil
}
