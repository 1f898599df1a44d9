// Command worker runs the scheduled WhatsApp jobs: appointment reminders,
// day-after follow-ups, monthly charges and payment reminders.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wolfman30/atma-clinic-ai/cmd/mainconfig"
	"github.com/wolfman30/atma-clinic-ai/internal/app/bootstrap"
	appconfig "github.com/wolfman30/atma-clinic-ai/internal/config"
	"github.com/wolfman30/atma-clinic-ai/internal/reminders"
	"github.com/wolfman30/atma-clinic-ai/pkg/logging"
)

func main() {
	once := flag.Bool("once", false, "run every job a single time and exit")
	flag.Parse()

	if err := appconfig.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

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

	runner := reminders.NewRunner(logger, app.Jobs()...).
		WithInterval(cfg.WorkerInterval).
		WithMetrics(app.JobMetrics)

	if *once {
		if err := runner.RunOnce(ctx); err != nil {
			logger.Error("worker run failed", "error", err)
			app.Close()
			os.Exit(1)
		}
		return
	}

	logger.Info("worker started", "interval", cfg.WorkerInterval.String())
	runner.Run(ctx)
	logger.Info("worker stopped")
}
