package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/stockbook/internal/app"
	jobmetrics "github.com/odyssey-erp/stockbook/internal/jobs"
	"github.com/odyssey-erp/stockbook/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	blobs, err := app.NewBlobStore(ctx, cfg)
	if err != nil {
		logger.Error("init blob store", slog.Any("error", err), slog.String("driver", cfg.BlobDriver))
		os.Exit(1)
	}

	uploadJobs := jobs.NewUploadJobs(blobs, cfg.UploadRetention, logger, jobmetrics.NewMetrics(nil))
	sweep, err := jobs.SweepSchedule(cfg.UploadSweepCron)
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}
	sweep.Options = []asynq.Option{asynq.MaxRetry(3)}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers:  uploadJobs.Handlers(),
		Cron:      []jobs.CronRegistration{sweep},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("sweep", sweep.Spec), slog.Duration("retention", cfg.UploadRetention))
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
