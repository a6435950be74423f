package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/goyoulink/affiliate-tracker/internal/config"
	"github.com/goyoulink/affiliate-tracker/internal/pkg/logger"
	"github.com/goyoulink/affiliate-tracker/internal/repository/postgres"
	"github.com/goyoulink/affiliate-tracker/internal/service/affiliate"
	"github.com/goyoulink/affiliate-tracker/internal/tracking"
	"github.com/goyoulink/affiliate-tracker/internal/worker"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.Redact())
	defer logger.Sync()

	logger.Info("starting click worker")
	if cfg.SQS.TrackingQueueURL == "" {
		logger.Error("SQS_TRACKING_QUEUE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.SQS.Region))
	if err != nil {
		logger.Error("aws config", "error", err)
		os.Exit(1)
	}

	svc := affiliate.NewService(postgres.NewStore(db), affiliate.Settings{})
	consumer := tracking.NewConsumer(sqs.NewFromConfig(awsCfg), cfg.SQS.TrackingQueueURL, svc)
	consumer.Start(ctx)

	retention := worker.NewClickRetentionWorker(db, cfg.Affiliate.ClickRetentionDays)
	go retention.Start(ctx)

	// Heartbeat so a stalled worker is visible in the logs.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.Debug("worker heartbeat")
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker")
	consumer.Stop()
	cancel()
	logger.Info("worker stopped")
}
