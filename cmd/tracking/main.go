package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/goyoulink/affiliate-tracker/internal/cache"
	"github.com/goyoulink/affiliate-tracker/internal/config"
	"github.com/goyoulink/affiliate-tracker/internal/pkg/logger"
	"github.com/goyoulink/affiliate-tracker/internal/repository/postgres"
	"github.com/goyoulink/affiliate-tracker/internal/service/affiliate"
	"github.com/goyoulink/affiliate-tracker/internal/tracking"
)

// The short link edge: resolves codes through Redis and PostgreSQL and
// hands clicks to SQS for cmd/worker to record.
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

	if cfg.SQS.TrackingQueueURL == "" {
		logger.Error("SQS_TRACKING_QUEUE_URL is required")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := cache.NewClient(ctx, cfg.Redis.URL)
	if err != nil {
		logger.Error("invalid redis configuration", "error", err)
		os.Exit(1)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.SQS.Region))
	if err != nil {
		logger.Error("aws config", "error", err)
		os.Exit(1)
	}
	pub := tracking.NewPublisher(sqs.NewFromConfig(awsCfg), cfg.SQS.TrackingQueueURL)

	svc := affiliate.NewService(postgres.NewStore(db), affiliate.Settings{
		RedirectTarget: cfg.Affiliate.RedirectTarget,
	})
	var resolver tracking.AffiliateResolver = svc
	if rdb != nil {
		defer rdb.Close()
		resolver = cache.NewAffiliateCache(rdb, svc, cfg.Redis.CacheTTL())
	}
	handler := tracking.NewHandler(resolver, pub, cfg.Affiliate.RedirectTarget)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("tracking service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down tracking service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	pub.Flush()
}
