package main

import (
	"context"
	"database/sql"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goyoulink/affiliate-tracker/internal/api"
	"github.com/goyoulink/affiliate-tracker/internal/attribution"
	"github.com/goyoulink/affiliate-tracker/internal/cache"
	"github.com/goyoulink/affiliate-tracker/internal/config"
	"github.com/goyoulink/affiliate-tracker/internal/pkg/distlock"
	"github.com/goyoulink/affiliate-tracker/internal/pkg/logger"
	"github.com/goyoulink/affiliate-tracker/internal/referral"
	"github.com/goyoulink/affiliate-tracker/internal/repository/postgres"
	"github.com/goyoulink/affiliate-tracker/internal/service/affiliate"
	"github.com/goyoulink/affiliate-tracker/internal/snippet"
	"github.com/goyoulink/affiliate-tracker/internal/tracking"
	"github.com/redis/go-redis/v9"
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

	if cfg.Admin.Password == "admin" || cfg.SecretKey == "dev-secret-key" {
		logger.Warn("running with development credentials; set ADMIN_PASSWORD and SECRET_KEY")
	}

	ctx := context.Background()
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	rdb, err := cache.NewClient(ctx, cfg.Redis.URL)
	if err != nil {
		logger.Error("invalid redis configuration", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
		logger.Info("connected to redis")
	}

	svc := affiliate.NewService(postgres.NewStore(db), affiliate.Settings{
		DefaultCommissionRate: cfg.Affiliate.DefaultCommissionRate,
		MinPayout:             float64(cfg.Affiliate.MinPayoutJPY),
		ShortURLDomain:        cfg.Affiliate.ShortURLDomain,
		RedirectTarget:        cfg.Affiliate.RedirectTarget,
	}, affiliate.WithLocks(distlock.NewFactory(rdb, db, 30*time.Second)))

	router := api.SetupRoutes(buildRoutes(cfg, db, rdb, svc))
	server := api.NewServer(cfg.Server, router)

	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}

func buildRoutes(cfg *config.Config, db *sql.DB, rdb *redis.Client, svc *affiliate.Service) api.Routes {
	var (
		resolver    tracking.AffiliateResolver = svc
		invalidator api.ShortCodeInvalidator
	)
	if rdb != nil {
		c := cache.NewAffiliateCache(rdb, svc, cfg.Redis.CacheTTL())
		resolver, invalidator = c, c
	}
	links := tracking.NewHandler(resolver, tracking.NewDirectSink(svc), cfg.Affiliate.RedirectTarget)

	return api.Routes{
		Health:         api.NewHealthChecker(db, rdb),
		Admin:          api.NewAdminHandlers(svc, invalidator, cfg.Admin.Username, cfg.Admin.Password),
		Partner:        api.NewPartnerHandlers(svc, api.NewSessionStore(0), !cfg.Server.InsecureCookies),
		Webhooks:       attribution.NewHandler(svc, cfg.Shopify.WebhookSecret).Routes(),
		Script:         snippet.NewRenderer().Handler(trackerConfig(cfg)),
		ShortLinks:     func(r chi.Router) { links.Mount(r) },
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}
}

// trackerConfig derives the storefront tracker settings from cfg.
func trackerConfig(cfg *config.Config) referral.Config {
	storefront, err := url.Parse(cfg.Affiliate.RedirectTarget)
	if err != nil || storefront.Host == "" {
		storefront = &url.URL{Scheme: "https", Host: cfg.Shopify.ShopDomain}
	}
	rc := referral.DefaultConfig(storefront)
	rc.ParamName = cfg.Tracker.ParamName
	rc.CookieName = cfg.Tracker.CookieName
	rc.CookieTTL = time.Duration(cfg.Affiliate.CookieDays) * 24 * time.Hour
	rc.CartUpdatePath = cfg.Tracker.CartUpdatePath
	rc.AddToCartPath = cfg.Tracker.AddToCartPath
	rc.AttributeName = cfg.Tracker.AttributeName
	rc.SyncDelay = cfg.Tracker.SyncDelay()
	return rc
}
