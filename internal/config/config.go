package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	SQS       SQSConfig       `yaml:"sqs"`
	Shopify   ShopifyConfig   `yaml:"shopify"`
	Affiliate AffiliateConfig `yaml:"affiliate"`
	Admin     AdminConfig     `yaml:"admin"`
	Tracker   TrackerConfig   `yaml:"tracker"`
	Log       LogConfig       `yaml:"log"`
	SecretKey string          `yaml:"secret_key"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// InsecureCookies drops the Secure flag from session cookies for
	// plain-HTTP development.
	InsecureCookies bool `yaml:"insecure_cookies"`
}

// Addr returns host:port for http.Server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds the PostgreSQL connection settings
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds"`
}

// RedisConfig holds the cache/lock backend settings. An empty URL disables Redis.
type RedisConfig struct {
	URL             string `yaml:"url"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

// CacheTTL returns the affiliate lookup cache lifetime.
func (c RedisConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// SQSConfig holds the click event queue settings
type SQSConfig struct {
	TrackingQueueURL string `yaml:"tracking_queue_url"`
	Region           string `yaml:"region"`
}

// ShopifyConfig holds the storefront credentials
type ShopifyConfig struct {
	ShopDomain    string `yaml:"shop_domain"`
	AccessToken   string `yaml:"access_token"`
	WebhookSecret string `yaml:"webhook_secret"`
}

// AffiliateConfig holds the commission program settings
type AffiliateConfig struct {
	DefaultCommissionRate float64 `yaml:"default_commission_rate"` // percent
	CookieDays            int     `yaml:"cookie_days"`
	MinPayoutJPY          int     `yaml:"min_payout_jpy"`
	ShortURLDomain        string  `yaml:"short_url_domain"`
	RedirectTarget        string  `yaml:"redirect_target"`
	// ClickRetentionDays bounds how long raw click rows are kept; 0 keeps
	// them forever.
	ClickRetentionDays int `yaml:"click_retention_days"`
}

// AdminConfig holds back office credentials
type AdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// TrackerConfig holds the storefront tracker settings shared by the Go
// tracker and the rendered browser snippet.
type TrackerConfig struct {
	ParamName      string `yaml:"param_name"`
	CookieName     string `yaml:"cookie_name"`
	CartUpdatePath string `yaml:"cart_update_path"`
	AddToCartPath  string `yaml:"add_to_cart_path"`
	AttributeName  string `yaml:"attribute_name"`
	SyncDelayMS    int    `yaml:"sync_delay_ms"`
}

// SyncDelay returns the delayed cart sync wait as a duration
func (c TrackerConfig) SyncDelay() time.Duration {
	return time.Duration(c.SyncDelayMS) * time.Millisecond
}

// LogConfig holds logging settings
type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether PII redaction is on (default true).
func (c LogConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// Load reads and parses the configuration file. A missing file yields the
// defaults so the binaries can run from environment variables alone.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 3
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 300
	}
	if cfg.Redis.CacheTTLSeconds == 0 {
		cfg.Redis.CacheTTLSeconds = 600
	}
	if cfg.SQS.Region == "" {
		cfg.SQS.Region = "ap-northeast-1"
	}
	if cfg.Affiliate.DefaultCommissionRate == 0 {
		cfg.Affiliate.DefaultCommissionRate = 5
	}
	if cfg.Affiliate.CookieDays == 0 {
		cfg.Affiliate.CookieDays = 30
	}
	if cfg.Affiliate.MinPayoutJPY == 0 {
		cfg.Affiliate.MinPayoutJPY = 20000
	}
	if cfg.Affiliate.ShortURLDomain == "" {
		cfg.Affiliate.ShortURLDomain = "https://go.goyoulink.com"
	}
	if cfg.Affiliate.RedirectTarget == "" {
		cfg.Affiliate.RedirectTarget = "https://goyoutati.com"
	}
	if cfg.Admin.Username == "" {
		cfg.Admin.Username = "admin"
	}
	if cfg.Admin.Password == "" {
		cfg.Admin.Password = "admin"
	}
	if cfg.SecretKey == "" {
		cfg.SecretKey = "dev-secret-key"
	}
	if cfg.Tracker.ParamName == "" {
		cfg.Tracker.ParamName = "ref"
	}
	if cfg.Tracker.CookieName == "" {
		cfg.Tracker.CookieName = "goyoulink_ref"
	}
	if cfg.Tracker.CartUpdatePath == "" {
		cfg.Tracker.CartUpdatePath = "/cart/update.js"
	}
	if cfg.Tracker.AddToCartPath == "" {
		cfg.Tracker.AddToCartPath = "/cart/add"
	}
	if cfg.Tracker.AttributeName == "" {
		cfg.Tracker.AttributeName = "referral_code"
	}
	if cfg.Tracker.SyncDelayMS == 0 {
		cfg.Tracker.SyncDelayMS = 1000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, so secrets can
// live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("SQS_TRACKING_QUEUE_URL"); v != "" {
		cfg.SQS.TrackingQueueURL = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.SQS.Region = v
	}
	if v := os.Getenv("SHOPIFY_SHOP_DOMAIN"); v != "" {
		cfg.Shopify.ShopDomain = v
	}
	if v := os.Getenv("SHOPIFY_ACCESS_TOKEN"); v != "" {
		cfg.Shopify.AccessToken = v
	}
	if v := os.Getenv("SHOPIFY_WEBHOOK_SECRET"); v != "" {
		cfg.Shopify.WebhookSecret = v
	}
	if v := os.Getenv("SECRET_KEY"); v != "" {
		cfg.SecretKey = v
	}
	if v := os.Getenv("DEFAULT_COMMISSION_RATE"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("DEFAULT_COMMISSION_RATE: %w", err)
		}
		cfg.Affiliate.DefaultCommissionRate = rate
	}
	if v := os.Getenv("COOKIE_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("COOKIE_DAYS: %w", err)
		}
		cfg.Affiliate.CookieDays = days
	}
	if v := os.Getenv("MIN_PAYOUT_JPY"); v != "" {
		minPayout, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("MIN_PAYOUT_JPY: %w", err)
		}
		cfg.Affiliate.MinPayoutJPY = minPayout
	}
	if v := os.Getenv("SHORT_URL_DOMAIN"); v != "" {
		cfg.Affiliate.ShortURLDomain = v
	}
	if v := os.Getenv("REDIRECT_TARGET"); v != "" {
		cfg.Affiliate.RedirectTarget = v
	}
	if v := os.Getenv("CLICK_RETENTION_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("CLICK_RETENTION_DAYS: %w", err)
		}
		cfg.Affiliate.ClickRetentionDays = days
	}
	if v := os.Getenv("ADMIN_USERNAME"); v != "" {
		cfg.Admin.Username = v
	}
	if v := os.Getenv("ADMIN_PASSWORD"); v != "" {
		cfg.Admin.Password = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("INSECURE_COOKIES"); v != "" {
		insecure, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("INSECURE_COOKIES: %w", err)
		}
		cfg.Server.InsecureCookies = insecure
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	return cfg, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
