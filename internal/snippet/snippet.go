// Package snippet renders the browser tracking script served to the
// storefront. It is generated from the same referral.Config the Go tracker
// uses, so both sides agree on parameter, cookie and cart settings.
package snippet

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goyoulink/affiliate-tracker/internal/pkg/logger"
	"github.com/goyoulink/affiliate-tracker/internal/referral"
	"github.com/osteele/liquid"
)

//go:embed tracking.js.liquid
var trackingSource string

// Renderer renders and caches the tracking script.
type Renderer struct {
	engine *liquid.Engine
	once   sync.Once
	tpl    *liquid.Template
	err    error
	cache  sync.Map // map[vars]string
}

// NewRenderer builds a Renderer with the js filter registered.
func NewRenderer() *Renderer {
	engine := liquid.NewEngine()

	// Quoted JavaScript string literal: {{ cookie_name | js }}
	engine.RegisterFilter("js", func(s string) string {
		b, err := json.Marshal(s)
		if err != nil {
			return `""`
		}
		return string(b)
	})

	return &Renderer{engine: engine}
}

// vars is the template input. It is comparable and doubles as cache key.
type vars struct {
	ParamName      string
	CookieName     string
	CookieMaxAge   int64
	CartUpdatePath string
	AddToCartPath  string
	AttributeName  string
	SyncDelayMS    int64
	MaxRetries     int
}

func varsFor(cfg referral.Config) vars {
	return vars{
		ParamName:      cfg.ParamName,
		CookieName:     cfg.CookieName,
		CookieMaxAge:   int64(cfg.CookieTTL / time.Second),
		CartUpdatePath: cfg.CartUpdatePath,
		AddToCartPath:  cfg.AddToCartPath,
		AttributeName:  cfg.AttributeName,
		SyncDelayMS:    cfg.SyncDelay.Milliseconds(),
		MaxRetries:     cfg.MaxRetries,
	}
}

func (v vars) bindings() map[string]interface{} {
	return map[string]interface{}{
		"param_name":       v.ParamName,
		"cookie_name":      v.CookieName,
		"cookie_days":      v.CookieMaxAge / int64(24*time.Hour/time.Second),
		"cookie_max_age":   v.CookieMaxAge,
		"cart_update_path": v.CartUpdatePath,
		"add_to_cart_path": v.AddToCartPath,
		"attribute_name":   v.AttributeName,
		"sync_delay_ms":    v.SyncDelayMS,
		"max_retries":      v.MaxRetries,
	}
}

// Render returns the tracking script for cfg.
func (r *Renderer) Render(cfg referral.Config) (string, error) {
	v := varsFor(cfg)
	if cached, ok := r.cache.Load(v); ok {
		return cached.(string), nil
	}

	r.once.Do(func() {
		r.tpl, r.err = r.engine.ParseString(trackingSource)
	})
	if r.err != nil {
		return "", fmt.Errorf("parse tracking template: %w", r.err)
	}

	out, err := r.tpl.RenderString(v.bindings())
	if err != nil {
		return "", fmt.Errorf("render tracking template: %w", err)
	}
	r.cache.Store(v, out)
	return out, nil
}

// Handler serves the tracking script for cfg.
func (r *Renderer) Handler(cfg referral.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		js, err := r.Render(cfg)
		if err != nil {
			logger.Error("tracking script render failed", "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=300")
		_, _ = w.Write([]byte(js))
	}
}
