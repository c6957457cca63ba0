package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/opd-console/internal/console"
	httpmiddleware "github.com/wolfman30/opd-console/internal/http/middleware"
	"github.com/wolfman30/opd-console/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	ConsoleHandler     *console.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// ActionRateLimitRPS > 0 throttles form actions per client IP.
	ActionRateLimitRPS   float64
	ActionRateLimitBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", cfg.ConsoleHandler.Health)
	r.Get("/ready", cfg.ConsoleHandler.Ready)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	var actionLimits []func(http.Handler) http.Handler
	if cfg.ActionRateLimitRPS > 0 {
		burst := cfg.ActionRateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		actionLimits = append(actionLimits, httpmiddleware.RateLimit(cfg.ActionRateLimitRPS, burst))
	}
	r.Mount("/", cfg.ConsoleHandler.Routes(actionLimits...))

	return r
}
