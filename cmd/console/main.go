package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/opd-console/internal/api/router"
	"github.com/wolfman30/opd-console/internal/app/bootstrap"
	appconfig "github.com/wolfman30/opd-console/internal/config"
	"github.com/wolfman30/opd-console/internal/console"
	"github.com/wolfman30/opd-console/internal/observability/metrics"
	"github.com/wolfman30/opd-console/internal/opd"
	"github.com/wolfman30/opd-console/pkg/logging"
)

func main() {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	cfg := appconfig.Load()

	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger.Info("starting opd booking console",
		"env", cfg.Env,
		"port", cfg.Port,
		"backend", cfg.APIBaseURL,
	)

	redisClient := bootstrap.BuildRedisClient(context.Background(), cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}

	handler := buildHandler(cfg, redisClient, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.APITimeout*2 + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// setupMetrics returns a private registry with the console collectors plus
// the Go runtime ones, and the handler that exports it.
func setupMetrics() (http.Handler, *metrics.ConsoleMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	consoleMetrics := metrics.NewConsoleMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), consoleMetrics
}

func buildHandler(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) http.Handler {
	metricsHandler, consoleMetrics := setupMetrics()

	client := opd.NewClient(cfg.APIBaseURL,
		opd.WithTimeout(cfg.APITimeout),
		opd.WithLogger(logger),
		opd.WithObserver(consoleMetrics),
	)

	store := bootstrap.BuildSessionStore(redisClient, cfg, logger)
	c := console.New(client, store, logger,
		console.WithObserver(consoleMetrics),
		console.WithDelayMinutes(cfg.DelayMinutes),
		console.WithLogLimit(cfg.SessionLogLimit),
	)

	consoleHandler := console.NewHandler(c, logger, console.HandlerConfig{
		SessionTTL:    cfg.SessionTTL,
		SecureCookies: cfg.SecureCookies,
		Backend:       client,
	})

	return router.New(&router.Config{
		Logger:               logger,
		ConsoleHandler:       consoleHandler,
		MetricsHandler:       metricsHandler,
		CORSAllowedOrigins:   cfg.CORSAllowedOrigins,
		ActionRateLimitRPS:   cfg.ActionRateLimitRPS,
		ActionRateLimitBurst: cfg.ActionRateLimitBurst,
	})
}
