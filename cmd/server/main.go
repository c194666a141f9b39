package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/time/rate"

	"github.com/fractal-lba/nlueval/internal/baseline"
	"github.com/fractal-lba/nlueval/internal/eval"
	"github.com/fractal-lba/nlueval/internal/metrics"
	"github.com/fractal-lba/nlueval/pkg/otel"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel()}))
	slog.SetDefault(logger)

	// Tracing is opt-in
	var tp *sdktrace.TracerProvider
	if endpoint := getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""); endpoint != "" {
		cfg := otel.DefaultConfig("nlu-eval-server")
		cfg.CollectorEndpoint = endpoint
		var err error
		tp, err = otel.InitTracer(context.Background(), cfg)
		if err != nil {
			log.Fatalf("Failed to init tracing: %v", err)
		}
	}

	// Setup baseline store
	store, err := baseline.Open(baseline.StoreConfig{
		Backend:       getEnv("BASELINE_BACKEND", "file"),
		SnapshotPath:  getEnv("BASELINE_SNAPSHOT", "data/baselines.json"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		PostgresURL:   getEnv("POSTGRES_CONN", ""),
	})
	if err != nil {
		log.Fatalf("Failed to create baseline store: %v", err)
	}

	// Comparison defaults
	defaults := eval.DefaultConfig()
	if path := getEnv("NLUEVAL_CONFIG", ""); path != "" {
		defaults, err = eval.LoadConfig(path)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	// Setup metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Rate limiter
	tokenRate := getEnvInt("TOKEN_RATE", 20)
	limiter := rate.NewLimiter(rate.Limit(tokenRate), tokenRate*2)

	srv := &Server{
		store:       store,
		metrics:     m,
		gatherer:    reg,
		limiter:     limiter,
		logger:      logger,
		defaults:    defaults,
		baselineTTL: time.Duration(getEnvInt("BASELINE_TTL_HOURS", 0)) * time.Hour,
	}

	// Metrics auth
	srv.metricsAuth.enabled = getEnv("METRICS_USER", "") != ""
	srv.metricsAuth.user = getEnv("METRICS_USER", "")
	srv.metricsAuth.password = getEnv("METRICS_PASS", "")

	// HTTP server
	port := getEnv("PORT", "8080")
	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdown
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Close resources
	if err := store.Close(); err != nil {
		logger.Error("error closing baseline store", "error", err)
	}
	if err := otel.Shutdown(ctx, tp); err != nil {
		logger.Error("error shutting down tracer", "error", err)
	}

	logger.Info("server stopped")
}

func logLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
