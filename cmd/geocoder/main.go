package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/mapbox-geocoder/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/mapbox-geocoder/internal/adapter/kafka"
	"github.com/couchcryptid/mapbox-geocoder/internal/adapter/mapbox"
	"github.com/couchcryptid/mapbox-geocoder/internal/adapter/rediscache"
	"github.com/couchcryptid/mapbox-geocoder/internal/config"
	"github.com/couchcryptid/mapbox-geocoder/internal/domain"
	"github.com/couchcryptid/mapbox-geocoder/internal/observability"
	"github.com/couchcryptid/mapbox-geocoder/internal/pipeline"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	base := mapbox.NewGeocoder(cfg.MapboxToken, cfg.MapboxTimeout, logger, metrics,
		mapbox.WithBaseURL(cfg.MapboxBaseURL),
		mapbox.WithClock(clock),
	)
	var geocoder domain.Geocoder = mapbox.NewClient(base, cfg.MapboxRateLimit)

	var checks readiness
	var redisCache *rediscache.Cache
	if cfg.RedisEnabled {
		redisCache = rediscache.New(geocoder,
			rediscache.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB),
			cfg.RedisTTL, metrics, logger)
		geocoder = redisCache
		checks = append(checks, redisCache)
		logger.Info("redis cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.RedisTTL)
	}
	geocoder = mapbox.NewCachedGeocoder(geocoder, cfg.MapboxCacheSize, cfg.MapboxCacheTTL, clock, metrics)
	logger.Info("mapbox geocoder configured",
		"cache_size", cfg.MapboxCacheSize,
		"cache_ttl", cfg.MapboxCacheTTL,
		"timeout", cfg.MapboxTimeout,
		"rate_limit", cfg.MapboxRateLimit,
	)

	var (
		p      *pipeline.Pipeline
		reader *kafkaadapter.Reader
		writer *kafkaadapter.Writer
	)
	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		transformer := pipeline.NewTransformer(geocoder, clock, logger)
		p = pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize, clock)
		checks = append(checks, p)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, geocoder, checks, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start lookup pipeline.
	if p != nil {
		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	base.Cancel()
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if redisCache != nil {
		if err := redisCache.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// readiness is ready when every enabled dependency is.
type readiness []httpadapter.ReadinessChecker

func (r readiness) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}
