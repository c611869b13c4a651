package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/temporalmomentaneo2024-hub/BAR/internal/advisory"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/cache"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/config"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/httpapi"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/jobs"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/metrics"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/service"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/store"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/store/memory"
	pgstore "github.com/temporalmomentaneo2024-hub/BAR/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid security configuration")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Info().Msg("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Info().Msg("repository: in-memory")
	}

	insightCache := cache.InsightCache(cache.NoopInsightCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisInsightCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using noop cache")
		} else {
			insightCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Info().Msg("cache: redis")
		}
	} else {
		log.Info().Msg("cache: noop")
	}

	metrics.Register()

	advisor := advisory.NewService(
		repo,
		insightCache,
		time.Duration(cfg.InsightTTLSeconds)*time.Second,
		advisory.NewHTTPProviderFactory(advisory.ProviderConfig{
			BaseURL: cfg.AdvisorBaseURL,
			Model:   cfg.AdvisorModel,
			Timeout: time.Duration(cfg.AdvisorTimeoutSeconds) * time.Second,
		}),
	)
	svc := service.New(repo, service.WithLowStockThreshold(cfg.LowStockThreshold))
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, advisor, auth, cfg.AllowedOrigin)

	scheduler, err := jobs.Start(advisor, time.Duration(cfg.InsightRefreshMinutes)*time.Minute, 30*time.Second)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Address()).Str("env", cfg.AppEnv).Msg("BarFlow backend listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	scheduler.Stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error().Err(err).Msg("close error")
		}
	}

	log.Info().Msg("server stopped")
}

// setupLogger uses a console writer in development and JSON lines elsewhere.
func setupLogger(cfg config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.IsProduction() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.IsProduction() && cfg.AllowedOrigin == "*" {
		return fmt.Errorf("ALLOWED_ORIGIN must not be a wildcard in production")
	}
	return nil
}
