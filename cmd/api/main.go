package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "offer_console/internal/adapters/http_server"
	"offer_console/internal/adapters/memcache"
	"offer_console/internal/adapters/observability"
	"offer_console/internal/adapters/offerapi"
	redisad "offer_console/internal/adapters/redis"
	"offer_console/internal/app"
	"offer_console/internal/domain"
	"offer_console/internal/shared"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// deps
	client, err := offerapi.New(cfg.OfferAPIBase, cfg.OfferAPIToken, cfg.OfferAPIRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize offer service client")
	}
	cache := newCache(ctx, cfg)
	console := app.NewConsole(client, cache, cfg.CacheTTL, app.NewConverter(cfg.ImageBaseURL),
		cfg.DefaultLang, cfg.IncludeUnavailable)

	warmCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	if err := console.Warm(warmCtx); err != nil {
		// the collection loads on first request instead
		log.Warn().Err(err).Msg("initial offer load failed")
	}
	cancel()

	// http
	srv := server.New(cfg.HTTPTimeout)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{C: console})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().
		Str("addr", cfg.HTTPAddr).
		Str("offer_api", cfg.OfferAPIBase).
		Str("lang", string(cfg.DefaultLang)).
		Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}

// newCache prefers Redis and falls back to an in-process LRU.
func newCache(ctx context.Context, cfg shared.Config) domain.Cache {
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		err := rc.Ping(pingCtx)
		if err == nil {
			log.Info().Str("addr", cfg.RedisAddr).Msg("redis cache ok")
			return rc
		}
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, using in-memory cache")
		_ = rc.Close()
	}
	return memcache.New(cfg.CacheSize, cfg.CacheTTL)
}
