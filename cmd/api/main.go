package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gatehouse.org/internal/audit"
	"gatehouse.org/internal/auth"
	"gatehouse.org/internal/cache"
	"gatehouse.org/internal/config"
	"gatehouse.org/internal/httpapi"
	"gatehouse.org/internal/obs"
	"gatehouse.org/internal/store/pg"
	"gatehouse.org/internal/visits"
)

var version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		// A missing signing secret must kill the process here, never
		// surface at request time.
		obs.InitLogging("info").Fatal().Err(err).Msg("configuration error")
	}

	logger := obs.InitLogging(cfg.LogLevel)
	obs.Init()

	store, err := pg.Open(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer store.Close()

	hasher, err := auth.NewHasher(auth.HashParams{
		Iterations: cfg.HashIterations,
		SaltLength: auth.DefaultHashParams.SaltLength,
		KeyLength:  cfg.HashKeyLength,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("password hasher")
	}

	codec, err := auth.NewTokenCodec(auth.TokenConfig{
		Secret:   []byte(cfg.TokenSecret),
		Issuer:   cfg.TokenIssuer,
		Audience: cfg.TokenAudience,
		TTL:      cfg.TokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("token codec")
	}

	recorder := audit.NewRecorder(store)

	authSvc, err := auth.NewService(store, hasher, codec, recorder)
	if err != nil {
		logger.Fatal().Err(err).Msg("auth service")
	}

	cacheStore, err := cache.NewBigCacheStore(cfg.CacheTTL)
	if err != nil {
		logger.Warn().Err(err).Msg("cache unavailable, stats uncached")
		cacheStore = nil
	}
	var backend cache.Store
	if cacheStore != nil {
		backend = cacheStore
		defer cacheStore.Close()
	}
	statsSvc, err := visits.NewStatsService(store, backend, cfg.CacheTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("stats service")
	}

	api := httpapi.New(authSvc, codec, recorder, statsSvc, httpapi.ReadyProbe{DB: store.DB()}, version)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info().Str("addr", srv.Addr).Str("version", version).Msg("starting gatehouse-api")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	logger.Info().Msg("stopped")
}
