package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/roomcast/roomcast/internal/config"
	"github.com/roomcast/roomcast/internal/handlers"
	httpx "github.com/roomcast/roomcast/internal/http"
	"github.com/roomcast/roomcast/internal/metrics"
	"github.com/roomcast/roomcast/internal/registry"
	"github.com/roomcast/roomcast/internal/relay"
	"github.com/roomcast/roomcast/internal/repo"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	_ = godotenv.Load()

	cfg := config.LoadServer()

	var mirror repo.PresenceRepo = repo.Noop{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			PoolSize:     10,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect to redis")
		}
		log.Info().Str("addr", cfg.RedisAddr).Msg("presence mirror enabled")
		mirror = repo.NewRedisPresenceRepo(rdb, cfg.PresenceTTL)
	}

	promReg := prometheus.NewRegistry()
	met := metrics.New(promReg)

	reg := registry.New()
	hub := relay.New(reg, mirror, met)

	router := httpx.NewRouter(
		handlers.NewWebSocketHandler(hub),
		handlers.NewRoomHandler(hub, mirror),
		promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}),
		cfg.AllowedOrigins,
	)

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.APIAddr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-sigChan
	log.Info().Msg("shutdown signal received, shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	log.Info().Msg("server stopped")
}
