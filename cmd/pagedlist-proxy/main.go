// Command pagedlist-proxy serves lazily loaded list views over a paginated
// upstream API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/pagedlist/pkg/client"
	"github.com/Sternrassler/pagedlist/pkg/logging"
	"github.com/Sternrassler/pagedlist/pkg/pagination"
	"github.com/Sternrassler/pagedlist/pkg/source"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := LoadConfig(".env", ".env.local")
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})
	logger := logging.NewLogger(logging.ComponentProxy)

	redisClient, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid Redis URL")
	}
	defer redisClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("redis", cfg.RedisURL).Msg("Failed to connect to Redis")
	}
	logger.Info().Str("redis", cfg.RedisURL).Msg("Connected to Redis")

	clientCfg := client.DefaultConfig(redisClient, cfg.UpstreamURL, cfg.UserAgent)
	clientCfg.ErrorThreshold = cfg.ErrorThreshold
	clientCfg.Timeout = cfg.RequestTimeout
	apiClient, err := client.New(clientCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create API client")
	}
	defer apiClient.Close()

	sessions := newSessionStore(cfg.SessionTTL, cfg.MaxSessions, logger)
	go sessions.run(ctx, max(cfg.SessionTTL/4, time.Second))

	srv := &server{
		sessions: sessions,
		newPager: func(ctx context.Context, endpoint string) (pagination.Pager[json.RawMessage], error) {
			return source.NewRaw(ctx, apiClient, endpoint)
		},
		prefetcher: pagination.NewPrefetcher(pagination.PrefetchConfig{
			MaxConcurrency: cfg.PrefetchConcurrency,
			Timeout:        cfg.PrefetchTimeout,
		}),
		ready:  apiClient.Ping,
		logger: logger,
	}

	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		logger.Info().Msg("Shutting down")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}()

	logger.Info().
		Str("addr", httpServer.Addr).
		Str("upstream", cfg.UpstreamURL).
		Str("user_agent", cfg.UserAgent).
		Msg("Starting pagedlist proxy")

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

// newRedisClient accepts a redis:// URL or a bare host:port.
func newRedisClient(raw string) (*redis.Client, error) {
	if strings.HasPrefix(raw, "redis://") || strings.HasPrefix(raw, "rediss://") {
		opts, err := redis.ParseURL(raw)
		if err != nil {
			return nil, err
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: raw}), nil
}
