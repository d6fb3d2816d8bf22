// Package server assembles the HTTP surface: REST routes, the WebSocket
// endpoint, health and metrics.
package server

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pinrlabs/pinr-engine/internal/auth"
	"github.com/pinrlabs/pinr-engine/internal/auth/jwt"
	"github.com/pinrlabs/pinr-engine/internal/config"
	"github.com/pinrlabs/pinr-engine/internal/logging"
)

// Handlers collects the route handlers the server mounts. Nil entries are
// skipped so partial deployments (e.g. no map service) still boot.
type Handlers struct {
	FlagDash    http.Handler
	PinDrop     http.Handler
	Streaks     http.Handler
	Challenges  http.Handler
	Leaderboard http.HandlerFunc
	MapClusters http.Handler
	WS          http.HandlerFunc
}

// NewHTTPServer wires all routes behind auth and CORS middleware.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, pool *pgxpool.Pool, redis *redis.Client, tokens *jwt.Manager, h Handlers) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := pingDependencies(r.Context(), pool, redis); err != nil {
			reqLogger := logging.FromContext(r.Context())
			reqLogger.Warn().Err(err).Msg("health check dependency failure")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"degraded"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/metrics", promhttp.Handler())

	identify := auth.Middleware(tokens, logger)
	mount := func(pattern string, handler http.Handler) {
		if handler == nil {
			return
		}
		mux.Handle(pattern, identify(handler))
	}

	mount("/v1/games/flagdash", h.FlagDash)
	mount("/v1/games/flagdash/", h.FlagDash)
	mount("/v1/games/pindrop", h.PinDrop)
	mount("/v1/games/pindrop/", h.PinDrop)
	mount("/v1/streaks", h.Streaks)
	mount("/v1/streaks/", h.Streaks)
	mount("/v1/challenges", h.Challenges)
	mount("/v1/challenges/", h.Challenges)
	mount("/v1/map/clusters", h.MapClusters)
	if h.Leaderboard != nil {
		mux.Handle("/v1/leaderboards/", identify(h.Leaderboard))
	}

	if h.WS != nil {
		mux.HandleFunc("/ws/challenges", h.WS)
	}

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: corsMiddleware(cfg.CORS, requestLogger(logger, mux)),
	}
}

func pingDependencies(ctx context.Context, pool *pgxpool.Pool, redis *redis.Client) error {
	if err := pool.Ping(ctx); err != nil {
		return err
	}
	return redis.Ping(ctx).Err()
}
