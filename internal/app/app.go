// Package app bootstraps the engine: configuration, storage, services,
// background workers and the HTTP server.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pinrlabs/pinr-engine/internal/auth/jwt"
	"github.com/pinrlabs/pinr-engine/internal/challenge"
	"github.com/pinrlabs/pinr-engine/internal/cluster"
	"github.com/pinrlabs/pinr-engine/internal/config"
	"github.com/pinrlabs/pinr-engine/internal/db/repository"
	"github.com/pinrlabs/pinr-engine/internal/game"
	"github.com/pinrlabs/pinr-engine/internal/highscore"
	"github.com/pinrlabs/pinr-engine/internal/leaderboard"
	"github.com/pinrlabs/pinr-engine/internal/logging"
	"github.com/pinrlabs/pinr-engine/internal/notify"
	"github.com/pinrlabs/pinr-engine/internal/outbox"
	"github.com/pinrlabs/pinr-engine/internal/pindrop"
	"github.com/pinrlabs/pinr-engine/internal/scoring"
	"github.com/pinrlabs/pinr-engine/internal/server"
	"github.com/pinrlabs/pinr-engine/internal/streak"
	ws "github.com/pinrlabs/pinr-engine/pkg/http/ws"
)

// challengeExpiryInterval is how often lapsed challenges are swept. The
// per-request expiry checks keep the API honest between sweeps.
const challengeExpiryInterval = 10 * time.Minute

// Application aggregates shared infrastructure (DB, cache, HTTP server)
// and the background workers that keep projections fresh.
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server

	outboxWorker   *outbox.Worker
	lbBroadcaster  *leaderboard.Broadcaster
	snapshotWorker *leaderboard.SnapshotWorker
	chBroadcaster  *challenge.Broadcaster
	expiryWorker   *challenge.ExpiryWorker

	bgCancels []context.CancelFunc
}

// New bootstraps config, logger, Postgres, Redis and every service behind
// the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	connString := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=10",
		cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Database, cfg.Postgres.SSLMode)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	tokens := jwt.NewManager(jwt.ManagerConfig{
		Secret: []byte(cfg.Security.JWTSecret),
		Issuer: cfg.Name,
	})

	// Repositories
	challengeRepo := repository.NewChallengeRepository(pool)
	streakRepo := repository.NewStreakRepository(pool)
	profileRepo := repository.NewProfileRepository(pool)
	snapshotRepo := repository.NewSnapshotRepository(pool)

	// The outbox decouples score submission from session lifetime: settled
	// sessions enqueue, the worker delivers with bounded retry.
	scoreQueue := outbox.NewQueue(redisClient, outbox.DefaultQueueKey, logger)

	// Queued submissions are re-scored from their attempt logs before they
	// reach the leaderboard.
	engine := scoring.NewEngine(scoring.EngineOptions{
		AttemptDuration: cfg.Challenge.TimeLimit,
		PinDropRounds:   cfg.Game.PinDropTotalRounds,
		RoundDuration:   cfg.Game.PinDropRoundSeconds,
	}, logger)

	leaderboardSvc := leaderboard.NewService(redisClient, profileRepo, logger, leaderboard.ServiceOptions{})
	outboxWorker := outbox.NewWorker(scoreQueue, leaderboardSvc, engine, outbox.WorkerOptions{
		MaxAttempts:  cfg.Outbox.MaxAttempts,
		BaseBackoff:  cfg.Outbox.BaseBackoff,
		PollInterval: cfg.Outbox.PollInterval,
	}, logger)

	// Game services
	streakSvc := streak.NewService(streakRepo, streak.ServiceOptions{}, logger)
	playRecorder := streak.NewPlayRecorder(streakSvc)

	highScores := highscore.NewStore(redisClient, logger)
	flagDashMgr := game.NewManager(highScores, scoreQueue, playRecorder, game.ManagerOptions{
		RoundDuration: cfg.Game.FlagDashSeconds,
		FeedbackDelay: cfg.Game.AnswerFeedbackDelay,
	}, logger)
	pinDropMgr := pindrop.NewManager(scoreQueue, playRecorder, pindrop.ManagerOptions{
		TotalRounds:   cfg.Game.PinDropTotalRounds,
		RoundDuration: cfg.Game.PinDropRoundSeconds,
	}, logger)

	// Challenges
	challengeSvc := challenge.NewService(challengeRepo, engine, scoreQueue, leaderboardSvc, redisClient, challenge.ServiceOptions{
		Expiry:        cfg.Challenge.Expiry,
		TimeLimit:     cfg.Challenge.TimeLimit,
		PollInterval:  cfg.Challenge.PollInterval,
		PubSubChannel: cfg.Challenge.PubSubChannel,
	}, logger)

	pushClient := notify.NewPushClient(notify.Options{
		BaseURL:     cfg.Push.ProviderURL,
		APIKey:      cfg.Push.APIKey,
		HTTPTimeout: cfg.Push.HTTPTimeout,
	}, logger)

	wsHub := ws.NewHub(logger)
	chBroadcaster := challenge.NewBroadcaster(redisClient, wsHub, pushClient, profileRepo, cfg.Challenge.PubSubChannel, logger)
	lbBroadcaster := leaderboard.NewBroadcaster(redisClient, wsHub, "", logger)
	expiryWorker := challenge.NewExpiryWorker(challengeRepo, challengeExpiryInterval, logger)

	var snapshotWorker *leaderboard.SnapshotWorker
	if interval := cfg.Leaderboard.SnapshotInterval; interval > 0 {
		snapshotWorker = leaderboard.NewSnapshotWorker(leaderboardSvc, snapshotRepo, interval, cfg.Leaderboard.SnapshotTopN, logger)
	}

	wsHandler := server.NewWSHandler(wsHub, tokens, logger)
	apiServer := server.NewHTTPServer(cfg, logging.Component(logger, "http"), pool, redisClient, tokens, server.Handlers{
		FlagDash:    game.NewHTTPHandler(flagDashMgr, logger),
		PinDrop:     pindrop.NewHTTPHandler(pinDropMgr, logger),
		Streaks:     streak.NewHTTPHandler(streakSvc, logger),
		Challenges:  challenge.NewHTTPHandler(challengeSvc, logger),
		Leaderboard: leaderboard.NewHTTPHandler(leaderboardSvc, snapshotRepo, logger).HandleGet,
		MapClusters: cluster.NewHTTPHandler(logger),
		WS:          wsHandler.HandleWebSocket,
	})

	return &Application{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		http:           apiServer,
		outboxWorker:   outboxWorker,
		lbBroadcaster:  lbBroadcaster,
		snapshotWorker: snapshotWorker,
		chBroadcaster:  chBroadcaster,
		expiryWorker:   expiryWorker,
		bgCancels:      make([]context.CancelFunc, 0, 5),
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.startBackgroundWorkers(ctx)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	for _, cancel := range a.bgCancels {
		cancel()
	}

	a.pool.Close()
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}

func (a *Application) startBackgroundWorkers(ctx context.Context) {
	a.spawn(ctx, "outbox worker", func(bgCtx context.Context) error {
		a.outboxWorker.Run(bgCtx)
		return nil
	})
	a.spawn(ctx, "challenge broadcaster", a.chBroadcaster.Run)
	a.spawn(ctx, "challenge expiry worker", a.expiryWorker.Run)
	a.spawn(ctx, "leaderboard broadcaster", a.lbBroadcaster.Run)
	if a.snapshotWorker != nil {
		a.spawn(ctx, "leaderboard snapshot worker", a.snapshotWorker.Run)
	}
}

func (a *Application) spawn(ctx context.Context, name string, run func(context.Context) error) {
	bgCtx, cancel := context.WithCancel(ctx)
	a.bgCancels = append(a.bgCancels, cancel)
	go func() {
		if err := run(bgCtx); err != nil && err != context.Canceled {
			a.logger.Warn().Err(err).Str("worker", name).Msg("background worker stopped")
		}
	}()
}
