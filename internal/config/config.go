package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"pinr-engine"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Postgres    Postgres
	Redis       Redis
	Security    Security
	Game        Game
	Challenge   Challenge
	Leaderboard Leaderboard
	Push        Push
	Outbox      Outbox
	CORS        CORS
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST,notEmpty"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER,notEmpty"`
	Password string `env:"PG_PASSWORD,notEmpty"`
	Database string `env:"PG_DATABASE,notEmpty"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
}

// Redis holds cache + queue configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR,notEmpty"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Security stores secrets for request identification.
type Security struct {
	JWTSecret string `env:"JWT_SECRET,notEmpty"`
}

// Game groups session defaults for the mini-games.
type Game struct {
	FlagDashSeconds     time.Duration `env:"FLAGDASH_ROUND_SECONDS" envDefault:"30s"`
	PinDropEasySeconds  time.Duration `env:"PINDROP_EASY_SECONDS" envDefault:"30s"`
	PinDropMedSeconds   time.Duration `env:"PINDROP_MEDIUM_SECONDS" envDefault:"20s"`
	PinDropHardSeconds  time.Duration `env:"PINDROP_HARD_SECONDS" envDefault:"15s"`
	PinDropTotalRounds  int           `env:"PINDROP_TOTAL_ROUNDS" envDefault:"5"`
	AnswerFeedbackDelay time.Duration `env:"ANSWER_FEEDBACK_DELAY" envDefault:"200ms"`
}

// Challenge governs the two-player challenge lifecycle.
type Challenge struct {
	Expiry        time.Duration `env:"CHALLENGE_EXPIRY" envDefault:"24h"`
	TimeLimit     time.Duration `env:"CHALLENGE_TIME_LIMIT" envDefault:"40s"`
	PubSubChannel string        `env:"CHALLENGE_PUBSUB_CHANNEL" envDefault:"challenge:updates"`
	PollInterval  time.Duration `env:"CHALLENGE_POLL_INTERVAL" envDefault:"10s"`
}

// Leaderboard governs snapshotting behavior.
type Leaderboard struct {
	SnapshotInterval time.Duration `env:"LEADERBOARD_SNAPSHOT_INTERVAL" envDefault:"5m"`
	SnapshotTopN     int           `env:"LEADERBOARD_SNAPSHOT_TOP" envDefault:"50"`
}

// Push holds push-notification provider configuration.
type Push struct {
	ProviderURL string        `env:"PUSH_PROVIDER_URL"`
	APIKey      string        `env:"PUSH_API_KEY"`
	HTTPTimeout time.Duration `env:"PUSH_HTTP_TIMEOUT" envDefault:"5s"`
}

// Outbox tunes the score-submission retry queue.
type Outbox struct {
	MaxAttempts  int           `env:"OUTBOX_MAX_ATTEMPTS" envDefault:"5"`
	BaseBackoff  time.Duration `env:"OUTBOX_BASE_BACKOFF" envDefault:"500ms"`
	PollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
}

// CORS holds Cross-Origin Resource Sharing configuration.
type CORS struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS" envSeparator:"," envDefault:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS" envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE" envDefault:"3600"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// PinDropRoundSeconds returns the round timer for a difficulty.
func (g Game) PinDropRoundSeconds(difficulty string) time.Duration {
	switch difficulty {
	case "medium":
		return g.PinDropMedSeconds
	case "hard":
		return g.PinDropHardSeconds
	default:
		return g.PinDropEasySeconds
	}
}
