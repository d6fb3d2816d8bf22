package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	ws "github.com/pinrlabs/pinr-engine/pkg/http/ws"
)

// Supported leaderboard game types.
const (
	GameTypeFlagDash     = "flag_dash"
	GameTypePinDrop      = "pin_drop"
	GameTypeTravelBattle = "travel_battle"
)

var defaultGameTypes = []string{GameTypeFlagDash, GameTypePinDrop, GameTypeTravelBattle}

// ValidGameType reports whether g is a ranked game type.
func ValidGameType(g string) bool {
	for _, t := range defaultGameTypes {
		if t == g {
			return true
		}
	}
	return false
}

// Entry represents a leaderboard record sent to clients.
type Entry struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Score       int       `json:"score"`
	Games       int       `json:"games"`
	Wins        int       `json:"wins"`
}

// ProfileResolver maps user IDs to display names for ranked entries.
type ProfileResolver interface {
	DisplayName(ctx context.Context, userID uuid.UUID) (string, error)
}

// ServiceOptions configures leaderboard service behavior.
type ServiceOptions struct {
	TopN             int
	PubSubChannel    string
	GameTypes        []string
	RedisKeyPrefix   string
	SnapshotTopLimit int
}

// Service keeps one ranking per game type in Redis sorted sets. A user's
// ranked score is their personal best, not a running total, so re-submitting
// a lower score never moves them down.
type Service struct {
	redis          *redis.Client
	profiles       ProfileResolver
	logger         zerolog.Logger
	topN           int
	pubsubChannel  string
	gameTypes      []string
	prefix         string
	snapshotTopLim int
}

// NewService constructs a leaderboard service instance.
func NewService(redis *redis.Client, profiles ProfileResolver, logger zerolog.Logger, opts ServiceOptions) *Service {
	topN := opts.TopN
	if topN <= 0 {
		topN = 50
	}
	channel := opts.PubSubChannel
	if channel == "" {
		channel = "lb:updates"
	}
	gameTypes := opts.GameTypes
	if len(gameTypes) == 0 {
		gameTypes = defaultGameTypes
	}
	prefix := opts.RedisKeyPrefix
	if prefix == "" {
		prefix = "lb"
	}
	snapTop := opts.SnapshotTopLimit
	if snapTop <= 0 {
		snapTop = 100
	}

	return &Service{
		redis:          redis,
		profiles:       profiles,
		logger:         logger.With().Str("component", "leaderboard").Logger(),
		topN:           topN,
		pubsubChannel:  channel,
		gameTypes:      gameTypes,
		prefix:         prefix,
		snapshotTopLim: snapTop,
	}
}

// SubmitScore records a finished game: the sorted set keeps the user's best
// via ZADD GT, and the meta hash counts games played. Satisfies the outbox
// delivery sink contract.
func (s *Service) SubmitScore(ctx context.Context, userID uuid.UUID, gameType string, score int) error {
	if !ValidGameType(gameType) {
		return fmt.Errorf("unknown game type %q", gameType)
	}

	zKey := s.boardKey(gameType)
	metaKey := s.metaKey(gameType, userID)

	pipe := s.redis.TxPipeline()
	pipe.ZAddGT(ctx, zKey, redis.Z{Score: float64(score), Member: userID.String()})
	pipe.HIncrBy(ctx, metaKey, "games", 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("submit score for %s: %w", gameType, err)
	}

	go s.publishUpdate(context.Background(), gameType)
	return nil
}

// RecordWin bumps the win counter, used for travel battle victories.
func (s *Service) RecordWin(ctx context.Context, userID uuid.UUID, gameType string) error {
	if !ValidGameType(gameType) {
		return fmt.Errorf("unknown game type %q", gameType)
	}
	metaKey := s.metaKey(gameType, userID)
	if err := s.redis.HIncrBy(ctx, metaKey, "wins", 1).Err(); err != nil {
		return fmt.Errorf("record win for %s: %w", gameType, err)
	}
	return nil
}

// Top retrieves the top N entries for a game type.
func (s *Service) Top(ctx context.Context, gameType string, limit int) ([]Entry, error) {
	if !ValidGameType(gameType) {
		return nil, fmt.Errorf("unknown game type %q", gameType)
	}
	if limit <= 0 || limit > s.topN {
		limit = s.topN
	}

	zKey := s.boardKey(gameType)
	results, err := s.redis.ZRevRangeWithScores(ctx, zKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}

	entries := make([]Entry, 0, len(results))
	for _, z := range results {
		entry, err := s.readEntry(ctx, gameType, z.Member.(string))
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to read leaderboard metadata")
			continue
		}
		entry.Score = int(z.Score)
		entries = append(entries, *entry)
	}
	return entries, nil
}

// Rank returns a user's 1-based position and best score, or zero values if
// unranked.
func (s *Service) Rank(ctx context.Context, gameType string, userID uuid.UUID) (int, int, error) {
	if !ValidGameType(gameType) {
		return 0, 0, fmt.Errorf("unknown game type %q", gameType)
	}

	zKey := s.boardKey(gameType)
	rank, err := s.redis.ZRevRank(ctx, zKey, userID.String()).Result()
	if err == redis.Nil {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("fetch rank: %w", err)
	}
	score, err := s.redis.ZScore(ctx, zKey, userID.String()).Result()
	if err != nil && err != redis.Nil {
		return 0, 0, fmt.Errorf("fetch score: %w", err)
	}
	return int(rank) + 1, int(score), nil
}

// SnapshotTop returns the configured snapshot size for persistence jobs.
func (s *Service) SnapshotTop(ctx context.Context, gameType string) ([]Entry, error) {
	return s.Top(ctx, gameType, s.snapshotTopLim)
}

// GameTypes returns the ranked game types in configured order.
func (s *Service) GameTypes() []string {
	return append([]string(nil), s.gameTypes...)
}

func (s *Service) publishUpdate(ctx context.Context, gameType string) {
	entries, err := s.Top(ctx, gameType, 10)
	if err != nil {
		s.logger.Warn().Err(err).Str("game_type", gameType).Msg("failed to collect leaderboard update")
		return
	}
	if len(entries) == 0 {
		return
	}

	payload := ws.LeaderboardUpdatePayload{
		GameType: gameType,
		Top:      toWSEntries(entries),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal leaderboard update")
		return
	}
	if err := s.redis.Publish(ctx, s.pubsubChannel, data).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish leaderboard update")
	}
}

func (s *Service) readEntry(ctx context.Context, gameType string, userIDStr string) (*Entry, error) {
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("bad member %q: %w", userIDStr, err)
	}

	entry := &Entry{UserID: userID}
	data, err := s.redis.HGetAll(ctx, s.metaKey(gameType, userID)).Result()
	if err != nil {
		return nil, err
	}
	entry.Games = parseInt(data["games"])
	entry.Wins = parseInt(data["wins"])

	if s.profiles != nil {
		name, err := s.profiles.DisplayName(ctx, userID)
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", userIDStr).Msg("resolve display name failed")
		} else {
			entry.DisplayName = name
		}
	}
	return entry, nil
}

func (s *Service) boardKey(gameType string) string {
	return fmt.Sprintf("%s:%s", s.prefix, gameType)
}

func (s *Service) metaKey(gameType string, userID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:meta:%s", s.prefix, gameType, userID.String())
}

func toWSEntries(entries []Entry) []ws.LeaderboardEntry {
	result := make([]ws.LeaderboardEntry, len(entries))
	for i, e := range entries {
		result[i] = ws.LeaderboardEntry{
			Rank:        i + 1,
			UserID:      e.UserID.String(),
			DisplayName: e.DisplayName,
			Score:       e.Score,
			Games:       e.Games,
			Wins:        e.Wins,
		}
	}
	return result
}

func parseInt(val string) int {
	if val == "" {
		return 0
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return i
}
