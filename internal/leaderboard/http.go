package leaderboard

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	httperrors "github.com/pinrlabs/pinr-engine/pkg/http/errors"
	ws "github.com/pinrlabs/pinr-engine/pkg/http/ws"
)

// SnapshotReader serves the latest persisted snapshot when Redis is empty.
type SnapshotReader interface {
	LatestSnapshot(ctx context.Context, gameType string) ([]byte, error)
}

// HTTPHandler exposes REST endpoints for leaderboard queries.
type HTTPHandler struct {
	svc       *Service
	snapshots SnapshotReader
	logger    zerolog.Logger
}

// NewHTTPHandler constructs a leaderboard HTTP handler.
func NewHTTPHandler(svc *Service, snapshots SnapshotReader, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:       svc,
		snapshots: snapshots,
		logger:    logger.With().Str("component", "leaderboard_http").Logger(),
	}
}

// HandleGet responds with the current leaderboard for a game type.
// Route: GET /v1/leaderboards/{game_type}?limit=10
func (h *HTTPHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	gameType := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/leaderboards/"), "/")
	if gameType == "" || !ValidGameType(gameType) {
		httperrors.RespondNotFound(w, httperrors.ErrCodeUnknownGameType, "unknown leaderboard game type")
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	ctx := r.Context()
	var (
		top    []ws.LeaderboardEntry
		source = "redis"
	)

	if h.svc != nil {
		if entries, err := h.svc.Top(ctx, gameType, limit); err == nil {
			top = toWSEntries(entries)
		} else {
			h.logger.Warn().Err(err).Str("game_type", gameType).Msg("redis leaderboard fetch failed")
		}
	}

	if len(top) == 0 {
		source = "snapshot"
		top = h.snapshotFallback(ctx, gameType, limit)
	}

	resp := map[string]interface{}{
		"game_type":    gameType,
		"top":          top,
		"source":       source,
		"retrieved_at": time.Now().UTC().Format(time.RFC3339),
	}

	writeJSON(w, resp)
}

func (h *HTTPHandler) snapshotFallback(ctx context.Context, gameType string, limit int) []ws.LeaderboardEntry {
	if h.snapshots == nil {
		return nil
	}
	raw, err := h.snapshots.LatestSnapshot(ctx, gameType)
	if err != nil {
		h.logger.Warn().Err(err).Str("game_type", gameType).Msg("snapshot fetch failed")
		return nil
	}
	if len(raw) == 0 {
		return nil
	}

	var entries []ws.LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		h.logger.Warn().Err(err).Msg("snapshot payload decode failed")
		return nil
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
