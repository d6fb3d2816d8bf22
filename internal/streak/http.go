package streak

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pinrlabs/pinr-engine/internal/auth"
	httperrors "github.com/pinrlabs/pinr-engine/pkg/http/errors"
)

// HTTPHandler exposes the daily streak surface under /v1/streaks.
type HTTPHandler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHTTPHandler(svc *Service, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:    svc,
		logger: logger.With().Str("component", "streak_http").Logger(),
	}
}

// ServeHTTP routes /v1/streaks requests: GET reads the caller's streak,
// POST /record marks today as played.
func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	action := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/streaks"), "/")
	switch {
	case action == "" && r.Method == http.MethodGet:
		s, err := h.svc.Get(r.Context(), userID)
		if err != nil {
			h.logger.Error().Err(err).Msg("read streak failed")
			httperrors.RespondInternalError(w, "failed to read streak")
			return
		}
		h.respond(w, http.StatusOK, s)
	case action == "record" && r.Method == http.MethodPost:
		s, err := h.svc.RecordPlay(r.Context(), userID)
		if err != nil {
			h.logger.Error().Err(err).Msg("record play failed")
			httperrors.RespondInternalError(w, "failed to record play")
			return
		}
		h.respond(w, http.StatusOK, s)
	default:
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "unknown streak route")
	}
}

func (h *HTTPHandler) respond(w http.ResponseWriter, status int, s Streak) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(s)
}
