package cluster

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	httperrors "github.com/pinrlabs/pinr-engine/pkg/http/errors"
)

// HTTPHandler computes clusters for a client-supplied pin set. The client
// owns its pins; this endpoint only does the aggregation math so every
// platform renders identical clusters.
type HTTPHandler struct {
	logger zerolog.Logger
}

func NewHTTPHandler(logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{logger: logger.With().Str("component", "cluster_http").Logger()}
}

type clusterRequest struct {
	Points []Point `json:"points"`
	Bounds Bounds  `json:"bounds"`
	Zoom   int     `json:"zoom"`
	Radius float64 `json:"radius,omitempty"`
}

// maxPinsPerRequest bounds the work a single request can ask for.
const maxPinsPerRequest = 10000

// ServeHTTP handles POST /v1/map/clusters.
func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req clusterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid request body")
		return
	}
	if len(req.Points) > maxPinsPerRequest {
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "too many points", "points")
		return
	}

	idx := NewIndex(req.Points, Options{Radius: req.Radius})
	clusters := idx.Clusters(req.Bounds, req.Zoom)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"zoom":     req.Zoom,
		"clusters": clusters,
	})
}
