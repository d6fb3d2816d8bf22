// Package notify delivers push notifications through an external provider.
// Delivery is best-effort: gameplay never blocks on a notification.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PushClient posts notification requests to the configured provider.
type PushClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
	logger  zerolog.Logger
}

// Options configure the push client.
type Options struct {
	BaseURL     string
	APIKey      string
	HTTPTimeout time.Duration
}

// NewPushClient builds a provider client. With an empty BaseURL every send
// becomes a logged no-op, which keeps local development working without a
// provider account.
func NewPushClient(opts Options, logger zerolog.Logger) *PushClient {
	timeout := opts.HTTPTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PushClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: opts.BaseURL,
		apiKey:  opts.APIKey,
		logger:  logger.With().Str("component", "push").Logger(),
	}
}

type pushRequest struct {
	UserID string            `json:"user_id"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

// SendChallengeInvite notifies a user about a new challenge.
func (p *PushClient) SendChallengeInvite(ctx context.Context, userID uuid.UUID, fromName, gameType, challengeID string) {
	p.send(ctx, pushRequest{
		UserID: userID.String(),
		Title:  "New challenge!",
		Body:   fmt.Sprintf("%s challenged you to a game", fromName),
		Data: map[string]string{
			"type":         "challenge_invite",
			"challenge_id": challengeID,
			"game_type":    gameType,
		},
	})
}

// SendChallengeComplete notifies a participant about a finished challenge.
func (p *PushClient) SendChallengeComplete(ctx context.Context, userID uuid.UUID, challengeID string, won bool, tie bool) {
	body := "Your challenge ended in a tie"
	switch {
	case tie:
	case won:
		body = "You won your challenge!"
	default:
		body = "Your opponent won the challenge"
	}
	p.send(ctx, pushRequest{
		UserID: userID.String(),
		Title:  "Challenge complete",
		Body:   body,
		Data: map[string]string{
			"type":         "challenge_complete",
			"challenge_id": challengeID,
		},
	})
}

func (p *PushClient) send(ctx context.Context, req pushRequest) {
	if p.baseURL == "" {
		p.logger.Debug().Str("user_id", req.UserID).Str("title", req.Title).Msg("push provider not configured, skipping")
		return
	}

	body, err := json.Marshal(req)
	if err != nil {
		p.logger.Warn().Err(err).Msg("marshal push request failed")
		return
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/push", bytes.NewReader(body))
	if err != nil {
		p.logger.Warn().Err(err).Msg("build push request failed")
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.logger.Warn().Err(err).Str("user_id", req.UserID).Msg("push delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		p.logger.Warn().
			Int("status", resp.StatusCode).
			Str("user_id", req.UserID).
			Msg("push provider rejected request")
	}
}
