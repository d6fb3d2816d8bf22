package challenge

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	ws "github.com/pinrlabs/pinr-engine/pkg/http/ws"
)

// Pusher delivers notifications to users without a live WebSocket.
type Pusher interface {
	SendChallengeInvite(ctx context.Context, userID uuid.UUID, fromName, gameType, challengeID string)
	SendChallengeComplete(ctx context.Context, userID uuid.UUID, challengeID string, won bool, tie bool)
}

// NameResolver maps user IDs to display names for invite notifications.
type NameResolver interface {
	DisplayName(ctx context.Context, userID uuid.UUID) (string, error)
}

// Broadcaster consumes challenge events off Pub/Sub and delivers them:
// WebSocket push to connected participants, provider push for the rest.
// Disconnected clients that miss both still converge via the polling
// endpoint.
type Broadcaster struct {
	redis   *redis.Client
	hub     *ws.Hub
	pusher  Pusher
	names   NameResolver
	channel string
	logger  zerolog.Logger
}

// NewBroadcaster builds a challenge event broadcaster.
func NewBroadcaster(redis *redis.Client, hub *ws.Hub, pusher Pusher, names NameResolver, channel string, logger zerolog.Logger) *Broadcaster {
	if channel == "" {
		channel = "challenge:updates"
	}
	return &Broadcaster{
		redis:   redis,
		hub:     hub,
		pusher:  pusher,
		names:   names,
		channel: channel,
		logger:  logger.With().Str("component", "challenge_broadcaster").Logger(),
	}
}

// Run subscribes to the event channel and blocks until the context is
// cancelled.
func (b *Broadcaster) Run(ctx context.Context) error {
	if b.redis == nil || b.hub == nil {
		return nil
	}

	sub := b.redis.Subscribe(ctx, b.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.dispatch(ctx, msg.Payload)
		}
	}
}

func (b *Broadcaster) dispatch(ctx context.Context, payload string) {
	var evt Event
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		b.logger.Warn().Err(err).Msg("failed to decode challenge event")
		return
	}
	if evt.Challenge == nil {
		return
	}
	c := evt.Challenge

	switch evt.Kind {
	case EventInvite:
		b.deliverInvite(ctx, c)
	case EventComplete:
		b.deliverComplete(ctx, c)
	}

	// Every kind also carries the full document to both participants and
	// any watchers.
	b.deliverUpdate(c)
}

func (b *Broadcaster) deliverInvite(ctx context.Context, c *Challenge) {
	payload := ws.ChallengeInvitePayload{
		ChallengeID:     c.ID.String(),
		FromUserID:      c.ChallengerID.String(),
		FromDisplayName: b.resolveName(ctx, c.ChallengerID),
		GameType:        c.GameType,
		Difficulty:      c.Difficulty,
		ExpiresAt:       c.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		b.logger.Warn().Err(err).Msg("marshal invite payload failed")
		return
	}

	msg := ws.Message{Type: ws.TypeChallengeInvite, Payload: raw}
	if b.hub.IsConnected(c.OpponentID) {
		if err := b.hub.SendToUser(c.OpponentID, msg); err == nil {
			return
		}
	}
	if b.pusher != nil {
		b.pusher.SendChallengeInvite(ctx, c.OpponentID, payload.FromDisplayName, c.GameType, payload.ChallengeID)
	}
}

func (b *Broadcaster) deliverComplete(ctx context.Context, c *Challenge) {
	var winnerID *string
	if c.WinnerID != nil {
		id := c.WinnerID.String()
		winnerID = &id
	}
	payload := ws.ChallengeCompletePayload{
		ChallengeID:     c.ID.String(),
		WinnerID:        winnerID,
		ChallengerScore: derefInt(c.ChallengerScore),
		OpponentScore:   derefInt(c.OpponentScore),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		b.logger.Warn().Err(err).Msg("marshal complete payload failed")
		return
	}
	msg := ws.Message{Type: ws.TypeChallengeComplete, Payload: raw}

	tie := c.WinnerID == nil
	for _, userID := range []uuid.UUID{c.ChallengerID, c.OpponentID} {
		if b.hub.IsConnected(userID) {
			if err := b.hub.SendToUser(userID, msg); err == nil {
				continue
			}
		}
		if b.pusher != nil {
			won := !tie && *c.WinnerID == userID
			b.pusher.SendChallengeComplete(ctx, userID, c.ID.String(), won, tie)
		}
	}
}

func (b *Broadcaster) deliverUpdate(c *Challenge) {
	doc, err := json.Marshal(c)
	if err != nil {
		b.logger.Warn().Err(err).Msg("marshal challenge document failed")
		return
	}
	raw, err := json.Marshal(ws.ChallengeUpdatePayload{Challenge: doc})
	if err != nil {
		return
	}
	msg := ws.Message{Type: ws.TypeChallengeUpdate, Payload: raw}

	b.hub.SendToUser(c.ChallengerID, msg)
	b.hub.SendToUser(c.OpponentID, msg)
	b.hub.BroadcastToChallenge(c.ID.String(), msg)
}

func (b *Broadcaster) resolveName(ctx context.Context, userID uuid.UUID) string {
	if b.names == nil {
		return ""
	}
	name, err := b.names.DisplayName(ctx, userID)
	if err != nil {
		b.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("resolve display name failed")
		return ""
	}
	return name
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
