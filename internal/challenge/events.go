package challenge

import (
	"context"
	"encoding/json"
)

// Event kinds published on the challenge Pub/Sub channel.
const (
	EventInvite   = "invite"
	EventUpdate   = "update"
	EventComplete = "complete"
)

// Event is the envelope fanned out to every engine instance after a state
// transition.
type Event struct {
	Kind      string     `json:"kind"`
	Challenge *Challenge `json:"challenge"`
}

// publish emits a transition event, best-effort. A lost event degrades to
// polling; it never fails the transition itself.
func (s *Service) publish(ctx context.Context, kind string, c *Challenge) {
	if s.redis == nil {
		return
	}

	data, err := json.Marshal(Event{Kind: kind, Challenge: c})
	if err != nil {
		s.logger.Warn().Err(err).Msg("marshal challenge event failed")
		return
	}
	if err := s.redis.Publish(ctx, s.opts.PubSubChannel, data).Err(); err != nil {
		s.logger.Warn().Err(err).
			Str("challenge_id", c.ID.String()).
			Str("kind", kind).
			Msg("publish challenge event failed")
	}
}
