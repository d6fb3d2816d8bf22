package ws

import (
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterReplacesAndClosesPrevious(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	userID := uuid.New()

	first := NewConnection(nil, zerolog.Nop())
	second := NewConnection(nil, zerolog.Nop())

	hub.RegisterConnection(userID, first)
	hub.RegisterConnection(userID, second)

	assert.ErrorIs(t, first.Send(Message{Type: TypePing}), ErrConnectionClosed)
	assert.NoError(t, second.Send(Message{Type: TypePing}))
}

func TestStaleUnregisterKeepsNewerConnection(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	userID := uuid.New()

	first := NewConnection(nil, zerolog.Nop())
	hub.RegisterConnection(userID, first)

	// Reconnect: the new connection replaces the old one, whose handler
	// will still run its deferred unregister afterwards.
	second := NewConnection(nil, zerolog.Nop())
	hub.RegisterConnection(userID, second)

	hub.UnregisterConnection(userID, first)
	assert.True(t, hub.IsConnected(userID), "stale unregister must not evict the replacement")
	require.NoError(t, hub.SendToUser(userID, Message{Type: TypePing}))

	hub.UnregisterConnection(userID, second)
	assert.False(t, hub.IsConnected(userID))
	assert.ErrorIs(t, hub.SendToUser(userID, Message{Type: TypePing}), ErrConnectionNotFound)
}

func TestStaleUnregisterKeepsWatches(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	userID := uuid.New()
	challengeID := uuid.NewString()

	first := NewConnection(nil, zerolog.Nop())
	hub.RegisterConnection(userID, first)
	hub.WatchChallenge(challengeID, userID)

	second := NewConnection(nil, zerolog.Nop())
	hub.RegisterConnection(userID, second)

	hub.UnregisterConnection(userID, first)
	require.NoError(t, hub.BroadcastToChallenge(challengeID, Message{Type: TypePing}))

	// The push actually reached the live connection.
	select {
	case msg := <-second.sendCh:
		assert.Equal(t, TypePing, msg.Type)
	default:
		t.Fatal("expected a queued message on the replacement connection")
	}
}
