package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/pinrlabs/pinr-engine/internal/auth/jwt"
	ws "github.com/pinrlabs/pinr-engine/pkg/http/ws"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Mobile clients send no Origin header; browser origins are
		// enforced by the CORS layer on the REST surface.
		return true
	},
}

// WSHandler upgrades /ws/challenges connections and services the
// subscribe/watch protocol. It is the primary live-update channel;
// GET /v1/challenges polling is the degraded fallback.
type WSHandler struct {
	hub    *ws.Hub
	tokens *jwt.Manager
	logger zerolog.Logger
}

func NewWSHandler(hub *ws.Hub, tokens *jwt.Manager, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub:    hub,
		tokens: tokens,
		logger: logger.With().Str("component", "ws_handler").Logger(),
	}
}

// HandleWebSocket authenticates and upgrades the connection, then runs the
// read/write pumps until the client goes away.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticate(r)
	if !ok {
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := ws.NewConnection(conn, h.logger)
	h.hub.RegisterConnection(userID, c)
	defer h.hub.UnregisterConnection(userID, c)

	go c.WritePump()
	c.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(userID, c, msg)
	})
}

// authenticate accepts the token either as a query parameter (browser
// WebSocket API cannot set headers) or a bearer header.
func (h *WSHandler) authenticate(r *http.Request) (uuid.UUID, bool) {
	token := r.URL.Query().Get("token")
	if token == "" {
		header := r.Header.Get("Authorization")
		token = strings.TrimPrefix(header, "Bearer ")
		if token == header {
			token = ""
		}
	}
	if token == "" {
		return uuid.Nil, false
	}

	claims, err := h.tokens.Validate(token)
	if err != nil || claims.UserID == uuid.Nil {
		return uuid.Nil, false
	}
	return claims.UserID, true
}

func (h *WSHandler) handleMessage(userID uuid.UUID, c *ws.Connection, msg ws.Message) error {
	switch msg.Type {
	case ws.TypePing:
		return c.Send(ws.Message{Type: ws.TypePong, RequestID: msg.RequestID})

	case ws.TypeSubscribeChallenges, ws.TypeUnsubscribeChallenges:
		// Connection-level delivery of a user's own challenge events is
		// implicit once connected; these are accepted for protocol
		// compatibility.
		return nil

	case ws.TypeWatchChallenge:
		id, err := watchedChallengeID(msg)
		if err != nil {
			return h.sendError(c, msg, "invalid watch payload")
		}
		h.hub.WatchChallenge(id, userID)
		return nil

	case ws.TypeUnwatchChallenge:
		id, err := watchedChallengeID(msg)
		if err != nil {
			return h.sendError(c, msg, "invalid unwatch payload")
		}
		h.hub.UnwatchChallenge(id, userID)
		return nil

	default:
		return h.sendError(c, msg, "unknown message type")
	}
}

func (h *WSHandler) sendError(c *ws.Connection, in ws.Message, message string) error {
	payload, _ := json.Marshal(ws.ErrorPayload{Code: "bad_message", Message: message})
	return c.Send(ws.Message{Type: ws.TypeError, Payload: payload, RequestID: in.RequestID})
}

func watchedChallengeID(msg ws.Message) (string, error) {
	var p ws.WatchChallengePayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return "", err
	}
	if _, err := uuid.Parse(p.ChallengeID); err != nil {
		return "", err
	}
	return p.ChallengeID, nil
}
