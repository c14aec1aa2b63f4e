package websocket_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mih4lev/steam-bot-server/internal/domain/model"
	ws "github.com/mih4lev/steam-bot-server/internal/handlers/websocket"
)

func TestBroadcastReachesConnectedClient(t *testing.T) {
	broadcaster := ws.NewWebSocketBroadcaster(zap.NewNop())
	server := httptest.NewServer(http.HandlerFunc(broadcaster.Handler()))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := gws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	event := model.OfferStateChangedEvent{
		OfferID:   5001,
		Direction: model.DirectionIncoming,
		OldState:  model.OfferActive,
		NewState:  model.OfferConfirmed,
		At:        time.Now(),
	}
	// The connection registers asynchronously after the dial handshake,
	// so keep broadcasting until the first message lands.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-time.After(20 * time.Millisecond):
				broadcaster.BroadcastEvent(event)
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type    model.EventKind `json:"type"`
		Payload struct {
			OfferID  uint64           `json:"offer_id"`
			NewState model.OfferState `json:"new_state"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, model.EventOfferStateChanged, msg.Type)
	assert.Equal(t, uint64(5001), msg.Payload.OfferID)
	assert.Equal(t, model.OfferConfirmed, msg.Payload.NewState)
}

func TestBroadcastWithoutClients(t *testing.T) {
	broadcaster := ws.NewWebSocketBroadcaster(zap.NewNop())
	// No connections: the broadcast is a no-op.
	broadcaster.BroadcastEvent(model.ConfirmationStuckEvent{OfferID: 1, Cycles: 15, At: time.Now()})
}
