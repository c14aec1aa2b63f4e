package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mih4lev/steam-bot-server/internal/domain/model"
)

type eventMessage struct {
	Type    model.EventKind   `json:"type"`
	At      time.Time         `json:"at"`
	Payload model.DomainEvent `json:"payload"`
}

// WebSocketBroadcaster implements the Broadcaster interface for pushing
// domain events to live observers.
type WebSocketBroadcaster struct {
	log      *zap.Logger
	clients  map[*websocket.Conn]struct{}
	mu       sync.Mutex
	upgrader websocket.Upgrader
}

func NewWebSocketBroadcaster(log *zap.Logger) *WebSocketBroadcaster {
	return &WebSocketBroadcaster{
		log:      log,
		clients:  make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// BroadcastEvent serializes a domain event and writes it to every
// connected client. Dead connections are dropped on write failure.
func (b *WebSocketBroadcaster) BroadcastEvent(event model.DomainEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msg, err := json.Marshal(eventMessage{
		Type:    event.Kind(),
		At:      event.OccurredAt(),
		Payload: event,
	})
	if err != nil {
		b.log.Warn("failed to marshal event", zap.Error(err))
		return
	}
	for c := range b.clients {
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			b.log.Warn("websocket write error", zap.Error(err))
			c.Close()
			delete(b.clients, c)
		}
	}
}

// Handler returns an http.HandlerFunc to accept websocket connections.
func (b *WebSocketBroadcaster) Handler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.log.Warn("websocket upgrade error", zap.Error(err))
			return
		}
		b.mu.Lock()
		b.clients[conn] = struct{}{}
		b.mu.Unlock()
		// Read loop to keep the connection alive and detect close
		go func() {
			defer func() {
				b.mu.Lock()
				delete(b.clients, conn)
				b.mu.Unlock()
				conn.Close()
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
			}
		}()
	}
}
