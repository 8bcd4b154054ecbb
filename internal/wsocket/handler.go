package wsocket

import (
	"context"
	"net/http"
	"time"

	"appraisal_go_backend/internal/utils/broker"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const writeWait = 10 * time.Second

// Handler streams paper events from the broker to WebSocket clients.
type Handler struct {
	upgrader     websocket.Upgrader
	broker       *broker.Broker
	pingInterval time.Duration
}

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

func NewHandler(upgrader websocket.Upgrader, messageBroker *broker.Broker, pingInterval time.Duration) *Handler {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Handler{
		upgrader:     upgrader,
		broker:       messageBroker,
		pingInterval: pingInterval,
	}
}

// HandleWebSocket upgrades the connection and forwards every event published
// on broker.TopicPapers until the client goes away.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())

	// Subscribe before upgrading so no event published after the handshake is lost.
	events := h.broker.Subscribe(broker.TopicPapers)
	defer h.broker.Unsubscribe(broker.TopicPapers, events)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Error upgrading connection")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The feed is one-way; reading only detects the client closing.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.write(conn, Message{Type: "connected"}); err != nil {
		return
	}

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("WebSocket client disconnected")
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			if err := h.write(conn, msg); err != nil {
				log.Debug().Err(err).Msg("Error sending paper event")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) write(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}
