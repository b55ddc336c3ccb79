package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/genialityco/gen-live-web-sub001/internal/config"
	"github.com/genialityco/gen-live-web-sub001/pkg/log"
)

// Push message types delivered to connected clients.
const (
	PushStageState   = "stage_state"
	PushJoinRequests = "join_requests"
	PushJoinDecision = "join_decision"
)

// Push is the envelope for every server-to-client message.
type Push struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type Client struct {
	ID      string
	UID     string
	EventID string
	Role    string
	Hub     *Hub
	Conn    *websocket.Conn
	Send    chan []byte
	config  config.WebSocketConfig

	// set by the hub on register, called on unregister
	stopDecisions func()

	mu     sync.Mutex
	closed bool
}

func NewClient(id, uid, eventID, role string, hub *Hub, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	return &Client{
		ID:      id,
		UID:     uid,
		EventID: eventID,
		Role:    role,
		Hub:     hub,
		Conn:    conn,
		Send:    make(chan []byte, 64),
		config:  cfg,
	}
}

// ReadPump drains the connection. The push surface is one-way; inbound
// frames only keep the read deadline alive.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l := log.L()
				l.Debug().Err(err).Str("client_id", c.ID).Msg("websocket read error")
			}
			break
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// push queues a message, dropping it when the client's buffer is full. A
// slow client falls behind on intermediate updates but catches up on the
// next one; every push carries full state, not a delta.
func (c *Client) push(msgType string, data interface{}) {
	body, err := json.Marshal(Push{Type: msgType, Data: data})
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- body:
	default:
	}
}

// closeSend stops delivery permanently. Pushes racing with unregister are
// dropped instead of hitting a closed channel.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}
