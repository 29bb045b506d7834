package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/Fabulani/shopfloor-simulation/internal/infrastructure/config"
)

// feedQueueSize is the number of frames buffered per client.
const feedQueueSize = 256

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// feedClient is one live feed connection.
type feedClient struct {
	hub  *Hub
	conn *websocket.Conn
	out  chan []byte

	done      chan struct{}
	closeOnce sync.Once

	mu       sync.RWMutex
	channels map[string]bool
}

func newFeedClient(hub *Hub, conn *websocket.Conn, queue int) *feedClient {
	return &feedClient{
		hub:      hub,
		conn:     conn,
		out:      make(chan []byte, queue),
		done:     make(chan struct{}),
		channels: make(map[string]bool),
	}
}

// handleWebSocket upgrades the request to a live feed connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := newFeedClient(s.hub, conn, feedQueueSize)
	s.hub.register(c)

	go c.writeLoop(s.hub.cfg)
	go c.readLoop(s.hub.cfg)
}

// enqueue queues data unless the client is closed or its queue is full.
func (c *feedClient) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.out <- data:
		return true
	default:
		return false
	}
}

func (c *feedClient) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *feedClient) subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels[channel]
}

func (c *feedClient) readLoop(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	deadline := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	extend := func(string) error { return c.conn.SetReadDeadline(time.Now().Add(deadline)) }

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	_ = extend("")
	c.conn.SetPongHandler(extend)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("feed read failed", "error", err)
			}
			return
		}
		_ = extend("")
		c.handleFrame(data)
	}
}

func (c *feedClient) writeLoop(cfg config.WebSocketConfig) {
	ping := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	write := func(kind int, data []byte) error {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case <-c.done:
			_ = write(websocket.CloseMessage, nil)
			return
		case data := <-c.out:
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *feedClient) handleFrame(data []byte) {
	var in struct {
		Type    string `json:"type"`
		ID      string `json:"id"`
		Payload struct {
			Channels []string `json:"channels"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		c.reply("", FrameError, map[string]string{"message": "invalid JSON message"})
		return
	}

	channels := in.Payload.Channels
	switch in.Type {
	case FrameSubscribe:
		c.mu.Lock()
		for _, ch := range channels {
			c.channels[ch] = true
		}
		c.mu.Unlock()
		c.reply(in.ID, FrameResponse, map[string]any{"subscribed": channels})
		for _, ch := range channels {
			for _, event := range c.hub.replay(ch) {
				c.enqueue(event)
			}
		}
	case FrameUnsubscribe:
		c.mu.Lock()
		for _, ch := range channels {
			delete(c.channels, ch)
		}
		c.mu.Unlock()
		c.reply(in.ID, FrameResponse, map[string]any{"unsubscribed": channels})
	case FramePing:
		c.reply(in.ID, FramePong, nil)
	default:
		c.reply(in.ID, FrameError, map[string]string{"message": "unknown message type: " + in.Type})
	}
}

func (c *feedClient) reply(id, kind string, payload any) {
	data, err := encodeFrame(Frame{Type: kind, ID: id, Payload: payload})
	if err != nil {
		return
	}
	c.enqueue(data)
}
