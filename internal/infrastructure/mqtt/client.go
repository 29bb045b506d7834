package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Fabulani/shopfloor-simulation/internal/infrastructure/config"
)

// Logger is the logging interface used by the client.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler receives one message. It runs on paho's router goroutine,
// so it should return quickly. A returned error is logged.
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Client is a broker session for the simulation.
//
// Subscriptions are remembered and restored after every reconnect, and the
// simulation's presence is published on the status topic each time the
// session comes up. All methods are safe for concurrent use.
type Client struct {
	paho        pahomqtt.Client
	qos         byte
	clientID    string
	statusTopic string

	mu            sync.RWMutex
	connected     bool
	subscriptions map[string]subscription
	onConnect     func()
	onDisconnect  func(error)
	logger        Logger
}

// Connect opens a session with the broker described by cfg.
func Connect(cfg config.MQTTConfig, statusTopic string) (*Client, error) {
	c := &Client{
		qos:           byte(cfg.QoS),
		clientID:      resolveClientID(cfg.Broker.ClientID),
		statusTopic:   statusTopic,
		subscriptions: make(map[string]subscription),
	}

	opts := newClientOptions(cfg, c.clientID, statusTopic)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.sessionUp() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.sessionDown(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.logWarn("MQTT reconnecting", "client_id", c.clientID)
	})

	c.paho = pahomqtt.NewClient(opts)
	if err := await(c.paho.Connect(), connectTimeout, ErrConnectionFailed); err != nil {
		return nil, err
	}

	// The connect handler runs asynchronously; the session is usable now.
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return c, nil
}

func (c *Client) sessionUp() {
	c.mu.Lock()
	c.connected = true
	subs := make(map[string]subscription, len(c.subscriptions))
	for topic, s := range c.subscriptions {
		subs[topic] = s
	}
	fn := c.onConnect
	c.mu.Unlock()

	for topic, s := range subs {
		c.paho.Subscribe(topic, s.qos, c.deliver(s.handler))
	}
	if c.statusTopic != "" {
		c.paho.Publish(c.statusTopic, c.qos, true, presence(PresenceOnline, c.clientID, ""))
	}
	if fn != nil {
		fn()
	}
}

func (c *Client) sessionDown(err error) {
	c.mu.Lock()
	c.connected = false
	fn := c.onDisconnect
	c.mu.Unlock()

	if fn != nil {
		fn(err)
	}
}

// Close publishes an offline presence and disconnects.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}
	if c.IsConnected() && c.statusTopic != "" {
		c.paho.Publish(c.statusTopic, c.qos, true, presence(PresenceOffline, c.clientID, ReasonShutdown)).
			WaitTimeout(ackTimeout)
	}
	c.paho.Disconnect(quiesceMillis)

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	return nil
}

// HealthCheck reports ErrNotConnected while the session is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports the last known session state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.paho != nil && c.paho.IsConnected()
}

// ClientID returns the id the session was opened with.
func (c *Client) ClientID() string {
	return c.clientID
}

// SetOnConnect registers fn to run after every (re)connect.
func (c *Client) SetOnConnect(fn func()) {
	c.mu.Lock()
	c.onConnect = fn
	c.mu.Unlock()
}

// SetOnDisconnect registers fn to run when the session is lost.
func (c *Client) SetOnDisconnect(fn func(err error)) {
	c.mu.Lock()
	c.onDisconnect = fn
	c.mu.Unlock()
}

// SetLogger sets the logger for handler failures and reconnects.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) logWarn(msg string, args ...any) {
	c.mu.RLock()
	l := c.logger
	c.mu.RUnlock()
	if l != nil {
		l.Warn(msg, args...)
	}
}

func (c *Client) logError(msg string, args ...any) {
	c.mu.RLock()
	l := c.logger
	c.mu.RUnlock()
	if l != nil {
		l.Error(msg, args...)
	}
}

// deliver adapts h to paho. Panics and errors are logged, never propagated
// into paho's router.
func (c *Client) deliver(h MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.logError("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()
		if err := h(msg.Topic(), msg.Payload()); err != nil {
			c.logWarn("MQTT handler failed", "topic", msg.Topic(), "error", err)
		}
	}
}

// await waits for tok and wraps any failure in sentinel.
func await(tok pahomqtt.Token, timeout time.Duration, sentinel error) error {
	if !tok.WaitTimeout(timeout) {
		return fmt.Errorf("%w: timeout after %v", sentinel, timeout)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return nil
}
