package mqtt

import (
	"fmt"

	"github.com/Fabulani/shopfloor-simulation/internal/channel"
)

// Channel adapts a Client to channel.Channel.
//
// Messages are published with a fixed QoS and are never retained.
type Channel struct {
	client Publisher
	qos    byte
}

// Publisher is the subset of Client used by Channel.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler MessageHandler) error
}

// NewChannel wraps a connected client.
func NewChannel(client Publisher, qos int) (*Channel, error) {
	if qos < 0 || qos > maxQoS {
		return nil, ErrInvalidQoS
	}
	return &Channel{client: client, qos: byte(qos)}, nil
}

// Publish sends payload to topic.
func (c *Channel) Publish(topic string, payload []byte) error {
	if err := c.client.Publish(topic, payload, c.qos, false); err != nil {
		return fmt.Errorf("%w: %w", channel.ErrPublishFailed, err)
	}
	return nil
}

// Subscribe registers h for topics matching pattern.
func (c *Channel) Subscribe(pattern string, h channel.Handler) error {
	if h == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	return c.client.Subscribe(pattern, c.qos, MessageHandler(h))
}

var _ channel.Channel = (*Channel)(nil)
