package channel

import "errors"

// Handler is the callback signature for delivered messages.
//
// Handlers run on the channel's delivery goroutine. They must not block and
// must not publish on the same channel; control handlers only enqueue.
type Handler func(topic string, payload []byte) error

// Channel is a publish/subscribe message channel.
//
// Implementations: Memory (in-process, watermill gochannel) and
// mqtt.Channel (paho broker client).
type Channel interface {
	// Publish sends payload to topic. Implementations wrap failures in
	// ErrPublishFailed or a transport specific error.
	Publish(topic string, payload []byte) error

	// Subscribe registers h for every topic matching pattern.
	// Patterns use MQTT wildcards ("+" one level, "#" the remainder).
	Subscribe(pattern string, h Handler) error
}

var (
	// ErrPublishFailed is returned when a message could not be published.
	ErrPublishFailed = errors.New("channel: publish failed")

	// ErrSubscribeFailed is returned when a subscription could not be registered.
	ErrSubscribeFailed = errors.New("channel: subscribe failed")

	// ErrInvalidTopic is returned for an empty topic or pattern.
	ErrInvalidTopic = errors.New("channel: topic cannot be empty")

	// ErrClosed is returned when publishing on a closed channel.
	ErrClosed = errors.New("channel: closed")
)
