package channel

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Every logical topic travels on one watermill topic; the logical topic is
// carried in message metadata and filtered per subscriber with Matches.
const (
	memoryTopic = "shopfloor"
	topicKey    = "topic"
)

// Memory is an in-process Channel backed by a watermill GoChannel.
//
// Publish blocks until every subscriber has handled the message, so each
// subscriber observes messages in publish order.
type Memory struct {
	pubsub *gochannel.GoChannel
	logger watermill.LoggerAdapter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewMemory creates an in-process channel. A nil logger discards watermill output.
func NewMemory(logger watermill.LoggerAdapter) *Memory {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	pubsub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            256,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: true,
		},
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	return &Memory{
		pubsub: pubsub,
		logger: logger.With(watermill.LogFields{"channel": "memory"}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Publish sends payload to every subscriber whose pattern matches topic.
func (m *Memory) Publish(topic string, payload []byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return fmt.Errorf("%w: %w", ErrPublishFailed, ErrClosed)
	}

	msg := message.NewMessage(watermill.NewUUID(), append([]byte(nil), payload...))
	msg.Metadata.Set(topicKey, topic)

	if err := m.pubsub.Publish(memoryTopic, msg); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Subscribe registers h for topics matching pattern. Handler errors and
// panics are logged; the message is acknowledged either way.
func (m *Memory) Subscribe(pattern string, h Handler) error {
	if pattern == "" {
		return ErrInvalidTopic
	}
	if h == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, ErrClosed)
	}

	messages, err := m.pubsub.Subscribe(m.ctx, memoryTopic)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for msg := range messages {
			topic := msg.Metadata.Get(topicKey)
			if Matches(pattern, topic) {
				m.deliver(h, topic, msg.Payload)
			}
			msg.Ack()
		}
	}()

	return nil
}

func (m *Memory) deliver(h Handler, topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("handler panic recovered", fmt.Errorf("%v", r), watermill.LogFields{"topic": topic})
		}
	}()

	if err := h(topic, payload); err != nil {
		m.logger.Error("handler returned error", err, watermill.LogFields{"topic": topic})
	}
}

// Close stops delivery and waits for subscriber goroutines to exit.
func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	err := m.pubsub.Close()
	m.wg.Wait()
	return err
}
