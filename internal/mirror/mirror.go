package mirror

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Fabulani/shopfloor-simulation/internal/channel"
	"github.com/Fabulani/shopfloor-simulation/internal/entity"
	"github.com/Fabulani/shopfloor-simulation/internal/metrics"
	"github.com/Fabulani/shopfloor-simulation/internal/snapshot"
)

var (
	// ErrPublishFailure is returned when a head or atomic publish fails.
	ErrPublishFailure = errors.New("mirror: publish failed")

	// ErrNotInitialized is returned by SendPayload for entities whose topic
	// was never initialized or has been unregistered.
	ErrNotInitialized = errors.New("mirror: topic not initialized")
)

// Logger is the logging interface used by the mirror.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Observer is notified after an entity's snapshot has been published.
type Observer interface {
	Observe(e entity.Entity, s entity.Snapshot)
}

// Result describes what a synchronization published.
type Result struct {
	// Head is true when the head topic was published.
	Head bool

	// Keys lists the atomic topics published, in snapshot order.
	Keys []string
}

type entry struct {
	mu  sync.Mutex
	enc *snapshot.Encoded
}

// Mirror publishes entity snapshots through a Channel.
type Mirror struct {
	ch     channel.Channel
	topics channel.Topics

	mu        sync.Mutex
	cache     map[entity.Entity]*entry
	observers []Observer
	echoes    *Echoes
	logger    Logger
}

// New creates a Mirror publishing below root.
func New(ch channel.Channel, root string) *Mirror {
	return &Mirror{
		ch:     ch,
		topics: channel.Topics{Root: root},
		cache:  make(map[entity.Entity]*entry),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the mirror.
func (m *Mirror) SetLogger(logger Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	m.logger = logger
}

// SetEchoes records every atomic publish in echoes before it is sent.
func (m *Mirror) SetEchoes(echoes *Echoes) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.echoes = echoes
}

// AddObserver registers o for successful publishes.
func (m *Mirror) AddObserver(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

// Topics returns the topic builder used by the mirror.
func (m *Mirror) Topics() channel.Topics {
	return m.topics
}

// InitializeTopic publishes the full snapshot of e on its head topic and
// every key on its atomic topic, establishing the cache baseline.
func (m *Mirror) InitializeTopic(e entity.Entity) error {
	m.mu.Lock()
	ent, ok := m.cache[e]
	if !ok {
		ent = &entry{}
		m.cache[e] = ent
	}
	m.mu.Unlock()

	ent.mu.Lock()
	defer ent.mu.Unlock()

	s := e.Snapshot()
	enc, err := snapshot.Encode(s)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key(e), err)
	}
	if err := m.publish(e, enc, enc.Keys()); err != nil {
		return err
	}
	ent.enc = enc
	m.notify(e, s)
	return nil
}

// SendPayload publishes what changed in e since its last successful publish.
//
// Nothing is sent when the snapshot is byte-identical to the cached one.
// Otherwise the head topic is published followed by the atomic topics of the
// changed keys. If an earlier cycle failed, the delta is computed against the
// last successful publish.
func (m *Mirror) SendPayload(e entity.Entity) (Result, error) {
	m.mu.Lock()
	ent, ok := m.cache[e]
	m.mu.Unlock()
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNotInitialized, key(e))
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()

	s := e.Snapshot()
	enc, err := snapshot.Encode(s)
	if err != nil {
		return Result{}, fmt.Errorf("encoding %s: %w", key(e), err)
	}
	if snapshot.Equal(ent.enc, enc) {
		metrics.RecordUnchanged()
		return Result{}, nil
	}

	changed := snapshot.Changed(ent.enc, enc)
	if err := m.publish(e, enc, changed); err != nil {
		return Result{}, err
	}
	ent.enc = enc
	m.notify(e, s)
	return Result{Head: true, Keys: changed}, nil
}

// Unregister drops the cache entry of e. Later SendPayload calls for e
// return ErrNotInitialized until the topic is initialized again.
func (m *Mirror) Unregister(e entity.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, e)
}

// Describe returns the current head encoding of e without publishing it.
func (m *Mirror) Describe(e entity.Entity) ([]byte, error) {
	enc, err := snapshot.Encode(e.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", key(e), err)
	}
	return enc.Head, nil
}

func (m *Mirror) publish(e entity.Entity, enc *snapshot.Encoded, keys []string) error {
	namespace, id := e.Identify()
	m.mu.Lock()
	echoes := m.echoes
	m.mu.Unlock()

	err := m.ch.Publish(m.topics.Head(namespace, id), enc.Head)
	metrics.RecordPublish(metrics.KindHead, err)
	if err != nil {
		return fmt.Errorf("%w: %s head: %w", ErrPublishFailure, key(e), err)
	}

	for _, k := range keys {
		value, _ := enc.Value(k)
		topic := m.topics.Atomic(namespace, id, k)
		echoes.expect(topic, value)
		err := m.ch.Publish(topic, value)
		metrics.RecordPublish(metrics.KindAtomic, err)
		if err != nil {
			echoes.forget(topic, value)
			return fmt.Errorf("%w: %s/%s: %w", ErrPublishFailure, key(e), k, err)
		}
	}
	return nil
}

func (m *Mirror) notify(e entity.Entity, s entity.Snapshot) {
	m.mu.Lock()
	observers := make([]Observer, len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	for _, o := range observers {
		o.Observe(e, s)
	}
}

func key(e entity.Entity) string {
	namespace, id := e.Identify()
	return namespace + "/" + id
}
