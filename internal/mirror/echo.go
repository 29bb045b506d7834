package mirror

import (
	"bytes"
	"sync"
	"time"
)

const (
	// echoTTL bounds how long a published payload waits for its echo.
	echoTTL = 10 * time.Second

	maxPendingEchoes = 64
)

type pendingEcho struct {
	payload []byte
	at      time.Time
}

// Echoes remembers payloads published on topics the simulation also
// consumes, so that their echoes can be told apart from external commands.
//
// Each topic keeps a FIFO of payloads that have not come back yet. An
// inbound message equal to the head of its topic's FIFO is an echo; any
// other message is a command. Entries older than the TTL are discarded, so
// an echo lost by the broker cannot swallow a later command.
type Echoes struct {
	track func(topic string) bool
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	pending map[string][]pendingEcho
}

// NewEchoes creates an echo log for the topics accepted by track.
// A nil track records every topic.
func NewEchoes(track func(topic string) bool) *Echoes {
	return &Echoes{
		track:   track,
		ttl:     echoTTL,
		now:     time.Now,
		pending: make(map[string][]pendingEcho),
	}
}

// Consume reports whether payload on topic is the echo of the oldest
// pending publish, and forgets that publish if it is.
func (e *Echoes) Consume(topic string, payload []byte) bool {
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	queue := e.expire(topic)
	if len(queue) == 0 || !bytes.Equal(queue[0].payload, payload) {
		return false
	}
	e.set(topic, queue[1:])
	return true
}

// expect records a publish of payload on topic. It must run before the
// publish, as in-process channels deliver before Publish returns.
func (e *Echoes) expect(topic string, payload []byte) {
	if e == nil || (e.track != nil && !e.track(topic)) {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	queue := append(e.pending[topic], pendingEcho{
		payload: append([]byte(nil), payload...),
		at:      e.now(),
	})
	if len(queue) > maxPendingEchoes {
		queue = queue[len(queue)-maxPendingEchoes:]
	}
	e.pending[topic] = queue
}

// forget drops the newest pending payload on topic equal to payload. It
// undoes expect when the publish failed.
func (e *Echoes) forget(topic string, payload []byte) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	queue := e.pending[topic]
	for i := len(queue) - 1; i >= 0; i-- {
		if bytes.Equal(queue[i].payload, payload) {
			e.set(topic, append(queue[:i:i], queue[i+1:]...))
			return
		}
	}
}

// expire drops entries past the TTL and returns what is left. Callers hold mu.
func (e *Echoes) expire(topic string) []pendingEcho {
	queue := e.pending[topic]
	if e.ttl > 0 {
		cutoff := e.now().Add(-e.ttl)
		n := 0
		for n < len(queue) && queue[n].at.Before(cutoff) {
			n++
		}
		queue = queue[n:]
	}
	e.set(topic, queue)
	return queue
}

func (e *Echoes) set(topic string, queue []pendingEcho) {
	if len(queue) == 0 {
		delete(e.pending, topic)
		return
	}
	e.pending[topic] = queue
}
