package scenario

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Fabulani/shopfloor-simulation/internal/channel"
	"github.com/Fabulani/shopfloor-simulation/internal/controllog"
	"github.com/Fabulani/shopfloor-simulation/internal/job"
	"github.com/Fabulani/shopfloor-simulation/internal/metrics"
	"github.com/Fabulani/shopfloor-simulation/internal/mirror"
)

const (
	tooltipBuffer = 64
	recordTimeout = 2 * time.Second
)

// Manager attribute keys accepted on the control topics.
const (
	KeySelectedFlexibility = "selected_flexibility"
	KeyIsEnabled           = "is_enabled"
)

// Logger is the logging interface used by the scenario package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder stores inbound control messages.
type Recorder interface {
	Create(ctx context.Context, e *controllog.Event) error
}

// StatusUpdate is a queued job status change.
type StatusUpdate struct {
	JobID  string
	Status job.Status
}

// Inbox receives inbound control messages. Handlers never touch Job state:
// status updates are queued until the state machine drains them, manager
// attributes are applied to the thread-safe Manager, and tooltip requests
// are handed to the tooltip consumer.
//
// Job status and manager topics also carry the simulation's own publishes.
// Messages matching a pending publish in Echoes are dropped.
type Inbox struct {
	topics    channel.Topics
	managerID string
	manager   *Manager
	echoes    *mirror.Echoes

	mu       sync.Mutex
	statuses []StatusUpdate
	scenario string
	recorder Recorder
	logger   Logger

	tooltips chan string
}

// NewInbox creates an inbox for the manager attributes of managerID.
func NewInbox(topics channel.Topics, managerID string, manager *Manager) *Inbox {
	in := &Inbox{
		topics:    topics,
		managerID: managerID,
		manager:   manager,
		logger:    noopLogger{},
		tooltips:  make(chan string, tooltipBuffer),
	}
	in.echoes = mirror.NewEchoes(in.commandTopic)
	return in
}

// Echoes returns the log of publishes whose echoes the inbox drops.
// Every mirror publishing on the inbox topics must record into it.
func (in *Inbox) Echoes() *mirror.Echoes {
	return in.echoes
}

// commandTopic reports whether topic is a job status or manager attribute
// topic handled by the inbox.
func (in *Inbox) commandTopic(topic string) bool {
	if _, ok := in.topics.JobIDFromStatus(topic); ok {
		return true
	}
	key, ok := in.topics.ManagerKey(in.managerID, topic)
	return ok && (key == KeySelectedFlexibility || key == KeyIsEnabled)
}

// SetLogger sets the logger for the inbox.
func (in *Inbox) SetLogger(logger Logger) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	in.logger = logger
}

// SetRecorder stores every control message received from now on.
func (in *Inbox) SetRecorder(r Recorder) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.recorder = r
}

// SetScenario names the scenario recorded with control messages.
func (in *Inbox) SetScenario(name string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.scenario = name
}

// Subscribe registers the inbox on the manager, job status, and tooltip
// request topics. An empty tooltip topic disables tooltips.
func (in *Inbox) Subscribe(ch channel.Channel, tooltipTopic string) error {
	if err := ch.Subscribe(in.topics.AllManagerAttributes(in.managerID), in.HandleManager); err != nil {
		return fmt.Errorf("subscribing to manager attributes: %w", err)
	}
	if err := ch.Subscribe(in.topics.AllJobStatuses(), in.HandleJobStatus); err != nil {
		return fmt.Errorf("subscribing to job statuses: %w", err)
	}
	if tooltipTopic == "" {
		return nil
	}
	if err := ch.Subscribe(tooltipTopic, in.HandleTooltip); err != nil {
		return fmt.Errorf("subscribing to tooltip requests: %w", err)
	}
	return nil
}

// HandleJobStatus queues a job status update.
func (in *Inbox) HandleJobStatus(topic string, payload []byte) error {
	jobID, ok := in.topics.JobIDFromStatus(topic)
	if !ok || in.echo(topic, payload) {
		return nil
	}

	status, err := job.ParseStatus(string(payload))
	if err != nil {
		in.drop(controllog.KindJobStatus, topic, payload, err)
		return nil
	}

	in.mu.Lock()
	in.statuses = append(in.statuses, StatusUpdate{JobID: jobID, Status: status})
	in.mu.Unlock()

	in.accept(controllog.KindJobStatus, topic, payload)
	return nil
}

// HandleManager applies a manager attribute. Keys other than
// selected_flexibility and is_enabled are ignored.
func (in *Inbox) HandleManager(topic string, payload []byte) error {
	key, ok := in.topics.ManagerKey(in.managerID, topic)
	if !ok || in.echo(topic, payload) {
		return nil
	}
	raw := strings.Trim(strings.TrimSpace(string(payload)), `"`)

	switch key {
	case KeySelectedFlexibility:
		f, err := strconv.Atoi(raw)
		if err != nil {
			in.drop(controllog.KindFlexibility, topic, payload, err)
			return nil
		}
		if f == in.manager.SelectedFlexibility() {
			return nil
		}
		in.manager.SetSelectedFlexibility(f)
		in.accept(controllog.KindFlexibility, topic, payload)

	case KeyIsEnabled:
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			in.drop(controllog.KindEnabled, topic, payload, err)
			return nil
		}
		if enabled == in.manager.Enabled() {
			return nil
		}
		in.manager.SetEnabled(enabled)
		in.accept(controllog.KindEnabled, topic, payload)
	}
	return nil
}

// HandleTooltip queues a tooltip request. The payload is the id of the
// entity to describe. Requests are dropped while the queue is full.
func (in *Inbox) HandleTooltip(topic string, payload []byte) error {
	id := strings.Trim(strings.TrimSpace(string(payload)), `"`)
	if id == "" {
		in.drop(controllog.KindTooltip, topic, payload, fmt.Errorf("empty entity id"))
		return nil
	}

	select {
	case in.tooltips <- id:
		in.accept(controllog.KindTooltip, topic, payload)
	default:
		in.drop(controllog.KindTooltip, topic, payload, fmt.Errorf("tooltip queue full"))
	}
	return nil
}

// DrainStatuses returns and clears the queued status updates, oldest first.
func (in *Inbox) DrainStatuses() []StatusUpdate {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := in.statuses
	in.statuses = nil
	return out
}

// Tooltips delivers queued tooltip requests.
func (in *Inbox) Tooltips() <-chan string {
	return in.tooltips
}

// echo consumes payload if it is the simulation's own publish.
func (in *Inbox) echo(topic string, payload []byte) bool {
	if !in.echoes.Consume(topic, payload) {
		return false
	}
	in.mu.Lock()
	logger := in.logger
	in.mu.Unlock()
	logger.Debug("own publish ignored", "topic", topic, "payload", string(payload))
	return true
}

func (in *Inbox) accept(kind, topic string, payload []byte) {
	metrics.RecordControlMessage(kind, true)
	in.record(&controllog.Event{Kind: kind, Topic: topic, Payload: string(payload), Accepted: true})
}

func (in *Inbox) drop(kind, topic string, payload []byte, err error) {
	err = fmt.Errorf("%w: %w", ErrDecodeControl, err)
	metrics.RecordControlMessage(kind, false)

	in.mu.Lock()
	logger := in.logger
	in.mu.Unlock()
	logger.Warn("control message dropped", "topic", topic, "payload", string(payload), "error", err)

	in.record(&controllog.Event{Kind: kind, Topic: topic, Payload: string(payload), Detail: err.Error()})
}

func (in *Inbox) record(e *controllog.Event) {
	in.mu.Lock()
	recorder, logger := in.recorder, in.logger
	e.Scenario = in.scenario
	in.mu.Unlock()
	if recorder == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := recorder.Create(ctx, e); err != nil {
		logger.Error("recording control message failed", "topic", e.Topic, "error", err)
	}
}
