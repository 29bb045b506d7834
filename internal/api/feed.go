package api

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/Fabulani/shopfloor-simulation/internal/infrastructure/config"
	"github.com/Fabulani/shopfloor-simulation/internal/infrastructure/logging"
)

// Frame types of the live feed protocol.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FramePing        = "ping"
	FramePong        = "pong"
	FrameEvent       = "event"
	FrameResponse    = "response"
	FrameError       = "error"
)

// Live feed channels.
const (
	ChannelRobotPose    = "robot.pose"
	ChannelJobProgress  = "job.progress"
	ChannelStateEntered = "state.entered"
)

// Frame is one message exchanged with a feed client.
type Frame struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Channel   string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// RobotPoseEvent is published on ChannelRobotPose.
type RobotPoseEvent struct {
	Scenario string     `json:"scenario"`
	RobotID  string     `json:"robot_id"`
	Status   string     `json:"status"`
	Position [3]float64 `json:"position"`
	Battery  float64    `json:"battery"`
}

// JobProgressEvent is published on ChannelJobProgress.
type JobProgressEvent struct {
	Scenario string `json:"scenario"`
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

// StateEvent is published on ChannelStateEntered.
type StateEvent struct {
	Scenario string `json:"scenario"`
	State    string `json:"state"`
}

// Hub fans scenario telemetry out to feed clients. It keeps the latest event
// per robot, per job, and for the state machine, and replays them to a client
// when it subscribes, so a freshly opened dashboard is complete at once.
//
// Hub implements scenario.Telemetry.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*feedClient]struct{}
	latest  map[string]map[string][]byte
	state   StateEvent
}

// NewHub creates an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*feedClient]struct{}),
		latest:  make(map[string]map[string][]byte),
	}
}

// Run blocks until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*feedClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

func (h *Hub) register(c *feedClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("feed client connected", "clients", n)
}

func (h *Hub) unregister(c *feedClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	c.close()
	if ok {
		h.logger.Debug("feed client disconnected", "clients", n)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// LastState returns the most recently entered state and its scenario.
func (h *Hub) LastState() (scenario, state string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state.Scenario, h.state.State
}

// WriteRobotPose implements scenario.Telemetry.
func (h *Hub) WriteRobotPose(scenario, robotID, status string, x, y, z, battery float64) {
	h.publish(ChannelRobotPose, robotID, RobotPoseEvent{
		Scenario: scenario,
		RobotID:  robotID,
		Status:   status,
		Position: [3]float64{x, y, z},
		Battery:  battery,
	})
}

// WriteJobProgress implements scenario.Telemetry.
func (h *Hub) WriteJobProgress(scenario, jobID, status string, progress int) {
	h.publish(ChannelJobProgress, jobID, JobProgressEvent{
		Scenario: scenario,
		JobID:    jobID,
		Status:   status,
		Progress: progress,
	})
}

// WriteStateEntry implements scenario.Telemetry. A state entry of a new
// scenario drops the cached robots and jobs of the previous one.
func (h *Hub) WriteStateEntry(scenario, state string) {
	h.mu.Lock()
	if h.state.Scenario != scenario {
		clear(h.latest)
	}
	ev := StateEvent{Scenario: scenario, State: state}
	h.state = ev
	h.mu.Unlock()

	h.publish(ChannelStateEntered, "", ev)
}

// publish encodes payload as an event on channel, remembers it under key,
// and queues it for every subscribed client. Slow clients miss events.
func (h *Hub) publish(channel, key string, payload any) {
	data, err := encodeFrame(Frame{Type: FrameEvent, Channel: channel, Payload: payload})
	if err != nil {
		h.logger.Error("encoding feed event", "channel", channel, "error", err)
		return
	}

	h.mu.Lock()
	byKey, ok := h.latest[channel]
	if !ok {
		byKey = make(map[string][]byte)
		h.latest[channel] = byKey
	}
	byKey[key] = data

	targets := make([]*feedClient, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if c.subscribed(channel) {
			c.enqueue(data)
		}
	}
}

// replay returns the cached events of channel ordered by key.
func (h *Hub) replay(channel string) [][]byte {
	h.mu.RLock()
	defer h.mu.RUnlock()

	byKey := h.latest[channel]
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		out = append(out, byKey[k])
	}
	return out
}

func encodeFrame(f Frame) ([]byte, error) {
	f.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	return json.Marshal(f)
}
