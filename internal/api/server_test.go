package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/Fabulani/shopfloor-simulation/internal/channel"
	"github.com/Fabulani/shopfloor-simulation/internal/controllog"
	"github.com/Fabulani/shopfloor-simulation/internal/infrastructure/config"
	"github.com/Fabulani/shopfloor-simulation/internal/infrastructure/logging"
	"github.com/Fabulani/shopfloor-simulation/internal/scenario"
)

// mockChannel records published messages.
type mockChannel struct {
	mu        sync.Mutex
	published map[string]string
	err       error
}

func (m *mockChannel) Publish(topic string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.published[topic] = string(payload)
	return nil
}

func (m *mockChannel) Subscribe(string, channel.Handler) error { return nil }

// mockEvents returns a fixed list and captures the filter.
type mockEvents struct {
	filter controllog.Filter
	err    error
}

func (m *mockEvents) Create(context.Context, *controllog.Event) error { return nil }

func (m *mockEvents) List(_ context.Context, f controllog.Filter) (*controllog.ListResult, error) {
	m.filter = f
	if m.err != nil {
		return nil, m.err
	}
	return &controllog.ListResult{
		Events: []controllog.Event{{ID: "ctl-1", Kind: controllog.KindJobStatus, Accepted: true}},
		Total:  1,
		Limit:  50,
	}, nil
}

const testRoot = "test/StateMachine"

func testServer(t *testing.T) (*Server, *mockChannel, *mockEvents) {
	t.Helper()
	ch := &mockChannel{published: map[string]string{}}
	events := &mockEvents{}
	srv, err := New(Deps{
		WS:        config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Logger:    logging.Discard(),
		Manager:   scenario.NewManager("DTV-000", 0, []string{"flexibility0", "flexibility1"}),
		Channel:   ch,
		Topics:    channel.Topics{Root: testRoot},
		ManagerID: "DTV-000",
		Events:    events,
		Checks: map[string]HealthCheck{
			"database": func(context.Context) error { return nil },
		},
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv, ch, events
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// =============================================================================
// Construction
// =============================================================================

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{Manager: scenario.NewManager("m", 0, nil)}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("New() without manager should fail")
	}
}

func TestServer_StartClose(t *testing.T) {
	srv, _, _ := testServer(t)
	srv.deps.Config = config.APIConfig{Host: "127.0.0.1", Port: 0, Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5}}

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Close()

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	busy := *srv
	busy.server = nil
	busy.deps.Config.Port = portOf(t, srv.Addr())
	if err := busy.Start(context.Background()); err == nil {
		t.Error("Start() on a bound port should fail")
	}
}

func portOf(t *testing.T, addr string) int {
	t.Helper()
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatal(err)
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

// =============================================================================
// Health and Status
// =============================================================================

func TestHandleHealth(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	rec := do(t, router, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}

	srv.deps.Checks["mqtt"] = func(context.Context) error { return errors.New("not connected") }
	rec = do(t, srv.buildRouter(), http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "not connected") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHandleStatus(t *testing.T) {
	srv, _, _ := testServer(t)
	srv.Hub().WriteStateEntry("flexibility0", "Idle")

	rec := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if got.Scenario != "flexibility0" || got.State != "Idle" {
		t.Errorf("scenario/state = %s/%s", got.Scenario, got.State)
	}
	if !got.Manager.Enabled || len(got.Manager.Scenarios) != 2 {
		t.Errorf("manager = %+v", got.Manager)
	}
}

// =============================================================================
// Manager Control
// =============================================================================

func TestHandleSetManager(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		want       map[string]string
	}{
		{
			name:       "flexibility",
			body:       `{"selected_flexibility": 1}`,
			wantStatus: http.StatusAccepted,
			want:       map[string]string{testRoot + "/scenario_manager/DTV-000/selected_flexibility": "1"},
		},
		{
			name:       "both",
			body:       `{"selected_flexibility": 0, "is_enabled": false}`,
			wantStatus: http.StatusAccepted,
			want: map[string]string{
				testRoot + "/scenario_manager/DTV-000/selected_flexibility": "0",
				testRoot + "/scenario_manager/DTV-000/is_enabled":           "false",
			},
		},
		{name: "empty", body: `{}`, wantStatus: http.StatusBadRequest, want: map[string]string{}},
		{name: "malformed", body: `{`, wantStatus: http.StatusBadRequest, want: map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, ch, _ := testServer(t)
			rec := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/manager", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if len(ch.published) != len(tt.want) {
				t.Errorf("published = %v, want %v", ch.published, tt.want)
			}
			for topic, payload := range tt.want {
				if ch.published[topic] != payload {
					t.Errorf("%s = %q, want %q", topic, ch.published[topic], payload)
				}
			}
		})
	}
}

func TestHandleSetManager_NoChannel(t *testing.T) {
	srv, _, _ := testServer(t)
	srv.deps.Channel = nil

	rec := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/manager", `{"is_enabled": false}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHandleSetManager_PublishFailure(t *testing.T) {
	srv, ch, _ := testServer(t)
	ch.err = channel.ErrPublishFailed

	rec := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/manager", `{"is_enabled": false}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

// =============================================================================
// Control Events
// =============================================================================

func TestHandleListControlEvents(t *testing.T) {
	srv, _, events := testServer(t)
	router := srv.buildRouter()

	rec := do(t, router, http.MethodGet, "/api/v1/control-events?kind=job_status&scenario=flexibility0&outcome=dropped&since=2026-03-01T12:00:00Z&limit=10&offset=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	want := controllog.Filter{
		Kind:     "job_status",
		Scenario: "flexibility0",
		Outcome:  controllog.OutcomeDropped,
		Since:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Limit:    10,
		Offset:   5,
	}
	if !events.filter.Since.Equal(want.Since) {
		t.Errorf("since = %v, want %v", events.filter.Since, want.Since)
	}
	events.filter.Since = want.Since
	if events.filter != want {
		t.Errorf("filter = %+v, want %+v", events.filter, want)
	}
	if !strings.Contains(rec.Body.String(), `"ctl-1"`) {
		t.Errorf("body = %s", rec.Body.String())
	}

	if rec := do(t, router, http.MethodGet, "/api/v1/control-events?limit=ten", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
	if rec := do(t, router, http.MethodGet, "/api/v1/control-events?since=yesterday", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad since status = %d, want 400", rec.Code)
	}

	events.err = errors.New("disk full")
	if rec := do(t, router, http.MethodGet, "/api/v1/control-events", ""); rec.Code != http.StatusInternalServerError {
		t.Errorf("repository error status = %d, want 500", rec.Code)
	}
}

func TestHandleListControlEvents_Disabled(t *testing.T) {
	srv, _, _ := testServer(t)
	srv.deps.Events = nil
	if rec := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/control-events", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := testServer(t)
	rec := do(t, srv.buildRouter(), http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics output missing default collectors")
	}
}

func TestHandleLogging(t *testing.T) {
	srv, _, _ := testServer(t)
	h := srv.buildRouter()

	if rec := do(t, h, http.MethodGet, "/api/v1/logging/", ""); !strings.Contains(rec.Body.String(), `"level":"`) {
		t.Errorf("GET logging body = %q", rec.Body.String())
	}

	rec := do(t, h, http.MethodPut, "/api/v1/logging/", `{"level":"debug"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT logging status = %d, want 200", rec.Code)
	}
	if srv.logger.Level() != "debug" {
		t.Errorf("Level() = %q, want debug", srv.logger.Level())
	}

	if rec := do(t, h, http.MethodPut, "/api/v1/logging/", `{"level":"chatty"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("PUT unknown level status = %d, want 400", rec.Code)
	}
	if rec := do(t, h, http.MethodPut, "/api/v1/logging/", `{`); rec.Code != http.StatusBadRequest {
		t.Errorf("PUT malformed status = %d, want 400", rec.Code)
	}
}

func TestDashboard(t *testing.T) {
	srv, _, _ := testServer(t)
	h := srv.buildRouter()

	rec := do(t, h, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET / status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Shopfloor Simulation") {
		t.Error("GET / did not serve the dashboard")
	}

	// API routes take precedence over the dashboard.
	if rec := do(t, h, http.MethodGet, "/api/v1/health", ""); !strings.Contains(rec.Body.String(), "status") {
		t.Errorf("GET /api/v1/health body = %q", rec.Body.String())
	}
}

// =============================================================================
// Live Feed
// =============================================================================

func TestWebSocket_LiveFeed(t *testing.T) {
	srv, _, _ := testServer(t)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	sub := `{"type":"subscribe","id":"1","payload":{"channels":["state.entered"]}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(sub)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	//nolint:errcheck // Test deadline
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var resp Frame
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("reading subscribe response: %v", err)
	}
	if resp.Type != FrameResponse || resp.ID != "1" {
		t.Fatalf("response = %+v", resp)
	}

	// Unsubscribed channels are not delivered.
	srv.Hub().WriteJobProgress("flexibility0", "Job-001", "IN_PROGRESS", 25)
	srv.Hub().WriteStateEntry("flexibility0", "BeginJob")

	var event struct {
		Type      string     `json:"type"`
		EventType string     `json:"event_type"`
		Payload   StateEvent `json:"payload"`
	}
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("reading event: %v", err)
	}
	if event.EventType != ChannelStateEntered || event.Payload.State != "BeginJob" {
		t.Errorf("event = %+v", event)
	}
}

func TestHub_ClientLifecycle(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, logging.Discard())
	client := newFeedClient(hub, nil, 1)
	client.channels[ChannelRobotPose] = true

	hub.register(client)
	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d, want 1", hub.ClientCount())
	}

	hub.WriteRobotPose("flexibility0", "Agv-001", "MOVE", 1, 2, 3, 0.5)
	hub.WriteRobotPose("flexibility0", "Agv-001", "MOVE", 2, 2, 3, 0.5) // queue full, dropped
	if got := <-client.out; !strings.Contains(string(got), `"robot_id":"Agv-001"`) {
		t.Errorf("message = %s", got)
	}

	hub.unregister(client)
	hub.unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
	if client.enqueue([]byte("after close")) {
		t.Error("enqueue() after close = true")
	}
}

func TestHub_ReplaysLatestOnSubscribe(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, logging.Discard())
	hub.WriteStateEntry("flexibility0", "Op10")
	hub.WriteRobotPose("flexibility0", "Product-002", "IDLE", 0, 0, 0, 100)
	hub.WriteRobotPose("flexibility0", "Agv-001", "MOVE", 1, 0, 0, 99)
	hub.WriteRobotPose("flexibility0", "Agv-001", "MOVE", 2, 0, 0, 98)

	client := newFeedClient(hub, nil, 8)
	hub.register(client)
	client.handleFrame([]byte(`{"type":"subscribe","id":"7","payload":{"channels":["robot.pose"]}}`))

	type poseFrame struct {
		Type    string         `json:"type"`
		ID      string         `json:"id"`
		Payload RobotPoseEvent `json:"payload"`
	}
	var frames []poseFrame
	for len(client.out) > 0 {
		var f poseFrame
		if err := json.Unmarshal(<-client.out, &f); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		frames = append(frames, f)
	}

	if len(frames) != 3 {
		t.Fatalf("got %d frames, want response plus two poses", len(frames))
	}
	if frames[0].Type != FrameResponse || frames[0].ID != "7" {
		t.Errorf("first frame = %+v, want response", frames[0])
	}
	if p := frames[1].Payload; p.RobotID != "Agv-001" || p.Position[0] != 2 {
		t.Errorf("replayed %+v, want latest Agv-001 pose", p)
	}
	if p := frames[2].Payload; p.RobotID != "Product-002" {
		t.Errorf("replayed %+v, want Product-002", p)
	}

	// A new scenario starts with an empty cache.
	hub.WriteStateEntry("flexibility1", "Initialize")
	if got := hub.replay(ChannelRobotPose); len(got) != 0 {
		t.Errorf("replay after scenario switch = %d events, want 0", len(got))
	}
	if scen, state := hub.LastState(); scen != "flexibility1" || state != "Initialize" {
		t.Errorf("LastState() = %q, %q", scen, state)
	}
}

func TestFeedClient_Ping(t *testing.T) {
	client := newFeedClient(NewHub(config.WebSocketConfig{}, logging.Discard()), nil, 2)

	client.handleFrame([]byte(`{"type":"ping","id":"p"}`))
	client.handleFrame([]byte(`not json`))

	var pong, bad Frame
	_ = json.Unmarshal(<-client.out, &pong)
	_ = json.Unmarshal(<-client.out, &bad)
	if pong.Type != FramePong || pong.ID != "p" {
		t.Errorf("pong = %+v", pong)
	}
	if bad.Type != FrameError {
		t.Errorf("invalid frame reply = %+v", bad)
	}
}
