package mirror

import (
	"strings"
	"testing"
	"time"
)

func TestEchoes_FIFO(t *testing.T) {
	e := NewEchoes(nil)
	topic := "root/jobs/Job-001/status"
	e.expect(topic, []byte("IN_PROGRESS"))
	e.expect(topic, []byte("ON_HOLD"))

	tests := []struct {
		name    string
		payload string
		want    bool
	}{
		{"newer payload is not the head", "ON_HOLD", false},
		{"head consumed", "IN_PROGRESS", true},
		{"head consumed only once", "IN_PROGRESS", false},
		{"next head", "ON_HOLD", true},
		{"empty queue", "ON_HOLD", false},
	}
	for _, tt := range tests {
		if got := e.Consume(topic, []byte(tt.payload)); got != tt.want {
			t.Errorf("%s: Consume(%s) = %v, want %v", tt.name, tt.payload, got, tt.want)
		}
	}
}

func TestEchoes_Track(t *testing.T) {
	e := NewEchoes(func(topic string) bool { return strings.HasSuffix(topic, "/status") })
	e.expect("root/jobs/Job-001/progress", []byte("50"))
	e.expect("root/jobs/Job-001/status", []byte("DONE"))

	if e.Consume("root/jobs/Job-001/progress", []byte("50")) {
		t.Error("untracked topic recorded")
	}
	if !e.Consume("root/jobs/Job-001/status", []byte("DONE")) {
		t.Error("tracked topic not recorded")
	}

	var none *Echoes
	none.expect("root/jobs/Job-001/status", []byte("DONE"))
	if none.Consume("root/jobs/Job-001/status", []byte("DONE")) {
		t.Error("nil Echoes consumed a message")
	}
}

func TestEchoes_Expire(t *testing.T) {
	now := time.Unix(0, 0)
	e := NewEchoes(nil)
	e.now = func() time.Time { return now }
	topic := "root/jobs/Job-001/status"

	e.expect(topic, []byte("IN_PROGRESS"))
	now = now.Add(echoTTL + time.Second)
	e.expect(topic, []byte("DONE"))

	if e.Consume(topic, []byte("IN_PROGRESS")) {
		t.Error("expired publish consumed")
	}
	if !e.Consume(topic, []byte("DONE")) {
		t.Error("live publish not consumed after expiry")
	}
}

func TestEchoes_Bounded(t *testing.T) {
	e := NewEchoes(nil)
	topic := "root/jobs/Job-001/status"
	e.expect(topic, []byte("lost"))
	for range maxPendingEchoes {
		e.expect(topic, []byte("DONE"))
	}

	if e.Consume(topic, []byte("lost")) {
		t.Error("oldest publish kept past the bound")
	}
	if got := len(e.pending[topic]); got != maxPendingEchoes {
		t.Errorf("pending = %d, want %d", got, maxPendingEchoes)
	}
}

func TestMirror_RecordsEchoes(t *testing.T) {
	m, ch := newTestMirror()
	echoes := NewEchoes(nil)
	m.SetEchoes(echoes)
	e := &fakeEntity{id: "Job-001", status: "CREATED"}

	if err := m.InitializeTopic(e); err != nil {
		t.Fatalf("InitializeTopic() error = %v", err)
	}
	for _, msg := range ch.take()[1:] {
		if !echoes.Consume(msg.Topic, []byte(msg.Payload)) {
			t.Errorf("publish on %s not recorded", msg.Topic)
		}
	}
	if echoes.Consume("root/jobs/Job-001", []byte(`{"status":"CREATED","progress":0}`)) {
		t.Error("head publish recorded")
	}

	// A failed publish leaves nothing to wait for.
	ch.setFailOn("root/jobs/Job-001/status")
	e.set("DONE", 100)
	if _, err := m.SendPayload(e); err == nil {
		t.Fatal("SendPayload() error = nil, want publish failure")
	}
	if got := len(echoes.pending["root/jobs/Job-001/status"]); got != 0 {
		t.Errorf("pending after failed publish = %d, want 0", got)
	}
}
