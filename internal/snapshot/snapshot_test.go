package snapshot

import (
	"reflect"
	"testing"

	"github.com/Fabulani/shopfloor-simulation/internal/entity"
)

func robotSnapshot(status string, x float64, battery float64) entity.Snapshot {
	var pose entity.Snapshot
	pose.Set("position", []float64{x, 0, 0})
	pose.Set("orientation", []float64{0, 0, 0, 0})

	var s entity.Snapshot
	s.Set("type", "agv")
	s.Set("status", status)
	s.Set("pose", pose)
	s.Set("battery_status", battery)
	s.Set("current_station", nil)
	s.Set("active", true)
	return s
}

func mustEncode(t *testing.T, s entity.Snapshot) *Encoded {
	t.Helper()
	enc, err := Encode(s)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return enc
}

// =============================================================================
// Encode Tests
// =============================================================================

func TestEncode_Head(t *testing.T) {
	enc := mustEncode(t, robotSnapshot("IDLE", 1000, 1))

	want := `{"type":"agv","status":"IDLE","pose":{"position":[1000,0,0],"orientation":[0,0,0,0]},` +
		`"battery_status":1,"current_station":null,"active":true}`
	if string(enc.Head) != want {
		t.Errorf("Head = %s\nwant   %s", enc.Head, want)
	}
	if enc.Sum == 0 {
		t.Error("Sum not computed")
	}
}

func TestEncode_AtomicValues(t *testing.T) {
	enc := mustEncode(t, robotSnapshot("MOVE", 10, 0.5))

	tests := []struct {
		key  string
		want string
	}{
		{"type", "agv"},
		{"status", "MOVE"},
		{"pose", `{"position":[10,0,0],"orientation":[0,0,0,0]}`},
		{"battery_status", "0.5"},
		{"current_station", "null"},
		{"active", "true"},
	}
	for _, tt := range tests {
		got, ok := enc.Value(tt.key)
		if !ok {
			t.Errorf("Value(%q) missing", tt.key)
			continue
		}
		if string(got) != tt.want {
			t.Errorf("Value(%q) = %s, want %s", tt.key, got, tt.want)
		}
	}
	if _, ok := enc.Value("missing"); ok {
		t.Error("Value(missing) reported found")
	}
}

func TestEncode_KeyOrder(t *testing.T) {
	enc := mustEncode(t, robotSnapshot("IDLE", 0, 1))
	want := []string{"type", "status", "pose", "battery_status", "current_station", "active"}
	if got := enc.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
}

func TestEncode_Unsupported(t *testing.T) {
	var s entity.Snapshot
	s.Set("ch", make(chan int))
	if _, err := Encode(s); err == nil {
		t.Error("Encode() expected error for channel value")
	}
}

// =============================================================================
// Diff Tests
// =============================================================================

func TestEqual(t *testing.T) {
	a := mustEncode(t, robotSnapshot("IDLE", 0, 1))
	b := mustEncode(t, robotSnapshot("IDLE", 0, 1))
	c := mustEncode(t, robotSnapshot("BUSY", 0, 1))

	if !Equal(a, b) {
		t.Error("Equal() = false for identical snapshots")
	}
	if Equal(a, c) {
		t.Error("Equal() = true for different snapshots")
	}
	if Equal(nil, a) || !Equal(nil, nil) {
		t.Error("Equal() nil handling wrong")
	}
}

func TestChanged(t *testing.T) {
	base := mustEncode(t, robotSnapshot("IDLE", 0, 1))

	tests := []struct {
		name string
		prev *Encoded
		next *Encoded
		want []string
	}{
		{
			name: "no previous publishes everything",
			prev: nil,
			next: base,
			want: []string{"type", "status", "pose", "battery_status", "current_station", "active"},
		},
		{
			name: "identical",
			prev: base,
			next: mustEncode(t, robotSnapshot("IDLE", 0, 1)),
			want: nil,
		},
		{
			name: "status only",
			prev: base,
			next: mustEncode(t, robotSnapshot("MOVE", 0, 1)),
			want: []string{"status"},
		},
		{
			name: "moved and drained",
			prev: base,
			next: mustEncode(t, robotSnapshot("IDLE", 10, 0.9999)),
			want: []string{"pose", "battery_status"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Changed(tt.prev, tt.next); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Changed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChanged_NewKey(t *testing.T) {
	var a, b entity.Snapshot
	a.Set("status", "IDLE")
	b.Set("status", "IDLE")
	b.Set("zone", "robotzone")

	got := Changed(mustEncode(t, a), mustEncode(t, b))
	if !reflect.DeepEqual(got, []string{"zone"}) {
		t.Errorf("Changed() = %v, want [zone]", got)
	}
}
