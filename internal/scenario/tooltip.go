package scenario

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/Fabulani/shopfloor-simulation/internal/channel"
	"github.com/Fabulani/shopfloor-simulation/internal/entity"
	"github.com/Fabulani/shopfloor-simulation/internal/mirror"
	"github.com/Fabulani/shopfloor-simulation/internal/registry"
)

// Tooltip is the response to an inspection request from the viewer.
type Tooltip struct {
	Name     string          `json:"name"`
	Lines    []string        `json:"tooltiplines"`
	Document json.RawMessage `json:"document,omitempty"`
}

// tooltipResponder answers tooltip requests from its own goroutine, so
// responses are never published from a delivery callback.
type tooltipResponder struct {
	ch       channel.Channel
	topic    string
	requests <-chan string
	registry *registry.Registry
	mirror   *mirror.Mirror
	logger   Logger
}

func (t *tooltipResponder) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case id := <-t.requests:
			if err := t.respond(id); err != nil {
				t.logger.Warn("tooltip response failed", "entity", id, "error", err)
			}
		}
	}
}

func (t *tooltipResponder) respond(id string) error {
	tip := t.describe(id)
	payload, err := json.Marshal(tip)
	if err != nil {
		return fmt.Errorf("encoding tooltip: %w", err)
	}
	return t.ch.Publish(t.topic, payload)
}

func (t *tooltipResponder) describe(id string) Tooltip {
	e, ok := t.registry.Find(id)
	if !ok {
		return Tooltip{Name: id, Lines: []string{"Object: <b>" + id + "</b>", "not found"}}
	}

	s := e.Snapshot()
	tip := Tooltip{Name: id, Lines: []string{"Object: <b>" + displayName(s, id) + "</b>"}}
	for _, f := range s.Fields() {
		switch v := f.Value.(type) {
		case string, int, float64, bool:
			tip.Lines = append(tip.Lines, fmt.Sprintf("%s: %v", f.Key, v))
		}
	}
	if doc, err := t.mirror.Describe(e); err == nil {
		tip.Document = doc
	}
	return tip
}

func displayName(s entity.Snapshot, fallback string) string {
	h, ok := s.Get("header")
	if !ok {
		return fallback
	}
	hs, ok := h.(entity.Snapshot)
	if !ok {
		return fallback
	}
	if name, ok := hs.Get("name"); ok {
		if str, ok := name.(string); ok && str != "" {
			return str
		}
	}
	return fallback
}
