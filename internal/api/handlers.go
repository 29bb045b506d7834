package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/Fabulani/shopfloor-simulation/internal/controllog"
	"github.com/Fabulani/shopfloor-simulation/internal/scenario"
)

// healthCheckTimeout bounds the total time spent in dependency checks.
const healthCheckTimeout = 5 * time.Second

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Manager       ManagerState   `json:"manager"`
	Scenario      string         `json:"scenario,omitempty"`
	State         string         `json:"state,omitempty"`
	Feed          map[string]int `json:"feed"`
}

// ManagerState is the externally visible state of the scenario manager.
type ManagerState struct {
	SelectedFlexibility int      `json:"selected_flexibility"`
	Enabled             bool     `json:"is_enabled"`
	Scenarios           []string `json:"scenarios"`
}

// ManagerRequest changes the scenario manager. Absent fields are left as they are.
type ManagerRequest struct {
	SelectedFlexibility *int  `json:"selected_flexibility"`
	Enabled             *bool `json:"is_enabled"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.deps.Checks))
	for name, check := range s.deps.Checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	result := "ok"
	if status != http.StatusOK {
		result = "degraded"
	}
	respond(w, status, map[string]any{
		"status":  result,
		"version": s.deps.Version,
		"checks":  checks,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	scen, state := s.hub.LastState()
	respond(w, http.StatusOK, StatusResponse{
		Version:       s.deps.Version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Manager:       managerState(s.deps.Manager),
		Scenario:      scen,
		State:         state,
		Feed:          map[string]int{"clients": s.hub.ClientCount()},
	})
}

func (s *Server) handleGetManager(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, managerState(s.deps.Manager))
}

// handleSetManager publishes the requested changes on the manager's
// attribute topics, so they travel the same path as any other controller.
func (s *Server) handleSetManager(w http.ResponseWriter, r *http.Request) {
	if s.deps.Channel == nil {
		unavailable(w, "no message channel configured")
		return
	}

	var req ManagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.SelectedFlexibility == nil && req.Enabled == nil {
		badRequest(w, "selected_flexibility or is_enabled is required")
		return
	}

	published := make(map[string]string, 2)
	if req.SelectedFlexibility != nil {
		published[scenario.KeySelectedFlexibility] = strconv.Itoa(*req.SelectedFlexibility)
	}
	if req.Enabled != nil {
		published[scenario.KeyIsEnabled] = strconv.FormatBool(*req.Enabled)
	}

	for key, value := range published {
		topic := s.deps.Topics.ManagerAttribute(s.deps.ManagerID, key)
		if err := s.deps.Channel.Publish(topic, []byte(value)); err != nil {
			s.logger.Error("publishing manager control failed", "topic", topic, "error", err)
			internalError(w, "publishing manager control failed")
			return
		}
	}

	s.logger.Info("manager control published", "values", published)
	respond(w, http.StatusAccepted, map[string]any{"published": published})
}

// LoggingState is the body of the logging endpoints.
type LoggingState struct {
	Level string `json:"level"`
}

func (s *Server) handleGetLogging(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, LoggingState{Level: s.logger.Level()})
}

// handleSetLogging changes the level of every component logger.
func (s *Server) handleSetLogging(w http.ResponseWriter, r *http.Request) {
	var req LoggingState
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if err := s.logger.SetLevel(req.Level); err != nil {
		badRequest(w, err.Error())
		return
	}
	s.logger.Info("log level changed", "level", s.logger.Level())
	respond(w, http.StatusOK, LoggingState{Level: s.logger.Level()})
}

func (s *Server) handleListControlEvents(w http.ResponseWriter, r *http.Request) {
	if s.deps.Events == nil {
		unavailable(w, "control event log disabled")
		return
	}

	q := r.URL.Query()
	filter := controllog.Filter{
		Kind:     q.Get("kind"),
		Scenario: q.Get("scenario"),
		Outcome:  q.Get("outcome"),
	}
	var err error
	if v := q.Get("since"); v != "" {
		if filter.Since, err = time.Parse(time.RFC3339, v); err != nil {
			badRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
	}
	if filter.Limit, err = queryInt(q.Get("limit")); err != nil {
		badRequest(w, "limit must be an integer")
		return
	}
	if filter.Offset, err = queryInt(q.Get("offset")); err != nil {
		badRequest(w, "offset must be an integer")
		return
	}

	result, err := s.deps.Events.List(r.Context(), filter)
	if errors.Is(err, controllog.ErrInvalidFilter) {
		badRequest(w, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("listing control events failed", "error", err)
		internalError(w, "listing control events failed")
		return
	}
	respond(w, http.StatusOK, result)
}

func managerState(m *scenario.Manager) ManagerState {
	return ManagerState{
		SelectedFlexibility: m.SelectedFlexibility(),
		Enabled:             m.Enabled(),
		Scenarios:           m.Scenarios(),
	}
}

func queryInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
