// Package controllog records inbound control messages (job status changes,
// flexibility selection, enable flag, tooltip requests) together with the
// decision taken for each one.
package controllog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event kinds.
const (
	KindJobStatus   = "job_status"
	KindFlexibility = "selected_flexibility"
	KindEnabled     = "is_enabled"
	KindTooltip     = "tooltip_request"
)

// Outcomes accepted by Filter.Outcome.
const (
	OutcomeAccepted = "accepted"
	OutcomeDropped  = "dropped"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// ErrInvalidFilter is returned by List for an unknown outcome.
var ErrInvalidFilter = errors.New("controllog: invalid filter")

// Event is one inbound control message and what happened to it.
type Event struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Topic     string    `json:"topic"`
	Payload   string    `json:"payload"`
	Accepted  bool      `json:"accepted"`
	Detail    string    `json:"detail,omitempty"`
	Scenario  string    `json:"scenario,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter selects events. Zero fields match everything.
type Filter struct {
	Kind     string
	Scenario string
	Outcome  string    // OutcomeAccepted or OutcomeDropped
	Since    time.Time // inclusive
	Limit    int       // page size, clamped to 1..200, 50 when unset
	Offset   int
}

// ListResult is one page of events, newest first.
type ListResult struct {
	Events []Event `json:"events"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// Repository stores control events.
type Repository interface {
	Create(ctx context.Context, e *Event) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository is a Repository over the control_events table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a repository using db, which must already
// carry the control_events schema.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create stores e, filling in ID and CreatedAt when they are empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Event) error {
	if e.ID == "" {
		e.ID = "ctl-" + uuid.NewString()[:8]
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO control_events (id, kind, topic, payload, accepted, detail, scenario, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Kind, e.Topic, e.Payload, boolInt(e.Accepted), e.Detail, e.Scenario, stamp(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("storing control event %s: %w", e.ID, err)
	}
	return nil
}

// List returns the page of events selected by f.
func (r *SQLiteRepository) List(ctx context.Context, f Filter) (*ListResult, error) {
	f = f.normalized()
	where, args, err := f.clause()
	if err != nil {
		return nil, err
	}

	var total int
	//nolint:gosec // clause only contains placeholders
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM control_events"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting control events: %w", err)
	}

	//nolint:gosec // clause only contains placeholders
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, kind, topic, payload, accepted, detail, scenario, created_at FROM control_events"+
			where+" ORDER BY created_at DESC, id LIMIT ? OFFSET ?",
		append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("listing control events: %w", err)
	}
	defer rows.Close()

	page := &ListResult{Events: []Event{}, Total: total, Limit: f.Limit, Offset: f.Offset}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		page.Events = append(page.Events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing control events: %w", err)
	}
	return page, nil
}

func (f Filter) normalized() Filter {
	switch {
	case f.Limit <= 0:
		f.Limit = defaultPageSize
	case f.Limit > maxPageSize:
		f.Limit = maxPageSize
	}
	f.Offset = max(f.Offset, 0)
	return f
}

// clause renders the WHERE clause of f with its arguments.
func (f Filter) clause() (string, []any, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		conds = append(conds, cond)
		args = append(args, arg)
	}

	if f.Kind != "" {
		add("kind = ?", f.Kind)
	}
	if f.Scenario != "" {
		add("scenario = ?", f.Scenario)
	}
	switch f.Outcome {
	case "":
	case OutcomeAccepted:
		add("accepted = ?", 1)
	case OutcomeDropped:
		add("accepted = ?", 0)
	default:
		return "", nil, fmt.Errorf("%w: outcome %q", ErrInvalidFilter, f.Outcome)
	}
	if !f.Since.IsZero() {
		add("created_at >= ?", stamp(f.Since))
	}

	if len(conds) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func scanEvent(rows *sql.Rows) (Event, error) {
	var (
		e        Event
		accepted int
		created  string
	)
	if err := rows.Scan(&e.ID, &e.Kind, &e.Topic, &e.Payload, &accepted, &e.Detail, &e.Scenario, &created); err != nil {
		return Event{}, fmt.Errorf("scanning control event: %w", err)
	}
	e.Accepted = accepted == 1

	var err error
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Event{}, fmt.Errorf("control event %s: bad created_at %q", e.ID, created)
	}
	return e, nil
}

// stamp formats t so that lexical order matches time order.
func stamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
