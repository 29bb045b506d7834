package job

import (
	"fmt"
	"math"
	"strings"
)

// Status is the lifecycle state of a Job, ProcessStep, or Operation.
type Status string

// Status values.
const (
	StatusCreated    Status = "CREATED"
	StatusIdle       Status = "IDLE"
	StatusInProgress Status = "IN_PROGRESS"
	StatusOnHold     Status = "ON_HOLD"
	StatusDone       Status = "DONE"
	StatusError      Status = "ERROR"
	StatusUnknown    Status = "UNKNOWN"
)

var validStatuses = map[Status]bool{
	StatusCreated:    true,
	StatusIdle:       true,
	StatusInProgress: true,
	StatusOnHold:     true,
	StatusDone:       true,
	StatusError:      true,
	StatusUnknown:    true,
}

// ParseStatus parses a raw status payload. Surrounding whitespace and
// quotes are ignored.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.Trim(strings.TrimSpace(raw), `"`))
	if !validStatuses[s] {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

// progress returns round(100*done/total), or 0 when total is 0.
func progress(done, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(done) / float64(total)))
}
