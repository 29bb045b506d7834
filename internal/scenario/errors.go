package scenario

import "errors"

var (
	// ErrNoProcessSteps is returned when a layout has no process steps to drive.
	ErrNoProcessSteps = errors.New("scenario: no process steps")

	// ErrInvalidLayout is returned when a layout references unknown entities.
	ErrInvalidLayout = errors.New("scenario: invalid layout")

	// ErrDecodeControl is returned when an inbound control payload is malformed.
	ErrDecodeControl = errors.New("scenario: malformed control message")
)

// ErrNoCurrentJob is returned when a job state runs without a current Job.
var ErrNoCurrentJob = errors.New("scenario: no current job")
