package job

import "errors"

var (
	// ErrIndexOutOfRange is returned when a process step index is beyond the Job.
	ErrIndexOutOfRange = errors.New("job: process step index out of range")

	// ErrInvalidStatus is returned when a status payload is not a known Status.
	ErrInvalidStatus = errors.New("job: invalid status")

	// ErrUnknownStep is returned when a template id is not in the Catalog.
	ErrUnknownStep = errors.New("job: unknown process step")

	// ErrNoOperations is returned when a process step has no operations.
	ErrNoOperations = errors.New("job: process step has no operations")
)
