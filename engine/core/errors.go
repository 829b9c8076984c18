package core

import (
	"errors"
)

// Error kinds shared by every subsystem. Callers match with errors.Is and
// wrap with fmt.Errorf("...: %w", ...) to add context.
var (
	// A descriptor segment, atlas, ring or staging pool has no room left.
	ErrCapacityExhausted = errors.New("capacity exhausted")
	// A caller passed a value the operation cannot act on (bad count,
	// non-power-of-two alignment, double registration).
	ErrInvalidArgument = errors.New("invalid argument")
	// The referenced ticket, node or entry does not exist (or is stale).
	ErrNotFound = errors.New("not found")
	// The operation is not legal in the current state (resource marked
	// permanent, world matrix read before the first update).
	ErrStateViolation = errors.New("state violation")
	// A system level failure: mapping staging memory, waiting on a fence.
	ErrSystem = errors.New("system failure")
	// A payload failed validation (unsupported format, bad cooked layout).
	ErrValidation = errors.New("validation failed")
	// The operation was cancelled before it could complete.
	ErrCancelled = errors.New("cancelled")
)
