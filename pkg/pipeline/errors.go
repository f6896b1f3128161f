package pipeline

import (
	"errors"
	"fmt"

	"github.com/conveyr/conveyr/pkg/dataset"
)

var (
	// ErrActionNotFound is returned when a logged action names an
	// operation the batch kind does not define.
	ErrActionNotFound = errors.New("action not found")

	// ErrActionNotAllowed is returned when the named operation exists but
	// is not marked as usable from a pipeline.
	ErrActionNotAllowed = errors.New("action not allowed")

	// ErrConfiguration is returned for invalid run options or an invalid
	// action log.
	ErrConfiguration = errors.New("invalid configuration")
)

// ActionNotFoundError reports that name is not defined for the given batch
// kind.
func ActionNotFoundError(name, kind string) error {
	return fmt.Errorf("operation %q is not defined for batch kind %q: %w", name, kind, ErrActionNotFound)
}

// ActionNotAllowedError reports that name exists on the batch kind but is
// an internal operation.
func ActionNotAllowedError(name, kind string) error {
	return fmt.Errorf("operation %q on batch kind %q is internal and cannot be used as an action: %w", name, kind, ErrActionNotAllowed)
}

// InvalidTargetError reports an unknown worker target.
func InvalidTargetError(target Target) error {
	return fmt.Errorf("target must be one of ['%s', '%s'], got %q: %w", TargetGoroutines, TargetProcesses, string(target), ErrConfiguration)
}

// InvalidPrefetchError reports a negative prefetch degree.
func InvalidPrefetchError(prefetch int) error {
	return fmt.Errorf("prefetch must not be negative, got %d: %w", prefetch, ErrConfiguration)
}

// InvalidBatchSizeError reports a batch size below one.
func InvalidBatchSizeError(batchSize int) error {
	return fmt.Errorf("batch size must be at least 1, got %d: %w", batchSize, ErrConfiguration)
}

// DanglingJoinError reports an action log ending in a join marker, which
// would leave the joined datasets unused.
func DanglingJoinError() error {
	return fmt.Errorf("action log ends with a join that no action consumes: %w", ErrConfiguration)
}

// MissingCodecError reports a process target requested for a batch kind
// without a transfer codec.
func MissingCodecError(kind string) error {
	return fmt.Errorf("target %q requires a batch codec for kind %q: %w", TargetProcesses, kind, ErrConfiguration)
}

// WorkerFailure reports that replaying the action log failed inside a
// pooled worker. Err holds the cause and is reachable through errors.Is
// and errors.As.
type WorkerFailure struct {
	Index dataset.Index
	Err   error
}

func (e *WorkerFailure) Error() string {
	return fmt.Sprintf("replay failed for batch %v: %v", []string(e.Index), e.Err)
}

func (e *WorkerFailure) Unwrap() error {
	return e.Err
}
