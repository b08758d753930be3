package rowsink

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/rowsink/dataset"
	"github.com/hupe1980/rowsink/scheduler"
)

var (
	// ErrInvalidOptions is returned for configuration errors.
	ErrInvalidOptions = errors.New("rowsink: invalid options")

	// ErrCancelled is returned when the write was cancelled before it
	// completed, either through its context or by an abandoned scheduler.
	ErrCancelled = errors.New("rowsink: write cancelled")
)

// ErrSource reports an error yielded by the batch source.
//
// The original error can be accessed via errors.Unwrap.
type ErrSource struct {
	// Batch is the zero based index of the failing batch.
	Batch int
	cause error
}

func (e *ErrSource) Error() string {
	return fmt.Sprintf("rowsink: source batch %d: %v", e.Batch, e.cause)
}

func (e *ErrSource) Unwrap() error { return e.cause }

// ErrPartition reports a partitioner failure.
//
// The original error can be accessed via errors.Unwrap.
type ErrPartition struct {
	Batch int
	cause error
}

func (e *ErrPartition) Error() string {
	return fmt.Sprintf("rowsink: partition batch %d: %v", e.Batch, e.cause)
}

func (e *ErrPartition) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, dataset.ErrInvalidOptions) {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	if errors.Is(err, scheduler.ErrCancelled) ||
		errors.Is(err, scheduler.ErrAbandoned) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	return err
}
