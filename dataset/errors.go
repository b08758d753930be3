package dataset

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOptions is wrapped by every configuration error.
	ErrInvalidOptions = errors.New("dataset: invalid write options")

	// ErrWriterFinished is returned for batches written after Finish.
	ErrWriterFinished = errors.New("dataset: writer finished")
)

// ErrInvalidTemplate indicates a basename template that is not usable.
type ErrInvalidTemplate struct {
	Template string
	Reason   string
}

func (e *ErrInvalidTemplate) Error() string {
	return fmt.Sprintf("dataset: basename template %q %s", e.Template, e.Reason)
}

func (e *ErrInvalidTemplate) Unwrap() error { return ErrInvalidOptions }

// ErrDestinationNotEmpty is returned when the base directory holds data and
// the existing data behavior is ErrorIfExists.
type ErrDestinationNotEmpty struct {
	Dir string
}

func (e *ErrDestinationNotEmpty) Error() string {
	return fmt.Sprintf("dataset: could not write to %s as the directory is not empty and existing data behavior is to error", e.Dir)
}

func (e *ErrDestinationNotEmpty) Unwrap() error { return ErrInvalidOptions }

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidOptions, fmt.Sprintf(format, args...))
}
