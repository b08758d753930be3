package scheduler

import "errors"

var (
	// ErrCancelled is recorded by a node that refused work because another
	// node in the same tree aborted.
	ErrCancelled = errors.New("scheduler: cancelled by sibling")

	// ErrAbandoned is recorded when a root is closed while still running.
	ErrAbandoned = errors.New("scheduler: abandoned before completion")

	// ErrParentEnded is reported by sub-schedulers created on a parent that was
	// already ended without error.
	ErrParentEnded = errors.New("scheduler: parent already ended")
)

// errEndOnSubScheduler is the panic value for End called on a child.
const errEndOnSubScheduler = "scheduler: do not call End on a sub-scheduler, close its handle instead"
