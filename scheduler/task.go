package scheduler

import (
	"context"

	"github.com/hupe1980/rowsink/future"
)

// Task is a costed unit of asynchronous work.
type Task interface {
	// Name identifies the task in logs.
	Name() string
	// Cost is charged against the scheduler's throttle while the task runs.
	Cost() int
	// Start launches the work and returns its completion. Start must not block
	// on the work itself; long running work belongs on an executor.
	Start(ctx context.Context) *future.Future
}

// Discarder is implemented by tasks that hold resources until they run. The
// scheduler calls Discard, under its lock, for queued tasks it drops on abort.
type Discarder interface {
	Discard()
}

// StartFunc launches asynchronous work.
type StartFunc func(ctx context.Context) *future.Future

type funcTask struct {
	name    string
	cost    int
	start   StartFunc
	discard func()
}

// NewTask wraps fn as a Task.
func NewTask(name string, cost int, fn StartFunc) Task {
	return &funcTask{name: name, cost: cost, start: fn}
}

// NewDiscardableTask is NewTask with a Discard method calling discard.
func NewDiscardableTask(name string, cost int, fn StartFunc, discard func()) Task {
	return &funcTask{name: name, cost: cost, start: fn, discard: discard}
}

func (t *funcTask) Name() string { return t.name }

func (t *funcTask) Cost() int { return t.cost }

func (t *funcTask) Start(ctx context.Context) *future.Future { return t.start(ctx) }

func (t *funcTask) Discard() {
	if t.discard != nil {
		t.discard()
	}
}
