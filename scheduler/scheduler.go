package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hupe1980/rowsink/future"
)

// State is the lifecycle state of a scheduler node.
type State int

const (
	// StateRunning accepts new tasks.
	StateRunning State = iota
	// StateAborted recorded an error and discarded its queue.
	StateAborted
	// StateEnded accepts no new tasks but finishes the ones it has.
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateAborted:
		return "aborted"
	case StateEnded:
		return "ended"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Scheduler is one node of a scheduler tree.
type Scheduler struct {
	name     string
	logger   *slog.Logger
	throttle Throttle
	queue    Queue

	// ctx is handed to tasks; token is shared by the whole tree and cancelled
	// on the first abort.
	ctx    context.Context
	token  context.Context
	cancel context.CancelCauseFunc

	parent   *Scheduler
	children map[*Scheduler]struct{} // live children, guarded by mu
	sub      bool
	onFinish func(error) error

	finished *future.Future

	mu       sync.Mutex
	state    State
	running  int // started tasks plus live children
	err      error
	awaiting bool // a goroutine waits on the throttle's backoff signal
	fired    bool
}

// New returns a running root scheduler.
//
// ctx is passed to every task started in the tree. Cancelling ctx stops
// admission of new tasks like an abort does.
func New(ctx context.Context, opts ...Option) *Scheduler {
	o := applyOptions(options{name: "root"}, opts)

	token, cancel := context.WithCancelCause(ctx)

	return &Scheduler{
		name:     o.name,
		logger:   o.logger,
		throttle: o.throttle,
		queue:    o.queue,
		ctx:      ctx,
		token:    token,
		cancel:   cancel,
		finished: future.New(),
	}
}

// Name returns the node name.
func (s *Scheduler) Name() string { return s.name }

// State returns the lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Running returns the number of running tasks and live children.
func (s *Scheduler) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// Err returns the recorded error, if any.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// Throttle returns the node's throttle or nil.
func (s *Scheduler) Throttle() Throttle { return s.throttle }

// OnFinished returns the completion future of the node.
func (s *Scheduler) OnFinished() *future.Future { return s.finished }

// Wait blocks until the node completes or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	return s.finished.Wait(ctx)
}

// Cancelled returns a channel that is closed once the tree was aborted or
// its root finished.
func (s *Scheduler) Cancelled() <-chan struct{} {
	return s.token.Done()
}

// Cause returns the error the tree was cancelled with, nil while it is live.
// A root that finished cleanly reports context.Canceled.
func (s *Scheduler) Cause() error {
	return context.Cause(s.token)
}

// AddTask admits task. It returns false if the node no longer accepts work,
// either because it is not running or because the tree was cancelled.
func (s *Scheduler) AddTask(task Task) bool {
	s.mu.Lock()

	if s.state != StateRunning {
		s.mu.Unlock()
		return false
	}

	if s.token.Err() != nil {
		s.abortLocked(s.cancelledErr())
		s.unlockAndMaybeFinish()

		return false
	}

	if s.throttle != nil {
		if !s.queue.Empty() {
			s.queue.Push(task)
			s.mu.Unlock()

			return true
		}

		if backoff := s.throttle.TryAcquire(task.Cost()); backoff != nil {
			s.queue.Push(task)
			s.awaitLocked(backoff)
			s.mu.Unlock()

			return true
		}
	}

	s.running++
	s.mu.Unlock()

	s.start(task)

	return true
}

// AddSimpleTask admits a task of cost 1.
func (s *Scheduler) AddSimpleTask(name string, fn StartFunc) bool {
	return s.AddTask(NewTask(name, 1, fn))
}

// End stops admission on a root. The completion future fires once the running
// tasks and children have finished. End panics on sub-schedulers; close their
// handle instead.
func (s *Scheduler) End() {
	if s.sub {
		panic(errEndOnSubScheduler)
	}

	s.end()
}

// Close tears down a root. A root that is still running is aborted with
// ErrAbandoned first. Children whose handles are still open are ended as if
// their handles were closed. Close waits for completion and returns the tree
// error.
func (s *Scheduler) Close() error {
	if s.sub {
		panic(errEndOnSubScheduler)
	}

	s.mu.Lock()
	if s.state == StateRunning {
		s.abortLocked(ErrAbandoned)
	}
	s.unlockAndMaybeFinish()

	s.endChildren()

	<-s.finished.Done()

	return s.finished.Err()
}

// endChildren ends every live descendant, children before grandchildren.
func (s *Scheduler) endChildren() {
	s.mu.Lock()
	children := make([]*Scheduler, 0, len(s.children))
	for c := range s.children {
		children = append(children, c)
	}
	s.mu.Unlock()

	for _, c := range children {
		c.end()
		c.endChildren()
	}
}

func (s *Scheduler) end() {
	s.mu.Lock()

	if s.state == StateRunning {
		s.state = StateEnded
		if s.token.Err() != nil {
			s.abortLocked(s.cancelledErr())
		}
	}

	s.unlockAndMaybeFinish()
}

// NewSubScheduler creates a child node. onFinish, if not nil, is called with
// the child's status once the child completes; an error from onFinish aborts
// the parent. Reservations taken by the child count towards the parent's
// running tasks until the child is finished.
//
// When the parent no longer accepts work the returned handle is already
// failed: it rejects every task and Close only reports the failure to onFinish.
func (s *Scheduler) NewSubScheduler(name string, onFinish func(error) error, opts ...Option) *SubScheduler {
	o := applyOptions(options{name: name, logger: s.logger}, opts)

	s.mu.Lock()

	if s.state == StateRunning && s.token.Err() != nil {
		s.abortLocked(s.cancelledErr())
		s.unlockAndMaybeFinish()
		s.mu.Lock()
	}

	if s.state != StateRunning {
		err := s.err
		if err == nil {
			err = ErrParentEnded
		}
		s.mu.Unlock()

		return newFailed(o, s, err, onFinish)
	}

	child := &Scheduler{
		name:     o.name,
		logger:   o.logger,
		throttle: o.throttle,
		queue:    o.queue,
		ctx:      s.ctx,
		token:    s.token,
		cancel:   s.cancel,
		parent:   s,
		sub:      true,
		onFinish: onFinish,
		finished: future.New(),
	}

	if s.children == nil {
		s.children = make(map[*Scheduler]struct{})
	}
	s.children[child] = struct{}{}
	s.running++
	s.mu.Unlock()

	return &SubScheduler{Scheduler: child}
}

func newFailed(o options, parent *Scheduler, err error, onFinish func(error) error) *SubScheduler {
	failed := &Scheduler{
		name:     o.name,
		logger:   o.logger,
		ctx:      parent.ctx,
		token:    parent.token,
		cancel:   parent.cancel,
		sub:      true,
		onFinish: onFinish,
		finished: future.Failed(err),
		state:    StateAborted,
		err:      err,
		fired:    true,
	}

	return &SubScheduler{Scheduler: failed, detached: true}
}

// SubScheduler is the owning handle of a child node.
type SubScheduler struct {
	*Scheduler

	detached bool
	once     sync.Once
}

// Close ends the child. It is idempotent.
func (h *SubScheduler) Close() {
	h.once.Do(func() {
		if !h.detached {
			h.end()
			return
		}

		if h.onFinish != nil {
			// The parent is gone, nobody can act on the callback result.
			_ = h.onFinish(h.err)
		}
	})
}

func (s *Scheduler) cancelledErr() error {
	return fmt.Errorf("%w: %w", ErrCancelled, context.Cause(s.token))
}

// awaitLocked arranges for the queue to be drained once backoff fires.
func (s *Scheduler) awaitLocked(backoff <-chan struct{}) {
	if s.awaiting {
		return
	}

	s.awaiting = true

	go func() {
		<-backoff

		s.mu.Lock()
		s.awaiting = false
		s.mu.Unlock()

		s.drain()
	}()
}

// drain starts queued tasks while the throttle admits them.
func (s *Scheduler) drain() {
	for {
		s.mu.Lock()

		if s.state == StateAborted || s.queue.Empty() {
			s.unlockAndMaybeFinish()
			return
		}

		if s.token.Err() != nil {
			s.abortLocked(s.cancelledErr())
			s.unlockAndMaybeFinish()

			return
		}

		task := s.queue.Peek()
		if backoff := s.throttle.TryAcquire(task.Cost()); backoff != nil {
			s.awaitLocked(backoff)
			s.mu.Unlock()

			return
		}

		s.queue.Pop()
		s.running++
		s.mu.Unlock()

		s.start(task)
	}
}

func (s *Scheduler) start(task Task) {
	s.logger.Debug("task started", "scheduler", s.name, "task", task.Name())

	f := task.Start(s.ctx)
	if f == nil || f.IsDone() {
		var err error
		if f != nil {
			err = f.Err()
		}

		s.taskFinished(task, err)

		return
	}

	go func() {
		<-f.Done()
		s.taskFinished(task, f.Err())
	}()
}

func (s *Scheduler) taskFinished(task Task, err error) {
	if err != nil {
		s.logger.Debug("task failed", "scheduler", s.name, "task", task.Name(), "error", err)
	}

	s.mu.Lock()

	// Released under the lock so a woken drain observes the abort below.
	if s.throttle != nil {
		s.throttle.Release(task.Cost())
	}

	s.running--

	switch {
	case err != nil:
		s.abortLocked(err)
	case s.state != StateAborted && s.token.Err() != nil:
		s.abortLocked(s.cancelledErr())
	}

	s.unlockAndMaybeFinish()
}

func (s *Scheduler) childFinished(child *Scheduler, status error) {
	var cbErr error
	if child.onFinish != nil {
		cbErr = child.onFinish(status)
	}

	s.mu.Lock()
	delete(s.children, child)
	s.running--

	switch {
	case status != nil:
		s.abortLocked(status)
	case cbErr != nil:
		s.abortLocked(cbErr)
	case s.state != StateAborted && s.token.Err() != nil:
		s.abortLocked(s.cancelledErr())
	}

	s.unlockAndMaybeFinish()
}

// abortLocked records err and discards the queue. The first error wins.
func (s *Scheduler) abortLocked(err error) {
	if s.fired {
		return
	}

	switch s.state {
	case StateRunning:
		s.state = StateAborted
		s.err = err
	case StateEnded:
		if s.err == nil {
			s.err = err
		}
	case StateAborted:
		return
	}

	s.discardQueueLocked()

	s.logger.Debug("scheduler aborted", "scheduler", s.name, "state", s.state, "error", s.err)

	s.cancel(err)
}

// discardQueueLocked drops every queued task, letting Discarders free what
// they hold.
func (s *Scheduler) discardQueueLocked() {
	if s.queue == nil {
		return
	}
	for !s.queue.Empty() {
		if d, ok := s.queue.Pop().(Discarder); ok {
			d.Discard()
		}
	}
	s.queue.Purge()
}

// unlockAndMaybeFinish releases s.mu and fires the completion future if the
// node is fully finished.
func (s *Scheduler) unlockAndMaybeFinish() {
	finished := !s.fired &&
		s.state != StateRunning &&
		s.running == 0 &&
		(s.queue == nil || s.queue.Empty())
	if finished {
		s.fired = true
	}

	err := s.err
	s.mu.Unlock()

	if !finished {
		return
	}

	s.finished.Complete(err)

	if s.parent != nil {
		s.parent.childFinished(s, err)
		return
	}

	// Root done: release the token.
	s.cancel(nil)
}
