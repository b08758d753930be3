package future

import (
	"context"
	"sync"
)

// Future is a one-shot completion signal carrying an error.
//
// The zero value is not usable; create futures with New, Finished or Failed.
type Future struct {
	once sync.Once
	done chan struct{}
	err  error
}

// New returns a pending future.
func New() *Future {
	return &Future{done: make(chan struct{})}
}

// Finished returns a future that is already completed successfully.
func Finished() *Future {
	f := New()
	f.Complete(nil)
	return f
}

// Failed returns a future that is already completed with err.
func Failed(err error) *Future {
	f := New()
	f.Complete(err)
	return f
}

// Complete records err and wakes all waiters.
// Only the first call has an effect; it reports whether this call completed f.
func (f *Future) Complete(err error) bool {
	completed := false
	f.once.Do(func() {
		f.err = err
		close(f.done)
		completed = true
	})
	return completed
}

// Done returns a channel that is closed once the future completes.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// IsDone reports whether the future has completed.
func (f *Future) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Err returns the completion error. It is nil while the future is pending.
func (f *Future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait blocks until the future completes or ctx is done.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// All returns a future that completes once every input has completed.
// The result carries the first error in argument order.
func All(fs ...*Future) *Future {
	out := New()
	if len(fs) == 0 {
		out.Complete(nil)
		return out
	}
	go func() {
		var first error
		for _, f := range fs {
			<-f.Done()
			if first == nil {
				first = f.Err()
			}
		}
		out.Complete(first)
	}()
	return out
}
