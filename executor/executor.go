// Package executor runs blocking work off the scheduler's goroutines.
package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/rowsink/future"
)

// ErrClosed is returned for work submitted to a closed pool.
var ErrClosed = errors.New("executor: closed")

// Func is a unit of blocking work.
type Func func(ctx context.Context) error

// Executor runs work asynchronously.
type Executor interface {
	// Submit schedules fn and returns its completion. Submit never blocks.
	Submit(ctx context.Context, fn Func) *future.Future
}

// Pool bounds the number of concurrently running functions.
type Pool struct {
	workers int
	sem     *semaphore.Weighted
	wg      sync.WaitGroup

	closed   atomic.Bool
	submitMu sync.RWMutex
}

// NewPool creates a pool running at most workers functions at once.
// A non-positive value means runtime.GOMAXPROCS(0).
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	return &Pool{
		workers: workers,
		sem:     semaphore.NewWeighted(int64(workers)),
	}
}

// Workers returns the concurrency bound.
func (p *Pool) Workers() int { return p.workers }

// Submit schedules fn. Work that is still waiting for a worker when ctx ends
// fails with the context error without running.
func (p *Pool) Submit(ctx context.Context, fn Func) *future.Future {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()

	if p.closed.Load() {
		return future.Failed(ErrClosed)
	}

	f := future.New()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		if err := p.sem.Acquire(ctx, 1); err != nil {
			f.Complete(err)
			return
		}

		err := run(ctx, fn)

		// Free the slot before waking waiters so follow-up work can start.
		p.sem.Release(1)
		f.Complete(err)
	}()

	return f
}

// Close rejects further work and waits for submitted work to finish.
func (p *Pool) Close() {
	// Taking the write lock waits out in-progress Submit calls, so wg.Add
	// never races wg.Wait.
	p.submitMu.Lock()
	closed := p.closed.Swap(true)
	p.submitMu.Unlock()

	if !closed {
		p.wg.Wait()
	}
}

type inline struct{}

// Inline returns an executor that runs work on the submitting goroutine.
func Inline() Executor { return inline{} }

func (inline) Submit(ctx context.Context, fn Func) *future.Future {
	f := future.New()
	f.Complete(run(ctx, fn))
	return f
}

func run(ctx context.Context, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor: work panicked: %v", r)
		}
	}()

	return fn(ctx)
}
