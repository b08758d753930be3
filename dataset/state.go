package dataset

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/hupe1980/rowsink/resource"
	"github.com/hupe1980/rowsink/scheduler"
)

// state is shared by every directory and file queue of one write.
type state struct {
	// rowsInFlight bounds rows accepted but not yet written.
	rowsInFlight scheduler.Throttle
	// openFiles bounds open file handles. A permit is held from the first
	// chunk of a file until its queue is torn down.
	openFiles scheduler.Throttle

	stagedRows atomic.Int64
	maxStaged  int64

	// resources tracks approximate staged bytes and the IO budget.
	resources *resource.Controller
	// rows limits rows handed to file writers, nil if unlimited.
	rows *rate.Limiter

	// hooksMu serializes PreFinish and PostFinish across files.
	hooksMu sync.Mutex
}

func newState(o *WriteOptions) *state {
	s := &state{
		rowsInFlight: scheduler.NewThrottle(int(o.MaxRowsQueued)),
		openFiles:    scheduler.NewThrottle(o.MaxOpenFiles),
		maxStaged:    maxRowsStaged(o.MaxRowsQueued),
		resources: resource.NewController(resource.Config{
			MemoryLimitBytes:   o.MaxBytesStaged,
			IOLimitBytesPerSec: o.MaxBytesPerSecond,
		}),
	}

	if o.MaxRowsPerSecond > 0 {
		// A burst must fit the largest group.
		burst := max(int(o.MaxRowsPerSecond), int(o.MaxRowsPerGroup))
		s.rows = rate.NewLimiter(rate.Limit(o.MaxRowsPerSecond), burst)
	}

	return s
}

// stagingFull reports whether under-sized groups should be flushed.
func (s *state) stagingFull() bool {
	return s.stagedRows.Load() >= s.maxStaged || s.resources.OverMemoryLimit()
}

func (s *state) waitRows(ctx context.Context, n int64) error {
	if s.rows == nil {
		return nil
	}
	return s.rows.WaitN(ctx, int(n))
}
