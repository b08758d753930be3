package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/rowsink/executor"
	"github.com/hupe1980/rowsink/format"
	"github.com/hupe1980/rowsink/future"
	"github.com/hupe1980/rowsink/scheduler"
)

const tracerName = "github.com/hupe1980/rowsink/dataset"

// Writer fans batches out to files below a base directory.
//
// All tasks run under the scheduler given to NewWriter; its completion
// reports whether every file was written. Writer is safe for concurrent use.
// Callers that need the rows of one destination in order wait for the
// future of a batch before writing the next one.
type Writer struct {
	opts     WriteOptions
	sched    *scheduler.Scheduler
	state    *state
	logger   *slog.Logger
	observer Observer
	tracer   trace.Tracer

	mu       sync.Mutex
	dirs     map[string]*directoryQueue
	order    []*directoryQueue
	finished bool
}

// NewWriter validates opts and the destination and returns a writer that
// schedules its work on sched.
func NewWriter(ctx context.Context, sched *scheduler.Scheduler, opts WriteOptions) (*Writer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := EnsureDestinationValid(ctx, &opts); err != nil {
		return nil, err
	}

	opts.BasenameTemplate = opts.basenameTemplate()
	if opts.Executor == nil {
		opts.Executor = executor.Inline()
	}

	w := &Writer{
		opts:     opts,
		sched:    sched,
		state:    newState(&opts),
		logger:   opts.Logger,
		observer: opts.Observer,
		tracer:   opts.Tracer,
		dirs:     make(map[string]*directoryQueue),
	}
	if w.logger == nil {
		w.logger = slog.New(slog.DiscardHandler)
	}
	if w.observer == nil {
		w.observer = NoopObserver{}
	}
	if w.tracer == nil {
		w.tracer = otel.Tracer(tracerName)
	}

	return w, nil
}

// WriteBatch queues batch for the files of directory (relative to BaseDir)
// and prefix. The future completes once every row was handed to a write
// task, or with an error if the write was abandoned while waiting for
// backpressure. Durability is reported by the scheduler.
//
// The writer takes its own reference to batch.
func (w *Writer) WriteBatch(batch arrow.RecordBatch, directory, prefix string) *future.Future {
	if batch.NumRows() == 0 {
		return future.Finished()
	}

	dir := w.opts.BaseDir
	if directory != "" {
		dir = path.Join(w.opts.BaseDir, directory)
	}

	batch.Retain()
	p := &pending{batch: batch, dir: dir, prefix: prefix}

	wait, err := w.advance(p)
	if err != nil {
		return future.Failed(err)
	}
	if wait == nil {
		return future.Finished()
	}

	out := future.New()
	go w.resume(p, wait, out)
	return out
}

// pending is the unwritten remainder of a batch.
type pending struct {
	batch  arrow.RecordBatch
	dir    string
	prefix string
}

func (p *pending) release() {
	if p.batch != nil {
		p.batch.Release()
		p.batch = nil
	}
}

// resume retries p each time backpressure clears.
func (w *Writer) resume(p *pending, wait <-chan struct{}, out *future.Future) {
	for {
		select {
		case <-wait:
		case <-w.sched.Cancelled():
			p.release()
			out.Complete(fmt.Errorf("dataset: write abandoned: %w", w.sched.Cause()))
			return
		}

		var err error
		wait, err = w.advance(p)
		if err != nil {
			out.Complete(err)
			return
		}
		if wait == nil {
			out.Complete(nil)
			return
		}
	}
}

// advance hands chunks of p to directory queues until p is consumed or a
// throttle refuses. It returns the channel to wait on in the latter case.
func (w *Writer) advance(p *pending) (<-chan struct{}, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.finished {
		p.release()
		return nil, ErrWriterFinished
	}

	key := p.dir + "\x00" + p.prefix
	q, ok := w.dirs[key]
	if !ok {
		q = newDirectoryQueue(w, p.dir, p.prefix, p.batch.Schema())
		w.dirs[key] = q
		w.order = append(w.order, q)
	}

	// A chunk never exceeds the throttle capacity, so the permit granted for
	// it always equals its rows and the groups cut from it release exactly that.
	maxRows := int64(w.state.rowsInFlight.Capacity())

	for p.batch != nil {
		chunk, rest, opensFile := q.nextWritableChunk(p.batch, maxRows)
		rows := int(chunk.NumRows())

		if wait := w.state.rowsInFlight.TryAcquire(rows); wait != nil {
			releaseAll(chunk, rest)
			w.flushStaged()
			w.observer.Backpressure(RowsInFlight)
			return wait, nil
		}

		if opensFile {
			if wait := w.state.openFiles.TryAcquire(1); wait != nil {
				w.state.rowsInFlight.Release(rows)
				releaseAll(chunk, rest)
				w.closeLargestFile()
				w.observer.Backpressure(OpenFiles)
				return wait, nil
			}
		}

		q.startWrite(chunk)

		p.batch.Release()
		p.batch = rest
	}

	return nil, nil
}

// closeLargestFile finishes the open file with the most rows so that its
// permit returns. If no file holds rows, all open files are already closing.
func (w *Writer) closeLargestFile() {
	var largest *directoryQueue
	for _, q := range w.order {
		if q.rowsWritten > 0 && (largest == nil || q.rowsWritten > largest.rowsWritten) {
			largest = q
		}
	}
	if largest == nil {
		return
	}

	w.logger.Debug("closing largest file", "path", largest.currentName, "rows", largest.rowsWritten)
	largest.finishCurrentFile()
}

// flushStaged delivers the under-sized groups of every open file. Staged
// rows hold rows-in-flight permits that only a write returns, so a refused
// producer would otherwise wait on rows nobody is going to write.
func (w *Writer) flushStaged() {
	if w.state.stagedRows.Load() == 0 {
		return
	}

	w.logger.Debug("flushing staged rows", "rows", w.state.stagedRows.Load())
	for _, q := range w.order {
		if q.current != nil {
			q.current.flush()
		}
	}
}

// Finish flushes every directory queue. Afterwards every row is written or
// scheduled under the writer's scheduler.
func (w *Writer) Finish() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.finished {
		return ErrWriterFinished
	}
	w.finished = true

	for _, q := range w.order {
		q.finish()
	}
	return nil
}

// StagedRows returns the rows waiting for a group to fill up.
func (w *Writer) StagedRows() int64 {
	return w.state.stagedRows.Load()
}

// StagedBytes returns the approximate bytes of the staged rows.
func (w *Writer) StagedBytes() int64 {
	return w.state.resources.MemoryUsage()
}

func (w *Writer) hook(ctx context.Context, fn FileHook, fw format.FileWriter) error {
	w.state.hooksMu.Lock()
	defer w.state.hooksMu.Unlock()

	return fn(ctx, fw)
}

func releaseAll(recs ...arrow.RecordBatch) {
	for _, r := range recs {
		if r != nil {
			r.Release()
		}
	}
}
