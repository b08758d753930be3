package dataset

import (
	"context"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/rowsink/blobstore"
	"github.com/hupe1980/rowsink/executor"
	"github.com/hupe1980/rowsink/format"
	"github.com/hupe1980/rowsink/future"
	"github.com/hupe1980/rowsink/resource"
	"github.com/hupe1980/rowsink/scheduler"
)

type stagedBatch struct {
	rec   arrow.RecordBatch
	bytes int64 // approximate
}

// fileQueue stages the batches of one file and writes them as row groups
// through a capacity-1 sub-scheduler, so every task of the file runs in
// order: directory preparation, open, writes, close.
type fileQueue struct {
	w      *Writer
	path   string
	schema *arrow.Schema
	sub    *scheduler.SubScheduler

	staged     []stagedBatch
	stagedRows int64

	// Owned by the serialized tasks.
	writer format.FileWriter
	span   trace.Span
}

func newFileQueue(w *Writer, path string, schema *arrow.Schema) *fileQueue {
	return &fileQueue{w: w, path: path, schema: schema}
}

// start attaches the sub-scheduler and adds the open task. Tasks added to
// sub before start, such as waiting for the directory, run first.
func (q *fileQueue) start(sub *scheduler.SubScheduler) {
	q.sub = sub
	q.sub.AddSimpleTask("open "+q.path, func(ctx context.Context) *future.Future {
		return q.w.opts.Executor.Submit(ctx, q.open)
	})
}

func (q *fileQueue) open(ctx context.Context) error {
	o := q.w.opts

	_, span := q.w.tracer.Start(ctx, "dataset.file", trace.WithAttributes(attribute.String("path", q.path)))

	blob, err := o.Store.Create(ctx, q.path)
	if err != nil {
		err = fmt.Errorf("dataset: open %s: %w", q.path, err)
		endSpan(span, err)
		return err
	}

	out := blobstore.WritableBlob(blob)
	if o.MaxBytesPerSecond > 0 {
		out = &rateLimitedBlob{WritableBlob: blob, w: resource.NewRateLimitedWriter(ctx, blob, q.w.state.resources)}
	}

	fw, err := o.Format.NewWriter(out, q.schema, q.path)
	if err != nil {
		_ = blob.Close()
		endSpan(span, err)
		return err
	}

	q.writer = fw
	q.span = span

	q.w.observer.FileOpened(q.path)
	q.w.logger.Debug("file opened", "path", q.path)

	return nil
}

// push stages batch and schedules every group that is ready.
func (q *fileQueue) push(batch arrow.RecordBatch) {
	n := batch.NumRows()
	bytes := approxBytes(batch)

	q.staged = append(q.staged, stagedBatch{rec: batch, bytes: bytes})
	q.stagedRows += n
	q.w.state.stagedRows.Add(n)
	q.w.state.resources.ReserveMemory(bytes)

	for len(q.staged) > 0 && (q.stagedRows >= q.w.opts.MinRowsPerGroup || q.w.state.stagingFull()) {
		q.deliver()
	}
}

// flush schedules everything staged regardless of MinRowsPerGroup.
func (q *fileQueue) flush() {
	for len(q.staged) > 0 {
		q.deliver()
	}
}

// finish flushes everything staged, adds the close task and ends the
// sub-scheduler.
func (q *fileQueue) finish() {
	q.flush()

	q.sub.AddSimpleTask("close "+q.path, func(ctx context.Context) *future.Future {
		return q.w.opts.Executor.Submit(ctx, q.close)
	})
	q.sub.Close()
}

// deliver pops one group and schedules its write.
func (q *fileQueue) deliver() {
	group, rows, bytes, err := q.pop()

	q.stagedRows -= rows
	q.w.state.stagedRows.Add(-rows)
	q.w.state.resources.ReleaseMemory(bytes)

	done := func() { q.w.state.rowsInFlight.Release(int(rows)) }

	if err != nil {
		done()
		q.sub.AddSimpleTask("write "+q.path, func(context.Context) *future.Future {
			return future.Failed(err)
		})
		return
	}

	// Dropped writes free the group and its permit, whether the file was
	// already aborted or the write is discarded from the queue later.
	discard := func() {
		group.Release()
		done()
	}

	task := scheduler.NewDiscardableTask("write "+q.path, 1, func(ctx context.Context) *future.Future {
		return submit(ctx, q.w.opts.Executor, func(ctx context.Context) error {
			defer group.Release()
			return q.write(ctx, group)
		}, done)
	}, discard)
	if !q.sub.AddTask(task) {
		discard()
	}
}

func (q *fileQueue) write(ctx context.Context, group arrow.RecordBatch) error {
	rows := group.NumRows()

	if err := q.w.state.waitRows(ctx, rows); err != nil {
		return err
	}

	start := time.Now()
	if err := q.writer.Write(ctx, group); err != nil {
		return err
	}
	d := time.Since(start)

	q.w.observer.GroupWritten(q.path, rows, d)
	q.span.AddEvent("group", trace.WithAttributes(attribute.Int64("rows", rows)))

	return nil
}

func (q *fileQueue) close(ctx context.Context) (err error) {
	defer func() { endSpan(q.span, err) }()

	o := q.w.opts
	if o.PreFinish != nil {
		if err := q.w.hook(ctx, o.PreFinish, q.writer); err != nil {
			return fmt.Errorf("dataset: pre-finish %s: %w", q.path, err)
		}
	}

	if err := q.writer.Finish(ctx); err != nil {
		return err
	}

	rows := q.writer.RowsWritten()
	q.span.SetAttributes(attribute.Int64("rows", rows))
	q.w.observer.FileClosed(q.path, rows)
	q.w.logger.Debug("file closed", "path", q.path, "rows", rows)

	if o.PostFinish != nil {
		if err := q.w.hook(ctx, o.PostFinish, q.writer); err != nil {
			return fmt.Errorf("dataset: post-finish %s: %w", q.path, err)
		}
	}

	return nil
}

// pop assembles up to MaxRowsPerGroup rows from the front of the staging
// buffer. A batch straddling the limit is split and its tail stays staged.
func (q *fileQueue) pop() (arrow.RecordBatch, int64, int64, error) {
	limit := q.w.opts.MaxRowsPerGroup

	var (
		parts []arrow.RecordBatch
		rows  int64
		bytes int64
	)

	for len(q.staged) > 0 {
		next := q.staged[0]
		n := next.rec.NumRows()

		if rows+n <= limit {
			parts = append(parts, next.rec)
			rows += n
			bytes += next.bytes
			q.staged[0] = stagedBatch{}
			q.staged = q.staged[1:]

			if rows == limit {
				break
			}
			continue
		}

		take := limit - rows
		headBytes := next.bytes * take / n

		parts = append(parts, next.rec.NewSlice(0, take))
		q.staged[0] = stagedBatch{rec: next.rec.NewSlice(take, n), bytes: next.bytes - headBytes}
		next.rec.Release()

		rows += take
		bytes += headBytes
		break
	}

	if len(parts) == 0 {
		panic("dataset: pop from empty staging buffer")
	}

	group, err := combine(q.schema, parts, rows)
	return group, rows, bytes, err
}

// combine merges parts into one batch of rows rows and releases them.
func combine(schema *arrow.Schema, parts []arrow.RecordBatch, rows int64) (arrow.RecordBatch, error) {
	if len(parts) == 1 {
		return parts[0], nil
	}
	defer func() {
		for _, p := range parts {
			p.Release()
		}
	}()

	cols := make([]arrow.Array, schema.NumFields())
	arrs := make([]arrow.Array, len(parts))
	for i := range cols {
		for j, p := range parts {
			arrs[j] = p.Column(i)
		}

		merged, err := array.Concatenate(arrs, memory.DefaultAllocator)
		if err != nil {
			for _, c := range cols[:i] {
				c.Release()
			}
			return nil, fmt.Errorf("dataset: merge column %s: %w", schema.Field(i).Name, err)
		}
		cols[i] = merged
	}

	rec := array.NewRecordBatch(schema, cols, rows)
	for _, c := range cols {
		c.Release()
	}
	return rec, nil
}

// approxBytes estimates the memory held by rec.
func approxBytes(rec arrow.RecordBatch) int64 {
	var n int64
	for _, col := range rec.Columns() {
		n += int64(col.Data().SizeInBytes())
	}
	return n
}

// submit runs fn on exec and calls done once the work settled, also when
// the executor refused it.
func submit(ctx context.Context, exec executor.Executor, fn executor.Func, done func()) *future.Future {
	f := exec.Submit(ctx, fn)
	if f.IsDone() {
		done()
		return f
	}

	out := future.New()
	go func() {
		<-f.Done()
		done()
		out.Complete(f.Err())
	}()
	return out
}

type rateLimitedBlob struct {
	blobstore.WritableBlob
	w *resource.RateLimitedWriter
}

func (b *rateLimitedBlob) Write(p []byte) (int, error) { return b.w.Write(p) }

func endSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
