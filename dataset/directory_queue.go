package dataset

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/rowsink/future"
	"github.com/hupe1980/rowsink/scheduler"
)

// directoryQueue owns file rotation and naming for one directory and
// prefix. Only the writer's facade lock guards it.
type directoryQueue struct {
	w         *Writer
	directory string
	prefix    string
	schema    *arrow.Schema

	// init is nil if the directory needs no preparation.
	init *future.Future

	current     *fileQueue
	currentName string
	rowsWritten int64 // rows in the current file
	fileCounter int
}

func newDirectoryQueue(w *Writer, directory, prefix string, schema *arrow.Schema) *directoryQueue {
	q := &directoryQueue{
		w:         w,
		directory: directory,
		prefix:    prefix,
		schema:    schema,
	}
	q.prepareDirectory()
	q.currentName = q.nextFilename()
	return q
}

// nextWritableChunk splits batch into the rows that fit the current file,
// at most maxRows of them, and the rest. opensFile reports whether chunk
// starts a new file.
func (q *directoryQueue) nextWritableChunk(batch arrow.RecordBatch, maxRows int64) (chunk, rest arrow.RecordBatch, opensFile bool) {
	n := batch.NumRows()
	if n <= 0 {
		panic("dataset: empty batch reached the chunker")
	}

	opensFile = q.rowsWritten == 0

	take := min(n, maxRows)
	if limit := q.w.opts.MaxRowsPerFile; limit > 0 {
		take = min(take, limit-q.rowsWritten)
	}

	if take == n {
		batch.Retain()
		return batch, nil, opensFile
	}
	return batch.NewSlice(0, take), batch.NewSlice(take, n), opensFile
}

// startWrite pushes chunk into the current file, opening it on first use.
// A file that reaches MaxRowsPerFile is finished right away.
func (q *directoryQueue) startWrite(chunk arrow.RecordBatch) {
	q.rowsWritten += chunk.NumRows()

	if q.current == nil {
		q.current = q.openFileQueue(q.currentName)
	}
	q.current.push(chunk)

	if limit := q.w.opts.MaxRowsPerFile; limit > 0 && q.rowsWritten >= limit {
		q.finishCurrentFile()
	}
}

func (q *directoryQueue) openFileQueue(path string) *fileQueue {
	fq := newFileQueue(q.w, path, q.schema)
	openFiles := q.w.state.openFiles

	sub := q.w.sched.NewSubScheduler("file "+path, func(error) error {
		openFiles.Release(1)
		return nil
	}, scheduler.WithThrottle(scheduler.NewThrottle(1)))

	if init := q.init; init != nil {
		sub.AddSimpleTask("await "+q.directory, func(context.Context) *future.Future {
			return init
		})
	}

	fq.start(sub)
	return fq
}

// finishCurrentFile closes the open file, if any, and moves on to a fresh
// filename.
func (q *directoryQueue) finishCurrentFile() {
	if q.current != nil {
		q.current.finish()
		q.current = nil
	}
	q.rowsWritten = 0
	q.currentName = q.nextFilename()
}

func (q *directoryQueue) nextFilename() string {
	name := filename(q.w.opts.basenameTemplate(), q.directory, q.prefix, q.fileCounter)
	q.fileCounter++
	return name
}

// prepareDirectory schedules deletion of existing contents, if requested,
// and creation of the directory. Files of this queue wait for it and fail
// with its error.
func (q *directoryQueue) prepareDirectory() {
	o := q.w.opts
	if q.directory == "" || !o.CreateDir {
		return
	}

	init := future.New()
	q.init = init

	dir := q.directory
	ok := q.w.sched.AddSimpleTask("prepare "+dir, func(ctx context.Context) *future.Future {
		f := o.Executor.Submit(ctx, func(ctx context.Context) (err error) {
			_, span := q.w.tracer.Start(ctx, "dataset.prepare_directory", trace.WithAttributes(
				attribute.String("dir", dir),
				attribute.String("existing_data_behavior", o.ExistingDataBehavior.String()),
			))
			defer func() { endSpan(span, err) }()

			if o.ExistingDataBehavior == DeleteMatching {
				if err := o.Store.DeleteDirContents(ctx, dir, true); err != nil {
					return fmt.Errorf("dataset: clear %s: %w", dir, err)
				}
			}
			if err := o.Store.MkdirAll(ctx, dir); err != nil {
				return fmt.Errorf("dataset: create %s: %w", dir, err)
			}
			return nil
		})

		return chain(f, init)
	})
	if !ok {
		init.Complete(fmt.Errorf("dataset: prepare %s: %w", dir, scheduler.ErrCancelled))
	}
}

// chain completes dst with the result of src and returns src.
func chain(src, dst *future.Future) *future.Future {
	if src.IsDone() {
		dst.Complete(src.Err())
		return src
	}
	go func() {
		<-src.Done()
		dst.Complete(src.Err())
	}()
	return src
}

// finish closes the open file.
func (q *directoryQueue) finish() {
	if q.current != nil {
		q.current.finish()
		q.current = nil
	}
}
