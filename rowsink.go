package rowsink

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/google/uuid"

	"github.com/hupe1980/rowsink/dataset"
	"github.com/hupe1980/rowsink/executor"
	"github.com/hupe1980/rowsink/format"
	"github.com/hupe1980/rowsink/future"
	"github.com/hupe1980/rowsink/manifest"
	"github.com/hupe1980/rowsink/scheduler"
)

// WrittenFile describes a finished file.
type WrittenFile struct {
	Path string
	Rows int64
}

// Result summarizes a write.
type Result struct {
	WriteID string
	// Files is sorted by path.
	Files    []WrittenFile
	Rows     int64
	Duration time.Duration
	// ManifestID is the committed manifest version, 0 without a committer.
	ManifestID uint64
}

// Write drains source into the dataset described by opts.
//
// Batches are pulled one at a time; the next batch is requested once the
// previous one was accepted by the writer. Write releases every batch it
// pulled. It returns when every file is finished or the write failed; on
// failure the files written so far are left in place and no manifest is
// committed.
func Write(ctx context.Context, source iter.Seq2[arrow.RecordBatch, error], opts ...Option) (*Result, error) {
	o := applyOptions(opts)
	if o.writeID == "" {
		o.writeID = uuid.NewString()
	}
	if o.workers <= 0 {
		return nil, fmt.Errorf("%w: workers must be a positive number", ErrInvalidOptions)
	}

	logger := o.logger.WithWriteID(o.writeID).WithBaseDir(o.write.BaseDir)
	start := time.Now()

	res := &Result{WriteID: o.writeID}
	var mu sync.Mutex

	wopts := o.write
	wopts.Logger = logger.Logger
	wopts.PostFinish = func(ctx context.Context, fw format.FileWriter) error {
		mu.Lock()
		res.Files = append(res.Files, WrittenFile{Path: fw.Path(), Rows: fw.RowsWritten()})
		res.Rows += fw.RowsWritten()
		mu.Unlock()

		logger.LogFileWritten(ctx, fw.Path(), fw.RowsWritten())
		return nil
	}

	pool := executor.NewPool(o.workers)
	defer pool.Close()
	wopts.Executor = pool

	root := scheduler.New(ctx, scheduler.WithName("write "+o.writeID), scheduler.WithLogger(logger.Logger))

	w, err := dataset.NewWriter(ctx, root, wopts)
	if err != nil {
		root.End()
		return nil, translateError(err)
	}

	partitioner := o.partitioner
	if partitioner == nil {
		partitioner = NoPartitioning()
	}

	if err := feed(w, root, source, partitioner); err != nil {
		// Fails the tree with the source error; running tasks drain.
		root.AddSimpleTask("source", func(context.Context) *future.Future {
			return future.Failed(err)
		})
	}

	_ = w.Finish()
	root.End()

	err = root.Wait(context.Background())

	sort.Slice(res.Files, func(i, j int) bool { return res.Files[i].Path < res.Files[j].Path })
	res.Duration = time.Since(start)

	if err == nil && o.committer != nil {
		res.ManifestID, err = commit(ctx, o, res)
		logger.LogCommit(ctx, res.ManifestID, err)
	}

	err = translateError(err)
	o.metrics.RecordWrite(len(res.Files), res.Rows, res.Duration, err)
	logger.LogWriteFinished(ctx, len(res.Files), res.Rows, res.Duration, err)

	return res, err
}

// feed hands every batch of source to w. It stops without error when the
// tree was cancelled; the tree reports the cause.
func feed(w *dataset.Writer, root *scheduler.Scheduler, source iter.Seq2[arrow.RecordBatch, error], p Partitioner) error {
	i := 0
	for batch, err := range source {
		select {
		case <-root.Cancelled():
			if batch != nil {
				batch.Release()
			}
			return nil
		default:
		}

		if err != nil {
			return &ErrSource{Batch: i, cause: err}
		}

		stop, err := writeBatch(w, root, batch, p, i)
		batch.Release()
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
		i++
	}
	return nil
}

func writeBatch(w *dataset.Writer, root *scheduler.Scheduler, batch arrow.RecordBatch, p Partitioner, i int) (bool, error) {
	parts, err := p.Partition(batch)
	if err != nil {
		return false, &ErrPartition{Batch: i, cause: err}
	}

	defer func() {
		for _, part := range parts {
			part.Batch.Release()
		}
	}()

	for _, part := range parts {
		f := w.WriteBatch(part.Batch, part.Directory, part.Prefix)

		select {
		case <-f.Done():
			if f.Err() != nil {
				// Abandoned writes are reported by the tree.
				return true, nil
			}
		case <-root.Cancelled():
			return true, nil
		}
	}
	return false, nil
}

func commit(ctx context.Context, o options, res *Result) (uint64, error) {
	start := time.Now()

	m := &manifest.Manifest{
		WriteID:   res.WriteID,
		CreatedAt: start.UTC(),
		BaseDir:   o.write.BaseDir,
		Format:    o.write.Format.Name(),
	}
	for _, f := range res.Files {
		m.AddFile(f.Path, f.Rows)
	}

	err := o.committer.Commit(ctx, m)
	o.metrics.RecordCommit(time.Since(start), err)
	if err != nil {
		return 0, err
	}
	return m.ID, nil
}
