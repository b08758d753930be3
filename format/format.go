package format

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hupe1980/rowsink/blobstore"
)

var (
	// ErrUnknownFormat is returned by ByName for unsupported names.
	ErrUnknownFormat = errors.New("format: unknown format")

	// ErrFinished is returned when writing to a finished writer.
	ErrFinished = errors.New("format: writer finished")
)

// Format creates file writers.
type Format interface {
	// Name returns the stable name of the format.
	Name() string
	// Extension returns the file extension including the leading dot.
	Extension() string
	// NewWriter opens a writer for schema on out. The writer owns out and
	// closes it in Finish, which runs even if the write was cancelled.
	NewWriter(out blobstore.WritableBlob, schema *arrow.Schema, path string) (FileWriter, error)
}

// FileWriter writes row groups to one file.
//
// Calls to Write and Finish must not overlap. Path and RowsWritten are safe
// for concurrent use.
type FileWriter interface {
	Write(ctx context.Context, rec arrow.RecordBatch) error
	Finish(ctx context.Context) error
	Path() string
	RowsWritten() int64
}

// ByName returns a built-in format by name.
func ByName(name string, opts ...Option) (Format, error) {
	switch strings.ToLower(name) {
	case "ipc", "arrow", "feather":
		return IPC(opts...), nil
	case "parquet":
		return Parquet(opts...), nil
	case "csv":
		return CSV(opts...), nil
	case "jsonl", "ndjson":
		return JSONL(opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// base carries what every writer shares.
type base struct {
	path     string
	out      blobstore.WritableBlob
	rows     atomic.Int64
	finished bool
}

func (b *base) Path() string { return b.path }

func (b *base) RowsWritten() int64 { return b.rows.Load() }

func (b *base) check(ctx context.Context) error {
	if b.finished {
		return b.errFinished()
	}
	return ctx.Err()
}

func (b *base) errFinished() error {
	return fmt.Errorf("%w: %s", ErrFinished, b.path)
}

// close syncs and closes the blob. err is the encoder's own finish error.
func (b *base) close(err error) error {
	b.finished = true

	if err == nil {
		err = b.out.Sync()
	}
	if cerr := b.out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("format: finish %s: %w", b.path, err)
	}
	return nil
}

// writeOnly hides Close from encoders that close writers they are given.
type writeOnly struct {
	w io.Writer
}

func (w writeOnly) Write(p []byte) (int, error) { return w.w.Write(p) }
