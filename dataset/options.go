package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/rowsink/blobstore"
	"github.com/hupe1980/rowsink/executor"
	"github.com/hupe1980/rowsink/format"
)

// ExistingDataBehavior controls how data already present in the
// destination is treated.
type ExistingDataBehavior int

const (
	// ErrorIfExists refuses to write into a non-empty base directory.
	ErrorIfExists ExistingDataBehavior = iota
	// OverwriteOrIgnore leaves existing files alone; files with colliding
	// names are overwritten.
	OverwriteOrIgnore
	// DeleteMatching deletes the contents of every directory before the
	// first file is written to it.
	DeleteMatching
)

func (b ExistingDataBehavior) String() string {
	switch b {
	case ErrorIfExists:
		return "error"
	case OverwriteOrIgnore:
		return "overwrite_or_ignore"
	case DeleteMatching:
		return "delete_matching"
	default:
		return fmt.Sprintf("ExistingDataBehavior(%d)", int(b))
	}
}

// ParseExistingDataBehavior parses the names printed by String.
func ParseExistingDataBehavior(s string) (ExistingDataBehavior, error) {
	switch s {
	case "", "error":
		return ErrorIfExists, nil
	case "overwrite_or_ignore":
		return OverwriteOrIgnore, nil
	case "delete_matching":
		return DeleteMatching, nil
	default:
		return ErrorIfExists, invalidf("unknown existing data behavior %q", s)
	}
}

// FileHook is called with a file writer right before or after it is
// finished. Hooks of one write never run concurrently.
type FileHook func(ctx context.Context, w format.FileWriter) error

// WriteOptions configures a Writer.
type WriteOptions struct {
	// Store receives the files. Required.
	Store blobstore.Store
	// Format encodes the files. Required.
	Format format.Format

	// BaseDir is the root of the dataset.
	BaseDir string
	// BasenameTemplate names files; Token is replaced by a per-directory
	// counter. Empty means "part-{i}" plus the format extension.
	BasenameTemplate string

	// MaxOpenFiles bounds the number of concurrently open files.
	MaxOpenFiles int
	// MaxRowsPerFile rotates files at this many rows, 0 means unbounded.
	MaxRowsPerFile int64
	// MinRowsPerGroup is the smallest row group written, except for the
	// final group of a file.
	MinRowsPerGroup int64
	// MaxRowsPerGroup is the largest row group written.
	MaxRowsPerGroup int64
	// MaxRowsQueued bounds the rows accepted but not yet written.
	MaxRowsQueued int64
	// MaxBytesStaged flushes under-sized groups early once the approximate
	// bytes staged exceed it, 0 disables the check.
	MaxBytesStaged int64
	// MaxRowsPerSecond limits the rate of rows handed to file writers,
	// 0 means unlimited.
	MaxRowsPerSecond float64
	// MaxBytesPerSecond limits the bytes written to the store, 0 means
	// unlimited.
	MaxBytesPerSecond int64

	ExistingDataBehavior ExistingDataBehavior
	// CreateDir creates every directory before writing to it.
	CreateDir bool

	PreFinish  FileHook
	PostFinish FileHook

	// Executor runs the I/O. Defaults to an inline executor.
	Executor executor.Executor
	Logger   *slog.Logger
	Observer Observer
	Tracer   trace.Tracer
}

// DefaultWriteOptions returns options with the default limits. Store and
// Format still have to be set.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{
		MaxOpenFiles:         900,
		MaxRowsPerGroup:      1 << 20,
		MaxRowsQueued:        64 << 20,
		ExistingDataBehavior: ErrorIfExists,
		CreateDir:            true,
	}
}

// Validate reports configuration errors. They all wrap ErrInvalidOptions.
func (o *WriteOptions) Validate() error {
	if o.Store == nil {
		return invalidf("must provide a store")
	}
	if o.Format == nil {
		return invalidf("must provide a format")
	}
	if err := ValidateBasenameTemplate(o.basenameTemplate()); err != nil {
		return err
	}
	if o.MaxRowsPerGroup <= 0 {
		return invalidf("max rows per group must be a positive number")
	}
	if o.MinRowsPerGroup < 0 {
		return invalidf("min rows per group must not be negative")
	}
	if o.MaxRowsPerGroup < o.MinRowsPerGroup {
		return invalidf("min rows per group must be less than or equal to max rows per group")
	}
	if o.MaxRowsPerFile < 0 {
		return invalidf("max rows per file must not be negative")
	}
	if o.MaxRowsPerFile > 0 && o.MaxRowsPerFile < o.MaxRowsPerGroup {
		return invalidf("max rows per group must be less than or equal to max rows per file")
	}
	if o.MaxOpenFiles <= 0 {
		return invalidf("max open files must be a positive number")
	}
	if o.MaxRowsQueued <= 0 {
		return invalidf("max rows queued must be a positive number")
	}
	if o.MaxRowsPerSecond < 0 || o.MaxBytesPerSecond < 0 || o.MaxBytesStaged < 0 {
		return invalidf("limits must not be negative")
	}
	return nil
}

// EnsureDestinationValid fails with ErrDestinationNotEmpty when existing
// data is an error and BaseDir holds files. A missing directory is valid.
func EnsureDestinationValid(ctx context.Context, o *WriteOptions) error {
	if o.ExistingDataBehavior != ErrorIfExists {
		return nil
	}

	files, err := o.Store.List(ctx, o.BaseDir)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("dataset: inspect %s: %w", o.BaseDir, err)
	}
	if len(files) > 0 {
		return &ErrDestinationNotEmpty{Dir: o.BaseDir}
	}
	return nil
}

func (o *WriteOptions) basenameTemplate() string {
	if o.BasenameTemplate != "" {
		return o.BasenameTemplate
	}
	ext := ""
	if o.Format != nil {
		ext = o.Format.Extension()
	}
	return "part-" + Token + ext
}

// maxRowsStaged is the staged row count above which the minimum group size
// is ignored. It is a quarter of the rows-in-flight budget, or the whole
// budget when that is under 4 rows.
func maxRowsStaged(maxRowsQueued int64) int64 {
	if maxRowsQueued < 4 {
		return maxRowsQueued
	}
	return min(1<<23, maxRowsQueued/4)
}
