package rowsink

import (
	"runtime"

	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/rowsink/blobstore"
	"github.com/hupe1980/rowsink/dataset"
	"github.com/hupe1980/rowsink/format"
	"github.com/hupe1980/rowsink/manifest"
)

type options struct {
	write       dataset.WriteOptions
	workers     int
	partitioner Partitioner
	committer   manifest.Committer
	metrics     MetricsCollector
	logger      *Logger
	writeID     string
}

// Option configures Write.
type Option func(*options)

func defaultOptions() options {
	w := dataset.DefaultWriteOptions()
	w.Format = format.Parquet()

	return options{
		write:   w,
		workers: runtime.GOMAXPROCS(0),
		metrics: NoopMetricsCollector{},
		logger:  NoopLogger(),
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithStore sets the destination store. Required.
func WithStore(s blobstore.Store) Option {
	return func(o *options) {
		o.write.Store = s
	}
}

// WithFormat sets the file format. The default is Parquet.
func WithFormat(f format.Format) Option {
	return func(o *options) {
		o.write.Format = f
	}
}

// WithBaseDir sets the dataset root inside the store.
func WithBaseDir(dir string) Option {
	return func(o *options) {
		o.write.BaseDir = dir
	}
}

// WithBasenameTemplate sets the file name template. It must contain
// dataset.Token exactly once.
func WithBasenameTemplate(tmpl string) Option {
	return func(o *options) {
		o.write.BasenameTemplate = tmpl
	}
}

// WithMaxOpenFiles bounds the number of files open at once.
func WithMaxOpenFiles(n int) Option {
	return func(o *options) {
		o.write.MaxOpenFiles = n
	}
}

// WithMaxRowsPerFile rotates files after n rows. Zero disables rotation.
func WithMaxRowsPerFile(n int64) Option {
	return func(o *options) {
		o.write.MaxRowsPerFile = n
	}
}

// WithRowsPerGroup sets the row group bounds. Groups smaller than minRows
// are only written at the end of a file or when too many rows are staged.
func WithRowsPerGroup(minRows, maxRows int64) Option {
	return func(o *options) {
		o.write.MinRowsPerGroup = minRows
		o.write.MaxRowsPerGroup = maxRows
	}
}

// WithExistingDataBehavior sets how data already in the destination is
// treated.
func WithExistingDataBehavior(b dataset.ExistingDataBehavior) Option {
	return func(o *options) {
		o.write.ExistingDataBehavior = b
	}
}

// WithCreateDir controls whether directories are created before writing.
func WithCreateDir(create bool) Option {
	return func(o *options) {
		o.write.CreateDir = create
	}
}

// WithMaxRowsQueued bounds the rows accepted but not yet written.
func WithMaxRowsQueued(n int64) Option {
	return func(o *options) {
		o.write.MaxRowsQueued = n
	}
}

// WithMaxBytesStaged flushes under-sized row groups once the staged rows
// hold about n bytes.
func WithMaxBytesStaged(n int64) Option {
	return func(o *options) {
		o.write.MaxBytesStaged = n
	}
}

// WithMaxRowsPerSecond limits the write rate in rows.
func WithMaxRowsPerSecond(rps float64) Option {
	return func(o *options) {
		o.write.MaxRowsPerSecond = rps
	}
}

// WithMaxBytesPerSecond limits the write rate in bytes.
func WithMaxBytesPerSecond(bps int64) Option {
	return func(o *options) {
		o.write.MaxBytesPerSecond = bps
	}
}

// WithPreFinish registers a hook that runs before every file is finished.
func WithPreFinish(h dataset.FileHook) Option {
	return func(o *options) {
		o.write.PreFinish = h
	}
}

// WithWorkers sets the number of I/O workers. The default is GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithLogger sets the logger. If nil, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithObserver receives per file and per row group events.
func WithObserver(obs dataset.Observer) Option {
	return func(o *options) {
		o.write.Observer = obs
	}
}

// WithMetricsCollector receives per write metrics.
func WithMetricsCollector(m MetricsCollector) Option {
	return func(o *options) {
		if m == nil {
			m = NoopMetricsCollector{}
		}
		o.metrics = m
	}
}

// WithTracer sets the tracer used for file and directory spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		o.write.Tracer = t
	}
}

// WithPartitioner routes the rows of every batch to directories.
func WithPartitioner(p Partitioner) Option {
	return func(o *options) {
		o.partitioner = p
	}
}

// WithCommitter publishes a manifest after every successful write.
func WithCommitter(c manifest.Committer) Option {
	return func(o *options) {
		o.committer = c
	}
}

// WithWriteID sets the ID recorded in logs and the manifest. The default is
// a random UUID.
func WithWriteID(id string) Option {
	return func(o *options) {
		o.writeID = id
	}
}
