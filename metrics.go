package rowsink

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting write metrics.
// Implement this interface to integrate with monitoring systems; the
// metrics/prometheus package ships one.
//
// Per file and per row group events are reported to a dataset.Observer,
// see WithObserver.
type MetricsCollector interface {
	// RecordWrite is called once per Write call.
	// files and rows count what was written, err is nil if successful.
	RecordWrite(files int, rows int64, duration time.Duration, err error)

	// RecordCommit is called after each manifest commit.
	RecordCommit(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordWrite(int, int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordCommit(time.Duration, error)            {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	WriteCount       atomic.Int64
	WriteErrors      atomic.Int64
	WriteTotalNanos  atomic.Int64
	FilesWritten     atomic.Int64
	RowsWritten      atomic.Int64
	CommitCount      atomic.Int64
	CommitErrors     atomic.Int64
	CommitTotalNanos atomic.Int64
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(files int, rows int64, duration time.Duration, err error) {
	b.WriteCount.Add(1)
	b.WriteTotalNanos.Add(duration.Nanoseconds())
	b.FilesWritten.Add(int64(files))
	b.RowsWritten.Add(rows)
	if err != nil {
		b.WriteErrors.Add(1)
	}
}

// RecordCommit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCommit(duration time.Duration, err error) {
	b.CommitCount.Add(1)
	b.CommitTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.CommitErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		WriteCount:     b.WriteCount.Load(),
		WriteErrors:    b.WriteErrors.Load(),
		WriteAvgNanos:  avg(b.WriteTotalNanos.Load(), b.WriteCount.Load()),
		FilesWritten:   b.FilesWritten.Load(),
		RowsWritten:    b.RowsWritten.Load(),
		CommitCount:    b.CommitCount.Load(),
		CommitErrors:   b.CommitErrors.Load(),
		CommitAvgNanos: avg(b.CommitTotalNanos.Load(), b.CommitCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	WriteCount     int64
	WriteErrors    int64
	WriteAvgNanos  int64
	FilesWritten   int64
	RowsWritten    int64
	CommitCount    int64
	CommitErrors   int64
	CommitAvgNanos int64
}
