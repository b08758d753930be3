package dataset

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Backpressure names the throttle that made a producer wait.
type Backpressure int

const (
	// RowsInFlight is the throttle bounding rows not yet written.
	RowsInFlight Backpressure = iota
	// OpenFiles is the throttle bounding open files.
	OpenFiles
)

func (b Backpressure) String() string {
	switch b {
	case RowsInFlight:
		return "rows_in_flight"
	case OpenFiles:
		return "open_files"
	default:
		return fmt.Sprintf("Backpressure(%d)", int(b))
	}
}

// Observer receives write events. Implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	FileOpened(path string)
	FileClosed(path string, rows int64)
	GroupWritten(path string, rows int64, d time.Duration)
	Backpressure(kind Backpressure)
}

// NoopObserver ignores all events.
type NoopObserver struct{}

func (NoopObserver) FileOpened(string)                         {}
func (NoopObserver) FileClosed(string, int64)                  {}
func (NoopObserver) GroupWritten(string, int64, time.Duration) {}
func (NoopObserver) Backpressure(Backpressure)                 {}

// BasicObserver counts events with atomics.
type BasicObserver struct {
	filesOpened   atomic.Int64
	filesClosed   atomic.Int64
	groups        atomic.Int64
	rowsWritten   atomic.Int64
	writeNanos    atomic.Int64
	rowsWaits     atomic.Int64
	openFileWaits atomic.Int64
	openFiles     atomic.Int64
	maxOpenFiles  atomic.Int64
}

func (o *BasicObserver) FileOpened(string) {
	o.filesOpened.Add(1)

	n := o.openFiles.Add(1)
	for {
		cur := o.maxOpenFiles.Load()
		if n <= cur || o.maxOpenFiles.CompareAndSwap(cur, n) {
			return
		}
	}
}

func (o *BasicObserver) FileClosed(string, int64) {
	o.filesClosed.Add(1)
	o.openFiles.Add(-1)
}

func (o *BasicObserver) GroupWritten(_ string, rows int64, d time.Duration) {
	o.groups.Add(1)
	o.rowsWritten.Add(rows)
	o.writeNanos.Add(int64(d))
}

func (o *BasicObserver) Backpressure(kind Backpressure) {
	switch kind {
	case RowsInFlight:
		o.rowsWaits.Add(1)
	case OpenFiles:
		o.openFileWaits.Add(1)
	}
}

// Stats is a snapshot of a BasicObserver.
type Stats struct {
	FilesOpened       int64
	FilesClosed       int64
	GroupsWritten     int64
	RowsWritten       int64
	WriteTime         time.Duration
	RowsInFlightWaits int64
	OpenFilesWaits    int64
	MaxOpenFiles      int64
}

// Stats returns the current counters.
func (o *BasicObserver) Stats() Stats {
	return Stats{
		FilesOpened:       o.filesOpened.Load(),
		FilesClosed:       o.filesClosed.Load(),
		GroupsWritten:     o.groups.Load(),
		RowsWritten:       o.rowsWritten.Load(),
		WriteTime:         time.Duration(o.writeNanos.Load()),
		RowsInFlightWaits: o.rowsWaits.Load(),
		OpenFilesWaits:    o.openFileWaits.Load(),
		MaxOpenFiles:      o.maxOpenFiles.Load(),
	}
}
