package dataset

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hupe1980/rowsink/blobstore"
	"github.com/hupe1980/rowsink/format"
	"github.com/hupe1980/rowsink/future"
	"github.com/hupe1980/rowsink/scheduler"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recordingFormat remembers the size of every row group per file and
// writes one line per group.
type recordingFormat struct {
	mu     sync.Mutex
	groups map[string][]int64
	events []string

	// block, if set, is received from before every write.
	block    chan struct{}
	writeErr error
}

func newRecordingFormat() *recordingFormat {
	return &recordingFormat{groups: make(map[string][]int64)}
}

func (f *recordingFormat) Name() string      { return "recording" }
func (f *recordingFormat) Extension() string { return ".txt" }

func (f *recordingFormat) NewWriter(out blobstore.WritableBlob, _ *arrow.Schema, path string) (format.FileWriter, error) {
	f.mu.Lock()
	f.groups[path] = []int64{}
	f.mu.Unlock()
	return &recordingWriter{f: f, out: out, path: path}, nil
}

func (f *recordingFormat) Groups(path string) []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.groups[path])
}

func (f *recordingFormat) Paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.groups))
	for p := range f.groups {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

func (f *recordingFormat) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.events)
}

func (f *recordingFormat) event(e string) {
	f.mu.Lock()
	f.events = append(f.events, e)
	f.mu.Unlock()
}

type recordingWriter struct {
	f    *recordingFormat
	out  blobstore.WritableBlob
	path string
	rows int64
}

func (w *recordingWriter) Write(_ context.Context, rec arrow.RecordBatch) error {
	if w.f.block != nil {
		<-w.f.block
	}
	if w.f.writeErr != nil {
		return w.f.writeErr
	}

	w.f.mu.Lock()
	w.f.groups[w.path] = append(w.f.groups[w.path], rec.NumRows())
	w.f.mu.Unlock()

	w.rows += rec.NumRows()
	_, err := fmt.Fprintf(w.out, "%d\n", rec.NumRows())
	return err
}

func (w *recordingWriter) Finish(context.Context) error {
	w.f.event("close " + w.path)
	return w.out.Close()
}

func (w *recordingWriter) Path() string       { return w.path }
func (w *recordingWriter) RowsWritten() int64 { return w.rows }

// eventObserver records file events in order.
type eventObserver struct {
	NoopObserver

	mu     sync.Mutex
	events []string
}

func (o *eventObserver) FileOpened(path string) {
	o.mu.Lock()
	o.events = append(o.events, "open "+path)
	o.mu.Unlock()
}

func (o *eventObserver) FileClosed(path string, _ int64) {
	o.mu.Lock()
	o.events = append(o.events, "close "+path)
	o.mu.Unlock()
}

func (o *eventObserver) Events() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.events)
}

func testOptions(store blobstore.Store, f format.Format) WriteOptions {
	o := DefaultWriteOptions()
	o.Store = store
	o.Format = f
	o.BaseDir = "out"
	return o
}

func newTestWriter(t *testing.T, o WriteOptions) (*Writer, *scheduler.Scheduler) {
	t.Helper()

	root := scheduler.New(context.Background())
	w, err := NewWriter(context.Background(), root, o)
	require.NoError(t, err)
	return w, root
}

// finishAndWait finishes w, ends root and returns the tree error.
func finishAndWait(t *testing.T, w *Writer, root *scheduler.Scheduler) error {
	t.Helper()

	require.NoError(t, w.Finish())
	root.End()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := root.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "write did not finish")
	return err
}

func waitFuture(t *testing.T, f *future.Future) error {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := f.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "future did not finish")
	return err
}
