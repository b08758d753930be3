package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hupe1980/rowsink/blobstore"
	"github.com/hupe1980/rowsink/executor"
	"github.com/hupe1980/rowsink/format"
	"github.com/hupe1980/rowsink/future"
	ifs "github.com/hupe1980/rowsink/internal/fs"
	"github.com/hupe1980/rowsink/scheduler"
	"github.com/hupe1980/rowsink/testutil"
)

func writeRows(t *testing.T, w *Writer, rng *testutil.RNG, rows int, dir string) *future.Future {
	t.Helper()

	rec := rng.Batch(rows)
	defer rec.Release()

	return w.WriteBatch(rec, dir, "")
}

func TestWriter_GroupAssembly(t *testing.T) {
	rf := newRecordingFormat()
	o := testOptions(blobstore.NewMemoryStore(), rf)
	o.MinRowsPerGroup = 10
	o.MaxRowsPerGroup = 10

	w, root := newTestWriter(t, o)
	rng := testutil.NewRNG(1)

	for i := range 3 {
		require.NoError(t, waitFuture(t, writeRows(t, w, rng, 3, "")))
		assert.Empty(t, rf.Groups("out/part-0.txt"), "push %d", i)
	}
	assert.Equal(t, int64(9), w.StagedRows())

	require.NoError(t, waitFuture(t, writeRows(t, w, rng, 3, "")))
	assert.Equal(t, []int64{10}, rf.Groups("out/part-0.txt"))
	assert.Equal(t, int64(2), w.StagedRows())

	require.NoError(t, finishAndWait(t, w, root))
	assert.Equal(t, []int64{10, 2}, rf.Groups("out/part-0.txt"))
	assert.Equal(t, int64(0), w.StagedRows())
	assert.Equal(t, int64(0), w.StagedBytes())
}

func TestWriter_MinRowsPerGroup(t *testing.T) {
	rf := newRecordingFormat()
	o := testOptions(blobstore.NewMemoryStore(), rf)
	o.MinRowsPerGroup = 5
	o.MaxRowsPerGroup = 10

	w, root := newTestWriter(t, o)
	rng := testutil.NewRNG(1)

	for range 4 {
		require.NoError(t, waitFuture(t, writeRows(t, w, rng, 3, "")))
	}
	require.NoError(t, finishAndWait(t, w, root))

	assert.Equal(t, []int64{6, 6}, rf.Groups("out/part-0.txt"))
}

func TestWriter_MinRowsPerGroupWithTinyRowsQueued(t *testing.T) {
	rf := newRecordingFormat()
	o := testOptions(blobstore.NewMemoryStore(), rf)
	o.MaxRowsQueued = 3
	o.MinRowsPerGroup = 3
	o.MaxRowsPerGroup = 3

	w, root := newTestWriter(t, o)
	rng := testutil.NewRNG(1)

	for range 2 {
		require.NoError(t, waitFuture(t, writeRows(t, w, rng, 1, "")))
	}
	assert.Empty(t, rf.Groups("out/part-0.txt"))

	require.NoError(t, waitFuture(t, writeRows(t, w, rng, 1, "")))
	assert.Equal(t, []int64{3}, rf.Groups("out/part-0.txt"))

	require.NoError(t, finishAndWait(t, w, root))
}

func TestWriter_SplitsLargeBatchIntoGroups(t *testing.T) {
	rf := newRecordingFormat()
	o := testOptions(blobstore.NewMemoryStore(), rf)
	o.MaxRowsPerGroup = 4

	w, root := newTestWriter(t, o)

	require.NoError(t, waitFuture(t, writeRows(t, w, testutil.NewRNG(1), 10, "")))
	require.NoError(t, finishAndWait(t, w, root))

	assert.Equal(t, []int64{4, 4, 2}, rf.Groups("out/part-0.txt"))
}

func TestWriter_MaxRowsPerFile(t *testing.T) {
	rf := newRecordingFormat()
	o := testOptions(blobstore.NewMemoryStore(), rf)
	o.MaxRowsPerFile = 100
	o.MaxRowsPerGroup = 100

	w, root := newTestWriter(t, o)

	require.NoError(t, waitFuture(t, writeRows(t, w, testutil.NewRNG(1), 250, "")))
	require.NoError(t, finishAndWait(t, w, root))

	assert.Equal(t, []string{"out/part-0.txt", "out/part-1.txt", "out/part-2.txt"}, rf.Paths())
	assert.Equal(t, []int64{100}, rf.Groups("out/part-0.txt"))
	assert.Equal(t, []int64{100}, rf.Groups("out/part-1.txt"))
	assert.Equal(t, []int64{50}, rf.Groups("out/part-2.txt"))
}

func TestWriter_RotatesAcrossBatches(t *testing.T) {
	rf := newRecordingFormat()
	o := testOptions(blobstore.NewMemoryStore(), rf)
	o.MaxRowsPerFile = 10
	o.MaxRowsPerGroup = 10
	o.BasenameTemplate = "chunk_{i}.txt"

	w, root := newTestWriter(t, o)
	rng := testutil.NewRNG(1)

	for range 3 {
		require.NoError(t, waitFuture(t, writeRows(t, w, rng, 7, "")))
	}
	require.NoError(t, finishAndWait(t, w, root))

	assert.Equal(t, []string{"out/chunk_0.txt", "out/chunk_1.txt", "out/chunk_2.txt"}, rf.Paths())
	assert.Equal(t, []int64{7, 3}, rf.Groups("out/chunk_0.txt"))
	assert.Equal(t, []int64{4, 6}, rf.Groups("out/chunk_1.txt"))
	assert.Equal(t, []int64{1}, rf.Groups("out/chunk_2.txt"))
}

func TestWriter_IPCRoundTrip(t *testing.T) {
	store := blobstore.NewMemoryStore()
	o := testOptions(store, format.IPC())
	o.MaxRowsPerFile = 100
	o.MaxRowsPerGroup = 40
	o.MinRowsPerGroup = 40

	w, root := newTestWriter(t, o)

	rec := testutil.Sequence(0, 250)
	require.NoError(t, waitFuture(t, w.WriteBatch(rec, "", "")))
	rec.Release()
	require.NoError(t, finishAndWait(t, w, root))

	var ids []int64
	for i, want := range []int64{100, 100, 50} {
		data, err := blobstore.ReadAll(context.Background(), store, fmt.Sprintf("out/part-%d.arrow", i))
		require.NoError(t, err)

		r, err := ipc.NewFileReader(bytes.NewReader(data))
		require.NoError(t, err)

		var rows int64
		for j := range r.NumRecords() {
			batch, err := r.Record(j)
			require.NoError(t, err)
			assert.LessOrEqual(t, batch.NumRows(), int64(40))
			rows += batch.NumRows()
			ids = append(ids, testutil.IDs(batch)...)
		}
		require.NoError(t, r.Close())
		assert.Equal(t, want, rows)
	}

	require.Len(t, ids, 250)
	for i, id := range ids {
		require.Equal(t, int64(i), id)
	}
}

func TestWriter_DirectoriesAndPrefixes(t *testing.T) {
	rf := newRecordingFormat()
	store := blobstore.NewMemoryStore()
	o := testOptions(store, rf)

	w, root := newTestWriter(t, o)
	rng := testutil.NewRNG(1)

	rec := rng.Batch(5)
	require.NoError(t, waitFuture(t, w.WriteBatch(rec, "year=2024", "a-")))
	require.NoError(t, waitFuture(t, w.WriteBatch(rec, "year=2024", "b-")))
	require.NoError(t, waitFuture(t, w.WriteBatch(rec, "year=2025", "a-")))
	rec.Release()

	require.NoError(t, finishAndWait(t, w, root))

	assert.Equal(t, []string{
		"out/year=2024/a-part-0.txt",
		"out/year=2024/b-part-0.txt",
		"out/year=2025/a-part-0.txt",
	}, store.Names())
}

func TestWriter_OpenFilesThrottle(t *testing.T) {
	rf := newRecordingFormat()
	obs := &eventObserver{}
	o := testOptions(blobstore.NewMemoryStore(), rf)
	o.MaxOpenFiles = 1
	o.Observer = obs

	w, root := newTestWriter(t, o)
	rng := testutil.NewRNG(1)

	require.NoError(t, waitFuture(t, writeRows(t, w, rng, 10, "a")))
	assert.Equal(t, []string{"open out/a/part-0.txt"}, obs.Events())

	// The second directory can only open its file once the first one closed.
	require.NoError(t, waitFuture(t, writeRows(t, w, rng, 10, "b")))
	assert.Equal(t, []string{
		"open out/a/part-0.txt",
		"close out/a/part-0.txt",
		"open out/b/part-0.txt",
	}, obs.Events())

	require.NoError(t, finishAndWait(t, w, root))
	assert.Equal(t, "close out/b/part-0.txt", obs.Events()[3])
}

func TestWriter_RowsInFlightBackpressure(t *testing.T) {
	rf := newRecordingFormat()
	rf.block = make(chan struct{})

	pool := executor.NewPool(2)
	defer pool.Close()

	stats := &BasicObserver{}
	o := testOptions(blobstore.NewMemoryStore(), rf)
	o.MaxRowsQueued = 10
	o.MaxRowsPerGroup = 10
	o.Executor = pool
	o.Observer = stats

	w, root := newTestWriter(t, o)
	rng := testutil.NewRNG(1)

	require.NoError(t, waitFuture(t, writeRows(t, w, rng, 10, "")))

	pending := writeRows(t, w, rng, 5, "")
	assert.False(t, pending.IsDone())
	assert.Equal(t, int64(1), stats.Stats().RowsInFlightWaits)

	close(rf.block)
	require.NoError(t, waitFuture(t, pending))
	require.NoError(t, finishAndWait(t, w, root))

	assert.Equal(t, []int64{10, 5}, rf.Groups("out/part-0.txt"))
	assert.Equal(t, int64(15), stats.Stats().RowsWritten)
}

func TestWriter_AbandonedWhileWaiting(t *testing.T) {
	rf := newRecordingFormat()
	rf.block = make(chan struct{})

	pool := executor.NewPool(1)
	defer pool.Close()

	o := testOptions(blobstore.NewMemoryStore(), rf)
	o.MaxRowsQueued = 10
	o.MaxRowsPerGroup = 10
	o.Executor = pool

	w, root := newTestWriter(t, o)
	rng := testutil.NewRNG(1)

	require.NoError(t, waitFuture(t, writeRows(t, w, rng, 10, "")))
	pending := writeRows(t, w, rng, 5, "")

	errBoom := errors.New("boom")
	root.AddSimpleTask("boom", func(context.Context) *future.Future { return future.Failed(errBoom) })

	err := waitFuture(t, pending)
	assert.ErrorIs(t, err, errBoom)

	close(rf.block)
	assert.ErrorIs(t, finishAndWait(t, w, root), errBoom)
}

func TestWriter_ChunksLargerThanRowsQueued(t *testing.T) {
	rf := newRecordingFormat()
	o := testOptions(blobstore.NewMemoryStore(), rf)
	o.MaxRowsQueued = 100
	o.MaxRowsPerGroup = 50

	w, root := newTestWriter(t, o)

	require.NoError(t, waitFuture(t, writeRows(t, w, testutil.NewRNG(1), 250, "")))
	require.NoError(t, finishAndWait(t, w, root))

	assert.Equal(t, []int64{50, 50, 50, 50, 50}, rf.Groups("out/part-0.txt"))
	assert.Equal(t, 100, w.state.rowsInFlight.Available())
}

func TestWriter_ChunksLargerThanRowsQueuedOnPool(t *testing.T) {
	rf := newRecordingFormat()
	pool := executor.NewPool(2)
	defer pool.Close()

	o := testOptions(blobstore.NewMemoryStore(), rf)
	o.MaxRowsQueued = 30
	o.MaxRowsPerGroup = 20
	o.MaxRowsPerFile = 100
	o.Executor = pool

	w, root := newTestWriter(t, o)
	rng := testutil.NewRNG(1)

	for range 3 {
		require.NoError(t, waitFuture(t, writeRows(t, w, rng, 70, "")))
	}
	require.NoError(t, finishAndWait(t, w, root))

	var total int64
	for _, p := range rf.Paths() {
		for _, g := range rf.Groups(p) {
			assert.LessOrEqual(t, g, int64(20))
			total += g
		}
	}
	assert.Equal(t, int64(210), total)
	assert.Equal(t, 30, w.state.rowsInFlight.Available())
}

func TestWriter_RefusedProducerFlushesStagedRows(t *testing.T) {
	rf := newRecordingFormat()
	stats := &BasicObserver{}
	o := testOptions(blobstore.NewMemoryStore(), rf)
	o.MaxRowsQueued = 100
	o.MinRowsPerGroup = 50
	o.MaxRowsPerGroup = 100
	o.Observer = stats

	w, root := newTestWriter(t, o)
	rng := testutil.NewRNG(1)

	require.NoError(t, waitFuture(t, writeRows(t, w, rng, 20, "")))
	assert.Equal(t, int64(20), w.StagedRows())
	assert.Empty(t, rf.Groups("out/part-0.txt"))

	require.NoError(t, waitFuture(t, writeRows(t, w, rng, 90, "")))
	assert.Equal(t, int64(1), stats.Stats().RowsInFlightWaits)
	assert.Equal(t, []int64{20, 90}, rf.Groups("out/part-0.txt"))

	require.NoError(t, finishAndWait(t, w, root))
	assert.Equal(t, 100, w.state.rowsInFlight.Available())
}

func TestWriter_RefusedProducerFlushesOtherFiles(t *testing.T) {
	rf := newRecordingFormat()
	pool := executor.NewPool(2)
	defer pool.Close()

	o := testOptions(blobstore.NewMemoryStore(), rf)
	o.MaxRowsQueued = 100
	o.MinRowsPerGroup = 50
	o.MaxRowsPerGroup = 100
	o.Executor = pool

	w, root := newTestWriter(t, o)
	rng := testutil.NewRNG(1)

	// 20 rows stay below both the minimum and the staging ceiling of 25.
	require.NoError(t, waitFuture(t, writeRows(t, w, rng, 20, "a")))
	assert.Empty(t, rf.Groups("out/a/part-0.txt"))

	require.NoError(t, waitFuture(t, writeRows(t, w, rng, 90, "b")))
	assert.Equal(t, []int64{20}, rf.Groups("out/a/part-0.txt"))

	require.NoError(t, finishAndWait(t, w, root))
	assert.Equal(t, []int64{20}, rf.Groups("out/a/part-0.txt"))
	assert.Equal(t, []int64{90}, rf.Groups("out/b/part-0.txt"))
}

func TestWriter_AbortReleasesQueuedGroups(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	rf := newRecordingFormat()
	rf.block = make(chan struct{})

	pool := executor.NewPool(1)
	defer pool.Close()

	o := testOptions(blobstore.NewMemoryStore(), rf)
	o.MaxRowsQueued = 100
	o.MaxRowsPerGroup = 10
	o.Executor = pool

	w, root := newTestWriter(t, o)

	rec := testutil.SequenceWith(mem, 0, 30)
	require.NoError(t, waitFuture(t, w.WriteBatch(rec, "", "")))
	rec.Release()

	errBoom := errors.New("boom")
	root.AddSimpleTask("boom", func(context.Context) *future.Future { return future.Failed(errBoom) })

	close(rf.block)
	assert.ErrorIs(t, finishAndWait(t, w, root), errBoom)

	assert.LessOrEqual(t, len(rf.Groups("out/part-0.txt")), 1)
	assert.Equal(t, 100, w.state.rowsInFlight.Available())
}

func TestWriter_CloseWithoutFinish(t *testing.T) {
	rf := newRecordingFormat()
	o := testOptions(blobstore.NewMemoryStore(), rf)
	o.MinRowsPerGroup = 10

	w, root := newTestWriter(t, o)
	require.NoError(t, waitFuture(t, writeRows(t, w, testutil.NewRNG(1), 5, "")))

	closed := make(chan error, 1)
	go func() { closed <- root.Close() }()

	select {
	case err := <-closed:
		assert.ErrorIs(t, err, scheduler.ErrAbandoned)
	case <-time.After(5 * time.Second):
		t.Fatal("root Close blocked on the open file")
	}
}

func TestWriter_ConcurrentProducers(t *testing.T) {
	rf := newRecordingFormat()
	pool := executor.NewPool(4)
	defer pool.Close()

	o := testOptions(blobstore.NewMemoryStore(), rf)
	o.MaxRowsQueued = 64
	o.MaxOpenFiles = 2
	o.MaxRowsPerFile = 50
	o.MinRowsPerGroup = 10
	o.MaxRowsPerGroup = 25
	o.Executor = pool

	w, root := newTestWriter(t, o)

	var (
		wg    sync.WaitGroup
		total atomic.Int64
	)
	for p := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			rng := testutil.NewRNG(int64(p))
			for range 20 {
				n := 1 + rng.Intn(30)
				rec := rng.Batch(n)
				err := w.WriteBatch(rec, fmt.Sprintf("d%d", p), "").Wait(context.Background())
				rec.Release()
				if !assert.NoError(t, err) {
					return
				}
				total.Add(int64(n))
			}
		}()
	}
	wg.Wait()

	require.NoError(t, finishAndWait(t, w, root))

	var written int64
	for _, path := range rf.Paths() {
		var fileRows int64
		for _, g := range rf.Groups(path) {
			assert.LessOrEqual(t, g, int64(25), path)
			assert.Positive(t, g, path)
			fileRows += g
		}
		assert.LessOrEqual(t, fileRows, int64(50), path)
		written += fileRows
	}
	assert.Equal(t, total.Load(), written)
}

func TestWriter_Hooks(t *testing.T) {
	pool := executor.NewPool(4)
	defer pool.Close()

	var (
		inHook   atomic.Bool
		overlaps atomic.Int64
		pre      sync.Map
		post     sync.Map
	)
	hook := func(m *sync.Map) FileHook {
		return func(_ context.Context, fw format.FileWriter) error {
			if !inHook.CompareAndSwap(false, true) {
				overlaps.Add(1)
			}
			defer inHook.Store(false)

			n, _ := m.LoadOrStore(fw.Path(), new(atomic.Int64))
			n.(*atomic.Int64).Add(1)
			return nil
		}
	}

	o := testOptions(blobstore.NewMemoryStore(), format.CSV())
	o.MaxRowsPerFile = 10
	o.MaxRowsPerGroup = 10
	o.Executor = pool
	o.PreFinish = hook(&pre)
	o.PostFinish = hook(&post)

	w, root := newTestWriter(t, o)
	rng := testutil.NewRNG(1)

	var fs []*future.Future
	for d := range 4 {
		fs = append(fs, writeRows(t, w, rng, 35, fmt.Sprintf("d%d", d)))
	}
	require.NoError(t, waitFuture(t, future.All(fs...)))
	require.NoError(t, finishAndWait(t, w, root))

	for _, m := range []*sync.Map{&pre, &post} {
		files := 0
		m.Range(func(_, v any) bool {
			files++
			assert.Equal(t, int64(1), v.(*atomic.Int64).Load())
			return true
		})
		assert.Equal(t, 16, files)
	}
	assert.Zero(t, overlaps.Load())
}

func TestWriter_PostFinishErrorFailsWrite(t *testing.T) {
	errHook := errors.New("hook")

	o := testOptions(blobstore.NewMemoryStore(), newRecordingFormat())
	o.PostFinish = func(context.Context, format.FileWriter) error { return errHook }

	w, root := newTestWriter(t, o)

	require.NoError(t, waitFuture(t, writeRows(t, w, testutil.NewRNG(1), 3, "")))
	assert.ErrorIs(t, finishAndWait(t, w, root), errHook)
}

func TestWriter_WriteErrorFailsWrite(t *testing.T) {
	rf := newRecordingFormat()
	rf.writeErr = errors.New("encode")

	o := testOptions(blobstore.NewMemoryStore(), rf)
	o.MaxRowsPerFile = 5
	o.MaxRowsPerGroup = 5

	w, root := newTestWriter(t, o)

	require.NoError(t, waitFuture(t, writeRows(t, w, testutil.NewRNG(1), 20, "")))
	assert.ErrorIs(t, finishAndWait(t, w, root), rf.writeErr)

	// The first failure cancelled the tree, later files never opened.
	assert.Equal(t, []string{"out/part-0.txt"}, rf.Paths())
}

func TestWriter_OpenFailure(t *testing.T) {
	errDisk := errors.New("disk")

	ffs := ifs.NewFaultyFS(nil)
	ffs.AddRule("part-1", ifs.Fault{FailOnOpen: true, Err: errDisk})
	store := blobstore.NewLocalStore(t.TempDir(), blobstore.WithFileSystem(ffs))

	rf := newRecordingFormat()
	o := testOptions(store, rf)
	o.MaxRowsPerFile = 10
	o.MaxRowsPerGroup = 10

	w, root := newTestWriter(t, o)

	require.NoError(t, waitFuture(t, writeRows(t, w, testutil.NewRNG(1), 25, "")))
	assert.ErrorIs(t, finishAndWait(t, w, root), errDisk)
	assert.Equal(t, []string{"out/part-0.txt"}, rf.Paths())
}

func TestWriter_CreateDirFailure(t *testing.T) {
	errDisk := errors.New("disk")

	ffs := ifs.NewFaultyFS(nil)
	ffs.AddRule("out", ifs.Fault{FailOnMkdir: true, Err: errDisk})
	store := blobstore.NewLocalStore(t.TempDir(), blobstore.WithFileSystem(ffs))

	rf := newRecordingFormat()
	w, root := newTestWriter(t, testOptions(store, rf))

	require.NoError(t, waitFuture(t, writeRows(t, w, testutil.NewRNG(1), 5, "")))
	assert.ErrorIs(t, finishAndWait(t, w, root), errDisk)
	assert.Empty(t, rf.Paths(), "no file may be opened before its directory exists")
}

func TestWriter_ExistingData(t *testing.T) {
	ctx := context.Background()

	t.Run("error", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		store.Put("out/old.txt", []byte("x"))

		_, err := NewWriter(ctx, scheduler.New(ctx), testOptions(store, newRecordingFormat()))

		var ne *ErrDestinationNotEmpty
		require.ErrorAs(t, err, &ne)
		assert.Equal(t, "out", ne.Dir)
		assert.ErrorIs(t, err, ErrInvalidOptions)
	})

	t.Run("missing dir", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		store.Put("elsewhere/old.txt", []byte("x"))

		_, err := NewWriter(ctx, scheduler.New(ctx), testOptions(store, newRecordingFormat()))
		assert.NoError(t, err)
	})

	for _, tt := range []struct {
		behavior ExistingDataBehavior
		want     []string
	}{
		{DeleteMatching, []string{"out/part-0.txt"}},
		{OverwriteOrIgnore, []string{"out/old.txt", "out/part-0.txt"}},
	} {
		t.Run(tt.behavior.String(), func(t *testing.T) {
			store := blobstore.NewMemoryStore()
			store.Put("out/old.txt", []byte("x"))

			o := testOptions(store, newRecordingFormat())
			o.ExistingDataBehavior = tt.behavior

			w, root := newTestWriter(t, o)
			require.NoError(t, waitFuture(t, writeRows(t, w, testutil.NewRNG(1), 5, "")))
			require.NoError(t, finishAndWait(t, w, root))

			assert.Equal(t, tt.want, store.Names())
		})
	}
}

func TestWriter_Finished(t *testing.T) {
	w, root := newTestWriter(t, testOptions(blobstore.NewMemoryStore(), newRecordingFormat()))
	require.NoError(t, finishAndWait(t, w, root))

	assert.ErrorIs(t, w.Finish(), ErrWriterFinished)
	assert.ErrorIs(t, writeRows(t, w, testutil.NewRNG(1), 1, "").Err(), ErrWriterFinished)

	// Empty batches are a no-op, even after Finish.
	rec := testutil.Sequence(0, 0)
	defer rec.Release()
	assert.NoError(t, w.WriteBatch(rec, "", "").Err())
}

func TestWriter_Tracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	o := testOptions(blobstore.NewMemoryStore(), newRecordingFormat())
	o.MaxRowsPerFile = 10
	o.MaxRowsPerGroup = 10
	o.Tracer = tp.Tracer("test")

	w, root := newTestWriter(t, o)
	require.NoError(t, waitFuture(t, writeRows(t, w, testutil.NewRNG(1), 25, "")))
	require.NoError(t, finishAndWait(t, w, root))
	require.NoError(t, tp.Shutdown(context.Background()))

	names := map[string]int{}
	for _, s := range sr.Ended() {
		names[s.Name()]++
	}
	assert.Equal(t, map[string]int{"dataset.file": 3, "dataset.prepare_directory": 1}, names)
}

func TestWriteOptions_Validate(t *testing.T) {
	store := blobstore.NewMemoryStore()
	valid := func() WriteOptions { return testOptions(store, newRecordingFormat()) }

	tests := []struct {
		name   string
		mutate func(*WriteOptions)
	}{
		{"no store", func(o *WriteOptions) { o.Store = nil }},
		{"no format", func(o *WriteOptions) { o.Format = nil }},
		{"template without token", func(o *WriteOptions) { o.BasenameTemplate = "part.txt" }},
		{"template with separator", func(o *WriteOptions) { o.BasenameTemplate = "a/{i}.txt" }},
		{"zero max group", func(o *WriteOptions) { o.MaxRowsPerGroup = 0 }},
		{"min above max", func(o *WriteOptions) { o.MinRowsPerGroup = o.MaxRowsPerGroup + 1 }},
		{"group above file", func(o *WriteOptions) { o.MaxRowsPerFile = 10; o.MaxRowsPerGroup = 11 }},
		{"no open files", func(o *WriteOptions) { o.MaxOpenFiles = 0 }},
		{"no rows queued", func(o *WriteOptions) { o.MaxRowsQueued = 0 }},
		{"negative rate", func(o *WriteOptions) { o.MaxRowsPerSecond = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := valid()
			tt.mutate(&o)
			assert.ErrorIs(t, o.Validate(), ErrInvalidOptions)
		})
	}

	o := valid()
	assert.NoError(t, o.Validate())
	assert.Equal(t, "part-{i}.txt", o.basenameTemplate())
}

func TestParseExistingDataBehavior(t *testing.T) {
	for _, b := range []ExistingDataBehavior{ErrorIfExists, OverwriteOrIgnore, DeleteMatching} {
		got, err := ParseExistingDataBehavior(b.String())
		require.NoError(t, err)
		assert.Equal(t, b, got)
	}

	_, err := ParseExistingDataBehavior("append")
	assert.ErrorIs(t, err, ErrInvalidOptions)
}
