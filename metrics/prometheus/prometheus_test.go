package prometheus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rowsink"
	"github.com/hupe1980/rowsink/blobstore"
	"github.com/hupe1980/rowsink/dataset"
	"github.com/hupe1980/rowsink/format"
	"github.com/hupe1980/rowsink/testutil"
)

func TestCollector_Events(t *testing.T) {
	c := New(prometheus.NewRegistry())

	c.FileOpened("a")
	c.FileOpened("b")
	c.GroupWritten("a", 10, time.Millisecond)
	c.FileClosed("a", 10)
	c.Backpressure(dataset.OpenFiles)
	c.RecordWrite(1, 10, time.Second, nil)
	c.RecordWrite(0, 0, time.Second, errors.New("x"))
	c.RecordCommit(time.Millisecond, nil)

	assert.Equal(t, 1.0, promtest.ToFloat64(c.openFiles))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.files))
	assert.Equal(t, 10.0, promtest.ToFloat64(c.rows))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.backpressure.WithLabelValues("open_files")))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.writes.WithLabelValues("success")))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.writes.WithLabelValues("error")))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.commits.WithLabelValues("success")))
}

func TestCollector_Write(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	recs := testutil.NewRNG(1).Batches(10, 10, 10)
	src := func(yield func(arrow.RecordBatch, error) bool) {
		for i, rec := range recs {
			if !yield(rec, nil) {
				testutil.Release(recs[i+1:]...)
				return
			}
		}
	}

	_, err := rowsink.Write(context.Background(), src,
		rowsink.WithStore(blobstore.NewMemoryStore()),
		rowsink.WithFormat(format.CSV()),
		rowsink.WithMaxRowsPerFile(20),
		rowsink.WithRowsPerGroup(0, 20),
		rowsink.WithObserver(c),
		rowsink.WithMetricsCollector(c),
	)
	require.NoError(t, err)

	assert.Equal(t, 2.0, promtest.ToFloat64(c.files))
	assert.Equal(t, 0.0, promtest.ToFloat64(c.openFiles))
	assert.Equal(t, 30.0, promtest.ToFloat64(c.rows))

	n, err := promtest.GatherAndCount(reg, "rowsink_writes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
