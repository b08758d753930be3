package rowsink

import (
	"errors"
	"fmt"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rowsink/dataset"
	"github.com/hupe1980/rowsink/scheduler"
	"github.com/hupe1980/rowsink/testutil"
)

func keyedBatch(t *testing.T, keys ...string) arrow.RecordBatch {
	t.Helper()

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "k", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "row", Type: arrow.PrimitiveTypes.Int64},
	}, nil)

	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()

	for i, k := range keys {
		if k == "" {
			b.Field(0).AppendNull()
		} else {
			b.Field(0).(*array.StringBuilder).Append(k)
		}
		b.Field(1).(*array.Int64Builder).Append(int64(i))
	}
	return b.NewRecord()
}

func rows(rec arrow.RecordBatch) []int64 {
	col := rec.Column(1).(*array.Int64)
	out := make([]int64, col.Len())
	for i := range out {
		out[i] = col.Value(i)
	}
	return out
}

func releaseParts(parts []Part) {
	for _, p := range parts {
		p.Batch.Release()
	}
}

func TestHivePartitioner(t *testing.T) {
	rec := keyedBatch(t, "b", "a", "a", "b", "", "a/x")
	defer rec.Release()

	parts, err := HivePartitioner("k").Partition(rec)
	require.NoError(t, err)
	defer releaseParts(parts)

	require.Len(t, parts, 4)

	got := map[string][]int64{}
	var order []string
	for _, p := range parts {
		order = append(order, p.Directory)
		got[p.Directory] = rows(p.Batch)
	}

	assert.Equal(t, []string{"k=b", "k=a", "k=" + HiveNullValue, "k=a%2Fx"}, order)
	assert.Equal(t, []int64{0, 3}, got["k=b"])
	assert.Equal(t, []int64{1, 2}, got["k=a"])
	assert.Equal(t, []int64{4}, got["k="+HiveNullValue])
}

func TestHivePartitioner_MultipleColumns(t *testing.T) {
	rec := keyedBatch(t, "x", "y")
	defer rec.Release()

	parts, err := HivePartitioner("k", "row").Partition(rec)
	require.NoError(t, err)
	defer releaseParts(parts)

	require.Len(t, parts, 2)
	assert.Equal(t, "k=x/row=0", parts[0].Directory)
	assert.Equal(t, "k=y/row=1", parts[1].Directory)
}

func TestHashPartitioner(t *testing.T) {
	rng := testutil.NewRNG(7)
	rec := rng.Batch(200)
	defer rec.Release()

	p := HashPartitioner("name", 4)

	parts, err := p.Partition(rec)
	require.NoError(t, err)
	defer releaseParts(parts)

	assert.LessOrEqual(t, len(parts), 4)

	var total int64
	seen := map[int64]bool{}
	for _, part := range parts {
		assert.Regexp(t, `^name_bucket=[0-3]$`, part.Directory)
		total += part.Batch.NumRows()
		for _, id := range testutil.IDs(part.Batch) {
			assert.False(t, seen[id])
			seen[id] = true
		}
	}
	assert.Equal(t, int64(200), total)

	// Deterministic across calls.
	again, err := p.Partition(rec)
	require.NoError(t, err)
	defer releaseParts(again)

	require.Len(t, again, len(parts))
	for i := range parts {
		assert.Equal(t, parts[i].Directory, again[i].Directory)
		assert.Equal(t, testutil.IDs(parts[i].Batch), testutil.IDs(again[i].Batch))
	}

	assert.Panics(t, func() { HashPartitioner("name", 0) })
}

func TestPartitioner_MissingColumn(t *testing.T) {
	rec := keyedBatch(t, "a")
	defer rec.Release()

	_, err := HivePartitioner("nope").Partition(rec)
	assert.ErrorContains(t, err, `"nope"`)

	_, err = HashPartitioner("nope", 2).Partition(rec)
	assert.Error(t, err)
}

func TestNoPartitioning(t *testing.T) {
	rec := keyedBatch(t, "a", "b")
	defer rec.Release()

	parts, err := NoPartitioning().Partition(rec)
	require.NoError(t, err)
	defer releaseParts(parts)

	require.Len(t, parts, 1)
	assert.Equal(t, "", parts[0].Directory)
	assert.Equal(t, int64(2), parts[0].Batch.NumRows())
}

func TestTranslateError(t *testing.T) {
	assert.Nil(t, translateError(nil))
	assert.ErrorIs(t, translateError(scheduler.ErrAbandoned), ErrCancelled)
	assert.ErrorIs(t, translateError(fmt.Errorf("x: %w", dataset.ErrInvalidOptions)), ErrInvalidOptions)

	errOther := errors.New("other")
	assert.Equal(t, errOther, translateError(errOther))
}
