package testutil

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Schema is the schema of every batch produced by this package.
var Schema = arrow.NewSchema([]arrow.Field{
	{Name: "id", Type: arrow.PrimitiveTypes.Int64},
	{Name: "name", Type: arrow.BinaryTypes.String},
	{Name: "score", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
}, nil)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	next int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
	r.next = 0
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Batch returns a batch of rows random rows. Ids continue across calls so
// that every row produced by one RNG is unique; roughly one score in ten is
// null.
func (r *RNG) Batch(rows int) arrow.RecordBatch {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := array.NewRecordBuilder(memory.DefaultAllocator, Schema)
	defer b.Release()

	ids := b.Field(0).(*array.Int64Builder)
	names := b.Field(1).(*array.StringBuilder)
	scores := b.Field(2).(*array.Float64Builder)

	for range rows {
		ids.Append(r.next)
		names.Append(fmt.Sprintf("row-%d-%x", r.next, r.rand.Uint32()))
		if r.rand.Intn(10) == 0 {
			scores.AppendNull()
		} else {
			scores.Append(r.rand.Float64())
		}
		r.next++
	}

	return b.NewRecord()
}

// Batches returns one random batch per entry of sizes.
func (r *RNG) Batches(sizes ...int) []arrow.RecordBatch {
	out := make([]arrow.RecordBatch, 0, len(sizes))
	for _, n := range sizes {
		out = append(out, r.Batch(n))
	}
	return out
}

// Sequence returns a batch with ids start, start+1, ... of length rows.
func Sequence(start int64, rows int) arrow.RecordBatch {
	return SequenceWith(memory.DefaultAllocator, start, rows)
}

// SequenceWith is Sequence allocating from mem.
func SequenceWith(mem memory.Allocator, start int64, rows int) arrow.RecordBatch {
	b := array.NewRecordBuilder(mem, Schema)
	defer b.Release()

	ids := b.Field(0).(*array.Int64Builder)
	names := b.Field(1).(*array.StringBuilder)
	scores := b.Field(2).(*array.Float64Builder)

	for i := range int64(rows) {
		id := start + i
		ids.Append(id)
		names.Append(fmt.Sprintf("row-%d", id))
		scores.Append(float64(id) / 2)
	}

	return b.NewRecord()
}

// IDs returns the id column of rec.
func IDs(rec arrow.RecordBatch) []int64 {
	col := rec.Column(0).(*array.Int64)
	out := make([]int64, col.Len())
	for i := range out {
		out[i] = col.Value(i)
	}
	return out
}

// Release releases every batch.
func Release(recs ...arrow.RecordBatch) {
	for _, rec := range recs {
		rec.Release()
	}
}
