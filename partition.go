package rowsink

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/cespare/xxhash/v2"
)

// HiveNullValue is the directory value of null keys.
const HiveNullValue = "__HIVE_DEFAULT_PARTITION__"

// Part is a slice of a batch routed to one destination.
type Part struct {
	Batch     arrow.RecordBatch
	Directory string
	Prefix    string
}

// Partitioner splits a batch into parts. The parts own a reference to their
// batch; the input batch is not released.
type Partitioner interface {
	Partition(batch arrow.RecordBatch) ([]Part, error)
}

// PartitionerFunc adapts a function to Partitioner.
type PartitionerFunc func(batch arrow.RecordBatch) ([]Part, error)

func (f PartitionerFunc) Partition(batch arrow.RecordBatch) ([]Part, error) { return f(batch) }

// NoPartitioning writes every batch to the base directory.
func NoPartitioning() Partitioner {
	return PartitionerFunc(func(batch arrow.RecordBatch) ([]Part, error) {
		batch.Retain()
		return []Part{{Batch: batch}}, nil
	})
}

// HivePartitioner routes rows to "column=value" directories, one level per
// column. Values are path escaped; nulls become HiveNullValue.
func HivePartitioner(columns ...string) Partitioner {
	return PartitionerFunc(func(batch arrow.RecordBatch) ([]Part, error) {
		cols, err := lookupColumns(batch, columns)
		if err != nil {
			return nil, err
		}

		key := func(row int) string {
			var sb strings.Builder
			for i, col := range cols {
				if i > 0 {
					sb.WriteByte('/')
				}
				sb.WriteString(columns[i])
				sb.WriteByte('=')
				if col.IsNull(row) {
					sb.WriteString(HiveNullValue)
				} else {
					sb.WriteString(url.PathEscape(col.ValueStr(row)))
				}
			}
			return sb.String()
		}

		return splitBy(batch, key, func(k string) Part { return Part{Directory: k} })
	})
}

// HashPartitioner spreads rows over buckets by the xxhash of column. Bucket
// b is written to the directory "column_bucket=b".
func HashPartitioner(column string, buckets int) Partitioner {
	if buckets <= 0 {
		panic("rowsink: hash partitioner needs at least one bucket")
	}

	return PartitionerFunc(func(batch arrow.RecordBatch) ([]Part, error) {
		cols, err := lookupColumns(batch, []string{column})
		if err != nil {
			return nil, err
		}
		col := cols[0]

		key := func(row int) string {
			// Nulls hash like their string form, so they share a bucket.
			h := xxhash.Sum64String(col.ValueStr(row))
			return strconv.FormatUint(h%uint64(buckets), 10)
		}

		return splitBy(batch, key, func(k string) Part {
			return Part{Directory: column + "_bucket=" + k}
		})
	})
}

func lookupColumns(batch arrow.RecordBatch, names []string) ([]arrow.Array, error) {
	cols := make([]arrow.Array, len(names))
	for i, name := range names {
		idx := batch.Schema().FieldIndices(name)
		if len(idx) == 0 {
			return nil, fmt.Errorf("rowsink: partition column %q not in schema", name)
		}
		cols[i] = batch.Column(idx[0])
	}
	return cols, nil
}

// splitBy groups the rows of batch by key, keeping the row order within a
// group and ordering groups by first appearance.
func splitBy(batch arrow.RecordBatch, key func(row int) string, part func(key string) Part) ([]Part, error) {
	n := int(batch.NumRows())
	if n == 0 {
		return nil, nil
	}

	var (
		order []string
		runs  = make(map[string][]arrow.RecordBatch)
		start = 0
		cur   = key(0)
	)
	flush := func(end int) {
		if _, ok := runs[cur]; !ok {
			order = append(order, cur)
		}
		runs[cur] = append(runs[cur], batch.NewSlice(int64(start), int64(end)))
	}

	for i := 1; i < n; i++ {
		if k := key(i); k != cur {
			flush(i)
			start, cur = i, k
		}
	}
	flush(n)

	parts := make([]Part, 0, len(order))
	for i, k := range order {
		rec, err := concatRecords(batch.Schema(), runs[k])
		if err != nil {
			for _, p := range parts {
				p.Batch.Release()
			}
			for _, rest := range order[i+1:] {
				for _, r := range runs[rest] {
					r.Release()
				}
			}
			return nil, err
		}

		p := part(k)
		p.Batch = rec
		parts = append(parts, p)
	}
	return parts, nil
}

// concatRecords merges recs column by column and releases them.
func concatRecords(schema *arrow.Schema, recs []arrow.RecordBatch) (arrow.RecordBatch, error) {
	if len(recs) == 1 {
		return recs[0], nil
	}
	defer func() {
		for _, r := range recs {
			r.Release()
		}
	}()

	var rows int64
	for _, r := range recs {
		rows += r.NumRows()
	}

	cols := make([]arrow.Array, schema.NumFields())
	arrs := make([]arrow.Array, len(recs))
	for i := range cols {
		for j, r := range recs {
			arrs[j] = r.Column(i)
		}

		merged, err := array.Concatenate(arrs, memory.DefaultAllocator)
		if err != nil {
			for _, c := range cols[:i] {
				c.Release()
			}
			return nil, fmt.Errorf("rowsink: merge column %s: %w", schema.Field(i).Name, err)
		}
		cols[i] = merged
	}

	rec := array.NewRecordBatch(schema, cols, rows)
	for _, c := range cols {
		c.Release()
	}
	return rec, nil
}
