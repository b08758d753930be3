package format

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/hupe1980/rowsink/blobstore"
)

type parquetFormat struct {
	o options
}

// Parquet returns the parquet format. Each Write becomes one row group.
func Parquet(opts ...Option) Format {
	return parquetFormat{o: applyOptions(opts)}
}

func (parquetFormat) Name() string { return "parquet" }

func (parquetFormat) Extension() string { return ".parquet" }

func (f parquetFormat) NewWriter(out blobstore.WritableBlob, schema *arrow.Schema, path string) (FileWriter, error) {
	props := parquet.NewWriterProperties(
		parquet.WithAllocator(f.o.allocator),
		parquet.WithCompression(parquetCodec(f.o.compression)),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(f.o.allocator),
		pqarrow.WithStoreSchema(),
	)

	w, err := pqarrow.NewFileWriter(schema, writeOnly{out}, props, arrowProps)
	if err != nil {
		return nil, fmt.Errorf("format: parquet writer %s: %w", path, err)
	}

	return &parquetWriter{base: base{path: path, out: out}, w: w}, nil
}

func parquetCodec(c Compression) compress.Compression {
	switch c {
	case Gzip, ParallelGzip:
		return compress.Codecs.Gzip
	case Zstd:
		return compress.Codecs.Zstd
	case LZ4:
		return compress.Codecs.Lz4Raw
	case Snappy:
		return compress.Codecs.Snappy
	default:
		return compress.Codecs.Uncompressed
	}
}

type parquetWriter struct {
	base
	w *pqarrow.FileWriter
}

func (w *parquetWriter) Write(ctx context.Context, rec arrow.RecordBatch) error {
	if err := w.check(ctx); err != nil {
		return err
	}
	if err := w.w.Write(rec); err != nil {
		return fmt.Errorf("format: write %s: %w", w.path, err)
	}
	w.rows.Add(rec.NumRows())
	return nil
}

func (w *parquetWriter) Finish(context.Context) error {
	if w.finished {
		return w.errFinished()
	}
	return w.close(w.w.Close())
}
