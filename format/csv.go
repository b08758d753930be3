package format

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/csv"

	"github.com/hupe1980/rowsink/blobstore"
)

type csvFormat struct {
	o options
}

// CSV returns a CSV format with a header line by default.
func CSV(opts ...Option) Format {
	return csvFormat{o: applyOptions(opts)}
}

func (csvFormat) Name() string { return "csv" }

func (f csvFormat) Extension() string { return ".csv" + f.o.compression.Extension() }

func (f csvFormat) NewWriter(out blobstore.WritableBlob, schema *arrow.Schema, path string) (FileWriter, error) {
	stream, err := NewCompressor(writeOnly{out}, f.o.compression)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(stream, schema,
		csv.WithComma(f.o.comma),
		csv.WithHeader(f.o.header),
		csv.WithNullWriter(f.o.nullValue),
	)

	return &csvWriter{base: base{path: path, out: out}, stream: stream, w: w}, nil
}

type csvWriter struct {
	base
	stream io.WriteCloser
	w      *csv.Writer
}

func (w *csvWriter) Write(ctx context.Context, rec arrow.RecordBatch) error {
	if err := w.check(ctx); err != nil {
		return err
	}
	if err := w.w.Write(rec); err != nil {
		return fmt.Errorf("format: write %s: %w", w.path, err)
	}
	w.rows.Add(rec.NumRows())
	return nil
}

func (w *csvWriter) Finish(context.Context) error {
	if w.finished {
		return w.errFinished()
	}
	err := w.w.Flush()
	if err == nil {
		err = w.w.Error()
	}
	return w.close(errors.Join(err, w.stream.Close()))
}
