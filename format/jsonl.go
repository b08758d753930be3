package format

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hupe1980/rowsink/blobstore"
	"github.com/hupe1980/rowsink/codec"
)

type jsonlFormat struct {
	o options
}

// JSONL returns a newline-delimited JSON format. Objects keep the column
// order of the schema.
func JSONL(opts ...Option) Format {
	return jsonlFormat{o: applyOptions(opts)}
}

func (jsonlFormat) Name() string { return "jsonl" }

func (f jsonlFormat) Extension() string { return ".jsonl" + f.o.compression.Extension() }

func (f jsonlFormat) NewWriter(out blobstore.WritableBlob, schema *arrow.Schema, path string) (FileWriter, error) {
	stream, err := NewCompressor(writeOnly{out}, f.o.compression)
	if err != nil {
		return nil, err
	}

	keys := make([][]byte, schema.NumFields())
	for i, field := range schema.Fields() {
		k, err := f.o.codec.Marshal(field.Name)
		if err != nil {
			return nil, fmt.Errorf("format: jsonl key %q: %w", field.Name, err)
		}
		keys[i] = k
	}

	return &jsonlWriter{
		base:   base{path: path, out: out},
		codec:  f.o.codec,
		keys:   keys,
		stream: stream,
		buf:    bufio.NewWriterSize(stream, 64<<10),
	}, nil
}

type jsonlWriter struct {
	base
	codec  codec.Codec
	keys   [][]byte
	stream io.WriteCloser
	buf    *bufio.Writer
}

func (w *jsonlWriter) Write(ctx context.Context, rec arrow.RecordBatch) error {
	if err := w.check(ctx); err != nil {
		return err
	}

	cols := rec.Columns()
	for row := range int(rec.NumRows()) {
		_ = w.buf.WriteByte('{')
		for i, col := range cols {
			if i > 0 {
				_ = w.buf.WriteByte(',')
			}
			_, _ = w.buf.Write(w.keys[i])
			_ = w.buf.WriteByte(':')

			v, err := w.codec.Marshal(col.GetOneForMarshal(row))
			if err != nil {
				return fmt.Errorf("format: write %s: row %d: %w", w.path, row, err)
			}
			_, _ = w.buf.Write(v)
		}
		if err := w.buf.WriteByte('\n'); err != nil {
			return fmt.Errorf("format: write %s: %w", w.path, err)
		}
	}

	w.rows.Add(rec.NumRows())
	return nil
}

func (w *jsonlWriter) Finish(context.Context) error {
	if w.finished {
		return w.errFinished()
	}
	return w.close(errors.Join(w.buf.Flush(), w.stream.Close()))
}
