package format

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"

	"github.com/hupe1980/rowsink/blobstore"
)

type ipcFormat struct {
	o options
}

// IPC returns the Arrow IPC file format. Zstd and LZ4 compress record batch
// buffers; other compressions are ignored.
func IPC(opts ...Option) Format {
	return ipcFormat{o: applyOptions(opts)}
}

func (ipcFormat) Name() string { return "ipc" }

func (ipcFormat) Extension() string { return ".arrow" }

func (f ipcFormat) NewWriter(out blobstore.WritableBlob, schema *arrow.Schema, path string) (FileWriter, error) {
	ipcOpts := []ipc.Option{
		ipc.WithSchema(schema),
		ipc.WithAllocator(f.o.allocator),
	}
	switch f.o.compression {
	case Zstd:
		ipcOpts = append(ipcOpts, ipc.WithZstd())
	case LZ4:
		ipcOpts = append(ipcOpts, ipc.WithLZ4())
	}

	w, err := ipc.NewFileWriter(writeOnly{out}, ipcOpts...)
	if err != nil {
		return nil, fmt.Errorf("format: ipc writer %s: %w", path, err)
	}

	return &ipcWriter{base: base{path: path, out: out}, w: w}, nil
}

type ipcWriter struct {
	base
	w *ipc.FileWriter
}

func (w *ipcWriter) Write(ctx context.Context, rec arrow.RecordBatch) error {
	if err := w.check(ctx); err != nil {
		return err
	}
	if err := w.w.Write(rec); err != nil {
		return fmt.Errorf("format: write %s: %w", w.path, err)
	}
	w.rows.Add(rec.NumRows())
	return nil
}

func (w *ipcWriter) Finish(context.Context) error {
	if w.finished {
		return w.errFinished()
	}
	return w.close(w.w.Close())
}
