// Package format provides the file writers used by the dataset writer.
//
// A Format opens a FileWriter over a writable blob. Every Write call hands
// one row group to the underlying encoder, Finish flushes the encoder and
// closes the blob. Encoding is delegated to arrow-go:
//
//   - IPC: Arrow IPC file format (arrow/ipc), optional zstd or lz4 buffers
//   - Parquet: parquet files via pqarrow, one row group per Write
//   - CSV: arrow/csv with an optional compressed stream
//   - JSONL: one JSON object per row, encoded with a codec.Codec
//
// Text formats can be wrapped in a compressed stream:
//
//	f := format.CSV(format.WithCompression(format.Zstd))
//	f.Extension() // ".csv.zst"
package format
