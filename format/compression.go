package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/pierrec/lz4/v4"
)

// Compression defines the compression algorithm used by a format.
type Compression uint8

const (
	// None writes uncompressed data.
	None Compression = iota
	// Gzip compresses with gzip (klauspost/compress).
	Gzip
	// ParallelGzip compresses gzip blocks on several goroutines (pgzip).
	// The output is a regular gzip stream.
	ParallelGzip
	// Zstd compresses with zstandard.
	Zstd
	// LZ4 compresses with the LZ4 frame format.
	LZ4
	// Snappy compresses with the snappy framing format.
	Snappy
)

func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	case ParallelGzip:
		return "pgzip"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	case Snappy:
		return "snappy"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

// Extension returns the suffix appended to compressed text files.
func (c Compression) Extension() string {
	switch c {
	case Gzip, ParallelGzip:
		return ".gz"
	case Zstd:
		return ".zst"
	case LZ4:
		return ".lz4"
	case Snappy:
		return ".sz"
	default:
		return ""
	}
}

// ParseCompression parses a compression name as printed by String.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return None, nil
	case "gzip", "gz":
		return Gzip, nil
	case "pgzip":
		return ParallelGzip, nil
	case "zstd", "zst":
		return Zstd, nil
	case "lz4":
		return LZ4, nil
	case "snappy", "sz":
		return Snappy, nil
	default:
		return None, fmt.Errorf("format: unknown compression %q", s)
	}
}

// CompressionFromPath guesses the stream compression of a file by suffix.
func CompressionFromPath(path string) Compression {
	switch {
	case strings.HasSuffix(path, ".gz"):
		return Gzip
	case strings.HasSuffix(path, ".zst"):
		return Zstd
	case strings.HasSuffix(path, ".lz4"):
		return LZ4
	case strings.HasSuffix(path, ".sz"):
		return Snappy
	default:
		return None
	}
}

// NewCompressor wraps w in a compressing stream. Closing the result flushes
// the stream but leaves w open.
func NewCompressor(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case None:
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case ParallelGzip:
		return pgzip.NewWriter(w), nil
	case Zstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	case LZ4:
		return lz4.NewWriter(w), nil
	case Snappy:
		return snappy.NewBufferedWriter(w), nil
	default:
		return nil, fmt.Errorf("format: unsupported compression %s", c)
	}
}

// NewDecompressor wraps r in a decompressing stream.
func NewDecompressor(r io.Reader, c Compression) (io.ReadCloser, error) {
	switch c {
	case None:
		return io.NopCloser(r), nil
	case Gzip:
		return gzip.NewReader(r)
	case ParallelGzip:
		return pgzip.NewReader(r)
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case Snappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("format: unsupported compression %s", c)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
