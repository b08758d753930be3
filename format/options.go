package format

import (
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hupe1980/rowsink/codec"
)

type options struct {
	compression Compression
	codec       codec.Codec
	comma       rune
	header      bool
	nullValue   string
	allocator   memory.Allocator
}

// Option configures a format.
type Option func(*options)

func applyOptions(opts []Option) options {
	o := options{
		compression: None,
		codec:       codec.Default,
		comma:       ',',
		header:      true,
		allocator:   memory.DefaultAllocator,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithCompression sets the compression. Text formats compress the whole
// stream; IPC and Parquet compress column buffers.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithCodec sets the JSON codec used by JSONL.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithComma sets the CSV field delimiter.
func WithComma(r rune) Option {
	return func(o *options) {
		o.comma = r
	}
}

// WithHeader controls whether CSV files start with a header line.
func WithHeader(enabled bool) Option {
	return func(o *options) {
		o.header = enabled
	}
}

// WithNullValue sets the CSV representation of nulls.
func WithNullValue(s string) Option {
	return func(o *options) {
		o.nullValue = s
	}
}

// WithAllocator sets the allocator used by the encoders.
func WithAllocator(mem memory.Allocator) Option {
	return func(o *options) {
		if mem != nil {
			o.allocator = mem
		}
	}
}
