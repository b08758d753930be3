package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"unicode/utf8"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/hupe1980/rowsink/format"
)

var errNoInputs = errors.New("no input files match")

// expandInputs resolves a doublestar pattern to a sorted list of files.
func expandInputs(pattern string) ([]string, error) {
	if pattern == "" {
		return nil, errors.New("input pattern is required")
	}

	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w %q", errNoInputs, pattern)
	}

	sort.Strings(matches)
	return matches, nil
}

// csvSource reads paths in order. The schema is inferred from the first file
// and enforced on the rest. onRows, if set, is called for every batch.
func csvSource(ctx context.Context, paths []string, cfg InputConfig, onRows func(int64)) iter.Seq2[arrow.RecordBatch, error] {
	return func(yield func(arrow.RecordBatch, error) bool) {
		comma, err := delimiter(cfg.Delimiter)
		if err != nil {
			yield(nil, err)
			return
		}

		var schema *arrow.Schema

		for _, path := range paths {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			next, err := readCSV(path, schema, comma, cfg.ChunkRows, func(s *arrow.Schema, rec arrow.RecordBatch) bool {
				schema = s
				if onRows != nil {
					onRows(rec.NumRows())
				}
				return yield(rec, nil)
			})
			if err != nil {
				yield(nil, err)
				return
			}
			if !next {
				return
			}
		}
	}
}

// readCSV streams one file into fn. It returns false if fn asked to stop.
func readCSV(path string, schema *arrow.Schema, comma rune, chunk int, fn func(*arrow.Schema, arrow.RecordBatch) bool) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	in, err := format.NewDecompressor(f, format.CompressionFromPath(path))
	if err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}
	defer func() { _ = in.Close() }()

	opts := []csv.Option{
		csv.WithHeader(true),
		csv.WithComma(comma),
		csv.WithNullReader(true),
		csv.WithChunk(chunk),
	}

	var r *csv.Reader
	if schema == nil {
		r = csv.NewInferringReader(in, opts...)
	} else {
		r = csv.NewReader(in, schema, opts...)
	}
	defer r.Release()

	for r.Next() {
		rec := r.Record()
		rec.Retain()
		if !fn(r.Schema(), rec) {
			return false, nil
		}
	}

	if err := r.Err(); err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return true, nil
}

func delimiter(s string) (rune, error) {
	switch s {
	case "":
		return ',', nil
	case `\t`, "tab":
		return '\t', nil
	}

	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) || r == utf8.RuneError {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	return r, nil
}
