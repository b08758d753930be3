package blobstore

import (
	"context"
	"errors"
	"io"
	"os"
	"time"
)

// ErrNotFound is returned when a blob or directory does not exist. It is
// os.ErrNotExist so errors from package os match as well.
var ErrNotFound = os.ErrNotExist

// ErrClosed is returned when writing to a closed blob.
var ErrClosed = errors.New("blobstore: blob closed")

// Store is the storage collaborator of the dataset writer.
//
// Names are slash separated and relative to the store root. Object stores
// treat directories as key prefixes. Implementations must be safe for
// concurrent use.
type Store interface {
	// Create opens a new blob for writing, replacing any existing one. The
	// blob becomes visible once Close returns nil.
	Create(ctx context.Context, name string) (WritableBlob, error)

	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// MkdirAll creates dir and its parents.
	MkdirAll(ctx context.Context, dir string) error

	// DeleteDirContents removes everything below dir but keeps dir itself.
	// A missing dir is an error satisfying errors.Is(err, ErrNotFound) unless
	// missingOK is set.
	DeleteDirContents(ctx context.Context, dir string, missingOK bool) error

	// List returns every entry below dir, recursively, sorted by name.
	// A missing dir yields an error satisfying errors.Is(err, ErrNotFound).
	List(ctx context.Context, dir string) ([]FileInfo, error)
}

// WritableBlob is a blob being written.
type WritableBlob interface {
	io.WriteCloser
	// Sync flushes buffered data to durable storage where supported.
	Sync() error
}

// Blob is a read-only handle to a stored blob.
type Blob interface {
	io.ReaderAt
	io.Closer
	// Size returns the size of the blob in bytes.
	Size() int64
}

// FileInfo describes a listed entry.
type FileInfo struct {
	// Name is the full slash separated name relative to the store root.
	Name    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// ReadAll reads the blob called name into memory.
func ReadAll(ctx context.Context, s Store, name string) ([]byte, error) {
	b, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = b.Close() }()

	buf := make([]byte, b.Size())
	if _, err := b.ReadAt(buf, 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf, nil
}

// WriteAll stores data as the blob called name.
func WriteAll(ctx context.Context, s Store, name string, data []byte) error {
	w, err := s.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Sync(); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
