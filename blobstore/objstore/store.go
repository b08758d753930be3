package objstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/thanos-io/objstore"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/rowsink/blobstore"
)

const deleteConcurrency = 16

// Store implements blobstore.Store on an objstore.Bucket.
type Store struct {
	bkt    objstore.Bucket
	prefix string
}

var _ blobstore.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPrefix prepends prefix to every object name.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = strings.Trim(prefix, objstore.DirDelim)
	}
}

// NewStore creates a Store on bkt. The bucket is not closed by the store.
func NewStore(bkt objstore.Bucket, opts ...Option) *Store {
	s := &Store{bkt: bkt}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(name string) string {
	return strings.TrimPrefix(path.Join(s.prefix, name), objstore.DirDelim)
}

func (s *Store) dirPrefix(dir string) string {
	k := s.key(dir)
	if k == "" || k == "." {
		return ""
	}
	return k + objstore.DirDelim
}

func (s *Store) name(key string) string {
	if s.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, s.prefix+objstore.DirDelim)
}

func (s *Store) mapNotFound(err error) error {
	if err != nil && s.bkt.IsObjNotFoundErr(err) {
		return fmt.Errorf("%w: %w", blobstore.ErrNotFound, err)
	}
	return err
}

// Create returns a buffered blob that is uploaded on Close.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &writableBlob{ctx: ctx, store: s, name: name}, nil
}

func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.key(name)

	attrs, err := s.bkt.Attributes(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("objstore: open %s: %w", name, s.mapNotFound(err))
	}

	return &blob{ctx: ctx, store: s, key: key, size: attrs.Size}, nil
}

// MkdirAll is a no-op, directories are key prefixes.
func (s *Store) MkdirAll(ctx context.Context, _ string) error {
	return ctx.Err()
}

func (s *Store) DeleteDirContents(ctx context.Context, dir string, missingOK bool) error {
	keys, err := s.walk(ctx, s.dirPrefix(dir))
	if err != nil {
		return err
	}

	if len(keys) == 0 {
		if missingOK {
			return nil
		}
		return fmt.Errorf("objstore: %s: %w", dir, blobstore.ErrNotFound)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(deleteConcurrency)

	for _, key := range keys {
		g.Go(func() error {
			if err := s.bkt.Delete(ctx, key); err != nil && !s.bkt.IsObjNotFoundErr(err) {
				return fmt.Errorf("objstore: delete %s: %w", key, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// List returns the objects below dir. An empty prefix is reported as missing.
func (s *Store) List(ctx context.Context, dir string) ([]blobstore.FileInfo, error) {
	keys, err := s.walk(ctx, s.dirPrefix(dir))
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("objstore: %s: %w", dir, blobstore.ErrNotFound)
	}

	out := make([]blobstore.FileInfo, 0, len(keys))
	for _, key := range keys {
		attrs, err := s.bkt.Attributes(ctx, key)
		if err != nil {
			if s.bkt.IsObjNotFoundErr(err) {
				continue // deleted while listing
			}
			return nil, fmt.Errorf("objstore: stat %s: %w", key, err)
		}

		out = append(out, blobstore.FileInfo{
			Name:    s.name(key),
			Size:    attrs.Size,
			ModTime: attrs.LastModified,
		})
	}

	return out, nil
}

// walk returns every object key below prefix, sorted. Iteration is done one
// level at a time since not every provider supports recursive listing.
func (s *Store) walk(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	var visit func(dir string) error
	visit = func(dir string) error {
		var subdirs []string

		err := s.bkt.Iter(ctx, dir, func(name string) error {
			if strings.HasSuffix(name, objstore.DirDelim) {
				subdirs = append(subdirs, name)
				return nil
			}
			keys = append(keys, name)
			return nil
		})
		if err != nil {
			return fmt.Errorf("objstore: list %s: %w", dir, err)
		}

		for _, sub := range subdirs {
			if err := visit(sub); err != nil {
				return err
			}
		}
		return nil
	}

	if err := visit(prefix); err != nil {
		return nil, err
	}

	sort.Strings(keys)
	return keys, nil
}

type blob struct {
	ctx   context.Context
	store *Store
	key   string
	size  int64
}

func (b *blob) Size() int64 { return b.size }

func (b *blob) Close() error { return nil }

// ReadAt issues a GetRange for the requested window.
func (b *blob) ReadAt(p []byte, off int64) (int, error) {
	if off >= b.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	length := min(int64(len(p)), b.size-off)

	rc, err := b.store.bkt.GetRange(b.ctx, b.key, off, length)
	if err != nil {
		return 0, b.store.mapNotFound(err)
	}
	defer func() { _ = rc.Close() }()

	n, err := io.ReadFull(rc, p[:length])
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

type writableBlob struct {
	ctx   context.Context
	store *Store
	name  string

	mu       sync.Mutex
	buf      bytes.Buffer
	closed   bool
	closeErr error
}

func (w *writableBlob) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, blobstore.ErrClosed
	}
	return w.buf.Write(p)
}

// Sync is a no-op, the upload happens on Close.
func (w *writableBlob) Sync() error { return nil }

func (w *writableBlob) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return w.closeErr
	}
	w.closed = true

	if err := w.store.bkt.Upload(w.ctx, w.store.key(w.name), bytes.NewReader(w.buf.Bytes())); err != nil {
		w.closeErr = fmt.Errorf("objstore: upload %s: %w", w.name, err)
	}
	w.buf.Reset()

	return w.closeErr
}
