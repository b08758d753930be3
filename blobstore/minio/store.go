package minio

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/rowsink/blobstore"
)

// Store implements blobstore.Store for a MinIO bucket.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ blobstore.Store = (*Store)(nil)

// NewStore creates a Store. rootPrefix is prepended to all keys.
func NewStore(client *minio.Client, bucket, rootPrefix string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(rootPrefix, "/"),
	}
}

func (s *Store) key(name string) string {
	return strings.TrimPrefix(path.Join(s.prefix, name), "/")
}

func (s *Store) dirPrefix(dir string) string {
	k := s.key(dir)
	if k == "" || k == "." {
		return ""
	}
	return k + "/"
}

func (s *Store) name(key string) string {
	if s.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, s.prefix+"/")
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

// Create streams the blob with an unknown size upload.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	w := &writableBlob{pw: pw, done: make(chan error, 1)}

	go func() {
		_, err := s.client.PutObject(ctx, s.bucket, s.key(name), pr, -1, minio.PutObjectOptions{})
		if err != nil {
			err = fmt.Errorf("minio: upload %s: %w", name, err)
		}
		_ = pr.CloseWithError(err)
		w.done <- err
	}()

	return w, nil
}

func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.key(name)

	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}

	return &blob{ctx: ctx, client: s.client, bucket: s.bucket, key: key, size: info.Size}, nil
}

// MkdirAll is a no-op, directories are key prefixes.
func (s *Store) MkdirAll(ctx context.Context, _ string) error {
	return ctx.Err()
}

func (s *Store) DeleteDirContents(ctx context.Context, dir string, missingOK bool) error {
	prefix := s.dirPrefix(dir)

	g, ctx := errgroup.WithContext(ctx)
	objects := make(chan minio.ObjectInfo)

	var found bool

	g.Go(func() error {
		defer close(objects)

		for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
			if obj.Err != nil {
				return fmt.Errorf("minio: list %s: %w", dir, obj.Err)
			}
			found = true

			select {
			case objects <- obj:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	g.Go(func() error {
		var first error
		for rerr := range s.client.RemoveObjects(ctx, s.bucket, objects, minio.RemoveObjectsOptions{}) {
			if first == nil && !isNotFound(rerr.Err) {
				first = fmt.Errorf("minio: delete %s: %w", rerr.ObjectName, rerr.Err)
			}
		}
		return first
	})

	if err := g.Wait(); err != nil {
		return err
	}

	if !found && !missingOK {
		return fmt.Errorf("minio: %s: %w", dir, blobstore.ErrNotFound)
	}
	return nil
}

// List returns the objects below dir. An empty prefix is reported as missing.
func (s *Store) List(ctx context.Context, dir string) ([]blobstore.FileInfo, error) {
	var out []blobstore.FileInfo

	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.dirPrefix(dir),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("minio: list %s: %w", dir, obj.Err)
		}
		out = append(out, blobstore.FileInfo{
			Name:    s.name(obj.Key),
			Size:    obj.Size,
			ModTime: obj.LastModified,
		})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("minio: %s: %w", dir, blobstore.ErrNotFound)
	}
	return out, nil
}

type blob struct {
	ctx    context.Context
	client *minio.Client
	bucket string
	key    string
	size   int64
}

func (b *blob) Size() int64 { return b.size }

func (b *blob) Close() error { return nil }

func (b *blob) ReadAt(p []byte, off int64) (int, error) {
	if off >= b.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	end := min(off+int64(len(p)), b.size) - 1

	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(off, end); err != nil {
		return 0, err
	}

	obj, err := b.client.GetObject(b.ctx, b.bucket, b.key, opts)
	if err != nil {
		return 0, err
	}
	defer func() { _ = obj.Close() }()

	n, err := io.ReadFull(obj, p[:end-off+1])
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

type writableBlob struct {
	pw   *io.PipeWriter
	done chan error

	mu       sync.Mutex
	closed   bool
	closeErr error
}

func (w *writableBlob) Write(p []byte) (int, error) {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()

	if closed {
		return 0, blobstore.ErrClosed
	}
	return w.pw.Write(p)
}

// Sync is a no-op, the upload completes on Close.
func (w *writableBlob) Sync() error { return nil }

func (w *writableBlob) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return w.closeErr
	}
	w.closed = true

	_ = w.pw.Close()
	w.closeErr = <-w.done
	return w.closeErr
}
