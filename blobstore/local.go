package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	ifs "github.com/hupe1980/rowsink/internal/fs"
)

const deleteConcurrency = 8

// LocalStore implements Store on the local filesystem.
type LocalStore struct {
	root string
	fs   ifs.FileSystem
}

// LocalOption configures a LocalStore.
type LocalOption func(*LocalStore)

// WithFileSystem replaces the filesystem, typically with an ifs.FaultyFS in tests.
func WithFileSystem(fsys ifs.FileSystem) LocalOption {
	return func(s *LocalStore) {
		s.fs = fsys
	}
}

// NewLocalStore creates a LocalStore rooted at root.
func NewLocalStore(root string, opts ...LocalOption) *LocalStore {
	s := &LocalStore{root: root, fs: ifs.Default}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the root directory.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+name)))
}

// Create creates the blob and any missing parent directory.
func (s *LocalStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := s.path(name)
	if err := s.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, err
	}

	f, err := s.fs.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *LocalStore) Open(ctx context.Context, name string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.fs.Open(s.path(name))
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return &localBlob{ReadFile: f, size: info.Size()}, nil
}

type localBlob struct {
	ifs.ReadFile
	size int64
}

func (b *localBlob) Size() int64 { return b.size }

func (s *LocalStore) MkdirAll(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.fs.MkdirAll(s.path(dir), 0o755)
}

// DeleteDirContents removes the children of dir concurrently.
func (s *LocalStore) DeleteDirContents(ctx context.Context, dir string, missingOK bool) error {
	p := s.path(dir)

	entries, err := s.fs.ReadDir(p)
	if err != nil {
		if missingOK && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(deleteConcurrency)

	for _, e := range entries {
		child := filepath.Join(p, e.Name())
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.fs.RemoveAll(child); err != nil {
				return fmt.Errorf("blobstore: delete %s: %w", child, err)
			}
			return nil
		})
	}

	return g.Wait()
}

func (s *LocalStore) List(ctx context.Context, dir string) ([]FileInfo, error) {
	base := path.Clean(dir)
	if base == "." || base == "/" {
		base = ""
	}

	var out []FileInfo

	var walk func(rel string) error
	walk = func(rel string) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		entries, err := s.fs.ReadDir(s.path(rel))
		if err != nil {
			return err
		}

		for _, e := range entries {
			name := path.Join(rel, e.Name())

			info, err := e.Info()
			if err != nil {
				return err
			}

			out = append(out, FileInfo{
				Name:    name,
				Size:    info.Size(),
				ModTime: info.ModTime(),
				IsDir:   e.IsDir(),
			})

			if e.IsDir() {
				if err := walk(name); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(base); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
