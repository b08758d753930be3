package blobstore

import (
	"bytes"
	"context"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store. It keeps explicit directories so that
// empty directories can be listed like on a filesystem.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]memoryEntry
	dirs  map[string]struct{}
}

type memoryEntry struct {
	data    []byte
	modTime time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs: make(map[string]memoryEntry),
		dirs:  make(map[string]struct{}),
	}
}

func cleanName(name string) string {
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}

// Create returns a blob that is stored on Close.
func (m *MemoryStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memoryWritableBlob{store: m, name: cleanName(name)}, nil
}

func (m *MemoryStore) Open(_ context.Context, name string) (Blob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.blobs[cleanName(name)]
	if !ok {
		return nil, ErrNotFound
	}
	return &memoryBlob{Reader: bytes.NewReader(e.data)}, nil
}

// Put stores data under name.
func (m *MemoryStore) Put(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.putLocked(cleanName(name), bytes.Clone(data))
}

func (m *MemoryStore) putLocked(name string, data []byte) {
	m.blobs[name] = memoryEntry{data: data, modTime: time.Now()}
	for dir := path.Dir(name); dir != "." && dir != "/"; dir = path.Dir(dir) {
		m.dirs[dir] = struct{}{}
	}
}

func (m *MemoryStore) MkdirAll(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for d := cleanName(dir); d != "" && d != "."; d = path.Dir(d) {
		m.dirs[d] = struct{}{}
	}
	return nil
}

func (m *MemoryStore) existsLocked(dir string) bool {
	if dir == "" {
		return true
	}
	_, ok := m.dirs[dir]
	return ok
}

func under(dir, name string) bool {
	return dir == "" || strings.HasPrefix(name, dir+"/")
}

func (m *MemoryStore) DeleteDirContents(ctx context.Context, dir string, missingOK bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d := cleanName(dir)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.existsLocked(d) {
		if missingOK {
			return nil
		}
		return &notFoundError{name: d}
	}

	for name := range m.blobs {
		if under(d, name) {
			delete(m.blobs, name)
		}
	}
	for name := range m.dirs {
		if under(d, name) {
			delete(m.dirs, name)
		}
	}
	return nil
}

func (m *MemoryStore) List(ctx context.Context, dir string) ([]FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d := cleanName(dir)

	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.existsLocked(d) {
		return nil, &notFoundError{name: d}
	}

	var out []FileInfo
	for name := range m.dirs {
		if under(d, name) {
			out = append(out, FileInfo{Name: name, IsDir: true})
		}
	}
	for name, e := range m.blobs {
		if under(d, name) {
			out = append(out, FileInfo{Name: name, Size: int64(len(e.data)), ModTime: e.modTime})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Names returns the stored blob names, sorted.
func (m *MemoryStore) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.blobs))
	for name := range m.blobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type notFoundError struct {
	name string
}

func (e *notFoundError) Error() string { return "blobstore: " + e.name + ": not found" }

func (e *notFoundError) Unwrap() error { return ErrNotFound }

type memoryBlob struct {
	*bytes.Reader
}

func (b *memoryBlob) Close() error { return nil }

type memoryWritableBlob struct {
	store  *MemoryStore
	name   string
	buf    bytes.Buffer
	closed bool
}

func (w *memoryWritableBlob) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}
	return w.buf.Write(p)
}

func (w *memoryWritableBlob) Sync() error { return nil }

func (w *memoryWritableBlob) Close() error {
	if w.closed {
		return ErrClosed
	}
	w.closed = true

	w.store.mu.Lock()
	defer w.store.mu.Unlock()

	w.store.putLocked(w.name, bytes.Clone(w.buf.Bytes()))
	return nil
}
