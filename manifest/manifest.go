package manifest

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/rowsink/blobstore"
	"github.com/hupe1980/rowsink/codec"
)

const (
	// FilePrefix starts the name of every manifest blob.
	FilePrefix = "MANIFEST"
	// CurrentFileName names the pointer to the latest manifest.
	CurrentFileName = "CURRENT"
	// CurrentVersion is the manifest layout version.
	CurrentVersion = 1
)

var (
	// ErrUnsupportedVersion is returned for manifests of another layout.
	ErrUnsupportedVersion = errors.New("manifest: unsupported version")
	// ErrConcurrentModification is returned when another writer committed
	// the same version first.
	ErrConcurrentModification = errors.New("manifest: concurrent modification")
)

// Manifest lists the files of one committed write.
type Manifest struct {
	Version   int        `json:"version"`
	ID        uint64     `json:"id"`
	WriteID   string     `json:"write_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	BaseDir   string     `json:"base_dir"`
	Format    string     `json:"format"`
	Rows      int64      `json:"rows"`
	Files     []FileInfo `json:"files"`
}

// FileInfo describes a written file.
type FileInfo struct {
	Path string `json:"path"`
	Rows int64  `json:"rows"`
}

// AddFile records a finished file.
func (m *Manifest) AddFile(path string, rows int64) {
	m.Files = append(m.Files, FileInfo{Path: path, Rows: rows})
	m.Rows += rows
}

// Sort orders the files by path.
func (m *Manifest) Sort() {
	sort.Slice(m.Files, func(i, j int) bool { return m.Files[i].Path < m.Files[j].Path })
}

// Committer publishes manifests.
type Committer interface {
	// Commit assigns m the next ID and makes it the latest manifest.
	Commit(ctx context.Context, m *Manifest) error
	// Load returns the latest manifest, or an empty one with ID 0.
	Load(ctx context.Context) (*Manifest, error)
}

// Filename returns the blob name of manifest id.
func Filename(id uint64) string {
	return fmt.Sprintf("%s-%06d.json", FilePrefix, id)
}

// Put encodes m into the blob called name.
func Put(ctx context.Context, store blobstore.Store, name string, c codec.Codec, m *Manifest) error {
	data, err := c.Marshal(m)
	if err != nil {
		return fmt.Errorf("manifest: encode: %w", err)
	}
	if err := blobstore.WriteAll(ctx, store, name, data); err != nil {
		return fmt.Errorf("manifest: write %s: %w", name, err)
	}
	return nil
}

// Get decodes the blob called name.
func Get(ctx context.Context, store blobstore.Store, name string, c codec.Codec) (*Manifest, error) {
	data, err := blobstore.ReadAll(ctx, store, name)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", name, err)
	}

	var m Manifest
	if err := c.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: decode %s: %w", name, err)
	}
	if m.Version != CurrentVersion {
		return nil, fmt.Errorf("%w: %d (expected %d)", ErrUnsupportedVersion, m.Version, CurrentVersion)
	}
	return &m, nil
}

// Option configures a Store.
type Option func(*Store)

// WithCodec sets the manifest encoding. The default is codec.Default.
func WithCodec(c codec.Codec) Option {
	return func(s *Store) { s.codec = c }
}

// Store commits manifests as blobs next to the data. The latest manifest
// is found through the CURRENT pointer. Store serializes its own commits
// only; use a DynamoDB committer for concurrent writers.
type Store struct {
	store blobstore.Store
	dir   string
	codec codec.Codec

	mu sync.Mutex
}

var _ Committer = (*Store)(nil)

// NewStore creates a manifest store below dir.
func NewStore(store blobstore.Store, dir string, opts ...Option) *Store {
	s := &Store{
		store: store,
		dir:   dir,
		codec: codec.Default,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the manifest CURRENT points to.
func (s *Store) Load(ctx context.Context) (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load(ctx)
}

func (s *Store) load(ctx context.Context) (*Manifest, error) {
	current, err := blobstore.ReadAll(ctx, s.store, path.Join(s.dir, CurrentFileName))
	if errors.Is(err, blobstore.ErrNotFound) {
		return &Manifest{Version: CurrentVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", CurrentFileName, err)
	}

	return Get(ctx, s.store, path.Join(s.dir, string(current)), s.codec)
}

// Commit writes m as the next manifest, then moves CURRENT to it.
func (s *Store) Commit(ctx context.Context, m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest, err := s.load(ctx)
	if err != nil {
		return err
	}

	m.Version = CurrentVersion
	m.ID = latest.ID + 1
	name := Filename(m.ID)

	if err := Put(ctx, s.store, path.Join(s.dir, name), s.codec, m); err != nil {
		return err
	}

	if err := blobstore.WriteAll(ctx, s.store, path.Join(s.dir, CurrentFileName), []byte(name)); err != nil {
		return fmt.Errorf("manifest: update %s: %w", CurrentFileName, err)
	}
	return nil
}
