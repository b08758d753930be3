package manifest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rowsink/blobstore"
	"github.com/hupe1980/rowsink/codec"
	ifs "github.com/hupe1980/rowsink/internal/fs"
)

func TestStore_LoadEmpty(t *testing.T) {
	s := NewStore(blobstore.NewMemoryStore(), "out")

	m, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), m.ID)
	assert.Equal(t, CurrentVersion, m.Version)
	assert.Empty(t, m.Files)
}

func TestStore_Commit(t *testing.T) {
	ctx := context.Background()
	mem := blobstore.NewMemoryStore()
	s := NewStore(mem, "out", WithCodec(codec.JSON{}))

	for i := range 3 {
		m := &Manifest{BaseDir: "out", Format: "parquet", CreatedAt: time.Unix(100, 0).UTC()}
		m.AddFile("out/part-1.parquet", 5)
		m.AddFile("out/part-0.parquet", int64(10+i))
		m.Sort()

		require.NoError(t, s.Commit(ctx, m))
		assert.Equal(t, uint64(i+1), m.ID)
	}

	latest, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), latest.ID)
	assert.Equal(t, int64(17), latest.Rows)
	assert.Equal(t, []FileInfo{
		{Path: "out/part-0.parquet", Rows: 12},
		{Path: "out/part-1.parquet", Rows: 5},
	}, latest.Files)
	assert.True(t, latest.CreatedAt.Equal(time.Unix(100, 0)))

	assert.Equal(t, []string{
		"out/CURRENT",
		"out/MANIFEST-000001.json",
		"out/MANIFEST-000002.json",
		"out/MANIFEST-000003.json",
	}, mem.Names())

	current, err := blobstore.ReadAll(ctx, mem, "out/CURRENT")
	require.NoError(t, err)
	assert.Equal(t, "MANIFEST-000003.json", string(current))
}

func TestStore_LocalStore(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := NewStore(blobstore.NewLocalStore(root), "data")

	m := &Manifest{}
	m.AddFile("data/part-0.arrow", 3)
	require.NoError(t, s.Commit(ctx, m))

	// A second store on the same directory sees the commit.
	got, err := NewStore(blobstore.NewLocalStore(root), "data").Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.ID)
	assert.Equal(t, int64(3), got.Rows)
}

func TestStore_CommitFailureKeepsCurrent(t *testing.T) {
	ctx := context.Background()
	errDisk := errors.New("disk")

	ffs := ifs.NewFaultyFS(nil)
	local := blobstore.NewLocalStore(t.TempDir(), blobstore.WithFileSystem(ffs))
	s := NewStore(local, "out")

	require.NoError(t, s.Commit(ctx, &Manifest{}))

	ffs.AddRule("MANIFEST-000002", ifs.Fault{FailOnWrite: true, Err: errDisk})
	assert.ErrorIs(t, s.Commit(ctx, &Manifest{}), errDisk)

	ffs.ClearRules()
	m, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), m.ID)
}

func TestGet_UnsupportedVersion(t *testing.T) {
	ctx := context.Background()
	mem := blobstore.NewMemoryStore()
	mem.Put("m.json", []byte(`{"version":7}`))

	_, err := Get(ctx, mem, "m.json", codec.Default)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	_, err = Get(ctx, mem, "missing.json", codec.Default)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "MANIFEST-000042.json", Filename(42))
}
