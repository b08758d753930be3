package fs

import (
	"io"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAfero(t *testing.T) {
	fsys := NewMemFS()

	require.NoError(t, fsys.MkdirAll("/data/out", 0o755))

	f, err := fsys.OpenFile("/data/out/part-0.csv", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte("id\n1\n"))
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	r, err := fsys.Open("/data/out/part-0.csv")
	require.NoError(t, err)
	buf := make([]byte, 2)
	n, err := r.ReadAt(buf, 3)
	if err != nil {
		assert.ErrorIs(t, err, io.EOF)
	}
	assert.Equal(t, "1\n", string(buf[:n]))
	require.NoError(t, r.Close())

	require.NoError(t, fsys.MkdirAll("/data/out/sub", 0o755))
	entries, err := fsys.ReadDir("/data/out")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "part-0.csv", entries[0].Name())
	assert.False(t, entries[0].IsDir())
	assert.True(t, entries[1].IsDir())

	ok, err := afero.Exists(fsys.Fs, "/data/out/part-0.csv")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, fsys.RemoveAll("/data/out"))
	_, err = fsys.Stat("/data/out")
	assert.True(t, os.IsNotExist(err))
}

func TestFaultyFS_OverAfero(t *testing.T) {
	ffs := NewFaultyFS(NewMemFS())
	ffs.AddRule("locked", Fault{FailOnOpen: true})

	_, err := ffs.Open("/locked.csv")
	assert.ErrorIs(t, err, ErrInjected)

	_, err = ffs.OpenFile("/locked.csv", os.O_CREATE|os.O_WRONLY, 0o644)
	assert.ErrorIs(t, err, ErrInjected)

	_, err = ffs.Open("/missing.csv")
	assert.True(t, os.IsNotExist(err))
}
