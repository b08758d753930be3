package fs

import (
	iofs "io/fs"
	"os"

	"github.com/spf13/afero"
)

// Afero adapts an afero.Fs to FileSystem.
type Afero struct {
	Fs afero.Fs
}

var _ FileSystem = Afero{}

// NewMemFS returns an in-memory FileSystem.
func NewMemFS() Afero {
	return Afero{Fs: afero.NewMemMapFs()}
}

func (a Afero) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	return a.Fs.OpenFile(name, flag, perm)
}

func (a Afero) Open(name string) (ReadFile, error) {
	return a.Fs.Open(name)
}

func (a Afero) Remove(name string) error                     { return a.Fs.Remove(name) }
func (a Afero) RemoveAll(path string) error                  { return a.Fs.RemoveAll(path) }
func (a Afero) Stat(name string) (os.FileInfo, error)        { return a.Fs.Stat(name) }
func (a Afero) MkdirAll(path string, perm os.FileMode) error { return a.Fs.MkdirAll(path, perm) }

// ReadDir returns the entries of name sorted by filename.
func (a Afero) ReadDir(name string) ([]os.DirEntry, error) {
	infos, err := afero.ReadDir(a.Fs, name)
	if err != nil {
		return nil, err
	}

	entries := make([]os.DirEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, iofs.FileInfoToDirEntry(info))
	}
	return entries, nil
}
