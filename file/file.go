// Package file wraps a single file handle over a swappable filesystem.
// Production code uses the OS filesystem; tests swap in a memory fs.
package file

import (
	"io"
	"os"

	"github.com/spf13/afero"
)

var fs afero.Fs = afero.NewOsFs()

// SetFs replaces the backing filesystem. Intended for tests.
func SetFs(newFs afero.Fs) {
	fs = newFs
}

func Fs() afero.Fs {
	return fs
}

type File struct {
	file afero.File
	path string
}

func New(path string, flag int) (*File, error) {
	f, err := fs.OpenFile(path, flag, os.FileMode(0766))
	if err != nil {
		return nil, err
	}
	return &File{file: f, path: path}, nil
}

func (f *File) Name() string {
	return f.path
}

func (f *File) Seek(offset int64, whence int) (int64, error) {
	return f.file.Seek(offset, whence)
}

func (f *File) Read(bytes []byte) (int, error) {
	return f.file.Read(bytes)
}

func (f *File) ReadAt(offset int64, bytes []byte) error {
	_, err := f.file.ReadAt(bytes, offset)
	return err
}

func (f *File) ReadAll() ([]byte, error) {
	if _, err := f.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(f.file)
}

func (f *File) Write(bytes []byte) (int, error) {
	return f.file.Write(bytes)
}

func (f *File) WriteAt(offset int64, bytes []byte) error {
	_, err := f.file.WriteAt(bytes, offset)
	return err
}

func (f *File) Truncate(size int64) error {
	return f.file.Truncate(size)
}

func (f *File) Sync() error {
	return f.file.Sync()
}

func (f *File) Size() int64 {
	info, err := f.file.Stat()
	if err != nil {
		return 0
	}
	return info.Size()
}

func (f *File) Close() error {
	return f.file.Close()
}

func (f *File) Delete() error {
	_ = f.file.Close()
	return fs.Remove(f.path)
}
