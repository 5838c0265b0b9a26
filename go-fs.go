package sectorfs

import (
	"errors"
	"io"
	"io/fs"
	"syscall"
	"time"

	"github.com/aligator/sectorfs/checkpoint"
)

// GoDirEntry wraps the FileInfo of a file as fs.DirEntry.
type GoDirEntry struct {
	fs.FileInfo
}

func (g GoDirEntry) Type() fs.FileMode {
	return g.FileInfo.Mode().Type()
}

func (g GoDirEntry) Info() (fs.FileInfo, error) {
	return g.FileInfo, nil
}

// rootInfo describes the only directory of an image.
type rootInfo struct{}

func (rootInfo) Name() string       { return "." }
func (rootInfo) Size() int64        { return 0 }
func (rootInfo) Mode() fs.FileMode  { return fs.ModeDir | 0555 }
func (rootInfo) ModTime() time.Time { return time.Time{} }
func (rootInfo) IsDir() bool        { return true }
func (rootInfo) Sys() interface{}   { return nil }

// GoDir is the opened root directory. It holds the listing from the time it was opened.
type GoDir struct {
	entries []fs.DirEntry
	offset  int
}

func (d *GoDir) Stat() (fs.FileInfo, error) {
	return rootInfo{}, nil
}

func (d *GoDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: ".", Err: syscall.EISDIR}
}

func (d *GoDir) Close() error {
	return nil
}

// ReadDir returns the next n entries, or all remaining ones if n <= 0.
func (d *GoDir) ReadDir(n int) ([]fs.DirEntry, error) {
	rest := d.entries[d.offset:]

	if n <= 0 {
		d.offset = len(d.entries)
		return rest, nil
	}

	if len(rest) == 0 {
		return nil, io.EOF
	}

	if n > len(rest) {
		n = len(rest)
	}
	d.offset += n

	return rest[:n], nil
}

// GoFs makes an image usable as fs.FS. The image has a single flat root directory ".".
type GoFs struct {
	Fs *Fs
}

// NewGoFS wraps an opened image as fs.FS compatible filesystem.
func NewGoFS(image *Fs) GoFs {
	return GoFs{Fs: image}
}

func (g GoFs) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	if name == "." {
		infos, err := g.Fs.List()
		if err != nil {
			return nil, &fs.PathError{Op: "open", Path: name, Err: err}
		}

		entries := make([]fs.DirEntry, len(infos))
		for i, info := range infos {
			entries[i] = GoDirEntry{info}
		}
		return &GoDir{entries: entries}, nil
	}

	file, err := g.Fs.Open(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: notExist(err)}
	}

	return file, nil
}

func (g GoFs) Stat(name string) (fs.FileInfo, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrInvalid}
	}

	if name == "." {
		return rootInfo{}, nil
	}

	info, err := g.Fs.Stat(name)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: notExist(err)}
	}

	return info, nil
}

// notExist adds fs.ErrNotExist to ErrNotFound errors.
func notExist(err error) error {
	if errors.Is(err, ErrNotFound) {
		return checkpoint.Wrap(err, fs.ErrNotExist)
	}
	return err
}
