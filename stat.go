package sectorfs

import (
	"os"
	"time"
)

// FileInfo describes a file in the directory of an image.
// It implements os.FileInfo, Sys returns the DirEntry.
type FileInfo struct {
	// Slot is the index of the entry in the directory.
	Slot  int
	Entry DirEntry
}

func (fi FileInfo) Name() string {
	return fi.Entry.Name()
}

func (fi FileInfo) Size() int64 {
	return int64(fi.Entry.FileSize)
}

// Mode is always read only, files of an image have no permissions.
func (fi FileInfo) Mode() os.FileMode {
	return 0444
}

// ModTime is always the zero time as the format does not store any.
func (fi FileInfo) ModTime() time.Time {
	return time.Time{}
}

func (fi FileInfo) IsDir() bool {
	return false
}

func (fi FileInfo) Sys() interface{} {
	return fi.Entry
}
