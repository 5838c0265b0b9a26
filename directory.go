package sectorfs

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/aligator/sectorfs/checkpoint"
)

// Directory is the fixed array of entries stored in the directory region.
// Entries are never removed, deleted slots get reused.
type Directory []DirEntry

// newDirectory returns a directory with every slot free.
func newDirectory(g Geometry) Directory {
	dir := make(Directory, g.DirEntryCount())
	for i := range dir {
		dir[i].Status = StatusFree
	}
	return dir
}

func decodeDirectory(g Geometry, region []byte) (Directory, error) {
	dir := make(Directory, g.DirEntryCount())
	for i := range dir {
		entry, err := decodeDirEntry(region[i*DirEntrySize : (i+1)*DirEntrySize])
		if err != nil {
			return nil, err
		}
		dir[i] = entry
	}
	return dir, nil
}

// encodeInto writes the entries at the beginning of region.
func (d Directory) encodeInto(region []byte) {
	for i, entry := range d {
		copy(region[i*DirEntrySize:], entry.encode())
	}
}

func (d Directory) clone() Directory {
	c := make(Directory, len(d))
	copy(c, d)
	return c
}

// ScanFree returns the first slot which is marked as free.
func (d Directory) ScanFree() (int, error) {
	for i := range d {
		if d[i].Status == StatusFree {
			return i, nil
		}
	}
	return -1, checkpoint.From(ErrDirectoryFull)
}

// FindByName returns the first valid slot whose display name equals name.
func (d Directory) FindByName(name string) (int, error) {
	for i := range d {
		if d[i].IsValid() && d[i].Name() == name {
			return i, nil
		}
	}
	return -1, checkpoint.Wrap(fmt.Errorf("%q", name), ErrNotFound)
}

// ValidCount returns how many slots hold a file.
func (d Directory) ValidCount() int {
	count := 0
	for i := range d {
		if d[i].IsValid() {
			count++
		}
	}
	return count
}

// MarkDeleted zeroes the slot and marks it free.
func (d Directory) MarkDeleted(i int) {
	d[i] = DirEntry{Status: StatusFree}
}

// BuildEntry creates a valid entry for name. The name gets split at the first dot,
// the part before is cut to 12 bytes, the part after to 4 bytes. A cut never splits a rune.
func BuildEntry(name string, firstSector uint32, size uint32) (DirEntry, error) {
	base, ext := name, ""
	if dot := strings.IndexByte(name, '.'); dot >= 0 {
		base, ext = name[:dot], name[dot+1:]
	}

	if base == "" || strings.ContainsAny(name, "/\x00") || !utf8.ValidString(name) {
		return DirEntry{}, checkpoint.Wrap(fmt.Errorf("%q", name), ErrInvalidName)
	}

	entry := DirEntry{
		Status:      StatusValid,
		FirstSector: firstSector,
		FileSize:    size,
	}
	// The remaining bytes stay zero.
	copy(entry.Filename[:], truncate(base, len(entry.Filename)))
	copy(entry.Extension[:], truncate(ext, len(entry.Extension)))

	return entry, nil
}

// truncate cuts s to at most n bytes at a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func (e DirEntry) IsValid() bool {
	return e.Status == StatusValid
}

// Name returns filename.extension, or just the filename if there is no extension.
// Both fields end at the first zero byte or at their full width.
func (e DirEntry) Name() string {
	name := cString(e.Filename[:])
	ext := cString(e.Extension[:])

	if ext != "" {
		name += "."
	}

	return name + ext
}

// listable reports whether the entry shows up in a listing.
func (e DirEntry) listable() bool {
	name := cString(e.Filename[:])
	return e.IsValid() && e.FileSize != 0 && name != "" && name != "."
}

func cString(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(field)
}
