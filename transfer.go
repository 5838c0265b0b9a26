package sectorfs

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/aligator/sectorfs/checkpoint"
	"github.com/sirupsen/logrus"
)

// CopyIn copies the host file src into the image as name.
// If name is empty, the base name of src is used.
// The file gets stored in the first contiguous run of free sectors big enough for it.
// An empty file occupies no sectors, its entry points to the search start.
// On any error the metadata of the image stays untouched.
func (fs *Fs) CopyIn(src string, name string) (FileInfo, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if err := fs.checkOpen(); err != nil {
		return FileInfo{}, err
	}

	source, err := fs.host.Open(src)
	if err != nil {
		return FileInfo{}, checkpoint.Wrap(err, ErrSourceNotFound)
	}
	defer source.Close()

	stat, err := source.Stat()
	if err != nil {
		return FileInfo{}, checkpoint.Wrap(err, ErrSourceNotFound)
	}
	if stat.IsDir() {
		return FileInfo{}, checkpoint.Wrap(fmt.Errorf("%q is a directory", src), ErrSourceNotFound)
	}

	size := stat.Size()
	if size > math.MaxUint32 {
		return FileInfo{}, checkpoint.Wrap(fmt.Errorf("%q has %d bytes", src, size), ErrOutOfSpace)
	}

	if name == "" {
		name = filepath.Base(src)
	}

	entry, err := BuildEntry(name, 0, uint32(size))
	if err != nil {
		return FileInfo{}, err
	}

	// The stored name may be shorter than the requested one.
	if _, err := fs.dir.FindByName(entry.Name()); err == nil {
		return FileInfo{}, checkpoint.Wrap(fmt.Errorf("%q", entry.Name()), ErrExists)
	}

	next := fs.state.clone()

	slot, err := next.dir.ScanFree()
	if err != nil {
		return FileInfo{}, err
	}

	g := fs.img.geo
	need := g.SectorsFor(size)

	start, err := next.bitmap.FindContiguousFree(fs.searchStart(), g.DataEnd(), need)
	if err != nil && fs.searchStart() != g.DataStart() {
		// The hint may be stale, the bitmap decides.
		start, err = next.bitmap.FindContiguousFree(g.DataStart(), g.DataEnd(), need)
	}
	if err != nil {
		return FileInfo{}, err
	}

	logger := fs.logger().WithFields(logrus.Fields{
		"file":    entry.Name(),
		"sector":  start,
		"sectors": need,
	})
	logger.Debug("allocated sectors")

	if err := fs.writeData(source, start, size); err != nil {
		return FileInfo{}, err
	}

	entry.FirstSector = start
	next.bitmap.MarkAllocated(start, need)
	next.dir[slot] = entry
	next.boot.FileCount++
	next.boot.FirstFreeSector = next.bitmap.FirstFree()

	if err := fs.commit(next); err != nil {
		return FileInfo{}, err
	}

	logger.WithField("slot", slot).Debug("copied file into image")

	return FileInfo{Slot: slot, Entry: entry}, nil
}

// writeData streams size bytes of r sector by sector into the data region beginning at start.
func (fs *Fs) writeData(r io.Reader, start uint32, size int64) error {
	sectorSize := int64(fs.img.geo.SectorSize)
	buffer := make([]byte, sectorSize)

	sector := start
	for remaining := size; remaining > 0; remaining -= sectorSize {
		chunk := buffer
		if remaining < sectorSize {
			chunk = buffer[:remaining]
		}

		_, err := io.ReadFull(r, chunk)
		if err != nil {
			return checkpoint.Wrap(fmt.Errorf("source changed while copying: %w", err), ErrTruncatedRead)
		}

		if err := fs.img.writeDataSector(sector, chunk); err != nil {
			return err
		}
		sector++
	}

	return nil
}

// Open returns a read only handle to the file called name.
func (fs *Fs) Open(name string) (*File, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	info, err := fs.stat(name)
	if err != nil {
		return nil, err
	}

	return &File{
		fs:   lockedFs{fs},
		info: info,
	}, nil
}

// Stat returns the FileInfo of the file called name.
func (fs *Fs) Stat(name string) (FileInfo, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	return fs.stat(name)
}

func (fs *Fs) stat(name string) (FileInfo, error) {
	if err := fs.checkOpen(); err != nil {
		return FileInfo{}, err
	}

	slot, err := fs.dir.FindByName(name)
	if err != nil {
		return FileInfo{}, err
	}

	return FileInfo{Slot: slot, Entry: fs.dir[slot]}, nil
}

// CopyOut copies the file called name to the host file dst.
// If dst is empty, name is used. Exactly the size of the file gets written,
// the padding of the last sector stays in the image.
func (fs *Fs) CopyOut(name, dst string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	info, err := fs.stat(name)
	if err != nil {
		return err
	}

	if dst == "" {
		dst = name
	}

	// The lock is already held, so the file reads from fs directly.
	file := &File{fs: fs, info: info}

	target, err := fs.host.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return checkpoint.From(err)
	}

	written, err := io.Copy(target, file)
	if err != nil {
		_ = target.Close()
		return checkpoint.From(err)
	}

	if written != info.Size() {
		_ = target.Close()
		return checkpoint.Wrap(fmt.Errorf("wrote %d of %d bytes to %q", written, info.Size(), dst), ErrTruncatedWrite)
	}

	if err := target.Close(); err != nil {
		return checkpoint.Wrap(err, ErrTruncatedWrite)
	}

	fs.logger().WithFields(logrus.Fields{
		"file":   name,
		"target": dst,
	}).Debug("copied file out of image")

	return nil
}

// List returns all files which have a size and a name, in directory order.
func (fs *Fs) List() ([]FileInfo, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if err := fs.checkOpen(); err != nil {
		return nil, err
	}

	var infos []FileInfo
	for slot, entry := range fs.dir {
		if entry.listable() {
			infos = append(infos, FileInfo{Slot: slot, Entry: entry})
		}
	}

	return infos, nil
}

// Remove deletes the file called name and frees its sectors.
func (fs *Fs) Remove(name string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if err := fs.checkOpen(); err != nil {
		return err
	}

	slot, err := fs.dir.FindByName(name)
	if err != nil {
		return err
	}

	next := fs.state.clone()
	entry := next.dir[slot]
	count := fs.img.geo.SectorsFor(int64(entry.FileSize))

	next.bitmap.MarkFree(entry.FirstSector, count)
	next.dir.MarkDeleted(slot)
	if next.boot.FileCount > 0 {
		next.boot.FileCount--
	}
	next.boot.FirstFreeSector = next.bitmap.FirstFree()

	if err := fs.commit(next); err != nil {
		return err
	}

	fs.logger().WithFields(logrus.Fields{
		"file":    name,
		"sector":  entry.FirstSector,
		"sectors": count,
	}).Debug("removed file")

	return nil
}
