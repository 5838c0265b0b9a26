package sectorfs

import (
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/aligator/sectorfs/checkpoint"
)

// fileFs provides all methods needed from an Fs for File.
// It mainly exists to be able to mock the Fs in tests.
// Generated mock using mockgen:
//  mockgen -source=file.go -destination=file_mock.go -package sectorfs
type fileFs interface {
	readFileAt(firstSector uint32, fileSize int64, offset int64, readSize int64) ([]byte, error)
}

// File is a read only handle to a file stored in an image.
type File struct {
	fs     fileFs
	info   FileInfo
	offset int64
}

func (f *File) Close() error {
	f.fs = nil
	f.info = FileInfo{}
	f.offset = 0

	return nil
}

func (f *File) Read(p []byte) (n int, err error) {
	if f.fs == nil {
		return 0, checkpoint.Wrap(os.ErrClosed, ErrReadFile)
	}

	if len(p) == 0 {
		return 0, nil
	}

	// Reading a file if the size has been already reached, makes no sense.
	if f.info.Size() <= f.offset {
		return 0, io.EOF
	}

	n, err = f.ReadAt(p, f.offset)
	f.offset += int64(n)

	// Running into the end of the file is reported by the next Read.
	if err == io.EOF && n > 0 {
		err = nil
	}

	return n, err
}

func (f *File) ReadAt(p []byte, off int64) (n int, err error) {
	if f.fs == nil {
		return 0, checkpoint.Wrap(os.ErrClosed, ErrReadFile)
	}

	if off < 0 {
		return 0, checkpoint.Wrap(fmt.Errorf("%w, offset: %v", syscall.EINVAL, off), ErrReadFile)
	}

	size := f.info.Size()

	// Reading over the end makes no sense.
	if size <= off {
		return 0, io.EOF
	}

	want := int64(len(p))
	if off+want > size {
		want = size - off
	}

	data, err := f.fs.readFileAt(f.info.Entry.FirstSector, size, off, want)
	n = copy(p, data)

	if err != nil {
		return n, checkpoint.Wrap(err, ErrReadFile)
	}

	if int64(n) < want {
		return n, checkpoint.Wrap(fmt.Errorf("got %d of %d bytes", n, want), ErrReadFile)
	}

	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Seek jumps to a specific offset in the file. This affects all Read operation except ReadAt.
// May return a syscall.EINVAL error if the whence value is invalid.
// May return an ErrSeekFile error if the offset is out of range.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset = f.offset + offset
	case io.SeekEnd:
		offset = f.info.Size() + offset
	default:
		return 0, checkpoint.Wrap(fmt.Errorf("%w, offset: %v, whence: %v", syscall.EINVAL, offset, whence), ErrSeekFile)
	}

	if offset < 0 || offset > f.info.Size() {
		return 0, checkpoint.Wrap(fmt.Errorf("offset: %v, whence: %v", offset, whence), ErrSeekFile)
	}

	f.offset = offset
	return offset, nil
}

func (f *File) Name() string {
	return f.info.Name()
}

func (f *File) Stat() (os.FileInfo, error) {
	return f.info, nil
}
