//go:build unix

package sectorfs

import (
	"errors"
	"os"

	"github.com/aligator/sectorfs/checkpoint"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

// lockImage sets an exclusive advisory lock on images backed by a real file.
// It fails with ErrLocked instead of waiting if somebody else holds the lock.
// The returned function releases the lock.
func lockImage(file afero.File) (func() error, error) {
	osFile, ok := file.(*os.File)
	if !ok {
		return func() error { return nil }, nil
	}

	fd := int(osFile.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, checkpoint.Wrap(err, ErrLocked)
		}
		return nil, checkpoint.From(err)
	}

	return func() error {
		return checkpoint.From(unix.Flock(fd, unix.LOCK_UN))
	}, nil
}
