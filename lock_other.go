//go:build !unix

package sectorfs

import "github.com/spf13/afero"

// lockImage only relies on the in-process lock of Fs on this platform.
func lockImage(file afero.File) (func() error, error) {
	return func() error { return nil }, nil
}
