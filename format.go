package sectorfs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aligator/sectorfs/checkpoint"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// DefaultProtected lists the file names Format refuses to overwrite if nothing else is configured.
var DefaultProtected = []string{"go.mod", "go.sum"}

type FormatOptions struct {
	// Geometry of the new image. The zero value means VersionA.
	Geometry Geometry
	// Protected file names (compared to the base name of the target). nil means DefaultProtected.
	Protected []string
	Logger    logrus.FieldLogger
}

// Format creates a new empty image at path, replacing whatever was there before.
// The boot record, the directory with only free slots, an empty bitmap and
// the zeroed data region get written in this order.
func Format(host afero.Fs, path string, options FormatOptions) error {
	geo := options.Geometry
	if geo == (Geometry{}) {
		geo = VersionA
	}
	if err := geo.Validate(); err != nil {
		return err
	}

	protected := options.Protected
	if protected == nil {
		protected = DefaultProtected
	}

	base := filepath.Base(path)
	for _, name := range protected {
		if base == name {
			return checkpoint.Wrap(fmt.Errorf("%q", path), ErrProtectedTarget)
		}
	}

	if stat, err := host.Stat(path); err == nil && stat.IsDir() {
		return checkpoint.Wrap(fmt.Errorf("%q is a directory", path), ErrProtectedTarget)
	}

	logger := options.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	// Truncate only after the lock is held.
	file, err := host.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return checkpoint.Wrap(err, ErrImageNotFound)
	}
	defer file.Close()

	unlock, err := lockImage(file)
	if err != nil {
		return err
	}
	defer unlock()

	if err := file.Truncate(0); err != nil {
		return checkpoint.Wrap(err, ErrTruncatedWrite)
	}

	img := &image{file: file, geo: geo}
	if err := img.writeRecord(0, newState(geo).encode(geo)); err != nil {
		return err
	}

	zero := make([]byte, geo.SectorSize)
	for sector := geo.DataStart(); sector < geo.DataEnd(); sector++ {
		if err := img.writeDataSector(sector, zero); err != nil {
			return err
		}
	}

	if err := img.sync(); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"image":    path,
		"geometry": geo.String(),
	}).Debug("formatted image")

	return nil
}
