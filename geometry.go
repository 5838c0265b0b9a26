package sectorfs

import (
	"fmt"
	"math"
	"strings"

	"github.com/aligator/sectorfs/checkpoint"
)

// Geometry describes the sector layout of an image.
// The regions follow each other in this order: reserved (boot record), directory, bitmap, data.
type Geometry struct {
	SectorSize      uint16
	SectorsPerBlock uint8
	ReservedSectors uint16
	DirSectors      uint16
	BitmapSectors   uint16
	DataSectors     uint16
}

// The two known on-disk versions. They are not compatible with each other.
var (
	VersionA = Geometry{
		SectorSize:      512,
		SectorsPerBlock: 8,
		ReservedSectors: 1,
		DirSectors:      2,
		BitmapSectors:   1,
		DataSectors:     196,
	}
	VersionB = Geometry{
		SectorSize:      512,
		SectorsPerBlock: 8,
		ReservedSectors: 1,
		DirSectors:      1,
		BitmapSectors:   2,
		DataSectors:     196,
	}
)

// GeometryByName returns the geometry of a named version ("a" or "b", case insensitive).
func GeometryByName(name string) (Geometry, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "a", "":
		return VersionA, nil
	case "b":
		return VersionB, nil
	}
	return Geometry{}, checkpoint.Wrap(fmt.Errorf("unknown version %q", name), ErrInvalidGeometry)
}

func (g Geometry) TotalSectors() uint32 {
	return uint32(g.ReservedSectors) + uint32(g.DirSectors) + uint32(g.BitmapSectors) + uint32(g.DataSectors)
}

func (g Geometry) DirStart() uint32 {
	return uint32(g.ReservedSectors)
}

func (g Geometry) BitmapStart() uint32 {
	return g.DirStart() + uint32(g.DirSectors)
}

// DataStart is the first absolute sector of the data region.
func (g Geometry) DataStart() uint32 {
	return g.BitmapStart() + uint32(g.BitmapSectors)
}

// DataEnd is the first absolute sector after the data region.
func (g Geometry) DataEnd() uint32 {
	return g.DataStart() + uint32(g.DataSectors)
}

// Offset returns the byte offset of an absolute sector.
func (g Geometry) Offset(sector uint32) int64 {
	return int64(sector) * int64(g.SectorSize)
}

func (g Geometry) DirEntryCount() int {
	return int(g.DirSectors) * int(g.SectorSize) / DirEntrySize
}

func (g Geometry) BitmapSize() int {
	return int(g.BitmapSectors) * int(g.SectorSize)
}

// MetadataSize is the byte size of everything before the data region.
func (g Geometry) MetadataSize() int {
	return int(g.DataStart()) * int(g.SectorSize)
}

// ImageSize is the byte size of a formatted image.
func (g Geometry) ImageSize() int64 {
	return g.Offset(g.TotalSectors())
}

// SectorsFor returns how many sectors a file of the given size occupies.
func (g Geometry) SectorsFor(size int64) uint32 {
	if size <= 0 {
		return 0
	}
	return uint32((size + int64(g.SectorSize) - 1) / int64(g.SectorSize))
}

// Validate checks that the regions can hold what the format puts into them.
func (g Geometry) Validate() error {
	switch {
	case g.SectorSize < BootRecordSize:
		return checkpoint.Wrap(fmt.Errorf("sector size %d cannot hold the boot record", g.SectorSize), ErrInvalidGeometry)
	case g.SectorSize%DirEntrySize != 0:
		return checkpoint.Wrap(fmt.Errorf("sector size %d is not a multiple of %d", g.SectorSize, DirEntrySize), ErrInvalidGeometry)
	case g.ReservedSectors == 0:
		return checkpoint.Wrap(fmt.Errorf("no reserved sector for the boot record"), ErrInvalidGeometry)
	case g.DirSectors == 0:
		return checkpoint.Wrap(fmt.Errorf("no directory sectors"), ErrInvalidGeometry)
	case g.BitmapSectors == 0:
		return checkpoint.Wrap(fmt.Errorf("no bitmap sectors"), ErrInvalidGeometry)
	case g.DataSectors == 0:
		return checkpoint.Wrap(fmt.Errorf("no data sectors"), ErrInvalidGeometry)
	case g.TotalSectors() > math.MaxUint16:
		return checkpoint.Wrap(fmt.Errorf("%d sectors do not fit the boot record", g.TotalSectors()), ErrInvalidGeometry)
	case g.BitmapSize()*8 < int(g.DataSectors):
		return checkpoint.Wrap(fmt.Errorf("bitmap of %d bytes cannot track %d sectors", g.BitmapSize(), g.DataSectors), ErrInvalidGeometry)
	}
	return nil
}

func (g Geometry) String() string {
	return fmt.Sprintf("%d sectors of %d bytes (reserved %d, dir %d, bitmap %d, data %d)",
		g.TotalSectors(), g.SectorSize, g.ReservedSectors, g.DirSectors, g.BitmapSectors, g.DataSectors)
}
