package sectorfs

import (
	"fmt"

	"github.com/aligator/sectorfs/checkpoint"
)

// Bitmap tracks which data sectors are allocated.
// Bit i (least significant bit first inside each byte) belongs to the absolute sector origin+i.
// All methods take absolute sector numbers; sectors outside of the data region
// are treated as allocated and are never modified.
type Bitmap struct {
	bits   []byte
	origin uint32
	count  uint32
}

func newBitmap(g Geometry, region []byte) *Bitmap {
	bits := make([]byte, g.BitmapSize())
	copy(bits, region)
	return &Bitmap{
		bits:   bits,
		origin: g.DataStart(),
		count:  uint32(g.DataSectors),
	}
}

func (b *Bitmap) clone() *Bitmap {
	bits := make([]byte, len(b.bits))
	copy(bits, b.bits)
	return &Bitmap{
		bits:   bits,
		origin: b.origin,
		count:  b.count,
	}
}

// Bytes returns the raw bitmap region.
func (b *Bitmap) Bytes() []byte {
	return b.bits
}

func (b *Bitmap) index(sector uint32) (uint32, bool) {
	if sector < b.origin || sector-b.origin >= b.count {
		return 0, false
	}
	return sector - b.origin, true
}

// IsAllocated reports whether the sector is in use.
func (b *Bitmap) IsAllocated(sector uint32) bool {
	i, ok := b.index(sector)
	if !ok {
		return true
	}
	return b.bits[i/8]&(1<<(i%8)) != 0
}

// FindContiguousFree returns the first sector of the first run of at least need free
// sectors inside [rangeStart, rangeEnd). The scan stops as soon as a run is long enough.
func (b *Bitmap) FindContiguousFree(rangeStart, rangeEnd, need uint32) (uint32, error) {
	if rangeStart < b.origin {
		rangeStart = b.origin
	}
	if end := b.origin + b.count; rangeEnd > end {
		rangeEnd = end
	}

	if need == 0 {
		return rangeStart, nil
	}

	var start, run uint32
	for sector := rangeStart; sector < rangeEnd; sector++ {
		if b.IsAllocated(sector) {
			run = 0
			continue
		}

		if run == 0 {
			start = sector
		}
		run++

		if run == need {
			return start, nil
		}
	}

	return 0, checkpoint.Wrap(fmt.Errorf("need %d sectors", need), ErrOutOfSpace)
}

// MarkAllocated sets the bits of count sectors beginning at start.
func (b *Bitmap) MarkAllocated(start, count uint32) {
	for sector := start; sector < start+count; sector++ {
		if i, ok := b.index(sector); ok {
			b.bits[i/8] |= 1 << (i % 8)
		}
	}
}

// MarkFree clears the bits of count sectors beginning at start.
func (b *Bitmap) MarkFree(start, count uint32) {
	for sector := start; sector < start+count; sector++ {
		if i, ok := b.index(sector); ok {
			b.bits[i/8] &^= 1 << (i % 8)
		}
	}
}

// FreeCount returns the number of free data sectors.
func (b *Bitmap) FreeCount() uint32 {
	var free uint32
	for sector := b.origin; sector < b.origin+b.count; sector++ {
		if !b.IsAllocated(sector) {
			free++
		}
	}
	return free
}

// FirstFree returns the lowest free sector, or the end of the data region if everything is in use.
func (b *Bitmap) FirstFree() uint32 {
	for sector := b.origin; sector < b.origin+b.count; sector++ {
		if !b.IsAllocated(sector) {
			return sector
		}
	}
	return b.origin + b.count
}
