package sectorfs

import (
	"fmt"
	"io"

	"github.com/aligator/sectorfs/checkpoint"
)

// reload reads the metadata as it is on the image right now.
func (fs *Fs) reload() (state, error) {
	metadata, err := fs.img.readMetadata()
	if err != nil {
		return state{}, err
	}
	return decodeState(metadata)
}

// Dump writes a human readable view of the boot record, the valid directory entries
// and the raw bitmap to w. Everything is read directly from the image.
func (fs *Fs) Dump(w io.Writer) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if err := fs.checkOpen(); err != nil {
		return err
	}

	s, err := fs.reload()
	if err != nil {
		return err
	}

	p := &dumpPrinter{w: w}
	b := s.boot

	p.printf("[Boot record]\n")
	p.printf("Bytes per sector:   %d\n", b.SectorSize)
	p.printf("Sectors per block:  %d\n", b.SectorsPerBlock)
	p.printf("Reserved sectors:   %d\n", b.ReservedSectors)
	p.printf("Directory sectors:  %d\n", b.DirSectors)
	p.printf("Bitmap sectors:     %d\n", b.BitmapSectors)
	p.printf("Data sectors:       %d\n", b.DataSectors)
	p.printf("Total sectors:      %d\n", b.TotalSectors)
	p.printf("File count:         %d\n", b.FileCount)
	p.printf("First free sector:  %d\n", b.FirstFreeSector)

	p.printf("\n[Directory]\n")
	for slot, entry := range s.dir {
		if !entry.IsValid() {
			continue
		}
		p.printf("File %d:\n", slot+1)
		p.printf("  Name:         %s\n", entry.Name())
		p.printf("  Attributes:   %d\n", entry.Attributes)
		p.printf("  First sector: %d\n", entry.FirstSector)
		p.printf("  Size:         %d bytes\n", entry.FileSize)
	}

	p.printf("\n[Bitmap]\n")
	for i, value := range s.bitmap.Bytes() {
		p.printf("%02X ", value)
		if (i+1)%16 == 0 {
			p.printf("\n")
		}
	}

	return p.err
}

// dumpPrinter remembers the first write error so Dump can check it once.
type dumpPrinter struct {
	w   io.Writer
	err error
}

func (p *dumpPrinter) printf(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, err := fmt.Fprintf(p.w, format, args...)
	p.err = checkpoint.From(err)
}
