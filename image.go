package sectorfs

import (
	"fmt"
	"io"

	"github.com/aligator/sectorfs/checkpoint"
	"github.com/spf13/afero"
)

// image is the only place which touches the backing file.
// Every access is a whole record at an offset computed from the geometry.
type image struct {
	file afero.File
	geo  Geometry
}

// readRecord reads exactly size bytes at offset.
func (img *image) readRecord(offset int64, size int) ([]byte, error) {
	buffer := make([]byte, size)
	n, err := img.file.ReadAt(buffer, offset)
	if n < size {
		if err == nil || err == io.EOF {
			err = fmt.Errorf("read %d of %d bytes at offset %d", n, size, offset)
		}
		return nil, checkpoint.Wrap(err, ErrTruncatedRead)
	}

	// A full read may still report io.EOF at the end of the file.
	return buffer, nil
}

// writeRecord writes all of data at offset.
func (img *image) writeRecord(offset int64, data []byte) error {
	n, err := img.file.WriteAt(data, offset)
	if err == nil && n < len(data) {
		err = fmt.Errorf("wrote %d of %d bytes at offset %d", n, len(data), offset)
	}
	return checkpoint.Wrap(err, ErrTruncatedWrite)
}

// readMetadata reads every sector in front of the data region.
func (img *image) readMetadata() ([]byte, error) {
	return img.readRecord(0, img.geo.MetadataSize())
}

// readDataSector reads one sector of the data region.
// If the image ends inside of the sector, the missing part is zero.
func (img *image) readDataSector(sector uint32) ([]byte, error) {
	buffer := make([]byte, img.geo.SectorSize)
	_, err := img.file.ReadAt(buffer, img.geo.Offset(sector))
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, checkpoint.Wrap(err, ErrTruncatedRead)
	}
	return buffer, nil
}

// writeDataSector writes data to one sector of the data region.
// Data shorter than a sector is padded with zeros.
func (img *image) writeDataSector(sector uint32, data []byte) error {
	if len(data) > int(img.geo.SectorSize) {
		return checkpoint.Wrap(fmt.Errorf("%d bytes do not fit a sector", len(data)), ErrTruncatedWrite)
	}

	buffer := data
	if len(data) < int(img.geo.SectorSize) {
		buffer = make([]byte, img.geo.SectorSize)
		copy(buffer, data)
	}

	return img.writeRecord(img.geo.Offset(sector), buffer)
}

func (img *image) sync() error {
	return checkpoint.Wrap(img.file.Sync(), ErrTruncatedWrite)
}
