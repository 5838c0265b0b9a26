// File model contains the structs which match the direct structures of the image.
// All of them are stored little endian and without any padding.

package sectorfs

import (
	"bytes"
	"encoding/binary"

	"github.com/aligator/sectorfs/checkpoint"
)

const (
	BootRecordSize = 31
	DirEntrySize   = 32
)

// Directory entry status values.
const (
	StatusValid byte = 0x00
	StatusFree  byte = 0xFF
)

// BootRecord is stored once at offset 0. The rest of the reserved sectors is zero.
type BootRecord struct {
	SectorSize      uint16
	SectorsPerBlock uint8
	ReservedSectors uint16
	DirSectors      uint16
	DataSectors     uint16
	BitmapSectors   uint16
	TotalSectors    uint16
	FileCount       uint32
	// FirstFreeSector is only a hint, the bitmap decides.
	FirstFreeSector uint32
	Reserved        [10]byte
}

type DirEntry struct {
	Status      byte
	Filename    [12]byte
	Extension   [4]byte
	Attributes  byte
	FirstSector uint32
	FileSize    uint32
	Reserved    [6]byte
}

func newBootRecord(g Geometry) BootRecord {
	return BootRecord{
		SectorSize:      g.SectorSize,
		SectorsPerBlock: g.SectorsPerBlock,
		ReservedSectors: g.ReservedSectors,
		DirSectors:      g.DirSectors,
		DataSectors:     g.DataSectors,
		BitmapSectors:   g.BitmapSectors,
		TotalSectors:    uint16(g.TotalSectors()),
		FileCount:       0,
		FirstFreeSector: g.DataStart(),
	}
}

// Geometry returns the layout echoed by the boot record.
func (b BootRecord) Geometry() Geometry {
	return Geometry{
		SectorSize:      b.SectorSize,
		SectorsPerBlock: b.SectorsPerBlock,
		ReservedSectors: b.ReservedSectors,
		DirSectors:      b.DirSectors,
		BitmapSectors:   b.BitmapSectors,
		DataSectors:     b.DataSectors,
	}
}

func (b BootRecord) encode() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, BootRecordSize))
	// Writing into a bytes.Buffer cannot fail.
	_ = binary.Write(buf, binary.LittleEndian, &b)
	return buf.Bytes()
}

func decodeBootRecord(data []byte) (BootRecord, error) {
	b := BootRecord{}
	err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &b)
	if err != nil {
		return BootRecord{}, checkpoint.Wrap(err, ErrInvalidImage)
	}
	return b, nil
}

func (e DirEntry) encode() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, DirEntrySize))
	_ = binary.Write(buf, binary.LittleEndian, &e)
	return buf.Bytes()
}

func decodeDirEntry(data []byte) (DirEntry, error) {
	e := DirEntry{}
	err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &e)
	if err != nil {
		return DirEntry{}, checkpoint.Wrap(err, ErrInvalidImage)
	}
	return e, nil
}
