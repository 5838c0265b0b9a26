package sectorfs

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/aligator/sectorfs/checkpoint"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// state is everything in front of the data region.
// Mutations always work on a clone which gets committed as a whole.
type state struct {
	boot   BootRecord
	dir    Directory
	bitmap *Bitmap
}

func newState(g Geometry) state {
	return state{
		boot:   newBootRecord(g),
		dir:    newDirectory(g),
		bitmap: newBitmap(g, nil),
	}
}

func decodeState(metadata []byte) (state, error) {
	boot, err := decodeBootRecord(metadata[:BootRecordSize])
	if err != nil {
		return state{}, err
	}

	if err := checkBootRecord(boot); err != nil {
		return state{}, err
	}

	g := boot.Geometry()
	if len(metadata) < g.MetadataSize() {
		return state{}, checkpoint.Wrap(fmt.Errorf("got %d bytes of metadata, need %d", len(metadata), g.MetadataSize()), ErrTruncatedRead)
	}

	dir, err := decodeDirectory(g, metadata[g.Offset(g.DirStart()):g.Offset(g.BitmapStart())])
	if err != nil {
		return state{}, err
	}

	return state{
		boot:   boot,
		dir:    dir,
		bitmap: newBitmap(g, metadata[g.Offset(g.BitmapStart()):g.Offset(g.DataStart())]),
	}, nil
}

// checkBootRecord rejects boot records whose regions do not describe a usable image.
func checkBootRecord(boot BootRecord) error {
	g := boot.Geometry()
	if err := g.Validate(); err != nil {
		return checkpoint.Wrap(err, ErrInvalidImage)
	}
	if uint32(boot.TotalSectors) != g.TotalSectors() {
		return checkpoint.Wrap(fmt.Errorf("total sectors %d do not match the regions (%d)", boot.TotalSectors, g.TotalSectors()), ErrInvalidImage)
	}
	return nil
}

func (s state) clone() state {
	return state{
		boot:   s.boot,
		dir:    s.dir.clone(),
		bitmap: s.bitmap.clone(),
	}
}

// encode builds the metadata prefix of the image: boot record, directory and bitmap.
func (s state) encode(g Geometry) []byte {
	metadata := make([]byte, g.MetadataSize())
	copy(metadata, s.boot.encode())
	s.dir.encodeInto(metadata[g.Offset(g.DirStart()):g.Offset(g.BitmapStart())])
	copy(metadata[g.Offset(g.BitmapStart()):], s.bitmap.Bytes())
	return metadata
}

// Option configures an Fs.
type Option func(fs *Fs)

// WithLogger sets the logger used for debug output. The default is the logrus standard logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(fs *Fs) {
		fs.log = logger
	}
}

// Fs is an opened disk image. Its methods may be used from several goroutines,
// they are serialized by an internal lock.
// Images backed by a real file are additionally locked against other processes while opened.
type Fs struct {
	lock   sync.Mutex
	host   afero.Fs
	path   string
	img    *image
	unlock func() error
	log    logrus.FieldLogger

	state
}

// Open loads the image at path from host.
// host is also used to access the source and target files of CopyIn and CopyOut.
func Open(host afero.Fs, path string, options ...Option) (*Fs, error) {
	file, err := host.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrImageNotFound)
	}

	unlock, err := lockImage(file)
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	fs := &Fs{
		host:   host,
		path:   path,
		unlock: unlock,
		log:    logrus.StandardLogger(),
	}
	for _, option := range options {
		option(fs)
	}

	err = fs.load(file)
	if err != nil {
		_ = unlock()
		_ = file.Close()
		return nil, err
	}

	fs.logger().WithField("geometry", fs.img.geo.String()).Debug("opened image")
	return fs, nil
}

func (fs *Fs) load(file afero.File) error {
	// The boot record tells how big the rest of the metadata is.
	probe := &image{file: file}
	record, err := probe.readRecord(0, BootRecordSize)
	if err != nil {
		return err
	}
	boot, err := decodeBootRecord(record)
	if err != nil {
		return err
	}

	if err := checkBootRecord(boot); err != nil {
		return err
	}
	img := &image{file: file, geo: boot.Geometry()}

	metadata, err := img.readMetadata()
	if err != nil {
		return err
	}

	s, err := decodeState(metadata)
	if err != nil {
		return err
	}

	fs.img = img
	fs.state = s
	return nil
}

// Close releases the image. Files opened from it cannot be read anymore.
func (fs *Fs) Close() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if fs.img == nil {
		return checkpoint.From(ErrClosed)
	}

	unlockErr := fs.unlock()
	closeErr := fs.img.file.Close()
	fs.img = nil

	if unlockErr != nil {
		return unlockErr
	}
	return checkpoint.From(closeErr)
}

// Name returns the path of the image.
func (fs *Fs) Name() string {
	return fs.path
}

func (fs *Fs) Geometry() Geometry {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	return fs.boot.Geometry()
}

// BootRecord returns the boot record as of the last commit.
func (fs *Fs) BootRecord() BootRecord {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	return fs.boot
}

func (fs *Fs) checkOpen() error {
	if fs.img == nil {
		return checkpoint.From(ErrClosed)
	}
	return nil
}

func (fs *Fs) logger() logrus.FieldLogger {
	return fs.log.WithField("image", fs.path)
}

// commit persists next and makes it the current state.
// File data has to be written before. The metadata regions are adjacent,
// so boot record, directory and bitmap go to the image in one single write.
func (fs *Fs) commit(next state) error {
	err := fs.img.writeRecord(0, next.encode(fs.img.geo))
	if err != nil {
		return err
	}

	err = fs.img.sync()
	if err != nil {
		return err
	}

	fs.state = next
	return nil
}

// searchStart clamps the first free sector hint into the data region.
func (fs *Fs) searchStart() uint32 {
	hint := fs.boot.FirstFreeSector
	if hint < fs.img.geo.DataStart() || hint >= fs.img.geo.DataEnd() {
		return fs.img.geo.DataStart()
	}
	return hint
}

// readFileAt reads readSize bytes at offset of the file beginning at firstSector.
// It never reads beyond fileSize and returns io.EOF if the read got cut because of that.
func (fs *Fs) readFileAt(firstSector uint32, fileSize int64, offset int64, readSize int64) ([]byte, error) {
	if err := fs.checkOpen(); err != nil {
		return nil, err
	}

	if offset >= fileSize {
		return nil, io.EOF
	}

	end := offset + readSize
	cut := false
	if end > fileSize {
		end = fileSize
		cut = true
	}

	g := fs.img.geo
	sectorSize := int64(g.SectorSize)
	result := make([]byte, 0, end-offset)

	for pos := offset; pos < end; {
		sector := firstSector + uint32(pos/sectorSize)
		if sector < g.DataStart() || sector >= g.DataEnd() {
			return result, checkpoint.Wrap(fmt.Errorf("sector %d is outside of the data region", sector), ErrInvalidImage)
		}

		data, err := fs.img.readDataSector(sector)
		if err != nil {
			return result, err
		}

		from := pos % sectorSize
		n := sectorSize - from
		if pos+n > end {
			n = end - pos
		}

		result = append(result, data[from:from+n]...)
		pos += n
	}

	if cut {
		return result, io.EOF
	}
	return result, nil
}

// lockedFs guards reads of files handed out by Fs.Open.
type lockedFs struct {
	fs *Fs
}

func (l lockedFs) readFileAt(firstSector uint32, fileSize int64, offset int64, readSize int64) ([]byte, error) {
	l.fs.lock.Lock()
	defer l.fs.lock.Unlock()
	return l.fs.readFileAt(firstSector, fileSize, offset, readSize)
}

// Usage summarizes how much of the image is in use.
type Usage struct {
	DataSectors uint32
	FreeSectors uint32
	Slots       int
	FreeSlots   int
	Files       uint32
}

func (fs *Fs) Usage() (Usage, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if err := fs.checkOpen(); err != nil {
		return Usage{}, err
	}

	freeSlots := 0
	for _, entry := range fs.dir {
		if entry.Status == StatusFree {
			freeSlots++
		}
	}

	return Usage{
		DataSectors: uint32(fs.img.geo.DataSectors),
		FreeSectors: fs.bitmap.FreeCount(),
		Slots:       len(fs.dir),
		FreeSlots:   freeSlots,
		Files:       fs.boot.FileCount,
	}, nil
}
