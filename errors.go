package sectorfs

import "errors"

// These errors may occur while working with an image.
var (
	ErrImageNotFound   = errors.New("could not open the disk image")
	ErrSourceNotFound  = errors.New("could not open the source file")
	ErrOutOfSpace      = errors.New("not enough contiguous free sectors")
	ErrDirectoryFull   = errors.New("no free directory entry")
	ErrNotFound        = errors.New("file not found")
	ErrExists          = errors.New("file already exists")
	ErrTruncatedRead   = errors.New("could not read the record completely")
	ErrTruncatedWrite  = errors.New("could not write the record completely")
	ErrProtectedTarget = errors.New("refusing to format a protected file")
	ErrInvalidName     = errors.New("invalid file name")
	ErrInvalidImage    = errors.New("not a valid disk image")
	ErrInvalidGeometry = errors.New("invalid geometry")
	ErrLocked          = errors.New("disk image is in use")
	ErrClosed          = errors.New("disk image is closed")
)

// These errors may occur while reading a managed file.
var (
	ErrReadFile = errors.New("could not read file completely")
	ErrSeekFile = errors.New("could not seek inside of the file")
)
