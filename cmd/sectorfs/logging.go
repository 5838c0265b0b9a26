package main

import (
	"errors"

	"github.com/aligator/sectorfs"
	log "github.com/sirupsen/logrus"
)

var defaultLogFormatter = &log.TextFormatter{}

// infoFormatter overrides the default format for Info() log events to
// provide an easier to read output
type infoFormatter struct {
}

func (f *infoFormatter) Format(entry *log.Entry) ([]byte, error) {
	if entry.Level == log.InfoLevel {
		return append([]byte(entry.Message), '\n'), nil
	}
	return defaultLogFormatter.Format(entry)
}

func setupLogging(quiet, verbose bool) error {
	if quiet && verbose {
		return errors.New("can't set quiet and verbose flag at the same time")
	}

	log.SetFormatter(new(infoFormatter))
	log.SetLevel(log.InfoLevel)

	if quiet {
		log.SetLevel(log.ErrorLevel)
	}
	if verbose {
		// Switch back to the standard formatter
		log.SetFormatter(defaultLogFormatter)
		log.SetLevel(log.DebugLevel)
	}

	return nil
}

// knownErrors are reported by their message only, unless running verbose.
var knownErrors = []error{
	sectorfs.ErrImageNotFound,
	sectorfs.ErrSourceNotFound,
	sectorfs.ErrOutOfSpace,
	sectorfs.ErrDirectoryFull,
	sectorfs.ErrNotFound,
	sectorfs.ErrExists,
	sectorfs.ErrTruncatedRead,
	sectorfs.ErrTruncatedWrite,
	sectorfs.ErrProtectedTarget,
	sectorfs.ErrInvalidName,
	sectorfs.ErrInvalidImage,
	sectorfs.ErrInvalidGeometry,
	sectorfs.ErrLocked,
	sectorfs.ErrClosed,
	errReadConfig,
	errParseConfig,
}

// short returns a one line description of err.
func short(err error) string {
	for _, known := range knownErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return err.Error()
}

func reportError(err error) {
	if log.IsLevelEnabled(log.DebugLevel) {
		log.Error(err)
		return
	}
	log.Error(short(err))
}
