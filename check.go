package sectorfs

import (
	"fmt"
)

// CheckReport is the result of Check.
type CheckReport struct {
	// FileCount as stored in the boot record.
	FileCount    uint32
	ValidEntries int
	// Leaked lists allocated sectors which belong to no file.
	Leaked   []uint32
	Problems []string
}

// OK reports whether the image is consistent.
func (r CheckReport) OK() bool {
	return len(r.Problems) == 0 && len(r.Leaked) == 0
}

// Check verifies that boot record, directory and bitmap on the image agree with each other.
// It only reads. An error is returned only if the image could not be read at all.
func (fs *Fs) Check() (CheckReport, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if err := fs.checkOpen(); err != nil {
		return CheckReport{}, err
	}

	s, err := fs.reload()
	if err != nil {
		return CheckReport{}, err
	}

	g := fs.img.geo
	report := CheckReport{
		FileCount: s.boot.FileCount,
	}
	problem := func(format string, args ...interface{}) {
		report.Problems = append(report.Problems, fmt.Sprintf(format, args...))
	}

	owners := make(map[uint32]int)
	names := make(map[string]int)

	for slot, entry := range s.dir {
		switch entry.Status {
		case StatusFree:
			continue
		case StatusValid:
		default:
			problem("slot %d: unknown status 0x%02X", slot, entry.Status)
			continue
		}

		report.ValidEntries++

		name := entry.Name()
		if other, ok := names[name]; ok {
			problem("slot %d: name %q is already used by slot %d", slot, name, other)
		} else {
			names[name] = slot
		}

		count := g.SectorsFor(int64(entry.FileSize))
		first := entry.FirstSector
		if first < g.DataStart() || uint64(first)+uint64(count) > uint64(g.DataEnd()) {
			problem("slot %d: sectors [%d, %d) are outside of the data region", slot, first, uint64(first)+uint64(count))
			continue
		}

		overlapReported := false
		for sector := first; sector < first+count; sector++ {
			if !s.bitmap.IsAllocated(sector) {
				problem("slot %d: sector %d is not marked as allocated", slot, sector)
			}
			if other, ok := owners[sector]; ok {
				if !overlapReported {
					problem("slot %d: overlaps slot %d at sector %d", slot, other, sector)
					overlapReported = true
				}
				continue
			}
			owners[sector] = slot
		}
	}

	if uint32(report.ValidEntries) != s.boot.FileCount {
		problem("file count is %d but %d entries are valid", s.boot.FileCount, report.ValidEntries)
	}

	for sector := g.DataStart(); sector < g.DataEnd(); sector++ {
		if _, ok := owners[sector]; !ok && s.bitmap.IsAllocated(sector) {
			report.Leaked = append(report.Leaked, sector)
		}
	}

	return report, nil
}
