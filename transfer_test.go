package sectorfs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingFs hands out image files whose writes get cut off as soon as fail returns true.
type failingFs struct {
	afero.Fs
	fail func(off int64) bool
}

func (f failingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	file, err := f.Fs.OpenFile(name, flag, perm)
	if err != nil || name != testImage {
		return file, err
	}
	return &failingFile{File: file, fail: f.fail}, nil
}

type failingFile struct {
	afero.File
	fail func(off int64) bool
}

func (f *failingFile) WriteAt(p []byte, off int64) (int, error) {
	if f.fail(off) {
		return len(p) / 2, nil
	}
	return f.File.WriteAt(p, off)
}

func TestFs_CopyIn_RoundTrip(t *testing.T) {
	for _, geo := range []Geometry{VersionA, VersionB} {
		for _, size := range []int{1, 511, 512, 513, 1000, 4096} {
			t.Run(fmt.Sprintf("%d bytes dir %d", size, geo.DirSectors), func(t *testing.T) {
				host, image := testingNew(t, geo)
				data := testData(size, 7)
				writeHostFile(t, host, "source.bin", data)

				info, err := image.CopyIn("source.bin", "")
				require.NoError(t, err)
				assert.Equal(t, "source.bin", info.Name())
				assert.Equal(t, int64(size), info.Size())
				assert.Equal(t, geo.DataStart(), info.Entry.FirstSector)
				assert.Equal(t, 0, info.Slot)

				require.NoError(t, image.CopyOut("source.bin", "out.bin"))
				got, err := afero.ReadFile(host, "out.bin")
				require.NoError(t, err)
				assert.Equal(t, data, got)

				// The rest of the last sector stays zero on the image.
				raw := readRaw(t, host)
				start := geo.Offset(info.Entry.FirstSector)
				end := geo.Offset(info.Entry.FirstSector + geo.SectorsFor(int64(size)))
				assert.Equal(t, data, raw[start:start+int64(size)])
				assert.Equal(t, make([]byte, end-start-int64(size)), raw[start+int64(size):end])
			})
		}
	}
}

func TestFs_CopyIn_Persisted(t *testing.T) {
	host, image := testingNew(t, VersionA)
	data := testData(1000, 9)
	writeHostFile(t, host, "a.txt", data)

	_, err := image.CopyIn("a.txt", "")
	require.NoError(t, err)

	raw := readRaw(t, host)
	assert.Equal(t, uint32(1), rawFileCount(raw))
	assert.Equal(t, uint32(6), rawFirstFree(raw))
	assert.Equal(t, byte(0x03), raw[1536], "sectors 4 and 5 are allocated")
	assert.Equal(t, byte(0x00), raw[1537])

	slot := raw[512 : 512+DirEntrySize]
	assert.Equal(t, StatusValid, slot[0])
	assert.Equal(t, "a", string(bytes.TrimRight(slot[1:13], "\x00")))
	assert.Equal(t, "txt", string(bytes.TrimRight(slot[13:17], "\x00")))
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(slot[18:22]))
	assert.Equal(t, uint32(1000), binary.LittleEndian.Uint32(slot[22:26]))

	// A new handle sees the same.
	require.NoError(t, image.Close())
	image = testingOpen(t, host)
	infos, err := image.List()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "a.txt", infos[0].Name())

	require.NoError(t, image.CopyOut("a.txt", "out.txt"))
	got, err := afero.ReadFile(host, "out.txt")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFs_CopyIn_Names(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		target   string
		wantName string
		wantErr  error
	}{
		{
			name:     "base name of the source",
			src:      "some/dir/file.txt",
			wantName: "file.txt",
		},
		{
			name:     "explicit name",
			src:      "some/dir/file.txt",
			target:   "other.c",
			wantName: "other.c",
		},
		{
			name:     "no extension",
			src:      "README",
			wantName: "README",
		},
		{
			name:     "long names get truncated",
			src:      "averyveryverylongname.markdown",
			wantName: "averyveryver.mark",
		},
		{
			name:     "full width name",
			src:      "twelve_bytes.text",
			wantName: "twelve_bytes.text",
		},
		{
			name:     "split at the first dot",
			src:      "archive.tar.gz",
			wantName: "archive.tar.",
		},
		{
			name:     "multibyte rune at the cut",
			src:      "src",
			target:   "a\u00e9\u00e9\u00e9\u00e9\u00e9\u00e9.t\u00e9\u00e9",
			wantName: "a\u00e9\u00e9\u00e9\u00e9\u00e9.t\u00e9",
		},
		{
			name:    "no base name",
			src:     ".hidden",
			wantErr: ErrInvalidName,
		},
		{
			name:    "slash",
			src:     "file.txt",
			target:  "a/b.txt",
			wantErr: ErrInvalidName,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, image := testingNew(t, VersionA)
			writeHostFile(t, host, tt.src, testData(100, 1))

			info, err := image.CopyIn(tt.src, tt.target)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Equal(t, uint32(0), image.BootRecord().FileCount)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantName, info.Name())

			stat, err := image.Stat(tt.wantName)
			require.NoError(t, err)
			assert.Equal(t, info, stat)
		})
	}
}

func TestFs_CopyIn_Errors(t *testing.T) {
	t.Run("missing source", func(t *testing.T) {
		_, image := testingNew(t, VersionA)
		_, err := image.CopyIn("missing.txt", "")
		assert.True(t, errors.Is(err, ErrSourceNotFound), "got %v", err)
	})

	t.Run("source is a directory", func(t *testing.T) {
		host, image := testingNew(t, VersionA)
		require.NoError(t, host.Mkdir("dir", 0755))
		_, err := image.CopyIn("dir", "")
		assert.True(t, errors.Is(err, ErrSourceNotFound), "got %v", err)
	})

	t.Run("duplicate name", func(t *testing.T) {
		host, image := testingNew(t, VersionA)
		writeHostFile(t, host, "a.txt", testData(10, 1))
		_, err := image.CopyIn("a.txt", "")
		require.NoError(t, err)

		before := rawMetadata(t, host, VersionA)
		_, err = image.CopyIn("a.txt", "")
		assert.True(t, errors.Is(err, ErrExists), "got %v", err)
		assert.Equal(t, before, rawMetadata(t, host, VersionA))
	})

	t.Run("duplicate after truncation", func(t *testing.T) {
		host, image := testingNew(t, VersionA)
		writeHostFile(t, host, "src", testData(10, 1))
		_, err := image.CopyIn("src", "averyveryverylongname1.txt")
		require.NoError(t, err)
		_, err = image.CopyIn("src", "averyveryverylongname2.txt")
		assert.True(t, errors.Is(err, ErrExists), "got %v", err)
	})

	t.Run("larger than the data region", func(t *testing.T) {
		host, image := testingNew(t, VersionA)
		writeHostFile(t, host, "big.bin", testData(197*512, 1))

		before := readRaw(t, host)
		_, err := image.CopyIn("big.bin", "")
		assert.True(t, errors.Is(err, ErrOutOfSpace), "got %v", err)
		assert.Equal(t, before, readRaw(t, host))
	})

	t.Run("exactly the data region", func(t *testing.T) {
		host, image := testingNew(t, VersionA)
		writeHostFile(t, host, "big.bin", testData(196*512, 1))

		info, err := image.CopyIn("big.bin", "")
		require.NoError(t, err)
		assert.Equal(t, uint32(4), info.Entry.FirstSector)
		assert.Equal(t, VersionA.DataEnd(), image.BootRecord().FirstFreeSector)
	})
}

func TestFs_CopyIn_Empty(t *testing.T) {
	host, image := testingNew(t, VersionA)
	writeHostFile(t, host, "empty.txt", nil)
	writeHostFile(t, host, "a.txt", testData(1000, 1))

	info, err := image.CopyIn("empty.txt", "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
	assert.Equal(t, uint32(4), info.Entry.FirstSector)

	raw := readRaw(t, host)
	assert.Equal(t, uint32(1), rawFileCount(raw))
	assert.Equal(t, uint32(4), rawFirstFree(raw))
	assert.Equal(t, byte(0), raw[1536], "no sector is allocated")

	infos, err := image.List()
	require.NoError(t, err)
	assert.Empty(t, infos, "empty files are not listed")

	stat, err := image.Stat("empty.txt")
	require.NoError(t, err)
	assert.Equal(t, info, stat)

	// Data of the next file goes to the same sector.
	infoA, err := image.CopyIn("a.txt", "")
	require.NoError(t, err)
	assert.Equal(t, uint32(4), infoA.Entry.FirstSector)

	writeHostFile(t, host, "out.txt", testData(100, 1))
	require.NoError(t, image.CopyOut("empty.txt", "out.txt"))
	got, err := afero.ReadFile(host, "out.txt")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = image.CopyIn("empty.txt", "")
	assert.True(t, errors.Is(err, ErrExists), "got %v", err)

	require.NoError(t, image.Remove("empty.txt"))
	assert.Equal(t, uint32(1), image.BootRecord().FileCount)
	assert.Equal(t, byte(0x03), readRaw(t, host)[1536], "a.txt keeps its sectors")

	report, err := image.Check()
	require.NoError(t, err)
	assert.True(t, report.OK(), "%v", report)
}

func TestFs_CopyIn_DirectoryFull(t *testing.T) {
	host, image := testingNew(t, VersionB)
	writeHostFile(t, host, "src", []byte("x"))

	for i := 0; i < VersionB.DirEntryCount(); i++ {
		_, err := image.CopyIn("src", fmt.Sprintf("f%d", i))
		require.NoError(t, err)
	}
	require.Equal(t, uint32(16), image.BootRecord().FileCount)

	before := readRaw(t, host)
	_, err := image.CopyIn("src", "one-more")
	assert.True(t, errors.Is(err, ErrDirectoryFull), "got %v", err)
	assert.Equal(t, uint32(16), image.BootRecord().FileCount)
	assert.Equal(t, before, readRaw(t, host), "nothing may be written")
}

func TestFs_CopyIn_Fragmented(t *testing.T) {
	host, image := testingNew(t, VersionA)
	writeHostFile(t, host, "one", testData(512, 1))
	writeHostFile(t, host, "many", testData(97*512, 2))
	writeHostFile(t, host, "two", testData(1024, 3))

	for _, name := range []string{"a", "b", "c", "d"} {
		src := "one"
		if name == "b" || name == "d" {
			src = "many"
		}
		_, err := image.CopyIn(src, name)
		require.NoError(t, err)
	}
	require.NoError(t, image.Remove("a"))
	require.NoError(t, image.Remove("c"))

	usage, err := image.Usage()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), usage.FreeSectors)

	before := rawMetadata(t, host, VersionA)
	_, err = image.CopyIn("two", "")
	assert.True(t, errors.Is(err, ErrOutOfSpace), "got %v", err)
	assert.Equal(t, before, rawMetadata(t, host, VersionA))

	// Single sectors still fit into both holes.
	info, err := image.CopyIn("one", "e")
	require.NoError(t, err)
	assert.Equal(t, uint32(4), info.Entry.FirstSector)
	info, err = image.CopyIn("one", "f")
	require.NoError(t, err)
	assert.Equal(t, uint32(4+1+97), info.Entry.FirstSector)
}

func TestFs_CopyIn_FirstRunWins(t *testing.T) {
	host, image := testingNew(t, VersionA)
	writeHostFile(t, host, "one", testData(512, 1))
	writeHostFile(t, host, "two", testData(1024, 2))

	for _, name := range []string{"a", "b", "c", "d", "e"} {
		_, err := image.CopyIn("one", name)
		require.NoError(t, err)
	}

	// Free the runs [4, 6) and [7, 8); the first one is followed by the allocated sector 6.
	require.NoError(t, image.Remove("a"))
	require.NoError(t, image.Remove("b"))
	require.NoError(t, image.Remove("d"))
	assert.Equal(t, uint32(4), image.BootRecord().FirstFreeSector)

	info, err := image.CopyIn("two", "")
	require.NoError(t, err)
	assert.Equal(t, uint32(4), info.Entry.FirstSector)
	assert.Equal(t, uint32(7), image.BootRecord().FirstFreeSector)
}

func TestFs_CopyIn_StaleHint(t *testing.T) {
	host := testingFormat(t, VersionA)

	// Point the hint to the very last sector, where 2 sectors cannot fit.
	raw := readRaw(t, host)
	binary.LittleEndian.PutUint32(raw[17:21], 199)
	writeHostFile(t, host, testImage, raw)

	image := testingOpen(t, host)
	writeHostFile(t, host, "a.txt", testData(1000, 1))

	info, err := image.CopyIn("a.txt", "")
	require.NoError(t, err)
	assert.Equal(t, uint32(4), info.Entry.FirstSector)
	assert.Equal(t, uint32(6), image.BootRecord().FirstFreeSector)
}

func TestFs_CopyIn_WriteFails(t *testing.T) {
	tests := []struct {
		name string
		fail func(off int64) bool
	}{
		{
			name: "data",
			fail: func(off int64) bool { return off >= VersionA.Offset(VersionA.DataStart()) },
		},
		{
			name: "metadata",
			fail: func(off int64) bool { return off == 0 },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := testingFormat(t, VersionA)
			failing := false
			host := failingFs{Fs: mem, fail: func(off int64) bool { return failing && tt.fail(off) }}

			image, err := Open(host, testImage, WithLogger(testLogger()))
			require.NoError(t, err)
			defer image.Close()

			writeHostFile(t, mem, "a.txt", testData(1000, 1))
			before := rawMetadata(t, mem, VersionA)

			failing = true
			_, err = image.CopyIn("a.txt", "")
			assert.True(t, errors.Is(err, ErrTruncatedWrite), "got %v", err)

			assert.Equal(t, before, rawMetadata(t, mem, VersionA))
			assert.Equal(t, uint32(0), image.BootRecord().FileCount)
			infos, err := image.List()
			require.NoError(t, err)
			assert.Empty(t, infos)

			// The handle is still usable afterwards.
			failing = false
			info, err := image.CopyIn("a.txt", "")
			require.NoError(t, err)
			assert.Equal(t, uint32(4), info.Entry.FirstSector)
		})
	}
}

func TestFs_CopyOut(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		host, image := testingNew(t, VersionA)
		err := image.CopyOut("missing.txt", "")
		assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

		exists, err := afero.Exists(host, "missing.txt")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("target defaults to the name", func(t *testing.T) {
		host, image := testingNew(t, VersionA)
		data := testData(700, 4)
		writeHostFile(t, host, "in/a.txt", data)
		_, err := image.CopyIn("in/a.txt", "")
		require.NoError(t, err)

		require.NoError(t, image.CopyOut("a.txt", ""))
		got, err := afero.ReadFile(host, "a.txt")
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("replaces the target", func(t *testing.T) {
		host, image := testingNew(t, VersionA)
		data := testData(20, 4)
		writeHostFile(t, host, "a.txt", data)
		writeHostFile(t, host, "out.txt", testData(3000, 1))
		_, err := image.CopyIn("a.txt", "")
		require.NoError(t, err)

		require.NoError(t, image.CopyOut("a.txt", "out.txt"))
		got, err := afero.ReadFile(host, "out.txt")
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})
}

func TestFs_Remove(t *testing.T) {
	host, image := testingNew(t, VersionA)
	dataB := testData(1500, 2)
	writeHostFile(t, host, "a.txt", testData(1000, 1))
	writeHostFile(t, host, "b.txt", dataB)

	_, err := image.CopyIn("a.txt", "")
	require.NoError(t, err)
	infoB, err := image.CopyIn("b.txt", "")
	require.NoError(t, err)
	assert.Equal(t, uint32(6), infoB.Entry.FirstSector)
	assert.Equal(t, byte(0x1F), readRaw(t, host)[1536])

	require.NoError(t, image.Remove("a.txt"))

	raw := readRaw(t, host)
	assert.Equal(t, byte(0x1C), raw[1536], "only the sectors of a.txt are freed")
	assert.Equal(t, uint32(1), rawFileCount(raw))
	assert.Equal(t, uint32(4), rawFirstFree(raw))
	assert.Equal(t, StatusFree, raw[512])
	assert.Equal(t, make([]byte, DirEntrySize-1), raw[513:512+DirEntrySize])

	infos, err := image.List()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, infoB, infos[0])

	require.NoError(t, image.CopyOut("b.txt", "out.txt"))
	got, err := afero.ReadFile(host, "out.txt")
	require.NoError(t, err)
	assert.Equal(t, dataB, got)

	_, err = image.Stat("a.txt")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestFs_Remove_NotFound(t *testing.T) {
	host, image := testingNew(t, VersionA)
	writeHostFile(t, host, "a.txt", testData(1000, 1))
	_, err := image.CopyIn("a.txt", "")
	require.NoError(t, err)

	before := readRaw(t, host)
	err = image.Remove("b.txt")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	assert.Equal(t, before, readRaw(t, host))
	assert.Equal(t, uint32(1), image.BootRecord().FileCount)
}

func TestFs_List(t *testing.T) {
	host, image := testingNew(t, VersionA)
	writeHostFile(t, host, "src", testData(10, 1))

	for _, name := range []string{"a", "b", "c"} {
		_, err := image.CopyIn("src", name)
		require.NoError(t, err)
	}
	require.NoError(t, image.Remove("b"))
	_, err := image.CopyIn("src", "d")
	require.NoError(t, err)

	infos, err := image.List()
	require.NoError(t, err)

	var names []string
	var slots []int
	for _, info := range infos {
		names = append(names, info.Name())
		slots = append(slots, info.Slot)
	}
	assert.Equal(t, []string{"a", "d", "c"}, names, "freed slots get reused")
	assert.Equal(t, []int{0, 1, 2}, slots)
}

func TestFs_EndToEnd(t *testing.T) {
	host, image := testingNew(t, VersionA)
	a := testData(1000, 1)
	writeHostFile(t, host, "a.txt", a)

	_, err := image.CopyIn("a.txt", "")
	require.NoError(t, err)

	infos, err := image.List()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, int64(1000), infos[0].Size())
	assert.Equal(t, "txt", cString(infos[0].Entry.Extension[:]))
	first := infos[0].Entry.FirstSector

	require.NoError(t, image.CopyOut("a.txt", "a.out"))
	got, err := afero.ReadFile(host, "a.out")
	require.NoError(t, err)
	assert.Equal(t, a, got)

	require.NoError(t, image.Remove("a.txt"))
	infos, err = image.List()
	require.NoError(t, err)
	assert.Empty(t, infos)
	assert.Equal(t, uint32(0), image.BootRecord().FileCount)

	b := testData(900, 5)
	writeHostFile(t, host, "b.bin", b)
	info, err := image.CopyIn("b.bin", "")
	require.NoError(t, err)
	assert.Equal(t, first, info.Entry.FirstSector, "the freed sectors get reused")

	require.NoError(t, image.CopyOut("b.bin", "b.out"))
	got, err = afero.ReadFile(host, "b.out")
	require.NoError(t, err)
	assert.Equal(t, b, got)

	report, err := image.Check()
	require.NoError(t, err)
	assert.True(t, report.OK(), "%v", report)
}
