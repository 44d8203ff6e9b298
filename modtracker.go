package winvault

import (
	"os"
	"time"
)

type modResult int

const (
	modFirstRecord modResult = iota
	modChanged
	modUnchanged
)

// fileModTracker remembers the last-observed metadata of a backing file so
// that repeated loads of an unchanged file can be skipped.  It is private to
// one in-memory vault instance; sharing an instance across goroutines
// requires external locking, which this layer does not provide.
type fileModTracker struct {
	path    string
	size    int64
	modTime time.Time
	primed  bool
}

func newFileModTracker(path string) *fileModTracker {
	return &fileModTracker{path: path}
}

func (t *fileModTracker) filePath() string {
	return t.path
}

// recordFileInfo samples the file metadata, reports how it compares with the
// previous observation, and updates the stored state.  A stat failure is
// reported as changed: the caller proceeds to the read and surfaces the real
// error there.
func (t *fileModTracker) recordFileInfo() modResult {
	info, err := os.Stat(t.path)
	if err != nil {
		t.primed = false
		return modChanged
	}
	size := info.Size()
	modTime := info.ModTime()

	if !t.primed {
		t.size = size
		t.modTime = modTime
		t.primed = true
		return modFirstRecord
	}
	if size == t.size && modTime.Equal(t.modTime) {
		return modUnchanged
	}
	t.size = size
	t.modTime = modTime
	return modChanged
}
