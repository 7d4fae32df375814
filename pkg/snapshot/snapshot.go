// Package snapshot writes still frames to disk as JPEG files named
// capture_<unix millis>.jpg.
package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"gocv.io/x/gocv"
)

// Pattern matches snapshot file names.
var Pattern = regexp.MustCompile(`^capture_\d+\.jpg$`)

// DirPerm is used when creating the save directory.
const DirPerm = 0o755

// FileName returns the snapshot name for t.
func FileName(t time.Time) string {
	return fileNameMillis(t.UnixMilli())
}

func fileNameMillis(ms int64) string {
	return fmt.Sprintf("capture_%d.jpg", ms)
}

// Writer saves frames. Now defaults to time.Now.
type Writer struct {
	Now func() time.Time
}

// NewWriter returns a Writer on the wall clock.
func NewWriter() *Writer {
	return &Writer{Now: time.Now}
}

// Save creates dir if missing and writes frame as JPEG at the given
// quality. Names that already exist get the timestamp bumped by a
// millisecond. It returns the absolute path written.
func (w *Writer) Save(dir string, frame gocv.Mat, quality int) (string, error) {
	if frame.Empty() {
		return "", errors.New("snapshot: empty frame")
	}
	if err := os.MkdirAll(dir, DirPerm); err != nil {
		return "", fmt.Errorf("snapshot: create %s: %w", dir, err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("snapshot: resolve %s: %w", dir, err)
	}

	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	path, err := freePath(abs, now().UnixMilli())
	if err != nil {
		return "", err
	}

	params := []int{int(gocv.IMWriteJpegQuality), quality}
	if !gocv.IMWriteWithParams(path, frame, params) {
		return "", fmt.Errorf("snapshot: encode %s failed", path)
	}
	return path, nil
}

func freePath(dir string, ms int64) (string, error) {
	for i := 0; i < 1000; i++ {
		p := filepath.Join(dir, fileNameMillis(ms+int64(i)))
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			return p, nil
		} else if err != nil {
			return "", fmt.Errorf("snapshot: stat %s: %w", p, err)
		}
	}
	return "", fmt.Errorf("snapshot: no free name in %s", dir)
}

// List returns snapshot file names in dir, oldest first.
// A missing directory yields an empty list.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && Pattern.MatchString(e.Name()) {
			names = append(names, e.Name())
		}
	}
	// Same width names sort by time; shorter millis are older.
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) < len(names[j])
		}
		return names[i] < names[j]
	})
	return names, nil
}
