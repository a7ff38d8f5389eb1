package tape

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// Writer is the JSONL sink behind a Recorder.
// It uses open-write-close semantics: the file is only held open during
// each write, so `view --follow` and tail can read it freely in between.
type Writer struct {
	mu   sync.Mutex
	path string
}

// NewWriter creates dir if needed and returns a Writer appending to
// <dir>/<prefix>_<unix-ms>.jsonl.
func NewWriter(dir, prefix string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log dir %q: %w", dir, err)
	}
	if prefix == "" {
		prefix = "run"
	}
	name := prefix + "_" + strconv.FormatInt(time.Now().UnixMilli(), 10) + ".jsonl"
	return &Writer{path: filepath.Join(dir, name)}, nil
}

// OpenWriter appends to an existing (or new) file at path.
func OpenWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log dir for %q: %w", path, err)
	}
	return &Writer{path: path}, nil
}

// Path is the file being appended to.
func (w *Writer) Path() string { return w.path }

// Write appends p as-is. slog hands every record to Write in one call, so
// one call is one line.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("opening log file %q: %w", w.path, err)
	}
	defer f.Close()

	n, err := f.Write(p)
	if err != nil {
		return n, fmt.Errorf("writing log record: %w", err)
	}
	if err := f.Sync(); err != nil {
		return n, fmt.Errorf("syncing log file: %w", err)
	}
	return n, nil
}
