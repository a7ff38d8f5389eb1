package tape

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Batch is one delivery from a Follower: the events decoded from newly
// completed lines and the number of lines in the same read that were
// skipped.
type Batch struct {
	Events  []LogEvent
	Skipped int
}

// Follower tails a JSONL log as it grows. Complete new lines are decoded
// and delivered in batches on Events; a trailing partial line waits for
// the write that finishes it.
type Follower struct {
	path    string
	watcher *fsnotify.Watcher
	events  chan Batch
	done    chan struct{}
	wg      sync.WaitGroup
	log     *slog.Logger

	mu      sync.Mutex
	offset  int64
	pending []byte
	long    bool // inside a line past maxLineSize
	stats   ReadStats

	closeOnce sync.Once
}

// Follow starts tailing path from offset. The file's directory is watched
// so the file may be created after Follow returns.
func Follow(path string, offset int64, log *slog.Logger) (*Follower, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching %q: %w", filepath.Dir(abs), err)
	}

	f := &Follower{
		path:    abs,
		watcher: w,
		events:  make(chan Batch, 16),
		done:    make(chan struct{}),
		log:     log,
		offset:  offset,
	}
	f.wg.Add(1)
	go f.loop()
	return f, nil
}

// Events delivers decoded batches. It is closed after Close.
func (f *Follower) Events() <-chan Batch { return f.events }

// Stats reports what has been read so far.
func (f *Follower) Stats() ReadStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// Close stops the watcher and waits for the loop to exit.
func (f *Follower) Close() error {
	var err error
	f.closeOnce.Do(func() {
		close(f.done)
		err = f.watcher.Close()
		f.wg.Wait()
		close(f.events)
	})
	return err
}

func (f *Follower) loop() {
	defer f.wg.Done()

	// Catch up on whatever was written before the watch was in place.
	f.poll()

	for {
		select {
		case <-f.done:
			return
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				f.poll()
			}
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.log.Warn("log watcher error", "path", f.path, "error", err)
		}
	}
}

func (f *Follower) poll() {
	batch, err := f.readNew()
	if err != nil {
		f.log.Debug("reading followed log", "path", f.path, "error", err)
		return
	}
	if len(batch.Events) == 0 && batch.Skipped == 0 {
		return
	}
	select {
	case f.events <- batch:
	case <-f.done:
	}
}

// readNew decodes the complete lines appended since the last read.
func (f *Follower) readNew() (Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.path)
	if err != nil {
		return Batch{}, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Batch{}, err
	}
	if info.Size() < f.offset {
		// Truncated or replaced: start over.
		f.offset = 0
		f.pending = nil
		f.long = false
	}
	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return Batch{}, err
	}
	chunk, err := io.ReadAll(file)
	if err != nil {
		return Batch{}, err
	}
	f.offset += int64(len(chunk))

	var batch Batch
	skipped := f.stats.Skipped
	finish := func() Batch {
		batch.Skipped = f.stats.Skipped - skipped
		return batch
	}

	data := append(f.pending, chunk...)
	f.pending = nil
	if f.long {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			return finish(), nil
		}
		f.long = false
		f.stats.skipLong()
		data = data[i+1:]
	}

	cut := bytes.LastIndexByte(data, '\n')
	if rest := data[cut+1:]; len(rest) > maxLineSize {
		f.long = true
	} else {
		f.pending = append([]byte(nil), rest...)
	}
	if cut < 0 {
		return finish(), nil
	}

	for _, line := range bytes.Split(data[:cut], []byte{'\n'}) {
		if len(line) > maxLineSize {
			f.stats.skipLong()
			continue
		}
		if ev, ok := f.stats.take(line); ok {
			batch.Events = append(batch.Events, ev)
		}
	}
	return finish(), nil
}
