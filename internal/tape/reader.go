package tape

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// maxLineSize caps one record. Code and output payloads can be large.
const maxLineSize = 4 * 1024 * 1024

// ReadStats counts what a decode pass saw.
type ReadStats struct {
	Lines   int // non-blank lines
	Events  int // lines delivered
	Skipped int // malformed or missing run_id
}

// decodeLine parses one record. ok is false for anything that is not a
// usable event.
func decodeLine(line []byte) (LogEvent, bool) {
	var ev LogEvent
	if err := json.Unmarshal(line, &ev); err != nil {
		return LogEvent{}, false
	}
	if ev.RunID == "" {
		return LogEvent{}, false
	}
	return ev, true
}

// take counts and decodes one line. Blank lines are not counted.
func (s *ReadStats) take(line []byte) (LogEvent, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return LogEvent{}, false
	}
	s.Lines++
	ev, ok := decodeLine(line)
	if !ok {
		s.Skipped++
		return LogEvent{}, false
	}
	s.Events++
	return ev, true
}

// skipLong counts a line that was dropped for exceeding maxLineSize.
func (s *ReadStats) skipLong() {
	s.Lines++
	s.Skipped++
}

// Decode reads newline-delimited records from r and calls fn for every
// usable event in order. Bad lines are skipped, never fatal; only read
// errors are returned. A line longer than maxLineSize is discarded up to
// its newline and counted as skipped.
func Decode(r io.Reader, fn func(LogEvent)) (ReadStats, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	var (
		stats ReadStats
		line  []byte
		long  bool
	)
	flush := func() {
		if long {
			stats.skipLong()
		} else if ev, ok := stats.take(line); ok {
			fn(ev)
		}
		line = line[:0]
		long = false
	}

	for {
		frag, err := br.ReadSlice('\n')
		if !long {
			if len(line)+len(frag) > maxLineSize {
				long = true
				line = line[:0]
			} else {
				line = append(line, frag...)
			}
		}
		switch {
		case err == nil:
			flush()
		case errors.Is(err, bufio.ErrBufferFull):
			// Line continues past the buffer.
		case errors.Is(err, io.EOF):
			flush()
			return stats, nil
		default:
			return stats, fmt.Errorf("reading log: %w", err)
		}
	}
}

// ReadFile decodes a whole log file into memory.
func ReadFile(path string) ([]LogEvent, ReadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ReadStats{}, fmt.Errorf("opening log file %q: %w", path, err)
	}
	defer f.Close()

	var events []LogEvent
	stats, err := Decode(f, func(ev LogEvent) { events = append(events, ev) })
	return events, stats, err
}
