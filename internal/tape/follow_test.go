package tape

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kehao95/rlmtrace/internal/usage"
)

func usageWithCost(prompt int, cost float64) usage.Usage {
	return usage.Usage{PromptTokens: prompt, TotalTokens: prompt, Cost: usage.Float(cost)}
}

func appendFile(t *testing.T, path, s string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(s); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// collect reads batches until want events arrived or the deadline passed.
func collect(t *testing.T, f *Follower, want int) []LogEvent {
	t.Helper()
	var got []LogEvent
	deadline := time.After(5 * time.Second)
	for len(got) < want {
		select {
		case batch := <-f.Events():
			got = append(got, batch.Events...)
		case <-deadline:
			t.Fatalf("got %d events before deadline, want %d", len(got), want)
		}
	}
	return got
}

func TestFollower(t *testing.T) {
	path := filepath.Join(t.TempDir(), "live.jsonl")
	appendFile(t, path, `{"time":1,"run_id":"r1","event_type":"run_start"}`+"\n")

	f, err := Follow(path, 0, nil)
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}
	defer f.Close()

	first := collect(t, f, 1)
	if first[0].RunID != "r1" {
		t.Errorf("RunID = %q, want r1", first[0].RunID)
	}

	// A partial line is held back until its newline arrives.
	appendFile(t, path, `{"time":2,"run_id":"r2",`)
	appendFile(t, path, `"event_type":"run_start"}`+"\n"+`garbage`+"\n")

	second := collect(t, f, 1)
	if second[0].RunID != "r2" {
		t.Errorf("RunID = %q, want r2", second[0].RunID)
	}

	// The garbage line may land in a later read than r2.
	deadline := time.Now().Add(5 * time.Second)
	for f.Stats().Skipped == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	stats := f.Stats()
	if stats.Events != 2 || stats.Skipped != 1 {
		t.Errorf("Stats = %+v, want 2 events 1 skipped", stats)
	}
}

func TestFollower_BatchReportsSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "live.jsonl")
	appendFile(t, path, "")

	f, err := Follow(path, 0, nil)
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}
	defer f.Close()

	huge := `{"time":1,"run_id":"r1","event_type":"code_generated","code":"` +
		strings.Repeat("x", maxLineSize+1) + `"}`
	appendFile(t, path, "garbage\n"+huge+"\n"+`{"time":2,"run_id":"r1","event_type":"run_start"}`+"\n")

	var events, skipped int
	deadline := time.After(5 * time.Second)
	for events < 1 || skipped < 2 {
		select {
		case b := <-f.Events():
			events += len(b.Events)
			skipped += b.Skipped
		case <-deadline:
			t.Fatalf("got %d events %d skipped before deadline, want 1 and 2", events, skipped)
		}
	}
	if events != 1 || skipped != 2 {
		t.Errorf("events = %d skipped = %d, want 1 and 2", events, skipped)
	}
	if st := f.Stats(); st.Skipped != 2 {
		t.Errorf("Stats.Skipped = %d, want 2", st.Skipped)
	}
}

func TestFollower_FromOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "live.jsonl")
	head := `{"time":1,"run_id":"old","event_type":"run_start"}` + "\n"
	appendFile(t, path, head)

	f, err := Follow(path, int64(len(head)), nil)
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}
	defer f.Close()

	appendFile(t, path, `{"time":2,"run_id":"new","event_type":"run_start"}`+"\n")
	got := collect(t, f, 1)
	if got[0].RunID != "new" {
		t.Errorf("RunID = %q, want new", got[0].RunID)
	}
}

func TestFollower_CloseClosesEvents(t *testing.T) {
	f, err := Follow(filepath.Join(t.TempDir(), "absent.jsonl"), 0, nil)
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, ok := <-f.Events(); ok {
		t.Error("Events should be closed")
	}
}
