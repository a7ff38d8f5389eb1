package tape

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDecode(t *testing.T) {
	input := strings.Join([]string{
		`{"time":1000,"run_id":"r1","depth":0,"step":0,"event_type":"run_start","query":"sum it"}`,
		``,
		`not json at all`,
		`{"time":1010,"depth":0,"event_type":"code_generated"}`,
		`{"time":"1970-01-01T00:00:01.02Z","run_id":"r1","depth":0,"step":1,"event_type":"execution_result","output":"boom","hasError":true}`,
		`{"time":"1030.5","run_id":"r1","depth":0,"event_type":"final_result","result":{"answer":42}}`,
	}, "\n")

	var got []LogEvent
	stats, err := Decode(strings.NewReader(input), func(ev LogEvent) { got = append(got, ev) })
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if stats.Lines != 5 {
		t.Errorf("Lines = %d, want 5", stats.Lines)
	}
	if stats.Events != 3 {
		t.Errorf("Events = %d, want 3", stats.Events)
	}
	if stats.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", stats.Skipped)
	}
	if len(got) != 3 {
		t.Fatalf("events = %d, want 3", len(got))
	}

	if got[0].Query != "sum it" {
		t.Errorf("Query = %q, want %q", got[0].Query, "sum it")
	}
	if !got[0].Time.Equal(time.UnixMilli(1000)) {
		t.Errorf("Time = %v, want %v", got[0].Time, time.UnixMilli(1000))
	}
	if !got[1].HasError {
		t.Error("legacy hasError should decode into HasError")
	}
	if got[1].StepNumber() != 1 {
		t.Errorf("StepNumber = %d, want 1", got[1].StepNumber())
	}
	if !got[1].Time.Equal(time.UnixMilli(1020)) {
		t.Errorf("RFC 3339 Time = %v, want %v", got[1].Time, time.UnixMilli(1020))
	}
	want := time.UnixMilli(1030).Add(500 * time.Microsecond)
	if !got[2].Time.Equal(want) {
		t.Errorf("numeric string Time = %v, want %v", got[2].Time, want)
	}
	if got[2].Step != nil {
		t.Errorf("Step = %v, want nil", *got[2].Step)
	}
	if string(got[2].Result) != `{"answer":42}` {
		t.Errorf("Result = %s, want %s", got[2].Result, `{"answer":42}`)
	}
}

func TestDecode_BadTimeIsSkipped(t *testing.T) {
	input := `{"time":"yesterday","run_id":"r1","event_type":"run_start"}`
	stats, err := Decode(strings.NewReader(input), func(LogEvent) {
		t.Error("callback should not run")
	})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if stats.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", stats.Skipped)
	}
}

func TestDecode_OversizedLineIsSkipped(t *testing.T) {
	huge := `{"time":2,"run_id":"r1","step":1,"event_type":"code_generated","code":"` +
		strings.Repeat("x", maxLineSize+1024) + `"}`
	input := strings.Join([]string{
		`{"time":1,"run_id":"r1","event_type":"run_start"}`,
		huge,
		`{"time":3,"run_id":"r1","step":1,"event_type":"execution_result","output":"ok"}`,
		`{"time":4,"run_id":"r1","event_type":"final_result","result":"done"}`,
	}, "\n")

	var got []LogEvent
	stats, err := Decode(strings.NewReader(input), func(ev LogEvent) { got = append(got, ev) })
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if stats.Lines != 4 || stats.Events != 3 || stats.Skipped != 1 {
		t.Errorf("stats = %+v, want 4 lines 3 events 1 skipped", stats)
	}
	if len(got) != 3 {
		t.Fatalf("events = %d, want 3", len(got))
	}
	if got[1].EventType != EventExecutionResult || got[1].Output != "ok" {
		t.Errorf("event after long line = %+v, want execution_result with output ok", got[1])
	}
	if got[2].EventType != EventFinalResult {
		t.Errorf("last EventType = %q, want %q", got[2].EventType, EventFinalResult)
	}
}

func TestReadFile_Missing(t *testing.T) {
	_, _, err := ReadFile(filepath.Join(t.TempDir(), "nope.jsonl"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRecorderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "test")
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(w.Path()), "test_") || filepath.Ext(w.Path()) != ".jsonl" {
		t.Errorf("Path = %q, want test_<ms>.jsonl", w.Path())
	}

	root := NewRecorder(w, "test")
	root.RunStart("top")
	root.CodeGenerated(1, "print(1)", "think", usageWithCost(10, 0.5))

	child := root.Child()
	child.RunStart("sub")
	child.FinalResult(map[string]int{"n": 1})

	root.ExecutionResult(1, "1\n", false)
	root.FinalResult("done")

	events, stats, err := ReadFile(w.Path())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if stats.Skipped != 0 {
		t.Errorf("Skipped = %d, want 0", stats.Skipped)
	}
	if len(events) != 6 {
		t.Fatalf("events = %d, want 6", len(events))
	}

	if !strings.HasPrefix(root.RunID(), "test-") {
		t.Errorf("RunID = %q, want test- prefix", root.RunID())
	}
	if child.ParentRunID() != root.RunID() {
		t.Errorf("child ParentRunID = %q, want %q", child.ParentRunID(), root.RunID())
	}
	if child.Depth() != 1 {
		t.Errorf("child Depth = %d, want 1", child.Depth())
	}

	gen := events[1]
	if gen.EventType != EventCodeGenerated || gen.Code != "print(1)" || gen.Reasoning != "think" {
		t.Errorf("code_generated = %+v", gen)
	}
	if gen.Usage == nil || gen.Usage.PromptTokens != 10 || gen.Usage.Cost == nil || *gen.Usage.Cost != 0.5 {
		t.Errorf("usage = %+v, want 10 prompt tokens at cost 0.5", gen.Usage)
	}
	if gen.Time.IsZero() {
		t.Error("Time should be set")
	}

	sub := events[2]
	if sub.RunID != child.RunID() || sub.ParentRunID != root.RunID() || sub.Depth != 1 {
		t.Errorf("child run_start = %+v", sub)
	}
	if events[0].ParentRunID != "" {
		t.Errorf("root ParentRunID = %q, want empty", events[0].ParentRunID)
	}
	if string(events[3].Result) != `{"n":1}` {
		t.Errorf("child Result = %s", events[3].Result)
	}
	if events[4].EventType != EventExecutionResult || events[4].Output != "1\n" || events[4].HasError {
		t.Errorf("execution_result = %+v", events[4])
	}
	if string(events[5].Result) != `"done"` {
		t.Errorf("root Result = %s", events[5].Result)
	}
}

func TestWriterAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "log.jsonl")
	w, err := OpenWriter(path)
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}
	for _, line := range []string{"a\n", "b\n"} {
		if _, err := w.Write([]byte(line)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "a\nb\n" {
		t.Errorf("content = %q, want %q", data, "a\nb\n")
	}
}
