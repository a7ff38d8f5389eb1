package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/kehao95/rlmtrace/internal/tape"
	"github.com/kehao95/rlmtrace/internal/trace"
	"github.com/kehao95/rlmtrace/internal/usage"
)

func intp(n int) *int { return &n }

func sampleEvents() []tape.LogEvent {
	t0 := time.UnixMilli(1_700_000_000_000)
	return []tape.LogEvent{
		{Time: t0, RunID: "run-root", EventType: tape.EventRunStart, Step: intp(0), Query: "count the r's"},
		{Time: t0.Add(1 * time.Millisecond), RunID: "run-root", EventType: tape.EventCodeGenerated, Step: intp(1),
			Code: "a\nb\nc\nd\ne\nf", Usage: &usage.Usage{TotalTokens: 1500, Cost: usage.Float(0.002)}},
		{Time: t0.Add(2 * time.Millisecond), RunID: "run-kid", ParentRunID: "run-root", Depth: 1, EventType: tape.EventRunStart, Step: intp(0)},
		{Time: t0.Add(3 * time.Millisecond), RunID: "run-kid", ParentRunID: "run-root", Depth: 1, EventType: tape.EventCodeGenerated, Step: intp(1),
			Usage: &usage.Usage{TotalTokens: 500}},
		{Time: t0.Add(4 * time.Millisecond), RunID: "run-root", EventType: tape.EventExecutionResult, Step: intp(1), Output: "line1\nline2", HasError: true},
		{Time: t0.Add(5 * time.Millisecond), RunID: "run-root", EventType: tape.EventFinalResult},
	}
}

func forest(evs []tape.LogEvent) *trace.Forest {
	s := trace.NewStore()
	s.IngestAll(evs)
	return s.Snapshot()
}

func TestTree(t *testing.T) {
	var buf bytes.Buffer
	if err := New(&buf, false).Tree(forest(sampleEvents())); err != nil {
		t.Fatalf("Tree: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"── Run Tree ──",
		`└─ run-root depth=0 "count the r's"`,
		"    run_start=1, code_generated=1, execution_result=1, final_result=1",
		"    Total: 1,500 tokens, $0.002000",
		"    └─ run-kid depth=1",
		"        Total: 500 tokens, cost unknown",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("tree output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("plain output should carry no escape codes")
	}
}

func TestStats(t *testing.T) {
	evs := sampleEvents()
	s := trace.NewStore()
	s.IngestAll(evs)
	s.Ingest(evs[0])
	s.NoteSkipped(2)

	var buf bytes.Buffer
	if err := New(&buf, false).Stats(s.Snapshot(), len(evs)+2); err != nil {
		t.Fatalf("Stats: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Total log entries: 8",
		"Total runs: 2",
		"Root runs: 1",
		"Max depth: 1",
		"Total tokens: 2,000",
		"Total cost: $0.002000",
		"Skipped records: 2",
		"Duplicate events: 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("stats output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Orphan runs") {
		t.Error("zero diagnostics should not be printed")
	}
}

func TestLinear(t *testing.T) {
	var buf bytes.Buffer
	if err := New(&buf, false).Linear(sampleEvents()); err != nil {
		t.Fatalf("Linear: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"code_generated step=1 run_id=run-root",
		"  Code:\n    a\n    b\n    c\n    d\n    e\n",
		"  1500 tokens, $0.002000",
		`  Output: line1\nline2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("linear output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "    f\n") {
		t.Error("code preview should stop after five lines")
	}
	if strings.Contains(out, "run_start step=") {
		t.Error("step 0 should not be printed")
	}
}

func TestGroupDigits(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-12345, "-12,345"},
	}
	for _, tt := range tests {
		if got := groupDigits(tt.in); got != tt.want {
			t.Errorf("groupDigits(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo", 3); got != "hél..." {
		t.Errorf("truncate = %q, want %q", got, "hél...")
	}
	if got := truncate("hi", 3); got != "hi" {
		t.Errorf("truncate = %q, want %q", got, "hi")
	}
}
