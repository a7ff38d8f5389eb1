package tape

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kehao95/rlmtrace/internal/usage"
)

// NewRunID returns a fresh run identity of the form <prefix>-<uuid>.
func NewRunID(prefix string) string {
	if prefix == "" {
		prefix = "run"
	}
	return prefix + "-" + uuid.NewString()
}

// Recorder writes the telemetry events of one run as slog JSON records.
// Every record carries run_id, depth and, for sub-agents, parent_run_id.
// Recorders derived with Child share one handler, so lines written by
// concurrent runs never interleave.
type Recorder struct {
	base        *slog.Logger
	logger      *slog.Logger
	prefix      string
	runID       string
	parentRunID string
	depth       int
}

// NewRecorder starts a root run writing to w.
func NewRecorder(w io.Writer, prefix string) *Recorder {
	base := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return newRecorder(base, prefix, NewRunID(prefix), "", 0)
}

func newRecorder(base *slog.Logger, prefix, runID, parentRunID string, depth int) *Recorder {
	attrs := []any{slog.String("run_id", runID)}
	if parentRunID != "" {
		attrs = append(attrs, slog.String("parent_run_id", parentRunID))
	}
	attrs = append(attrs, slog.Int("depth", depth))
	return &Recorder{
		base:        base,
		logger:      base.With(attrs...),
		prefix:      prefix,
		runID:       runID,
		parentRunID: parentRunID,
		depth:       depth,
	}
}

// Child returns a recorder for a sub-agent spawned by this run.
func (r *Recorder) Child() *Recorder {
	return newRecorder(r.base, r.prefix, NewRunID(r.prefix), r.runID, r.depth+1)
}

func (r *Recorder) RunID() string       { return r.runID }
func (r *Recorder) ParentRunID() string { return r.parentRunID }
func (r *Recorder) Depth() int          { return r.depth }

func (r *Recorder) emit(msg string, typ EventType, attrs ...slog.Attr) {
	attrs = append([]slog.Attr{slog.String("event_type", string(typ))}, attrs...)
	r.logger.LogAttrs(context.Background(), slog.LevelInfo, msg, attrs...)
}

// RunStart records the query a run was started with.
func (r *Recorder) RunStart(query string) {
	r.emit("run started", EventRunStart, slog.Int("step", 0), slog.String("query", query))
}

// CodeGenerated records the model's answer for a step.
func (r *Recorder) CodeGenerated(step int, code, reasoning string, u usage.Usage) {
	attrs := []slog.Attr{
		slog.Int("step", step),
		slog.String("code", code),
		slog.Any("usage", u),
	}
	if reasoning != "" {
		attrs = append(attrs, slog.String("reasoning", reasoning))
	}
	r.emit("code generated", EventCodeGenerated, attrs...)
}

// ExecutionResult records what running a step's code produced. Sub-agents
// spawned by that code have finished logging by the time this is written.
func (r *Recorder) ExecutionResult(step int, output string, hasError bool) {
	r.emit("execution result", EventExecutionResult,
		slog.Int("step", step),
		slog.String("output", output),
		slog.Bool("has_error", hasError),
	)
}

// FinalResult records the value a run returned. result must be JSON-encodable.
func (r *Recorder) FinalResult(result any) {
	r.emit("final result", EventFinalResult, slog.Any("result", result))
}
