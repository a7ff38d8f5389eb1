// Package tape is the telemetry log of an agent tree: the event schema,
// the recorder that writes it as JSONL, and the readers that load or tail
// it back.
package tape

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/kehao95/rlmtrace/internal/usage"
)

// EventType discriminates LogEvent payloads.
type EventType string

const (
	EventRunStart        EventType = "run_start"
	EventCodeGenerated   EventType = "code_generated"
	EventExecutionResult EventType = "execution_result"
	EventFinalResult     EventType = "final_result"
)

// LogEvent is one line of the telemetry log. Which payload fields are set
// depends on EventType.
type LogEvent struct {
	Time        time.Time       `json:"time"`
	RunID       string          `json:"run_id"`
	ParentRunID string          `json:"parent_run_id,omitempty"`
	Depth       int             `json:"depth"`
	Step        *int            `json:"step,omitempty"`
	EventType   EventType       `json:"event_type"`
	Msg         string          `json:"msg,omitempty"`
	Query       string          `json:"query,omitempty"`
	Code        string          `json:"code,omitempty"`
	Output      string          `json:"output,omitempty"`
	HasError    bool            `json:"has_error,omitempty"`
	Reasoning   string          `json:"reasoning,omitempty"`
	Usage       *usage.Usage    `json:"usage,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// StepNumber returns the explicit step, or 0 when the event has none.
func (e LogEvent) StepNumber() int {
	if e.Step == nil {
		return 0
	}
	return *e.Step
}

// UnmarshalJSON accepts "time" as epoch milliseconds or an RFC 3339
// string, and the older camel-case "hasError" key.
func (e *LogEvent) UnmarshalJSON(data []byte) error {
	type plain LogEvent
	var aux struct {
		plain
		Time           json.RawMessage `json:"time"`
		LegacyHasError *bool           `json:"hasError"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*e = LogEvent(aux.plain)

	t, err := parseTime(aux.Time)
	if err != nil {
		return err
	}
	e.Time = t
	if aux.LegacyHasError != nil && !e.HasError {
		e.HasError = *aux.LegacyHasError
	}
	return nil
}

func parseTime(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t, nil
		}
		if ms, err := strconv.ParseFloat(s, 64); err == nil {
			return fromMillis(ms), nil
		}
		return time.Time{}, fmt.Errorf("unrecognised time %q", s)
	}
	var ms float64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return time.Time{}, fmt.Errorf("unrecognised time %s", raw)
	}
	return fromMillis(ms), nil
}

func fromMillis(ms float64) time.Time {
	whole := int64(ms)
	frac := ms - float64(whole)
	return time.UnixMilli(whole).Add(time.Duration(frac * float64(time.Millisecond)))
}
