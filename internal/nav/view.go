package nav

import (
	"bytes"
	"encoding/json"

	"github.com/kehao95/rlmtrace/internal/trace"
	"github.com/kehao95/rlmtrace/internal/usage"
)

// FinalResultBanner separates a step's output from the run's final result
// on the last step.
const FinalResultBanner = "━━━ FINAL RESULT ━━━"

// View is everything a renderer needs for one frame.
type View struct {
	// Items is the visible window of the run list, Offset its position in
	// the full list of Total lines. Cursor indexes into Items.
	Items  []Item
	Offset int
	Total  int
	Cursor int

	RunID    string
	Depth    int
	Step     int
	Steps    int
	Code     string
	Output   string
	HasError bool

	StepUsage   *usage.Usage
	RunUsage    usage.Usage
	GlobalUsage usage.Usage

	// Result is the first root's final result on one line, "" if none.
	Result string

	Modal        Modal
	ModalContent string
	ModalScroll  int
	CodeScroll   int
	OutputScroll int
}

// Render builds the view of s with a run list window of height lines.
func Render(f *trace.Forest, s State, height int) View {
	v := View{
		Modal:        s.Modal,
		ModalScroll:  s.ModalScroll,
		CodeScroll:   s.CodeScroll,
		OutputScroll: s.OutputScroll,
		GlobalUsage:  f.GlobalUsage(),
	}
	if r, ok := rootResult(f); ok {
		v.Result = FormatResult(r, false)
	}

	run, ok := activeRun(f, s)
	if !ok {
		return v
	}
	s.ActiveRun = run.RunID

	all := Items(f, s)
	cursor := Cursor(all, s)
	v.Offset, v.Items = window(all, cursor, height)
	v.Total = len(all)
	v.Cursor = cursor - v.Offset

	v.RunID = run.RunID
	v.Depth = run.Depth
	v.Step = s.ActiveStep
	v.Steps = len(run.Steps)
	v.RunUsage = run.Usage()

	if s.ActiveStep >= 0 && s.ActiveStep < len(run.Steps) {
		st := run.Steps[s.ActiveStep]
		v.Code = st.Code
		v.Output = st.Output
		v.HasError = st.HasError
		if st.Usage != nil {
			u := st.Usage.Clone()
			v.StepUsage = &u
		}
	}
	if s.ActiveStep == len(run.Steps)-1 && run.Final != nil {
		v.Output += "\n\n" + FinalResultBanner + "\n" + FormatResult(run.Final.Result, true)
	}

	switch s.Modal {
	case ModalReasoning:
		v.ModalContent = "(no reasoning trace)"
		if s.ActiveStep >= 0 && s.ActiveStep < len(run.Steps) && run.Steps[s.ActiveStep].Reasoning != "" {
			v.ModalContent = run.Steps[s.ActiveStep].Reasoning
		}
	case ModalFinalOutput:
		v.ModalContent = "(no final result)"
		if r, ok := rootResult(f); ok {
			v.ModalContent = FormatResult(r, true)
		}
	}
	return v
}

// window slices height lines centred on cursor, clamped to the list.
func window(items []Item, cursor, height int) (int, []Item) {
	height = max(1, height)
	offset := max(0, min(cursor-height/2, len(items)-height))
	end := min(len(items), offset+height)
	return offset, items[offset:end]
}

func rootResult(f *trace.Forest) (json.RawMessage, bool) {
	for _, r := range f.Roots() {
		if r.Final != nil && len(r.Final.Result) > 0 {
			return r.Final.Result, true
		}
	}
	return nil, false
}

// FormatResult renders a final result: strings bare, objects and arrays as
// JSON, indented when pretty.
func FormatResult(raw json.RawMessage, pretty bool) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if pretty {
		if err := json.Indent(&buf, raw, "", "  "); err == nil {
			return buf.String()
		}
	} else if err := json.Compact(&buf, raw); err == nil {
		return buf.String()
	}
	return string(raw)
}
