// Package nav is the navigation state machine of the trace browser. It
// holds no I/O: transitions and renders are pure functions of a
// trace.Forest and a State.
package nav

import "github.com/kehao95/rlmtrace/internal/trace"

// ScrollStep is how far one scroll command moves a pane.
const ScrollStep = 3

// Modal is the overlay currently shown. There is at most one.
type Modal int

const (
	ModalNone Modal = iota
	ModalReasoning
	ModalFinalOutput
)

func (m Modal) String() string {
	switch m {
	case ModalReasoning:
		return "reasoning"
	case ModalFinalOutput:
		return "final-output"
	default:
		return "none"
	}
}

// State is the browser's position. The zero value of every field except
// ActiveRun is a valid start.
type State struct {
	ActiveRun    string
	ActiveStep   int
	CodeScroll   int
	OutputScroll int
	ModalScroll  int
	Modal        Modal
}

// NewState starts on step 0 of the first root.
func NewState(f *trace.Forest) State {
	roots := f.Roots()
	if len(roots) == 0 {
		return State{}
	}
	return State{ActiveRun: roots[0].RunID}
}

// activeRun resolves s.ActiveRun, falling back to the first root when the
// id is unknown to f.
func activeRun(f *trace.Forest, s State) (*trace.RunNode, bool) {
	if n, ok := f.Find(s.ActiveRun); ok {
		return n, true
	}
	roots := f.Roots()
	if len(roots) == 0 {
		return nil, false
	}
	return roots[0], true
}

// Expanded is the set of runs shown with their steps: every root, the
// active run and each of its ancestors.
func Expanded(f *trace.Forest, s State) map[string]bool {
	out := make(map[string]bool)
	for _, r := range f.Roots() {
		out[r.RunID] = true
	}
	run, ok := activeRun(f, s)
	if !ok {
		return out
	}
	out[run.RunID] = true
	for _, id := range f.Ancestors(run.RunID) {
		out[id] = true
	}
	return out
}
