package nav

import "github.com/kehao95/rlmtrace/internal/trace"

// Command is one discrete input.
type Command int

const (
	StepUp Command = iota
	StepDown
	EnterChild
	GoParent
	NextSibling
	PrevSibling
	ScrollCodeUp
	ScrollCodeDown
	ScrollOutputUp
	ScrollOutputDown
	ScrollModalUp
	ScrollModalDown
	ToggleReasoning
	ToggleFinalOutput
	CloseModal
	Quit
)

var commandNames = [...]string{
	StepUp:            "step-up",
	StepDown:          "step-down",
	EnterChild:        "enter-child",
	GoParent:          "go-parent",
	NextSibling:       "next-sibling",
	PrevSibling:       "prev-sibling",
	ScrollCodeUp:      "scroll-code-up",
	ScrollCodeDown:    "scroll-code-down",
	ScrollOutputUp:    "scroll-output-up",
	ScrollOutputDown:  "scroll-output-down",
	ScrollModalUp:     "scroll-modal-up",
	ScrollModalDown:   "scroll-modal-down",
	ToggleReasoning:   "toggle-reasoning",
	ToggleFinalOutput: "toggle-final-output",
	CloseModal:        "close-modal",
	Quit:              "quit",
}

func (c Command) String() string {
	if c >= 0 && int(c) < len(commandNames) {
		return commandNames[c]
	}
	return "unknown"
}

// Apply returns the state after cmd. quit is true when the session should
// end. Commands that cannot apply (no child, no sibling, a clamped step)
// leave the state unchanged.
func Apply(f *trace.Forest, s State, cmd Command) (next State, quit bool) {
	switch cmd {
	case ToggleReasoning:
		return toggle(s, ModalReasoning), false
	case ToggleFinalOutput:
		return toggle(s, ModalFinalOutput), false
	case CloseModal:
		s.Modal = ModalNone
		return s, false
	case Quit:
		if s.Modal != ModalNone {
			s.Modal = ModalNone
			return s, false
		}
		return s, true
	}

	if s.Modal != ModalNone {
		switch cmd {
		case StepUp, ScrollCodeUp, ScrollModalUp:
			s.ModalScroll = scroll(s.ModalScroll, -ScrollStep)
		case StepDown, ScrollCodeDown, ScrollModalDown:
			s.ModalScroll = scroll(s.ModalScroll, ScrollStep)
		}
		return s, false
	}

	run, ok := activeRun(f, s)
	if !ok {
		return s, false
	}
	s.ActiveRun = run.RunID

	switch cmd {
	case StepUp:
		return moveStep(s, run, -1), false
	case StepDown:
		return moveStep(s, run, 1), false
	case EnterChild:
		return enterChild(f, s, run), false
	case GoParent:
		return goParent(f, s, run), false
	case NextSibling:
		return sibling(f, s, run, 1), false
	case PrevSibling:
		return sibling(f, s, run, -1), false
	case ScrollCodeUp:
		s.CodeScroll = scroll(s.CodeScroll, -ScrollStep)
	case ScrollCodeDown:
		s.CodeScroll = scroll(s.CodeScroll, ScrollStep)
	case ScrollOutputUp:
		s.OutputScroll = scroll(s.OutputScroll, -ScrollStep)
	case ScrollOutputDown:
		s.OutputScroll = scroll(s.OutputScroll, ScrollStep)
	}
	return s, false
}

func toggle(s State, m Modal) State {
	if s.Modal == m {
		s.Modal = ModalNone
		return s
	}
	s.Modal = m
	s.ModalScroll = 0
	return s
}

func scroll(v, delta int) int {
	return max(0, v+delta)
}

func moveStep(s State, run *trace.RunNode, delta int) State {
	last := max(0, len(run.Steps)-1)
	s.ActiveStep = min(last, max(0, s.ActiveStep+delta))
	s.CodeScroll, s.OutputScroll = 0, 0
	return s
}

func jump(s State, runID string, step int) State {
	s.ActiveRun = runID
	s.ActiveStep = step
	s.CodeScroll, s.OutputScroll = 0, 0
	return s
}

// enterChild descends into the first child attributed at or after the
// active step, or the first child at all.
func enterChild(f *trace.Forest, s State, run *trace.RunNode) State {
	for i := s.ActiveStep; i < len(run.Steps); i++ {
		if kids := f.ChildrenAtStep(run.RunID, i); len(kids) > 0 {
			return jump(s, kids[0].RunID, 0)
		}
	}
	if len(run.Children) > 0 {
		return jump(s, run.Children[0], 0)
	}
	return s
}

// goParent climbs to the parent, landing on the last parent step at or
// before the child's first step.
func goParent(f *trace.Forest, s State, run *trace.RunNode) State {
	parent, ok := f.Parent(run.RunID)
	if !ok {
		return s
	}
	step := 0
	if len(run.Steps) > 0 && !run.Steps[0].Time.IsZero() {
		step = trace.AnchorStep(parent.StepTimes(), run.Steps[0].Time)
	}
	return jump(s, parent.RunID, step)
}

func sibling(f *trace.Forest, s State, run *trace.RunNode, delta int) State {
	parent, ok := f.Parent(run.RunID)
	if !ok {
		return s
	}
	for i, id := range parent.Children {
		if id != run.RunID {
			continue
		}
		j := i + delta
		if j < 0 || j >= len(parent.Children) {
			return s
		}
		return jump(s, parent.Children[j], 0)
	}
	return s
}
