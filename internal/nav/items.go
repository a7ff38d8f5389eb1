package nav

import "github.com/kehao95/rlmtrace/internal/trace"

// ItemKind is the role of one line in the run list.
type ItemKind int

const (
	ItemHeader ItemKind = iota
	ItemStep
	ItemCollapsed
)

// Item is one line of the run list. Indent counts nesting levels: a run's
// steps sit one level under its header, its children two.
type Item struct {
	Kind   ItemKind
	RunID  string
	Depth  int
	Indent int

	// Step is the step index for ItemStep lines.
	Step     int
	HasError bool

	// Count is the number of runs hidden behind an ItemCollapsed line: the
	// collapsed child and all its descendants.
	Count int

	// Active marks the active run's header and the active step.
	Active bool
}

// Items flattens the forest depth-first. An expanded run contributes its
// header, then each step followed by the children attributed to it, then
// the children no step claimed. A collapsed child contributes one line.
func Items(f *trace.Forest, s State) []Item {
	expanded := Expanded(f, s)
	active := s.ActiveRun
	if run, ok := activeRun(f, s); ok {
		active = run.RunID
	}

	var items []Item
	var child func(n *trace.RunNode, indent int)
	var walk func(n *trace.RunNode, indent int)

	child = func(n *trace.RunNode, indent int) {
		if expanded[n.RunID] {
			walk(n, indent)
			return
		}
		items = append(items, Item{
			Kind:   ItemCollapsed,
			RunID:  n.RunID,
			Depth:  n.Depth,
			Indent: indent,
			Count:  f.SubtreeSize(n.RunID),
		})
	}

	walk = func(n *trace.RunNode, indent int) {
		isActive := n.RunID == active
		items = append(items, Item{
			Kind:   ItemHeader,
			RunID:  n.RunID,
			Depth:  n.Depth,
			Indent: indent,
			Active: isActive,
		})
		for i, st := range n.Steps {
			items = append(items, Item{
				Kind:     ItemStep,
				RunID:    n.RunID,
				Depth:    n.Depth,
				Indent:   indent + 1,
				Step:     i,
				HasError: st.HasError,
				Active:   isActive && i == s.ActiveStep,
			})
			for _, c := range f.ChildrenAtStep(n.RunID, i) {
				child(c, indent+2)
			}
		}
		for _, c := range f.UnmappedChildren(n.RunID) {
			child(c, indent+2)
		}
	}

	for _, r := range f.Roots() {
		walk(r, 0)
	}
	return items
}

// Cursor is the index of the active step in items, or of the active run's
// header when it has no steps. It is 0 when neither is present.
func Cursor(items []Item, s State) int {
	header := -1
	for i, it := range items {
		if it.RunID != s.ActiveRun {
			continue
		}
		switch {
		case it.Kind == ItemStep && it.Step == s.ActiveStep:
			return i
		case it.Kind == ItemHeader && header < 0:
			header = i
		}
	}
	return max(0, header)
}
