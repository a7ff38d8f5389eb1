package trace

import (
	"cmp"
	"slices"
	"time"

	"github.com/kehao95/rlmtrace/internal/tape"
	"github.com/kehao95/rlmtrace/internal/usage"
)

// Diagnostics counts the anomalies met while building a trace. None of
// them stop ingestion.
type Diagnostics struct {
	Duplicates      int // events ingested more than once
	ParentConflicts int // later parent_run_id disagreeing with the first one
	Orphans         int // runs naming a parent that was never observed
	Cycles          int // parent links cut to break a loop
	Skipped         int // records the reader could not decode
}

// Forest is an immutable view of the trace: an arena of nodes keyed by run
// id with children held as ids.
type Forest struct {
	nodes  map[string]*RunNode
	parent map[string]string // absent for roots
	order  []string          // arrival order
	roots  []string
	diag   Diagnostics
}

func build(src map[string]*RunNode, diag Diagnostics) *Forest {
	f := &Forest{
		nodes:  make(map[string]*RunNode, len(src)),
		parent: make(map[string]string, len(src)),
		diag:   diag,
	}

	ordered := make([]*RunNode, 0, len(src))
	for id, n := range src {
		c := n.clone()
		slices.SortStableFunc(c.Steps, func(a, b tape.LogEvent) int {
			return cmp.Compare(a.StepNumber(), b.StepNumber())
		})
		f.nodes[id] = c
		ordered = append(ordered, c)
	}
	slices.SortFunc(ordered, func(a, b *RunNode) int { return cmp.Compare(a.arrival, b.arrival) })

	for _, n := range ordered {
		f.order = append(f.order, n.RunID)
		p := n.ParentRunID
		switch {
		case p == "" || p == n.RunID:
			// root
		case f.nodes[p] == nil:
			f.diag.Orphans++
		default:
			f.parent[n.RunID] = p
		}
	}
	f.breakCycles(ordered)

	byFirstEvent := func(a, b string) int {
		na, nb := f.nodes[a], f.nodes[b]
		if c := na.FirstTime().Compare(nb.FirstTime()); c != 0 {
			return c
		}
		return cmp.Compare(na.arrival, nb.arrival)
	}

	for _, n := range ordered {
		if p, ok := f.parent[n.RunID]; ok {
			parent := f.nodes[p]
			parent.Children = append(parent.Children, n.RunID)
		} else {
			f.roots = append(f.roots, n.RunID)
		}
	}
	slices.SortStableFunc(f.roots, byFirstEvent)
	for _, n := range f.nodes {
		if len(n.Children) == 0 {
			continue
		}
		slices.SortStableFunc(n.Children, byFirstEvent)
		times := make([]time.Time, len(n.Children))
		for i, id := range n.Children {
			times[i] = f.nodes[id].FirstTime()
		}
		n.childStep = AttributeChildren(n.StepTimes(), times)
	}
	return f
}

// breakCycles cuts the link of the earliest-arriving member of every
// parent loop, making it a root.
func (f *Forest) breakCycles(ordered []*RunNode) {
	limit := len(ordered)
	for _, n := range ordered {
		cur := n.RunID
		for range limit {
			p, ok := f.parent[cur]
			if !ok {
				break
			}
			if p == n.RunID {
				delete(f.parent, n.RunID)
				f.diag.Cycles++
				break
			}
			cur = p
		}
	}
}

// Len is the number of runs.
func (f *Forest) Len() int { return len(f.nodes) }

// Find looks a run up by id.
func (f *Forest) Find(id string) (*RunNode, bool) {
	n, ok := f.nodes[id]
	return n, ok
}

// Roots returns the top-level runs ordered by first-event time.
func (f *Forest) Roots() []*RunNode {
	return f.resolve(f.roots)
}

// Parent returns the run that id is attached under, if any.
func (f *Forest) Parent(id string) (*RunNode, bool) {
	p, ok := f.parent[id]
	if !ok {
		return nil, false
	}
	return f.nodes[p], true
}

// Ancestors lists id's parent, grandparent and so on up to its root.
func (f *Forest) Ancestors(id string) []string {
	var out []string
	for cur := id; ; {
		p, ok := f.parent[cur]
		if !ok {
			return out
		}
		out = append(out, p)
		cur = p
	}
}

// Children returns the children of id in display order.
func (f *Forest) Children(id string) []*RunNode {
	n, ok := f.nodes[id]
	if !ok {
		return nil
	}
	return f.resolve(n.Children)
}

// ChildrenAtStep returns the children attributed to step i of run id.
func (f *Forest) ChildrenAtStep(id string, i int) []*RunNode {
	return f.childrenWhere(id, func(step int) bool { return step == i })
}

// UnmappedChildren returns the children attributed to no step.
func (f *Forest) UnmappedChildren(id string) []*RunNode {
	return f.childrenWhere(id, func(step int) bool { return step == Unmapped })
}

func (f *Forest) childrenWhere(id string, keep func(step int) bool) []*RunNode {
	n, ok := f.nodes[id]
	if !ok {
		return nil
	}
	var out []*RunNode
	for i, c := range n.Children {
		if keep(n.ChildStep(i)) {
			out = append(out, f.nodes[c])
		}
	}
	return out
}

// RunUsage sums usage over the steps of run id.
func (f *Forest) RunUsage(id string) usage.Usage {
	n, ok := f.nodes[id]
	if !ok {
		return usage.Usage{}
	}
	return n.Usage()
}

// GlobalUsage sums RunUsage over every run.
func (f *Forest) GlobalUsage() usage.Usage {
	var total usage.Usage
	for _, id := range f.order {
		total = total.Add(f.nodes[id].Usage())
	}
	return total
}

// MaxDepth is the deepest recorded depth.
func (f *Forest) MaxDepth() int {
	deepest := 0
	for _, n := range f.nodes {
		deepest = max(deepest, n.Depth)
	}
	return deepest
}

func (f *Forest) Diagnostics() Diagnostics { return f.diag }

// SubtreeSize counts id and all its descendants.
func (f *Forest) SubtreeSize(id string) int {
	n, ok := f.nodes[id]
	if !ok {
		return 0
	}
	size := 1
	for _, c := range n.Children {
		size += f.SubtreeSize(c)
	}
	return size
}

// Walk visits every run depth-first from the roots. level is 0 for roots.
func (f *Forest) Walk(fn func(n *RunNode, level int)) {
	var visit func(id string, level int)
	visit = func(id string, level int) {
		n := f.nodes[id]
		fn(n, level)
		for _, c := range n.Children {
			visit(c, level+1)
		}
	}
	for _, r := range f.roots {
		visit(r, 0)
	}
}

func (f *Forest) resolve(ids []string) []*RunNode {
	out := make([]*RunNode, len(ids))
	for i, id := range ids {
		out[i] = f.nodes[id]
	}
	return out
}
