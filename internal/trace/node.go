package trace

import (
	"time"

	"github.com/kehao95/rlmtrace/internal/tape"
	"github.com/kehao95/rlmtrace/internal/usage"
)

// RunNode is one agent invocation as reconstructed from its events. Nodes
// handed out by a Forest are read-only.
type RunNode struct {
	RunID       string
	ParentRunID string
	Depth       int

	// Steps holds every non-final event, ordered by step number.
	Steps []tape.LogEvent
	Final *tape.LogEvent

	// Children are run ids, ordered by first-event time.
	Children []string

	// childStep[i] is the parent step Children[i] is attributed to.
	childStep []int
	arrival   int
}

// FirstTime is the earliest timestamp among the node's events, or the zero
// time when none carries one.
func (n *RunNode) FirstTime() time.Time {
	var first time.Time
	consider := func(t time.Time) {
		if t.IsZero() {
			return
		}
		if first.IsZero() || t.Before(first) {
			first = t
		}
	}
	for _, s := range n.Steps {
		consider(s.Time)
	}
	if n.Final != nil {
		consider(n.Final.Time)
	}
	return first
}

// FirstStepTime is the time of Steps[0], falling back to FirstTime.
func (n *RunNode) FirstStepTime() time.Time {
	if len(n.Steps) > 0 && !n.Steps[0].Time.IsZero() {
		return n.Steps[0].Time
	}
	return n.FirstTime()
}

// StepTimes lists the step timestamps in step order.
func (n *RunNode) StepTimes() []time.Time {
	out := make([]time.Time, len(n.Steps))
	for i, s := range n.Steps {
		out[i] = s.Time
	}
	return out
}

// Usage is the field-wise sum over the node's steps.
func (n *RunNode) Usage() usage.Usage {
	var total usage.Usage
	for _, s := range n.Steps {
		if s.Usage != nil {
			total = total.Add(*s.Usage)
		}
	}
	return total
}

// ChildStep returns the step index child i is attributed to, or Unmapped.
func (n *RunNode) ChildStep(i int) int {
	if i < 0 || i >= len(n.childStep) {
		return Unmapped
	}
	return n.childStep[i]
}

func (n *RunNode) clone() *RunNode {
	c := *n
	c.Steps = append([]tape.LogEvent(nil), n.Steps...)
	if n.Final != nil {
		f := *n.Final
		c.Final = &f
	}
	c.Children = nil
	c.childStep = nil
	return &c
}
