package trace

import "time"

// Unmapped is the attribution of a child that cannot be placed on a step:
// the parent has no steps or the child carries no timestamp.
const Unmapped = -1

// AttributeChildren maps each child's first-event time T onto the parent
// step during which it was spawned: the last step N with
//
//	stepTimes[N] <= T
//
// so a child falls in [stepTimes[N], stepTimes[N+1]). A child that starts
// before the first step goes to step 0. stepTimes must be in step order.
//
// The recorder writes code_generated before running a step's code and
// execution_result after every sub-agent of that code has logged, so the
// interval of a code_generated step brackets its sub-agents. This is a
// display heuristic only: concurrent sub-agents or coarse clocks can put a
// child on the wrong step.
func AttributeChildren(stepTimes, childTimes []time.Time) []int {
	out := make([]int, len(childTimes))
	for i, t := range childTimes {
		out[i] = attributeOne(stepTimes, t)
	}
	return out
}

func attributeOne(stepTimes []time.Time, t time.Time) int {
	if len(stepTimes) == 0 || t.IsZero() {
		return Unmapped
	}
	return AnchorStep(stepTimes, t)
}

// AnchorStep is the inverse used when climbing from a child back to its
// parent: the last step whose time is not after t, or 0.
func AnchorStep(stepTimes []time.Time, t time.Time) int {
	step := 0
	for n, st := range stepTimes {
		if !st.After(t) {
			step = n
		}
	}
	return step
}
