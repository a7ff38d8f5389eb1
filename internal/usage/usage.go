// Package usage holds token and cost accounting for model calls.
package usage

import "sync"

// Usage reports token consumption and cost for one or more model calls.
// A nil Cost means the provider did not report pricing; it is not zero.
type Usage struct {
	PromptTokens     int      `json:"prompt_tokens"`
	CompletionTokens int      `json:"completion_tokens"`
	TotalTokens      int      `json:"total_tokens"`
	CachedTokens     int      `json:"cached_tokens"`
	ReasoningTokens  int      `json:"reasoning_tokens"`
	Cost             *float64 `json:"cost,omitempty"`
}

// Add returns the field-wise sum of u and o. The cost stays unknown only
// when neither side knows it; otherwise the known costs are summed.
func (u Usage) Add(o Usage) Usage {
	out := Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
		CachedTokens:     u.CachedTokens + o.CachedTokens,
		ReasoningTokens:  u.ReasoningTokens + o.ReasoningTokens,
	}
	switch {
	case u.Cost != nil && o.Cost != nil:
		out.Cost = Float(*u.Cost + *o.Cost)
	case u.Cost != nil:
		out.Cost = Float(*u.Cost)
	case o.Cost != nil:
		out.Cost = Float(*o.Cost)
	}
	return out
}

// Clone returns a copy that shares no memory with u.
func (u Usage) Clone() Usage {
	if u.Cost != nil {
		u.Cost = Float(*u.Cost)
	}
	return u
}

// CostKnown reports whether a cost has been recorded.
func (u Usage) CostKnown() bool {
	return u.Cost != nil
}

// CostOrZero is for display; do not feed it back into sums.
func (u Usage) CostOrZero() float64 {
	if u.Cost == nil {
		return 0
	}
	return *u.Cost
}

// IsZero reports whether no tokens and no cost were recorded.
func (u Usage) IsZero() bool {
	return u.PromptTokens == 0 && u.CompletionTokens == 0 && u.TotalTokens == 0 &&
		u.CachedTokens == 0 && u.ReasoningTokens == 0 && u.Cost == nil
}

// Float returns a pointer to a copy of v.
func Float(v float64) *float64 {
	return &v
}

// Accumulator is a running Usage total shared by every run of an agent
// tree. Track applies all fields as one critical section, so concurrent
// callers never observe a half-updated total.
type Accumulator struct {
	mu    sync.Mutex
	total Usage
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Track adds u into the running total.
func (a *Accumulator) Track(u Usage) {
	a.mu.Lock()
	a.total = a.total.Add(u)
	a.mu.Unlock()
}

// Snapshot returns an independent copy of the running total.
func (a *Accumulator) Snapshot() Usage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total.Clone()
}

// Reset clears every field back to zero and the cost back to unknown.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	a.total = Usage{}
	a.mu.Unlock()
}
