package usage

import (
	"encoding/json"
	"sync"
	"testing"
)

func TestAdd_CostUnknownPlusUnknown(t *testing.T) {
	got := Usage{PromptTokens: 1}.Add(Usage{CompletionTokens: 2})
	if got.Cost != nil {
		t.Fatalf("Cost = %v, want unknown", *got.Cost)
	}
	if got.PromptTokens != 1 || got.CompletionTokens != 2 {
		t.Errorf("tokens = %+v", got)
	}
}

func TestAdd_KnownCostPromotes(t *testing.T) {
	got := Usage{}.Add(Usage{Cost: Float(0.25)})
	if got.Cost == nil || *got.Cost != 0.25 {
		t.Fatalf("Cost = %v, want 0.25", got.Cost)
	}
	got = got.Add(Usage{})
	if got.Cost == nil || *got.Cost != 0.25 {
		t.Fatalf("Cost after unknown = %v, want 0.25", got.Cost)
	}
}

func TestAdd_DoesNotAlias(t *testing.T) {
	a := Usage{Cost: Float(1)}
	sum := a.Add(Usage{})
	*sum.Cost = 99
	if *a.Cost != 1 {
		t.Errorf("input cost mutated through sum: %v", *a.Cost)
	}
}

func TestAccumulator_TrackAndSnapshot(t *testing.T) {
	acc := NewAccumulator()
	acc.Track(Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15, CachedTokens: 2, ReasoningTokens: 1})
	acc.Track(Usage{PromptTokens: 1, TotalTokens: 1, Cost: Float(0.5)})
	acc.Track(Usage{PromptTokens: 1, TotalTokens: 1})

	snap := acc.Snapshot()
	if snap.PromptTokens != 12 || snap.TotalTokens != 17 || snap.CachedTokens != 2 || snap.ReasoningTokens != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Cost == nil || *snap.Cost != 0.5 {
		t.Errorf("Cost = %v, want 0.5", snap.Cost)
	}

	// Mutating the snapshot must not reach the live total.
	*snap.Cost = 42
	snap.PromptTokens = 0
	again := acc.Snapshot()
	if *again.Cost != 0.5 || again.PromptTokens != 12 {
		t.Errorf("live total changed via snapshot: %+v cost=%v", again, *again.Cost)
	}
}

func TestAccumulator_Reset(t *testing.T) {
	acc := NewAccumulator()
	acc.Track(Usage{PromptTokens: 3, TotalTokens: 3, Cost: Float(1)})
	acc.Reset()
	snap := acc.Snapshot()
	if !snap.IsZero() {
		t.Errorf("after Reset = %+v, want zero", snap)
	}
}

func TestAccumulator_Concurrent(t *testing.T) {
	acc := NewAccumulator()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				acc.Track(Usage{PromptTokens: 1, TotalTokens: 2, Cost: Float(0.5)})
			}
		}()
	}
	wg.Wait()

	snap := acc.Snapshot()
	if snap.PromptTokens != 1000 || snap.TotalTokens != 2000 {
		t.Errorf("tokens = %+v, want 1000/2000", snap)
	}
	if *snap.Cost != 500 {
		t.Errorf("Cost = %v, want 500", *snap.Cost)
	}
}

func TestUsage_JSONCostOptional(t *testing.T) {
	var u Usage
	if err := json.Unmarshal([]byte(`{"prompt_tokens":4,"total_tokens":4}`), &u); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if u.Cost != nil {
		t.Errorf("absent cost decoded as %v", *u.Cost)
	}
	if err := json.Unmarshal([]byte(`{"cost":0}`), &u); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if u.Cost == nil || *u.Cost != 0 {
		t.Errorf("explicit zero cost should be known, got %v", u.Cost)
	}
}
