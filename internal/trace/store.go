// Package trace rebuilds the run forest of an agent tree from its
// telemetry events, which may arrive interleaved across runs and with
// children logged before their parents.
package trace

import (
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/kehao95/rlmtrace/internal/tape"
	"github.com/kehao95/rlmtrace/internal/usage"
)

// eventKey identifies an event for dedupe. Two events in the same run,
// of the same type and step and logged in the same instant are still
// distinct when their payloads differ.
type eventKey struct {
	runID   string
	typ     tape.EventType
	step    int
	nanos   int64
	payload uint64
}

func keyOf(ev tape.LogEvent) eventKey {
	step := -1
	if ev.Step != nil {
		step = *ev.Step
	}
	return eventKey{
		runID:   ev.RunID,
		typ:     ev.EventType,
		step:    step,
		nanos:   ev.Time.UnixNano(),
		payload: payloadHash(ev),
	}
}

func payloadHash(ev tape.LogEvent) uint64 {
	h := fnv.New64a()
	for _, field := range []string{
		ev.ParentRunID, ev.Msg, ev.Query, ev.Code, ev.Output,
		ev.Reasoning, strconv.FormatBool(ev.HasError), string(ev.Result),
	} {
		// Length prefix keeps field boundaries unambiguous.
		h.Write([]byte(strconv.Itoa(len(field))))
		h.Write([]byte{0})
		h.Write([]byte(field))
	}
	return h.Sum64()
}

// Store accumulates events. It is safe for concurrent Ingest and Snapshot;
// readers work on immutable Forest snapshots.
type Store struct {
	mu      sync.RWMutex
	nodes   map[string]*RunNode
	seen    map[eventKey]struct{}
	arrived int
	diag    Diagnostics
	forest  *Forest // nil when stale
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		nodes: make(map[string]*RunNode),
		seen:  make(map[eventKey]struct{}),
	}
}

// Ingest adds ev. It reports false when ev was already ingested or carries
// no run id.
func (s *Store) Ingest(ev tape.LogEvent) bool {
	if ev.RunID == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := keyOf(ev)
	if _, dup := s.seen[k]; dup {
		s.diag.Duplicates++
		return false
	}
	s.seen[k] = struct{}{}

	n, ok := s.nodes[ev.RunID]
	if !ok {
		n = &RunNode{
			RunID:       ev.RunID,
			ParentRunID: ev.ParentRunID,
			Depth:       ev.Depth,
			arrival:     s.arrived,
		}
		s.arrived++
		s.nodes[ev.RunID] = n
	}

	switch {
	case ev.ParentRunID == "" || ev.ParentRunID == n.ParentRunID:
		// nothing new
	case n.ParentRunID == "":
		n.ParentRunID = ev.ParentRunID
	default:
		s.diag.ParentConflicts++
	}

	if ev.EventType == tape.EventFinalResult {
		final := ev
		n.Final = &final
	} else {
		n.Steps = append(n.Steps, ev)
	}

	s.forest = nil
	return true
}

// IngestAll ingests evs in order and returns how many were new.
func (s *Store) IngestAll(evs []tape.LogEvent) int {
	added := 0
	for _, ev := range evs {
		if s.Ingest(ev) {
			added++
		}
	}
	return added
}

// NoteSkipped records n records a reader had to drop.
func (s *Store) NoteSkipped(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diag.Skipped += n
	s.forest = nil
}

// Snapshot returns the forest as of now. Repeated calls without new events
// return the same Forest.
func (s *Store) Snapshot() *Forest {
	s.mu.RLock()
	f := s.forest
	s.mu.RUnlock()
	if f != nil {
		return f
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forest == nil {
		s.forest = build(s.nodes, s.diag)
	}
	return s.forest
}

// Len is the number of runs seen.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

func (s *Store) Find(id string) (*RunNode, bool) { return s.Snapshot().Find(id) }
func (s *Store) Roots() []*RunNode               { return s.Snapshot().Roots() }
func (s *Store) RunUsage(id string) usage.Usage  { return s.Snapshot().RunUsage(id) }
func (s *Store) GlobalUsage() usage.Usage        { return s.Snapshot().GlobalUsage() }
func (s *Store) MaxDepth() int                   { return s.Snapshot().MaxDepth() }
func (s *Store) Diagnostics() Diagnostics        { return s.Snapshot().Diagnostics() }
