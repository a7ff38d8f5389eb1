package runtime

import (
	"context"
	"log/slog"
	"time"
)

// DefaultWarnAfter is how long Acquire waits before logging that the
// concurrency limit is holding it up.
const DefaultWarnAfter = 60 * time.Second

// Semaphore bounds the number of model calls in flight across every agent
// of one process tree. Slots are held only for the duration of a call, so
// a parent waiting on sub-agents never pins one.
type Semaphore struct {
	slots     chan struct{}
	warnAfter time.Duration
	log       *slog.Logger
}

// NewSemaphore returns a Semaphore with maxSlots slots. A nil logger
// discards the wait warning.
func NewSemaphore(maxSlots int, log *slog.Logger) *Semaphore {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Semaphore{
		slots:     make(chan struct{}, max(1, maxSlots)),
		warnAfter: DefaultWarnAfter,
		log:       log,
	}
}

// Acquire blocks until a slot is free or ctx is done. If it has waited
// longer than the warn threshold it logs once and keeps waiting.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	default:
	}

	warn := time.NewTimer(s.warnAfter)
	defer warn.Stop()
	for {
		select {
		case s.slots <- struct{}{}:
			return nil
		case <-warn.C:
			s.log.Warn("semaphore blocked waiting for concurrency slot",
				"held", s.Count(), "max", cap(s.slots), "waited", s.warnAfter)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Release frees a slot. Releasing more than was acquired is a no-op.
func (s *Semaphore) Release() {
	select {
	case <-s.slots:
	default:
	}
}

// Count returns the number of slots currently held.
func (s *Semaphore) Count() int {
	return len(s.slots)
}

// IsFull reports whether every slot is held.
func (s *Semaphore) IsFull() bool {
	return len(s.slots) >= cap(s.slots)
}
