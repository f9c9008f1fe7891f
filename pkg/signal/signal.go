// Package signal provides named monotonic counters used to drive
// edge-triggered queue advancement. Each non-reset Tick under a given name
// returns the next integer in sequence; the queue side compares successive
// values to detect that progress happened.
package signal

import (
	"sync"

	"go.uber.org/zap"
)

// counter carries its own mutex so distinct counter keys never contend.
type counter struct {
	mu    sync.Mutex
	value int
}

// Source is an explicit store of named counters, owned by whichever component
// composes the pipeline. It persists for the process lifetime; counters are
// created on first reference.
type Source struct {
	mu       sync.Mutex
	counters map[string]*counter
	logger   *zap.Logger
}

// NewSource creates an empty counter store. A nil logger disables logging.
func NewSource(logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		counters: make(map[string]*counter),
		logger:   logger,
	}
}

func (s *Source) get(counterID string) *counter {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[counterID]
	if !ok {
		c = &counter{}
		s.counters[counterID] = c
	}
	return c
}

// Tick advances the named counter by exactly one and returns the new value,
// along with whether this was the first tick since creation or reset (judged
// from the count observed before the increment). With reset set, the counter
// is forced back to 0 and (0, true) is returned. Tick never fails.
func (s *Source) Tick(counterID string, reset bool) (value int, first bool) {
	c := s.get(counterID)
	c.mu.Lock()
	defer c.mu.Unlock()

	if reset {
		c.value = 0
		s.logger.Debug("counter reset", zap.String("counter_id", counterID))
		return 0, true
	}

	first = c.value == 0
	c.value++
	s.logger.Debug("counter ticked",
		zap.String("counter_id", counterID),
		zap.Int("value", c.value))
	return c.value, first
}

// TickWith behaves exactly like Tick. The trigger argument exists only so a
// host pipeline can wire an upstream output into the counter node and force
// invocation ordering; its value is never inspected.
func (s *Source) TickWith(counterID string, reset bool, trigger interface{}) (int, bool) {
	_ = trigger
	return s.Tick(counterID, reset)
}

// Peek returns the current value of the named counter without advancing it.
// Unknown keys report 0 without being created.
func (s *Source) Peek(counterID string) int {
	s.mu.Lock()
	c, ok := s.counters[counterID]
	s.mu.Unlock()
	if !ok {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Clear drops every counter in the store.
func (s *Source) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters = make(map[string]*counter)
	s.logger.Debug("counter store cleared")
}
