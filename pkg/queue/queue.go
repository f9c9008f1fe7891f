// Package queue implements named FIFO work queues with edge-triggered
// advancement. Each queue holds pending JSON-shaped items and exposes exactly
// one "in-flight" item at a time; the in-flight item only changes when the
// caller presents a signal value strictly greater than the last one the queue
// observed. This lets a host pipeline re-invoke the same logical node many
// times per tick without accidentally consuming more than one item.
package queue

import (
	"sync"

	"go.uber.org/zap"
)

// Result describes the externally visible state of a queue after an Advance
// call: the current in-flight item (nil if nothing was ever emitted), the
// number of items still pending, whether any items remain, and the 0-based
// emission index (-1 if nothing was ever emitted).
type Result struct {
	Item      interface{} `json:"item"`
	Remaining int         `json:"queue_length"`
	HasMore   bool        `json:"has_more"`
	Index     int         `json:"item_index"`
}

// state holds the sequencing session for a single queue key. Each state
// carries its own mutex so distinct keys never contend.
type state struct {
	mu          sync.Mutex
	pending     []interface{}
	current     interface{}
	lastSignal  int
	initialized bool
	index       int
}

func newState() *state {
	return &state{lastSignal: -1, index: -1}
}

func (st *state) clear() {
	st.pending = nil
	st.current = nil
	st.lastSignal = -1
	st.initialized = false
	st.index = -1
}

// Store is an explicit, shared store of named queues. It is the only mutable
// state in the sequencing subsystem and is meant to be owned by whichever
// component composes the pipeline and passed into node executors, rather than
// accessed as ambient package-level state.
type Store struct {
	mu     sync.Mutex
	queues map[string]*state
	logger *zap.Logger
}

// NewStore creates an empty queue store. A nil logger disables logging.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		queues: make(map[string]*state),
		logger: logger,
	}
}

// get returns the state for a queue key, creating it on first reference.
func (s *Store) get(queueID string) *state {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.queues[queueID]
	if !ok {
		st = newState()
		s.queues[queueID] = st
	}
	return st
}

// Advance runs one sequencing step for the named queue and reports what the
// queue now exposes. In order it: clears the queue if reset is set, enqueues
// the incoming value (a []interface{} is flattened one level, everything
// else — maps included — is enqueued as a single item, nil enqueues
// nothing), then decides whether to dequeue.
//
// The very first item a queue ever sees is emitted unconditionally, without
// consulting the signal. After that a dequeue happens only when signal is
// strictly greater than the last signal the queue recorded; an equal or lower
// signal re-emits the in-flight item unchanged, so duplicate invocations with
// a stale signal are idempotent.
//
// When the signal has advanced but nothing is pending, the in-flight item is
// held and lastSignal is left untouched: if an item arrives
// later, the already-seen signal value can still claim it. Callers that reuse
// signal values across refills should be aware of this.
//
// Advance never fails. Degenerate input resolves to a defined Result; an
// empty, never-initialized queue yields (nil, 0, false, -1).
func (s *Store) Advance(queueID string, reset bool, incoming interface{}, signal int) Result {
	st := s.get(queueID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if reset {
		st.clear()
		s.logger.Debug("queue reset", zap.String("queue_id", queueID))
	}

	if incoming != nil {
		if items, ok := incoming.([]interface{}); ok {
			st.pending = append(st.pending, items...)
		} else {
			st.pending = append(st.pending, incoming)
		}
	}

	signalChanged := signal > st.lastSignal

	switch {
	case !st.initialized && len(st.pending) > 0:
		st.dequeue(signal)
		st.initialized = true
		st.index = 0
		s.logger.Debug("queue emitted first item",
			zap.String("queue_id", queueID),
			zap.Int("remaining", len(st.pending)))

	case st.initialized && signalChanged && len(st.pending) > 0:
		st.dequeue(signal)
		st.index++
		s.logger.Debug("queue advanced",
			zap.String("queue_id", queueID),
			zap.Int("signal", signal),
			zap.Int("item_index", st.index),
			zap.Int("remaining", len(st.pending)))

	case st.initialized && signalChanged:
		// Signal advanced but the queue is drained: hold the in-flight item.
		s.logger.Debug("queue drained, holding in-flight item",
			zap.String("queue_id", queueID),
			zap.Int("signal", signal),
			zap.Int("item_index", st.index))
	}

	return Result{
		Item:      st.current,
		Remaining: len(st.pending),
		HasMore:   len(st.pending) > 0,
		Index:     st.index,
	}
}

// dequeue moves the head of the pending list into the in-flight slot and
// records the signal that claimed it.
func (st *state) dequeue(signal int) {
	st.current = st.pending[0]
	st.pending = st.pending[1:]
	st.lastSignal = signal
}

// Len reports how many items are pending for the named queue. Unknown keys
// report 0 without being created.
func (s *Store) Len(queueID string) int {
	s.mu.Lock()
	st, ok := s.queues[queueID]
	s.mu.Unlock()
	if !ok {
		return 0
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.pending)
}

// Has reports whether the named queue has ever been referenced.
func (s *Store) Has(queueID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.queues[queueID]
	return ok
}

// Clear drops every queue in the store.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues = make(map[string]*state)
	s.logger.Debug("queue store cleared")
}
