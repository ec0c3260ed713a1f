package analyzer

import (
	"log/slog"
	"sync"
)

// State is a step of one interpretation
type State string

const (
	StateIdle        State = "idle"
	StateExtracting  State = "extracting"
	StateClassifying State = "classifying"
	StateAggregating State = "aggregating"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// stateTracker logs the lifecycle of an invocation. Done and Failed are terminal.
type stateTracker struct {
	mu      sync.Mutex
	current State
	log     *slog.Logger
}

func newStateTracker(log *slog.Logger) *stateTracker {
	return &stateTracker{current: StateIdle, log: log}
}

func (s *stateTracker) to(next State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal() {
		return
	}
	s.log.Debug("state transition", "from", s.current, "to", next)
	s.current = next
}

func (s *stateTracker) classifying(frame, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal() {
		return
	}
	if s.current != StateClassifying {
		s.log.Debug("state transition", "from", s.current, "to", StateClassifying)
		s.current = StateClassifying
	}
	s.log.Debug("classifying frame", "frame", frame, "total", total)
}

func (s *stateTracker) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal() {
		return
	}
	s.log.Debug("state transition", "from", s.current, "to", StateFailed, "error", err)
	s.current = StateFailed
}

func (s *stateTracker) state() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *stateTracker) terminal() bool {
	return s.current == StateDone || s.current == StateFailed
}
