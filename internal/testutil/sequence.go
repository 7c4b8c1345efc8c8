package testutil

import "sync"

// Sequencer hands out a monotonic sequence of trace numbers.
//
// A scenario run stamps every trace event with Next(), so two runs of the
// same scenario produce identical sequence numbers. Reset allows reuse
// across runs.
//
// Thread-safety: All methods are safe for concurrent use.
type Sequencer struct {
	mu  sync.Mutex
	seq int64
}

// NewSequencer creates a sequencer starting at 0.
//
// The first call to Next() returns 1.
func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// Next increments and returns the next sequence number.
func (s *Sequencer) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// Current returns the last number handed out without incrementing.
func (s *Sequencer) Current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Reset rewinds the sequencer to 0.
func (s *Sequencer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = 0
}
