package engine

import "sync/atomic"

// Sequence stamps journaled inputs with a strictly increasing number.
//
// The journal is replayed in seq order, never by wall-clock time, since two
// inputs can share a millisecond.
//
// Thread-safety: safe for concurrent use, though only the Run loop calls
// Next in practice.
type Sequence struct {
	seq atomic.Int64
}

// NewSequence creates a sequence whose first Next returns 1.
func NewSequence() *Sequence {
	return &Sequence{}
}

// NewSequenceAt resumes a sequence after start.
func NewSequenceAt(start int64) *Sequence {
	s := &Sequence{}
	s.seq.Store(start)
	return s
}

// Next returns the next number.
func (s *Sequence) Next() int64 {
	return s.seq.Add(1)
}

// Current returns the last number handed out.
func (s *Sequence) Current() int64 {
	return s.seq.Load()
}
