package sequence

import "sync/atomic"

// Sequencer hands out strictly increasing identities.
// Zero is never issued, so it can stand for "no identity".
type Sequencer struct {
	next atomic.Uint64
}

// New creates a sequencer whose first Next returns start+1.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(start)
	return s
}

// Next returns the next identity. Safe for concurrent use.
func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Current returns the last issued identity.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}
