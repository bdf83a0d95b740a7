package challenge

import "errors"

// ErrEmptySequence is returned when a sequence is built without challenges.
var ErrEmptySequence = errors.New("challenge sequence is empty")

// Sequence walks a sampled set of challenges strictly in order.
type Sequence struct {
	items []Challenge
	index int
}

// NewSequence wraps the given challenges. The slice is copied.
func NewSequence(items []Challenge) (*Sequence, error) {
	if len(items) == 0 {
		return nil, ErrEmptySequence
	}
	cp := make([]Challenge, len(items))
	copy(cp, items)
	return &Sequence{items: cp}, nil
}

// Current returns the active challenge.
func (s *Sequence) Current() Challenge {
	return s.items[s.index]
}

// Index returns the zero-based position of the active challenge.
func (s *Sequence) Index() int {
	return s.index
}

// Len returns the number of challenges in the sequence.
func (s *Sequence) Len() int {
	return len(s.items)
}

// Last reports whether the active challenge is the final one.
func (s *Sequence) Last() bool {
	return s.index == len(s.items)-1
}

// Advance moves to the next challenge. It returns false without moving when
// the active challenge is already the last one.
func (s *Sequence) Advance() bool {
	if s.Last() {
		return false
	}
	s.index++
	return true
}

// Progress returns the share of challenges already passed, in percent.
func (s *Sequence) Progress() float64 {
	return float64(s.index) / float64(len(s.items)) * 100
}

// Items returns a copy of the sequence in order.
func (s *Sequence) Items() []Challenge {
	out := make([]Challenge, len(s.items))
	copy(out, s.items)
	return out
}

// Describe joins the descriptions of every challenge in the sequence.
func (s *Sequence) Describe() string {
	return Describe(s.items)
}
