package planner

import (
	"math/rand"
	"time"
)

// ResultSet holds generated candidates and the index of the displayed one.
// It is not safe for concurrent use; callers serialise access.
type ResultSet struct {
	candidates []Candidate
	index      int
	rng        *rand.Rand
}

// NewResultSet returns an empty result set. A nil rng is seeded from the clock.
func NewResultSet(rng *rand.Rand) *ResultSet {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &ResultSet{rng: rng}
}

// Regenerate replaces the candidate sequence with a copy of candidates.
//
// When the new sequence is at least as long as the old one, the previously
// displayed candidate is located by exact CRN-set and selected again. When
// it is shorter, or the candidate is gone, index 0 is selected.
func (r *ResultSet) Regenerate(candidates []Candidate) {
	var previous map[string]struct{}
	if current, ok := r.Current(); ok {
		previous = current.CRNSet()
	}
	previousCount := len(r.candidates)

	r.candidates = append([]Candidate(nil), candidates...)
	r.index = 0
	if previous == nil || len(candidates) < previousCount {
		return
	}
	for i, c := range candidates {
		if sameCRNSet(c.CRNSet(), previous) {
			r.index = i
			return
		}
	}
}

// FilterByPinned drops, in place, every candidate missing a pinned CRN.
// The displayed candidate stays selected when it survives.
func (r *ResultSet) FilterByPinned(pins *PinSet) {
	if pins.Len() == 0 {
		return
	}
	var displayed *Candidate
	if current, ok := r.Current(); ok {
		displayed = &current
	}
	kept := r.candidates[:0]
	next := 0
	for _, c := range r.candidates {
		if !c.HasAll(pins) {
			continue
		}
		if displayed != nil && c.Key() == displayed.Key() {
			next = len(kept)
		}
		kept = append(kept, c)
	}
	for i := len(kept); i < len(r.candidates); i++ {
		r.candidates[i] = Candidate{}
	}
	r.candidates = kept
	r.index = next
}

// Next advances to the following candidate, wrapping around.
func (r *ResultSet) Next() {
	if n := len(r.candidates); n > 0 {
		r.index = (r.index + 1) % n
	}
}

// Previous moves to the preceding candidate, wrapping around.
func (r *ResultSet) Previous() {
	if n := len(r.candidates); n > 0 {
		r.index = (r.index - 1 + n) % n
	}
}

// Random selects a uniformly chosen index different from the current one.
func (r *ResultSet) Random() {
	n := len(r.candidates)
	if n <= 1 {
		return
	}
	j := r.rng.Intn(n - 1)
	if j >= r.index {
		j++
	}
	r.index = j
}

// ToIndex selects index i. It reports false, leaving the selection alone,
// when i is out of range.
func (r *ResultSet) ToIndex(i int) bool {
	if i < 0 || i >= len(r.candidates) {
		return false
	}
	r.index = i
	return true
}

// Current returns the displayed candidate.
func (r *ResultSet) Current() (Candidate, bool) {
	if len(r.candidates) == 0 {
		return Candidate{}, false
	}
	return r.candidates[r.index], true
}

// CurrentCRNs returns the CRN-set of the displayed candidate.
func (r *ResultSet) CurrentCRNs() (map[string]struct{}, bool) {
	current, ok := r.Current()
	if !ok {
		return nil, false
	}
	return current.CRNSet(), true
}

// Index returns the displayed position.
func (r *ResultSet) Index() int { return r.index }

// Len returns the number of held candidates.
func (r *ResultSet) Len() int { return len(r.candidates) }

// Candidates returns the held sequence. Callers must not modify it.
func (r *ResultSet) Candidates() []Candidate { return r.candidates }
