package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// Candidate is one complete selection of exactly one lesson per course.
type Candidate struct {
	Lessons []*Lesson `json:"lessons"`
}

// CRNs returns the lesson identifiers in course order.
func (c Candidate) CRNs() []string {
	return lo.Map(c.Lessons, func(l *Lesson, _ int) string { return l.CRN })
}

// CRNSet returns the lesson identifiers as a set.
func (c Candidate) CRNSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Lessons))
	for _, l := range c.Lessons {
		set[l.CRN] = struct{}{}
	}
	return set
}

// Key is an order-independent identity of the candidate.
func (c Candidate) Key() string {
	crns := c.CRNs()
	sort.Strings(crns)
	return strings.Join(crns, ",")
}

// HasAll reports whether every pinned CRN is part of the candidate.
func (c Candidate) HasAll(pins *PinSet) bool {
	if pins.Len() == 0 {
		return true
	}
	set := c.CRNSet()
	return lo.EveryBy(pins.Slice(), func(crn string) bool {
		_, ok := set[crn]
		return ok
	})
}

// ConflictFree checks meetings of distinct lessons against each other and
// every meeting against the unavailable slots.
func (c Candidate) ConflictFree(unavailable []Interval) bool {
	slots := make([][]Interval, len(c.Lessons))
	for i, l := range c.Lessons {
		ivs, ok := l.Intervals()
		if !ok {
			return false
		}
		if overlapsAny(ivs, unavailable) {
			return false
		}
		for j := 0; j < i; j++ {
			if overlapsAny(ivs, slots[j]) {
				return false
			}
		}
		slots[i] = ivs
	}
	return true
}

// mustBeWellFormed panics when the candidate holds two lessons of one course.
// That can only happen through an enumerator bug.
func (c Candidate) mustBeWellFormed() {
	seen := make(map[string]struct{}, len(c.Lessons))
	for _, l := range c.Lessons {
		if _, dup := seen[l.CourseCode]; dup {
			panic(fmt.Sprintf("planner: candidate holds two lessons of course %s", l.CourseCode))
		}
		seen[l.CourseCode] = struct{}{}
	}
}

func sameCRNSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for crn := range a {
		if _, ok := b[crn]; !ok {
			return false
		}
	}
	return true
}

// FilterCandidates returns the candidates that contain every pinned CRN.
// The input slice is not modified.
func FilterCandidates(candidates []Candidate, pins *PinSet) []Candidate {
	if pins.Len() == 0 {
		return candidates
	}
	return lo.Filter(candidates, func(c Candidate, _ int) bool { return c.HasAll(pins) })
}
