package planner

import "sort"

// PinSet is the set of CRNs forced into every displayed candidate.
// A nil *PinSet behaves as an empty set for read operations.
type PinSet struct {
	crns map[string]struct{}
}

// NewPinSet builds a set from the given CRNs, ignoring blanks.
func NewPinSet(crns ...string) *PinSet {
	p := &PinSet{crns: make(map[string]struct{}, len(crns))}
	for _, crn := range crns {
		if crn != "" {
			p.crns[crn] = struct{}{}
		}
	}
	return p
}

// Toggle flips the pin state of crn and returns the new state.
func (p *PinSet) Toggle(crn string) bool {
	if p.crns == nil {
		p.crns = make(map[string]struct{})
	}
	if _, ok := p.crns[crn]; ok {
		delete(p.crns, crn)
		return false
	}
	p.crns[crn] = struct{}{}
	return true
}

// Has reports whether crn is pinned.
func (p *PinSet) Has(crn string) bool {
	if p == nil {
		return false
	}
	_, ok := p.crns[crn]
	return ok
}

// Len returns the number of pinned CRNs.
func (p *PinSet) Len() int {
	if p == nil {
		return 0
	}
	return len(p.crns)
}

// Slice returns the pinned CRNs sorted.
func (p *PinSet) Slice() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.crns))
	for crn := range p.crns {
		out = append(out, crn)
	}
	sort.Strings(out)
	return out
}

// Retain drops pins for which keep returns false. Used when a course
// leaves the selection.
func (p *PinSet) Retain(keep func(crn string) bool) {
	if p == nil {
		return
	}
	for crn := range p.crns {
		if !keep(crn) {
			delete(p.crns, crn)
		}
	}
}
