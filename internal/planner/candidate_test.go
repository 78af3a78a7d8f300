package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCandidateKeyIgnoresOrder(t *testing.T) {
	assert.Equal(t, cand("2", "1").Key(), cand("1", "2").Key())
	assert.NotEqual(t, cand("1", "2").Key(), cand("1", "3").Key())
}

func TestCandidateConflictFree(t *testing.T) {
	a := lesson("1", meet("Mon", "09:00", "10:00"))
	a.CourseCode = "A"
	b := lesson("2", meet("Mon", "10:00", "11:00"))
	b.CourseCode = "B"
	c := lesson("3", meet("Tue", "09:00", "10:00"))
	c.CourseCode = "C"

	assert.False(t, Candidate{Lessons: []*Lesson{a, b}}.ConflictFree(nil))
	assert.True(t, Candidate{Lessons: []*Lesson{a, c}}.ConflictFree(nil))
	assert.False(t, Candidate{Lessons: []*Lesson{a, c}}.ConflictFree([]Interval{mustInterval("Tue", "09:30", "09:45")}))
}

func TestCandidateHasAll(t *testing.T) {
	c := cand("1", "2")
	assert.True(t, c.HasAll(nil))
	assert.True(t, c.HasAll(NewPinSet("2")))
	assert.False(t, c.HasAll(NewPinSet("2", "3")))
}

func TestFilterCandidatesLeavesInput(t *testing.T) {
	input := []Candidate{cand("1"), cand("2")}
	out := FilterCandidates(input, NewPinSet("2"))
	assert.Len(t, out, 1)
	assert.Len(t, input, 2)
	assert.Equal(t, "1", input[0].CRNs()[0])
	assert.Len(t, FilterCandidates(input, nil), 2)
}
