package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func curriculum() []*Course {
	withReqs := func(code string, reqs ...Requirement) *Course {
		c := course(code)
		c.Requirements = reqs
		return c
	}
	return []*Course{
		withReqs("MATH101"),
		withReqs("MATH102", CourseRequirement("MATH101")),
		withReqs("PHYS101", CourseRequirement("MATH101")),
		withReqs("CS201", CourseRequirement("MATH102"), GroupRequirement("science", "PHYS101", "CHEM101")),
		withReqs("CHEM101"),
	}
}

func set(codes ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		out[c] = struct{}{}
	}
	return out
}

func TestTakeableIsVacuousForNoRequirements(t *testing.T) {
	got := Takeable(set(), curriculum())
	assert.Equal(t, []string{"MATH101", "CHEM101"}, got)

	got = Takeable(set("MATH101"), curriculum())
	assert.Equal(t, []string{"MATH101", "MATH102", "PHYS101", "CHEM101"}, got)

	got = Takeable(set("MATH101", "MATH102", "CHEM101"), curriculum())
	assert.Contains(t, got, "CS201")
}

func TestAddToTakenMarksSingleAlternativePrerequisites(t *testing.T) {
	tr := NewTracker(curriculum(), nil)
	marked := tr.AddToTaken("CS201", 0)
	assert.Equal(t, []string{"CS201", "MATH102", "MATH101"}, marked)
	assert.NotContains(t, tr.Taken(), "PHYS101", "group requirements are not forced")
	assert.NotContains(t, tr.Taken(), "CHEM101")
}

func TestAddToTakenSameSemesterGuard(t *testing.T) {
	tr := NewTracker(curriculum(), map[string]int{"CS201": 3, "MATH102": 3, "MATH101": 1})
	marked := tr.AddToTaken("CS201", tr.Semester("CS201"))
	assert.Equal(t, []string{"CS201"}, marked)
	assert.NotContains(t, tr.Taken(), "MATH102")
}

func TestAddToTakenHandlesCycles(t *testing.T) {
	a := course("A")
	a.Requirements = []Requirement{CourseRequirement("B")}
	b := course("B")
	b.Requirements = []Requirement{CourseRequirement("A")}

	tr := NewTracker([]*Course{a, b}, nil)
	assert.ElementsMatch(t, []string{"A", "B"}, tr.AddToTaken("A", 0))
}

func TestRemoveFromTakenCascades(t *testing.T) {
	tr := NewTracker(curriculum(), nil)
	tr.AddToTaken("CS201", 0)
	tr.AddToTaken("CHEM101", 0)

	removed := tr.RemoveFromTaken("MATH101")
	assert.Equal(t, []string{"MATH101", "MATH102", "CS201"}, removed)
	assert.Equal(t, []string{"CHEM101"}, tr.Taken())
	assert.Nil(t, tr.RemoveFromTaken("MATH101"))
}

func TestRemoveFromTakenKeepsGroupSatisfiedByOther(t *testing.T) {
	tr := NewTracker(curriculum(), nil)
	for _, code := range []string{"MATH101", "MATH102", "PHYS101", "CHEM101", "CS201"} {
		tr.AddToTaken(code, 0)
	}
	assert.Equal(t, []string{"PHYS101"}, tr.RemoveFromTaken("PHYS101"))
	assert.Contains(t, tr.Taken(), "CS201")
}

func TestAddToFutureIsTransitive(t *testing.T) {
	tr := NewTracker(curriculum(), nil)
	assert.Equal(t, []string{"MATH102", "PHYS101", "CS201"}, tr.AddToFuture("MATH101"))
	assert.Equal(t, []string{"CS201", "MATH102", "PHYS101"}, tr.Future())

	tr.ClearFuture()
	assert.Empty(t, tr.Future())

	tr.AddToTaken("MATH102", 0)
	assert.Equal(t, []string{"PHYS101", "CS201"}, tr.AddToFuture("MATH101"))
}

func TestComputeTakeableExcludesTaken(t *testing.T) {
	tr := NewTracker(curriculum(), nil)
	tr.AddToTaken("MATH101", 0)
	assert.Equal(t, []string{"MATH102", "PHYS101", "CHEM101"}, tr.ComputeTakeable())
}
