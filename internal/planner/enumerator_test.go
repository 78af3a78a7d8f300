package planner

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumerateBothCombinationsConflict(t *testing.T) {
	a := course("A",
		lesson("A1", meet("Mon", "09:00", "10:00")),
		lesson("A2", meet("Mon", "10:00", "11:00")),
	)
	b := course("B", lesson("B1", meet("Mon", "09:30", "10:30")))

	out := NewEnumerator().Enumerate(context.Background(), Request{Selections: selectAll(a, b)}, nil)
	assert.Empty(t, out.Candidates)
	assert.EqualValues(t, 2, out.Total)
	assert.EqualValues(t, 2, out.Considered)
	assert.False(t, out.Cancelled)
}

func TestEnumerateRejectsBackToBack(t *testing.T) {
	a := course("A", lesson("A1", meet("Mon", "09:00", "10:00")))
	b := course("B", lesson("B1", meet("Mon", "10:00", "11:00")))

	out := NewEnumerator().Enumerate(context.Background(), Request{Selections: selectAll(a, b)}, nil)
	assert.Len(t, out.Candidates, 0)
	assert.EqualValues(t, 0, out.Valid)
}

func TestEnumerateFullCartesianProduct(t *testing.T) {
	a := course("A", lesson("A1", meet("Mon", "08:00", "08:50")), lesson("A2", meet("Mon", "09:00", "09:50")))
	b := course("B", lesson("B1", meet("Tue", "08:00", "08:50")), lesson("B2", meet("Tue", "09:00", "09:50")))
	c := course("C", lesson("C1", meet("Wed", "08:00", "08:50")), lesson("C2", meet("Wed", "09:00", "09:50")))

	out := NewEnumerator().Enumerate(context.Background(), Request{Selections: selectAll(a, b, c)}, nil)
	require.Len(t, out.Candidates, 8)
	assert.EqualValues(t, 8, out.Total)
	assert.EqualValues(t, 8, out.Valid)

	// depth-first over course order, then lesson order
	assert.Equal(t, []string{"A1", "B1", "C1"}, out.Candidates[0].CRNs())
	assert.Equal(t, []string{"A1", "B1", "C2"}, out.Candidates[1].CRNs())
	assert.Equal(t, []string{"A2", "B2", "C2"}, out.Candidates[7].CRNs())
}

func TestEnumerateEmptySelections(t *testing.T) {
	out := NewEnumerator().Enumerate(context.Background(), Request{}, nil)
	assert.Empty(t, out.Candidates)
	assert.Zero(t, out.Total)
}

func TestEnumerateDropsCoursesWithoutEligibleLessons(t *testing.T) {
	a := course("A", lesson("A1", meet("Mon", "08:00", "08:50")))
	broken := course("X", lesson("X1", meet("-", "-", "-")))
	filtered := course("Y", lesson("Y1", meet("Fri", "08:00", "08:50")))
	filtered.Lessons[0].Instructor = "Someone"

	sels := []Selection{{Course: a}, {Course: broken}, {Course: filtered, Instructor: "Nobody"}}
	out := NewEnumerator().Enumerate(context.Background(), Request{Selections: sels}, nil)
	require.Len(t, out.Candidates, 1)
	assert.Equal(t, []string{"A1"}, out.Candidates[0].CRNs())

	onlyBroken := NewEnumerator().Enumerate(context.Background(), Request{Selections: selectAll(broken)}, nil)
	assert.Empty(t, onlyBroken.Candidates)
}

func TestEnumerateHonoursUnavailableSlots(t *testing.T) {
	a := course("A",
		lesson("A1", meet("Mon", "09:00", "10:00")),
		lesson("A2", meet("Tue", "09:00", "10:00")),
	)
	blocked := []Interval{mustInterval("Mon", "08:00", "09:00")}

	out := NewEnumerator().Enumerate(context.Background(), Request{Selections: selectAll(a), Unavailable: blocked}, nil)
	require.Len(t, out.Candidates, 1)
	assert.Equal(t, []string{"A2"}, out.Candidates[0].CRNs())
}

func TestEnumeratePinnedDoesNotPrune(t *testing.T) {
	a := course("A", lesson("A1", meet("Mon", "08:00", "08:50")), lesson("A2", meet("Mon", "09:00", "09:50")))
	b := course("B", lesson("B1", meet("Tue", "08:00", "08:50")))

	out := NewEnumerator().Enumerate(context.Background(), Request{
		Selections: selectAll(a, b),
		Pinned:     NewPinSet("A2"),
	}, nil)
	assert.Len(t, out.Candidates, 2)
	assert.EqualValues(t, 1, out.Matching)
}

func TestEnumerateRandomisedInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	days := []string{"Mon", "Tue", "Wed"}
	for round := 0; round < 40; round++ {
		var courses []*Course
		nCourses := 1 + rng.Intn(4)
		for ci := 0; ci < nCourses; ci++ {
			var lessons []*Lesson
			nLessons := 1 + rng.Intn(4)
			for li := 0; li < nLessons; li++ {
				var meetings []Meeting
				nMeetings := 1 + rng.Intn(2)
				for mi := 0; mi < nMeetings; mi++ {
					start := 8*60 + rng.Intn(8)*30
					meetings = append(meetings, meet(days[rng.Intn(len(days))], FormatClock(start), FormatClock(start+50)))
				}
				lessons = append(lessons, lesson(fmt.Sprintf("%d-%d-%d", round, ci, li), meetings...))
			}
			courses = append(courses, course(fmt.Sprintf("C%d", ci), lessons...))
		}
		blocked := []Interval{{Day: Wednesday, Start: 12 * 60, End: 13 * 60}}
		out := NewEnumerator().Enumerate(context.Background(), Request{Selections: selectAll(courses...), Unavailable: blocked}, nil)

		var product int64 = 1
		for _, c := range courses {
			product *= int64(len(c.Lessons))
		}
		assert.LessOrEqual(t, int64(len(out.Candidates)), product)
		assert.Equal(t, product, out.Total)
		assert.Equal(t, product, out.Considered)
		for _, cand := range out.Candidates {
			require.True(t, cand.ConflictFree(blocked), "round %d candidate %v", round, cand.CRNs())
			assert.Len(t, cand.Lessons, len(courses))
		}
	}
}

func TestEnumerateIsDeterministic(t *testing.T) {
	build := func() []Selection {
		var courses []*Course
		for ci := 0; ci < 3; ci++ {
			var lessons []*Lesson
			for li := 0; li < 3; li++ {
				start := 8*60 + li*60
				lessons = append(lessons, lesson(fmt.Sprintf("%d%d", ci, li), meet([]string{"Mon", "Tue", "Wed"}[ci], FormatClock(start), FormatClock(start+50))))
			}
			courses = append(courses, course(fmt.Sprintf("C%d", ci), lessons...))
		}
		return selectAll(courses...)
	}
	first := NewEnumerator().Enumerate(context.Background(), Request{Selections: build()}, nil)
	second := NewEnumerator().Enumerate(context.Background(), Request{Selections: build()}, nil)
	require.Equal(t, len(first.Candidates), len(second.Candidates))
	for i := range first.Candidates {
		assert.Equal(t, first.Candidates[i].CRNs(), second.Candidates[i].CRNs())
	}
}

func TestEnumerateStopsOnCancel(t *testing.T) {
	sels := wideSelections(6, 6)
	ctx, cancel := context.WithCancel(context.Background())
	e := NewEnumerator()
	e.BatchSize = 10
	calls := 0
	e.Yield = func() {
		calls++
		if calls == 3 {
			cancel()
		}
	}

	out := e.Enumerate(ctx, Request{Selections: sels}, nil)
	assert.True(t, out.Cancelled)
	assert.NotEmpty(t, out.Candidates)
	assert.Less(t, out.Considered, out.Total)
	for _, c := range out.Candidates {
		assert.True(t, c.ConflictFree(nil))
	}
}

func TestEnumerateAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := NewEnumerator().Enumerate(ctx, Request{Selections: wideSelections(2, 2)}, nil)
	assert.True(t, out.Cancelled)
	assert.Empty(t, out.Candidates)
}

func TestEnumerateReportsProgress(t *testing.T) {
	e := NewEnumerator()
	e.ProgressEvery = 7
	var updates []Progress
	out := e.Enumerate(context.Background(), Request{Selections: wideSelections(3, 4)}, func(p Progress) {
		updates = append(updates, p)
	})
	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	assert.Equal(t, out.Total, last.Considered)
	assert.Equal(t, out.Valid, last.Valid)
	for i := 1; i < len(updates); i++ {
		assert.GreaterOrEqual(t, updates[i].Considered, updates[i-1].Considered)
	}
}

func TestEnumerateTruncates(t *testing.T) {
	e := NewEnumerator()
	e.MaxCandidates = 5
	out := e.Enumerate(context.Background(), Request{Selections: wideSelections(3, 3)}, nil)
	assert.True(t, out.Truncated)
	assert.Len(t, out.Candidates, 5)
	assert.False(t, out.Cancelled)
}

func TestCandidateWellFormedPanicsOnDuplicateCourse(t *testing.T) {
	l1 := lesson("1", meet("Mon", "08:00", "08:50"))
	l2 := lesson("2", meet("Tue", "08:00", "08:50"))
	l1.CourseCode, l2.CourseCode = "A", "A"
	assert.Panics(t, func() { Candidate{Lessons: []*Lesson{l1, l2}}.mustBeWellFormed() })
}

// wideSelections builds n courses with k non-conflicting lessons each, one
// weekday slot per course and lesson.
func wideSelections(n, k int) []Selection {
	var courses []*Course
	for ci := 0; ci < n; ci++ {
		var lessons []*Lesson
		for li := 0; li < k; li++ {
			start := 7*60 + ci*90 + li*5
			day := []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}[li%7]
			lessons = append(lessons, lesson(fmt.Sprintf("%d-%d", ci, li), meet(day, FormatClock(start), FormatClock(start+1))))
		}
		courses = append(courses, course(fmt.Sprintf("W%d", ci), lessons...))
	}
	return selectAll(courses...)
}
