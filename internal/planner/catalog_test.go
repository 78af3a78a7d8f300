package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCatalogIndexes(t *testing.T) {
	a := &Course{Code: " CS101 ", Semester: 1, Lessons: []*Lesson{{CRN: "1"}, {CRN: ""}, nil}}
	dup := &Course{Code: "CS101"}
	b := &Course{Code: "CS102", Requirements: []Requirement{CourseRequirement("CS101")}}

	cat := NewCatalog("2025-fall", []*Course{a, nil, dup, {Code: ""}, b})
	require.Equal(t, 2, cat.Len())

	got, ok := cat.Course("CS101")
	require.True(t, ok)
	assert.Same(t, a, got)

	l, ok := cat.Lesson("1")
	require.True(t, ok)
	assert.Equal(t, "CS101", l.CourseCode)

	assert.Equal(t, map[string]int{"CS101": 1}, cat.Semesters())
	tr := cat.Tracker()
	assert.Equal(t, []string{"CS102", "CS101"}, tr.AddToTaken("CS102", 0))
}

func TestNilCatalogIsEmpty(t *testing.T) {
	var cat *Catalog
	_, ok := cat.Course("x")
	assert.False(t, ok)
	assert.Zero(t, cat.Len())
	assert.Empty(t, cat.Courses())
}
