package catalog

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-planner-api/internal/models"
)

func TestSnapshotRoundTripKeepsPlanningData(t *testing.T) {
	parsed, err := Parse(strings.NewReader(coursesYAML), strings.NewReader(lessonsCSV))
	require.NoError(t, err)

	snap, err := ToSnapshot("2025-fall", parsed.Courses)
	require.NoError(t, err)
	assert.Len(t, snap.Courses, 2)
	assert.Len(t, snap.Lessons, 3)
	assert.Len(t, snap.Meetings, 4)

	// reverse meeting rows to check ordering by sequence
	for i, j := 0, len(snap.Meetings)-1; i < j; i, j = i+1, j-1 {
		snap.Meetings[i], snap.Meetings[j] = snap.Meetings[j], snap.Meetings[i]
	}
	rebuilt, err := FromSnapshot(snap)
	require.NoError(t, err)

	require.Len(t, rebuilt.Courses, 2)
	for i, course := range rebuilt.Courses {
		want := parsed.Courses[i]
		assert.Equal(t, want.Code, course.Code)
		assert.Equal(t, want.Requirements, course.Requirements)
		require.Len(t, course.Lessons, len(want.Lessons))
		for li, lesson := range course.Lessons {
			assert.Equal(t, want.Lessons[li].Meetings, lesson.Meetings)
			assert.Equal(t, want.Lessons[li].Capacity, lesson.Capacity)
		}
	}
}

func TestFromSnapshotRejectsCorruptRequirements(t *testing.T) {
	_, err := FromSnapshot(models.CatalogSnapshot{Courses: []models.CourseRecord{{Code: "X", Requirements: []byte("{")}}})
	assert.Error(t, err)
}

type stubLoader struct {
	snap *models.CatalogSnapshot
	err  error
}

func (s stubLoader) LoadSnapshot(context.Context, string) (*models.CatalogSnapshot, error) {
	return s.snap, s.err
}

func TestDBSource(t *testing.T) {
	_, err := DBSource{Loader: stubLoader{err: sql.ErrNoRows}}.LoadTerm(context.Background(), "2030-fall")
	assert.ErrorIs(t, err, ErrTermNotFound)

	snap := &models.CatalogSnapshot{
		Term:    "2025-fall",
		Courses: []models.CourseRecord{{Code: "CENG111", Requirements: []byte(`[]`)}},
		Lessons: []models.LessonRecord{{CRN: "1001", CourseCode: "CENG111", Capacity: 10}},
	}
	cat, err := DBSource{Loader: stubLoader{snap: snap}}.LoadTerm(context.Background(), "2025-fall")
	require.NoError(t, err)
	assert.Equal(t, "2025-fall", cat.Term)
	_, ok := cat.Lesson("1001")
	assert.True(t, ok)
}
