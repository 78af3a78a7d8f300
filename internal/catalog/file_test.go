package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-planner-api/internal/planner"
)

const coursesYAML = `
term: 2025-fall
courses:
  - code: CENG111
    title: Introduction to Programming
    credits: 4
    class_year: 1
    semester: 1
  - code: CENG213
    title: Data Structures
    credits: "4"
    semester: 3
    requirements:
      - CENG111
      - name: calculus
        any: [MATH119, MATH120]
  - code: CENG213
    title: duplicate is ignored
`

const lessonsCSV = `crn,course_code,instructor,capacity,programmes,day,start,end,room,building
1001,CENG111,Ada Lovelace,40,CENG;EE,Mon,09:40,11:30,A1,Main
1001,CENG111,Ada Lovelace,40,CENG;EE,Wed,13:40,15:30,A1,Main
1002,CENG111,Alan Turing,,,Tue,08:40,10:30,B2,Main
2001,CENG213,Grace Hopper,0,CENG,Thu,10:40,12:30,C3,Annex
9999,PHYS101,Nobody,10,,Fri,08:40,09:30,D4,Annex
`

func TestParse(t *testing.T) {
	ds, err := Parse(strings.NewReader(coursesYAML), strings.NewReader(lessonsCSV))
	require.NoError(t, err)

	assert.Equal(t, "2025-fall", ds.Term)
	assert.Equal(t, Report{Courses: 2, Lessons: 3, Meetings: 4, OrphanLessons: []string{"9999"}}, ds.Report)

	intro := ds.Courses[0]
	require.Len(t, intro.Lessons, 2)
	assert.Equal(t, 1, intro.Semester)
	assert.Equal(t, []string{"CENG", "EE"}, intro.Lessons[0].Programmes)
	assert.Len(t, intro.Lessons[0].Meetings, 2)
	assert.Equal(t, UnlimitedCapacity, intro.Lessons[1].Capacity)

	ds213 := ds.Courses[1]
	assert.Equal(t, 4, ds213.Credits, "weakly typed credits")
	assert.Equal(t, []planner.Requirement{
		planner.CourseRequirement("CENG111"),
		planner.GroupRequirement("calculus", "MATH119", "MATH120"),
	}, ds213.Requirements)
	assert.Equal(t, 0, ds213.Lessons[0].Capacity)
}

func TestParseRejectsBadRequirement(t *testing.T) {
	doc := "courses:\n  - code: X\n    requirements:\n      - name: broken\n"
	_, err := Parse(strings.NewReader(doc), strings.NewReader(""))
	assert.Error(t, err)
}

func TestParseSkipsCRNReusedByAnotherCourse(t *testing.T) {
	doc := "courses:\n  - code: A\n  - code: B\n"
	rows := "crn,course_code,day,start,end\n1,A,Mon,09:00,10:00\n1,B,Tue,09:00,10:00\n1,A,Wed,09:00,10:00\n"
	ds, err := Parse(strings.NewReader(doc), strings.NewReader(rows))
	require.NoError(t, err)

	require.Len(t, ds.Courses[0].Lessons, 1)
	meetings := ds.Courses[0].Lessons[0].Meetings
	require.Len(t, meetings, 2)
	assert.Equal(t, "Mon", meetings[0].Day)
	assert.Equal(t, "Wed", meetings[1].Day)
	assert.Empty(t, ds.Courses[1].Lessons)
	assert.Equal(t, []string{"1/B"}, ds.Report.ConflictingLessons)
	assert.Equal(t, 2, ds.Report.Meetings)
}

func TestParseNumericCourseCodes(t *testing.T) {
	doc := `
courses:
  - code: 101
  - code: 201
    requirements:
      - 101
      - course: 102
      - name: lab
        any: [103, MATH1]
`
	ds, err := Parse(strings.NewReader(doc), strings.NewReader(""))
	require.NoError(t, err)
	require.Len(t, ds.Courses, 2)
	assert.Equal(t, "101", ds.Courses[0].Code)
	assert.Equal(t, []planner.Requirement{
		planner.CourseRequirement("101"),
		planner.CourseRequirement("102"),
		planner.GroupRequirement("lab", "103", "MATH1"),
	}, ds.Courses[1].Requirements)
}

func TestParseEmptyInputs(t *testing.T) {
	ds, err := Parse(strings.NewReader(""), strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, ds.Courses)
	assert.Zero(t, ds.Catalog().Len())
}

func TestFileSourceLoadTerm(t *testing.T) {
	dir := t.TempDir()
	coursesPath := filepath.Join(dir, "courses.yaml")
	lessonsPath := filepath.Join(dir, "lessons.csv")
	require.NoError(t, os.WriteFile(coursesPath, []byte(coursesYAML), 0o600))
	require.NoError(t, os.WriteFile(lessonsPath, []byte(lessonsCSV), 0o600))

	src := FileSource{CoursesPath: coursesPath, LessonsPath: lessonsPath}
	cat, err := src.LoadTerm(context.Background(), "2025-fall")
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Len())
	_, ok := cat.Lesson("1002")
	assert.True(t, ok)

	_, err = src.LoadTerm(context.Background(), "2026-spring")
	assert.ErrorIs(t, err, ErrTermNotFound)

	_, err = FileSource{CoursesPath: filepath.Join(dir, "missing.yaml")}.LoadTerm(context.Background(), "x")
	assert.Error(t, err)
}
