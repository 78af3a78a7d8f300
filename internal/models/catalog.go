package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

// CourseRecord is a catalogue course row for one term.
type CourseRecord struct {
	Term         string         `db:"term" json:"term"`
	Code         string         `db:"code" json:"code"`
	Title        string         `db:"title" json:"title"`
	Credits      int            `db:"credits" json:"credits"`
	ClassYear    int            `db:"class_year" json:"class_year"`
	Semester     int            `db:"semester" json:"semester"`
	Requirements types.JSONText `db:"requirements" json:"requirements"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// LessonRecord is one section of a course.
type LessonRecord struct {
	Term       string         `db:"term" json:"term"`
	CRN        string         `db:"crn" json:"crn"`
	CourseCode string         `db:"course_code" json:"course_code"`
	Instructor string         `db:"instructor" json:"instructor"`
	Capacity   int            `db:"capacity" json:"capacity"`
	Programmes pq.StringArray `db:"programmes" json:"programmes"`
}

// MeetingRecord is one weekly meeting of a lesson. Day and times are kept as
// text so malformed source rows survive import and are filtered at planning time.
type MeetingRecord struct {
	Term      string `db:"term" json:"term"`
	CRN       string `db:"crn" json:"crn"`
	Seq       int    `db:"seq" json:"seq"`
	Day       string `db:"day" json:"day"`
	StartTime string `db:"start_time" json:"start_time"`
	EndTime   string `db:"end_time" json:"end_time"`
	Room      string `db:"room" json:"room"`
	Building  string `db:"building" json:"building"`
}

// CatalogSnapshot groups every row of one term.
type CatalogSnapshot struct {
	Term     string
	Courses  []CourseRecord
	Lessons  []LessonRecord
	Meetings []MeetingRecord
}

// CatalogTerm summarises an imported term.
type CatalogTerm struct {
	Term        string    `db:"term" json:"term"`
	CourseCount int       `db:"course_count" json:"course_count"`
	ImportedAt  time.Time `db:"imported_at" json:"imported_at"`
}
