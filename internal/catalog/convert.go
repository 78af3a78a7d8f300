package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/noah-isme/course-planner-api/internal/models"
	"github.com/noah-isme/course-planner-api/internal/planner"
)

// FromSnapshot rebuilds planner courses from database rows. Course order
// follows the snapshot; meetings follow their sequence number.
func FromSnapshot(snap models.CatalogSnapshot) (*Dataset, error) {
	ds := &Dataset{Term: snap.Term}
	byCode := make(map[string]*planner.Course, len(snap.Courses))
	for _, row := range snap.Courses {
		var reqs []planner.Requirement
		if len(row.Requirements) > 0 {
			if err := json.Unmarshal(row.Requirements, &reqs); err != nil {
				return nil, fmt.Errorf("decode requirements of %s: %w", row.Code, err)
			}
		}
		if len(reqs) == 0 {
			reqs = nil
		}
		course := &planner.Course{
			Code:         row.Code,
			Title:        row.Title,
			Credits:      row.Credits,
			ClassYear:    row.ClassYear,
			Semester:     row.Semester,
			Requirements: reqs,
		}
		byCode[row.Code] = course
		ds.Courses = append(ds.Courses, course)
	}

	meetings := make(map[string][]models.MeetingRecord)
	for _, m := range snap.Meetings {
		meetings[m.CRN] = append(meetings[m.CRN], m)
	}

	for _, row := range snap.Lessons {
		course, ok := byCode[row.CourseCode]
		if !ok {
			ds.Report.OrphanLessons = append(ds.Report.OrphanLessons, row.CRN)
			continue
		}
		lesson := &planner.Lesson{
			CRN:        row.CRN,
			CourseCode: row.CourseCode,
			Instructor: row.Instructor,
			Capacity:   row.Capacity,
			Programmes: append([]string(nil), row.Programmes...),
		}
		rows := meetings[row.CRN]
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Seq < rows[j].Seq })
		for _, m := range rows {
			lesson.Meetings = append(lesson.Meetings, planner.Meeting{
				Day:      m.Day,
				Start:    m.StartTime,
				End:      m.EndTime,
				Room:     m.Room,
				Building: m.Building,
			})
			ds.Report.Meetings++
		}
		course.Lessons = append(course.Lessons, lesson)
		ds.Report.Lessons++
	}
	ds.Report.Courses = len(ds.Courses)
	return ds, nil
}

// ToSnapshot flattens a dataset into database rows for term.
func ToSnapshot(term string, courses []*planner.Course) (models.CatalogSnapshot, error) {
	snap := models.CatalogSnapshot{Term: term}
	now := time.Now().UTC()
	for _, c := range courses {
		if c == nil {
			continue
		}
		reqs := c.Requirements
		if reqs == nil {
			reqs = []planner.Requirement{}
		}
		raw, err := json.Marshal(reqs)
		if err != nil {
			return models.CatalogSnapshot{}, fmt.Errorf("encode requirements of %s: %w", c.Code, err)
		}
		snap.Courses = append(snap.Courses, models.CourseRecord{
			Term:         term,
			Code:         c.Code,
			Title:        c.Title,
			Credits:      c.Credits,
			ClassYear:    c.ClassYear,
			Semester:     c.Semester,
			Requirements: types.JSONText(raw),
			UpdatedAt:    now,
		})
		for _, l := range c.Lessons {
			if l == nil {
				continue
			}
			snap.Lessons = append(snap.Lessons, models.LessonRecord{
				Term:       term,
				CRN:        l.CRN,
				CourseCode: c.Code,
				Instructor: l.Instructor,
				Capacity:   l.Capacity,
				Programmes: pq.StringArray(l.Programmes),
			})
			for i, m := range l.Meetings {
				snap.Meetings = append(snap.Meetings, models.MeetingRecord{
					Term:      term,
					CRN:       l.CRN,
					Seq:       i,
					Day:       m.Day,
					StartTime: m.Start,
					EndTime:   m.End,
					Room:      m.Room,
					Building:  m.Building,
				})
			}
		}
	}
	return snap, nil
}
