package planner

import (
	"strings"

	"github.com/samber/lo"
)

// ProgrammeSet holds the programme/major codes the user has selected.
type ProgrammeSet map[string]struct{}

// NewProgrammeSet normalises codes to upper case and drops blanks.
func NewProgrammeSet(codes ...string) ProgrammeSet {
	set := make(ProgrammeSet, len(codes))
	for _, code := range codes {
		code = normaliseProgramme(code)
		if code != "" {
			set[code] = struct{}{}
		}
	}
	return set
}

func normaliseProgramme(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Intervals returns the parsed meetings of a lesson. ok is false when any
// meeting carries a missing or malformed day/time, or when there are none.
func (l *Lesson) Intervals() ([]Interval, bool) {
	if l == nil || len(l.Meetings) == 0 {
		return nil, false
	}
	out := make([]Interval, 0, len(l.Meetings))
	for _, m := range l.Meetings {
		iv, ok := NewInterval(m.Day, m.Start, m.End)
		if !ok {
			return nil, false
		}
		out = append(out, iv)
	}
	return out, true
}

// Schedulable reports whether every meeting has a usable day and time.
func Schedulable(l *Lesson) bool {
	_, ok := l.Intervals()
	return ok
}

// PermittedFor applies the programme restriction. With no programme
// selected every lesson passes.
func PermittedFor(l *Lesson, programmes ProgrammeSet) bool {
	if l == nil {
		return false
	}
	if len(l.Programmes) == 0 || len(programmes) == 0 {
		return true
	}
	return lo.SomeBy(l.Programmes, func(code string) bool {
		_, ok := programmes[normaliseProgramme(code)]
		return ok
	})
}

// Eligible reports whether a lesson may take part in enumeration.
func Eligible(l *Lesson, programmes ProgrammeSet) bool {
	return l != nil && l.Capacity > 0 && Schedulable(l) && PermittedFor(l, programmes)
}

// Offerable reports whether at least one lesson of the course is eligible.
func Offerable(c *Course, programmes ProgrammeSet) bool {
	if c == nil {
		return false
	}
	return lo.SomeBy(c.Lessons, func(l *Lesson) bool { return Eligible(l, programmes) })
}

// EligibleLessons expands a selection to its eligible lessons, in catalogue
// order, honouring the instructor filter.
func EligibleLessons(sel Selection, programmes ProgrammeSet) []*Lesson {
	if sel.Course == nil {
		return nil
	}
	instructor := strings.TrimSpace(sel.Instructor)
	return lo.Filter(sel.Course.Lessons, func(l *Lesson, _ int) bool {
		if !Eligible(l, programmes) {
			return false
		}
		return instructor == "" || strings.EqualFold(strings.TrimSpace(l.Instructor), instructor)
	})
}

// Instructors lists the distinct named instructors of a course's eligible lessons.
func Instructors(c *Course, programmes ProgrammeSet) []string {
	if c == nil {
		return nil
	}
	names := lo.FilterMap(c.Lessons, func(l *Lesson, _ int) (string, bool) {
		name := strings.TrimSpace(l.Instructor)
		return name, name != "" && Eligible(l, programmes)
	})
	return lo.Uniq(names)
}
