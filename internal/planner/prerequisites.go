package planner

import (
	"sort"

	"github.com/samber/lo"
)

// NodeKind tags a requirement node.
type NodeKind int

const (
	KindRegularCourse NodeKind = iota + 1
	KindCourseGroup
)

func (k NodeKind) String() string {
	switch k {
	case KindRegularCourse:
		return "COURSE"
	case KindCourseGroup:
		return "GROUP"
	}
	return "UNKNOWN"
}

// Requirement is one AND-ed prerequisite of a course. A regular course node
// names a single course; a group node (for example an elective pool) is
// satisfied by any of its members.
type Requirement struct {
	Kind    NodeKind `json:"kind"`
	Code    string   `json:"code,omitempty"`
	Name    string   `json:"name,omitempty"`
	Members []string `json:"members,omitempty"`
}

// CourseRequirement builds a single-course node.
func CourseRequirement(code string) Requirement {
	return Requirement{Kind: KindRegularCourse, Code: code}
}

// GroupRequirement builds an OR node.
func GroupRequirement(name string, members ...string) Requirement {
	return Requirement{Kind: KindCourseGroup, Name: name, Members: members}
}

// Alternatives lists the course codes that satisfy the requirement.
func (r Requirement) Alternatives() []string {
	switch r.Kind {
	case KindRegularCourse:
		if r.Code == "" {
			return nil
		}
		return []string{r.Code}
	case KindCourseGroup:
		return r.Members
	}
	return nil
}

// SatisfiedBy reports whether any alternative is in taken.
func (r Requirement) SatisfiedBy(taken map[string]struct{}) bool {
	return lo.SomeBy(r.Alternatives(), func(code string) bool {
		_, ok := taken[code]
		return ok
	})
}

// Takeable returns the codes of courses whose requirements are all satisfied
// by taken. Courses without requirements are always takeable.
func Takeable(taken map[string]struct{}, courses []*Course) []string {
	out := make([]string, 0)
	for _, c := range courses {
		if c == nil {
			continue
		}
		if lo.EveryBy(c.Requirements, func(r Requirement) bool { return r.SatisfiedBy(taken) }) {
			out = append(out, c.Code)
		}
	}
	return out
}

// Tracker keeps taken and future marks over a catalogue.
type Tracker struct {
	courses    map[string]*Course
	order      []string
	dependents map[string][]string
	semesters  map[string]int
	taken      map[string]struct{}
	future     map[string]struct{}
}

// NewTracker indexes courses. semesters maps a course code to the semester
// it is planned in; zero or missing means unplanned.
func NewTracker(courses []*Course, semesters map[string]int) *Tracker {
	t := &Tracker{
		courses:    make(map[string]*Course, len(courses)),
		dependents: make(map[string][]string),
		semesters:  make(map[string]int, len(semesters)),
		taken:      make(map[string]struct{}),
		future:     make(map[string]struct{}),
	}
	for code, sem := range semesters {
		t.semesters[code] = sem
	}
	for _, c := range courses {
		if c == nil {
			continue
		}
		if _, dup := t.courses[c.Code]; dup {
			continue
		}
		t.courses[c.Code] = c
		t.order = append(t.order, c.Code)
		for _, req := range c.Requirements {
			for _, alt := range req.Alternatives() {
				t.dependents[alt] = append(t.dependents[alt], c.Code)
			}
		}
	}
	return t
}

// Semester returns the planned semester for code.
func (t *Tracker) Semester(code string) int { return t.semesters[code] }

// AddToTaken marks code as taken and, recursively, every prerequisite that
// is the only way to satisfy one of its requirements. A prerequisite planned
// in the same semester as the dependent is treated as a co-requisite and
// left alone. It returns the codes newly marked, in marking order.
func (t *Tracker) AddToTaken(code string, semester int) []string {
	var marked []string
	visited := make(map[string]struct{})
	t.markTaken(code, semester, visited, &marked)
	return marked
}

func (t *Tracker) markTaken(code string, semester int, visited map[string]struct{}, marked *[]string) {
	if _, seen := visited[code]; seen {
		return
	}
	visited[code] = struct{}{}
	if _, ok := t.taken[code]; !ok {
		t.taken[code] = struct{}{}
		delete(t.future, code)
		*marked = append(*marked, code)
	}
	course, ok := t.courses[code]
	if !ok {
		return
	}
	for _, req := range course.Requirements {
		if req.SatisfiedBy(t.taken) {
			continue
		}
		alts := req.Alternatives()
		if len(alts) != 1 {
			continue
		}
		prereq := alts[0]
		if semester > 0 && t.semesters[prereq] == semester {
			continue
		}
		t.markTaken(prereq, t.semesters[prereq], visited, marked)
	}
}

// RemoveFromTaken unmarks code and cascades to every taken course left with
// an unsatisfied requirement. It returns the codes unmarked.
func (t *Tracker) RemoveFromTaken(code string) []string {
	if _, ok := t.taken[code]; !ok {
		return nil
	}
	delete(t.taken, code)
	removed := []string{code}
	queue := []string{code}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dep := range t.dependents[current] {
			if _, ok := t.taken[dep]; !ok {
				continue
			}
			course := t.courses[dep]
			if lo.EveryBy(course.Requirements, func(r Requirement) bool { return r.SatisfiedBy(t.taken) }) {
				continue
			}
			delete(t.taken, dep)
			removed = append(removed, dep)
			queue = append(queue, dep)
		}
	}
	return removed
}

// AddToFuture marks every course that transitively requires code.
func (t *Tracker) AddToFuture(code string) []string {
	var marked []string
	visited := map[string]struct{}{code: {}}
	queue := []string{code}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dep := range t.dependents[current] {
			if _, seen := visited[dep]; seen {
				continue
			}
			visited[dep] = struct{}{}
			if _, taken := t.taken[dep]; !taken {
				if _, already := t.future[dep]; !already {
					t.future[dep] = struct{}{}
					marked = append(marked, dep)
				}
			}
			queue = append(queue, dep)
		}
	}
	return marked
}

// ClearFuture drops every future mark.
func (t *Tracker) ClearFuture() {
	t.future = make(map[string]struct{})
}

// Taken returns the taken codes sorted.
func (t *Tracker) Taken() []string { return sortedKeys(t.taken) }

// Future returns the future codes sorted.
func (t *Tracker) Future() []string { return sortedKeys(t.future) }

// ComputeTakeable returns untaken courses whose requirements are met, in
// catalogue order.
func (t *Tracker) ComputeTakeable() []string {
	courses := lo.FilterMap(t.order, func(code string, _ int) (*Course, bool) {
		_, taken := t.taken[code]
		return t.courses[code], !taken
	})
	return Takeable(t.taken, courses)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
