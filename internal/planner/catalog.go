package planner

import "strings"

// Meeting is one weekly meeting of a lesson section.
type Meeting struct {
	Day      string `json:"day"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Room     string `json:"room,omitempty"`
	Building string `json:"building,omitempty"`
}

// Lesson is one schedulable section of a course.
type Lesson struct {
	CRN        string    `json:"crn"`
	CourseCode string    `json:"courseCode"`
	Instructor string    `json:"instructor,omitempty"`
	Capacity   int       `json:"capacity"`
	Meetings   []Meeting `json:"meetings"`
	Programmes []string  `json:"programmes,omitempty"`
}

// Course is immutable catalogue reference data.
type Course struct {
	Code         string        `json:"code"`
	Title        string        `json:"title"`
	Credits      int           `json:"credits"`
	ClassYear    int           `json:"classYear,omitempty"`
	// Semester is the curriculum semester the course is planned in; zero
	// when unplanned.
	Semester     int           `json:"semester,omitempty"`
	Lessons      []*Lesson     `json:"lessons"`
	Requirements []Requirement `json:"requirements,omitempty"`
}

// Selection is a course chosen by the user with an optional instructor filter.
type Selection struct {
	Course     *Course
	Instructor string
}

// Catalog is a read-only dictionary of courses for one term.
type Catalog struct {
	Term    string
	order   []string
	courses map[string]*Course
	lessons map[string]*Lesson
}

// NewCatalog indexes the provided courses by code and their lessons by CRN.
// Later duplicates of a course code are ignored.
func NewCatalog(term string, courses []*Course) *Catalog {
	c := &Catalog{
		Term:    term,
		courses: make(map[string]*Course, len(courses)),
		lessons: make(map[string]*Lesson),
	}
	for _, course := range courses {
		if course == nil {
			continue
		}
		code := strings.TrimSpace(course.Code)
		if code == "" {
			continue
		}
		if _, exists := c.courses[code]; exists {
			continue
		}
		course.Code = code
		c.courses[code] = course
		c.order = append(c.order, code)
		for _, lesson := range course.Lessons {
			if lesson == nil || lesson.CRN == "" {
				continue
			}
			lesson.CourseCode = code
			c.lessons[lesson.CRN] = lesson
		}
	}
	return c
}

// Course returns the course registered under code.
func (c *Catalog) Course(code string) (*Course, bool) {
	if c == nil {
		return nil, false
	}
	course, ok := c.courses[strings.TrimSpace(code)]
	return course, ok
}

// Lesson returns the lesson registered under crn.
func (c *Catalog) Lesson(crn string) (*Lesson, bool) {
	if c == nil {
		return nil, false
	}
	lesson, ok := c.lessons[crn]
	return lesson, ok
}

// Courses returns every course in catalogue order.
func (c *Catalog) Courses() []*Course {
	if c == nil {
		return nil
	}
	out := make([]*Course, 0, len(c.order))
	for _, code := range c.order {
		out = append(out, c.courses[code])
	}
	return out
}

// Semesters maps every planned course code to its curriculum semester.
func (c *Catalog) Semesters() map[string]int {
	out := make(map[string]int)
	for _, course := range c.Courses() {
		if course.Semester > 0 {
			out[course.Code] = course.Semester
		}
	}
	return out
}

// Tracker builds a prerequisite tracker over the catalogue.
func (c *Catalog) Tracker() *Tracker {
	return NewTracker(c.Courses(), c.Semesters())
}

// Len reports the number of courses.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}
