package planner

func meet(day, start, end string) Meeting {
	return Meeting{Day: day, Start: start, End: end}
}

func lesson(crn string, meetings ...Meeting) *Lesson {
	return &Lesson{CRN: crn, Capacity: 30, Meetings: meetings}
}

func course(code string, lessons ...*Lesson) *Course {
	c := &Course{Code: code, Title: code, Lessons: lessons}
	for _, l := range lessons {
		l.CourseCode = code
	}
	return c
}

func selectAll(courses ...*Course) []Selection {
	out := make([]Selection, 0, len(courses))
	for _, c := range courses {
		out = append(out, Selection{Course: c})
	}
	return out
}

func mustInterval(day, start, end string) Interval {
	iv, ok := NewInterval(day, start, end)
	if !ok {
		panic("bad interval " + day + " " + start + "-" + end)
	}
	return iv
}
