package planner

import (
	"fmt"
	"strconv"
	"strings"
)

// Day is an ISO weekday, Monday = 1.
type Day int

const (
	Monday Day = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var dayNames = map[string]Day{
	"mon": Monday, "monday": Monday,
	"tue": Tuesday, "tues": Tuesday, "tuesday": Tuesday,
	"wed": Wednesday, "wednesday": Wednesday,
	"thu": Thursday, "thur": Thursday, "thurs": Thursday, "thursday": Thursday,
	"fri": Friday, "friday": Friday,
	"sat": Saturday, "saturday": Saturday,
	"sun": Sunday, "sunday": Sunday,
}

var dayLabels = [...]string{"", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// String returns the short English label.
func (d Day) String() string {
	if d < Monday || d > Sunday {
		return "-"
	}
	return dayLabels[d]
}

// NormalizeDay parses a day label or ISO number. Blank and "-" are rejected.
func NormalizeDay(text string) (Day, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" || text == "-" {
		return 0, false
	}
	if day, ok := dayNames[text]; ok {
		return day, true
	}
	if n, err := strconv.Atoi(text); err == nil && n >= int(Monday) && n <= int(Sunday) {
		return Day(n), true
	}
	return 0, false
}

// ParseClock converts "HH:MM" into minutes from midnight.
func ParseClock(text string) (int, bool) {
	text = strings.TrimSpace(text)
	if text == "" || text == "-" {
		return 0, false
	}
	h, m, found := strings.Cut(text, ":")
	if !found || h == "" || len(m) != 2 {
		return 0, false
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}

// FormatClock renders minutes from midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Interval is a closed time range on one weekday, in minutes from midnight.
type Interval struct {
	Day   Day `json:"day"`
	Start int `json:"start"`
	End   int `json:"end"`
}

// NewInterval parses the textual parts of a meeting or blocked slot.
func NewInterval(day, start, end string) (Interval, bool) {
	d, ok := NormalizeDay(day)
	if !ok {
		return Interval{}, false
	}
	s, ok := ParseClock(start)
	if !ok {
		return Interval{}, false
	}
	e, ok := ParseClock(end)
	if !ok || e < s {
		return Interval{}, false
	}
	return Interval{Day: d, Start: s, End: e}, true
}

func (i Interval) String() string {
	return fmt.Sprintf("%s %s-%s", i.Day, FormatClock(i.Start), FormatClock(i.End))
}

// SlotsOverlap reports whether two intervals share a day and intersect.
// Touching boundaries count as overlap, so back-to-back sections conflict.
func SlotsOverlap(a, b Interval) bool {
	return a.Day == b.Day && a.Start <= b.End && b.Start <= a.End
}

func overlapsAny(slots, others []Interval) bool {
	for _, a := range slots {
		for _, b := range others {
			if SlotsOverlap(a, b) {
				return true
			}
		}
	}
	return false
}
