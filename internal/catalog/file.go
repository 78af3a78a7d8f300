package catalog

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/course-planner-api/internal/planner"
)

// UnlimitedCapacity is assigned to lessons whose capacity column is blank.
const UnlimitedCapacity = math.MaxInt32

type coursesDocument struct {
	Term    string        `mapstructure:"term"`
	Courses []courseEntry `mapstructure:"courses"`
}

type courseEntry struct {
	Code         string                `mapstructure:"code"`
	Title        string                `mapstructure:"title"`
	Credits      int                   `mapstructure:"credits"`
	ClassYear    int                   `mapstructure:"class_year"`
	Semester     int                   `mapstructure:"semester"`
	Requirements []planner.Requirement `mapstructure:"requirements"`
}

// lessonRow is one meeting line of the lessons CSV. A lesson with several
// meetings repeats its CRN on consecutive or scattered lines.
type lessonRow struct {
	CRN        string `csv:"crn"`
	CourseCode string `csv:"course_code"`
	Instructor string `csv:"instructor"`
	Capacity   string `csv:"capacity"`
	Programmes string `csv:"programmes"`
	Day        string `csv:"day"`
	Start      string `csv:"start"`
	End        string `csv:"end"`
	Room       string `csv:"room"`
	Building   string `csv:"building"`
}

// FileSource reads a YAML course list and a CSV lesson table from disk.
type FileSource struct {
	CoursesPath string
	LessonsPath string
}

// LoadTerm implements Source. A courses file without a term serves any term.
func (s FileSource) LoadTerm(_ context.Context, term string) (*planner.Catalog, error) {
	courses, err := os.ReadFile(s.CoursesPath)
	if err != nil {
		return nil, fmt.Errorf("read courses file: %w", err)
	}
	lessons, err := os.Open(s.LessonsPath)
	if err != nil {
		return nil, fmt.Errorf("open lessons file: %w", err)
	}
	defer lessons.Close() //nolint:errcheck

	ds, err := Parse(bytes.NewReader(courses), lessons)
	if err != nil {
		return nil, err
	}
	if ds.Term != "" && ds.Term != term {
		return nil, fmt.Errorf("%w: %s", ErrTermNotFound, term)
	}
	ds.Term = term
	return ds.Catalog(), nil
}

// Parse reads a courses YAML document and a lessons CSV table.
func Parse(coursesYAML, lessonsCSV io.Reader) (*Dataset, error) {
	doc, err := parseCourses(coursesYAML)
	if err != nil {
		return nil, err
	}
	rows, err := parseLessons(lessonsCSV)
	if err != nil {
		return nil, err
	}
	return assemble(doc, rows), nil
}

// parseCourses decodes the courses document. Requirements accept a bare
// course code or a group written as {name, any: [codes]}.
func parseCourses(r io.Reader) (*coursesDocument, error) {
	var raw map[string]interface{}
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if err == io.EOF {
			return &coursesDocument{}, nil
		}
		return nil, fmt.Errorf("decode courses yaml: %w", err)
	}

	doc := &coursesDocument{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       requirementHook,
		WeaklyTypedInput: true,
		Result:           doc,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode courses: %w", err)
	}
	doc.Term = strings.TrimSpace(doc.Term)
	return doc, nil
}

// parseLessons reads the lessons table.
func parseLessons(r io.Reader) ([]lessonRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var rows []lessonRow
	if err := gocsv.UnmarshalCSV(reader, &rows); err != nil {
		if err == gocsv.ErrEmptyCSVFile {
			return nil, nil
		}
		return nil, fmt.Errorf("decode lessons csv: %w", err)
	}
	return rows, nil
}

var requirementType = reflect.TypeOf(planner.Requirement{})

func requirementHook(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != requirementType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return planner.CourseRequirement(strings.TrimSpace(v)), nil
	case int, int64, uint64, float64:
		// YAML reads unquoted codes such as 101 as numbers.
		return planner.CourseRequirement(fmt.Sprint(v)), nil
	case map[string]interface{}:
		if code, ok := v["course"]; ok && code != nil {
			return planner.CourseRequirement(strings.TrimSpace(fmt.Sprint(code))), nil
		}
		members, ok := v["any"].([]interface{})
		if !ok {
			return nil, fmt.Errorf("requirement needs 'course' or 'any': %v", v)
		}
		codes := make([]string, 0, len(members))
		for _, m := range members {
			codes = append(codes, strings.TrimSpace(fmt.Sprint(m)))
		}
		name, _ := v["name"].(string)
		return planner.GroupRequirement(name, codes...), nil
	}
	return data, nil
}

func assemble(doc *coursesDocument, rows []lessonRow) *Dataset {
	ds := &Dataset{Term: doc.Term}
	byCode := make(map[string]*planner.Course, len(doc.Courses))
	for _, entry := range doc.Courses {
		code := strings.TrimSpace(entry.Code)
		if code == "" {
			continue
		}
		if _, dup := byCode[code]; dup {
			continue
		}
		course := &planner.Course{
			Code:         code,
			Title:        entry.Title,
			Credits:      entry.Credits,
			ClassYear:    entry.ClassYear,
			Semester:     entry.Semester,
			Requirements: entry.Requirements,
		}
		byCode[code] = course
		ds.Courses = append(ds.Courses, course)
	}

	lessons := make(map[string]*planner.Lesson)
	orphans := make(map[string]struct{})
	for _, row := range rows {
		crn := strings.TrimSpace(row.CRN)
		code := strings.TrimSpace(row.CourseCode)
		if crn == "" {
			continue
		}
		course, ok := byCode[code]
		if !ok {
			if _, seen := orphans[crn]; !seen {
				orphans[crn] = struct{}{}
				ds.Report.OrphanLessons = append(ds.Report.OrphanLessons, crn)
			}
			continue
		}
		lesson, ok := lessons[crn]
		if ok && lesson.CourseCode != code {
			ds.Report.ConflictingLessons = append(ds.Report.ConflictingLessons, crn+"/"+code)
			continue
		}
		if !ok {
			lesson = &planner.Lesson{
				CRN:        crn,
				CourseCode: code,
				Instructor: strings.TrimSpace(row.Instructor),
				Capacity:   parseCapacity(row.Capacity),
				Programmes: splitProgrammes(row.Programmes),
			}
			lessons[crn] = lesson
			course.Lessons = append(course.Lessons, lesson)
			ds.Report.Lessons++
		}
		lesson.Meetings = append(lesson.Meetings, planner.Meeting{
			Day:      strings.TrimSpace(row.Day),
			Start:    strings.TrimSpace(row.Start),
			End:      strings.TrimSpace(row.End),
			Room:     strings.TrimSpace(row.Room),
			Building: strings.TrimSpace(row.Building),
		})
		ds.Report.Meetings++
	}
	ds.Report.Courses = len(ds.Courses)
	return ds
}

// parseCapacity reads the capacity column. Blank means unlimited; anything
// unparseable means no seats, which keeps the lesson out of generation.
func parseCapacity(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return UnlimitedCapacity
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func splitProgrammes(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ';' || r == '|' || r == ' ' })
	if len(fields) == 0 {
		return nil
	}
	return fields
}
