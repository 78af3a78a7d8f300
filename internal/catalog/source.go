// Package catalog loads term catalogues from files or database rows and turns
// them into planner reference data.
package catalog

import (
	"context"
	"errors"

	"github.com/noah-isme/course-planner-api/internal/planner"
)

// ErrTermNotFound is returned when a source has no data for a term.
var ErrTermNotFound = errors.New("catalog: term not found")

// Source loads the catalogue of one term.
type Source interface {
	LoadTerm(ctx context.Context, term string) (*planner.Catalog, error)
}

// Dataset is a parsed catalogue ready to be indexed or imported.
type Dataset struct {
	Term    string
	Courses []*planner.Course
	Report  Report
}

// Report summarises what a load kept and skipped.
type Report struct {
	Courses       int      `json:"courses"`
	Lessons       int      `json:"lessons"`
	Meetings      int      `json:"meetings"`
	OrphanLessons []string `json:"orphan_lessons,omitempty"`

	// ConflictingLessons lists "crn/course" rows skipped because the CRN
	// already belongs to a lesson of another course.
	ConflictingLessons []string `json:"conflicting_lessons,omitempty"`
}

// Catalog indexes the dataset.
func (d *Dataset) Catalog() *planner.Catalog {
	return planner.NewCatalog(d.Term, d.Courses)
}
