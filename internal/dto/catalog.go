package dto

import "time"

// CourseListQuery narrows a catalogue listing.
type CourseListQuery struct {
	Programmes []string `form:"programmes" json:"programmes"`
	Search     string   `form:"q" json:"q" validate:"omitempty,max=64"`
	OnlyOpen   bool     `form:"offerable" json:"offerable"`
}

// CourseSummary is one row of the catalogue listing.
type CourseSummary struct {
	Code        string   `json:"code"`
	Title       string   `json:"title"`
	Credits     int      `json:"credits"`
	ClassYear   int      `json:"classYear,omitempty"`
	Semester    int      `json:"semester,omitempty"`
	Offerable   bool     `json:"offerable"`
	LessonCount int      `json:"lessonCount"`
	Instructors []string `json:"instructors"`
}

// CatalogTermResponse describes an imported term.
type CatalogTermResponse struct {
	Term        string    `json:"term"`
	CourseCount int       `json:"courseCount"`
	ImportedAt  time.Time `json:"importedAt"`
}

// CatalogImportResponse reports what an import stored.
type CatalogImportResponse struct {
	Term               string   `json:"term"`
	Courses            int      `json:"courses"`
	Lessons            int      `json:"lessons"`
	Meetings           int      `json:"meetings"`
	OrphanLessons      []string `json:"orphanLessons,omitempty"`
	ConflictingLessons []string `json:"conflictingLessons,omitempty"`
	Archive            string   `json:"archive,omitempty"`
}

// SystemMetrics summarises service counters since start-up.
type SystemMetrics struct {
	RequestsTotal       uint64    `json:"requestsTotal"`
	CacheHitRatio       float64   `json:"cacheHitRatio"`
	CacheHits           uint64    `json:"cacheHits"`
	CacheMisses         uint64    `json:"cacheMisses"`
	GenerationRuns      uint64    `json:"generationRuns"`
	ActiveRuns          int64     `json:"activeRuns"`
	AvgCandidatesPerRun float64   `json:"avgCandidatesPerRun"`
	Sessions            int       `json:"sessions"`
	QueuePending        int       `json:"queuePending"`
	Goroutines          int       `json:"goroutines"`
	GeneratedAt         time.Time `json:"generatedAt"`
}
