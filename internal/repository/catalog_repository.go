package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-planner-api/internal/models"
)

// CatalogRepository persists term catalogues.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// LoadSnapshot returns every row of a term. A term without courses yields sql.ErrNoRows.
func (r *CatalogRepository) LoadSnapshot(ctx context.Context, term string) (*models.CatalogSnapshot, error) {
	snap := &models.CatalogSnapshot{Term: term}

	const coursesQuery = `SELECT term, code, title, credits, class_year, semester, requirements, updated_at
FROM catalog_courses WHERE term = $1 ORDER BY code`
	if err := r.db.SelectContext(ctx, &snap.Courses, coursesQuery, term); err != nil {
		return nil, fmt.Errorf("load catalog courses: %w", err)
	}
	if len(snap.Courses) == 0 {
		return nil, sql.ErrNoRows
	}

	const lessonsQuery = `SELECT term, crn, course_code, instructor, capacity, programmes
FROM catalog_lessons WHERE term = $1 ORDER BY course_code, crn`
	if err := r.db.SelectContext(ctx, &snap.Lessons, lessonsQuery, term); err != nil {
		return nil, fmt.Errorf("load catalog lessons: %w", err)
	}

	const meetingsQuery = `SELECT term, crn, seq, day, start_time, end_time, room, building
FROM catalog_meetings WHERE term = $1 ORDER BY crn, seq`
	if err := r.db.SelectContext(ctx, &snap.Meetings, meetingsQuery, term); err != nil {
		return nil, fmt.Errorf("load catalog meetings: %w", err)
	}
	return snap, nil
}

// ListTerms summarises every imported term, newest import first.
func (r *CatalogRepository) ListTerms(ctx context.Context) ([]models.CatalogTerm, error) {
	const query = `SELECT term, COUNT(*) AS course_count, MAX(updated_at) AS imported_at
FROM catalog_courses GROUP BY term ORDER BY imported_at DESC`
	var terms []models.CatalogTerm
	if err := r.db.SelectContext(ctx, &terms, query); err != nil {
		return nil, fmt.Errorf("list catalog terms: %w", err)
	}
	return terms, nil
}

// ReplaceTerm swaps the stored rows of snap.Term for the snapshot. Callers pass
// a transaction so readers never observe a half-written term.
func (r *CatalogRepository) ReplaceTerm(ctx context.Context, exec sqlx.ExtContext, snap models.CatalogSnapshot) error {
	if snap.Term == "" {
		return fmt.Errorf("term is required")
	}
	target := r.exec(exec)

	for _, table := range []string{"catalog_meetings", "catalog_lessons", "catalog_courses"} {
		query := fmt.Sprintf("DELETE FROM %s WHERE term = $1", table)
		if _, err := target.ExecContext(ctx, query, snap.Term); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if len(snap.Courses) > 0 {
		const insertCourses = `
INSERT INTO catalog_courses (term, code, title, credits, class_year, semester, requirements, updated_at)
VALUES (:term, :code, :title, :credits, :class_year, :semester, :requirements, :updated_at)`
		if _, err := sqlx.NamedExecContext(ctx, target, insertCourses, snap.Courses); err != nil {
			return fmt.Errorf("insert catalog courses: %w", err)
		}
	}
	if len(snap.Lessons) > 0 {
		const insertLessons = `
INSERT INTO catalog_lessons (term, crn, course_code, instructor, capacity, programmes)
VALUES (:term, :crn, :course_code, :instructor, :capacity, :programmes)`
		if _, err := sqlx.NamedExecContext(ctx, target, insertLessons, snap.Lessons); err != nil {
			return fmt.Errorf("insert catalog lessons: %w", err)
		}
	}
	if len(snap.Meetings) > 0 {
		const insertMeetings = `
INSERT INTO catalog_meetings (term, crn, seq, day, start_time, end_time, room, building)
VALUES (:term, :crn, :seq, :day, :start_time, :end_time, :room, :building)`
		if _, err := sqlx.NamedExecContext(ctx, target, insertMeetings, snap.Meetings); err != nil {
			return fmt.Errorf("insert catalog meetings: %w", err)
		}
	}
	return nil
}
