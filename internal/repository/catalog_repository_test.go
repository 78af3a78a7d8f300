package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-planner-api/internal/models"
)

func newCatalogRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "postgres"), mock, func() { db.Close() }
}

func TestCatalogRepositoryLoadSnapshot(t *testing.T) {
	db, mock, cleanup := newCatalogRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM catalog_courses WHERE term = $1 ORDER BY code")).
		WithArgs("2025-fall").
		WillReturnRows(sqlmock.NewRows([]string{"term", "code", "title", "credits", "class_year", "semester", "requirements", "updated_at"}).
			AddRow("2025-fall", "CENG111", "Intro", 4, 1, 1, []byte(`[]`), now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM catalog_lessons WHERE term = $1")).
		WithArgs("2025-fall").
		WillReturnRows(sqlmock.NewRows([]string{"term", "crn", "course_code", "instructor", "capacity", "programmes"}).
			AddRow("2025-fall", "1001", "CENG111", "Ada", 40, "{CENG,EE}"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM catalog_meetings WHERE term = $1 ORDER BY crn, seq")).
		WithArgs("2025-fall").
		WillReturnRows(sqlmock.NewRows([]string{"term", "crn", "seq", "day", "start_time", "end_time", "room", "building"}).
			AddRow("2025-fall", "1001", 0, "Mon", "09:40", "11:30", "A1", "Main"))

	snap, err := repo.LoadSnapshot(context.Background(), "2025-fall")
	require.NoError(t, err)
	require.Len(t, snap.Courses, 1)
	require.Len(t, snap.Lessons, 1)
	assert.Equal(t, pq.StringArray{"CENG", "EE"}, snap.Lessons[0].Programmes)
	assert.Equal(t, "09:40", snap.Meetings[0].StartTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepositoryLoadSnapshotUnknownTerm(t *testing.T) {
	db, mock, cleanup := newCatalogRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM catalog_courses WHERE term = $1")).
		WithArgs("1999-fall").
		WillReturnRows(sqlmock.NewRows([]string{"term", "code"}))

	_, err := repo.LoadSnapshot(context.Background(), "1999-fall")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepositoryReplaceTerm(t *testing.T) {
	db, mock, cleanup := newCatalogRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	mock.ExpectBegin()
	for _, table := range []string{"catalog_meetings", "catalog_lessons", "catalog_courses"} {
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM "+table+" WHERE term = $1")).
			WithArgs("2025-fall").
			WillReturnResult(sqlmock.NewResult(0, 3))
	}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO catalog_courses")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO catalog_lessons")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	err = repo.ReplaceTerm(context.Background(), tx, models.CatalogSnapshot{
		Term:    "2025-fall",
		Courses: []models.CourseRecord{{Term: "2025-fall", Code: "CENG111", Requirements: types.JSONText(`[]`)}},
		Lessons: []models.LessonRecord{{Term: "2025-fall", CRN: "1001", CourseCode: "CENG111", Programmes: pq.StringArray{"CENG"}}},
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepositoryReplaceTermRequiresTerm(t *testing.T) {
	db, _, cleanup := newCatalogRepoMock(t)
	defer cleanup()
	assert.Error(t, NewCatalogRepository(db).ReplaceTerm(context.Background(), nil, models.CatalogSnapshot{}))
}

func TestCatalogRepositoryListTerms(t *testing.T) {
	db, mock, cleanup := newCatalogRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT term, COUNT(*) AS course_count, MAX(updated_at) AS imported_at FROM catalog_courses GROUP BY term")).
		WillReturnRows(sqlmock.NewRows([]string{"term", "course_count", "imported_at"}).
			AddRow("2025-fall", 120, time.Now()))

	terms, err := repo.ListTerms(context.Background())
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Equal(t, 120, terms[0].CourseCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
