package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-planner-api/internal/models"
)

var planRowColumns = []string{"id", "owner_id", "term", "name", "version", "crns", "course_codes", "meta", "created_at", "updated_at"}

func TestPlanRepositoryCreateVersioned(t *testing.T) {
	db, mock, cleanup := newCatalogRepoMock(t)
	defer cleanup()
	repo := NewPlanRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0) + 1 FROM saved_plans WHERE owner_id = $1 AND term = $2 AND name = $3")).
		WithArgs("user-1", "2025-fall", "main").
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO saved_plans")).
		WithArgs(sqlmock.AnyArg(), "user-1", "2025-fall", "main", 3, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	plan := &models.SavedPlan{
		OwnerID: "user-1",
		Term:    "2025-fall",
		Name:    "main",
		CRNs:    pq.StringArray{"1001", "2001"},
	}
	require.NoError(t, repo.CreateVersioned(context.Background(), nil, plan))
	assert.Equal(t, 3, plan.Version)
	assert.NotEmpty(t, plan.ID)
	assert.Equal(t, types.JSONText(`{}`), plan.Meta)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepositoryCreateVersionedRequiresOwner(t *testing.T) {
	db, _, cleanup := newCatalogRepoMock(t)
	defer cleanup()
	err := NewPlanRepository(db).CreateVersioned(context.Background(), nil, &models.SavedPlan{Term: "2025-fall"})
	assert.Error(t, err)
}

func TestPlanRepositoryList(t *testing.T) {
	db, mock, cleanup := newCatalogRepoMock(t)
	defer cleanup()
	repo := NewPlanRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM saved_plans WHERE owner_id = $1 AND term = $2 ORDER BY created_at DESC LIMIT 10 OFFSET 10")).
		WithArgs("user-1", "2025-fall").
		WillReturnRows(sqlmock.NewRows(planRowColumns).
			AddRow("plan-1", "user-1", "2025-fall", "main", 1, "{1001,2001}", "{CENG111,CENG213}", []byte(`{}`), now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM saved_plans WHERE owner_id = $1 AND term = $2")).
		WithArgs("user-1", "2025-fall").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	plans, total, err := repo.List(context.Background(), models.SavedPlanFilter{OwnerID: "user-1", Term: "2025-fall", Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.Len(t, plans, 1)
	assert.Equal(t, pq.StringArray{"1001", "2001"}, plans[0].CRNs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newCatalogRepoMock(t)
	defer cleanup()
	repo := NewPlanRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM saved_plans WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestPlanRepositoryDeleteScopedToOwner(t *testing.T) {
	db, mock, cleanup := newCatalogRepoMock(t)
	defer cleanup()
	repo := NewPlanRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM saved_plans WHERE id = $1 AND owner_id = $2")).
		WithArgs("plan-1", "intruder").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "plan-1", "intruder"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
