package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/course-planner-api/internal/models"
)

const planColumns = `id, owner_id, term, name, version, crns, course_codes, meta, created_at, updated_at`

// PlanRepository persists saved schedules.
type PlanRepository struct {
	db *sqlx.DB
}

// NewPlanRepository constructs repository.
func NewPlanRepository(db *sqlx.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateVersioned inserts a plan assigning the next version for the owner, term and name.
func (r *PlanRepository) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, plan *models.SavedPlan) error {
	if plan == nil {
		return fmt.Errorf("plan payload is nil")
	}
	if plan.OwnerID == "" || plan.Term == "" {
		return fmt.Errorf("owner_id and term are required")
	}
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	if len(plan.Meta) == 0 {
		plan.Meta = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now

	target := r.exec(exec)

	const nextVersionQuery = `SELECT COALESCE(MAX(version), 0) + 1 FROM saved_plans WHERE owner_id = $1 AND term = $2 AND name = $3`
	if err := sqlx.GetContext(ctx, target, &plan.Version, nextVersionQuery, plan.OwnerID, plan.Term, plan.Name); err != nil {
		return fmt.Errorf("compute next plan version: %w", err)
	}

	const insertQuery = `
INSERT INTO saved_plans (id, owner_id, term, name, version, crns, course_codes, meta, created_at, updated_at)
VALUES (:id, :owner_id, :term, :name, :version, :crns, :course_codes, :meta, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, plan); err != nil {
		return fmt.Errorf("insert saved plan: %w", err)
	}
	return nil
}

// List returns an owner's plans, newest first, with the total count.
func (r *PlanRepository) List(ctx context.Context, filter models.SavedPlanFilter) ([]models.SavedPlan, int, error) {
	baseQuery := `FROM saved_plans WHERE owner_id = $1`
	args := []interface{}{filter.OwnerID}
	if filter.Term != "" {
		baseQuery += fmt.Sprintf(" AND term = $%d", len(args)+1)
		args = append(args, filter.Term)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", planColumns, baseQuery, pageSize, offset)
	var plans []models.SavedPlan
	if err := r.db.SelectContext(ctx, &plans, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list saved plans: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", baseQuery), args...); err != nil {
		return nil, 0, fmt.Errorf("count saved plans: %w", err)
	}
	return plans, total, nil
}

// FindByID loads a plan by its identifier.
func (r *PlanRepository) FindByID(ctx context.Context, id string) (*models.SavedPlan, error) {
	query := fmt.Sprintf("SELECT %s FROM saved_plans WHERE id = $1", planColumns)
	var plan models.SavedPlan
	if err := r.db.GetContext(ctx, &plan, query, id); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Delete removes a plan owned by ownerID.
func (r *PlanRepository) Delete(ctx context.Context, id, ownerID string) error {
	const query = `DELETE FROM saved_plans WHERE id = $1 AND owner_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete saved plan: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("saved plan rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
