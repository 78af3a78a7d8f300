package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

// SavedPlan is a versioned snapshot of a displayed schedule.
type SavedPlan struct {
	ID          string         `db:"id" json:"id"`
	OwnerID     string         `db:"owner_id" json:"owner_id"`
	Term        string         `db:"term" json:"term"`
	Name        string         `db:"name" json:"name"`
	Version     int            `db:"version" json:"version"`
	CRNs        pq.StringArray `db:"crns" json:"crns"`
	CourseCodes pq.StringArray `db:"course_codes" json:"course_codes"`
	Meta        types.JSONText `db:"meta" json:"meta"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// SavedPlanFilter narrows plan listings.
type SavedPlanFilter struct {
	OwnerID  string
	Term     string
	Page     int
	PageSize int
}
