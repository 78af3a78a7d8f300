package dto

import "time"

// SavePlanRequest stores the schedule a session currently displays.
type SavePlanRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
	Name      string `json:"name" validate:"omitempty,max=120"`
}

// PlanQuery filters saved plans.
type PlanQuery struct {
	Term     string `form:"term" json:"term"`
	Page     int    `form:"page" json:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" json:"pageSize" validate:"omitempty,min=1,max=100"`
}

// PlanResponse describes a saved plan.
type PlanResponse struct {
	ID          string       `json:"id"`
	Term        string       `json:"term"`
	Name        string       `json:"name"`
	Version     int          `json:"version"`
	CRNs        []string     `json:"crns"`
	CourseCodes []string     `json:"courseCodes"`
	Lessons     []LessonView `json:"lessons,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// ShareLinkResponse carries a signed, expiring link to a plan.
type ShareLinkResponse struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}
