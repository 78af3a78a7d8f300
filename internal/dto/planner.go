package dto

import (
	"time"

	"github.com/noah-isme/course-planner-api/internal/planner"
)

// Navigation actions accepted by the planner.
const (
	NavigateNext     = "next"
	NavigatePrevious = "previous"
	NavigateRandom   = "random"
	NavigateIndex    = "index"
)

// CreateSessionRequest opens a planner session for a term.
type CreateSessionRequest struct {
	Term string `json:"term" validate:"required,max=32"`
}

// SelectionInput picks a course and optionally one instructor.
type SelectionInput struct {
	CourseCode string `json:"courseCode" validate:"required,max=32"`
	Instructor string `json:"instructor" validate:"omitempty,max=128"`
}

// SlotInput is a weekly time range the student cannot attend.
type SlotInput struct {
	Day   string `json:"day" validate:"required"`
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
}

// UpdateInputsRequest replaces the generation inputs of a session.
type UpdateInputsRequest struct {
	Selections  []SelectionInput `json:"selections" validate:"omitempty,dive"`
	Unavailable []SlotInput      `json:"unavailable" validate:"omitempty,dive"`
	Programmes  []string         `json:"programmes" validate:"omitempty,dive,max=16"`
}

// NavigateRequest moves through the generated schedules.
type NavigateRequest struct {
	Action string `json:"action" validate:"required,oneof=next previous random index"`
	Index  *int   `json:"index" validate:"required_if=Action index,omitempty,min=0"`
}

// TakenRequest marks a course as completed in a semester.
type TakenRequest struct {
	Semester int `json:"semester" validate:"omitempty,min=0,max=16"`
}

// SessionResponse is the externally visible state of a planner session.
type SessionResponse struct {
	ID          string           `json:"id"`
	Term        string           `json:"term"`
	Selections  []SelectionInput `json:"selections"`
	Unavailable []SlotInput      `json:"unavailable"`
	Programmes  []string         `json:"programmes"`
	Pins        []string         `json:"pins"`
	ExpiresAt   time.Time        `json:"expiresAt"`
	Run         *RunStatus       `json:"run,omitempty"`
	Schedule    *ScheduleView    `json:"schedule,omitempty"`
}

// RunStatus reports a generation run.
type RunStatus struct {
	RunID      string    `json:"runId"`
	State      string    `json:"state"`
	Considered int64     `json:"considered"`
	Valid      int64     `json:"valid"`
	Matching   int64     `json:"matching"`
	Total      int64     `json:"total"`
	Percent    float64   `json:"percent"`
	Candidates int       `json:"candidates"`
	Truncated  bool      `json:"truncated"`
	Cached     bool      `json:"cached"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMs int64     `json:"durationMs"`
	Error      string    `json:"error,omitempty"`
}

// LessonView is a lesson of the displayed schedule.
type LessonView struct {
	CRN         string            `json:"crn"`
	CourseCode  string            `json:"courseCode"`
	CourseTitle string            `json:"courseTitle"`
	Instructor  string            `json:"instructor,omitempty"`
	Pinned      bool              `json:"pinned"`
	Meetings    []planner.Meeting `json:"meetings"`
}

// ScheduleView is the schedule currently displayed by a session.
type ScheduleView struct {
	Index   int          `json:"index"`
	Count   int          `json:"count"`
	CRNs    []string     `json:"crns"`
	Lessons []LessonView `json:"lessons"`
}

// PinResponse reports the state of a pin after a toggle.
type PinResponse struct {
	CRN      string        `json:"crn"`
	Pinned   bool          `json:"pinned"`
	Schedule *ScheduleView `json:"schedule,omitempty"`
}

// PrerequisiteResponse lists the prerequisite tracker state.
type PrerequisiteResponse struct {
	Taken    []string `json:"taken"`
	Takeable []string `json:"takeable"`
	Future   []string `json:"future"`
	Changed  []string `json:"changed,omitempty"`
}
