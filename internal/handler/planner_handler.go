package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-planner-api/internal/dto"
	"github.com/noah-isme/course-planner-api/internal/middleware"
	"github.com/noah-isme/course-planner-api/internal/service"
	appErrors "github.com/noah-isme/course-planner-api/pkg/errors"
	"github.com/noah-isme/course-planner-api/pkg/response"
)

const maxRunWait = 30 * time.Second

type plannerSessions interface {
	CreateSession(ctx context.Context, ownerID string, req dto.CreateSessionRequest) (*dto.SessionResponse, error)
	GetSession(ctx context.Context, ownerID, sessionID string) (*dto.SessionResponse, error)
	DeleteSession(ctx context.Context, ownerID, sessionID string) error
	UpdateInputs(ctx context.Context, ownerID, sessionID string, req dto.UpdateInputsRequest) (*dto.SessionResponse, error)
	Generate(ctx context.Context, ownerID, sessionID string) (*dto.RunStatus, error)
	Status(ctx context.Context, ownerID, sessionID string) (*dto.RunStatus, error)
	Await(ctx context.Context, ownerID, sessionID string) (*dto.RunStatus, error)
	Cancel(ctx context.Context, ownerID, sessionID string) (*dto.RunStatus, error)
	Current(ctx context.Context, ownerID, sessionID string) (*dto.ScheduleView, error)
	Navigate(ctx context.Context, ownerID, sessionID string, req dto.NavigateRequest) (*dto.ScheduleView, error)
	TogglePin(ctx context.Context, ownerID, sessionID, crn string) (*dto.PinResponse, error)
	Prerequisites(ctx context.Context, ownerID, sessionID string) (*dto.PrerequisiteResponse, error)
	AddTaken(ctx context.Context, ownerID, sessionID, code string, req dto.TakenRequest) (*dto.PrerequisiteResponse, error)
	RemoveTaken(ctx context.Context, ownerID, sessionID, code string) (*dto.PrerequisiteResponse, error)
	AddFuture(ctx context.Context, ownerID, sessionID, code string) (*dto.PrerequisiteResponse, error)
	ClearFuture(ctx context.Context, ownerID, sessionID string) (*dto.PrerequisiteResponse, error)
}

// PlannerHandler exposes planner sessions: inputs, generation runs,
// navigation, pins and prerequisite tracking.
type PlannerHandler struct {
	service plannerSessions
}

// NewPlannerHandler constructs the handler.
func NewPlannerHandler(svc *service.PlannerService) *PlannerHandler {
	return &PlannerHandler{service: svc}
}

// CreateSession godoc
// @Summary Open a planner session for a term
// @Tags Planner
// @Accept json
// @Produce json
// @Param payload body dto.CreateSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Router /planner/sessions [post]
func (h *PlannerHandler) CreateSession(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Invalid(err, "invalid session payload"))
		return
	}
	session, err := h.service.CreateSession(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// GetSession godoc
// @Summary Get planner session state
// @Tags Planner
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /planner/sessions/{id} [get]
func (h *PlannerHandler) GetSession(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	session, err := h.service.GetSession(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// DeleteSession godoc
// @Summary Close a planner session
// @Tags Planner
// @Param id path string true "Session ID"
// @Success 204
// @Router /planner/sessions/{id} [delete]
func (h *PlannerHandler) DeleteSession(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	if err := h.service.DeleteSession(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UpdateInputs godoc
// @Summary Replace selections, unavailable slots and programmes
// @Tags Planner
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.UpdateInputsRequest true "Planner inputs"
// @Success 200 {object} response.Envelope
// @Router /planner/sessions/{id}/inputs [put]
func (h *PlannerHandler) UpdateInputs(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.UpdateInputsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Invalid(err, "invalid planner inputs"))
		return
	}
	session, err := h.service.UpdateInputs(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Generate godoc
// @Summary Start schedule generation
// @Description Supersedes any run in flight. Answers 202 while the run proceeds in the background, or 200 when an identical request was answered from the memo.
// @Tags Planner
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Router /planner/sessions/{id}/generate [post]
func (h *PlannerHandler) Generate(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	status, err := h.service.Generate(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, status.Cached)
	middleware.SetMeta(c, "run_id", status.RunID)
	if status.Cached {
		response.JSON(c, http.StatusOK, status, nil, middleware.ExtractMeta(c))
		return
	}
	response.Accepted(c, status, middleware.ExtractMeta(c))
}

// Run godoc
// @Summary Report the latest generation run
// @Description With wait (a duration such as 5s, capped at 30s) the call blocks until the run settles.
// @Tags Planner
// @Produce json
// @Param id path string true "Session ID"
// @Param wait query string false "Maximum time to wait for the run"
// @Success 200 {object} response.Envelope
// @Router /planner/sessions/{id}/run [get]
func (h *PlannerHandler) Run(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var (
		status *dto.RunStatus
		err    error
	)
	if raw := c.Query("wait"); raw != "" {
		wait, parseErr := time.ParseDuration(raw)
		if parseErr != nil || wait < 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "wait must be a positive duration"))
			return
		}
		if wait > maxRunWait {
			wait = maxRunWait
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
		defer cancel()
		status, err = h.service.Await(ctx, claims.UserID, c.Param("id"))
	} else {
		status, err = h.service.Status(c.Request.Context(), claims.UserID, c.Param("id"))
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// CancelRun godoc
// @Summary Stop the running generation, keeping what it found
// @Tags Planner
// @Produce json
// @Param id path string true "Session ID"
// @Success 202 {object} response.Envelope
// @Router /planner/sessions/{id}/run/cancel [post]
func (h *PlannerHandler) CancelRun(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	status, err := h.service.Cancel(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, status, nil)
}

// Schedule godoc
// @Summary Get the displayed schedule
// @Tags Planner
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /planner/sessions/{id}/schedule [get]
func (h *PlannerHandler) Schedule(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	view, err := h.service.Current(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Navigate godoc
// @Summary Move to the next, previous, a random or a given schedule
// @Tags Planner
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.NavigateRequest true "Navigation"
// @Success 200 {object} response.Envelope
// @Router /planner/sessions/{id}/schedule/navigate [post]
func (h *PlannerHandler) Navigate(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Invalid(err, "invalid navigation"))
		return
	}
	view, err := h.service.Navigate(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// TogglePin godoc
// @Summary Pin or unpin a lesson
// @Tags Planner
// @Produce json
// @Param id path string true "Session ID"
// @Param crn path string true "Lesson CRN"
// @Success 200 {object} response.Envelope
// @Router /planner/sessions/{id}/pins/{crn} [post]
func (h *PlannerHandler) TogglePin(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	result, err := h.service.TogglePin(c.Request.Context(), claims.UserID, c.Param("id"), c.Param("crn"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Prerequisites godoc
// @Summary Get taken, takeable and future courses
// @Tags Prerequisites
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /planner/sessions/{id}/prerequisites [get]
func (h *PlannerHandler) Prerequisites(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	result, err := h.service.Prerequisites(c.Request.Context(), claims.UserID, c.Param("id"))
	h.respondPrerequisites(c, result, err)
}

// AddTaken godoc
// @Summary Mark a course as taken
// @Tags Prerequisites
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param code path string true "Course code"
// @Param payload body dto.TakenRequest false "Semester the course was taken in"
// @Success 200 {object} response.Envelope
// @Router /planner/sessions/{id}/prerequisites/taken/{code} [put]
func (h *PlannerHandler) AddTaken(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.TakenRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Invalid(err, "invalid taken payload"))
			return
		}
	}
	result, err := h.service.AddTaken(c.Request.Context(), claims.UserID, c.Param("id"), c.Param("code"), req)
	h.respondPrerequisites(c, result, err)
}

// RemoveTaken godoc
// @Summary Unmark a taken course and its dependents
// @Tags Prerequisites
// @Produce json
// @Param id path string true "Session ID"
// @Param code path string true "Course code"
// @Success 200 {object} response.Envelope
// @Router /planner/sessions/{id}/prerequisites/taken/{code} [delete]
func (h *PlannerHandler) RemoveTaken(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	result, err := h.service.RemoveTaken(c.Request.Context(), claims.UserID, c.Param("id"), c.Param("code"))
	h.respondPrerequisites(c, result, err)
}

// AddFuture godoc
// @Summary Mark the courses a course unlocks
// @Tags Prerequisites
// @Produce json
// @Param id path string true "Session ID"
// @Param code path string true "Course code"
// @Success 200 {object} response.Envelope
// @Router /planner/sessions/{id}/prerequisites/future/{code} [put]
func (h *PlannerHandler) AddFuture(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	result, err := h.service.AddFuture(c.Request.Context(), claims.UserID, c.Param("id"), c.Param("code"))
	h.respondPrerequisites(c, result, err)
}

// ClearFuture godoc
// @Summary Clear future marks
// @Tags Prerequisites
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /planner/sessions/{id}/prerequisites/future [delete]
func (h *PlannerHandler) ClearFuture(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	result, err := h.service.ClearFuture(c.Request.Context(), claims.UserID, c.Param("id"))
	h.respondPrerequisites(c, result, err)
}

func (h *PlannerHandler) respondPrerequisites(c *gin.Context, result *dto.PrerequisiteResponse, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
