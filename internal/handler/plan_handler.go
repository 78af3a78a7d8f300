package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-planner-api/internal/dto"
	"github.com/noah-isme/course-planner-api/internal/models"
	"github.com/noah-isme/course-planner-api/internal/service"
	appErrors "github.com/noah-isme/course-planner-api/pkg/errors"
	"github.com/noah-isme/course-planner-api/pkg/response"
)

type planManager interface {
	Save(ctx context.Context, claims *models.JWTClaims, req dto.SavePlanRequest) (*dto.PlanResponse, error)
	List(ctx context.Context, claims *models.JWTClaims, query dto.PlanQuery) ([]dto.PlanResponse, *models.Pagination, error)
	Get(ctx context.Context, claims *models.JWTClaims, id string) (*dto.PlanResponse, error)
	Delete(ctx context.Context, claims *models.JWTClaims, id string) error
	Share(ctx context.Context, claims *models.JWTClaims, id, baseURL string) (*dto.ShareLinkResponse, error)
	ResolveShared(ctx context.Context, token string) (*dto.PlanResponse, error)
}

// PlanHandler exposes saved plans and their share links.
type PlanHandler struct {
	service   planManager
	apiPrefix string
}

// NewPlanHandler constructs the handler. apiPrefix is prepended to share links.
func NewPlanHandler(svc *service.PlanService, apiPrefix string) *PlanHandler {
	return &PlanHandler{service: svc, apiPrefix: apiPrefix}
}

// Save godoc
// @Summary Save the schedule a session displays
// @Tags Plans
// @Accept json
// @Produce json
// @Param payload body dto.SavePlanRequest true "Plan payload"
// @Success 201 {object} response.Envelope
// @Router /plans [post]
func (h *PlanHandler) Save(c *gin.Context) {
	var req dto.SavePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Invalid(err, "invalid plan payload"))
		return
	}
	plan, err := h.service.Save(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, plan)
}

// List godoc
// @Summary List saved plans
// @Tags Plans
// @Produce json
// @Param term query string false "Term"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /plans [get]
func (h *PlanHandler) List(c *gin.Context) {
	var query dto.PlanQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Invalid(err, "invalid plan query"))
		return
	}
	plans, pagination, err := h.service.List(c.Request.Context(), claimsFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plans, pagination)
}

// Get godoc
// @Summary Get a saved plan
// @Tags Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Router /plans/{id} [get]
func (h *PlanHandler) Get(c *gin.Context) {
	plan, err := h.service.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// Delete godoc
// @Summary Delete a saved plan
// @Tags Plans
// @Param id path string true "Plan ID"
// @Success 204
// @Router /plans/{id} [delete]
func (h *PlanHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Share godoc
// @Summary Create an expiring share link for a plan
// @Tags Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 201 {object} response.Envelope
// @Router /plans/{id}/share [post]
func (h *PlanHandler) Share(c *gin.Context) {
	link, err := h.service.Share(c.Request.Context(), claimsFromContext(c), c.Param("id"), h.baseURL(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, link)
}

// Shared godoc
// @Summary Open a shared plan
// @Tags Plans
// @Produce json
// @Param token path string true "Share token"
// @Success 200 {object} response.Envelope
// @Router /shared/plans/{token} [get]
func (h *PlanHandler) Shared(c *gin.Context) {
	plan, err := h.service.ResolveShared(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

func (h *PlanHandler) baseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if forwarded := c.GetHeader("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}
	return scheme + "://" + c.Request.Host + h.apiPrefix
}
