package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-planner-api/internal/dto"
	"github.com/noah-isme/course-planner-api/internal/models"
	appErrors "github.com/noah-isme/course-planner-api/pkg/errors"
)

type planMock struct {
	saved   dto.SavePlanRequest
	query   dto.PlanQuery
	baseURL string
}

func (m *planMock) Save(_ context.Context, _ *models.JWTClaims, req dto.SavePlanRequest) (*dto.PlanResponse, error) {
	m.saved = req
	return &dto.PlanResponse{ID: "plan-1", Name: req.Name, Version: 1}, nil
}

func (m *planMock) List(_ context.Context, _ *models.JWTClaims, query dto.PlanQuery) ([]dto.PlanResponse, *models.Pagination, error) {
	m.query = query
	return []dto.PlanResponse{{ID: "plan-1"}}, &models.Pagination{Page: query.Page, PageSize: query.PageSize, TotalCount: 1}, nil
}

func (m *planMock) Get(_ context.Context, claims *models.JWTClaims, id string) (*dto.PlanResponse, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	return &dto.PlanResponse{ID: id}, nil
}

func (m *planMock) Delete(context.Context, *models.JWTClaims, string) error {
	return appErrors.Clone(appErrors.ErrNotFound, "plan not found")
}

func (m *planMock) Share(_ context.Context, _ *models.JWTClaims, id, baseURL string) (*dto.ShareLinkResponse, error) {
	m.baseURL = baseURL
	return &dto.ShareLinkResponse{Token: "tok", URL: baseURL + "/shared/plans/tok", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (m *planMock) ResolveShared(_ context.Context, token string) (*dto.PlanResponse, error) {
	if token != "tok" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "share link expired")
	}
	return &dto.PlanResponse{ID: "plan-1"}, nil
}

func newPlanRouter(mock *planMock, claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &PlanHandler{service: mock, apiPrefix: "/api/v1"}
	r := gin.New()
	r.GET("/shared/plans/:token", h.Shared)
	plans := r.Group("/plans", withClaims(claims))
	plans.POST("", h.Save)
	plans.GET("", h.List)
	plans.GET("/:id", h.Get)
	plans.DELETE("/:id", h.Delete)
	plans.POST("/:id/share", h.Share)
	return r
}

func TestPlanHandlerSaveAndList(t *testing.T) {
	mock := &planMock{}
	r := newPlanRouter(mock, studentClaims)

	w := doJSON(r, http.MethodPost, "/plans", `{"sessionId":"sess-1","name":"Fall draft"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "sess-1", mock.saved.SessionID)

	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodPost, "/plans", `[]`).Code)

	w = doJSON(r, http.MethodGet, "/plans?term=2025-fall&page=2&pageSize=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.PlanQuery{Term: "2025-fall", Page: 2, PageSize: 5}, mock.query)
	pagination := decodeEnvelope(t, w.Body.Bytes())["pagination"].(map[string]interface{})
	assert.EqualValues(t, 2, pagination["page"])
}

func TestPlanHandlerGetAndDelete(t *testing.T) {
	r := newPlanRouter(&planMock{}, studentClaims)
	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodGet, "/plans/plan-1", "").Code)
	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodDelete, "/plans/plan-1", "").Code)

	anonymous := newPlanRouter(&planMock{}, nil)
	assert.Equal(t, http.StatusUnauthorized, doJSON(anonymous, http.MethodGet, "/plans/plan-1", "").Code)
}

func TestPlanHandlerShareBuildsLinkFromRequest(t *testing.T) {
	mock := &planMock{}
	r := newPlanRouter(mock, studentClaims)

	req := httptest.NewRequest(http.MethodPost, "/plans/plan-1/share", nil)
	req.Host = "planner.example.edu"
	req.Header.Set("X-Forwarded-Proto", "https")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "https://planner.example.edu/api/v1", mock.baseURL)
	data := decodeEnvelope(t, w.Body.Bytes())["data"].(map[string]interface{})
	assert.Equal(t, "https://planner.example.edu/api/v1/shared/plans/tok", data["url"])
}

func TestPlanHandlerShared(t *testing.T) {
	r := newPlanRouter(&planMock{}, nil)

	w := doJSON(r, http.MethodGet, "/shared/plans/tok", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w.Body.Bytes())["data"].(map[string]interface{})
	assert.Equal(t, "plan-1", data["id"])

	assert.Equal(t, http.StatusForbidden, doJSON(r, http.MethodGet, "/shared/plans/old", "").Code)
}
