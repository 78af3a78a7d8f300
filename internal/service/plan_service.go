package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/course-planner-api/internal/dto"
	"github.com/noah-isme/course-planner-api/internal/models"
	"github.com/noah-isme/course-planner-api/internal/planner"
	appErrors "github.com/noah-isme/course-planner-api/pkg/errors"
	"github.com/noah-isme/course-planner-api/pkg/logger"
	"github.com/noah-isme/course-planner-api/pkg/storage"
)

const defaultPlanName = "Untitled plan"

type planStore interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, plan *models.SavedPlan) error
	List(ctx context.Context, filter models.SavedPlanFilter) ([]models.SavedPlan, int, error)
	FindByID(ctx context.Context, id string) (*models.SavedPlan, error)
	Delete(ctx context.Context, id, ownerID string) error
}

type displayedSchedules interface {
	Displayed(ctx context.Context, ownerID, sessionID string) (*DisplayedSchedule, error)
}

type shareSigner interface {
	Generate(subject, ref string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (storage.SignedRef, error)
}

type planMeta struct {
	SessionID string `json:"sessionId"`
	Index     int    `json:"index"`
}

// PlanService saves displayed schedules and hands out share links to them.
type PlanService struct {
	repo      planStore
	sessions  displayedSchedules
	catalogs  catalogProvider
	signer    shareSigner
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// NewPlanService constructs the service.
func NewPlanService(
	repo planStore,
	sessions displayedSchedules,
	catalogs catalogProvider,
	signer shareSigner,
	cache *CacheService,
	validate *validator.Validate,
	logger *zap.Logger,
) *PlanService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlanService{
		repo:      repo,
		sessions:  sessions,
		catalogs:  catalogs,
		signer:    signer,
		cache:     cache,
		validator: validate,
		logger:    logger,
		cacheTTL:  10 * time.Minute,
	}
}

func planCacheKey(id string) string {
	return "plan:" + id
}

// Save stores the schedule a session displays as a new version of the named plan.
func (s *PlanService) Save(ctx context.Context, claims *models.JWTClaims, req dto.SavePlanRequest) (*dto.PlanResponse, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid plan payload")
	}
	shown, err := s.sessions.Displayed(ctx, claims.UserID, req.SessionID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = defaultPlanName
	}
	meta, err := json.Marshal(planMeta{SessionID: req.SessionID, Index: shown.Index})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode plan metadata")
	}
	courseCodes := lo.Map(shown.Candidate.Lessons, func(l *planner.Lesson, _ int) string { return l.CourseCode })
	plan := &models.SavedPlan{
		OwnerID:     claims.UserID,
		Term:        shown.Term,
		Name:        name,
		CRNs:        shown.Candidate.CRNs(),
		CourseCodes: courseCodes,
		Meta:        types.JSONText(meta),
	}
	if err := s.repo.CreateVersioned(ctx, nil, plan); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save plan")
	}
	logger.For(ctx, s.logger).Sugar().Infow("plan saved", "plan_id", plan.ID, "owner_id", plan.OwnerID, "term", plan.Term, "version", plan.Version)
	return s.toResponse(ctx, plan), nil
}

// List returns the caller's plans, newest first.
func (s *PlanService) List(ctx context.Context, claims *models.JWTClaims, query dto.PlanQuery) ([]dto.PlanResponse, *models.Pagination, error) {
	if claims == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Invalid(err, "invalid plan query")
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	size := query.PageSize
	if size < 1 {
		size = 20
	}
	plans, total, err := s.repo.List(ctx, models.SavedPlanFilter{
		OwnerID:  claims.UserID,
		Term:     strings.TrimSpace(query.Term),
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list plans")
	}
	items := lo.Map(plans, func(p models.SavedPlan, _ int) dto.PlanResponse { return summarisePlan(&p) })
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a plan with its lessons. Advisors and admins may read any plan.
func (s *PlanService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*dto.PlanResponse, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	plan, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan.OwnerID != claims.UserID && claims.Role != models.RoleAdvisor && claims.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "plan not found")
	}
	resp, _, err := Remember(ctx, s.cache, planCacheKey(id), s.cacheTTL, func(ctx context.Context) (*dto.PlanResponse, error) {
		return s.toResponse(ctx, plan), nil
	})
	return resp, err
}

// Delete removes one of the caller's plans.
func (s *PlanService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.repo.Delete(ctx, id, claims.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "plan not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete plan")
	}
	if err := s.cache.Invalidate(ctx, planCacheKey(id)); err != nil {
		s.logger.Warn("failed to invalidate plan cache", zap.String("plan_id", id), zap.Error(err))
	}
	return nil
}

// Share issues a signed, expiring link to one of the caller's plans.
func (s *PlanService) Share(ctx context.Context, claims *models.JWTClaims, id, baseURL string) (*dto.ShareLinkResponse, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "plan sharing is not configured")
	}
	plan, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan.OwnerID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "plan not found")
	}
	token, expiresAt, err := s.signer.Generate(plan.ID, plan.OwnerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign share link")
	}
	return &dto.ShareLinkResponse{
		Token:     token,
		URL:       strings.TrimRight(baseURL, "/") + "/shared/plans/" + token,
		ExpiresAt: expiresAt,
	}, nil
}

// ResolveShared returns the plan behind a share token. A link stops resolving
// once its plan is deleted.
func (s *PlanService) ResolveShared(ctx context.Context, token string) (*dto.PlanResponse, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "plan sharing is not configured")
	}
	ref, err := s.signer.Parse(token, false)
	switch {
	case errors.Is(err, storage.ErrTokenExpired):
		return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "share link expired")
	case err != nil:
		return nil, appErrors.Clone(appErrors.ErrNotFound, "plan not found")
	}
	plan, err := s.load(ctx, ref.Subject)
	if err != nil {
		return nil, err
	}
	if plan.OwnerID != ref.Ref {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "plan not found")
	}
	return s.toResponse(ctx, plan), nil
}

func (s *PlanService) load(ctx context.Context, id string) (*models.SavedPlan, error) {
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to load plan %s", id))
	}
	return plan, nil
}

func summarisePlan(plan *models.SavedPlan) dto.PlanResponse {
	return dto.PlanResponse{
		ID:          plan.ID,
		Term:        plan.Term,
		Name:        plan.Name,
		Version:     plan.Version,
		CRNs:        append([]string{}, plan.CRNs...),
		CourseCodes: append([]string{}, plan.CourseCodes...),
		CreatedAt:   plan.CreatedAt,
	}
}

// toResponse resolves the plan's lessons against the current catalogue.
// Sections dropped from the catalogue since saving are left out.
func (s *PlanService) toResponse(ctx context.Context, plan *models.SavedPlan) *dto.PlanResponse {
	resp := summarisePlan(plan)
	if s.catalogs == nil {
		return &resp
	}
	cat, err := s.catalogs.Catalog(ctx, plan.Term)
	if err != nil {
		s.logger.Warn("catalogue unavailable for plan", zap.String("plan_id", plan.ID), zap.String("term", plan.Term), zap.Error(err))
		return &resp
	}
	lessons := lo.FilterMap(plan.CRNs, func(crn string, _ int) (*planner.Lesson, bool) {
		return cat.Lesson(crn)
	})
	resp.Lessons = lessonViews(cat, lessons, nil)
	return &resp
}
