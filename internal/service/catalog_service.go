package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/course-planner-api/internal/catalog"
	"github.com/noah-isme/course-planner-api/internal/dto"
	"github.com/noah-isme/course-planner-api/internal/models"
	"github.com/noah-isme/course-planner-api/internal/planner"
	appErrors "github.com/noah-isme/course-planner-api/pkg/errors"
	"github.com/noah-isme/course-planner-api/pkg/jobs"
)

// CatalogWarmJobType tags catalogue preloads on the shared job queue.
const CatalogWarmJobType = "catalog.warm"

type catalogStore interface {
	ListTerms(ctx context.Context) ([]models.CatalogTerm, error)
	ReplaceTerm(ctx context.Context, exec sqlx.ExtContext, snap models.CatalogSnapshot) error
}

type uploadArchive interface {
	Store(term string, at time.Time, files map[string][]byte) (string, error)
	Prune(ttl time.Duration, now time.Time) ([]string, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type dbMetrics interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// CatalogServiceConfig governs catalogue caching and upload retention.
type CatalogServiceConfig struct {
	CacheTTL        time.Duration
	UploadTTL       time.Duration
	CleanupInterval time.Duration
}

type loadedCatalog struct {
	catalog  *planner.Catalog
	loadedAt time.Time
}

// CatalogService serves term catalogues to the planner and imports new ones.
type CatalogService struct {
	source  catalog.Source
	store   catalogStore
	tx      txProvider
	cache   *CacheService
	archive uploadArchive
	metrics dbMetrics
	logger  *zap.Logger
	cfg     CatalogServiceConfig
	now     func() time.Time

	loads  singleflight.Group
	mu     sync.RWMutex
	loaded map[string]loadedCatalog
}

// NewCatalogService wires catalogue dependencies. store, tx and archive may be
// nil when catalogues come from files; imports are then refused.
func NewCatalogService(
	source catalog.Source,
	store catalogStore,
	tx txProvider,
	cache *CacheService,
	archive uploadArchive,
	metrics dbMetrics,
	logger *zap.Logger,
	cfg CatalogServiceConfig,
) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Minute
	}
	if cfg.UploadTTL <= 0 {
		cfg.UploadTTL = 30 * 24 * time.Hour
	}
	return &CatalogService{
		source:  source,
		store:   store,
		tx:      tx,
		cache:   cache,
		archive: archive,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
		loaded:  make(map[string]loadedCatalog),
	}
}

func catalogCacheKey(term string) string {
	return "catalog:" + term
}

// Catalog returns the catalogue of term from memory, Redis or the source, in that order.
func (s *CatalogService) Catalog(ctx context.Context, term string) (*planner.Catalog, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "term is required")
	}

	s.mu.RLock()
	entry, ok := s.loaded[term]
	s.mu.RUnlock()
	if ok && s.now().Sub(entry.loadedAt) < s.cfg.CacheTTL {
		return entry.catalog, nil
	}

	value, err, _ := s.loads.Do(term, func() (interface{}, error) {
		return s.load(ctx, term)
	})
	if err != nil {
		return nil, err
	}
	return value.(*planner.Catalog), nil
}

func (s *CatalogService) load(ctx context.Context, term string) (*planner.Catalog, error) {
	var courses []*planner.Course
	if s.cache.Get(ctx, catalogCacheKey(term), &courses) {
		cat := planner.NewCatalog(term, courses)
		s.remember(term, cat)
		return cat, nil
	}

	start := s.now()
	cat, err := s.source.LoadTerm(ctx, term)
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("catalog_load", time.Since(start))
	}
	if err != nil {
		if errors.Is(err, catalog.ErrTermNotFound) {
			return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, fmt.Sprintf("term %s has no catalogue", term))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load catalogue")
	}

	s.cache.Set(ctx, catalogCacheKey(term), cat.Courses(), s.cfg.CacheTTL)
	s.remember(term, cat)
	s.logger.Info("catalogue loaded", zap.String("term", term), zap.Int("courses", cat.Len()))
	return cat, nil
}

func (s *CatalogService) remember(term string, cat *planner.Catalog) {
	s.mu.Lock()
	s.loaded[term] = loadedCatalog{catalog: cat, loadedAt: s.now()}
	s.mu.Unlock()
}

// Warm loads several terms concurrently, typically at start-up.
// WarmJob loads the term named by the job payload. Boot enqueues one per
// preloaded term so the API can serve while catalogues load, with retries.
func (s *CatalogService) WarmJob(ctx context.Context, job jobs.Job) error {
	term, ok := job.Payload.(string)
	if !ok || strings.TrimSpace(term) == "" {
		return fmt.Errorf("job %s: unexpected payload %T", job.ID, job.Payload)
	}
	if _, err := s.Catalog(ctx, term); err != nil {
		return fmt.Errorf("warm %s: %w", term, err)
	}
	s.logger.Debug("catalogue warmed", zap.String("term", term), zap.Int("attempt", job.Attempt))
	return nil
}

func (s *CatalogService) Warm(ctx context.Context, terms []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, term := range lo.Uniq(terms) {
		term := term
		g.Go(func() error {
			_, err := s.Catalog(gctx, term)
			return err
		})
	}
	return g.Wait()
}

// ListCourses summarises the courses of term. Offerability honours the given programmes.
func (s *CatalogService) ListCourses(ctx context.Context, term string, query dto.CourseListQuery) ([]dto.CourseSummary, error) {
	cat, err := s.Catalog(ctx, term)
	if err != nil {
		return nil, err
	}
	programmes := planner.NewProgrammeSet(query.Programmes...)
	search := strings.ToLower(strings.TrimSpace(query.Search))

	summaries := make([]dto.CourseSummary, 0, cat.Len())
	for _, course := range cat.Courses() {
		if search != "" && !strings.Contains(strings.ToLower(course.Code), search) &&
			!strings.Contains(strings.ToLower(course.Title), search) {
			continue
		}
		offerable := planner.Offerable(course, programmes)
		if query.OnlyOpen && !offerable {
			continue
		}
		summaries = append(summaries, dto.CourseSummary{
			Code:        course.Code,
			Title:       course.Title,
			Credits:     course.Credits,
			ClassYear:   course.ClassYear,
			Semester:    course.Semester,
			Offerable:   offerable,
			LessonCount: len(course.Lessons),
			Instructors: planner.Instructors(course, programmes),
		})
	}
	return summaries, nil
}

// GetCourse returns a single course of term.
func (s *CatalogService) GetCourse(ctx context.Context, term, code string) (*planner.Course, error) {
	cat, err := s.Catalog(ctx, term)
	if err != nil {
		return nil, err
	}
	course, ok := cat.Course(code)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("course %s not found in %s", code, term))
	}
	return course, nil
}

// Terms lists known terms. File-backed deployments only know what they loaded.
func (s *CatalogService) Terms(ctx context.Context) ([]dto.CatalogTermResponse, error) {
	if s.store == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		out := make([]dto.CatalogTermResponse, 0, len(s.loaded))
		for term, entry := range s.loaded {
			out = append(out, dto.CatalogTermResponse{Term: term, CourseCount: entry.catalog.Len(), ImportedAt: entry.loadedAt})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Term < out[j].Term })
		return out, nil
	}
	terms, err := s.store.ListTerms(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list terms")
	}
	return lo.Map(terms, func(t models.CatalogTerm, _ int) dto.CatalogTermResponse {
		return dto.CatalogTermResponse{Term: t.Term, CourseCount: t.CourseCount, ImportedAt: t.ImportedAt}
	}), nil
}

// Import parses an uploaded courses document and lessons table, replaces the
// stored term and drops every cached copy of it.
func (s *CatalogService) Import(ctx context.Context, term string, coursesYAML, lessonsCSV []byte) (resp *dto.CatalogImportResponse, err error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "term is required")
	}
	if s.store == nil || s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "catalogue import requires the database source")
	}

	ds, err := catalog.Parse(bytes.NewReader(coursesYAML), bytes.NewReader(lessonsCSV))
	if err != nil {
		return nil, appErrors.Invalid(err, "invalid catalogue files")
	}
	if ds.Term != "" && ds.Term != term {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("courses document is for term %s", ds.Term))
	}
	if len(ds.Courses) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "courses document lists no courses")
	}

	snap, err := catalog.ToSnapshot(term, ds.Courses)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode catalogue")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = s.store.ReplaceTerm(ctx, tx, snap); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store catalogue")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit catalogue")
	}

	s.Invalidate(ctx, term)

	resp = &dto.CatalogImportResponse{
		Term:               term,
		Courses:            ds.Report.Courses,
		Lessons:            ds.Report.Lessons,
		Meetings:           ds.Report.Meetings,
		OrphanLessons:      ds.Report.OrphanLessons,
		ConflictingLessons: ds.Report.ConflictingLessons,
		Archive:            s.archiveUpload(term, coursesYAML, lessonsCSV),
	}
	s.logger.Info("catalogue imported",
		zap.String("term", term),
		zap.Int("courses", resp.Courses),
		zap.Int("lessons", resp.Lessons),
		zap.Int("orphans", len(resp.OrphanLessons)),
		zap.Int("conflicts", len(resp.ConflictingLessons)),
	)
	return resp, nil
}

func (s *CatalogService) archiveUpload(term string, coursesYAML, lessonsCSV []byte) string {
	if s.archive == nil {
		return ""
	}
	ref, err := s.archive.Store(term, s.now(), map[string][]byte{"courses.yaml": coursesYAML, "lessons.csv": lessonsCSV})
	if err != nil {
		s.logger.Warn("failed to archive catalogue upload", zap.String("term", term), zap.Error(err))
		return ""
	}
	return ref
}

// Invalidate forgets every cached copy of term, including memoised generation results.
func (s *CatalogService) Invalidate(ctx context.Context, term string) {
	s.mu.Lock()
	delete(s.loaded, term)
	s.mu.Unlock()
	s.loads.Forget(term)
	_ = s.cache.Invalidate(ctx, catalogCacheKey(term), memoCacheKey(term, "*"))
}

// StartCleanup boots a goroutine that purges archived uploads past their retention.
func (s *CatalogService) StartCleanup(ctx context.Context) {
	if s.archive == nil || s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.archive.Prune(s.cfg.UploadTTL, s.now())
				if err != nil {
					s.logger.Sugar().Warnw("upload cleanup failed", "error", err)
					continue
				}
				if len(removed) > 0 {
					s.logger.Sugar().Infow("upload cleanup", "removed", len(removed))
				}
			}
		}
	}()
}
