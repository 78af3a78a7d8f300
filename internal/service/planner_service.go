package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/course-planner-api/internal/dto"
	"github.com/noah-isme/course-planner-api/internal/planner"
	appErrors "github.com/noah-isme/course-planner-api/pkg/errors"
	"github.com/noah-isme/course-planner-api/pkg/jobs"
	"github.com/noah-isme/course-planner-api/pkg/logger"
)

// GenerationJobType tags planner runs on the shared job queue.
const GenerationJobType = "planner.generate"

type catalogProvider interface {
	Catalog(ctx context.Context, term string) (*planner.Catalog, error)
}

type runQueue interface {
	TryEnqueue(job jobs.Job) error
}

type generationMetrics interface {
	GenerationStarted()
	GenerationFinished(state string, candidates int, duration time.Duration)
	TrackSessions(count func() int)
}

// PlannerServiceConfig bounds sessions and generation runs.
type PlannerServiceConfig struct {
	SessionTTL    time.Duration
	MaxSelections int
	MaxCandidates int
	BatchSize     int
	ProgressEvery int
	MemoTTL       time.Duration
	SweepInterval time.Duration
	// RandSeed makes random navigation reproducible when non-zero.
	RandSeed int64
}

// runRecord is the latest generation of a session. Memoised replays have no
// live run and carry a frozen status instead.
type runRecord struct {
	run     *planner.Run
	replay  *dto.RunStatus
	// settled closes once the run's outcome has been committed or discarded.
	settled chan struct{}
}

// plannerSession is the state one student builds while planning a term.
type plannerSession struct {
	id      string
	ownerID string
	term    string
	catalog *planner.Catalog

	mu          sync.Mutex
	selections  []dto.SelectionInput
	unavailable []dto.SlotInput
	intervals   []planner.Interval
	programmes  []string
	pins        *planner.PinSet
	results     *planner.ResultSet
	raw         []planner.Candidate
	tracker     *planner.Tracker
	generator   *planner.Generator
	seq         uint64
	last        *runRecord
}

// RunGenerationJob executes a generation run handed to the job queue.
func RunGenerationJob(ctx context.Context, job jobs.Job) error {
	task, ok := job.Payload.(func(context.Context))
	if !ok {
		return fmt.Errorf("job %s: unexpected payload %T", job.ID, job.Payload)
	}
	task(ctx)
	return nil
}

// PlannerService owns planner sessions and runs schedule generation off the
// request path.
type PlannerService struct {
	catalogs  catalogProvider
	queue     runQueue
	cache     *CacheService
	metrics   generationMetrics
	validator *validator.Validate
	logger    *zap.Logger
	cfg       PlannerServiceConfig
	store     *sessionStore
	seeds     atomic.Int64

	baseCtx context.Context
	stop    context.CancelFunc
}

// NewPlannerService wires the planner. A nil queue runs generations on plain goroutines.
func NewPlannerService(
	catalogs catalogProvider,
	queue runQueue,
	cache *CacheService,
	metrics generationMetrics,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg PlannerServiceConfig,
) *PlannerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 2 * time.Hour
	}
	if cfg.MaxSelections <= 0 {
		cfg.MaxSelections = 12
	}
	if cfg.MemoTTL <= 0 {
		cfg.MemoTTL = 15 * time.Minute
	}
	baseCtx, stop := context.WithCancel(context.Background())
	s := &PlannerService{
		catalogs:  catalogs,
		queue:     queue,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		baseCtx:   baseCtx,
		stop:      stop,
	}
	s.seeds.Store(cfg.RandSeed)
	s.store = newSessionStore(cfg.SessionTTL, func(session *plannerSession) {
		session.generator.Cancel()
	})
	if metrics != nil {
		metrics.TrackSessions(s.store.Len)
	}
	return s
}

// Close cancels every in-flight run.
func (s *PlannerService) Close() {
	s.stop()
}

// StartSweeper periodically drops expired sessions.
func (s *PlannerService) StartSweeper(ctx context.Context) {
	if s.cfg.SweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.SweepInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.store.Sweep(); n > 0 {
					s.logger.Sugar().Infow("expired planner sessions", "count", n)
				}
			}
		}
	}()
}

func (s *PlannerService) newRand() *rand.Rand {
	if s.cfg.RandSeed != 0 {
		return rand.New(rand.NewSource(s.seeds.Add(1)))
	}
	return nil
}

func (s *PlannerService) dispatcher() planner.Dispatcher {
	if s.queue == nil {
		return planner.GoDispatcher
	}
	return func(ctx context.Context, task func(context.Context)) error {
		err := s.queue.TryEnqueue(jobs.Job{
			ID:      uuid.NewString(),
			Type:    GenerationJobType,
			Payload: task,
			Context: ctx,
		})
		if errors.Is(err, jobs.ErrQueueFull) {
			return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "generation queue is full, retry shortly")
		}
		return err
	}
}

func (s *PlannerService) newEnumerator() *planner.Enumerator {
	e := planner.NewEnumerator()
	if s.cfg.BatchSize > 0 {
		e.BatchSize = s.cfg.BatchSize
	}
	if s.cfg.ProgressEvery > 0 {
		e.ProgressEvery = s.cfg.ProgressEvery
	}
	e.MaxCandidates = s.cfg.MaxCandidates
	return e
}

// CreateSession opens a session on the catalogue of req.Term.
func (s *PlannerService) CreateSession(ctx context.Context, ownerID string, req dto.CreateSessionRequest) (*dto.SessionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid session payload")
	}
	cat, err := s.catalogs.Catalog(ctx, req.Term)
	if err != nil {
		return nil, err
	}
	session := &plannerSession{
		id:        uuid.NewString(),
		ownerID:   ownerID,
		term:      cat.Term,
		catalog:   cat,
		pins:      planner.NewPinSet(),
		results:   planner.NewResultSet(s.newRand()),
		tracker:   cat.Tracker(),
		generator: planner.NewGenerator(s.newEnumerator(), s.dispatcher()),
	}
	s.store.Save(session)
	s.logger.Sugar().Infow("planner session created", "session_id", session.id, "owner_id", ownerID, "term", session.term)

	session.mu.Lock()
	defer session.mu.Unlock()
	return s.sessionResponse(session), nil
}

// lookup returns the caller's session. Sessions of other users are reported
// as missing.
func (s *PlannerService) lookup(ownerID, sessionID string) (*plannerSession, error) {
	session, ok := s.store.Get(sessionID)
	if !ok || session.ownerID != ownerID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "planner session not found")
	}
	return session, nil
}

// GetSession returns the session state.
func (s *PlannerService) GetSession(_ context.Context, ownerID, sessionID string) (*dto.SessionResponse, error) {
	session, err := s.lookup(ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	return s.sessionResponse(session), nil
}

// DeleteSession drops the session and stops its run.
func (s *PlannerService) DeleteSession(_ context.Context, ownerID, sessionID string) error {
	if _, err := s.lookup(ownerID, sessionID); err != nil {
		return err
	}
	s.store.Delete(sessionID)
	return nil
}

// UpdateInputs replaces selections, unavailable slots and programmes. Pins on
// courses that left the selection are dropped. Results stay until the next run.
func (s *PlannerService) UpdateInputs(_ context.Context, ownerID, sessionID string, req dto.UpdateInputsRequest) (*dto.SessionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid planner inputs")
	}
	if len(req.Selections) > s.cfg.MaxSelections {
		return nil, appErrors.Clone(appErrors.ErrTooManySelections, fmt.Sprintf("at most %d courses can be selected", s.cfg.MaxSelections))
	}
	session, err := s.lookup(ownerID, sessionID)
	if err != nil {
		return nil, err
	}

	selections := make([]dto.SelectionInput, 0, len(req.Selections))
	seen := make(map[string]struct{}, len(req.Selections))
	for _, sel := range req.Selections {
		code := strings.TrimSpace(sel.CourseCode)
		if _, ok := session.catalog.Course(code); !ok {
			return nil, appErrors.Clone(appErrors.ErrUnknownCourse, fmt.Sprintf("course %s is not offered in %s", code, session.term))
		}
		if _, dup := seen[code]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("course %s selected twice", code))
		}
		seen[code] = struct{}{}
		selections = append(selections, dto.SelectionInput{CourseCode: code, Instructor: strings.TrimSpace(sel.Instructor)})
	}

	intervals := make([]planner.Interval, 0, len(req.Unavailable))
	for _, slot := range req.Unavailable {
		iv, ok := planner.NewInterval(slot.Day, slot.Start, slot.End)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid unavailable slot %s %s-%s", slot.Day, slot.Start, slot.End))
		}
		intervals = append(intervals, iv)
	}

	programmes := lo.Uniq(lo.FilterMap(req.Programmes, func(p string, _ int) (string, bool) {
		p = strings.ToUpper(strings.TrimSpace(p))
		return p, p != ""
	}))
	sort.Strings(programmes)

	session.mu.Lock()
	defer session.mu.Unlock()
	session.selections = selections
	session.unavailable = append([]dto.SlotInput(nil), req.Unavailable...)
	session.intervals = intervals
	session.programmes = programmes
	session.pins.Retain(func(crn string) bool {
		lesson, ok := session.catalog.Lesson(crn)
		if !ok {
			return false
		}
		_, selected := seen[lesson.CourseCode]
		return selected
	})
	return s.sessionResponse(session), nil
}

func (s *PlannerService) buildRequest(session *plannerSession) planner.Request {
	selections := make([]planner.Selection, 0, len(session.selections))
	for _, sel := range session.selections {
		course, ok := session.catalog.Course(sel.CourseCode)
		if !ok {
			continue
		}
		selections = append(selections, planner.Selection{Course: course, Instructor: sel.Instructor})
	}
	return planner.Request{
		Selections:  selections,
		Unavailable: append([]planner.Interval(nil), session.intervals...),
		Programmes:  planner.NewProgrammeSet(session.programmes...),
		Pinned:      planner.NewPinSet(session.pins.Slice()...),
	}
}

type memoEntry struct {
	CRNs      [][]string       `json:"crns"`
	Progress  planner.Progress `json:"progress"`
	Truncated bool             `json:"truncated"`
}

func memoCacheKey(term, digest string) string {
	return "memo:" + term + ":" + digest
}

// memoDigest fingerprints everything that shapes an enumeration. Selection
// order matters because it fixes the order of the candidates.
func (s *PlannerService) memoDigest(session *plannerSession) string {
	intervals := lo.Map(session.intervals, func(iv planner.Interval, _ int) string { return iv.String() })
	sort.Strings(intervals)
	payload, _ := json.Marshal(struct {
		Selections []dto.SelectionInput `json:"s"`
		Intervals  []string             `json:"u"`
		Programmes []string             `json:"p"`
		Limit      int                  `json:"l"`
	}{session.selections, intervals, session.programmes, s.cfg.MaxCandidates})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func (s *PlannerService) replay(session *plannerSession, entry memoEntry, pins *planner.PinSet) ([]planner.Candidate, planner.Progress, bool) {
	candidates := make([]planner.Candidate, 0, len(entry.CRNs))
	for _, crns := range entry.CRNs {
		lessons := make([]*planner.Lesson, 0, len(crns))
		for _, crn := range crns {
			lesson, ok := session.catalog.Lesson(crn)
			if !ok {
				return nil, planner.Progress{}, false
			}
			lessons = append(lessons, lesson)
		}
		candidates = append(candidates, planner.Candidate{Lessons: lessons})
	}
	progress := entry.Progress
	progress.Matching = int64(lo.CountBy(candidates, func(c planner.Candidate) bool { return c.HasAll(pins) }))
	return candidates, progress, true
}

// commit installs a finished outcome as the session's result set, with the
// pin filter applied on top.
func (s *PlannerService) commit(session *plannerSession, candidates []planner.Candidate) {
	session.raw = candidates
	session.results.Regenerate(planner.FilterCandidates(candidates, session.pins))
}

// Generate starts a new run for the session, superseding any run in flight.
// Identical inputs seen recently are answered from the memo without a run.
func (s *PlannerService) Generate(ctx context.Context, ownerID, sessionID string) (*dto.RunStatus, error) {
	session, err := s.lookup(ownerID, sessionID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	session.seq++
	seq := session.seq
	req := s.buildRequest(session)
	digest := s.memoDigest(session)

	var entry memoEntry
	if s.cache.Get(ctx, memoCacheKey(session.term, digest), &entry) {
		if candidates, progress, ok := s.replay(session, entry, req.Pinned); ok {
			session.generator.Cancel()
			s.commit(session, candidates)
			status := &dto.RunStatus{
				RunID:      uuid.NewString(),
				State:      planner.RunCompleted.String(),
				Considered: progress.Considered,
				Valid:      progress.Valid,
				Matching:   progress.Matching,
				Total:      progress.Total,
				Percent:    100,
				Candidates: len(candidates),
				Truncated:  entry.Truncated,
				Cached:     true,
				StartedAt:  time.Now().UTC(),
			}
			session.last = &runRecord{replay: status}
			return status, nil
		}
	}

	log := logger.For(ctx, s.logger)
	settled := make(chan struct{})
	run, err := session.generator.Generate(s.baseCtx, req, planner.Hooks{
		OnComplete: func(run *planner.Run, outcome planner.Outcome) {
			defer close(settled)
			s.finishRun(log, session, seq, digest, run, outcome)
		},
	})
	if err != nil {
		log.Warn("generation dispatch failed", zap.String("session_id", session.id), zap.Error(err))
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start generation")
	}
	if s.metrics != nil {
		s.metrics.GenerationStarted()
	}
	session.last = &runRecord{run: run, settled: settled}
	log.Sugar().Infow("generation started",
		"session_id", session.id,
		"run_id", run.ID(),
		"courses", len(req.Selections),
		"pins", req.Pinned.Len(),
	)
	return runStatus(run), nil
}

func (s *PlannerService) finishRun(log *zap.Logger, session *plannerSession, seq uint64, digest string, run *planner.Run, outcome planner.Outcome) {
	state := run.State()
	if s.metrics != nil {
		s.metrics.GenerationFinished(state.String(), len(outcome.Candidates), run.Duration())
	}
	log.Sugar().Infow("generation finished",
		"session_id", session.id,
		"run_id", run.ID(),
		"state", state.String(),
		"candidates", len(outcome.Candidates),
		"considered", outcome.Considered,
		"total", outcome.Total,
		"duration_ms", run.Duration().Milliseconds(),
	)

	session.mu.Lock()
	defer session.mu.Unlock()
	if session.seq != seq || !session.generator.IsCurrent(run) {
		return
	}
	s.commit(session, outcome.Candidates)

	if state != planner.RunCompleted {
		return
	}
	entry := memoEntry{
		CRNs:      lo.Map(outcome.Candidates, func(c planner.Candidate, _ int) []string { return c.CRNs() }),
		Progress:  outcome.Progress,
		Truncated: outcome.Truncated,
	}
	ctx, cancel := context.WithTimeout(s.baseCtx, 2*time.Second)
	defer cancel()
	s.cache.Set(ctx, memoCacheKey(session.term, digest), entry, s.cfg.MemoTTL)
}

// Cancel stops the session's run. Candidates found so far become the result set.
func (s *PlannerService) Cancel(_ context.Context, ownerID, sessionID string) (*dto.RunStatus, error) {
	session, err := s.lookup(ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	last := session.last
	session.mu.Unlock()
	if last == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no generation run")
	}
	if last.run == nil || !session.generator.Cancel() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "generation is not running")
	}
	return last.status(), nil
}

// Status reports the latest run of the session.
func (s *PlannerService) Status(_ context.Context, ownerID, sessionID string) (*dto.RunStatus, error) {
	session, err := s.lookup(ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	last := session.last
	session.mu.Unlock()
	if last == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no generation run")
	}
	return last.status(), nil
}

// Await blocks until the latest run finishes or ctx ends, then reports it.
func (s *PlannerService) Await(ctx context.Context, ownerID, sessionID string) (*dto.RunStatus, error) {
	session, err := s.lookup(ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	last := session.last
	session.mu.Unlock()
	if last == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no generation run")
	}
	if last.settled != nil {
		select {
		case <-last.settled:
		case <-ctx.Done():
		}
	}
	return last.status(), nil
}

func (r *runRecord) status() *dto.RunStatus {
	if r.replay != nil {
		copied := *r.replay
		return &copied
	}
	return runStatus(r.run)
}

func runStatus(run *planner.Run) *dto.RunStatus {
	progress := run.Progress()
	status := &dto.RunStatus{
		RunID:      run.ID(),
		State:      run.State().String(),
		Considered: progress.Considered,
		Valid:      progress.Valid,
		Matching:   progress.Matching,
		Total:      progress.Total,
		StartedAt:  run.StartedAt(),
		DurationMs: run.Duration().Milliseconds(),
	}
	if progress.Total > 0 {
		status.Percent = float64(progress.Considered) / float64(progress.Total) * 100
	}
	if outcome, done := run.Result(); done {
		status.Candidates = len(outcome.Candidates)
		status.Truncated = outcome.Truncated
		if progress.Total == 0 {
			status.Percent = 100
		}
	}
	if err := run.Err(); err != nil {
		status.Error = err.Error()
	}
	return status
}

// Navigate moves through the result set and returns the displayed schedule.
func (s *PlannerService) Navigate(_ context.Context, ownerID, sessionID string, req dto.NavigateRequest) (*dto.ScheduleView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid navigation")
	}
	session, err := s.lookup(ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.results.Len() == 0 {
		return nil, appErrors.ErrNoSchedule
	}
	switch req.Action {
	case dto.NavigateNext:
		session.results.Next()
	case dto.NavigatePrevious:
		session.results.Previous()
	case dto.NavigateRandom:
		session.results.Random()
	case dto.NavigateIndex:
		if !session.results.ToIndex(*req.Index) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("index %d out of range", *req.Index))
		}
	}
	return scheduleView(session), nil
}

// Current returns the displayed schedule.
func (s *PlannerService) Current(_ context.Context, ownerID, sessionID string) (*dto.ScheduleView, error) {
	session, err := s.lookup(ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.results.Len() == 0 {
		return nil, appErrors.ErrNoSchedule
	}
	return scheduleView(session), nil
}

// TogglePin flips the pin on crn. Pinning narrows the current results in
// place; unpinning restores candidates from the last unfiltered outcome.
func (s *PlannerService) TogglePin(_ context.Context, ownerID, sessionID, crn string) (*dto.PinResponse, error) {
	session, err := s.lookup(ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	lesson, ok := session.catalog.Lesson(crn)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("lesson %s not found", crn))
	}
	if !lo.ContainsBy(session.selections, func(sel dto.SelectionInput) bool { return sel.CourseCode == lesson.CourseCode }) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("course %s of lesson %s is not selected", lesson.CourseCode, crn))
	}

	pinned := session.pins.Toggle(crn)
	if pinned {
		session.results.FilterByPinned(session.pins)
	} else {
		session.results.Regenerate(planner.FilterCandidates(session.raw, session.pins))
	}

	resp := &dto.PinResponse{CRN: crn, Pinned: pinned}
	if session.results.Len() > 0 {
		resp.Schedule = scheduleView(session)
	}
	return resp, nil
}

// Prerequisites reports the taken, takeable and future course sets.
func (s *PlannerService) Prerequisites(_ context.Context, ownerID, sessionID string) (*dto.PrerequisiteResponse, error) {
	session, err := s.lookup(ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	return prerequisiteResponse(session.tracker, nil), nil
}

// AddTaken marks code as completed. A zero semester falls back to the
// curriculum semester of the course.
func (s *PlannerService) AddTaken(_ context.Context, ownerID, sessionID, code string, req dto.TakenRequest) (*dto.PrerequisiteResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid taken payload")
	}
	return s.trackerOp(ownerID, sessionID, code, func(t *planner.Tracker) []string {
		semester := req.Semester
		if semester == 0 {
			semester = t.Semester(code)
		}
		return t.AddToTaken(code, semester)
	})
}

// RemoveTaken unmarks code and every course that depended on it.
func (s *PlannerService) RemoveTaken(_ context.Context, ownerID, sessionID, code string) (*dto.PrerequisiteResponse, error) {
	return s.trackerOp(ownerID, sessionID, code, func(t *planner.Tracker) []string {
		return t.RemoveFromTaken(code)
	})
}

// AddFuture marks every course transitively unlocked by code.
func (s *PlannerService) AddFuture(_ context.Context, ownerID, sessionID, code string) (*dto.PrerequisiteResponse, error) {
	return s.trackerOp(ownerID, sessionID, code, func(t *planner.Tracker) []string {
		return t.AddToFuture(code)
	})
}

// ClearFuture drops every future mark.
func (s *PlannerService) ClearFuture(_ context.Context, ownerID, sessionID string) (*dto.PrerequisiteResponse, error) {
	session, err := s.lookup(ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	session.tracker.ClearFuture()
	return prerequisiteResponse(session.tracker, nil), nil
}

func (s *PlannerService) trackerOp(ownerID, sessionID, code string, op func(*planner.Tracker) []string) (*dto.PrerequisiteResponse, error) {
	session, err := s.lookup(ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if _, ok := session.catalog.Course(code); !ok {
		return nil, appErrors.Clone(appErrors.ErrUnknownCourse, fmt.Sprintf("course %s is not in the catalogue", code))
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	changed := op(session.tracker)
	return prerequisiteResponse(session.tracker, changed), nil
}

func prerequisiteResponse(t *planner.Tracker, changed []string) *dto.PrerequisiteResponse {
	return &dto.PrerequisiteResponse{
		Taken:    nonNil(t.Taken()),
		Takeable: nonNil(t.ComputeTakeable()),
		Future:   nonNil(t.Future()),
		Changed:  changed,
	}
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

// DisplayedSchedule is the candidate a session currently shows.
type DisplayedSchedule struct {
	Term      string
	Index     int
	Candidate planner.Candidate
}

// Displayed returns the session's current candidate for saving.
func (s *PlannerService) Displayed(_ context.Context, ownerID, sessionID string) (*DisplayedSchedule, error) {
	session, err := s.lookup(ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	current, ok := session.results.Current()
	if !ok {
		return nil, appErrors.ErrNoSchedule
	}
	return &DisplayedSchedule{Term: session.term, Index: session.results.Index(), Candidate: current}, nil
}

func (s *PlannerService) sessionResponse(session *plannerSession) *dto.SessionResponse {
	resp := &dto.SessionResponse{
		ID:          session.id,
		Term:        session.term,
		Selections:  append([]dto.SelectionInput{}, session.selections...),
		Unavailable: append([]dto.SlotInput{}, session.unavailable...),
		Programmes:  append([]string{}, session.programmes...),
		Pins:        nonNil(session.pins.Slice()),
		ExpiresAt:   s.store.ExpiresAt(session.id),
	}
	if session.last != nil {
		resp.Run = session.last.status()
	}
	if session.results.Len() > 0 {
		resp.Schedule = scheduleView(session)
	}
	return resp
}

func scheduleView(session *plannerSession) *dto.ScheduleView {
	current, ok := session.results.Current()
	if !ok {
		return nil
	}
	return &dto.ScheduleView{
		Index:   session.results.Index(),
		Count:   session.results.Len(),
		CRNs:    current.CRNs(),
		Lessons: lessonViews(session.catalog, current.Lessons, session.pins),
	}
}

func lessonViews(cat *planner.Catalog, lessons []*planner.Lesson, pins *planner.PinSet) []dto.LessonView {
	views := make([]dto.LessonView, 0, len(lessons))
	for _, lesson := range lessons {
		view := dto.LessonView{
			CRN:        lesson.CRN,
			CourseCode: lesson.CourseCode,
			Instructor: lesson.Instructor,
			Pinned:     pins.Has(lesson.CRN),
			Meetings:   lesson.Meetings,
		}
		if course, ok := cat.Course(lesson.CourseCode); ok {
			view.CourseTitle = course.Title
		}
		views = append(views, view)
	}
	return views
}
