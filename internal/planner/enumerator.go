package planner

import (
	"context"
	"math"
	"runtime"
)

const (
	defaultBatchSize     = 2048
	defaultProgressEvery = 512
)

// Progress is a snapshot of a running enumeration. Considered counts leaf
// assignments, including the leaves of pruned subtrees, so it reaches Total
// when the search completes.
type Progress struct {
	Considered int64 `json:"considered"`
	Valid      int64 `json:"valid"`
	Matching   int64 `json:"matching"`
	Total      int64 `json:"total"`
}

// ProgressFunc receives throttled progress updates.
type ProgressFunc func(Progress)

// Request describes one enumeration.
type Request struct {
	Selections  []Selection
	Unavailable []Interval
	Programmes  ProgrammeSet
	// Pinned does not prune the search. It only feeds Progress.Matching.
	Pinned *PinSet
}

// Outcome is the result of an enumeration.
type Outcome struct {
	Candidates []Candidate `json:"-"`
	Progress
	Cancelled bool `json:"cancelled"`
	Truncated bool `json:"truncated"`
}

// Enumerator walks the cartesian product of per-course lesson choices.
type Enumerator struct {
	// BatchSize is the number of leaves between cooperative yields.
	BatchSize int
	// ProgressEvery is the number of leaves between progress callbacks.
	ProgressEvery int
	// MaxCandidates stops the search once reached. Zero means unlimited.
	MaxCandidates int
	// Yield is called between batches.
	Yield func()
}

// NewEnumerator returns an enumerator with default throttling.
func NewEnumerator() *Enumerator {
	return &Enumerator{
		BatchSize:     defaultBatchSize,
		ProgressEvery: defaultProgressEvery,
		Yield:         runtime.Gosched,
	}
}

type branch struct {
	lesson  *Lesson
	slots   []Interval
	blocked bool
}

type walker struct {
	ctx         context.Context
	cfg         Enumerator
	levels      [][]branch
	leavesBelow []int64
	chosen      []*branch
	pins        *PinSet
	onProgress  ProgressFunc
	out         Outcome

	sinceYield    int64
	sinceProgress int64
	stopped       bool
}

// Enumerate produces every conflict-free candidate in depth-first order over
// the selection order and each course's lesson order. Cancelling ctx stops
// the search and returns what has been found so far.
func (e *Enumerator) Enumerate(ctx context.Context, req Request, onProgress ProgressFunc) Outcome {
	cfg := *e
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = defaultProgressEvery
	}
	if cfg.Yield == nil {
		cfg.Yield = func() {}
	}

	levels := buildLevels(req)
	if len(levels) == 0 {
		return Outcome{}
	}

	w := &walker{
		ctx:         ctx,
		cfg:         cfg,
		levels:      levels,
		leavesBelow: make([]int64, len(levels)),
		chosen:      make([]*branch, len(levels)),
		pins:        req.Pinned,
		onProgress:  onProgress,
	}
	var below int64 = 1
	for d := len(levels) - 1; d >= 0; d-- {
		w.leavesBelow[d] = below
		below = saturatingMul(below, int64(len(levels[d])))
	}
	w.out.Total = below

	w.walk(0)
	w.report()
	return w.out
}

func buildLevels(req Request) [][]branch {
	levels := make([][]branch, 0, len(req.Selections))
	for _, sel := range req.Selections {
		lessons := EligibleLessons(sel, req.Programmes)
		if len(lessons) == 0 {
			continue
		}
		level := make([]branch, 0, len(lessons))
		for _, l := range lessons {
			slots, _ := l.Intervals()
			level = append(level, branch{
				lesson:  l,
				slots:   slots,
				blocked: overlapsAny(slots, req.Unavailable),
			})
		}
		levels = append(levels, level)
	}
	return levels
}

func (w *walker) walk(depth int) {
	if w.cancelled() {
		return
	}
	last := depth == len(w.levels)-1
	for i := range w.levels[depth] {
		if w.stopped {
			return
		}
		b := &w.levels[depth][i]
		if b.blocked || w.clashes(b, depth) {
			w.advance(w.leavesBelow[depth])
			continue
		}
		w.chosen[depth] = b
		if last {
			w.emit()
			w.advance(1)
			continue
		}
		w.walk(depth + 1)
	}
}

func (w *walker) clashes(b *branch, depth int) bool {
	for d := 0; d < depth; d++ {
		if overlapsAny(b.slots, w.chosen[d].slots) {
			return true
		}
	}
	return false
}

func (w *walker) emit() {
	lessons := make([]*Lesson, len(w.chosen))
	for i, b := range w.chosen {
		lessons[i] = b.lesson
	}
	c := Candidate{Lessons: lessons}
	c.mustBeWellFormed()
	w.out.Candidates = append(w.out.Candidates, c)
	w.out.Valid++
	if c.HasAll(w.pins) {
		w.out.Matching++
	}
	if w.cfg.MaxCandidates > 0 && len(w.out.Candidates) >= w.cfg.MaxCandidates {
		w.out.Truncated = true
		w.stopped = true
	}
}

// advance accounts for n leaves and handles yielding and progress.
func (w *walker) advance(n int64) {
	w.out.Considered = saturatingAdd(w.out.Considered, n)
	w.sinceYield += n
	w.sinceProgress += n
	if w.sinceProgress >= int64(w.cfg.ProgressEvery) {
		w.sinceProgress = 0
		w.report()
	}
	if w.sinceYield >= int64(w.cfg.BatchSize) {
		w.sinceYield = 0
		w.cfg.Yield()
		w.cancelled()
	}
}

func (w *walker) cancelled() bool {
	if w.stopped {
		return true
	}
	if w.ctx.Err() != nil {
		w.out.Cancelled = true
		w.stopped = true
	}
	return w.stopped
}

func (w *walker) report() {
	if w.onProgress != nil {
		w.onProgress(w.out.Progress)
	}
}

func saturatingMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}

func saturatingAdd(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
