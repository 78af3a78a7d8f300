package planner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slowEnumerator() *Enumerator {
	e := NewEnumerator()
	e.BatchSize = 1
	e.Yield = func() { time.Sleep(time.Millisecond) }
	return e
}

func TestGeneratorCompletes(t *testing.T) {
	g := gomega.NewWithT(t)
	gen := NewGenerator(nil, nil)

	var calls int
	var mu sync.Mutex
	run, err := gen.Generate(context.Background(), Request{Selections: wideSelections(3, 2)}, Hooks{
		OnComplete: func(_ *Run, outcome Outcome) {
			mu.Lock()
			calls++
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, run.ID())

	g.Eventually(run.State, time.Second, 5*time.Millisecond).Should(gomega.Equal(RunCompleted))
	outcome, ok := run.Result()
	require.True(t, ok)
	assert.Len(t, outcome.Candidates, 8)
	assert.Equal(t, outcome.Total, run.Progress().Considered)
	assert.True(t, gen.IsCurrent(run))
	assert.False(t, gen.Cancel(), "nothing left to cancel")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestGeneratorLastRequestWins(t *testing.T) {
	g := gomega.NewWithT(t)
	gen := NewGenerator(slowEnumerator(), GoDispatcher)

	var mu sync.Mutex
	var committed []Outcome
	commit := func(run *Run, outcome Outcome) {
		mu.Lock()
		defer mu.Unlock()
		if gen.IsCurrent(run) {
			committed = append(committed, outcome)
		}
	}

	first, err := gen.Generate(context.Background(), Request{Selections: wideSelections(6, 6)}, Hooks{OnComplete: commit})
	require.NoError(t, err)
	g.Eventually(func() int64 { return first.Progress().Considered }, time.Second, time.Millisecond).Should(gomega.BeNumerically(">", 0))

	second, err := gen.Generate(context.Background(), Request{Selections: wideSelections(2, 1)}, Hooks{OnComplete: commit})
	require.NoError(t, err)

	g.Eventually(first.State, 2*time.Second, 5*time.Millisecond).Should(gomega.Equal(RunSuperseded))
	g.Eventually(second.State, 2*time.Second, 5*time.Millisecond).Should(gomega.Equal(RunCompleted))
	assert.True(t, first.Superseded())
	assert.False(t, gen.IsCurrent(first))
	assert.Same(t, second, gen.Active())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, committed, 1)
	require.Len(t, committed[0].Candidates, 1)
	for _, l := range committed[0].Candidates[0].Lessons {
		assert.Contains(t, []string{"W0", "W1"}, l.CourseCode)
	}
}

func TestGeneratorCancelKeepsPartialResult(t *testing.T) {
	g := gomega.NewWithT(t)
	gen := NewGenerator(slowEnumerator(), nil)

	run, err := gen.Generate(context.Background(), Request{Selections: wideSelections(6, 6)}, Hooks{})
	require.NoError(t, err)
	g.Eventually(func() int64 { return run.Progress().Considered }, time.Second, time.Millisecond).Should(gomega.BeNumerically(">=", 3))

	assert.True(t, gen.Cancel())
	outcome, err := run.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, outcome.Cancelled)
	assert.NotEmpty(t, outcome.Candidates)
	assert.Equal(t, RunCancelled, run.State())
	assert.True(t, gen.IsCurrent(run), "a user cancel does not supersede")
}

func TestGeneratorDispatchFailure(t *testing.T) {
	refuse := func(context.Context, func(context.Context)) error { return errors.New("queue full") }
	gen := NewGenerator(nil, refuse)

	run, err := gen.Generate(context.Background(), Request{Selections: wideSelections(1, 1)}, Hooks{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDispatch)
	assert.Equal(t, RunFailed, run.State())
	assert.ErrorIs(t, run.Err(), ErrDispatch)
	assert.Nil(t, gen.Active())
}

func TestGeneratorStopsWithWorker(t *testing.T) {
	g := gomega.NewWithT(t)
	stopped := func(ctx context.Context, task func(context.Context)) error {
		workerCtx, cancel := context.WithCancel(ctx)
		cancel()
		go task(workerCtx)
		return nil
	}
	gen := NewGenerator(slowEnumerator(), stopped)

	run, err := gen.Generate(context.Background(), Request{Selections: wideSelections(4, 4)}, Hooks{})
	require.NoError(t, err)
	g.Eventually(run.State, time.Second, 5*time.Millisecond).Should(gomega.Equal(RunCancelled))
}

func TestGeneratorSettlesRunHandedBackCancelled(t *testing.T) {
	drained := func(ctx context.Context, task func(context.Context)) error {
		workerCtx, cancel := context.WithCancel(ctx)
		cancel()
		task(workerCtx)
		return nil
	}
	gen := NewGenerator(slowEnumerator(), drained)

	run, err := gen.Generate(context.Background(), Request{Selections: wideSelections(4, 4)}, Hooks{})
	require.NoError(t, err)
	select {
	case <-run.Done():
	default:
		t.Fatal("run did not settle")
	}
	assert.Equal(t, RunCancelled, run.State())
}

func TestRunWaitHonoursContext(t *testing.T) {
	gen := NewGenerator(slowEnumerator(), nil)
	run, err := gen.Generate(context.Background(), Request{Selections: wideSelections(6, 6)}, Hooks{})
	require.NoError(t, err)
	defer gen.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = run.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	_, ok := run.Result()
	assert.False(t, ok)
}
