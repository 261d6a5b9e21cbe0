package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingSink struct {
	mu      sync.Mutex
	entries map[string][]AuditEntry
}

func (s *recordingSink) Record(runID string, e AuditEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries == nil {
		s.entries = make(map[string][]AuditEntry)
	}
	s.entries[runID] = append(s.entries[runID], e)
}

func TestStage_SuccessProducesTwoOrderedEntries(t *testing.T) {
	sink := &recordingSink{}
	stage := NewStage(
		staticClassifier(Classification{Task: TaskRecommendation}, nil),
		staticGenerator(RetrievalPlan{Sources: []string{"private_rag"}, RetrievalFields: []string{"title"}}, nil),
		StageOptions{Sink: sink},
	)

	out := stage.Run(context.Background(), "run-1", "gift ideas")

	assert.Equal(t, []string{"router", "planner"}, stage.Nodes())
	require.Len(t, out.StepLog, 2)
	assert.Equal(t, "router", out.StepLog[0].Node)
	assert.Equal(t, "planner", out.StepLog[1].Node)
	assert.True(t, out.StepLog[0].Success)
	assert.True(t, out.StepLog[1].Success)
	assert.False(t, out.Degraded())

	require.Len(t, sink.entries["run-1"], 2)
	assert.Equal(t, out.StepLog, sink.entries["run-1"])
}

func TestStage_PlannerSeesRouterOutput(t *testing.T) {
	var gotReq PlanRequest
	stage := NewStage(
		staticClassifier(Classification{
			Task:        TaskProductComparison,
			Constraints: Constraints{Brand: ptr("acme")},
		}, nil),
		PlanGeneratorFunc(func(_ context.Context, req PlanRequest) (RetrievalPlan, error) {
			gotReq = req
			return DefaultFallbackPlan(), nil
		}),
		StageOptions{},
	)

	stage.Run(context.Background(), "", "acme vs globex")

	assert.Equal(t, TaskProductComparison, gotReq.Task)
	assert.Equal(t, map[string]any{"brand": "acme"}, gotReq.Constraints)
}

func TestStage_BothFailStillPopulated(t *testing.T) {
	stage := NewStage(
		staticClassifier(Classification{}, errors.New("down")),
		staticGenerator(RetrievalPlan{}, errors.New("down")),
		StageOptions{},
	)

	out := stage.Run(context.Background(), "", "q")

	assert.Equal(t, TaskProductSearch, out.Task)
	assert.Equal(t, map[string]any{}, out.Constraints)
	require.NotNil(t, out.Plan)
	assert.Equal(t, DefaultFallbackPlan(), *out.Plan)
	require.Len(t, out.StepLog, 2)
	assert.True(t, out.Degraded())
}

func TestGraph_LogsNodeOutcome(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	stage := NewStage(
		staticClassifier(Classification{Task: TaskRecommendation}, nil),
		staticGenerator(RetrievalPlan{}, errors.New("down")),
		StageOptions{Logger: zap.New(core)},
	)

	stage.Run(context.Background(), "run-7", "q")

	finished := logs.FilterMessage("node finished").All()
	require.Len(t, finished, 2)
	assert.Equal(t, "router", finished[0].ContextMap()["node"])
	assert.Equal(t, true, finished[0].ContextMap()["success"])
	assert.Equal(t, "planner", finished[1].ContextMap()["node"])
	assert.Equal(t, false, finished[1].ContextMap()["success"])
	assert.Equal(t, "run-7", finished[1].ContextMap()["run_id"])
}

func TestState_LastEntry(t *testing.T) {
	_, ok := NewState("q").LastEntry()
	assert.False(t, ok)

	s := NewState("q")
	s.StepLog = append(s.StepLog, AuditEntry{Node: "router"}, AuditEntry{Node: "planner"})
	last, ok := s.LastEntry()
	require.True(t, ok)
	assert.Equal(t, "planner", last.Node)
}

func TestGraph_RunStateLeavesInputAlone(t *testing.T) {
	stage := NewStage(
		staticClassifier(Classification{Task: TaskProductSearch}, nil),
		staticGenerator(DefaultFallbackPlan(), nil),
		StageOptions{},
	)
	in := NewState("q")

	out := stage.RunState(context.Background(), "", in)

	assert.Empty(t, in.StepLog)
	assert.Nil(t, in.Plan)
	assert.Len(t, out.StepLog, 2)
}

func TestStage_ConcurrentRunsAreIndependent(t *testing.T) {
	stage := NewStage(
		ClassifierFunc(func(_ context.Context, q string) (Classification, error) {
			if q == "fail" {
				return Classification{}, errors.New("nope")
			}
			return Classification{Task: TaskProductQuestion, Constraints: Constraints{Other: map[string]any{"q": q}}}, nil
		}),
		staticGenerator(DefaultFallbackPlan(), nil),
		StageOptions{Sink: &recordingSink{}},
	)

	queries := []string{"a", "b", "fail", "c", "d", "fail", "e"}
	results := make([]State, len(queries))

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(3)
	for i, q := range queries {
		g.Go(func() error {
			results[i] = stage.Run(ctx, q, q)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for i, q := range queries {
		out := results[i]
		require.Len(t, out.StepLog, 2, q)
		if q == "fail" {
			assert.Equal(t, TaskProductSearch, out.Task)
			assert.Empty(t, out.Constraints)
			continue
		}
		assert.Equal(t, TaskProductQuestion, out.Task)
		assert.Equal(t, map[string]any{"q": q}, out.Constraints)
	}
}

func TestState_CloneIsDeep(t *testing.T) {
	plan := DefaultFallbackPlan()
	s := State{
		Query:       "q",
		Constraints: map[string]any{"a": 1},
		SafetyFlags: []string{"f"},
		Plan:        &plan,
		StepLog:     []AuditEntry{{Node: "x"}},
	}

	c := s.Clone()
	c.Constraints["b"] = 2
	c.SafetyFlags[0] = "g"
	c.Plan.Sources[0] = "web"
	c.StepLog[0].Node = "y"

	assert.NotContains(t, s.Constraints, "b")
	assert.Equal(t, "f", s.SafetyFlags[0])
	assert.Equal(t, "private_rag", s.Plan.Sources[0])
	assert.Equal(t, "x", s.StepLog[0].Node)
}
