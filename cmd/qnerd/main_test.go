package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"querynerd/internal/chains"
	"querynerd/internal/config"
	"querynerd/internal/perception"
	"querynerd/internal/pipeline"
	"querynerd/internal/store"
)

// fakeLLM answers router prompts with a classification and planner prompts
// with a plan. It holds no state, so batch runs may share it.
type fakeLLM struct {
	fail bool
}

func (f fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return f.CompleteWithSystem(ctx, "", prompt)
}

func (f fakeLLM) CompleteWithSystem(_ context.Context, system, user string) (string, error) {
	if f.fail {
		return "", errors.New("model unavailable")
	}
	if strings.Contains(system, "intent router") {
		return `{"task":"product_search","constraints":{"budget_max":100},"safety_flags":[]}`, nil
	}
	return `{"sources":["private_rag"],"retrieval_fields":["title","price","sparkle"],"filters":{"price_max":100}}`, nil
}

func setupCLI(t *testing.T, llm perception.LLMClient) {
	t.Helper()
	logger = zap.NewNop()
	workspace = t.TempDir()
	configPath = ""
	timeout = time.Minute
	jsonOutput = false
	keepEmpty = false
	historyLimit = 20
	concurrency = 2
	forceInit = false
	t.Setenv("QUERYNERD_DB", "")
	t.Setenv("QUERYNERD_DEBUG", "")

	orig := newLLMClient
	newLLMClient = func(context.Context, *config.Config, *zap.Logger) (perception.LLMClient, error) {
		return llm, nil
	}
	t.Cleanup(func() { newLLMClient = orig })
}

func testCommand(stdin string) (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	return cmd, &out
}

func TestJoinArgs(t *testing.T) {
	got := joinArgs([]string{"one", "two", "three"})
	if got != "one two three" {
		t.Fatalf("expected 'one two three', got '%s'", got)
	}
}

func TestRunQueryJSON(t *testing.T) {
	setupCLI(t, fakeLLM{})
	jsonOutput = true

	cmd, out := testCommand("")
	require.NoError(t, runQuery(cmd, []string{"headphones", "under", "100"}))

	var run store.Run
	require.NoError(t, json.Unmarshal(out.Bytes(), &run))
	assert.NotEmpty(t, run.ID)
	assert.False(t, run.Degraded)
	assert.Equal(t, "headphones under 100", run.State.Query)
	assert.Equal(t, pipeline.TaskProductSearch, run.State.Task)
	require.NotNil(t, run.State.Plan)
	assert.Equal(t, []string{"title", "price"}, run.State.Plan.RetrievalFields)
	assert.Len(t, run.State.StepLog, 2)

	_, err := os.Stat(filepath.Join(workspace, ".nerd", "runs.db"))
	assert.NoError(t, err, "run should be persisted")
}

func TestRunQueryDegraded(t *testing.T) {
	setupCLI(t, fakeLLM{fail: true})
	jsonOutput = true

	cmd, out := testCommand("")
	require.NoError(t, runQuery(cmd, []string{"anything"}))

	var run store.Run
	require.NoError(t, json.Unmarshal(out.Bytes(), &run))
	assert.True(t, run.Degraded)
	assert.Equal(t, pipeline.DefaultTask, run.State.Task)
	assert.Empty(t, run.State.Constraints)
	require.NotNil(t, run.State.Plan)
	assert.Equal(t, []string{"private_rag"}, run.State.Plan.Sources)
}

func TestRunQueryRendered(t *testing.T) {
	setupCLI(t, fakeLLM{})

	cmd, out := testCommand("")
	require.NoError(t, runQuery(cmd, []string{"red", "scarf"}))

	text := out.String()
	assert.Contains(t, text, "red scarf")
	assert.Contains(t, text, "private_rag")
	assert.Contains(t, text, "run ")
}

func TestHistoryAndShow(t *testing.T) {
	setupCLI(t, fakeLLM{})
	jsonOutput = true

	cmd, out := testCommand("")
	require.NoError(t, runQuery(cmd, []string{"first query"}))
	var run store.Run
	require.NoError(t, json.Unmarshal(out.Bytes(), &run))

	jsonOutput = false
	cmd, out = testCommand("")
	require.NoError(t, showHistory(cmd, nil))
	assert.Contains(t, out.String(), run.ID)
	assert.Contains(t, out.String(), "first query")
	assert.Contains(t, out.String(), "product_search")

	jsonOutput = true
	cmd, out = testCommand("")
	require.NoError(t, showRun(cmd, []string{run.ID}))
	var shown store.Run
	require.NoError(t, json.Unmarshal(out.Bytes(), &shown))
	assert.Equal(t, run.ID, shown.ID)
	assert.Equal(t, "first query", shown.State.Query)

	cmd, _ = testCommand("")
	assert.ErrorIs(t, showRun(cmd, []string{"missing"}), store.ErrNotFound)
}

func TestHistoryEmpty(t *testing.T) {
	setupCLI(t, fakeLLM{})

	cmd, out := testCommand("")
	require.NoError(t, showHistory(cmd, nil))
	assert.Contains(t, out.String(), "No runs recorded yet.")
}

func TestRunBatch(t *testing.T) {
	setupCLI(t, fakeLLM{})
	jsonOutput = true

	cmd, out := testCommand("# comment\nboots\n\nsandals\numbrella\n")
	require.NoError(t, runBatch(cmd, []string{"-"}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	for i, want := range []string{"boots", "sandals", "umbrella"} {
		var run store.Run
		require.NoError(t, json.Unmarshal([]byte(lines[i]), &run))
		assert.Equal(t, want, run.State.Query, "batch output keeps input order")
	}

	historyLimit = 10
	jsonOutput = false
	cmd, out = testCommand("")
	require.NoError(t, showHistory(cmd, nil))
	for _, q := range []string{"boots", "sandals", "umbrella"} {
		assert.Contains(t, out.String(), q)
	}
	assert.Equal(t, 3, strings.Count(out.String(), "product_search"))
}

func TestRunBatchEmpty(t *testing.T) {
	setupCLI(t, fakeLLM{})

	cmd, out := testCommand("\n\n")
	require.NoError(t, runBatch(cmd, []string{"-"}))
	assert.Contains(t, out.String(), "No queries found.")
}

func TestValidatePlan(t *testing.T) {
	setupCLI(t, fakeLLM{})

	cmd, out := testCommand(`{"retrieval_fields":["bogus"],"filters":"oops"}`)
	require.NoError(t, validatePlan(cmd, nil))

	var plan pipeline.RetrievalPlan
	require.NoError(t, json.Unmarshal(out.Bytes(), &plan))
	assert.Equal(t, []string{"private_rag"}, plan.Sources)
	assert.Equal(t, []string{"title", "price", "rating"}, plan.RetrievalFields)
	assert.Equal(t, map[string]any{}, plan.Filters)
}

func TestValidatePlanKeepEmpty(t *testing.T) {
	setupCLI(t, fakeLLM{})
	keepEmpty = true

	path := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sources":["live_search"],"retrieval_fields":["bogus"]}`), 0644))

	cmd, out := testCommand("")
	require.NoError(t, validatePlan(cmd, []string{path}))
	assert.Contains(t, out.String(), `"retrieval_fields": []`)
	assert.Contains(t, out.String(), `"live_search"`)
}

func TestValidatePlanRejectsGarbage(t *testing.T) {
	setupCLI(t, fakeLLM{})

	cmd, _ := testCommand("not json")
	assert.Error(t, validatePlan(cmd, nil))
}

func TestConfigInit(t *testing.T) {
	setupCLI(t, fakeLLM{})

	cmd, out := testCommand("")
	require.NoError(t, configInit(cmd, nil))
	path := filepath.Join(workspace, config.DefaultPath)
	assert.Contains(t, out.String(), path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Pipeline.ValidatePlan)

	cmd, _ = testCommand("")
	assert.ErrorContains(t, configInit(cmd, nil), "already exists")

	forceInit = true
	cmd, _ = testCommand("")
	assert.NoError(t, configInit(cmd, nil))
}

func TestStoreDisabled(t *testing.T) {
	setupCLI(t, fakeLLM{})
	cfg := config.DefaultConfig()
	cfg.Store.Enabled = false
	require.NoError(t, cfg.Save(filepath.Join(workspace, config.DefaultPath)))

	jsonOutput = true
	cmd, out := testCommand("")
	require.NoError(t, runQuery(cmd, []string{"no persistence"}))
	assert.Contains(t, out.String(), "no persistence")

	_, err := os.Stat(filepath.Join(workspace, ".nerd", "runs.db"))
	assert.True(t, os.IsNotExist(err))

	cmd, _ = testCommand("")
	assert.ErrorContains(t, showHistory(cmd, nil), "disabled")
}

// patientLLM answers like fakeLLM, but takes a while on queries mentioning
// "slow" and gives up if its context ends first.
type patientLLM struct{ fakeLLM }

func (p patientLLM) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	if strings.Contains(user, "slow") {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return p.fakeLLM.CompleteWithSystem(ctx, system, user)
}

func TestExecuteAllSaveFailureDoesNotDegradeOthers(t *testing.T) {
	setupCLI(t, fakeLLM{})

	closed, err := store.NewRunStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	require.NoError(t, closed.Close())

	llm := patientLLM{}
	a := &app{
		cfg:   config.DefaultConfig(),
		stage: pipeline.NewStage(chains.NewRouterChain(llm, nil), chains.NewPlannerChain(llm, nil), pipeline.StageOptions{}),
		runs:  closed,
		log:   zap.NewNop(),
	}

	runs, err := a.executeAll(context.Background(), []string{"fast", "slow one", "slow two"}, 3)
	require.Error(t, err)
	require.Len(t, runs, 3)
	for _, run := range runs {
		assert.False(t, run.Degraded, "query %q", run.State.Query)
		assert.Equal(t, pipeline.TaskProductSearch, run.State.Task)
	}
}
