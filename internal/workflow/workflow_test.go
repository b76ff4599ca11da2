package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/TobiSchelling/BrandLens/internal/categorize"
	"github.com/TobiSchelling/BrandLens/internal/database"
	"github.com/TobiSchelling/BrandLens/internal/discover"
	"github.com/TobiSchelling/BrandLens/internal/execute"
	"github.com/TobiSchelling/BrandLens/internal/fetch"
	"github.com/TobiSchelling/BrandLens/internal/generate"
)

type fakeDiscoverer struct {
	result discover.Result
}

func (d fakeDiscoverer) Discover(context.Context, string) discover.Result {
	return d.result
}

type fakeFetcher struct {
	pages map[string]string
}

func (f fakeFetcher) Text(_ context.Context, url string, _ time.Duration) (string, error) {
	text, ok := f.pages[url]
	if !ok {
		return "", errors.New("connection refused")
	}
	return text, nil
}

// scriptedExecutor fails the first call, answers the second with nothing
// and answers every later call with a brand mention.
type scriptedExecutor struct {
	mu    sync.Mutex
	calls int
}

func (e *scriptedExecutor) Execute(_ context.Context, p database.Prompt) (*execute.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	switch e.calls {
	case 1:
		return nil, execute.ErrProviderStatus
	case 2:
		return &execute.Result{PromptID: p.ID, OutputText: "  "}, nil
	}
	return &execute.Result{
		PromptID:   p.ID,
		OutputText: "Acme is a great choice, see [Acme](https://acme.com). Others exist.",
		Citations: []database.Citation{
			{URL: "https://acme.com", Title: "Acme"},
			{URL: "https://www.reviews.io/anvils", Title: "Reviews"},
		},
		Timestamp: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		Model:     "test-model",
	}, nil
}

type failingExecutor struct{}

func (failingExecutor) Execute(context.Context, database.Prompt) (*execute.Result, error) {
	return nil, execute.ErrProviderStatus
}

func openStore(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(database.Options{
		Driver:         "sqlite",
		Path:           filepath.Join(t.TempDir(), "test.db"),
		RetryBaseDelay: time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newOrchestrator(t *testing.T, db *database.DB, exec Executor) *Orchestrator {
	t.Helper()
	logger := zaptest.NewLogger(t)
	return New(Options{
		Store: db,
		Discoverer: fakeDiscoverer{result: discover.Result{
			URLs:         []string{"https://www.acme.com/", "https://www.acme.com/pricing", "https://www.acme.com/about"},
			FoundSitemap: true,
		}},
		Fetcher: fakeFetcher{pages: map[string]string{
			"https://www.acme.com/":      "Acme sells anvils and hammers.",
			"https://www.acme.com/about": "Founded in 1920.",
		}},
		Categories:      categorize.New(nil, logger),
		Prompts:         generate.New(nil, 0, logger),
		Executor:        exec,
		ContentMaxPages: 2,
		Logger:          logger,
	})
}

func startRun(t *testing.T, o *Orchestrator) string {
	t.Helper()
	res, err := o.Step1(context.Background(), Step1Input{
		WebsiteURL: "https://www.acme.com",
		Country:    "US",
		Language:   "en",
	})
	require.NoError(t, err)
	return res.RunID
}

func TestStep1CreatesRunningRunWithURLs(t *testing.T) {
	db := openStore(t)
	o := newOrchestrator(t, db, &scriptedExecutor{})

	res, err := o.Step1(context.Background(), Step1Input{WebsiteURL: "https://www.acme.com", Country: "US", Language: "en"})
	require.NoError(t, err)
	assert.True(t, res.FoundSitemap)
	assert.Len(t, res.URLs, 3)

	run, err := db.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, database.StatusRunning, run.Status)
	assert.Equal(t, database.StepContent, run.CurrentStep)
	assert.Equal(t, res.URLs, run.URLs)
	assert.Equal(t, "acme", run.BrandName)
}

func TestStep1RequiresWebsiteURL(t *testing.T) {
	o := newOrchestrator(t, openStore(t), &scriptedExecutor{})
	_, err := o.Step1(context.Background(), Step1Input{Country: "US"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestStep2SkipsFailedPages(t *testing.T) {
	db := openStore(t)
	o := newOrchestrator(t, db, &scriptedExecutor{})
	runID := startRun(t, o)

	content, err := o.Step2(context.Background(), runID)
	require.NoError(t, err)

	want := "Source: https://www.acme.com/\nAcme sells anvils and hammers." +
		fetch.PageSeparator +
		"Source: https://www.acme.com/about\nFounded in 1920."
	assert.Equal(t, want, content)

	run, err := db.GetRun(context.Background(), runID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, run.Progress["contentPages"])
}

func TestStep3FallsBackAndAdvances(t *testing.T) {
	db := openStore(t)
	o := newOrchestrator(t, db, &scriptedExecutor{})
	runID := startRun(t, o)

	cats, err := o.Step3(context.Background(), Step3Input{RunID: runID, Content: "", Language: "en"})
	require.NoError(t, err)
	require.Len(t, cats, 3, "generic categories when nothing else matches")

	stored, err := db.GetCategories(context.Background(), runID)
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	run, err := db.GetRun(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, database.StepPrompts, run.CurrentStep)
}

func TestStep3UnknownRun(t *testing.T) {
	o := newOrchestrator(t, openStore(t), &scriptedExecutor{})
	_, err := o.Step3(context.Background(), Step3Input{RunID: "missing"})
	assert.ErrorIs(t, err, database.ErrRunNotFound)
}

// prepareRun drives a run through category selection and prompt generation:
// one generic category plus one custom category, two prompts each.
func prepareRun(t *testing.T, o *Orchestrator) (string, []database.Prompt) {
	t.Helper()
	ctx := context.Background()
	runID := startRun(t, o)

	cats, err := o.Step3(ctx, Step3Input{RunID: runID, Language: "en"})
	require.NoError(t, err)

	custom, err := o.SaveCategories(ctx, runID, []string{cats[0].ID}, []CustomCategory{{Name: "Warranty"}, {Name: "  "}})
	require.NoError(t, err)
	require.Len(t, custom, 1)

	prompts, err := o.Step4(ctx, Step4Input{RunID: runID, QuestionsPerCategory: 2})
	require.NoError(t, err)
	return runID, prompts
}

func TestStep4UsesSelectionAndExactCounts(t *testing.T) {
	db := openStore(t)
	o := newOrchestrator(t, db, &scriptedExecutor{})
	runID, prompts := prepareRun(t, o)

	require.Len(t, prompts, 4)
	perCategory := map[string]int{}
	for _, p := range prompts {
		perCategory[p.CategoryID]++
		assert.Equal(t, runID, p.RunID)
		assert.Equal(t, "US", p.Country)
	}
	assert.Len(t, perCategory, 2)

	run, err := db.GetRun(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, 4, run.PromptsGenerated)
	assert.Equal(t, database.StepExecution, run.CurrentStep)
	assert.Len(t, storedPrompts(run), 4)

	persisted, err := db.GetPrompts(context.Background(), runID)
	require.NoError(t, err)
	assert.Empty(t, persisted, "prompts are persisted only after execution")
}

func TestStep4ReassignsCategoriesOfAnotherRun(t *testing.T) {
	db := openStore(t)
	o := newOrchestrator(t, db, &scriptedExecutor{})
	ctx := context.Background()

	runA := startRun(t, o)
	catsA, err := o.Step3(ctx, Step3Input{RunID: runA, Language: "en"})
	require.NoError(t, err)
	foreign := catsA[0]

	runB := startRun(t, o)
	prompts, err := o.Step4(ctx, Step4Input{
		RunID:                runB,
		Categories:           []database.Category{{ID: foreign.ID, Name: "Hijacked"}},
		QuestionsPerCategory: 1,
	})
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.NotEqual(t, foreign.ID, prompts[0].CategoryID)

	catsB, err := db.GetCategories(ctx, runB)
	require.NoError(t, err)
	require.Len(t, catsB, 1)
	assert.Equal(t, prompts[0].CategoryID, catsB[0].ID)
	assert.Equal(t, "Hijacked", catsB[0].Name)

	after, err := db.GetCategories(ctx, runA)
	require.NoError(t, err)
	assert.Equal(t, foreign.Name, after[0].Name, "other run's category unchanged")
}

func TestStep5PersistsOnlyAnsweredPrompts(t *testing.T) {
	db := openStore(t)
	o := newOrchestrator(t, db, &scriptedExecutor{})
	runID, prompts := prepareRun(t, o)
	ctx := context.Background()

	res, err := o.Step5(ctx, Step5Input{RunID: runID})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Requested)
	assert.Equal(t, 2, res.Executed)

	persisted, err := db.GetPrompts(ctx, runID)
	require.NoError(t, err)
	require.Len(t, persisted, 2)
	ids := map[string]bool{persisted[0].ID: true, persisted[1].ID: true}
	assert.False(t, ids[prompts[0].ID], "failed prompt is not stored")
	assert.False(t, ids[prompts[1].ID], "empty answer is not stored")

	run, err := db.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, database.StatusCompleted, run.Status)
	assert.Equal(t, database.StepCompleted, run.CurrentStep)

	require.NotNil(t, res.Analysis)
	assert.NotEmpty(t, res.Analysis.CategoryMetrics)
	assert.Equal(t, []database.TimeSeriesPoint{{Date: "2025-03-01", Responses: 2, Mentions: 2}}, res.Analysis.TimeSeries)

	summary, err := db.GetSummary(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 2, summary.TotalMentions)
	assert.Equal(t, 2, summary.TotalCitations)
	assert.Equal(t, map[string]int{"reviews.io": 2}, summary.ExternalDomains)
}

func TestReanalyzeKeepsSingleSummary(t *testing.T) {
	db := openStore(t)
	o := newOrchestrator(t, db, &scriptedExecutor{})
	runID, _ := prepareRun(t, o)
	ctx := context.Background()

	_, err := o.Step5(ctx, Step5Input{RunID: runID})
	require.NoError(t, err)

	first, err := o.Reanalyze(ctx, runID)
	require.NoError(t, err)
	second, err := o.Reanalyze(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, first.TimeSeries, second.TimeSeries)

	n, err := db.CountSummaries(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReanalyzeRejectsUnexecutedRun(t *testing.T) {
	db := openStore(t)
	o := newOrchestrator(t, db, &scriptedExecutor{})
	runID, _ := prepareRun(t, o)
	ctx := context.Background()

	_, err := o.Reanalyze(ctx, runID)
	assert.ErrorIs(t, err, ErrNotExecuted)

	run, err := db.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.NotEqual(t, database.StatusCompleted, run.Status)
	n, err := db.CountSummaries(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestReanalyzeRejectsCompletedRunWithoutAnswers(t *testing.T) {
	db := openStore(t)
	o := newOrchestrator(t, db, failingExecutor{})
	runID, _ := prepareRun(t, o)
	ctx := context.Background()

	res, err := o.Step5(ctx, Step5Input{RunID: runID})
	require.NoError(t, err)
	require.Zero(t, res.Executed)

	_, err = o.Reanalyze(ctx, runID)
	assert.ErrorIs(t, err, ErrNotExecuted)
}

func TestRunWithDebugExecutor(t *testing.T) {
	db := openStore(t)
	o := newOrchestrator(t, db, execute.New(execute.Options{Debug: true}))

	r := o.Run(context.Background(), RunInput{
		Step1Input:           Step1Input{WebsiteURL: "https://www.acme.com", Country: "US", Language: "en"},
		QuestionsPerCategory: 2,
	})
	require.False(t, r.Failed(), "steps: %+v", r.Steps)
	require.Len(t, r.Steps, 5)
	assert.True(t, strings.HasPrefix(r.Steps[4].Summary, "Answered"))

	executions, err := db.LoadExecutions(context.Background(), r.RunID)
	require.NoError(t, err)
	assert.NotEmpty(t, executions)
	for _, ex := range executions {
		assert.Equal(t, execute.DebugModel, ex.Response.Model)
		assert.Len(t, ex.Citations, 3)
	}

	summary, err := db.GetSummary(context.Background(), r.RunID)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Len(t, summary.WhiteSpacePrompts, len(executions), "canned answers never name the brand")
}

func TestDeleteRun(t *testing.T) {
	db := openStore(t)
	o := newOrchestrator(t, db, &scriptedExecutor{})
	runID := startRun(t, o)

	require.NoError(t, o.Delete(context.Background(), runID))
	_, err := db.GetRun(context.Background(), runID)
	assert.ErrorIs(t, err, database.ErrRunNotFound)
}
