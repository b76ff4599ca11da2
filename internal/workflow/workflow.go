// Package workflow drives an analysis run through its steps: discovery,
// content aggregation, categories, prompts, execution and analysis. Every
// step is triggered from outside and persists its state before returning.
package workflow

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/TobiSchelling/BrandLens/internal/database"
	"github.com/TobiSchelling/BrandLens/internal/discover"
	"github.com/TobiSchelling/BrandLens/internal/execute"
	"github.com/TobiSchelling/BrandLens/internal/generate"
	"github.com/TobiSchelling/BrandLens/internal/metrics"
)

// Store is the persistence the orchestrator needs. *database.DB satisfies it.
type Store interface {
	CreateRun(ctx context.Context, run *database.AnalysisRun) error
	GetRun(ctx context.Context, id string) (*database.AnalysisRun, error)
	SaveRun(ctx context.Context, run *database.AnalysisRun) error
	DeleteRun(ctx context.Context, id string) error

	SaveCategories(ctx context.Context, categories []database.Category) error
	GetCategories(ctx context.Context, runID string) ([]database.Category, error)

	SaveExecutions(ctx context.Context, executed []database.ExecutedPrompt) error
	LoadExecutions(ctx context.Context, runID string) ([]database.ExecutedPrompt, error)

	SaveAnalyses(ctx context.Context, analyses []database.PromptAnalysis) error
	GetCategoryAnalyses(ctx context.Context, runID string) ([]database.CategoryAnalysis, error)
	ReplaceCategoryMetrics(ctx context.Context, runID string, metrics []database.CategoryMetric) error
	GetCategoryMetrics(ctx context.Context, runID string) ([]database.CategoryMetric, error)
	ReplaceTimeSeries(ctx context.Context, runID string, points []database.TimeSeriesPoint) error
	ReplaceSummary(ctx context.Context, s *database.Summary) error
}

// Discoverer finds the pages of a site.
type Discoverer interface {
	Discover(ctx context.Context, baseURL string) discover.Result
}

// PageFetcher returns the readable text of a page.
type PageFetcher interface {
	Text(ctx context.Context, url string, timeout time.Duration) (string, error)
}

// CategoryGenerator derives categories from aggregated content.
type CategoryGenerator interface {
	Generate(ctx context.Context, runID, content, language string) ([]database.Category, error)
}

// PromptGenerator produces exactly count prompts per category.
type PromptGenerator interface {
	GenerateAll(ctx context.Context, categories []database.Category, in generate.UserInput, content string, count int) []database.Prompt
}

// Executor answers one prompt.
type Executor interface {
	Execute(ctx context.Context, prompt database.Prompt) (*execute.Result, error)
}

// Options wires the orchestrator's collaborators and tunables.
type Options struct {
	Store      Store
	Discoverer Discoverer
	Fetcher    PageFetcher
	Categories CategoryGenerator
	Prompts    PromptGenerator
	Executor   Executor

	QuestionsPerCategory int
	PromptDelay          time.Duration
	ContentMaxPages      int
	PageTimeout          time.Duration

	Logger *zap.Logger
}

// Orchestrator runs workflow steps against one store.
type Orchestrator struct {
	store      Store
	discoverer Discoverer
	fetcher    PageFetcher
	categories CategoryGenerator
	prompts    PromptGenerator
	executor   Executor

	questions   int
	promptDelay time.Duration
	maxPages    int
	pageTimeout time.Duration

	logger *zap.Logger
}

// New creates an orchestrator, applying defaults to unset tunables.
func New(opts Options) *Orchestrator {
	if opts.QuestionsPerCategory <= 0 {
		opts.QuestionsPerCategory = 5
	}
	if opts.ContentMaxPages <= 0 {
		opts.ContentMaxPages = 10
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		store:       opts.Store,
		discoverer:  opts.Discoverer,
		fetcher:     opts.Fetcher,
		categories:  opts.Categories,
		prompts:     opts.Prompts,
		executor:    opts.Executor,
		questions:   opts.QuestionsPerCategory,
		promptDelay: opts.PromptDelay,
		maxPages:    opts.ContentMaxPages,
		pageTimeout: opts.PageTimeout,
		logger:      logger.Named("workflow"),
	}
}

// QuestionsPerCategory is the default prompt count per category.
func (o *Orchestrator) QuestionsPerCategory() int {
	return o.questions
}

// observe records a step's outcome; use as defer o.observe(step, time.Now(), &err).
func (o *Orchestrator) observe(step string, start time.Time, err *error) {
	metrics.ObserveStep(step, time.Since(start).Seconds(), *err)
}

// Delete removes a run and everything recorded for it.
func (o *Orchestrator) Delete(ctx context.Context, runID string) error {
	return o.store.DeleteRun(ctx, runID)
}

// markFailed records a terminal failure, logging when even that fails.
func (o *Orchestrator) markFailed(ctx context.Context, run *database.AnalysisRun, cause error) {
	run.Status = database.StatusFailed
	run.CurrentStep = database.StepFailed
	if run.Progress == nil {
		run.Progress = map[string]any{}
	}
	run.Progress["error"] = cause.Error()
	if err := o.store.SaveRun(ctx, run); err != nil {
		o.logger.Error("marking run failed",
			zap.String("run_id", run.ID),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
	}
}
