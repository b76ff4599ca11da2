package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/TobiSchelling/BrandLens/internal/analyze"
	"github.com/TobiSchelling/BrandLens/internal/database"
)

const stepAnalysis = "analysis"

// Analysis is the result of the post-execution analysis pass.
type Analysis struct {
	CategoryMetrics []database.CategoryMetric  `json:"categoryMetrics"`
	TimeSeries      []database.TimeSeriesPoint `json:"timeSeries"`
	Summary         *database.Summary          `json:"summary,omitempty"`
}

// ErrNotExecuted is returned when re-analysis is requested for a run that
// has no completed execution to analyze.
var ErrNotExecuted = errors.New("run has not been executed")

// Reanalyze reruns the analysis pass over a run's stored executions,
// overwriting earlier results. Only completed runs with at least one
// answered prompt qualify.
func (o *Orchestrator) Reanalyze(ctx context.Context, runID string) (*Analysis, error) {
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != database.StatusCompleted {
		return nil, fmt.Errorf("%w: run %s is %s at step %s", ErrNotExecuted, runID, run.Status, run.CurrentStep)
	}
	executions, err := o.store.LoadExecutions(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("loading executions: %w", err)
	}
	if len(executions) == 0 {
		return nil, fmt.Errorf("%w: run %s has no answered prompts", ErrNotExecuted, runID)
	}
	return o.analyzeRun(ctx, run)
}

// analyzeRun scores every stored (prompt, response) pair, aggregates category
// metrics and a daily time series, marks the run completed and regenerates
// the summary. Metric query failures degrade to empty results; summary
// failures are only logged.
func (o *Orchestrator) analyzeRun(ctx context.Context, run *database.AnalysisRun) (res *Analysis, err error) {
	defer o.observe(stepAnalysis, time.Now(), &err)
	log := o.logger.With(zap.String("run_id", run.ID))

	executions, err := o.store.LoadExecutions(ctx, run.ID)
	if err != nil {
		o.markFailed(ctx, run, err)
		return nil, fmt.Errorf("loading executions: %w", err)
	}

	analyses := make(map[string]database.PromptAnalysis, len(executions))
	rows := make([]database.PromptAnalysis, 0, len(executions))
	for _, ex := range executions {
		a := analyze.Analyze(ex.Prompt, ex.Response, ex.Citations, run.BrandName)
		analyses[ex.Prompt.ID] = a
		rows = append(rows, a)
	}
	if err := o.store.SaveAnalyses(ctx, rows); err != nil {
		o.markFailed(ctx, run, err)
		return nil, fmt.Errorf("saving analyses: %w", err)
	}

	metrics := o.categoryMetrics(ctx, run.ID)

	series := analyze.TimeSeries(executions, analyses)
	if err := o.store.ReplaceTimeSeries(ctx, run.ID, series); err != nil {
		log.Warn("saving time series failed", zap.Error(err))
	}

	run.Status = database.StatusCompleted
	run.CurrentStep = database.StepCompleted
	if err := o.store.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("completing run: %w", err)
	}

	summary := analyze.Summarize(run.ID, run.BrandName, executions, analyses)
	if err := o.store.ReplaceSummary(ctx, summary); err != nil {
		log.Error("regenerating summary failed", zap.Error(err))
		summary = nil
	}

	log.Info("run analyzed",
		zap.Int("responses", len(executions)),
		zap.Int("categories", len(metrics)),
	)
	return &Analysis{CategoryMetrics: metrics, TimeSeries: series, Summary: summary}, nil
}

// categoryMetrics recomputes and stores per-category metrics, returning the
// stored rows. Any failure yields an empty list.
func (o *Orchestrator) categoryMetrics(ctx context.Context, runID string) []database.CategoryMetric {
	log := o.logger.With(zap.String("run_id", runID))

	rows, err := o.store.GetCategoryAnalyses(ctx, runID)
	if err != nil {
		log.Warn("category analysis query failed", zap.Error(err))
		return []database.CategoryMetric{}
	}
	computed := analyze.CategoryMetrics(runID, rows)
	if err := o.store.ReplaceCategoryMetrics(ctx, runID, computed); err != nil {
		log.Warn("saving category metrics failed", zap.Error(err))
		return []database.CategoryMetric{}
	}

	stored, err := o.store.GetCategoryMetrics(ctx, runID)
	if err != nil {
		log.Warn("category metrics query failed", zap.Error(err))
		return []database.CategoryMetric{}
	}
	return stored
}
