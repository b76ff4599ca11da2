package workflow

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/TobiSchelling/BrandLens/internal/generate"
)

// StepResult holds the result of a single step of a full run.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full run.
type Result struct {
	RunID    string
	Steps    []StepResult
	Analysis *Analysis
}

// Failed reports whether any step returned an error.
func (r *Result) Failed() bool {
	for _, s := range r.Steps {
		if s.Err != nil {
			return true
		}
	}
	return false
}

// RunInput configures an unattended run.
type RunInput struct {
	Step1Input
	Description          string
	QuestionsPerCategory int
}

// Run executes every step in order with all generated categories selected.
// It stops at the first step that fails.
func (o *Orchestrator) Run(ctx context.Context, in RunInput) *Result {
	r := &Result{}

	o.logger.Info("step 1/5: discovering site", zap.String("url", in.WebsiteURL))
	s1, err := o.Step1(ctx, in.Step1Input)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Discover", Err: err})
		return r
	}
	r.RunID = s1.RunID
	r.Steps = append(r.Steps, StepResult{
		Name:    "Discover",
		Summary: fmt.Sprintf("Found %d URLs (sitemap: %t)", len(s1.URLs), s1.FoundSitemap),
	})

	o.logger.Info("step 2/5: aggregating content", zap.String("run_id", r.RunID))
	content, err := o.Step2(ctx, r.RunID)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Content", Err: err})
		return r
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Content",
		Summary: fmt.Sprintf("Aggregated %d characters", len(content)),
	})

	o.logger.Info("step 3/5: generating categories", zap.String("run_id", r.RunID))
	cats, err := o.Step3(ctx, Step3Input{RunID: r.RunID, Content: content, Language: in.Language})
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Categories", Err: err})
		return r
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Categories",
		Summary: fmt.Sprintf("Generated %d categories", len(cats)),
	})

	count := in.QuestionsPerCategory
	if count <= 0 {
		count = o.questions
	}
	region := ""
	if in.Region != nil {
		region = *in.Region
	}
	o.logger.Info("step 4/5: generating prompts", zap.String("run_id", r.RunID))
	prompts, err := o.Step4(ctx, Step4Input{
		RunID:      r.RunID,
		Categories: cats,
		UserInput: generate.UserInput{
			WebsiteURL:  in.WebsiteURL,
			Country:     in.Country,
			Region:      region,
			Language:    in.Language,
			Description: in.Description,
		},
		Content:              content,
		QuestionsPerCategory: count,
	})
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Prompts", Err: err})
		return r
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Prompts",
		Summary: fmt.Sprintf("Generated %d prompts", len(prompts)),
	})

	o.logger.Info("step 5/5: executing prompts", zap.String("run_id", r.RunID))
	s5, err := o.Step5(ctx, Step5Input{RunID: r.RunID, Prompts: prompts})
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Execute", Err: err})
		return r
	}
	r.Analysis = s5.Analysis
	r.Steps = append(r.Steps, StepResult{
		Name:    "Execute",
		Summary: fmt.Sprintf("Answered %d of %d prompts", s5.Executed, s5.Requested),
	})
	return r
}
