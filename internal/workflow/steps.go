package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/TobiSchelling/BrandLens/internal/analyze"
	"github.com/TobiSchelling/BrandLens/internal/database"
	"github.com/TobiSchelling/BrandLens/internal/execute"
	"github.com/TobiSchelling/BrandLens/internal/fetch"
	"github.com/TobiSchelling/BrandLens/internal/generate"
)

// ErrInvalidInput is returned for requests missing required fields.
var ErrInvalidInput = errors.New("invalid input")

// Step1Input starts a run.
type Step1Input struct {
	WebsiteURL string  `json:"websiteUrl"`
	BrandName  string  `json:"brandName,omitempty"`
	Country    string  `json:"country"`
	Region     *string `json:"region,omitempty"`
	Language   string  `json:"language"`
}

// Step1Result is the created run and its discovered pages.
type Step1Result struct {
	RunID        string   `json:"runId"`
	URLs         []string `json:"urls"`
	FoundSitemap bool     `json:"foundSitemap"`
}

// Step1 creates a running run and records the site's discovered URLs.
func (o *Orchestrator) Step1(ctx context.Context, in Step1Input) (res *Step1Result, err error) {
	defer o.observe(database.StepSitemap, time.Now(), &err)

	if strings.TrimSpace(in.WebsiteURL) == "" {
		return nil, fmt.Errorf("%w: websiteUrl is required", ErrInvalidInput)
	}
	brand := strings.TrimSpace(in.BrandName)
	if brand == "" {
		brand = analyze.BrandFromURL(in.WebsiteURL)
	}

	run := &database.AnalysisRun{
		ID:          uuid.NewString(),
		WebsiteURL:  in.WebsiteURL,
		BrandName:   brand,
		Country:     in.Country,
		Region:      in.Region,
		Language:    in.Language,
		Status:      database.StatusRunning,
		CurrentStep: database.StepSitemap,
		Progress:    map[string]any{},
	}
	if err := o.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}

	found := o.discoverer.Discover(ctx, in.WebsiteURL)
	o.logger.Info("site discovered",
		zap.String("run_id", run.ID),
		zap.Int("urls", len(found.URLs)),
		zap.Bool("sitemap", found.FoundSitemap),
	)

	run.URLs = found.URLs
	run.FoundSitemap = found.FoundSitemap
	run.CurrentStep = database.StepContent
	if err := o.store.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("saving discovered urls: %w", err)
	}

	return &Step1Result{RunID: run.ID, URLs: found.URLs, FoundSitemap: found.FoundSitemap}, nil
}

// Step2 aggregates the text of up to ContentMaxPages discovered pages.
// Pages that fail to fetch are skipped.
func (o *Orchestrator) Step2(ctx context.Context, runID string) (content string, err error) {
	defer o.observe(database.StepContent, time.Now(), &err)

	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return "", err
	}
	content, pages := o.AggregateContent(ctx, run.URLs)

	run.Progress = progress(run)
	run.Progress["contentPages"] = pages
	run.Progress["contentChars"] = len(content)
	if err := o.store.SaveRun(ctx, run); err != nil {
		return "", fmt.Errorf("saving content progress: %w", err)
	}
	return content, nil
}

// AggregateContent fetches urls in order and joins their text as
// "Source: <url>" blocks. It returns the content and the number of pages used.
func (o *Orchestrator) AggregateContent(ctx context.Context, urls []string) (string, int) {
	var blocks []string
	for _, u := range urls {
		if len(blocks) == o.maxPages {
			break
		}
		text, err := o.fetcher.Text(ctx, u, o.pageTimeout)
		if err != nil {
			o.logger.Warn("skipping page", zap.String("url", u), zap.Error(err))
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		blocks = append(blocks, "Source: "+u+"\n"+text)
	}
	return strings.Join(blocks, fetch.PageSeparator), len(blocks)
}

// Step3Input asks for categories of aggregated content.
type Step3Input struct {
	RunID    string `json:"runId"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

// Step3 generates and stores categories, then moves the run to prompts.
func (o *Orchestrator) Step3(ctx context.Context, in Step3Input) (cats []database.Category, err error) {
	defer o.observe(database.StepCategories, time.Now(), &err)

	run, err := o.store.GetRun(ctx, in.RunID)
	if err != nil {
		return nil, err
	}
	language := in.Language
	if language == "" {
		language = run.Language
	}

	cats, err = o.categories.Generate(ctx, run.ID, in.Content, language)
	if err != nil {
		return nil, fmt.Errorf("generating categories: %w", err)
	}
	if err := o.store.SaveCategories(ctx, cats); err != nil {
		return nil, fmt.Errorf("saving categories: %w", err)
	}

	run.CurrentStep = database.StepPrompts
	if err := o.store.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("advancing run: %w", err)
	}
	o.logger.Info("categories generated", zap.String("run_id", run.ID), zap.Int("count", len(cats)))
	return cats, nil
}

// CustomCategory is a user-defined category.
type CustomCategory struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// SaveCategories records the user's category selection and stores custom
// categories so prompts can reference them.
func (o *Orchestrator) SaveCategories(ctx context.Context, runID string, selected []string, custom []CustomCategory) ([]database.Category, error) {
	run, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	created := make([]database.Category, 0, len(custom))
	for i, c := range custom {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		created = append(created, database.Category{
			ID:          uuid.NewString(),
			RunID:       runID,
			Name:        name,
			Description: c.Description,
			Confidence:  1,
			SourceURLs:  []string{},
			CreatedAt:   ts.Add(time.Duration(i) * time.Microsecond),
		})
	}
	if len(created) > 0 {
		if err := o.store.SaveCategories(ctx, created); err != nil {
			return nil, fmt.Errorf("saving custom categories: %w", err)
		}
	}

	if selected == nil {
		selected = []string{}
	}
	run.SelectedCategories = selected
	run.CustomCategories = created
	if err := o.store.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("saving selection: %w", err)
	}
	return created, nil
}

// Step4Input asks for prompts. Categories default to the run's selection.
type Step4Input struct {
	RunID                string              `json:"runId"`
	Categories           []database.Category `json:"categories"`
	UserInput            generate.UserInput  `json:"userInput"`
	Content              string              `json:"content"`
	QuestionsPerCategory int                 `json:"questionsPerCategory"`
}

// Step4 generates exactly QuestionsPerCategory prompts per category. Prompts
// are kept in the run's progress until execution persists the answered ones.
func (o *Orchestrator) Step4(ctx context.Context, in Step4Input) (prompts []database.Prompt, err error) {
	defer o.observe(database.StepPrompts, time.Now(), &err)

	run, err := o.store.GetRun(ctx, in.RunID)
	if err != nil {
		return nil, err
	}

	cats := in.Categories
	if len(cats) == 0 {
		if cats, err = o.selectedCategories(ctx, run); err != nil {
			return nil, err
		}
	} else {
		owned, err := o.store.GetCategories(ctx, run.ID)
		if err != nil {
			return nil, fmt.Errorf("loading categories: %w", err)
		}
		ids := make(map[string]struct{}, len(owned))
		for _, c := range owned {
			ids[c.ID] = struct{}{}
		}
		// ids this run does not own may belong to another run
		for i := range cats {
			cats[i].RunID = run.ID
			if _, ok := ids[cats[i].ID]; !ok {
				cats[i].ID = uuid.NewString()
			}
		}
		if err := o.store.SaveCategories(ctx, cats); err != nil {
			return nil, fmt.Errorf("saving categories: %w", err)
		}
	}

	count := in.QuestionsPerCategory
	if count < 0 {
		count = o.questions
	}
	userInput := in.UserInput
	if userInput.WebsiteURL == "" {
		userInput.WebsiteURL = run.WebsiteURL
	}
	if userInput.Country == "" {
		userInput.Country = run.Country
	}
	if userInput.Region == "" && run.Region != nil {
		userInput.Region = *run.Region
	}
	if userInput.Language == "" {
		userInput.Language = run.Language
	}

	prompts = o.prompts.GenerateAll(ctx, cats, userInput, in.Content, count)
	if want := count * len(cats); len(prompts) != want {
		o.logger.Warn("prompt count diverged",
			zap.String("run_id", run.ID), zap.Int("requested", want), zap.Int("generated", len(prompts)))
	}

	run.Progress = progress(run)
	run.Progress["prompts"] = prompts
	run.PromptsGenerated = len(prompts)
	run.CurrentStep = database.StepExecution
	if err := o.store.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("saving prompts: %w", err)
	}
	return prompts, nil
}

// selectedCategories returns the run's stored categories narrowed to the
// user's selection plus custom categories, or all when nothing was selected.
func (o *Orchestrator) selectedCategories(ctx context.Context, run *database.AnalysisRun) ([]database.Category, error) {
	all, err := o.store.GetCategories(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("loading categories: %w", err)
	}
	if len(run.SelectedCategories) == 0 && len(run.CustomCategories) == 0 {
		return all, nil
	}

	keep := make(map[string]struct{}, len(run.SelectedCategories)+len(run.CustomCategories))
	for _, id := range run.SelectedCategories {
		keep[id] = struct{}{}
	}
	for _, c := range run.CustomCategories {
		keep[c.ID] = struct{}{}
	}
	out := make([]database.Category, 0, len(keep))
	for _, c := range all {
		if _, ok := keep[c.ID]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// Step5Input asks for execution. Prompts default to those stored by Step4.
type Step5Input struct {
	RunID   string            `json:"runId"`
	Prompts []database.Prompt `json:"prompts"`
}

// Step5Result reports what execution and analysis produced.
type Step5Result struct {
	RunID     string    `json:"runId"`
	Requested int       `json:"requested"`
	Executed  int       `json:"executed"`
	Analysis  *Analysis `json:"result"`
}

// Step5 executes prompts one at a time, persists only the answered ones and
// runs the analysis pass. Individual prompt failures are logged and skipped.
func (o *Orchestrator) Step5(ctx context.Context, in Step5Input) (res *Step5Result, err error) {
	defer o.observe(database.StepExecution, time.Now(), &err)

	run, err := o.store.GetRun(ctx, in.RunID)
	if err != nil {
		return nil, err
	}
	prompts := in.Prompts
	if len(prompts) == 0 {
		prompts = storedPrompts(run)
	}

	limit := rate.Inf
	if o.promptDelay > 0 {
		limit = rate.Every(o.promptDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	var executed []database.ExecutedPrompt
	for _, p := range prompts {
		if err := limiter.Wait(ctx); err != nil {
			o.logger.Warn("execution interrupted", zap.String("run_id", run.ID), zap.Error(err))
			break
		}
		p.RunID = run.ID
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		result, err := o.executor.Execute(ctx, p)
		if err != nil {
			o.logger.Warn("prompt execution failed",
				zap.String("run_id", run.ID), zap.String("prompt_id", p.ID), zap.Error(err))
			continue
		}
		if strings.TrimSpace(result.OutputText) == "" {
			continue
		}
		executed = append(executed, toExecuted(p, result))
	}
	if len(executed) != len(prompts) {
		o.logger.Warn("not every prompt was answered",
			zap.String("run_id", run.ID), zap.Int("requested", len(prompts)), zap.Int("executed", len(executed)))
	}

	if err := o.store.SaveExecutions(ctx, executed); err != nil {
		o.markFailed(ctx, run, err)
		return nil, fmt.Errorf("saving executions: %w", err)
	}

	run.Status = database.StatusCompleted
	run.CurrentStep = database.StepCompleted
	if err := o.store.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("completing run: %w", err)
	}

	analysis, err := o.analyzeRun(ctx, run)
	if err != nil {
		return nil, err
	}
	return &Step5Result{
		RunID:     run.ID,
		Requested: len(prompts),
		Executed:  len(executed),
		Analysis:  analysis,
	}, nil
}

func toExecuted(p database.Prompt, r *execute.Result) database.ExecutedPrompt {
	respID := uuid.NewString()
	cites := make([]database.Citation, 0, len(r.Citations))
	for _, c := range r.Citations {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.ResponseID = respID
		cites = append(cites, c)
	}
	return database.ExecutedPrompt{
		Prompt: p,
		Response: database.LLMResponse{
			ID:         respID,
			PromptID:   p.ID,
			OutputText: r.OutputText,
			Model:      r.Model,
			CreatedAt:  r.Timestamp,
		},
		Citations: cites,
	}
}

func progress(run *database.AnalysisRun) map[string]any {
	if run.Progress == nil {
		return map[string]any{}
	}
	return run.Progress
}

// storedPrompts decodes the prompts Step4 left in the run's progress.
func storedPrompts(run *database.AnalysisRun) []database.Prompt {
	raw, ok := run.Progress["prompts"]
	if !ok {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var prompts []database.Prompt
	if err := json.Unmarshal(data, &prompts); err != nil {
		return nil
	}
	return prompts
}
