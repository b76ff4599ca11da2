package database

import "time"

// RunStatus is the lifecycle state of an analysis run.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

var statusRank = map[RunStatus]int{
	StatusPending:   0,
	StatusRunning:   1,
	StatusCompleted: 2,
}

// Advance returns the status a run ends up in when next is requested.
// Status only moves forward; failed is terminal.
func (s RunStatus) Advance(next RunStatus) RunStatus {
	if s == StatusFailed || next == StatusFailed {
		return StatusFailed
	}
	cur, ok := statusRank[s]
	if !ok {
		return next
	}
	if n, ok := statusRank[next]; ok && n >= cur {
		return next
	}
	return s
}

// Step names persisted in analysis_runs.current_step.
const (
	StepSitemap    = "sitemap"
	StepContent    = "content"
	StepCategories = "categories"
	StepPrompts    = "prompts"
	StepExecution  = "execution"
	StepCompleted  = "completed"
	StepFailed     = "failed"
)

// AnalysisRun is one end-to-end invocation for one website configuration.
type AnalysisRun struct {
	ID                 string         `json:"id"`
	WebsiteURL         string         `json:"websiteUrl"`
	BrandName          string         `json:"brandName"`
	Country            string         `json:"country"`
	Region             *string        `json:"region,omitempty"`
	Language           string         `json:"language"`
	Status             RunStatus      `json:"status"`
	CurrentStep        string         `json:"currentStep"`
	Progress           map[string]any `json:"progress,omitempty"`
	URLs               []string       `json:"urls"`
	FoundSitemap       bool           `json:"foundSitemap"`
	SelectedCategories []string       `json:"selectedCategories,omitempty"`
	CustomCategories   []Category     `json:"customCategories,omitempty"`
	PromptsGenerated   int            `json:"promptsGenerated"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

// Locale returns the region when set, otherwise the country.
func (r *AnalysisRun) Locale() string {
	if r.Region != nil && *r.Region != "" {
		return *r.Region
	}
	return r.Country
}

// Category is a topical grouping derived from site content.
type Category struct {
	ID          string    `json:"id"`
	RunID       string    `json:"runId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Confidence  float64   `json:"confidence"`
	SourceURLs  []string  `json:"sourceUrls"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Intent levels for generated prompts.
const (
	IntentLow    = "low"
	IntentMedium = "medium"
	IntentHigh   = "high"
)

// Prompt is one generated customer question.
type Prompt struct {
	ID         string    `json:"id"`
	RunID      string    `json:"runId"`
	CategoryID string    `json:"categoryId"`
	Question   string    `json:"question"`
	Language   string    `json:"language"`
	Country    string    `json:"country"`
	Region     string    `json:"region"`
	Intent     string    `json:"intent"`
	CreatedAt  time.Time `json:"createdAt"`
}

// LLMResponse is one answer to one prompt.
type LLMResponse struct {
	ID         string    `json:"id"`
	PromptID   string    `json:"promptId"`
	OutputText string    `json:"outputText"`
	Model      string    `json:"model"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Citation is a source reference extracted from a response.
type Citation struct {
	ID         string `json:"id"`
	ResponseID string `json:"responseId"`
	URL        string `json:"url"`
	Title      string `json:"title,omitempty"`
	Snippet    string `json:"snippet,omitempty"`
}

// Sentiment tones.
const (
	TonePositive = "positive"
	ToneNegative = "negative"
	ToneNeutral  = "neutral"
	ToneMixed    = "mixed"
)

// Sentiment is the keyword-based tone of an answer.
type Sentiment struct {
	Tone       string   `json:"tone"`
	Confidence float64  `json:"confidence"`
	Keywords   []string `json:"keywords"`
}

// CompetitorMention records a competitor found in an answer.
type CompetitorMention struct {
	Name         string   `json:"name"`
	Count        int      `json:"count"`
	Contexts     []string `json:"contexts"`
	CitationURLs []string `json:"citationUrls"`
}

// PromptAnalysis holds derived metrics for one (prompt, response) pair.
type PromptAnalysis struct {
	PromptID        string              `json:"promptId"`
	RunID           string              `json:"runId"`
	ExactMentions   int                 `json:"exactMentions"`
	FuzzyMentions   int                 `json:"fuzzyMentions"`
	MentionContexts []string            `json:"mentionContexts"`
	CitationCount   int                 `json:"citationCount"`
	CitationURLs    []string            `json:"citationUrls"`
	Sentiment       Sentiment           `json:"sentiment"`
	Competitors     []CompetitorMention `json:"competitors"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// Mentions returns exact plus fuzzy mentions.
func (a PromptAnalysis) Mentions() int {
	return a.ExactMentions + a.FuzzyMentions
}

// CategoryAnalysis pairs an analysis with the category of its prompt.
type CategoryAnalysis struct {
	CategoryID   string
	CategoryName string
	Analysis     PromptAnalysis
}

// CategoryMetric is the per-category aggregate for a run.
type CategoryMetric struct {
	ID              string    `json:"id"`
	RunID           string    `json:"runId"`
	CategoryID      string    `json:"categoryId"`
	CategoryName    string    `json:"categoryName"`
	VisibilityScore float64   `json:"visibilityScore"`
	CitationRate    float64   `json:"citationRate"`
	MentionRate     float64   `json:"mentionRate"`
	CompetitorRate  float64   `json:"competitorRate"`
	CreatedAt       time.Time `json:"createdAt"`
}

// TimeSeriesPoint counts responses and mentions for one day.
type TimeSeriesPoint struct {
	Date      string `json:"date"`
	Responses int    `json:"responses"`
	Mentions  int    `json:"mentions"`
}

// TopPrompt is one entry of the summary's best-prompt ranking.
type TopPrompt struct {
	PromptID  string `json:"promptId"`
	Question  string `json:"question"`
	Mentions  int    `json:"mentions"`
	Citations int    `json:"citations"`
}

// CompetitiveShare is the run-level competitive split.
type CompetitiveShare struct {
	BrandShare       float64            `json:"brandShare"`
	CompetitorShares map[string]float64 `json:"competitorShares"`
	CompetitorCounts map[string]int     `json:"competitorCounts"`
}

// BrandCitation is a provider citation that points at or names the brand.
type BrandCitation struct {
	PromptID string `json:"promptId"`
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	Context  string `json:"context,omitempty"`
}

// Summary is the per-run rollup.
type Summary struct {
	ID                string           `json:"id"`
	RunID             string           `json:"runId"`
	TotalMentions     int              `json:"totalMentions"`
	TotalCitations    int              `json:"totalCitations"`
	TopPrompts        []TopPrompt      `json:"topPrompts"`
	ExternalDomains   map[string]int   `json:"externalDomains"`
	WhiteSpacePrompts []TopPrompt      `json:"whiteSpacePrompts"`
	BrandCitations    []BrandCitation  `json:"brandCitations"`
	Competitive       CompetitiveShare `json:"competitive"`
	CreatedAt         time.Time        `json:"createdAt"`
}

// ExecutedPrompt bundles a prompt with the response and citations it produced.
type ExecutedPrompt struct {
	Prompt    Prompt
	Response  LLMResponse
	Citations []Citation
}

// Stats holds counts used by the status command.
type Stats struct {
	Runs          int
	CompletedRuns int
	Prompts       int
	Responses     int
	Citations     int
}
