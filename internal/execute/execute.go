// Package execute submits questions to the answer-generation API and turns
// its variably-shaped payload into answer text and citations.
package execute

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/TobiSchelling/BrandLens/internal/archive"
	"github.com/TobiSchelling/BrandLens/internal/database"
	"github.com/TobiSchelling/BrandLens/internal/metrics"
)

var (
	// ErrEmptyOutput is returned when no extractor finds answer text.
	ErrEmptyOutput = errors.New("empty output text")
	// ErrProviderStatus wraps non-2xx provider responses.
	ErrProviderStatus = errors.New("provider returned non-success status")
)

// DebugModel is reported as the model of canned debug responses.
const DebugModel = "debug"

// Result is one executed prompt.
type Result struct {
	PromptID   string              `json:"promptId"`
	OutputText string              `json:"outputText"`
	Citations  []database.Citation `json:"citations"`
	Timestamp  time.Time           `json:"timestamp"`
	Model      string              `json:"model"`
}

// Archiver receives raw provider payloads.
type Archiver interface {
	Put(ctx context.Context, key string, body []byte) error
}

// Options configures an Executor.
type Options struct {
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
	Debug    bool
	Archiver Archiver
	Logger   *zap.Logger
}

// Executor runs prompts against the responses endpoint with web search enabled.
type Executor struct {
	opts   Options
	client *http.Client
	logger *zap.Logger
}

// New creates an executor.
func New(opts Options) *Executor {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com/v1"
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		opts:   opts,
		client: &http.Client{},
		logger: logger.Named("execute"),
	}
}

type responsesRequest struct {
	Model string           `json:"model"`
	Tools []map[string]any `json:"tools"`
	Input string           `json:"input"`
}

// Execute submits one prompt. It fails on transport errors, non-2xx
// statuses and payloads with no extractable text.
func (e *Executor) Execute(ctx context.Context, prompt database.Prompt) (*Result, error) {
	if e.opts.Debug {
		return cannedResult(prompt), nil
	}

	start := time.Now()
	body, err := e.post(ctx, prompt.Question)
	metrics.LLMLatency.WithLabelValues("answer").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMRequests.WithLabelValues("answer", metrics.OutcomeError).Inc()
		return nil, err
	}

	if e.opts.Archiver != nil {
		key := archive.Key(prompt.RunID, prompt.ID)
		if err := e.opts.Archiver.Put(ctx, key, body); err != nil {
			e.logger.Warn("archiving raw response failed", zap.String("key", key), zap.Error(err))
		}
	}

	ex, shape := extract(body)
	if strings.TrimSpace(ex.text) == "" {
		metrics.LLMRequests.WithLabelValues("answer", metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("prompt %s: %w", prompt.ID, ErrEmptyOutput)
	}
	metrics.LLMRequests.WithLabelValues("answer", metrics.OutcomeSuccess).Inc()

	e.logger.Debug("prompt executed",
		zap.String("prompt_id", prompt.ID),
		zap.String("shape", shape),
		zap.Int("annotations", len(ex.annotations)),
	)

	model := gjson.GetBytes(body, "model").String()
	if model == "" {
		model = e.opts.Model
	}
	return &Result{
		PromptID:   prompt.ID,
		OutputText: ex.text,
		Citations:  citations(ex),
		Timestamp:  time.Now().UTC(),
		Model:      model,
	}, nil
}

func (e *Executor) post(ctx context.Context, question string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	payload, err := json.Marshal(responsesRequest{
		Model: e.opts.Model,
		Tools: []map[string]any{{"type": "web_search"}},
		Input: question,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.opts.BaseURL+"/responses", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.opts.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("responses API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d: %s", ErrProviderStatus, resp.StatusCode, truncate(string(body), 300))
	}
	return body, nil
}

// citations keeps url_citation annotations, first occurrence per URL.
func citations(ex extraction) []database.Citation {
	seen := make(map[string]struct{})
	out := []database.Citation{}
	for _, a := range ex.annotations {
		if a.kind != "url_citation" || a.url == "" {
			continue
		}
		if _, ok := seen[a.url]; ok {
			continue
		}
		seen[a.url] = struct{}{}
		out = append(out, database.Citation{
			ID:      uuid.NewString(),
			URL:     a.url,
			Title:   a.title,
			Snippet: snippet(ex.text, a.start, a.end),
		})
	}
	return out
}

func cannedResult(prompt database.Prompt) *Result {
	text := "Here are some well-known providers worth considering. " +
		"[Example Corp](https://example.com/products) is frequently recommended for its product range. " +
		"Independent reviews on [Review Hub](https://reviews.example.org/top-providers) compare pricing and support. " +
		"Industry coverage from [Market News](https://news.example.net/market-overview) lists further options."
	return &Result{
		PromptID:   prompt.ID,
		OutputText: text,
		Citations: []database.Citation{
			{ID: uuid.NewString(), URL: "https://example.com/products", Title: "Example Corp products"},
			{ID: uuid.NewString(), URL: "https://reviews.example.org/top-providers", Title: "Top providers reviewed"},
			{ID: uuid.NewString(), URL: "https://news.example.net/market-overview", Title: "Market overview"},
		},
		Timestamp: time.Now().UTC(),
		Model:     DebugModel,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
