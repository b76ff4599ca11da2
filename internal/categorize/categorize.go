package categorize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TobiSchelling/BrandLens/internal/database"
	"github.com/TobiSchelling/BrandLens/internal/llm"
	"github.com/TobiSchelling/BrandLens/internal/metrics"
)

const systemPrompt = `You analyze website content and group it into topics customers ask about. Respond with JSON only.`

const categoryPrompt = `Analyze the following website content and derive between 15 and 20 topical categories
that describe what customers might ask about this business.

Write category names and descriptions in this language: %s

Website content:
%s

Respond with ONLY this JSON:
{
    "categories": [
        {"name": "Short category name", "description": "One sentence describing the category"}
    ]
}`

const (
	maxContentChars  = 8000
	llmConfidence    = 0.8
	keywordThreshold = 0.3
	fallbackLimit    = 15
)

var (
	// ErrUnparsable is returned when the LLM output has no usable categories.
	ErrUnparsable = errors.New("unparsable category response")
	// ErrNoCategories is returned when every strategy came up empty.
	ErrNoCategories = errors.New("no categories generated")
)

type candidate struct {
	name        string
	description string
	confidence  float64
	sourceURLs  []string
}

type strategy struct {
	name string
	run  func(ctx context.Context, content, language string) ([]candidate, error)
}

// Generator derives categories from aggregated site content.
type Generator struct {
	provider llm.Provider
	logger   *zap.Logger
}

// New creates a category generator. A nil provider skips the LLM stage.
func New(provider llm.Provider, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{provider: provider, logger: logger.Named("categorize")}
}

// Generate returns at least one category. Strategies run in order
// (LLM, keyword matcher, generic) and the first non-empty result wins.
func (g *Generator) Generate(ctx context.Context, runID, content, language string) ([]database.Category, error) {
	strategies := []strategy{
		{name: "llm", run: g.fromLLM},
		{name: "keyword", run: fromKeywords},
		{name: "generic", run: fromGeneric},
	}

	for i, s := range strategies {
		cands, err := s.run(ctx, content, language)
		if err != nil {
			g.logger.Warn("category strategy failed", zap.String("strategy", s.name), zap.Error(err))
		}
		if len(cands) == 0 {
			continue
		}
		if i > 0 {
			metrics.FallbacksUsed.WithLabelValues("categorize", s.name).Inc()
		}
		g.logger.Info("categories generated",
			zap.String("run_id", runID),
			zap.String("strategy", s.name),
			zap.Int("count", len(cands)),
		)
		return toCategories(runID, cands), nil
	}
	return nil, ErrNoCategories
}

func (g *Generator) fromLLM(ctx context.Context, content, language string) ([]candidate, error) {
	if g.provider == nil {
		return nil, llm.ErrNotConfigured
	}

	text := truncateRunes(content, maxContentChars)
	out, err := g.provider.GenerateJSON(ctx, systemPrompt, fmt.Sprintf(categoryPrompt, llm.LanguageName(language), text))
	if err != nil {
		return nil, err
	}

	parsed := llm.ParseJSONResponse(out)
	if parsed == nil {
		return nil, ErrUnparsable
	}
	items, _ := parsed["categories"].([]any)

	var cands []candidate
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name := llm.GetString(m, "name")
		if name == "" {
			continue
		}
		cands = append(cands, candidate{
			name:        name,
			description: llm.GetString(m, "description"),
			confidence:  llmConfidence,
		})
	}
	if len(cands) == 0 {
		return nil, ErrUnparsable
	}

	// backfill with keyword topics the model did not name
	cands = append(cands, matchKeywords(content, keywordThreshold, 0)...)
	return dedupe(cands), nil
}

func fromKeywords(_ context.Context, content, _ string) ([]candidate, error) {
	return matchKeywords(content, keywordThreshold, fallbackLimit), nil
}

func fromGeneric(context.Context, string, string) ([]candidate, error) {
	return genericCategories, nil
}

// dedupe drops candidates whose lowercased name was already seen.
func dedupe(cands []candidate) []candidate {
	seen := make(map[string]struct{}, len(cands))
	out := cands[:0:0]
	for _, c := range cands {
		key := strings.ToLower(strings.TrimSpace(c.name))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

func toCategories(runID string, cands []candidate) []database.Category {
	ts := time.Now().UTC()
	out := make([]database.Category, 0, len(cands))
	for i, c := range cands {
		sources := c.sourceURLs
		if sources == nil {
			sources = []string{}
		}
		out = append(out, database.Category{
			ID:          uuid.NewString(),
			RunID:       runID,
			Name:        c.name,
			Description: c.description,
			Confidence:  c.confidence,
			SourceURLs:  sources,
			// distinct timestamps keep creation order stable when read back
			CreatedAt: ts.Add(time.Duration(i) * time.Microsecond),
		})
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
