// Package generate turns categories into customer-style questions with an
// exact per-category count.
package generate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/TobiSchelling/BrandLens/internal/database"
	"github.com/TobiSchelling/BrandLens/internal/llm"
	"github.com/TobiSchelling/BrandLens/internal/metrics"
)

const systemPrompt = `You write realistic questions that potential customers ask an AI assistant when looking for a product or provider. Respond with JSON only.`

const questionPrompt = `Generate exactly %d questions a potential customer in %s might ask about the topic "%s" (%s).

About the business: %s

Website content excerpt:
%s

Rules:
- Write every question in %s.
- Never mention any company, brand or product name.
- Prefer "Who offers...", "Who sells...", "Which company is..." over "How do I..." questions.
- Every question must mention %s.

Respond with ONLY this JSON:
{"questions": ["question 1", "question 2"]}`

const maxExcerptChars = 3000

// UserInput is the locale and business context prompts are generated for.
type UserInput struct {
	WebsiteURL  string `json:"websiteUrl"`
	Country     string `json:"country"`
	Region      string `json:"region,omitempty"`
	Language    string `json:"language"`
	Description string `json:"description,omitempty"`
}

// Locale returns the region when set, otherwise the country.
func (in UserInput) Locale() string {
	if in.Region != "" {
		return in.Region
	}
	return in.Country
}

// Generator produces prompts per category.
type Generator struct {
	provider llm.Provider
	delay    time.Duration
	logger   *zap.Logger
}

// New creates a prompt generator. delay spaces consecutive LLM calls in GenerateAll.
func New(provider llm.Provider, delay time.Duration, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{provider: provider, delay: delay, logger: logger.Named("generate")}
}

// Generate returns exactly count prompts for category. Questions the LLM
// does not deliver are filled from templates.
func (g *Generator) Generate(ctx context.Context, category database.Category, in UserInput, content string, count int) []database.Prompt {
	if count <= 0 {
		return []database.Prompt{}
	}

	questions, err := g.fromLLM(ctx, category, in, content, count)
	if err != nil {
		g.logger.Warn("question generation failed, using templates",
			zap.String("category", category.Name),
			zap.Error(err),
		)
		metrics.FallbacksUsed.WithLabelValues("generate", "template").Inc()
	}
	if len(questions) > count {
		questions = questions[:count]
	}
	if short := count - len(questions); short > 0 {
		if err == nil {
			g.logger.Warn("LLM returned fewer questions than requested",
				zap.String("category", category.Name),
				zap.Int("requested", count),
				zap.Int("generated", len(questions)),
			)
			metrics.FallbacksUsed.WithLabelValues("generate", "template_padding").Inc()
		}
		questions = append(questions, templateQuestions(category.Name, in, short, len(questions))...)
	}

	return toPrompts(category, in, questions)
}

func (g *Generator) fromLLM(ctx context.Context, category database.Category, in UserInput, content string, count int) ([]string, error) {
	if g.provider == nil {
		return nil, llm.ErrNotConfigured
	}

	locale := in.Locale()
	about := in.Description
	if about == "" {
		about = in.WebsiteURL
	}
	user := fmt.Sprintf(questionPrompt,
		count, locale, category.Name, category.Description,
		about, excerpt(content, maxExcerptChars),
		llm.LanguageName(in.Language), locale,
	)

	out, err := g.provider.GenerateJSON(ctx, systemPrompt, user)
	if err != nil {
		return nil, err
	}
	parsed := llm.ParseJSONResponse(out)
	if parsed == nil {
		return nil, fmt.Errorf("unparsable question response")
	}
	return llm.Strings(parsed["questions"]), nil
}

// GenerateAll runs Generate for every category, one LLM call at a time
// spaced by the configured delay, then re-checks that each category holds
// exactly count prompts. The result always has count × len(categories) prompts.
func (g *Generator) GenerateAll(ctx context.Context, categories []database.Category, in UserInput, content string, count int) []database.Prompt {
	limit := rate.Inf
	if g.delay > 0 {
		limit = rate.Every(g.delay)
	}
	limiter := rate.NewLimiter(limit, 1)

	var all []database.Prompt
	for _, c := range categories {
		if err := limiter.Wait(ctx); err != nil {
			// cancelled or deadline too close: fill the rest without the LLM
			g.logger.Warn("rate limiter wait aborted", zap.String("category", c.Name), zap.Error(err))
			all = append(all, toPrompts(c, in, templateQuestions(c.Name, in, count, 0))...)
			continue
		}
		all = append(all, g.Generate(ctx, c, in, content, count)...)
	}

	return g.enforceCounts(categories, in, all, count)
}

// enforceCounts regroups prompts by category and truncates or pads each
// group to count. Divergences are logged, never returned as errors.
func (g *Generator) enforceCounts(categories []database.Category, in UserInput, prompts []database.Prompt, count int) []database.Prompt {
	byCategory := make(map[string][]database.Prompt, len(categories))
	for _, p := range prompts {
		byCategory[p.CategoryID] = append(byCategory[p.CategoryID], p)
	}

	out := make([]database.Prompt, 0, count*len(categories))
	for _, c := range categories {
		group := byCategory[c.ID]
		switch {
		case len(group) > count:
			g.logger.Warn("truncating category prompts",
				zap.String("category", c.Name), zap.Int("have", len(group)), zap.Int("want", count))
			group = group[:count]
		case len(group) < count:
			g.logger.Warn("padding category prompts",
				zap.String("category", c.Name), zap.Int("have", len(group)), zap.Int("want", count))
			group = append(group, toPrompts(c, in, templateQuestions(c.Name, in, count-len(group), len(group)))...)
		}
		out = append(out, group...)
	}

	if want := count * len(categories); len(prompts) != want {
		g.logger.Warn("prompt total diverged from request",
			zap.Int("requested", want), zap.Int("generated", len(prompts)))
	}
	return out
}

func toPrompts(category database.Category, in UserInput, questions []string) []database.Prompt {
	ts := time.Now().UTC()
	out := make([]database.Prompt, 0, len(questions))
	for i, q := range questions {
		out = append(out, database.Prompt{
			ID:         uuid.NewString(),
			RunID:      category.RunID,
			CategoryID: category.ID,
			Question:   q,
			Language:   in.Language,
			Country:    in.Country,
			Region:     in.Region,
			Intent:     ClassifyIntent(q),
			CreatedAt:  ts.Add(time.Duration(i) * time.Microsecond),
		})
	}
	return out
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
