package analyze

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/BrandLens/internal/database"
)

func analysis(id string, exact, citations int, tone string) database.PromptAnalysis {
	return database.PromptAnalysis{
		PromptID:      id,
		ExactMentions: exact,
		CitationCount: citations,
		Sentiment:     database.Sentiment{Tone: tone},
	}
}

func TestPromptPoints(t *testing.T) {
	assert.Equal(t, 27.0, PromptPoints(analysis("a", 2, 1, database.TonePositive)))
	assert.Equal(t, -5.0, PromptPoints(analysis("b", 0, 0, database.ToneNegative)))
	assert.Equal(t, 10.0, PromptPoints(analysis("c", 1, 0, database.ToneMixed)))
}

func TestVisibilityScore(t *testing.T) {
	assert.InDelta(t, 22.0, VisibilityScore([]database.PromptAnalysis{
		analysis("a", 2, 1, database.TonePositive),
		analysis("b", 0, 0, database.ToneNegative),
	}), 1e-9)
	assert.Equal(t, 100.0, VisibilityScore([]database.PromptAnalysis{analysis("a", 10, 5, database.TonePositive)}))
	assert.Equal(t, 0.0, VisibilityScore([]database.PromptAnalysis{analysis("a", 0, 0, database.ToneNegative)}))
	assert.Equal(t, 0.0, VisibilityScore(nil))
}

func TestCategoryMetrics(t *testing.T) {
	rows := []database.CategoryAnalysis{
		{CategoryID: "c1", CategoryName: "Pricing", Analysis: analysis("p1", 1, 1, database.ToneNeutral)},
		{CategoryID: "c2", CategoryName: "Support", Analysis: analysis("p3", 0, 0, database.ToneNeutral)},
		{CategoryID: "c1", CategoryName: "Pricing", Analysis: analysis("p2", 0, 0, database.ToneNeutral)},
	}

	got := CategoryMetrics("run-1", rows)
	require.Len(t, got, 2)

	assert.Equal(t, "c1", got[0].CategoryID)
	assert.Equal(t, "Pricing", got[0].CategoryName)
	assert.Equal(t, "run-1", got[0].RunID)
	assert.InDelta(t, 50.0, got[0].MentionRate, 1e-9)
	assert.InDelta(t, 50.0, got[0].CitationRate, 1e-9)
	assert.InDelta(t, 12.0, got[0].VisibilityScore, 1e-9)
	assert.Equal(t, 0.0, got[0].CompetitorRate)

	assert.Equal(t, "c2", got[1].CategoryID)
	assert.Equal(t, 0.0, got[1].MentionRate)
}

func TestCompetitiveIsBrandOnly(t *testing.T) {
	c := Competitive([]database.PromptAnalysis{analysis("a", 3, 0, database.ToneNeutral)})
	assert.Equal(t, 100.0, c.BrandShare)
	assert.Empty(t, c.CompetitorShares)
	assert.Empty(t, c.CompetitorCounts)
}

func executed(id, question, text string, at time.Time, urls ...string) database.ExecutedPrompt {
	ex := database.ExecutedPrompt{
		Prompt:   database.Prompt{ID: id, RunID: "run-1", Question: question},
		Response: database.LLMResponse{PromptID: id, OutputText: text, CreatedAt: at},
	}
	for _, u := range urls {
		ex.Citations = append(ex.Citations, database.Citation{URL: u})
	}
	return ex
}

func TestTimeSeries(t *testing.T) {
	day1 := time.Date(2025, 3, 1, 23, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 2, 1, 0, 0, 0, time.UTC)
	execs := []database.ExecutedPrompt{
		executed("p2", "q2", "", day2),
		executed("p1", "q1", "", day1),
		executed("p3", "q3", "", day2),
	}
	analyses := map[string]database.PromptAnalysis{
		"p1": analysis("p1", 2, 0, ""),
		"p3": analysis("p3", 1, 0, ""),
	}

	got := TimeSeries(execs, analyses)
	assert.Equal(t, []database.TimeSeriesPoint{
		{Date: "2025-03-01", Responses: 1, Mentions: 2},
		{Date: "2025-03-02", Responses: 2, Mentions: 1},
	}, got)
}

func TestSummarize(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	execs := []database.ExecutedPrompt{
		executed("p1", "Who sells anvils?", "Acme does, see [Acme](https://acme.com).", at,
			"https://acme.com", "https://www.reviews.io/a", "https://reviews.io/b"),
		executed("p2", "Best hammers?", "Nobody knows.", at, "https://news.net/x"),
		executed("p3", "Anvil prices?", "Acme and Acme again.", at),
	}
	analyses := map[string]database.PromptAnalysis{}
	for _, ex := range execs {
		analyses[ex.Prompt.ID] = Analyze(ex.Prompt, ex.Response, ex.Citations, "Acme")
	}

	s := Summarize("run-1", "Acme", execs, analyses)
	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, 3, s.TotalMentions)
	assert.Equal(t, 1, s.TotalCitations)

	require.Len(t, s.TopPrompts, 2)
	assert.Equal(t, "p1", s.TopPrompts[0].PromptID, "ties keep execution order")
	assert.Equal(t, "p3", s.TopPrompts[1].PromptID)

	require.Len(t, s.WhiteSpacePrompts, 1)
	assert.Equal(t, "Best hammers?", s.WhiteSpacePrompts[0].Question)

	assert.Equal(t, map[string]int{"reviews.io": 2, "news.net": 1}, s.ExternalDomains)

	require.Len(t, s.BrandCitations, 1)
	assert.Equal(t, "https://acme.com", s.BrandCitations[0].URL)
	assert.Equal(t, 100.0, s.Competitive.BrandShare)
}

func TestSummarizeEmptyRun(t *testing.T) {
	s := Summarize("run-1", "Acme", nil, nil)
	assert.Equal(t, 0, s.TotalMentions)
	assert.NotNil(t, s.TopPrompts)
	assert.NotNil(t, s.WhiteSpacePrompts)
	assert.NotNil(t, s.ExternalDomains)
}
