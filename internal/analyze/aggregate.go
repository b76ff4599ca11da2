package analyze

import (
	"sort"
	"strings"

	"github.com/TobiSchelling/BrandLens/internal/database"
)

const (
	pointsExact    = 10
	pointsFuzzy    = 5
	pointsCitation = 2
	pointsTone     = 5
	// maxPromptPoints is the theoretical best score of a single prompt.
	maxPromptPoints = 50

	maxTopPrompts     = 10
	maxBrandCitations = 20
)

// PromptPoints is the weighted visibility score of one analysis.
func PromptPoints(a database.PromptAnalysis) float64 {
	p := float64(a.ExactMentions*pointsExact + a.FuzzyMentions*pointsFuzzy + a.CitationCount*pointsCitation)
	switch a.Sentiment.Tone {
	case database.TonePositive:
		p += pointsTone
	case database.ToneNegative:
		p -= pointsTone
	}
	return p
}

// VisibilityScore normalizes the summed points of analyses to 0..100.
func VisibilityScore(analyses []database.PromptAnalysis) float64 {
	if len(analyses) == 0 {
		return 0
	}
	var sum float64
	for _, a := range analyses {
		sum += PromptPoints(a)
	}
	score := sum / float64(maxPromptPoints*len(analyses)) * 100
	return min(max(score, 0), 100)
}

// CategoryMetrics groups analyses by category, keeping first-seen order.
// Rates are percentages of the category's prompts.
func CategoryMetrics(runID string, rows []database.CategoryAnalysis) []database.CategoryMetric {
	var order []string
	names := make(map[string]string)
	groups := make(map[string][]database.PromptAnalysis)
	for _, r := range rows {
		if _, ok := groups[r.CategoryID]; !ok {
			order = append(order, r.CategoryID)
			names[r.CategoryID] = r.CategoryName
		}
		groups[r.CategoryID] = append(groups[r.CategoryID], r.Analysis)
	}

	out := make([]database.CategoryMetric, 0, len(order))
	for _, id := range order {
		as := groups[id]
		var mentioned, cited, competing int
		for _, a := range as {
			if a.Mentions() > 0 {
				mentioned++
			}
			if a.CitationCount > 0 {
				cited++
			}
			if len(a.Competitors) > 0 {
				competing++
			}
		}
		n := float64(len(as))
		out = append(out, database.CategoryMetric{
			RunID:           runID,
			CategoryID:      id,
			CategoryName:    names[id],
			VisibilityScore: VisibilityScore(as),
			MentionRate:     float64(mentioned) / n * 100,
			CitationRate:    float64(cited) / n * 100,
			CompetitorRate:  float64(competing) / n * 100,
		})
	}
	return out
}

// Competitive reports the run-level share split. Competitor detection is not
// wired in, so the brand always holds the whole share.
func Competitive([]database.PromptAnalysis) database.CompetitiveShare {
	return database.CompetitiveShare{
		BrandShare:       100,
		CompetitorShares: map[string]float64{},
		CompetitorCounts: map[string]int{},
	}
}

// TimeSeries counts responses and brand mentions per response day.
func TimeSeries(executions []database.ExecutedPrompt, analyses map[string]database.PromptAnalysis) []database.TimeSeriesPoint {
	byDay := make(map[string]*database.TimeSeriesPoint)
	for _, ex := range executions {
		day := ex.Response.CreatedAt.UTC().Format("2006-01-02")
		p, ok := byDay[day]
		if !ok {
			p = &database.TimeSeriesPoint{Date: day}
			byDay[day] = p
		}
		p.Responses++
		p.Mentions += analyses[ex.Prompt.ID].Mentions()
	}

	out := make([]database.TimeSeriesPoint, 0, len(byDay))
	for _, p := range byDay {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Summarize builds the run rollup from executed prompts and their analyses.
func Summarize(runID, brand string, executions []database.ExecutedPrompt, analyses map[string]database.PromptAnalysis) *database.Summary {
	token := DomainToken(brand)
	s := &database.Summary{
		RunID:             runID,
		TopPrompts:        []database.TopPrompt{},
		ExternalDomains:   map[string]int{},
		WhiteSpacePrompts: []database.TopPrompt{},
		BrandCitations:    []database.BrandCitation{},
	}

	all := make([]database.PromptAnalysis, 0, len(executions))
	var ranked []database.TopPrompt
	for _, ex := range executions {
		a := analyses[ex.Prompt.ID]
		all = append(all, a)
		s.TotalMentions += a.Mentions()
		s.TotalCitations += a.CitationCount

		tp := database.TopPrompt{
			PromptID:  ex.Prompt.ID,
			Question:  ex.Prompt.Question,
			Mentions:  a.Mentions(),
			Citations: a.CitationCount,
		}
		if tp.Mentions == 0 {
			s.WhiteSpacePrompts = append(s.WhiteSpacePrompts, tp)
		}
		if tp.Mentions+tp.Citations > 0 {
			ranked = append(ranked, tp)
		}

		for _, c := range ex.Citations {
			d := domainOf(c.URL)
			if d == "" || (token != "" && strings.Contains(d, token)) {
				continue
			}
			s.ExternalDomains[d]++
		}

		for _, bc := range BrandCitations(ex.Prompt.ID, ex.Response.OutputText, ex.Citations, brand) {
			if len(s.BrandCitations) == maxBrandCitations {
				break
			}
			s.BrandCitations = append(s.BrandCitations, bc)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Mentions+ranked[i].Citations > ranked[j].Mentions+ranked[j].Citations
	})
	if len(ranked) > maxTopPrompts {
		ranked = ranked[:maxTopPrompts]
	}
	if ranked != nil {
		s.TopPrompts = ranked
	}
	s.Competitive = Competitive(all)
	return s
}
