package server

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/TobiSchelling/BrandLens/internal/database"
)

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

const maxReportDomains = 15

// GET /api/runs/{runId}/report
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) error {
	runID := chi.URLParam(r, "runId")
	run, err := s.db.GetRun(r.Context(), runID)
	if err != nil {
		return err
	}
	summary, err := s.db.GetSummary(r.Context(), runID)
	if err != nil {
		return err
	}
	metrics, err := s.db.GetCategoryMetrics(r.Context(), runID)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	err = s.report.Execute(&buf, map[string]any{
		"Title":    "Brand visibility: " + run.BrandName,
		"Markdown": Report(run, summary, metrics),
	})
	if err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
	return nil
}

// Report renders a run's results as markdown.
func Report(run *database.AnalysisRun, summary *database.Summary, metrics []database.CategoryMetric) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Brand visibility: %s\n\n", run.BrandName)
	fmt.Fprintf(&b, "- Website: %s\n", run.WebsiteURL)
	fmt.Fprintf(&b, "- Locale: %s (%s)\n", run.Locale(), run.Language)
	fmt.Fprintf(&b, "- Status: %s\n", run.Status)
	fmt.Fprintf(&b, "- Created: %s\n\n", run.CreatedAt.Format("2006-01-02 15:04 MST"))

	if summary == nil {
		b.WriteString("No analysis has been recorded for this run yet.\n")
		return b.String()
	}

	b.WriteString("## Totals\n\n")
	fmt.Fprintf(&b, "- Brand mentions: %d\n", summary.TotalMentions)
	fmt.Fprintf(&b, "- Brand citations: %d\n", summary.TotalCitations)
	fmt.Fprintf(&b, "- Brand share: %.0f%%\n\n", summary.Competitive.BrandShare)

	if len(metrics) > 0 {
		b.WriteString("## Category visibility\n\n")
		b.WriteString("| Category | Visibility | Mention rate | Citation rate |\n")
		b.WriteString("|---|---:|---:|---:|\n")
		for _, m := range metrics {
			fmt.Fprintf(&b, "| %s | %.1f | %.0f%% | %.0f%% |\n",
				escapeCell(m.CategoryName), m.VisibilityScore, m.MentionRate, m.CitationRate)
		}
		b.WriteString("\n")
	}

	if len(summary.TopPrompts) > 0 {
		b.WriteString("## Top prompts\n\n")
		for i, p := range summary.TopPrompts {
			fmt.Fprintf(&b, "%d. %s (%d mentions, %d citations)\n", i+1, p.Question, p.Mentions, p.Citations)
		}
		b.WriteString("\n")
	}

	if len(summary.ExternalDomains) > 0 {
		b.WriteString("## Cited external domains\n\n")
		for _, d := range topDomains(summary.ExternalDomains, maxReportDomains) {
			fmt.Fprintf(&b, "- %s: %d\n", d, summary.ExternalDomains[d])
		}
		b.WriteString("\n")
	}

	if len(summary.WhiteSpacePrompts) > 0 {
		b.WriteString("## White-space prompts\n\n")
		b.WriteString("Questions where the brand was not mentioned:\n\n")
		for _, p := range summary.WhiteSpacePrompts {
			fmt.Fprintf(&b, "- %s\n", p.Question)
		}
	}
	return b.String()
}

// topDomains orders domains by count, then name.
func topDomains(counts map[string]int, n int) []string {
	domains := make([]string, 0, len(counts))
	for d := range counts {
		domains = append(domains, d)
	}
	sort.Slice(domains, func(i, j int) bool {
		if counts[domains[i]] != counts[domains[j]] {
			return counts[domains[i]] > counts[domains[j]]
		}
		return domains[i] < domains[j]
	})
	if len(domains) > n {
		domains = domains[:n]
	}
	return domains
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}
