package analyze

import (
	"net/url"
	"strings"

	"github.com/TobiSchelling/BrandLens/internal/database"
)

// Analyze scores one answer for brand visibility. It is a pure function of
// its inputs; UpdatedAt is left zero for the store to fill.
func Analyze(prompt database.Prompt, response database.LLMResponse, citations []database.Citation, brand string) database.PromptAnalysis {
	text := response.OutputText
	token := DomainToken(brand)
	ranges := citationRanges(text, token)

	return database.PromptAnalysis{
		PromptID:        prompt.ID,
		RunID:           prompt.RunID,
		ExactMentions:   countExactMentions(text, brand, ranges),
		FuzzyMentions:   0,
		MentionContexts: mentionContexts(text, brand, token),
		CitationCount:   len(ranges),
		CitationURLs:    citationURLs(citations),
		Sentiment:       Sentiment(text),
		Competitors:     []database.CompetitorMention{},
	}
}

func citationURLs(citations []database.Citation) []string {
	seen := make(map[string]struct{}, len(citations))
	out := []string{}
	for _, c := range citations {
		if c.URL == "" {
			continue
		}
		if _, ok := seen[c.URL]; ok {
			continue
		}
		seen[c.URL] = struct{}{}
		out = append(out, c.URL)
	}
	return out
}

// BrandFromURL derives a brand name from a website's host:
// https://www.acme-tools.com/x gives "acme-tools".
func BrandFromURL(raw string) string {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if i := strings.Index(host, "."); i > 0 {
		host = host[:i]
	}
	return host
}

// domainOf returns the lowercased host of raw without a leading "www.".
func domainOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
