package analyze

import (
	"strings"

	"github.com/TobiSchelling/BrandLens/internal/database"
)

// BrandCitations flags the provider citations that relate to the brand: the
// title or snippet names it, or the URL contains its domain token. Each gets
// the sentence of the answer that cites it.
func BrandCitations(promptID, text string, citations []database.Citation, brand string) []database.BrandCitation {
	brandLower := strings.ToLower(strings.TrimSpace(brand))
	token := DomainToken(brand)
	sentences := splitSentences(text)

	out := []database.BrandCitation{}
	for _, c := range citations {
		desc := strings.ToLower(c.Title + " " + c.Snippet)
		related := (brandLower != "" && strings.Contains(desc, brandLower)) ||
			(token != "" && strings.Contains(strings.ToLower(c.URL), token))
		if !related {
			continue
		}
		out = append(out, database.BrandCitation{
			PromptID: promptID,
			URL:      c.URL,
			Title:    c.Title,
			Context:  citationContext(text, sentences, c.URL),
		})
	}
	return out
}

// citationContext prefers the sentence holding the markdown link for url and
// falls back to the first sentence containing the raw URL.
func citationContext(text string, sentences []sentence, url string) string {
	if url == "" {
		return ""
	}
	for _, m := range linkPattern.FindAllStringSubmatchIndex(text, -1) {
		if sameURL(text[m[4]:m[5]], url) {
			if s := sentenceAt(sentences, m[0]); s != "" {
				return s
			}
		}
	}
	if i := strings.Index(text, url); i >= 0 {
		return sentenceAt(sentences, i)
	}
	return ""
}

func sameURL(a, b string) bool {
	return strings.TrimRight(a, "/") == strings.TrimRight(b, "/")
}
