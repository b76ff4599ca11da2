// Package analyze scores LLM answers for brand visibility: mentions outside
// the brand's own citation links, keyword sentiment, brand citations and the
// per-category and per-run aggregates built from them.
package analyze

import (
	"regexp"
	"strings"
	"unicode"
)

const maxContexts = 5

// linkPattern matches markdown links: [text](url).
var linkPattern = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]+)\)`)

var sentenceEnd = regexp.MustCompile(`[.!?]+\s+`)

type span struct {
	start, end int
}

func (s span) contains(o span) bool {
	return o.start >= s.start && o.end <= s.end
}

type sentence struct {
	span
	text string
}

// DomainToken is the brand lowercased with spaces removed, used to spot the
// brand's own domain in URLs.
func DomainToken(brand string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(brand)), " ", "")
}

// citationRanges returns the spans of markdown links whose URL contains token.
func citationRanges(text, token string) []span {
	if token == "" {
		return nil
	}
	var ranges []span
	for _, m := range linkPattern.FindAllStringSubmatchIndex(text, -1) {
		url := strings.ToLower(text[m[4]:m[5]])
		if strings.Contains(url, token) {
			ranges = append(ranges, span{start: m[0], end: m[1]})
		}
	}
	return ranges
}

func brandPattern(brand string) *regexp.Regexp {
	brand = strings.TrimSpace(brand)
	if brand == "" {
		return nil
	}
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(brand) + `\b`)
}

// countExactMentions counts word-boundary brand matches that are not fully
// inside a citation range.
func countExactMentions(text, brand string, ranges []span) int {
	re := brandPattern(brand)
	if re == nil {
		return 0
	}
	count := 0
	for _, loc := range re.FindAllStringIndex(text, -1) {
		m := span{start: loc[0], end: loc[1]}
		inside := false
		for _, r := range ranges {
			if r.contains(m) {
				inside = true
				break
			}
		}
		if !inside {
			count++
		}
	}
	return count
}

// splitSentences splits on runs of .!? followed by whitespace, keeping the
// punctuation with its sentence.
func splitSentences(text string) []sentence {
	var out []sentence
	add := func(start, end int) {
		raw := text[start:end]
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			return
		}
		lead := len(raw) - len(strings.TrimLeftFunc(raw, unicode.IsSpace))
		out = append(out, sentence{
			span: span{start: start + lead, end: start + lead + len(trimmed)},
			text: trimmed,
		})
	}

	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		punct := strings.TrimRightFunc(text[loc[0]:loc[1]], unicode.IsSpace)
		add(start, loc[0]+len(punct))
		start = loc[1]
	}
	add(start, len(text))
	return out
}

// mentionContexts returns up to five unique sentences containing the brand
// name or its domain token.
func mentionContexts(text, brand, token string) []string {
	brandLower := strings.ToLower(strings.TrimSpace(brand))
	seen := make(map[string]struct{})
	out := []string{}
	for _, s := range splitSentences(text) {
		lower := strings.ToLower(s.text)
		hit := (brandLower != "" && strings.Contains(lower, brandLower)) ||
			(token != "" && strings.Contains(lower, token))
		if !hit {
			continue
		}
		if _, ok := seen[s.text]; ok {
			continue
		}
		seen[s.text] = struct{}{}
		out = append(out, s.text)
		if len(out) == maxContexts {
			break
		}
	}
	return out
}

// sentenceAt returns the sentence containing byte offset pos, or "".
func sentenceAt(sentences []sentence, pos int) string {
	for _, s := range sentences {
		if pos >= s.start && pos < s.end {
			return s.text
		}
	}
	return ""
}
