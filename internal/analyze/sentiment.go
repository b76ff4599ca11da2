package analyze

import (
	"strings"

	"github.com/TobiSchelling/BrandLens/internal/database"
)

const (
	maxSentimentKeywords = 10
	minConfidence        = 0.1
)

var positiveWords = toSet(
	"excellent", "great", "best", "leading", "innovative",
	"reliable", "trusted", "popular", "recommended", "top",
	"outstanding", "effective", "efficient", "powerful", "strong",
	"quality", "affordable", "easy", "impressive", "superior",
)

var negativeWords = toSet(
	"poor", "bad", "worst", "expensive", "unreliable",
	"slow", "difficult", "limited", "outdated", "complicated",
	"weak", "lacking", "problematic", "disappointing", "inferior",
	"overpriced", "buggy", "confusing", "frustrating", "mediocre",
)

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Sentiment scores text against the fixed keyword lists.
func Sentiment(text string) database.Sentiment {
	tokens := strings.Fields(strings.ToLower(text))

	pos, neg := 0, 0
	keywords := []string{}
	seen := make(map[string]struct{})
	for _, tok := range tokens {
		tok = strings.TrimRight(tok, `.,!?;:'")]*`)
		_, isPos := positiveWords[tok]
		_, isNeg := negativeWords[tok]
		if !isPos && !isNeg {
			continue
		}
		if isPos {
			pos++
		} else {
			neg++
		}
		if _, ok := seen[tok]; !ok && len(keywords) < maxSentimentKeywords {
			seen[tok] = struct{}{}
			keywords = append(keywords, tok)
		}
	}

	var tone string
	switch {
	case pos == 0 && neg == 0:
		tone = database.ToneNeutral
	case pos > 2*neg:
		tone = database.TonePositive
	case neg > 2*pos:
		tone = database.ToneNegative
	default:
		tone = database.ToneMixed
	}

	hits := float64(pos + neg)
	confidence := min(hits/max(float64(len(tokens))/100, 1), 1)
	confidence = max(confidence, minConfidence)

	return database.Sentiment{Tone: tone, Confidence: confidence, Keywords: keywords}
}
