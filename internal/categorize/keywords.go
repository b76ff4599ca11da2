package categorize

import (
	"regexp"
	"sort"
	"strings"

	"github.com/TobiSchelling/BrandLens/internal/fetch"
)

type topicTemplate struct {
	name        string
	description string
	keywords    []string
}

var topicTemplates = []topicTemplate{
	{
		name:        "Product",
		description: "Core products and their capabilities",
		keywords:    []string{"product", "feature", "solution", "platform", "tool", "software", "service", "app"},
	},
	{
		name:        "Pricing",
		description: "Plans, prices and costs",
		keywords:    []string{"price", "pricing", "cost", "plan", "subscription", "free", "trial", "discount"},
	},
	{
		name:        "Comparison",
		description: "How the offering compares to alternatives",
		keywords:    []string{"compare", "comparison", "vs", "versus", "alternative", "better", "difference", "competitor"},
	},
	{
		name:        "Use Cases",
		description: "Situations and workflows the offering is used for",
		keywords:    []string{"use case", "example", "workflow", "scenario", "customer", "team", "business", "how to"},
	},
	{
		name:        "Industry",
		description: "Industries and markets served",
		keywords:    []string{"industry", "enterprise", "healthcare", "finance", "retail", "education", "manufacturing", "market"},
	},
	{
		name:        "Problems & Solutions",
		description: "Problems customers face and how they are solved",
		keywords:    []string{"problem", "challenge", "solve", "issue", "improve", "reduce", "save", "fix"},
	},
	{
		name:        "Integration",
		description: "Integrations, APIs and compatibility",
		keywords:    []string{"integration", "integrate", "api", "connect", "plugin", "compatible", "sync", "import"},
	},
	{
		name:        "Support",
		description: "Help, documentation and customer service",
		keywords:    []string{"support", "help", "documentation", "contact", "faq", "guide", "training", "service"},
	},
}

// keywordPatterns match each keyword as a whole word, allowing a plural
// suffix, so "app" does not fire on "apple" or "api" on "rapid".
var keywordPatterns = compileKeywords(topicTemplates)

func compileKeywords(templates []topicTemplate) map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp)
	for _, tpl := range templates {
		for _, kw := range tpl.keywords {
			if _, ok := out[kw]; ok {
				continue
			}
			out[kw] = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `(?:s|es)?\b`)
		}
	}
	return out
}

func containsKeyword(text, kw string) bool {
	return keywordPatterns[kw].MatchString(text)
}

type page struct {
	url  string
	text string
}

// splitPages splits aggregated content on the page separator and recovers
// each page's "Source: <url>" header when present.
func splitPages(content string) []page {
	var pages []page
	for _, block := range strings.Split(content, fetch.PageSeparator) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		p := page{text: strings.ToLower(block)}
		if rest, ok := strings.CutPrefix(block, "Source:"); ok {
			line, _, _ := strings.Cut(rest, "\n")
			p.url = strings.TrimSpace(line)
		}
		pages = append(pages, p)
	}
	return pages
}

// matchKeywords scores every topic template against content and returns the
// ones at or above threshold, best first, at most limit.
// score = matched keyword ratio + 0.2 × fraction of pages mentioning any keyword.
func matchKeywords(content string, threshold float64, limit int) []candidate {
	pages := splitPages(content)
	if len(pages) == 0 {
		return nil
	}
	all := strings.ToLower(content)

	var out []candidate
	for _, tpl := range topicTemplates {
		matched := 0
		for _, kw := range tpl.keywords {
			if containsKeyword(all, kw) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}

		var sources []string
		covered := 0
		for _, p := range pages {
			for _, kw := range tpl.keywords {
				if containsKeyword(p.text, kw) {
					covered++
					if p.url != "" {
						sources = append(sources, p.url)
					}
					break
				}
			}
		}

		score := float64(matched)/float64(len(tpl.keywords)) + 0.2*float64(covered)/float64(len(pages))
		score = min(score, 1)
		if score < threshold {
			continue
		}
		out = append(out, candidate{
			name:        tpl.name,
			description: tpl.description,
			confidence:  score,
			sourceURLs:  sources,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].confidence > out[j].confidence })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

var genericCategories = []candidate{
	{name: "Products & Services", description: "What the company offers", confidence: 0.5},
	{name: "Features", description: "Capabilities and functionality", confidence: 0.5},
	{name: "Use Cases", description: "How customers use the offering", confidence: 0.5},
}
