package execute

import (
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// extraction is the text and annotations one strategy pulled from a payload.
type extraction struct {
	text        string
	annotations []annotation
}

type annotation struct {
	kind  string
	url   string
	title string
	start int
	end   int
}

// extractor tries one known response shape.
type extractor struct {
	name string
	fn   func(root gjson.Result) extraction
}

// extractors are tried in order; the first non-empty text wins.
var extractors = []extractor{
	{name: "output_array", fn: func(root gjson.Result) extraction {
		return fromOutputItems(root.Get("output"))
	}},
	{name: "raw_array", fn: func(root gjson.Result) extraction {
		if !root.IsArray() {
			return extraction{}
		}
		return fromOutputItems(root)
	}},
	{name: "output_text", fn: func(root gjson.Result) extraction {
		return extraction{text: root.Get("output_text").String()}
	}},
	{name: "message_output_text", fn: func(root gjson.Result) extraction {
		return extraction{text: root.Get("message.output_text").String()}
	}},
}

// extract runs the extractors over body and reports which one matched.
func extract(body []byte) (extraction, string) {
	root := gjson.ParseBytes(body)
	for _, ex := range extractors {
		got := ex.fn(root)
		if strings.TrimSpace(got.text) != "" {
			return got, ex.name
		}
	}
	return extraction{}, ""
}

const partSeparator = "\n\n"

// fromOutputItems joins the output_text parts of every message item.
func fromOutputItems(items gjson.Result) extraction {
	if !items.IsArray() {
		return extraction{}
	}
	var (
		parts  []string
		anns   []annotation
		offset int // runes preceding the current part in the joined text
	)
	items.ForEach(func(_, item gjson.Result) bool {
		if t := item.Get("type").String(); t != "" && t != "message" {
			return true
		}
		item.Get("content").ForEach(func(_, c gjson.Result) bool {
			if c.Get("type").String() != "output_text" {
				return true
			}
			text := c.Get("text").String()
			if text == "" {
				return true
			}
			if len(parts) > 0 {
				offset += utf8.RuneCountInString(partSeparator)
			}
			parts = append(parts, text)
			c.Get("annotations").ForEach(func(_, a gjson.Result) bool {
				anns = append(anns, annotation{
					kind:  a.Get("type").String(),
					url:   a.Get("url").String(),
					title: a.Get("title").String(),
					start: offset + int(a.Get("start_index").Int()),
					end:   offset + int(a.Get("end_index").Int()),
				})
				return true
			})
			offset += utf8.RuneCountInString(text)
			return true
		})
		return true
	})
	return extraction{text: strings.Join(parts, partSeparator), annotations: anns}
}

// snippet returns text[start:end] in character offsets, or "" when out of range.
func snippet(text string, start, end int) string {
	r := []rune(text)
	if start < 0 || end <= start || end > len(r) {
		return ""
	}
	return strings.TrimSpace(string(r[start:end]))
}
