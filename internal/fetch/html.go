package fetch

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// StripHTML returns the visible text of an HTML document, skipping script,
// style and noscript content.
func StripHTML(body string) string {
	z := html.NewTokenizer(strings.NewReader(body))
	var (
		sb   strings.Builder
		skip int
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return collapseWhitespace(sb.String())
		case html.StartTagToken:
			if isHidden(z) {
				skip++
			}
		case html.EndTagToken:
			if isHidden(z) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
				sb.WriteByte(' ')
			}
		}
	}
}

func isHidden(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch atom.Lookup(name) {
	case atom.Script, atom.Style, atom.Noscript, atom.Template:
		return true
	}
	return false
}

// Links returns the absolute same-host http(s) links found in body,
// deduplicated in document order with fragments removed.
func Links(baseURL string, body []byte) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var links []string
	walk(doc, func(n *html.Node) {
		if n.DataAtom != atom.A {
			return
		}
		abs := resolve(base, attr(n, "href"))
		if abs == "" || !sameHost(base, abs) {
			return
		}
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links
}

// FeedLinks returns RSS/Atom feed URLs advertised with <link rel="alternate">.
func FeedLinks(baseURL string, body []byte) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var feeds []string
	walk(doc, func(n *html.Node) {
		if n.DataAtom != atom.Link || !strings.EqualFold(attr(n, "rel"), "alternate") {
			return
		}
		t := strings.ToLower(attr(n, "type"))
		if t != "application/rss+xml" && t != "application/atom+xml" {
			return
		}
		if abs := resolve(base, attr(n, "href")); abs != "" {
			feeds = append(feeds, abs)
		}
	})
	return feeds
}

// SameHost reports whether rawURL is on the same host as baseURL, ignoring a leading www.
func SameHost(baseURL, rawURL string) bool {
	base, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	return sameHost(base, rawURL)
}

func sameHost(base *url.URL, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return trimWWW(u.Hostname()) == trimWWW(base.Hostname())
}

func trimWWW(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

func walk(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// resolve turns href into an absolute http(s) URL without fragment, or "".
func resolve(base *url.URL, href string) string {
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") || strings.HasPrefix(lower, "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	abs.Fragment = ""
	return abs.String()
}
