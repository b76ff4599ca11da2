// Package discover finds the pages of a website: sitemap first, homepage
// links (plus advertised feed items) as fallback.
package discover

import (
	"context"
	"html"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/TobiSchelling/BrandLens/internal/fetch"
)

// SitemapPaths are probed in order; the first 200 response is parsed.
var SitemapPaths = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemaps/sitemap.xml",
}

var locPattern = regexp.MustCompile(`(?is)<loc>\s*(.*?)\s*</loc>`)

// Result is the outcome of discovery.
type Result struct {
	URLs         []string `json:"urls"`
	FoundSitemap bool     `json:"foundSitemap"`
}

// Fetcher is the subset of fetch.Fetcher discovery needs.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, timeout time.Duration) (*fetch.Response, error)
}

// Discoverer probes sitemaps and crawls the homepage as a fallback.
type Discoverer struct {
	fetcher  Fetcher
	timeout  time.Duration
	maxLinks int
	feeds    *gofeed.Parser
	logger   *zap.Logger
}

// New creates a discoverer. Every fetch gets its own timeout.
func New(fetcher Fetcher, timeout time.Duration, maxLinks int, logger *zap.Logger) *Discoverer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxLinks <= 0 {
		maxLinks = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{
		fetcher:  fetcher,
		timeout:  timeout,
		maxLinks: maxLinks,
		feeds:    gofeed.NewParser(),
		logger:   logger.Named("discover"),
	}
}

// Discover never fails: total failure degrades to the base URL alone.
func (d *Discoverer) Discover(ctx context.Context, baseURL string) Result {
	base := NormalizeBase(baseURL)

	for _, path := range SitemapPaths {
		urls := d.trySitemap(ctx, base+path)
		if len(urls) > 0 {
			d.logger.Info("sitemap found", zap.String("sitemap", base+path), zap.Int("urls", len(urls)))
			return Result{URLs: urls, FoundSitemap: true}
		}
	}

	links := d.crawlHomepage(ctx, base)
	if len(links) == 0 {
		d.logger.Warn("no pages discovered, using base url", zap.String("url", base))
		return Result{URLs: []string{base}}
	}
	d.logger.Info("homepage links discovered", zap.String("url", base), zap.Int("urls", len(links)))
	return Result{URLs: links}
}

func (d *Discoverer) trySitemap(ctx context.Context, sitemapURL string) []string {
	resp, err := d.fetcher.Fetch(ctx, sitemapURL, d.timeout)
	if err != nil {
		d.logger.Debug("sitemap probe failed", zap.String("sitemap", sitemapURL), zap.Error(err))
		return nil
	}
	if resp.StatusCode != 200 {
		return nil
	}
	return ParseSitemap(resp.Body)
}

// ParseSitemap extracts the <loc> entries of a sitemap or sitemap index.
func ParseSitemap(body []byte) []string {
	var urls []string
	seen := make(map[string]struct{})
	for _, m := range locPattern.FindAllSubmatch(body, -1) {
		loc := strings.TrimSpace(html.UnescapeString(string(m[1])))
		loc = strings.TrimSuffix(strings.TrimPrefix(loc, "<![CDATA["), "]]>")
		if loc == "" {
			continue
		}
		if _, ok := seen[loc]; ok {
			continue
		}
		seen[loc] = struct{}{}
		urls = append(urls, loc)
	}
	return urls
}

func (d *Discoverer) crawlHomepage(ctx context.Context, base string) []string {
	resp, err := d.fetcher.Fetch(ctx, base, d.timeout)
	if err != nil {
		d.logger.Warn("homepage fetch failed", zap.String("url", base), zap.Error(err))
		return nil
	}
	if !resp.OK() {
		d.logger.Warn("homepage returned non-success status", zap.String("url", base), zap.Int("status", resp.StatusCode))
		return nil
	}

	links := fetch.Links(base, resp.Body)
	for _, feedURL := range fetch.FeedLinks(base, resp.Body) {
		links = append(links, d.feedItems(ctx, base, feedURL)...)
	}
	return capUnique(links, d.maxLinks)
}

// feedItems returns same-host item links of one advertised feed.
func (d *Discoverer) feedItems(ctx context.Context, base, feedURL string) []string {
	resp, err := d.fetcher.Fetch(ctx, feedURL, d.timeout)
	if err != nil || !resp.OK() {
		return nil
	}
	feed, err := d.feeds.ParseString(string(resp.Body))
	if err != nil {
		d.logger.Debug("feed parse failed", zap.String("feed", feedURL), zap.Error(err))
		return nil
	}
	var links []string
	for _, item := range feed.Items {
		if item.Link != "" && fetch.SameHost(base, item.Link) {
			links = append(links, item.Link)
		}
	}
	return links
}

func capUnique(links []string, limit int) []string {
	seen := make(map[string]struct{}, len(links))
	out := make([]string, 0, min(len(links), limit))
	for _, l := range links {
		if len(out) == limit {
			break
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

// NormalizeBase adds a missing scheme and strips path, query and trailing slash.
func NormalizeBase(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimRight(raw, "/")
	}
	return u.Scheme + "://" + u.Host
}
