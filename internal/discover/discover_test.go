package discover

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/BrandLens/internal/fetch"
)

func newDiscoverer(maxLinks int) *Discoverer {
	return New(fetch.New("test", nil), time.Second, maxLinks, nil)
}

func TestDiscoverUsesFirstSitemap(t *testing.T) {
	var probed []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probed = append(probed, r.URL.Path)
		switch r.URL.Path {
		case "/sitemap_index.xml":
			fmt.Fprint(w, `<?xml version="1.0"?><urlset>
<url><loc>https://acme.com/a</loc></url>
<url><loc> https://acme.com/b?x=1&amp;y=2 </loc></url>
<url><loc>https://acme.com/a</loc></url>
</urlset>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	res := newDiscoverer(50).Discover(context.Background(), srv.URL)
	assert.True(t, res.FoundSitemap)
	assert.Equal(t, []string{"https://acme.com/a", "https://acme.com/b?x=1&y=2"}, res.URLs)
	assert.Equal(t, []string{"/sitemap.xml", "/sitemap_index.xml"}, probed)
}

func TestDiscoverEmptySitemapFallsBackToHomepage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			fmt.Fprint(w, `<urlset></urlset>`)
		case "/":
			fmt.Fprint(w, `<html><body><a href="/one">1</a><a href="/two">2</a><a href="https://elsewhere.com/x">x</a></body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	res := newDiscoverer(50).Discover(context.Background(), srv.URL+"/some/page")
	assert.False(t, res.FoundSitemap)
	assert.Equal(t, []string{srv.URL + "/one", srv.URL + "/two"}, res.URLs)
}

func TestDiscoverCapsHomepageLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "<html><body>")
		for i := 0; i < 80; i++ {
			fmt.Fprintf(w, `<a href="/p/%d">%d</a>`, i, i)
		}
		fmt.Fprint(w, "</body></html>")
	}))
	defer srv.Close()

	res := newDiscoverer(50).Discover(context.Background(), srv.URL)
	assert.Len(t, res.URLs, 50)
	assert.Equal(t, srv.URL+"/p/0", res.URLs[0])
}

func TestDiscoverMergesFeedItems(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, `<html><head><link rel="alternate" type="application/rss+xml" href="/feed.xml"></head>
<body><a href="/about">About</a></body></html>`)
		case "/feed.xml":
			w.Header().Set("Content-Type", "application/rss+xml")
			fmt.Fprintf(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>Blog</title>
<item><title>Post</title><link>%s/blog/post-1</link></item>
<item><title>Ext</title><link>https://elsewhere.com/post</link></item>
</channel></rss>`, srv.URL)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	res := newDiscoverer(50).Discover(context.Background(), srv.URL)
	assert.Equal(t, []string{srv.URL + "/about", srv.URL + "/blog/post-1"}, res.URLs)
}

func TestDiscoverTotalFailureReturnsBase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	res := newDiscoverer(50).Discover(context.Background(), srv.URL)
	assert.False(t, res.FoundSitemap)
	assert.Equal(t, []string{srv.URL}, res.URLs)
}

func TestDiscoverUnreachableHost(t *testing.T) {
	d := New(fetch.New("test", nil), 100*time.Millisecond, 50, nil)
	res := d.Discover(context.Background(), "http://127.0.0.1:1")
	require.Len(t, res.URLs, 1)
	assert.Equal(t, "http://127.0.0.1:1", res.URLs[0])
}

func TestNormalizeBase(t *testing.T) {
	assert.Equal(t, "https://acme.com", NormalizeBase("acme.com"))
	assert.Equal(t, "https://acme.com", NormalizeBase("https://acme.com/"))
	assert.Equal(t, "http://acme.com:8080", NormalizeBase("http://acme.com:8080/x/y?z=1"))
}
