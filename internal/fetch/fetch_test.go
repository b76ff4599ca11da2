package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const samplePage = `<!DOCTYPE html>
<html><head><title>Acme</title>
<link rel="alternate" type="application/rss+xml" href="/feed.xml">
<script>var tracking = "ignore me";</script>
<style>body { color: red; }</style>
</head>
<body>
<nav><a href="/pricing">Pricing</a> <a href="/pricing#plans">Plans</a> <a href="https://www.example.com/about">About</a></nav>
<p>Acme builds anvils for professional coyotes.</p>
<a href="https://other.com/page">Elsewhere</a>
<a href="mailto:hi@example.com">Mail</a>
<a href="/docs/start">Docs</a>
</body></html>`

func TestFetchReturnsStatusWithoutError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("expected user agent header, got %q", r.Header.Get("User-Agent"))
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := New("test-agent", nil)
	resp, err := f.Fetch(context.Background(), srv.URL+"/missing", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.OK() {
		t.Error("expected non-OK response")
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	f := New("", nil)
	_, err := f.Fetch(context.Background(), srv.URL, 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestTextStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := New("", nil).Text(context.Background(), srv.URL, time.Second)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", se.Code)
	}
}

func TestTextExtractsVisibleText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	text, err := New("", nil).Text(context.Background(), srv.URL, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "Acme builds anvils") {
		t.Errorf("expected body text, got %q", text)
	}
	if strings.Contains(text, "tracking") {
		t.Errorf("expected script content stripped, got %q", text)
	}
}

func TestStripHTML(t *testing.T) {
	got := StripHTML("<p>Hello <b>world</b></p><script>alert(1)</script><style>p{}</style>")
	if got != "Hello world" {
		t.Errorf("expected 'Hello world', got %q", got)
	}
}

func TestLinksSameHostDeduped(t *testing.T) {
	links := Links("https://example.com/", []byte(samplePage))
	want := []string{
		"https://example.com/pricing",
		"https://www.example.com/about",
		"https://example.com/docs/start",
	}
	if len(links) != len(want) {
		t.Fatalf("expected %d links, got %d: %v", len(want), len(links), links)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("link %d: expected %q, got %q", i, want[i], links[i])
		}
	}
}

func TestFeedLinks(t *testing.T) {
	feeds := FeedLinks("https://example.com/", []byte(samplePage))
	if len(feeds) != 1 || feeds[0] != "https://example.com/feed.xml" {
		t.Errorf("expected one feed link, got %v", feeds)
	}
}

func TestSameHost(t *testing.T) {
	if !SameHost("https://acme.com", "https://www.acme.com/x") {
		t.Error("expected www variant to match")
	}
	if SameHost("https://acme.com", "https://acme.org/x") {
		t.Error("expected different host not to match")
	}
}
