package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"
)

// PageSeparator joins page texts in aggregated content.
const PageSeparator = "\n\n---\n\n"

const maxBodyBytes = 5 << 20

// Response is the raw result of one fetch.
type Response struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// OK reports whether the response carried a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// StatusError is returned by Text for non-2xx responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Fetcher retrieves pages over HTTP. Each call carries its own timeout.
type Fetcher struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger
}

// New creates a fetcher that identifies itself with userAgent.
func New(userAgent string, logger *zap.Logger) *Fetcher {
	if userAgent == "" {
		userAgent = "BrandLens/1.0"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent: userAgent,
		logger:    logger.Named("fetch"),
	}
}

// Fetch GETs rawURL within timeout. Non-2xx statuses are returned, not treated as errors.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, timeout time.Duration) (*Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rawURL, err)
	}

	return &Response{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// Text fetches rawURL and returns its readable plain text.
func (f *Fetcher) Text(ctx context.Context, rawURL string, timeout time.Duration) (string, error) {
	resp, err := f.Fetch(ctx, rawURL, timeout)
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", &StatusError{URL: rawURL, Code: resp.StatusCode}
	}
	return ExtractText(resp.Body, rawURL), nil
}

// ExtractText returns the main article text of an HTML document, falling
// back to every visible text node when readability finds too little.
func ExtractText(body []byte, pageURL string) string {
	parsed, _ := url.Parse(pageURL)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsed)
	if err == nil {
		text := collapseWhitespace(article.TextContent)
		if len(text) > 100 {
			return text
		}
	}
	return StripHTML(string(body))
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
