package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/policygap/internal/extract"
	"github.com/ppiankov/policygap/internal/model"
	"github.com/ppiankov/policygap/internal/util"
	"github.com/ppiankov/policygap/internal/worker"
)

// fetchSleepFunc is swapped in tests to skip retry backoff
var fetchSleepFunc = time.Sleep

const fetchAttempts = 3

// ErrDisallowed is returned when robots.txt forbids fetching a policy URL
var ErrDisallowed = errors.New("disallowed by robots.txt")

// StatusError is a non-2xx HTTP response
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.Code, e.Status)
}

// Fetcher loads policy documents from local files and http(s) URLs
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *util.RobotsChecker // nil when robots.txt is ignored
	limiter    *worker.Limiter     // per-host politeness
}

// NewFetcher creates a fetcher from the http section of the config
func NewFetcher(cfg model.HTTPConfig) *Fetcher {
	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("stopped after 3 redirects")
			}
			return nil
		},
	}

	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = model.DefaultConfig().HTTP.MaxBodyBytes
	}

	f := &Fetcher{
		httpClient: client,
		userAgent:  cfg.UserAgent,
		maxBytes:   maxBytes,
		limiter:    worker.NewLimiter(1, 2),
	}
	if cfg.RespectRobots {
		f.robots = util.NewRobotsChecker(client, cfg.UserAgent, cfg.Timeout)
	}
	return f
}

// FetchResult contains the fetched body and response metadata
type FetchResult struct {
	Body         string
	ContentType  string
	LastModified string
	StatusCode   int
	FinalURL     string
	Truncated    bool // body exceeded the size cap and was cut
}

// Fetch retrieves a URL once, after robots.txt and the per-host rate limit allow it
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	host, err := worker.HostKey(rawURL)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var crawlDelay time.Duration
	if f.robots != nil {
		allowed, delay, err := f.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("robots.txt: %w", err)
		}
		if !allowed {
			return nil, fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
		}
		crawlDelay = delay
	}
	if err := f.limiter.WaitWithDelay(ctx, host, crawlDelay); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	// One extra byte tells a body exactly at the cap from a longer one
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	truncated := int64(len(body)) > f.maxBytes
	if truncated {
		body = body[:f.maxBytes]
	}

	return &FetchResult{
		Body:         string(body),
		ContentType:  resp.Header.Get("Content-Type"),
		LastModified: resp.Header.Get("Last-Modified"),
		StatusCode:   resp.StatusCode,
		FinalURL:     resp.Request.URL.String(),
		Truncated:    truncated,
	}, nil
}

// FetchWithRetry retries transient failures (network errors, 429, 5xx) with exponential backoff
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			fetchSleepFunc(time.Duration(1<<(attempt-1)) * time.Second)
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		result, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetryableFetchError(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", fetchAttempts, lastErr)
}

func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Policy is a loaded policy document reduced to plain text
type Policy struct {
	Source    string `json:"source"`
	Text      string `json:"text"`
	FromHTML  bool   `json:"from_html"`
	Truncated bool   `json:"truncated,omitempty"`
}

// LoadPolicy reads a policy from a local file or an http(s) URL.
// HTML is reduced to its visible text; anything else is used as is.
func (f *Fetcher) LoadPolicy(ctx context.Context, source string) (Policy, error) {
	policy := Policy{Source: source}

	var content, contentType string
	if isURL(source) {
		result, err := f.FetchWithRetry(ctx, source)
		if err != nil {
			return Policy{}, fmt.Errorf("load policy %s: %w", source, err)
		}
		content, contentType = result.Body, result.ContentType
		policy.Source, policy.Truncated = result.FinalURL, result.Truncated
	} else {
		data, err := os.ReadFile(source)
		if err != nil {
			return Policy{}, fmt.Errorf("load policy: %w", err)
		}
		content = string(data)
		if strings.HasSuffix(strings.ToLower(source), ".html") || strings.HasSuffix(strings.ToLower(source), ".htm") {
			contentType = "text/html"
		}
	}

	if extract.LooksLikeHTML(contentType, content) {
		text, err := extract.VisibleText(content)
		if err != nil {
			return Policy{}, fmt.Errorf("extract policy text: %w", err)
		}
		content, policy.FromHTML = text, true
	}

	policy.Text = strings.TrimSpace(content)
	if policy.Text == "" {
		return Policy{}, fmt.Errorf("%w: policy %s is empty", model.ErrInvalidInput, source)
	}
	return policy, nil
}

func isURL(source string) bool {
	u, err := url.Parse(source)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
