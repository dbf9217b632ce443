package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRedirects = 10
	DefaultMaxBodyBytes = 32 << 20
	DefaultUserAgent    = "GrayLogic-Catalog/1.0"

	acceptHeader = "application/json, text/plain, */*"
)

// Logger is the logging interface used by the fetcher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config controls request behaviour.
type Config struct {
	// Timeout bounds one Fetch call, redirects included.
	Timeout      time.Duration
	UserAgent    string
	MaxRedirects int

	// HostDelay spaces successive requests to the same host. Zero disables it.
	HostDelay time.Duration

	MaxBodyBytes int64
}

// Fetcher retrieves raw source text over HTTP(S).
//
// It never retries; failures surface as *NetworkError and the caller
// decides what to do on the next scheduled cycle.
//
// Thread Safety: safe for concurrent use.
type Fetcher struct {
	client *http.Client
	cfg    Config

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter

	logger Logger
}

// New creates a Fetcher. A nil client uses a fresh http.Client.
func New(cfg Config, client *http.Client) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	if client == nil {
		client = &http.Client{}
	}
	// Redirects are followed by hand so every hop goes through the host limiter.
	c := *client
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &Fetcher{
		client:   &c,
		cfg:      cfg,
		limiters: make(map[string]*rate.Limiter),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the fetcher.
func (f *Fetcher) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	f.logger = logger
}

// Fetch GETs rawURL, following redirects, and returns the body as text.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	start := time.Now()
	current := rawURL
	for hop := 0; ; hop++ {
		resp, err := f.do(ctx, current)
		if err != nil {
			return "", f.wrap(rawURL, 0, err)
		}

		if isRedirect(resp.StatusCode) {
			loc := resp.Header.Get("Location")
			drain(resp.Body)
			if loc == "" {
				return "", &NetworkError{URL: rawURL, StatusCode: resp.StatusCode}
			}
			if hop >= f.cfg.MaxRedirects {
				return "", &NetworkError{URL: rawURL, StatusCode: resp.StatusCode, Err: ErrTooManyRedirects}
			}
			next, err := resp.Request.URL.Parse(loc)
			if err != nil {
				return "", &NetworkError{URL: rawURL, StatusCode: resp.StatusCode, Err: err}
			}
			f.logger.Debug("following redirect", "from", current, "to", next.String())
			current = next.String()
			continue
		}

		if resp.StatusCode != http.StatusOK {
			drain(resp.Body)
			return "", &NetworkError{URL: rawURL, StatusCode: resp.StatusCode}
		}

		body, err := f.readBody(resp.Body)
		if err != nil {
			return "", f.wrap(rawURL, resp.StatusCode, err)
		}

		f.logger.Debug("fetched",
			"url", rawURL,
			"bytes", len(body),
			"hops", hop,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return body, nil
	}
}

// FetchPages fetches page 1..pages of rawURL by setting param in the query
// string. Pages are returned in page order. An empty page ("" or "[]")
// ends the sequence early. pages < 2 is a single plain Fetch.
func (f *Fetcher) FetchPages(ctx context.Context, rawURL, param string, pages int) ([]string, error) {
	if pages < 2 || param == "" {
		body, err := f.Fetch(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		return []string{body}, nil
	}

	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}

	out := make([]string, 0, pages)
	for page := 1; page <= pages; page++ {
		u := *base
		q := u.Query()
		q.Set(param, strconv.Itoa(page))
		u.RawQuery = q.Encode()

		body, err := f.Fetch(ctx, u.String())
		if err != nil {
			return nil, err
		}
		if isEmptyPage(body) {
			break
		}
		out = append(out, body)
	}
	return out, nil
}

func (f *Fetcher) do(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", acceptHeader)

	if err := f.limiter(req.URL.Host).Wait(ctx); err != nil {
		// Wait refuses up front when the delay would outlast the deadline.
		if _, ok := ctx.Deadline(); ok && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
		return nil, err
	}
	return f.client.Do(req)
}

// limiter returns the per-host limiter, creating it on first use.
func (f *Fetcher) limiter(host string) *rate.Limiter {
	f.limitersMu.Lock()
	defer f.limitersMu.Unlock()

	l, ok := f.limiters[host]
	if !ok {
		limit := rate.Inf
		if f.cfg.HostDelay > 0 {
			limit = rate.Every(f.cfg.HostDelay)
		}
		l = rate.NewLimiter(limit, 1)
		f.limiters[host] = l
	}
	return l
}

func (f *Fetcher) readBody(r io.ReadCloser) (string, error) {
	defer r.Close()
	data, err := io.ReadAll(io.LimitReader(r, f.cfg.MaxBodyBytes+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > f.cfg.MaxBodyBytes {
		return "", ErrBodyTooLarge
	}
	return string(data), nil
}

// wrap converts transport failures into *NetworkError.
func (f *Fetcher) wrap(rawURL string, status int, err error) error {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne
	}
	if isTimeout(err) {
		return &NetworkError{URL: rawURL, Timeout: true, Err: err}
	}
	return &NetworkError{URL: rawURL, StatusCode: status, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func isEmptyPage(body string) bool {
	trimmed := strings.TrimSpace(body)
	return trimmed == "" || trimmed == "[]"
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10)) //nolint:errcheck // Best effort
	_ = body.Close()                                          //nolint:errcheck // Best effort
}

// String describes the fetcher configuration for logs.
func (f *Fetcher) String() string {
	return fmt.Sprintf("fetcher(timeout=%s, host_delay=%s, max_redirects=%d)",
		f.cfg.Timeout, f.cfg.HostDelay, f.cfg.MaxRedirects)
}
