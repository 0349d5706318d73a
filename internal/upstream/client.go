// Package upstream has the JSON-over-HTTP client shared by the Sonar and
// Jenkins collectors: explicit timeout, bounded exponential backoff and
// SourceError reporting.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/huangsam/pra/internal/contract"
	"github.com/huangsam/pra/internal/metrics"
)

// DefaultRetryInterval is the first backoff wait between attempts.
const DefaultRetryInterval = 500 * time.Millisecond

// Client issues GET requests against one upstream server.
type Client struct {
	source     string
	base       *url.URL
	httpClient *http.Client
	maxRetries int
	interval   time.Duration
	user       string
	token      string
	recorder   *metrics.Recorder
}

// Option customizes a Client.
type Option func(*Client)

// WithBasicAuth sends HTTP basic credentials on every request.
func WithBasicAuth(user, token string) Option {
	return func(c *Client) {
		c.user = user
		c.token = token
	}
}

// WithRecorder counts requests and retries on r.
func WithRecorder(r *metrics.Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithRetryInterval sets the initial backoff interval.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Client) { c.interval = d }
}

// New creates a client for baseURL. source names the upstream in logs,
// errors and metrics.
func New(source, baseURL string, timeout time.Duration, maxRetries int, opts ...Option) (*Client, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid %s server URL %q: %w", source, baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid %s server URL %q: scheme and host are required", source, baseURL)
	}

	c := &Client{
		source:     source,
		base:       base,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: max(maxRetries, 0),
		interval:   DefaultRetryInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Source returns the upstream name.
func (c *Client) Source() string {
	return c.source
}

// GetJSON fetches path (relative to the server URL) with query and decodes the
// JSON body into out. Failures are logged with the request path and returned
// as *contract.SourceError.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	err := c.get(ctx, path, query, out)
	if err != nil {
		slog.Error("upstream request failed", "source", c.source, "path", c.requestPath(path, query), "err", err)
	}
	return err
}

// GetJSONOptional is GetJSON for resources that may legitimately be missing.
// A 404 yields found == false and no error.
func (c *Client) GetJSONOptional(ctx context.Context, path string, query url.Values, out any) (bool, error) {
	err := c.get(ctx, path, query, out)
	if IsNotFound(err) {
		slog.Debug("upstream resource not found", "source", c.source, "path", c.requestPath(path, query))
		return false, nil
	}
	if err != nil {
		slog.Error("upstream request failed", "source", c.source, "path", c.requestPath(path, query), "err", err)
		return false, err
	}
	return true, nil
}

// IsNotFound reports whether err is a SourceError for HTTP 404.
func IsNotFound(err error) bool {
	var serr *contract.SourceError
	return errors.As(err, &serr) && serr.Status == http.StatusNotFound
}

func (c *Client) resolve(path string, query url.Values) string {
	u := c.base.ResolveReference(&url.URL{Path: strings.TrimPrefix(path, "/")})
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *Client) requestPath(path string, query url.Values) string {
	u, err := url.Parse(c.resolve(path, query))
	if err != nil {
		return path
	}
	return u.RequestURI()
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	target := c.resolve(path, query)
	reqPath := c.requestPath(path, query)

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return backoff.Permanent(&contract.SourceError{Source: c.source, Path: reqPath, Err: err})
		}
		req.Header.Set("Accept", "application/json")
		if c.user != "" {
			req.SetBasicAuth(c.user, c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			serr := &contract.SourceError{Source: c.source, Path: reqPath, Err: err}
			if ctx.Err() != nil {
				return backoff.Permanent(serr)
			}
			return serr
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, resp.Body)
			serr := &contract.SourceError{Source: c.source, Path: reqPath, Status: resp.StatusCode}
			if retryable(resp.StatusCode) {
				return serr
			}
			return backoff.Permanent(serr)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(&contract.SourceError{
				Source: c.source, Path: reqPath, Err: fmt.Errorf("failed to decode response: %w", err),
			})
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.interval
	policy.MaxElapsedTime = 0
	bounded := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries)), ctx)

	err := backoff.RetryNotify(operation, bounded, func(err error, wait time.Duration) {
		c.recorder.ObserveRetry(c.source)
		slog.Warn("retrying upstream request", "source", c.source, "path", reqPath, "wait", wait, "err", err)
	})
	if err != nil {
		c.recorder.ObserveRequest(c.source, metrics.OutcomeError)
		return err
	}
	c.recorder.ObserveRequest(c.source, metrics.OutcomeOK)
	return nil
}

// retryable reports whether a status is worth another attempt.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
