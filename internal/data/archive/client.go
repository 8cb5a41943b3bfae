package archive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/penwyp/waybacker/internal/core/model"
	"github.com/penwyp/waybacker/internal/util"
)

const (
	// DefaultAvailabilityEndpoint is the Wayback Machine nearest-snapshot
	// lookup API. Given a URL and a 14-digit timestamp it returns the
	// closest indexed capture.
	DefaultAvailabilityEndpoint = "https://archive.org/wayback/available"

	defaultTimeout    = 60 * time.Second
	defaultMaxRetries = 3

	// The archive throttles obviously scripted clients harder.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Client performs nearest-snapshot lookups against the Wayback Machine.
// A single Client is shared by all workers; it is safe for concurrent use.
type Client struct {
	httpClient      *http.Client
	limiter         *rate.Limiter
	endpoint        string
	fetchContent    bool
	maxRetries      uint64
	backoffInterval time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the availability API endpoint (tests point this at
// an httptest server).
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLimiter installs a shared request pacer. All HTTP requests, including
// retries, wait on it.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithContent controls whether the snapshot body is downloaded and stored in
// the result. Lookup metadata is always recorded.
func WithContent(fetch bool) Option {
	return func(c *Client) { c.fetchContent = fetch }
}

// WithMaxRetries overrides the per-request retry budget.
func WithMaxRetries(n uint64) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithBackoffInterval overrides the initial retry backoff interval.
func WithBackoffInterval(d time.Duration) Option {
	return func(c *Client) { c.backoffInterval = d }
}

// NewClient creates a Wayback Machine client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:      &http.Client{Timeout: defaultTimeout},
		endpoint:        DefaultAvailabilityEndpoint,
		fetchContent:    true,
		maxRetries:      defaultMaxRetries,
		backoffInterval: backoff.DefaultInitialInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// availabilityResponse is the JSON shape of the availability API.
type availabilityResponse struct {
	URL               string `json:"url"`
	ArchivedSnapshots struct {
		Closest *closestSnapshot `json:"closest"`
	} `json:"archived_snapshots"`
}

type closestSnapshot struct {
	URL       string `json:"url"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
	Available bool   `json:"available"`
}

// Fetch performs one nearest-snapshot lookup for target at the requested
// time. It never returns a Go error: network failures and bad statuses are
// retried with exponential backoff, and after the budget is exhausted the
// failure is folded into the returned record so one dead timestamp cannot
// abort a batch.
func (c *Client) Fetch(ctx context.Context, target string, at time.Time) *model.SnapshotResult {
	start := time.Now()

	lookupURL := fmt.Sprintf("%s?url=%s&timestamp=%s",
		c.endpoint, url.QueryEscape(target), at.Format(model.WaybackTimestampLayout))
	util.LogDebugf("Looking up %s", lookupURL)

	body, _, err := c.get(ctx, lookupURL)
	if err != nil {
		util.LogDebugf("Lookup failed for %s at %s: %v", target, at.Format(time.RFC3339), err)
		return model.NewErrorResult(target, at, err.Error(), time.Since(start))
	}

	var avail availabilityResponse
	if err := sonic.Unmarshal(body, &avail); err != nil {
		return model.NewErrorResult(target, at, fmt.Sprintf("malformed availability response: %v", err), time.Since(start))
	}

	closest := avail.ArchivedSnapshots.Closest
	if closest == nil || !closest.Available || closest.URL == "" {
		util.LogDebugf("No snapshot for %s near %s", target, at.Format(time.RFC3339))
		return model.NewNotFoundResult(target, at, time.Since(start))
	}

	result := &model.SnapshotResult{
		URL:                target,
		RequestedTimestamp: model.FormatRequested(at),
		SnapshotURL:        closest.URL,
		Status:             model.StatusOK,
	}
	if code, err := strconv.Atoi(closest.Status); err == nil {
		result.StatusCode = code
	}
	if snapTime, err := time.ParseInLocation(model.WaybackTimestampLayout, closest.Timestamp, time.UTC); err == nil {
		result.SnapshotTimestamp = snapTime.Format(time.RFC3339)
		result.OffsetSeconds = at.Sub(snapTime).Seconds()
	}

	if c.fetchContent {
		content, code, err := c.get(ctx, closest.URL)
		if err != nil {
			result.Status = model.StatusError
			result.Error = fmt.Sprintf("snapshot content fetch failed: %v", err)
		} else {
			result.Content = string(content)
			result.StatusCode = code
		}
	}

	result.ElapsedSeconds = time.Since(start).Seconds()
	result.RetrievedAt = time.Now().Format(time.RFC3339)
	return result
}

// get issues one GET with pacing and bounded exponential backoff. Transport
// errors, 429 and 5xx responses are retried; any other non-2xx status is
// permanent.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, int, error) {
	var body []byte
	var statusCode int

	operation := func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json, text/plain, */*")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("status %d from %s", resp.StatusCode, rawURL)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("status %d from %s", resp.StatusCode, rawURL))
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		body = data
		statusCode = resp.StatusCode
		return nil
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.backoffInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, c.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, statusCode, err
	}
	return body, statusCode, nil
}
