// Package metobs is a client for the SMHI Open Data meteorological
// observations catalog: parameters, stations, periods and station data.
package metobs

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/metobs-export/internal/domain"
	"github.com/couchcryptid/metobs-export/internal/observability"
)

// DefaultBaseURL is the public metobs API root.
const DefaultBaseURL = "https://opendata-download-metobs.smhi.se/api"

var (
	errRateLimited = errors.New("rate limited")
	errServer      = errors.New("server error")
	errUnexpected  = errors.New("unexpected status code")

	// ErrCircuitOpen is returned while the breaker rejects requests.
	ErrCircuitOpen = errors.New("circuit breaker open")
)

// Options tunes the HTTP client and retry behaviour.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	MaxBackoff time.Duration
	// RequestsPerSecond caps the request rate across all callers; 0 disables
	// the limit. Burst is the number of requests allowed at once.
	RequestsPerSecond float64
	Burst             int
	// BreakerTimeout is how long the breaker stays open before letting a
	// trial request through. Zero selects 30 seconds.
	BreakerTimeout time.Duration
}

// maxBreakerWaits bounds how often one request waits for a rejecting
// breaker before it gives up with ErrCircuitOpen.
const maxBreakerWaits = 3

// Client implements pipeline.Catalog against the metobs API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	circuit    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	cbTimeout  time.Duration
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a metobs client. The breaker opens after five
// consecutive failed attempts and half-opens after BreakerTimeout. Client
// errors such as 404 and cancelled requests do not count as failures.
func NewClient(opts Options, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 5 * time.Second
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "metobs",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: breakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), max(opts.Burst, 1))
	}
	return &Client{
		baseURL:    opts.BaseURL,
		httpClient: &http.Client{Timeout: opts.Timeout},
		circuit:    cb,
		limiter:    limiter,
		cbTimeout:  opts.BreakerTimeout,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		maxBackoff: opts.MaxBackoff,
		logger:     logger,
		metrics:    metrics,
	}
}

// Parameters lists the parameter keys of the latest API version.
func (c *Client) Parameters(ctx context.Context) ([]string, error) {
	var doc versionDoc
	if err := c.getXML(ctx, "/version/latest.xml", &doc); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(doc.Resources))
	for _, r := range doc.Resources {
		keys = append(keys, r.Key)
	}
	return keys, nil
}

// Stations lists the stations for a parameter in catalog order.
func (c *Client) Stations(ctx context.Context, parameter string) ([]domain.Station, error) {
	var doc parameterDoc
	if err := c.getXML(ctx, "/version/latest/parameter/"+url.PathEscape(parameter)+".xml", &doc); err != nil {
		return nil, err
	}
	stations := make([]domain.Station, 0, len(doc.Stations))
	for _, s := range doc.Stations {
		stations = append(stations, domain.Station{Key: domain.StationKey(s.Key), Name: s.Name})
	}
	return stations, nil
}

// Periods lists the period keys available for one station.
func (c *Client) Periods(ctx context.Context, parameter string, station domain.StationKey) ([]string, error) {
	var doc stationDoc
	if err := c.getXML(ctx, stationPath(parameter, station)+".xml", &doc); err != nil {
		return nil, err
	}
	periods := make([]string, 0, len(doc.Periods))
	for _, p := range doc.Periods {
		periods = append(periods, p.Key)
	}
	return periods, nil
}

// StationData fetches the CSV export of one station period. The whole body
// is read before returning so a retry never hands out a half-read stream.
func (c *Client) StationData(ctx context.Context, parameter string, station domain.StationKey, period string) (io.ReadCloser, error) {
	body, err := c.get(ctx, stationPath(parameter, station)+"/period/"+url.PathEscape(period)+"/data.csv")
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func stationPath(parameter string, station domain.StationKey) string {
	return "/version/latest/parameter/" + url.PathEscape(parameter) + "/station/" + url.PathEscape(string(station))
}

func (c *Client) getXML(ctx context.Context, path string, v any) error {
	body, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// get performs a GET with retries, exponential backoff and the circuit
// breaker. Transport errors, 429 and 5xx are retried; other statuses are not.
// A request rejected by the breaker waits for it to half-open, up to
// maxBreakerWaits times, without using up its retries.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	fullURL := c.baseURL + path
	start := time.Now()
	defer func() {
		c.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	}()

	delay := c.backoff
	attempt, waits := 0, 0
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		result, err := c.circuit.Execute(func() (interface{}, error) {
			return c.do(ctx, fullURL)
		})
		if err == nil {
			body, ok := result.([]byte)
			if !ok {
				return nil, errors.New("unexpected result type from circuit breaker")
			}
			return body, nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			if waits >= maxBreakerWaits {
				return nil, fmt.Errorf("%w: %s: %v", ErrCircuitOpen, path, err)
			}
			waits++
			// Open waits out the breaker timeout; half-open only needs the
			// trial request to finish.
			wait := delay
			if errors.Is(err, gobreaker.ErrOpenState) {
				wait = c.cbTimeout
			}
			c.logger.Debug("waiting for circuit breaker", "path", path, "wait", wait, "state", c.circuit.State().String())
			if !sleepWithContext(ctx, wait) {
				return nil, fmt.Errorf("%w: %s: %w", ErrCircuitOpen, path, ctx.Err())
			}
			continue
		}
		if !retryable(err) || attempt >= c.maxRetries {
			return nil, fmt.Errorf("get %s: %w", path, err)
		}
		attempt++

		c.metrics.FetchRetries.Inc()
		c.logger.Debug("retrying request", "path", path, "attempt", attempt, "delay", delay, "error", err)
		if !sleepWithContext(ctx, delay) {
			return nil, ctx.Err()
		}
		delay = nextBackoff(delay, c.maxBackoff)
	}
}

func (c *Client) do(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errRateLimited
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %d", errServer, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &statusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// statusError is a non-retryable HTTP status such as 404.
type statusError struct{ code int }

func (e *statusError) Error() string { return fmt.Sprintf("%v: %d", errUnexpected, e.code) }

func (e *statusError) Unwrap() error { return errUnexpected }

func retryable(err error) bool {
	var se *statusError
	return !errors.As(err, &se) && !errors.Is(err, context.Canceled)
}

// breakerSuccess reports whether a request outcome leaves the breaker's
// failure count alone. Only transport errors, 429 and 5xx count against it.
func breakerSuccess(err error) bool {
	return err == nil || !retryable(err)
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
