// Package platform holds the HTTP core shared by the Kalshi, Polymarket and
// PredictIt clients: rate limiting, a circuit breaker, retries with
// exponential backoff and health tracking.
package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/rewired-gh/crossarb/internal/logger"
	"github.com/rewired-gh/crossarb/internal/models"
	"github.com/rewired-gh/crossarb/internal/ratelimit"
)

// ErrCircuitOpen is returned while the breaker rejects requests.
var ErrCircuitOpen = errors.New("circuit breaker open")

// MaxBackoff caps the delay between retries.
const MaxBackoff = 60 * time.Second

// Poller is implemented by every platform client.
type Poller interface {
	Platform() models.Platform
	GetActiveMarkets(ctx context.Context) ([]models.Market, error)
	Status() models.PlatformStatus
}

// HTTPError is a non-2xx response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed if repeated.
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Config configures a Client.
type Config struct {
	Platform          models.Platform
	BaseURL           string
	Timeout           time.Duration
	RequestsPerMinute int
	MaxRetries        int
	BackoffBase       float64
	Headers           map[string]string
}

// Client performs JSON GET requests against one platform's API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	sleep      func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	status models.PlatformStatus
}

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffBase <= 1 {
		cfg.BackoffBase = 2
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        string(cfg.Platform),
		MaxRequests: 1,
		Interval:    0,
		Timeout:     MaxBackoff,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    ratelimit.New(cfg.RequestsPerMinute),
		breaker:    breaker,
		sleep:      sleepCtx,
		status:     models.PlatformStatus{Platform: cfg.Platform, Healthy: true},
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Platform returns the platform this client talks to.
func (c *Client) Platform() models.Platform {
	return c.cfg.Platform
}

// Backoff returns the delay before the given retry attempt (1-based).
func (c *Client) Backoff(attempt int) time.Duration {
	d := time.Duration(math.Pow(c.cfg.BackoffBase, float64(attempt)) * float64(time.Second))
	if d > MaxBackoff || d <= 0 {
		return MaxBackoff
	}
	return d
}

// GetJSON fetches path with the given query and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.Get(ctx, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// Get fetches path and returns the raw body, retrying network errors, 429
// and 5xx responses up to MaxRetries attempts.
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.Backoff(attempt)
			logger.Debug("%s: retrying %s in %v (attempt %d/%d): %v",
				c.cfg.Platform, path, delay, attempt+1, c.cfg.MaxRetries, lastErr)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		body, err := c.breaker.Execute(func() ([]byte, error) {
			return c.do(ctx, u)
		})
		if err == nil {
			return body, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, c.cfg.Platform)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && !httpErr.Retryable() {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) do(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	return io.ReadAll(resp.Body)
}

// RecordSuccess marks a completed poll.
func (c *Client) RecordSuccess(marketCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.ConsecutiveFailures = 0
	c.status.LastSuccess = time.Now()
	c.status.LastError = ""
	c.status.MarketCount = marketCount
	c.status.Healthy = true
}

// RecordFailure marks a failed poll. The platform is unhealthy once
// consecutive failures reach MaxRetries.
func (c *Client) RecordFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.ConsecutiveFailures++
	if err != nil {
		c.status.LastError = err.Error()
	}
	c.status.Healthy = c.status.ConsecutiveFailures < c.cfg.MaxRetries
}

// Track records the outcome of a poll and passes it through.
func (c *Client) Track(markets []models.Market, err error) ([]models.Market, error) {
	if err != nil {
		c.RecordFailure(err)
		return nil, err
	}
	c.RecordSuccess(len(markets))
	return markets, nil
}

// Status returns a snapshot of the client's health.
func (c *Client) Status() models.PlatformStatus {
	c.mu.Lock()
	s := c.status
	c.mu.Unlock()
	s.BreakerState = c.breaker.State().String()
	return s
}
