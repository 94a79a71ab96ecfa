package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/mtransit/fleetsim/internal/domain/shared"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultMaxRetries   = 3
	defaultBackoffBase  = time.Second
	defaultRateLimit    = 10 // requests per second against the content store
	defaultBurst        = 20
	breakerMaxFailures  = 5
	breakerResetTimeout = 30 * time.Second
)

// ContentClient is a Strapi-style content API client with rate limiting,
// retry with exponential backoff + jitter, and a circuit breaker. All
// repositories against the content store share one instance.
type ContentClient struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	breaker     *CircuitBreaker
	baseURL     string
	token       string
	maxRetries  int
	backoffBase time.Duration
	clock       shared.Clock
}

// NewContentClient creates a client for the content API at baseURL using the
// given bearer token. A nil clock selects the real clock.
func NewContentClient(baseURL, token string, clock shared.Clock) *ContentClient {
	return NewContentClientWithConfig(baseURL, token, defaultTimeout, defaultMaxRetries, defaultBackoffBase, clock)
}

// NewContentClientWithConfig creates a client with explicit timeout and retry
// settings.
func NewContentClientWithConfig(baseURL, token string, timeout time.Duration,
	maxRetries int, backoffBase time.Duration, clock shared.Clock) *ContentClient {

	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &ContentClient{
		httpClient:  &http.Client{Timeout: timeout},
		rateLimiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		breaker:     NewCircuitBreaker(breakerMaxFailures, breakerResetTimeout, clock),
		baseURL:     baseURL,
		token:       token,
		maxRetries:  maxRetries,
		backoffBase: backoffBase,
		clock:       clock,
	}
}

// ListQuery builds the Strapi query string conventions: pagination via
// pagination[page]/pagination[pageSize], filtering via
// filters[<field>][$op]=value, relation hydration via populate.
type ListQuery struct {
	Page     int
	PageSize int
	Filters  []Filter
	Populate string
	Sort     string
}

// Filter is a single filters[field][$op]=value clause.
type Filter struct {
	Field string
	Op    string // $eq, $gte, $lte, ...
	Value string
}

// Encode renders the query string (without the leading '?').
func (q ListQuery) Encode() string {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("pagination[page]", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("pagination[pageSize]", strconv.Itoa(q.PageSize))
	}
	for _, f := range q.Filters {
		v.Set(fmt.Sprintf("filters[%s][%s]", f.Field, f.Op), f.Value)
	}
	if q.Populate != "" {
		v.Set("populate", q.Populate)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	return v.Encode()
}

// Get performs GET /api/{path} and unmarshals the body into result.
func (c *ContentClient) Get(ctx context.Context, path string, result interface{}) error {
	return c.breaker.Call(func() error {
		return c.request(ctx, http.MethodGet, path, nil, result)
	})
}

// Post performs POST /api/{path} with a JSON body.
func (c *ContentClient) Post(ctx context.Context, path string, body, result interface{}) error {
	return c.breaker.Call(func() error {
		return c.request(ctx, http.MethodPost, path, body, result)
	})
}

// Put performs PUT /api/{path} with a JSON body.
func (c *ContentClient) Put(ctx context.Context, path string, body, result interface{}) error {
	return c.breaker.Call(func() error {
		return c.request(ctx, http.MethodPut, path, body, result)
	})
}

// Delete performs DELETE /api/{path}.
func (c *ContentClient) Delete(ctx context.Context, path string) error {
	return c.breaker.Call(func() error {
		return c.request(ctx, http.MethodDelete, path, nil, nil)
	})
}

// Ping verifies the store is reachable with the configured token.
func (c *ContentClient) Ping(ctx context.Context) error {
	var out struct {
		Data []json.RawMessage `json:"data"`
	}
	return c.Get(ctx, "active-passengers?"+ListQuery{Page: 1, PageSize: 1}.Encode(), &out)
}

// CloseIdleConnections releases pooled connections; used by Disconnect.
func (c *ContentClient) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// apiError carries a non-2xx store response. 4xx responses are never
// retried.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("content API error (status %d): %s", e.Status, e.Body)
}

// IsNotFound reports whether err is a 404 from the store.
func IsNotFound(err error) bool {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.Status == http.StatusNotFound
	}
	return false
}

func (c *ContentClient) request(ctx context.Context, method, path string, body, result interface{}) error {
	fullURL := c.baseURL + "/api/" + path

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter error: %w", err)
		}

		var reqBody io.Reader
		if body != nil {
			jsonData, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("failed to marshal request body: %w", err)
			}
			reqBody = bytes.NewBuffer(jsonData)
		}

		req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Network error - retryable
			lastErr = fmt.Errorf("network error: %w", err)
			if attempt >= c.maxRetries {
				break
			}
			if ctx.Err() != nil {
				return fmt.Errorf("context cancelled: %w", ctx.Err())
			}
			c.clock.Sleep(addJitter(c.backoffBase * time.Duration(1<<attempt)))
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		// 429 and 5xx are retryable; everything else either succeeds or
		// fails the call outright.
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = &apiError{Status: resp.StatusCode, Body: truncate(string(respBody), 200)}
			if attempt >= c.maxRetries {
				break
			}
			if ctx.Err() != nil {
				return fmt.Errorf("context cancelled: %w", ctx.Err())
			}
			delay := addJitter(c.backoffBase * time.Duration(1<<attempt))
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				if seconds, err := strconv.Atoi(retryAfter); err == nil {
					delay = time.Duration(seconds) * time.Second
				}
			}
			c.clock.Sleep(delay)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &apiError{Status: resp.StatusCode, Body: truncate(string(respBody), 200)}
		}

		if result != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("failed to unmarshal response: %w", err)
			}
		}
		return nil
	}

	if lastErr != nil {
		return fmt.Errorf("max retries exceeded: %w", lastErr)
	}
	return fmt.Errorf("max retries exceeded")
}

// addJitter adds up to 20% random jitter so retrying clients do not
// synchronize.
func addJitter(d time.Duration) time.Duration {
	jitter := time.Duration(rand.Int63n(int64(d) / 5))
	return d + jitter
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
