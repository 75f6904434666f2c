package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/idena-watch/flipwatch/pkg/utils"
)

// ErrNotFound reports that the requested entity has no data upstream.
// It is distinct from a transport failure: callers may treat it as a
// legitimate empty result.
var ErrNotFound = errors.New("not found")

// HTTPClient is a wrapper around an http.Client that implements a circuit-breaker and token-bucket.
// The Idena indexer API is public and rate limited, so every request goes
// through the bucket before it reaches the wire.
type HTTPClient struct {
	endpoints []string
	client    *http.Client

	// token-bucket
	tokens      int64
	maxTokens   int64
	refillEvery time.Duration
	lastRefill  atomic.Value // time.Time

	// circuit-breaker
	mu       sync.Mutex
	failures map[string]int
	opened   map[string]time.Time

	breakerThreshold int
	breakerCooldown  time.Duration
}

// Opts is the set of options for a new HTTPClient.
type Opts struct {
	Endpoints       []string
	Timeout         time.Duration
	RPS             int
	Burst           int
	BreakerFailures int
	BreakerCooldown time.Duration
	HTTPClient      *http.Client
}

// NewHTTPWithOpts creates a new HTTPClient with the given options.
func NewHTTPWithOpts(o Opts) *HTTPClient {
	if o.RPS <= 0 {
		o.RPS = 10
	}
	if o.Burst <= 0 {
		o.Burst = 20
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.BreakerFailures <= 0 {
		o.BreakerFailures = 3
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = 5 * time.Second
	}

	client := o.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	} else if client.Timeout == 0 {
		client.Timeout = o.Timeout
	}

	c := &HTTPClient{
		endpoints:        utils.Dedup(o.Endpoints),
		client:           client,
		maxTokens:        int64(o.Burst),
		refillEvery:      time.Second / time.Duration(o.RPS),
		failures:         map[string]int{},
		opened:           map[string]time.Time{},
		breakerThreshold: o.BreakerFailures,
		breakerCooldown:  o.BreakerCooldown,
	}
	c.tokens = c.maxTokens
	c.lastRefill.Store(time.Now())
	return c
}

// refill credits the token-bucket with one token per elapsed refill
// interval, capped at the burst size.
func (c *HTTPClient) refill() {
	last := c.lastRefill.Load().(time.Time)
	now := time.Now()
	credit := int64(now.Sub(last) / c.refillEvery)
	if credit <= 0 {
		return
	}
	if tokens := atomic.LoadInt64(&c.tokens); tokens < c.maxTokens {
		if tokens+credit > c.maxTokens {
			credit = c.maxTokens - tokens
		}
		atomic.AddInt64(&c.tokens, credit)
	}
	c.lastRefill.Store(now)
}

// acquire acquires a token from the token-bucket, blocking until one is
// available or the context is cancelled.
func (c *HTTPClient) acquire(ctx context.Context) error {
	for {
		c.refill()
		if atomic.LoadInt64(&c.tokens) > 0 {
			atomic.AddInt64(&c.tokens, -1)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.refillEvery / 2):
		}
	}
}

// isOpen returns true if the endpoint is in the OPEN state.
func (c *HTTPClient) isOpen(ep string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.opened[ep]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(c.opened, ep)
		c.failures[ep] = 0
		return false
	}
	return true
}

// noteFailure marks an endpoint as failed and opens the circuit-breaker if the failure count exceeds the threshold.
func (c *HTTPClient) noteFailure(ep string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[ep]++
	if c.failures[ep] >= c.breakerThreshold {
		c.opened[ep] = time.Now().Add(c.breakerCooldown)
	}
}

// apiEnvelope is the response wrapper every Idena indexer endpoint uses.
type apiEnvelope struct {
	Result            json.RawMessage `json:"result"`
	ContinuationToken string          `json:"continuationToken"`
	Error             *apiError       `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
}

// getResult performs a GET against a configured endpoint, unwraps the
// `{result, continuationToken, error}` envelope into out and returns the
// continuation token for paged endpoints.
// It retries across multiple endpoints if the primary attempt fails due to
// circuit-breaker or server-side errors.
func (c *HTTPClient) getResult(ctx context.Context, path string, out any) (string, error) {
	if len(c.endpoints) == 0 {
		return "", fmt.Errorf("no endpoints configured")
	}

	var lastErr error
	for i := 0; i < len(c.endpoints); i++ {
		ep := c.endpoints[i%len(c.endpoints)]
		// Skip endpoints whose breaker is OPEN.
		if c.isOpen(ep) {
			continue
		}

		if err := c.acquire(ctx); err != nil {
			return "", err
		}

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, ep+path, nil)
		if reqErr != nil {
			// Request creation failed: not an endpoint failure, just return.
			return "", reqErr
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			c.noteFailure(ep)
			continue
		}

		// From here on, always drain+close the body before continuing/returning.
		if resp.StatusCode == http.StatusNotFound {
			_ = utils.DrainAndClose(resp.Body)
			return "", ErrNotFound
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server %d", resp.StatusCode)
			c.noteFailure(ep)
			_ = utils.DrainAndClose(resp.Body)
			continue
		}
		if resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("http %d", resp.StatusCode)
			_ = utils.DrainAndClose(resp.Body)
			continue
		}

		var env apiEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			_ = utils.DrainAndClose(resp.Body)
			lastErr = err
			continue
		}
		if cerr := utils.DrainAndClose(resp.Body); cerr != nil {
			return "", cerr
		}

		if env.Error != nil {
			msg := strings.ToLower(env.Error.Message)
			if strings.Contains(msg, "not found") || strings.Contains(msg, "no data") {
				return "", ErrNotFound
			}
			return "", fmt.Errorf("api error: %s", env.Error.Message)
		}

		// A null result is how the API reports "nothing here" for both
		// single entities and empty pages.
		if len(env.Result) == 0 || string(env.Result) == "null" {
			return "", ErrNotFound
		}

		if out != nil {
			if err := json.Unmarshal(env.Result, out); err != nil {
				return "", err
			}
		}
		return env.ContinuationToken, nil
	}

	// Every endpoint was skipped with its breaker open: no request was
	// made, so this must surface as a failure, never as an empty result.
	if lastErr == nil {
		lastErr = fmt.Errorf("all endpoints unavailable: breaker open")
	}
	return "", lastErr
}

// listPaged collects every page of a continuation-token paginated endpoint.
// A NotFound on the first page means the entity has no data and yields an
// empty slice, not an error.
func listPaged[T any](ctx context.Context, c *HTTPClient, path string, limit int) ([]T, error) {
	all := []T{}
	token := ""
	for {
		reqPath := fmt.Sprintf("%s?limit=%d", path, limit)
		if token != "" {
			reqPath += "&continuationToken=" + url.QueryEscape(token)
		}
		var page []T
		next, err := c.getResult(ctx, reqPath, &page)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return all, nil
			}
			return nil, err
		}
		all = append(all, page...)
		if next == "" {
			return all, nil
		}
		token = next
	}
}
