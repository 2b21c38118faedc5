// Package client is an HTTP client for paginated JSON APIs with error-budget
// rate limiting, Redis response caching and retry.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/pagedlist/pkg/cache"
	"github.com/Sternrassler/pagedlist/pkg/logging"
	"github.com/Sternrassler/pagedlist/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Client sends requests to one upstream API.
type Client struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	config      Config
	baseURL     *url.URL
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Redis backs the response cache and the shared error budget.
	Redis redis.UniversalClient

	// BaseURL is prefixed to endpoint paths, e.g. "https://api.example.com".
	BaseURL string

	// UserAgent is sent with every request.
	UserAgent string

	// ErrorThreshold blocks requests when fewer errors remain.
	ErrorThreshold int

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	// MaxRetries overrides the per-class retry count when positive.
	MaxRetries int

	// InitialBackoff overrides the per-class initial backoff when positive.
	InitialBackoff time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(redis redis.UniversalClient, baseURL, userAgent string) Config {
	return Config{
		Redis:          redis,
		BaseURL:        baseURL,
		UserAgent:      userAgent,
		ErrorThreshold: 10,
		Timeout:        30 * time.Second,
	}
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.ErrorThreshold < ratelimit.ThresholdCritical {
		return nil, fmt.Errorf("error_threshold must be >= %d (got %d)", ratelimit.ThresholdCritical, cfg.ErrorThreshold)
	}

	var base *url.URL
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
		}
		base = u
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	logger := logging.NewLogger(logging.ComponentClient)

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		rateLimiter: ratelimit.NewTracker(cfg.Redis,
			logging.NewLogger(logging.ComponentRateLimit),
			ratelimit.WithCriticalThreshold(cfg.ErrorThreshold)),
		cache:   cache.NewManager(cfg.Redis),
		config:  cfg,
		baseURL: base,
		logger:  logger,
	}, nil
}

// retryConfig applies the configured overrides to the per-class defaults.
func (c *Client) retryConfig(class ErrorClass) RetryConfig {
	rc := RetryConfigForErrorClass(class)
	if c.config.MaxRetries > 0 {
		rc.MaxAttempts = c.config.MaxRetries + 1
	}
	if c.config.InitialBackoff > 0 {
		rc.InitialBackoff = c.config.InitialBackoff
		if rc.MaxBackoff < rc.InitialBackoff {
			rc.MaxBackoff = rc.InitialBackoff
		}
	}
	return rc
}

// Do sends req through the rate limiter, the response cache and the retry
// loop. 4xx responses other than 429 are returned to the caller as-is.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
	if err != nil {
		if isContextError(err) {
			return nil, fmt.Errorf("%w: %w", ErrContextCancelled, err)
		}
		c.logger.Error().Err(err).Msg("Rate limit check failed")
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	if !allowed {
		c.logger.Warn().
			Str("endpoint", endpoint).
			Msg("Request blocked by rate limiter")
		requestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
		return nil, ErrRequestBlocked
	}

	cacheable := req.Method == http.MethodGet
	cacheKey := keyFor(req.URL)

	var stale *cache.Entry
	if cacheable {
		if entry, err := c.cache.Get(ctx, cacheKey); err == nil {
			c.logger.Debug().Str("key", cacheKey.String()).Msg("Serving response from cache")
			requestsTotal.WithLabelValues(endpoint, "cached").Inc()
			return cache.EntryToResponse(entry), nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}

		if entry, err := c.cache.GetStale(ctx, cacheKey); err == nil && entry.CanRevalidate() {
			stale = entry
			cache.AddConditionalHeaders(req, stale)
			cache.ConditionalRequests.Inc()
			c.logger.Debug().
				Str("endpoint", endpoint).
				Str("etag", stale.ETag).
				Msg("Making conditional request")
		}
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing request")

	var resp *http.Response
	err = retryWithBackoff(ctx, c.logger, c.retryConfig, func() error {
		r, err := c.httpClient.Do(req)
		if err != nil {
			if isContextError(err) || ctx.Err() != nil {
				return err
			}
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
			return err
		}

		if err := c.rateLimiter.UpdateFromHeaders(ctx, r.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
		}

		class := classifyStatus(r.StatusCode)
		if class == "" {
			resp = r
			return nil
		}

		errorsTotal.WithLabelValues(string(class)).Inc()
		requestsTotal.WithLabelValues(endpoint, strconv.Itoa(r.StatusCode)).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", r.StatusCode).
			Str("error_class", string(class)).
			Msg("Request error")

		if !shouldRetry(class) {
			resp = r
			return nil
		}
		r.Body.Close()
		return newAPIError(r)
	})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotModified && stale != nil {
		resp.Body.Close()
		requestsTotal.WithLabelValues(endpoint, "304").Inc()
		cache.NotModified.Inc()
		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified, using cache")

		expires := time.Now().Add(cache.DefaultTTL)
		if raw := resp.Header.Get("Expires"); raw != "" {
			if t, err := http.ParseTime(raw); err == nil {
				expires = t
			}
		}
		if err := c.cache.UpdateTTL(ctx, cacheKey, expires); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update cache TTL")
		}
		return cache.EntryToResponse(stale), nil
	}

	if resp.StatusCode < 400 {
		requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	}

	if cacheable && resp.StatusCode == http.StatusOK {
		entry, err := cache.ResponseToEntry(resp)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		} else {
			c.logger.Debug().
				Str("endpoint", endpoint).
				Dur("ttl", entry.TTL()).
				Msg("Cached response")
		}
	}

	return resp, nil
}

// Get sends a GET request for endpoint with the given query parameters.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(endpoint, query), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.Do(req)
}

// resolve builds the absolute URL for endpoint. Endpoints that are already
// absolute are used unchanged.
func (c *Client) resolve(endpoint string, query url.Values) string {
	u, err := url.Parse(endpoint)
	if err != nil || c.baseURL == nil || u.IsAbs() {
		if len(query) == 0 {
			return endpoint
		}
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		return endpoint + sep + query.Encode()
	}

	resolved := *c.baseURL
	resolved.Path = strings.TrimRight(c.baseURL.Path, "/") + "/" + strings.TrimLeft(u.Path, "/")
	q := u.Query()
	for name, values := range query {
		q[name] = values
	}
	resolved.RawQuery = q.Encode()
	return resolved.String()
}

// keyFor derives the cache key for a request URL.
func keyFor(u *url.URL) cache.Key {
	q := u.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	return cache.Key{
		Endpoint: u.Path,
		Query:    q,
		Page:     page,
	}
}

// Ping checks the Redis connection shared by the cache and the rate limiter.
func (c *Client) Ping(ctx context.Context) error {
	return c.config.Redis.Ping(ctx).Err()
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient replaces the HTTP client, e.g. to install a test transport.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Cache returns the response cache.
func (c *Client) Cache() *cache.Manager {
	return c.cache
}
