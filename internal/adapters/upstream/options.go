package upstream

import (
	"net/http"
	"strings"
	"time"

	"github.com/okian/fixturecast/pkg/logger"
	"github.com/okian/fixturecast/pkg/retry"
)

// Default client configuration.
const (
	DefaultBaseURL           = "https://v3.football.api-sports.io"
	DefaultMaxFailures       = 5
	DefaultOpenTimeout       = 60 * time.Second
	DefaultHalfOpenMaxProbes = 1
	DefaultRequestTimeout    = 10 * time.Second
	DefaultHealthTimeout     = 2 * time.Second
	DefaultSweepInterval     = 5 * time.Minute
	DefaultMaxEntries        = 1000
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithBaseURL sets the upstream base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client. Its Timeout should be zero or
// larger than the request timeout.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithBreaker configures the circuit breaker thresholds.
func WithBreaker(maxFailures int, openTimeout time.Duration, halfOpenMaxProbes int) Option {
	return func(c *Client) {
		if maxFailures > 0 {
			c.maxFailures = maxFailures
		}
		if openTimeout > 0 {
			c.openTimeout = openTimeout
		}
		if halfOpenMaxProbes > 0 {
			c.halfOpenMaxProbes = halfOpenMaxProbes
		}
	}
}

// WithRetryPolicy sets the backoff policy for transient failures.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// WithTimeouts sets the per-request and health-check timeouts.
func WithTimeouts(request, health time.Duration) Option {
	return func(c *Client) {
		if request > 0 {
			c.requestTimeout = request
		}
		if health > 0 {
			c.healthTimeout = health
		}
	}
}

// WithProduction disables synthetic fallback payloads.
func WithProduction(production bool) Option {
	return func(c *Client) {
		c.production = production
	}
}

// WithCache bounds the in-memory cache and sets how long expired entries
// are kept for fallback before the sweep removes them.
func WithCache(maxEntries int, staleRetention time.Duration) Option {
	return func(c *Client) {
		if maxEntries > 0 {
			c.maxEntries = maxEntries
		}
		if staleRetention >= 0 {
			c.staleRetention = staleRetention
		}
	}
}

// WithTTLs overrides lifetimes per endpoint class.
func WithTTLs(ttls TTLTable) Option {
	return func(c *Client) {
		for k, v := range ttls {
			if v > 0 {
				c.ttls[k] = v
			}
		}
	}
}

// WithSweepInterval sets how often expired cache entries are evicted.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.sweepInterval = d
		}
	}
}

// WithLayer adds a shared cache tier behind the in-memory cache.
func WithLayer(l Layer) Option {
	return func(c *Client) {
		c.layer = l
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}
