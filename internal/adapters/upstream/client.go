// Package upstream is the resilient client for the football data API: a
// circuit breaker, a bounded two-tier cache, bounded retries and a fallback
// that never leaves the caller without a structurally valid payload.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/okian/fixturecast/pkg/fault"
	"github.com/okian/fixturecast/pkg/logger"
	"github.com/okian/fixturecast/pkg/metrics"
	"github.com/okian/fixturecast/pkg/retry"
)

// Source says where a response came from.
type Source string

// Response sources. Stale, synthetic and empty are fallbacks.
const (
	SourceNetwork   Source = "network"
	SourceCache     Source = "cache"
	SourceStale     Source = "stale"
	SourceSynthetic Source = "synthetic"
	SourceEmpty     Source = "empty"
)

// Response is the best-effort result of a fetch.
type Response struct {
	Envelope  Envelope
	Source    Source
	FetchedAt time.Time
	// Retries is the number of extra network attempts made.
	Retries int
	// Err is the classified upstream failure that forced a fallback.
	Err error
}

// Degraded reports whether the payload is not authoritative upstream data.
func (r *Response) Degraded() bool {
	switch r.Source {
	case SourceStale, SourceSynthetic, SourceEmpty:
		return true
	default:
		return false
	}
}

// Stats is a snapshot of the client state.
type Stats struct {
	Breaker      BreakerSnapshot `json:"breaker"`
	CacheEntries int             `json:"cacheEntries"`
	Production   bool            `json:"production"`
}

// Client fetches upstream endpoints. It is safe for concurrent use.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	production bool

	maxFailures       int
	openTimeout       time.Duration
	halfOpenMaxProbes int
	requestTimeout    time.Duration
	healthTimeout     time.Duration
	sweepInterval     time.Duration
	maxEntries        int
	staleRetention    time.Duration
	ttls              TTLTable
	policy            retry.Policy

	breaker   *breaker
	cache     *memoryCache
	layer     Layer
	reference *referenceData

	now    func() time.Time
	logger logger.Logger

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	done    chan struct{}
}

// New constructs a client. An API key is mandatory.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	c := &Client{
		apiKey:            apiKey,
		baseURL:           DefaultBaseURL,
		httpClient:        &http.Client{},
		maxFailures:       DefaultMaxFailures,
		openTimeout:       DefaultOpenTimeout,
		halfOpenMaxProbes: DefaultHalfOpenMaxProbes,
		requestTimeout:    DefaultRequestTimeout,
		healthTimeout:     DefaultHealthTimeout,
		sweepInterval:     DefaultSweepInterval,
		maxEntries:        DefaultMaxEntries,
		ttls:              DefaultTTLs(),
		policy:            retry.DefaultPolicy(),
		now:               time.Now,
		logger:            logger.Get().Named("upstream"),
	}

	for _, opt := range opts {
		opt(c)
	}

	ref, err := loadReference(referenceYAML)
	if err != nil {
		return nil, err
	}
	c.reference = ref
	c.breaker = newBreaker(c.maxFailures, c.openTimeout, c.halfOpenMaxProbes)
	c.cache = newMemoryCache(c.maxEntries)

	return c, nil
}

// Fetch returns the best available payload for endpoint. It only fails on
// an empty or unparsable endpoint; upstream failures are reported through
// Response.Err and Response.Source.
func (c *Client) Fetch(ctx context.Context, endpoint string) (*Response, error) {
	key, err := ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	log := c.logger.With(logger.String("endpoint", key.String()), logger.String("class", string(key.Class)))

	rejected, t := c.breaker.rejects(c.now())
	c.observe(ctx, t)
	if rejected {
		log.Debug(ctx, "breaker open, skipping network")
		return c.fallback(ctx, key, ErrBreakerOpen), nil
	}

	if resp := c.lookup(ctx, key); resp != nil {
		log.Debug(ctx, "cache hit")
		return resp, nil
	}
	metrics.RecordCacheMiss()

	grant, t := c.breaker.acquire(c.now())
	c.observe(ctx, t)
	if !grant.ok {
		log.Debug(ctx, "no probe permit, skipping network")
		return c.fallback(ctx, key, ErrBreakerOpen), nil
	}

	env, body, retries, err := c.fetchWithRetry(ctx, key)
	if err != nil {
		if ctx.Err() != nil {
			c.breaker.release(grant)
			log.Debug(ctx, "fetch abandoned by caller", logger.Error(ctx.Err()))
			resp := c.fallback(ctx, key, ctx.Err())
			resp.Retries = retries
			return resp, nil
		}

		c.observe(ctx, c.breaker.failure(grant, c.now()))
		kind := fault.KindOf(err)
		metrics.RecordErrorByComponent("upstream", kind.String())
		log.Warn(ctx, "upstream fetch failed",
			logger.String("kind", kind.String()),
			logger.Int("retries", retries),
			logger.Error(err),
		)
		resp := c.fallback(ctx, key, err)
		resp.Retries = retries
		return resp, nil
	}

	c.observe(ctx, c.breaker.success(grant))
	fetchedAt := c.now()
	c.store(ctx, key, env, body, fetchedAt)
	log.Debug(ctx, "fetched from network", logger.Int("results", env.Results), logger.Int("retries", retries))

	return &Response{Envelope: env, Source: SourceNetwork, FetchedAt: fetchedAt, Retries: retries}, nil
}

func (c *Client) fetchWithRetry(ctx context.Context, key CacheKey) (Envelope, []byte, int, error) {
	var (
		env  Envelope
		body []byte
	)
	retries := 0
	policy := c.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		retries++
		metrics.RecordUpstreamRetry(string(key.Class))
		c.logger.Info(ctx, "retrying upstream request",
			logger.String("endpoint", key.String()),
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Error(err),
		)
	}

	err := retry.Do(ctx, policy, func(ctx context.Context, _ int) error {
		var err error
		env, body, err = c.roundTrip(ctx, key, c.requestTimeout)
		return err
	})
	return env, body, retries, err
}

// lookup returns a fresh cached response from memory or the shared layer.
func (c *Client) lookup(ctx context.Context, key CacheKey) *Response {
	now := c.now()
	if e, ok := c.cache.get(key); ok && e.fresh(now) {
		metrics.RecordCacheHit("memory")
		return &Response{Envelope: e.env, Source: SourceCache, FetchedAt: e.fetchedAt}
	}
	if c.layer == nil || ctx.Err() != nil {
		return nil
	}

	body, ttl, ok, err := c.layer.Get(ctx, key.String())
	if err != nil {
		c.logger.Debug(ctx, "cache layer read failed", logger.String("endpoint", key.String()), logger.Error(err))
		return nil
	}
	if !ok || ttl <= 0 {
		return nil
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		c.logger.Debug(ctx, "cache layer entry unreadable", logger.String("endpoint", key.String()), logger.Error(err))
		return nil
	}

	// remaining lifetime in the layer becomes the local lifetime
	e := &entry{env: env, body: body, fetchedAt: now, ttl: ttl}
	c.putLocal(key, e)
	metrics.RecordCacheHit("layer")
	return &Response{Envelope: env, Source: SourceCache, FetchedAt: now}
}

func (c *Client) store(ctx context.Context, key CacheKey, env Envelope, body []byte, fetchedAt time.Time) {
	ttl := c.ttls.For(key.Class)
	c.putLocal(key, &entry{env: env, body: body, fetchedAt: fetchedAt, ttl: ttl})

	if c.layer != nil && ctx.Err() == nil {
		if err := c.layer.Set(ctx, key.String(), body, ttl); err != nil {
			c.logger.Warn(ctx, "cache layer write failed", logger.String("endpoint", key.String()), logger.Error(err))
		}
	}
}

func (c *Client) putLocal(key CacheKey, e *entry) {
	if n := c.cache.put(key, e); n > 0 {
		metrics.RecordCacheEviction("capacity", n)
	}
	metrics.UpdateCacheEntries(c.cache.len())
}

// fallback resolves a payload without the network: any cached entry first,
// then synthetic reference data outside production, then an empty envelope.
func (c *Client) fallback(ctx context.Context, key CacheKey, cause error) *Response {
	now := c.now()
	resp := c.resolveFallback(ctx, key, now)
	resp.Err = cause
	if resp.Degraded() {
		metrics.RecordFallback(string(resp.Source))
	}
	c.logger.Info(ctx, "serving fallback",
		logger.String("endpoint", key.String()),
		logger.String("response_source", string(resp.Source)),
		logger.Error(cause),
	)
	return resp
}

func (c *Client) resolveFallback(ctx context.Context, key CacheKey, now time.Time) *Response {
	if e, ok := c.cache.get(key); ok {
		src := SourceStale
		if e.fresh(now) {
			src = SourceCache
		}
		return &Response{Envelope: e.env, Source: src, FetchedAt: e.fetchedAt}
	}
	if resp := c.lookup(ctx, key); resp != nil {
		return resp
	}
	if !c.production {
		return &Response{Envelope: c.reference.synthesize(key, now), Source: SourceSynthetic, FetchedAt: now}
	}
	return &Response{Envelope: emptyEnvelope(key), Source: SourceEmpty, FetchedAt: now}
}

func (c *Client) observe(ctx context.Context, t transition) {
	if !t.changed() {
		return
	}
	metrics.RecordBreakerTransition(t.from.String(), t.to.String())
	metrics.UpdateBreakerState(t.to.gauge())
	c.logger.Info(ctx, "circuit breaker transition",
		logger.String("from", t.from.String()),
		logger.String("to", t.to.String()),
	)
}

// Health probes the upstream status endpoint with the short health timeout.
// It bypasses the cache and does not count towards the breaker.
func (c *Client) Health(ctx context.Context) error {
	key, _ := ParseEndpoint("status")
	if _, _, err := c.roundTrip(ctx, key, c.healthTimeout); err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	return nil
}

// Stats returns breaker state and cache size.
func (c *Client) Stats() Stats {
	return Stats{
		Breaker:      c.breaker.snapshot(),
		CacheEntries: c.cache.len(),
		Production:   c.production,
	}
}

// Sweep evicts cache entries whose lifetime plus retention has passed.
func (c *Client) Sweep(ctx context.Context) int {
	n := c.cache.sweep(c.now(), c.staleRetention)
	if n > 0 {
		metrics.RecordCacheEviction("expired", n)
		c.logger.Debug(ctx, "cache sweep", logger.Int("evicted", n))
	}
	metrics.UpdateCacheEntries(c.cache.len())
	return n
}

// Start launches the periodic cache sweep.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	c.stopCh = make(chan struct{})
	c.done = make(chan struct{})
	c.started = true

	go c.sweepLoop(ctx, c.stopCh, c.done)
	c.logger.Info(ctx, "upstream client started", logger.Duration("sweepInterval", c.sweepInterval))
	return nil
}

func (c *Client) sweepLoop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Stop ends the sweep and waits for it to exit.
func (c *Client) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	close(c.stopCh)
	done := c.done
	c.started = false
	c.mu.Unlock()

	<-done
}
