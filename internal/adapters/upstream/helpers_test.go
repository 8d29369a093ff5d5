package upstream

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/okian/fixturecast/pkg/logger"
	"github.com/okian/fixturecast/pkg/retry"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeUpstream serves scripted responses and counts requests.
type fakeUpstream struct {
	*httptest.Server
	hits     atomic.Int64
	mu       sync.Mutex
	handler  http.HandlerFunc
	lastKey  string
	lastPath string
}

func newFakeUpstream() *fakeUpstream {
	f := &fakeUpstream{}
	f.handler = okHandler(`[{"id":1}]`)
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		f.mu.Lock()
		h := f.handler
		f.lastKey = r.Header.Get(apiKeyHeader)
		f.lastPath = r.URL.RequestURI()
		f.mu.Unlock()
		h(w, r)
	}))
	return f
}

func (f *fakeUpstream) respond(h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

func (f *fakeUpstream) requests() int { return int(f.hits.Load()) }

func envelopeJSON(response string, results int) string {
	return fmt.Sprintf(`{"get":"fixtures","parameters":{},"errors":[],"results":%d,"paging":{"current":1,"total":1},"response":%s}`, results, response)
}

func okHandler(response string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(envelopeJSON(response, 1)))
	}
}

func statusHandler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"message":"boom"}`))
	}
}

func rawHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}
}

func encodedHandler(encoding, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		var buf bytes.Buffer
		switch encoding {
		case "gzip":
			zw := gzip.NewWriter(&buf)
			_, _ = zw.Write([]byte(body))
			_ = zw.Close()
		case "br":
			bw := brotli.NewWriter(&buf)
			_, _ = bw.Write([]byte(body))
			_ = bw.Close()
		}
		w.Header().Set("Content-Encoding", encoding)
		_, _ = w.Write(buf.Bytes())
	}
}

func noRetry() retry.Policy {
	return retry.Policy{MaxRetries: 0}
}

func fastRetry(n int) retry.Policy {
	return retry.Policy{MaxRetries: n, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

// memLayer is an in-process Layer used to exercise the shared tier.
type memLayer struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
	sets int
}

func newMemLayer() *memLayer {
	return &memLayer{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memLayer) Get(_ context.Context, key string) ([]byte, time.Duration, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	return b, m.ttls[key], ok, nil
}

func (m *memLayer) Set(_ context.Context, key string, body []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = body
	m.ttls[key] = ttl
	m.sets++
	return nil
}
