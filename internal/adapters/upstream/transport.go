package upstream

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/okian/fixturecast/pkg/fault"
	"github.com/okian/fixturecast/pkg/metrics"
)

const (
	apiKeyHeader = "x-apisports-key"
	maxBodyBytes = 16 << 20
)

// roundTrip performs one request with its own timeout and returns the raw
// body together with the parsed envelope. Every failure is a *fault.Error
// unless the parent context ended.
func (c *Client) roundTrip(ctx context.Context, key CacheKey, timeout time.Duration) (Envelope, []byte, error) {
	op := "GET " + key.Path
	start := time.Now()
	outcome := "error"
	defer func() {
		metrics.RecordUpstreamRequest(string(key.Class), outcome, float64(time.Since(start).Milliseconds()))
	}()

	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(rctx, http.MethodGet, c.baseURL+"/"+key.String(), nil)
	if err != nil {
		return Envelope{}, nil, fault.New(fault.Permanent, op, err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, br")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Envelope{}, nil, ctx.Err()
		}
		outcome = "transport_error"
		return Envelope{}, nil, fault.New(fault.Transient, op, err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		if ctx.Err() != nil {
			return Envelope{}, nil, ctx.Err()
		}
		outcome = "read_error"
		return Envelope{}, nil, &fault.Error{Kind: fault.Transient, Op: op, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		kind := fault.FromStatus(resp.StatusCode)
		if kind == fault.Unknown {
			kind = fault.Permanent
		}
		outcome = kind.String()
		return Envelope{}, nil, &fault.Error{Kind: kind, Op: op, Status: resp.StatusCode, Err: fmt.Errorf("%s", snippet(body))}
	}

	env, err := parseEnvelope(op, resp.StatusCode, body)
	if err != nil {
		outcome = fault.KindOf(err).String()
		return env, nil, err
	}
	outcome = "ok"
	return env, body, nil
}

// readBody undoes the content encoding the upstream chose.
func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "", "identity":
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	case "br":
		r = brotli.NewReader(resp.Body)
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}

	body, err := io.ReadAll(io.LimitReader(r, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBodyBytes {
		return nil, errors.New("response body too large")
	}
	return body, nil
}

func snippet(b []byte) string {
	const max = 200
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		s = s[:max] + "..."
	}
	if s == "" {
		s = "empty body"
	}
	return s
}
