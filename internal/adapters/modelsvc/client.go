// Package modelsvc talks to the separately hosted model-scoring service.
// Every call goes through the shared bounded-retry helper.
package modelsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/fixturecast/internal/domain/model"
	"github.com/okian/fixturecast/pkg/fault"
	"github.com/okian/fixturecast/pkg/logger"
	"github.com/okian/fixturecast/pkg/retry"
)

// Default client configuration.
const (
	DefaultPredictTimeout = 10 * time.Second
	DefaultHealthTimeout  = 2 * time.Second
	maxResponseBytes      = 4 << 20
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithTimeouts sets the prediction and health-check timeouts.
func WithTimeouts(predict, health time.Duration) Option {
	return func(c *Client) {
		if predict > 0 {
			c.predictTimeout = predict
		}
		if health > 0 {
			c.healthTimeout = health
		}
	}
}

// WithRetryPolicy sets the backoff policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client is an HTTP client for the model service.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	predictTimeout time.Duration
	healthTimeout  time.Duration
	policy         retry.Policy
	logger         logger.Logger
}

// New constructs a client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, ErrNoBaseURL
	}
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{},
		predictTimeout: DefaultPredictTimeout,
		healthTimeout:  DefaultHealthTimeout,
		policy:         retry.DefaultPolicy(),
		logger:         logger.Get().Named("modelsvc"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Predict calls POST /predict.
func (c *Client) Predict(ctx context.Context, req PredictRequest) (*Prediction, error) {
	var out Prediction
	if err := c.call(ctx, http.MethodPost, "/predict", req, &out, c.predictTimeout); err != nil {
		return nil, err
	}
	return &out, nil
}

// PredictBatch calls POST /predictions/batch.
func (c *Client) PredictBatch(ctx context.Context, reqs []PredictRequest) ([]Prediction, error) {
	var out batchResponse
	if err := c.call(ctx, http.MethodPost, "/predictions/batch", reqs, &out, c.predictTimeout); err != nil {
		return nil, err
	}
	return out, nil
}

// Status calls GET /model/status.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var out Status
	if err := c.call(ctx, http.MethodGet, "/model/status", nil, &out, c.healthTimeout); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health calls GET / with the short health timeout.
func (c *Client) Health(ctx context.Context) error {
	var out map[string]any
	return c.call(ctx, http.MethodGet, "/", nil, &out, c.healthTimeout)
}

// Train calls POST /train.
func (c *Client) Train(ctx context.Context, req TrainRequest) (*TrainResponse, error) {
	var out TrainResponse
	if err := c.call(ctx, http.MethodPost, "/train", req, &out, c.predictTimeout); err != nil {
		return nil, err
	}
	return &out, nil
}

type featuresResponse struct {
	FixtureID int64               `json:"fixture_id"`
	Features  model.MatchFeatures `json:"features"`
}

// Features calls GET /features/{fixtureId}.
func (c *Client) Features(ctx context.Context, fixtureID, homeTeamID, awayTeamID int64) (*model.MatchFeatures, error) {
	q := url.Values{}
	q.Set("home_team_id", strconv.FormatInt(homeTeamID, 10))
	q.Set("away_team_id", strconv.FormatInt(awayTeamID, 10))
	path := "/features/" + strconv.FormatInt(fixtureID, 10) + "?" + q.Encode()

	var out featuresResponse
	if err := c.call(ctx, http.MethodGet, path, nil, &out, c.predictTimeout); err != nil {
		return nil, err
	}
	f := out.Features
	f.FixtureID = fixtureID
	if f.HomeTeamID == 0 {
		f.HomeTeamID = homeTeamID
	}
	if f.AwayTeamID == 0 {
		f.AwayTeamID = awayTeamID
	}
	return &f, nil
}

func (c *Client) call(ctx context.Context, method, path string, in, out any, timeout time.Duration) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		payload = b
	}

	policy := c.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		c.logger.Debug(ctx, "retrying model service call",
			logger.String("path", path),
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Error(err),
		)
	}

	return retry.Do(ctx, policy, func(ctx context.Context, _ int) error {
		return c.once(ctx, method, path, payload, out, timeout)
	})
}

func (c *Client) once(ctx context.Context, method, path string, payload []byte, out any, timeout time.Duration) error {
	op := method + " " + path
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(rctx, method, c.baseURL+path, body)
	if err != nil {
		return fault.New(fault.Permanent, op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fault.New(fault.Transient, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &fault.Error{Kind: fault.Transient, Op: op, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		kind := fault.FromStatus(resp.StatusCode)
		if kind == fault.Unknown {
			kind = fault.Permanent
		}
		return &fault.Error{Kind: kind, Op: op, Status: resp.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(raw)))}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &fault.Error{Kind: fault.Malformed, Op: op, Status: resp.StatusCode, Err: err}
	}
	return nil
}
