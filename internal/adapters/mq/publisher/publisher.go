// Package publisher announces terminal ingestion events on an AMQP topic
// exchange so alerting can react to failed and degraded runs.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/okian/fixturecast/internal/domain/model"
	"github.com/okian/fixturecast/pkg/logger"
	"github.com/okian/fixturecast/pkg/metrics"
	"github.com/streadway/amqp"
)

// Defaults.
const (
	DefaultExchange    = "fixturecast.ingestion"
	DefaultHeartbeat   = 30 * time.Second
	DefaultDialTimeout = 5 * time.Second
)

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Dialer opens a channel on a fresh connection within ctx. The returned
// closer releases the connection.
type Dialer func(ctx context.Context, url string) (Channel, func() error, error)

// Config configures the publisher.
type Config struct {
	URL         string
	Exchange    string
	Heartbeat   time.Duration
	DialTimeout time.Duration
}

// Option applies a configuration option to the AMQPPublisher.
type Option func(*AMQPPublisher)

// WithDialer replaces the AMQP dialer.
func WithDialer(d Dialer) Option {
	return func(p *AMQPPublisher) {
		if d != nil {
			p.dial = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(p *AMQPPublisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// AMQPPublisher publishes ingestion events. The connection is opened lazily
// and reopened once after a failed publish.
type AMQPPublisher struct {
	cfg    Config
	dial   Dialer
	logger logger.Logger

	// sem serializes access to the channel; waiting on it honours ctx.
	sem       chan struct{}
	ch        Channel
	closeConn func() error
	closed    bool
}

// New constructs a publisher. No connection is made until the first event.
func New(cfg Config, opts ...Option) (*AMQPPublisher, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, ErrNoURL
	}
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = DefaultHeartbeat
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	p := &AMQPPublisher{
		cfg:    cfg,
		logger: logger.Get().Named("publisher"),
		sem:    make(chan struct{}, 1),
	}
	p.dial = p.dialAMQP
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// dialAMQP connects with a deadline of DialTimeout or ctx, whichever is
// sooner. The deadline covers the handshake; amqp clears it once open.
func (p *AMQPPublisher) dialAMQP(ctx context.Context, url string) (Channel, func() error, error) {
	deadline := time.Now().Add(p.cfg.DialTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	dial := func(network, addr string) (net.Conn, error) {
		d := net.Dialer{Deadline: deadline}
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
	conn, err := amqp.DialConfig(url, amqp.Config{Heartbeat: p.cfg.Heartbeat, Locale: "en_US", Dial: dial})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return ch, conn.Close, nil
}

// RoutingKey is ingestion.<status>.<source>.
func RoutingKey(e model.IngestionEvent) string {
	source := strings.NewReplacer(".", "_", " ", "_").Replace(e.Source)
	return "ingestion." + string(e.Status) + "." + source
}

// Notify publishes e. It satisfies the ingestion tracker's notifier.
func (p *AMQPPublisher) Notify(ctx context.Context, e model.IngestionEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode ingestion event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.ID,
		Timestamp:    time.Now().UTC(),
		Type:         "ingestion." + string(e.Status),
		Body:         body,
	}
	key := RoutingKey(e)

	if err := p.lock(ctx); err != nil {
		metrics.RecordErrorByComponent("publisher", "busy")
		return err
	}
	defer p.unlock()
	if p.closed {
		return ErrClosed
	}

	for attempt := 1; attempt <= 2; attempt++ {
		if err = ctx.Err(); err != nil {
			break
		}
		if err = p.ensureChannel(ctx); err == nil {
			if err = p.ch.Publish(p.cfg.Exchange, key, false, false, msg); err == nil {
				return nil
			}
		}
		p.logger.Warn(ctx, "publish failed",
			logger.String("routing_key", key),
			logger.Int("attempt", attempt),
			logger.Error(err),
		)
		p.reset()
	}
	metrics.RecordErrorByComponent("publisher", "publish")
	return err
}

// lock waits for the channel or gives up with ctx.
func (p *AMQPPublisher) lock(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish ingestion event: %w", ctx.Err())
	}
}

func (p *AMQPPublisher) unlock() { <-p.sem }

// ensureChannel dials and declares the exchange if needed. Caller holds the lock.
func (p *AMQPPublisher) ensureChannel(ctx context.Context) error {
	if p.ch != nil {
		return nil
	}
	ch, closeConn, err := p.dial(ctx, p.cfg.URL)
	if err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(p.cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		if closeConn != nil {
			_ = closeConn()
		}
		return fmt.Errorf("declare exchange %s: %w", p.cfg.Exchange, err)
	}
	p.ch, p.closeConn = ch, closeConn
	return nil
}

// reset drops the current channel. Caller holds the lock.
func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.closeConn != nil {
		_ = p.closeConn()
		p.closeConn = nil
	}
}

// Close releases the connection. Further Notify calls return ErrClosed.
func (p *AMQPPublisher) Close() error {
	p.sem <- struct{}{}
	defer p.unlock()
	p.closed = true
	p.reset()
	return nil
}
