// Package cache provides the shared Redis tier behind the upstream client's
// in-memory cache.
package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix = "fixturecast:upstream:"
	pingTimeout   = 5 * time.Second
)

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	UseTLS   bool
	Prefix   string
}

// RedisLayer stores gzip-compressed upstream bodies with their TTL.
type RedisLayer struct {
	client *redis.Client
	prefix string
}

// NewRedisLayer connects and pings Redis.
func NewRedisLayer(ctx context.Context, cfg Config) (*RedisLayer, error) {
	if cfg.Addr == "" {
		return nil, ErrNoAddress
	}
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)
	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}

	return &RedisLayer{client: client, prefix: prefixOrDefault(cfg.Prefix)}, nil
}

func prefixOrDefault(p string) string {
	if p == "" {
		return defaultPrefix
	}
	return p
}

func (r *RedisLayer) key(k string) string { return r.prefix + k }

// Get returns the body and its remaining lifetime.
func (r *RedisLayer) Get(ctx context.Context, key string) ([]byte, time.Duration, bool, error) {
	pipe := r.client.Pipeline()
	getCmd := pipe.Get(ctx, r.key(key))
	ttlCmd := pipe.PTTL(ctx, r.key(key))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false, err
	}

	val, err := getCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}

	body, err := decompress(val)
	if err != nil {
		return nil, 0, false, fmt.Errorf("decompress %s: %w", key, err)
	}
	ttl := ttlCmd.Val()
	if ttl < 0 {
		// no expiry set or key vanished between commands
		return body, 0, body != nil, nil
	}
	return body, ttl, body != nil, nil
}

// Set stores body for ttl.
func (r *RedisLayer) Set(ctx context.Context, key string, body []byte, ttl time.Duration) error {
	compressed, err := compress(body)
	if err != nil {
		return fmt.Errorf("compress %s: %w", key, err)
	}
	return r.client.Set(ctx, r.key(key), compressed, ttl).Err()
}

// Ping checks connectivity.
func (r *RedisLayer) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (r *RedisLayer) Close() error {
	return r.client.Close()
}

func compress(data []byte) ([]byte, error) {
	var b bytes.Buffer
	w := gzip.NewWriter(&b)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
