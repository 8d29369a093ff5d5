package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/okian/fixturecast/internal/adapters/cache"
	"github.com/okian/fixturecast/internal/adapters/http/api"
	"github.com/okian/fixturecast/internal/adapters/http/swagger"
	"github.com/okian/fixturecast/internal/adapters/modelsvc"
	"github.com/okian/fixturecast/internal/adapters/mq/publisher"
	"github.com/okian/fixturecast/internal/adapters/repository"
	"github.com/okian/fixturecast/internal/adapters/upstream"
	app "github.com/okian/fixturecast/internal/app"
	"github.com/okian/fixturecast/internal/config"
	"github.com/okian/fixturecast/pkg/logger"
	"github.com/okian/fixturecast/pkg/retry"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 60 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// Text logging until the configured format is known.
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.InitWithFormat(cfg.LogFormat, os.Stdout); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "fixturecast exited", logger.Error(err))
		os.Exit(1)
	}
}

// run serves until ctx is cancelled and then shuts down gracefully.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	svc, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// redisLayer is the shared cache tier as buildService sees it.
type redisLayer interface {
	upstream.Layer
	io.Closer
}

var newRedisLayer = func(ctx context.Context, cfg cache.Config) (redisLayer, error) {
	l, err := cache.NewRedisLayer(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// buildService assembles the client, storage and optional integrations.
// Anything opened before a failure is closed again.
func buildService(ctx context.Context, cfg *config.Config) (svc *app.Service, err error) {
	var opened []io.Closer
	defer func() {
		if err == nil {
			return
		}
		for i := len(opened) - 1; i >= 0; i-- {
			_ = opened[i].Close()
		}
	}()

	policy := retry.Policy{
		MaxRetries: cfg.RetryMax,
		BaseDelay:  config.Ms(cfg.RetryBaseMS),
		MaxDelay:   config.Ms(cfg.RetryMaxDelayMS),
		Jitter:     config.Ms(cfg.RetryJitterMS),
	}

	clientOpts := []upstream.Option{
		upstream.WithBaseURL(cfg.APIBaseURL),
		upstream.WithBreaker(cfg.BreakerMaxFailures, config.Ms(cfg.BreakerOpenTimeoutMS), cfg.BreakerHalfOpenProbes),
		upstream.WithRetryPolicy(policy),
		upstream.WithTimeouts(config.Ms(cfg.APITimeoutMS), config.Ms(cfg.HealthTimeoutMS)),
		upstream.WithProduction(cfg.Production),
		upstream.WithCache(cfg.CacheMaxEntries, config.Ms(cfg.CacheStaleRetentionMS)),
		upstream.WithSweepInterval(config.Ms(cfg.CacheSweepIntervalMS)),
	}
	var svcOpts []app.Option

	if cfg.RedisAddr != "" {
		layer, err := newRedisLayer(ctx, cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			UseTLS:   cfg.RedisTLS,
			Prefix:   cfg.RedisPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		opened = append(opened, layer)
		clientOpts = append(clientOpts, upstream.WithLayer(layer))
		svcOpts = append(svcOpts, app.WithCloser(layer))
	}

	client, err := upstream.New(cfg.APIKey, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("upstream client: %w", err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	opened = append(opened, store)
	svcOpts = append(svcOpts,
		app.WithStore(store),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithJobTimeout(config.Ms(cfg.JobTimeoutMS)),
		app.WithMaxFactors(cfg.MaxKeyFactors),
		app.WithBatchConcurrency(cfg.BatchConcurrency),
		app.WithSummaryLimit(cfg.SummaryLimit),
	)

	if cfg.ModelURL != "" {
		m, err := modelsvc.New(cfg.ModelURL,
			modelsvc.WithTimeouts(config.Ms(cfg.ModelTimeoutMS), config.Ms(cfg.ModelHealthTimeoutMS)),
			modelsvc.WithRetryPolicy(policy),
		)
		if err != nil {
			return nil, fmt.Errorf("model client: %w", err)
		}
		svcOpts = append(svcOpts, app.WithModel(m))
	}

	if cfg.AMQPURL != "" {
		pub, err := publisher.New(publisher.Config{URL: cfg.AMQPURL, Exchange: cfg.AMQPExchange})
		if err != nil {
			return nil, fmt.Errorf("amqp publisher: %w", err)
		}
		opened = append(opened, pub)
		svcOpts = append(svcOpts, app.WithNotifier(pub), app.WithCloser(pub))
	}

	svc, err = app.New(client, svcOpts...)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.DBDriver {
	case config.DriverMemory:
		return repository.NewMemoryStore(), nil
	case config.DriverPostgres:
		return repository.OpenSQL(ctx, repository.DialectPostgres, cfg.DBDSN)
	case config.DriverSQLite:
		return repository.OpenSQL(ctx, repository.DialectSQLite, cfg.DBDSN)
	default:
		return nil, fmt.Errorf("%w: %q", repository.ErrUnsupportedDialect, cfg.DBDriver)
	}
}

// newHandler routes the ops API and the docs behind the CORS policy.
func newHandler(ctx context.Context, cfg *config.Config, svc *app.Service) http.Handler {
	apiServer := api.NewServer(svc, svc,
		api.WithMaxBatchSize(cfg.MaxBatchSize),
		api.WithCORSOrigins(cfg.Origins()),
	)

	r := mux.NewRouter()
	swagger.Register(ctx, r)
	apiServer.Register(ctx, r)
	return apiServer.CORS(r)
}

// startServiceMetricsUpdater refreshes queue and worker gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats updates the gauges as a side effect.
			_ = svc.GetStats()
		}
	}
}
