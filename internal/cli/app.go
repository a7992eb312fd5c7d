package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ppiankov/claimcheck/internal/cache"
	"github.com/ppiankov/claimcheck/internal/evidence"
	"github.com/ppiankov/claimcheck/internal/extract"
	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/metrics"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/pipeline"
	"github.com/ppiankov/claimcheck/internal/synthesize"
	"github.com/ppiankov/claimcheck/internal/tracing"
	"github.com/ppiankov/claimcheck/internal/validate"
	"github.com/ppiankov/claimcheck/internal/worker"
)

// app holds the long-lived components built once per process
type app struct {
	cfg       *model.Config
	log       *slog.Logger
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	provider  llm.Provider
	processor *pipeline.Processor
	cache     cache.Cache
	closers   []func(context.Context) error
}

// newApp wires the pipeline from a validated config
func newApp(ctx context.Context, cfg *model.Config, logOut io.Writer) (*app, error) {
	if logOut == nil {
		logOut = os.Stderr
	}
	a := &app{
		cfg: cfg,
		log: logging.Init(cfg.Logging, logOut),
	}

	shutdownTracing, err := tracing.Init(cfg.Tracing, Version, logOut)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, shutdownTracing)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)

	a.provider, err = llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return nil, fmt.Errorf("create generation provider: %w", err)
	}
	gen := llm.NewGenerator(a.provider, cfg.LLM, llm.WithMetrics(a.metrics))

	limiter := worker.NewLimiterFromConfig(cfg.RateLimiting)
	clientOpts := evidence.ClientOptions{
		Limiter:    limiter,
		HTTPProxy:  cfg.LLM.HTTPProxy,
		HTTPSProxy: cfg.LLM.HTTPSProxy,
	}

	aggOpts := []evidence.AggregatorOption{evidence.WithMetrics(a.metrics)}
	a.cache, err = cache.New(ctx, cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	if a.cache != nil {
		aggOpts = append(aggOpts, evidence.WithCache(a.cache, cfg.Cache.TTL))
		if closer, ok := a.cache.(io.Closer); ok {
			a.closers = append(a.closers, func(context.Context) error { return closer.Close() })
		}
		a.log.Info("evidence cache enabled", "backend", cfg.Cache.Backend, "ttl", cfg.Cache.TTL)
	}

	aggregator := evidence.NewAggregator(
		evidence.NewSerpAPI(cfg.Search, clientOpts),
		evidence.NewJina(cfg.Retrieval, clientOpts),
		aggOpts...,
	)

	opts := []pipeline.Option{
		pipeline.WithMetrics(a.metrics),
		pipeline.WithMaxClaimChars(cfg.Pipeline.MaxClaimChars),
	}
	if cfg.Citations.Check {
		checker := validate.NewCitationChecker(cfg.Citations, &cfg.Authority, limiter, cfg.LLM.HTTPProxy, cfg.LLM.HTTPSProxy)
		opts = append(opts, pipeline.WithCitationChecker(checker))
	}

	a.processor = pipeline.New(
		extract.NewSubclaimExtractor(gen),
		extract.NewSubclaimVerifier(gen),
		aggregator,
		synthesize.New(gen, a.provider.Name(), gen.ModelName()),
		opts...,
	)

	a.log.Debug("pipeline ready",
		"provider", a.provider.Name(),
		"model", cfg.LLM.Model,
		"citations", cfg.Citations.Check,
	)
	return a, nil
}

// Close flushes tracing and releases the cache
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
