package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/claimcheck/internal/apperr"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/metrics"
	"github.com/ppiankov/claimcheck/internal/model"
)

// errEmptyResponse marks an attempt that returned no text
var errEmptyResponse = errors.New("empty response")

// Generator wraps a Provider with a bounded retry policy
type Generator struct {
	provider    Provider
	model       string
	maxAttempts int
	timeout     time.Duration // Per attempt
	backoff     time.Duration // Base delay, doubles per retry
	maxTokens   int
	temperature float64

	// sleep waits between attempts (injectable for tests)
	sleep   func(ctx context.Context, d time.Duration) error
	metrics *metrics.Metrics
	log     *slog.Logger
}

// GeneratorOption customizes a Generator
type GeneratorOption func(*Generator)

// WithMetrics records attempts on m
func WithMetrics(m *metrics.Metrics) GeneratorOption {
	return func(g *Generator) { g.metrics = m }
}

// WithSleep replaces the backoff sleep
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) GeneratorOption {
	return func(g *Generator) { g.sleep = sleep }
}

// WithLogger sets the logger
func WithLogger(log *slog.Logger) GeneratorOption {
	return func(g *Generator) { g.log = log }
}

// NewGenerator creates a Generator from the llm config section
func NewGenerator(provider Provider, cfg model.LLMConfig, opts ...GeneratorOption) *Generator {
	g := &Generator{
		provider:    provider,
		model:       cfg.Model,
		maxAttempts: cfg.MaxAttempts,
		timeout:     cfg.Timeout,
		backoff:     cfg.Backoff,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		sleep:       sleepContext,
		log:         logging.Named("llm"),
	}
	if g.maxAttempts < 1 {
		g.maxAttempts = 1
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Provider returns the wrapped provider
func (g *Generator) Provider() Provider {
	return g.provider
}

// ModelName returns the configured model name
func (g *Generator) ModelName() string {
	return g.model
}

// Generate returns the provider's text for prompt. It fails with a
// generation error only after every attempt failed or ctx was cancelled.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	name := g.provider.Name()

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", apperr.Wrap(apperr.KindGeneration, "llm.generate", err, "generation cancelled")
		}

		text, err := g.attempt(ctx, prompt)
		if err == nil {
			g.metrics.GenerationAttempt(name, "success")
			g.log.Debug("generation succeeded", "provider", name, "attempt", attempt)
			return text, nil
		}

		lastErr = err
		outcome := "error"
		if errors.Is(err, errEmptyResponse) {
			outcome = "empty"
		}
		g.metrics.GenerationAttempt(name, outcome)
		g.log.Warn("generation attempt failed",
			"provider", name,
			"attempt", attempt,
			"max_attempts", g.maxAttempts,
			"error", err)

		if attempt < g.maxAttempts {
			delay := g.backoff * time.Duration(1<<uint(attempt-1))
			if err := g.sleep(ctx, delay); err != nil {
				return "", apperr.Wrap(apperr.KindGeneration, "llm.generate", err, "generation cancelled")
			}
		}
	}

	return "", apperr.Wrap(apperr.KindGeneration, "llm.generate", lastErr,
		fmt.Sprintf("failed after %d attempts", g.maxAttempts))
}

func (g *Generator) attempt(ctx context.Context, prompt string) (string, error) {
	attemptCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.provider.Generate(attemptCtx, GenerateRequest{
		Prompt:      prompt,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		return "", err
	}
	if resp == nil || resp.Text == "" {
		return "", errEmptyResponse
	}
	return resp.Text, nil
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
