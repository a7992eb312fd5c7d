package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ppiankov/claimcheck/internal/apperr"
	"github.com/ppiankov/claimcheck/internal/cache"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/metrics"
	"github.com/ppiankov/claimcheck/internal/model"
)

// Aggregator queries the search and retrieval providers concurrently and
// turns provider failures into sentinel evidence
type Aggregator struct {
	search    SearchProvider
	retrieval RetrievalProvider
	cache     cache.Cache
	cacheTTL  time.Duration
	metrics   *metrics.Metrics
	log       *slog.Logger
}

// AggregatorOption customizes an Aggregator
type AggregatorOption func(*Aggregator)

// WithCache serves and stores successful provider responses in c
func WithCache(c cache.Cache, ttl time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		a.cache = c
		a.cacheTTL = ttl
	}
}

// WithMetrics counts provider outcomes on m
func WithMetrics(m *metrics.Metrics) AggregatorOption {
	return func(a *Aggregator) { a.metrics = m }
}

// NewAggregator creates an aggregator over the two providers
func NewAggregator(search SearchProvider, retrieval RetrievalProvider, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		search:    search,
		retrieval: retrieval,
		log:       logging.Named("evidence"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Gather returns search evidence followed by retrieval evidence. It never
// fails: a failed provider contributes exactly one sentinel record.
func (a *Aggregator) Gather(ctx context.Context, text string) []model.Evidence {
	var (
		wg        sync.WaitGroup
		searchEv  []model.Evidence
		retrievEv []model.Evidence
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		searchEv = a.runSearch(ctx, text)
	}()
	go func() {
		defer wg.Done()
		retrievEv = a.runRetrieval(ctx, text)
	}()
	wg.Wait()

	out := make([]model.Evidence, 0, len(searchEv)+len(retrievEv))
	out = append(out, searchEv...)
	return append(out, retrievEv...)
}

func (a *Aggregator) runSearch(ctx context.Context, text string) (out []model.Evidence) {
	name := a.search.Name()
	defer a.recoverInto(name, model.EvidenceKindSearch, &out)

	if cached, ok := a.cached(ctx, name, text); ok {
		return cached
	}

	evidence, err := a.search.Query(ctx, text)
	if err != nil {
		return a.degrade(name, model.EvidenceKindSearch, err)
	}
	a.metrics.EvidenceRequest(name, "success")
	a.store(ctx, name, text, evidence)
	return evidence
}

func (a *Aggregator) runRetrieval(ctx context.Context, text string) (out []model.Evidence) {
	name := a.retrieval.Name()
	defer a.recoverInto(name, model.EvidenceKindRetrieval, &out)

	if cached, ok := a.cached(ctx, name, text); ok {
		return cached
	}

	ev, err := a.retrieval.Fetch(ctx, text)
	if err != nil {
		return a.degrade(name, model.EvidenceKindRetrieval, err)
	}
	a.metrics.EvidenceRequest(name, "success")
	evidence := []model.Evidence{ev}
	a.store(ctx, name, text, evidence)
	return evidence
}

func (a *Aggregator) degrade(provider string, kind model.EvidenceKind, err error) []model.Evidence {
	a.metrics.EvidenceRequest(provider, "error")
	a.log.Warn("evidence provider failed", "provider", provider, "error", err)
	return []model.Evidence{model.SentinelEvidence(provider, kind, err)}
}

// recoverInto converts a provider panic into a sentinel
func (a *Aggregator) recoverInto(provider string, kind model.EvidenceKind, out *[]model.Evidence) {
	if r := recover(); r != nil {
		err := apperr.New(apperr.KindProvider, "evidence."+provider, fmt.Sprintf("panic: %v", r))
		*out = a.degrade(provider, kind, err)
	}
}

func (a *Aggregator) cached(ctx context.Context, provider, text string) ([]model.Evidence, bool) {
	if a.cache == nil {
		return nil, false
	}
	data, ok := a.cache.Get(ctx, cache.CacheKey(provider, text))
	if !ok {
		return nil, false
	}
	var evidence []model.Evidence
	if err := json.Unmarshal(data, &evidence); err != nil {
		return nil, false
	}
	a.metrics.EvidenceRequest(provider, "cache_hit")
	return evidence, true
}

func (a *Aggregator) store(ctx context.Context, provider, text string, evidence []model.Evidence) {
	if a.cache == nil {
		return
	}
	data, err := json.Marshal(evidence)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, cache.CacheKey(provider, text), data, a.cacheTTL); err != nil {
		a.log.Debug("cache store failed", "provider", provider, "error", err)
	}
}
