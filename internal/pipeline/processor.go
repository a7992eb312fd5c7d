// Package pipeline runs a claim through decomposition, verification,
// evidence gathering and synthesis.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppiankov/claimcheck/internal/apperr"
	"github.com/ppiankov/claimcheck/internal/extract"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/metrics"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/tracing"
)

// Extractor decomposes a claim into subclaims
type Extractor interface {
	Extract(ctx context.Context, claim model.Claim) ([]model.Subclaim, error)
}

// Verifier cross-checks subclaims
type Verifier interface {
	Verify(ctx context.Context, claim model.Claim, subclaims []model.Subclaim) ([]model.Subclaim, error)
}

// Gatherer collects evidence. It never fails; provider errors become sentinels.
type Gatherer interface {
	Gather(ctx context.Context, text string) []model.Evidence
}

// Synthesizer produces the verdict
type Synthesizer interface {
	Synthesize(ctx context.Context, claim model.Claim, subclaims []model.Subclaim, evidence []model.Evidence) (*model.Verdict, error)
}

// CitationChecker annotates cited URLs. It never fails.
type CitationChecker interface {
	Check(ctx context.Context, urls []string, evidence []model.Evidence) []model.Citation
}

// Processor orchestrates one claim at a time. It holds no per-request state
// and is safe for concurrent use.
type Processor struct {
	extractor   Extractor
	verifier    Verifier
	gatherer    Gatherer
	synthesizer Synthesizer
	citations   CitationChecker // nil skips the citation stage

	maxClaimChars int
	metrics       *metrics.Metrics
	tracer        trace.Tracer
	log           *slog.Logger
	newID         func() string
	now           func() time.Time
}

// Option configures a Processor
type Option func(*Processor)

// WithCitationChecker enables the citation stage
func WithCitationChecker(c CitationChecker) Option {
	return func(p *Processor) { p.citations = c }
}

// WithMetrics records stage durations and outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithMaxClaimChars overrides the claim length bound; <= 0 disables it
func WithMaxClaimChars(n int) Option {
	return func(p *Processor) { p.maxClaimChars = n }
}

// WithIDFunc overrides request ID generation
func WithIDFunc(f func() string) Option {
	return func(p *Processor) { p.newID = f }
}

// WithClock overrides the transition clock
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// New creates a Processor from its stages
func New(extractor Extractor, verifier Verifier, gatherer Gatherer, synthesizer Synthesizer, opts ...Option) *Processor {
	p := &Processor{
		extractor:     extractor,
		verifier:      verifier,
		gatherer:      gatherer,
		synthesizer:   synthesizer,
		maxClaimChars: model.DefaultMaxClaimChars,
		tracer:        tracing.Tracer("pipeline"),
		log:           logging.Named("pipeline"),
		newID:         uuid.NewString,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result is the outcome of one run. It is returned even on failure so
// callers can report the request ID.
type Result struct {
	RequestID string
	Verdict   *model.Verdict
	State     State
	History   []Transition
}

// Process runs a claim and returns only the verdict
func (p *Processor) Process(ctx context.Context, claim string) (*model.Verdict, error) {
	res, err := p.Run(ctx, claim)
	if err != nil {
		return nil, err
	}
	return res.Verdict, nil
}

// Run drives the claim through every stage. Returned errors are *apperr.Error
// with kind validation, generation or pipeline.
func (p *Processor) Run(ctx context.Context, raw string) (res *Result, err error) {
	run := newRun(p.newID(), p.now)
	log := p.log.With("request_id", run.ID)
	start := time.Now()

	ctx, span := p.tracer.Start(ctx, "claim.process", trace.WithAttributes(
		attribute.String("request_id", run.ID),
	))

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while processing claim", "panic", r, "state", run.State)
			err = apperr.New(apperr.KindPipeline, "pipeline.run", fmt.Sprintf("panic in %s: %v", run.State, r))
		}
		if err != nil {
			kind := apperr.KindOf(err)
			err = ensureTyped(err)
			failedAt := run.State
			run.fail(kind)
			p.metrics.ClaimProcessed(string(kind))
			span.RecordError(err)
			span.SetStatus(codes.Error, string(kind))
			log.Warn("claim failed", "kind", kind, "failed_at", failedAt, "error", err)
		}
		p.metrics.ObserveStage("total", time.Since(start))
		span.SetAttributes(attribute.String("state", string(run.State)))
		span.End()
		res = &Result{RequestID: run.ID, Verdict: res.verdictOrNil(), State: run.State, History: run.History}
	}()

	claim := model.NormalizeClaim(raw)
	if problem := claim.Check(p.maxClaimChars); problem != model.ClaimOK {
		return nil, apperr.New(apperr.KindValidation, "pipeline.validate", string(problem))
	}
	log.Info("claim received", "claim_chars", utf8.RuneCountInString(string(claim)))

	var subclaims []model.Subclaim
	err = p.stage(ctx, "extract", func(ctx context.Context) error {
		var err error
		subclaims, err = p.extractor.Extract(ctx, claim)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := run.advance(StateDecomposed); err != nil {
		return nil, err
	}

	if extract.IsSentinel(subclaims) {
		log.Info("claim rejected as malformed")
		verdict := &model.Verdict{
			Claim:     claim,
			Subclaims: subclaims,
			Evidence:  []model.Evidence{},
			Text:      string(model.MalformedClaimSentinel),
			Rejected:  true,
			CreatedAt: p.now().UTC(),
		}
		if err := run.advance(StateCompleted); err != nil {
			return nil, err
		}
		p.metrics.ClaimProcessed("rejected")
		return &Result{Verdict: verdict}, nil
	}

	err = p.stage(ctx, "verify", func(ctx context.Context) error {
		var err error
		subclaims, err = p.verifier.Verify(ctx, claim, subclaims)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := run.advance(StateVerified); err != nil {
		return nil, err
	}

	var evidence []model.Evidence
	p.step(ctx, "gather", func(ctx context.Context) {
		evidence = p.gatherer.Gather(ctx, string(claim))
	})
	if err := run.advance(StateEvidenceGathered); err != nil {
		return nil, err
	}

	var verdict *model.Verdict
	err = p.stage(ctx, "synthesize", func(ctx context.Context) error {
		var err error
		verdict, err = p.synthesizer.Synthesize(ctx, claim, subclaims, evidence)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := run.advance(StateSynthesized); err != nil {
		return nil, err
	}

	if p.citations != nil && len(verdict.CitedURLs) > 0 {
		p.step(ctx, "citations", func(ctx context.Context) {
			verdict.Citations = p.citations.Check(ctx, verdict.CitedURLs, verdict.Evidence)
		})
	}

	if err := run.advance(StateCompleted); err != nil {
		return nil, err
	}
	p.metrics.ClaimProcessed("completed")
	log.Info("claim completed",
		"subclaims", len(verdict.Subclaims),
		"evidence", len(verdict.Evidence),
		"degraded", verdict.DegradedProviders(),
		"warnings", len(verdict.Warnings),
	)
	return &Result{Verdict: verdict}, nil
}

// stage runs fn inside a span and records its duration
func (p *Processor) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "claim."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	p.metrics.ObserveStage(name, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperr.KindOf(err)))
		p.log.Debug("stage failed", "stage", name, "error", err)
	}
	return err
}

// step runs a stage that cannot fail
func (p *Processor) step(ctx context.Context, name string, fn func(context.Context)) {
	ctx, span := p.tracer.Start(ctx, "claim."+name)
	defer span.End()

	start := time.Now()
	fn(ctx)
	p.metrics.ObserveStage(name, time.Since(start))
}

func (r *Result) verdictOrNil() *model.Verdict {
	if r == nil {
		return nil
	}
	return r.Verdict
}

// Decompose validates the claim and returns its verified subclaims without
// gathering evidence. A rejected claim yields the sentinel subclaim.
func (p *Processor) Decompose(ctx context.Context, raw string) ([]model.Subclaim, error) {
	claim := model.NormalizeClaim(raw)
	if problem := claim.Check(p.maxClaimChars); problem != model.ClaimOK {
		return nil, apperr.New(apperr.KindValidation, "pipeline.validate", string(problem))
	}

	ctx, span := p.tracer.Start(ctx, "claim.decompose")
	defer span.End()

	subclaims, err := p.extractor.Extract(ctx, claim)
	if err != nil {
		return nil, ensureTyped(err)
	}
	if extract.IsSentinel(subclaims) {
		return subclaims, nil
	}

	subclaims, err = p.verifier.Verify(ctx, claim, subclaims)
	if err != nil {
		return nil, ensureTyped(err)
	}
	return subclaims, nil
}

func ensureTyped(err error) error {
	if _, ok := apperr.From(err); ok {
		return err
	}
	return apperr.Wrap(apperr.KindPipeline, "pipeline", err, "")
}
