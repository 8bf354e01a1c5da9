// Package pipeline turns a product photo into an ad record. Stages run
// strictly in order: analyze, research, strategize, write copy, transform.
// The first four degrade to defaults on failure; only transform can fail
// the generation.
package pipeline

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"adgenius/internal/domain"
	"adgenius/internal/imagegen"
	"adgenius/internal/infra"
	"adgenius/internal/metrics"
	"adgenius/internal/providers/prompt"
	"adgenius/internal/retry"
)

// Options configures a Pipeline. Every field is optional.
type Options struct {
	// Policy supplies the backoff sleeper and classifier shared by all stages.
	Policy retry.Policy
	Logger *infra.Logger
	Tracer trace.Tracer
	Now    func() time.Time
}

// Pipeline orchestrates the generation stages over an injected provider.
// It holds no per-generation state; callers guard against concurrent runs
// for the same session.
type Pipeline struct {
	provider    domain.ContentProvider
	policy      retry.Policy
	transformer *imagegen.Transformer
	logger      *infra.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// New constructs a Pipeline.
func New(provider domain.ContentProvider, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("adgenius/pipeline")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	p := &Pipeline{
		provider: provider,
		policy:   opts.Policy,
		logger:   logger,
		tracer:   tracer,
		now:      now,
	}
	p.transformer = imagegen.NewTransformer(provider, imagegen.Options{
		Policy: p.policyFor("transform"),
		Logger: logger,
	})
	return p
}

// Run executes all five stages.
func (p *Pipeline) Run(ctx context.Context, source domain.Image, req domain.GenerationRequest, observe Observer) (*domain.AdRecord, error) {
	profile, err := p.Analyze(ctx, source, observe)
	if err != nil {
		return nil, err
	}
	return p.Generate(ctx, source, profile, req, observe)
}

// Analyze runs the analyze and research stages. It only fails when the
// context ends or no source image is given; provider failures degrade.
func (p *Pipeline) Analyze(ctx context.Context, source domain.Image, observe Observer) (domain.ProductProfile, error) {
	if source.Empty() {
		return domain.ProductProfile{}, domain.ErrNoSourceImage
	}

	name := p.analyze(ctx, source, observe)
	if err := ctx.Err(); err != nil {
		return domain.ProductProfile{}, err
	}
	research := p.research(ctx, name, observe)
	if err := ctx.Err(); err != nil {
		return domain.ProductProfile{}, err
	}

	return domain.ProductProfile{
		Name:        name,
		Description: prompt.Coalesce(research, name),
	}, nil
}

// Generate runs strategize, write copy and transform for an analysed
// product. A transform failure is returned as *TerminalError.
func (p *Pipeline) Generate(ctx context.Context, source domain.Image, profile domain.ProductProfile, req domain.GenerationRequest, observe Observer) (*domain.AdRecord, error) {
	if source.Empty() {
		return nil, domain.ErrNoSourceImage
	}
	if req.Tier == "" {
		req.Tier = domain.TierStandard
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	profile.Description = prompt.Coalesce(profile.Description, profile.Name, prompt.FallbackProduct)

	strategy := p.strategize(ctx, profile.Description, req, observe)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	adCopy := p.writeCopy(ctx, profile.Description, req, strategy, observe)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return p.Retry(ctx, Partial{
		Source:   source,
		Product:  profile,
		Request:  req,
		Strategy: strategy,
		Copy:     adCopy,
	}, observe)
}

// Retry runs the transform stage over previously computed strategy and
// copy. Generate uses it for its final stage.
func (p *Pipeline) Retry(ctx context.Context, partial Partial, observe Observer) (*domain.AdRecord, error) {
	if partial.Source.Empty() {
		return nil, domain.ErrNoSourceImage
	}
	req := partial.Request

	done := p.begin(ctx, domain.StageTransforming, observe)
	res, err := p.transformer.Transform(done.ctx, imagegen.TransformRequest{
		Source:      partial.Source,
		Style:       req.Style,
		AspectRatio: req.AspectRatio,
		Prompt:      prompt.Coalesce(req.CustomInstruction, partial.Strategy.ImagePrompt),
		Tier:        req.Tier,
	})
	if err != nil {
		done.finish(domain.OutcomeFailed, err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		p.logger.Error().
			Err(err).
			Str("tier", string(req.Tier)).
			Msg("pipeline: image transform failed on every tier")
		p.emit(observe, domain.StageFailed, domain.OutcomeFailed, err)
		return nil, &TerminalError{
			Stage:       domain.StageTransforming,
			UserMessage: GenericFailureMessage,
			Err:         err,
			Partial:     partial,
		}
	}
	done.span.SetAttributes(attribute.String("tier", string(res.Tier)))
	done.finish(domain.OutcomeSucceeded, nil)
	p.emit(observe, domain.StageComplete, domain.OutcomeSucceeded, nil)

	return &domain.AdRecord{
		Source:      partial.Source,
		Rendered:    res.Image,
		Headline:    partial.Copy.Headline,
		Subheadline: partial.Copy.Subheadline,
		CTA:         partial.Copy.CTA,
		Style:       req.Style,
		AspectRatio: req.AspectRatio,
		Tier:        res.Tier,
		Product:     partial.Product,
		Strategy:    partial.Strategy,
		CreatedAt:   p.now(),
	}, nil
}

// policyFor decorates the shared policy with retry logging and metrics.
func (p *Pipeline) policyFor(operation string) retry.Policy {
	pol := p.policy
	next := pol.OnRetry
	pol.OnRetry = func(attempt int, delay time.Duration, err error) {
		metrics.ProviderRetries.WithLabelValues(operation).Inc()
		p.logger.Info().
			Err(err).
			Str("operation", operation).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("pipeline: rate limit hit; backing off")
		if next != nil {
			next(attempt, delay, err)
		}
	}
	return pol
}

type stageRun struct {
	p       *Pipeline
	stage   domain.Stage
	ctx     context.Context
	span    trace.Span
	start   time.Time
	observe Observer
}

func (p *Pipeline) begin(ctx context.Context, stage domain.Stage, observe Observer) *stageRun {
	spanCtx, span := p.tracer.Start(ctx, "pipeline."+string(stage))
	p.emit(observe, stage, "", nil)
	return &stageRun{p: p, stage: stage, ctx: spanCtx, span: span, start: p.now(), observe: observe}
}

func (r *stageRun) finish(outcome domain.StageOutcome, err error) {
	metrics.StageDuration.WithLabelValues(string(r.stage)).Observe(r.p.now().Sub(r.start).Seconds())
	metrics.StageOutcomes.WithLabelValues(string(r.stage), string(outcome)).Inc()
	r.span.SetAttributes(attribute.String("outcome", string(outcome)))
	if err != nil {
		r.span.RecordError(err)
		if outcome == domain.OutcomeFailed {
			r.span.SetStatus(codes.Error, err.Error())
		}
	}
	r.span.End()
	r.p.emit(r.observe, r.stage, outcome, err)
}

func (p *Pipeline) emit(observe Observer, stage domain.Stage, outcome domain.StageOutcome, err error) {
	if observe == nil {
		return
	}
	ev := Event{Stage: stage, Outcome: outcome, At: p.now()}
	if err != nil && !errors.Is(err, context.Canceled) {
		ev.Error = err.Error()
	}
	observe(ev)
}
