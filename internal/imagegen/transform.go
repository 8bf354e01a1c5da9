package imagegen

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"adgenius/internal/domain"
	"adgenius/internal/infra"
	"adgenius/internal/metrics"
	"adgenius/internal/retry"
)

// Options tunes a Transformer. Zero budgets select the defaults: one retry
// for the high-fidelity tier and three for the standard tier.
type Options struct {
	Policy         retry.Policy
	ProBudget      retry.Budget
	StandardBudget retry.Budget
	Logger         *infra.Logger
}

// Transformer renders the ad background, trying the high-fidelity tier
// first when asked and falling back to the standard tier.
type Transformer struct {
	provider       domain.ContentProvider
	policy         retry.Policy
	proBudget      retry.Budget
	standardBudget retry.Budget
	logger         *infra.Logger
}

// NewTransformer wires a Transformer to a content provider.
func NewTransformer(provider domain.ContentProvider, opts Options) *Transformer {
	policy := opts.Policy
	base := policy.Classify
	if base == nil {
		base = retry.IsRateLimit
	}
	policy.Classify = retry.Any(base, isNoImage)

	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	pro, std := opts.ProBudget, opts.StandardBudget
	if pro == (retry.Budget{}) {
		pro = retry.TransformProBudget
	}
	if std == (retry.Budget{}) {
		std = retry.TransformStdBudget
	}
	return &Transformer{
		provider:       provider,
		policy:         policy,
		proBudget:      pro,
		standardBudget: std,
		logger:         logger,
	}
}

// Transform produces the rendered background. Failure of every tier yields
// an error wrapping domain.ErrTierExhausted and the last provider error.
func (t *Transformer) Transform(ctx context.Context, req TransformRequest) (*Result, error) {
	if req.Source.Empty() {
		return nil, domain.ErrNoSourceImage
	}

	attempts := make([]retry.Attempt[*Result], 0, 2)
	if req.Tier == domain.TierHighFidelity {
		attempts = append(attempts, t.attempt(req, domain.TierHighFidelity, t.proBudget))
	}
	attempts = append(attempts, t.attempt(req, domain.TierStandard, t.standardBudget))

	result, err := retry.Chain(ctx, t.policy, t.onFallback, attempts...)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrTierExhausted, err)
	}
	return result, nil
}

func (t *Transformer) attempt(req TransformRequest, tier domain.Tier, budget retry.Budget) retry.Attempt[*Result] {
	instruction := BuildInstruction(tier, req.Style, req.AspectRatio, req.Prompt)
	return retry.Attempt[*Result]{
		Name:   string(tier),
		Budget: budget,
		Run: func(ctx context.Context) (*Result, error) {
			img, err := t.provider.GenerateImage(ctx, domain.ImageRequest{
				Tier:        tier,
				Source:      req.Source,
				Prompt:      instruction,
				AspectRatio: req.AspectRatio,
			})
			if err != nil {
				return nil, err
			}
			if img == nil || img.Empty() {
				return nil, domain.ErrNoImage
			}
			return &Result{Image: *img, Tier: tier}, nil
		},
	}
}

func (t *Transformer) onFallback(name string, err error) {
	metrics.TierFallbacks.WithLabelValues("transform", name).Inc()
	t.logger.Warn().
		Err(err).
		Str("tier", name).
		Msg("imagegen: tier failed; falling back to standard")
}

func isNoImage(err error) bool {
	return errors.Is(err, domain.ErrNoImage)
}
