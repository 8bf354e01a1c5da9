package pipeline

import (
	"context"

	"adgenius/internal/domain"
	"adgenius/internal/metrics"
	"adgenius/internal/providers/prompt"
	"adgenius/internal/retry"
)

func (p *Pipeline) analyze(ctx context.Context, source domain.Image, observe Observer) string {
	run := p.begin(ctx, domain.StageAnalyzing, observe)
	text, err := retry.Do(run.ctx, p.policyFor("analyze"), retry.AnalyzeBudget, func(ctx context.Context) (string, error) {
		return p.provider.GenerateText(ctx, domain.TextRequest{
			Tier:   domain.TierStandard,
			Prompt: prompt.Analyze(),
			Image:  &source,
		})
	})
	if err != nil {
		p.logger.Warn().Err(err).Str("stage", "analyze").Msg("pipeline: product analysis failed; using fallback")
		run.finish(domain.OutcomeDegraded, err)
		return prompt.FallbackProduct
	}
	run.finish(domain.OutcomeSucceeded, nil)
	return prompt.Coalesce(prompt.CleanName(text), prompt.UnnamedProduct)
}

func (p *Pipeline) research(ctx context.Context, name string, observe Observer) string {
	run := p.begin(ctx, domain.StageResearching, observe)
	text, err := retry.Do(run.ctx, p.policyFor("research"), retry.ResearchBudget, func(ctx context.Context) (string, error) {
		return p.provider.GenerateText(ctx, domain.TextRequest{
			Tier:   domain.TierStandard,
			Prompt: prompt.Research(name),
			Search: true,
		})
	})
	if err != nil {
		p.logger.Warn().Err(err).Str("stage", "research").Str("product", name).Msg("pipeline: product research failed; skipping")
		run.finish(domain.OutcomeDegraded, err)
		return ""
	}
	run.finish(domain.OutcomeSucceeded, nil)
	return text
}

// strategize evaluates high fidelity (when complex strategizing is asked
// for), then standard, then the static template.
func (p *Pipeline) strategize(ctx context.Context, desc string, req domain.GenerationRequest, observe Observer) domain.Strategy {
	run := p.begin(ctx, domain.StageStrategizing, observe)
	text := prompt.Strategy(desc, req.Style)

	attempt := func(tier domain.Tier, budget retry.Budget) retry.Attempt[domain.Strategy] {
		return retry.Attempt[domain.Strategy]{
			Name:   string(tier),
			Budget: budget,
			Run: func(ctx context.Context) (domain.Strategy, error) {
				raw, err := p.provider.GenerateText(ctx, domain.TextRequest{
					Tier:   tier,
					Prompt: text,
					Schema: &prompt.StrategySchema,
				})
				if err != nil {
					return domain.Strategy{}, err
				}
				return prompt.ParseStrategy(raw)
			},
		}
	}
	attempts := make([]retry.Attempt[domain.Strategy], 0, 2)
	if req.ComplexStrategy {
		attempts = append(attempts, attempt(domain.TierHighFidelity, retry.StrategyProBudget))
	}
	attempts = append(attempts, attempt(domain.TierStandard, retry.StrategyBudget))

	strategy, err := retry.Chain(run.ctx, p.policyFor("strategy"), func(name string, err error) {
		metrics.TierFallbacks.WithLabelValues("strategy", name).Inc()
		p.logger.Info().Err(err).Str("tier", name).Msg("pipeline: strategy tier failed; falling back")
	}, attempts...)
	if err != nil {
		p.logger.Warn().Err(err).Str("stage", "strategize").Msg("pipeline: all strategy tiers failed; using template")
		run.finish(domain.OutcomeDegraded, err)
		return prompt.StaticStrategy(req.Style)
	}
	run.finish(domain.OutcomeSucceeded, nil)
	return strategy
}

func (p *Pipeline) writeCopy(ctx context.Context, desc string, req domain.GenerationRequest, strategy domain.Strategy, observe Observer) domain.Copy {
	run := p.begin(ctx, domain.StageWriting, observe)
	adCopy, err := retry.Do(run.ctx, p.policyFor("copy"), retry.CopyBudget, func(ctx context.Context) (domain.Copy, error) {
		raw, err := p.provider.GenerateText(ctx, domain.TextRequest{
			Tier:   domain.TierStandard,
			Prompt: prompt.Copy(desc, req.Style, strategy.CopyAngle, req.Locale),
			Schema: &prompt.CopySchema,
		})
		if err != nil {
			return domain.Copy{}, err
		}
		return prompt.ParseCopy(raw)
	})
	if err != nil {
		p.logger.Warn().Err(err).Str("stage", "write_copy").Msg("pipeline: ad copy generation failed; using fallback")
		run.finish(domain.OutcomeDegraded, err)
		return prompt.StaticCopy()
	}
	run.finish(domain.OutcomeSucceeded, nil)
	return adCopy
}
