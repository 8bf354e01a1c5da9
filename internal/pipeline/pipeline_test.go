package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adgenius/internal/domain"
	"adgenius/internal/retry"
)

type textCall struct {
	kind string
	req  domain.TextRequest
}

type fakeProvider struct {
	mu         sync.Mutex
	textCalls  []textCall
	imageCalls []domain.ImageRequest

	analyze  func() (string, error)
	research func() (string, error)
	strategy func(tier domain.Tier) (string, error)
	copy     func() (string, error)
	image    func(req domain.ImageRequest) (*domain.Image, error)
}

func happyProvider() *fakeProvider {
	return &fakeProvider{
		analyze:  func() (string, error) { return "Ceramic Mug", nil },
		research: func() (string, error) { return "Keeps coffee hot. Dishwasher safe.", nil },
		strategy: func(tier domain.Tier) (string, error) {
			return `{"imagePrompt":"mug on oak table (` + string(tier) + `)","copyAngle":"cozy mornings"}`, nil
		},
		copy: func() (string, error) {
			return `{"headline":"Warm Starts","subheadline":"Every sip stays hot.","cta":"Buy now"}`, nil
		},
		image: func(req domain.ImageRequest) (*domain.Image, error) {
			return &domain.Image{Data: []byte("rendered-" + string(req.Tier)), MIMEType: "image/png"}, nil
		},
	}
}

func kindOf(prompt string) string {
	switch {
	case strings.HasPrefix(prompt, "Identify"):
		return "analyze"
	case strings.HasPrefix(prompt, "Summarize"):
		return "research"
	case strings.HasPrefix(prompt, "Create ad strategy"):
		return "strategy"
	case strings.HasPrefix(prompt, "Write ad copy"):
		return "copy"
	}
	return "unknown"
}

func (f *fakeProvider) GenerateText(ctx context.Context, req domain.TextRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	kind := kindOf(req.Prompt)
	f.mu.Lock()
	f.textCalls = append(f.textCalls, textCall{kind: kind, req: req})
	f.mu.Unlock()
	switch kind {
	case "analyze":
		return f.analyze()
	case "research":
		return f.research()
	case "strategy":
		return f.strategy(req.Tier)
	case "copy":
		return f.copy()
	}
	return "", errors.New("unexpected prompt")
}

func (f *fakeProvider) GenerateImage(ctx context.Context, req domain.ImageRequest) (*domain.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.imageCalls = append(f.imageCalls, req)
	f.mu.Unlock()
	return f.image(req)
}

func (f *fakeProvider) count(kind string) int {
	n := 0
	for _, c := range f.textCalls {
		if c.kind == kind {
			n++
		}
	}
	return n
}

func (f *fakeProvider) strategyTiers() []domain.Tier {
	var tiers []domain.Tier
	for _, c := range f.textCalls {
		if c.kind == "strategy" {
			tiers = append(tiers, c.req.Tier)
		}
	}
	return tiers
}

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestPipeline(p domain.ContentProvider, rec *sleepRecorder) *Pipeline {
	if rec == nil {
		rec = &sleepRecorder{}
	}
	return New(p, Options{
		Policy: retry.Policy{Sleep: rec.sleep},
		Now:    func() time.Time { return fixedNow },
	})
}

var source = domain.Image{Data: []byte("photo"), MIMEType: "image/png"}

func request() domain.GenerationRequest {
	return domain.GenerationRequest{
		Style:           domain.StyleStudio,
		AspectRatio:     domain.AspectSquare,
		Tier:            domain.TierStandard,
		ComplexStrategy: true,
	}
}

func TestRunHappyPath(t *testing.T) {
	prov := happyProvider()
	var events []Event
	record, err := newTestPipeline(prov, nil).Run(context.Background(), source, request(), func(e Event) { events = append(events, e) })
	require.NoError(t, err)

	assert.Equal(t, "Warm Starts", record.Headline)
	assert.Equal(t, "Every sip stays hot.", record.Subheadline)
	assert.Equal(t, "Buy now", record.CTA)
	assert.Equal(t, domain.StyleStudio, record.Style)
	assert.Equal(t, domain.AspectSquare, record.AspectRatio)
	assert.Equal(t, domain.TierStandard, record.Tier)
	assert.Equal(t, []byte("rendered-standard"), record.Rendered.Data)
	assert.Equal(t, source.Data, record.Source.Data)
	assert.Equal(t, domain.ProductProfile{Name: "Ceramic Mug", Description: "Keeps coffee hot. Dishwasher safe."}, record.Product)
	assert.Equal(t, "mug on oak table (high-fidelity)", record.Strategy.ImagePrompt)
	assert.Equal(t, fixedNow, record.CreatedAt)

	assert.Equal(t, []domain.Tier{domain.TierHighFidelity}, prov.strategyTiers())
	require.Len(t, prov.imageCalls, 1)
	assert.Contains(t, prov.imageCalls[0].Prompt, "User Instructions: mug on oak table (high-fidelity)")

	analyzeReq := prov.textCalls[0].req
	require.NotNil(t, analyzeReq.Image)
	assert.True(t, prov.textCalls[1].req.Search, "research must enable web search")

	var stages []domain.Stage
	for _, e := range events {
		if e.Outcome != "" {
			stages = append(stages, e.Stage)
		}
	}
	assert.Equal(t, []domain.Stage{
		domain.StageAnalyzing,
		domain.StageResearching,
		domain.StageStrategizing,
		domain.StageWriting,
		domain.StageTransforming,
		domain.StageComplete,
	}, stages)
}

func TestAnalyzeAndResearchFailuresDegrade(t *testing.T) {
	prov := happyProvider()
	prov.analyze = func() (string, error) { return "", errors.New("RESOURCE_EXHAUSTED") }
	prov.research = func() (string, error) { return "", errors.New("429 Too Many Requests") }
	rec := &sleepRecorder{}

	var degraded []domain.Stage
	record, err := newTestPipeline(prov, rec).Run(context.Background(), source, request(), func(e Event) {
		if e.Degraded() {
			degraded = append(degraded, e.Stage)
		}
	})
	require.NoError(t, err)

	assert.Equal(t, "A high-quality product", record.Product.Description)
	assert.Equal(t, 3, prov.count("analyze"), "two retries after the first call")
	assert.Equal(t, 2, prov.count("research"), "one retry after the first call")
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, time.Second}, rec.delays)
	assert.Equal(t, []domain.Stage{domain.StageAnalyzing, domain.StageResearching}, degraded)
	require.Len(t, prov.imageCalls, 1, "pipeline still reaches transform")

	strategyPrompt := ""
	for _, c := range prov.textCalls {
		if c.kind == "strategy" {
			strategyPrompt = c.req.Prompt
		}
	}
	assert.Contains(t, strategyPrompt, "Create ad strategy for A high-quality product in Studio Professional style.")
}

func TestAnalyzeEmptyAnswerUsesGenericName(t *testing.T) {
	prov := happyProvider()
	prov.analyze = func() (string, error) { return "  ", nil }
	prov.research = func() (string, error) { return "", nil }

	profile, err := newTestPipeline(prov, nil).Analyze(context.Background(), source, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ProductProfile{Name: "A product", Description: "A product"}, profile)
}

func TestStrategyFallbackOrder(t *testing.T) {
	t.Run("high fidelity failure falls back to standard tier", func(t *testing.T) {
		prov := happyProvider()
		prov.strategy = func(tier domain.Tier) (string, error) {
			if tier == domain.TierHighFidelity {
				return "", errors.New("model not available")
			}
			return `{"imagePrompt":"standard prompt","copyAngle":"value"}`, nil
		}
		record, err := newTestPipeline(prov, nil).Run(context.Background(), source, request(), nil)
		require.NoError(t, err)
		assert.Equal(t, domain.Strategy{ImagePrompt: "standard prompt", CopyAngle: "value"}, record.Strategy)
		assert.Equal(t, []domain.Tier{domain.TierHighFidelity, domain.TierStandard}, prov.strategyTiers())
	})

	t.Run("simple strategizing skips high fidelity", func(t *testing.T) {
		prov := happyProvider()
		req := request()
		req.ComplexStrategy = false
		_, err := newTestPipeline(prov, nil).Run(context.Background(), source, req, nil)
		require.NoError(t, err)
		assert.Equal(t, []domain.Tier{domain.TierStandard}, prov.strategyTiers())
	})

	t.Run("every tier failing uses the template", func(t *testing.T) {
		prov := happyProvider()
		prov.strategy = func(domain.Tier) (string, error) { return `{"imagePrompt":""}`, nil }
		req := request()
		req.Style = domain.StyleVintage
		record, err := newTestPipeline(prov, nil).Run(context.Background(), source, req, nil)
		require.NoError(t, err)
		assert.Equal(t, "A professional photo of the product in Vintage Retro style. High quality, commercial lighting.", record.Strategy.ImagePrompt)
		assert.Equal(t, "Focus on quality and premium features.", record.Strategy.CopyAngle)
		assert.Contains(t, prov.imageCalls[0].Prompt, record.Strategy.ImagePrompt)
	})
}

func TestCopyFailureUsesFixedCopy(t *testing.T) {
	prov := happyProvider()
	prov.copy = func() (string, error) { return "", errors.New("quota exceeded") }
	rec := &sleepRecorder{}
	record, err := newTestPipeline(prov, rec).Run(context.Background(), source, request(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Experience Excellence", record.Headline)
	assert.Equal(t, "The perfect choice for you.", record.Subheadline)
	assert.Equal(t, "Shop Now", record.CTA)
	assert.Equal(t, 4, prov.count("copy"))
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, rec.delays)
}

func TestCustomInstructionTakesPrecedence(t *testing.T) {
	prov := happyProvider()
	req := request()
	req.CustomInstruction = "Place it on a snowy mountain top"
	req.Tier = domain.TierHighFidelity
	record, err := newTestPipeline(prov, nil).Run(context.Background(), source, req, nil)
	require.NoError(t, err)
	require.Len(t, prov.imageCalls, 1)
	assert.Equal(t, domain.TierHighFidelity, record.Tier)
	assert.Contains(t, prov.imageCalls[0].Prompt, "Specific Instructions: Place it on a snowy mountain top")
	assert.NotContains(t, prov.imageCalls[0].Prompt, "mug on oak table")
}

func TestTransformFailureIsTerminalAndRetryable(t *testing.T) {
	prov := happyProvider()
	prov.image = func(domain.ImageRequest) (*domain.Image, error) { return nil, errors.New("internal error") }
	pipe := newTestPipeline(prov, nil)

	var last Event
	_, err := pipe.Run(context.Background(), source, request(), func(e Event) { last = e })
	var terminal *TerminalError
	require.ErrorAs(t, err, &terminal)
	assert.ErrorIs(t, err, domain.ErrTierExhausted)
	assert.Equal(t, GenericFailureMessage, terminal.UserMessage)
	assert.Equal(t, domain.StageTransforming, terminal.Stage)
	assert.True(t, terminal.Retryable())
	assert.Equal(t, "Warm Starts", terminal.Partial.Copy.Headline)
	assert.Equal(t, domain.StageFailed, last.Stage)

	textCalls := len(prov.textCalls)
	prov.image = func(req domain.ImageRequest) (*domain.Image, error) {
		return &domain.Image{Data: []byte("second try"), MIMEType: "image/png"}, nil
	}
	record, err := pipe.Retry(context.Background(), terminal.Partial, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("second try"), record.Rendered.Data)
	assert.Equal(t, "Warm Starts", record.Headline)
	assert.Equal(t, textCalls, len(prov.textCalls), "retry must not repeat text stages")
}

func TestCancellationAbortsPipeline(t *testing.T) {
	prov := happyProvider()
	ctx, cancel := context.WithCancel(context.Background())
	prov.analyze = func() (string, error) {
		cancel()
		return "", errors.New("quota")
	}
	_, err := newTestPipeline(prov, nil).Run(ctx, source, request(), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, prov.count("research"))
	assert.Empty(t, prov.imageCalls)
}

func TestGenerateValidatesInput(t *testing.T) {
	pipe := newTestPipeline(happyProvider(), nil)
	_, err := pipe.Generate(context.Background(), domain.Image{}, domain.ProductProfile{}, request(), nil)
	assert.ErrorIs(t, err, domain.ErrNoSourceImage)

	req := request()
	req.AspectRatio = "4:3"
	_, err = pipe.Generate(context.Background(), source, domain.ProductProfile{Name: "Mug"}, req, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}
