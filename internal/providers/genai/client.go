package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"adgenius/internal/domain"
	"adgenius/internal/infra"
)

const (
	defaultBaseURL       = "https://generativelanguage.googleapis.com/v1beta"
	defaultTextModel     = "gemini-3-flash-preview"
	defaultTextProModel  = "gemini-3.1-pro-preview"
	defaultImageModel    = "gemini-2.5-flash-image"
	defaultImageProModel = "gemini-3.1-flash-image-preview"
	proImageSize         = "1K"
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey        string
	BaseURL       string
	TextModel     string
	TextProModel  string
	ImageModel    string
	ImageProModel string
	// RequestsPerSecond spaces outgoing calls. Zero disables the limiter.
	RequestsPerSecond float64
	HTTPClient        *http.Client
	Logger            *infra.Logger
}

// Client implements domain.ContentProvider over the Gemini REST API. Without
// an API key it answers with deterministic synthetic content so local runs
// and CI work offline.
type Client struct {
	apiKey        string
	baseURL       string
	textModel     string
	textProModel  string
	imageModel    string
	imageProModel string
	httpClient    *http.Client
	limiter       *rate.Limiter
	logger        *infra.Logger
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
	Thought    bool              `json:"thought,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiTool struct {
	GoogleSearch *struct{} `json:"googleSearch,omitempty"`
}

type geminiThinkingConfig struct {
	ThinkingLevel string `json:"thinkingLevel,omitempty"`
}

type geminiImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	ImageSize   string `json:"imageSize,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseMimeType   string                `json:"responseMimeType,omitempty"`
	ResponseSchema     *responseSchema       `json:"responseSchema,omitempty"`
	ResponseModalities []string              `json:"responseModalities,omitempty"`
	ThinkingConfig     *geminiThinkingConfig `json:"thinkingConfig,omitempty"`
	ImageConfig        *geminiImageConfig    `json:"imageConfig,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	Tools            []geminiTool            `json:"tools,omitempty"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates     []geminiCandidate `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
		Status  string `json:"status,omitempty"`
	} `json:"error"`
}

// APIError is a non-2xx answer from Gemini. Its StatusCode lets the retry
// classifier recognise rate limiting.
type APIError struct {
	HTTPStatus int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if e.Status != "" {
		msg = strings.TrimSpace(e.Status + " " + msg)
	}
	if msg == "" {
		return fmt.Sprintf("gemini status %d", e.HTTPStatus)
	}
	return fmt.Sprintf("gemini status %d: %s", e.HTTPStatus, msg)
}

// StatusCode returns the HTTP status of the failed call.
func (e *APIError) StatusCode() int {
	return e.HTTPStatus
}

// NewClient constructs a Gemini client with sane defaults. Callers may provide
// a nil HTTP client; a reusable one with sensible timeouts will be created.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("genai: invalid base url: %w", err)
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &Client{
		apiKey:        strings.TrimSpace(opts.APIKey),
		baseURL:       baseURL,
		textModel:     firstNonEmpty(opts.TextModel, defaultTextModel),
		textProModel:  firstNonEmpty(opts.TextProModel, defaultTextProModel),
		imageModel:    firstNonEmpty(opts.ImageModel, defaultImageModel),
		imageProModel: firstNonEmpty(opts.ImageProModel, defaultImageProModel),
		httpClient:    client,
		limiter:       limiter,
		logger:        logger,
	}, nil
}

// Synthetic reports whether the client runs without an API key.
func (c *Client) Synthetic() bool {
	return c.apiKey == ""
}

// TextModel returns the model used for text requests of the given tier.
func (c *Client) TextModel(tier domain.Tier) string {
	if tier == domain.TierHighFidelity {
		return c.textProModel
	}
	return c.textModel
}

// ImageModel returns the model used for image requests of the given tier.
func (c *Client) ImageModel(tier domain.Tier) string {
	if tier == domain.TierHighFidelity {
		return c.imageProModel
	}
	return c.imageModel
}

// GenerateText runs a text prompt, optionally with an attached image, web
// grounding, or a structured output schema. Structured answers are returned
// as the validated JSON object text.
func (c *Client) GenerateText(ctx context.Context, req domain.TextRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return "", fmt.Errorf("%w: empty prompt", domain.ErrInvalidRequest)
	}

	model := c.TextModel(req.Tier)
	if c.Synthetic() {
		return syntheticText(req), nil
	}

	parts := make([]geminiPart, 0, 2)
	if req.Image != nil && !req.Image.Empty() {
		part, err := inlineImagePart(*req.Image)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	parts = append(parts, geminiPart{Text: req.Prompt})

	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
	}
	cfg := &geminiGenerationConfig{}
	if req.Tier == domain.TierHighFidelity {
		cfg.ThinkingConfig = &geminiThinkingConfig{ThinkingLevel: "HIGH"}
	}
	if req.Schema != nil {
		cfg.ResponseMimeType = "application/json"
		cfg.ResponseSchema = newResponseSchema(*req.Schema)
	}
	if cfg.ThinkingConfig != nil || cfg.ResponseSchema != nil {
		payload.GenerationConfig = cfg
	}
	if req.Search {
		payload.Tools = []geminiTool{{GoogleSearch: &struct{}{}}}
	}

	var response geminiGenerateContentResponse
	if err := c.invokeGemini(ctx, model, payload, &response); err != nil {
		return "", err
	}

	text := strings.TrimSpace(collectText(response))
	c.logger.Debug().
		Str("model", model).
		Int("chars", len(text)).
		Bool("structured", req.Schema != nil).
		Msg("genai: text generated")

	if req.Schema == nil {
		return text, nil
	}
	object, err := validateStructured(text, *req.Schema)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrProviderFailure, model, err)
	}
	return object, nil
}

// GenerateImage transforms the source image. It returns nil without an
// error when the model answers without image data.
func (c *Client) GenerateImage(ctx context.Context, req domain.ImageRequest) (*domain.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Source.Empty() {
		return nil, domain.ErrNoSourceImage
	}

	model := c.ImageModel(req.Tier)
	if c.Synthetic() {
		return syntheticImage(model, req), nil
	}

	source, err := inlineImagePart(req.Source)
	if err != nil {
		return nil, err
	}
	imageCfg := &geminiImageConfig{AspectRatio: string(req.AspectRatio)}
	if req.Tier == domain.TierHighFidelity {
		imageCfg.ImageSize = proImageSize
	}
	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{source, {Text: req.Prompt}},
		}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
			ImageConfig:        imageCfg,
		},
	}

	var response geminiGenerateContentResponse
	if err := c.invokeGemini(ctx, model, payload, &response); err != nil {
		return nil, err
	}

	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("decode inline data: %w", err)
			}
			img := domain.NewImage(data, part.InlineData.MimeType)
			c.logger.Debug().
				Str("model", model).
				Str("tier", string(req.Tier)).
				Int("bytes", len(data)).
				Msg("genai: image generated")
			return &img, nil
		}
	}

	event := c.logger.Debug().Str("model", model)
	if response.PromptFeedback != nil && response.PromptFeedback.BlockReason != "" {
		event = event.Str("block_reason", response.PromptFeedback.BlockReason)
	}
	event.Msg("genai: model returned no image")
	return nil, nil
}

func (c *Client) invokeGemini(ctx context.Context, model string, payload any, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(model))
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := &APIError{HTTPStatus: resp.StatusCode}
		var decoded geminiErrorResponse
		if err := json.Unmarshal(data, &decoded); err == nil && decoded.Error.Message != "" {
			apiErr.Status = decoded.Error.Status
			apiErr.Message = decoded.Error.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

// collectText joins the non-thought text parts of the first candidate.
func collectText(resp geminiGenerateContentResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Thought || part.Text == "" {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

var _ domain.ContentProvider = (*Client)(nil)
