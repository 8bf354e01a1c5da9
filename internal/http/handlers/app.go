package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"adgenius/internal/compositor"
	"adgenius/internal/domain"
	"adgenius/internal/infra"
	"adgenius/internal/pipeline"
	"adgenius/internal/session"
	"adgenius/internal/storage"
)

// Options wires the App. Pipeline, Sessions and Compositor are required.
type Options struct {
	Pipeline   *pipeline.Pipeline
	Sessions   *session.Store
	Compositor *compositor.Compositor
	Exports    *storage.FileStore
	Logger     *infra.Logger
	// ProviderMode is reported by the health check, e.g. "gemini".
	ProviderMode string

	// ComplexStrategy is the default when a request does not say.
	ComplexStrategy   bool
	MaxUploadBytes    int64
	GenerationTimeout time.Duration
	Now               func() time.Time
}

type App struct {
	pipeline          *pipeline.Pipeline
	sessions          *session.Store
	compositor        *compositor.Compositor
	exports           *storage.FileStore
	logger            *infra.Logger
	providerMode      string
	complexStrategy   bool
	maxUploadBytes    int64
	generationTimeout time.Duration
	now               func() time.Time
}

func NewApp(opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &App{
		pipeline:          opts.Pipeline,
		sessions:          opts.Sessions,
		compositor:        opts.Compositor,
		exports:           opts.Exports,
		logger:            logger,
		providerMode:      opts.ProviderMode,
		complexStrategy:   opts.ComplexStrategy,
		maxUploadBytes:    maxUpload,
		generationTimeout: opts.GenerationTimeout,
		now:               now,
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

var errNothingToRetry = errors.New("no failed generation to retry")

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorResponse{Error: errCode, Message: message})
}

// fail maps an error onto a status code and JSON body.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	var terminal *pipeline.TerminalError
	switch {
	case errors.As(err, &terminal):
		a.json(w, http.StatusBadGateway, errorResponse{
			Error:     "generation_failed",
			Message:   terminal.UserMessage,
			Retryable: terminal.Retryable(),
		})
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "session not found")
	case errors.Is(err, domain.ErrNoAd):
		a.error(w, http.StatusNotFound, "no_ad", "no ad has been generated yet")
	case errors.Is(err, domain.ErrInvalidRequest):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrNoSourceImage):
		a.error(w, http.StatusConflict, "no_source_image", "upload a product photo first")
	case errors.Is(err, domain.ErrGenerationInFlight):
		a.error(w, http.StatusConflict, "generation_in_flight", "a generation is already running for this session")
	case errors.Is(err, errNothingToRetry):
		a.error(w, http.StatusConflict, "nothing_to_retry", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		a.error(w, http.StatusGatewayTimeout, "timeout", "generation timed out")
	case errors.Is(err, context.Canceled):
		a.error(w, http.StatusConflict, "cancelled", "generation was cancelled")
	default:
		a.logger.Error().Err(err).Str("path", r.URL.Path).Msg("handlers: unexpected error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// withTimeout bounds a generation when a timeout is configured.
func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.generationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.generationTimeout)
}
