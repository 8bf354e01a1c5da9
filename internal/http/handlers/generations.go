package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"adgenius/internal/domain"
	"adgenius/internal/middleware"
	"adgenius/internal/pipeline"
	"adgenius/internal/session"
)

type generationRequest struct {
	Style             string `json:"style"`
	AspectRatio       string `json:"aspect_ratio"`
	CustomInstruction string `json:"custom_instruction"`
	Tier              string `json:"tier"`
	ComplexStrategy   *bool  `json:"complex_strategy"`
	Locale            string `json:"locale"`
}

type adResponse struct {
	SessionID string           `json:"session_id"`
	Ad        *domain.AdRecord `json:"ad"`
	ImageURL  string           `json:"image_url"`
	ExportURL string           `json:"export_url"`
	BundleURL string           `json:"bundle_url"`
}

func (a *App) newAdResponse(id string, ad *domain.AdRecord) adResponse {
	base := "/v1/sessions/" + id
	return adResponse{
		SessionID: id,
		Ad:        ad,
		ImageURL:  base + "/ad/image",
		ExportURL: base + "/export",
		BundleURL: base + "/export/bundle",
	}
}

func (a *App) parseGeneration(r *http.Request) (domain.GenerationRequest, error) {
	var body generationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return domain.GenerationRequest{}, fmt.Errorf("%w: invalid payload", domain.ErrInvalidRequest)
	}
	style, err := domain.ParseStyle(body.Style)
	if err != nil {
		return domain.GenerationRequest{}, err
	}
	aspect, err := domain.ParseAspectRatio(body.AspectRatio)
	if err != nil {
		return domain.GenerationRequest{}, err
	}
	tier, err := domain.ParseTier(body.Tier)
	if err != nil {
		return domain.GenerationRequest{}, err
	}
	req := domain.GenerationRequest{
		Style:             style,
		AspectRatio:       aspect,
		CustomInstruction: body.CustomInstruction,
		Tier:              tier,
		ComplexStrategy:   a.complexStrategy,
		Locale:            body.Locale,
	}
	if body.ComplexStrategy != nil {
		req.ComplexStrategy = *body.ComplexStrategy
	}
	if req.Locale == "" {
		req.Locale = middleware.LocaleFromContext(r.Context())
	}
	return req, req.Validate()
}

// Generate runs the pipeline for the session's photo. When the photo has
// not been analysed yet, the analysis stages run first.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, err := a.parseGeneration(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	snap, err := a.sessions.Get(id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if snap.Source.Empty() {
		a.fail(w, r, domain.ErrNoSourceImage)
		return
	}

	runCtx, run, err := a.sessions.Begin(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	defer run.Finish()
	ctx, cancel := a.withTimeout(runCtx)
	defer cancel()

	profile := snap.Profile
	if !snap.Analyzed {
		profile, err = a.pipeline.Analyze(ctx, snap.Source, run.Observe)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		run.SetProfile(profile)
	}

	record, err := a.pipeline.Generate(ctx, snap.Source, profile, req, run.Observe)
	a.finishGeneration(w, r, id, run, record, err)
}

// RetryGeneration re-runs the transform of the last failed generation,
// reusing its strategy and copy.
func (a *App) RetryGeneration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := a.sessions.Get(id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if snap.Failure == nil {
		a.fail(w, r, errNothingToRetry)
		return
	}

	runCtx, run, err := a.sessions.Begin(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	defer run.Finish()
	ctx, cancel := a.withTimeout(runCtx)
	defer cancel()

	record, err := a.pipeline.Retry(ctx, *snap.Failure, run.Observe)
	a.finishGeneration(w, r, id, run, record, err)
}

func (a *App) finishGeneration(w http.ResponseWriter, r *http.Request, id string, run *session.Run, record *domain.AdRecord, err error) {
	if err != nil {
		var terminal *pipeline.TerminalError
		if errors.As(err, &terminal) {
			run.Fail(terminal.Partial)
			a.logger.Warn().Err(err).Str("session_id", id).Msg("handlers: generation failed")
		}
		a.fail(w, r, err)
		return
	}
	if !run.Complete(record) {
		a.error(w, http.StatusConflict, "cancelled", "generation was superseded")
		return
	}
	a.json(w, http.StatusOK, a.newAdResponse(id, record))
}

func (a *App) GetAd(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := a.sessions.Get(id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if snap.Ad == nil {
		a.fail(w, r, domain.ErrNoAd)
		return
	}
	a.json(w, http.StatusOK, a.newAdResponse(id, snap.Ad))
}

func (a *App) GetAdImage(w http.ResponseWriter, r *http.Request) {
	snap, err := a.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if snap.Ad == nil || snap.Ad.Rendered.Empty() {
		a.fail(w, r, domain.ErrNoAd)
		return
	}
	w.Header().Set("Content-Type", snap.Ad.Rendered.MIMEType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(snap.Ad.Rendered.Data)
}
