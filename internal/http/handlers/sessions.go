package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"adgenius/internal/domain"
)

type sessionResponse struct {
	SessionID string                 `json:"session_id"`
	Stage     domain.Stage           `json:"stage"`
	Running   bool                   `json:"running"`
	HasSource bool                   `json:"has_source"`
	Analyzed  bool                   `json:"analyzed"`
	Profile   *domain.ProductProfile `json:"profile,omitempty"`
	HasAd     bool                   `json:"has_ad"`
	CanRetry  bool                   `json:"can_retry"`
	UpdatedAt time.Time              `json:"updated_at"`
}

func (a *App) CreateSession(w http.ResponseWriter, r *http.Request) {
	id := a.sessions.Create()
	a.json(w, http.StatusCreated, map[string]string{"session_id": id})
}

func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := a.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	resp := sessionResponse{
		SessionID: snap.ID,
		Stage:     snap.Stage,
		Running:   snap.Running,
		HasSource: !snap.Source.Empty(),
		Analyzed:  snap.Analyzed,
		HasAd:     snap.Ad != nil,
		CanRetry:  snap.Failure != nil,
		UpdatedAt: snap.UpdatedAt,
	}
	if snap.Analyzed {
		resp.Profile = &snap.Profile
	}
	a.json(w, http.StatusOK, resp)
}

// UploadImage stores the product photo and runs the analysis stages.
// The body is either multipart with an "image" field or the raw image.
func (a *App) UploadImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes)

	img, err := readImage(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", fmt.Sprintf("image exceeds %d bytes", a.maxUploadBytes))
			return
		}
		a.fail(w, r, err)
		return
	}
	if err := a.sessions.SetSource(id, img); err != nil {
		a.fail(w, r, err)
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

	profile, err := a.pipeline.Analyze(ctx, img, run.Observe)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !run.SetProfile(profile) {
		a.error(w, http.StatusConflict, "cancelled", "session changed during analysis")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"session_id": id, "profile": profile})
}

type profileRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// UpdateProfile lets the user correct what the analysis found.
func (a *App) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	snap, err := a.sessions.Get(id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	profile := snap.Profile
	if req.Name != nil {
		profile.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		profile.Description = strings.TrimSpace(*req.Description)
	}
	if err := a.sessions.SetProfile(id, profile); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"session_id": id, "profile": profile})
}

// ResetSession cancels any running generation and clears the session.
func (a *App) ResetSession(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Reset(chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteSession forgets the session and its stored exports.
func (a *App) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.sessions.Delete(id); err != nil {
		a.fail(w, r, err)
		return
	}
	if a.exports != nil {
		if err := a.exports.RemoveSession(id); err != nil {
			a.logger.Warn().Err(err).Str("session_id", id).Msg("handlers: failed to remove exports")
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func readImage(r *http.Request) (domain.Image, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var (
		data     []byte
		declared string
		err      error
	)
	if mediaType == "multipart/form-data" {
		file, header, ferr := r.FormFile("image")
		if ferr != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(ferr, &tooLarge) {
				return domain.Image{}, ferr
			}
			return domain.Image{}, fmt.Errorf("%w: multipart field \"image\" is required", domain.ErrInvalidRequest)
		}
		defer file.Close()
		declared = header.Header.Get("Content-Type")
		data, err = io.ReadAll(file)
	} else {
		declared = mediaType
		data, err = io.ReadAll(r.Body)
	}
	if err != nil {
		return domain.Image{}, err
	}
	if len(data) == 0 {
		return domain.Image{}, fmt.Errorf("%w: empty image", domain.ErrInvalidRequest)
	}
	img := domain.NewImage(data, declared)
	if !strings.HasPrefix(img.MIMEType, "image/") {
		img = domain.NewImage(data, "")
	}
	if !strings.HasPrefix(img.MIMEType, "image/") {
		return domain.Image{}, fmt.Errorf("%w: unsupported content type %q", domain.ErrInvalidRequest, img.MIMEType)
	}
	return img, nil
}
