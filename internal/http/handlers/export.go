package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"adgenius/internal/compositor"
	"adgenius/internal/domain"
	"adgenius/internal/metrics"
	"adgenius/internal/storage"
	"adgenius/pkg/zip"
)

type exportManifest struct {
	*domain.AdRecord
	Filename string            `json:"filename"`
	Layout   compositor.Layout `json:"layout"`
}

func (a *App) compose(w http.ResponseWriter, r *http.Request) (string, *domain.AdRecord, *compositor.Artifact, bool) {
	id := chi.URLParam(r, "id")
	snap, err := a.sessions.Get(id)
	if err != nil {
		a.fail(w, r, err)
		return "", nil, nil, false
	}
	if snap.Ad == nil {
		a.fail(w, r, domain.ErrNoAd)
		return "", nil, nil, false
	}
	art, err := a.compositor.ComposeAd(*snap.Ad, a.now())
	if err != nil {
		a.fail(w, r, err)
		return "", nil, nil, false
	}
	metrics.Exports.WithLabelValues(string(snap.Ad.AspectRatio)).Inc()
	return id, snap.Ad, art, true
}

// persist keeps a copy of the export. Failures are logged and ignored.
func (a *App) persist(r *http.Request, id, filename string, data []byte) string {
	if a.exports == nil {
		return ""
	}
	key, err := a.exports.Write(r.Context(), storage.ExportKey(id, filename), data)
	if err != nil {
		a.logger.Warn().Err(err).Str("session_id", id).Str("filename", filename).Msg("handlers: failed to persist export")
		return ""
	}
	return key
}

// Export returns the composited PNG as a download.
func (a *App) Export(w http.ResponseWriter, r *http.Request) {
	id, _, art, ok := a.compose(w, r)
	if !ok {
		return
	}
	if key := a.persist(r, id, art.Filename, art.Data); key != "" {
		w.Header().Set("X-Export-Key", key)
	}
	w.Header().Set("Content-Type", art.MIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", art.Filename))
	w.Header().Set("Content-Length", fmt.Sprint(len(art.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(art.Data)
}

// ExportBundle returns a zip with the composited PNG and the ad as JSON.
func (a *App) ExportBundle(w http.ResponseWriter, r *http.Request) {
	id, ad, art, ok := a.compose(w, r)
	if !ok {
		return
	}
	manifest, err := json.MarshalIndent(exportManifest{AdRecord: ad, Filename: art.Filename, Layout: art.Layout}, "", "  ")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	bundle, err := zip.ArchiveAssets([]zip.Asset{
		{Filename: art.Filename, MIME: art.MIMEType, Data: art.Data},
		{Filename: "ad.json", MIME: "application/json", Data: manifest},
	}, a.now())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	name := strings.TrimSuffix(art.Filename, ".png") + ".zip"
	a.persist(r, id, name, bundle)

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(bundle)
}
