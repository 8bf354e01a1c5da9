package handlers

import "net/http"

type healthResponse struct {
	Status   string `json:"status"`
	Provider string `json:"provider,omitempty"`
	Sessions int    `json:"sessions"`
}

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Provider: a.providerMode,
		Sessions: a.sessions.Len(),
	})
}
