package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (h *APIHandler) ListMusiciansHandler(w http.ResponseWriter, r *http.Request) {
	musicians, err := h.musicians.List(r.Context())
	if err != nil {
		writeError(w, "[Musicians]", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"musicians": musicians,
	})
}

// GetMusicianHandler looks a musician up by name; mux has already decoded
// the path segment.
func (h *APIHandler) GetMusicianHandler(w http.ResponseWriter, r *http.Request) {
	m, err := h.musicians.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, "[Musicians]", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"musician": m,
	})
}
