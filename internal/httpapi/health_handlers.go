package httpapi

import "net/http"

type HealthHandler struct {
	Store  Store
	Ingest Ingest
}

func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{"ok": true}
	counts, err := h.Store.CountByTier(r.Context())
	if err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": "store unavailable"})
		return
	}
	out["postings"] = counts
	if h.Ingest != nil {
		out["ingest"] = h.Ingest.Status()
	}
	WriteJSON(w, http.StatusOK, out)
}
