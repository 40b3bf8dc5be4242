package httpapi

import (
	"errors"
	"net/http"

	"jobintel-engine/internal/poll"
)

type IngestHandler struct {
	Ingest Ingest
}

func (h IngestHandler) Status(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.Ingest.Status())
}

// Run starts a poll in the background and answers at once.
func (h IngestHandler) Run(w http.ResponseWriter, r *http.Request) {
	err := h.Ingest.Start(r.Context())
	if errors.Is(err, poll.ErrAlreadyRunning) {
		WriteError(w, r, http.StatusConflict, "already_running", err.Error())
		return
	}
	if err != nil {
		internalError(w, r)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}
