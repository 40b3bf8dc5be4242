package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"jobintel-engine/internal/events"
)

type EventsHandler struct {
	Hub *events.Hub
	Now func() time.Time
}

// Stream sends hub events as server-sent events until the client leaves.
func (h EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.Hub.Subscribe()
	defer h.Hub.Unsubscribe(ch)

	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", events.TypePing, events.New(events.TypePing, nil, h.Now()).JSON())
	if err := rc.Flush(); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "stream_unsupported", "streaming unsupported")
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, e.JSON())
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
