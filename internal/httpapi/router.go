package httpapi

import "net/http"

// NewMux returns the routes without middleware.
func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", HealthHandler{Store: d.Store, Ingest: d.Ingest}.Health)

	ph := PostingsHandler{Store: d.Store}
	mux.HandleFunc("GET /postings", ph.List)

	mh := MatchesHandler{Deps: d}
	mux.HandleFunc("GET /users/{id}/matches", mh.List)

	prh := PreferenceHandler{Store: d.Store, Now: d.now}
	mux.HandleFunc("GET /users/{id}/preference", prh.Get)
	mux.HandleFunc("PUT /users/{id}/preference", prh.Put)
	mux.HandleFunc("DELETE /users/{id}/preference", prh.Delete)

	ch := ConfigHandler{Cfg: d.Config, Path: d.ConfigPath}
	mux.HandleFunc("GET /config", ch.Get)
	mux.HandleFunc("GET /config/validate", ch.Validate)

	if d.Ingest != nil {
		ih := IngestHandler{Ingest: d.Ingest}
		mux.HandleFunc("GET /ingest/status", ih.Status)
		mux.HandleFunc("POST /ingest/run", ih.Run)
	}

	if d.Events != nil {
		mux.HandleFunc("GET /events", EventsHandler{Hub: d.Events, Now: d.now}.Stream)
	}

	mux.Handle("GET /metrics", d.Metrics.Handler())
	return mux
}

// NewRouter is the mux behind the standard middleware stack.
func NewRouter(d Deps) http.Handler {
	return Chain(NewMux(d),
		RequestID,
		AccessLog(d.Log, d.Metrics),
		Recover(d.Log),
		Cors,
	)
}
