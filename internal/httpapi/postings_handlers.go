package httpapi

import (
	"net/http"

	"jobintel-engine/internal/domain"
	"jobintel-engine/internal/store"
)

type PostingsHandler struct {
	Store Store
}

type postingsResponse struct {
	Postings []domain.Posting `json:"postings"`
	Count    int              `json:"count"`
}

// List searches stored postings. Spam is never returned.
func (h PostingsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	minQ, err := queryFloat01(q, "min_quality", 0)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	remote, err := queryBool(q, "remote")
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	limit, err := queryLimit(q, 100, 1000)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	since, err := queryTime(q, "since")
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}

	ps, err := h.Store.ListPostings(r.Context(), store.SearchOpts{
		MinQuality: minQ,
		Query:      q.Get("q"),
		RemoteOnly: remote,
		Since:      since,
		Limit:      limit,
	})
	if err != nil {
		internalError(w, r)
		return
	}
	if ps == nil {
		ps = []domain.Posting{}
	}
	WriteJSON(w, http.StatusOK, postingsResponse{Postings: ps, Count: len(ps)})
}
