package httpapi

import (
	"errors"
	"net/http"

	"jobintel-engine/internal/domain"
	"jobintel-engine/internal/rank"
	"jobintel-engine/internal/store"
)

type MatchesHandler struct {
	Deps
}

type matchesResponse struct {
	UserID    string               `json:"user_id"`
	Matches   []domain.MatchResult `json:"matches"`
	Evaluated int                  `json:"evaluated"`
	Failed    int                  `json:"failed"`
}

// List ranks the matchable corpus against the user's stored preference.
// Nothing matching is an empty list; every posting failing is a 500.
func (h MatchesHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	q := r.URL.Query()
	minScore, err := queryFloat01(q, "min_score", 0)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	limit, err := queryLimit(q, 50, 500)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	withDQ, err := queryBool(q, "include_disqualified")
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}

	ctx := r.Context()
	pref, err := h.Store.GetPreference(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, r, "no preference stored for user "+userID)
		return
	}
	if err != nil {
		internalError(w, r)
		return
	}

	minQuality := h.Config.Match.MinQuality
	postings, err := h.Store.Matchable(ctx, minQuality)
	if err != nil {
		internalError(w, r)
		return
	}

	h.Metrics.MatchRequest()
	ranking, err := h.Matcher.Rank(ctx, postings, pref, h.now(), rank.Options{
		MinQuality:          minQuality,
		MinRelevance:        minScore,
		Limit:               limit,
		IncludeDisqualified: withDQ,
	})
	if err != nil {
		WriteError(w, r, http.StatusServiceUnavailable, "cancelled", "request cancelled")
		return
	}
	for _, f := range ranking.Failures {
		h.Metrics.ItemFailed("match")
		h.Log.Warn().
			Str("request_id", RequestIDFrom(ctx)).
			Str("user_id", userID).
			Str("source", f.Source).
			Str("source_id", f.SourceID).
			Str("err", f.Message).
			Msg("posting_failed")
	}
	if ranking.Evaluated > 0 && len(ranking.Failures) == ranking.Evaluated {
		WriteError(w, r, http.StatusInternalServerError, "match_failed", "every posting failed to evaluate")
		return
	}

	matches := ranking.Results
	if matches == nil {
		matches = []domain.MatchResult{}
	}
	WriteJSON(w, http.StatusOK, matchesResponse{
		UserID:    userID,
		Matches:   matches,
		Evaluated: ranking.Evaluated,
		Failed:    len(ranking.Failures),
	})
}
