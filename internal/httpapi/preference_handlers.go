package httpapi

import (
	"errors"
	"net/http"
	"time"

	"jobintel-engine/internal/domain"
	"jobintel-engine/internal/store"
)

type PreferenceHandler struct {
	Store Store
	Now   func() time.Time
}

func (h PreferenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	pref, err := h.Store.GetPreference(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, r, "no preference stored")
		return
	}
	if err != nil {
		internalError(w, r)
		return
	}
	WriteJSON(w, http.StatusOK, pref)
}

// Put replaces the preference wholesale. The path id wins over any user_id
// in the body.
func (h PreferenceHandler) Put(w http.ResponseWriter, r *http.Request) {
	var pref domain.Preference
	if err := decodeJSON(r, &pref); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	pref.UserID = r.PathValue("id")
	if pref.NotificationFrequency == "" {
		pref.NotificationFrequency = domain.NotifyDaily
	}
	if err := pref.Validate(); err != nil {
		WriteError(w, r, http.StatusUnprocessableEntity, "invalid_preference", err.Error())
		return
	}
	if err := h.Store.PutPreference(r.Context(), pref, h.Now()); err != nil {
		internalError(w, r)
		return
	}
	WriteJSON(w, http.StatusOK, pref)
}

func (h PreferenceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.Store.DeletePreference(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, r, "no preference stored")
		return
	}
	if err != nil {
		internalError(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
