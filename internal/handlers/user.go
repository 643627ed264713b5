package handlers

import (
	"net/http"
)

func (h *Handlers) GetUserInfo(w http.ResponseWriter, r *http.Request) {
	requestedUserID := r.URL.Query().Get("userID")
	if requestedUserID == "" {
		http.Error(w, "", http.StatusBadRequest)
		return
	}

	if requestedUserID == "self" {
		requestedUserID = sessionOf(r).UserID
	}

	profile, err := h.Identity.Profile(r.Context(), requestedUserID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, profile)
}
