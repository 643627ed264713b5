package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/Pratik1445/skillfolio/internal/apperr"
	"github.com/Pratik1445/skillfolio/internal/session"
)

// fail writes err as its banner text. Only server side failures are logged
// as errors.
func (h *Handlers) fail(w http.ResponseWriter, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		h.Sugar.Error(err)
	} else {
		h.Sugar.Debug(err)
	}
	http.Error(w, apperr.Banner(err), status)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		h.Sugar.Error(err)
	}
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil {
		h.Sugar.Debug(err)
		http.Error(w, "", http.StatusBadRequest)
		return false
	}
	return true
}

func sessionOf(r *http.Request) *session.Session {
	return session.UserFrom(r.Context())
}
