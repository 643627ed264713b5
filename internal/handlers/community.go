package handlers

import (
	"net/http"

	"github.com/Pratik1445/skillfolio/internal/community"
	"github.com/go-chi/chi/v5"
)

func (h *Handlers) ListCommunities(w http.ResponseWriter, r *http.Request) {
	communities, err := h.Communities.List(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, communities)
}

func (h *Handlers) CreateCommunity(w http.ResponseWriter, r *http.Request) {
	var form community.CreateForm
	if !h.decode(w, r, &form) {
		return
	}

	created, err := h.Communities.Create(r.Context(), sessionOf(r), form)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

func (h *Handlers) GetCommunity(w http.ResponseWriter, r *http.Request) {
	c, err := h.Communities.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

// JoinCommunity adds the caller to the members if needed and tells the client
// where the chat is.
func (h *Handlers) JoinCommunity(w http.ResponseWriter, r *http.Request) {
	result, err := h.Communities.JoinOrEnter(r.Context(), sessionOf(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) DeleteCommunity(w http.ResponseWriter, r *http.Request) {
	err := h.Communities.Delete(r.Context(), sessionOf(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
