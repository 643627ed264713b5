package handlers

import (
	"context"
	"net/http"

	"github.com/Pratik1445/skillfolio/internal/models"
	"github.com/Pratik1445/skillfolio/internal/portfolio"
	"github.com/go-chi/chi/v5"
)

// ListPortfolios lists everyone's portfolios, or one owner's with ?owner=.
func (h *Handlers) ListPortfolios(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "self" {
		owner = sessionOf(r).UserID
	}

	portfolios, err := h.Portfolios.List(r.Context(), owner)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, portfolios)
}

func (h *Handlers) UploadPortfolio(w http.ResponseWriter, r *http.Request) {
	file, closeFile, err := h.parseUpload(w, r)
	defer closeFile()
	if err != nil {
		h.fail(w, err)
		return
	}

	form := portfolio.UploadForm{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
	}

	created, err := h.Portfolios.Upload(r.Context(), sessionOf(r), form, file)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

// FeaturedPortfolio responds with null when there are no portfolios yet.
func (h *Handlers) FeaturedPortfolio(w http.ResponseWriter, r *http.Request) {
	featured, err := h.Portfolios.Featured(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, featured)
}

func (h *Handlers) ViewPortfolio(w http.ResponseWriter, r *http.Request) {
	h.bumpPortfolio(w, r, h.Portfolios.View)
}

func (h *Handlers) LikePortfolio(w http.ResponseWriter, r *http.Request) {
	h.bumpPortfolio(w, r, h.Portfolios.Like)
}

func (h *Handlers) bumpPortfolio(w http.ResponseWriter, r *http.Request, bump func(context.Context, string) (models.Portfolio, error)) {
	updated, err := bump(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

func (h *Handlers) DeletePortfolio(w http.ResponseWriter, r *http.Request) {
	err := h.Portfolios.Delete(r.Context(), sessionOf(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
