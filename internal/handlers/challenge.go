package handlers

import (
	"net/http"
	"strconv"

	"github.com/Pratik1445/skillfolio/internal/challenge"
	"github.com/Pratik1445/skillfolio/internal/models"
	"github.com/go-chi/chi/v5"
)

type challengeView struct {
	Challenge models.Challenge `json:"challenge"`
	Status    challenge.Status `json:"status"`
	URL       string           `json:"url,omitempty"`
}

func (h *Handlers) ListChallenges(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if param := r.URL.Query().Get("limit"); param != "" {
		var err error
		limit, err = strconv.Atoi(param)
		if err != nil || limit < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
	}

	challenges, err := h.Challenges.List(r.Context(), limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, challenges)
}

func (h *Handlers) CreateChallenge(w http.ResponseWriter, r *http.Request) {
	var form challenge.CreateForm
	if !h.decode(w, r, &form) {
		return
	}

	created, err := h.Challenges.Create(r.Context(), sessionOf(r), form)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

// GetChallenge also reports where the caller stands in it.
func (h *Handlers) GetChallenge(w http.ResponseWriter, r *http.Request) {
	c, err := h.Challenges.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}

	userID := sessionOf(r).UserID
	h.writeJSON(w, http.StatusOK, challengeView{
		Challenge: c,
		Status:    challenge.StatusOf(c, userID),
		URL:       c.SubmissionURLs[userID],
	})
}

func (h *Handlers) SubmitChallenge(w http.ResponseWriter, r *http.Request) {
	file, closeFile, err := h.parseUpload(w, r)
	defer closeFile()
	if err != nil {
		h.fail(w, err)
		return
	}

	submission, err := h.Challenges.Begin(r.Context(), sessionOf(r), chi.URLParam(r, "id"), file)
	if err != nil {
		h.fail(w, err)
		return
	}

	updated, err := submission.Complete(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, challengeView{
		Challenge: updated,
		Status:    submission.Status(),
		URL:       submission.URL(),
	})
}
