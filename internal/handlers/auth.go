package handlers

import (
	"net/http"

	"github.com/Pratik1445/skillfolio/internal/validator"
)

func rememberMe(r *http.Request) bool {
	return r.URL.Query().Get("rememberMe") == "true"
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	type Login struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	var login Login
	if !h.decode(w, r, &login) {
		return
	}

	s, err := h.Identity.SignIn(r.Context(), login.Email, login.Password, rememberMe(r))
	if err != nil {
		h.fail(w, err)
		return
	}

	h.setSessionCookie(w, s)
	h.writeJSON(w, http.StatusOK, s)
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	type Registration struct {
		Email           string `json:"email" validate:"required"`
		Password        string `json:"password" validate:"required"`
		ConfirmPassword string `json:"confirmPassword" validate:"omitempty,eqfield=Password"`
		DisplayName     string `json:"displayName" validate:"max=100"`
	}

	var registration Registration
	if !h.decode(w, r, &registration) {
		return
	}

	// sends back 400 with the form field errors
	registerErrors := validator.Fields(registration)
	if len(registerErrors) > 0 {
		h.writeJSON(w, http.StatusBadRequest, registerErrors)
		return
	}

	s, err := h.Identity.SignUp(r.Context(), registration.Email, registration.Password, registration.DisplayName, rememberMe(r))
	if err != nil {
		h.fail(w, err)
		return
	}

	h.setSessionCookie(w, s)
	h.writeJSON(w, http.StatusCreated, s)
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	err := h.Identity.SignOut(r.Context(), sessionOf(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.deleteSessionCookie(w)
	w.WriteHeader(http.StatusOK)
}

func (h *Handlers) IsLoggedIn(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, sessionOf(r))
}
