package handlers

import (
	"errors"
	"net/http"

	"github.com/Pratik1445/skillfolio/internal/apperr"
	"github.com/Pratik1445/skillfolio/internal/jwt"
	"github.com/Pratik1445/skillfolio/internal/session"
)

func (h *Handlers) setSessionCookie(w http.ResponseWriter, s *session.Session) {
	cookie := h.Tokens.Cookie(s.Token, s.Remember, s.ExpiresAt)
	http.SetCookie(w, &cookie)
}

func (h *Handlers) deleteSessionCookie(w http.ResponseWriter) {
	cookie := h.Tokens.ExpiredCookie()
	http.SetCookie(w, &cookie)
}

// currentSession returns the verified session of the request's cookie, or nil.
func (h *Handlers) currentSession(r *http.Request) (*session.Session, error) {
	jwtCookie, err := r.Cookie(jwt.CookieName)
	if errors.Is(err, http.ErrNoCookie) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	s, err := h.Identity.Verify(r.Context(), jwtCookie.Value)
	if apperr.IsAuth(err, apperr.NoSession) {
		return nil, nil
	}
	return s, err
}

// UserVerifier lets the request through only with a live session, and puts
// that session into the request context. Tokens older than the renewal
// interval are swapped for fresh ones.
func (h *Handlers) UserVerifier(next http.Handler) http.Handler {
	return h.verifier(next, true)
}

// SessionVerifier is UserVerifier without the renewal, for requests that
// act on the token the client presented.
func (h *Handlers) SessionVerifier(next http.Handler) http.Handler {
	return h.verifier(next, false)
}

func (h *Handlers) verifier(next http.Handler, renew bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jwtCookie, err := r.Cookie(jwt.CookieName)
		if err != nil {
			h.Sugar.Debug(err)
			switch {
			case errors.Is(err, http.ErrNoCookie):
				http.Error(w, "No jwt cookie was provided", http.StatusUnauthorized)
			default:
				http.Error(w, "Couldn't read jwt cookie", http.StatusInternalServerError)
			}
			return
		}

		s, err := h.Identity.Verify(r.Context(), jwtCookie.Value)
		if err != nil {
			// delete JWT token from client, this runs when the account is gone
			// or the token was revoked
			if apperr.IsAuth(err, apperr.NoSession) {
				h.deleteSessionCookie(w)
			}
			h.fail(w, err)
			return
		}

		if renew {
			renewed, ok, err := h.Identity.Renew(s)
			if err != nil {
				h.Sugar.Error(err)
				http.Error(w, "Couldn't renew cookie", http.StatusInternalServerError)
				return
			}
			if ok {
				h.setSessionCookie(w, renewed)
				s = renewed
			}
		}

		ctx := session.WithContext(r.Context(), session.NewHolder(s))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
