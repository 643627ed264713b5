package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Pratik1445/skillfolio/internal/challenge"
	"github.com/Pratik1445/skillfolio/internal/chat"
	"github.com/Pratik1445/skillfolio/internal/community"
	"github.com/Pratik1445/skillfolio/internal/config"
	"github.com/Pratik1445/skillfolio/internal/connection"
	"github.com/Pratik1445/skillfolio/internal/hub"
	"github.com/Pratik1445/skillfolio/internal/identity"
	"github.com/Pratik1445/skillfolio/internal/jwt"
	"github.com/Pratik1445/skillfolio/internal/objectstore"
	"github.com/Pratik1445/skillfolio/internal/portfolio"
	"github.com/Pratik1445/skillfolio/internal/tasks"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Handlers struct {
	Config      *config.Config
	Sugar       *zap.SugaredLogger
	Identity    *identity.Local
	Tokens      *jwt.Issuer
	Communities *community.Service
	Challenges  *challenge.Service
	Portfolios  *portfolio.Service
	Connections *connection.Service
	Chat        *chat.Service
	Hub         *hub.Hub
	Tasks       *tasks.Tracker
	Objects     *objectstore.Store

	// StaticDir holds the built SPA, index.html included.
	StaticDir string
}

func (h *Handlers) Router() http.Handler {
	r := chi.NewRouter()
	if h.Config.PrintHttpRequests {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	// websockets live longer than any request timeout
	timeout := middleware.Timeout(60 * time.Second)

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(r chi.Router) {
			r.Use(timeout)
			r.Post("/login", h.Login)
			r.Post("/register", h.Register)
			r.With(h.SessionVerifier).Post("/logout", h.Logout)
			r.With(h.UserVerifier).Get("/isLoggedIn", h.IsLoggedIn)
		})

		api.Route("/user", func(r chi.Router) {
			r.Use(timeout, h.UserVerifier)
			r.Get("/fetch", h.GetUserInfo)
		})

		api.Route("/portfolio", func(r chi.Router) {
			r.Use(timeout, h.UserVerifier)
			r.Get("/", h.ListPortfolios)
			r.Post("/", h.UploadPortfolio)
			r.Get("/featured", h.FeaturedPortfolio)
			r.Post("/{id}/view", h.ViewPortfolio)
			r.Post("/{id}/like", h.LikePortfolio)
			r.Delete("/{id}", h.DeletePortfolio)
		})

		api.Route("/community", func(r chi.Router) {
			r.Use(h.UserVerifier)
			r.Get("/{id}/chat/ws", h.ChatSocket)
			r.Group(func(r chi.Router) {
				r.Use(timeout)
				r.Get("/", h.ListCommunities)
				r.Post("/", h.CreateCommunity)
				r.Get("/{id}", h.GetCommunity)
				r.Post("/{id}/join", h.JoinCommunity)
				r.Delete("/{id}", h.DeleteCommunity)
			})
		})

		api.Route("/challenge", func(r chi.Router) {
			r.Use(timeout, h.UserVerifier)
			r.Get("/", h.ListChallenges)
			r.Post("/", h.CreateChallenge)
			r.Get("/{id}", h.GetChallenge)
			r.Post("/{id}/submit", h.SubmitChallenge)
		})

		api.Route("/connection", func(r chi.Router) {
			r.Use(timeout, h.UserVerifier)
			r.Get("/", h.ListConnections)
			r.Post("/", h.CreateConnection)
		})

		api.Route("/diagnostics", func(r chi.Router) {
			r.Use(timeout, h.UserVerifier)
			r.Get("/tasks", h.RecentTasks)
		})
	})

	if !h.Config.BehindNginx {
		r.Handle("/cdn/*", http.StripPrefix("/cdn", h.Objects.Handler()))
		r.Handle("/*", h.spa())
	}

	return r
}

// Serve blocks until ctx is cancelled or the listener fails. Open websockets
// are closed before the server shuts down.
func Serve(ctx context.Context, cfg *config.Config, handler http.Handler, h *hub.Hub, sugar *zap.SugaredLogger) error {
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Address, cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		sugar.Infof("Listening on %s", cfg.FullAddress())
		if cfg.IsHttps() {
			errs <- server.ListenAndServeTLS(cfg.TlsCert, cfg.TlsKey)
		} else {
			errs <- server.ListenAndServe()
		}
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	sugar.Info("Shutting down")
	h.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
