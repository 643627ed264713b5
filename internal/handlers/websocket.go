package handlers

import (
	"errors"
	"net/http"

	"github.com/Pratik1445/skillfolio/internal/apperr"
	"github.com/Pratik1445/skillfolio/internal/chat"
	"github.com/Pratik1445/skillfolio/internal/hub"
	"github.com/Pratik1445/skillfolio/internal/session"
	"github.com/go-chi/chi/v5"
)

type chatError struct {
	Message string `json:"message"`
}

// ChatSocket streams the chat state of one community to the browser and takes
// send intents back. The socket closes when the session ends, including a
// sign out from another tab.
func (h *Handlers) ChatSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := sessionOf(r)
	communityID := chi.URLParam(r, "id")

	// answer a missing community before upgrading, while a status code still
	// means something
	_, err := h.Communities.Get(ctx, communityID)
	if err != nil {
		h.fail(w, err)
		return
	}

	client, err := h.Hub.Upgrade(w, r, user.UserID)
	if err != nil {
		h.Sugar.Debug(err)
		return
	}

	chatSession, err := h.Chat.Open(ctx, communityID, user, client)
	if err != nil {
		h.Sugar.Error(err)
		h.emitError(client, err)
		client.Close()
		client.Run(func(hub.Inbound) {})
		return
	}
	defer chatSession.Close()

	holder := session.NewHolder(nil)
	stopWatching, err := h.Identity.Watch(ctx, user, holder)
	if err != nil {
		h.Sugar.Error(err)
		client.Close()
		client.Run(func(hub.Inbound) {})
		return
	}
	defer stopWatching()

	stopObserving := holder.Observe(func(s *session.Session) {
		if s != nil {
			return
		}
		err := client.Emit(hub.SessionEnded, struct{}{})
		if err != nil {
			h.Sugar.Debug(err)
		}
		client.Close()
	})
	defer stopObserving()

	client.Run(func(in hub.Inbound) {
		switch in.Type {
		case hub.SendMessage:
			err := chatSession.Send(ctx, in.Text)
			if errors.Is(err, chat.ErrClosed) {
				return
			}
			if err != nil {
				h.emitError(client, err)
			}
		default:
			h.Sugar.Debugf("Unknown message type %q from user %s", in.Type, user.UserID)
		}
	})
}

func (h *Handlers) emitError(client *hub.Client, err error) {
	emitErr := client.Emit(hub.ChatError, chatError{Message: apperr.Banner(err)})
	if emitErr != nil {
		h.Sugar.Debug(emitErr)
	}
}
