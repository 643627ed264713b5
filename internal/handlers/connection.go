package handlers

import (
	"net/http"
)

func (h *Handlers) ListConnections(w http.ResponseWriter, r *http.Request) {
	connections, err := h.Connections.List(r.Context(), sessionOf(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, connections)
}

func (h *Handlers) CreateConnection(w http.ResponseWriter, r *http.Request) {
	type Request struct {
		ConnectedUserID string `json:"connectedUserId"`
	}

	var request Request
	if !h.decode(w, r, &request) {
		return
	}

	connection, err := h.Connections.Connect(r.Context(), sessionOf(r), request.ConnectedUserID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, connection)
}
