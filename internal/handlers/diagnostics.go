package handlers

import (
	"net/http"

	"github.com/Pratik1445/skillfolio/internal/tasks"
)

// RecentTasks shows how the detached writes (message sends, presence
// teardown) ended, since nobody waits for them.
func (h *Handlers) RecentTasks(w http.ResponseWriter, r *http.Request) {
	type Diagnostics struct {
		Running     int             `json:"running"`
		Connections int             `json:"connections"`
		Recent      []tasks.Outcome `json:"recent"`
	}

	h.writeJSON(w, http.StatusOK, Diagnostics{
		Running:     h.Tasks.Running(),
		Connections: h.Hub.Count(),
		Recent:      h.Tasks.Recent(),
	})
}
