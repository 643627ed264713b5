package chat

import (
	"sort"
	"time"

	"github.com/Pratik1445/skillfolio/internal/models"
)

type Entry struct {
	Message models.Message `json:"message"`
	// DayLabel is set on the first message of every calendar day.
	DayLabel string `json:"dayLabel,omitempty"`
	Own      bool   `json:"own"`
}

// BuildFeed merges the subscribed window with messages that were sent but not
// confirmed yet, orders them by resolved time and marks day boundaries in loc.
// Messages with equal times keep their incoming order, window first.
func BuildFeed(window, pending []models.Message, userID string, loc *time.Location, now time.Time) []Entry {
	messages := make([]models.Message, 0, len(window)+len(pending))
	messages = append(messages, window...)
	for _, m := range pending {
		m.Pending = true
		messages = append(messages, m)
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].ResolvedTime().Before(messages[j].ResolvedTime())
	})

	if loc == nil {
		loc = time.Local
	}

	entries := make([]Entry, len(messages))
	var previous time.Time
	for i, m := range messages {
		t := m.ResolvedTime().In(loc)
		entries[i] = Entry{Message: m, Own: userID != "" && m.AuthorID == userID}
		if i == 0 || !sameDay(t, previous) {
			entries[i].DayLabel = DayLabel(t, now.In(loc))
		}
		previous = t
	}
	return entries
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DayLabel names the calendar day of t as seen from now. Both must be in the
// same location.
func DayLabel(t, now time.Time) string {
	if sameDay(t, now) {
		return "Today"
	}
	y, m, d := now.Date()
	yesterday := time.Date(y, m, d-1, 12, 0, 0, 0, now.Location())
	if sameDay(t, yesterday) {
		return "Yesterday"
	}
	return t.Format("Jan 2, 2006")
}
