package chat_test

import (
	"testing"
	"time"

	"github.com/Pratik1445/skillfolio/internal/chat"
	"github.com/Pratik1445/skillfolio/internal/models"
	"github.com/stretchr/testify/assert"
)

func at(t time.Time) *time.Time {
	return &t
}

func TestBuildFeed(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, loc)

	window := []models.Message{
		{ID: "3", AuthorID: "me", CreatedAt: at(now.Add(-time.Hour))},
		{ID: "1", AuthorID: "bo", CreatedAt: at(time.Date(2026, 3, 1, 9, 0, 0, 0, loc))},
		{ID: "2", AuthorID: "bo", CreatedAt: at(now.Add(-20 * time.Hour))},
		// server time still unresolved, falls back to the sender's clock
		{ID: "4", AuthorID: "me", ClientSentAt: now.Add(-time.Minute)},
		{ID: "5", AuthorID: "bo", CreatedAt: at(time.Date(2026, 3, 1, 9, 0, 0, 0, loc))},
	}
	pending := []models.Message{{ID: "p", AuthorID: "me", ClientSentAt: now}}

	feed := chat.BuildFeed(window, pending, "me", loc, now)

	var ids, labels []string
	for _, e := range feed {
		ids = append(ids, e.Message.ID)
		labels = append(labels, e.DayLabel)
	}

	assert.Equal(t, []string{"1", "5", "2", "3", "4", "p"}, ids)
	assert.Equal(t, []string{"Mar 1, 2026", "", "Yesterday", "Today", "", ""}, labels)
	assert.True(t, feed[3].Own)
	assert.False(t, feed[0].Own)
	assert.True(t, feed[5].Message.Pending)
}

func TestBuildFeedUsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// 16:00 UTC on the 9th is already the 10th in Tokyo
	msgs := []models.Message{{ID: "a", CreatedAt: at(time.Date(2026, 3, 9, 16, 0, 0, 0, time.UTC))}}

	assert.Equal(t, "Yesterday", chat.BuildFeed(msgs, nil, "", time.UTC, now)[0].DayLabel)
	assert.Equal(t, "Today", chat.BuildFeed(msgs, nil, "", tokyo, now)[0].DayLabel)
}

func TestDayLabel(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{name: "same day", t: now.Add(-10 * time.Minute), want: "Today"},
		{name: "across new year", t: time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC), want: "Yesterday"},
		{name: "older", t: time.Date(2025, 12, 30, 23, 0, 0, 0, time.UTC), want: "Dec 30, 2025"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, chat.DayLabel(tc.t, now))
		})
	}
}

func TestRoster(t *testing.T) {
	now := time.Now()
	records := []models.Presence{
		{MemberID: "a", Online: true, LastSeenAt: now, DisplayName: "Zed"},
		{MemberID: "b", Online: true, LastSeenAt: now.Add(-time.Minute)},
		{MemberID: "c", Online: true, LastSeenAt: now.Add(-10 * time.Minute), DisplayName: "Stale"},
		{MemberID: "d", Online: false, LastSeenAt: now, DisplayName: "Gone"},
		{MemberID: "e", Online: true, LastSeenAt: now},
	}
	messages := []models.Message{{AuthorID: "b", AuthorName: "Bo"}}

	roster := chat.Roster(records, messages, now, 2*time.Minute)

	var names []string
	for _, m := range roster {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"Anonymous", "Bo", "Zed"}, names)
}
