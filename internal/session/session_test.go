package session_test

import (
	"context"
	"testing"

	"github.com/Pratik1445/skillfolio/internal/session"
	"github.com/stretchr/testify/assert"
)

func TestObservePushesCurrentImmediately(t *testing.T) {
	s := &session.Session{UserID: "u1", Email: "a@b.co"}
	h := session.NewHolder(s)

	var seen []*session.Session
	cancel := h.Observe(func(s *session.Session) { seen = append(seen, s) })

	h.Set(nil)
	cancel()
	h.Set(s)

	assert.Equal(t, []*session.Session{s, nil}, seen)
	assert.Same(t, s, h.Current())
}

func TestObserveWithoutSession(t *testing.T) {
	h := session.NewHolder(nil)

	calls := 0
	h.Observe(func(s *session.Session) {
		calls++
		assert.Nil(t, s)
	})
	assert.Equal(t, 1, calls)
}

func TestContext(t *testing.T) {
	assert.Nil(t, session.UserFrom(context.Background()))

	h := session.NewHolder(&session.Session{UserID: "u2", DisplayName: "Ana"})
	ctx := session.WithContext(context.Background(), h)

	assert.Same(t, h, session.FromContext(ctx))
	assert.Equal(t, "Ana", session.UserFrom(ctx).Name())
}

func TestNameFallsBackToEmail(t *testing.T) {
	s := &session.Session{Email: "x@y.io"}
	assert.Equal(t, "x@y.io", s.Name())
}
