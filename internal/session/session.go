// Package session holds the signed-in user's session. A Holder is created per
// connection (or per request) and handed to whatever needs the session; there
// is no process-wide current user.
package session

import (
	"context"
	"sync"
	"time"
)

type Session struct {
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	TokenID     string    `json:"-"`
	Token       string    `json:"-"`
	Remember    bool      `json:"-"`
	IssuedAt    time.Time `json:"-"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Name returns the display name, falling back to the email address.
func (s *Session) Name() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Email
}

type Holder struct {
	// notifyMutex keeps observer callbacks in the order the values were set
	notifyMutex sync.Mutex

	mutex     sync.Mutex
	current   *Session
	observers map[int]func(*Session)
	nextID    int
}

func NewHolder(s *Session) *Holder {
	return &Holder{
		current:   s,
		observers: make(map[int]func(*Session)),
	}
}

func (h *Holder) Current() *Session {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.current
}

// Set replaces the session, nil meaning signed out, and pushes the new value
// to every observer. Observers must not call Set themselves.
func (h *Holder) Set(s *Session) {
	h.notifyMutex.Lock()
	defer h.notifyMutex.Unlock()

	h.mutex.Lock()
	h.current = s
	observers := make([]func(*Session), 0, len(h.observers))
	for _, fn := range h.observers {
		observers = append(observers, fn)
	}
	h.mutex.Unlock()

	for _, fn := range observers {
		fn(s)
	}
}

// Observe calls fn with the current session right away and again on every Set
// until the returned cancel function is called.
func (h *Holder) Observe(fn func(*Session)) (cancel func()) {
	h.notifyMutex.Lock()
	defer h.notifyMutex.Unlock()

	h.mutex.Lock()
	id := h.nextID
	h.nextID++
	h.observers[id] = fn
	current := h.current
	h.mutex.Unlock()

	fn(current)

	return func() {
		h.mutex.Lock()
		delete(h.observers, id)
		h.mutex.Unlock()
	}
}

type holderKey struct{}

func WithContext(ctx context.Context, h *Holder) context.Context {
	return context.WithValue(ctx, holderKey{}, h)
}

// FromContext returns the holder placed by WithContext, or nil.
func FromContext(ctx context.Context) *Holder {
	h, _ := ctx.Value(holderKey{}).(*Holder)
	return h
}

// UserFrom returns the current session of the holder in ctx, or nil.
func UserFrom(ctx context.Context) *Session {
	h := FromContext(ctx)
	if h == nil {
		return nil
	}
	return h.Current()
}
