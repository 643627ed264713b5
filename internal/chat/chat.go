// Package chat is the live view of one community: its latest messages, who
// is online, and sending. A Session is backed by two live subscriptions on the
// document store, one for messages and one for presence records.
package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Pratik1445/skillfolio/internal/apperr"
	"github.com/Pratik1445/skillfolio/internal/docstore"
	"github.com/Pratik1445/skillfolio/internal/models"
	"github.com/Pratik1445/skillfolio/internal/session"
	"github.com/Pratik1445/skillfolio/internal/tasks"
	"go.uber.org/zap"
)

const MaxMessageLength = 2000

var ErrClosed = errors.New("chat session closed")

// View receives the full state after every change. Render is called with the
// session locked, so it must not call back into the session.
type View interface {
	Render(State)
}

type ViewFunc func(State)

func (f ViewFunc) Render(s State) {
	f(s)
}

type Member struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

type State struct {
	Community models.Community `json:"community"`
	Feed      []Entry          `json:"feed"`
	Online    []Member         `json:"online"`
	Loading   bool             `json:"loading"`
	FeedError string           `json:"feedError,omitempty"`
	Notice    string           `json:"notice,omitempty"`
	Closed    bool             `json:"closed"`
}

type Config struct {
	Window     int
	Heartbeat  time.Duration
	StaleAfter time.Duration
	Location   *time.Location
}

type Service struct {
	docs  *docstore.Store
	tasks *tasks.Tracker
	cfg   Config
	sugar *zap.SugaredLogger
	now   func() time.Time
}

func NewService(docs *docstore.Store, tracker *tasks.Tracker, cfg Config, sugar *zap.SugaredLogger) *Service {
	if cfg.Window <= 0 {
		cfg.Window = 100
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 30 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 2 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	return &Service{
		docs:  docs,
		tasks: tracker,
		cfg:   cfg,
		sugar: sugar,
		now:   time.Now,
	}
}

type Session struct {
	svc       *Service
	user      *session.Session
	community models.Community
	view      View

	messagesColl *docstore.Collection
	presenceColl *docstore.Collection

	mutex     sync.Mutex
	messages  []models.Message
	presence  []models.Presence
	loading   bool
	feedError string
	notice    string
	closed    bool

	unsubscribeMessages func()
	unsubscribePresence func()
	stopHeartbeat       chan struct{}
	heartbeatDone       chan struct{}
}

// Open enters the chat of communityID as user. It marks the user online,
// subscribes to the message window and the presence records and renders into
// view until Close is called.
func (svc *Service) Open(ctx context.Context, communityID string, user *session.Session, view View) (*Session, error) {
	if user == nil {
		return nil, apperr.Auth(apperr.NoSession)
	}

	snap, err := svc.docs.Collection("communities").Get(ctx, communityID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperr.NotFound("community", communityID)
	} else if err != nil {
		return nil, apperr.Store("access community", err)
	}

	community, err := models.Decode[models.Community](snap.ID, snap.Data)
	if err != nil {
		return nil, apperr.Store("access community", err)
	}

	s := &Session{
		svc:           svc,
		user:          user,
		community:     community,
		view:          view,
		messagesColl:  svc.docs.Collection("communities", communityID, "messages"),
		presenceColl:  svc.docs.Collection("communities", communityID, "presence"),
		loading:       true,
		stopHeartbeat: make(chan struct{}),
		heartbeatDone: make(chan struct{}),
	}

	err = s.markOnline(ctx)
	if err != nil {
		return nil, apperr.Store("set up chat", err)
	}

	// the subscriptions end with Close, not with the caller's context
	subCtx := context.WithoutCancel(ctx)

	// createdAt is the server timestamp of Add, so the create time orders alike
	s.unsubscribeMessages, err = s.messagesColl.Subscribe(subCtx, docstore.Query{
		Orders: []docstore.Order{docstore.OrderBy(docstore.CreateTime, docstore.Desc)},
		Limit:  svc.cfg.Window,
	}, s.onMessages, s.onMessagesError)
	if err != nil {
		s.markOffline()
		return nil, apperr.Store("set up chat", err)
	}

	s.unsubscribePresence, err = s.presenceColl.Subscribe(subCtx, docstore.Query{}, s.onPresence, s.onPresenceError)
	if err != nil {
		s.unsubscribeMessages()
		s.markOffline()
		return nil, apperr.Store("set up chat", err)
	}

	go s.heartbeat(subCtx)

	s.mutex.Lock()
	s.render()
	s.mutex.Unlock()

	svc.sugar.Debugf("User %s opened chat of community %s", user.UserID, communityID)
	return s, nil
}

func (s *Session) markOnline(ctx context.Context) error {
	return s.presenceColl.Set(ctx, s.user.UserID, docstore.Fields{
		"schemaVersion": models.SchemaVersion,
		"online":        true,
		"lastSeenAt":    docstore.ServerTimestamp,
		"displayName":   s.user.Name(),
	})
}

func (s *Session) heartbeat(ctx context.Context) {
	defer close(s.heartbeatDone)

	ticker := time.NewTicker(s.svc.cfg.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopHeartbeat:
			return
		case <-ticker.C:
			err := s.markOnline(ctx)
			if err != nil {
				s.svc.sugar.Warnf("Presence heartbeat of user %s failed: %v", s.user.UserID, err)
			}

			// records can go stale without any write
			s.mutex.Lock()
			s.render()
			s.mutex.Unlock()
		}
	}
}

func (s *Session) onMessages(snaps []docstore.Snapshot) {
	messages := make([]models.Message, 0, len(snaps))
	// newest first from the query, oldest first for display
	for i := len(snaps) - 1; i >= 0; i-- {
		m, err := models.Decode[models.Message](snaps[i].ID, snaps[i].Data)
		if err != nil {
			s.svc.sugar.Warnf("Skipping unreadable message %s: %v", snaps[i].ID, err)
			continue
		}
		messages = append(messages, m)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.messages = messages
	s.loading = false
	s.render()
}

func (s *Session) onMessagesError(err error) {
	s.svc.sugar.Errorf("Message feed of community %s failed: %v", s.community.ID, err)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.loading = false
	s.feedError = "Failed to load messages"
	s.render()
}

func (s *Session) onPresence(snaps []docstore.Snapshot) {
	records := make([]models.Presence, 0, len(snaps))
	for _, snap := range snaps {
		p, err := models.Decode[models.Presence](snap.ID, snap.Data)
		if err != nil {
			s.svc.sugar.Warnf("Skipping unreadable presence record %s: %v", snap.ID, err)
			continue
		}
		records = append(records, p)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.presence = records
	s.render()
}

func (s *Session) onPresenceError(err error) {
	s.svc.sugar.Errorf("Presence feed of community %s failed: %v", s.community.ID, err)
}

// render must be called with the mutex held.
func (s *Session) render() {
	if s.closed || s.view == nil {
		return
	}
	s.view.Render(s.snapshot())
}

func (s *Session) snapshot() State {
	now := s.svc.now()
	return State{
		Community: s.community,
		Feed:      BuildFeed(s.messages, nil, s.user.UserID, s.svc.cfg.Location, now),
		Online:    Roster(s.presence, s.messages, now, s.svc.cfg.StaleAfter),
		Loading:   s.loading,
		FeedError: s.feedError,
		Notice:    s.notice,
		Closed:    s.closed,
	}
}

func (s *Session) State() State {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.snapshot()
}

// Roster lists the members whose presence record is online and fresher than
// staleAfter, sorted by name.
func Roster(records []models.Presence, messages []models.Message, now time.Time, staleAfter time.Duration) []Member {
	authorNames := make(map[string]string)
	for _, m := range messages {
		if m.AuthorName != "" {
			authorNames[m.AuthorID] = m.AuthorName
		}
	}

	members := []Member{}
	for _, p := range records {
		if !p.Online {
			continue
		}
		if !p.LastSeenAt.IsZero() && now.Sub(p.LastSeenAt) > staleAfter {
			continue
		}

		name := p.DisplayName
		if name == "" {
			name = authorNames[p.MemberID]
		}
		if name == "" {
			name = "Anonymous"
		}
		members = append(members, Member{ID: p.MemberID, Name: name, LastSeenAt: p.LastSeenAt})
	}

	sort.Slice(members, func(i, j int) bool {
		if members[i].Name != members[j].Name {
			return members[i].Name < members[j].Name
		}
		return members[i].ID < members[j].ID
	})
	return members
}

// Send validates text and writes it as a detached task, so the caller can
// clear its input right away. The feed shows the message once the message
// subscription delivers it; a failed write only sets a notice.
func (s *Session) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return apperr.Validation("text", "Message cannot be empty")
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return apperr.Validation("text", "Message is too long")
	}

	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return ErrClosed
	}
	if s.notice != "" {
		s.notice = ""
		s.render()
	}
	s.mutex.Unlock()

	fields := docstore.Fields{
		"schemaVersion":  models.SchemaVersion,
		"text":           text,
		"authorId":       s.user.UserID,
		"authorName":     s.user.Name(),
		"createdAt":      docstore.ServerTimestamp,
		"clientSentAt":   s.svc.now().UTC(),
		"deliveryStatus": models.Sent,
	}

	s.svc.tasks.Go(ctx, "send message", func(ctx context.Context) error {
		_, err := s.messagesColl.Add(ctx, fields)
		if err != nil {
			s.mutex.Lock()
			s.notice = "Failed to send message"
			s.render()
			s.mutex.Unlock()
		}
		return err
	})
	return nil
}

// Close ends both subscriptions and marks the user offline. The offline write
// is best effort and may land after Close returned.
func (s *Session) Close() {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return
	}
	s.closed = true
	s.mutex.Unlock()

	close(s.stopHeartbeat)
	<-s.heartbeatDone

	s.unsubscribeMessages()
	s.unsubscribePresence()
	s.markOffline()

	s.svc.sugar.Debugf("User %s left chat of community %s", s.user.UserID, s.community.ID)
}

// markOffline queues the best effort write that ends the user's presence.
func (s *Session) markOffline() {
	userID := s.user.UserID
	s.svc.tasks.Go(context.Background(), "leave chat", func(ctx context.Context) error {
		return s.presenceColl.Update(ctx, userID, docstore.Fields{
			"online":     false,
			"lastSeenAt": docstore.ServerTimestamp,
		})
	})
}

func (s *Session) Community() models.Community {
	return s.community
}
