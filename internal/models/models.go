// Package models holds the documents stored in the document store. Every
// document carries a schemaVersion; Decode upgrades older shapes and fills
// defaults so the rest of the code only sees the current version.
package models

import (
	"encoding/json"
	"time"
)

const SchemaVersion = 2

const DefaultCommunityIcon = "📚"

type DeliveryStatus string

const (
	Sent      DeliveryStatus = "sent"
	Delivered DeliveryStatus = "delivered"
	Read      DeliveryStatus = "read"
)

type ConnectionStatus string

const (
	ConnectionPending  ConnectionStatus = "pending"
	ConnectionAccepted ConnectionStatus = "accepted"
)

type UserProfile struct {
	ID            string    `json:"id"`
	SchemaVersion int       `json:"schemaVersion"`
	Name          string    `json:"name"`
	Email         string    `json:"email,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type Community struct {
	ID            string    `json:"id"`
	SchemaVersion int       `json:"schemaVersion"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Members       []string  `json:"members"`
	Topics        []string  `json:"topics"`
	Icon          string    `json:"icon"`
	CreatedBy     string    `json:"createdBy,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (c Community) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m == userID {
			return true
		}
	}
	return false
}

type Message struct {
	ID            string `json:"id"`
	SchemaVersion int    `json:"schemaVersion"`
	Text          string `json:"text"`
	AuthorID      string `json:"authorId"`
	AuthorName    string `json:"authorName"`
	// CreatedAt is the server timestamp, nil until the store resolved it.
	CreatedAt      *time.Time     `json:"createdAt"`
	ClientSentAt   time.Time      `json:"clientSentAt"`
	DeliveryStatus DeliveryStatus `json:"deliveryStatus"`
	Pending        bool           `json:"pending"`

	LegacyUserID   string `json:"userId,omitempty"`
	LegacyUserName string `json:"userName,omitempty"`
	LegacyStatus   string `json:"status,omitempty"`
}

// ResolvedTime is the server timestamp, or the sender's wall clock while the
// server timestamp is unresolved.
func (m Message) ResolvedTime() time.Time {
	if m.CreatedAt != nil {
		return *m.CreatedAt
	}
	return m.ClientSentAt
}

type Presence struct {
	MemberID      string    `json:"memberId"`
	SchemaVersion int       `json:"schemaVersion"`
	Online        bool      `json:"online"`
	LastSeenAt    time.Time `json:"lastSeenAt"`
	DisplayName   string    `json:"displayName,omitempty"`

	LegacyLastSeen *time.Time `json:"lastSeen,omitempty"`
}

type Challenge struct {
	ID               string            `json:"id"`
	SchemaVersion    int               `json:"schemaVersion"`
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	Deadline         time.Time         `json:"deadline"`
	Participants     []string          `json:"participants"`
	SubmissionCount  int               `json:"submissionCount"`
	PrizeDescription string            `json:"prizeDescription"`
	Rules            []string          `json:"rules"`
	SubmissionURLs   map[string]string `json:"submissionUrls"`
	CreatedBy        string            `json:"createdBy,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`

	LegacySubmissions *int   `json:"submissions,omitempty"`
	LegacyPrize       string `json:"prize,omitempty"`
}

func (c Challenge) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

type Portfolio struct {
	ID            string    `json:"id"`
	SchemaVersion int       `json:"schemaVersion"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	FileURL       string    `json:"fileUrl"`
	FileName      string    `json:"fileName"`
	FileType      string    `json:"fileType"`
	StoragePath   string    `json:"storagePath"`
	OwnerID       string    `json:"ownerId"`
	OwnerName     string    `json:"ownerName"`
	OwnerEmail    string    `json:"ownerEmail,omitempty"`
	LikeCount     int       `json:"likeCount"`
	ViewCount     int       `json:"viewCount"`
	CreatedAt     time.Time `json:"createdAt"`

	LegacyUserID    string `json:"userId,omitempty"`
	LegacyUserName  string `json:"userName,omitempty"`
	LegacyUserEmail string `json:"userEmail,omitempty"`
	LegacyLikes     *int   `json:"likes,omitempty"`
	LegacyViews     *int   `json:"views,omitempty"`
}

type Connection struct {
	ID              string           `json:"id"`
	SchemaVersion   int              `json:"schemaVersion"`
	UserID          string           `json:"userId"`
	ConnectedUserID string           `json:"connectedUserId"`
	Status          ConnectionStatus `json:"status"`
	CreatedAt       time.Time        `json:"createdAt"`
}

type document[T any] interface {
	*T
	setID(id string)
	migrate()
}

// Decode reads a stored document into T, applying the id and upgrading it to
// the current schema version.
func Decode[T any, P document[T]](id string, data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, err
	}
	P(&v).setID(id)
	P(&v).migrate()
	return v, nil
}

func (u *UserProfile) setID(id string) { u.ID = id }

func (u *UserProfile) migrate() {
	u.SchemaVersion = SchemaVersion
}

func (c *Community) setID(id string) { c.ID = id }

func (c *Community) migrate() {
	if c.Members == nil {
		c.Members = []string{}
	}
	if c.Topics == nil {
		c.Topics = []string{}
	}
	if c.Icon == "" {
		c.Icon = DefaultCommunityIcon
	}
	c.SchemaVersion = SchemaVersion
}

func (m *Message) setID(id string) { m.ID = id }

func (m *Message) migrate() {
	if m.AuthorID == "" {
		m.AuthorID = m.LegacyUserID
	}
	if m.AuthorName == "" {
		m.AuthorName = m.LegacyUserName
	}
	if m.DeliveryStatus == "" {
		m.DeliveryStatus = DeliveryStatus(m.LegacyStatus)
	}
	if m.DeliveryStatus == "" {
		m.DeliveryStatus = Sent
	}
	if m.AuthorName == "" {
		m.AuthorName = "Anonymous"
	}
	m.LegacyUserID, m.LegacyUserName, m.LegacyStatus = "", "", ""
	m.SchemaVersion = SchemaVersion
}

func (p *Presence) setID(id string) { p.MemberID = id }

func (p *Presence) migrate() {
	if p.LastSeenAt.IsZero() && p.LegacyLastSeen != nil {
		p.LastSeenAt = *p.LegacyLastSeen
	}
	p.LegacyLastSeen = nil
	p.SchemaVersion = SchemaVersion
}

func (c *Challenge) setID(id string) { c.ID = id }

func (c *Challenge) migrate() {
	if c.SchemaVersion < 2 {
		if c.LegacySubmissions != nil && c.SubmissionCount == 0 {
			c.SubmissionCount = *c.LegacySubmissions
		}
		if c.PrizeDescription == "" {
			c.PrizeDescription = c.LegacyPrize
		}
	}
	c.LegacySubmissions, c.LegacyPrize = nil, ""

	if c.Participants == nil {
		c.Participants = []string{}
	}
	if c.Rules == nil {
		c.Rules = []string{}
	}
	if c.SubmissionURLs == nil {
		c.SubmissionURLs = map[string]string{}
	}
	c.SchemaVersion = SchemaVersion
}

func (p *Portfolio) setID(id string) { p.ID = id }

func (p *Portfolio) migrate() {
	if p.SchemaVersion < 2 {
		if p.OwnerID == "" {
			p.OwnerID = p.LegacyUserID
		}
		if p.OwnerName == "" {
			p.OwnerName = p.LegacyUserName
		}
		if p.OwnerEmail == "" {
			p.OwnerEmail = p.LegacyUserEmail
		}
		if p.LegacyLikes != nil && p.LikeCount == 0 {
			p.LikeCount = *p.LegacyLikes
		}
		if p.LegacyViews != nil && p.ViewCount == 0 {
			p.ViewCount = *p.LegacyViews
		}
	}
	p.LegacyUserID, p.LegacyUserName, p.LegacyUserEmail = "", "", ""
	p.LegacyLikes, p.LegacyViews = nil, nil
	p.SchemaVersion = SchemaVersion
}

func (c *Connection) setID(id string) { c.ID = id }

func (c *Connection) migrate() {
	if c.Status == "" {
		c.Status = ConnectionPending
	}
	c.SchemaVersion = SchemaVersion
}
