package challenge

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/Pratik1445/skillfolio/internal/apperr"
	"github.com/Pratik1445/skillfolio/internal/docstore"
	"github.com/Pratik1445/skillfolio/internal/models"
	"github.com/Pratik1445/skillfolio/internal/objectstore"
	"github.com/Pratik1445/skillfolio/internal/session"
	"github.com/Pratik1445/skillfolio/internal/validator"
	"go.uber.org/zap"
)

const Bucket = "challenge-submissions"

type Status string

const (
	NotJoined  Status = "NotJoined"
	Submitting Status = "Submitting"
	Submitted  Status = "Submitted"
)

type Service struct {
	challenges *docstore.Collection
	bucket     *objectstore.Bucket
	maxBytes   int64
	sugar      *zap.SugaredLogger
	now        func() time.Time
}

func New(docs *docstore.Store, objects *objectstore.Store, maxBytes int64, sugar *zap.SugaredLogger) *Service {
	return &Service{
		challenges: docs.Collection("challenges"),
		bucket:     objects.Bucket(Bucket),
		maxBytes:   maxBytes,
		sugar:      sugar,
		now:        time.Now,
	}
}

type CreateForm struct {
	Title       string    `json:"title" validate:"notblank,max=200"`
	Description string    `json:"description" validate:"notblank,max=2000"`
	Deadline    time.Time `json:"deadline" validate:"required"`
	Prize       string    `json:"prize" validate:"notblank,max=200"`
	Rules       []string  `json:"rules" validate:"max=50,dive,notblank"`
}

// Create stores a challenge with the creator as its first participant.
func (s *Service) Create(ctx context.Context, user *session.Session, form CreateForm) (models.Challenge, error) {
	if user == nil {
		return models.Challenge{}, apperr.Auth(apperr.NoSession)
	}

	err := validator.Struct(form, "")
	if err != nil {
		return models.Challenge{}, err
	}

	rules := form.Rules
	if rules == nil {
		rules = []string{}
	}

	id, err := s.challenges.Add(ctx, docstore.Fields{
		"schemaVersion":    models.SchemaVersion,
		"title":            strings.TrimSpace(form.Title),
		"description":      strings.TrimSpace(form.Description),
		"deadline":         form.Deadline.UTC(),
		"participants":     []string{user.UserID},
		"submissionCount":  0,
		"prizeDescription": strings.TrimSpace(form.Prize),
		"rules":            rules,
		"submissionUrls":   map[string]string{},
		"createdBy":        user.UserID,
		"createdAt":        docstore.ServerTimestamp,
	})
	if err != nil {
		return models.Challenge{}, apperr.Store("create challenge", err)
	}

	return s.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id string) (models.Challenge, error) {
	snap, err := s.challenges.Get(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return models.Challenge{}, apperr.NotFound("challenge", id)
	} else if err != nil {
		return models.Challenge{}, apperr.Store("load challenge details", err)
	}
	return models.Decode[models.Challenge](snap.ID, snap.Data)
}

// List returns the challenges with the closest deadline first.
func (s *Service) List(ctx context.Context, limit int) ([]models.Challenge, error) {
	snaps, err := s.challenges.Query(ctx, docstore.Query{
		Orders: []docstore.Order{docstore.OrderBy("deadline", docstore.Asc)},
		Limit:  limit,
	})
	if err != nil {
		return nil, apperr.Store("load challenges", err)
	}

	challenges := make([]models.Challenge, 0, len(snaps))
	for _, snap := range snaps {
		c, err := models.Decode[models.Challenge](snap.ID, snap.Data)
		if err != nil {
			s.sugar.Warnf("Skipping unreadable challenge %s: %v", snap.ID, err)
			continue
		}
		challenges = append(challenges, c)
	}
	return challenges, nil
}

// StatusOf derives where userID stands in c from the stored document.
func StatusOf(c models.Challenge, userID string) Status {
	if _, ok := c.SubmissionURLs[userID]; ok {
		return Submitted
	}
	return NotJoined
}

// Submission is one user's upload in progress.
type Submission struct {
	svc       *Service
	user      *session.Session
	challenge models.Challenge
	file      *validator.File
	status    Status
	url       string
}

func (sub *Submission) Status() Status {
	return sub.status
}

// URL is the public url of the uploaded file once submitted.
func (sub *Submission) URL() string {
	return sub.url
}

// Begin checks the file locally and moves to Submitting. Nothing is written.
func (s *Service) Begin(ctx context.Context, user *session.Session, challengeID string, file *validator.File) (*Submission, error) {
	if user == nil {
		return nil, apperr.Auth(apperr.NoSession)
	}

	err := validator.Document(file, s.maxBytes)
	if err != nil {
		return nil, err
	}

	c, err := s.Get(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	return &Submission{
		svc:       s,
		user:      user,
		challenge: c,
		file:      file,
		status:    Submitting,
	}, nil
}

func objectName(file *validator.File) string {
	name := path.Base(strings.ReplaceAll(file.Name, "\\", "/"))
	if name == "." || name == "/" || name == ".." || strings.HasPrefix(name, ".") {
		name = fmt.Sprintf("submission.%s", file.Extension())
	}
	return name
}

// Complete uploads the file and records the submission. The two writes are
// independent; when the record fails the uploaded file stays behind.
func (sub *Submission) Complete(ctx context.Context) (models.Challenge, error) {
	if sub.status != Submitting {
		return models.Challenge{}, fmt.Errorf("submission is %s", sub.status)
	}

	s := sub.svc
	challengeID := sub.challenge.ID
	userID := sub.user.UserID
	objectPath := path.Join(challengeID, userID, objectName(sub.file))

	handle, err := s.bucket.Upload(ctx, objectPath, sub.file.Body, objectstore.UploadOptions{
		ContentType:  sub.file.ContentType,
		CacheControl: "3600",
		Upsert:       true,
		MaxBytes:     s.maxBytes,
	})
	if errors.Is(err, objectstore.ErrTooLarge) {
		return models.Challenge{}, apperr.Validation("file", "File size should be less than 5MB")
	} else if err != nil {
		return models.Challenge{}, apperr.Store("submit challenge", err)
	}

	url := s.bucket.PublicURL(handle.Path)

	// participants is a set but the count grows on every submission
	err = s.challenges.Update(ctx, challengeID, docstore.Fields{
		"participants":              docstore.ArrayUnion(userID),
		"submissionCount":           docstore.Increment(1),
		"submissionUrls." + userID: url,
	})
	if err != nil {
		s.sugar.Errorf("Submission of user %s to challenge %s uploaded to %s but not recorded: %v", userID, challengeID, handle.Path, err)
		if errors.Is(err, docstore.ErrNotFound) {
			return models.Challenge{}, apperr.NotFound("challenge", challengeID)
		}
		return models.Challenge{}, apperr.Store("submit challenge", err)
	}

	sub.status = Submitted
	sub.url = url

	return s.Get(ctx, challengeID)
}

// Submit runs a whole submission.
func (s *Service) Submit(ctx context.Context, user *session.Session, challengeID string, file *validator.File) (models.Challenge, error) {
	sub, err := s.Begin(ctx, user, challengeID, file)
	if err != nil {
		return models.Challenge{}, err
	}
	return sub.Complete(ctx)
}

// SeedDefaults adds the sample challenges when there are none yet and reports
// how many were added.
func (s *Service) SeedDefaults(ctx context.Context) (int, error) {
	existing, err := s.challenges.Query(ctx, docstore.Query{Limit: 1})
	if err != nil {
		return 0, apperr.Store("load challenges", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	now := s.now().UTC()
	samples := []docstore.Fields{
		{
			"title":            "Build a Portfolio Website",
			"description":      "Create a responsive portfolio website using React and Tailwind CSS",
			"deadline":         now.AddDate(0, 0, 14),
			"prizeDescription": "Featured Spotlight",
		},
		{
			"title":            "Mobile App UI Challenge",
			"description":      "Design a modern mobile app interface using Figma or Adobe XD",
			"deadline":         now.AddDate(0, 0, 21),
			"prizeDescription": "Community Recognition",
		},
	}

	for _, fields := range samples {
		fields["schemaVersion"] = models.SchemaVersion
		fields["participants"] = []string{}
		fields["submissionCount"] = 0
		fields["rules"] = []string{}
		fields["submissionUrls"] = map[string]string{}
		fields["createdAt"] = docstore.ServerTimestamp

		_, err := s.challenges.Add(ctx, fields)
		if err != nil {
			return 0, apperr.Store("create challenge", err)
		}
	}
	return len(samples), nil
}
