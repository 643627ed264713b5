package portfolio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Pratik1445/skillfolio/internal/apperr"
	"github.com/Pratik1445/skillfolio/internal/docstore"
	"github.com/Pratik1445/skillfolio/internal/models"
	"github.com/Pratik1445/skillfolio/internal/objectstore"
	"github.com/Pratik1445/skillfolio/internal/session"
	"github.com/Pratik1445/skillfolio/internal/validator"
	"go.uber.org/zap"
)

const Bucket = "portfolios"

var Categories = []string{
	"Web Development",
	"Mobile Development",
	"UI/UX Design",
	"Graphic Design",
	"Data Science",
	"Machine Learning",
	"Other",
}

type Service struct {
	portfolios *docstore.Collection
	bucket     *objectstore.Bucket
	maxBytes   int64
	sugar      *zap.SugaredLogger
	now        func() time.Time

	stampMutex sync.Mutex
	lastStamp  int64
}

func New(docs *docstore.Store, objects *objectstore.Store, maxBytes int64, sugar *zap.SugaredLogger) *Service {
	return &Service{
		portfolios: docs.Collection("portfolios"),
		bucket:     objects.Bucket(Bucket),
		maxBytes:   maxBytes,
		sugar:      sugar,
		now:        time.Now,
	}
}

type UploadForm struct {
	Title       string `json:"title" validate:"notblank,max=200"`
	Description string `json:"description" validate:"notblank,max=2000"`
	Category    string `json:"category" validate:"notblank,max=50"`
}

const fillAllFields = "Please fill in all fields and upload a file"

func validCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Upload stores the file and then the portfolio document. A failed document
// write leaves the uploaded file in place.
func (s *Service) Upload(ctx context.Context, user *session.Session, form UploadForm, file *validator.File) (models.Portfolio, error) {
	if user == nil {
		return models.Portfolio{}, apperr.Auth(apperr.NoSession)
	}

	form.Title = strings.TrimSpace(form.Title)
	form.Description = strings.TrimSpace(form.Description)

	if form.Title == "" || form.Description == "" || form.Category == "" || file == nil {
		return models.Portfolio{}, apperr.Validation("", fillAllFields)
	}
	if !validCategory(form.Category) {
		return models.Portfolio{}, apperr.Validation("category", "Please select a category")
	}
	err := validator.Struct(form, "")
	if err != nil {
		return models.Portfolio{}, err
	}
	err = validator.Document(file, s.maxBytes)
	if err != nil {
		return models.Portfolio{}, err
	}

	storagePath := fmt.Sprintf("%s/%d.%s", user.UserID, s.stamp(), file.Extension())

	handle, err := s.bucket.Upload(ctx, storagePath, file.Body, objectstore.UploadOptions{
		ContentType:  file.ContentType,
		CacheControl: "3600",
		Upsert:       false,
		MaxBytes:     s.maxBytes,
	})
	if errors.Is(err, objectstore.ErrTooLarge) {
		return models.Portfolio{}, apperr.Validation("file", "File size should be less than 5MB")
	} else if err != nil {
		return models.Portfolio{}, apperr.Store("upload portfolio", err)
	}

	id, err := s.portfolios.Add(ctx, docstore.Fields{
		"schemaVersion": models.SchemaVersion,
		"title":         form.Title,
		"description":   form.Description,
		"category":      form.Category,
		"fileUrl":       s.bucket.PublicURL(handle.Path),
		"fileName":      file.Name,
		"fileType":      file.ContentType,
		"storagePath":   handle.Path,
		"ownerId":       user.UserID,
		"ownerName":     user.Name(),
		"ownerEmail":    user.Email,
		"likeCount":     0,
		"viewCount":     0,
		"createdAt":     docstore.ServerTimestamp,
	})
	if err != nil {
		s.sugar.Errorf("Portfolio file %s uploaded but its document was not written: %v", handle.Path, err)
		return models.Portfolio{}, apperr.Store("upload portfolio", err)
	}

	return s.Get(ctx, id)
}

// stamp is the upload time in unix milliseconds, never repeating within the
// process so paths of quick uploads do not collide.
func (s *Service) stamp() int64 {
	s.stampMutex.Lock()
	defer s.stampMutex.Unlock()

	stamp := s.now().UnixMilli()
	if stamp <= s.lastStamp {
		stamp = s.lastStamp + 1
	}
	s.lastStamp = stamp
	return stamp
}

func (s *Service) Get(ctx context.Context, id string) (models.Portfolio, error) {
	snap, err := s.portfolios.Get(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return models.Portfolio{}, apperr.NotFound("portfolio", id)
	} else if err != nil {
		return models.Portfolio{}, apperr.Store("load portfolios", err)
	}
	return models.Decode[models.Portfolio](snap.ID, snap.Data)
}

func (s *Service) query(ctx context.Context, q docstore.Query) ([]models.Portfolio, error) {
	snaps, err := s.portfolios.Query(ctx, q)
	if err != nil {
		return nil, apperr.Store("load portfolios", err)
	}

	portfolios := make([]models.Portfolio, 0, len(snaps))
	for _, snap := range snaps {
		p, err := models.Decode[models.Portfolio](snap.ID, snap.Data)
		if err != nil {
			s.sugar.Warnf("Skipping unreadable portfolio %s: %v", snap.ID, err)
			continue
		}
		portfolios = append(portfolios, p)
	}
	return portfolios, nil
}

// List returns every portfolio, newest first, optionally of one owner.
func (s *Service) List(ctx context.Context, ownerID string) ([]models.Portfolio, error) {
	q := docstore.Query{Orders: []docstore.Order{docstore.OrderBy("createdAt", docstore.Desc)}}
	if ownerID != "" {
		q.Filters = append(q.Filters, docstore.Where("ownerId", docstore.Equal, ownerID))
	}
	return s.query(ctx, q)
}

// Featured is the most liked portfolio, or nil when there are none.
func (s *Service) Featured(ctx context.Context) (*models.Portfolio, error) {
	portfolios, err := s.query(ctx, docstore.Query{
		Orders: []docstore.Order{docstore.OrderBy("likeCount", docstore.Desc)},
		Limit:  1,
	})
	if err != nil || len(portfolios) == 0 {
		return nil, err
	}
	return &portfolios[0], nil
}

func (s *Service) bump(ctx context.Context, id, field, op string) (models.Portfolio, error) {
	err := s.portfolios.Update(ctx, id, docstore.Fields{field: docstore.Increment(1)})
	if errors.Is(err, docstore.ErrNotFound) {
		return models.Portfolio{}, apperr.NotFound("portfolio", id)
	} else if err != nil {
		return models.Portfolio{}, apperr.Store(op, err)
	}
	return s.Get(ctx, id)
}

func (s *Service) View(ctx context.Context, id string) (models.Portfolio, error) {
	return s.bump(ctx, id, "viewCount", "update view count")
}

func (s *Service) Like(ctx context.Context, id string) (models.Portfolio, error) {
	return s.bump(ctx, id, "likeCount", "like portfolio")
}

// Delete removes the owner's portfolio: the file first, then the document.
func (s *Service) Delete(ctx context.Context, user *session.Session, id string) error {
	if user == nil {
		return apperr.Auth(apperr.NoSession)
	}

	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.OwnerID != user.UserID {
		return apperr.Permission("You can only delete your own portfolios")
	}

	if p.StoragePath != "" {
		err = s.bucket.Remove(ctx, p.StoragePath)
		if err != nil {
			return apperr.Store("delete portfolio", err)
		}
	}

	err = s.portfolios.Delete(ctx, id)
	if err != nil {
		s.sugar.Errorf("Portfolio %s lost its file but the document remains: %v", id, err)
		return apperr.Store("delete portfolio", err)
	}
	return nil
}
