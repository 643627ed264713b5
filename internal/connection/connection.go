package connection

import (
	"context"
	"errors"

	"github.com/Pratik1445/skillfolio/internal/apperr"
	"github.com/Pratik1445/skillfolio/internal/docstore"
	"github.com/Pratik1445/skillfolio/internal/models"
	"github.com/Pratik1445/skillfolio/internal/session"
	"go.uber.org/zap"
)

type Service struct {
	connections *docstore.Collection
	users       *docstore.Collection
	sugar       *zap.SugaredLogger
}

func New(docs *docstore.Store, sugar *zap.SugaredLogger) *Service {
	return &Service{
		connections: docs.Collection("connections"),
		users:       docs.Collection("users"),
		sugar:       sugar,
	}
}

// Connect records a pending connection request from user to targetID.
// Asking again returns the existing request.
func (s *Service) Connect(ctx context.Context, user *session.Session, targetID string) (models.Connection, error) {
	if user == nil {
		return models.Connection{}, apperr.Auth(apperr.NoSession)
	}
	if targetID == "" {
		return models.Connection{}, apperr.Validation("connectedUserId", "Please choose someone to connect with")
	}
	if targetID == user.UserID {
		return models.Connection{}, apperr.Validation("connectedUserId", "You cannot connect with yourself")
	}

	_, err := s.users.Get(ctx, targetID)
	if errors.Is(err, docstore.ErrNotFound) {
		return models.Connection{}, apperr.NotFound("user", targetID)
	} else if err != nil {
		return models.Connection{}, apperr.Store("connect", err)
	}

	existing, err := s.connections.Query(ctx, docstore.Query{
		Filters: []docstore.Filter{
			docstore.Where("userId", docstore.Equal, user.UserID),
			docstore.Where("connectedUserId", docstore.Equal, targetID),
		},
		Limit: 1,
	})
	if err != nil {
		return models.Connection{}, apperr.Store("connect", err)
	}
	if len(existing) > 0 {
		return models.Decode[models.Connection](existing[0].ID, existing[0].Data)
	}

	id, err := s.connections.Add(ctx, docstore.Fields{
		"schemaVersion":   models.SchemaVersion,
		"userId":          user.UserID,
		"connectedUserId": targetID,
		"status":          models.ConnectionPending,
		"createdAt":       docstore.ServerTimestamp,
	})
	if err != nil {
		return models.Connection{}, apperr.Store("connect", err)
	}

	snap, err := s.connections.Get(ctx, id)
	if err != nil {
		return models.Connection{}, apperr.Store("connect", err)
	}
	return models.Decode[models.Connection](snap.ID, snap.Data)
}

// List returns the connections user started.
func (s *Service) List(ctx context.Context, user *session.Session) ([]models.Connection, error) {
	if user == nil {
		return nil, apperr.Auth(apperr.NoSession)
	}

	snaps, err := s.connections.Query(ctx, docstore.Query{
		Filters: []docstore.Filter{docstore.Where("userId", docstore.Equal, user.UserID)},
		Orders:  []docstore.Order{docstore.OrderBy("createdAt", docstore.Desc)},
	})
	if err != nil {
		return nil, apperr.Store("load connections", err)
	}

	connections := make([]models.Connection, 0, len(snaps))
	for _, snap := range snaps {
		c, err := models.Decode[models.Connection](snap.ID, snap.Data)
		if err != nil {
			s.sugar.Warnf("Skipping unreadable connection %s: %v", snap.ID, err)
			continue
		}
		connections = append(connections, c)
	}
	return connections, nil
}
