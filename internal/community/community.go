package community

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Pratik1445/skillfolio/internal/apperr"
	"github.com/Pratik1445/skillfolio/internal/docstore"
	"github.com/Pratik1445/skillfolio/internal/models"
	"github.com/Pratik1445/skillfolio/internal/session"
	"github.com/Pratik1445/skillfolio/internal/validator"
	"go.uber.org/zap"
)

type Service struct {
	docs        *docstore.Store
	communities *docstore.Collection
	cascade     bool
	sugar       *zap.SugaredLogger
}

// New returns the community service. With cascade set, deleting a community
// also removes its messages and presence records.
func New(docs *docstore.Store, cascade bool, sugar *zap.SugaredLogger) *Service {
	return &Service{
		docs:        docs,
		communities: docs.Collection("communities"),
		cascade:     cascade,
		sugar:       sugar,
	}
}

type CreateForm struct {
	Name        string   `json:"name" validate:"notblank,max=100"`
	Description string   `json:"description" validate:"notblank,max=1000"`
	Topics      []string `json:"topics" validate:"min=1,max=20,dive,notblank,max=50"`
	Icon        string   `json:"icon" validate:"max=32"`
}

// cleanTopics trims topics and drops empty and repeated ones.
func cleanTopics(topics []string) []string {
	seen := make(map[string]bool)
	cleaned := []string{}
	for _, topic := range topics {
		topic = strings.TrimSpace(topic)
		if topic == "" || seen[strings.ToLower(topic)] {
			continue
		}
		seen[strings.ToLower(topic)] = true
		cleaned = append(cleaned, topic)
	}
	return cleaned
}

// Create stores a new community with the creator as its only member.
func (s *Service) Create(ctx context.Context, user *session.Session, form CreateForm) (models.Community, error) {
	if user == nil {
		return models.Community{}, apperr.Auth(apperr.NoSession)
	}

	form.Name = strings.TrimSpace(form.Name)
	form.Description = strings.TrimSpace(form.Description)
	form.Topics = cleanTopics(form.Topics)

	err := validator.Struct(form, "Please fill in all fields and add at least one topic")
	if err != nil {
		return models.Community{}, err
	}

	icon := form.Icon
	if icon == "" {
		icon = models.DefaultCommunityIcon
	}

	id, err := s.communities.Add(ctx, docstore.Fields{
		"schemaVersion": models.SchemaVersion,
		"name":          form.Name,
		"description":   form.Description,
		"topics":        form.Topics,
		"members":       []string{user.UserID},
		"icon":          icon,
		"createdBy":     user.UserID,
		"createdAt":     docstore.ServerTimestamp,
	})
	if err != nil {
		return models.Community{}, apperr.Store("create community", err)
	}

	return s.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id string) (models.Community, error) {
	snap, err := s.communities.Get(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return models.Community{}, apperr.NotFound("community", id)
	} else if err != nil {
		return models.Community{}, apperr.Store("load community data", err)
	}
	return models.Decode[models.Community](snap.ID, snap.Data)
}

func (s *Service) List(ctx context.Context) ([]models.Community, error) {
	snaps, err := s.communities.Query(ctx, docstore.Query{})
	if err != nil {
		return nil, apperr.Store("load community data", err)
	}

	communities := make([]models.Community, 0, len(snaps))
	for _, snap := range snaps {
		c, err := models.Decode[models.Community](snap.ID, snap.Data)
		if err != nil {
			s.sugar.Warnf("Skipping unreadable community %s: %v", snap.ID, err)
			continue
		}
		communities = append(communities, c)
	}
	return communities, nil
}

type JoinResult struct {
	Community models.Community `json:"community"`
	Joined    bool             `json:"joined"`
	Route     string           `json:"route"`
}

func ChatRoute(communityID string) string {
	return fmt.Sprintf("/community/%s/chat", communityID)
}

// JoinOrEnter adds the user to the members when needed and always returns the
// chat route. Calling it again as a member writes nothing.
func (s *Service) JoinOrEnter(ctx context.Context, user *session.Session, communityID string) (JoinResult, error) {
	if user == nil {
		return JoinResult{}, apperr.Auth(apperr.NoSession)
	}

	community, err := s.Get(ctx, communityID)
	if err != nil {
		return JoinResult{}, err
	}

	result := JoinResult{Community: community, Route: ChatRoute(communityID)}
	if community.HasMember(user.UserID) {
		return result, nil
	}

	err = s.communities.Update(ctx, communityID, docstore.Fields{
		"members": docstore.ArrayUnion(user.UserID),
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return JoinResult{}, apperr.NotFound("community", communityID)
	} else if err != nil {
		return JoinResult{}, apperr.Store("access community", err)
	}

	result.Joined = true
	result.Community.Members = append(result.Community.Members, user.UserID)
	s.sugar.Debugf("User %s joined community %s", user.UserID, communityID)
	return result, nil
}

// Delete removes the community if user created it.
func (s *Service) Delete(ctx context.Context, user *session.Session, communityID string) error {
	if user == nil {
		return apperr.Auth(apperr.NoSession)
	}

	community, err := s.Get(ctx, communityID)
	if err != nil {
		return err
	}
	if community.CreatedBy != user.UserID {
		return apperr.Permission("You can only delete communities you created")
	}

	err = s.communities.Delete(ctx, communityID)
	if err != nil {
		return apperr.Store("delete community", err)
	}

	if s.cascade {
		for _, sub := range []string{"messages", "presence"} {
			removed, err := s.docs.Collection("communities", communityID, sub).DeleteAll(ctx)
			if err != nil {
				s.sugar.Errorf("Couldn't remove %s of community %s: %v", sub, communityID, err)
				continue
			}
			s.sugar.Debugf("Removed %d %s of community %s", removed, sub, communityID)
		}
	}
	return nil
}

var defaults = []CreateForm{
	{
		Name:        "Web Development",
		Description: "Community for web developers to share knowledge and collaborate",
		Topics:      []string{"React", "JavaScript", "CSS", "Node.js"},
		Icon:        "code",
	},
	{
		Name:        "UI/UX Design",
		Description: "Share design tips, get feedback, and discuss latest trends",
		Topics:      []string{"UI Design", "UX Research", "Figma", "Design Systems"},
		Icon:        "layout",
	},
	{
		Name:        "Mobile Development",
		Description: "Mobile app developers sharing experiences and best practices",
		Topics:      []string{"React Native", "Flutter", "iOS", "Android"},
		Icon:        "smartphone",
	},
}

// SeedDefaults adds the sample communities when there are none yet and
// reports how many were added.
func (s *Service) SeedDefaults(ctx context.Context) (int, error) {
	existing, err := s.communities.Query(ctx, docstore.Query{Limit: 1})
	if err != nil {
		return 0, apperr.Store("load community data", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	for _, form := range defaults {
		_, err := s.communities.Add(ctx, docstore.Fields{
			"schemaVersion": models.SchemaVersion,
			"name":          form.Name,
			"description":   form.Description,
			"topics":        form.Topics,
			"members":       []string{},
			"icon":          form.Icon,
			"createdAt":     docstore.ServerTimestamp,
		})
		if err != nil {
			return 0, apperr.Store("create community", err)
		}
	}
	return len(defaults), nil
}
