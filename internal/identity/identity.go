// Package identity signs users up and in, verifies their tokens and reports
// when a session ends. Credentials live in the sql credentials table, profiles
// in the users collection of the document store.
package identity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Pratik1445/skillfolio/internal/apperr"
	"github.com/Pratik1445/skillfolio/internal/docstore"
	"github.com/Pratik1445/skillfolio/internal/jwt"
	"github.com/Pratik1445/skillfolio/internal/keyValue"
	"github.com/Pratik1445/skillfolio/internal/models"
	"github.com/Pratik1445/skillfolio/internal/session"
	"github.com/Pratik1445/skillfolio/internal/snowflake"
	"github.com/Pratik1445/skillfolio/internal/validator"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const userCacheTTL = 15 * time.Minute

type Local struct {
	// HashCost is the bcrypt cost of new passwords.
	HashCost int

	db     *sql.DB
	users  *docstore.Collection
	kv     *keyValue.Store
	feed   docstore.Changefeed
	tokens *jwt.Issuer
	ids    *snowflake.Generator
	sugar  *zap.SugaredLogger
}

func New(db *sql.DB, docs *docstore.Store, kv *keyValue.Store, feed docstore.Changefeed, tokens *jwt.Issuer, ids *snowflake.Generator, sugar *zap.SugaredLogger) *Local {
	return &Local{
		HashCost: 12,
		db:       db,
		users:    docs.Collection("users"),
		kv:       kv,
		feed:     feed,
		tokens:   tokens,
		ids:      ids,
		sugar:    sugar,
	}
}

// cachedUser is what the user_exists cache entry holds.
type cachedUser struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (l *Local) SignUp(ctx context.Context, email, password, displayName string, remember bool) (*session.Session, error) {
	email = normalizeEmail(email)
	displayName = strings.TrimSpace(displayName)

	if validator.Email(email) != nil {
		return nil, apperr.Auth(apperr.InvalidEmail)
	}
	if validator.Password(password) != nil {
		return nil, apperr.Auth(apperr.WeakPassword)
	}
	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}

	var taken bool
	err := l.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM credentials WHERE email = ?)", email).Scan(&taken)
	if err != nil {
		return nil, apperr.Store("create account", err)
	}
	if taken {
		return nil, apperr.Auth(apperr.EmailInUse)
	}

	userID, err := l.ids.GenerateString()
	if err != nil {
		return nil, apperr.Store("create account", err)
	}

	passwordBytes, err := bcrypt.GenerateFromPassword([]byte(password), l.HashCost)
	if err != nil {
		return nil, apperr.Store("create account", err)
	}

	_, err = l.db.ExecContext(ctx, "INSERT INTO credentials (user_id, email, display_name, password, created_at) VALUES (?, ?, ?, ?, ?)",
		userID, email, displayName, passwordBytes, time.Now().UnixMilli())
	if err != nil {
		// lost a race against another sign up with the same email
		var exists bool
		if l.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM credentials WHERE email = ?)", email).Scan(&exists) == nil && exists {
			return nil, apperr.Auth(apperr.EmailInUse)
		}
		return nil, apperr.Store("create account", err)
	}

	err = l.users.Set(ctx, userID, docstore.Fields{
		"schemaVersion": models.SchemaVersion,
		"name":          displayName,
		"email":         email,
		"createdAt":     docstore.ServerTimestamp,
	})
	if err != nil {
		l.sugar.Errorf("Couldn't write profile of user %s: %v", userID, err)
	}

	return l.issue(userID, email, displayName, remember, "")
}

func (l *Local) SignIn(ctx context.Context, email, password string, remember bool) (*session.Session, error) {
	email = normalizeEmail(email)
	if validator.Email(email) != nil {
		return nil, apperr.Auth(apperr.InvalidEmail)
	}

	var userID, displayName string
	var passwordBytes []byte
	err := l.db.QueryRowContext(ctx, "SELECT user_id, display_name, password FROM credentials WHERE email = ?", email).
		Scan(&userID, &displayName, &passwordBytes)
	if errors.Is(err, sql.ErrNoRows) {
		l.sugar.Debugf("Sign in with unknown email %s", email)
		return nil, apperr.Auth(apperr.WrongPassword)
	} else if err != nil {
		return nil, apperr.Store("sign in", err)
	}

	err = bcrypt.CompareHashAndPassword(passwordBytes, []byte(password))
	if err != nil {
		l.sugar.Debug(err)
		return nil, apperr.Auth(apperr.WrongPassword)
	}

	return l.issue(userID, email, displayName, remember, "")
}

func (l *Local) issue(userID, email, displayName string, remember bool, tokenID string) (*session.Session, error) {
	signed, claims, err := l.tokens.CreateToken(remember, userID, tokenID)
	if err != nil {
		return nil, apperr.Store("sign in", err)
	}
	return toSession(signed, claims, email, displayName), nil
}

func toSession(signed string, claims jwt.UserToken, email, displayName string) *session.Session {
	return &session.Session{
		UserID:      claims.UserID,
		Email:       email,
		DisplayName: displayName,
		TokenID:     claims.ID,
		Token:       signed,
		Remember:    claims.Remember,
		IssuedAt:    claims.IssuedAt.Time,
		ExpiresAt:   claims.ExpiresAt.Time,
	}
}

func revokedKey(tokenID string) string {
	return fmt.Sprintf("revoked:%s", tokenID)
}

func sessionTopic(tokenID string) string {
	return fmt.Sprintf("session:%s", tokenID)
}

// SignOut revokes the session's token id and tells everyone watching it.
// Renewals keep the id, so the revocation lasts as long as the newest token
// of the session could.
func (l *Local) SignOut(ctx context.Context, s *session.Session) error {
	if s == nil {
		return nil
	}

	err := l.kv.Set(ctx, revokedKey(s.TokenID), "y", jwt.Lifetime(s.Remember))
	if err != nil {
		return apperr.Store("sign out", err)
	}

	err = l.feed.Publish(ctx, sessionTopic(s.TokenID))
	if err != nil {
		l.sugar.Warnf("Couldn't announce sign out of token %s: %v", s.TokenID, err)
	}
	return nil
}

// Verify turns a token into its session. Expired, revoked or orphaned tokens
// fail with the no-session auth error.
func (l *Local) Verify(ctx context.Context, tokenString string) (*session.Session, error) {
	claims, err := l.tokens.VerifyToken(tokenString)
	if err != nil {
		l.sugar.Debug(err)
		return nil, apperr.Auth(apperr.NoSession)
	}

	revoked, err := l.kv.Get(ctx, revokedKey(claims.ID))
	if err != nil {
		return nil, apperr.Store("verify session", err)
	}
	if revoked != "" {
		return nil, apperr.Auth(apperr.NoSession)
	}

	user, found, err := l.lookupUser(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !found {
		l.sugar.Infof("User ID %s was not found in database", claims.UserID)
		return nil, apperr.Auth(apperr.NoSession)
	}

	return toSession(tokenString, claims, user.Email, user.DisplayName), nil
}

func (l *Local) lookupUser(ctx context.Context, userID string) (cachedUser, bool, error) {
	key := fmt.Sprintf("user_exists:%s", userID)

	value, err := l.kv.Get(ctx, key)
	if err != nil {
		return cachedUser{}, false, apperr.Store("verify session", err)
	}

	var user cachedUser
	if value != "" && json.Unmarshal([]byte(value), &user) == nil {
		l.sugar.Debugf("User ID %s was found in cache", userID)
		return user, true, nil
	}

	err = l.db.QueryRowContext(ctx, "SELECT email, display_name FROM credentials WHERE user_id = ?", userID).
		Scan(&user.Email, &user.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return cachedUser{}, false, nil
	} else if err != nil {
		return cachedUser{}, false, apperr.Store("verify session", err)
	}

	bytes, err := json.Marshal(user)
	if err == nil {
		err = l.kv.Set(ctx, key, string(bytes), userCacheTTL)
	}
	if err != nil {
		l.sugar.Warn(err)
	} else {
		l.sugar.Debugf("User ID %s was found in database and was cached", userID)
	}
	return user, true, nil
}

// Renew issues a fresh token for an old enough session, or returns it as is.
// The fresh token keeps the token id, so signing out either one ends both.
func (l *Local) Renew(s *session.Session) (*session.Session, bool, error) {
	if !l.tokens.NeedsRenewal(s.IssuedAt) {
		return s, false, nil
	}

	renewed, err := l.issue(s.UserID, s.Email, s.DisplayName, s.Remember, s.TokenID)
	if err != nil {
		return nil, false, err
	}
	return renewed, true, nil
}

// Profile reads the users document of userID.
func (l *Local) Profile(ctx context.Context, userID string) (models.UserProfile, error) {
	snap, err := l.users.Get(ctx, userID)
	if errors.Is(err, docstore.ErrNotFound) {
		return models.UserProfile{}, apperr.NotFound("user", userID)
	} else if err != nil {
		return models.UserProfile{}, apperr.Store("load profile", err)
	}
	return models.Decode[models.UserProfile](snap.ID, snap.Data)
}
