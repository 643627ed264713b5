// Package testutil builds a self contained backend for tests: in-memory
// sqlite, local changefeed, hashmap key/value store and a temp dir object
// store.
package testutil

import (
	"context"
	"database/sql"
	"testing"

	"github.com/Pratik1445/skillfolio/internal/database"
	"github.com/Pratik1445/skillfolio/internal/docstore"
	"github.com/Pratik1445/skillfolio/internal/identity"
	"github.com/Pratik1445/skillfolio/internal/jwt"
	"github.com/Pratik1445/skillfolio/internal/keyValue"
	"github.com/Pratik1445/skillfolio/internal/objectstore"
	"github.com/Pratik1445/skillfolio/internal/session"
	"github.com/Pratik1445/skillfolio/internal/snowflake"
	"github.com/Pratik1445/skillfolio/internal/tasks"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

// JwtSecret signs the tokens of every Env.
const JwtSecret = "test-secret"

type Env struct {
	DB       *sql.DB
	Sugar    *zap.SugaredLogger
	Feed     *docstore.LocalChangefeed
	Docs     *docstore.Store
	KV       *keyValue.Store
	Tokens   *jwt.Issuer
	Identity *identity.Local
	Objects  *objectstore.Store
	Tasks    *tasks.Tracker
}

func New(t *testing.T) *Env {
	t.Helper()

	sugar := zaptest.NewLogger(t).Sugar()

	db, err := database.OpenMemory()
	require.NoError(t, err)

	ids, err := snowflake.New(1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	feed := docstore.NewLocalChangefeed()
	docs := docstore.New(db, feed, ids, sugar)
	kv := keyValue.New(ctx, sugar, nil, true)
	tokens := jwt.NewIssuer(JwtSecret, false)

	ident := identity.New(db, docs, kv, feed, tokens, ids, sugar)
	ident.HashCost = bcrypt.MinCost

	objects, err := objectstore.New(t.TempDir(), "http://localhost:3000/cdn", sugar)
	require.NoError(t, err)

	tracker := tasks.New(64, sugar)

	t.Cleanup(func() {
		tracker.Wait()
		cancel()
		db.Close()
	})

	return &Env{
		DB:       db,
		Sugar:    sugar,
		Feed:     feed,
		Docs:     docs,
		KV:       kv,
		Tokens:   tokens,
		Identity: ident,
		Objects:  objects,
		Tasks:    tracker,
	}
}

// SignUp creates an account and returns its session.
func (e *Env) SignUp(t *testing.T, email, name string) *session.Session {
	t.Helper()
	s, err := e.Identity.SignUp(context.Background(), email, "password1", name, false)
	require.NoError(t, err)
	return s
}

// ObjectsAt returns an object store rooted at dir, for tests that inspect
// the files on disk.
func ObjectsAt(t *testing.T, dir string) *objectstore.Store {
	t.Helper()
	objects, err := objectstore.New(dir, "http://localhost:3000/cdn", zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	return objects
}
