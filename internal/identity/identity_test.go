package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/Pratik1445/skillfolio/internal/apperr"
	"github.com/Pratik1445/skillfolio/internal/session"
	"github.com/Pratik1445/skillfolio/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignUpAndSignIn(t *testing.T) {
	ctx := context.Background()
	env := testutil.New(t)

	created, err := env.Identity.SignUp(ctx, " Ana@Example.com ", "secret1", "Ana", true)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", created.Email)
	assert.Equal(t, "Ana", created.DisplayName)
	assert.True(t, created.Remember)
	assert.NotEmpty(t, created.Token)

	profile, err := env.Identity.Profile(ctx, created.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", profile.Name)
	assert.Equal(t, "ana@example.com", profile.Email)
	assert.False(t, profile.CreatedAt.IsZero())

	signedIn, err := env.Identity.SignIn(ctx, "ana@example.com", "secret1", false)
	require.NoError(t, err)
	assert.Equal(t, created.UserID, signedIn.UserID)
	assert.NotEqual(t, created.TokenID, signedIn.TokenID)
}

func TestAuthErrors(t *testing.T) {
	ctx := context.Background()
	env := testutil.New(t)
	env.SignUp(t, "taken@example.com", "Taken")

	tests := []struct {
		name string
		call func() error
		code apperr.AuthCode
	}{
		{
			name: "sign up with malformed email",
			call: func() error {
				_, err := env.Identity.SignUp(ctx, "not-an-email", "secret1", "", false)
				return err
			},
			code: apperr.InvalidEmail,
		},
		{
			name: "sign up with short password",
			call: func() error {
				_, err := env.Identity.SignUp(ctx, "new@example.com", "123", "", false)
				return err
			},
			code: apperr.WeakPassword,
		},
		{
			name: "sign up with registered email",
			call: func() error {
				_, err := env.Identity.SignUp(ctx, "TAKEN@example.com", "secret1", "", false)
				return err
			},
			code: apperr.EmailInUse,
		},
		{
			name: "sign in with wrong password",
			call: func() error {
				_, err := env.Identity.SignIn(ctx, "taken@example.com", "nope-nope", false)
				return err
			},
			code: apperr.WrongPassword,
		},
		{
			name: "sign in with unknown email",
			call: func() error {
				_, err := env.Identity.SignIn(ctx, "ghost@example.com", "secret1", false)
				return err
			},
			code: apperr.WrongPassword,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			assert.True(t, apperr.IsAuth(err, tc.code), "got %v", err)
		})
	}
}

func TestVerifyAndSignOut(t *testing.T) {
	ctx := context.Background()
	env := testutil.New(t)
	s := env.SignUp(t, "bo@example.com", "Bo")

	verified, err := env.Identity.Verify(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, s.UserID, verified.UserID)
	assert.Equal(t, "Bo", verified.DisplayName)

	// second lookup is served from the cache
	_, err = env.Identity.Verify(ctx, s.Token)
	require.NoError(t, err)

	require.NoError(t, env.Identity.SignOut(ctx, s))

	_, err = env.Identity.Verify(ctx, s.Token)
	assert.True(t, apperr.IsAuth(err, apperr.NoSession))

	_, err = env.Identity.Verify(ctx, "garbage")
	assert.True(t, apperr.IsAuth(err, apperr.NoSession))
}

func TestRenewKeepsFreshTokens(t *testing.T) {
	env := testutil.New(t)
	s := env.SignUp(t, "cy@example.com", "Cy")

	same, renewed, err := env.Identity.Renew(s)
	require.NoError(t, err)
	assert.False(t, renewed)
	assert.Same(t, s, same)

	old := *s
	old.IssuedAt = time.Now().Add(-time.Hour)
	fresh, renewed, err := env.Identity.Renew(&old)
	require.NoError(t, err)
	assert.True(t, renewed)
	assert.Equal(t, s.TokenID, fresh.TokenID)
	assert.Equal(t, s.UserID, fresh.UserID)
}

func TestSignOutEndsRenewedTokens(t *testing.T) {
	ctx := context.Background()
	env := testutil.New(t)
	s := env.SignUp(t, "fay@example.com", "Fay")

	old := *s
	old.IssuedAt = time.Now().Add(-time.Hour)
	fresh, _, err := env.Identity.Renew(&old)
	require.NoError(t, err)

	holder := session.NewHolder(nil)
	stop, err := env.Identity.Watch(ctx, s, holder)
	require.NoError(t, err)
	defer stop()

	// signing out with the renewed token ends the one it replaced
	require.NoError(t, env.Identity.SignOut(ctx, fresh))

	for _, token := range []string{s.Token, fresh.Token} {
		_, err = env.Identity.Verify(ctx, token)
		assert.True(t, apperr.IsAuth(err, apperr.NoSession))
	}
	assert.Eventually(t, func() bool { return holder.Current() == nil }, 2*time.Second, 10*time.Millisecond)
}

func TestWatchClearsHolderOnSignOut(t *testing.T) {
	ctx := context.Background()
	env := testutil.New(t)
	s := env.SignUp(t, "di@example.com", "Di")

	holder := session.NewHolder(nil)
	changes := make(chan *session.Session, 4)
	holder.Observe(func(s *session.Session) { changes <- s })
	assert.Nil(t, <-changes)

	stop, err := env.Identity.Watch(ctx, s, holder)
	require.NoError(t, err)
	defer stop()
	assert.Same(t, s, <-changes)

	require.NoError(t, env.Identity.SignOut(ctx, s))

	select {
	case got := <-changes:
		assert.Nil(t, got)
	case <-time.After(2 * time.Second):
		t.Fatal("holder was not cleared after sign out")
	}
	assert.Nil(t, holder.Current())
}

func TestWatchExpiry(t *testing.T) {
	env := testutil.New(t)
	s := env.SignUp(t, "ed@example.com", "Ed")
	s.ExpiresAt = time.Now().Add(20 * time.Millisecond)

	holder := session.NewHolder(nil)
	stop, err := env.Identity.Watch(context.Background(), s, holder)
	require.NoError(t, err)
	defer stop()

	assert.Eventually(t, func() bool { return holder.Current() == nil }, 2*time.Second, 10*time.Millisecond)
}
