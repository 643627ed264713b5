package jwt_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/Pratik1445/skillfolio/internal/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndVerify(t *testing.T) {
	tests := []struct {
		name     string
		remember bool
		lifetime time.Duration
	}{
		{name: "session token", remember: false, lifetime: 24 * time.Hour},
		{name: "remembered token", remember: true, lifetime: 4 * 7 * 24 * time.Hour},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			issuer := jwt.NewIssuer("secret", true)

			signed, claims, err := issuer.CreateToken(tc.remember, "42", "")
			require.NoError(t, err)
			assert.NotEmpty(t, claims.ID)

			got, err := issuer.VerifyToken(signed)
			require.NoError(t, err)
			assert.Equal(t, "42", got.UserID)
			assert.Equal(t, tc.remember, got.Remember)
			assert.Equal(t, claims.ID, got.ID)
			assert.Equal(t, tc.lifetime, got.ExpiresAt.Sub(got.IssuedAt.Time))

			cookie := issuer.Cookie(signed, claims.Remember, claims.ExpiresAt.Time)
			assert.Equal(t, jwt.CookieName, cookie.Name)
			assert.True(t, cookie.Secure)
			assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
			assert.Equal(t, tc.remember, !cookie.Expires.IsZero())
		})
	}
}

func TestVerifyRejects(t *testing.T) {
	issuer := jwt.NewIssuer("secret", false)
	signed, _, err := issuer.CreateToken(false, "1", "")
	require.NoError(t, err)

	_, err = jwt.NewIssuer("other", false).VerifyToken(signed)
	assert.Error(t, err, "wrong secret")

	_, err = issuer.VerifyToken("garbage")
	assert.Error(t, err)

	issuer.SetClock(func() time.Time { return time.Now().Add(25 * time.Hour) })
	_, err = issuer.VerifyToken(signed)
	assert.Error(t, err, "expired")
}

func TestNeedsRenewal(t *testing.T) {
	issuer := jwt.NewIssuer("secret", false)
	_, claims, err := issuer.CreateToken(false, "1", "")
	require.NoError(t, err)

	assert.False(t, issuer.NeedsRenewal(claims.IssuedAt.Time))

	issuer.SetClock(func() time.Time { return time.Now().Add(16 * time.Minute) })
	assert.True(t, issuer.NeedsRenewal(claims.IssuedAt.Time))

	_, renewed, err := issuer.CreateToken(false, "1", claims.ID)
	require.NoError(t, err)
	assert.Equal(t, claims.ID, renewed.ID)
	assert.True(t, renewed.IssuedAt.After(claims.IssuedAt.Time))
}
