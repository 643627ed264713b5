package jwt

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const CookieName = "JWT"

// RenewAfter is how old a token gets before requests receive a fresh one.
const RenewAfter = 15 * time.Minute

type UserToken struct {
	UserID   string `json:"userID"`
	Remember bool   `json:"rem"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret  []byte
	isHttps bool
	now     func() time.Time
}

func NewIssuer(secret string, isHttps bool) *Issuer {
	return &Issuer{
		secret:  []byte(secret),
		isHttps: isHttps,
		now:     time.Now,
	}
}

// Lifetime is how long a token issued now stays valid.
func Lifetime(rememberMe bool) time.Duration {
	if rememberMe {
		return time.Hour * 24 * 7 * 4 // 4 weeks
	}
	return time.Hour * 24 // 1 day
}

// CreateToken signs a new token for userID and returns it with its claims.
// Renewed tokens pass the id of the token they replace, a new sign in passes
// an empty one.
func (i *Issuer) CreateToken(rememberMe bool, userID, tokenID string) (string, UserToken, error) {
	if tokenID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return "", UserToken{}, err
		}
		tokenID = id.String()
	}

	currentTime := i.now().UTC()

	claims := UserToken{
		UserID:   userID,
		Remember: rememberMe,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(Lifetime(rememberMe))),
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(i.secret)
	if err != nil {
		return "", UserToken{}, err
	}
	return tokenString, claims, nil
}

// Cookie carries the token to the browser. Remembered tokens outlive the
// browser session.
func (i *Issuer) Cookie(tokenString string, remember bool, expires time.Time) http.Cookie {
	cookie := http.Cookie{
		Name:     CookieName,
		Value:    tokenString,
		Path:     "/",
		HttpOnly: true,
		Secure:   i.isHttps,
		SameSite: http.SameSiteLaxMode,
	}

	if remember {
		cookie.Expires = expires
	}

	return cookie
}

// ExpiredCookie removes the token cookie from the browser.
func (i *Issuer) ExpiredCookie() http.Cookie {
	return http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   i.isHttps,
	}
}

func (i *Issuer) VerifyToken(tokenString string) (UserToken, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserToken{}, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}), jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil {
		return UserToken{}, err
	} else if claims, ok := token.Claims.(*UserToken); ok && claims.UserID != "" {
		return *claims, nil
	} else {
		return UserToken{}, errors.New("invalid token")
	}
}

// NeedsRenewal reports whether a token issued at issuedAt is old enough to be
// replaced.
func (i *Issuer) NeedsRenewal(issuedAt time.Time) bool {
	return i.now().UTC().Sub(issuedAt) >= RenewAfter
}
