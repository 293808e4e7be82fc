package wehttp

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/weegigs/wee-ledger-go/we"
)

// NoCredentials is returned by an Authenticator when the request carries no
// credentials at all. Such requests continue unsigned.
var NoCredentials = errors.New("no credentials")

type Authenticator interface {
	Authenticate(r *http.Request) (we.AccountID, error)
}

type AuthenticatorFunc func(r *http.Request) (we.AccountID, error)

func (f AuthenticatorFunc) Authenticate(r *http.Request) (we.AccountID, error) {
	return f(r)
}

// Authenticate places the caller resolved by authenticator into the request
// context. Requests with invalid credentials are rejected outright.
func Authenticate(authenticator Authenticator, log *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			who, err := authenticator.Authenticate(r)
			switch {
			case errors.Is(err, NoCredentials):
				next.ServeHTTP(w, r)
			case err != nil:
				log.Info().Err(err).Msg("rejected credentials")
				Error(w, r, we.BadOrigin)
			default:
				next.ServeHTTP(w, r.WithContext(we.WithOrigin(r.Context(), who)))
			}
		})
	}
}

var hmacMethods = []string{
	jwt.SigningMethodHS256.Alg(),
	jwt.SigningMethodHS384.Alg(),
	jwt.SigningMethodHS512.Alg(),
}

// JWTAuthenticator accepts HMAC signed bearer tokens and identifies the caller
// by the token subject.
type JWTAuthenticator struct {
	secret []byte
}

func NewJWTAuthenticator(secret []byte) *JWTAuthenticator {
	return &JWTAuthenticator{secret: secret}
}

func (a *JWTAuthenticator) Authenticate(r *http.Request) (we.AccountID, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", NoCredentials
	}

	scheme, raw, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", errors.New("unsupported authorization scheme")
	}

	token, err := jwt.Parse(
		raw,
		func(token *jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods(hmacMethods),
	)
	if err != nil {
		return "", err
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}

	if subject == "" {
		return "", errors.New("token has no subject")
	}

	return we.AccountID(subject), nil
}

// Token issues a token for who, valid for ttl.
func (a *JWTAuthenticator) Token(who we.AccountID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   who.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}
