package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/warp/microledger/ledger"
)

// IdentityHeader carries the caller identity when no JWT secret is configured.
const IdentityHeader = "X-Identity"

type identityKey struct{}

// Authenticator resolves the caller identity of a request.
//
// With a secret, the identity is the `sub` claim of an HS256 bearer token and
// a bad token is rejected with 401. Without one (development), the
// X-Identity header is trusted.
type Authenticator struct {
	Secret []byte
}

// Middleware attaches the caller identity, if any, to the request context.
// Requests without credentials pass through; mutating handlers reject them.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := a.identify(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid credentials", err)
			return
		}
		if identity != "" {
			r = r.WithContext(WithIdentity(r.Context(), identity))
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) identify(r *http.Request) (ledger.Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if len(a.Secret) == 0 {
			return ledger.Identity(strings.TrimSpace(r.Header.Get(IdentityHeader))), nil
		}
		return "", nil
	}

	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", errors.New("authorization header must be a bearer token")
	}
	if len(a.Secret) == 0 {
		return "", errors.New("bearer tokens are not accepted: no secret configured")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.Secret, nil
	})
	if err != nil {
		return "", err
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("token has no subject")
	}
	return ledger.Identity(sub), nil
}

// IssueToken signs an HS256 token whose subject is identity.
func IssueToken(secret []byte, identity ledger.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   string(identity),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// WithIdentity returns a context carrying the caller identity.
func WithIdentity(ctx context.Context, identity ledger.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFrom returns the caller identity, if any.
func IdentityFrom(ctx context.Context) (ledger.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(ledger.Identity)
	return identity, ok && identity != ""
}
