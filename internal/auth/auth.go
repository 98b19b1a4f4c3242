// Package auth issues and verifies the signed bearer tokens that identify
// callers, and provides the HTTP middleware that enforces them.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/ecgstore/internal/logger"
)

// ErrInvalidToken is returned by Verify for any token that cannot be trusted.
var ErrInvalidToken = errors.New("invalid token")

// Auth handles JWT issuing and verification with a symmetric HS256 key.
type Auth struct {
	// signingKey is the key used to sign and verify JWTs.
	signingKey []byte

	// ttl is the lifetime of issued tokens. Zero disables expiration.
	ttl time.Duration

	now func() time.Time
}

// Claims represents the JWT claims used by the system.
// The identity (username) travels in the standard "sub" claim.
type Claims struct {
	jwt.RegisteredClaims
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// UserIDKey is the context key used to store and retrieve the authenticated identity.
const UserIDKey ContextKey = "userID"

// New creates a new Auth with the given signing key and token lifetime.
func New(signingKey []byte, ttl time.Duration) *Auth {
	return &Auth{
		signingKey: signingKey,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Issue returns a signed token whose subject is identity.
func (a *Auth) Issue(identity string) (string, error) {
	now := a.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  identity,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if a.ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(a.ttl))
	}

	return a.buildJWTString(&claims)
}

// Verify checks the signature and the registered claims and returns the token subject.
func (a *Auth) Verify(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.signingKey, nil
		},
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}

// AuthenticateUser is an HTTP middleware that requires a valid
// "Authorization: Bearer <token>" header and stores the identity in the request context.
func (a *Auth) AuthenticateUser(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		tokenString, ok := bearerToken(request)
		if !ok {
			rejectUnauthenticated(response)
			return
		}

		identity, err := a.Verify(tokenString)
		if err != nil {
			logger.Log.Debugln("Error calling the `a.Verify()`: ", zap.Error(err))
			rejectUnauthenticated(response)
			return
		}

		ctx := context.WithValue(request.Context(), UserIDKey, identity)
		h.ServeHTTP(response, request.WithContext(ctx))
	}

	return http.HandlerFunc(middleware)
}

// UserIDFromContext returns the identity stored by AuthenticateUser.
func UserIDFromContext(ctx context.Context) (string, bool) {
	identity, ok := ctx.Value(UserIDKey).(string)
	return identity, ok && identity != ""
}

func bearerToken(request *http.Request) (string, bool) {
	header := request.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)

	return token, token != ""
}

func rejectUnauthenticated(response http.ResponseWriter) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(response).Encode(map[string]string{"error": "Missing or invalid token."})
}

func (a *Auth) buildJWTString(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, *claims)

	tokenString, err := token.SignedString(a.signingKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}
