package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestIssueAndVerify(t *testing.T) {
	a := New(testKey, 15*time.Minute)

	token, err := a.Issue("alice")
	require.NoError(t, err)

	identity, err := a.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", identity)
}

func TestVerifyRejects(t *testing.T) {
	a := New(testKey, 15*time.Minute)

	t.Run("foreign key", func(t *testing.T) {
		token, err := New([]byte("another key"), time.Minute).Issue("alice")
		require.NoError(t, err)

		_, err = a.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		expired := New(testKey, time.Minute)
		expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
		token, err := expired.Issue("alice")
		require.NoError(t, err)

		_, err = a.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unsigned", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "root"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = a.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("empty subject", func(t *testing.T) {
		token, err := a.Issue("")
		require.NoError(t, err)

		_, err = a.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := a.Verify("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestNoExpiration(t *testing.T) {
	a := New(testKey, 0)
	a.now = func() time.Time { return time.Now().Add(-24 * 365 * time.Hour) }

	token, err := a.Issue("alice")
	require.NoError(t, err)

	identity, err := New(testKey, 0).Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", identity)
}

func TestAuthenticateUser(t *testing.T) {
	a := New(testKey, time.Minute)
	token, err := a.Issue("alice")
	require.NoError(t, err)

	var seen string
	handler := a.AuthenticateUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name         string
		header       string
		expectedCode int
		expectedUser string
	}{
		{name: "valid bearer", header: "Bearer " + token, expectedCode: http.StatusNoContent, expectedUser: "alice"},
		{name: "lowercase scheme", header: "bearer " + token, expectedCode: http.StatusNoContent, expectedUser: "alice"},
		{name: "missing header", header: "", expectedCode: http.StatusUnauthorized},
		{name: "raw token without scheme", header: token, expectedCode: http.StatusUnauthorized},
		{name: "empty bearer", header: "Bearer ", expectedCode: http.StatusUnauthorized},
		{name: "tampered", header: "Bearer " + token + "x", expectedCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/ecg/x/crossings", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedCode, rec.Code)
			assert.Equal(t, tt.expectedUser, seen)
			if tt.expectedCode == http.StatusUnauthorized {
				assert.JSONEq(t, `{"error":"Missing or invalid token."}`, rec.Body.String())
			}
		})
	}
}
