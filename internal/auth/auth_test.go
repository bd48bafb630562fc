package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	id := Identity{UserID: "u1", Email: "u1@example.com", Name: "Pat", Role: "manager", OrgID: "org1"}
	token, err := SignToken(id, "secret")
	require.NoError(t, err)

	got, err := ParseToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := SignToken(Identity{UserID: "u1"}, "secret")
	require.NoError(t, err)

	_, err = ParseToken(token, "other-secret")
	assert.Error(t, err)
}

func TestParseTokenDefaultsRole(t *testing.T) {
	token, err := SignToken(Identity{UserID: "u1", OrgID: "org1"}, "secret")
	require.NoError(t, err)

	got, err := ParseToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "standard", got.Role)
}

func TestMiddleware(t *testing.T) {
	rejected := 0
	mw := Middleware("secret", func(w http.ResponseWriter, status int, message string) {
		rejected++
		w.WriteHeader(status)
	})
	var seen Identity
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// No token.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 1, rejected)

	// Valid token.
	token, err := SignToken(Identity{UserID: "u1", OrgID: "org1", Role: "admin"}, "secret")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", seen.UserID)
	assert.Equal(t, "admin", seen.Role)
}
