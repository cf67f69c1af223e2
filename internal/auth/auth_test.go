package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawroom/drawroom/canvas-go/internal/typeid"
)

func TestIssueAndValidate(t *testing.T) {
	issuer := NewIssuer("secret")

	token, err := issuer.Issue("user_1", "Ada")
	require.NoError(t, err)

	id, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "user_1", Name: "Ada"}, id)

	sub, err := Subject(token)
	require.NoError(t, err)
	assert.Equal(t, "user_1", sub)
}

func TestValidateRejects(t *testing.T) {
	issuer := NewIssuer("secret")
	token, err := NewIssuer("other").Issue("user_1", "Ada")
	require.NoError(t, err)

	_, err = issuer.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewIssuer("secret")
	expired.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	old, err := expired.Issue("user_1", "Ada")
	require.NoError(t, err)
	_, err = issuer.Validate(old)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSubjectRejectsGarbage(t *testing.T) {
	_, err := Subject("a.b.c")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNameDefaultsToSubject(t *testing.T) {
	issuer := NewIssuer("secret")
	token, err := issuer.Issue("user_1", "")
	require.NoError(t, err)

	id, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user_1", id.Name)
}

func TestMiddleware(t *testing.T) {
	issuer := NewIssuer("secret")
	var seen Identity
	h := issuer.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}

	token, err := issuer.Issue("user_2", "Grace")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "user_2", seen.UserID)
}

func TestDevToken(t *testing.T) {
	issuer := NewIssuer("secret")
	h := NewHandler(issuer)

	rec := httptest.NewRecorder()
	h.DevToken(rec, httptest.NewRequest(http.MethodPost, "/auth/dev-token", strings.NewReader(`{"name":"Ada"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var res TokenResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, "Ada", res.User.Name)
	assert.True(t, typeid.HasPrefix(res.User.UserID, typeid.PrefixUser))

	id, err := issuer.Validate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User, id)

	rec = httptest.NewRecorder()
	h.DevToken(rec, httptest.NewRequest(http.MethodPost, "/auth/dev-token", strings.NewReader(`{"userId":"el_01h2xcejqtf2nbrexx3vqjhp41"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.DevToken(rec, httptest.NewRequest(http.MethodPost, "/auth/dev-token", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
