package guard

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fam-platform/fam-access/internal/token"
)

type stubVerifier struct {
	claims token.Claims
	err    error
}

func (v *stubVerifier) Verify(ctx context.Context, raw string) (token.Claims, error) {
	if v.err != nil {
		return token.Claims{}, v.err
	}
	return v.claims, nil
}

func runMiddleware(t *testing.T, verifier token.Verifier, authHeader string) (*httptest.ResponseRecorder, *Principal) {
	t.Helper()
	auth := &Authenticator{
		Verifier: verifier,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	var captured *Principal
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := PrincipalFromContext(r.Context()); ok {
			captured = &p
		}
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/admin-grants/1", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, captured
}

func TestMiddlewareMissingToken(t *testing.T) {
	rec, principal := runMiddleware(t, &stubVerifier{}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, principal)
}

func TestMiddlewareInvalidTokenCarriesCode(t *testing.T) {
	verifier := &stubVerifier{err: token.NewVerifyError(token.CodeExpired, nil)}
	rec, principal := runMiddleware(t, verifier, "Bearer expired-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, principal)

	var problem struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, string(token.CodeExpired), problem.Code)
}

func TestMiddlewareRejectsEmptyGroups(t *testing.T) {
	verifier := &stubVerifier{claims: token.Claims{Subject: "jane.doe"}}
	rec, principal := runMiddleware(t, verifier, "Bearer valid-token")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Nil(t, principal)

	var problem struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, CodeGroupsRequired, problem.Code)
}

func TestMiddlewarePassesPrincipal(t *testing.T) {
	verifier := &stubVerifier{claims: token.Claims{
		Subject:  "jane.doe",
		Groups:   []string{"fleet-admins"},
		ClientID: "portal",
	}}
	rec, principal := runMiddleware(t, verifier, "Bearer valid-token")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, principal)
	assert.Equal(t, "jane.doe", principal.Identity.Name)
	assert.Equal(t, []string{"fleet-admins"}, principal.Groups)
	assert.Equal(t, "portal", principal.ClientID)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, bearerToken(req))

	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Empty(t, bearerToken(req))

	req.Header.Set("Authorization", "bearer abc.def.ghi")
	assert.Equal(t, "abc.def.ghi", bearerToken(req))
}
