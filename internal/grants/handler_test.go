package grants

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fam-platform/fam-access/internal/guard"
	"github.com/fam-platform/fam-access/internal/scopes"
	"github.com/fam-platform/fam-access/internal/users"
)

func userIdentity(name string) users.Identity {
	return users.Identity{Type: users.IdentityUser, Name: name}
}

type staticDirectory struct {
	names map[string]string
}

func (d staticDirectory) Search(ctx context.Context, ids []string) ([]scopes.DirectoryEntry, error) {
	var entries []scopes.DirectoryEntry
	for _, id := range ids {
		if name, ok := d.names[id]; ok {
			entries = append(entries, scopes.DirectoryEntry{ID: id, DisplayName: name})
		}
	}
	return entries, nil
}

type noopNameCache struct{}

func (noopNameCache) CachedName(ctx context.Context, id string) (string, bool) { return "", false }
func (noopNameCache) StoreNames(ctx context.Context, entries []scopes.DirectoryEntry) error {
	return nil
}

func newHandlerServer(t *testing.T, f *serviceFixture, principal guard.Principal) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	aggregator := NewAggregator(f.store, f.store, f.store, "FAM")
	enricher := scopes.NewEnricher(staticDirectory{}, noopNameCache{}, logger)
	handler := NewHandler(logger, f.service, aggregator, enricher)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(guard.ContextWithPrincipal(req.Context(), principal)))
		})
	})
	handler.MountRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandlerCreateDelegatedAdmins(t *testing.T) {
	f := newServiceFixture(t)
	performer := f.appAdmin(t, "admin@example.com", billingApp.ID)
	srv := newHandlerServer(t, f, performer)

	resp := doJSON(t, http.MethodPost, srv.URL+"/delegated-admin-privileges",
		`{"username":"lead@example.com","roleId":30,"resourceIds":["11112222"]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"CREATED"`)
	assert.Len(t, f.store.privileges, 1)
}

func TestHandlerCreateDelegatedAdminsValidation(t *testing.T) {
	f := newServiceFixture(t)
	performer := f.appAdmin(t, "admin@example.com", billingApp.ID)
	srv := newHandlerServer(t, f, performer)

	cases := map[string]string{
		"missing username":  `{"roleId":30}`,
		"bad user type":     `{"username":"x","userType":"ROBOT","roleId":30}`,
		"short resource id": `{"username":"x","roleId":30,"resourceIds":["123"]}`,
		"non-numeric scope": `{"username":"x","roleId":30,"resourceIds":["abcdefgh"]}`,
		"malformed body":    `{"username":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, srv.URL+"/delegated-admin-privileges", body)
			assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		})
	}
	assert.Empty(t, f.store.privileges)
}

func TestHandlerCreateDelegatedAdminsForbidden(t *testing.T) {
	f := newServiceFixture(t)
	f.store.addUser(userIdentity("nobody@example.com"), "Nobody")
	srv := newHandlerServer(t, f, guard.Principal{Identity: userIdentity("nobody@example.com"), Groups: []string{"staff"}})

	resp := doJSON(t, http.MethodPost, srv.URL+"/delegated-admin-privileges",
		`{"username":"lead@example.com","roleId":30,"resourceIds":["11112222"]}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHandlerRevokeDelegatedAdmin(t *testing.T) {
	f := newServiceFixture(t)
	performer := f.appAdmin(t, "admin@example.com", billingApp.ID)
	target := f.store.addUser(userIdentity("lead@example.com"), "Team Lead")
	privilege := f.store.grantDelegated(target.ID, f.viewer.ID)
	srv := newHandlerServer(t, f, performer)

	resp := doJSON(t, http.MethodDelete, srv.URL+"/delegated-admin-privileges/1", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.NotContains(t, f.store.privileges, privilege.ID)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/delegated-admin-privileges/999", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/delegated-admin-privileges/abc", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestHandlerAccessGrants(t *testing.T) {
	f := newServiceFixture(t)
	performer := f.appAdmin(t, "admin@example.com", billingApp.ID)
	user, err := f.store.FindByIdentity(context.Background(), performer.Identity)
	require.NoError(t, err)
	srv := newHandlerServer(t, f, performer)

	resp, err := http.Get(srv.URL + "/admin-grants/" + strconv.FormatInt(user.ID, 10))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, readErr := io.ReadAll(resp.Body)
	require.NoError(t, readErr)
	assert.Contains(t, string(body), "APP_ADMIN")
}

func TestHandlerListPrivilegesRequiresApplicationID(t *testing.T) {
	f := newServiceFixture(t)
	performer := f.appAdmin(t, "admin@example.com", billingApp.ID)
	srv := newHandlerServer(t, f, performer)

	resp, err := http.Get(srv.URL + "/access-control-privileges")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/access-control-privileges?applicationId=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
