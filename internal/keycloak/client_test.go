package keycloak_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/kcseed/internal/keycloak"
	"github.com/dropDatabas3/kcseed/internal/keycloak/keycloaktest"
)

func newClient(t *testing.T, srv *keycloaktest.Server) (*keycloak.Client, *keycloak.TokenSource) {
	t.Helper()
	ts := keycloak.NewTokenSource(keycloak.TokenConfig{
		BaseURL:  srv.URL,
		Realm:    keycloaktest.AdminRealm,
		ClientID: keycloaktest.AdminClientID,
		Username: keycloaktest.AdminUsername,
		Password: keycloaktest.AdminPassword,
		Skew:     5 * time.Second,
	})
	c, err := keycloak.New(keycloak.Options{BaseURL: srv.URL + "/", Tokens: ts})
	require.NoError(t, err)
	return c, ts
}

func TestNew_RequiresTokensAndBaseURL(t *testing.T) {
	_, err := keycloak.New(keycloak.Options{BaseURL: "http://kc"})
	require.Error(t, err)

	ts := keycloak.NewTokenSource(keycloak.TokenConfig{BaseURL: "http://kc"})
	_, err = keycloak.New(keycloak.Options{Tokens: ts})
	require.Error(t, err)
}

func TestRealm_GetMissingThenCreate(t *testing.T) {
	srv := keycloaktest.New(t)
	c, _ := newClient(t, srv)
	ctx := context.Background()

	_, err := c.GetRealm(ctx, "superset")
	require.Error(t, err)
	assert.True(t, keycloak.IsNotFound(err))

	require.NoError(t, c.CreateRealm(ctx, keycloak.RealmRepresentation{
		Realm:                 "superset",
		Enabled:               true,
		DisplayName:           "Superset Realm",
		LoginWithEmailAllowed: true,
	}))

	got, err := c.GetRealm(ctx, "superset")
	require.NoError(t, err)
	assert.Equal(t, "superset", got.Realm)
	assert.Equal(t, "Superset Realm", got.DisplayName)
	assert.True(t, got.LoginWithEmailAllowed)

	err = c.CreateRealm(ctx, keycloak.RealmRepresentation{Realm: "superset", Enabled: true})
	require.Error(t, err)
	assert.True(t, keycloak.IsConflict(err))
}

func TestClients_ListAndCreate(t *testing.T) {
	srv := keycloaktest.New(t)
	srv.AddRealm("superset")
	c, _ := newClient(t, srv)
	ctx := context.Background()

	list, err := c.ListClients(ctx, "superset")
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, c.CreateClient(ctx, "superset", keycloak.ClientRepresentation{
		ClientID:     "dashboard",
		Enabled:      true,
		Secret:       "rahasia123",
		RedirectURIs: []string{"http://localhost:8088/*"},
	}))

	list, err = c.ListClients(ctx, "superset")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "dashboard", list[0].ClientID)
	assert.NotEmpty(t, list[0].ID)
}

func TestUsers_CreateReturnsLocationID(t *testing.T) {
	srv := keycloaktest.New(t)
	srv.AddRealm("superset")
	c, _ := newClient(t, srv)

	id, err := c.CreateUser(context.Background(), "superset", keycloak.UserRepresentation{
		Username:    "user01",
		Email:       "user01@example.com",
		Enabled:     true,
		Credentials: []keycloak.CredentialRepresentation{keycloak.PasswordCredential("Pusilkom123")},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	users := srv.Users("superset")
	require.Len(t, users, 1)
	assert.Equal(t, id, users[0].ID)
}

func TestUsers_DuplicateIsConflictWithServerMessage(t *testing.T) {
	srv := keycloaktest.New(t)
	srv.AddRealm("superset")
	srv.AddUser("superset", "user01")
	c, _ := newClient(t, srv)

	_, err := c.CreateUser(context.Background(), "superset", keycloak.UserRepresentation{Username: "user01", Enabled: true})
	require.Error(t, err)
	assert.True(t, keycloak.IsConflict(err))
	assert.Equal(t, "User exists with same username", keycloak.ErrorDetail(err))

	var apiErr *keycloak.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "create_user", apiErr.Op)
}

func TestUsers_ListHonorsMaxAndDelete(t *testing.T) {
	srv := keycloaktest.New(t)
	srv.AddRealm("superset")
	ids := []string{srv.AddUser("superset", "a"), srv.AddUser("superset", "b"), srv.AddUser("superset", "c")}
	c, _ := newClient(t, srv)
	ctx := context.Background()

	all, err := c.ListUsers(ctx, "superset", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	two, err := c.ListUsers(ctx, "superset", 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)

	require.NoError(t, c.DeleteUser(ctx, "superset", ids[1]))
	assert.Len(t, srv.Users("superset"), 2)

	err = c.DeleteUser(ctx, "superset", ids[1])
	assert.True(t, keycloak.IsNotFound(err))
}

func TestDo_ErrorWithoutBodyFallsBackToStatusText(t *testing.T) {
	srv := keycloaktest.New(t)
	srv.AddRealm("superset")
	srv.Override(http.MethodGet, "/admin/realms/superset/clients", http.StatusInternalServerError, "")
	c, _ := newClient(t, srv)

	_, err := c.ListClients(context.Background(), "superset")
	require.Error(t, err)
	assert.Equal(t, "500 Internal Server Error", keycloak.ErrorDetail(err))
	assert.False(t, keycloak.IsNotFound(err))
}

func TestDo_RefreshesTokenOnceAfter401(t *testing.T) {
	srv := keycloaktest.New(t)
	srv.AddRealm("superset")
	c, _ := newClient(t, srv)
	ctx := context.Background()

	_, err := c.GetRealm(ctx, "superset")
	require.NoError(t, err)
	require.Equal(t, 1, srv.TokenRequests())

	// el token cacheado deja de ser válido en el servidor
	srv.RevokeTokens()

	_, err = c.GetRealm(ctx, "superset")
	require.NoError(t, err)
	assert.Equal(t, 2, srv.TokenRequests())
	assert.Equal(t, 3, srv.Count(http.MethodGet, "/admin/realms/superset"))
}

func TestDo_Persistent401IsUnauthorized(t *testing.T) {
	srv := keycloaktest.New(t)
	srv.Override(http.MethodGet, "/admin/realms/superset", http.StatusUnauthorized, `{"error":"HTTP 401 Unauthorized"}`)
	c, _ := newClient(t, srv)

	_, err := c.GetRealm(context.Background(), "superset")
	require.Error(t, err)
	assert.ErrorIs(t, err, keycloak.ErrUnauthorized)
	// un único reenvío
	assert.Equal(t, 2, srv.Count(http.MethodGet, "/admin/realms/superset"))
}

func TestDo_TokenFailureIsAuthError(t *testing.T) {
	srv := keycloaktest.New(t)
	ts := keycloak.NewTokenSource(keycloak.TokenConfig{
		BaseURL:  srv.URL,
		Realm:    keycloaktest.AdminRealm,
		ClientID: keycloaktest.AdminClientID,
		Username: keycloaktest.AdminUsername,
		Password: "wrong",
	})
	c, err := keycloak.New(keycloak.Options{BaseURL: srv.URL, Tokens: ts})
	require.NoError(t, err)

	_, err = c.GetRealm(context.Background(), "superset")
	require.Error(t, err)
	assert.True(t, keycloak.IsAuth(err))
	assert.Zero(t, srv.CountMethod(http.MethodGet, "/admin/"))
}
