package keycloak_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/kcseed/internal/keycloak"
	"github.com/dropDatabas3/kcseed/internal/keycloak/keycloaktest"
)

func tokenConfig(srv *keycloaktest.Server) keycloak.TokenConfig {
	return keycloak.TokenConfig{
		BaseURL:  srv.URL,
		Realm:    keycloaktest.AdminRealm,
		ClientID: keycloaktest.AdminClientID,
		Username: keycloaktest.AdminUsername,
		Password: keycloaktest.AdminPassword,
		Skew:     5 * time.Second,
	}
}

func TestTokenSource_CachesUntilInvalidated(t *testing.T) {
	srv := keycloaktest.New(t)
	ts := keycloak.NewTokenSource(tokenConfig(srv))
	ctx := context.Background()

	first, err := ts.Token(ctx)
	require.NoError(t, err)
	second, err := ts.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, srv.TokenRequests())

	ts.Invalidate()
	third, err := ts.Token(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
	assert.Equal(t, 2, srv.TokenRequests())
}

func TestTokenSource_ConcurrentCallersShareOneGrant(t *testing.T) {
	srv := keycloaktest.New(t)
	ts := keycloak.NewTokenSource(tokenConfig(srv))

	var wg sync.WaitGroup
	toks := make([]string, 8)
	for i := range toks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := ts.Token(context.Background())
			assert.NoError(t, err)
			toks[i] = tok
		}(i)
	}
	wg.Wait()

	for _, tok := range toks {
		assert.Equal(t, toks[0], tok)
	}
	// singleflight + cache: como mucho un grant por "ola" de llamadas
	assert.LessOrEqual(t, srv.TokenRequests(), 2)
}

func TestTokenSource_ShortLivedTokenIsNotCached(t *testing.T) {
	srv := keycloaktest.New(t)
	srv.SetExpiresIn(3) // menor que el skew
	ts := keycloak.NewTokenSource(tokenConfig(srv))
	ctx := context.Background()

	_, err := ts.Token(ctx)
	require.NoError(t, err)
	_, err = ts.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, srv.TokenRequests())
}

func TestTokenSource_NoExpiryCachedUntil401(t *testing.T) {
	srv := keycloaktest.New(t)
	srv.SetExpiresIn(0)
	ts := keycloak.NewTokenSource(tokenConfig(srv))
	ctx := context.Background()

	a, err := ts.Token(ctx)
	require.NoError(t, err)
	b, err := ts.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, srv.TokenRequests())
}

func TestTokenSource_BadCredentials(t *testing.T) {
	srv := keycloaktest.New(t)
	cfg := tokenConfig(srv)
	cfg.Password = "nope"
	ts := keycloak.NewTokenSource(cfg)

	_, err := ts.Token(context.Background())
	require.Error(t, err)
	assert.True(t, keycloak.IsAuth(err))
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestTokenSource_UnreachableServer(t *testing.T) {
	ts := keycloak.NewTokenSource(keycloak.TokenConfig{
		BaseURL:    "http://127.0.0.1:1",
		Realm:      "master",
		ClientID:   "admin-cli",
		Username:   "admin",
		Password:   "admin123",
		HTTPClient: &http.Client{Timeout: 2 * time.Second},
	})
	_, err := ts.Token(context.Background())
	require.Error(t, err)
	assert.True(t, keycloak.IsAuth(err))
}

func TestTokenSource_DiscoveryUsesAdvertisedEndpoint(t *testing.T) {
	srv := keycloaktest.New(t)
	cfg := tokenConfig(srv)
	cfg.Discovery = true
	ts := keycloak.NewTokenSource(cfg)

	_, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Count(http.MethodGet, "/realms/master/.well-known/openid-configuration"))
	assert.Equal(t, 1, srv.Count(http.MethodPost, "/discovered/master/token"))
	assert.Zero(t, srv.Count(http.MethodPost, "/realms/master/protocol/openid-connect/token"))
}

func TestTokenSource_DiscoveryFailureFallsBack(t *testing.T) {
	srv := keycloaktest.New(t)
	srv.Override(http.MethodGet, "/realms/master/.well-known/openid-configuration", http.StatusNotFound, "")
	cfg := tokenConfig(srv)
	cfg.Discovery = true
	ts := keycloak.NewTokenSource(cfg)

	_, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Count(http.MethodPost, "/realms/master/protocol/openid-connect/token"))
}
