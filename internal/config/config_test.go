package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "kcseed.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, "http://localhost:7077", c.Keycloak.BaseURL)
	assert.Equal(t, "master", c.Keycloak.AdminRealm)
	assert.Equal(t, "admin-cli", c.Keycloak.AdminClientID)
	assert.Equal(t, "superset", c.Realm.Name)
	assert.Equal(t, "dashboard", c.Client.ID)
	assert.Equal(t, []string{"http://localhost:8088/*", "http://localhost:*"}, c.Client.RedirectURIs)
	assert.Equal(t, 20, c.Seed.TotalUsers)
	assert.Equal(t, 10, c.Seed.BatchSize)
	assert.Equal(t, 5*time.Second, c.Seed.PauseMin)
	assert.Equal(t, 10*time.Second, c.Seed.PauseMax)
	assert.True(t, c.Purge.Enabled)
	assert.Equal(t, OnConflictFail, c.Seed.OnConflict)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	p := writeYAML(t, `
keycloak:
  base_url: https://sso.example.org/
  timeout: 5s
realm:
  name: acme
seed:
  total_users: 3
  batch_size: 2
  pause_min: 0s
  pause_max: 1s
  on_conflict: SKIP
  email_domain: "@acme.test"
purge:
  enabled: false
`)
	c, err := Load(p)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, "https://sso.example.org", c.Keycloak.BaseURL)
	assert.Equal(t, 5*time.Second, c.Keycloak.Timeout)
	assert.Equal(t, "acme", c.Realm.Name)
	// lo que el YAML no menciona conserva el default
	assert.Equal(t, "Superset Realm", c.Realm.DisplayName)
	assert.Equal(t, 3, c.Seed.TotalUsers)
	assert.Equal(t, 2, c.Seed.BatchSize)
	assert.Equal(t, time.Duration(0), c.Seed.PauseMin)
	assert.Equal(t, OnConflictSkip, c.Seed.OnConflict)
	assert.Equal(t, "acme.test", c.Seed.EmailDomain)
	assert.False(t, c.Purge.Enabled)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	p := writeYAML(t, "realm:\n  name: from-yaml\nseed:\n  total_users: 7\n")
	t.Setenv("SEED_REALM", "from-env")
	t.Setenv("SEED_BATCH_SIZE", "4")
	t.Setenv("SEED_CLIENT_REDIRECT_URIS", "http://a/*,http://b/*")
	t.Setenv("KEYCLOAK_TOKEN_SKEW", "10s")

	c, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "from-env", c.Realm.Name)
	assert.Equal(t, 7, c.Seed.TotalUsers)
	assert.Equal(t, 4, c.Seed.BatchSize)
	assert.Equal(t, []string{"http://a/*", "http://b/*"}, c.Client.RedirectURIs)
	assert.Equal(t, 10*time.Second, c.Keycloak.TokenSkew)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.False(t, IsInvalid(err))
}

func TestLoad_BadYAMLIsInvalid(t *testing.T) {
	p := writeYAML(t, "seed: [not, a, map")
	_, err := Load(p)
	require.Error(t, err)
	assert.True(t, IsInvalid(err))
}

func TestValidate_RejectsNonPositiveCounts(t *testing.T) {
	for _, tc := range []struct {
		name         string
		total, batch int
	}{
		{"zero total", 0, 10},
		{"negative total", -1, 10},
		{"zero batch", 10, 0},
		{"negative batch", 10, -5},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			c.Seed.TotalUsers = tc.total
			c.Seed.BatchSize = tc.batch
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, IsInvalid(err))
		})
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	c := Default()
	c.Keycloak.BaseURL = "localhost:7077"
	c.Seed.PauseMin = 3 * time.Second
	c.Seed.PauseMax = time.Second
	c.Seed.OnConflict = "merge"

	err := c.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "keycloak.base_url")
	assert.Contains(t, msg, "seed.pause_max")
	assert.Contains(t, msg, "seed.on_conflict")
}
