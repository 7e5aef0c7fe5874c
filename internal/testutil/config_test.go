package testutil

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTestDBConfig(t *testing.T) {
	t.Run("defaults to local test database port 55432", func(t *testing.T) {
		for _, k := range []string{"TEST_DB_HOST", "TEST_DB_PORT", "TEST_DB_USER", "TEST_DB_PASSWORD", "TEST_DB_NAME"} {
			t.Setenv(k, "")
		}
		cfg := DefaultTestDBConfig()
		assert.Equal(t, "localhost", cfg.Host)
		assert.Equal(t, "55432", cfg.Port)
		assert.Equal(t, "jobportal", cfg.User)
		assert.Equal(t, "jobportal", cfg.Password)
		assert.Equal(t, "jobportal", cfg.DBName)
	})

	t.Run("respects TEST_DB_PORT environment variable", func(t *testing.T) {
		t.Setenv("TEST_DB_HOST", "postgres")
		t.Setenv("TEST_DB_PORT", "5432")
		cfg := DefaultTestDBConfig()
		assert.Equal(t, "postgres", cfg.Host)
		assert.Equal(t, "5432", cfg.Port)
	})
}

func TestTestDBConfig_DSN(t *testing.T) {
	t.Setenv("DB_SSL_MODE", "")
	cfg := TestDBConfig{Host: "db", Port: "5432", User: "u", Password: "p@ss", DBName: "portal"}

	u, err := url.Parse(cfg.DSN("t_abc"))
	require.NoError(t, err)
	assert.Equal(t, "db:5432", u.Host)
	assert.Equal(t, "/portal", u.Path)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss", pw)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
	assert.Equal(t, "t_abc,public", u.Query().Get("search_path"))

	u, err = url.Parse(cfg.DSN(""))
	require.NoError(t, err)
	assert.Empty(t, u.Query().Get("search_path"))
}

func TestEnvBool(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", "y"} {
		t.Setenv("TESTUTIL_FLAG", v)
		assert.True(t, envBool("TESTUTIL_FLAG"), v)
	}
	t.Setenv("TESTUTIL_FLAG", "off")
	assert.False(t, envBool("TESTUTIL_FLAG"))
}

func TestNewMiniRedis(t *testing.T) {
	mr, client := NewMiniRedis(t)
	require.NoError(t, mr.Set("k", "v"))
	got, err := client.Get(t.Context(), "k").Result()
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}
