package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/docseries")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10, cfg.Numbering.MaxAttempts)
	assert.Equal(t, LockMemory, cfg.Numbering.LockBackend)
	assert.Equal(t, 30*time.Second, cfg.Database.StatementTimeout)
	assert.True(t, cfg.Development())
	assert.False(t, cfg.RedisEnabled())
}

func TestLoad_EnvFileDoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DATABASE_URL=postgres://file/db\nNUMBERING_MAX_ATTEMPTS=3\n"), 0o600))
	t.Setenv("DATABASE_URL", "postgres://env/db")
	// Registered for cleanup, then unset so the file value applies.
	t.Setenv("NUMBERING_MAX_ATTEMPTS", "")
	require.NoError(t, os.Unsetenv("NUMBERING_MAX_ATTEMPTS"))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/db", cfg.Database.URL)
	assert.Equal(t, 3, cfg.Numbering.MaxAttempts)
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/docseries")

	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing database", map[string]string{"DATABASE_URL": ""}},
		{"bad lock backend", map[string]string{"NUMBERING_LOCK_BACKEND": "etcd"}},
		{"redis without url", map[string]string{"NUMBERING_LOCK_BACKEND": "redis", "REDIS_URL": ""}},
		{"zero attempts", map[string]string{"NUMBERING_MAX_ATTEMPTS": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "postgres://localhost/docseries")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
