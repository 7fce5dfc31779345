package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFile_Defaults(t *testing.T) {
	cfg, err := FromFile(&ConfigFile{API: APIConfig{BaseURL: "https://api.chefkix.test/api/v1/"}})
	require.NoError(t, err)

	assert.Equal(t, "https://api.chefkix.test/api/v1", cfg.APIBaseURL)
	assert.Equal(t, "wss://api.chefkix.test/api/v1", cfg.WSURL)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 30*time.Second, cfg.RefreshMargin)
	assert.Equal(t, time.Second, cfg.TickInterval)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 30, cfg.ChatPageSize)
	assert.Equal(t, 10*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, DriverSQLite, cfg.StorageDriver)
}

func TestFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		file    ConfigFile
		wantErr string
	}{
		{
			name:    "missing base url",
			file:    ConfigFile{},
			wantErr: "api base url is required",
		},
		{
			name:    "bad duration",
			file:    ConfigFile{API: APIConfig{BaseURL: "http://x", Timeout: "soon"}},
			wantErr: "invalid api timeout",
		},
		{
			name:    "negative duration",
			file:    ConfigFile{API: APIConfig{BaseURL: "http://x"}, Notifications: NotificationConfig{PollInterval: "-1s"}},
			wantErr: "must be positive",
		},
		{
			name:    "unknown driver",
			file:    ConfigFile{API: APIConfig{BaseURL: "http://x"}, Storage: StorageConfig{Driver: "mongo"}},
			wantErr: "unknown storage driver",
		},
		{
			name:    "postgres without dsn",
			file:    ConfigFile{API: APIConfig{BaseURL: "http://x"}, Storage: StorageConfig{Driver: "postgres"}},
			wantErr: "requires a dsn",
		},
		{
			name: "reconnect bounds inverted",
			file: ConfigFile{
				API:  APIConfig{BaseURL: "http://x"},
				Chat: ChatConfig{ReconnectMin: "10s", ReconnectMax: "1s"},
			},
			wantErr: "exceeds max",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromFile(&tt.file)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	yml := `
api:
  base_url: http://localhost:8080/api/v1
storage:
  driver: redis
  redis_addr: cache:6379
notifications:
  poll_interval: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	t.Setenv("CHEFKIX_CONFIG", path)
	t.Setenv("CHEFKIX_POLL_INTERVAL", "20s")
	t.Setenv("CHEFKIX_REDIS_DB", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverRedis, cfg.StorageDriver)
	assert.Equal(t, "cache:6379", cfg.RedisAddr)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 20*time.Second, cfg.PollInterval)
	assert.Equal(t, "ws://localhost:8080/api/v1", cfg.WSURL)
}

func TestLoad_MissingFileUsesEnv(t *testing.T) {
	t.Setenv("CHEFKIX_CONFIG", filepath.Join(t.TempDir(), "absent.yml"))
	t.Setenv("CHEFKIX_API_URL", "http://backend:8080")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://backend:8080", cfg.APIBaseURL)
}

func TestEnsureNamespace_StableAcrossCalls(t *testing.T) {
	dir := t.TempDir()

	first := &Config{DataDir: dir}
	require.NoError(t, first.EnsureNamespace())
	require.NotEmpty(t, first.Namespace)

	second := &Config{DataDir: dir}
	require.NoError(t, second.EnsureNamespace())
	assert.Equal(t, first.Namespace, second.Namespace)

	explicit := &Config{DataDir: dir, Namespace: "fixed"}
	require.NoError(t, explicit.EnsureNamespace())
	assert.Equal(t, "fixed", explicit.Namespace)
}
