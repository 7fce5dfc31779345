package config

import (
	"testing"
	"time"

	"github.com/you/chefkix/internal/config"
)

// Options selects the backend and storage a test client talks to
type Options struct {
	APIURL    string
	WSURL     string
	Driver    string
	RedisAddr string
	DataDir   string
	Namespace string

	TickInterval  time.Duration
	PollInterval  time.Duration
	RefreshMargin time.Duration
}

// LoadTestConfig builds a client configuration for end-to-end tests. The
// process environment is pinned so developer settings cannot leak in.
func LoadTestConfig(t *testing.T, opts Options) *config.Config {
	t.Helper()

	if opts.DataDir == "" {
		opts.DataDir = t.TempDir()
	}
	if opts.Namespace == "" {
		opts.Namespace = "e2e"
	}
	SetupTestEnvironment(t, map[string]string{
		"CHEFKIX_API_URL":        opts.APIURL,
		"CHEFKIX_WS_URL":         opts.WSURL,
		"CHEFKIX_STORAGE_DRIVER": opts.Driver,
		"CHEFKIX_REDIS_ADDR":     opts.RedisAddr,
		"CHEFKIX_DATA_DIR":       opts.DataDir,
		"CHEFKIX_NAMESPACE":      opts.Namespace,
	})

	file := &config.ConfigFile{}
	file.API.Timeout = "5s"
	file.Cooking.TickInterval = durationOr(opts.TickInterval, 20*time.Millisecond)
	file.Notifications.PollInterval = durationOr(opts.PollInterval, 50*time.Millisecond)
	file.Auth.RefreshMargin = durationOr(opts.RefreshMargin, 30*time.Second)
	file.Chat.PageSize = 10
	file.Chat.ReconnectMin = "10ms"
	file.Chat.ReconnectMax = "100ms"

	cfg, err := config.FromFile(file)
	if err != nil {
		t.Fatalf("Failed to load test configuration: %v", err)
	}

	t.Logf("Test config loaded - API: %s, storage: %s (%s)", cfg.APIBaseURL, cfg.StorageDriver, cfg.Namespace)
	return cfg
}

// SetupTestEnvironment sets every chefkix variable for the test duration;
// variables not listed are cleared.
func SetupTestEnvironment(t *testing.T, vars map[string]string) {
	t.Helper()

	all := []string{
		"CHEFKIX_CONFIG",
		"CHEFKIX_API_URL",
		"CHEFKIX_WS_URL",
		"CHEFKIX_HTTP_TIMEOUT",
		"CHEFKIX_REFRESH_MARGIN",
		"CHEFKIX_POLL_INTERVAL",
		"CHEFKIX_STORAGE_DRIVER",
		"CHEFKIX_NAMESPACE",
		"CHEFKIX_DATA_DIR",
		"CHEFKIX_REDIS_ADDR",
		"CHEFKIX_REDIS_PASSWORD",
		"CHEFKIX_REDIS_DB",
		"CHEFKIX_DSN",
	}
	for _, key := range all {
		t.Setenv(key, vars[key])
	}
}

func durationOr(d, def time.Duration) string {
	if d <= 0 {
		d = def
	}
	return d.String()
}
