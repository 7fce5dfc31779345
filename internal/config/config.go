package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "config/config.yml"

type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	WSURL   string `yaml:"ws_url"`
	Timeout string `yaml:"timeout"`
}

type AuthConfig struct {
	RefreshMargin string `yaml:"refresh_margin"`
}

type StorageConfig struct {
	Driver        string `yaml:"driver"`
	Namespace     string `yaml:"namespace"`
	DataDir       string `yaml:"data_dir"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	DSN           string `yaml:"dsn"`
}

type CookingConfig struct {
	TickInterval string `yaml:"tick_interval"`
}

type NotificationConfig struct {
	PollInterval string `yaml:"poll_interval"`
}

type ChatConfig struct {
	PageSize       int    `yaml:"page_size"`
	ReconnectMin   string `yaml:"reconnect_min"`
	ReconnectMax   string `yaml:"reconnect_max"`
	ConfirmTimeout string `yaml:"confirm_timeout"`
}

type ConfigFile struct {
	API           APIConfig          `yaml:"api"`
	Auth          AuthConfig         `yaml:"auth"`
	Storage       StorageConfig      `yaml:"storage"`
	Cooking       CookingConfig      `yaml:"cooking"`
	Notifications NotificationConfig `yaml:"notifications"`
	Chat          ChatConfig         `yaml:"chat"`
}

type Config struct {
	APIBaseURL     string
	WSURL          string
	HTTPTimeout    time.Duration
	RefreshMargin  time.Duration
	StorageDriver  string
	Namespace      string
	DataDir        string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	DSN            string
	TickInterval   time.Duration
	PollInterval   time.Duration
	ChatPageSize   int
	ReconnectMin   time.Duration
	ReconnectMax   time.Duration
	ConfirmTimeout time.Duration
}

// Storage drivers
const (
	DriverRedis    = "redis"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// Load reads CHEFKIX_CONFIG (default config/config.yml), applies environment
// overrides and fills defaults. A missing config file is not an error.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	path := env("CHEFKIX_CONFIG", defaultConfigPath)
	configFile, err := loadConfigFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		configFile = &ConfigFile{}
	}

	return FromFile(configFile)
}

// FromFile turns a parsed config file into a Config.
func FromFile(f *ConfigFile) (*Config, error) {
	timeout, err := parseDuration("api timeout", env("CHEFKIX_HTTP_TIMEOUT", f.API.Timeout), 15*time.Second)
	if err != nil {
		return nil, err
	}
	margin, err := parseDuration("auth refresh margin", env("CHEFKIX_REFRESH_MARGIN", f.Auth.RefreshMargin), 30*time.Second)
	if err != nil {
		return nil, err
	}
	tick, err := parseDuration("cooking tick interval", f.Cooking.TickInterval, time.Second)
	if err != nil {
		return nil, err
	}
	poll, err := parseDuration("notification poll interval", env("CHEFKIX_POLL_INTERVAL", f.Notifications.PollInterval), 10*time.Second)
	if err != nil {
		return nil, err
	}
	recMin, err := parseDuration("chat reconnect min", f.Chat.ReconnectMin, 500*time.Millisecond)
	if err != nil {
		return nil, err
	}
	recMax, err := parseDuration("chat reconnect max", f.Chat.ReconnectMax, 30*time.Second)
	if err != nil {
		return nil, err
	}

	confirm, err := parseDuration("chat confirm timeout", f.Chat.ConfirmTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}

	redisDB := f.Storage.RedisDB
	if v := os.Getenv("CHEFKIX_REDIS_DB"); v != "" {
		redisDB, err = strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CHEFKIX_REDIS_DB: %w", err)
		}
	}

	pageSize := f.Chat.PageSize
	if pageSize <= 0 {
		pageSize = 30
	}

	cfg := &Config{
		APIBaseURL:     strings.TrimRight(env("CHEFKIX_API_URL", f.API.BaseURL), "/"),
		WSURL:          strings.TrimRight(env("CHEFKIX_WS_URL", f.API.WSURL), "/"),
		HTTPTimeout:    timeout,
		RefreshMargin:  margin,
		StorageDriver:  env("CHEFKIX_STORAGE_DRIVER", orDefault(f.Storage.Driver, DriverSQLite)),
		Namespace:      env("CHEFKIX_NAMESPACE", f.Storage.Namespace),
		DataDir:        env("CHEFKIX_DATA_DIR", orDefault(f.Storage.DataDir, defaultDataDir())),
		RedisAddr:      env("CHEFKIX_REDIS_ADDR", orDefault(f.Storage.RedisAddr, "localhost:6379")),
		RedisPassword:  env("CHEFKIX_REDIS_PASSWORD", f.Storage.RedisPassword),
		RedisDB:        redisDB,
		DSN:            env("CHEFKIX_DSN", f.Storage.DSN),
		TickInterval:   tick,
		PollInterval:   poll,
		ChatPageSize:   pageSize,
		ReconnectMin:   recMin,
		ReconnectMax:   recMax,
		ConfirmTimeout: confirm,
	}

	if cfg.WSURL == "" {
		cfg.WSURL = deriveWSURL(cfg.APIBaseURL)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields every component relies on.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("api base url is required (CHEFKIX_API_URL)")
	}
	switch c.StorageDriver {
	case DriverRedis, DriverSQLite:
	case DriverPostgres:
		if c.DSN == "" {
			return errors.New("postgres storage requires a dsn (CHEFKIX_DSN)")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
	if c.ReconnectMin > c.ReconnectMax {
		return fmt.Errorf("chat reconnect min %s exceeds max %s", c.ReconnectMin, c.ReconnectMax)
	}
	return nil
}

// SQLitePath is where the embedded store lives when no DSN is configured.
func (c *Config) SQLitePath() string {
	if c.DSN != "" {
		return c.DSN
	}
	return filepath.Join(c.DataDir, "chefkix.db")
}

// EnsureNamespace fills Namespace with the install id, creating it on first run.
func (c *Config) EnsureNamespace() error {
	if c.Namespace != "" {
		return nil
	}
	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return fmt.Errorf("could not create data dir: %w", err)
	}
	path := filepath.Join(c.DataDir, "install-id")
	if b, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(b)); id != "" {
			c.Namespace = id
			return nil
		}
	}
	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return fmt.Errorf("could not write install id: %w", err)
	}
	c.Namespace = id
	return nil
}

func loadConfigFile(path string) (*ConfigFile, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file at %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(bytes, &config); err != nil {
		return nil, fmt.Errorf("could not parse config yaml: %w", err)
	}

	return &config, nil
}

func parseDuration(name, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", name)
	}
	return d, nil
}

func deriveWSURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "chefkix")
	}
	return ".chefkix"
}
