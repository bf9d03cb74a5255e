package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backend names accepted in Config.Backend.
const (
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Environment variables that override file values.
const (
	EnvBackend     = "POCKET_BACKEND"
	EnvRedisURL    = "POCKET_REDIS_URL"
	EnvPostgresURL = "POCKET_POSTGRES_URL"
	EnvLogMode     = "POCKET_LOG_MODE"
)

// Config holds application configuration.
type Config struct {
	// BaseDir is the data directory (~/.pocket). Set by the caller, never read from files.
	BaseDir string `json:"-" yaml:"-"`

	// Backend selects the key/value store: sqlite (default), memory, redis or postgres.
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`

	// RedisURL is a redis:// URL used when Backend is redis.
	RedisURL string `json:"redis_url,omitempty" yaml:"redis_url,omitempty"`

	// PostgresURL is a postgres:// DSN used when Backend is postgres.
	PostgresURL string `json:"postgres_url,omitempty" yaml:"postgres_url,omitempty"`

	// KeyPrefix namespaces keys in shared backends (redis). Empty means "pocket:".
	KeyPrefix string `json:"key_prefix,omitempty" yaml:"key_prefix,omitempty"`

	// AllowedPaths is an allowlist of directories for import/export operations.
	// Paths outside ~/.pocket/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty" yaml:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for import/export.
	// When true, any directory is allowed (but symlink and extension checks still apply).
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty" yaml:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is locked" errors).
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty" yaml:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty" yaml:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty" yaml:"disabled_tools,omitempty"`

	// LogMode is dev (default, info level), debug, prod or quiet.
	LogMode string `json:"log_mode,omitempty" yaml:"log_mode,omitempty"`

	// WebBind and WebPort configure `pocket serve`.
	WebBind string `json:"web_bind,omitempty" yaml:"web_bind,omitempty"`
	WebPort int    `json:"web_port,omitempty" yaml:"web_port,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendSQLite,
		LogMode: "dev",
		WebBind: "127.0.0.1",
		WebPort: 8321,
	}
}

// Load loads configuration from baseDir/config.json (or config.yaml).
// Returns default config if neither file exists.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.pocket.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadDirRaw(baseDir)
	if err != nil {
		return nil, err
	}
	cfg = Merge(DefaultConfig(), cfg)
	cfg.BaseDir = baseDir
	return cfg, nil
}

// LoadWithRepo loads configuration from both global (~/.pocket) and repo (.pocket) directories,
// then applies environment overrides (including a .env file in startDir, if present).
// Repo config is found by walking upward from startDir to find the nearest .pocket/config file.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadDirRaw(globalDir)
	if err != nil {
		return nil, err
	}

	repo := &Config{}
	if repoConfigPath := FindRepoConfig(startDir); repoConfigPath != "" {
		repo, err = loadFileRaw(repoConfigPath)
		if err != nil {
			return nil, err
		}
	}

	// Missing .env is fine; a malformed one is not.
	envFile := filepath.Join(startDir, ".env")
	if _, statErr := os.Stat(envFile); statErr == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	// Apply defaults, then global, then repo, then environment
	cfg := Merge(Merge(DefaultConfig(), global), repo)
	cfg.BaseDir = globalDir
	ApplyEnv(cfg)
	return cfg, cfg.Validate()
}

// ApplyEnv overlays POCKET_* environment variables onto cfg.
func ApplyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvBackend)); v != "" {
		cfg.Backend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvRedisURL)); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPostgresURL)); v != "" {
		cfg.PostgresURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogMode)); v != "" {
		cfg.LogMode = v
	}
}

// Validate reports configuration that cannot be used to open a store.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.New("backend redis requires redis_url")
		}
	case BackendPostgres:
		if c.PostgresURL == "" {
			return errors.New("backend postgres requires postgres_url")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.WebPort < 0 || c.WebPort > 65535 {
		return fmt.Errorf("web_port %d out of range", c.WebPort)
	}
	return nil
}

// WebAddr is the listen address for the web UI.
func (c *Config) WebAddr() string {
	return net.JoinHostPort(c.WebBind, strconv.Itoa(c.WebPort))
}

// configNames lists the file names looked up in a config directory, in order.
var configNames = []string{"config.json", "config.yaml", "config.yml"}

// FindRepoConfig walks upward from startDir to find the nearest .pocket config file.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		if p := findInDir(filepath.Join(dir, ".pocket")); p != "" {
			return p
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root, not found
			return ""
		}
		dir = parent
	}
}

func findInDir(dir string) string {
	for _, name := range configNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// loadDirRaw loads the first config file found in dir.
// Returns zero-valued config if there is none.
func loadDirRaw(dir string) (*Config, error) {
	p := findInDir(dir)
	if p == "" {
		return &Config{}, nil
	}
	return loadFileRaw(p)
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", configPath, err)
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.BaseDir = pick(overlay.BaseDir, base.BaseDir)
	result.Backend = pick(overlay.Backend, base.Backend)
	result.RedisURL = pick(overlay.RedisURL, base.RedisURL)
	result.PostgresURL = pick(overlay.PostgresURL, base.PostgresURL)
	result.KeyPrefix = pick(overlay.KeyPrefix, base.KeyPrefix)
	result.LogMode = pick(overlay.LogMode, base.LogMode)
	result.WebBind = pick(overlay.WebBind, base.WebBind)
	result.WebPort = pick(overlay.WebPort, base.WebPort)
	result.DBMaxOpenConns = pick(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pick(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func pick[T comparable](overlay, base T) T {
	var zero T
	if overlay != zero {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
