// ABOUTME: Configuration loading and parsing for lendtrack
// ABOUTME: YAML or TOML files with ${VAR} expansion, LENDTRACK_* overrides and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. LENDTRACK_DATABASE_PATH.
const EnvPrefix = "LENDTRACK"

// Config represents the complete lendtrack configuration
type Config struct {
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Loans     LoansConfig     `yaml:"loans" toml:"loans"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Bootstrap BootstrapConfig `yaml:"bootstrap" toml:"bootstrap"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver string `yaml:"driver" toml:"driver"` // "sqlite" (pure Go) or "sqlite3" (cgo)
	Path   string `yaml:"path" toml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // "text" or "json"
}

// LoansConfig holds loan defaults
type LoansConfig struct {
	DefaultDays int `yaml:"default_days" toml:"default_days" split_words:"true"`
}

// AuthConfig holds credential and session configuration
type AuthConfig struct {
	SessionSecret string        `yaml:"session_secret" toml:"session_secret" split_words:"true"`
	SessionTTL    time.Duration `yaml:"-" toml:"-" split_words:"true"`
	BcryptCost    int           `yaml:"bcrypt_cost" toml:"bcrypt_cost" split_words:"true"`

	// Raw string value for unmarshaling
	SessionTTLRaw string `yaml:"session_ttl" toml:"session_ttl" ignored:"true"`
}

// BootstrapConfig describes the administrator created on first run
type BootstrapConfig struct {
	AdminID     string `yaml:"admin_id" toml:"admin_id" split_words:"true"`
	AdminName   string `yaml:"admin_name" toml:"admin_name" split_words:"true"`
	AdminSecret string `yaml:"admin_secret" toml:"admin_secret" split_words:"true"`
}

// Default returns a usable configuration without any file.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   filepath.Join(DataDir(), "lendtrack.db"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Loans: LoansConfig{
			DefaultDays: 7,
		},
		Auth: AuthConfig{
			SessionTTL:    12 * time.Hour,
			SessionTTLRaw: "12h",
			BcryptCost:    10,
		},
		Bootstrap: BootstrapConfig{
			AdminID:     "admin",
			AdminName:   "Administrator",
			AdminSecret: "123",
		},
	}
}

// DefaultPath returns the config file location.
// Priority: LENDTRACK_CONFIG env var > XDG_CONFIG_HOME/lendtrack/config.yaml > ~/.config/lendtrack/config.yaml
func DefaultPath() string {
	if envPath := os.Getenv("LENDTRACK_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "lendtrack", "config.yaml")
}

// DataDir returns the lendtrack data directory.
// Priority: XDG_DATA_HOME/lendtrack > ~/.local/share/lendtrack
func DataDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "lendtrack")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Values from the file override Default(); LENDTRACK_* environment
// variables override the file. Environment variables in the format
// ${VAR_NAME} are expanded before decoding.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	return finish(cfg)
}

// LoadOrDefault loads path when it exists, or starts from Default() when it
// doesn't. Environment overrides apply either way.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return finish(Default())
	}
	return Load(path)
}

func finish(cfg *Config) (*Config, error) {
	// Parse duration fields
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Environment wins over the file. Keys are derived from field names,
	// e.g. LENDTRACK_AUTH_SESSION_TTL.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("database.driver must be sqlite or sqlite3, got %q", c.Database.Driver)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Loans.DefaultDays <= 0 {
		return fmt.Errorf("loans.default_days must be positive")
	}

	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive")
	}

	if c.Bootstrap.AdminID == "" || c.Bootstrap.AdminSecret == "" {
		return fmt.Errorf("bootstrap.admin_id and bootstrap.admin_secret are required")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.SessionTTLRaw != "" {
		cfg.Auth.SessionTTL, err = time.ParseDuration(cfg.Auth.SessionTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing session_ttl %q: %w", cfg.Auth.SessionTTLRaw, err)
		}
	}

	return nil
}

// WriteDefault writes a commented starter configuration to path, creating
// parent directories. It refuses to overwrite an existing file.
func WriteDefault(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	header := "# lendtrack configuration\n" +
		"# ${VAR} references are expanded; LENDTRACK_<SECTION>_<KEY> variables override values.\n"
	return os.WriteFile(path, append([]byte(header), data...), 0600)
}
