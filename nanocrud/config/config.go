// Package config loads nanocrud settings from flags, NANOCRUD_* environment
// variables and an optional yaml config file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/arthur-debert/nanocrud/internal/validation"
	"github.com/arthur-debert/nanocrud/types"
)

// EnvPrefix is prepended to every environment variable
const EnvPrefix = "NANOCRUD"

// ConfigEnv names a config file that overrides discovery
const ConfigEnv = EnvPrefix + "_CONFIG"

// Setting keys
const (
	KeyAddr       = "addr"
	KeyBackend    = "backend"
	KeyDB         = "db"
	KeyRoute      = "route"
	KeyProtect    = "protect"
	KeyRestricted = "restricted"
	KeyJWTSecret  = "jwt-secret"
	KeyLogLevel   = "log-level"
	KeyFormat     = "format"
	KeyMetrics    = "metrics"
)

// Backends
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Output formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var logLevels = []string{"debug", "info", "warn", "error"}

// Settings is the resolved configuration
type Settings struct {
	Addr       string   `mapstructure:"addr" json:"addr" yaml:"addr"`
	Backend    string   `mapstructure:"backend" json:"backend" yaml:"backend"`
	DB         string   `mapstructure:"db" json:"db" yaml:"db"`
	Route      string   `mapstructure:"route" json:"route" yaml:"route"`
	Protect    bool     `mapstructure:"protect" json:"protect" yaml:"protect"`
	Restricted []string `mapstructure:"restricted" json:"restricted" yaml:"restricted"`
	JWTSecret  string   `mapstructure:"jwt-secret" json:"jwt-secret" yaml:"jwt-secret"`
	LogLevel   string   `mapstructure:"log-level" json:"log-level" yaml:"log-level"`
	Format     string   `mapstructure:"format" json:"format" yaml:"format"`
	Metrics    bool     `mapstructure:"metrics" json:"metrics" yaml:"metrics"`
}

// Defaults returns the built-in settings
func Defaults() Settings {
	return Settings{
		Addr:       ":8080",
		Backend:    BackendJSON,
		DB:         "nanocrud.json",
		Route:      "record",
		Restricted: []string{"add", "query"},
		LogLevel:   "warn",
		Format:     FormatJSON,
		Metrics:    true,
	}
}

// New returns a viper instance with defaults and environment binding in
// place. No config file is read yet.
func New() *viper.Viper {
	v := viper.New()

	d := Defaults()
	v.SetDefault(KeyAddr, d.Addr)
	v.SetDefault(KeyBackend, d.Backend)
	v.SetDefault(KeyDB, d.DB)
	v.SetDefault(KeyRoute, d.Route)
	v.SetDefault(KeyProtect, d.Protect)
	v.SetDefault(KeyRestricted, d.Restricted)
	v.SetDefault(KeyJWTSecret, d.JWTSecret)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyFormat, d.Format)
	v.SetDefault(KeyMetrics, d.Metrics)

	v.SetEnvPrefix(EnvPrefix)
	// --jwt-secret -> NANOCRUD_JWT_SECRET
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return v
}

// ReadConfigFile loads NANOCRUD_CONFIG when set, otherwise the first
// nanocrud.yaml found in ., $HOME/.nanocrud and /etc/nanocrud. A missing
// discovered file is not an error; a missing explicit one is.
func ReadConfigFile(v *viper.Viper) error {
	if path := os.Getenv(ConfigEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName("nanocrud")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.nanocrud")
	v.AddConfigPath("/etc/nanocrud")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// Load resolves and validates settings from v
func Load(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks every setting
func (s *Settings) Validate() error {
	switch s.Backend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("invalid %s %q: must be %s or %s", KeyBackend, s.Backend, BackendJSON, BackendSQLite)
	}
	if strings.TrimSpace(s.DB) == "" {
		return fmt.Errorf("%s is required", KeyDB)
	}
	if err := validation.ValidateRouteName(s.Route); err != nil {
		return fmt.Errorf("invalid %s: %w", KeyRoute, err)
	}
	if _, err := s.RestrictedOperations(); err != nil {
		return err
	}
	if !contains(logLevels, strings.ToLower(s.LogLevel)) {
		return fmt.Errorf("invalid %s %q: must be one of %s", KeyLogLevel, s.LogLevel, strings.Join(logLevels, ", "))
	}
	switch s.Format {
	case FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("invalid %s %q: must be %s or %s", KeyFormat, s.Format, FormatJSON, FormatYAML)
	}
	return nil
}

// RestrictedOperations parses Restricted
func (s *Settings) RestrictedOperations() ([]types.Operation, error) {
	ops, err := types.ParseOperations(s.Restricted)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyRestricted, err)
	}
	return ops, nil
}

// Redacted returns a copy safe to print
func (s *Settings) Redacted() Settings {
	out := *s
	if out.JWTSecret != "" {
		out.JWTSecret = "********"
	}
	out.Restricted = append([]string(nil), s.Restricted...)
	return out
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
