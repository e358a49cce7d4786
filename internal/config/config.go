// Package config provides configuration management for ellipsisctl and ellipsisd.
// Configuration is loaded from YAML files with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JoobyPM/ellipsis-render/internal/ellipsis"
	"github.com/JoobyPM/ellipsis-render/internal/logging"
)

// Version is the current config schema version.
const Version = "1"

// Default file paths.
const (
	GlobalConfigDir   = ".config/ellipsis"
	GlobalConfigFile  = "config.yaml"
	ProjectConfigFile = ".ellipsis.yaml"
)

// Default values.
const (
	DefaultCutoff       = 30
	DefaultListen       = "127.0.0.1:8080"
	DefaultReadTimeout  = "15s"
	DefaultWriteTimeout = "15s"
	DefaultMaxBodyBytes = 1 << 20
	DefaultLogLevel     = "info"
	DefaultLogFormat    = logging.FormatText
)

// Environment variable names.
const (
	EnvCutoff     = "ELLIPSIS_CUTOFF"
	EnvWordBreak  = "ELLIPSIS_WORD_BREAK"
	EnvEscapeHTML = "ELLIPSIS_ESCAPE_HTML"
	EnvListen     = "ELLIPSIS_LISTEN"
	EnvLogLevel   = "ELLIPSIS_LOG_LEVEL"
	EnvLogFormat  = "ELLIPSIS_LOG_FORMAT"
)

// Config represents the complete configuration.
type Config struct {
	Version  string                    `yaml:"version" json:"version"`
	Renderer ellipsis.Options          `yaml:"renderer" json:"renderer"`
	Columns  map[string]ColumnOverride `yaml:"columns,omitempty" json:"columns,omitempty"`
	Server   ServerConfig              `yaml:"server" json:"server"`
	Log      LogConfig                 `yaml:"log" json:"log"`
}

// ColumnOverride holds per-column renderer settings. Unset fields inherit
// from Config.Renderer.
type ColumnOverride struct {
	Cutoff     *int  `yaml:"cutoff,omitempty" json:"cutoff,omitempty"`
	WordBreak  *bool `yaml:"word_break,omitempty" json:"word_break,omitempty"`
	EscapeHTML *bool `yaml:"escape_html,omitempty" json:"escape_html,omitempty"`
}

// ServerConfig holds ellipsisd settings.
type ServerConfig struct {
	Listen       string `yaml:"listen" json:"listen"`
	ReadTimeout  string `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout" json:"write_timeout"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" json:"max_body_bytes"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Errors.
var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrUnknownColumn = errors.New("unknown column")
)

// New creates a Config with default values.
func New() *Config {
	return &Config{
		Version:  Version,
		Renderer: ellipsis.Options{Cutoff: DefaultCutoff},
		Server: ServerConfig{
			Listen:       DefaultListen,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			MaxBodyBytes: DefaultMaxBodyBytes,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// LoadOptions configures config loading behavior.
type LoadOptions struct {
	// ExplicitPath overrides config discovery (--config flag).
	ExplicitPath string
	// SkipGlobal skips loading global config (~/.config/ellipsis/config.yaml).
	SkipGlobal bool
	// SkipProject skips loading project config (.ellipsis.yaml).
	SkipProject bool
	// SkipEnv skips environment variable overrides.
	SkipEnv bool
}

// Load loads configuration with the following precedence (highest to lowest):
// 1. Environment variables
// 2. Project config (.ellipsis.yaml, searched up to the git root)
// 3. Global config (~/.config/ellipsis/config.yaml)
// 4. Built-in defaults
//
// If ExplicitPath is set, it replaces both global and project configs.
func Load(opts LoadOptions) (*Config, error) {
	cfg := New()

	if !opts.SkipGlobal && opts.ExplicitPath == "" {
		globalPath, err := globalConfigPath()
		if err == nil {
			if loadErr := loadFile(cfg, globalPath); loadErr != nil && !os.IsNotExist(loadErr) {
				return nil, fmt.Errorf("load global config: %w", loadErr)
			}
		}
	}

	if !opts.SkipProject && opts.ExplicitPath == "" {
		projectPath, err := discoverProjectConfig()
		if err == nil {
			if loadErr := loadFile(cfg, projectPath); loadErr != nil && !os.IsNotExist(loadErr) {
				return nil, fmt.Errorf("load project config: %w", loadErr)
			}
		}
	}

	if opts.ExplicitPath != "" {
		if err := loadFile(cfg, opts.ExplicitPath); err != nil {
			return nil, fmt.Errorf("load config %s: %w", opts.ExplicitPath, err)
		}
	}

	if !opts.SkipEnv {
		if err := applyEnvOverrides(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// loadFile reads and unmarshals a YAML config file into cfg.
// Fields not present in the file retain their current values.
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // Config path from trusted source
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return nil
}

func globalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, GlobalConfigDir, GlobalConfigFile), nil
}

// discoverProjectConfig walks up from CWD looking for .ellipsis.yaml.
// Stops at git root or filesystem root.
func discoverProjectConfig() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := cwd
	for {
		path := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}

		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", os.ErrNotExist
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv(EnvCutoff); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalidConfig, EnvCutoff, v, err)
		}
		cfg.Renderer.Cutoff = n
	}
	if v := os.Getenv(EnvWordBreak); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalidConfig, EnvWordBreak, v, err)
		}
		cfg.Renderer.WordBreak = b
	}
	if v := os.Getenv(EnvEscapeHTML); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalidConfig, EnvEscapeHTML, v, err)
		}
		cfg.Renderer.EscapeHTML = b
	}
	if v := os.Getenv(EnvListen); v != "" {
		cfg.Server.Listen = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.Log.Format = strings.ToLower(v)
	}
	return nil
}

// CLIOverrides contains values from CLI flags that override config.
// Nil pointers and empty strings leave the config untouched.
type CLIOverrides struct {
	Cutoff     *int
	WordBreak  *bool
	EscapeHTML *bool
	Listen     string
	LogLevel   string
}

// ApplyCLIOverrides applies CLI flag values to config (highest priority).
func (cfg *Config) ApplyCLIOverrides(o CLIOverrides) {
	if o.Cutoff != nil {
		cfg.Renderer.Cutoff = *o.Cutoff
	}
	if o.WordBreak != nil {
		cfg.Renderer.WordBreak = *o.WordBreak
	}
	if o.EscapeHTML != nil {
		cfg.Renderer.EscapeHTML = *o.EscapeHTML
	}
	if o.Listen != "" {
		cfg.Server.Listen = o.Listen
	}
	if o.LogLevel != "" {
		cfg.Log.Level = strings.ToLower(o.LogLevel)
	}
}

// Validate checks the configuration for errors.
func (cfg *Config) Validate() error {
	if err := cfg.Renderer.Validate(); err != nil {
		return fmt.Errorf("%w: renderer: %w", ErrInvalidConfig, err)
	}
	for _, name := range cfg.ColumnNames() {
		opts, _ := cfg.RendererFor(name)
		if err := opts.Validate(); err != nil {
			return fmt.Errorf("%w: column %q: %w", ErrInvalidConfig, name, err)
		}
	}

	for field, v := range map[string]string{
		"server.read_timeout":  cfg.Server.ReadTimeout,
		"server.write_timeout": cfg.Server.WriteTimeout,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%w: invalid %s %q: %w", ErrInvalidConfig, field, v, err)
		}
	}
	if cfg.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("%w: server.max_body_bytes must not be negative", ErrInvalidConfig)
	}

	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := logging.ParseFormat(cfg.Log.Format); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return nil
}

// RendererFor returns the renderer options for a named column. An empty name
// selects the defaults; an unknown name returns ErrUnknownColumn.
func (cfg *Config) RendererFor(column string) (ellipsis.Options, error) {
	opts := cfg.Renderer
	if column == "" {
		return opts, nil
	}
	col, ok := cfg.Columns[column]
	if !ok {
		return opts, fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}
	if col.Cutoff != nil {
		opts.Cutoff = *col.Cutoff
	}
	if col.WordBreak != nil {
		opts.WordBreak = *col.WordBreak
	}
	if col.EscapeHTML != nil {
		opts.EscapeHTML = *col.EscapeHTML
	}
	return opts, nil
}

// ColumnNames returns the configured column names in sorted order.
func (cfg *Config) ColumnNames() []string {
	names := make([]string, 0, len(cfg.Columns))
	for name := range cfg.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Duration parses a configured duration, falling back to def when empty or invalid.
func Duration(v string, def time.Duration) time.Duration {
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// String returns the config as YAML.
func (cfg *Config) String() string {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Sprintf("config error: %v", err)
	}
	return string(data)
}

// SaveTo writes the config to the specified path, creating parent directories.
func (cfg *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// DiscoveredPaths returns which config files were found.
// Returns empty strings for paths that don't exist or can't be determined.
func DiscoveredPaths() (global, project string) {
	globalPath, err := globalConfigPath()
	if err == nil {
		if _, statErr := os.Stat(globalPath); statErr == nil {
			global = globalPath
		}
	}
	projectPath, err := discoverProjectConfig()
	if err == nil {
		project = projectPath
	}
	return global, project
}
