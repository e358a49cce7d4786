package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoobyPM/ellipsis-render/internal/ellipsis"
)

func intPtr(n int) *int    { return &n }
func boolPtr(b bool) *bool { return &b }

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNew_Defaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, Version, cfg.Version)
	assert.Equal(t, ellipsis.Options{Cutoff: DefaultCutoff}, cfg.Renderer)
	assert.Empty(t, cfg.Columns)
	assert.Equal(t, DefaultListen, cfg.Server.Listen)
	assert.Equal(t, int64(DefaultMaxBodyBytes), cfg.Server.MaxBodyBytes)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Log.Format)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
version: "1"
renderer:
  cutoff: 17
  word_break: true
columns:
  notes:
    cutoff: 40
  html:
    escape_html: true
server:
  listen: ":9090"
log:
  level: debug
  format: json
`)

	cfg, err := Load(LoadOptions{ExplicitPath: path, SkipEnv: true})
	require.NoError(t, err)

	assert.Equal(t, ellipsis.Options{Cutoff: 17, WordBreak: true}, cfg.Renderer)
	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, []string{"html", "notes"}, cfg.ColumnNames())

	// Defaults survive for unspecified fields
	assert.Equal(t, DefaultReadTimeout, cfg.Server.ReadTimeout)
	require.NoError(t, cfg.Validate())
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "renderer: [not, a, map")

	_, err := Load(LoadOptions{ExplicitPath: path, SkipEnv: true})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(LoadOptions{ExplicitPath: filepath.Join(t.TempDir(), "nope.yaml"), SkipEnv: true})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
renderer:
  cutoff: 17
`)

	t.Setenv(EnvCutoff, "12")
	t.Setenv(EnvWordBreak, "true")
	t.Setenv(EnvEscapeHTML, "1")
	t.Setenv(EnvListen, ":7000")
	t.Setenv(EnvLogLevel, "WARN")
	t.Setenv(EnvLogFormat, "JSON")

	cfg, err := Load(LoadOptions{ExplicitPath: path})
	require.NoError(t, err)

	assert.Equal(t, ellipsis.Options{Cutoff: 12, WordBreak: true, EscapeHTML: true}, cfg.Renderer)
	assert.Equal(t, ":7000", cfg.Server.Listen)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  string
		val  string
	}{
		{"cutoff not a number", EnvCutoff, "ten"},
		{"word break not a bool", EnvWordBreak, "sometimes"},
		{"escape not a bool", EnvEscapeHTML, "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.val)
			_, err := Load(LoadOptions{SkipGlobal: true, SkipProject: true})
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad_ProjectDiscovery(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(root, ProjectConfigFile), []byte("renderer:\n  cutoff: 5\n"), 0o600))
	sub := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o700))
	t.Chdir(sub)

	cfg, err := Load(LoadOptions{SkipGlobal: true, SkipEnv: true})
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Renderer.Cutoff)

	_, project := DiscoveredPaths()
	assert.Equal(t, filepath.Join(root, ProjectConfigFile), project)
}

func TestApplyCLIOverrides(t *testing.T) {
	cfg := New()
	cfg.ApplyCLIOverrides(CLIOverrides{
		Cutoff:    intPtr(8),
		WordBreak: boolPtr(true),
		Listen:    ":1234",
		LogLevel:  "DEBUG",
	})

	assert.Equal(t, 8, cfg.Renderer.Cutoff)
	assert.True(t, cfg.Renderer.WordBreak)
	assert.False(t, cfg.Renderer.EscapeHTML, "nil override leaves value")
	assert.Equal(t, ":1234", cfg.Server.Listen)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"defaults valid", func(*Config) {}, nil},
		{"zero cutoff", func(c *Config) { c.Renderer.Cutoff = 0 }, ellipsis.ErrInvalidCutoff},
		{"column cutoff negative", func(c *Config) {
			c.Columns = map[string]ColumnOverride{"notes": {Cutoff: intPtr(-1)}}
		}, ellipsis.ErrInvalidCutoff},
		{"bad read timeout", func(c *Config) { c.Server.ReadTimeout = "soon" }, ErrInvalidConfig},
		{"negative body limit", func(c *Config) { c.Server.MaxBodyBytes = -1 }, ErrInvalidConfig},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, ErrInvalidConfig},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRendererFor(t *testing.T) {
	cfg := New()
	cfg.Renderer = ellipsis.Options{Cutoff: 20, WordBreak: true}
	cfg.Columns = map[string]ColumnOverride{
		"notes": {Cutoff: intPtr(50)},
		"raw":   {WordBreak: boolPtr(false), EscapeHTML: boolPtr(true)},
	}

	opts, err := cfg.RendererFor("")
	require.NoError(t, err)
	assert.Equal(t, cfg.Renderer, opts)

	opts, err = cfg.RendererFor("notes")
	require.NoError(t, err)
	assert.Equal(t, ellipsis.Options{Cutoff: 50, WordBreak: true}, opts)

	opts, err = cfg.RendererFor("raw")
	require.NoError(t, err)
	assert.Equal(t, ellipsis.Options{Cutoff: 20, EscapeHTML: true}, opts)

	_, err = cfg.RendererFor("missing")
	require.ErrorIs(t, err, ErrUnknownColumn)
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 30*time.Second, Duration("30s", time.Second))
	assert.Equal(t, time.Second, Duration("", time.Second))
	assert.Equal(t, time.Second, Duration("never", time.Second))
}

func TestSaveTo_RoundTrip(t *testing.T) {
	cfg := New()
	cfg.Renderer.Cutoff = 9
	cfg.Columns = map[string]ColumnOverride{"notes": {WordBreak: boolPtr(true)}}

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, cfg.SaveTo(path))

	loaded, err := Load(LoadOptions{ExplicitPath: path, SkipEnv: true})
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
	assert.Contains(t, cfg.String(), "cutoff: 9")
}
