// Package config loads the optional .tidybot/config.toml file.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/newhook/tidybot/internal/logging"
	"github.com/newhook/tidybot/internal/logparser"
)

//go:embed templates/config.tmpl
var configTemplateText string

// FileName is the config file inside the state directory.
const FileName = "config.toml"

// Output formats.
const (
	OutputTable = "table"
	OutputJSON  = "json"
)

// Config represents the configuration stored in .tidybot/config.toml.
type Config struct {
	Analyze   AnalyzeConfig   `toml:"analyze"`
	Cache     CacheConfig     `toml:"cache"`
	GitHub    GitHubConfig    `toml:"github"`
	LogParser LogParserConfig `toml:"log_parser"`
}

// AnalyzeConfig holds defaults for the analyze command.
type AnalyzeConfig struct {
	// Days of history to analyze. Defaults to 30.
	Days *int `toml:"days"`

	// Output is "table" or "json". Defaults to "table".
	Output string `toml:"output"`

	// Top is the number of tests reported. Defaults to 10.
	Top *int `toml:"top"`

	// Concurrency is the number of parallel log downloads. Defaults to 4.
	Concurrency *int `toml:"concurrency"`
}

// GetDays returns the configured history window in days.
func (a *AnalyzeConfig) GetDays() int {
	if a.Days == nil || *a.Days <= 0 {
		return 30
	}
	return *a.Days
}

// GetOutput returns the configured output format, falling back to table
// for unknown values.
func (a *AnalyzeConfig) GetOutput() string {
	switch strings.ToLower(a.Output) {
	case OutputJSON:
		return OutputJSON
	default:
		return OutputTable
	}
}

func (a *AnalyzeConfig) GetTop() int {
	if a.Top == nil || *a.Top <= 0 {
		return 10
	}
	return *a.Top
}

func (a *AnalyzeConfig) GetConcurrency() int {
	if a.Concurrency == nil || *a.Concurrency <= 0 {
		return 4
	}
	return *a.Concurrency
}

// CacheConfig controls the run log cache.
type CacheConfig struct {
	// Enabled defaults to true.
	Enabled *bool `toml:"enabled"`

	// TTLHours defaults to one week.
	TTLHours *int `toml:"ttl_hours"`

	// MemoryTTLMinutes defaults to 30 minutes.
	MemoryTTLMinutes *int `toml:"memory_ttl_minutes"`
}

// IsEnabled reports whether downloaded logs are cached on disk.
func (c *CacheConfig) IsEnabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// GetTTL returns how long a cached archive stays valid.
func (c *CacheConfig) GetTTL() time.Duration {
	if c.TTLHours != nil && *c.TTLHours > 0 {
		return time.Duration(*c.TTLHours) * time.Hour
	}
	return 7 * 24 * time.Hour
}

func (c *CacheConfig) GetMemoryTTL() time.Duration {
	if c.MemoryTTLMinutes != nil && *c.MemoryTTLMinutes > 0 {
		return time.Duration(*c.MemoryTTLMinutes) * time.Minute
	}
	return 30 * time.Minute
}

// GitHubConfig controls GitHub API usage.
type GitHubConfig struct {
	RequestsPerSecond *float64 `toml:"requests_per_second"`
	Burst             *int     `toml:"burst"`

	// MaxRuns caps the listed workflow runs. 0 means no cap. Defaults to 100.
	MaxRuns *int `toml:"max_runs"`
}

func (g *GitHubConfig) GetRequestsPerSecond() float64 {
	if g.RequestsPerSecond != nil && *g.RequestsPerSecond > 0 {
		return *g.RequestsPerSecond
	}
	return 5
}

func (g *GitHubConfig) GetBurst() int {
	if g.Burst != nil && *g.Burst > 0 {
		return *g.Burst
	}
	return 5
}

func (g *GitHubConfig) GetMaxRuns() int {
	if g.MaxRuns == nil || *g.MaxRuns < 0 {
		return 100
	}
	return *g.MaxRuns
}

// LogParserConfig selects the log dialects.
type LogParserConfig struct {
	// Dialects are tried in order. Defaults to jest then generic.
	Dialects []string `toml:"dialects"`
}

// GetDialects returns the configured dialect names.
func (l *LogParserConfig) GetDialects() []string {
	if len(l.Dialects) == 0 {
		return []string{logparser.DialectJest, logparser.DialectGeneric}
	}
	return l.Dialects
}

// DefaultPath returns the config location under dir.
func DefaultPath(dir string) string {
	return filepath.Join(dir, logging.ConfigDir, FileName)
}

// Load reads path. A missing file yields the default configuration.
func Load(path string) (*Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		logging.Warn("unknown config keys", "path", path, "keys", keys)
	}
	return &cfg, nil
}

type configTemplateData struct {
	Days              int
	Output            string
	Top               int
	Concurrency       int
	CacheEnabled      bool
	TTLHours          int
	MemoryTTLMinutes  int
	RequestsPerSecond float64
	Burst             int
	MaxRuns           int
	Dialects          []string
}

// tomlString quotes s as a TOML basic string.
func tomlString(s string) string {
	escaped := strings.ReplaceAll(s, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}

// tomlFloat formats f so it always decodes as a TOML float.
func tomlFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

var configTemplate = template.Must(template.New("config").Funcs(template.FuncMap{
	"tomlString": tomlString,
	"tomlFloat":  tomlFloat,
}).Parse(configTemplateText))

// GenerateDocumentedConfig renders the effective configuration with comments.
func (c *Config) GenerateDocumentedConfig() (string, error) {
	data := configTemplateData{
		Days:              c.Analyze.GetDays(),
		Output:            c.Analyze.GetOutput(),
		Top:               c.Analyze.GetTop(),
		Concurrency:       c.Analyze.GetConcurrency(),
		CacheEnabled:      c.Cache.IsEnabled(),
		TTLHours:          int(c.Cache.GetTTL() / time.Hour),
		MemoryTTLMinutes:  int(c.Cache.GetMemoryTTL() / time.Minute),
		RequestsPerSecond: c.GitHub.GetRequestsPerSecond(),
		Burst:             c.GitHub.GetBurst(),
		MaxRuns:           c.GitHub.GetMaxRuns(),
		Dialects:          c.LogParser.GetDialects(),
	}

	var buf bytes.Buffer
	if err := configTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	return buf.String(), nil
}

// SaveDocumentedConfig writes the documented config to path, creating its
// directory. An existing file is left untouched unless overwrite is set.
func (c *Config) SaveDocumentedConfig(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
	}

	content, err := c.GenerateDocumentedConfig()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(content), 0644)
}
