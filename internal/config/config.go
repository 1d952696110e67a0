// Package config loads the control directory's config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/viper"

	"github.com/eliteGoblin/trackd/internal/domain"
)

// EnvPrefix is the prefix of environment overrides, e.g. TRACKD_LOG_LEVEL.
const EnvPrefix = "TRACKD"

// Config is the decoded config.yaml.
type Config struct {
	Project   ProjectConfig   `mapstructure:"project"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Daemon    DaemonConfig    `mapstructure:"daemon"`
	Log       LogConfig       `mapstructure:"log"`
	Index     IndexConfig     `mapstructure:"index"`
}

// ProjectConfig is the metadata templates are rendered with.
type ProjectConfig struct {
	ID            string `mapstructure:"id"`
	Name          string `mapstructure:"name"`
	Key           string `mapstructure:"key"`
	Owner         string `mapstructure:"owner"`
	DefaultBranch string `mapstructure:"default_branch"`
}

// ReconcileConfig controls non-interactive reconciliation.
type ReconcileConfig struct {
	Decision string `mapstructure:"decision"` // keep | overwrite | delete | prompt
	Workers  int    `mapstructure:"workers"`
}

// DaemonConfig controls the background loop.
type DaemonConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// IndexConfig controls the search index database.
type IndexConfig struct {
	Encrypt bool `mapstructure:"encrypt"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Project:   ProjectConfig{DefaultBranch: "main"},
		Reconcile: ReconcileConfig{Decision: "keep", Workers: 4},
		Daemon:    DaemonConfig{Interval: 5 * time.Minute},
		Log:       LogConfig{Level: "info"},
		Index:     IndexConfig{Encrypt: true},
	}
}

// Load reads path over the defaults, then applies TRACKD_* environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// setDefaults registers every key so environment overrides apply to Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("project.id", d.Project.ID)
	v.SetDefault("project.name", d.Project.Name)
	v.SetDefault("project.key", d.Project.Key)
	v.SetDefault("project.owner", d.Project.Owner)
	v.SetDefault("project.default_branch", d.Project.DefaultBranch)
	v.SetDefault("reconcile.decision", d.Reconcile.Decision)
	v.SetDefault("reconcile.workers", d.Reconcile.Workers)
	v.SetDefault("daemon.interval", d.Daemon.Interval)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("index.encrypt", d.Index.Encrypt)
}

// Validate checks enumerations and ranges.
func (c *Config) Validate() error {
	switch c.Reconcile.Decision {
	case "keep", "overwrite", "delete", "prompt":
	default:
		return fmt.Errorf("reconcile.decision must be keep, overwrite, delete or prompt, got %q", c.Reconcile.Decision)
	}
	if c.Reconcile.Workers < 1 {
		return fmt.Errorf("reconcile.workers must be at least 1, got %d", c.Reconcile.Workers)
	}
	if c.Daemon.Interval < time.Second {
		return fmt.Errorf("daemon.interval must be at least 1s, got %s", c.Daemon.Interval)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	if k := c.Project.Key; k != "" && !isProjectKey(k) {
		return fmt.Errorf("project.key must be uppercase letters and digits, got %q", k)
	}
	return nil
}

// ProjectContext returns the generator input.
func (c *Config) ProjectContext() domain.ProjectContext {
	return domain.ProjectContext{
		ID:            c.Project.ID,
		Name:          c.Project.Name,
		Key:           c.Project.Key,
		Owner:         c.Project.Owner,
		DefaultBranch: c.Project.DefaultBranch,
	}
}

// FillProjectDefaults derives missing project fields from the repository
// directory name. It returns the fields it filled.
func FillProjectDefaults(ctx *domain.ProjectContext, repoDir string, newID func() string) []string {
	var filled []string
	if ctx.Name == "" {
		ctx.Name = filepath.Base(repoDir)
		filled = append(filled, "name")
	}
	if ctx.Key == "" {
		ctx.Key = DeriveKey(ctx.Name)
		filled = append(filled, "key")
	}
	if ctx.DefaultBranch == "" {
		ctx.DefaultBranch = "main"
		filled = append(filled, "default_branch")
	}
	if ctx.ID == "" && newID != nil {
		ctx.ID = newID()
		filled = append(filled, "id")
	}
	return filled
}

// DeriveKey builds an issue prefix from a project name: up to four uppercase
// letters or digits, "TRK" when nothing usable remains.
func DeriveKey(name string) string {
	var b strings.Builder
	for _, r := range name {
		if b.Len() == 4 {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	if b.Len() == 0 || !unicode.IsLetter(rune(b.String()[0])) {
		return "TRK"
	}
	return b.String()
}

func isProjectKey(k string) bool {
	for i, r := range k {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return len(k) <= 10
}
