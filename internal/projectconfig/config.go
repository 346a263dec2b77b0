// Package projectconfig provides the ProjectConfig struct and loader for
// .stepscope.yaml project-level configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"stepscope/internal/utils"
)

// ConfigFileName is the project config file discovered by walking up from
// the working directory.
const ConfigFileName = ".stepscope.yaml"

// Default values for project configuration. New() references them and no
// other code should duplicate them.
const (
	DefaultModel       = "claude-3.5-sonnet"
	DefaultMaxRetries  = 1
	DefaultMaxParallel = 1

	DefaultTokensPerInterval   = 8000
	DefaultRateIntervalSeconds = 60
	DefaultMaxNewTokens        = 1000
	DefaultTemperature         = 0.0

	DefaultCacheDir = ".stepscope-cache"
	DefaultLogDir   = "logs"
)

// EvalConfig holds defaults for the eval command.
type EvalConfig struct {
	Model               string `yaml:"model,omitempty"`
	MaxParallel         int    `yaml:"max_parallel,omitempty"`
	MaxRetries          int    `yaml:"max_retries,omitempty"`
	TokensPerInterval   int    `yaml:"tokens_per_interval,omitempty"`
	RateIntervalSeconds int    `yaml:"rate_interval_seconds,omitempty"`
	Verbose             *bool  `yaml:"verbose,omitempty"`
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Dir     string `yaml:"dir,omitempty"`
}

// ReportConfig holds report command settings.
type ReportConfig struct {
	HTML *bool `yaml:"html,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .stepscope.yaml.
type ProjectConfig struct {
	Eval   EvalConfig   `yaml:"eval,omitempty"`
	Cache  CacheConfig  `yaml:"cache,omitempty"`
	Report ReportConfig `yaml:"report,omitempty"`
	LogDir string       `yaml:"log_dir,omitempty"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Eval: EvalConfig{
			Model:               DefaultModel,
			MaxParallel:         DefaultMaxParallel,
			MaxRetries:          DefaultMaxRetries,
			TokensPerInterval:   DefaultTokensPerInterval,
			RateIntervalSeconds: DefaultRateIntervalSeconds,
			Verbose:             utils.Ptr(false),
		},
		Cache: CacheConfig{
			Enabled: utils.Ptr(false),
			Dir:     DefaultCacheDir,
		},
		Report: ReportConfig{
			HTML: utils.Ptr(false),
		},
		LogDir: DefaultLogDir,
	}
}

// Load finds .stepscope.yaml by walking up from startDir (max 10 levels),
// unmarshals it, and fills in missing fields with defaults. If no config
// file is found, returns defaults with a nil error. Real I/O errors (e.g.
// permission denied) are returned to the caller.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	data, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil // no file found → return defaults
		}
		return nil, fmt.Errorf("loading %s: %w", ConfigFileName, err)
	}

	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ConfigFileName, err)
	}

	mergeConfig(cfg, &fileCfg)
	return cfg, nil
}

// findConfigFile walks up from dir looking for .stepscope.yaml (max 10
// levels). Returns os.ErrNotExist if no config file is found. Propagates
// real I/O errors instead of silently swallowing them.
func findConfigFile(dir string) ([]byte, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, ConfigFileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return nil, os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	if src.Eval.Model != "" {
		dst.Eval.Model = src.Eval.Model
	}
	if src.Eval.MaxParallel > 0 {
		dst.Eval.MaxParallel = src.Eval.MaxParallel
	}
	if src.Eval.MaxRetries > 0 {
		dst.Eval.MaxRetries = src.Eval.MaxRetries
	}
	if src.Eval.TokensPerInterval > 0 {
		dst.Eval.TokensPerInterval = src.Eval.TokensPerInterval
	}
	if src.Eval.RateIntervalSeconds > 0 {
		dst.Eval.RateIntervalSeconds = src.Eval.RateIntervalSeconds
	}
	if src.Eval.Verbose != nil {
		dst.Eval.Verbose = src.Eval.Verbose
	}

	if src.Cache.Enabled != nil {
		dst.Cache.Enabled = src.Cache.Enabled
	}
	if src.Cache.Dir != "" {
		dst.Cache.Dir = src.Cache.Dir
	}

	if src.Report.HTML != nil {
		dst.Report.HTML = src.Report.HTML
	}

	if src.LogDir != "" {
		dst.LogDir = src.LogDir
	}
}
