// Package config — glotdoc.yaml configuration file support.
//
// When a glotdoc.yaml file exists in the working directory, it supplies the
// defaults for provider selection, worker budget caps, retry policy, and
// timeouts. Command-line flags override it field by field.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the default config file name.
const FileName = "glotdoc.yaml"

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// File is the top-level glotdoc.yaml structure.
type File struct {
	// Provider is the translation provider ID ("google", "openai", "ollama").
	Provider string `yaml:"provider,omitempty"`
	// Model overrides the provider's default model.
	Model string `yaml:"model,omitempty"`
	// BaseURL overrides the provider's endpoint (self-hosted gateways).
	BaseURL string `yaml:"base_url,omitempty"`
	// SourceLang is the default source language (empty means auto-detect).
	SourceLang string `yaml:"source_lang,omitempty"`
	// TargetLang is the default target language.
	TargetLang string `yaml:"target_lang,omitempty"`

	// Budget caps the worker pools.
	Budget BudgetConfig `yaml:"budget,omitempty"`
	// Retry tunes the per-unit retry policy.
	Retry RetryConfig `yaml:"retry,omitempty"`

	// Proxy is an HTTP proxy URL for provider calls.
	Proxy string `yaml:"proxy,omitempty"`
	// CacheDir is where glotdoc.cache lives (default: working directory).
	CacheDir string `yaml:"cache_dir,omitempty"`
}

// BudgetConfig mirrors the three worker budget levels.
type BudgetConfig struct {
	// Global caps in-flight provider calls across the whole job.
	Global int `yaml:"global,omitempty"`
	// Pages caps concurrently active pages.
	Pages int `yaml:"pages,omitempty"`
	// PerPage caps in-flight units within one page.
	PerPage int `yaml:"per_page,omitempty"`
}

// RetryConfig tunes retries and timeouts for provider calls.
type RetryConfig struct {
	// MaxAttempts is the total number of tries per unit (default 3).
	MaxAttempts int `yaml:"max_attempts,omitempty"`
	// UnitTimeout bounds one provider call, e.g. "90s".
	UnitTimeout string `yaml:"unit_timeout,omitempty"`
	// JobTimeout bounds the whole job, e.g. "30m". Empty means none.
	JobTimeout string `yaml:"job_timeout,omitempty"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads glotdoc.yaml from the given directory.
// Returns an empty File (not nil) if the file doesn't exist.
func Load(dir string) (*File, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := f.validate(path); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate(path string) error {
	if f.Budget.Global < 0 || f.Budget.Pages < 0 || f.Budget.PerPage < 0 {
		return fmt.Errorf("%s: budget values must be positive", path)
	}
	if f.Retry.MaxAttempts < 0 {
		return fmt.Errorf("%s: retry.max_attempts must be positive", path)
	}
	for _, d := range []string{f.Retry.UnitTimeout, f.Retry.JobTimeout} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("%s: bad duration %q: %w", path, d, err)
		}
	}
	return nil
}

// UnitTimeout returns the parsed per-call timeout, or the fallback.
func (f *File) UnitTimeout(fallback time.Duration) time.Duration {
	if f.Retry.UnitTimeout == "" {
		return fallback
	}
	d, err := time.ParseDuration(f.Retry.UnitTimeout)
	if err != nil {
		return fallback
	}
	return d
}

// JobTimeout returns the parsed job timeout, or zero for none.
func (f *File) JobTimeout() time.Duration {
	if f.Retry.JobTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(f.Retry.JobTimeout)
	if err != nil {
		return 0
	}
	return d
}
