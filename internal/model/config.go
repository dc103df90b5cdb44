package model

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Config is the complete claimgraph configuration
type Config struct {
	Render RenderConfig `yaml:"render" mapstructure:"render"`
	Cache  CacheConfig  `yaml:"cache" mapstructure:"cache"`
	Audit  AuditConfig  `yaml:"audit" mapstructure:"audit"`
	Output OutputConfig `yaml:"output" mapstructure:"output"`
}

// RenderConfig controls the template resolution engine
type RenderConfig struct {
	Workers       int           `yaml:"workers" mapstructure:"workers"`
	Extensions    []string      `yaml:"extensions" mapstructure:"extensions"`         // Files treated as documents
	TooltipMarkup bool          `yaml:"tooltip_markup" mapstructure:"tooltip_markup"` // Wrap tooltip values in <span> for HTML documents
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`               // Overall run deadline
}

// CacheConfig controls the render cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
}

// AuditConfig controls the validation and audit engine
type AuditConfig struct {
	RequireFullCoverage bool    `yaml:"require_full_coverage" mapstructure:"require_full_coverage"` // Coverage gaps become critical
	AliasTolerance      float64 `yaml:"alias_tolerance" mapstructure:"alias_tolerance"`             // Default relative tolerance for aliases
}

// OutputConfig controls report emission
type OutputConfig struct {
	Verbose    bool   `yaml:"verbose" mapstructure:"verbose"`
	ReportJSON string `yaml:"report_json" mapstructure:"report_json"`
	ReportMD   string `yaml:"report_md" mapstructure:"report_md"`
	Color      bool   `yaml:"color" mapstructure:"color"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	cacheDir := filepath.Join(os.TempDir(), "claimgraph-cache")
	if dir, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(dir, "claimgraph")
	}

	return &Config{
		Render: RenderConfig{
			Workers:       runtime.NumCPU(),
			Extensions:    []string{".md", ".markdown", ".html", ".htm", ".txt", ".tex"},
			TooltipMarkup: true,
			Timeout:       5 * time.Minute,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       cacheDir,
			TTL:       7 * 24 * time.Hour,
			MemoryTTL: 10 * time.Minute,
		},
		Audit: AuditConfig{
			RequireFullCoverage: false,
			AliasTolerance:      1e-9,
		},
		Output: OutputConfig{
			Verbose:    false,
			ReportJSON: "audit.json",
			ReportMD:   "",
			Color:      true,
		},
	}
}
