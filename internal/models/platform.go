package models

import (
	"regexp"
	"time"
)

// StrategyType selects how a platform is scanned.
type StrategyType string

const (
	StrategyBrowser StrategyType = "browser"
	StrategyHTTP    StrategyType = "http"
	StrategyGraphQL StrategyType = "graphql"
)

// Strategy is one entry in a platform's ordered strategy list.
// The first strategy whose type has a registered scanner wins.
type Strategy struct {
	Type    StrategyType           `yaml:"type" validate:"required,oneof=browser http graphql"`
	Options map[string]interface{} `yaml:"options"`
}

// URLPattern describes how product URLs are recognized and built for a platform.
type URLPattern struct {
	Domain            string `yaml:"domain" validate:"required"`
	ProductIDRegex    string `yaml:"product_id_regex" validate:"required"`
	ProductIDGroup    int    `yaml:"product_id_group"`
	DetailURLTemplate string `yaml:"detail_url_template"`

	// Compiled form of ProductIDRegex, populated by the loader.
	CompiledRegex *regexp.Regexp `yaml:"-"`
}

// RateLimitConfig is the per-platform spacing between job starts and scans.
type RateLimitConfig struct {
	WaitTimeMs int `yaml:"wait_time_ms"`
}

// ConcurrencyConfig bounds the number of parallel scan batches.
type ConcurrencyConfig struct {
	Default int `yaml:"default"`
	Max     int `yaml:"max"`
}

// MemoryManagementConfig controls page/context rotation inside long scan runs.
type MemoryManagementConfig struct {
	PageRotationInterval    int  `yaml:"page_rotation_interval"`
	ContextRotationInterval int  `yaml:"context_rotation_interval"`
	EnableGCHints           bool `yaml:"enable_gc_hints"`
}

// WorkflowConfig groups the execution knobs of a platform.
type WorkflowConfig struct {
	RateLimit        RateLimitConfig        `yaml:"rate_limit"`
	Concurrency      ConcurrencyConfig      `yaml:"concurrency"`
	MemoryManagement MemoryManagementConfig `yaml:"memory_management"`
}

// UpdateExclusions lists fields that must never be overwritten in the DB
// for a platform. An empty set is valid; a nil set is normalized to empty
// by the loader.
type UpdateExclusions struct {
	SkipFields []string `yaml:"skip_fields"`
	Reason     string   `yaml:"reason"`
}

// ScanConfig holds scan-time toggles.
type ScanConfig struct {
	SkipScreenshot bool `yaml:"skip_screenshot"`
	// NavigationTimeout bounds a single page navigation. Zero means 30s.
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
}

// PlatformConfig is the typed per-platform settings record, loaded from one
// YAML file per platform.
type PlatformConfig struct {
	Platform    string `yaml:"platform" validate:"required"`
	DisplayName string `yaml:"display_name"`

	URLPattern       URLPattern       `yaml:"url_pattern" validate:"required"`
	Strategies       []Strategy       `yaml:"strategies" validate:"required,min=1,dive"`
	Workflow         WorkflowConfig   `yaml:"workflow"`
	UpdateExclusions UpdateExclusions `yaml:"update_exclusions"`
	ScanConfig       ScanConfig       `yaml:"scan_config"`

	// Platform-specific sale status tokens mapped onto the canonical set,
	// e.g. "품절" -> sold_out.
	StatusMap map[string]string `yaml:"status_map"`
}

// EffectiveConcurrency clamps a requested batch count to the platform limits:
// min(requested || default || 1, max || 10).
func (c *PlatformConfig) EffectiveConcurrency(requested int) int {
	n := requested
	if n <= 0 {
		n = c.Workflow.Concurrency.Default
	}
	if n <= 0 {
		n = 1
	}
	max := c.Workflow.Concurrency.Max
	if max <= 0 {
		max = 10
	}
	if n > max {
		n = max
	}
	return n
}

// NavigationTimeout returns the configured per-scan navigation timeout.
func (c *PlatformConfig) NavigationTimeout() time.Duration {
	if c.ScanConfig.NavigationTimeout > 0 {
		return c.ScanConfig.NavigationTimeout
	}
	return 30 * time.Second
}

// WaitTime returns the rate-limit spacing as a duration.
func (c *PlatformConfig) WaitTime() time.Duration {
	return time.Duration(c.Workflow.RateLimit.WaitTimeMs) * time.Millisecond
}
