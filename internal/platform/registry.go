package platform

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/prodwatch/veriscan/internal/models"
)

// ErrConfigMissing is returned when a platform has no registered config.
type ErrConfigMissing struct {
	Platform string
}

func (e *ErrConfigMissing) Error() string {
	return fmt.Sprintf("no configuration registered for platform %q", e.Platform)
}

// Registry holds every known platform config. Immutable after construction:
// lookups are safe for concurrent use.
type Registry struct {
	configs map[string]*models.PlatformConfig
	// Domains sorted longest first so detection prefers the most specific
	// domain (e.g. "global.oliveyoung.com" over "oliveyoung.com").
	byDomain []*models.PlatformConfig
}

// NewRegistry builds a registry from loaded configs. Every platform gets
// exactly one config; duplicates are an error.
func NewRegistry(configs []*models.PlatformConfig) (*Registry, error) {
	r := &Registry{configs: make(map[string]*models.PlatformConfig, len(configs))}
	for _, cfg := range configs {
		if _, dup := r.configs[cfg.Platform]; dup {
			return nil, fmt.Errorf("duplicate platform config: %s", cfg.Platform)
		}
		r.configs[cfg.Platform] = cfg
		r.byDomain = append(r.byDomain, cfg)
	}
	sort.Slice(r.byDomain, func(i, j int) bool {
		return len(r.byDomain[i].URLPattern.Domain) > len(r.byDomain[j].URLPattern.Domain)
	})
	return r, nil
}

// Load returns the config for a platform.
func (r *Registry) Load(platform string) (*models.PlatformConfig, error) {
	cfg, ok := r.configs[platform]
	if !ok {
		return nil, &ErrConfigMissing{Platform: platform}
	}
	return cfg, nil
}

// Platforms returns every registered platform name.
func (r *Registry) Platforms() []string {
	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DetectPlatform resolves a product URL to a platform name, or "" when no
// registered domain matches.
func (r *Registry) DetectPlatform(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Host)
	for _, cfg := range r.byDomain {
		domain := strings.ToLower(cfg.URLPattern.Domain)
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return cfg.Platform
		}
	}
	return ""
}

// ExtractProductID pulls the platform product id out of a URL using the
// platform's regex. The query string is stripped before matching so that
// tracking parameters cannot leak into the id.
func (r *Registry) ExtractProductID(rawURL, platform string) string {
	cfg, ok := r.configs[platform]
	if !ok || cfg.URLPattern.CompiledRegex == nil {
		return ""
	}

	trimmed := rawURL
	if i := strings.IndexByte(trimmed, '?'); i >= 0 {
		trimmed = trimmed[:i]
	}

	matches := cfg.URLPattern.CompiledRegex.FindStringSubmatch(trimmed)
	group := cfg.URLPattern.ProductIDGroup
	if group <= 0 {
		group = 1
	}
	if len(matches) <= group {
		return ""
	}
	return matches[group]
}

// BuildDetailURL renders the platform's detail URL template for a product id.
// Returns "" when the platform is unknown or has no template.
func (r *Registry) BuildDetailURL(productID, platform string) string {
	cfg, ok := r.configs[platform]
	if !ok || cfg.URLPattern.DetailURLTemplate == "" {
		return ""
	}
	return strings.ReplaceAll(cfg.URLPattern.DetailURLTemplate, "{productId}", productID)
}

// UpdateExclusions returns the fields that must never be overwritten for a
// platform. The returned set is never nil.
func (r *Registry) UpdateExclusions(platform string) models.UpdateExclusions {
	cfg, ok := r.configs[platform]
	if !ok {
		return models.UpdateExclusions{SkipFields: []string{}}
	}
	ex := cfg.UpdateExclusions
	if ex.SkipFields == nil {
		ex.SkipFields = []string{}
	}
	return ex
}
