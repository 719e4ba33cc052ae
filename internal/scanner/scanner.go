package scanner

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/prodwatch/veriscan/internal/browser"
	"github.com/prodwatch/veriscan/internal/models"
)

// Scanner extracts normalized product data from one platform. A nil error
// means success; ErrProductNotFound (or anything classified KindNotFound)
// means the platform clearly reports the product gone.
//
// Scanners never own browsers or pages; browser-driven scanners borrow the
// page passed in for the duration of one call, API-driven scanners ignore it.
type Scanner interface {
	Platform() string
	Method() models.StrategyType
	Scan(ctx context.Context, url string, pg *browser.Page) (*models.ScannedData, error)
}

// Registry maps platform names to their scanner. Safe for concurrent reads
// after construction.
type Registry struct {
	mu       sync.RWMutex
	scanners map[string]Scanner
	logger   arbor.ILogger
}

// NewRegistry creates an empty scanner registry.
func NewRegistry(logger arbor.ILogger) *Registry {
	return &Registry{
		scanners: make(map[string]Scanner),
		logger:   logger,
	}
}

// Register adds a scanner for its platform, replacing any previous one.
func (r *Registry) Register(s Scanner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanners[s.Platform()] = s
	r.logger.Debug().
		Str("platform", s.Platform()).
		Str("method", string(s.Method())).
		Msg("Scanner registered")
}

// Get returns the scanner for a platform, or nil when none is registered.
// Callers without a scanner fall back to the generic extractor.
func (r *Registry) Get(platform string) Scanner {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.scanners[platform]
}

// BuildFromConfigs constructs one scanner per platform config using the
// first strategy with a supported type, and registers it.
func (r *Registry) BuildFromConfigs(configs []*models.PlatformConfig) error {
	for _, cfg := range configs {
		s, err := NewForPlatform(cfg)
		if err != nil {
			return fmt.Errorf("build scanner for %s: %w", cfg.Platform, err)
		}
		r.Register(s)
	}
	return nil
}

// NewForPlatform picks the first strategy in the platform's ordered list
// that has a scanner implementation.
func NewForPlatform(cfg *models.PlatformConfig) (Scanner, error) {
	for _, strategy := range cfg.Strategies {
		switch strategy.Type {
		case models.StrategyBrowser:
			return NewBrowserScanner(cfg, strategy.Options), nil
		case models.StrategyHTTP:
			return NewHTTPScanner(cfg, strategy.Options), nil
		case models.StrategyGraphQL:
			return NewGraphQLScanner(cfg, strategy.Options), nil
		}
	}
	return nil, fmt.Errorf("no supported strategy for platform %s", cfg.Platform)
}
