package engine

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/prodwatch/veriscan/internal/browser"
)

// Session is one batch's browser state: a borrowed browser, a tab context
// and a live page. The interface exists so the batch loop can run against a
// fake in tests; the production implementation sits on the browser pool.
type Session interface {
	// Page returns the currently live page.
	Page() *browser.Page
	// RotatePage closes the page and opens a fresh one in the same context.
	RotatePage() error
	// RotateContext closes page and context and creates fresh ones. Also
	// used for session recovery after consecutive failures.
	RotateContext() error
	// Close releases everything back to the pool. Close errors are swallowed.
	Close()
}

// SessionFactory creates one session per batch.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}

// PoolSessionFactory builds sessions on the shared browser pool. Each
// session holds exactly one browser for its lifetime.
type PoolSessionFactory struct {
	pool   *browser.Pool
	logger arbor.ILogger
}

// NewPoolSessionFactory wires the production session factory.
func NewPoolSessionFactory(pool *browser.Pool, logger arbor.ILogger) *PoolSessionFactory {
	return &PoolSessionFactory{pool: pool, logger: logger}
}

// NewSession acquires a browser and opens the initial context and page.
func (f *PoolSessionFactory) NewSession(ctx context.Context) (Session, error) {
	b, err := f.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire browser: %w", err)
	}

	s := &poolSession{pool: f.pool, browser: b, logger: f.logger}
	if err := s.RotateContext(); err != nil {
		f.pool.Release(b)
		return nil, err
	}
	return s, nil
}

type poolSession struct {
	pool    *browser.Pool
	browser *browser.Browser
	tabCtx  *browser.TabContext
	page    *browser.Page
	logger  arbor.ILogger
}

func (s *poolSession) Page() *browser.Page { return s.page }

func (s *poolSession) RotatePage() error {
	s.page.Close()
	page, err := s.tabCtx.NewPage()
	if err != nil {
		return fmt.Errorf("rotate page: %w", err)
	}
	s.page = page
	return nil
}

func (s *poolSession) RotateContext() error {
	s.page.Close()
	s.tabCtx.Close()

	tabCtx, err := browser.NewTabContext(s.browser)
	if err != nil {
		return fmt.Errorf("rotate context: %w", err)
	}
	page, err := tabCtx.NewPage()
	if err != nil {
		tabCtx.Close()
		return fmt.Errorf("rotate context page: %w", err)
	}

	s.tabCtx = tabCtx
	s.page = page
	return nil
}

func (s *poolSession) Close() {
	s.page.Close()
	s.tabCtx.Close()
	if s.browser != nil {
		s.pool.Release(s.browser)
		s.browser = nil
	}
}
