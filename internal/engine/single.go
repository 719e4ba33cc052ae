package engine

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/prodwatch/veriscan/internal/models"
	"github.com/prodwatch/veriscan/internal/scanner"
)

// SingleScanner runs one-off scans outside the batch coordinator. Browser
// scanners get a fresh short-lived session per call; API scanners run
// without one.
type SingleScanner struct {
	factory SessionFactory
	logger  arbor.ILogger
}

// NewSingleScanner builds a single-shot executor over the session factory.
func NewSingleScanner(factory SessionFactory, logger arbor.ILogger) *SingleScanner {
	return &SingleScanner{factory: factory, logger: logger}
}

// Scan executes one scan, owning the session lifecycle for browser scanners.
func (s *SingleScanner) Scan(ctx context.Context, sc scanner.Scanner, url string) (*models.ScannedData, error) {
	if sc.Method() != models.StrategyBrowser {
		return sc.Scan(ctx, url, nil)
	}

	session, err := s.factory.NewSession(ctx)
	if err != nil {
		return nil, scanner.NewBrowserError(fmt.Errorf("create session: %w", err))
	}
	defer session.Close()

	return sc.Scan(ctx, url, session.Page())
}
