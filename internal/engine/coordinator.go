package engine

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/prodwatch/veriscan/internal/browser"
	"github.com/prodwatch/veriscan/internal/models"
	"github.com/prodwatch/veriscan/internal/scanner"
)

// ScanFunc executes one product scan on the batch's current page.
type ScanFunc func(ctx context.Context, product models.ProductSet, pg *browser.Page) (*models.ScannedData, error)

// EmitFunc receives each finished record, in batch order. Implementations
// must be safe for concurrent calls across batches.
type EmitFunc func(record *models.ComparisonRecord) error

// Options are the per-invocation knobs of the batch coordinator, derived
// from the platform config and the engine defaults.
type Options struct {
	Concurrency             int
	MaxConsecutiveFailures  int
	PageRotationInterval    int
	ContextRotationInterval int
	WaitTime                time.Duration
	EnableGCHints           bool
	TolerancePct            float64
}

func (o Options) normalized() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.MaxConsecutiveFailures <= 0 {
		o.MaxConsecutiveFailures = 2
	}
	return o
}

// OptionsFromConfig derives coordinator options from a platform config and a
// requested concurrency (0 means platform default).
func OptionsFromConfig(cfg *models.PlatformConfig, requested, maxConsecutiveFailures int, tolerancePct float64) Options {
	mm := cfg.Workflow.MemoryManagement
	return Options{
		Concurrency:             cfg.EffectiveConcurrency(requested),
		MaxConsecutiveFailures:  maxConsecutiveFailures,
		PageRotationInterval:    mm.PageRotationInterval,
		ContextRotationInterval: mm.ContextRotationInterval,
		WaitTime:                cfg.WaitTime(),
		EnableGCHints:           mm.EnableGCHints,
		TolerancePct:            tolerancePct,
	}
}

// RunStats summarizes one coordinator run.
type RunStats struct {
	Products      int
	Batches       int
	FailedBatches int
	BatchErrors   []error
}

// Coordinator drives the parallel per-platform scan batches inside a
// Scan-family node: splits products over N batches, gives each batch one
// browser session for its lifetime, rotates pages/contexts on the configured
// intervals, recovers the session after consecutive failures, and paces
// scans with the platform rate limit.
type Coordinator struct {
	factory SessionFactory
	logger  arbor.ILogger
}

// NewCoordinator wires a coordinator over a session factory.
func NewCoordinator(factory SessionFactory, logger arbor.ILogger) *Coordinator {
	return &Coordinator{factory: factory, logger: logger}
}

// Run scans every product and emits exactly one record per product. A batch
// level failure aborts that batch only; its error is collected into the
// returned stats and the remaining products of the batch are emitted as
// failed records so the record count stays exact.
func (c *Coordinator) Run(ctx context.Context, platform string, products []models.ProductSet, opts Options, scan ScanFunc, emit EmitFunc) RunStats {
	opts = opts.normalized()

	batches := splitBatches(products, opts.Concurrency)
	stats := RunStats{Products: len(products), Batches: len(batches)}

	c.logger.Info().
		Str("platform", platform).
		Int("products", len(products)).
		Int("batches", len(batches)).
		Int("wait_time_ms", int(opts.WaitTime.Milliseconds())).
		Msg("Starting scan batches")

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		batchErr []error
	)
	for i, batch := range batches {
		wg.Add(1)
		go func(index int, items []models.ProductSet) {
			defer wg.Done()
			if err := c.runBatch(ctx, platform, index, items, opts, scan, emit); err != nil {
				errMu.Lock()
				batchErr = append(batchErr, fmt.Errorf("batch %d: %w", index, err))
				errMu.Unlock()
			}
		}(i, batch)
	}
	wg.Wait()

	stats.BatchErrors = batchErr
	stats.FailedBatches = len(batchErr)
	return stats
}

// runBatch is strictly sequential over its products and holds exactly one
// browser session for its lifetime.
func (c *Coordinator) runBatch(ctx context.Context, platform string, index int, products []models.ProductSet, opts Options, scan ScanFunc, emit EmitFunc) (err error) {
	logger := c.logger
	session, err := c.factory.NewSession(ctx)
	if err != nil {
		c.emitBatchFailure(platform, products, err, opts, emit)
		return fmt.Errorf("create session: %w", err)
	}
	defer session.Close()

	limiter := rate.NewLimiter(rate.Every(maxDuration(opts.WaitTime, time.Millisecond)), 1)
	// Consume the initial burst so the first inter-iteration wait enforces
	// the full spacing against the first scan.
	limiter.Allow()
	consecutiveFailures := 0

	for i, product := range products {
		if ctxErr := ctx.Err(); ctxErr != nil {
			c.emitBatchFailure(platform, products[i:], ctxErr, opts, emit)
			return ctxErr
		}

		if i > 0 {
			if rotErr := c.rotate(session, i, opts, logger); rotErr != nil {
				c.emitBatchFailure(platform, products[i:], rotErr, opts, emit)
				return rotErr
			}
			if waitErr := limiter.Wait(ctx); waitErr != nil {
				c.emitBatchFailure(platform, products[i:], waitErr, opts, emit)
				return waitErr
			}
		}

		data, scanErr := scan(ctx, product, session.Page())
		record := BuildRecord(&products[i], product.LinkURL, platform, data, scanErr, opts.TolerancePct)
		if emitErr := emit(record); emitErr != nil {
			return fmt.Errorf("emit record: %w", emitErr)
		}

		if scanErr != nil && !scanner.IsNotFound(scanErr) {
			consecutiveFailures++
			logger.Warn().
				Int("batch", index).
				Str("product_set_id", product.ProductSetID).
				Str("kind", string(scanner.Classify(scanErr))).
				Int("consecutive_failures", consecutiveFailures).
				Msg("Scan failed")
		} else {
			consecutiveFailures = 0
		}

		// Session recovery: too many consecutive failures usually means the
		// context is poisoned (Cloudflare, dead renderer). Rebuild it.
		if consecutiveFailures >= opts.MaxConsecutiveFailures {
			logger.Info().
				Int("batch", index).
				Int("threshold", opts.MaxConsecutiveFailures).
				Msg("Session recovery: rebuilding browser context")
			if rotErr := session.RotateContext(); rotErr != nil {
				c.emitBatchFailure(platform, products[i+1:], rotErr, opts, emit)
				return fmt.Errorf("session recovery: %w", rotErr)
			}
			consecutiveFailures = 0
		}
	}

	return nil
}

// rotate applies the iteration-bound rotation policy. Page rotation is
// subsumed by context rotation when the intervals collide.
func (c *Coordinator) rotate(session Session, i int, opts Options, logger arbor.ILogger) error {
	switch {
	case opts.ContextRotationInterval > 0 && i%opts.ContextRotationInterval == 0:
		logger.Debug().Int("index", i).Msg("Rotating browser context")
		if err := session.RotateContext(); err != nil {
			return fmt.Errorf("context rotation: %w", err)
		}
		if opts.EnableGCHints {
			runtime.GC()
		}
	case opts.PageRotationInterval > 0 && i%opts.PageRotationInterval == 0:
		logger.Debug().Int("index", i).Msg("Rotating page")
		if err := session.RotatePage(); err != nil {
			return fmt.Errorf("page rotation: %w", err)
		}
	}
	return nil
}

// emitBatchFailure writes failed records for products a dying batch never
// reached, keeping the one-record-per-product guarantee.
func (c *Coordinator) emitBatchFailure(platform string, remaining []models.ProductSet, cause error, opts Options, emit EmitFunc) {
	for i := range remaining {
		record := BuildRecord(&remaining[i], remaining[i].LinkURL, platform, nil, scanner.NewBrowserError(cause), opts.TolerancePct)
		if err := emit(record); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to emit batch-failure record")
			return
		}
	}
}

func splitBatches(products []models.ProductSet, n int) [][]models.ProductSet {
	if len(products) == 0 {
		return nil
	}
	if n > len(products) {
		n = len(products)
	}
	size := (len(products) + n - 1) / n
	var batches [][]models.ProductSet
	for start := 0; start < len(products); start += size {
		end := start + size
		if end > len(products) {
			end = len(products)
		}
		batches = append(batches, products[start:end])
	}
	return batches
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
