package nodes

import (
	"context"

	"github.com/prodwatch/veriscan/internal/browser"
	"github.com/prodwatch/veriscan/internal/engine"
	"github.com/prodwatch/veriscan/internal/models"
	"github.com/prodwatch/veriscan/internal/pipeline"
	"github.com/prodwatch/veriscan/internal/scanner"
)

// ScanNode scans every fetched product and streams one comparison record per
// product through the job's result writer. Batching, pacing, rotation, and
// session recovery all live in the engine coordinator.
type ScanNode struct {
	pipeline.NoRollback
	coordinator            *engine.Coordinator
	scanners               *scanner.Registry
	maxConsecutiveFailures int
}

var _ pipeline.Node = (*ScanNode)(nil)

// NewScanNode builds the scan node over the shared coordinator.
func NewScanNode(coordinator *engine.Coordinator, scanners *scanner.Registry, maxConsecutiveFailures int) *ScanNode {
	return &ScanNode{
		coordinator:            coordinator,
		scanners:               scanners,
		maxConsecutiveFailures: maxConsecutiveFailures,
	}
}

func (n *ScanNode) Type() string { return "scan" }

func (n *ScanNode) Validate(input map[string]interface{}) pipeline.ValidationResult {
	if c, ok := inputInt(input, "concurrency"); ok && c < 0 {
		return pipeline.Invalid("concurrency must not be negative")
	}
	return pipeline.ValidInput()
}

func (n *ScanNode) Execute(ctx context.Context, input map[string]interface{}, nc *pipeline.NodeContext) *pipeline.Result {
	w := nc.State.ResultWriter()
	if w == nil {
		return pipeline.Fail(pipeline.CodeScanError, "result writer not initialized")
	}

	products := nc.State.OriginalProducts()
	if len(products) == 0 {
		nc.Logger.Info().Str("platform", nc.Platform).Msg("No products to scan")
		return pipeline.OK(map[string]interface{}{"scanned": 0})
	}

	sc := n.scanners.Get(nc.Platform)
	if sc == nil {
		nc.Logger.Warn().
			Str("platform", nc.Platform).
			Msg("No scanner registered, using generic fallback")
		sc = scanner.NewFallbackScanner(nc.PlatformConfig)
	}

	maxFail := n.maxConsecutiveFailures
	if v, ok := nc.ConfigInt("max_consecutive_failures"); ok {
		maxFail = v
	}
	tolerance, _ := nc.ConfigFloat("price_tolerance_pct")
	requested, _ := inputInt(input, "concurrency")

	opts := engine.OptionsFromConfig(nc.PlatformConfig, requested, maxFail, tolerance)

	scanFn := func(ctx context.Context, product models.ProductSet, pg *browser.Page) (*models.ScannedData, error) {
		return sc.Scan(ctx, product.LinkURL, pg)
	}

	stats := n.coordinator.Run(ctx, nc.Platform, products, opts, scanFn, w.Append)

	data := map[string]interface{}{
		"scanned":        stats.Products,
		"batches":        stats.Batches,
		"failed_batches": stats.FailedBatches,
	}
	if stats.Batches > 0 && stats.FailedBatches == stats.Batches {
		return pipeline.FailWith(pipeline.CodeScanError, "all scan batches failed", data)
	}
	return pipeline.OK(data)
}
