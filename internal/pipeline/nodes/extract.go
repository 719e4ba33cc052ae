package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/prodwatch/veriscan/internal/engine"
	"github.com/prodwatch/veriscan/internal/models"
	"github.com/prodwatch/veriscan/internal/pipeline"
	"github.com/prodwatch/veriscan/internal/platform"
	"github.com/prodwatch/veriscan/internal/scanner"
	"github.com/prodwatch/veriscan/internal/writer"
)

// ExtractURLNode scans one ad-hoc product URL: platform detection, a single
// short-lived scan, one record. No catalog fetch and no comparison.
type ExtractURLNode struct {
	pipeline.NoRollback
	platforms  *platform.Registry
	scanners   *scanner.Registry
	single     *engine.SingleScanner
	resultsDir string
}

var _ pipeline.Node = (*ExtractURLNode)(nil)

func NewExtractURLNode(platforms *platform.Registry, scanners *scanner.Registry, single *engine.SingleScanner, resultsDir string) *ExtractURLNode {
	return &ExtractURLNode{platforms: platforms, scanners: scanners, single: single, resultsDir: resultsDir}
}

func (n *ExtractURLNode) Type() string { return "extract_url" }

func (n *ExtractURLNode) Validate(input map[string]interface{}) pipeline.ValidationResult {
	if url, ok := inputString(input, "url"); !ok || url == "" {
		return pipeline.Invalid("url is required")
	}
	return pipeline.ValidInput()
}

func (n *ExtractURLNode) Execute(ctx context.Context, input map[string]interface{}, nc *pipeline.NodeContext) *pipeline.Result {
	url, _ := inputString(input, "url")

	p := n.platforms.DetectPlatform(url)
	if p == "" {
		return pipeline.Fail(pipeline.CodeExtractError, fmt.Sprintf("no platform matches url %s", url))
	}
	cfg, err := n.platforms.Load(p)
	if err != nil {
		return pipeline.Fail(pipeline.CodeConfigMissing, err.Error())
	}

	w := writer.NewResultWriter(n.resultsDir, p, nc.JobID, nc.Logger, writer.WithPrefix("extract"))
	if err := w.Initialize(); err != nil {
		return pipeline.Fail(pipeline.CodeExtractError, fmt.Sprintf("initialize result writer: %v", err))
	}
	nc.State.SetResultWriter(w)

	data, scanErr := n.single.Scan(ctx, scannerFor(n.scanners, cfg), url)
	rec := singleRecord(p, url, n.platforms.ExtractProductID(url, p), data, scanErr)
	if err := w.Append(rec); err != nil {
		return pipeline.Fail(pipeline.CodeExtractError, fmt.Sprintf("append record: %v", err))
	}

	return pipeline.OK(map[string]interface{}{
		"platform": p,
		"status":   string(rec.Status),
	})
}

// ExtractMultiNode scans one product_id across several platforms by building
// each platform's detail URL.
type ExtractMultiNode struct {
	pipeline.NoRollback
	platforms  *platform.Registry
	scanners   *scanner.Registry
	single     *engine.SingleScanner
	resultsDir string
}

var _ pipeline.Node = (*ExtractMultiNode)(nil)

func NewExtractMultiNode(platforms *platform.Registry, scanners *scanner.Registry, single *engine.SingleScanner, resultsDir string) *ExtractMultiNode {
	return &ExtractMultiNode{platforms: platforms, scanners: scanners, single: single, resultsDir: resultsDir}
}

func (n *ExtractMultiNode) Type() string { return "extract_multi" }

func (n *ExtractMultiNode) Validate(input map[string]interface{}) pipeline.ValidationResult {
	if id, ok := inputString(input, "product_id"); !ok || id == "" {
		return pipeline.Invalid("product_id is required")
	}
	return pipeline.ValidInput()
}

func (n *ExtractMultiNode) Execute(ctx context.Context, input map[string]interface{}, nc *pipeline.NodeContext) *pipeline.Result {
	productID, _ := inputString(input, "product_id")

	targets := inputStrings(input, "platforms")
	if len(targets) == 0 {
		targets = n.platforms.Platforms()
	}

	w := writer.NewResultWriter(n.resultsDir, "multi", nc.JobID, nc.Logger, writer.WithPrefix("extract"))
	if err := w.Initialize(); err != nil {
		return pipeline.Fail(pipeline.CodeExtractError, fmt.Sprintf("initialize result writer: %v", err))
	}
	nc.State.SetResultWriter(w)

	scanned := 0
	for _, p := range targets {
		cfg, err := n.platforms.Load(p)
		if err != nil {
			nc.Logger.Warn().Err(err).Str("platform", p).Msg("Skipping unknown platform")
			continue
		}
		url := n.platforms.BuildDetailURL(productID, p)
		if url == "" {
			nc.Logger.Warn().Str("platform", p).Msg("Platform has no detail URL template")
			continue
		}

		data, scanErr := n.single.Scan(ctx, scannerFor(n.scanners, cfg), url)
		rec := singleRecord(p, url, productID, data, scanErr)
		if err := w.Append(rec); err != nil {
			return pipeline.Fail(pipeline.CodeExtractError, fmt.Sprintf("append record: %v", err))
		}
		scanned++
	}

	return pipeline.OK(map[string]interface{}{
		"product_id": productID,
		"scanned":    scanned,
	})
}

// singleRecord builds a comparison-free record for ad-hoc and monitor scans.
func singleRecord(platformName, url, productID string, data *models.ScannedData, scanErr error) *models.ComparisonRecord {
	rec := &models.ComparisonRecord{
		ProductID:   productID,
		URL:         url,
		Platform:    platformName,
		Fetch:       data,
		ValidatedAt: time.Now(),
	}
	switch {
	case scanErr == nil && data != nil:
		rec.Status = models.ScanStatusSuccess
	case scanner.IsNotFound(scanErr):
		rec.Status = models.ScanStatusNotFound
	default:
		rec.Status = models.ScanStatusFailed
		if scanErr != nil {
			rec.Error = scanErr.Error()
		} else {
			rec.Error = "no data extracted"
		}
	}
	return rec
}
