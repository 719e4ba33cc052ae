package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/prodwatch/veriscan/internal/engine"
	"github.com/prodwatch/veriscan/internal/interfaces"
	"github.com/prodwatch/veriscan/internal/models"
	"github.com/prodwatch/veriscan/internal/pipeline"
	"github.com/prodwatch/veriscan/internal/platform"
	"github.com/prodwatch/veriscan/internal/scanner"
	"github.com/prodwatch/veriscan/internal/writer"
)

// Monitor sources.
const (
	sourceBanners      = "banners"
	sourcePickSections = "pick_sections"
	sourceCollabo      = "collabo_banners"
)

// MonitorNode verifies curated lists (banners, pick sections, collabo
// banners) instead of a catalog fetch. Every entry is scanned single-shot
// and streamed to a monitor-prefixed JSONL; entries that are missing or
// not on sale alert only while inside their own start/end window. The
// monitor never writes to the product DB.
type MonitorNode struct {
	pipeline.NoRollback
	banners    interfaces.BannerRepository
	platforms  *platform.Registry
	scanners   *scanner.Registry
	single     *engine.SingleScanner
	alerter    interfaces.Notifier
	resultsDir string
}

var _ pipeline.Node = (*MonitorNode)(nil)

func NewMonitorNode(banners interfaces.BannerRepository, platforms *platform.Registry, scanners *scanner.Registry, single *engine.SingleScanner, alerter interfaces.Notifier, resultsDir string) *MonitorNode {
	return &MonitorNode{
		banners:    banners,
		platforms:  platforms,
		scanners:   scanners,
		single:     single,
		alerter:    alerter,
		resultsDir: resultsDir,
	}
}

func (n *MonitorNode) Type() string { return "monitor" }

func (n *MonitorNode) Validate(input map[string]interface{}) pipeline.ValidationResult {
	return pipeline.ValidInput()
}

func (n *MonitorNode) Execute(ctx context.Context, input map[string]interface{}, nc *pipeline.NodeContext) *pipeline.Result {
	source, ok := nc.ConfigString("source")
	if !ok {
		return pipeline.Fail(pipeline.CodeMonitorError, "monitor source not configured")
	}

	items, err := n.loadItems(ctx, source)
	if err != nil {
		return pipeline.Fail(pipeline.CodeMonitorError, fmt.Sprintf("load %s: %v", source, err))
	}
	if len(items) == 0 {
		nc.Logger.Info().Str("source", source).Msg("No monitor items")
		return pipeline.OK(map[string]interface{}{"checked": 0, "alerts": 0})
	}

	w := writer.NewResultWriter(n.resultsDir, "monitor", nc.JobID, nc.Logger, writer.WithPrefix(source))
	if err := w.Initialize(); err != nil {
		return pipeline.Fail(pipeline.CodeMonitorError, fmt.Sprintf("initialize result writer: %v", err))
	}
	nc.State.SetResultWriter(w)

	excluded := make(map[string]bool)
	for _, p := range excludedPlatforms(nc) {
		excluded[p] = true
	}

	now := time.Now()
	var problems []monitorProblem
	checked := 0

	for _, item := range items {
		p := item.Platform
		if p == "" {
			p = n.platforms.DetectPlatform(item.LinkURL)
		}

		var rec *models.ComparisonRecord
		if p == "" {
			rec = singleRecord("", item.LinkURL, item.ProductSetID, nil,
				scanner.NewExtractionError("no platform matches url", nil))
		} else if cfg, cfgErr := n.platforms.Load(p); cfgErr != nil {
			rec = singleRecord(p, item.LinkURL, item.ProductSetID, nil,
				scanner.NewExtractionError("platform config unavailable", cfgErr))
		} else {
			data, scanErr := n.single.Scan(ctx, scannerFor(n.scanners, cfg), item.LinkURL)
			rec = singleRecord(p, item.LinkURL, item.ProductSetID, data, scanErr)
		}
		rec.ProductSetID = item.ProductSetID

		if err := w.Append(rec); err != nil {
			return pipeline.Fail(pipeline.CodeMonitorError, fmt.Sprintf("append record: %v", err))
		}
		checked++

		if problem := classifyProblem(item, rec); problem != "" && !excluded[p] && inWindow(item, now) {
			problems = append(problems, monitorProblem{item: item, platform: p, reason: problem})
		}
	}

	res, err := w.Finalize()
	if err != nil {
		return pipeline.Fail(pipeline.CodeMonitorError, fmt.Sprintf("finalize results: %v", err))
	}
	nc.State.SetSaveResult(res)

	if len(problems) > 0 {
		n.sendAlert(ctx, source, problems, res.FilePath, nc)
	}

	nc.Logger.Info().
		Str("source", source).
		Int("checked", checked).
		Int("alerts", len(problems)).
		Msg("Monitor run completed")

	return pipeline.OK(map[string]interface{}{
		"checked":   checked,
		"alerts":    len(problems),
		"file_path": res.FilePath,
	})
}

func (n *MonitorNode) loadItems(ctx context.Context, source string) ([]interfaces.BannerItem, error) {
	switch source {
	case sourceBanners:
		return n.banners.ActiveBanners(ctx)
	case sourcePickSections:
		return n.banners.PickSectionItems(ctx)
	case sourceCollabo:
		return n.banners.ActiveCollaboBanners(ctx, time.Now())
	}
	return nil, fmt.Errorf("unknown monitor source %q", source)
}

type monitorProblem struct {
	item     interfaces.BannerItem
	platform string
	reason   string
}

// classifyProblem returns a non-empty reason when the entry should alert.
func classifyProblem(item interfaces.BannerItem, rec *models.ComparisonRecord) string {
	switch rec.Status {
	case models.ScanStatusNotFound:
		return "product not found"
	case models.ScanStatusFailed:
		return "scan failed: " + rec.Error
	}
	if rec.Fetch != nil && rec.Fetch.SaleStatus != models.SaleStatusOnSale {
		return "not on sale: " + string(rec.Fetch.SaleStatus)
	}
	return ""
}

// inWindow reports whether the entry is inside its own start/end dates.
// Zero dates mean the entry is always live.
func inWindow(item interfaces.BannerItem, now time.Time) bool {
	if !item.StartDate.IsZero() && now.Before(item.StartDate) {
		return false
	}
	if !item.EndDate.IsZero() && now.After(item.EndDate) {
		return false
	}
	return true
}

func excludedPlatforms(nc *pipeline.NodeContext) []string {
	switch v := nc.Config["exclude_platforms"].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func (n *MonitorNode) sendAlert(ctx context.Context, source string, problems []monitorProblem, filePath string, nc *pipeline.NodeContext) {
	if n.alerter == nil {
		return
	}

	fields := make([]interfaces.NotificationField, 0, len(problems))
	for i, p := range problems {
		if i == 10 {
			fields = append(fields, interfaces.NotificationField{
				Title: "…",
				Value: fmt.Sprintf("and %d more", len(problems)-i),
			})
			break
		}
		fields = append(fields, interfaces.NotificationField{
			Title: p.item.LinkURL,
			Value: p.reason,
		})
	}

	alert := interfaces.Notification{
		Title:     fmt.Sprintf("Monitor Alert (%s)", source),
		Emoji:     "🚨",
		Platform:  source,
		JobID:     nc.JobID,
		Fields:    fields,
		FilePath:  filePath,
		Timestamp: time.Now(),
	}
	if err := n.alerter.Send(ctx, alert); err != nil {
		nc.Logger.Warn().Err(err).Str("source", source).Msg("Monitor alert delivery failed")
	}
}
