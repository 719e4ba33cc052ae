package nodes

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prodwatch/veriscan/internal/interfaces"
	"github.com/prodwatch/veriscan/internal/models"
	"github.com/prodwatch/veriscan/internal/pipeline"
	"github.com/prodwatch/veriscan/internal/writer"
)

const updateSampleSize = 5

// UpdateNode writes mismatched scan results back to the catalog. Only
// records with status=success and match=false are considered; fields listed
// in the platform's skip_fields never reach the payload. Every attempted
// row gets a review-history entry, and price changes get one canonical
// price-history row per day. History failures never fail the node.
type UpdateNode struct {
	pipeline.NoRollback
	products interfaces.ProductRepository
	history  interfaces.HistoryRepository
}

var _ pipeline.Node = (*UpdateNode)(nil)

func NewUpdateNode(products interfaces.ProductRepository, history interfaces.HistoryRepository) *UpdateNode {
	return &UpdateNode{products: products, history: history}
}

func (n *UpdateNode) Type() string { return "update" }

func (n *UpdateNode) Validate(input map[string]interface{}) pipeline.ValidationResult {
	return pipeline.ValidInput()
}

func (n *UpdateNode) Execute(ctx context.Context, input map[string]interface{}, nc *pipeline.NodeContext) *pipeline.Result {
	save := nc.State.SaveResult()
	if save == nil {
		return pipeline.Fail(pipeline.CodeUpdateError, "save result not published")
	}
	if save.RecordCount == 0 {
		return pipeline.OK(map[string]interface{}{"updated": 0, "attempted": 0})
	}

	records, err := writer.ReadRecords(save.FilePath)
	if err != nil {
		return pipeline.Fail(pipeline.CodeUpdateError, fmt.Sprintf("read results: %v", err))
	}

	skip := make(map[string]bool)
	for _, field := range nc.PlatformConfig.UpdateExclusions.SkipFields {
		skip[field] = true
	}

	audits := buildUpdates(records, skip)
	if len(audits) == 0 {
		nc.Logger.Info().Str("platform", nc.Platform).Msg("No product updates needed")
		return pipeline.OK(map[string]interface{}{"updated": 0, "attempted": 0})
	}

	// Rows whose every diverged column is excluded get no write, but they
	// stay in the audited set so the review history records the difference.
	var writes []interfaces.ProductUpdate
	for _, a := range audits {
		if len(a.update.Fields) > 0 {
			writes = append(writes, a.update)
		}
	}

	updated := 0
	var rowErrs []interfaces.UpdateRowError
	if len(writes) > 0 {
		updated, rowErrs, err = n.products.BatchUpdateProducts(ctx, writes)
		if err != nil {
			return pipeline.Fail(pipeline.CodeUpdateError, fmt.Sprintf("batch update: %v", err))
		}
	}
	failedIDs := make(map[string]bool, len(rowErrs))
	for _, re := range rowErrs {
		failedIDs[re.ProductSetID] = true
		nc.Logger.Warn().Err(re.Err).
			Str("product_set_id", re.ProductSetID).
			Msg("Product update failed")
	}

	n.recordHistory(ctx, audits, failedIDs, nc)
	n.verifySample(ctx, writes, failedIDs, nc)

	nc.Logger.Info().
		Str("platform", nc.Platform).
		Int("attempted", len(writes)).
		Int("audited", len(audits)).
		Int("updated", updated).
		Int("row_errors", len(rowErrs)).
		Msg("Product updates applied")

	return pipeline.OK(map[string]interface{}{
		"updated":    updated,
		"attempted":  len(writes),
		"audited":    len(audits),
		"row_errors": len(rowErrs),
	})
}

// auditedUpdate pairs the write payload with the full diverged column list,
// which is wider than the payload when exclusions apply.
type auditedUpdate struct {
	update   interfaces.ProductUpdate
	diverged []string
}

// buildUpdates turns mismatched records into write payloads holding only the
// diverged, non-excluded columns. A record diverging solely on excluded
// columns is kept with an empty payload for the audit trail.
func buildUpdates(records []*models.ComparisonRecord, skip map[string]bool) []auditedUpdate {
	var updates []auditedUpdate
	for _, rec := range records {
		if rec.Status != models.ScanStatusSuccess || rec.Match || rec.Fetch == nil || rec.DB == nil {
			continue
		}

		var diverged []string
		fields := make(map[string]interface{})
		if !rec.Comparison.ProductName {
			diverged = append(diverged, "product_name")
			if !skip["product_name"] {
				fields["product_name"] = rec.Fetch.ProductName
			}
		}
		if !rec.Comparison.Thumbnail {
			diverged = append(diverged, "thumbnail")
			if !skip["thumbnail"] {
				fields["thumbnail"] = rec.Fetch.Thumbnail
			}
		}
		if !rec.Comparison.OriginalPrice {
			diverged = append(diverged, "original_price")
			if !skip["original_price"] {
				fields["original_price"] = rec.Fetch.OriginalPrice
			}
		}
		if !rec.Comparison.DiscountedPrice {
			diverged = append(diverged, "discounted_price")
			if !skip["discounted_price"] {
				fields["discounted_price"] = rec.Fetch.DiscountedPrice
			}
		}
		if !rec.Comparison.SaleStatus {
			diverged = append(diverged, "sale_status")
			if !skip["sale_status"] {
				fields["sale_status"] = string(rec.Fetch.SaleStatus)
			}
		}
		if len(diverged) == 0 {
			continue
		}
		sort.Strings(diverged)

		updates = append(updates, auditedUpdate{
			update: interfaces.ProductUpdate{
				ProductSetID: rec.ProductSetID,
				Fields:       fields,
				Before:       rec.DB,
				After:        rec.Fetch,
			},
			diverged: diverged,
		})
	}
	return updates
}

// recordHistory writes the audit trail for every audited record: a review row
// always, a daily price row when a price column was written. Records whose
// diverged columns were all excluded carry an empty payload and land as
// "skipped".
func (n *UpdateNode) recordHistory(ctx context.Context, audits []auditedUpdate, failedIDs map[string]bool, nc *pipeline.NodeContext) {
	today := time.Now().Truncate(24 * time.Hour)

	for _, a := range audits {
		u := a.update
		status := "updated"
		switch {
		case failedIDs[u.ProductSetID]:
			status = "failed"
		case len(u.Fields) == 0:
			status = "skipped"
		}

		review := interfaces.ReviewHistory{
			ProductSetID: u.ProductSetID,
			LinkURL:      u.Before.LinkURL,
			Status:       status,
			Comment:      "auto validation: " + strings.Join(a.diverged, ", "),
			Before:       u.Before,
			After:        u.After,
		}
		if err := n.history.InsertReviewHistory(ctx, review); err != nil {
			nc.Logger.Warn().Err(err).
				Str("product_set_id", u.ProductSetID).
				Msg("Review history insert failed")
		}

		_, priceChanged := u.Fields["original_price"]
		if _, ok := u.Fields["discounted_price"]; ok {
			priceChanged = true
		}
		if !priceChanged || failedIDs[u.ProductSetID] {
			continue
		}
		price := interfaces.PriceHistory{
			ProductSetID:  u.ProductSetID,
			OriginalPrice: u.After.OriginalPrice,
			DiscountPrice: u.After.DiscountedPrice,
			BaseDate:      today,
		}
		if err := n.history.UpsertPriceHistory(ctx, price); err != nil {
			nc.Logger.Warn().Err(err).
				Str("product_set_id", u.ProductSetID).
				Msg("Price history upsert failed")
		}
	}
}

// verifySample re-reads up to updateSampleSize updated rows and logs any
// column that did not take the written value.
func (n *UpdateNode) verifySample(ctx context.Context, updates []interfaces.ProductUpdate, failedIDs map[string]bool, nc *pipeline.NodeContext) {
	var ids []string
	byID := make(map[string]interfaces.ProductUpdate)
	for _, u := range updates {
		if failedIDs[u.ProductSetID] {
			continue
		}
		ids = append(ids, u.ProductSetID)
		byID[u.ProductSetID] = u
		if len(ids) == updateSampleSize {
			break
		}
	}
	if len(ids) == 0 {
		return
	}

	rows, err := n.products.FindByIDs(ctx, ids)
	if err != nil {
		nc.Logger.Warn().Err(err).Msg("Update verification read failed")
		return
	}

	for _, row := range rows {
		u, ok := byID[row.ProductSetID]
		if !ok {
			continue
		}
		for field, want := range u.Fields {
			if got := fieldValue(&row, field); fmt.Sprint(got) != fmt.Sprint(want) {
				nc.Logger.Warn().
					Str("product_set_id", row.ProductSetID).
					Str("field", field).
					Str("want", fmt.Sprint(want)).
					Str("got", fmt.Sprint(got)).
					Msg("Update verification mismatch")
			}
		}
	}
}

func fieldValue(p *models.ProductSet, field string) interface{} {
	switch field {
	case "product_name":
		return p.ProductName
	case "thumbnail":
		return p.Thumbnail
	case "original_price":
		return p.OriginalPrice
	case "discounted_price":
		return p.DiscountedPrice
	case "sale_status":
		return string(p.SaleStatus)
	}
	return nil
}
