package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/prodwatch/veriscan/internal/models"
	"github.com/prodwatch/veriscan/internal/pipeline"
	"github.com/prodwatch/veriscan/internal/writer"
)

// ValidateNode applies field-level sanity checks over the records streamed so
// far. Violations are warnings by default; strict mode fails the job on any
// warning.
type ValidateNode struct {
	pipeline.NoRollback
}

var _ pipeline.Node = (*ValidateNode)(nil)

func NewValidateNode() *ValidateNode { return &ValidateNode{} }

func (n *ValidateNode) Type() string { return "validate" }

func (n *ValidateNode) Validate(input map[string]interface{}) pipeline.ValidationResult {
	return pipeline.ValidInput()
}

func (n *ValidateNode) Execute(ctx context.Context, input map[string]interface{}, nc *pipeline.NodeContext) *pipeline.Result {
	w := nc.State.ResultWriter()
	if w == nil {
		return pipeline.Fail(pipeline.CodeValidationError, "result writer not initialized")
	}
	if w.Path() == "" {
		return pipeline.OK(map[string]interface{}{"warnings": 0})
	}

	records, err := writer.ReadRecords(w.Path())
	if err != nil {
		return pipeline.Fail(pipeline.CodeValidationError, fmt.Sprintf("read records: %v", err))
	}

	var warnings []string
	for _, rec := range records {
		if rec.Status != models.ScanStatusSuccess || rec.Fetch == nil {
			continue
		}
		warnings = append(warnings, checkRecord(rec)...)
	}

	for _, warning := range warnings {
		nc.Logger.Warn().Str("platform", nc.Platform).Msg(warning)
	}

	strict := nc.ConfigBool("strict") || inputBool(input, "strict")
	if strict && len(warnings) > 0 {
		return pipeline.Fail(pipeline.CodeValidationError,
			fmt.Sprintf("%d validation warnings in strict mode: %s", len(warnings), strings.Join(warnings, "; ")))
	}

	return pipeline.OK(map[string]interface{}{"warnings": len(warnings)})
}

// checkRecord returns the sanity warnings for one successful record.
func checkRecord(rec *models.ComparisonRecord) []string {
	var out []string
	f := rec.Fetch
	id := rec.ProductSetID

	if f.ProductName == "" {
		out = append(out, fmt.Sprintf("product %s: empty product name", id))
	}
	if f.OriginalPrice < 0 || f.DiscountedPrice < 0 {
		out = append(out, fmt.Sprintf("product %s: negative price", id))
	}
	if f.OriginalPrice > 0 && f.DiscountedPrice > f.OriginalPrice {
		out = append(out, fmt.Sprintf("product %s: discounted price above original", id))
	}
	if _, ok := models.CanonicalSaleStatuses[f.SaleStatus]; !ok {
		out = append(out, fmt.Sprintf("product %s: unknown sale status %q", id, f.SaleStatus))
	}
	if f.Thumbnail != "" && !strings.HasPrefix(f.Thumbnail, "http://") && !strings.HasPrefix(f.Thumbnail, "https://") {
		out = append(out, fmt.Sprintf("product %s: thumbnail is not an absolute URL", id))
	}
	if f.SaleStatus == models.SaleStatusOnSale && f.DiscountedPrice == 0 {
		out = append(out, fmt.Sprintf("product %s: on sale with zero price", id))
	}
	if f.OriginalPrice > 0 && f.DiscountedPrice > 0 {
		discount := float64(f.OriginalPrice-f.DiscountedPrice) / float64(f.OriginalPrice) * 100
		if discount > 90 {
			out = append(out, fmt.Sprintf("product %s: discount rate %.0f%% over 90%%", id, discount))
		}
	}
	return out
}
