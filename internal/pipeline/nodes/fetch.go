package nodes

import (
	"context"
	"fmt"

	"github.com/prodwatch/veriscan/internal/interfaces"
	"github.com/prodwatch/veriscan/internal/models"
	"github.com/prodwatch/veriscan/internal/pipeline"
	"github.com/prodwatch/veriscan/internal/writer"
)

const fetchPageSize = 500

// FetchNode reads the catalog rows for the job's platform, publishes them as
// original_products, and opens the job's streaming result writer.
type FetchNode struct {
	pipeline.NoRollback
	repo       interfaces.ProductRepository
	resultsDir string
	maxLimit   int
}

var _ pipeline.Node = (*FetchNode)(nil)

// NewFetchNode builds the fetch node. maxLimit caps a single job's row count
// even when the job requests no limit.
func NewFetchNode(repo interfaces.ProductRepository, resultsDir string, maxLimit int) *FetchNode {
	if maxLimit <= 0 {
		maxLimit = 5000
	}
	return &FetchNode{repo: repo, resultsDir: resultsDir, maxLimit: maxLimit}
}

func (n *FetchNode) Type() string { return "fetch" }

func (n *FetchNode) Validate(input map[string]interface{}) pipeline.ValidationResult {
	if limit, ok := inputInt(input, "limit"); ok && limit < 0 {
		return pipeline.Invalid("limit must not be negative")
	}
	return pipeline.ValidInput()
}

func (n *FetchNode) Execute(ctx context.Context, input map[string]interface{}, nc *pipeline.NodeContext) *pipeline.Result {
	products, err := n.fetch(ctx, input, nc)
	if err != nil {
		return pipeline.Fail(pipeline.CodeFetchError, err.Error())
	}

	w := writer.NewResultWriter(n.resultsDir, nc.Platform, nc.JobID, nc.Logger)
	if err := w.Initialize(); err != nil {
		return pipeline.Fail(pipeline.CodeFetchError, fmt.Sprintf("initialize result writer: %v", err))
	}

	nc.State.SetOriginalProducts(products)
	nc.State.SetResultWriter(w)

	nc.Logger.Info().
		Str("platform", nc.Platform).
		Int("products", len(products)).
		Msg("Products fetched")

	return pipeline.OK(map[string]interface{}{
		"product_count": len(products),
	})
}

// fetch resolves the row set: a single product_set_id when configured, or a
// paginated scan over the platform's link_url pattern otherwise.
func (n *FetchNode) fetch(ctx context.Context, input map[string]interface{}, nc *pipeline.NodeContext) ([]models.ProductSet, error) {
	if nc.ConfigBool("single") {
		id, ok := inputString(input, "product_set_id")
		if !ok || id == "" {
			return nil, fmt.Errorf("product_set_id is required for single fetch")
		}
		rows, err := n.repo.FindByIDs(ctx, []string{id})
		if err != nil {
			return nil, fmt.Errorf("find product %s: %w", id, err)
		}
		return rows, nil
	}

	filter := interfaces.ProductFilter{
		LinkURLPattern:     "%" + nc.PlatformConfig.URLPattern.Domain + "%",
		ExcludeAutoCrawled: inputBool(input, "exclude_auto_crawled"),
	}
	if status, ok := inputString(input, "sale_status"); ok && status != "" {
		filter.SaleStatus = models.SaleStatus(status)
	}
	if id, ok := inputString(input, "product_set_id"); ok && id != "" {
		filter.ProductSetID = id
	}

	cap := n.maxLimit
	if limit, ok := inputInt(input, "limit"); ok && limit > 0 && limit < cap {
		cap = limit
	}

	var all []models.ProductSet
	for len(all) < cap {
		filter.Limit = fetchPageSize
		if remaining := cap - len(all); remaining < filter.Limit {
			filter.Limit = remaining
		}
		filter.Offset = len(all)

		page, err := n.repo.FindProducts(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("find products: %w", err)
		}
		all = append(all, page...)
		if len(page) < filter.Limit {
			break
		}
	}
	return all, nil
}
