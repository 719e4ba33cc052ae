package interfaces

import (
	"context"
	"time"

	"github.com/prodwatch/veriscan/internal/models"
)

// ProductFilter narrows the catalog rows the Fetch node reads.
type ProductFilter struct {
	LinkURLPattern     string // ILIKE pattern, required
	SaleStatus         models.SaleStatus
	ProductSetID       string
	ExcludeAutoCrawled bool
	Limit              int // page size for one FindProducts call
	Offset             int
}

// ProductUpdate is one write-back payload built by the Update node. Fields
// holds only the columns that diverged and survived the platform's
// skip_fields exclusions.
type ProductUpdate struct {
	ProductSetID string
	Fields       map[string]interface{}
	Before       *models.ProductSet
	After        *models.ScannedData
}

// UpdateRowError is the per-row failure surfaced by BatchUpdateProducts.
type UpdateRowError struct {
	ProductSetID string
	Err          error
}

// ProductRepository reads and writes product_sets rows.
type ProductRepository interface {
	FindProducts(ctx context.Context, filter ProductFilter) ([]models.ProductSet, error)
	FindByIDs(ctx context.Context, productSetIDs []string) ([]models.ProductSet, error)
	// BatchUpdateProducts applies all updates; partial failure is expressed
	// through the returned row errors, not through the error value.
	BatchUpdateProducts(ctx context.Context, updates []ProductUpdate) (updated int, rowErrs []UpdateRowError, err error)
}

// ReviewHistory is one append-only audit row for an attempted update.
type ReviewHistory struct {
	ProductSetID string
	LinkURL      string
	Status       string
	Comment      string
	Before       *models.ProductSet
	After        *models.ScannedData
}

// PriceHistory is one canonical price point per product per day.
type PriceHistory struct {
	ProductSetID  string
	OriginalPrice int
	DiscountPrice int
	BaseDate      time.Time
}

// HistoryRepository records the audit trail of the Update node.
// Review rows are INSERT-only; price rows UPSERT on (product_set_id, base_dt).
type HistoryRepository interface {
	InsertReviewHistory(ctx context.Context, h ReviewHistory) error
	UpsertPriceHistory(ctx context.Context, h PriceHistory) error
}

// BannerItem is one curated entry monitored by the monitor pipelines.
type BannerItem struct {
	ID           string
	ProductSetID string
	LinkURL      string
	Platform     string
	StartDate    time.Time
	EndDate      time.Time
}

// BannerRepository reads the curated lists the monitor nodes verify.
type BannerRepository interface {
	ActiveCollaboBanners(ctx context.Context, now time.Time) ([]BannerItem, error)
	ActiveBanners(ctx context.Context) ([]BannerItem, error)
	PickSectionItems(ctx context.Context) ([]BannerItem, error)
}
