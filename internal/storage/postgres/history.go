package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"

	"github.com/prodwatch/veriscan/internal/interfaces"
)

// HistoryRepository persists the update audit trail.
type HistoryRepository struct {
	pool   *pgxpool.Pool
	logger arbor.ILogger
}

var _ interfaces.HistoryRepository = (*HistoryRepository)(nil)

func NewHistoryRepository(pool *pgxpool.Pool, logger arbor.ILogger) *HistoryRepository {
	return &HistoryRepository{pool: pool, logger: logger}
}

// InsertReviewHistory appends one review row. The table is INSERT-only.
func (r *HistoryRepository) InsertReviewHistory(ctx context.Context, h interfaces.ReviewHistory) error {
	before, err := asJSONB(h.Before)
	if err != nil {
		return err
	}
	after, err := asJSONB(h.After)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO history_product_review
			(product_set_id, link_url, status, comment, before_products, after_products, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`,
		h.ProductSetID, h.LinkURL, h.Status, h.Comment, before, after)
	if err != nil {
		return fmt.Errorf("insert review history: %w", err)
	}
	return nil
}

// UpsertPriceHistory keeps one canonical price row per product per day.
func (r *HistoryRepository) UpsertPriceHistory(ctx context.Context, h interfaces.PriceHistory) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO product_price_histories
			(product_set_id, original_price, discount_price, base_dt, recorded_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (product_set_id, base_dt)
		DO UPDATE SET original_price = EXCLUDED.original_price,
		              discount_price = EXCLUDED.discount_price,
		              recorded_at = now()`,
		h.ProductSetID, h.OriginalPrice, h.DiscountPrice, h.BaseDate)
	if err != nil {
		return fmt.Errorf("upsert price history: %w", err)
	}
	return nil
}
