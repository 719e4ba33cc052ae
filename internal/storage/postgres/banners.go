package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"

	"github.com/prodwatch/veriscan/internal/interfaces"
)

// BannerRepository reads the curated lists verified by the monitor node.
type BannerRepository struct {
	pool   *pgxpool.Pool
	logger arbor.ILogger
}

var _ interfaces.BannerRepository = (*BannerRepository)(nil)

func NewBannerRepository(pool *pgxpool.Pool, logger arbor.ILogger) *BannerRepository {
	return &BannerRepository{pool: pool, logger: logger}
}

// ActiveCollaboBanners returns collabo banners live at the given instant.
func (r *BannerRepository) ActiveCollaboBanners(ctx context.Context, now time.Time) ([]interfaces.BannerItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT cb.id, cb.product_set_id, ps.link_url, cb.start_date, cb.end_date
		FROM collabo_banners cb
		JOIN product_sets ps ON ps.product_set_id = cb.product_set_id
		WHERE cb.is_active = true
		  AND cb.start_date <= $1
		  AND cb.end_date >= $1
		ORDER BY cb.start_date`, now)
	if err != nil {
		return nil, fmt.Errorf("query collabo banners: %w", err)
	}
	defer rows.Close()

	return scanBanners(rows)
}

// ActiveBanners returns the currently displayed banner entries.
func (r *BannerRepository) ActiveBanners(ctx context.Context) ([]interfaces.BannerItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.id, b.product_set_id, ps.link_url, b.start_date, b.end_date
		FROM banners b
		JOIN product_sets ps ON ps.product_set_id = b.product_set_id
		WHERE b.is_active = true
		ORDER BY b.start_date`)
	if err != nil {
		return nil, fmt.Errorf("query banners: %w", err)
	}
	defer rows.Close()

	return scanBanners(rows)
}

// PickSectionItems returns the curated pick-section entries.
func (r *BannerRepository) PickSectionItems(ctx context.Context) ([]interfaces.BannerItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT pi.id, pi.product_set_id, ps.link_url, pi.start_date, pi.end_date
		FROM pick_section_items pi
		JOIN product_sets ps ON ps.product_set_id = pi.product_set_id
		WHERE pi.is_active = true
		ORDER BY pi.sort_order`)
	if err != nil {
		return nil, fmt.Errorf("query pick section items: %w", err)
	}
	defer rows.Close()

	return scanBanners(rows)
}

func scanBanners(rows pgx.Rows) ([]interfaces.BannerItem, error) {
	var out []interfaces.BannerItem
	for rows.Next() {
		var item interfaces.BannerItem
		var start, end *time.Time
		if err := rows.Scan(&item.ID, &item.ProductSetID, &item.LinkURL, &start, &end); err != nil {
			return nil, fmt.Errorf("scan banner row: %w", err)
		}
		if start != nil {
			item.StartDate = *start
		}
		if end != nil {
			item.EndDate = *end
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate banner rows: %w", err)
	}
	return out, nil
}
