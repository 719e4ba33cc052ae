package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"

	"github.com/prodwatch/veriscan/internal/interfaces"
	"github.com/prodwatch/veriscan/internal/models"
)

// updatableColumns guards against field names reaching SQL from config or
// scan data.
var updatableColumns = map[string]bool{
	"product_name":     true,
	"thumbnail":        true,
	"original_price":   true,
	"discounted_price": true,
	"sale_status":      true,
}

// ProductRepository is the pgx implementation over product_sets.
type ProductRepository struct {
	pool   *pgxpool.Pool
	logger arbor.ILogger
}

var _ interfaces.ProductRepository = (*ProductRepository)(nil)

func NewProductRepository(pool *pgxpool.Pool, logger arbor.ILogger) *ProductRepository {
	return &ProductRepository{pool: pool, logger: logger}
}

const productColumns = `product_set_id, product_id, brand_id, link_url, product_name,
	thumbnail, original_price, discounted_price, sale_status, auto_crawled`

// FindProducts returns one page of catalog rows matching the filter, ordered
// by product_set_id for stable pagination.
func (r *ProductRepository) FindProducts(ctx context.Context, filter interfaces.ProductFilter) ([]models.ProductSet, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	add("link_url ILIKE $%d", filter.LinkURLPattern)
	if filter.SaleStatus != "" {
		add("sale_status = $%d", string(filter.SaleStatus))
	}
	if filter.ProductSetID != "" {
		add("product_set_id = $%d", filter.ProductSetID)
	}
	if filter.ExcludeAutoCrawled {
		conds = append(conds, "auto_crawled = false")
	}

	query := fmt.Sprintf(`SELECT %s FROM product_sets WHERE %s ORDER BY product_set_id`,
		productColumns, strings.Join(conds, " AND "))
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// FindByIDs loads specific rows by product_set_id.
func (r *ProductRepository) FindByIDs(ctx context.Context, productSetIDs []string) ([]models.ProductSet, error) {
	if len(productSetIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM product_sets WHERE product_set_id = ANY($1)`, productColumns)
	rows, err := r.pool.Query(ctx, query, productSetIDs)
	if err != nil {
		return nil, fmt.Errorf("query products by id: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// BatchUpdateProducts applies every update in one transaction. A failing row
// is reported through rowErrs and does not abort the remaining rows.
func (r *ProductRepository) BatchUpdateProducts(ctx context.Context, updates []interfaces.ProductUpdate) (int, []interfaces.UpdateRowError, error) {
	if len(updates) == 0 {
		return 0, nil, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("begin update tx: %w", err)
	}
	defer tx.Rollback(ctx)

	updated := 0
	var rowErrs []interfaces.UpdateRowError
	for _, u := range updates {
		if err := r.updateOne(ctx, tx, u); err != nil {
			rowErrs = append(rowErrs, interfaces.UpdateRowError{ProductSetID: u.ProductSetID, Err: err})
			continue
		}
		updated++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, nil, fmt.Errorf("commit update tx: %w", err)
	}
	return updated, rowErrs, nil
}

func (r *ProductRepository) updateOne(ctx context.Context, tx pgx.Tx, u interfaces.ProductUpdate) error {
	var (
		sets []string
		args []interface{}
	)
	for field, value := range u.Fields {
		if !updatableColumns[field] {
			return fmt.Errorf("unknown column %q", field)
		}
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", field, len(args)))
	}
	if len(sets) == 0 {
		return fmt.Errorf("empty update payload")
	}

	args = append(args, u.ProductSetID)
	query := fmt.Sprintf(`UPDATE product_sets SET %s, updated_at = now() WHERE product_set_id = $%d`,
		strings.Join(sets, ", "), len(args))

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("row not found")
	}
	return nil
}

func scanProducts(rows pgx.Rows) ([]models.ProductSet, error) {
	var out []models.ProductSet
	for rows.Next() {
		var p models.ProductSet
		if err := rows.Scan(
			&p.ProductSetID, &p.ProductID, &p.BrandID, &p.LinkURL, &p.ProductName,
			&p.Thumbnail, &p.OriginalPrice, &p.DiscountedPrice, &p.SaleStatus, &p.AutoCrawled,
		); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return out, nil
}

// asJSONB marshals a snapshot for the history JSONB columns.
func asJSONB(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}
