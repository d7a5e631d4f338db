package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/safar/go-shop-orders/internal/database"
	"github.com/safar/go-shop-orders/internal/inventory"
	"github.com/safar/go-shop-orders/internal/models"
	"github.com/shopspring/decimal"
)

// productSelect loads a product with its size and variant rows aggregated
// into JSON, so a batch of products costs one round trip.
const productSelect = `
	SELECT p.id, p.sku, p.name, p.image, p.category, p.price, p.discount, p.stock,
	       p.has_variants, p.requires_size, p.is_pod, p.pod_fields, p.is_active,
	       p.created_at, p.updated_at, p.version,
	       COALESCE((SELECT json_agg(json_build_object('size', s.size, 'stock', s.stock)
	                        ORDER BY s.position, s.size)
	                 FROM product_sizes s WHERE s.product_id = p.id), '[]'),
	       COALESCE((SELECT json_agg(json_build_object('name', v.name, 'sku', v.sku, 'price', v.price,
	                        'discount', v.discount, 'stock', v.stock, 'is_active', v.is_active)
	                        ORDER BY v.position, v.name)
	                 FROM product_variants v WHERE v.product_id = p.id), '[]')
	FROM products p`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var (
		p            models.Product
		stock        sql.NullInt64
		hasVariants  bool
		requiresSize bool
		sizesJSON    []byte
		variantsJSON []byte
	)
	err := row.Scan(
		&p.ID,
		&p.SKU,
		&p.Name,
		&p.Image,
		&p.Category,
		&p.Price,
		&p.Discount,
		&stock,
		&hasVariants,
		&requiresSize,
		&p.IsPOD,
		&p.PODFields,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.Version,
		&sizesJSON,
		&variantsJSON,
	)
	if err != nil {
		return nil, err
	}

	var sizes []models.SizeStock
	if err := json.Unmarshal(sizesJSON, &sizes); err != nil {
		return nil, fmt.Errorf("decode sizes of %s: %w", p.ID, err)
	}
	var variants []models.Variant
	if err := json.Unmarshal(variantsJSON, &variants); err != nil {
		return nil, fmt.Errorf("decode variants of %s: %w", p.ID, err)
	}

	var plain *int
	if stock.Valid {
		v := int(stock.Int64)
		plain = &v
	}
	p.Stock = models.ShapeFromFlags(hasVariants, requiresSize, plain, sizes, variants)

	return &p, nil
}

type NewProduct struct {
	SKU       string
	Name      string
	Image     string
	Category  string
	Price     decimal.Decimal
	Discount  decimal.Decimal
	Stock     *int
	Sizes     []models.SizeStock
	Variants  []models.Variant
	IsPOD     bool
	PODFields models.PODFields
}

func CreateProduct(ctx context.Context, db *sql.DB, np NewProduct) (*models.Product, error) {
	if np.IsPOD && len(np.PODFields) == 0 {
		return nil, fmt.Errorf("create product: print-on-demand product needs pod fields")
	}

	id := uuid.New()
	hasVariants := len(np.Variants) > 0
	requiresSize := !hasVariants && len(np.Sizes) > 0

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO products (id, sku, name, image, category, price, discount, stock,
			                       has_variants, requires_size, is_pod, pod_fields, created_at, updated_at, version)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW(), 1)`,
			id, np.SKU, np.Name, np.Image, np.Category, np.Price, np.Discount, np.Stock,
			hasVariants, requiresSize, np.IsPOD, np.PODFields)
		if err != nil {
			return fmt.Errorf("insert product: %w", err)
		}

		for i, s := range np.Sizes {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO product_sizes (product_id, size, stock, position) VALUES ($1, $2, $3, $4)`,
				id, s.Size, s.Stock, i)
			if err != nil {
				return fmt.Errorf("insert size %s: %w", s.Size, err)
			}
		}

		for i, v := range np.Variants {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO product_variants (product_id, name, sku, price, discount, stock, is_active, position)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				id, v.Name, v.SKU, v.Price, v.Discount, v.Stock, v.IsActive, i)
			if err != nil {
				return fmt.Errorf("insert variant %s: %w", v.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	return GetProduct(ctx, db, id)
}

func GetProduct(ctx context.Context, q database.Querier, id uuid.UUID) (*models.Product, error) {
	p, err := scanProduct(q.QueryRowContext(ctx, productSelect+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// FindProductsByIDs returns the products that exist among ids, in no
// particular order. Missing ids are simply absent from the result.
func FindProductsByIDs(ctx context.Context, q database.Querier, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	rows, err := q.QueryContext(ctx, productSelect+` WHERE p.id = ANY($1)`, pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

// DecrementStock is the conditional write behind the inventory committer:
// the counter only moves when it still covers the quantity.
func DecrementStock(ctx context.Context, q database.Querier, t inventory.Target) (int, bool, error) {
	var (
		query string
		args  []any
	)
	switch t.Kind {
	case inventory.TargetPlain:
		query = `UPDATE products
		         SET stock = stock - $1, updated_at = NOW(), version = version + 1
		         WHERE id = $2 AND stock >= $1
		         RETURNING stock`
		args = []any{t.Quantity, t.ProductID}
	case inventory.TargetSize:
		query = `UPDATE product_sizes
		         SET stock = stock - $1
		         WHERE product_id = $2 AND size = $3 AND stock >= $1
		         RETURNING stock`
		args = []any{t.Quantity, t.ProductID, t.Key}
	case inventory.TargetVariant:
		query = `UPDATE product_variants
		         SET stock = stock - $1
		         WHERE product_id = $2 AND name = $3 AND is_active AND stock >= $1
		         RETURNING stock`
		args = []any{t.Quantity, t.ProductID, t.Key}
	default:
		return 0, false, fmt.Errorf("unknown stock target kind %q", t.Kind)
	}

	var remaining int
	err := q.QueryRowContext(ctx, query, args...).Scan(&remaining)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("decrement stock: %w", err)
	}
	return remaining, true, nil
}

func RestockStock(ctx context.Context, q database.Querier, t inventory.Target) error {
	var (
		query string
		args  []any
	)
	switch t.Kind {
	case inventory.TargetPlain:
		query = `UPDATE products
		         SET stock = COALESCE(stock, 0) + $1, updated_at = NOW(), version = version + 1
		         WHERE id = $2`
		args = []any{t.Quantity, t.ProductID}
	case inventory.TargetSize:
		query = `UPDATE product_sizes SET stock = stock + $1 WHERE product_id = $2 AND size = $3`
		args = []any{t.Quantity, t.ProductID, t.Key}
	case inventory.TargetVariant:
		query = `UPDATE product_variants SET stock = stock + $1 WHERE product_id = $2 AND name = $3`
		args = []any{t.Quantity, t.ProductID, t.Key}
	default:
		return fmt.Errorf("unknown stock target kind %q", t.Kind)
	}

	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("restock: %w", err)
	}
	return nil
}
