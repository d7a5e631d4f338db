package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/safar/go-shop-orders/internal/database"
	"github.com/safar/go-shop-orders/internal/models"
)

// UpsertCartLine adds quantity to the user's line for the same product and
// selection, creating it if needed.
func UpsertCartLine(ctx context.Context, q database.Querier, line models.CartLine) (*models.CartLine, error) {
	out := &models.CartLine{}

	query := `
		INSERT INTO cart_items (id, user_id, product_id, quantity, selected_size, selected_variant, pod_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT ON CONSTRAINT cart_items_line_key
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, pod_data = EXCLUDED.pod_data
		RETURNING id, user_id, product_id, quantity, selected_size, selected_variant, pod_data, created_at`

	err := q.QueryRowContext(ctx, query,
		uuid.New(), line.UserID, line.ProductID, line.Quantity, line.SelectedSize, line.SelectedVariant, line.PODData,
	).Scan(
		&out.ID,
		&out.UserID,
		&out.ProductID,
		&out.Quantity,
		&out.SelectedSize,
		&out.SelectedVariant,
		&out.PODData,
		&out.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert cart line: %w", err)
	}

	return out, nil
}

func ListCart(ctx context.Context, q database.Querier, userID uuid.UUID) ([]models.CartLine, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, user_id, product_id, quantity, selected_size, selected_variant, pod_data, created_at
		FROM cart_items
		WHERE user_id = $1
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	defer rows.Close()

	var lines []models.CartLine
	for rows.Next() {
		var l models.CartLine
		if err := rows.Scan(
			&l.ID,
			&l.UserID,
			&l.ProductID,
			&l.Quantity,
			&l.SelectedSize,
			&l.SelectedVariant,
			&l.PODData,
			&l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return lines, nil
}

func ClearCart(ctx context.Context, q database.Querier, userID uuid.UUID) (int64, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("clear cart: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return n, nil
}
