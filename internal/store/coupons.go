package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/safar/go-shop-orders/internal/database"
	"github.com/safar/go-shop-orders/internal/models"
)

func CreateCoupon(ctx context.Context, q database.Querier, c models.Coupon) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO coupons (code, discount_type, discount_value, max_discount, min_order_value,
		                     valid_from, valid_to, usage_limit, used_count, per_user_limit,
		                     applicable_categories, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())`,
		strings.ToUpper(c.Code), c.DiscountType, c.DiscountValue, c.MaxDiscount, c.MinOrderValue,
		c.ValidFrom, c.ValidTo, c.UsageLimit, c.UsedCount, c.PerUserLimit,
		pq.Array(c.ApplicableCategories), c.IsActive)
	if err != nil {
		return fmt.Errorf("create coupon: %w", err)
	}
	return nil
}

// GetCoupon looks codes up case-insensitively; they are stored upper-case.
func GetCoupon(ctx context.Context, q database.Querier, code string) (*models.Coupon, error) {
	c := &models.Coupon{}

	err := q.QueryRowContext(ctx, `
		SELECT code, discount_type, discount_value, max_discount, min_order_value,
		       valid_from, valid_to, usage_limit, used_count, per_user_limit,
		       applicable_categories, is_active, created_at
		FROM coupons
		WHERE code = $1`, strings.ToUpper(strings.TrimSpace(code))).Scan(
		&c.Code,
		&c.DiscountType,
		&c.DiscountValue,
		&c.MaxDiscount,
		&c.MinOrderValue,
		&c.ValidFrom,
		&c.ValidTo,
		&c.UsageLimit,
		&c.UsedCount,
		&c.PerUserLimit,
		pq.Array(&c.ApplicableCategories),
		&c.IsActive,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCouponNotFound
		}
		return nil, fmt.Errorf("get coupon: %w", err)
	}

	return c, nil
}

// CountUserCouponUses counts the user's non-cancelled orders that carry code.
func CountUserCouponUses(ctx context.Context, q database.Querier, userID uuid.UUID, code string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM orders
		WHERE user_id = $1 AND coupon ->> 'code' = $2 AND order_status <> 'Cancelled'`,
		userID, strings.ToUpper(strings.TrimSpace(code))).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count coupon uses: %w", err)
	}
	return n, nil
}

// ConsumeCoupon bumps the usage counter unless the usage limit is already
// reached. It reports whether the counter moved.
func ConsumeCoupon(ctx context.Context, q database.Querier, code string) (bool, error) {
	result, err := q.ExecContext(ctx, `
		UPDATE coupons
		SET used_count = used_count + 1
		WHERE code = $1 AND (usage_limit = 0 OR used_count < usage_limit)`,
		strings.ToUpper(code))
	if err != nil {
		return false, fmt.Errorf("consume coupon: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

// RecordCouponUse bumps the usage counter without the limit guard. It is
// used for orders the customer has already paid for.
func RecordCouponUse(ctx context.Context, q database.Querier, code string) error {
	_, err := q.ExecContext(ctx, `
		UPDATE coupons SET used_count = used_count + 1 WHERE code = $1`,
		strings.ToUpper(code))
	if err != nil {
		return fmt.Errorf("record coupon use: %w", err)
	}
	return nil
}

// ReleaseCoupon gives one use back when an order carrying code is cancelled.
func ReleaseCoupon(ctx context.Context, q database.Querier, code string) error {
	_, err := q.ExecContext(ctx, `
		UPDATE coupons SET used_count = used_count - 1 WHERE code = $1 AND used_count > 0`,
		strings.ToUpper(code))
	if err != nil {
		return fmt.Errorf("release coupon: %w", err)
	}
	return nil
}
