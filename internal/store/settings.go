package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/go-shop-orders/internal/database"
	"github.com/safar/go-shop-orders/internal/models"
)

func GetSiteSettings(ctx context.Context, q database.Querier) (*models.SiteSettings, error) {
	s := &models.SiteSettings{}

	err := q.QueryRowContext(ctx, `
		SELECT cod_enabled, cod_limit, delivery_charge, free_delivery_above, low_stock_threshold
		FROM site_settings
		WHERE id = 1`).Scan(
		&s.OrderSettings.CODEnabled,
		&s.OrderSettings.CODLimit,
		&s.OrderSettings.DeliveryCharge,
		&s.OrderSettings.FreeDeliveryAbove,
		&s.ProductSettings.LowStockThreshold,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrSettingsNotFound
		}
		return nil, fmt.Errorf("get site settings: %w", err)
	}

	return s, nil
}

func SaveSiteSettings(ctx context.Context, q database.Querier, s models.SiteSettings) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO site_settings (id, cod_enabled, cod_limit, delivery_charge, free_delivery_above, low_stock_threshold, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE SET
			cod_enabled = EXCLUDED.cod_enabled,
			cod_limit = EXCLUDED.cod_limit,
			delivery_charge = EXCLUDED.delivery_charge,
			free_delivery_above = EXCLUDED.free_delivery_above,
			low_stock_threshold = EXCLUDED.low_stock_threshold,
			updated_at = NOW()`,
		s.OrderSettings.CODEnabled, s.OrderSettings.CODLimit, s.OrderSettings.DeliveryCharge,
		s.OrderSettings.FreeDeliveryAbove, s.ProductSettings.LowStockThreshold)
	if err != nil {
		return fmt.Errorf("save site settings: %w", err)
	}
	return nil
}
