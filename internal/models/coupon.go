package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DiscountPercent = "percent"
	DiscountFlat    = "flat"
)

type Coupon struct {
	Code                 string          `json:"code"`
	DiscountType         string          `json:"discount_type"`
	DiscountValue        decimal.Decimal `json:"discount_value"`
	MaxDiscount          decimal.Decimal `json:"max_discount"`
	MinOrderValue        decimal.Decimal `json:"min_order_value"`
	ValidFrom            *time.Time      `json:"valid_from,omitempty"`
	ValidTo              *time.Time      `json:"valid_to,omitempty"`
	UsageLimit           int             `json:"usage_limit"`
	UsedCount            int             `json:"used_count"`
	PerUserLimit         int             `json:"per_user_limit"`
	ApplicableCategories []string        `json:"applicable_categories,omitempty"`
	IsActive             bool            `json:"is_active"`
	CreatedAt            time.Time       `json:"created_at"`
}
