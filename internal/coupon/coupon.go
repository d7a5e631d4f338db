// Package coupon decides whether a coupon applies to an order and how much
// it takes off.
package coupon

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-shop-orders/internal/apperr"
	"github.com/safar/go-shop-orders/internal/database"
	"github.com/safar/go-shop-orders/internal/models"
	"github.com/shopspring/decimal"
)

type Source interface {
	GetCoupon(ctx context.Context, code string) (*models.Coupon, error)
	CountUserCouponUses(ctx context.Context, userID uuid.UUID, code string) (int, error)
}

// Line carries the live product data the eligibility rules look at.
type Line struct {
	ProductID uuid.UUID
	Category  string
	UnitPrice decimal.Decimal
	Quantity  int
}

func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Result struct {
	Coupon         models.CouponSnapshot
	DiscountAmount decimal.Decimal
	FinalTotal     decimal.Decimal
}

type Applier struct {
	source Source
	now    func() time.Time
}

func NewApplier(source Source) *Applier {
	return &Applier{source: source, now: time.Now}
}

// Apply loads code and evaluates it for userID's order. Every rejection is a
// Coupon error whose message can be shown to the shopper as is.
func (a *Applier) Apply(ctx context.Context, code string, userID uuid.UUID, subtotal decimal.Decimal, lines []Line) (Result, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Result{}, invalid("Coupon code is required")
	}

	c, err := a.source.GetCoupon(ctx, code)
	if err != nil {
		if errors.Is(err, database.ErrCouponNotFound) {
			return Result{}, invalid("Invalid coupon code")
		}
		return Result{}, err
	}

	uses := 0
	if c.PerUserLimit > 0 {
		uses, err = a.source.CountUserCouponUses(ctx, userID, c.Code)
		if err != nil {
			return Result{}, err
		}
	}

	discount, err := Evaluate(c, uses, subtotal, lines, a.now())
	if err != nil {
		return Result{}, err
	}

	return Result{
		Coupon: models.CouponSnapshot{
			Code:           c.Code,
			DiscountType:   c.DiscountType,
			DiscountValue:  c.DiscountValue,
			DiscountAmount: discount,
		},
		DiscountAmount: discount,
		FinalTotal:     subtotal.Sub(discount),
	}, nil
}

// Evaluate applies the coupon rules to an order. uses is how many of the
// shopper's orders already carry the coupon.
func Evaluate(c *models.Coupon, uses int, subtotal decimal.Decimal, lines []Line, now time.Time) (decimal.Decimal, error) {
	if !c.IsActive {
		return decimal.Zero, invalid("Invalid coupon code")
	}
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return decimal.Zero, invalid("Coupon " + c.Code + " is not active yet")
	}
	if c.ValidTo != nil && now.After(*c.ValidTo) {
		return decimal.Zero, invalid("Coupon " + c.Code + " has expired")
	}
	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		return decimal.Zero, invalid("Coupon " + c.Code + " has reached its usage limit")
	}
	if c.PerUserLimit > 0 && uses >= c.PerUserLimit {
		return decimal.Zero, invalid("You have already used coupon " + c.Code)
	}
	if c.MinOrderValue.IsPositive() && subtotal.LessThan(c.MinOrderValue) {
		return decimal.Zero, apperr.Newf(apperr.KindCoupon, apperr.CodeCouponInvalid,
			"Minimum order value of %s is required for coupon %s", c.MinOrderValue.StringFixed(2), c.Code)
	}

	eligible := subtotal
	if len(c.ApplicableCategories) > 0 {
		eligible = eligibleSubtotal(c.ApplicableCategories, lines)
		if !eligible.IsPositive() {
			return decimal.Zero, invalid("Coupon " + c.Code + " is not applicable to the items in your cart")
		}
	}

	var discount decimal.Decimal
	switch c.DiscountType {
	case models.DiscountPercent:
		discount = eligible.Mul(c.DiscountValue).Div(decimal.NewFromInt(100)).Round(2)
		if c.MaxDiscount.IsPositive() && discount.GreaterThan(c.MaxDiscount) {
			discount = c.MaxDiscount
		}
	case models.DiscountFlat:
		discount = c.DiscountValue
	default:
		return decimal.Zero, invalid("Invalid coupon code")
	}

	if discount.GreaterThan(eligible) {
		discount = eligible
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return discount, nil
}

func eligibleSubtotal(categories []string, lines []Line) decimal.Decimal {
	allowed := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		allowed[strings.ToLower(c)] = struct{}{}
	}

	total := decimal.Zero
	for _, l := range lines {
		if _, ok := allowed[strings.ToLower(l.Category)]; ok {
			total = total.Add(l.Total())
		}
	}
	return total
}

func invalid(msg string) error {
	return apperr.New(apperr.KindCoupon, apperr.CodeCouponInvalid, msg)
}
