package order

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-shop-orders/internal/apperr"
	"github.com/safar/go-shop-orders/internal/coupon"
	"github.com/safar/go-shop-orders/internal/inventory"
	"github.com/safar/go-shop-orders/internal/models"
	"github.com/safar/go-shop-orders/internal/pricing"
	"github.com/shopspring/decimal"
)

// draft is a validated, priced order that has not been numbered or stored.
// Both creation paths produce one and hand it to assemble.
type draft struct {
	items       []models.OrderItem
	targets     []inventory.Target
	couponLines []coupon.Line

	subtotal decimal.Decimal
	delivery decimal.Decimal
	discount decimal.Decimal
	total    decimal.Decimal
	coupon   models.CouponSnapshot
}

// add records one item and the counter it draws from. Selector fields that
// the product's stock shape ignores are dropped so the stored item names
// exactly the counter that was decremented.
func (d *draft) add(item models.OrderItem, kind inventory.TargetKind) {
	var key string
	switch kind {
	case inventory.TargetSize:
		item.SelectedVariant = ""
		key = item.SelectedSize
	case inventory.TargetVariant:
		item.SelectedSize = ""
		key = item.SelectedVariant
	default:
		item.SelectedSize = ""
		item.SelectedVariant = ""
	}
	item.Subtotal = pricing.LineTotal(item.UnitPrice, item.Quantity)

	d.items = append(d.items, item)
	d.targets = append(d.targets, inventory.Target{
		Kind:      kind,
		ProductID: item.ProductID,
		Key:       key,
		Quantity:  item.Quantity,
	})
}

type checkout struct {
	lines      []RawLine
	method     models.PaymentMethod
	couponCode string
	finalTotal *decimal.Decimal
}

// build runs the validation and pricing steps shared by every path that
// creates an order: line normalisation, one batched product fetch, stock
// resolution, totals, coupon and cash on delivery policy. Nothing is
// written.
func (s *Service) build(ctx context.Context, userID uuid.UUID, c checkout, st models.SiteSettings) (*draft, error) {
	lines, err := normalizeLines(c.lines)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		cart, err := s.repo.ListCart(ctx, userID)
		if err != nil {
			return nil, err
		}
		lines = cartLines(cart)
	}
	if len(lines) == 0 {
		return nil, apperr.Validation("No items to order")
	}

	ids := make([]uuid.UUID, 0, len(lines))
	seen := make(map[uuid.UUID]bool, len(lines))
	for _, l := range lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}

	products, err := s.repo.FindProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	d := &draft{}
	demand := make(map[string]inventory.Line)
	for _, line := range lines {
		p, ok := byID[line.ProductID]
		if !ok {
			return nil, apperr.NotFound("Product %s not found", line.ProductID)
		}
		if !p.IsActive {
			return nil, apperr.Validation("%s is no longer available", p.Name)
		}

		res, err := inventory.Resolve(p, line)
		if err != nil {
			return nil, err
		}

		d.add(models.OrderItem{
			ProductID:       p.ID,
			Name:            p.Name,
			Image:           p.Image,
			UnitPrice:       res.UnitPrice,
			Quantity:        line.Quantity,
			SelectedSize:    line.SelectedSize,
			SelectedVariant: line.SelectedVariant,
			PODData:         line.PODData,
		}, res.Target.Kind)
		d.couponLines = append(d.couponLines, coupon.Line{
			ProductID: p.ID,
			Category:  p.Category,
			UnitPrice: res.UnitPrice,
			Quantity:  line.Quantity,
		})

		key := res.Target.String()
		if prev, ok := demand[key]; ok {
			prev.Quantity += line.Quantity
			demand[key] = prev
		} else {
			demand[key] = line
		}
	}

	// Lines that share a counter must fit together, not only one by one.
	if len(demand) < len(lines) {
		for _, line := range demand {
			if _, err := inventory.Resolve(byID[line.ProductID], line); err != nil {
				return nil, err
			}
		}
	}

	d.subtotal = decimal.Zero
	for _, item := range d.items {
		d.subtotal = d.subtotal.Add(item.Subtotal)
	}
	d.delivery = deliveryCharge(st.OrderSettings, d.subtotal)
	d.discount = decimal.Zero

	if c.couponCode != "" {
		res, err := s.coupons.Apply(ctx, c.couponCode, userID, d.subtotal, d.couponLines)
		if err != nil {
			return nil, err
		}
		d.discount = res.DiscountAmount
		d.coupon = res.Coupon
	}

	if s.cfg.TrustClientTotal && c.finalTotal != nil {
		if c.finalTotal.IsNegative() {
			return nil, apperr.Validation("final total cannot be negative")
		}
		d.total = *c.finalTotal
	} else {
		d.total = d.subtotal.Add(d.delivery).Sub(d.discount)
		if d.total.IsNegative() {
			d.total = decimal.Zero
		}
	}

	if err := checkCOD(c.method, d.total, st.OrderSettings); err != nil {
		return nil, err
	}
	return d, nil
}

func deliveryCharge(st models.OrderSettings, subtotal decimal.Decimal) decimal.Decimal {
	if st.FreeDeliveryAbove.IsPositive() && subtotal.GreaterThanOrEqual(st.FreeDeliveryAbove) {
		return decimal.Zero
	}
	return st.DeliveryCharge
}

func checkCOD(method models.PaymentMethod, total decimal.Decimal, st models.OrderSettings) error {
	if method != models.PaymentCOD {
		return nil
	}
	if !st.CODEnabled {
		return apperr.New(apperr.KindPaymentPolicy, apperr.CodeCODDisabled,
			"Cash on delivery is currently unavailable")
	}
	if st.CODLimit.IsPositive() && total.GreaterThan(st.CODLimit) {
		return apperr.Newf(apperr.KindPaymentPolicy, apperr.CodeCODLimitExceeded,
			"Cash on delivery is available for orders up to %s", st.CODLimit.StringFixed(2))
	}
	return nil
}

type placement struct {
	number        string
	address       models.Address
	method        models.PaymentMethod
	paymentStatus models.PaymentStatus
	paymentInfo   models.PaymentInfo
	sessionID     string
	actor         *uuid.UUID
	now           time.Time
}

// assemble produces the order document for d. Everything that differs
// between the two creation paths comes in through p.
func assemble(userID uuid.UUID, d *draft, p placement) *models.Order {
	items := make([]models.OrderItem, len(d.items))
	copy(items, d.items)

	return &models.Order{
		ID:               uuid.New(),
		OrderNumber:      p.number,
		UserID:           userID,
		Items:            items,
		ShippingAddress:  p.address,
		PaymentMethod:    p.method,
		PaymentStatus:    p.paymentStatus,
		PaymentInfo:      p.paymentInfo,
		PaymentSessionID: p.sessionID,
		OrderStatus:      models.OrderStatusPending,
		Subtotal:         d.subtotal,
		DeliveryCharge:   d.delivery,
		DiscountAmount:   d.discount,
		TotalPrice:       d.total,
		Coupon:           d.coupon,
		StatusHistory: []models.StatusHistoryEntry{{
			Status:    models.OrderStatusPending,
			Note:      "Order placed",
			UpdatedAt: p.now,
			UpdatedBy: p.actor,
		}},
		CreatedAt: p.now,
		UpdatedAt: p.now,
	}
}

func normalizeAddress(a models.Address) (models.Address, error) {
	trim := strings.TrimSpace
	a = models.Address{
		FullName:     trim(a.FullName),
		Phone:        trim(a.Phone),
		AddressLine1: trim(a.AddressLine1),
		AddressLine2: trim(a.AddressLine2),
		City:         trim(a.City),
		State:        trim(a.State),
		PostalCode:   trim(a.PostalCode),
		Country:      trim(a.Country),
	}

	required := []struct{ name, value string }{
		{"full name", a.FullName},
		{"phone", a.Phone},
		{"address line 1", a.AddressLine1},
		{"city", a.City},
		{"state", a.State},
		{"postal code", a.PostalCode},
	}
	for _, f := range required {
		if f.value == "" {
			return a, apperr.Validation("shipping address %s is required", f.name)
		}
	}
	return a, nil
}
