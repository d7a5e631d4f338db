// Package inventory decides whether an order line can be served from a
// product's stock and commits the matching conditional decrements.
package inventory

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/safar/go-shop-orders/internal/apperr"
	"github.com/safar/go-shop-orders/internal/models"
	"github.com/safar/go-shop-orders/internal/pricing"
	"github.com/shopspring/decimal"
)

type Line struct {
	ProductID       uuid.UUID
	Quantity        int
	SelectedSize    string
	SelectedVariant string
	PODData         models.PODData
}

type TargetKind string

const (
	TargetPlain   TargetKind = "plain"
	TargetSize    TargetKind = "size"
	TargetVariant TargetKind = "variant"
)

// Target names the stock counter a line draws from: the product row, one
// size row or one variant row.
type Target struct {
	Kind      TargetKind `json:"kind"`
	ProductID uuid.UUID  `json:"product_id"`
	Key       string     `json:"key,omitempty"`
	Quantity  int        `json:"quantity"`
}

func (t Target) String() string {
	if t.Key == "" {
		return fmt.Sprintf("%s/%s", t.Kind, t.ProductID)
	}
	return fmt.Sprintf("%s/%s/%s", t.Kind, t.ProductID, t.Key)
}

type Resolution struct {
	UnitPrice decimal.Decimal
	Target    Target
}

// Resolve checks line against the product's current stock and returns the
// unit price and the counter to decrement. Exactly one branch applies, picked
// by the product's stock shape.
func Resolve(p *models.Product, line Line) (Resolution, error) {
	if line.Quantity < 1 {
		return Resolution{}, apperr.Validation("quantity for %s must be at least 1", p.Name)
	}

	var res Resolution
	switch shape := p.Stock.(type) {
	case models.VariantStock:
		v, err := resolveVariant(p, shape, line)
		if err != nil {
			return Resolution{}, err
		}
		res = Resolution{
			UnitPrice: pricing.UnitPrice(v.Price, v.Discount),
			Target:    Target{Kind: TargetVariant, ProductID: p.ID, Key: v.Name, Quantity: line.Quantity},
		}
	case models.SizedStock:
		s, err := resolveSize(p, shape, line)
		if err != nil {
			return Resolution{}, err
		}
		res = Resolution{
			UnitPrice: pricing.UnitPrice(p.Price, p.Discount),
			Target:    Target{Kind: TargetSize, ProductID: p.ID, Key: s.Size, Quantity: line.Quantity},
		}
	case models.PlainStock:
		if available := shape.Available(); available < line.Quantity {
			return Resolution{}, insufficient(p.Name, "", available)
		}
		res = Resolution{
			UnitPrice: pricing.UnitPrice(p.Price, p.Discount),
			Target:    Target{Kind: TargetPlain, ProductID: p.ID, Quantity: line.Quantity},
		}
	default:
		return Resolution{}, fmt.Errorf("product %s has no stock shape", p.ID)
	}

	if p.IsPOD {
		if err := ValidatePOD(p.Name, p.PODFields, line.PODData); err != nil {
			return Resolution{}, err
		}
	}

	return res, nil
}

func resolveVariant(p *models.Product, shape models.VariantStock, line Line) (models.Variant, error) {
	if line.SelectedVariant == "" {
		return models.Variant{}, apperr.Newf(apperr.KindStock, apperr.CodeVariantRequired,
			"Please select a variant for %s", p.Name)
	}
	for _, v := range shape.Variants {
		if v.Name != line.SelectedVariant {
			continue
		}
		if !v.IsActive {
			return models.Variant{}, apperr.Newf(apperr.KindStock, apperr.CodeVariantInactive,
				"Variant %q of %s is not available", v.Name, p.Name)
		}
		if v.Stock < line.Quantity {
			return models.Variant{}, insufficient(p.Name, "variant "+v.Name, v.Stock)
		}
		return v, nil
	}
	return models.Variant{}, apperr.Newf(apperr.KindStock, apperr.CodeVariantNotFound,
		"Variant %q not found for %s", line.SelectedVariant, p.Name)
}

func resolveSize(p *models.Product, shape models.SizedStock, line Line) (models.SizeStock, error) {
	if line.SelectedSize == "" {
		return models.SizeStock{}, apperr.Newf(apperr.KindStock, apperr.CodeSizeRequired,
			"Please select a size for %s", p.Name)
	}
	for _, s := range shape.Sizes {
		if s.Size != line.SelectedSize {
			continue
		}
		if s.Stock < line.Quantity {
			return models.SizeStock{}, insufficient(p.Name, "size "+s.Size, s.Stock)
		}
		return s, nil
	}
	return models.SizeStock{}, apperr.Newf(apperr.KindStock, apperr.CodeSizeNotFound,
		"Size %q not found for %s", line.SelectedSize, p.Name)
}

func insufficient(name, selector string, available int) error {
	if available < 0 {
		available = 0
	}
	if selector != "" {
		name = fmt.Sprintf("%s (%s)", name, selector)
	}
	return apperr.Newf(apperr.KindStock, apperr.CodeInsufficientStock,
		"Insufficient stock for %s. Available: %d", name, available)
}
