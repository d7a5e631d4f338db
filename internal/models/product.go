package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID        uuid.UUID       `json:"id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	Category  string          `json:"category,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Discount  decimal.Decimal `json:"discount"`
	IsActive  bool            `json:"is_active"`
	IsPOD     bool            `json:"is_pod"`
	PODFields PODFields       `json:"pod_fields,omitempty"`
	Stock     StockShape      `json:"-"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Version   int             `json:"version"`
}

// StockShape is one of PlainStock, SizedStock or VariantStock. The set is
// closed: only this package can add members.
type StockShape interface {
	stockShape()
}

// PlainStock is a single counter on the product row. A nil Quantity is
// untracked stock and behaves as zero.
type PlainStock struct {
	Quantity *int
}

type SizedStock struct {
	Sizes []SizeStock
}

type VariantStock struct {
	Variants []Variant
}

func (PlainStock) stockShape()   {}
func (SizedStock) stockShape()   {}
func (VariantStock) stockShape() {}

func (s PlainStock) Available() int {
	if s.Quantity == nil {
		return 0
	}
	return *s.Quantity
}

type SizeStock struct {
	Size  string `json:"size"`
	Stock int    `json:"stock"`
}

type Variant struct {
	Name     string          `json:"name"`
	SKU      string          `json:"sku,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Discount decimal.Decimal `json:"discount"`
	Stock    int             `json:"stock"`
	IsActive bool            `json:"is_active"`
}

// ShapeFromFlags builds the stock shape stored behind the has_variants and
// requires_size flags. Variants win over sizes, sizes win over the plain
// counter, so a variant product never exposes its size rows.
func ShapeFromFlags(hasVariants, requiresSize bool, stock *int, sizes []SizeStock, variants []Variant) StockShape {
	switch {
	case hasVariants:
		return VariantStock{Variants: variants}
	case requiresSize:
		return SizedStock{Sizes: sizes}
	default:
		return PlainStock{Quantity: stock}
	}
}

// PODField describes one custom input a print-on-demand product collects.
type PODField struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
}

type PODFields []PODField

// PODValue is one submitted custom input, keyed by PODField.Name.
type PODValue struct {
	FieldName string `json:"field_name"`
	Value     string `json:"value"`
}

type PODData []PODValue

func (d PODData) Get(name string) (string, bool) {
	for _, v := range d {
		if v.FieldName == name {
			return v.Value, true
		}
	}
	return "", false
}
