package models

import "github.com/shopspring/decimal"

type SiteSettings struct {
	OrderSettings   OrderSettings   `json:"order_settings"`
	ProductSettings ProductSettings `json:"product_settings"`
}

// OrderSettings limits cash on delivery and prices delivery. A zero CODLimit
// or FreeDeliveryAbove means no limit or no waiver.
type OrderSettings struct {
	CODEnabled        bool            `json:"cod_enabled"`
	CODLimit          decimal.Decimal `json:"cod_limit"`
	DeliveryCharge    decimal.Decimal `json:"delivery_charge"`
	FreeDeliveryAbove decimal.Decimal `json:"free_delivery_above"`
}

type ProductSettings struct {
	LowStockThreshold int `json:"low_stock_threshold"`
}

func DefaultSiteSettings() SiteSettings {
	return SiteSettings{
		OrderSettings:   OrderSettings{CODEnabled: true},
		ProductSettings: ProductSettings{LowStockThreshold: 5},
	}
}
