package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCOD      PaymentMethod = "CASH_ON_DELIVERY"
	PaymentStripe   PaymentMethod = "STRIPE"
	PaymentRazorpay PaymentMethod = "RAZORPAY"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "Pending"
	PaymentStatusPaid    PaymentStatus = "Paid"
	PaymentStatusFailed  PaymentStatus = "Failed"
)

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "Pending"
	OrderStatusConfirmed      OrderStatus = "Confirmed"
	OrderStatusShipped        OrderStatus = "Shipped"
	OrderStatusOutForDelivery OrderStatus = "Out for Delivery"
	OrderStatusDelivered      OrderStatus = "Delivered"
	OrderStatusCancelled      OrderStatus = "Cancelled"
)

type Order struct {
	ID               uuid.UUID            `json:"id"`
	OrderNumber      string               `json:"order_number"`
	UserID           uuid.UUID            `json:"user_id"`
	Items            []OrderItem          `json:"order_items"`
	ShippingAddress  Address              `json:"shipping_address"`
	PaymentMethod    PaymentMethod        `json:"payment_method"`
	PaymentStatus    PaymentStatus        `json:"payment_status"`
	PaymentInfo      PaymentInfo          `json:"payment_info"`
	PaymentSessionID string               `json:"payment_session_id,omitempty"`
	OrderStatus      OrderStatus          `json:"order_status"`
	Subtotal         decimal.Decimal      `json:"subtotal"`
	DeliveryCharge   decimal.Decimal      `json:"delivery_charge"`
	DiscountAmount   decimal.Decimal      `json:"discount_amount"`
	TotalPrice       decimal.Decimal      `json:"total_price"`
	Coupon           CouponSnapshot       `json:"coupon"`
	Tracking         Tracking             `json:"tracking"`
	StatusHistory    []StatusHistoryEntry `json:"status_history"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
	Version          int                  `json:"version"`
}

// OrderItem is a snapshot taken at order time. It is never re-derived from
// the live product.
type OrderItem struct {
	ID              uuid.UUID       `json:"id"`
	OrderID         uuid.UUID       `json:"order_id"`
	ProductID       uuid.UUID       `json:"product_id"`
	Name            string          `json:"name"`
	Image           string          `json:"image,omitempty"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Quantity        int             `json:"quantity"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	SelectedSize    string          `json:"selected_size,omitempty"`
	SelectedVariant string          `json:"selected_variant,omitempty"`
	PODData         PODData         `json:"pod_data,omitempty"`
}

type Address struct {
	FullName     string `json:"full_name"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country,omitempty"`
}

// CouponSnapshot is the zero value when no coupon was applied.
type CouponSnapshot struct {
	Code           string          `json:"code,omitempty"`
	DiscountType   string          `json:"discount_type,omitempty"`
	DiscountValue  decimal.Decimal `json:"discount_value,omitempty"`
	DiscountAmount decimal.Decimal `json:"discount_amount,omitempty"`
}

func (c CouponSnapshot) IsZero() bool {
	return c.Code == ""
}

// PaidBySession reports whether a gateway session already collected the
// money for o.
func (o *Order) PaidBySession() bool {
	return o.PaymentStatus == PaymentStatusPaid && o.PaymentSessionID != ""
}

// CancelledBy reports whether entries move an order into Cancelled.
func CancelledBy(entries []StatusHistoryEntry) bool {
	return len(entries) > 0 && entries[len(entries)-1].Status == OrderStatusCancelled
}

type PaymentInfo struct {
	GatewayOrderID   string `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string `json:"gateway_payment_id,omitempty"`
	SessionID        string `json:"session_id,omitempty"`
}

type Tracking struct {
	Partner   string     `json:"partner,omitempty"`
	Number    string     `json:"number,omitempty"`
	URL       string     `json:"url,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type StatusHistoryEntry struct {
	Status    OrderStatus `json:"status"`
	Note      string      `json:"note,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
	UpdatedBy *uuid.UUID  `json:"updated_by,omitempty"`
}
