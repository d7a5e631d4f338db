// Package notify carries order events from the checkout path to the email
// and push collaborators without making the request wait on them.
package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/safar/go-shop-orders/internal/inventory"
	"github.com/safar/go-shop-orders/internal/models"
)

type EventType string

const (
	EventOrderCreated    EventType = "order.created"
	EventStatusChanged   EventType = "order.status_changed"
	EventTrackingUpdated EventType = "order.tracking_updated"
	EventLowStock        EventType = "inventory.low_stock"
)

type Event struct {
	Type     EventType
	Order    models.Order
	Status   models.OrderStatus
	LowStock []inventory.StockLevel
}

type Mailer interface {
	SendOrderConfirmation(ctx context.Context, o models.Order) error
	SendOrderStatus(ctx context.Context, o models.Order, status models.OrderStatus) error
	SendTrackingUpdate(ctx context.Context, o models.Order) error
}

type Pusher interface {
	SendOrderStatusPush(ctx context.Context, userID uuid.UUID, orderNumber string, status models.OrderStatus, o models.Order) error
	SendAdminNewOrderPush(ctx context.Context, o models.Order) error
	SendLowStockPush(ctx context.Context, levels []inventory.StockLevel) error
}

// Publisher is the side the order service sees. Publish must not block.
type Publisher interface {
	Publish(ev Event) bool
}
