package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/safar/go-shop-orders/internal/inventory"
	"github.com/safar/go-shop-orders/internal/models"
)

// LogNotifier stands in for the delivery services when no brokers are
// configured. It only writes a log line per notification.
type LogNotifier struct {
	logger *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) line(kind string, o models.Order) *zerolog.Event {
	return l.logger.Info().
		Str("notification", kind).
		Str("order_number", o.OrderNumber).
		Str("user_id", o.UserID.String())
}

func (l *LogNotifier) SendOrderConfirmation(ctx context.Context, o models.Order) error {
	l.line("order_confirmation", o).Msg("notification")
	return nil
}

func (l *LogNotifier) SendOrderStatus(ctx context.Context, o models.Order, status models.OrderStatus) error {
	l.line("order_status", o).Str("status", string(status)).Msg("notification")
	return nil
}

func (l *LogNotifier) SendTrackingUpdate(ctx context.Context, o models.Order) error {
	l.line("tracking_update", o).Str("tracking_number", o.Tracking.Number).Msg("notification")
	return nil
}

func (l *LogNotifier) SendOrderStatusPush(ctx context.Context, userID uuid.UUID, orderNumber string, status models.OrderStatus, o models.Order) error {
	l.line("order_status_push", o).Str("status", string(status)).Msg("notification")
	return nil
}

func (l *LogNotifier) SendAdminNewOrderPush(ctx context.Context, o models.Order) error {
	l.line("admin_new_order_push", o).Msg("notification")
	return nil
}

func (l *LogNotifier) SendLowStockPush(ctx context.Context, levels []inventory.StockLevel) error {
	for _, lv := range levels {
		l.logger.Warn().
			Str("notification", "low_stock_push").
			Str("target", lv.Target.String()).
			Int("remaining", lv.Remaining).
			Msg("notification")
	}
	return nil
}
