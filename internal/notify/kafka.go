package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-shop-orders/internal/inventory"
	"github.com/safar/go-shop-orders/internal/models"
	"github.com/segmentio/kafka-go"
)

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		MaxAttempts:  3,
	}
}

// Message is the JSON body written to the email and push topics. The
// delivery services switch on Kind.
type Message struct {
	Kind        string                 `json:"kind"`
	UserID      uuid.UUID              `json:"user_id,omitempty"`
	OrderID     uuid.UUID              `json:"order_id,omitempty"`
	OrderNumber string                 `json:"order_number,omitempty"`
	Status      models.OrderStatus     `json:"status,omitempty"`
	Order       *models.Order          `json:"order,omitempty"`
	LowStock    []inventory.StockLevel `json:"low_stock,omitempty"`
	OccurredAt  time.Time              `json:"occurred_at"`
}

// KafkaPublisher hands notifications to the delivery services through two
// topics. Messages are keyed by user so one shopper's events stay ordered.
type KafkaPublisher struct {
	email MessageWriter
	push  MessageWriter
	now   func() time.Time
}

func NewKafkaPublisher(email, push MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{email: email, push: push, now: time.Now}
}

func (k *KafkaPublisher) write(ctx context.Context, w MessageWriter, key string, m Message) error {
	m.OccurredAt = k.now().UTC()
	value, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", m.Kind, err)
	}

	err = w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(m.Kind)},
		},
	})
	if err != nil {
		return fmt.Errorf("write %s message: %w", m.Kind, err)
	}
	return nil
}

func orderMessage(kind string, o models.Order) Message {
	return Message{
		Kind:        kind,
		UserID:      o.UserID,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Status:      o.OrderStatus,
		Order:       &o,
	}
}

func (k *KafkaPublisher) SendOrderConfirmation(ctx context.Context, o models.Order) error {
	return k.write(ctx, k.email, o.UserID.String(), orderMessage("order_confirmation", o))
}

func (k *KafkaPublisher) SendOrderStatus(ctx context.Context, o models.Order, status models.OrderStatus) error {
	m := orderMessage("order_status", o)
	m.Status = status
	return k.write(ctx, k.email, o.UserID.String(), m)
}

func (k *KafkaPublisher) SendTrackingUpdate(ctx context.Context, o models.Order) error {
	return k.write(ctx, k.email, o.UserID.String(), orderMessage("tracking_update", o))
}

func (k *KafkaPublisher) SendOrderStatusPush(ctx context.Context, userID uuid.UUID, orderNumber string, status models.OrderStatus, o models.Order) error {
	m := orderMessage("order_status_push", o)
	m.UserID = userID
	m.OrderNumber = orderNumber
	m.Status = status
	return k.write(ctx, k.push, userID.String(), m)
}

func (k *KafkaPublisher) SendAdminNewOrderPush(ctx context.Context, o models.Order) error {
	return k.write(ctx, k.push, "admin", orderMessage("admin_new_order_push", o))
}

func (k *KafkaPublisher) SendLowStockPush(ctx context.Context, levels []inventory.StockLevel) error {
	return k.write(ctx, k.push, "admin", Message{Kind: "low_stock_push", LowStock: levels})
}

func (k *KafkaPublisher) Close() error {
	return errors.Join(k.email.Close(), k.push.Close())
}
