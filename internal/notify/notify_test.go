package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-shop-orders/internal/inventory"
	"github.com/safar/go-shop-orders/internal/models"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (r *recorder) add(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
	if r.fail {
		return errors.New("delivery failed")
	}
	return nil
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) SendOrderConfirmation(ctx context.Context, o models.Order) error {
	return r.add("confirmation")
}

func (r *recorder) SendOrderStatus(ctx context.Context, o models.Order, status models.OrderStatus) error {
	return r.add("status:" + string(status))
}

func (r *recorder) SendTrackingUpdate(ctx context.Context, o models.Order) error {
	return r.add("tracking")
}

func (r *recorder) SendOrderStatusPush(ctx context.Context, userID uuid.UUID, orderNumber string, status models.OrderStatus, o models.Order) error {
	return r.add("push:" + string(status))
}

func (r *recorder) SendAdminNewOrderPush(ctx context.Context, o models.Order) error {
	return r.add("admin")
}

func (r *recorder) SendLowStockPush(ctx context.Context, levels []inventory.StockLevel) error {
	return r.add("lowstock")
}

func TestDispatcherDeliversEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := &recorder{}
	d := NewDispatcher(rec, rec, 2, 16, nil)
	d.Start()

	o := models.Order{OrderNumber: "ORD-20260301-0001", UserID: uuid.New()}
	assert.True(t, d.Publish(Event{Type: EventOrderCreated, Order: o}))
	assert.True(t, d.Publish(Event{Type: EventStatusChanged, Order: o, Status: models.OrderStatusShipped}))
	assert.True(t, d.Publish(Event{Type: EventTrackingUpdated, Order: o}))
	assert.True(t, d.Publish(Event{Type: EventLowStock, LowStock: []inventory.StockLevel{{Remaining: 1}}}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))

	assert.ElementsMatch(t, []string{
		"confirmation", "admin", "status:Shipped", "push:Shipped", "tracking", "lowstock",
	}, rec.Calls())

	assert.False(t, d.Publish(Event{Type: EventOrderCreated, Order: o}), "closed dispatcher rejects events")
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := &recorder{}
	d := NewDispatcher(rec, rec, 1, 1, nil)

	// Workers are not started, so the queue fills after one event.
	assert.True(t, d.Publish(Event{Type: EventOrderCreated}))
	assert.False(t, d.Publish(Event{Type: EventOrderCreated}))

	d.Start()
	require.NoError(t, d.Close(context.Background()))
	assert.ElementsMatch(t, []string{"confirmation", "admin"}, rec.Calls())
}

func TestDispatcherSurvivesFailures(t *testing.T) {
	rec := &recorder{fail: true}
	d := NewDispatcher(rec, rec, 1, 4, nil)
	d.Start()

	d.Publish(Event{Type: EventOrderCreated})
	d.Publish(Event{Type: EventTrackingUpdated})
	require.NoError(t, d.Close(context.Background()))

	assert.Len(t, rec.Calls(), 3)
}

type fakeWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher(t *testing.T) {
	email, push := &fakeWriter{}, &fakeWriter{}
	k := NewKafkaPublisher(email, push)
	k.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

	userID := uuid.New()
	o := models.Order{ID: uuid.New(), OrderNumber: "ORD-20260301-0007", UserID: userID, OrderStatus: models.OrderStatusPending}
	ctx := context.Background()

	require.NoError(t, k.SendOrderConfirmation(ctx, o))
	require.NoError(t, k.SendOrderStatusPush(ctx, userID, o.OrderNumber, models.OrderStatusShipped, o))
	require.NoError(t, k.SendLowStockPush(ctx, []inventory.StockLevel{{Remaining: 2}}))

	require.Len(t, email.msgs, 1)
	require.Len(t, push.msgs, 2)
	assert.Equal(t, userID.String(), string(email.msgs[0].Key))

	var m Message
	require.NoError(t, json.Unmarshal(email.msgs[0].Value, &m))
	assert.Equal(t, "order_confirmation", m.Kind)
	assert.Equal(t, "ORD-20260301-0007", m.OrderNumber)
	assert.Equal(t, o.ID, m.OrderID)

	require.NoError(t, json.Unmarshal(push.msgs[0].Value, &m))
	assert.Equal(t, "order_status_push", m.Kind)
	assert.Equal(t, models.OrderStatusShipped, m.Status)
	assert.Equal(t, "admin", string(push.msgs[1].Key))

	require.NoError(t, k.Close())
	assert.True(t, email.closed)
	assert.True(t, push.closed)
}
