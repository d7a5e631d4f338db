package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const deliveryTimeout = 10 * time.Second

// Dispatcher is a bounded queue drained by a fixed set of workers. Delivery
// is best effort: a full queue drops the event and failures are only
// logged.
type Dispatcher struct {
	mailer  Mailer
	pusher  Pusher
	logger  *zerolog.Logger
	workers int

	mu     sync.RWMutex
	queue  chan Event
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(mailer Mailer, pusher Pusher, workers, queueSize int, logger *zerolog.Logger) *Dispatcher {
	if mailer == nil || pusher == nil {
		panic("notify collaborators cannot be nil")
	}
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Dispatcher{
		mailer:  mailer,
		pusher:  pusher,
		logger:  logger,
		workers: workers,
		queue:   make(chan Event, queueSize),
	}
}

func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
}

// Publish enqueues ev and reports whether it was accepted.
func (d *Dispatcher) Publish(ev Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return false
	}

	select {
	case d.queue <- ev:
		return true
	default:
		d.logger.Warn().
			Str("event", string(ev.Type)).
			Str("order_number", ev.Order.OrderNumber).
			Msg("notification queue full, event dropped")
		return false
	}
}

// Close stops accepting events and waits for the queue to drain or ctx to
// end, whichever comes first.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for ev := range d.queue {
		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	o := ev.Order
	switch ev.Type {
	case EventOrderCreated:
		d.report(ev, "order confirmation email", d.mailer.SendOrderConfirmation(ctx, o))
		d.report(ev, "admin new order push", d.pusher.SendAdminNewOrderPush(ctx, o))
	case EventStatusChanged:
		d.report(ev, "order status email", d.mailer.SendOrderStatus(ctx, o, ev.Status))
		d.report(ev, "order status push", d.pusher.SendOrderStatusPush(ctx, o.UserID, o.OrderNumber, ev.Status, o))
	case EventTrackingUpdated:
		d.report(ev, "tracking email", d.mailer.SendTrackingUpdate(ctx, o))
	case EventLowStock:
		d.report(ev, "low stock push", d.pusher.SendLowStockPush(ctx, ev.LowStock))
	default:
		d.logger.Warn().Str("event", string(ev.Type)).Msg("unknown notification event")
	}
}

func (d *Dispatcher) report(ev Event, what string, err error) {
	if err == nil {
		return
	}
	d.logger.Error().
		Err(err).
		Str("event", string(ev.Type)).
		Str("order_number", ev.Order.OrderNumber).
		Msgf("%s failed", what)
}
