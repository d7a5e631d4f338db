// Package order builds, stores and moves orders through their lifecycle.
// Orders are created either directly, with payment settled or deferred to
// delivery, or from a paid gateway session whose metadata carries the
// priced intent.
package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/safar/go-shop-orders/internal/apperr"
	"github.com/safar/go-shop-orders/internal/coupon"
	"github.com/safar/go-shop-orders/internal/database"
	"github.com/safar/go-shop-orders/internal/inventory"
	"github.com/safar/go-shop-orders/internal/models"
	"github.com/safar/go-shop-orders/internal/notify"
	"github.com/safar/go-shop-orders/internal/payment"
	"github.com/safar/go-shop-orders/internal/pricing"
	"github.com/safar/go-shop-orders/internal/store"
	"github.com/shopspring/decimal"
)

type Repository interface {
	FindProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListCart(ctx context.Context, userID uuid.UUID) ([]models.CartLine, error)
	ClearCart(ctx context.Context, userID uuid.UUID) error
	NextOrderSequence(ctx context.Context, day string) (int64, error)

	// CreateOrder stores o and commits targets atomically.
	CreateOrder(ctx context.Context, o *models.Order, targets []inventory.Target) (inventory.CommitResult, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetOrderByPaymentSession(ctx context.Context, sessionID string) (*models.Order, error)
	SaveOrder(ctx context.Context, o *models.Order, appended []models.StatusHistoryEntry, restock []inventory.Target) error
	ListUserOrders(ctx context.Context, userID uuid.UUID, cursor string, limit int) (*store.CursorPage, error)
	ListOrders(ctx context.Context, filter store.OrderFilter, page, pageSize int) (*store.OffsetPage, error)
}

type CouponApplier interface {
	Apply(ctx context.Context, code string, userID uuid.UUID, subtotal decimal.Decimal, lines []coupon.Line) (coupon.Result, error)
}

type SettingsProvider interface {
	Get(ctx context.Context) (models.SiteSettings, error)
}

type PaymentVerifier interface {
	Verify(ctx context.Context, method models.PaymentMethod, proof payment.Proof, want payment.Expected) (bool, error)
}

type CartCache interface {
	InvalidateCart(ctx context.Context, userID uuid.UUID) error
}

type Config struct {
	TrustClientTotal bool
	Currency         string
	WebhookSecret    string
	WebhookEnabled   bool
}

type Deps struct {
	Repo      Repository
	Coupons   CouponApplier
	Settings  SettingsProvider
	Verifier  PaymentVerifier
	Gateway   payment.Gateway
	CartCache CartCache
	Events    notify.Publisher
}

type Service struct {
	repo      Repository
	coupons   CouponApplier
	settings  SettingsProvider
	verifier  PaymentVerifier
	gateway   payment.Gateway
	cartCache CartCache
	events    notify.Publisher
	cfg       Config
	logger    *zerolog.Logger
	now       func() time.Time

	background sync.WaitGroup
}

func NewService(deps Deps, cfg Config, logger *zerolog.Logger) *Service {
	if deps.Repo == nil || deps.Coupons == nil || deps.Settings == nil || deps.Events == nil {
		panic("order service: repo, coupons, settings and events are required")
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if cfg.Currency == "" {
		cfg.Currency = "inr"
	}
	return &Service{
		repo:      deps.Repo,
		coupons:   deps.Coupons,
		settings:  deps.Settings,
		verifier:  deps.Verifier,
		gateway:   deps.Gateway,
		cartCache: deps.CartCache,
		events:    deps.Events,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Wait blocks until the post-commit cart cleanup started by earlier calls
// has finished.
func (s *Service) Wait() {
	s.background.Wait()
}

// CheckoutRequest is the body of both order creation calls.
type CheckoutRequest struct {
	Items           []RawLine        `json:"items"`
	ShippingAddress models.Address   `json:"shipping_address"`
	PaymentMethod   string           `json:"payment_method"`
	CouponCode      string           `json:"coupon_code"`
	FinalTotal      *decimal.Decimal `json:"final_total,omitempty"`
	Payment         payment.Proof    `json:"payment"`
}

// PlaceOrder is the direct path: validate, price, store and decrement stock
// within the request.
func (s *Service) PlaceOrder(ctx context.Context, userID uuid.UUID, req CheckoutRequest) (*models.Order, error) {
	if _, err := s.findUser(ctx, userID); err != nil {
		return nil, err
	}
	method, err := ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}
	addr, err := normalizeAddress(req.ShippingAddress)
	if err != nil {
		return nil, err
	}
	st, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load site settings: %w", err)
	}

	d, err := s.build(ctx, userID, checkout{
		lines:      req.Items,
		method:     method,
		couponCode: req.CouponCode,
		finalTotal: req.FinalTotal,
	}, st)
	if err != nil {
		return nil, err
	}

	paid := false
	if s.verifier != nil {
		want := payment.Expected{AmountMinor: pricing.MinorUnits(d.total), UserID: userID.String()}
		if paid, err = s.verifier.Verify(ctx, method, req.Payment, want); err != nil {
			return nil, err
		}
	}
	status := models.PaymentStatusPending
	if paid {
		status = models.PaymentStatusPaid
	}

	var sessionID string
	if method == models.PaymentStripe && paid {
		sessionID = req.Payment.SessionID
	}

	now := s.now()
	o := assemble(userID, d, placement{
		number:        s.nextOrderNumber(ctx, now),
		address:       addr,
		method:        method,
		paymentStatus: status,
		paymentInfo:   req.Payment.Info(),
		sessionID:     sessionID,
		actor:         &userID,
		now:           now,
	})

	return s.persist(ctx, o, d.targets, st)
}

// persist stores o and runs the post-commit side effects. A payment session
// that already produced an order yields that order instead.
func (s *Service) persist(ctx context.Context, o *models.Order, targets []inventory.Target, st models.SiteSettings) (*models.Order, error) {
	result, err := s.repo.CreateOrder(ctx, o, targets)
	if err != nil {
		if errors.Is(err, database.ErrDuplicatePaymentSession) {
			existing, gerr := s.repo.GetOrderByPaymentSession(ctx, o.PaymentSessionID)
			if gerr != nil {
				return nil, mapStoreErr(gerr)
			}
			return existing, nil
		}
		if apperr.HasCode(err, apperr.CodePartialOversell) {
			s.logger.Warn().
				Str("user_id", o.UserID.String()).
				Int("submitted", result.Submitted).
				Int("matched", result.Matched).
				Msg("order rolled back after losing a stock race")
		}
		return nil, err
	}

	s.logger.Info().
		Str("order_id", o.ID.String()).
		Str("order_number", o.OrderNumber).
		Str("user_id", o.UserID.String()).
		Str("payment_method", string(o.PaymentMethod)).
		Str("total", o.TotalPrice.StringFixed(2)).
		Msg("order created")

	s.clearCart(ctx, o.UserID)
	s.events.Publish(notify.Event{Type: notify.EventOrderCreated, Order: *o})
	if low := result.Low(st.ProductSettings.LowStockThreshold); len(low) > 0 {
		s.events.Publish(notify.Event{Type: notify.EventLowStock, Order: *o, LowStock: low})
	}
	return o, nil
}

func (s *Service) clearCart(ctx context.Context, userID uuid.UUID) {
	ctx = context.WithoutCancel(ctx)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if err := s.repo.ClearCart(ctx, userID); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID.String()).Msg("clear cart failed")
		}
		if s.cartCache != nil {
			if err := s.cartCache.InvalidateCart(ctx, userID); err != nil {
				s.logger.Error().Err(err).Str("user_id", userID.String()).Msg("invalidate cart cache failed")
			}
		}
	}()
}

// nextOrderNumber hands out ORD-YYYYMMDD-NNNN from the per-day counter and
// falls back to a timestamp number when the counter is unavailable.
func (s *Service) nextOrderNumber(ctx context.Context, now time.Time) string {
	day := now.UTC().Format("20060102")
	seq, err := s.repo.NextOrderSequence(ctx, day)
	if err != nil {
		s.logger.Warn().Err(err).Msg("order number counter failed, using timestamp")
		return fmt.Sprintf("ORD-%d", now.UnixNano())
	}
	return fmt.Sprintf("ORD-%s-%04d", day, seq)
}

type PaymentSession struct {
	SessionID string          `json:"session_id"`
	URL       string          `json:"url"`
	Total     decimal.Decimal `json:"total"`
}

// CreatePaymentSession validates and prices the order without touching
// stock and opens a gateway session carrying the priced intent.
func (s *Service) CreatePaymentSession(ctx context.Context, userID uuid.UUID, req CheckoutRequest) (*PaymentSession, error) {
	if s.gateway == nil {
		return nil, apperr.New(apperr.KindPaymentPolicy, apperr.CodePaymentUnverified, "Online payment is not available")
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	method := models.PaymentStripe
	if req.PaymentMethod != "" {
		if method, err = ParsePaymentMethod(req.PaymentMethod); err != nil {
			return nil, err
		}
	}
	if method == models.PaymentCOD {
		return nil, apperr.Validation("Cash on delivery orders do not need a payment session")
	}
	addr, err := normalizeAddress(req.ShippingAddress)
	if err != nil {
		return nil, err
	}
	st, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load site settings: %w", err)
	}

	d, err := s.build(ctx, userID, checkout{
		lines:      req.Items,
		method:     method,
		couponCode: req.CouponCode,
		finalTotal: req.FinalTotal,
	}, st)
	if err != nil {
		return nil, err
	}
	if !d.total.IsPositive() {
		return nil, apperr.Validation("Order total must be positive to pay online")
	}

	meta, err := newIntent(userID, d, addr, method, s.now()).Metadata()
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateSession(ctx, payment.SessionRequest{
		AmountMinor:       pricing.MinorUnits(d.total),
		Currency:          s.cfg.Currency,
		Description:       fmt.Sprintf("Order of %d item(s)", len(d.items)),
		CustomerEmail:     user.Email,
		ClientReferenceID: userID.String(),
		Metadata:          meta,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", userID.String()).
		Str("session_id", session.ID).
		Str("total", d.total.StringFixed(2)).
		Msg("payment session created")

	return &PaymentSession{SessionID: session.ID, URL: session.URL, Total: d.total}, nil
}

type WebhookResult struct {
	Order   *models.Order
	Ignored bool
}

// HandleWebhook turns a paid checkout session into an order. Redelivered
// events return the order created the first time. Stock is not re-checked;
// the conditional decrements at commit still refuse to oversell.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) (*WebhookResult, error) {
	if !s.cfg.WebhookEnabled {
		return nil, apperr.New(apperr.KindForbidden, apperr.CodeForbidden, "Webhook processing is disabled")
	}
	if err := payment.VerifyWebhookSignature(s.cfg.WebhookSecret, body, signature); err != nil {
		return nil, err
	}

	event, err := payment.ParseWebhookEvent(body)
	if err != nil {
		return nil, err
	}
	if event.Type != payment.EventCheckoutCompleted || event.SessionID == "" {
		return &WebhookResult{Ignored: true}, nil
	}

	existing, err := s.repo.GetOrderByPaymentSession(ctx, event.SessionID)
	if err == nil {
		return &WebhookResult{Order: existing}, nil
	}
	if !errors.Is(err, database.ErrOrderNotFound) {
		return nil, err
	}

	if s.gateway == nil {
		return nil, apperr.New(apperr.KindPaymentPolicy, apperr.CodePaymentUnverified, "Online payment is not available")
	}
	session, err := s.gateway.FetchSession(ctx, event.SessionID)
	if err != nil {
		return nil, err
	}
	if !session.Paid {
		s.logger.Warn().Str("session_id", session.ID).Msg("checkout completed without payment, ignoring")
		return &WebhookResult{Ignored: true}, nil
	}

	now := s.now()
	intent, err := DecodeIntent(session.Metadata, now)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", session.ID).Msg("rejecting payment session intent")
		return nil, err
	}

	st, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load site settings: %w", err)
	}

	d := intent.draft()
	o := assemble(intent.UserID, d, placement{
		number:        s.nextOrderNumber(ctx, now),
		address:       intent.ShippingAddress,
		method:        intent.PaymentMethod,
		paymentStatus: models.PaymentStatusPaid,
		paymentInfo: models.PaymentInfo{
			GatewayPaymentID: session.PaymentIntentID,
			SessionID:        session.ID,
		},
		sessionID: session.ID,
		actor:     &intent.UserID,
		now:       now,
	})

	created, err := s.persist(ctx, o, d.targets, st)
	if err != nil {
		return nil, err
	}
	return &WebhookResult{Order: created}, nil
}

// UpdateStatus is the admin transition. Cancelling returns the order's
// stock in the same write.
func (s *Service) UpdateStatus(ctx context.Context, actor uuid.UUID, orderID uuid.UUID, status, note string) (*models.Order, error) {
	to, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, o, to, &actor, note)
}

// CancelMyOrder lets the owner cancel until the order ships.
func (s *Service) CancelMyOrder(ctx context.Context, userID, orderID uuid.UUID, reason string) (*models.Order, error) {
	o, err := s.getOwnedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if err := CanUserCancel(o.OrderStatus); err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "Cancelled by customer"
	}
	return s.transition(ctx, o, models.OrderStatusCancelled, &userID, reason)
}

func (s *Service) transition(ctx context.Context, o *models.Order, to models.OrderStatus, actor *uuid.UUID, note string) (*models.Order, error) {
	from := o.OrderStatus
	entry, err := Transition(o, to, actor, note, s.now())
	if err != nil {
		return nil, err
	}

	var restock []inventory.Target
	if to == models.OrderStatusCancelled {
		restock = restockTargets(o.Items)
	}

	if err := s.repo.SaveOrder(ctx, o, []models.StatusHistoryEntry{entry}, restock); err != nil {
		return nil, mapStoreErr(err)
	}

	s.logger.Info().
		Str("order_id", o.ID.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("order status changed")

	s.events.Publish(notify.Event{Type: notify.EventStatusChanged, Order: *o, Status: to})
	return o, nil
}

// restockTargets maps stored items back to the counters they drew from.
// Items only carry the selector their stock shape uses.
func restockTargets(items []models.OrderItem) []inventory.Target {
	targets := make([]inventory.Target, 0, len(items))
	for _, item := range items {
		t := inventory.Target{Kind: inventory.TargetPlain, ProductID: item.ProductID, Quantity: item.Quantity}
		switch {
		case item.SelectedVariant != "":
			t.Kind, t.Key = inventory.TargetVariant, item.SelectedVariant
		case item.SelectedSize != "":
			t.Kind, t.Key = inventory.TargetSize, item.SelectedSize
		}
		targets = append(targets, t)
	}
	return targets
}

func (s *Service) UpdateAddress(ctx context.Context, userID, orderID uuid.UUID, addr models.Address) (*models.Order, error) {
	o, err := s.getOwnedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if err := CanEditAddress(o.OrderStatus); err != nil {
		return nil, err
	}
	addr, err = normalizeAddress(addr)
	if err != nil {
		return nil, err
	}

	o.ShippingAddress = addr
	o.UpdatedAt = s.now()
	if err := s.repo.SaveOrder(ctx, o, nil, nil); err != nil {
		return nil, mapStoreErr(err)
	}
	return o, nil
}

type TrackingUpdate struct {
	Partner string `json:"partner"`
	Number  string `json:"number"`
	URL     string `json:"url"`
}

// UpdateTracking records carrier details. It is allowed in any status.
func (s *Service) UpdateTracking(ctx context.Context, orderID uuid.UUID, t TrackingUpdate) (*models.Order, error) {
	if t.Number == "" {
		return nil, apperr.Validation("tracking number is required")
	}
	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	o.Tracking = models.Tracking{Partner: t.Partner, Number: t.Number, URL: t.URL, UpdatedAt: &now}
	o.UpdatedAt = now
	if err := s.repo.SaveOrder(ctx, o, nil, nil); err != nil {
		return nil, mapStoreErr(err)
	}

	s.events.Publish(notify.Event{Type: notify.EventTrackingUpdated, Order: *o})
	return o, nil
}

// GetOrder returns an order to its owner or to an admin.
func (s *Service) GetOrder(ctx context.Context, userID uuid.UUID, isAdmin bool, orderID uuid.UUID) (*models.Order, error) {
	if isAdmin {
		return s.getOrder(ctx, orderID)
	}
	return s.getOwnedOrder(ctx, userID, orderID)
}

func (s *Service) ListMyOrders(ctx context.Context, userID uuid.UUID, cursor string, limit int) (*store.CursorPage, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	page, err := s.repo.ListUserOrders(ctx, userID, cursor, limit)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return page, nil
}

func (s *Service) ListOrders(ctx context.Context, filter store.OrderFilter, page, pageSize int) (*store.OffsetPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.repo.ListOrders(ctx, filter, page, pageSize)
}

func (s *Service) findUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := s.repo.FindUserByID(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return u, nil
}

func (s *Service) getOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return o, nil
}

// getOwnedOrder hides other shoppers' orders behind NotFound.
func (s *Service) getOwnedOrder(ctx context.Context, userID, id uuid.UUID) (*models.Order, error) {
	o, err := s.getOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, apperr.NotFound("Order not found")
	}
	return o, nil
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, database.ErrOrderNotFound):
		return apperr.NotFound("Order not found")
	case errors.Is(err, database.ErrUserNotFound):
		return apperr.NotFound("User not found")
	case errors.Is(err, database.ErrOptimisticLockFailed):
		return apperr.Wrap(apperr.KindConflict, apperr.CodeVersionConflict, err,
			"Order was changed by someone else, please retry")
	default:
		return err
	}
}
