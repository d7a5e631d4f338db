package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/safar/go-shop-orders/internal/apperr"
	"github.com/safar/go-shop-orders/internal/database"
	"github.com/safar/go-shop-orders/internal/inventory"
	"github.com/safar/go-shop-orders/internal/models"
)

const paymentSessionConstraint = "orders_payment_session_id_key"

// Postgres binds the package level queries to a connection pool and runs the
// multi-statement operations inside retrying transactions.
type Postgres struct {
	db   *sql.DB
	opts database.TxOptions
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, opts: database.DefaultTxOptions()}
}

func (p *Postgres) DB() *sql.DB { return p.db }

func (p *Postgres) FindProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	return FindProductsByIDs(ctx, p.db, ids)
}

func (p *Postgres) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return GetUser(ctx, p.db, id)
}

func (p *Postgres) ListCart(ctx context.Context, userID uuid.UUID) ([]models.CartLine, error) {
	return ListCart(ctx, p.db, userID)
}

func (p *Postgres) ClearCart(ctx context.Context, userID uuid.UUID) error {
	_, err := ClearCart(ctx, p.db, userID)
	return err
}

func (p *Postgres) NextOrderSequence(ctx context.Context, day string) (int64, error) {
	return NextOrderSequence(ctx, p.db, day)
}

// CreateOrder inserts o, consumes one use of its coupon and commits the stock
// decrements for targets in a single transaction. Any failure, including a
// partial oversell, leaves no trace of the order. An order a gateway session
// already paid for records its coupon use even past the usage limit.
func (p *Postgres) CreateOrder(ctx context.Context, o *models.Order, targets []inventory.Target) (inventory.CommitResult, error) {
	var result inventory.CommitResult

	err := database.WithRetry(ctx, p.db, p.opts, func(tx *sql.Tx) error {
		if err := InsertOrder(ctx, tx, o); err != nil {
			if database.IsUniqueViolation(err, paymentSessionConstraint) {
				return database.ErrDuplicatePaymentSession
			}
			return err
		}

		switch {
		case o.Coupon.IsZero():
		case o.PaidBySession():
			if err := RecordCouponUse(ctx, tx, o.Coupon.Code); err != nil {
				return err
			}
		default:
			ok, err := ConsumeCoupon(ctx, tx, o.Coupon.Code)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.Newf(apperr.KindCoupon, apperr.CodeCouponInvalid,
					"Coupon %s is no longer available", o.Coupon.Code)
			}
		}

		res, err := inventory.Commit(ctx, txStock{tx}, targets)
		result = res
		return err
	})

	return result, err
}

func (p *Postgres) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return GetOrder(ctx, p.db, id)
}

func (p *Postgres) GetOrderByPaymentSession(ctx context.Context, sessionID string) (*models.Order, error) {
	return GetOrderByPaymentSession(ctx, p.db, sessionID)
}

// SaveOrder persists a state change of o. restock is non-empty only for
// cancellations and is applied in the same transaction, together with giving
// back the coupon use.
func (p *Postgres) SaveOrder(ctx context.Context, o *models.Order, appended []models.StatusHistoryEntry, restock []inventory.Target) error {
	err := database.WithRetry(ctx, p.db, p.opts, func(tx *sql.Tx) error {
		if err := UpdateOrder(ctx, tx, o, appended); err != nil {
			return err
		}
		if models.CancelledBy(appended) && !o.Coupon.IsZero() {
			if err := ReleaseCoupon(ctx, tx, o.Coupon.Code); err != nil {
				return err
			}
		}
		return inventory.Restock(ctx, txStock{tx}, restock)
	})
	if err != nil {
		return err
	}

	o.Version++
	return nil
}

func (p *Postgres) ListUserOrders(ctx context.Context, userID uuid.UUID, cursor string, limit int) (*CursorPage, error) {
	return ListOrdersCursor(ctx, p.db, userID, cursor, limit)
}

func (p *Postgres) ListOrders(ctx context.Context, filter OrderFilter, page, pageSize int) (*OffsetPage, error) {
	return ListOrders(ctx, p.db, filter, page, pageSize)
}

func (p *Postgres) GetCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	return GetCoupon(ctx, p.db, code)
}

func (p *Postgres) CountUserCouponUses(ctx context.Context, userID uuid.UUID, code string) (int, error) {
	return CountUserCouponUses(ctx, p.db, userID, code)
}

func (p *Postgres) GetSiteSettings(ctx context.Context) (*models.SiteSettings, error) {
	return GetSiteSettings(ctx, p.db)
}

// txStock adapts the stock queries to the inventory interfaces for one
// transaction.
type txStock struct {
	q database.Querier
}

func (s txStock) DecrementStock(ctx context.Context, t inventory.Target) (int, bool, error) {
	return DecrementStock(ctx, s.q, t)
}

func (s txStock) RestockStock(ctx context.Context, t inventory.Target) error {
	return RestockStock(ctx, s.q, t)
}
