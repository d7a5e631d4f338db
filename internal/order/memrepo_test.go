package order

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/safar/go-shop-orders/internal/apperr"
	"github.com/safar/go-shop-orders/internal/database"
	"github.com/safar/go-shop-orders/internal/inventory"
	"github.com/safar/go-shop-orders/internal/models"
	"github.com/safar/go-shop-orders/internal/store"
)

// memRepo keeps everything in maps behind one mutex. CreateOrder and
// SaveOrder mirror the transactional behaviour of the Postgres store: a
// failed commit leaves stock and orders as they were.
type memRepo struct {
	mu        sync.Mutex
	products  map[uuid.UUID]*models.Product
	users     map[uuid.UUID]*models.User
	carts     map[uuid.UUID][]models.CartLine
	coupons   map[string]*models.Coupon
	orders    map[uuid.UUID]*models.Order
	bySession map[string]uuid.UUID
	seq       map[string]int64

	seqErr       error
	beforeSave   func()
	clearedCarts int
}

func newMemRepo() *memRepo {
	return &memRepo{
		products:  map[uuid.UUID]*models.Product{},
		users:     map[uuid.UUID]*models.User{},
		carts:     map[uuid.UUID][]models.CartLine{},
		coupons:   map[string]*models.Coupon{},
		orders:    map[uuid.UUID]*models.Order{},
		bySession: map[string]uuid.UUID{},
		seq:       map[string]int64{},
	}
}

func cloneProduct(p *models.Product) models.Product {
	c := *p
	switch s := p.Stock.(type) {
	case models.PlainStock:
		if s.Quantity != nil {
			q := *s.Quantity
			c.Stock = models.PlainStock{Quantity: &q}
		}
	case models.SizedStock:
		c.Stock = models.SizedStock{Sizes: append([]models.SizeStock(nil), s.Sizes...)}
	case models.VariantStock:
		c.Stock = models.VariantStock{Variants: append([]models.Variant(nil), s.Variants...)}
	}
	return c
}

func cloneOrder(o *models.Order) *models.Order {
	c := *o
	c.Items = append([]models.OrderItem(nil), o.Items...)
	c.StatusHistory = append([]models.StatusHistoryEntry(nil), o.StatusHistory...)
	return &c
}

func (r *memRepo) addProduct(p models.Product) *models.Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.IsActive = true
	r.products[p.ID] = &p
	return &p
}

func (r *memRepo) addUser() uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.New()
	r.users[id] = &models.User{ID: id, Email: id.String() + "@example.com", Role: models.RoleUser}
	return id
}

func (r *memRepo) product(id uuid.UUID) models.Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneProduct(r.products[id])
}

func (r *memRepo) orderCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

func (r *memRepo) FindProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Product
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out = append(out, cloneProduct(p))
		}
	}
	return out, nil
}

func (r *memRepo) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, database.ErrUserNotFound
	}
	return u, nil
}

func (r *memRepo) ListCart(ctx context.Context, userID uuid.UUID) ([]models.CartLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.CartLine(nil), r.carts[userID]...), nil
}

func (r *memRepo) ClearCart(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, userID)
	r.clearedCarts++
	return nil
}

func (r *memRepo) NextOrderSequence(ctx context.Context, day string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seqErr != nil {
		return 0, r.seqErr
	}
	r.seq[day]++
	return r.seq[day], nil
}

func (r *memRepo) CreateOrder(ctx context.Context, o *models.Order, targets []inventory.Target) (inventory.CommitResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if o.PaymentSessionID != "" {
		if _, ok := r.bySession[o.PaymentSessionID]; ok {
			return inventory.CommitResult{}, database.ErrDuplicatePaymentSession
		}
	}

	snapshot := make(map[uuid.UUID]models.Product, len(r.products))
	for id, p := range r.products {
		snapshot[id] = cloneProduct(p)
	}
	var couponSnapshot *models.Coupon
	rollback := func() {
		for id, p := range snapshot {
			p := p
			r.products[id] = &p
		}
		if couponSnapshot != nil {
			r.coupons[couponSnapshot.Code] = couponSnapshot
		}
	}

	if !o.Coupon.IsZero() {
		c, ok := r.coupons[o.Coupon.Code]
		if !o.PaidBySession() && (!ok || (c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit)) {
			return inventory.CommitResult{}, apperr.New(apperr.KindCoupon, apperr.CodeCouponInvalid, "coupon gone")
		}
		if ok {
			cp := *c
			couponSnapshot = &cp
			c.UsedCount++
		}
	}

	res, err := inventory.Commit(ctx, memStock{r}, targets)
	if err != nil {
		rollback()
		return res, err
	}

	o.Version = 1
	for i := range o.Items {
		o.Items[i].ID = uuid.New()
		o.Items[i].OrderID = o.ID
	}
	r.orders[o.ID] = cloneOrder(o)
	if o.PaymentSessionID != "" {
		r.bySession[o.PaymentSessionID] = o.ID
	}
	return res, nil
}

func (r *memRepo) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, database.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (r *memRepo) GetOrderByPaymentSession(ctx context.Context, sessionID string) (*models.Order, error) {
	r.mu.Lock()
	id, ok := r.bySession[sessionID]
	r.mu.Unlock()
	if !ok {
		return nil, database.ErrOrderNotFound
	}
	return r.GetOrder(ctx, id)
}

func (r *memRepo) SaveOrder(ctx context.Context, o *models.Order, appended []models.StatusHistoryEntry, restock []inventory.Target) error {
	if r.beforeSave != nil {
		r.beforeSave()
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[o.ID]
	if !ok {
		return database.ErrOrderNotFound
	}
	if stored.Version != o.Version {
		return database.ErrOptimisticLockFailed
	}
	if err := inventory.Restock(ctx, memStock{r}, restock); err != nil {
		return err
	}
	if models.CancelledBy(appended) && !o.Coupon.IsZero() {
		if c, ok := r.coupons[o.Coupon.Code]; ok && c.UsedCount > 0 {
			c.UsedCount--
		}
	}

	o.Version++
	r.orders[o.ID] = cloneOrder(o)
	return nil
}

func (r *memRepo) bumpVersion(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[id].Version++
}

func (r *memRepo) ListUserOrders(ctx context.Context, userID uuid.UUID, cursor string, limit int) (*store.CursorPage, error) {
	if _, err := store.DecodeCursor(cursor); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, *cloneOrder(o))
		}
	}
	return &store.CursorPage{Items: out}, nil
}

func (r *memRepo) ListOrders(ctx context.Context, filter store.OrderFilter, page, pageSize int) (*store.OffsetPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Order
	for _, o := range r.orders {
		if filter.OrderStatus == "" || o.OrderStatus == filter.OrderStatus {
			out = append(out, *cloneOrder(o))
		}
	}
	return &store.OffsetPage{Items: out, Total: int64(len(out)), Page: page, PageSize: pageSize, TotalPages: 1}, nil
}

func (r *memRepo) GetCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coupons[strings.ToUpper(code)]
	if !ok {
		return nil, database.ErrCouponNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memRepo) CountUserCouponUses(ctx context.Context, userID uuid.UUID, code string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.orders {
		if o.UserID == userID && o.Coupon.Code == code && o.OrderStatus != models.OrderStatusCancelled {
			n++
		}
	}
	return n, nil
}

// memStock applies decrements to the stored products. Callers hold r.mu.
type memStock struct {
	r *memRepo
}

func (m memStock) DecrementStock(ctx context.Context, t inventory.Target) (int, bool, error) {
	return m.apply(t, -t.Quantity)
}

func (m memStock) RestockStock(ctx context.Context, t inventory.Target) error {
	_, _, err := m.apply(t, t.Quantity)
	return err
}

func (m memStock) apply(t inventory.Target, delta int) (int, bool, error) {
	p, ok := m.r.products[t.ProductID]
	if !ok {
		return 0, false, nil
	}
	fits := func(cur int) bool { return cur+delta >= 0 }

	switch shape := p.Stock.(type) {
	case models.PlainStock:
		if t.Kind != inventory.TargetPlain || shape.Quantity == nil || !fits(*shape.Quantity) {
			return 0, false, nil
		}
		*shape.Quantity += delta
		return *shape.Quantity, true, nil
	case models.SizedStock:
		for i := range shape.Sizes {
			if t.Kind == inventory.TargetSize && shape.Sizes[i].Size == t.Key && fits(shape.Sizes[i].Stock) {
				shape.Sizes[i].Stock += delta
				return shape.Sizes[i].Stock, true, nil
			}
		}
	case models.VariantStock:
		for i := range shape.Variants {
			v := &shape.Variants[i]
			if t.Kind == inventory.TargetVariant && v.Name == t.Key && v.IsActive && fits(v.Stock) {
				v.Stock += delta
				return v.Stock, true, nil
			}
		}
	}
	return 0, false, nil
}
