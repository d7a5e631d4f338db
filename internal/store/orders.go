package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/safar/go-shop-orders/internal/database"
	"github.com/safar/go-shop-orders/internal/models"
)

const orderColumns = `
	id, order_number, user_id, shipping_address, payment_method, payment_status, payment_info,
	COALESCE(payment_session_id, ''), order_status, subtotal, delivery_charge, discount_amount,
	total_price, coupon, tracking_partner, tracking_number, tracking_url, tracking_updated_at,
	created_at, updated_at, version`

func scanOrder(row rowScanner) (*models.Order, error) {
	o := &models.Order{}
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.UserID,
		&o.ShippingAddress,
		&o.PaymentMethod,
		&o.PaymentStatus,
		&o.PaymentInfo,
		&o.PaymentSessionID,
		&o.OrderStatus,
		&o.Subtotal,
		&o.DeliveryCharge,
		&o.DiscountAmount,
		&o.TotalPrice,
		&o.Coupon,
		&o.Tracking.Partner,
		&o.Tracking.Number,
		&o.Tracking.URL,
		&o.Tracking.UpdatedAt,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.Version,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// InsertOrder writes the order row, its item snapshots and its initial
// history. Item ids are assigned here.
func InsertOrder(ctx context.Context, q database.Querier, o *models.Order) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, user_id, shipping_address, payment_method, payment_status,
		                    payment_info, payment_session_id, order_status, subtotal, delivery_charge,
		                    discount_amount, total_price, coupon, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 1)`,
		o.ID, o.OrderNumber, o.UserID, o.ShippingAddress, o.PaymentMethod, o.PaymentStatus,
		o.PaymentInfo, nullString(o.PaymentSessionID), o.OrderStatus, o.Subtotal, o.DeliveryCharge,
		o.DiscountAmount, o.TotalPrice, o.Coupon, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	o.Version = 1

	for i := range o.Items {
		item := &o.Items[i]
		item.ID = uuid.New()
		item.OrderID = o.ID
		_, err = q.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, position, product_id, name, image, unit_price, quantity,
			                         subtotal, selected_size, selected_variant, pod_data)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			item.ID, o.ID, i, item.ProductID, item.Name, item.Image, item.UnitPrice, item.Quantity,
			item.Subtotal, item.SelectedSize, item.SelectedVariant, item.PODData)
		if err != nil {
			return fmt.Errorf("create order item: %w", err)
		}
	}

	return insertHistory(ctx, q, o.ID, o.StatusHistory)
}

func insertHistory(ctx context.Context, q database.Querier, orderID uuid.UUID, entries []models.StatusHistoryEntry) error {
	for _, h := range entries {
		_, err := q.ExecContext(ctx, `
			INSERT INTO order_status_history (order_id, status, note, updated_by, updated_at)
			VALUES ($1, $2, $3, $4, $5)`,
			orderID, h.Status, h.Note, h.UpdatedBy, h.UpdatedAt)
		if err != nil {
			return fmt.Errorf("append status history: %w", err)
		}
	}
	return nil
}

func GetOrder(ctx context.Context, q database.Querier, id uuid.UUID) (*models.Order, error) {
	return getOrderWhere(ctx, q, `id = $1`, id)
}

func GetOrderByPaymentSession(ctx context.Context, q database.Querier, sessionID string) (*models.Order, error) {
	return getOrderWhere(ctx, q, `payment_session_id = $1`, sessionID)
}

func getOrderWhere(ctx context.Context, q database.Querier, where string, arg any) (*models.Order, error) {
	o, err := scanOrder(q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	orders := []models.Order{*o}
	if err := loadOrderDetails(ctx, q, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// loadOrderDetails fills items and history for a batch of orders with one
// query each.
func loadOrderDetails(ctx context.Context, q database.Querier, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	index := make(map[uuid.UUID]int, len(orders))
	ids := make([]string, len(orders))
	for i, o := range orders {
		index[o.ID] = i
		ids[i] = o.ID.String()
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, product_id, name, image, unit_price, quantity, subtotal,
		       selected_size, selected_variant, pod_data
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Name,
			&item.Image,
			&item.UnitPrice,
			&item.Quantity,
			&item.Subtotal,
			&item.SelectedSize,
			&item.SelectedVariant,
			&item.PODData,
		)
		if err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		o := &orders[index[item.OrderID]]
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	hrows, err := q.QueryContext(ctx, `
		SELECT order_id, status, note, updated_by, updated_at
		FROM order_status_history
		WHERE order_id = ANY($1)
		ORDER BY order_id, id`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("get status history: %w", err)
	}
	defer hrows.Close()

	for hrows.Next() {
		var (
			orderID uuid.UUID
			h       models.StatusHistoryEntry
			by      uuid.NullUUID
		)
		if err := hrows.Scan(&orderID, &h.Status, &h.Note, &by, &h.UpdatedAt); err != nil {
			return fmt.Errorf("scan status history: %w", err)
		}
		if by.Valid {
			h.UpdatedBy = &by.UUID
		}
		o := &orders[index[orderID]]
		o.StatusHistory = append(o.StatusHistory, h)
	}
	if err := hrows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	return nil
}

// UpdateOrder writes the mutable columns of o under optimistic locking on
// o.Version and appends the given history entries. o.Version is left alone;
// the row holds o.Version+1 once the surrounding transaction commits.
func UpdateOrder(ctx context.Context, q database.Querier, o *models.Order, appended []models.StatusHistoryEntry) error {
	result, err := q.ExecContext(ctx, `
		UPDATE orders
		SET shipping_address = $1,
		    payment_status = $2,
		    order_status = $3,
		    tracking_partner = $4,
		    tracking_number = $5,
		    tracking_url = $6,
		    tracking_updated_at = $7,
		    updated_at = $8,
		    version = version + 1
		WHERE id = $9 AND version = $10`,
		o.ShippingAddress, o.PaymentStatus, o.OrderStatus, o.Tracking.Partner, o.Tracking.Number,
		o.Tracking.URL, o.Tracking.UpdatedAt, o.UpdatedAt, o.ID, o.Version)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrOptimisticLockFailed
	}

	return insertHistory(ctx, q, o.ID, appended)
}

// NextOrderSequence hands out the next number of day's sequence. The upsert
// is a single statement, so concurrent callers never share a value.
func NextOrderSequence(ctx context.Context, q database.Querier, day string) (int64, error) {
	var value int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO order_number_counters (day, value) VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET value = order_number_counters.value + 1
		RETURNING value`, day).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("next order sequence: %w", err)
	}
	return value, nil
}

func ListOrdersCursor(ctx context.Context, q database.Querier, userID uuid.UUID, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`, userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders, err := collectOrders(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	if err := loadOrderDetails(ctx, q, orders); err != nil {
		return nil, err
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

type OrderFilter struct {
	OrderStatus   models.OrderStatus
	PaymentStatus models.PaymentStatus
	PaymentMethod models.PaymentMethod
	UserID        uuid.UUID
	Search        string
}

func (f OrderFilter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.OrderStatus != "" {
		add("order_status = $%d", f.OrderStatus)
	}
	if f.PaymentStatus != "" {
		add("payment_status = $%d", f.PaymentStatus)
	}
	if f.PaymentMethod != "" {
		add("payment_method = $%d", f.PaymentMethod)
	}
	if f.UserID != uuid.Nil {
		add("user_id = $%d", f.UserID)
	}
	if f.Search != "" {
		add("order_number ILIKE $%d", "%"+f.Search+"%")
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func ListOrders(ctx context.Context, q database.Querier, filter OrderFilter, page, pageSize int) (*OffsetPage, error) {
	where, args := filter.where()

	var total int64
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	offset := (page - 1) * pageSize
	query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)+1, len(args)+2)

	rows, err := q.QueryContext(ctx, query, append(args, pageSize, offset)...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders, err := collectOrders(rows)
	if err != nil {
		return nil, err
	}

	if err := loadOrderDetails(ctx, q, orders); err != nil {
		return nil, err
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	return &OffsetPage{
		Items:      orders,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

func collectOrders(rows *sql.Rows) ([]models.Order, error) {
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return orders, nil
}
