package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/safar/go-shop-orders/internal/api/middleware"
	"github.com/safar/go-shop-orders/internal/apperr"
	"github.com/safar/go-shop-orders/internal/models"
	"github.com/safar/go-shop-orders/internal/order"
	"github.com/safar/go-shop-orders/internal/payment"
	"github.com/safar/go-shop-orders/internal/store"
)

const maxWebhookBody = 1 << 20

// OrderService is the part of order.Service the handlers call.
type OrderService interface {
	PlaceOrder(ctx context.Context, userID uuid.UUID, req order.CheckoutRequest) (*models.Order, error)
	CreatePaymentSession(ctx context.Context, userID uuid.UUID, req order.CheckoutRequest) (*order.PaymentSession, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) (*order.WebhookResult, error)
	UpdateStatus(ctx context.Context, actor, orderID uuid.UUID, status, note string) (*models.Order, error)
	CancelMyOrder(ctx context.Context, userID, orderID uuid.UUID, reason string) (*models.Order, error)
	UpdateAddress(ctx context.Context, userID, orderID uuid.UUID, addr models.Address) (*models.Order, error)
	UpdateTracking(ctx context.Context, orderID uuid.UUID, t order.TrackingUpdate) (*models.Order, error)
	GetOrder(ctx context.Context, userID uuid.UUID, isAdmin bool, orderID uuid.UUID) (*models.Order, error)
	ListMyOrders(ctx context.Context, userID uuid.UUID, cursor string, limit int) (*store.CursorPage, error)
	ListOrders(ctx context.Context, filter store.OrderFilter, page, pageSize int) (*store.OffsetPage, error)
}

type Handler struct {
	orders OrderService
	logger *zerolog.Logger
}

func NewHandler(orders OrderService, logger *zerolog.Logger) *Handler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Handler{orders: orders, logger: logger}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, Envelope{
			Error:   apperr.CodeValidation,
			Message: "Invalid request body",
		})
		return false
	}
	return true
}

func orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Envelope{Error: apperr.CodeInvalidID, Message: "Invalid order ID"})
		return uuid.Nil, false
	}
	return id, true
}

func caller(r *http.Request) middleware.Principal {
	p, _ := middleware.PrincipalFrom(r.Context())
	return p
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req order.CheckoutRequest
	if !h.decode(w, r, &req) {
		return
	}

	o, err := h.orders.PlaceOrder(r.Context(), caller(r).UserID, req)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusCreated, "Order placed successfully", o)
}

func (h *Handler) CreatePaymentSession(w http.ResponseWriter, r *http.Request) {
	var req order.CheckoutRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, err := h.orders.CreatePaymentSession(r.Context(), caller(r).UserID, req)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, "Payment session created", session)
}

func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Envelope{Error: apperr.CodeValidation, Message: "Unreadable webhook body"})
		return
	}

	res, err := h.orders.HandleWebhook(r.Context(), body, r.Header.Get(payment.SignatureHeader))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if res.Ignored {
		respond(w, http.StatusOK, "Event ignored", nil)
		return
	}
	respond(w, http.StatusOK, "Order recorded", res.Order)
}

func (h *Handler) MyOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	page, err := h.orders.ListMyOrders(r.Context(), caller(r).UserID, q.Get("cursor"), limit)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, "", page)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	filter := store.OrderFilter{Search: strings.TrimSpace(q.Get("search"))}
	if s := q.Get("status"); s != "" && s != "all" {
		st, err := order.ParseStatus(s)
		if err != nil {
			respondError(w, h.logger, err)
			return
		}
		filter.OrderStatus = st
	}
	if s := q.Get("paymentStatus"); s != "" && s != "all" {
		filter.PaymentStatus = models.PaymentStatus(s)
	}
	if s := q.Get("paymentMethod"); s != "" && s != "all" {
		m, err := order.ParsePaymentMethod(s)
		if err != nil {
			respondError(w, h.logger, err)
			return
		}
		filter.PaymentMethod = m
	}

	result, err := h.orders.ListOrders(r.Context(), filter, page, pageSize)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, "", result)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	p := caller(r)

	o, err := h.orders.GetOrder(r.Context(), p.UserID, p.IsAdmin(), id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, "", o)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
		Note   string `json:"note"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), caller(r).UserID, id, req.Status, req.Note)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, "Order status updated", o)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	// The body is optional.
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, Envelope{Error: apperr.CodeValidation, Message: "Invalid request body"})
			return
		}
	}

	o, err := h.orders.CancelMyOrder(r.Context(), caller(r).UserID, id, req.Reason)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, "Order cancelled", o)
}

func (h *Handler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req struct {
		ShippingAddress models.Address `json:"shipping_address"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	o, err := h.orders.UpdateAddress(r.Context(), caller(r).UserID, id, req.ShippingAddress)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, "Shipping address updated", o)
}

func (h *Handler) UpdateTracking(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req order.TrackingUpdate
	if !h.decode(w, r, &req) {
		return
	}

	o, err := h.orders.UpdateTracking(r.Context(), id, req)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respond(w, http.StatusOK, "Tracking updated", o)
}
