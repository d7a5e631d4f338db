package order

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-shop-orders/internal/apperr"
	"github.com/safar/go-shop-orders/internal/models"
)

var happyPath = []models.OrderStatus{
	models.OrderStatusPending,
	models.OrderStatusConfirmed,
	models.OrderStatusShipped,
	models.OrderStatusOutForDelivery,
	models.OrderStatusDelivered,
}

func rank(s models.OrderStatus) int {
	for i, st := range happyPath {
		if st == s {
			return i
		}
	}
	return -1
}

func IsTerminal(s models.OrderStatus) bool {
	return s == models.OrderStatusDelivered || s == models.OrderStatusCancelled
}

// ParseStatus accepts the canonical names case-insensitively, with "_" or
// "-" in place of spaces.
func ParseStatus(s string) (models.OrderStatus, error) {
	key := strings.ToLower(strings.NewReplacer("_", " ", "-", " ").Replace(strings.TrimSpace(s)))
	switch key {
	case "pending":
		return models.OrderStatusPending, nil
	case "confirmed":
		return models.OrderStatusConfirmed, nil
	case "shipped":
		return models.OrderStatusShipped, nil
	case "out for delivery", "outfordelivery":
		return models.OrderStatusOutForDelivery, nil
	case "delivered":
		return models.OrderStatusDelivered, nil
	case "cancelled", "canceled":
		return models.OrderStatusCancelled, nil
	default:
		return "", apperr.Validation("invalid order status %q", s)
	}
}

// CanTransition reports whether an order in from may move to to. Orders
// only move forward along the happy path, may be cancelled until they
// reach a terminal state, and never leave a terminal state.
func CanTransition(from, to models.OrderStatus) error {
	if IsTerminal(from) {
		return apperr.Newf(apperr.KindState, apperr.CodeOrderLocked,
			"Order is already %s and can no longer be changed", from)
	}
	if to == models.OrderStatusCancelled {
		return nil
	}

	rf, rt := rank(from), rank(to)
	if rt < 0 {
		return apperr.Validation("invalid order status %q", to)
	}
	if rt <= rf {
		return apperr.Newf(apperr.KindState, apperr.CodeInvalidTransition,
			"Cannot change order status from %s to %s", from, to)
	}
	return nil
}

// Transition moves o to status and returns the history entry it appended.
// o is left untouched when the move is not allowed.
func Transition(o *models.Order, to models.OrderStatus, actor *uuid.UUID, note string, now time.Time) (models.StatusHistoryEntry, error) {
	if err := CanTransition(o.OrderStatus, to); err != nil {
		return models.StatusHistoryEntry{}, err
	}

	entry := models.StatusHistoryEntry{
		Status:    to,
		Note:      note,
		UpdatedAt: now,
		UpdatedBy: actor,
	}

	o.OrderStatus = to
	if to == models.OrderStatusDelivered {
		o.PaymentStatus = models.PaymentStatusPaid
	}
	o.StatusHistory = append(o.StatusHistory, entry)
	o.UpdatedAt = now
	return entry, nil
}

func shippedOrLater(s models.OrderStatus) bool {
	return s == models.OrderStatusShipped ||
		s == models.OrderStatusOutForDelivery ||
		s == models.OrderStatusDelivered
}

// CanUserCancel gates shopper initiated cancellation.
func CanUserCancel(s models.OrderStatus) error {
	if shippedOrLater(s) {
		return apperr.Newf(apperr.KindState, apperr.CodeInvalidTransition,
			"Order cannot be cancelled once it is %s", s)
	}
	return CanTransition(s, models.OrderStatusCancelled)
}

func CanEditAddress(s models.OrderStatus) error {
	if shippedOrLater(s) || s == models.OrderStatusCancelled {
		return apperr.Newf(apperr.KindState, apperr.CodeOrderLocked,
			"Shipping address cannot be changed once the order is %s", s)
	}
	return nil
}
