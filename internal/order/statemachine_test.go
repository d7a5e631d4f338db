package order

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-shop-orders/internal/apperr"
	"github.com/safar/go-shop-orders/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPendingOrder(now time.Time) *models.Order {
	return &models.Order{
		OrderStatus:   models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		StatusHistory: []models.StatusHistoryEntry{{Status: models.OrderStatusPending, UpdatedAt: now}},
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to models.OrderStatus
		code     string
	}{
		{models.OrderStatusPending, models.OrderStatusConfirmed, ""},
		{models.OrderStatusPending, models.OrderStatusShipped, ""},
		{models.OrderStatusShipped, models.OrderStatusDelivered, ""},
		{models.OrderStatusOutForDelivery, models.OrderStatusCancelled, ""},
		{models.OrderStatusConfirmed, models.OrderStatusConfirmed, apperr.CodeInvalidTransition},
		{models.OrderStatusShipped, models.OrderStatusPending, apperr.CodeInvalidTransition},
		{models.OrderStatusDelivered, models.OrderStatusCancelled, apperr.CodeOrderLocked},
		{models.OrderStatusCancelled, models.OrderStatusConfirmed, apperr.CodeOrderLocked},
		{models.OrderStatusPending, "Lost", apperr.CodeValidation},
	}

	for _, tc := range cases {
		err := CanTransition(tc.from, tc.to)
		if tc.code == "" {
			assert.NoError(t, err, "%s -> %s", tc.from, tc.to)
			continue
		}
		assert.Equal(t, tc.code, apperr.CodeOf(err), "%s -> %s", tc.from, tc.to)
	}
}

func TestTransitionAppendsHistory(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	o := newPendingOrder(now)
	admin := uuid.New()

	steps := []models.OrderStatus{
		models.OrderStatusConfirmed,
		models.OrderStatusShipped,
		models.OrderStatusOutForDelivery,
		models.OrderStatusDelivered,
	}
	for i, st := range steps {
		entry, err := Transition(o, st, &admin, "", now.Add(time.Duration(i+1)*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, st, entry.Status)
	}

	require.Len(t, o.StatusHistory, 1+len(steps))
	for i, st := range steps {
		assert.Equal(t, st, o.StatusHistory[i+1].Status)
		assert.True(t, o.StatusHistory[i+1].UpdatedAt.After(o.StatusHistory[i].UpdatedAt))
		assert.Equal(t, &admin, o.StatusHistory[i+1].UpdatedBy)
	}
	assert.Equal(t, models.PaymentStatusPaid, o.PaymentStatus, "delivery settles payment")
}

func TestTerminalLockLeavesHistoryUnchanged(t *testing.T) {
	now := time.Now()
	for _, terminal := range []models.OrderStatus{models.OrderStatusDelivered, models.OrderStatusCancelled} {
		o := newPendingOrder(now)
		_, err := Transition(o, terminal, nil, "", now)
		require.NoError(t, err)
		before := len(o.StatusHistory)

		for _, to := range append(happyPath, models.OrderStatusCancelled) {
			_, err := Transition(o, to, nil, "", now)
			assert.True(t, apperr.HasCode(err, apperr.CodeOrderLocked), "%s -> %s", terminal, to)
		}
		assert.Len(t, o.StatusHistory, before)
		assert.Equal(t, terminal, o.OrderStatus)
	}
}

func TestUserGates(t *testing.T) {
	for _, st := range []models.OrderStatus{models.OrderStatusShipped, models.OrderStatusOutForDelivery, models.OrderStatusDelivered} {
		err := CanUserCancel(st)
		e, ok := apperr.As(err)
		require.True(t, ok, st)
		assert.Equal(t, apperr.KindState, e.Kind)
	}
	assert.NoError(t, CanUserCancel(models.OrderStatusPending))
	assert.NoError(t, CanUserCancel(models.OrderStatusConfirmed))
	assert.True(t, apperr.HasCode(CanUserCancel(models.OrderStatusCancelled), apperr.CodeOrderLocked))

	assert.NoError(t, CanEditAddress(models.OrderStatusConfirmed))
	assert.Error(t, CanEditAddress(models.OrderStatusCancelled))
	assert.Error(t, CanEditAddress(models.OrderStatusOutForDelivery))
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("out_for_delivery")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusOutForDelivery, st)

	st, err = ParseStatus("Canceled")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, st)

	_, err = ParseStatus("teleported")
	assert.Error(t, err)
}
