package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/safar/go-shop-orders/internal/apperr"
	"github.com/safar/go-shop-orders/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyWebhookSignature(t *testing.T) {
	body := []byte(`{"type":"checkout.session.completed"}`)
	sig := Sign("whsec", body)

	assert.NoError(t, VerifyWebhookSignature("whsec", body, sig))

	err := VerifyWebhookSignature("whsec", []byte(`{"type":"tampered"}`), sig)
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidSignature))

	err = VerifyWebhookSignature("whsec", body, "")
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidSignature))
}

func TestVerifyRazorpaySignature(t *testing.T) {
	sig := Sign("rzp_secret", []byte("order_1|pay_1"))

	assert.True(t, VerifyRazorpaySignature("rzp_secret", "order_1", "pay_1", sig))
	assert.False(t, VerifyRazorpaySignature("rzp_secret", "order_1", "pay_2", sig))
}

func TestParseWebhookEvent(t *testing.T) {
	body := []byte(`{
		"id": "evt_1",
		"object": "event",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_test_123", "object": "checkout.session"}}
	}`)

	ev, err := ParseWebhookEvent(body)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, EventCheckoutCompleted, ev.Type)
	assert.Equal(t, "cs_test_123", ev.SessionID)

	_, err = ParseWebhookEvent([]byte(`not json`))
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
}

type stubGateway struct {
	session *Session
	err     error
}

func (g *stubGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	return g.session, g.err
}

func (g *stubGateway) FetchSession(ctx context.Context, id string) (*Session, error) {
	return g.session, g.err
}

func TestVerifier(t *testing.T) {
	ctx := context.Background()
	gw := &stubGateway{session: &Session{ID: "cs_1", Paid: true, AmountTotal: 50000, ClientReferenceID: "user-1"}}
	v := NewVerifier(gw, "rzp_secret")
	want := Expected{AmountMinor: 50000, UserID: "user-1"}

	paid, err := v.Verify(ctx, models.PaymentCOD, Proof{}, want)
	require.NoError(t, err)
	assert.False(t, paid)

	paid, err = v.Verify(ctx, models.PaymentRazorpay, Proof{}, want)
	require.NoError(t, err)
	assert.False(t, paid, "missing proof leaves the order pending")

	good := Proof{GatewayOrderID: "order_1", GatewayPaymentID: "pay_1", Signature: Sign("rzp_secret", []byte("order_1|pay_1"))}
	paid, err = v.Verify(ctx, models.PaymentRazorpay, good, want)
	require.NoError(t, err)
	assert.True(t, paid)

	bad := good
	bad.Signature = "00"
	_, err = v.Verify(ctx, models.PaymentRazorpay, bad, want)
	assert.True(t, apperr.HasCode(err, apperr.CodePaymentUnverified))

	paid, err = v.Verify(ctx, models.PaymentStripe, Proof{SessionID: "cs_1"}, want)
	require.NoError(t, err)
	assert.True(t, paid)

	_, err = v.Verify(ctx, models.PaymentStripe, Proof{SessionID: "cs_1"}, Expected{AmountMinor: 9000000, UserID: "user-1"})
	assert.True(t, apperr.HasCode(err, apperr.CodePaymentUnverified), "amount mismatch: %v", err)

	_, err = v.Verify(ctx, models.PaymentStripe, Proof{SessionID: "cs_1"}, Expected{AmountMinor: 50000, UserID: "user-2"})
	assert.True(t, apperr.HasCode(err, apperr.CodePaymentUnverified), "user mismatch: %v", err)

	gw.session = &Session{ID: "cs_1", Paid: false}
	paid, err = v.Verify(ctx, models.PaymentStripe, Proof{SessionID: "cs_1"}, want)
	require.NoError(t, err)
	assert.False(t, paid)

	gw.err = errors.New("gateway down")
	_, err = v.Verify(ctx, models.PaymentStripe, Proof{SessionID: "cs_1"}, want)
	assert.Error(t, err)
}
