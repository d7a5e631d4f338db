package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/safar/go-shop-orders/internal/apperr"
	"github.com/safar/go-shop-orders/internal/models"
	"github.com/stripe/stripe-go/v76"
)

const (
	SignatureHeader = "X-Webhook-Signature"

	EventCheckoutCompleted = "checkout.session.completed"
)

// Sign returns the hex HMAC-SHA256 of payload under secret, the value
// expected in SignatureHeader.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func VerifyWebhookSignature(secret string, body []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	if secret == "" || signature == "" {
		return apperr.New(apperr.KindUnauthorized, apperr.CodeInvalidSignature, "Missing webhook signature")
	}
	if !hmac.Equal([]byte(Sign(secret, body)), []byte(strings.ToLower(signature))) {
		return apperr.New(apperr.KindUnauthorized, apperr.CodeInvalidSignature, "Invalid webhook signature")
	}
	return nil
}

// VerifyRazorpaySignature checks the signature Razorpay hands the client
// after a successful checkout: hex HMAC-SHA256 of "orderId|paymentId".
func VerifyRazorpaySignature(secret, orderID, paymentID, signature string) bool {
	expected := Sign(secret, []byte(orderID+"|"+paymentID))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

type WebhookEvent struct {
	ID        string
	Type      string
	SessionID string
}

// ParseWebhookEvent decodes a gateway event. SessionID is set only for
// checkout session events.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var event stripe.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, apperr.Validation("malformed webhook payload")
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if strings.HasPrefix(out.Type, "checkout.session.") && event.Data != nil {
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return nil, apperr.Validation("malformed checkout session in webhook payload")
		}
		out.SessionID = cs.ID
	}
	return out, nil
}

// Proof is what a client sends with a direct order to show it already paid.
type Proof struct {
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	Signature        string `json:"signature"`
	SessionID        string `json:"session_id"`
}

func (p Proof) Info() models.PaymentInfo {
	return models.PaymentInfo{
		GatewayOrderID:   p.GatewayOrderID,
		GatewayPaymentID: p.GatewayPaymentID,
		SessionID:        p.SessionID,
	}
}

// Verifier settles whether a direct order is already paid. Missing proof
// means pending; a proof that does not check out is rejected.
type Verifier struct {
	gateway        Gateway
	razorpaySecret string
}

func NewVerifier(gateway Gateway, razorpaySecret string) *Verifier {
	return &Verifier{gateway: gateway, razorpaySecret: razorpaySecret}
}

// Expected pins a proof to the order it is presented with.
type Expected struct {
	AmountMinor int64
	UserID      string
}

// Verify reports whether proof settles an order of the expected amount for
// the expected user. A gateway session paid for another amount or another
// user is rejected.
func (v *Verifier) Verify(ctx context.Context, method models.PaymentMethod, proof Proof, want Expected) (bool, error) {
	switch method {
	case models.PaymentRazorpay:
		if proof.GatewayOrderID == "" || proof.GatewayPaymentID == "" || proof.Signature == "" {
			return false, nil
		}
		if v.razorpaySecret == "" {
			return false, nil
		}
		if !VerifyRazorpaySignature(v.razorpaySecret, proof.GatewayOrderID, proof.GatewayPaymentID, proof.Signature) {
			return false, apperr.New(apperr.KindPaymentPolicy, apperr.CodePaymentUnverified, "Payment signature verification failed")
		}
		return true, nil

	case models.PaymentStripe:
		if proof.SessionID == "" || v.gateway == nil {
			return false, nil
		}
		s, err := v.gateway.FetchSession(ctx, proof.SessionID)
		if err != nil {
			return false, fmt.Errorf("verify payment: %w", err)
		}
		if !s.Paid {
			return false, nil
		}
		if s.AmountTotal != want.AmountMinor || s.ClientReferenceID != want.UserID {
			return false, apperr.New(apperr.KindPaymentPolicy, apperr.CodePaymentUnverified,
				"Payment session does not match this order")
		}
		return true, nil

	default:
		return false, nil
	}
}
