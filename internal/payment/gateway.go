// Package payment talks to the card gateway and verifies the proofs clients
// and the gateway send back.
package payment

import (
	"context"
	"fmt"

	"github.com/safar/go-shop-orders/internal/config"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/client"
)

type SessionRequest struct {
	AmountMinor       int64
	Currency          string
	Description       string
	CustomerEmail     string
	ClientReferenceID string
	Metadata          map[string]string
}

type Session struct {
	ID                string
	URL               string
	Paid              bool
	AmountTotal       int64
	ClientReferenceID string
	PaymentIntentID   string
	Metadata          map[string]string
}

type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	FetchSession(ctx context.Context, id string) (*Session, error)
}

// Stripe creates hosted checkout sessions charging one line for the whole
// order amount.
type Stripe struct {
	sessions   *session.Client
	successURL string
	cancelURL  string
}

func NewStripe(cfg config.PaymentConfig) *Stripe {
	sc := client.New(cfg.StripeSecretKey, nil)
	return &Stripe{
		sessions:   sc.CheckoutSessions,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
	}
}

func (s *Stripe) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
		ClientReferenceID: stripe.String(req.ClientReferenceID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(req.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
					UnitAmount: stripe.Int64(req.AmountMinor),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	cs, err := s.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return fromStripe(cs), nil
}

func (s *Stripe) FetchSession(ctx context.Context, id string) (*Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	cs, err := s.sessions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("fetch checkout session %s: %w", id, err)
	}
	return fromStripe(cs), nil
}

func fromStripe(cs *stripe.CheckoutSession) *Session {
	out := &Session{
		ID:                cs.ID,
		URL:               cs.URL,
		Paid:              cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotal:       cs.AmountTotal,
		ClientReferenceID: cs.ClientReferenceID,
		Metadata:          cs.Metadata,
	}
	if cs.PaymentIntent != nil {
		out.PaymentIntentID = cs.PaymentIntent.ID
	}
	return out
}
