// Package payments collects membership dues through Stripe Checkout.
package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
)

// ErrNotConfigured is returned when no Stripe key is set
var ErrNotConfigured = errors.New("payments are not configured")

// CheckoutRequest describes a dues payment to collect
type CheckoutRequest struct {
	UserID      string
	Email       string
	AmountCents int64
	Currency    string
	SuccessURL  string
	CancelURL   string
}

// Checkout is a created payment session
type Checkout struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// Payment is the state of a checkout session
type Payment struct {
	SessionID   string
	UserID      string
	Paid        bool
	AmountCents int64
	Currency    string
}

// Provider creates and confirms dues payments
type Provider interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error)
	Confirm(ctx context.Context, sessionID string) (Payment, error)
}

// Stripe is a Provider backed by Stripe Checkout sessions
type Stripe struct{}

// NewStripe sets the global Stripe key. An empty key yields a nil Provider.
func NewStripe(secretKey string) Provider {
	if secretKey == "" {
		return nil
	}
	stripe.Key = secretKey
	return Stripe{}
}

// CreateCheckout starts a one-off payment for the member's dues
func (Stripe) CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.UserID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(req.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Annual membership dues"),
					},
					UnitAmount: stripe.Int64(req.AmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	params.AddMetadata("userId", req.UserID)
	params.Context = ctx

	s, err := session.New(params)
	if err != nil {
		return Checkout{}, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return Checkout{SessionID: s.ID, URL: s.URL}, nil
}

// Confirm reads back a session after the member returns from Stripe
func (Stripe) Confirm(ctx context.Context, sessionID string) (Payment, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := session.Get(sessionID, params)
	if err != nil {
		return Payment{}, fmt.Errorf("failed to fetch checkout session: %w", err)
	}
	return Payment{
		SessionID:   s.ID,
		UserID:      s.ClientReferenceID,
		Paid:        s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		AmountCents: s.AmountTotal,
		Currency:    string(s.Currency),
	}, nil
}
