package payment

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"
)

var (
	ErrWebhookUnconfigured = errors.New("gateway webhook secret not configured")
	ErrInvalidWebhook      = errors.New("invalid gateway webhook")
)

// PaymentEvent is a gateway notification about one payment.
type PaymentEvent struct {
	ID      string
	Type    string
	Payment *Payment
}

// Succeeded reports whether the event confirms a captured payment.
func (e *PaymentEvent) Succeeded() bool {
	return e.Type == string(stripe.EventTypePaymentIntentSucceeded) && e.Payment != nil && e.Payment.Succeeded()
}

// WebhookVerifier authenticates Stripe webhook deliveries.
type WebhookVerifier struct {
	secret string
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

func (v *WebhookVerifier) Configured() bool {
	return v != nil && v.secret != ""
}

// ParsePaymentEvent checks the Stripe-Signature header and decodes the event.
// Events that do not carry a PaymentIntent come back with a nil Payment.
func (v *WebhookVerifier) ParsePaymentEvent(payload []byte, signatureHeader string) (*PaymentEvent, error) {
	if !v.Configured() {
		return nil, ErrWebhookUnconfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	ev := &PaymentEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return ev, nil
	}
	var obj struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil || obj.Object != "payment_intent" {
		return ev, nil
	}
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, fmt.Errorf("%w: decode payment intent: %v", ErrInvalidWebhook, err)
	}
	ev.Payment = paymentFromIntent(&intent)
	return ev, nil
}
