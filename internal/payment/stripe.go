package payment

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v83"
)

const metaReceipt = "receipt"

// StripeGateway maps gateway orders onto Stripe PaymentIntents. The intent id is
// the gateway order id; receipt and notes travel in metadata.
type StripeGateway struct {
	client   *stripe.Client
	currency string
}

func NewStripeGateway(secretKey, currency string) *StripeGateway {
	return &StripeGateway{
		client:   stripe.NewClient(secretKey),
		currency: strings.ToLower(currency),
	}
}

func (g *StripeGateway) CreateOrder(ctx context.Context, req OrderRequest) (*GatewayOrder, error) {
	currency := g.currency
	if req.Currency != "" {
		currency = strings.ToLower(req.Currency)
	}

	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata(metaReceipt, req.Receipt)
	for k, v := range req.Notes {
		params.AddMetadata(k, v)
	}

	intent, err := g.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return nil, convertStripeError(err)
	}

	return &GatewayOrder{
		ID:       intent.ID,
		Amount:   intent.Amount,
		Currency: strings.ToUpper(string(intent.Currency)),
		Receipt:  intent.Metadata[metaReceipt],
		Status:   string(intent.Status),
	}, nil
}

// FetchPayment retrieves the intent; the intent doubles as the payment record.
func (g *StripeGateway) FetchPayment(ctx context.Context, id string) (*Payment, error) {
	intent, err := g.client.V1PaymentIntents.Retrieve(ctx, id, nil)
	if err != nil {
		return nil, convertStripeError(err)
	}

	return paymentFromIntent(intent), nil
}

// paymentFromIntent uses the intent id as both ids: a Stripe intent is paid
// at most once, so it identifies the payment as well as the order.
func paymentFromIntent(intent *stripe.PaymentIntent) *Payment {
	return &Payment{
		ID:       intent.ID,
		OrderID:  intent.ID,
		Amount:   intent.AmountReceived,
		Currency: strings.ToUpper(string(intent.Currency)),
		Status:   string(intent.Status),
		Notes:    intent.Metadata,
	}
}

func convertStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		status := stripeErr.HTTPStatusCode
		if status == 0 {
			status = http.StatusBadGateway
		}
		return &GatewayError{
			StatusCode:  status,
			Code:        string(stripeErr.Code),
			Description: stripeErr.Msg,
		}
	}
	return err
}
