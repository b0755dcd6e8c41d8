package payment

import (
	"context"
	"errors"
	"fmt"
)

// ErrGatewayUnconfigured is returned by every call on the Unconfigured gateway.
var ErrGatewayUnconfigured = errors.New("payment gateway credentials not configured")

// Gateway is the payment processor that mints tracked orders before the user pays.
type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*GatewayOrder, error)
	FetchPayment(ctx context.Context, id string) (*Payment, error)
}

type OrderRequest struct {
	Amount   int64 // minor units
	Currency string
	Receipt  string
	Notes    map[string]string
}

type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// StatusSucceeded is the payment status once funds are captured.
const StatusSucceeded = "succeeded"

type Payment struct {
	ID       string            `json:"id"`
	OrderID  string            `json:"order_id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Status   string            `json:"status"`
	Notes    map[string]string `json:"notes,omitempty"`
}

func (p *Payment) Succeeded() bool { return p.Status == StatusSucceeded }

// GatewayError carries the processor's own status code and description.
type GatewayError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway error %d (%s): %s", e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("gateway error %d: %s", e.StatusCode, e.Description)
}

// Unconfigured stands in for the gateway when credentials are missing.
type Unconfigured struct{}

func (Unconfigured) CreateOrder(context.Context, OrderRequest) (*GatewayOrder, error) {
	return nil, ErrGatewayUnconfigured
}

func (Unconfigured) FetchPayment(context.Context, string) (*Payment, error) {
	return nil, ErrGatewayUnconfigured
}

// Configured reports whether g talks to a real processor.
func Configured(g Gateway) bool {
	if g == nil {
		return false
	}
	_, unconfigured := g.(Unconfigured)
	return !unconfigured
}

// NewGateway returns the Stripe adapter, or Unconfigured when no key is set.
func NewGateway(secretKey, currency string) Gateway {
	if secretKey == "" {
		return Unconfigured{}
	}
	return NewStripeGateway(secretKey, currency)
}
