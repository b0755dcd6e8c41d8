package orders

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"sarvin_back_end/internal/models"
	"sarvin_back_end/internal/payment"
)

// CreatePaymentOrder asks the gateway for a tracked order of amount minor units.
func (s *Service) CreatePaymentOrder(ctx context.Context, user models.User, amount int64) (*payment.GatewayOrder, error) {
	if amount <= 0 {
		return nil, newError(KindInvalidAmount, "Invalid amount", nil)
	}
	if !payment.Configured(s.gateway) {
		return nil, newError(KindGatewayUnconfigured, "Payment gateway not configured", payment.ErrGatewayUnconfigured)
	}

	now := s.opts.Now()
	req := payment.OrderRequest{
		Amount:   amount,
		Currency: s.opts.Currency,
		Receipt:  fmt.Sprintf("receipt_%d", now.UnixMilli()),
		Notes: map[string]string{
			"userId":    user.ID,
			"timestamp": now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		},
	}

	gctx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	defer cancel()

	order, err := s.gateway.CreateOrder(gctx, req)
	if err != nil {
		s.log.Error("gateway order creation failed",
			zap.String("user_id", user.ID),
			zap.Int64("amount", amount),
			zap.Error(err))
		return nil, gatewayFailure(err, "Failed to create payment order")
	}

	s.log.Info("gateway order created",
		zap.String("gateway_order_id", order.ID),
		zap.String("user_id", user.ID),
		zap.Int64("amount", order.Amount))
	return order, nil
}

func gatewayFailure(err error, fallback string) *Error {
	if errors.Is(err, payment.ErrGatewayUnconfigured) {
		return newError(KindGatewayUnconfigured, "Payment gateway not configured", err)
	}
	var gerr *payment.GatewayError
	if errors.As(err, &gerr) {
		e := newError(KindGatewayError, gerr.Description, err)
		e.StatusCode = gerr.StatusCode
		if gerr.Code != "" {
			e.Details = map[string]any{"gatewayCode": gerr.Code}
		}
		return e
	}
	return serverError(fallback, err)
}
