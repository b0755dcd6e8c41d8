package orders

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"sarvin_back_end/internal/models"
	"sarvin_back_end/internal/payment"
)

// HandleGatewayWebhook authenticates a gateway delivery and remembers
// captured payments so ConfirmPayment can answer without a gateway call.
func (s *Service) HandleGatewayWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	ev, err := s.webhooks.ParsePaymentEvent(payload, signatureHeader)
	switch {
	case errors.Is(err, payment.ErrWebhookUnconfigured):
		return newError(KindGatewayUnconfigured, "Payment webhook not configured", err)
	case err != nil:
		s.log.Warn("gateway webhook rejected", zap.Error(err))
		return newError(KindPaymentVerificationFailed, "Invalid webhook signature", err)
	}

	if !ev.Succeeded() {
		s.log.Debug("gateway event ignored", zap.String("event_id", ev.ID), zap.String("type", ev.Type))
		return nil
	}
	if s.confirmations == nil {
		return nil
	}
	if err := s.confirmations.SavePaymentConfirmation(ctx, ev.Payment, s.opts.ConfirmationTTL); err != nil {
		return serverError("Failed to record payment", err)
	}
	s.log.Info("gateway payment confirmed",
		zap.String("event_id", ev.ID),
		zap.String("gateway_order_id", ev.Payment.OrderID),
		zap.Int64("amount", ev.Payment.Amount))
	return nil
}

// ConfirmPayment returns signed payment details for a captured gateway order
// of user. The client submits them unchanged to VerifyPayment.
func (s *Service) ConfirmPayment(ctx context.Context, user models.User, gatewayOrderID string) (*PaymentDetails, error) {
	if gatewayOrderID == "" {
		return nil, newError(KindMalformedRequest, "Gateway order ID is required", nil)
	}
	if !s.verifier.Configured() {
		return nil, newError(KindGatewayUnconfigured, "Payment confirmation not configured", nil)
	}

	p, err := s.capturedPayment(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	if !p.Succeeded() {
		e := newError(KindPaymentIncomplete, "Payment has not completed", nil)
		e.Details = map[string]any{"paymentStatus": p.Status}
		return nil, e
	}
	if owner := p.Notes["userId"]; owner != "" && owner != user.ID {
		return nil, newError(KindPaymentVerificationFailed, "Payment does not belong to this user", nil)
	}

	orderID := p.OrderID
	if orderID == "" {
		orderID = gatewayOrderID
	}
	return &PaymentDetails{
		GatewayPaymentID: p.ID,
		GatewayOrderID:   orderID,
		GatewaySignature: s.verifier.Sign(orderID, p.ID),
	}, nil
}

// capturedPayment prefers the webhook record and asks the gateway otherwise.
func (s *Service) capturedPayment(ctx context.Context, gatewayOrderID string) (*payment.Payment, error) {
	if s.confirmations != nil {
		p, err := s.confirmations.PaymentConfirmation(ctx, gatewayOrderID)
		if err != nil {
			s.log.Warn("payment confirmation lookup failed", zap.String("gateway_order_id", gatewayOrderID), zap.Error(err))
		}
		if p != nil {
			return p, nil
		}
	}
	if !payment.Configured(s.gateway) {
		return nil, newError(KindGatewayUnconfigured, "Payment gateway not configured", payment.ErrGatewayUnconfigured)
	}

	gctx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	defer cancel()
	p, err := s.gateway.FetchPayment(gctx, gatewayOrderID)
	if err != nil {
		return nil, gatewayFailure(err, "Payment confirmation failed")
	}
	return p, nil
}
