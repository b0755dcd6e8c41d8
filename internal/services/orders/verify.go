package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"sarvin_back_end/internal/models"
	"sarvin_back_end/internal/repository"
)

const orderIDAttempts = 3

type VerifyRequest struct {
	Items           []ItemRequest           `json:"items"`
	ShippingAddress *models.ShippingAddress `json:"shippingAddress"`
	Total           decimal.Decimal         `json:"total"`
	PaymentMethod   string                  `json:"paymentMethod"`
	PaymentDetails  *PaymentDetails         `json:"paymentDetails"`
}

type ItemRequest struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

// PaymentDetails is the gateway's confirmation returned to the client after payment.
type PaymentDetails struct {
	GatewayPaymentID string `json:"gatewayPaymentId"`
	GatewayOrderID   string `json:"gatewayOrderId"`
	GatewaySignature string `json:"gatewaySignature"`
}

func (r *VerifyRequest) validate() *Error {
	if len(r.Items) == 0 {
		return newError(KindMalformedRequest, "Items are required", nil)
	}
	if r.ShippingAddress == nil {
		return newError(KindMalformedRequest, "Shipping address is required", nil)
	}
	if r.PaymentDetails == nil {
		return newError(KindMalformedRequest, "Payment details are required", nil)
	}
	d := r.PaymentDetails
	if d.GatewayPaymentID == "" || d.GatewayOrderID == "" || d.GatewaySignature == "" {
		return newError(KindMalformedRequest, "Incomplete payment details", nil)
	}
	for _, item := range r.Items {
		if item.Quantity <= 0 {
			return newError(KindMalformedRequest, fmt.Sprintf("Invalid quantity for product %s", item.Product), nil)
		}
	}
	return nil
}

// VerifyPayment checks the gateway signature, re-prices the cart from the
// catalog and commits the order together with its stock decrements.
func (s *Service) VerifyPayment(ctx context.Context, user models.User, req VerifyRequest) (*models.Order, error) {
	order, err := s.verifyPayment(ctx, user, req)
	if err != nil {
		s.observeCheckout(string(KindOf(err)))
		return nil, err
	}
	s.observeCheckout("success")
	return order, nil
}

func (s *Service) verifyPayment(ctx context.Context, user models.User, req VerifyRequest) (*models.Order, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	details := req.PaymentDetails

	if !s.verifier.Verify(details.GatewayOrderID, details.GatewayPaymentID, details.GatewaySignature) {
		s.log.Warn("payment signature rejected",
			zap.String("user_id", user.ID),
			zap.String("gateway_order_id", details.GatewayOrderID))
		return nil, newError(KindPaymentVerificationFailed, "Payment verification failed - Invalid signature", nil)
	}

	if s.locker != nil {
		acquired, err := s.locker.AcquirePayment(ctx, details.GatewayPaymentID, s.opts.PaymentLockTTL)
		switch {
		case err != nil:
			// The unique payment index still rejects a second commit.
			s.log.Warn("payment lock unavailable", zap.String("payment_id", details.GatewayPaymentID), zap.Error(err))
		case !acquired:
			return nil, newError(KindDuplicatePayment, "Payment is already being processed", nil)
		default:
			defer func() {
				if err := s.locker.ReleasePayment(context.WithoutCancel(ctx), details.GatewayPaymentID); err != nil {
					s.log.Warn("payment lock release failed", zap.String("payment_id", details.GatewayPaymentID), zap.Error(err))
				}
			}()
		}
	}

	items, decrements, calculated, err := s.priceItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	if calculated.Sub(req.Total).Abs().GreaterThan(*s.opts.Tolerance) {
		e := newError(KindTotalMismatch, "Total amount mismatch", nil)
		e.Details = map[string]any{"calculated": calculated, "provided": req.Total}
		return nil, e
	}

	if s.opts.VerifyChargedAmount {
		if err := s.verifyCharge(ctx, details, calculated); err != nil {
			return nil, err
		}
	}

	now := s.opts.Now()
	order := &models.Order{
		User:            user.Summary(),
		Items:           items,
		Total:           calculated,
		ShippingAddress: *req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   models.PaymentStatusCompleted,
		PaymentID:       details.GatewayPaymentID,
		GatewayOrderID:  details.GatewayOrderID,
		OrderStatus:     models.InitialOrderStatus,
		StatusHistory: []models.StatusEntry{{
			Status:    models.InitialOrderStatus,
			Timestamp: now,
			UpdatedBy: user.ID,
		}},
		StatusNotifications: []models.StatusNotification{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.commit(ctx, order, decrements); err != nil {
		return nil, err
	}

	s.log.Info("order created",
		zap.String("order_id", order.OrderID),
		zap.String("user_id", user.ID),
		zap.String("payment_id", order.PaymentID),
		zap.String("total", order.Total.String()))

	s.record(ctx, models.AuditLog{
		UserID:     user.ID,
		UserEmail:  user.Email,
		Action:     ActionOrderCreate,
		Resource:   ResourceOrder,
		ResourceID: order.OrderID,
		NewValue:   string(order.OrderStatus),
		Success:    true,
		Timestamp:  now,
	})

	created, err := s.store.FindOrder(ctx, models.ByInternalKey(order.ID))
	if err != nil {
		// The order is durable; fall back to what was written.
		s.log.Warn("re-read of created order failed", zap.String("order_id", order.OrderID), zap.Error(err))
		created = order
	}

	s.sendOrderEmails(ctx, created)
	return created, nil
}

// priceItems re-validates every line against the catalog and sums the
// authoritative total. Nothing is written.
func (s *Service) priceItems(ctx context.Context, reqItems []ItemRequest) ([]models.OrderItem, []models.StockDecrement, decimal.Decimal, error) {
	items := make([]models.OrderItem, 0, len(reqItems))
	decrements := make([]models.StockDecrement, 0, len(reqItems))

	for _, it := range reqItems {
		product, err := s.store.FindProduct(ctx, it.Product)
		switch {
		case errors.Is(err, repository.ErrInvalidID):
			return nil, nil, decimal.Zero, newError(KindInvalidProductID, fmt.Sprintf("Invalid product ID: %s", it.Product), err)
		case errors.Is(err, repository.ErrNotFound):
			return nil, nil, decimal.Zero, newError(KindProductNotFound, fmt.Sprintf("Product not found: %s", it.Product), err)
		case err != nil:
			return nil, nil, decimal.Zero, serverError("Payment verification failed", err)
		}

		if product.Stock < it.Quantity {
			return nil, nil, decimal.Zero, newError(KindInsufficientStock, fmt.Sprintf("Insufficient stock for %s", product.Name), nil)
		}

		items = append(items, models.OrderItem{
			Product:  product.ID,
			Quantity: it.Quantity,
			Price:    product.EffectivePrice(),
		})
		decrements = append(decrements, models.StockDecrement{ProductID: product.ID, Quantity: it.Quantity})
	}
	return items, decrements, models.ItemsTotal(items), nil
}

// verifyCharge compares the captured gateway amount with the catalog total.
func (s *Service) verifyCharge(ctx context.Context, details *PaymentDetails, calculated decimal.Decimal) error {
	gctx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	defer cancel()

	p, err := s.gateway.FetchPayment(gctx, details.GatewayPaymentID)
	if err != nil {
		return gatewayFailure(err, "Payment verification failed")
	}
	if p.OrderID != "" && p.OrderID != details.GatewayOrderID {
		return newError(KindPaymentVerificationFailed, "Payment does not belong to the gateway order", nil)
	}

	expected := calculated.Mul(decimal.NewFromInt(s.opts.MinorUnits)).Round(0).IntPart()
	if p.Amount != expected {
		e := newError(KindTotalMismatch, "Charged amount does not match order total", nil)
		e.Details = map[string]any{"calculated": expected, "charged": p.Amount}
		return e
	}
	return nil
}

// commit mints an order id and writes the order, retrying when the id collides.
func (s *Service) commit(ctx context.Context, order *models.Order, decrements []models.StockDecrement) error {
	for attempt := 1; ; attempt++ {
		id, err := s.ids.NextOrderID(ctx)
		if err != nil {
			s.log.Warn("order id sequence unavailable, using random id", zap.Error(err))
			id, _ = RandomIDs{Now: s.opts.Now}.NextOrderID(ctx)
		}
		order.OrderID = id

		err = s.store.CommitOrder(ctx, order, decrements)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, repository.ErrDuplicateOrderID) && attempt < orderIDAttempts:
			s.log.Warn("order id collision, retrying", zap.String("order_id", id), zap.Int("attempt", attempt))
			continue
		case errors.Is(err, repository.ErrInsufficientStock):
			return newError(KindInsufficientStock, "Insufficient stock for one or more items", err)
		case errors.Is(err, repository.ErrNotFound):
			return newError(KindProductNotFound, "Product no longer exists", err)
		case errors.Is(err, repository.ErrDuplicatePayment):
			return newError(KindDuplicatePayment, "Payment has already been used for an order", err)
		default:
			return serverError("Payment verification failed", err)
		}
	}
}

func (s *Service) sendOrderEmails(ctx context.Context, order *models.Order) {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.NotifyTimeout)
	defer cancel()

	if err := s.notifier.SendOrderConfirmation(nctx, order); err != nil {
		s.log.Error("order confirmation email failed", zap.String("order_id", order.OrderID), zap.Error(err))
	}
	if err := s.notifier.SendAdminNotification(nctx, order); err != nil {
		s.log.Error("admin order notification failed", zap.String("order_id", order.OrderID), zap.Error(err))
	}
}
