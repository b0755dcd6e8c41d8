package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"sarvin_back_end/internal/models"
	"sarvin_back_end/internal/repository"
)

// Audit actions and resources written by this service.
const (
	ActionOrderCreate       = "order.create"
	ActionOrderStatusUpdate = "order.status_update"
	ResourceOrder           = "order"
)

const notificationMethodEmail = "email"

type StatusUpdateResult struct {
	Order             *models.Order `json:"order"`
	NotificationSent  bool          `json:"notificationSent"`
	NotificationError *string       `json:"notificationError"`
	Message           string        `json:"message"`
}

// UpdateStatus moves an order to status on behalf of admin. The change is
// durable before the customer is emailed; an email failure is reported in the
// result, never returned as an error.
func (s *Service) UpdateStatus(ctx context.Context, admin models.User, ref models.OrderRef, status models.OrderStatus, notes string) (*StatusUpdateResult, error) {
	if !status.Valid() {
		valid := make([]string, 0, 4)
		for _, v := range models.ValidOrderStatuses() {
			valid = append(valid, string(v))
		}
		return nil, newError(KindInvalidStatus,
			fmt.Sprintf("Invalid status: %s. Must be one of: %s", status, strings.Join(valid, ", ")), nil)
	}

	order, err := s.store.FindOrder(ctx, ref)
	if err != nil {
		return nil, lookupFailure(err)
	}
	oldStatus := order.OrderStatus

	if s.opts.EnforceTransitions && !models.CanTransition(oldStatus, status) {
		return nil, newError(KindIllegalTransition,
			fmt.Sprintf("Cannot change order status from %s to %s", oldStatus, status), nil)
	}

	now := s.opts.Now()
	updated, err := s.store.AppendStatus(ctx, order.ID, models.StatusChange{
		Status:    status,
		Notes:     notes,
		UpdatedBy: admin.ID,
		At:        now,
	})
	if err != nil {
		return nil, lookupFailure(err)
	}

	s.log.Info("order status updated",
		zap.String("order_id", updated.OrderID),
		zap.String("from", string(oldStatus)),
		zap.String("to", string(status)),
		zap.String("admin_id", admin.ID))

	result := &StatusUpdateResult{Order: updated}
	if oldStatus != status && updated.User.ID != "" {
		result.Order = s.notifyStatusChange(ctx, updated, oldStatus, result)
	}

	s.record(ctx, models.AuditLog{
		UserID:     admin.ID,
		UserEmail:  admin.Email,
		Action:     ActionOrderStatusUpdate,
		Resource:   ResourceOrder,
		ResourceID: updated.OrderID,
		OldValue:   string(oldStatus),
		NewValue:   string(status),
		Success:    true,
		Timestamp:  now,
	})
	if s.observer != nil {
		s.observer.StatusChanged(string(status), result.NotificationSent)
	}

	switch {
	case result.NotificationSent:
		result.Message = fmt.Sprintf("Order status updated to %s. Customer has been notified via email.", status)
	case result.NotificationError != nil:
		result.Message = fmt.Sprintf("Order status updated to %s. Email notification failed: %s", status, *result.NotificationError)
	default:
		result.Message = fmt.Sprintf("Order status updated to %s.", status)
	}
	return result, nil
}

// notifyStatusChange emails the customer and records the outcome on the tail
// history entry. It returns the freshest copy of the order.
func (s *Service) notifyStatusChange(ctx context.Context, order *models.Order, oldStatus models.OrderStatus, result *StatusUpdateResult) *models.Order {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.NotifyTimeout)
	sendErr := s.notifier.SendStatusUpdate(nctx, order, oldStatus)
	cancel()

	n := models.StatusNotification{
		Status:  order.OrderStatus,
		SentAt:  s.opts.Now(),
		Method:  notificationMethodEmail,
		Success: sendErr == nil,
	}
	if sendErr != nil {
		msg := sendErr.Error()
		n.ErrorMessage = msg
		result.NotificationError = &msg
		s.log.Error("status update email failed",
			zap.String("order_id", order.OrderID),
			zap.String("email", order.User.Email),
			zap.Error(sendErr))
	} else {
		result.NotificationSent = true
	}

	entry, ok := order.LatestStatus()
	if !ok {
		return order
	}
	recorded, err := s.store.RecordNotification(ctx, order.ID, entry, n)
	if err != nil {
		s.log.Error("recording status notification failed", zap.String("order_id", order.OrderID), zap.Error(err))
		return order
	}
	return recorded
}

func lookupFailure(err error) *Error {
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrInvalidID) {
		return newError(KindOrderNotFound, "Order not found", err)
	}
	return serverError("Server error", err)
}
