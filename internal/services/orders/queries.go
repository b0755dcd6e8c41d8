package orders

import (
	"context"
	"strings"

	"sarvin_back_end/internal/models"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// GetOrder resolves ref for viewer. Non-admins only see their own orders; any
// other order is reported as missing.
func (s *Service) GetOrder(ctx context.Context, viewer models.User, ref models.OrderRef) (*models.Order, error) {
	if ref.IsZero() {
		return nil, newError(KindOrderNotFound, "Order not found", nil)
	}
	order, err := s.store.FindOrder(ctx, ref)
	if err != nil {
		return nil, lookupFailure(err)
	}
	if !viewer.IsAdmin() && order.User.ID != viewer.ID {
		return nil, newError(KindOrderNotFound, "Order not found", nil)
	}
	return order, nil
}

// ListMyOrders returns the user's orders, newest first.
func (s *Service) ListMyOrders(ctx context.Context, user models.User) ([]models.Order, error) {
	orders, err := s.store.ListOrdersByUser(ctx, user.ID)
	if err != nil {
		return nil, serverError("Server error", err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

// NormalizeQuery applies the listing defaults: page 1, limit 10 capped at 100,
// and "all" meaning no status filter.
func NormalizeQuery(q models.OrderQuery) models.OrderQuery {
	if q.Page < 1 {
		q.Page = defaultPage
	}
	if q.Limit < 1 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	q.Status = strings.TrimSpace(q.Status)
	if strings.EqualFold(q.Status, "all") {
		q.Status = ""
	}
	q.Search = strings.TrimSpace(q.Search)
	return q
}

func (s *Service) ListOrders(ctx context.Context, q models.OrderQuery) (*models.OrderPage, error) {
	q = NormalizeQuery(q)
	orders, total, err := s.store.ListOrders(ctx, q)
	if err != nil {
		return nil, serverError("Server error", err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return &models.OrderPage{
		Orders:      orders,
		TotalOrders: total,
		CurrentPage: q.Page,
		TotalPages:  int((total + int64(q.Limit) - 1) / int64(q.Limit)),
	}, nil
}
