package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sarvin_back_end/internal/models"
)

func newOrder(orderID, userID, paymentID string, createdAt time.Time) *models.Order {
	return &models.Order{
		OrderID:         orderID,
		User:            models.UserSummary{ID: userID},
		PaymentID:       paymentID,
		OrderStatus:     models.OrderStatusProcessing,
		ShippingAddress: models.ShippingAddress{FullName: "Asha Rao"},
		StatusHistory:   []models.StatusEntry{{Status: models.OrderStatusProcessing, Timestamp: createdAt, UpdatedBy: userID}},
		CreatedAt:       createdAt,
	}
}

func TestMemoryStore_FindProduct(t *testing.T) {
	s := NewMemoryStore()
	id := s.PutProduct(models.Product{Name: "Phone", Price: decimal.NewFromInt(100), Stock: 3})

	p, err := s.FindProduct(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Phone", p.Name)

	_, err = s.FindProduct(context.Background(), "not-an-id")
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = s.FindProduct(context.Background(), "65f1a2b3c4d5e6f708091a2b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CommitAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := s.PutProduct(models.Product{Name: "A", Stock: 5})
	b := s.PutProduct(models.Product{Name: "B", Stock: 1})

	err := s.CommitOrder(ctx, newOrder("ORD-1", "u1", "pay_1", time.Now()), []models.StockDecrement{
		{ProductID: a, Quantity: 2},
		{ProductID: b, Quantity: 2},
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 5, s.Stock(a), "no decrement may be applied when any fails")
	assert.Equal(t, 1, s.Stock(b))
	assert.Zero(t, s.OrderCount())

	order := newOrder("ORD-2", "u1", "pay_2", time.Now())
	require.NoError(t, s.CommitOrder(ctx, order, []models.StockDecrement{
		{ProductID: a, Quantity: 2},
		{ProductID: b, Quantity: 1},
	}))
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, 3, s.Stock(a))
	assert.Equal(t, 0, s.Stock(b))
	assert.Equal(t, 1, s.OrderCount())
}

func TestMemoryStore_CommitSumsRepeatedProducts(t *testing.T) {
	s := NewMemoryStore()
	a := s.PutProduct(models.Product{Name: "A", Stock: 3})

	err := s.CommitOrder(context.Background(), newOrder("ORD-1", "u1", "pay_1", time.Now()), []models.StockDecrement{
		{ProductID: a, Quantity: 2},
		{ProductID: a, Quantity: 2},
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 3, s.Stock(a))
}

func TestMemoryStore_CommitDuplicates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CommitOrder(ctx, newOrder("ORD-1", "u1", "pay_1", time.Now()), nil))

	err := s.CommitOrder(ctx, newOrder("ORD-1", "u1", "pay_2", time.Now()), nil)
	assert.ErrorIs(t, err, ErrDuplicateOrderID)

	err = s.CommitOrder(ctx, newOrder("ORD-2", "u1", "pay_1", time.Now()), nil)
	assert.ErrorIs(t, err, ErrDuplicatePayment)
}

func TestMemoryStore_FindOrderByEitherRef(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	order := newOrder("ORD-20240315-000001", "u1", "pay_1", time.Now())
	require.NoError(t, s.CommitOrder(ctx, order, nil))

	byKey, err := s.FindOrder(ctx, models.ParseOrderRef(order.ID))
	require.NoError(t, err)
	byHuman, err := s.FindOrder(ctx, models.ParseOrderRef(order.OrderID))
	require.NoError(t, err)
	assert.Equal(t, byKey.ID, byHuman.ID)

	_, err = s.FindOrder(ctx, models.ParseOrderRef("ORD-missing"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_AppendStatusAndRecordNotification(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.PutUser(models.UserSummary{ID: "admin", Name: "Admin", Email: "admin@example.com"})
	order := newOrder("ORD-1", "u1", "pay_1", time.Now())
	require.NoError(t, s.CommitOrder(ctx, order, nil))

	at := time.Now()
	updated, err := s.AppendStatus(ctx, order.ID, models.StatusChange{
		Status: models.OrderStatusShipped, Notes: "AWB123", UpdatedBy: "admin", At: at,
	})
	require.NoError(t, err)
	require.Len(t, updated.StatusHistory, 2)
	assert.Equal(t, models.OrderStatusShipped, updated.OrderStatus)
	assert.Equal(t, "AWB123", updated.AdminNotes)
	assert.False(t, updated.StatusHistory[1].NotificationSent)
	require.NotNil(t, updated.StatusHistory[1].UpdatedByDetails)
	assert.Equal(t, "Admin", updated.StatusHistory[1].UpdatedByDetails.Name)

	tail, ok := updated.LatestStatus()
	require.True(t, ok)

	// A second update lands before the first one's email outcome is recorded.
	_, err = s.AppendStatus(ctx, order.ID, models.StatusChange{
		Status: models.OrderStatusDelivered, UpdatedBy: "admin", At: at.Add(time.Second),
	})
	require.NoError(t, err)

	recorded, err := s.RecordNotification(ctx, order.ID, tail, models.StatusNotification{
		Status: models.OrderStatusShipped, SentAt: at, Method: "email", Success: true,
	})
	require.NoError(t, err)
	require.Len(t, recorded.StatusHistory, 3)
	assert.True(t, recorded.StatusHistory[1].NotificationSent)
	assert.True(t, recorded.StatusHistory[1].CustomerNotified)
	assert.False(t, recorded.StatusHistory[0].NotificationSent)
	assert.False(t, recorded.StatusHistory[2].NotificationSent, "the later entry is left alone")
	assert.Len(t, recorded.StatusNotifications, 1)

	_, err = s.RecordNotification(ctx, order.ID, models.StatusEntry{Status: models.OrderStatusCancelled, Timestamp: at}, models.StatusNotification{})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.AppendStatus(ctx, "65f1a2b3c4d5e6f708091a2b", models.StatusChange{Status: models.OrderStatusShipped})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ListOrders(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.PutUser(models.UserSummary{ID: "u1", Name: "Asha", Email: "asha@example.com"})
	s.PutUser(models.UserSummary{ID: "u2", Name: "Ravi", Email: "ravi@example.com"})

	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	for i, owner := range []string{"u1", "u2", "u1", "u2", "u1"} {
		o := newOrder("ORD-2024031"+string(rune('1'+i)), owner, "", base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, s.CommitOrder(ctx, o, nil))
	}

	mine, err := s.ListOrdersByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 3)
	assert.Equal(t, "ORD-20240315", mine[0].OrderID, "newest first")

	page, total, err := s.ListOrders(ctx, models.OrderQuery{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "ORD-20240315", page[0].OrderID)

	page, _, err = s.ListOrders(ctx, models.OrderQuery{Page: 3, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 1)

	page, _, err = s.ListOrders(ctx, models.OrderQuery{Page: 9, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, page)

	_, total, err = s.ListOrders(ctx, models.OrderQuery{Page: 1, Limit: 10, Search: "RAVI@"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total, "search matches the owner's email case-insensitively")

	_, total, err = s.ListOrders(ctx, models.OrderQuery{Page: 1, Limit: 10, Search: "ORD-2024031("})
	require.NoError(t, err)
	assert.Zero(t, total, "search text is matched literally")

	_, total, err = s.ListOrders(ctx, models.OrderQuery{Page: 1, Limit: 10, Status: "shipped"})
	require.NoError(t, err)
	assert.Zero(t, total)
}
