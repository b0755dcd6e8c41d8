package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"sarvin_back_end/internal/models"
)

// newMongoStore starts a single-node replica set, since CommitOrder runs a
// multi-document transaction.
func newMongoStore(t *testing.T) *MongoStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping mongo integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := mongodb.Run(ctx, "mongo:7", mongodb.WithReplicaSet("rs0"))
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetDirect(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	s := NewMongoStore(client, "sarvin_test")
	require.NoError(t, s.EnsureIndexes(ctx))
	return s
}

func seedProduct(t *testing.T, s *MongoStore, name, price string, stock int) string {
	t.Helper()
	id := primitive.NewObjectID()
	_, err := s.products().InsertOne(context.Background(), productDocument{
		ID:    id,
		Name:  name,
		Price: newMoney(decimal.RequireFromString(price)),
		Stock: stock,
	})
	require.NoError(t, err)
	return id.Hex()
}

// seedUser writes a user the way the accounts service does, keyed by ObjectId.
func seedUser(t *testing.T, s *MongoStore, name, email string) string {
	t.Helper()
	id := primitive.NewObjectID()
	_, err := s.users().InsertOne(context.Background(), bson.M{"_id": id, "name": name, "email": email})
	require.NoError(t, err)
	return id.Hex()
}

func stockOf(t *testing.T, s *MongoStore, id string) int {
	t.Helper()
	p, err := s.FindProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func countOrders(t *testing.T, s *MongoStore) int64 {
	t.Helper()
	n, err := s.orders().CountDocuments(context.Background(), bson.M{})
	require.NoError(t, err)
	return n
}

// mongoTime drops the sub-millisecond part BSON dates cannot hold.
func mongoTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func itemOrder(orderID, userID, paymentID string, createdAt time.Time, productID string, qty int) *models.Order {
	o := newOrder(orderID, userID, paymentID, mongoTime(createdAt))
	o.ShippingAddress.FullName = "Recipient"
	o.Items = []models.OrderItem{{Product: productID, Quantity: qty, Price: decimal.RequireFromString("99.50")}}
	o.Total = models.ItemsTotal(o.Items)
	return o
}

func TestMongoStore_CommitOrder(t *testing.T) {
	s := newMongoStore(t)
	ctx := context.Background()
	user := seedUser(t, s, "Asha Rao", "asha@example.com")
	a := seedProduct(t, s, "Kettle", "99.50", 5)
	b := seedProduct(t, s, "Lamp", "250", 1)

	err := s.CommitOrder(ctx, itemOrder("ORD-1", user, "pay_1", time.Now(), a, 2), []models.StockDecrement{
		{ProductID: a, Quantity: 2},
		{ProductID: b, Quantity: 2},
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 5, stockOf(t, s, a), "the transaction is rolled back")
	assert.Equal(t, 1, stockOf(t, s, b))
	assert.Zero(t, countOrders(t, s))

	order := itemOrder("ORD-2", user, "pay_2", time.Now(), a, 2)
	require.NoError(t, s.CommitOrder(ctx, order, []models.StockDecrement{
		{ProductID: a, Quantity: 2},
		{ProductID: b, Quantity: 1},
	}))
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, 3, stockOf(t, s, a))
	assert.Equal(t, 0, stockOf(t, s, b))

	var raw bson.M
	require.NoError(t, s.orders().FindOne(ctx, bson.M{"orderId": "ORD-2"}).Decode(&raw))
	assert.IsType(t, primitive.ObjectID{}, raw["user"], "owner is stored as an ObjectId reference")
	assert.IsType(t, primitive.Decimal128{}, raw["total"])

	byKey, err := s.FindOrder(ctx, models.ByInternalKey(order.ID))
	require.NoError(t, err)
	byHuman, err := s.FindOrder(ctx, models.ByHumanID("ORD-2"))
	require.NoError(t, err)
	assert.Equal(t, byKey, byHuman)

	assert.Equal(t, user, byKey.User.ID)
	assert.Equal(t, "Asha Rao", byKey.User.Name)
	assert.True(t, byKey.Total.Equal(decimal.NewFromInt(199)))
	require.NotNil(t, byKey.Items[0].Details)
	assert.Equal(t, "Kettle", byKey.Items[0].Details.Name)
	require.NotNil(t, byKey.StatusHistory[0].UpdatedByDetails)
	assert.Equal(t, "asha@example.com", byKey.StatusHistory[0].UpdatedByDetails.Email)

	_, err = s.FindOrder(ctx, models.ByHumanID("ORD-missing"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMongoStore_CommitDuplicates(t *testing.T) {
	s := newMongoStore(t)
	ctx := context.Background()
	user := seedUser(t, s, "Asha Rao", "asha@example.com")
	a := seedProduct(t, s, "Kettle", "99.50", 10)
	take := []models.StockDecrement{{ProductID: a, Quantity: 1}}

	require.NoError(t, s.CommitOrder(ctx, itemOrder("ORD-1", user, "pay_1", time.Now(), a, 1), take))

	err := s.CommitOrder(ctx, itemOrder("ORD-2", user, "pay_1", time.Now(), a, 1), take)
	assert.ErrorIs(t, err, ErrDuplicatePayment)

	err = s.CommitOrder(ctx, itemOrder("ORD-1", user, "pay_2", time.Now(), a, 1), take)
	assert.ErrorIs(t, err, ErrDuplicateOrderID)

	assert.EqualValues(t, 1, countOrders(t, s))
	assert.Equal(t, 9, stockOf(t, s, a), "rejected commits leave stock alone")
}

func TestMongoStore_RecordNotificationTargetsItsEntry(t *testing.T) {
	s := newMongoStore(t)
	ctx := context.Background()
	user := seedUser(t, s, "Asha Rao", "asha@example.com")
	admin := seedUser(t, s, "Admin", "admin@example.com")
	a := seedProduct(t, s, "Kettle", "99.50", 10)

	order := itemOrder("ORD-1", user, "pay_1", time.Now().Add(-time.Hour), a, 1)
	require.NoError(t, s.CommitOrder(ctx, order, []models.StockDecrement{{ProductID: a, Quantity: 1}}))

	shippedAt := mongoTime(time.Now().Add(-time.Minute))
	updated, err := s.AppendStatus(ctx, order.ID, models.StatusChange{
		Status: models.OrderStatusShipped, Notes: "AWB 1", UpdatedBy: admin, At: shippedAt,
	})
	require.NoError(t, err)
	shipped, ok := updated.LatestStatus()
	require.True(t, ok)
	assert.Equal(t, admin, updated.LastUpdatedBy)
	require.NotNil(t, shipped.UpdatedByDetails)
	assert.Equal(t, "Admin", shipped.UpdatedByDetails.Name)

	// another admin action lands before the shipped email is recorded
	_, err = s.AppendStatus(ctx, order.ID, models.StatusChange{
		Status: models.OrderStatusDelivered, UpdatedBy: admin, At: mongoTime(time.Now()),
	})
	require.NoError(t, err)

	final, err := s.RecordNotification(ctx, order.ID, shipped, models.StatusNotification{
		Status: models.OrderStatusShipped, SentAt: mongoTime(time.Now()), Method: "email", Success: true,
	})
	require.NoError(t, err)
	require.Len(t, final.StatusHistory, 3)
	assert.True(t, final.StatusHistory[1].NotificationSent)
	assert.True(t, final.StatusHistory[1].CustomerNotified)
	assert.False(t, final.StatusHistory[2].NotificationSent, "the later entry is untouched")
	require.Len(t, final.StatusNotifications, 1)
	assert.Equal(t, models.OrderStatusShipped, final.StatusNotifications[0].Status)

	stale := shipped
	stale.Status = models.OrderStatusCancelled
	_, err = s.RecordNotification(ctx, order.ID, stale, models.StatusNotification{Status: models.OrderStatusCancelled, Method: "email"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMongoStore_ListOrdersSearchesUsers(t *testing.T) {
	s := newMongoStore(t)
	ctx := context.Background()
	asha := seedUser(t, s, "Asha Rao", "asha@example.com")
	ravi := seedUser(t, s, "Ravi Kumar", "ravi@example.com")
	a := seedProduct(t, s, "Kettle", "99.50", 50)
	take := []models.StockDecrement{{ProductID: a, Quantity: 1}}

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		o := itemOrder(fmt.Sprintf("ORD-A%d", i), asha, fmt.Sprintf("pay_a%d", i), base.Add(time.Duration(i)*time.Minute), a, 1)
		require.NoError(t, s.CommitOrder(ctx, o, take))
	}
	shipped := itemOrder("ORD-R0", ravi, "pay_r0", base.Add(10*time.Minute), a, 1)
	shipped.OrderStatus = models.OrderStatusShipped
	require.NoError(t, s.CommitOrder(ctx, shipped, take))

	list, total, err := s.ListOrders(ctx, models.OrderQuery{Page: 1, Limit: 2, Search: "ASHA"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total, "matched through the users collection")
	require.Len(t, list, 2)
	assert.Equal(t, "ORD-A2", list[0].OrderID, "newest first")
	assert.Equal(t, "Asha Rao", list[0].User.Name)

	list, total, err = s.ListOrders(ctx, models.OrderQuery{Page: 2, Limit: 2, Search: "asha@"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, list, 1)
	assert.Equal(t, "ORD-A0", list[0].OrderID)

	list, total, err = s.ListOrders(ctx, models.OrderQuery{Page: 1, Limit: 10, Status: "shipped", Search: "ravi"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, ravi, list[0].User.ID)

	_, total, err = s.ListOrders(ctx, models.OrderQuery{Page: 1, Limit: 10, Search: "nobody"})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestMongoStore_ListOrdersByUserReadsBothRefForms(t *testing.T) {
	s := newMongoStore(t)
	ctx := context.Background()
	user := seedUser(t, s, "Asha Rao", "asha@example.com")
	a := seedProduct(t, s, "Kettle", "99.50", 5)

	order := itemOrder("ORD-NEW", user, "pay_1", time.Now(), a, 1)
	require.NoError(t, s.CommitOrder(ctx, order, []models.StockDecrement{{ProductID: a, Quantity: 1}}))

	// an older document written with the owner as a plain string
	_, err := s.orders().InsertOne(ctx, bson.M{
		"_id":           primitive.NewObjectID(),
		"orderId":       "ORD-OLD",
		"user":          user,
		"orderStatus":   "delivered",
		"statusHistory": bson.A{},
		"createdAt":     mongoTime(time.Now().Add(-24 * time.Hour)),
	})
	require.NoError(t, err)

	list, err := s.ListOrdersByUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ORD-NEW", list[0].OrderID)
	assert.Equal(t, "ORD-OLD", list[1].OrderID)
	assert.Equal(t, user, list[1].User.ID)
	assert.Equal(t, "Asha Rao", list[1].User.Name)

	list, err = s.ListOrdersByUser(ctx, seedUser(t, s, "Ravi", "ravi@example.com"))
	require.NoError(t, err)
	assert.Empty(t, list)
}
