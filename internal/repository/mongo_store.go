package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"sarvin_back_end/internal/models"
)

const (
	ordersCollection   = "orders"
	productsCollection = "products"
	usersCollection    = "users"
)

// MongoStore persists orders and reads the catalog and user collections.
// CommitOrder needs a replica set: the insert and the stock decrements share
// one multi-document transaction.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{client: client, db: client.Database(database)}
}

func (s *MongoStore) orders() *mongo.Collection   { return s.db.Collection(ordersCollection) }
func (s *MongoStore) products() *mongo.Collection { return s.db.Collection(productsCollection) }
func (s *MongoStore) users() *mongo.Collection    { return s.db.Collection(usersCollection) }

// EnsureIndexes creates the unique keys the commit path relies on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.orders().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "orderId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "paymentId", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "orderStatus", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create order indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) FindProduct(ctx context.Context, id string) (*models.Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	var doc productDocument
	err = s.products().FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find product %s: %w", id, err)
	}
	return doc.toModel(), nil
}

func (s *MongoStore) CommitOrder(ctx context.Context, order *models.Order, decrements []models.StockDecrement) error {
	doc, err := newOrderDocument(order)
	if err != nil {
		return err
	}

	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := s.orders().InsertOne(sc, doc); err != nil {
			return nil, classifyWriteError(err)
		}
		for _, d := range decrements {
			pid, err := primitive.ObjectIDFromHex(d.ProductID)
			if err != nil {
				return nil, fmt.Errorf("%w: product %s", ErrInvalidID, d.ProductID)
			}
			// Conditional decrement: a concurrent checkout that already took the
			// stock makes this match nothing, which aborts the transaction.
			res, err := s.products().UpdateOne(sc,
				bson.M{"_id": pid, "stock": bson.M{"$gte": d.Quantity}},
				bson.M{"$inc": bson.M{"stock": -d.Quantity}},
			)
			if err != nil {
				return nil, fmt.Errorf("decrement stock %s: %w", d.ProductID, err)
			}
			if res.MatchedCount == 0 {
				return nil, fmt.Errorf("%w: product %s", ErrInsufficientStock, d.ProductID)
			}
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	order.ID = doc.ID.Hex()
	return nil
}

func classifyWriteError(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("insert order: %w", err)
	}
	if strings.Contains(err.Error(), "paymentId") {
		return ErrDuplicatePayment
	}
	return ErrDuplicateOrderID
}

func (s *MongoStore) FindOrder(ctx context.Context, ref models.OrderRef) (*models.Order, error) {
	if key, ok := ref.InternalKey(); ok {
		if oid, err := primitive.ObjectIDFromHex(key); err == nil {
			order, err := s.findOne(ctx, bson.M{"_id": oid})
			if err == nil || !errors.Is(err, ErrNotFound) {
				return order, err
			}
		}
	}
	if id, ok := ref.HumanID(); ok {
		return s.findOne(ctx, bson.M{"orderId": id})
	}
	return nil, ErrNotFound
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*models.Order, error) {
	var doc orderDocument
	err := s.orders().FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	resolved, err := s.resolve(ctx, []orderDocument{doc})
	if err != nil {
		return nil, err
	}
	return &resolved[0], nil
}

func (s *MongoStore) AppendStatus(ctx context.Context, key string, change models.StatusChange) (*models.Order, error) {
	oid, err := primitive.ObjectIDFromHex(key)
	if err != nil {
		return nil, ErrInvalidID
	}

	set := bson.M{
		"orderStatus":      string(change.Status),
		"lastUpdatedBy":    userRef(change.UpdatedBy),
		"lastStatusUpdate": change.At,
		"updatedAt":        change.At,
	}
	if change.Notes != "" {
		set["adminNotes"] = change.Notes
	}
	entry := newStatusEntryDocument(models.StatusEntry{
		Status:    change.Status,
		Timestamp: change.At,
		UpdatedBy: change.UpdatedBy,
		Notes:     change.Notes,
	})

	return s.updateOne(ctx, bson.M{"_id": oid},
		bson.M{"$set": set, "$push": bson.M{"statusHistory": entry}},
		options.FindOneAndUpdate().SetReturnDocument(options.After))
}

// RecordNotification flags the history entry matching entry by status,
// timestamp and actor, so entries appended concurrently are never touched.
func (s *MongoStore) RecordNotification(ctx context.Context, key string, entry models.StatusEntry, n models.StatusNotification) (*models.Order, error) {
	oid, err := primitive.ObjectIDFromHex(key)
	if err != nil {
		return nil, ErrInvalidID
	}
	match := bson.M{
		"status":    string(entry.Status),
		"timestamp": entry.Timestamp,
		"updatedBy": bson.M{"$in": userRefForms(entry.UpdatedBy)},
	}
	filter := bson.M{"_id": oid, "statusHistory": bson.M{"$elemMatch": match}}
	update := bson.M{
		"$set": bson.M{
			"statusHistory.$[entry].notificationSent": n.Success,
			"statusHistory.$[entry].customerNotified": n.Success,
		},
		"$push": bson.M{"statusNotifications": newStatusNotificationDocument(n)},
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetArrayFilters(options.ArrayFilters{Filters: []interface{}{bson.M{
			"entry.status":    match["status"],
			"entry.timestamp": match["timestamp"],
			"entry.updatedBy": match["updatedBy"],
		}}})
	return s.updateOne(ctx, filter, update, opts)
}

func (s *MongoStore) updateOne(ctx context.Context, filter bson.M, update bson.M, opts *options.FindOneAndUpdateOptions) (*models.Order, error) {
	var doc orderDocument
	err := s.orders().FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update order %v: %w", filter["_id"], err)
	}
	resolved, err := s.resolve(ctx, []orderDocument{doc})
	if err != nil {
		return nil, err
	}
	return &resolved[0], nil
}

func (s *MongoStore) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return s.find(ctx, bson.M{"user": bson.M{"$in": userRefForms(userID)}}, opts)
}

func (s *MongoStore) ListOrders(ctx context.Context, q models.OrderQuery) ([]models.Order, int64, error) {
	filter, err := s.listFilter(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.orders().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64((q.Page - 1) * q.Limit)).
		SetLimit(int64(q.Limit))
	orders, err := s.find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (s *MongoStore) listFilter(ctx context.Context, q models.OrderQuery) (bson.M, error) {
	filter := bson.M{}
	if q.Status != "" {
		filter["orderStatus"] = q.Status
	}
	if q.Search == "" {
		return filter, nil
	}

	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(q.Search), Options: "i"}
	cursor, err := s.users().Find(ctx,
		bson.M{"$or": bson.A{bson.M{"name": pattern}, bson.M{"email": pattern}}},
		options.Find().SetProjection(bson.M{"_id": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	var matches []userDocument
	if err := cursor.All(ctx, &matches); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	userIDs := make(bson.A, 0, 2*len(matches))
	for _, u := range matches {
		userIDs = append(userIDs, userRefForms(string(u.ID))...)
	}

	filter["$or"] = bson.A{
		bson.M{"orderId": pattern},
		bson.M{"shippingAddress.fullName": pattern},
		bson.M{"customer.name": pattern},
		bson.M{"customer.email": pattern},
		bson.M{"user": bson.M{"$in": userIDs}},
	}
	return filter, nil
}

func (s *MongoStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Order, error) {
	cursor, err := s.orders().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []orderDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return s.resolve(ctx, docs)
}

// resolve fills owner, history actor and product details from their collections.
func (s *MongoStore) resolve(ctx context.Context, docs []orderDocument) ([]models.Order, error) {
	out := make([]models.Order, 0, len(docs))
	if len(docs) == 0 {
		return out, nil
	}

	userSet := map[string]struct{}{}
	productSet := map[primitive.ObjectID]struct{}{}
	for _, d := range docs {
		userSet[string(d.User)] = struct{}{}
		for _, e := range d.StatusHistory {
			userSet[string(e.UpdatedBy)] = struct{}{}
		}
		for _, item := range d.Items {
			productSet[item.Product] = struct{}{}
		}
	}

	users, err := s.loadUsers(ctx, userSet)
	if err != nil {
		return nil, err
	}
	products, err := s.loadProducts(ctx, productSet)
	if err != nil {
		return nil, err
	}

	for i := range docs {
		o := docs[i].toModel()
		if u, ok := users[o.User.ID]; ok {
			o.User = u
		}
		for j := range o.Items {
			if p, ok := products[o.Items[j].Product]; ok {
				o.Items[j].Details = p.Summary()
			}
		}
		for j := range o.StatusHistory {
			if u, ok := users[o.StatusHistory[j].UpdatedBy]; ok {
				summary := u
				o.StatusHistory[j].UpdatedByDetails = &summary
			}
		}
		out = append(out, *o)
	}
	return out, nil
}

func (s *MongoStore) loadUsers(ctx context.Context, ids map[string]struct{}) (map[string]models.UserSummary, error) {
	keys := make(bson.A, 0, 2*len(ids))
	for id := range ids {
		if id != "" {
			keys = append(keys, userRefForms(id)...)
		}
	}
	out := make(map[string]models.UserSummary, len(ids))
	if len(keys) == 0 {
		return out, nil
	}
	cursor, err := s.users().Find(ctx, bson.M{"_id": bson.M{"$in": keys}},
		options.Find().SetProjection(bson.M{"name": 1, "email": 1}))
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	for _, d := range docs {
		out[string(d.ID)] = d.toSummary()
	}
	return out, nil
}

func (s *MongoStore) loadProducts(ctx context.Context, ids map[primitive.ObjectID]struct{}) (map[string]*models.Product, error) {
	keys := make(bson.A, 0, len(ids))
	for id := range ids {
		keys = append(keys, id)
	}
	out := make(map[string]*models.Product, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	cursor, err := s.products().Find(ctx, bson.M{"_id": bson.M{"$in": keys}})
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	var docs []productDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	for _, d := range docs {
		out[d.ID.Hex()] = d.toModel()
	}
	return out, nil
}
