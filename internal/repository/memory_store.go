package repository

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"sarvin_back_end/internal/models"
)

// MemoryStore keeps orders, products and users in process memory. It applies the
// same commit semantics as MongoStore: validate every decrement, then apply all.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]*models.Product
	users    map[string]models.UserSummary
	orders   []*models.Order
	byKey    map[string]*models.Order
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]*models.Product),
		users:    make(map[string]models.UserSummary),
		byKey:    make(map[string]*models.Order),
		now:      time.Now,
	}
}

// PutProduct inserts or replaces a catalog entry, assigning an id when empty.
func (s *MemoryStore) PutProduct(p models.Product) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = primitive.NewObjectID().Hex()
	}
	s.products[p.ID] = &p
	return p.ID
}

func (s *MemoryStore) PutUser(u models.UserSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// Stock returns the current stock of a product, or -1 when it does not exist.
func (s *MemoryStore) Stock(productID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.products[productID]; ok {
		return p.Stock
	}
	return -1
}

func (s *MemoryStore) OrderCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

func (s *MemoryStore) FindProduct(_ context.Context, id string) (*models.Product, error) {
	if !primitive.IsValidObjectID(id) {
		return nil, ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) CommitOrder(_ context.Context, order *models.Order, decrements []models.StockDecrement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.orders {
		if existing.OrderID == order.OrderID {
			return ErrDuplicateOrderID
		}
		if order.PaymentID != "" && existing.PaymentID == order.PaymentID {
			return ErrDuplicatePayment
		}
	}

	// First pass: the summed quantity per product must fit the current stock.
	wanted := make(map[string]int, len(decrements))
	for _, d := range decrements {
		wanted[d.ProductID] += d.Quantity
	}
	for id, qty := range wanted {
		p, ok := s.products[id]
		if !ok {
			return fmt.Errorf("%w: product %s", ErrNotFound, id)
		}
		if p.Stock < qty {
			return fmt.Errorf("%w: product %s", ErrInsufficientStock, id)
		}
	}

	// Second pass: apply.
	for id, qty := range wanted {
		s.products[id].Stock -= qty
	}

	stored := order.Clone()
	stored.ID = primitive.NewObjectID().Hex()
	now := s.now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	s.orders = append(s.orders, stored)
	s.byKey[stored.ID] = stored

	order.ID = stored.ID
	order.CreatedAt = stored.CreatedAt
	order.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *MemoryStore) FindOrder(_ context.Context, ref models.OrderRef) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o := s.lookup(ref)
	if o == nil {
		return nil, ErrNotFound
	}
	return s.resolve(o), nil
}

func (s *MemoryStore) AppendStatus(_ context.Context, key string, change models.StatusChange) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byKey[key]
	if !ok {
		return nil, ErrNotFound
	}

	at := change.At
	o.OrderStatus = change.Status
	o.LastUpdatedBy = change.UpdatedBy
	o.LastStatusUpdate = &at
	o.UpdatedAt = at
	if change.Notes != "" {
		o.AdminNotes = change.Notes
	}
	o.StatusHistory = append(o.StatusHistory, models.StatusEntry{
		Status:    change.Status,
		Timestamp: at,
		UpdatedBy: change.UpdatedBy,
		Notes:     change.Notes,
	})
	return s.resolve(o), nil
}

func (s *MemoryStore) RecordNotification(_ context.Context, key string, entry models.StatusEntry, n models.StatusNotification) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byKey[key]
	if !ok {
		return nil, ErrNotFound
	}
	idx := -1
	for i := len(o.StatusHistory) - 1; i >= 0; i-- {
		e := o.StatusHistory[i]
		if e.Status == entry.Status && e.UpdatedBy == entry.UpdatedBy && e.Timestamp.Equal(entry.Timestamp) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: status history entry %s at %s", ErrNotFound, entry.Status, entry.Timestamp.Format(time.RFC3339Nano))
	}
	o.StatusHistory[idx].NotificationSent = n.Success
	o.StatusHistory[idx].CustomerNotified = n.Success
	o.StatusNotifications = append(o.StatusNotifications, n)
	return s.resolve(o), nil
}

func (s *MemoryStore) ListOrdersByUser(_ context.Context, userID string) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Order
	for _, o := range s.newestFirst() {
		if o.User.ID == userID {
			out = append(out, *s.resolve(o))
		}
	}
	return out, nil
}

func (s *MemoryStore) ListOrders(_ context.Context, q models.OrderQuery) ([]models.Order, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var search *regexp.Regexp
	if q.Search != "" {
		search = regexp.MustCompile("(?i)" + regexp.QuoteMeta(q.Search))
	}

	var matched []*models.Order
	for _, o := range s.newestFirst() {
		if q.Status != "" && string(o.OrderStatus) != q.Status {
			continue
		}
		if search != nil && !s.matches(o, search) {
			continue
		}
		matched = append(matched, o)
	}

	total := int64(len(matched))
	start := (q.Page - 1) * q.Limit
	if start >= len(matched) {
		return []models.Order{}, total, nil
	}
	end := start + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	out := make([]models.Order, 0, end-start)
	for _, o := range matched[start:end] {
		out = append(out, *s.resolve(o))
	}
	return out, total, nil
}

func (s *MemoryStore) matches(o *models.Order, re *regexp.Regexp) bool {
	if re.MatchString(o.OrderID) || re.MatchString(o.ShippingAddress.FullName) {
		return true
	}
	user := o.User
	if u, ok := s.users[o.User.ID]; ok {
		user = u
	}
	return re.MatchString(user.Name) || re.MatchString(user.Email)
}

func (s *MemoryStore) lookup(ref models.OrderRef) *models.Order {
	if key, ok := ref.InternalKey(); ok {
		if o, found := s.byKey[key]; found {
			return o
		}
	}
	if id, ok := ref.HumanID(); ok {
		for _, o := range s.orders {
			if o.OrderID == id {
				return o
			}
		}
	}
	return nil
}

func (s *MemoryStore) newestFirst() []*models.Order {
	out := make([]*models.Order, 0, len(s.orders))
	for i := len(s.orders) - 1; i >= 0; i-- {
		out = append(out, s.orders[i])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// resolve returns a copy with user, product and history actor details filled in.
func (s *MemoryStore) resolve(o *models.Order) *models.Order {
	c := o.Clone()
	if u, ok := s.users[c.User.ID]; ok {
		c.User = u
	}
	for i := range c.Items {
		if p, ok := s.products[c.Items[i].Product]; ok {
			c.Items[i].Details = p.Summary()
		}
	}
	for i := range c.StatusHistory {
		if u, ok := s.users[c.StatusHistory[i].UpdatedBy]; ok {
			summary := u
			c.StatusHistory[i].UpdatedByDetails = &summary
		}
	}
	return c
}
