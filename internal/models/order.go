package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// InitialOrderStatus is the state every verified order starts in.
const InitialOrderStatus = OrderStatusProcessing

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

type Order struct {
	ID                  string               `json:"_id"`
	OrderID             string               `json:"orderId"`
	User                UserSummary          `json:"user"`
	Items               []OrderItem          `json:"items"`
	Total               decimal.Decimal      `json:"total"`
	ShippingAddress     ShippingAddress      `json:"shippingAddress"`
	PaymentMethod       string               `json:"paymentMethod"`
	PaymentStatus       PaymentStatus        `json:"paymentStatus"`
	PaymentID           string               `json:"paymentId"`
	GatewayOrderID      string               `json:"gatewayOrderId,omitempty"`
	OrderStatus         OrderStatus          `json:"orderStatus"`
	StatusHistory       []StatusEntry        `json:"statusHistory"`
	StatusNotifications []StatusNotification `json:"statusNotifications"`
	AdminNotes          string               `json:"adminNotes,omitempty"`
	LastUpdatedBy       string               `json:"lastUpdatedBy,omitempty"`
	LastStatusUpdate    *time.Time           `json:"lastStatusUpdate,omitempty"`
	CreatedAt           time.Time            `json:"createdAt"`
	UpdatedAt           time.Time            `json:"updatedAt"`
}

// OrderItem snapshots the unit price at validation time; it is never recomputed.
type OrderItem struct {
	Product  string          `json:"product"`
	Details  *ProductSummary `json:"productDetails,omitempty"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type ShippingAddress struct {
	FullName     string `json:"fullName"`
	Phone        string `json:"phone,omitempty"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state,omitempty"`
	PostalCode   string `json:"postalCode"`
	Country      string `json:"country,omitempty"`
}

type StatusEntry struct {
	Status           OrderStatus  `json:"status"`
	Timestamp        time.Time    `json:"timestamp"`
	UpdatedBy        string       `json:"updatedBy"`
	UpdatedByDetails *UserSummary `json:"updatedByDetails,omitempty"`
	NotificationSent bool         `json:"notificationSent"`
	CustomerNotified bool         `json:"customerNotified"`
	Notes            string       `json:"notes"`
}

type StatusNotification struct {
	Status       OrderStatus `json:"status"`
	SentAt       time.Time   `json:"sentAt"`
	Method       string      `json:"method"`
	Success      bool        `json:"success"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
}

// StatusChange is the admin-issued mutation appended to an order's history.
type StatusChange struct {
	Status    OrderStatus
	Notes     string
	UpdatedBy string
	At        time.Time
}

// StockDecrement is one conditional decrement applied when an order commits.
type StockDecrement struct {
	ProductID string
	Quantity  int
}

// LatestStatus returns the tail of the history, which mirrors OrderStatus.
func (o *Order) LatestStatus() (StatusEntry, bool) {
	if len(o.StatusHistory) == 0 {
		return StatusEntry{}, false
	}
	return o.StatusHistory[len(o.StatusHistory)-1], true
}

// ItemsTotal sums price * quantity over the snapshotted items.
func ItemsTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// Clone returns a deep copy so stores never share slices with callers.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append([]OrderItem(nil), o.Items...)
	for i := range c.Items {
		if c.Items[i].Details != nil {
			d := *c.Items[i].Details
			c.Items[i].Details = &d
		}
	}
	c.StatusHistory = append([]StatusEntry(nil), o.StatusHistory...)
	for i := range c.StatusHistory {
		if c.StatusHistory[i].UpdatedByDetails != nil {
			u := *c.StatusHistory[i].UpdatedByDetails
			c.StatusHistory[i].UpdatedByDetails = &u
		}
	}
	c.StatusNotifications = append([]StatusNotification(nil), o.StatusNotifications...)
	if o.LastStatusUpdate != nil {
		t := *o.LastStatusUpdate
		c.LastStatusUpdate = &t
	}
	return &c
}

// OrderQuery drives the paginated admin listing.
type OrderQuery struct {
	Page   int
	Limit  int
	Status string
	Search string
}

type OrderPage struct {
	Orders      []Order `json:"orders"`
	TotalOrders int64   `json:"totalOrders"`
	CurrentPage int     `json:"currentPage"`
	TotalPages  int     `json:"totalPages"`
}
