package repository

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"sarvin_back_end/internal/models"
)

type productDocument struct {
	ID            primitive.ObjectID `bson:"_id"`
	Name          string             `bson:"name"`
	Image         string             `bson:"image,omitempty"`
	Price         money              `bson:"price"`
	DiscountPrice *money             `bson:"discountPrice,omitempty"`
	Stock         int                `bson:"stock"`
}

func (d productDocument) toModel() *models.Product {
	p := &models.Product{
		ID:    d.ID.Hex(),
		Name:  d.Name,
		Image: d.Image,
		Price: d.Price.Decimal,
		Stock: d.Stock,
	}
	if d.DiscountPrice != nil {
		dp := d.DiscountPrice.Decimal
		p.DiscountPrice = &dp
	}
	return p
}

type userDocument struct {
	ID    userRef `bson:"_id"`
	Name  string `bson:"name"`
	Email string `bson:"email"`
}

func (d userDocument) toSummary() models.UserSummary {
	return models.UserSummary{ID: string(d.ID), Name: d.Name, Email: d.Email}
}

// customerDocument snapshots the buyer's contact details at checkout time.
type customerDocument struct {
	Name  string `bson:"name,omitempty"`
	Email string `bson:"email,omitempty"`
}

type orderItemDocument struct {
	Product  primitive.ObjectID `bson:"product"`
	Quantity int                `bson:"quantity"`
	Price    money              `bson:"price"`
}

type shippingAddressDocument struct {
	FullName     string `bson:"fullName"`
	Phone        string `bson:"phone,omitempty"`
	AddressLine1 string `bson:"addressLine1"`
	AddressLine2 string `bson:"addressLine2,omitempty"`
	City         string `bson:"city"`
	State        string `bson:"state,omitempty"`
	PostalCode   string `bson:"postalCode"`
	Country      string `bson:"country,omitempty"`
}

type statusEntryDocument struct {
	Status           string    `bson:"status"`
	Timestamp        time.Time `bson:"timestamp"`
	UpdatedBy        userRef   `bson:"updatedBy"`
	NotificationSent bool      `bson:"notificationSent"`
	CustomerNotified bool      `bson:"customerNotified"`
	Notes            string    `bson:"notes"`
}

type statusNotificationDocument struct {
	Status       string    `bson:"status"`
	SentAt       time.Time `bson:"sentAt"`
	Method       string    `bson:"method"`
	Success      bool      `bson:"success"`
	ErrorMessage string    `bson:"errorMessage,omitempty"`
}

type orderDocument struct {
	ID                  primitive.ObjectID           `bson:"_id"`
	OrderID             string                       `bson:"orderId"`
	User                userRef                      `bson:"user"`
	Customer            customerDocument             `bson:"customer"`
	Items               []orderItemDocument          `bson:"items"`
	Total               money                        `bson:"total"`
	ShippingAddress     shippingAddressDocument      `bson:"shippingAddress"`
	PaymentMethod       string                       `bson:"paymentMethod"`
	PaymentStatus       string                       `bson:"paymentStatus"`
	PaymentID           string                       `bson:"paymentId,omitempty"`
	GatewayOrderID      string                       `bson:"gatewayOrderId,omitempty"`
	OrderStatus         string                       `bson:"orderStatus"`
	StatusHistory       []statusEntryDocument        `bson:"statusHistory"`
	StatusNotifications []statusNotificationDocument `bson:"statusNotifications"`
	AdminNotes          string                       `bson:"adminNotes,omitempty"`
	LastUpdatedBy       userRef                      `bson:"lastUpdatedBy,omitempty"`
	LastStatusUpdate    *time.Time                   `bson:"lastStatusUpdate,omitempty"`
	CreatedAt           time.Time                    `bson:"createdAt"`
	UpdatedAt           time.Time                    `bson:"updatedAt"`
}

func newStatusEntryDocument(e models.StatusEntry) statusEntryDocument {
	return statusEntryDocument{
		Status:           string(e.Status),
		Timestamp:        e.Timestamp,
		UpdatedBy:        userRef(e.UpdatedBy),
		NotificationSent: e.NotificationSent,
		CustomerNotified: e.CustomerNotified,
		Notes:            e.Notes,
	}
}

func newStatusNotificationDocument(n models.StatusNotification) statusNotificationDocument {
	return statusNotificationDocument{
		Status:       string(n.Status),
		SentAt:       n.SentAt,
		Method:       n.Method,
		Success:      n.Success,
		ErrorMessage: n.ErrorMessage,
	}
}

// newOrderDocument converts a new order; the storage key is always minted here.
func newOrderDocument(o *models.Order) (*orderDocument, error) {
	doc := &orderDocument{
		ID:       primitive.NewObjectID(),
		OrderID:  o.OrderID,
		User:     userRef(o.User.ID),
		Customer: customerDocument{Name: o.User.Name, Email: o.User.Email},
		Total:    newMoney(o.Total),
		ShippingAddress: shippingAddressDocument{
			FullName:     o.ShippingAddress.FullName,
			Phone:        o.ShippingAddress.Phone,
			AddressLine1: o.ShippingAddress.AddressLine1,
			AddressLine2: o.ShippingAddress.AddressLine2,
			City:         o.ShippingAddress.City,
			State:        o.ShippingAddress.State,
			PostalCode:   o.ShippingAddress.PostalCode,
			Country:      o.ShippingAddress.Country,
		},
		PaymentMethod:       o.PaymentMethod,
		PaymentStatus:       string(o.PaymentStatus),
		PaymentID:           o.PaymentID,
		GatewayOrderID:      o.GatewayOrderID,
		OrderStatus:         string(o.OrderStatus),
		StatusHistory:       make([]statusEntryDocument, 0, len(o.StatusHistory)),
		StatusNotifications: make([]statusNotificationDocument, 0, len(o.StatusNotifications)),
		AdminNotes:          o.AdminNotes,
		LastUpdatedBy:       userRef(o.LastUpdatedBy),
		LastStatusUpdate:    o.LastStatusUpdate,
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
	}

	for _, item := range o.Items {
		pid, err := primitive.ObjectIDFromHex(item.Product)
		if err != nil {
			return nil, fmt.Errorf("%w: product %s", ErrInvalidID, item.Product)
		}
		doc.Items = append(doc.Items, orderItemDocument{
			Product:  pid,
			Quantity: item.Quantity,
			Price:    newMoney(item.Price),
		})
	}
	for _, e := range o.StatusHistory {
		doc.StatusHistory = append(doc.StatusHistory, newStatusEntryDocument(e))
	}
	for _, n := range o.StatusNotifications {
		doc.StatusNotifications = append(doc.StatusNotifications, newStatusNotificationDocument(n))
	}
	return doc, nil
}

func (d *orderDocument) toModel() *models.Order {
	o := &models.Order{
		ID:      d.ID.Hex(),
		OrderID: d.OrderID,
		User:    models.UserSummary{ID: string(d.User), Name: d.Customer.Name, Email: d.Customer.Email},
		Total:   d.Total.Decimal,
		ShippingAddress: models.ShippingAddress{
			FullName:     d.ShippingAddress.FullName,
			Phone:        d.ShippingAddress.Phone,
			AddressLine1: d.ShippingAddress.AddressLine1,
			AddressLine2: d.ShippingAddress.AddressLine2,
			City:         d.ShippingAddress.City,
			State:        d.ShippingAddress.State,
			PostalCode:   d.ShippingAddress.PostalCode,
			Country:      d.ShippingAddress.Country,
		},
		PaymentMethod:       d.PaymentMethod,
		PaymentStatus:       models.PaymentStatus(d.PaymentStatus),
		PaymentID:           d.PaymentID,
		GatewayOrderID:      d.GatewayOrderID,
		OrderStatus:         models.OrderStatus(d.OrderStatus),
		StatusHistory:       make([]models.StatusEntry, 0, len(d.StatusHistory)),
		StatusNotifications: make([]models.StatusNotification, 0, len(d.StatusNotifications)),
		AdminNotes:          d.AdminNotes,
		LastUpdatedBy:       string(d.LastUpdatedBy),
		LastStatusUpdate:    d.LastStatusUpdate,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
	for _, item := range d.Items {
		o.Items = append(o.Items, models.OrderItem{
			Product:  item.Product.Hex(),
			Quantity: item.Quantity,
			Price:    item.Price.Decimal,
		})
	}
	for _, e := range d.StatusHistory {
		o.StatusHistory = append(o.StatusHistory, models.StatusEntry{
			Status:           models.OrderStatus(e.Status),
			Timestamp:        e.Timestamp,
			UpdatedBy:        string(e.UpdatedBy),
			NotificationSent: e.NotificationSent,
			CustomerNotified: e.CustomerNotified,
			Notes:            e.Notes,
		})
	}
	for _, n := range d.StatusNotifications {
		o.StatusNotifications = append(o.StatusNotifications, models.StatusNotification{
			Status:       models.OrderStatus(n.Status),
			SentAt:       n.SentAt,
			Method:       n.Method,
			Success:      n.Success,
			ErrorMessage: n.ErrorMessage,
		})
	}
	return o
}
