package handlers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sarvin_back_end/internal/middleware"
	"sarvin_back_end/internal/models"
	"sarvin_back_end/internal/payment"
	"sarvin_back_end/internal/services/orders"
)

// OrderService is the order flow as seen by the HTTP layer.
type OrderService interface {
	CreatePaymentOrder(ctx context.Context, user models.User, amount int64) (*payment.GatewayOrder, error)
	VerifyPayment(ctx context.Context, user models.User, req orders.VerifyRequest) (*models.Order, error)
	ConfirmPayment(ctx context.Context, user models.User, gatewayOrderID string) (*orders.PaymentDetails, error)
	HandleGatewayWebhook(ctx context.Context, payload []byte, signatureHeader string) error
	UpdateStatus(ctx context.Context, admin models.User, ref models.OrderRef, status models.OrderStatus, notes string) (*orders.StatusUpdateResult, error)
	GetOrder(ctx context.Context, viewer models.User, ref models.OrderRef) (*models.Order, error)
	ListMyOrders(ctx context.Context, user models.User) ([]models.Order, error)
	ListOrders(ctx context.Context, q models.OrderQuery) (*models.OrderPage, error)
}

const maxWebhookBytes = 64 << 10

type OrderHandler struct {
	svc OrderService
	log *zap.Logger
	// exposeDetails adds the error chain to 500 bodies outside production.
	exposeDetails bool
}

func NewOrderHandler(svc OrderService, log *zap.Logger, exposeDetails bool) *OrderHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderHandler{svc: svc, log: log, exposeDetails: exposeDetails}
}

// CreatePaymentOrder handles POST /api/orders/create-payment-order.
func (h *OrderHandler) CreatePaymentOrder(c *gin.Context) {
	var req struct {
		Amount *float64 `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Amount == nil {
		h.respondError(c, &orders.Error{Kind: orders.KindInvalidAmount, Message: "Invalid amount"})
		return
	}

	// amounts arrive in minor units; fractional values are rounded
	if math.Abs(*req.Amount) >= math.MaxInt64 {
		h.respondError(c, &orders.Error{Kind: orders.KindInvalidAmount, Message: "Invalid amount"})
		return
	}
	amount := int64(math.Round(*req.Amount))
	gatewayOrder, err := h.svc.CreatePaymentOrder(c.Request.Context(), middleware.CurrentUser(c), amount)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "gatewayOrder": gatewayOrder})
}

// VerifyPayment handles POST /api/orders/verify-payment.
func (h *OrderHandler) VerifyPayment(c *gin.Context) {
	var req orders.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, &orders.Error{Kind: orders.KindMalformedRequest, Message: "Invalid request body", Err: err})
		return
	}

	order, err := h.svc.VerifyPayment(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// ConfirmPayment handles POST /api/orders/confirm-payment. It returns the
// signed payment details for a captured gateway order.
func (h *OrderHandler) ConfirmPayment(c *gin.Context) {
	var req struct {
		GatewayOrderID string `json:"gatewayOrderId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, &orders.Error{Kind: orders.KindMalformedRequest, Message: "Invalid request body", Err: err})
		return
	}

	details, err := h.svc.ConfirmPayment(c.Request.Context(), middleware.CurrentUser(c), req.GatewayOrderID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "paymentDetails": details})
}

// GatewayWebhook handles POST /api/orders/payment-webhook, called by Stripe.
func (h *OrderHandler) GatewayWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes)
	payload, err := c.GetRawData()
	if err != nil {
		h.respondError(c, &orders.Error{Kind: orders.KindMalformedRequest, Message: "Invalid request body", Err: err})
		return
	}

	if err := h.svc.HandleGatewayWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// GetMyOrders handles GET /api/orders/myorders.
func (h *OrderHandler) GetMyOrders(c *gin.Context) {
	list, err := h.svc.ListMyOrders(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetOrderByID handles GET /api/orders/:id; id is the internal key or the order id.
func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	order, err := h.svc.GetOrder(c.Request.Context(), middleware.CurrentUser(c), models.ParseOrderRef(c.Param("id")))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// GetOrders handles the admin listing GET /api/orders.
func (h *OrderHandler) GetOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := h.svc.ListOrders(c.Request.Context(), models.OrderQuery{
		Page:   page,
		Limit:  limit,
		Status: c.Query("status"),
		Search: c.Query("search"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// UpdateOrderStatus handles the admin PUT /api/orders/:id.
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	var req struct {
		Status     string `json:"status"`
		AdminNotes string `json:"adminNotes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, &orders.Error{Kind: orders.KindMalformedRequest, Message: "Invalid request body", Err: err})
		return
	}

	result, err := h.svc.UpdateStatus(c.Request.Context(), middleware.CurrentUser(c),
		models.ParseOrderRef(c.Param("id")), models.OrderStatus(req.Status), req.AdminNotes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// respondError writes {"error", "code"} plus any typed details. Server errors
// carry the cause only when exposeDetails is set.
func (h *OrderHandler) respondError(c *gin.Context, err error) {
	var e *orders.Error
	if !errors.As(err, &e) {
		e = &orders.Error{Kind: orders.KindServerError, Message: "Server error", Err: err}
	}

	status := e.HTTPStatus()
	body := gin.H{"error": e.Message, "code": e.Kind}
	for k, v := range e.Details {
		body[k] = v
	}

	if status >= http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("kind", string(e.Kind)),
			zap.Error(err))
		if h.exposeDetails && e.Err != nil {
			body["details"] = e.Err.Error()
		}
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}
