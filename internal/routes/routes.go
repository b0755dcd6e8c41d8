package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sarvin_back_end/internal/handlers"
	"sarvin_back_end/internal/metrics"
	"sarvin_back_end/internal/middleware"
)

type Deps struct {
	Orders    *handlers.OrderHandler
	JWTSecret string
	// Limiter may be nil, which disables rate limiting.
	Limiter         middleware.Limiter
	PaymentRequests int64
	PaymentWindow   time.Duration
	Metrics         *metrics.Metrics
	// Health reports backend reachability for /health.
	Health        func(ctx context.Context) error
	CORSOrigins   []string
	Logger        *zap.Logger
	ExposeDetails bool
}

func RegisterRoutes(d Deps) *gin.Engine {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(middleware.Recovery(log, d.ExposeDetails))
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.RequestMetrics(d.Metrics))
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     d.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/health", health(d.Health))
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	r.POST("/api/orders/payment-webhook", d.Orders.GatewayWebhook)

	api := r.Group("/api/orders")
	api.Use(middleware.AuthRequired(d.JWTSecret))
	{
		paymentLimit := middleware.RateLimit(d.Limiter, "payment", d.PaymentRequests, d.PaymentWindow, log)

		api.POST("/create-payment-order", paymentLimit, d.Orders.CreatePaymentOrder)
		api.POST("/verify-payment", paymentLimit, d.Orders.VerifyPayment)
		api.POST("/confirm-payment", paymentLimit, d.Orders.ConfirmPayment)
		api.GET("/myorders", d.Orders.GetMyOrders)
		api.GET("/:id", d.Orders.GetOrderByID)

		api.GET("", middleware.RequireAdmin, d.Orders.GetOrders)
		api.PUT("/:id", middleware.RequireAdmin, d.Orders.UpdateOrderStatus)
	}

	return r
}

func health(check func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
