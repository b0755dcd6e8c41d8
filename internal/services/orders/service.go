package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"sarvin_back_end/internal/models"
	"sarvin_back_end/internal/payment"
)

// Store is the persistence the order flow needs. CommitOrder must insert the
// order and apply every decrement as one unit: all or nothing.
type Store interface {
	FindProduct(ctx context.Context, id string) (*models.Product, error)
	CommitOrder(ctx context.Context, order *models.Order, decrements []models.StockDecrement) error
	FindOrder(ctx context.Context, ref models.OrderRef) (*models.Order, error)
	AppendStatus(ctx context.Context, key string, change models.StatusChange) (*models.Order, error)
	RecordNotification(ctx context.Context, key string, entry models.StatusEntry, n models.StatusNotification) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error)
	ListOrders(ctx context.Context, q models.OrderQuery) ([]models.Order, int64, error)
}

// IDGenerator mints human-facing order ids.
type IDGenerator interface {
	NextOrderID(ctx context.Context) (string, error)
}

// PaymentLocker serialises verification attempts for one gateway payment.
type PaymentLocker interface {
	AcquirePayment(ctx context.Context, paymentID string, ttl time.Duration) (bool, error)
	ReleasePayment(ctx context.Context, paymentID string) error
}

// Notifier delivers customer and admin emails. Callers treat every error as non-fatal.
type Notifier interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order) error
	SendAdminNotification(ctx context.Context, order *models.Order) error
	SendStatusUpdate(ctx context.Context, order *models.Order, oldStatus models.OrderStatus) error
}

// ConfirmationStore holds payments the gateway reported as captured.
// PaymentConfirmation returns nil, nil when nothing is held for the id.
type ConfirmationStore interface {
	SavePaymentConfirmation(ctx context.Context, p *payment.Payment, ttl time.Duration) error
	PaymentConfirmation(ctx context.Context, gatewayOrderID string) (*payment.Payment, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, entry models.AuditLog) error
}

// Observer receives business outcomes for metrics.
type Observer interface {
	CheckoutResult(outcome string)
	StatusChanged(status string, notified bool)
}

type Deps struct {
	Store         Store
	Gateway       payment.Gateway
	Verifier      *payment.SignatureVerifier
	Webhooks      *payment.WebhookVerifier
	Confirmations ConfirmationStore
	IDs           IDGenerator
	Notifier      Notifier
	Audit         AuditRecorder
	Locker        PaymentLocker
	Observer      Observer
	Logger        *zap.Logger
}

type Options struct {
	Currency string
	// Tolerance is the largest accepted gap between the client total and the
	// catalog total. Nil means one currency unit; zero demands an exact match.
	Tolerance *decimal.Decimal
	// MinorUnits is the number of minor units per currency unit (100 paise per rupee).
	MinorUnits          int64
	GatewayTimeout      time.Duration
	NotifyTimeout       time.Duration
	PaymentLockTTL      time.Duration
	ConfirmationTTL     time.Duration
	VerifyChargedAmount bool
	EnforceTransitions  bool
	Now                 func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Currency == "" {
		o.Currency = "INR"
	}
	if o.Tolerance == nil {
		one := decimal.NewFromInt(1)
		o.Tolerance = &one
	}
	if o.MinorUnits <= 0 {
		o.MinorUnits = 100
	}
	if o.GatewayTimeout <= 0 {
		o.GatewayTimeout = 15 * time.Second
	}
	if o.NotifyTimeout <= 0 {
		o.NotifyTimeout = 10 * time.Second
	}
	if o.PaymentLockTTL <= 0 {
		o.PaymentLockTTL = 2 * time.Minute
	}
	if o.ConfirmationTTL <= 0 {
		o.ConfirmationTTL = 24 * time.Hour
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Service implements payment-intent creation, payment verification, the status
// lifecycle and order lookups.
type Service struct {
	store         Store
	gateway       payment.Gateway
	verifier      *payment.SignatureVerifier
	webhooks      *payment.WebhookVerifier
	confirmations ConfirmationStore
	ids           IDGenerator
	notifier      Notifier
	audit         AuditRecorder
	locker        PaymentLocker
	observer      Observer
	log           *zap.Logger
	opts          Options
}

func New(deps Deps, opts Options) *Service {
	opts = opts.withDefaults()
	s := &Service{
		store:         deps.Store,
		gateway:       deps.Gateway,
		verifier:      deps.Verifier,
		webhooks:      deps.Webhooks,
		confirmations: deps.Confirmations,
		ids:           deps.IDs,
		notifier:      deps.Notifier,
		audit:         deps.Audit,
		locker:        deps.Locker,
		observer:      deps.Observer,
		log:           deps.Logger,
		opts:          opts,
	}
	if s.gateway == nil {
		s.gateway = payment.Unconfigured{}
	}
	if s.ids == nil {
		s.ids = RandomIDs{Now: opts.Now}
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// RandomIDs is the fallback generator used when no sequence is available.
// Ids look like ORD-20240315-1A2B3C4D.
type RandomIDs struct {
	Now func() time.Time
}

func (g RandomIDs) NextOrderID(context.Context) (string, error) {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	suffix := uuid.New().String()[:8]
	return fmt.Sprintf("ORD-%s-%s", now().UTC().Format("20060102"), strings.ToUpper(suffix)), nil
}

type nopNotifier struct{}

func (nopNotifier) SendOrderConfirmation(context.Context, *models.Order) error { return nil }
func (nopNotifier) SendAdminNotification(context.Context, *models.Order) error { return nil }
func (nopNotifier) SendStatusUpdate(context.Context, *models.Order, models.OrderStatus) error {
	return nil
}

func (s *Service) observeCheckout(outcome string) {
	if s.observer != nil {
		s.observer.CheckoutResult(outcome)
	}
}

func (s *Service) record(ctx context.Context, entry models.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.log.Warn("audit record failed",
			zap.String("action", entry.Action),
			zap.String("resource_id", entry.ResourceID),
			zap.Error(err))
	}
}
