package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v83/webhook"

	"sarvin_back_end/internal/models"
	"sarvin_back_end/internal/payment"
)

type fakeConfirmations struct {
	mu   sync.Mutex
	held map[string]*payment.Payment
	ttl  time.Duration
}

func (c *fakeConfirmations) SavePaymentConfirmation(_ context.Context, p *payment.Payment, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.held[p.OrderID] = p
	c.ttl = ttl
	return nil
}

func (c *fakeConfirmations) PaymentConfirmation(_ context.Context, id string) (*payment.Payment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.held[id], nil
}

func intentEvent(t *testing.T, secret, eventType, status, userID string) ([]byte, string) {
	t.Helper()
	body := `{"id":"evt_1","object":"event","type":"` + eventType + `","api_version":"2020-08-27",` +
		`"data":{"object":{"id":"pi_123","object":"payment_intent","amount":45000,"amount_received":45000,` +
		`"currency":"inr","status":"` + status + `","metadata":{"userId":"` + userID + `"}}}}`
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(body),
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return signed.Payload, signed.Header
}

func TestConfirmPayment_WebhookThenCheckout(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	payload, header := intentEvent(t, testWebhookSecret, "payment_intent.succeeded", "succeeded", customer.ID)
	require.NoError(t, f.svc.HandleGatewayWebhook(ctx, payload, header))
	require.Contains(t, f.confirms.held, "pi_123")
	assert.Equal(t, 24*time.Hour, f.confirms.ttl)

	details, err := f.svc.ConfirmPayment(ctx, customer, "pi_123")
	require.NoError(t, err)
	assert.Equal(t, "pi_123", details.GatewayOrderID)
	assert.Equal(t, "pi_123", details.GatewayPaymentID)
	assert.True(t, f.verifier.Verify("pi_123", "pi_123", details.GatewaySignature))

	p := f.store.PutProduct(models.Product{Name: "Kettle", Price: decimal.NewFromInt(450), Stock: 3})
	req := f.request("unused", 450, ItemRequest{Product: p, Quantity: 1})
	req.PaymentDetails = details
	order, err := f.svc.VerifyPayment(ctx, customer, req)
	require.NoError(t, err)
	assert.Equal(t, "pi_123", order.PaymentID)
	assert.Equal(t, 2, f.store.Stock(p))
}

func TestHandleGatewayWebhook_Rejects(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	payload, header := intentEvent(t, "whsec_other", "payment_intent.succeeded", "succeeded", customer.ID)
	err := f.svc.HandleGatewayWebhook(ctx, payload, header)
	assert.True(t, IsKind(err, KindPaymentVerificationFailed))
	assert.Empty(t, f.confirms.held)

	bare := New(Deps{}, Options{})
	err = bare.HandleGatewayWebhook(ctx, payload, header)
	assert.True(t, IsKind(err, KindGatewayUnconfigured))
}

func TestHandleGatewayWebhook_IgnoresOtherEvents(t *testing.T) {
	f := newFixture(t, Options{})

	payload, header := intentEvent(t, testWebhookSecret, "payment_intent.processing", "processing", customer.ID)
	require.NoError(t, f.svc.HandleGatewayWebhook(context.Background(), payload, header))
	assert.Empty(t, f.confirms.held)
}

func TestConfirmPayment_FallsBackToGateway(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	f.gateway.payment = &payment.Payment{ID: "pi_9", OrderID: "pi_9", Amount: 45000, Status: "processing"}
	_, err := f.svc.ConfirmPayment(ctx, customer, "pi_9")
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindPaymentIncomplete, e.Kind)
	assert.Equal(t, 409, e.HTTPStatus())
	assert.Equal(t, "processing", e.Details["paymentStatus"])

	f.gateway.payment.Status = payment.StatusSucceeded
	details, err := f.svc.ConfirmPayment(ctx, customer, "pi_9")
	require.NoError(t, err)
	assert.Equal(t, f.verifier.Sign("pi_9", "pi_9"), details.GatewaySignature)
}

func TestConfirmPayment_Errors(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.svc.ConfirmPayment(ctx, customer, "")
	assert.True(t, IsKind(err, KindMalformedRequest))

	f.confirms.held["pi_123"] = &payment.Payment{ID: "pi_123", OrderID: "pi_123", Status: payment.StatusSucceeded,
		Notes: map[string]string{"userId": "user-2"}}
	_, err = f.svc.ConfirmPayment(ctx, customer, "pi_123")
	assert.True(t, IsKind(err, KindPaymentVerificationFailed), "another user's payment")

	_, err = f.svc.ConfirmPayment(ctx, customer, "pi_unknown")
	assert.True(t, IsKind(err, KindGatewayError))

	bare := New(Deps{Verifier: f.verifier}, Options{})
	_, err = bare.ConfirmPayment(ctx, customer, "pi_123")
	assert.True(t, IsKind(err, KindGatewayUnconfigured))

	unsigned := New(Deps{}, Options{})
	_, err = unsigned.ConfirmPayment(ctx, customer, "pi_123")
	assert.True(t, IsKind(err, KindGatewayUnconfigured))
}
