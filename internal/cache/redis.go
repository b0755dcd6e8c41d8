package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sarvin_back_end/internal/payment"
)

const (
	orderSeqPrefix    = "order_seq:"
	paymentLockPrefix = "payment_lock:"
	rateLimitPrefix   = "rate:"
	confirmedPrefix   = "payment_confirmed:"

	// a day's sequence key outlives the day so late writers never restart at 1
	orderSeqTTL = 48 * time.Hour
)

// Redis backs the order-id sequence, the per-payment verification lock,
// gateway-confirmed payments and the request rate limiter.
type Redis struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, now: time.Now}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// --- Order ids ---

// NextOrderID returns ORD-YYYYMMDD-NNNNNN from a per-day INCR counter.
func (r *Redis) NextOrderID(ctx context.Context) (string, error) {
	day := r.now().UTC().Format("20060102")
	key := orderSeqPrefix + day

	seq, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("increment order sequence: %w", err)
	}
	if seq == 1 {
		if err := r.client.Expire(ctx, key, orderSeqTTL).Err(); err != nil {
			return "", fmt.Errorf("expire order sequence: %w", err)
		}
	}
	return fmt.Sprintf("ORD-%s-%06d", day, seq), nil
}

// --- Payment locks ---

// AcquirePayment takes the verification lock for a gateway payment id.
// It reports false when another request already holds it.
func (r *Redis) AcquirePayment(ctx context.Context, paymentID string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, paymentLockPrefix+paymentID, r.now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire payment lock: %w", err)
	}
	return ok, nil
}

func (r *Redis) ReleasePayment(ctx context.Context, paymentID string) error {
	return r.client.Del(ctx, paymentLockPrefix+paymentID).Err()
}

// --- Confirmed payments ---

// SavePaymentConfirmation keeps a gateway-confirmed payment for ttl, keyed by
// its gateway order id.
func (r *Redis) SavePaymentConfirmation(ctx context.Context, p *payment.Payment, ttl time.Duration) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payment confirmation: %w", err)
	}
	if err := r.client.Set(ctx, confirmedPrefix+p.OrderID, raw, ttl).Err(); err != nil {
		return fmt.Errorf("save payment confirmation: %w", err)
	}
	return nil
}

// PaymentConfirmation returns nil, nil when no confirmation is held.
func (r *Redis) PaymentConfirmation(ctx context.Context, gatewayOrderID string) (*payment.Payment, error) {
	raw, err := r.client.Get(ctx, confirmedPrefix+gatewayOrderID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load payment confirmation: %w", err)
	}
	var p payment.Payment
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode payment confirmation: %w", err)
	}
	return &p, nil
}

// --- Rate limiting ---

// Allow counts one hit against key in a fixed window and reports whether the
// caller is still within limit, plus the hits left.
func (r *Redis) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	full := rateLimitPrefix + key

	count, err := r.client.Incr(ctx, full).Result()
	if err != nil {
		return false, 0, fmt.Errorf("increment rate limit: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, full, window).Err(); err != nil {
			return false, 0, fmt.Errorf("expire rate limit: %w", err)
		}
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= limit, remaining, nil
}

// RetryAfter returns how long until the window for key resets.
func (r *Redis) RetryAfter(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := r.client.TTL(ctx, rateLimitPrefix+key).Result()
	if errors.Is(err, redis.Nil) || ttl < 0 {
		return 0, nil
	}
	return ttl, err
}
