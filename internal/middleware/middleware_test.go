package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sarvin_back_end/internal/models"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, claims jwt.MapClaims, method jwt.SigningMethod) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func validClaims(role string) jwt.MapClaims {
	return jwt.MapClaims{
		"user_id": "u1",
		"email":   "asha@example.com",
		"name":    "Asha",
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
}

func newAuthRouter() *gin.Engine {
	r := gin.New()
	r.GET("/me", AuthRequired(testSecret), func(c *gin.Context) {
		c.JSON(http.StatusOK, CurrentUser(c))
	})
	r.GET("/admin", AuthRequired(testSecret), RequireAdmin, func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuthRequired(t *testing.T) {
	r := newAuthRouter()

	t.Run("valid token", func(t *testing.T) {
		rec := do(r, "/me", signToken(t, validClaims(""), jwt.SigningMethodHS256))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"user_id":"u1"`)
	})

	t.Run("missing token", func(t *testing.T) {
		rec := do(r, "/me", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		claims := validClaims("")
		claims["exp"] = time.Now().Add(-time.Minute).Unix()
		rec := do(r, "/me", signToken(t, claims, jwt.SigningMethodHS256))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong algorithm", func(t *testing.T) {
		rec := do(r, "/me", signToken(t, validClaims(""), jwt.SigningMethodHS512))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("no user id", func(t *testing.T) {
		claims := validClaims("")
		delete(claims, "user_id")
		rec := do(r, "/me", signToken(t, claims, jwt.SigningMethodHS256))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireAdmin(t *testing.T) {
	r := newAuthRouter()

	rec := do(r, "/admin", signToken(t, validClaims(""), jwt.SigningMethodHS256))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(r, "/admin", signToken(t, validClaims(models.RoleAdmin), jwt.SigningMethodHS256))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

type fakeLimiter struct {
	hits  map[string]int64
	limit int64
	err   error
	wait  time.Duration
}

func (f *fakeLimiter) RetryAfter(context.Context, string) (time.Duration, error) {
	return f.wait, nil
}

func (f *fakeLimiter) Allow(_ context.Context, key string, limit int64, _ time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	f.hits[key]++
	rem := limit - f.hits[key]
	if rem < 0 {
		rem = 0
	}
	return f.hits[key] <= limit, rem, nil
}

func TestRateLimit(t *testing.T) {
	l := &fakeLimiter{hits: map[string]int64{}}
	r := gin.New()
	r.GET("/pay", RateLimit(l, "payment", 2, time.Minute, zap.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, do(r, "/pay", "").Code)
	rec := do(r, "/pay", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusTooManyRequests, do(r, "/pay", "").Code)
}

func TestRateLimit_RetryAfterIsTimeLeftInWindow(t *testing.T) {
	l := &fakeLimiter{hits: map[string]int64{}, wait: 12*time.Second + 300*time.Millisecond}
	r := gin.New()
	r.GET("/pay", RateLimit(l, "payment", 1, time.Minute, nil), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	require.Equal(t, http.StatusOK, do(r, "/pay", "").Code)
	rec := do(r, "/pay", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "13", rec.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 13, body["retry_after"])

	l.wait = 0
	rec = do(r, "/pay", "")
	assert.Equal(t, "60", rec.Header().Get("Retry-After"), "an unknown ttl falls back to the full window")
}

func TestRateLimit_FailsOpen(t *testing.T) {
	l := &fakeLimiter{hits: map[string]int64{}, err: errors.New("redis down")}
	r := gin.New()
	r.GET("/pay", RateLimit(l, "payment", 1, time.Minute, nil), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(r, "/pay", "").Code)
	}
}

func TestRecovery(t *testing.T) {
	for _, expose := range []bool{true, false} {
		r := gin.New()
		r.Use(Recovery(zap.NewNop(), expose))
		r.GET("/boom", func(*gin.Context) { panic("kaboom") })

		rec := do(r, "/boom", "")
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), `"code":"ServerError"`)
		if expose {
			assert.Contains(t, rec.Body.String(), "kaboom")
		} else {
			assert.NotContains(t, rec.Body.String(), "kaboom")
		}
	}
}
