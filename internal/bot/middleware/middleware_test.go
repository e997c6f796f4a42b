package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterBurstPerUser(t *testing.T) {
	rl := NewRateLimiter(1, 3)
	defer rl.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow(42), "запрос %d в пределах burst", i+1)
	}
	assert.False(t, rl.Allow(42))
	assert.True(t, rl.Allow(7), "у другого пользователя своё ведро")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow(42), "за секунду восстановился один токен")
	assert.False(t, rl.Allow(42))
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	defer rl.Close()

	for i := 0; i < 100; i++ {
		require.True(t, rl.Allow(42))
	}
	assert.Zero(t, rl.Len())
}

func TestRateLimiterEvictsIdle(t *testing.T) {
	rl := NewRateLimiter(5, 5)
	defer rl.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow(1)
	now = now.Add(idleTTL / 2)
	rl.Allow(2)
	now = now.Add(idleTTL/2 + time.Second)

	assert.Equal(t, 1, rl.evictIdle())
	assert.Equal(t, 1, rl.Len())
}

func TestShortenCountsRunes(t *testing.T) {
	assert.Equal(t, "привет", shorten("привет"))

	long := strings.Repeat("я", maxLoggedText+5)
	got := shorten(long)
	assert.Equal(t, strings.Repeat("я", maxLoggedText)+"...", got)
}

func TestRequestLoggerPassesThrough(t *testing.T) {
	h := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestRecoverFromPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		defer RecoverFromPanic(nil)
		panic("boom")
	})
}
