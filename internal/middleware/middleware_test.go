package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestMemoryLimiter_BlocksAfterLimit(t *testing.T) {
	rl := NewMemoryLimiter(2, time.Minute)
	defer rl.Close()
	h := RateLimit(rl, zerolog.Nop())(okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
		if rr.Code == http.StatusTooManyRequests {
			assert.Equal(t, "60", rr.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	// a different caller has its own budget
	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestMemoryLimiter_WindowResets(t *testing.T) {
	rl := NewMemoryLimiter(1, 20*time.Millisecond)
	defer rl.Close()

	ok, _ := rl.Allow(context.Background(), "a")
	assert.True(t, ok)
	ok, _ = rl.Allow(context.Background(), "a")
	assert.False(t, ok)

	time.Sleep(40 * time.Millisecond)
	ok, _ = rl.Allow(context.Background(), "a")
	assert.True(t, ok)
}

func TestMemoryLimiter_SteadyCallerUnderLimitIsNeverBlocked(t *testing.T) {
	rl := NewMemoryLimiter(3, time.Minute)
	defer rl.Close()
	clock := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return clock }

	// one request every 45s is about 1.3 per window against a limit of 3
	for i := 0; i < 200; i++ {
		ok, err := rl.Allow(context.Background(), "steady")
		require.NoError(t, err)
		require.True(t, ok, "request %d rejected", i+1)
		clock = clock.Add(45 * time.Second)
	}
}

func TestMemoryLimiter_RejectedRequestsDoNotExtendWindow(t *testing.T) {
	rl := NewMemoryLimiter(2, time.Minute)
	defer rl.Close()
	clock := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return clock }

	allowed := 0
	for i := 0; i < 10; i++ {
		if ok, _ := rl.Allow(context.Background(), "burst"); ok {
			allowed++
		}
		clock = clock.Add(5 * time.Second)
	}
	assert.Equal(t, 2, allowed)

	// the window opened at the first request, 50s ago
	clock = clock.Add(10 * time.Second)
	ok, _ := rl.Allow(context.Background(), "burst")
	assert.True(t, ok)
}

type fakeRedis struct {
	counts  map[string]int64
	expires map[string]time.Duration
	err     error
}

func (f *fakeRedis) Incr(ctx context.Context, key string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeRedis) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.expires[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
	fake := &fakeRedis{counts: map[string]int64{}, expires: map[string]time.Duration{}}
	rl := newRedisLimiter(fake, 2, time.Minute)
	rl.now = func() time.Time { return time.Unix(120, 0) }

	for i, want := range []bool{true, true, false} {
		ok, err := rl.Allow(context.Background(), "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, want, ok, "request %d", i+1)
	}

	require.Len(t, fake.expires, 1)
	for key, ttl := range fake.expires {
		assert.Equal(t, "jarvis:ratelimit:10.0.0.1:2", key)
		assert.Equal(t, time.Minute, ttl)
	}

	// next window starts a fresh count
	rl.now = func() time.Time { return time.Unix(180, 0) }
	ok, err := rl.Allow(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRateLimit_FailsOpenOnLimiterError(t *testing.T) {
	fake := &fakeRedis{err: errors.New("connection refused")}
	h := RateLimit(newRedisLimiter(fake, 1, time.Minute), zerolog.Nop())(okHandler)

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/chat", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestJWTAuth_Middleware(t *testing.T) {
	auth := NewJWTAuth("test-secret")
	var gotSubject string
	h := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = GetSubject(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	valid, err := auth.GenerateToken("kitchen-speaker", time.Hour)
	require.NoError(t, err)
	expired, err := auth.GenerateToken("kitchen-speaker", -time.Minute)
	require.NoError(t, err)
	foreign, err := NewJWTAuth("other-secret").GenerateToken("kitchen-speaker", time.Hour)
	require.NoError(t, err)
	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "x"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer " + valid, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized},
		{"none algorithm", "Bearer " + noneAlg, http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gotSubject = ""
			req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			assert.Equal(t, tc.want, rr.Code)
			if tc.want == http.StatusOK {
				assert.Equal(t, "kitchen-speaker", gotSubject)
			}
		})
	}
}

func TestJWTAuth_AllowsPreflight(t *testing.T) {
	h := NewJWTAuth("s").Middleware(okHandler)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/api/chat", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
