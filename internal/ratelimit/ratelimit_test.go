package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3"

	"campusid/internal/platform/config"
)

type flakyStore struct {
	failing atomic.Bool
	calls   atomic.Int64
}

var errStoreDown = errors.New("store down")

func (f *flakyStore) result(rate limiter.Rate) (limiter.Context, error) {
	n := f.calls.Add(1)
	if f.failing.Load() {
		return limiter.Context{}, errStoreDown
	}
	return limiter.Context{Limit: rate.Limit, Remaining: rate.Limit - n, Reset: 1}, nil
}

func (f *flakyStore) Get(_ context.Context, _ string, rate limiter.Rate) (limiter.Context, error) {
	return f.result(rate)
}

func (f *flakyStore) Peek(_ context.Context, _ string, rate limiter.Rate) (limiter.Context, error) {
	return f.result(rate)
}

func (f *flakyStore) Reset(_ context.Context, _ string, rate limiter.Rate) (limiter.Context, error) {
	return f.result(rate)
}

func (f *flakyStore) Increment(_ context.Context, _ string, _ int64, rate limiter.Rate) (limiter.Context, error) {
	return f.result(rate)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
}

func post(h http.Handler, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/identities", nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewRejectsBadRate(t *testing.T) {
	_, err := New(config.RateLimitConfig{WriteRate: "lots"})
	require.Error(t, err)
}

func TestWritesAreLimitedPerClient(t *testing.T) {
	l, err := New(config.RateLimitConfig{WriteRate: "2-M"}, WithLogger(quietLogger()))
	require.NoError(t, err)
	h := l.Middleware(okHandler())

	assert.Equal(t, http.StatusCreated, post(h, "10.0.0.1:5000").Code)
	second := post(h, "10.0.0.1:5001")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "2", second.Header().Get(headerLimit))
	assert.Equal(t, "0", second.Header().Get(headerRemain))

	third := post(h, "10.0.0.1:5002")
	assert.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.NotEmpty(t, third.Header().Get("Retry-After"))
	assert.Contains(t, third.Body.String(), "rate_limited")

	// another client has its own budget
	assert.Equal(t, http.StatusCreated, post(h, "10.0.0.2:5000").Code)
}

func TestReadsAreNotLimited(t *testing.T) {
	l, err := New(config.RateLimitConfig{WriteRate: "1-M"}, WithLogger(quietLogger()))
	require.NoError(t, err)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for range 5 {
		req := httptest.NewRequest(http.MethodGet, "/identities", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get(headerLimit))
	}
}

func TestPrimaryFailureFallsBackThroughBreaker(t *testing.T) {
	store := &flakyStore{}
	store.failing.Store(true)

	l, err := New(config.RateLimitConfig{WriteRate: "10-M", FailureThreshold: 2, SuccessThreshold: 1},
		WithLogger(quietLogger()),
		WithPrimaryStore(store),
	)
	require.NoError(t, err)
	h := l.Middleware(okHandler())

	// first failure: circuit still closed, request allowed without headers
	first := post(h, "10.0.0.1:1")
	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(headerLimit))

	// second failure opens the circuit; the in-process store answers
	second := post(h, "10.0.0.1:1")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, statusDegrade, second.Header().Get(headerStatus))
	assert.Equal(t, "9", second.Header().Get(headerRemain))

	store.failing.Store(false)
	third := post(h, "10.0.0.1:1")
	assert.Equal(t, http.StatusCreated, third.Code)
	assert.Empty(t, third.Header().Get(headerStatus))
	assert.Equal(t, "7", third.Header().Get(headerRemain))
	assert.False(t, l.breaker.IsOpen())
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "192.0.2.7:443"
	assert.Equal(t, "192.0.2.7", clientIP(req))

	req.RemoteAddr = "192.0.2.8"
	assert.Equal(t, "192.0.2.8", clientIP(req))
}
