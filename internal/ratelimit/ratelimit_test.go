package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "stagepass/pkg/domain"
	"stagepass/pkg/requestcontext"
)

func TestSlidingWindowAllowsUpToLimit(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := store.Allow(ctx, "k", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 3-i-1, result.Remaining)
	}

	result, err := store.Allow(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
}

func TestSlidingWindowExpires(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	_, err := store.Allow(ctx, "k", 1, 30*time.Millisecond)
	require.NoError(t, err)
	result, err := store.Allow(ctx, "k", 1, 30*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	time.Sleep(40 * time.Millisecond)
	result, err = store.Allow(ctx, "k", 1, 30*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, result.Allowed, "window should have slid past the first request")
}

func TestSlidingWindowZeroLimitDeniesAll(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	for _, limit := range []int{0, -1} {
		result, err := store.Allow(ctx, "k", limit, time.Minute)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, 0, result.Remaining)
	}
}

func TestSlidingWindowKeysAreIndependent(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	_, err := store.Allow(ctx, "a", 1, time.Minute)
	require.NoError(t, err)
	result, err := store.Allow(ctx, "b", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	mw := New(NewInMemoryStore(), 2, time.Minute, logger)

	var hits int
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))

	userID := id.UserID(uuid.New())
	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/events", nil)
		req = req.WithContext(requestcontext.WithUserID(req.Context(), userID))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, do().Code)
	require.Equal(t, http.StatusOK, do().Code)

	rec := do()
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 2, hits)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestMiddlewareKeysAnonymousCallersByIP(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	mw := New(NewInMemoryStore(), 1, time.Minute, logger)
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/events", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, do("10.0.0.1").Code)
	require.Equal(t, http.StatusTooManyRequests, do("10.0.0.1").Code)
	require.Equal(t, http.StatusOK, do("10.0.0.2").Code)
}

func TestMiddlewareDisabled(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	mw := New(NewInMemoryStore(), 0, time.Minute, logger, WithDisabled(true))
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/events", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
}
