package httpclient

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cbTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noRetryConfig() Config {
	cfg := fastConfig()
	cfg.MaxRetries = 0
	return cfg
}

func TestCircuitBreaker_PassesThroughSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewCircuitBreakerClient(New(noRetryConfig()), DefaultCircuitBreakerConfig("cb-success"), cbTestLogger())
	resp, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, gobreaker.StateClosed, c.State())
}

func TestCircuitBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg := DefaultCircuitBreakerConfig("cb-4xx")
	cfg.MinRequests = 3
	c := NewCircuitBreakerClient(New(noRetryConfig()), cfg, cbTestLogger())

	for i := 0; i < 10; i++ {
		resp, err := c.Get(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	}
	assert.Equal(t, gobreaker.StateClosed, c.State())
}

func TestCircuitBreaker_ServerErrorsTripBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := DefaultCircuitBreakerConfig("cb-5xx")
	cfg.MinRequests = 3
	c := NewCircuitBreakerClient(New(noRetryConfig()), cfg, cbTestLogger())

	for i := 0; i < 5; i++ {
		resp, err := c.Get(context.Background(), srv.URL)
		require.Error(t, err)
		assert.Nil(t, resp)
	}

	assert.Equal(t, gobreaker.StateOpen, c.State())

	served := calls.Load()
	_, err := c.Get(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, served, calls.Load(), "open breaker must not reach the backend")
}
