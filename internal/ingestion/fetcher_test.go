package ingestion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteFetcher_FetchReturnsBodyOn200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"Global Quote":{}}`))
	}))
	defer server.Close()

	f := NewQuoteFetcher()
	body := f.Fetch(context.Background(), server.URL)
	require.NotNil(t, body)
	assert.Equal(t, `{"Global Quote":{}}`, string(body))
	assert.True(t, f.IsHealthy())

	m := f.Metrics()
	assert.Equal(t, int64(1), m.Requests)
	assert.Equal(t, int64(0), m.Failures)
}

func TestQuoteFetcher_FetchRejectsNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f := NewQuoteFetcher()
	body := f.Fetch(context.Background(), server.URL)
	assert.Nil(t, body)
	assert.False(t, f.IsHealthy())
	assert.Equal(t, int64(1), f.Metrics().Failures)
}

func TestQuoteFetcher_FetchRejectsOversizedBody(t *testing.T) {
	oversized := strings.Repeat("x", maxResponseSize+1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(oversized))
	}))
	defer server.Close()

	f := NewQuoteFetcher()
	body := f.Fetch(context.Background(), server.URL)
	assert.Nil(t, body)
	assert.False(t, f.IsHealthy())
}

func TestQuoteFetcher_FetchRejectsEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	f := NewQuoteFetcher()
	body := f.Fetch(context.Background(), server.URL)
	assert.Nil(t, body)
}

func TestQuoteFetcher_FetchTimesOutOnSlowHandler(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(totalTimeout * 5):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	f := NewQuoteFetcher()
	start := time.Now()
	body := f.Fetch(context.Background(), server.URL)
	elapsed := time.Since(start)

	assert.Nil(t, body)
	// The client-side totalTimeout should cut the request off well
	// before the handler's artificial delay elapses.
	assert.Less(t, elapsed, totalTimeout*5)
}

func TestQuoteFetcher_FetchRespectsConnectTimeout(t *testing.T) {
	// 10.255.255.1 is a non-routable address: the TCP handshake never
	// completes, so this exercises the dialer's connectTimeout rather
	// than the client's overall totalTimeout.
	f := NewQuoteFetcher()
	start := time.Now()
	body := f.Fetch(context.Background(), "http://10.255.255.1/query")
	elapsed := time.Since(start)

	assert.Nil(t, body)
	assert.Less(t, elapsed, time.Second)
}

func TestQuoteFetcher_FetchHonorsCallerContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	f := NewQuoteFetcher()
	body := f.Fetch(ctx, server.URL)
	assert.Nil(t, body)
}
