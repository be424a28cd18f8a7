// Package ingestion implements the polling pipeline that keeps the
// snapshot store fresh: a mutex-serialized HTTP fetcher, a tolerant
// JSON decoder for the vendor's quote envelope, and a periodic
// scheduler that ties the two together under a global rate gate.
package ingestion

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quantis-labs/tradecore/internal/telemetry"
)

const (
	// totalTimeout and connectTimeout match spec.md §4.3's aggressive
	// per-request budget, translated from original_source's
	// FastHttpClient CURL timeout options into http.Transport/http.Client
	// fields.
	totalTimeout   = 100 * time.Millisecond
	connectTimeout = 50 * time.Millisecond

	// maxResponseSize is spec.md §6's MAX_RESPONSE_SIZE.
	maxResponseSize = 8 * 1024
)

// FetcherMetrics mirrors original_source's FastHttpClient::PerformanceMetrics.
type FetcherMetrics struct {
	Requests            int64
	Failures            int64
	CumulativeLatencyNs int64
}

// QuoteFetcher is a single-process HTTP GET client tuned for
// latency-sensitive polling: a shared transport for connection/DNS
// reuse, hard timeouts, and a response-size cap. Requests are
// serialized by a mutex so a fetcher shared by more than one caller
// still behaves correctly (spec.md §4.3).
type QuoteFetcher struct {
	mu     sync.Mutex
	client *http.Client

	requests            atomic.Int64
	failures            atomic.Int64
	cumulativeLatencyNs atomic.Int64
	lastFailure         atomic.Bool

	metrics *telemetry.Metrics
}

// NewQuoteFetcher builds a fetcher with a dedicated, reusable
// transport. original_source's FastHttpClient shares one CURL handle
// across requests for the same reason (connection/TLS-session reuse);
// here that's a single *http.Transport held for the client's lifetime.
func NewQuoteFetcher() *QuoteFetcher {
	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        8,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  false,
	}
	return &QuoteFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   totalTimeout,
		},
	}
}

// SetMetrics attaches a counter sink so every attempted request
// increments RequestsTotal, and every failure increments FailuresTotal.
// A nil metrics disables counting.
func (f *QuoteFetcher) SetMetrics(metrics *telemetry.Metrics) {
	f.mu.Lock()
	f.metrics = metrics
	f.mu.Unlock()
}

// Fetch performs a GET against url and returns the raw body on HTTP
// 200 with a non-empty, non-oversized body. Any failure (timeout,
// non-2xx, transport error, oversized body) returns nil, per spec.md
// §4.3 and §7's transport-failure taxonomy — recovered locally, never
// surfaced as an error.
func (f *QuoteFetcher) Fetch(ctx context.Context, url string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	start := time.Now()
	f.requests.Add(1)
	if f.metrics != nil {
		f.metrics.RequestsTotal.Inc()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		f.recordFailure(start)
		return nil
	}
	req.Header.Set("User-Agent", "tradecore-quote-fetcher/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		f.recordFailure(start)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.recordFailure(start)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil || len(body) == 0 || len(body) > maxResponseSize {
		f.recordFailure(start)
		return nil
	}

	f.cumulativeLatencyNs.Add(time.Since(start).Nanoseconds())
	f.lastFailure.Store(false)
	return body
}

func (f *QuoteFetcher) recordFailure(start time.Time) {
	f.failures.Add(1)
	f.cumulativeLatencyNs.Add(time.Since(start).Nanoseconds())
	f.lastFailure.Store(true)
	if f.metrics != nil {
		f.metrics.FailuresTotal.Inc()
	}
}

// Metrics returns a snapshot of the fetcher's counters.
func (f *QuoteFetcher) Metrics() FetcherMetrics {
	return FetcherMetrics{
		Requests:            f.requests.Load(),
		Failures:            f.failures.Load(),
		CumulativeLatencyNs: f.cumulativeLatencyNs.Load(),
	}
}

// ResetMetrics zeroes the fetcher's counters.
func (f *QuoteFetcher) ResetMetrics() {
	f.requests.Store(0)
	f.failures.Store(0)
	f.cumulativeLatencyNs.Store(0)
}

// IsHealthy reports whether the fetcher's most recent request
// succeeded. A freshly constructed fetcher is healthy by definition.
func (f *QuoteFetcher) IsHealthy() bool {
	return !f.lastFailure.Load()
}
