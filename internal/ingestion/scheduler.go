package ingestion

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/quantis-labs/tradecore/internal/marketdata"
	"github.com/quantis-labs/tradecore/internal/telemetry"
)

type schedulerState int32

const (
	stateIdle schedulerState = iota
	stateRunning
	stateStopping
	stateStopped
)

const (
	// DefaultUpdateInterval is the sleep between sweeps (spec.md §6).
	DefaultUpdateInterval = 12 * time.Millisecond
	// DefaultMinUpdateInterval is the global minimum spacing between
	// any two outgoing requests (spec.md §6, §9(c)).
	DefaultMinUpdateInterval = 12 * time.Millisecond
	// sweepBackoff is the pause after a sweep-level panic or error
	// (spec.md §4.5).
	sweepBackoff = 100 * time.Millisecond
)

// SchedulerMetrics mirrors original_source's
// CppMarketDataService::PerformanceMetrics.
type SchedulerMetrics struct {
	Sweeps            int64
	SuccessfulUpdates int64
	FailedUpdates     int64
}

// Scheduler runs the periodic ingestion loop described in spec.md
// §4.5: each sweep visits the tracked symbol list, checks a global
// rate gate, and on a pass fetches, decodes, and stores a fresh quote.
type Scheduler struct {
	fetcher *QuoteFetcher
	decoder *QuoteDecoder
	store   *marketdata.Store
	logger  *slog.Logger

	mu                sync.Mutex
	symbols           []string
	apiKey            string
	baseURL           string
	updateInterval    time.Duration
	minUpdateInterval time.Duration
	limiter           *rate.Limiter

	state  atomic.Int32
	stopCh chan struct{}
	wg     sync.WaitGroup

	sweeps            atomic.Int64
	successfulUpdates atomic.Int64
	failedUpdates     atomic.Int64
}

// NewScheduler builds a Scheduler publishing into store. logger may be
// nil, in which case slog.Default() is used.
func NewScheduler(store *marketdata.Store, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		fetcher:           NewQuoteFetcher(),
		decoder:           NewQuoteDecoder(),
		store:             store,
		logger:            logger,
		symbols:           DefaultSymbols(),
		baseURL:           DefaultAlphaVantageBaseURL,
		updateInterval:    DefaultUpdateInterval,
		minUpdateInterval: DefaultMinUpdateInterval,
		limiter:           rate.NewLimiter(rate.Every(DefaultMinUpdateInterval), 1),
	}
	s.state.Store(int32(stateIdle))
	return s
}

// SetMetrics attaches a counter sink to the scheduler's fetcher and
// decoder, so every request/failure/decode-failure they see is
// reflected in metrics. A nil metrics disables counting on both.
func (s *Scheduler) SetMetrics(metrics *telemetry.Metrics) {
	s.fetcher.SetMetrics(metrics)
	s.decoder.SetMetrics(metrics)
}

// Start spawns the worker goroutine if the scheduler is Idle or
// Stopped. Starting an already-Running scheduler is a no-op returning
// true (spec.md §4.5: "start is idempotent").
func (s *Scheduler) Start() bool {
	for {
		cur := schedulerState(s.state.Load())
		switch cur {
		case stateRunning:
			return true
		case stateStopping:
			return false
		case stateIdle, stateStopped:
			if s.state.CompareAndSwap(int32(cur), int32(stateRunning)) {
				s.stopCh = make(chan struct{})
				s.wg.Add(1)
				go s.run()
				return true
			}
		}
	}
}

// Stop cooperatively signals the worker to exit and joins it before
// returning. Stopping an already-stopped scheduler is a no-op
// returning true (spec.md §4.5: "stop is idempotent").
func (s *Scheduler) Stop() bool {
	for {
		cur := schedulerState(s.state.Load())
		switch cur {
		case stateIdle, stateStopped:
			return true
		case stateStopping:
			s.wg.Wait()
			return true
		case stateRunning:
			if s.state.CompareAndSwap(int32(cur), int32(stateStopping)) {
				close(s.stopCh)
				s.wg.Wait()
				s.state.Store(int32(stateStopped))
				return true
			}
		}
	}
}

// IsRunning reports whether the worker goroutine is active.
func (s *Scheduler) IsRunning() bool {
	return schedulerState(s.state.Load()) == stateRunning
}

func (s *Scheduler) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		s.sweepRecovering()

		select {
		case <-s.stopCh:
			return
		case <-time.After(s.currentUpdateInterval()):
		}
	}
}

// sweepRecovering runs one sweep, converting a panic into a logged
// event and a fixed backoff rather than letting it terminate the
// worker (spec.md §4.5: "a thrown or caught exception in the sweep
// triggers a 100ms backoff and resumes").
func (s *Scheduler) sweepRecovering() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("ingestion sweep panicked", "recover", r)
			time.Sleep(sweepBackoff)
		}
	}()
	s.sweep()
}

func (s *Scheduler) sweep() {
	s.mu.Lock()
	symbols := append([]string(nil), s.symbols...)
	apiKey := s.apiKey
	baseURL := s.baseURL
	s.mu.Unlock()

	s.sweeps.Add(1)

	for _, symbol := range symbols {
		select {
		case <-s.stopCh:
			return
		default:
		}

		if !s.limiter.Allow() {
			// Rate gate not passable this attempt; no retry within the
			// sweep (spec.md §4.5), the next sweep will try again.
			continue
		}
		s.fetchDecodeStore(symbol, apiKey, baseURL)
	}
}

// fetchDecodeStore runs the fetch->decode->store pipeline for one
// symbol and updates the outcome counters. It does not itself consult
// the rate gate — callers decide when a request may proceed.
func (s *Scheduler) fetchDecodeStore(symbol, apiKey, baseURL string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), totalTimeout)
	defer cancel()

	body := s.fetcher.Fetch(ctx, BuildQuoteURL(baseURL, symbol, apiKey))
	if body == nil {
		s.failedUpdates.Add(1)
		return false
	}

	quote := s.decoder.Decode(symbol, body)
	if !quote.Valid {
		s.failedUpdates.Add(1)
		return false
	}

	if !s.store.Update(symbol, quote.BestBid, quote.BestAsk, quote.LastPrice, quote.Volume) {
		s.failedUpdates.Add(1)
		return false
	}

	s.successfulUpdates.Add(1)
	return true
}

// UpdateSymbolNow forces an out-of-band refresh of one symbol,
// independent of the sweep loop but still subject to the rate gate,
// per original_source's CppMarketDataService::updateSymbol
// (SPEC_FULL.md §4.10).
func (s *Scheduler) UpdateSymbolNow(symbol string) bool {
	s.mu.Lock()
	apiKey := s.apiKey
	baseURL := s.baseURL
	s.mu.Unlock()

	if !s.limiter.Allow() {
		return false
	}
	return s.fetchDecodeStore(symbol, apiKey, baseURL)
}

func (s *Scheduler) currentUpdateInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateInterval
}

// SetSymbols replaces the tracked symbol list. Takes effect at the
// next sweep boundary (spec.md §4.5).
func (s *Scheduler) SetSymbols(symbols []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbols = append([]string(nil), symbols...)
}

// GetSymbols returns a copy of the currently tracked symbol list.
func (s *Scheduler) GetSymbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.symbols...)
}

// AddSymbol appends symbol to the tracked list if not already present.
func (s *Scheduler) AddSymbol(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.symbols {
		if existing == symbol {
			return
		}
	}
	s.symbols = append(s.symbols, symbol)
}

// RemoveSymbol removes symbol from the tracked list, if present.
func (s *Scheduler) RemoveSymbol(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.symbols {
		if existing == symbol {
			s.symbols = append(s.symbols[:i], s.symbols[i+1:]...)
			return
		}
	}
}

// SetAPIKey replaces the vendor credential used on subsequent requests.
func (s *Scheduler) SetAPIKey(apiKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = apiKey
}

// SetUpdateInterval replaces the sleep between sweeps. Takes effect
// after the sweep currently in flight (spec.md §4.5).
func (s *Scheduler) SetUpdateInterval(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateInterval = d
}

// SetBaseURL points the scheduler's outgoing requests at a different
// vendor host, overriding DefaultAlphaVantageBaseURL. Intended for
// tests wiring in an httptest.Server.
func (s *Scheduler) SetBaseURL(baseURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseURL = baseURL
}

// SetMinUpdateInterval replaces the global minimum spacing between
// outgoing requests.
func (s *Scheduler) SetMinUpdateInterval(d time.Duration) {
	s.mu.Lock()
	s.minUpdateInterval = d
	s.mu.Unlock()
	s.limiter.SetLimit(rate.Every(d))
}

// Metrics returns the scheduler's own sweep/outcome counters. The
// façade combines this with the fetcher's and decoder's metrics into
// one PerformanceMetrics value (SPEC_FULL.md §4.10).
func (s *Scheduler) Metrics() SchedulerMetrics {
	return SchedulerMetrics{
		Sweeps:            s.sweeps.Load(),
		SuccessfulUpdates: s.successfulUpdates.Load(),
		FailedUpdates:     s.failedUpdates.Load(),
	}
}

// ResetMetrics zeroes the scheduler's own counters (not the fetcher's
// or decoder's).
func (s *Scheduler) ResetMetrics() {
	s.sweeps.Store(0)
	s.successfulUpdates.Store(0)
	s.failedUpdates.Store(0)
}

// FetcherMetrics returns the underlying fetcher's counters.
func (s *Scheduler) FetcherMetrics() FetcherMetrics { return s.fetcher.Metrics() }

// DecoderMetrics returns the underlying decoder's counters.
func (s *Scheduler) DecoderMetrics() DecoderMetrics { return s.decoder.Metrics() }

// IsHealthy reports whether the fetcher's most recent request
// succeeded.
func (s *Scheduler) IsHealthy() bool { return s.fetcher.IsHealthy() }
