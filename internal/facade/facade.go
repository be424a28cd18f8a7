// Package facade exposes the stable API surface spec.md §4.7
// describes: order operations and snapshot reads for a host process,
// backed by one lazily-created order book per symbol, a shared
// snapshot store, and the ingestion scheduler. Every method validates
// its inputs at the boundary and returns a boolean/sentinel — no
// internal error crosses this package (spec.md §7).
//
// Grounded on original_source's TradingEngineJNI: one OrderBook per
// tracked symbol keyed by string, lazily created via getOrderBook.
package facade

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/quantis-labs/tradecore/internal/ingestion"
	"github.com/quantis-labs/tradecore/internal/marketdata"
	"github.com/quantis-labs/tradecore/internal/model"
	"github.com/quantis-labs/tradecore/internal/orderbook"
	"github.com/quantis-labs/tradecore/internal/symbolindex"
	"github.com/quantis-labs/tradecore/internal/telemetry"
)

// AddOrderRequest is the boundary-validated shape for Facade.AddOrder.
type AddOrderRequest struct {
	OrderID  string  `validate:"omitempty,max=64"`
	UserID   string  `validate:"required,max=64"`
	Symbol   string  `validate:"required,max=8"`
	Side     string  `validate:"required,oneof=BUY SELL"`
	Quantity int64   `validate:"required,gt=0"`
	Price    float64 `validate:"required,gt=0"`
}

// UpdateOrderRequest is the boundary-validated shape for Facade.UpdateOrder.
type UpdateOrderRequest struct {
	OrderID  string  `validate:"required,max=64"`
	UserID   string  `validate:"required,max=64"`
	Symbol   string  `validate:"required,max=8"`
	Side     string  `validate:"required,oneof=BUY SELL"`
	Quantity int64   `validate:"required,gt=0"`
	Price    float64 `validate:"required,gt=0"`
}

// PerformanceMetrics aggregates the fetcher's, decoder's, and
// scheduler's own counters into the single nested shape
// original_source's CppMarketDataService::PerformanceMetrics exposes
// (SPEC_FULL.md §4.10).
type PerformanceMetrics struct {
	Fetcher   ingestion.FetcherMetrics
	Decoder   ingestion.DecoderMetrics
	Scheduler ingestion.SchedulerMetrics
}

// Facade is the top-level, host-embeddable entry point.
type Facade struct {
	index     *symbolindex.Index
	store     *marketdata.Store
	scheduler *ingestion.Scheduler
	logger    *slog.Logger
	validate  *validator.Validate
	metrics   *telemetry.Metrics

	mu     sync.Mutex
	books  map[string]*orderbook.Book
	tracer oteltrace.Tracer

	tracerShutdown func(context.Context) error
}

// New constructs a Facade with its own symbol index, snapshot store,
// and ingestion scheduler, ready for Start. logger may be nil.
func New(logger *slog.Logger) *Facade {
	if logger == nil {
		logger = slog.Default()
	}
	idx := symbolindex.New(symbolindex.DefaultMaxSymbols)
	store := marketdata.New(idx)
	scheduler := ingestion.NewScheduler(store, logger)
	metrics := telemetry.NewMetrics()

	store.SetMetrics(metrics)
	scheduler.SetMetrics(metrics)

	return &Facade{
		index:     idx,
		store:     store,
		scheduler: scheduler,
		logger:    logger,
		validate:  validator.New(),
		metrics:   metrics,
		books:     make(map[string]*orderbook.Book),
		tracer:    telemetry.NewNoopTracer(),
	}
}

// getOrderBook returns the book for symbol, lazily creating one on
// first access (original_source's TradingEngineJNI::getOrderBook).
func (f *Facade) getOrderBook(symbol string) *orderbook.Book {
	f.mu.Lock()
	defer f.mu.Unlock()

	book, ok := f.books[symbol]
	if !ok {
		book = orderbook.New(symbol, f.store)
		book.SetTracer(f.tracer)
		f.books[symbol] = book
	}
	return book
}

// EnableStdoutTracing swaps every book's latency-checkpoint tracer
// (existing and future) for one that writes spans to stdout, useful
// for local debugging of match/add latency. Returns an error if the
// exporter fails to construct; call Stop before process exit to flush
// pending spans via the shutdown it registers internally.
func (f *Facade) EnableStdoutTracing() error {
	tracer, shutdown, err := telemetry.NewStdoutTracer()
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.tracer = tracer
	f.tracerShutdown = shutdown
	for _, book := range f.books {
		book.SetTracer(tracer)
	}
	f.mu.Unlock()
	return nil
}

// AddOrder validates req and admits the order into its symbol's book.
func (f *Facade) AddOrder(req AddOrderRequest) bool {
	if err := f.validate.Struct(req); err != nil {
		f.logger.Warn("addOrder rejected", "error", err)
		f.metrics.OrdersRejectedTotal.Inc()
		return false
	}
	side, ok := model.ParseSide(req.Side)
	if !ok {
		f.metrics.OrdersRejectedTotal.Inc()
		return false
	}

	orderID := req.OrderID
	if orderID == "" {
		orderID = model.NewOrderID()
	}
	order := &model.Order{
		OrderID:   orderID,
		UserID:    req.UserID,
		Symbol:    req.Symbol,
		Side:      side,
		Quantity:  req.Quantity,
		Price:     req.Price,
		CreatedAt: time.Now(),
	}

	ok = f.getOrderBook(req.Symbol).AddOrder(order)
	if !ok {
		f.metrics.OrdersRejectedTotal.Inc()
	}
	return ok
}

// RemoveOrder cancels orderID within symbol's book. Unknown symbols or
// ids return false, not an error.
func (f *Facade) RemoveOrder(symbol, orderID string) bool {
	if symbol == "" || orderID == "" {
		return false
	}
	return f.getOrderBook(symbol).RemoveOrder(orderID)
}

// UpdateOrder replaces the resting order matching req.OrderID within
// symbol's book (cancel-and-replace; time priority is lost).
func (f *Facade) UpdateOrder(req UpdateOrderRequest) bool {
	if err := f.validate.Struct(req); err != nil {
		f.logger.Warn("updateOrder rejected", "error", err)
		f.metrics.OrdersRejectedTotal.Inc()
		return false
	}
	side, ok := model.ParseSide(req.Side)
	if !ok {
		f.metrics.OrdersRejectedTotal.Inc()
		return false
	}

	order := &model.Order{
		OrderID:  req.OrderID,
		UserID:   req.UserID,
		Symbol:   req.Symbol,
		Side:     side,
		Quantity: req.Quantity,
		Price:    req.Price,
	}

	ok = f.getOrderBook(req.Symbol).UpdateOrder(order)
	if !ok {
		f.metrics.OrdersRejectedTotal.Inc()
	}
	return ok
}

// MarketData is the tuple GetMarketData returns to the host.
type MarketData struct {
	BestBid   float64
	BestAsk   float64
	LastPrice float64
	Spread    float64
	Volume    int64
	Valid     bool
}

// GetMarketData reads symbol's current snapshot from the shared store.
func (f *Facade) GetMarketData(symbol string) MarketData {
	snap, ok := f.store.Read(symbol)
	if !ok {
		return MarketData{}
	}
	return MarketData{
		BestBid:   snap.BestBid,
		BestAsk:   snap.BestAsk,
		LastPrice: snap.LastPrice,
		Spread:    snap.Spread,
		Volume:    snap.Volume,
		Valid:     snap.Valid,
	}
}

// GetOrderCount returns the number of resting orders in symbol's book.
func (f *Facade) GetOrderCount(symbol string) int64 {
	return f.getOrderBook(symbol).TotalOrders()
}

// GetSpread returns symbol's current book spread.
func (f *Facade) GetSpread(symbol string) float64 {
	return f.getOrderBook(symbol).Spread()
}

// IsHalted is a static hook — always false, since circuit-breaker
// logic beyond this stub is a Non-goal (spec.md §1).
func (f *Facade) IsHalted(symbol string) bool {
	return false
}

// GetExecutedTrades returns the trades, across every tracked symbol's
// book, whose taker was orderID — matching original_source's
// TradingEngineJNI::getExecutedTrades(orderId), which searches every
// order book rather than requiring the caller to already know the
// symbol.
func (f *Facade) GetExecutedTrades(orderID string) []*model.Trade {
	f.mu.Lock()
	books := make([]*orderbook.Book, 0, len(f.books))
	for _, book := range f.books {
		books = append(books, book)
	}
	f.mu.Unlock()

	var out []*model.Trade
	for _, book := range books {
		out = append(out, book.GetExecutedTrades(orderID)...)
	}
	return out
}

// UpdateMarketData force-publishes a snapshot for symbol, bypassing
// the ingestion pipeline (original_source's ultra-low-latency
// updateMarketData JNI entry point).
func (f *Facade) UpdateMarketData(symbol string, bestBid, bestAsk, lastPrice float64, volume int64) bool {
	return f.store.Update(symbol, bestBid, bestAsk, lastPrice, volume)
}

// HasValidMarketData reports whether symbol has ever completed a
// successful snapshot update.
func (f *Facade) HasValidMarketData(symbol string) bool {
	return f.store.HasValid(symbol)
}

// SetSymbols replaces the ingestion scheduler's tracked symbol list.
func (f *Facade) SetSymbols(symbols []string) {
	f.scheduler.SetSymbols(symbols)
}

// AddSymbol adds symbol to the ingestion scheduler's tracked list.
func (f *Facade) AddSymbol(symbol string) bool {
	if len(symbol) == 0 || len(symbol) > symbolindex.MaxKeyLen {
		return false
	}
	f.scheduler.AddSymbol(symbol)
	return true
}

// RemoveSymbol removes symbol from the ingestion scheduler's tracked list.
func (f *Facade) RemoveSymbol(symbol string) bool {
	f.scheduler.RemoveSymbol(symbol)
	return true
}

// GetSymbols returns the ingestion scheduler's currently tracked symbols.
func (f *Facade) GetSymbols() []string {
	return f.scheduler.GetSymbols()
}

// SetAPIKey replaces the vendor credential used by the ingestion scheduler.
func (f *Facade) SetAPIKey(apiKey string) bool {
	f.scheduler.SetAPIKey(apiKey)
	return true
}

// SetUpdateInterval replaces the sleep between ingestion sweeps.
func (f *Facade) SetUpdateInterval(d time.Duration) bool {
	if d <= 0 {
		return false
	}
	f.scheduler.SetUpdateInterval(d)
	return true
}

// SetMinUpdateInterval replaces the global minimum spacing between
// outgoing vendor requests (the rate gate's period).
func (f *Facade) SetMinUpdateInterval(d time.Duration) bool {
	if d <= 0 {
		return false
	}
	f.scheduler.SetMinUpdateInterval(d)
	return true
}

// Start starts the ingestion scheduler.
func (f *Facade) Start() bool {
	return f.scheduler.Start()
}

// Stop stops the ingestion scheduler and flushes any stdout tracer
// enabled via EnableStdoutTracing.
func (f *Facade) Stop() bool {
	ok := f.scheduler.Stop()

	f.mu.Lock()
	shutdown := f.tracerShutdown
	f.mu.Unlock()
	if shutdown != nil {
		if err := shutdown(context.Background()); err != nil {
			f.logger.Warn("tracer shutdown failed", "error", err)
		}
	}
	return ok
}

// IsRunning reports whether the ingestion scheduler is running.
func (f *Facade) IsRunning() bool {
	return f.scheduler.IsRunning()
}

// GetPerformanceMetrics aggregates fetcher/decoder/scheduler counters.
func (f *Facade) GetPerformanceMetrics() PerformanceMetrics {
	return PerformanceMetrics{
		Fetcher:   f.scheduler.FetcherMetrics(),
		Decoder:   f.scheduler.DecoderMetrics(),
		Scheduler: f.scheduler.Metrics(),
	}
}

// ResetMetrics zeroes the ingestion scheduler's own sweep/outcome
// counters; the fetcher's and decoder's counters are not reset.
func (f *Facade) ResetMetrics() {
	f.scheduler.ResetMetrics()
}

// IsHealthy reports whether the ingestion pipeline's most recent
// vendor request succeeded.
func (f *Facade) IsHealthy() bool {
	return f.scheduler.IsHealthy()
}

// Metrics exposes the façade's prometheus registry for a host that
// wants to scrape it locally (no exporter is started by this module).
func (f *Facade) Metrics() *telemetry.Metrics {
	return f.metrics
}
