// Package orderbook implements a per-symbol, two-sided, price-time
// priority order book: a btree.Map of price levels per side, a FIFO
// queue of resting orders at each level, and a deterministic matching
// engine. Every mutation publishes best bid/ask/last-price to a shared
// marketdata.Store so external readers never need to touch the book's
// own lock. Add/match paths also emit latency checkpoints through an
// injectable otel tracer, defaulting to a no-op until a host opts in.
package orderbook

import (
	"container/list"
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/btree"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/quantis-labs/tradecore/internal/marketdata"
	"github.com/quantis-labs/tradecore/internal/model"
	"github.com/quantis-labs/tradecore/internal/telemetry"
)

const (
	// btreeDegree matches the teacher's own choice for
	// internal/trading/orderbook.
	btreeDegree = 32

	// maxTradesPerSymbol bounds the per-book trade log so
	// GetExecutedTrades never grows without limit (see SPEC_FULL.md §4.10).
	maxTradesPerSymbol = 1024
)

type level struct {
	orders *list.List // *model.Order, front = oldest (time priority)
}

func newLevel() *level {
	return &level{orders: list.New()}
}

type orderLocation struct {
	price float64
	side  model.Side
	elem  *list.Element
}

// Book is a single symbol's two-sided order book.
type Book struct {
	symbol string
	store  *marketdata.Store

	mu     sync.RWMutex
	bids   *btree.Map[float64, *level] // sorted ascending; best = Max()
	asks   *btree.Map[float64, *level] // sorted ascending; best = Min()
	byID   map[string]orderLocation
	trades []*model.Trade // ring buffer, capped at maxTradesPerSymbol

	tracer oteltrace.Tracer // never nil; defaults to a no-op tracer

	totalOrders atomic.Int64
	totalVolume atomic.Int64
	bestBidBits atomic.Uint64
	bestAskBits atomic.Uint64
	lastPrice   atomic.Uint64
}

// New creates an empty book for symbol, publishing to store on every
// mutation. store may be nil in tests that don't care about
// snapshot-store integration.
func New(symbol string, store *marketdata.Store) *Book {
	return &Book{
		symbol: symbol,
		store:  store,
		bids:   btree.NewMap[float64, *level](btreeDegree),
		asks:   btree.NewMap[float64, *level](btreeDegree),
		byID:   make(map[string]orderLocation),
		tracer: telemetry.NewNoopTracer(),
	}
}

// SetTracer replaces the book's latency-checkpoint tracer, letting a
// host swap in telemetry.NewStdoutTracer() (or any other otel tracer)
// after construction. A nil tracer is ignored.
func (b *Book) SetTracer(tracer oteltrace.Tracer) {
	if tracer == nil {
		return
	}
	b.mu.Lock()
	b.tracer = tracer
	b.mu.Unlock()
}

// AddOrder validates order, matches it against resting opposing
// liquidity, and rests any unfilled remainder. Returns false for a
// structurally invalid order (spec.md §4.6): non-positive
// price/quantity or an unrecognized side; and for an order whose
// OrderID is already resting in this book.
func (b *Book) AddOrder(order *model.Order) bool {
	if !order.Valid() {
		return false
	}
	if order.OrderID == "" {
		order.OrderID = model.NewOrderID()
	}

	ctx := context.Background()
	telemetry.RecordLatencyCheckpoint(ctx, b.tracer, "orderbook_add_start")
	defer telemetry.RecordLatencyCheckpoint(ctx, b.tracer, "orderbook_add_done")

	b.mu.Lock()
	if _, exists := b.byID[order.OrderID]; exists {
		b.mu.Unlock()
		return false
	}
	trades := b.matchLocked(order)
	if order.Quantity > 0 {
		b.addLocked(order)
	} else {
		order.Active = false
	}
	b.recomputeLocked(trades)
	b.mu.Unlock()

	return true
}

// MatchOrder matches taker against resting opposing liquidity without
// resting any unfilled remainder, per spec.md §4.6's separate
// `matchOrder` primitive.
func (b *Book) MatchOrder(taker *model.Order) []*model.Trade {
	if !taker.Valid() {
		return nil
	}
	b.mu.Lock()
	trades := b.matchLocked(taker)
	b.recomputeLocked(trades)
	b.mu.Unlock()
	return trades
}

// RemoveOrder cancels a resting order by id. Returns false if the id
// is unknown (spec.md §4.6: "operations on unknown orderId return
// false, not an error").
func (b *Book) RemoveOrder(orderID string) bool {
	b.mu.Lock()
	ok := b.removeLocked(orderID)
	if ok {
		b.recomputeLocked(nil)
	}
	b.mu.Unlock()
	return ok
}

// UpdateOrder replaces the resting order sharing order.OrderID with
// order, using cancel-and-replace semantics: time priority is lost.
// This is the fix point for original_source's anomaly (a) — the
// original's updateOrder calls removeOrder/addOrder, both of which
// take the book's exclusive lock, self-deadlocking on a non-reentrant
// guard. Here removeLocked/addLocked run once under a single
// acquisition of b.mu.
func (b *Book) UpdateOrder(order *model.Order) bool {
	if !order.Valid() || order.OrderID == "" {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.byID[order.OrderID]; !exists {
		return false
	}
	b.removeLocked(order.OrderID)

	trades := b.matchLocked(order)
	if order.Quantity > 0 {
		b.addLocked(order)
	} else {
		order.Active = false
	}
	b.recomputeLocked(trades)
	return true
}

// matchLocked runs price-time priority matching for taker against the
// opposing side, mutating resting maker quantities and taker.Quantity
// in place, and returns the trades produced. Callers must hold b.mu.
func (b *Book) matchLocked(taker *model.Order) []*model.Trade {
	ctx := context.Background()
	telemetry.RecordLatencyCheckpoint(ctx, b.tracer, "orderbook_match_start")
	defer telemetry.RecordLatencyCheckpoint(ctx, b.tracer, "orderbook_match_done")

	oppBook := b.asks
	if taker.Side == model.SideSell {
		oppBook = b.bids
	}

	var trades []*model.Trade
	for taker.Quantity > 0 {
		price, lvl, ok := bestOpposing(oppBook, taker.Side)
		if !ok {
			break
		}
		if taker.Side == model.SideBuy && taker.Price < price {
			break
		}
		if taker.Side == model.SideSell && taker.Price > price {
			break
		}

		for lvl.orders.Len() > 0 && taker.Quantity > 0 {
			front := lvl.orders.Front()
			maker := front.Value.(*model.Order)

			tradeQty := taker.Quantity
			if maker.Quantity < tradeQty {
				tradeQty = maker.Quantity
			}

			taker.Quantity -= tradeQty
			maker.Quantity -= tradeQty

			trade := &model.Trade{
				TradeID:      model.NewTradeID(),
				TakerOrderID: taker.OrderID,
				TakerUserID:  taker.UserID,
				Symbol:       b.symbol,
				TakerSide:    taker.Side,
				Quantity:     tradeQty,
				Price:        price,
				ExecutedAt:   time.Now(),
			}
			trades = append(trades, trade)
			b.recordTrade(trade)
			telemetry.RecordLatencyCheckpoint(ctx, b.tracer, "orderbook_match_trade")

			if maker.Quantity == 0 {
				maker.Active = false
				delete(b.byID, maker.OrderID)
				lvl.orders.Remove(front)
			}
		}

		if lvl.orders.Len() == 0 {
			oppBook.Delete(price)
		}
	}

	return trades
}

// bestOpposing returns the level a taker of the given side should
// examine first: the lowest ask for a BUY taker, the highest bid for a
// SELL taker.
func bestOpposing(book *btree.Map[float64, *level], takerSide model.Side) (float64, *level, bool) {
	if takerSide == model.SideBuy {
		price, lvl, ok := book.Min()
		return price, lvl, ok
	}
	price, lvl, ok := book.Max()
	return price, lvl, ok
}

// addLocked rests order on its side of the book. Callers must hold b.mu.
func (b *Book) addLocked(order *model.Order) {
	book := b.sideBook(order.Side)
	lvl, ok := book.Get(order.Price)
	if !ok {
		lvl = newLevel()
		book.Set(order.Price, lvl)
	}
	elem := lvl.orders.PushBack(order)
	order.Active = true
	b.byID[order.OrderID] = orderLocation{price: order.Price, side: order.Side, elem: elem}
}

// removeLocked deletes the resting order identified by orderID.
// Callers must hold b.mu. Returns false if the id is unknown.
func (b *Book) removeLocked(orderID string) bool {
	loc, ok := b.byID[orderID]
	if !ok {
		return false
	}
	delete(b.byID, orderID)

	book := b.sideBook(loc.side)
	lvl, ok := book.Get(loc.price)
	if !ok {
		return false
	}
	if order, ok := loc.elem.Value.(*model.Order); ok {
		order.Active = false
	}
	lvl.orders.Remove(loc.elem)
	if lvl.orders.Len() == 0 {
		book.Delete(loc.price)
	}
	return true
}

func (b *Book) sideBook(side model.Side) *btree.Map[float64, *level] {
	if side == model.SideBuy {
		return b.bids
	}
	return b.asks
}

// recomputeLocked recomputes bestBid/bestAsk from the sorted book
// structure and republishes to the snapshot store. This is the fix
// point for original_source's anomaly (d): the C++ source updates its
// bestBid_/bestAsk_ atomics on add only, never on remove, so they go
// stale. Here they are recomputed after every mutation and treated as
// a cached hint, matching spec.md §9(d).
func (b *Book) recomputeLocked(trades []*model.Trade) {
	var bestBid, bestAsk float64
	if price, _, ok := b.bids.Max(); ok {
		bestBid = price
	}
	if price, _, ok := b.asks.Min(); ok {
		bestAsk = price
	}
	b.bestBidBits.Store(math.Float64bits(bestBid))
	b.bestAskBits.Store(math.Float64bits(bestAsk))

	if len(trades) > 0 {
		b.lastPrice.Store(math.Float64bits(trades[len(trades)-1].Price))
	}

	volume := int64(0)
	for _, loc := range b.byID {
		if order, ok := loc.elem.Value.(*model.Order); ok {
			volume += order.Quantity
		}
	}
	b.totalOrders.Store(int64(len(b.byID)))
	b.totalVolume.Store(volume)

	if b.store != nil {
		lastPrice := math.Float64frombits(b.lastPrice.Load())
		b.store.Update(b.symbol, bestBid, bestAsk, lastPrice, volume)
	}
}

func (b *Book) recordTrade(t *model.Trade) {
	b.trades = append(b.trades, t)
	if len(b.trades) > maxTradesPerSymbol {
		b.trades = b.trades[len(b.trades)-maxTradesPerSymbol:]
	}
}

// BestBid returns the current best resting bid price, or 0 if the bid
// side is empty. Lock-free: reads the atomic hint kept current by
// recomputeLocked.
func (b *Book) BestBid() float64 {
	return math.Float64frombits(b.bestBidBits.Load())
}

// BestAsk returns the current best resting ask price, or 0 if the ask
// side is empty.
func (b *Book) BestAsk() float64 {
	return math.Float64frombits(b.bestAskBits.Load())
}

// Spread returns BestAsk() - BestBid().
func (b *Book) Spread() float64 {
	return b.BestAsk() - b.BestBid()
}

// TotalOrders returns the number of resting orders across both sides.
func (b *Book) TotalOrders() int64 {
	return b.totalOrders.Load()
}

// TotalVolume returns the sum of resting quantity across both sides.
func (b *Book) TotalVolume() int64 {
	return b.totalVolume.Load()
}

// UpdateMarketDataFromBook forces a republish of the book's current
// best bid/ask/last-price to the snapshot store, independent of any
// mutation.
func (b *Book) UpdateMarketDataFromBook() bool {
	if b.store == nil {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.store.Update(b.symbol, b.BestBid(), b.BestAsk(), math.Float64frombits(b.lastPrice.Load()), b.totalVolume.Load())
}

// GetExecutedTrades returns the trades in this book's bounded trade
// log whose TakerOrderID matches orderID, oldest first. Grounded on
// original_source's TradingEngineJNI::getExecutedTrades(orderId).
func (b *Book) GetExecutedTrades(orderID string) []*model.Trade {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []*model.Trade
	for _, t := range b.trades {
		if t.TakerOrderID == orderID {
			out = append(out, t)
		}
	}
	return out
}

// Symbol returns the symbol this book was constructed for.
func (b *Book) Symbol() string {
	return b.symbol
}

// String is a debugging aid; not used on any hot path.
func (b *Book) String() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return fmt.Sprintf("Book{%s bid=%.4f ask=%.4f orders=%d}", b.symbol, b.BestBid(), b.BestAsk(), b.totalOrders.Load())
}
