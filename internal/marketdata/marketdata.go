// Package marketdata implements the lock-free market-data snapshot
// store described in spec.md §4.2: one cache-line-sized slot per
// interned symbol, published under a sequence-lock so readers observe
// a point-in-time-consistent tuple without ever taking a mutex.
//
// This is the fix point for original_source's anomaly (e): the C++
// MarketDataStore increments sequenceNumber with a bare fetch_add and
// release ordering, with no odd/even discipline and no re-check on
// read — a reader can observe a torn mix of an old bestBid and a new
// bestAsk. This store instead runs the full seq-lock protocol on every
// update and read.
package marketdata

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/quantis-labs/tradecore/internal/symbolindex"
	"github.com/quantis-labs/tradecore/internal/telemetry"
)

// cacheLineSize is the size slot is padded to, so adjacent symbols
// rarely false-share a line under concurrent writers.
const cacheLineSize = 64

// Snapshot is the observable, point-in-time-consistent view of one
// symbol's market data — the tuple a successful seq-locked read
// returns.
type Snapshot struct {
	BestBid        float64
	BestAsk        float64
	LastPrice      float64
	Spread         float64
	Volume         int64
	TimestampNanos uint64
	Sequence       uint32
	Valid          bool
}

type slot struct {
	seq       atomic.Uint32
	bestBid   atomic.Uint64 // math.Float64bits
	bestAsk   atomic.Uint64
	lastPrice atomic.Uint64
	spread    atomic.Uint64
	volume    atomic.Int64
	timestamp atomic.Uint64
	valid     atomic.Bool

	// Padding rounds the 60 bytes of fields above up to cacheLineSize,
	// discouraging false sharing between adjacent slots under concurrent
	// writers; exact cache-line alignment of a slice element isn't
	// guaranteed by the language, this only reduces the odds.
	_ [cacheLineSize - 60]byte
}

func f64bits(f float64) uint64 { return math.Float64bits(f) }
func bitsF64(b uint64) float64 { return math.Float64frombits(b) }

// processEpoch anchors monotonicNanos; time.Since reads the monotonic
// clock, so wall-clock adjustments never move a timestamp backwards.
var processEpoch = time.Now()

// monotonicNanos returns nanoseconds elapsed on the monotonic clock
// since package initialisation, per spec.md §3's timestamp field.
func monotonicNanos() uint64 {
	return uint64(time.Since(processEpoch).Nanoseconds())
}

// Store is a process-wide, fixed-capacity array of per-symbol
// snapshots, indexed through a symbolindex.Index. It is intended to be
// constructed once and shared by every order book and the ingestion
// scheduler (spec.md §9: "single global store").
type Store struct {
	index *symbolindex.Index
	slots []slot

	nowNanos func() uint64
	metrics  *telemetry.Metrics
}

// New creates a Store backed by index, with index.Capacity() slots —
// one per possible SymbolId.
func New(index *symbolindex.Index) *Store {
	return &Store{
		index:    index,
		slots:    make([]slot, index.Capacity()),
		nowNanos: monotonicNanos,
	}
}

// SetMetrics attaches a counter sink so every successful Update
// increments UpdatesTotal, regardless of caller (ingestion sweep,
// Facade.UpdateMarketData, or an order book publishing a mutation). A
// nil metrics disables counting.
func (s *Store) SetMetrics(metrics *telemetry.Metrics) {
	s.metrics = metrics
}

func (s *Store) slotFor(symbol string) (*slot, bool) {
	id := s.index.Intern(symbol)
	if id == symbolindex.InvalidID {
		return nil, false
	}
	return &s.slots[id], true
}

func (s *Store) slotForRead(symbol string) (*slot, bool) {
	id := s.index.Lookup(symbol)
	if id == symbolindex.InvalidID {
		return nil, false
	}
	return &s.slots[id], true
}

// Update interns symbol if necessary and publishes a new snapshot for
// it. It returns false only if interning fails (table full or symbol
// too long) — per spec.md §4.2 and §7 (capacity exhaustion).
func (s *Store) Update(symbol string, bestBid, bestAsk, lastPrice float64, volume int64) bool {
	sl, ok := s.slotFor(symbol)
	if !ok {
		return false
	}

	spread := bestAsk - bestBid
	now := s.nowNanos()

	// Sequence-locked publication: bump to odd (writer-in-progress),
	// write every payload field with release ordering, bump to even
	// (publication complete). A reader observing an odd sequence, or a
	// sequence that changes between its two reads, must retry.
	sl.seq.Add(1) // now odd

	sl.bestBid.Store(f64bits(bestBid))
	sl.bestAsk.Store(f64bits(bestAsk))
	sl.lastPrice.Store(f64bits(lastPrice))
	sl.spread.Store(f64bits(spread))
	sl.volume.Store(volume)
	sl.timestamp.Store(now)

	sl.seq.Add(1) // now even again: publication complete

	// isValid transitions false -> true exactly once, published after
	// the first full write completes.
	sl.valid.Store(true)

	if s.metrics != nil {
		s.metrics.UpdatesTotal.Inc()
	}

	return true
}

// Read performs a seq-locked read, retrying until it observes a
// consistent tuple. It returns (snapshot, true) once isValid has been
// observed set, or (zero, false) if the symbol is unknown or has never
// been written.
func (s *Store) Read(symbol string) (Snapshot, bool) {
	sl, ok := s.slotForRead(symbol)
	if !ok {
		return Snapshot{}, false
	}
	if !sl.valid.Load() {
		return Snapshot{}, false
	}

	for {
		seq1 := sl.seq.Load()
		if seq1%2 == 1 {
			continue // writer in flight, retry
		}

		bestBid := bitsF64(sl.bestBid.Load())
		bestAsk := bitsF64(sl.bestAsk.Load())
		lastPrice := bitsF64(sl.lastPrice.Load())
		spread := bitsF64(sl.spread.Load())
		volume := sl.volume.Load()
		timestamp := sl.timestamp.Load()

		seq2 := sl.seq.Load()
		if seq1 != seq2 {
			continue // torn read, retry
		}

		return Snapshot{
			BestBid:        bestBid,
			BestAsk:        bestAsk,
			LastPrice:      lastPrice,
			Spread:         spread,
			Volume:         volume,
			TimestampNanos: timestamp,
			Sequence:       seq1,
			Valid:          true,
		}, true
	}
}

// ReadBestPrices is the hot-path variant of Read that returns only
// bestBid/bestAsk, still under full seq-lock protection so the pair is
// always internally consistent.
func (s *Store) ReadBestPrices(symbol string) (bid, ask float64, ok bool) {
	snap, ok := s.Read(symbol)
	if !ok {
		return 0, 0, false
	}
	return snap.BestBid, snap.BestAsk, true
}

// HasValid reports whether symbol has ever completed a successful
// Update. It does not participate in the seq-lock protocol — a single
// relaxed-then-acquire load is sufficient for a boolean flag that only
// ever flips false->true once (spec.md §4.2).
func (s *Store) HasValid(symbol string) bool {
	sl, ok := s.slotForRead(symbol)
	if !ok {
		return false
	}
	return sl.valid.Load()
}
