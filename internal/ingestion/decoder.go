package ingestion

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/quantis-labs/tradecore/internal/telemetry"
)

// DecodedQuote is the decoder's output tuple, per spec.md §4.4.
type DecodedQuote struct {
	Symbol         string
	Open           float64
	High           float64
	Low            float64
	LastPrice      float64
	Volume         int64
	BestBid        float64
	BestAsk        float64
	TimestampNanos uint64
	Valid          bool
}

// flexNumber unmarshals a JSON field that the vendor sends as either a
// bare number or a quoted numeric string, per spec.md §6.
type flexNumber string

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	s = strings.Trim(s, `"`)
	*n = flexNumber(strings.TrimSpace(s))
	return nil
}

func (n flexNumber) asFloat64() (float64, bool) {
	if n == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (n flexNumber) asInt64() (int64, bool) {
	f, ok := n.asFloat64()
	if !ok {
		return 0, false
	}
	return int64(f), true
}

type globalQuoteEnvelope struct {
	GlobalQuote struct {
		Open   flexNumber `json:"02. open"`
		High   flexNumber `json:"03. high"`
		Low    flexNumber `json:"04. low"`
		Price  flexNumber `json:"05. price"`
		Volume flexNumber `json:"06. volume"`
	} `json:"Global Quote"`
}

// DecoderMetrics mirrors original_source's FastJsonParser::PerformanceMetrics.
type DecoderMetrics struct {
	Decoded  int64
	Failures int64
}

// QuoteDecoder extracts {open, high, low, price, volume} from the
// vendor's GLOBAL_QUOTE JSON envelope.
type QuoteDecoder struct {
	decoded     atomic.Int64
	failures    atomic.Int64
	now         func() uint64
	lastFailure atomic.Bool

	metrics *telemetry.Metrics
}

// NewQuoteDecoder returns a decoder stamping decode timestamps with
// the wall clock.
func NewQuoteDecoder() *QuoteDecoder {
	return &QuoteDecoder{now: func() uint64 { return uint64(time.Now().UnixNano()) }}
}

// SetMetrics attaches a counter sink so every rejected envelope
// increments DecodeFailuresTotal. A nil metrics disables counting.
func (d *QuoteDecoder) SetMetrics(metrics *telemetry.Metrics) {
	d.metrics = metrics
}

// Decode parses body as an Alpha Vantage GLOBAL_QUOTE envelope for
// symbol. The bestBid=low, bestAsk=high derivation is a deliberate
// approximation preserved from original_source (spec.md §9(b)): a
// daily quote envelope carries no true L1 bid/ask, so the day's
// high/low stand in for it. Invalid on a missing envelope, an
// unparseable required field, lastPrice<=0, or volume<0 (spec.md §4.4).
func (d *QuoteDecoder) Decode(symbol string, body []byte) DecodedQuote {
	var env globalQuoteEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		d.recordFailure()
		return DecodedQuote{Symbol: symbol}
	}

	open, okOpen := env.GlobalQuote.Open.asFloat64()
	high, okHigh := env.GlobalQuote.High.asFloat64()
	low, okLow := env.GlobalQuote.Low.asFloat64()
	price, okPrice := env.GlobalQuote.Price.asFloat64()
	volume, okVolume := env.GlobalQuote.Volume.asInt64()

	if !okOpen || !okHigh || !okLow || !okPrice || !okVolume {
		d.recordFailure()
		return DecodedQuote{Symbol: symbol}
	}
	if price <= 0 || volume < 0 {
		d.recordFailure()
		return DecodedQuote{Symbol: symbol}
	}

	d.decoded.Add(1)
	d.lastFailure.Store(false)
	return DecodedQuote{
		Symbol:         symbol,
		Open:           open,
		High:           high,
		Low:            low,
		LastPrice:      price,
		Volume:         volume,
		BestBid:        low,
		BestAsk:        high,
		TimestampNanos: d.now(),
		Valid:          true,
	}
}

func (d *QuoteDecoder) recordFailure() {
	d.failures.Add(1)
	d.lastFailure.Store(true)
	if d.metrics != nil {
		d.metrics.DecodeFailuresTotal.Inc()
	}
}

// Metrics returns a snapshot of the decoder's counters.
func (d *QuoteDecoder) Metrics() DecoderMetrics {
	return DecoderMetrics{Decoded: d.decoded.Load(), Failures: d.failures.Load()}
}

// ResetMetrics zeroes the decoder's counters.
func (d *QuoteDecoder) ResetMetrics() {
	d.decoded.Store(0)
	d.failures.Store(0)
}

// IsHealthy reports whether the decoder's most recently decoded
// envelope was valid, mirroring QuoteFetcher.IsHealthy and
// Scheduler.IsHealthy (SPEC_FULL.md §4.10). A freshly constructed
// decoder is healthy by definition.
func (d *QuoteDecoder) IsHealthy() bool {
	return !d.lastFailure.Load()
}
