package marketdata

import (
	"sync"
	"testing"

	"github.com/quantis-labs/tradecore/internal/symbolindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	idx := symbolindex.New(16)
	return New(idx)
}

func TestUpdateThenRead_MatchesArguments(t *testing.T) {
	store := newTestStore(t)

	require.True(t, store.Update("AAPL", 9.5, 10.5, 10.0, 1000))

	snap, ok := store.Read("AAPL")
	require.True(t, ok)
	assert.Equal(t, 9.5, snap.BestBid)
	assert.Equal(t, 10.5, snap.BestAsk)
	assert.Equal(t, 10.0, snap.LastPrice)
	assert.Equal(t, int64(1000), snap.Volume)
	assert.Equal(t, 1.0, snap.Spread)
}

func TestRead_UnknownSymbolReturnsFalse(t *testing.T) {
	store := newTestStore(t)
	_, ok := store.Read("ZZZZ")
	assert.False(t, ok)
}

func TestHasValid_FalseUntilFirstUpdate(t *testing.T) {
	store := newTestStore(t)
	assert.False(t, store.HasValid("AAPL"))
	store.Update("AAPL", 1, 2, 1.5, 10)
	assert.True(t, store.HasValid("AAPL"))
}

func TestTimestamp_MonotonicNonDecreasing(t *testing.T) {
	store := newTestStore(t)

	store.Update("AAPL", 1, 2, 1.5, 10)
	first, _ := store.Read("AAPL")

	store.Update("AAPL", 1, 2, 1.6, 11)
	second, _ := store.Read("AAPL")

	assert.GreaterOrEqual(t, second.TimestampNanos, first.TimestampNanos)
}

func TestReadBestPrices_HotPath(t *testing.T) {
	store := newTestStore(t)
	store.Update("AAPL", 9.5, 10.5, 10.0, 100)

	bid, ask, ok := store.ReadBestPrices("AAPL")
	require.True(t, ok)
	assert.Equal(t, 9.5, bid)
	assert.Equal(t, 10.5, ask)
}

// Scenario 5 from spec.md §8: interning failure propagates as a
// failed update.
func TestUpdate_ReturnsFalseWhenTableFull(t *testing.T) {
	idx := symbolindex.New(1)
	store := New(idx)

	require.True(t, store.Update("AAPL", 1, 2, 1.5, 10))
	assert.False(t, store.Update("MSFT", 1, 2, 1.5, 10))
}

// The seq-lock property from spec.md §8: under concurrent writer
// hammering, every successful read observes spread == ask - bid.
func TestSeqLock_ConsistentUnderConcurrentWriters(t *testing.T) {
	store := newTestStore(t)
	store.Update("AAPL", 1, 2, 1.5, 10)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(4)
	for i := 0; i < 4; i++ {
		go func(i int) {
			defer wg.Done()
			bid := float64(i)
			for {
				select {
				case <-stop:
					return
				default:
					store.Update("AAPL", bid, bid+1, bid+0.5, int64(i))
				}
			}
		}(i)
	}

	for i := 0; i < 2000; i++ {
		snap, ok := store.Read("AAPL")
		if !ok {
			continue
		}
		assert.InDelta(t, snap.BestAsk-snap.BestBid, snap.Spread, 1e-9)
	}
	close(stop)
	wg.Wait()
}
