package ingestion

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quantis-labs/tradecore/internal/marketdata"
	"github.com/quantis-labs/tradecore/internal/symbolindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	idx := symbolindex.New(64)
	store := marketdata.New(idx)
	return NewScheduler(store, nil)
}

func TestScheduler_StartStopIdempotent(t *testing.T) {
	s := newTestScheduler(t)
	s.SetUpdateInterval(5 * time.Millisecond)

	assert.True(t, s.Start())
	assert.True(t, s.Start()) // idempotent
	assert.True(t, s.IsRunning())

	assert.True(t, s.Stop())
	assert.True(t, s.Stop()) // idempotent
	assert.False(t, s.IsRunning())
}

func TestScheduler_SymbolListMutation(t *testing.T) {
	s := newTestScheduler(t)

	s.SetSymbols([]string{"AAPL"})
	s.AddSymbol("MSFT")
	assert.ElementsMatch(t, []string{"AAPL", "MSFT"}, s.GetSymbols())

	s.RemoveSymbol("AAPL")
	assert.Equal(t, []string{"MSFT"}, s.GetSymbols())
}

func TestScheduler_UpdateSymbolNowRespectsRateGate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Global Quote":{"02. open":"188.50","03. high":"190.00","04. low":"187.75","05. price":"189.25","06. volume":"1000"}}`))
	}))
	defer server.Close()

	s := newTestScheduler(t)
	s.SetBaseURL(server.URL)
	s.SetMinUpdateInterval(time.Hour) // effectively closed for the second call

	first := s.UpdateSymbolNow("AAPL")
	second := s.UpdateSymbolNow("AAPL")

	require.True(t, first)
	require.False(t, second)
}

func TestScheduler_MetricsStartAtZero(t *testing.T) {
	s := newTestScheduler(t)
	m := s.Metrics()
	assert.Zero(t, m.Sweeps)
	assert.Zero(t, m.SuccessfulUpdates)
	assert.Zero(t, m.FailedUpdates)
}
