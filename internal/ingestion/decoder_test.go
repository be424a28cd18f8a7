package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario 6 from spec.md §8.
func TestQuoteDecoder_ValidEnvelope(t *testing.T) {
	d := NewQuoteDecoder()
	body := []byte(`{"Global Quote":{"02. open":"1","03. high":"2","04. low":"0.5","05. price":"1.5","06. volume":"100"}}`)

	quote := d.Decode("AAPL", body)

	require.True(t, quote.Valid)
	assert.Equal(t, 0.5, quote.BestBid)
	assert.Equal(t, 2.0, quote.BestAsk)
	assert.Equal(t, 1.5, quote.LastPrice)
	assert.Equal(t, int64(100), quote.Volume)
}

func TestQuoteDecoder_NonPositivePriceInvalidates(t *testing.T) {
	d := NewQuoteDecoder()
	body := []byte(`{"Global Quote":{"02. open":"1","03. high":"2","04. low":"0.5","05. price":"0","06. volume":"100"}}`)

	quote := d.Decode("AAPL", body)

	assert.False(t, quote.Valid)
}

func TestQuoteDecoder_NegativeVolumeInvalidates(t *testing.T) {
	d := NewQuoteDecoder()
	body := []byte(`{"Global Quote":{"02. open":"1","03. high":"2","04. low":"0.5","05. price":"1.5","06. volume":"-1"}}`)

	quote := d.Decode("AAPL", body)

	assert.False(t, quote.Valid)
}

func TestQuoteDecoder_ToleratesBareNumericValues(t *testing.T) {
	d := NewQuoteDecoder()
	body := []byte(`{"Global Quote":{"02. open":1,"03. high":2,"04. low":0.5,"05. price":1.5,"06. volume":100}}`)

	quote := d.Decode("AAPL", body)

	require.True(t, quote.Valid)
	assert.Equal(t, 1.5, quote.LastPrice)
}

func TestQuoteDecoder_MissingEnvelopeInvalidates(t *testing.T) {
	d := NewQuoteDecoder()
	quote := d.Decode("AAPL", []byte(`{"Note":"rate limited"}`))
	assert.False(t, quote.Valid)
}

func TestQuoteDecoder_MalformedJSONInvalidates(t *testing.T) {
	d := NewQuoteDecoder()
	quote := d.Decode("AAPL", []byte(`not json`))
	assert.False(t, quote.Valid)
}

func TestBuildQuoteURL(t *testing.T) {
	url := BuildQuoteURL(DefaultAlphaVantageBaseURL, "AAPL", "demo")
	assert.Contains(t, url, DefaultAlphaVantageBaseURL)
	assert.Contains(t, url, "function=GLOBAL_QUOTE")
	assert.Contains(t, url, "symbol=AAPL")
	assert.Contains(t, url, "apikey=demo")
}

func TestDefaultSymbols(t *testing.T) {
	assert.Equal(t, []string{"AAPL", "GOOGL", "MSFT", "TSLA", "AMZN", "META", "NVDA", "NFLX"}, DefaultSymbols())
}
