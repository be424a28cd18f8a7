package ingestion

import (
	"fmt"
	"net/url"
)

// DefaultAlphaVantageBaseURL is the vendor host used unless a
// Scheduler is given a different one via SetBaseURL — e.g. a test
// pointing at an httptest.Server.
const DefaultAlphaVantageBaseURL = "https://www.alphavantage.co"

// DefaultSymbols mirrors original_source's CppMarketDataService
// constructor, which seeds this exact set of tracked symbols
// (SPEC_FULL.md §4.10).
func DefaultSymbols() []string {
	return []string{"AAPL", "GOOGL", "MSFT", "TSLA", "AMZN", "META", "NVDA", "NFLX"}
}

// BuildQuoteURL constructs the Alpha Vantage GLOBAL_QUOTE request URL
// for symbol against baseURL, mirroring original_source's
// FastHttpClient::buildAlphaVantageUrl (SPEC_FULL.md §4.10). baseURL is
// injectable so a test can point it at an httptest.Server instead of
// the live vendor host.
func BuildQuoteURL(baseURL, symbol, apiKey string) string {
	return fmt.Sprintf("%s/query?function=GLOBAL_QUOTE&symbol=%s&apikey=%s",
		baseURL, url.QueryEscape(symbol), url.QueryEscape(apiKey))
}
