package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"rate_server/internal/domain"

	"github.com/shopspring/decimal"
)

// defaultUserAgent is a browser-like user agent string to avoid bot detection.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// rateAPIResponse is the quote service payload:
// {"rates": {"EUR": 0.92, ...}}
type rateAPIResponse struct {
	Rates map[string]decimal.Decimal `json:"rates"`
}

// Client fetches exchange rates from the external quote API, one
// (date, symbol) pair per call. Batching, if any, is the caller's concern.
type Client struct {
	baseURL      string
	baseCurrency string
	httpClient   *http.Client
}

// NewClient creates a rate API client. baseURL is the service root
// (e.g. "http://127.0.0.1:5000"); baseCurrency is the quote base, USD in
// the stock deployment.
func NewClient(baseURL, baseCurrency string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:      baseURL,
		baseCurrency: baseCurrency,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves the rate for one symbol on one closing date. Network
// failure, a non-200 status, a malformed body and a symbol missing from the
// upstream data all surface as a single *domain.ProviderError; the caller
// decides what to do with the failed symbol.
func (c *Client) Fetch(ctx context.Context, date time.Time, symbol string) (domain.RateQuote, error) {
	reqURL := fmt.Sprintf("%s/api/%s?base=%s&symbols=%s",
		c.baseURL, date.Format(domain.DateLayout), url.QueryEscape(c.baseCurrency), url.QueryEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return domain.RateQuote{}, domain.NewProviderError(symbol, err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.RateQuote{}, domain.NewProviderError(symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.RateQuote{}, domain.NewProviderError(symbol, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.RateQuote{}, domain.NewProviderError(symbol, err)
	}

	var data rateAPIResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return domain.RateQuote{}, domain.NewProviderError(symbol, err)
	}

	rate, ok := data.Rates[symbol]
	if !ok {
		return domain.RateQuote{}, domain.NewProviderError(symbol, fmt.Errorf("symbol not present in upstream data"))
	}

	return domain.RateQuote{Date: date, Symbol: symbol, Rate: rate}, nil
}
