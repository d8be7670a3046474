// Package alphavantage is a client for the Alpha Vantage market data API.
// The free tier allows 25 requests per day, so every response is cached with
// a TTL and the client falls back to stale cache entries when the upstream
// is unreachable or the budget is spent. Failures are soft by design: price
// sync degrades, analytics keep running on stored history.
package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultBaseURL = "https://www.alphavantage.co/query"

	// Free tier daily request budget.
	dailyRequestLimit = 25

	// Cache TTLs per data class.
	dailySeriesTTL = 24 * time.Hour
	quoteTTL       = 15 * time.Minute
	overviewTTL    = 7 * 24 * time.Hour
)

// ErrRateLimitExceeded is returned when the daily request budget is spent.
type ErrRateLimitExceeded struct {
	Limit int
}

func (e ErrRateLimitExceeded) Error() string {
	return fmt.Sprintf("alpha vantage daily rate limit of %d requests exceeded", e.Limit)
}

// DailyPrice is one OHLCV bar from TIME_SERIES_DAILY.
type DailyPrice struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// GlobalQuote is the latest quote for a symbol.
type GlobalQuote struct {
	Symbol        string    `json:"symbol"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Price         float64   `json:"price"`
	Volume        int64     `json:"volume"`
	LatestDay     time.Time `json:"latest_trading_day"`
	PreviousClose float64   `json:"previous_close"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
}

// CompanyOverview is the fundamentals record from the OVERVIEW endpoint.
// Ratio fields are pointers; Alpha Vantage reports "None" for missing data.
type CompanyOverview struct {
	Symbol               string   `json:"symbol"`
	AssetType            string   `json:"asset_type"`
	Name                 string   `json:"name"`
	Description          string   `json:"description"`
	Exchange             string   `json:"exchange"`
	Currency             string   `json:"currency"`
	Country              string   `json:"country"`
	Sector               string   `json:"sector"`
	Industry             string   `json:"industry"`
	MarketCapitalization int64    `json:"market_capitalization"`
	PERatio              *float64 `json:"pe_ratio,omitempty"`
	EPS                  *float64 `json:"eps,omitempty"`
	DividendYield        *float64 `json:"dividend_yield,omitempty"`
	Beta                 *float64 `json:"beta,omitempty"`
	FiftyTwoWeekHigh     *float64 `json:"fifty_two_week_high,omitempty"`
	FiftyTwoWeekLow      *float64 `json:"fifty_two_week_low,omitempty"`
}

type cacheEntry struct {
	data      interface{}
	expiresAt time.Time
}

// Client talks to Alpha Vantage with rate limiting and response caching.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger

	mu           sync.Mutex
	requestCount int
	cache        map[string]cacheEntry
}

// NewClient creates an Alpha Vantage client.
func NewClient(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.With().Str("client", "alphavantage").Logger(),
		cache:      make(map[string]cacheEntry),
	}
}

// GetRemainingRequests returns how many requests are left in today's budget.
func (c *Client) GetRemainingRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return dailyRequestLimit - c.requestCount
}

// ResetDailyCounter resets the request budget. Called by the scheduler at
// midnight UTC.
func (c *Client) ResetDailyCounter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestCount = 0
	c.log.Info().Msg("Alpha Vantage daily request counter reset")
}

// checkRateLimit consumes one request from the budget, or errors.
func (c *Client) checkRateLimit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.requestCount >= dailyRequestLimit {
		return ErrRateLimitExceeded{Limit: dailyRequestLimit}
	}
	c.requestCount++
	return nil
}

// GetDailyTimeSeries fetches daily OHLCV bars for a symbol, newest first.
// full requests the complete 20-year history instead of the last 100 bars.
func (c *Client) GetDailyTimeSeries(ctx context.Context, symbol string, full bool) ([]DailyPrice, error) {
	outputSize := "compact"
	if full {
		outputSize = "full"
	}
	params := map[string]string{"symbol": symbol, "outputsize": outputSize}
	key := buildCacheKey("TIME_SERIES_DAILY", params)

	if cached, ok := c.getFromCache(key); ok {
		return cached.([]DailyPrice), nil
	}

	body, err := c.fetch(ctx, "TIME_SERIES_DAILY", params)
	if err != nil {
		if stale, ok := c.getFromCacheStale(key); ok {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Fetch failed, serving stale daily series")
			return stale.([]DailyPrice), nil
		}
		return nil, err
	}

	prices, err := parseDailyTimeSeries(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse daily series for %s: %w", symbol, err)
	}

	c.setCache(key, prices, dailySeriesTTL)
	return prices, nil
}

// GetGlobalQuote fetches the latest quote for a symbol.
func (c *Client) GetGlobalQuote(ctx context.Context, symbol string) (*GlobalQuote, error) {
	params := map[string]string{"symbol": symbol}
	key := buildCacheKey("GLOBAL_QUOTE", params)

	if cached, ok := c.getFromCache(key); ok {
		return cached.(*GlobalQuote), nil
	}

	body, err := c.fetch(ctx, "GLOBAL_QUOTE", params)
	if err != nil {
		if stale, ok := c.getFromCacheStale(key); ok {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Fetch failed, serving stale quote")
			return stale.(*GlobalQuote), nil
		}
		return nil, err
	}

	quote, err := parseGlobalQuote(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse quote for %s: %w", symbol, err)
	}

	c.setCache(key, quote, quoteTTL)
	return quote, nil
}

// GetCompanyOverview fetches fundamentals (name, sector, ratios) for a symbol.
func (c *Client) GetCompanyOverview(ctx context.Context, symbol string) (*CompanyOverview, error) {
	params := map[string]string{"symbol": symbol}
	key := buildCacheKey("OVERVIEW", params)

	if cached, ok := c.getFromCache(key); ok {
		return cached.(*CompanyOverview), nil
	}

	body, err := c.fetch(ctx, "OVERVIEW", params)
	if err != nil {
		if stale, ok := c.getFromCacheStale(key); ok {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Fetch failed, serving stale overview")
			return stale.(*CompanyOverview), nil
		}
		return nil, err
	}

	overview, err := parseCompanyOverview(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse overview for %s: %w", symbol, err)
	}

	c.setCache(key, overview, overviewTTL)
	return overview, nil
}

// fetch performs one rate-limited HTTP request.
func (c *Client) fetch(ctx context.Context, function string, params map[string]string) ([]byte, error) {
	if err := c.checkRateLimit(); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("function", function)
	q.Set("apikey", c.apiKey)
	for k, v := range params {
		q.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from alpha vantage", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// API errors come back as 200 with a note/error field
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err == nil {
		for _, field := range []string{"Error Message", "Note", "Information"} {
			if msg, ok := probe[field]; ok {
				return nil, fmt.Errorf("alpha vantage error: %s", strings.Trim(string(msg), `"`))
			}
		}
	}

	return body, nil
}

// getFromCache returns a live cache entry.
func (c *Client) getFromCache(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.data, true
}

// getFromCacheStale returns a cache entry even past its TTL. Used as a
// fallback when the upstream fails.
func (c *Client) getFromCacheStale(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	return entry.data, true
}

func (c *Client) setCache(key string, data interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = cacheEntry{data: data, expiresAt: time.Now().Add(ttl)}
}

// ClearCache drops all cached responses.
func (c *Client) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]cacheEntry)
}

// buildCacheKey produces a stable cache key from function name and params.
// The API key is never part of the cache key.
func buildCacheKey(function string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "apikey" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(function)
	for _, k := range keys {
		sb.WriteString("|")
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(params[k])
	}
	return sb.String()
}

// parseFloat64 parses Alpha Vantage numeric strings, treating the API's
// various null spellings and trailing percent signs gracefully.
func parseFloat64(s string) float64 {
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" || s == "None" || s == "null" || s == "-" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseFloat64Ptr is parseFloat64 with nil for missing values.
func parseFloat64Ptr(s string) *float64 {
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" || s == "None" || s == "null" || s == "-" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseInt64 parses integer strings, accepting scientific notation and
// truncating decimals.
func parseInt64(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "None" || s == "null" || s == "-" {
		return 0
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}

// parseDate parses a YYYY-MM-DD date, zero time on failure.
func parseDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// parseDateTime parses datetime or date strings, zero time on failure.
func parseDateTime(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

type dailyBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// parseDailyTimeSeries parses a TIME_SERIES_DAILY response, newest first.
func parseDailyTimeSeries(body []byte) ([]DailyPrice, error) {
	var payload struct {
		Series map[string]dailyBar `json:"Time Series (Daily)"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("invalid daily series payload: %w", err)
	}
	if len(payload.Series) == 0 {
		return nil, fmt.Errorf("daily series payload contains no bars")
	}

	prices := make([]DailyPrice, 0, len(payload.Series))
	for date, bar := range payload.Series {
		prices = append(prices, DailyPrice{
			Date:   parseDate(date),
			Open:   parseFloat64(bar.Open),
			High:   parseFloat64(bar.High),
			Low:    parseFloat64(bar.Low),
			Close:  parseFloat64(bar.Close),
			Volume: parseInt64(bar.Volume),
		})
	}

	sort.Slice(prices, func(i, j int) bool {
		return prices[i].Date.After(prices[j].Date)
	})
	return prices, nil
}

// parseGlobalQuote parses a GLOBAL_QUOTE response.
func parseGlobalQuote(body []byte) (*GlobalQuote, error) {
	var payload struct {
		Quote map[string]string `json:"Global Quote"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("invalid quote payload: %w", err)
	}
	if len(payload.Quote) == 0 {
		return nil, fmt.Errorf("quote payload is empty")
	}

	q := payload.Quote
	return &GlobalQuote{
		Symbol:        q["01. symbol"],
		Open:          parseFloat64(q["02. open"]),
		High:          parseFloat64(q["03. high"]),
		Low:           parseFloat64(q["04. low"]),
		Price:         parseFloat64(q["05. price"]),
		Volume:        parseInt64(q["06. volume"]),
		LatestDay:     parseDate(q["07. latest trading day"]),
		PreviousClose: parseFloat64(q["08. previous close"]),
		Change:        parseFloat64(q["09. change"]),
		ChangePercent: parseFloat64(q["10. change percent"]),
	}, nil
}

// parseCompanyOverview parses an OVERVIEW response.
func parseCompanyOverview(body []byte) (*CompanyOverview, error) {
	var payload struct {
		Symbol               string `json:"Symbol"`
		AssetType            string `json:"AssetType"`
		Name                 string `json:"Name"`
		Description          string `json:"Description"`
		Exchange             string `json:"Exchange"`
		Currency             string `json:"Currency"`
		Country              string `json:"Country"`
		Sector               string `json:"Sector"`
		Industry             string `json:"Industry"`
		MarketCapitalization string `json:"MarketCapitalization"`
		PERatio              string `json:"PERatio"`
		EPS                  string `json:"EPS"`
		DividendYield        string `json:"DividendYield"`
		Beta                 string `json:"Beta"`
		FiftyTwoWeekHigh     string `json:"52WeekHigh"`
		FiftyTwoWeekLow      string `json:"52WeekLow"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("invalid overview payload: %w", err)
	}
	if payload.Symbol == "" {
		return nil, fmt.Errorf("overview payload has no symbol")
	}

	return &CompanyOverview{
		Symbol:               payload.Symbol,
		AssetType:            payload.AssetType,
		Name:                 payload.Name,
		Description:          payload.Description,
		Exchange:             payload.Exchange,
		Currency:             payload.Currency,
		Country:              payload.Country,
		Sector:               payload.Sector,
		Industry:             payload.Industry,
		MarketCapitalization: parseInt64(payload.MarketCapitalization),
		PERatio:              parseFloat64Ptr(payload.PERatio),
		EPS:                  parseFloat64Ptr(payload.EPS),
		DividendYield:        parseFloat64Ptr(payload.DividendYield),
		Beta:                 parseFloat64Ptr(payload.Beta),
		FiftyTwoWeekHigh:     parseFloat64Ptr(payload.FiftyTwoWeekHigh),
		FiftyTwoWeekLow:      parseFloat64Ptr(payload.FiftyTwoWeekLow),
	}, nil
}
