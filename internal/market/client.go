package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Client fetches market data from the exchange REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewClient(baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger.With().Str("component", "market_client").Logger(),
	}
}

// GetKlines fetches up to limit closed candles for a symbol/interval.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "/api/v3/klines", params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch klines for %s: %w", symbol, err)
	}

	// The exchange returns klines as arrays of mixed types:
	// [openTime, open, high, low, close, volume, closeTime, ...]
	var raw [][]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse klines response: %w", err)
	}

	candles := make([]Candle, 0, len(raw))
	for _, k := range raw {
		if len(k) < 7 {
			continue
		}
		candle, err := parseKline(k)
		if err != nil {
			c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Skipping malformed kline")
			continue
		}
		candles = append(candles, candle)
	}

	c.logger.Debug().
		Str("symbol", symbol).
		Str("interval", interval).
		Int("count", len(candles)).
		Msg("Fetched klines")

	return candles, nil
}

// GetCurrentPrice fetches the latest ticker price for a symbol.
func (c *Client) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.get(ctx, "/api/v3/ticker/price", params)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch price for %s: %w", symbol, err)
	}

	var ticker struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.Unmarshal(body, &ticker); err != nil {
		return 0, fmt.Errorf("failed to parse ticker response: %w", err)
	}

	price, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q for %s: %w", ticker.Price, symbol, err)
	}

	return price, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

func parseKline(k []interface{}) (Candle, error) {
	openTime, ok := k[0].(float64)
	if !ok {
		return Candle{}, fmt.Errorf("invalid open time type %T", k[0])
	}
	closeTime, ok := k[6].(float64)
	if !ok {
		return Candle{}, fmt.Errorf("invalid close time type %T", k[6])
	}

	fields := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		s, ok := k[i].(string)
		if !ok {
			return Candle{}, fmt.Errorf("invalid kline field %d type %T", i, k[i])
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Candle{}, fmt.Errorf("invalid kline field %d value %q: %w", i, s, err)
		}
		fields[i-1] = v
	}

	return Candle{
		OpenTime:  int64(openTime),
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
		CloseTime: int64(closeTime),
	}, nil
}
