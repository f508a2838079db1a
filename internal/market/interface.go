package market

import "context"

// CandleSource provides historical candles and current prices for a symbol.
// Implemented by the REST client and the mock client.
type CandleSource interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
}
