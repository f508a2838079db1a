package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// KlineHandler receives each closed candle from the stream.
type KlineHandler func(symbol string, candle Candle)

// StreamSubscriber maintains a websocket subscription to kline streams
// and invokes the handler whenever a candle closes.
type StreamSubscriber struct {
	wsBaseURL string
	symbols   []string
	interval  string
	handler   KlineHandler
	logger    zerolog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func NewStreamSubscriber(wsBaseURL string, symbols []string, interval string, handler KlineHandler, logger zerolog.Logger) *StreamSubscriber {
	return &StreamSubscriber{
		wsBaseURL: wsBaseURL,
		symbols:   symbols,
		interval:  interval,
		handler:   handler,
		logger:    logger.With().Str("component", "kline_stream").Logger(),
	}
}

// Run connects and processes stream events until the context is cancelled,
// reconnecting with backoff on failures.
func (s *StreamSubscriber) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		if err := s.connectAndRead(ctx); err != nil {
			s.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("Stream disconnected, reconnecting")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// Close terminates the current connection.
func (s *StreamSubscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.conn != nil {
		s.conn.Close()
	}
}

func (s *StreamSubscriber) connectAndRead(ctx context.Context) error {
	streams := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		streams = append(streams, fmt.Sprintf("%s@kline_%s", strings.ToLower(sym), s.interval))
	}
	endpoint := fmt.Sprintf("%s/stream?streams=%s", s.wsBaseURL, strings.Join(streams, "/"))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", endpoint, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return nil
	}
	s.conn = conn
	s.mu.Unlock()

	s.logger.Info().Int("streams", len(streams)).Str("interval", s.interval).Msg("Kline stream connected")

	// Close the connection when the context ends so ReadMessage unblocks
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read failed: %w", err)
		}
		s.handleMessage(message)
	}
}

type combinedStreamEvent struct {
	Stream string `json:"stream"`
	Data   struct {
		Symbol string `json:"s"`
		Kline  struct {
			OpenTime  int64  `json:"t"`
			CloseTime int64  `json:"T"`
			Open      string `json:"o"`
			High      string `json:"h"`
			Low       string `json:"l"`
			Close     string `json:"c"`
			Volume    string `json:"v"`
			Closed    bool   `json:"x"`
		} `json:"k"`
	} `json:"data"`
}

func (s *StreamSubscriber) handleMessage(message []byte) {
	var event combinedStreamEvent
	if err := json.Unmarshal(message, &event); err != nil {
		s.logger.Debug().Err(err).Msg("Ignoring unparseable stream message")
		return
	}

	k := event.Data.Kline
	if !k.Closed {
		return
	}

	candle, err := candleFromStrings(k.OpenTime, k.CloseTime, k.Open, k.High, k.Low, k.Close, k.Volume)
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", event.Data.Symbol).Msg("Dropping malformed stream kline")
		return
	}

	s.handler(event.Data.Symbol, candle)
}

func candleFromStrings(openTime, closeTime int64, open, high, low, close, volume string) (Candle, error) {
	vals := make([]float64, 5)
	for i, raw := range []string{open, high, low, close, volume} {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Candle{}, fmt.Errorf("invalid value %q: %w", raw, err)
		}
		vals[i] = v
	}
	return Candle{
		OpenTime:  openTime,
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
		CloseTime: closeTime,
	}, nil
}
