package database

import (
	"context"
	"fmt"
	"time"

	"trading-signal-engine/internal/entry"
	"trading-signal-engine/internal/regime"
	"trading-signal-engine/internal/signal"
)

// StoredSignal is a persisted trade signal together with its evaluated
// outcome.
type StoredSignal struct {
	signal.TradeSignal
	Outcome     string     `json:"outcome"`
	HitPrice    *float64   `json:"hit_price,omitempty"`
	EvaluatedAt *time.Time `json:"evaluated_at,omitempty"`
}

// AccuracyStats summarizes evaluated signal outcomes.
type AccuracyStats struct {
	Total     int     `json:"total"`
	Evaluated int     `json:"evaluated"`
	Wins      int     `json:"wins"`
	Losses    int     `json:"losses"`
	TP1Hits   int     `json:"tp1_hits"`
	TP2Hits   int     `json:"tp2_hits"`
	TP3Hits   int     `json:"tp3_hits"`
	WinRate   float64 `json:"win_rate"`
}

// Repository provides signal persistence operations
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck verifies database connectivity
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// SaveSignal persists a freshly generated signal
func (r *Repository) SaveSignal(ctx context.Context, sig *signal.TradeSignal) error {
	query := `
		INSERT INTO signals (
			id, symbol, direction, entry_type, entry_price, reason,
			risk_reward, market_condition, confidence, position_size_usd,
			leverage, stop_loss, take_profit_1, take_profit_2, take_profit_3,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := r.db.Pool.Exec(ctx, query,
		sig.ID, sig.Symbol, string(sig.Direction), string(sig.EntryType),
		sig.EntryPrice, sig.Reason, sig.RiskReward, string(sig.Condition),
		sig.Confidence, sig.PositionSizeUSD, sig.Leverage, sig.StopLoss,
		sig.TakeProfit1, sig.TakeProfit2, sig.TakeProfit3, sig.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save signal %s: %w", sig.ID, err)
	}
	return nil
}

// GetRecentSignals returns the latest signals, newest first
func (r *Repository) GetRecentSignals(ctx context.Context, limit int) ([]*StoredSignal, error) {
	query := `
		SELECT id, symbol, direction, entry_type, entry_price, reason,
		       risk_reward, market_condition, confidence, position_size_usd,
		       leverage, stop_loss, take_profit_1, take_profit_2, take_profit_3,
		       outcome, hit_price, evaluated_at, created_at
		FROM signals
		ORDER BY created_at DESC
		LIMIT $1`

	return r.querySignals(ctx, query, limit)
}

// UnevaluatedSignals returns signals whose outcome is still open
func (r *Repository) UnevaluatedSignals(ctx context.Context) ([]*StoredSignal, error) {
	query := `
		SELECT id, symbol, direction, entry_type, entry_price, reason,
		       risk_reward, market_condition, confidence, position_size_usd,
		       leverage, stop_loss, take_profit_1, take_profit_2, take_profit_3,
		       outcome, hit_price, evaluated_at, created_at
		FROM signals
		WHERE outcome = 'open'
		ORDER BY created_at ASC`

	return r.querySignals(ctx, query)
}

// UpdateOutcome records an evaluated outcome for a signal
func (r *Repository) UpdateOutcome(ctx context.Context, signalID, outcome string, hitPrice float64) error {
	query := `
		UPDATE signals
		SET outcome = $2, hit_price = $3, evaluated_at = NOW()
		WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query, signalID, outcome, hitPrice)
	if err != nil {
		return fmt.Errorf("failed to update outcome for %s: %w", signalID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("signal %s not found", signalID)
	}
	return nil
}

// GetAccuracyStats aggregates outcome counts across evaluated signals
func (r *Repository) GetAccuracyStats(ctx context.Context) (*AccuracyStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE outcome != 'open'),
			COUNT(*) FILTER (WHERE outcome LIKE 'take_profit%'),
			COUNT(*) FILTER (WHERE outcome = 'stop_loss'),
			COUNT(*) FILTER (WHERE outcome = 'take_profit_1'),
			COUNT(*) FILTER (WHERE outcome = 'take_profit_2'),
			COUNT(*) FILTER (WHERE outcome = 'take_profit_3')
		FROM signals`

	stats := &AccuracyStats{}
	err := r.db.Pool.QueryRow(ctx, query).Scan(
		&stats.Total, &stats.Evaluated, &stats.Wins, &stats.Losses,
		&stats.TP1Hits, &stats.TP2Hits, &stats.TP3Hits,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch accuracy stats: %w", err)
	}

	if stats.Evaluated > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.Evaluated) * 100
	}
	return stats, nil
}

func (r *Repository) querySignals(ctx context.Context, query string, args ...interface{}) ([]*StoredSignal, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var signals []*StoredSignal
	for rows.Next() {
		s := &StoredSignal{}
		var direction, entryType, condition string
		err := rows.Scan(
			&s.ID, &s.Symbol, &direction, &entryType, &s.EntryPrice, &s.Reason,
			&s.RiskReward, &condition, &s.Confidence, &s.PositionSizeUSD,
			&s.Leverage, &s.StopLoss, &s.TakeProfit1, &s.TakeProfit2, &s.TakeProfit3,
			&s.Outcome, &s.HitPrice, &s.EvaluatedAt, &s.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal row: %w", err)
		}
		s.Direction = entry.Direction(direction)
		s.EntryType = entry.Type(entryType)
		s.Condition = regime.Condition(condition)
		signals = append(signals, s)
	}

	return signals, rows.Err()
}
