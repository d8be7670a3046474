// Package marketdata stores daily price history and keeps it in sync with
// the upstream market data provider.
package marketdata

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrNoHistory is returned when a ticker has no stored price bars.
var ErrNoHistory = errors.New("no price history")

// DailyPrice is one stored OHLCV bar.
type DailyPrice struct {
	Ticker string    `json:"ticker"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// PriceRepository handles daily_prices rows in history.db.
type PriceRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPriceRepository creates a price repository.
func NewPriceRepository(db *sql.DB, log zerolog.Logger) *PriceRepository {
	return &PriceRepository{
		db:  db,
		log: log.With().Str("repo", "prices").Logger(),
	}
}

// UpsertPrices stores a batch of bars for a ticker, replacing bars that
// already exist for the same date. The whole batch is one transaction.
func (r *PriceRepository) UpsertPrices(ticker string, prices []DailyPrice) error {
	if len(prices) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO daily_prices (ticker, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ticker, date) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range prices {
		if _, err := stmt.Exec(ticker, p.Date.Unix(), p.Open, p.High, p.Low, p.Close, p.Volume); err != nil {
			return fmt.Errorf("failed to upsert bar for %s at %s: %w", ticker, p.Date.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit price batch: %w", err)
	}

	r.log.Debug().Str("ticker", ticker).Int("bars", len(prices)).Msg("Stored price batch")
	return nil
}

// GetDailyPrices returns up to limit bars for a ticker, newest first.
// limit <= 0 returns everything.
func (r *PriceRepository) GetDailyPrices(ticker string, limit int) ([]DailyPrice, error) {
	query := `SELECT ticker, date, open, high, low, close, volume
		FROM daily_prices WHERE ticker = ? ORDER BY date DESC`
	args := []interface{}{ticker}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices for %s: %w", ticker, err)
	}
	defer rows.Close()

	var prices []DailyPrice
	for rows.Next() {
		var p DailyPrice
		var date int64
		if err := rows.Scan(&p.Ticker, &date, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		p.Date = time.Unix(date, 0).UTC()
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prices: %w", err)
	}
	return prices, nil
}

// Closes returns up to limit closing prices for a ticker in chronological
// order, oldest first. This is the input shape the return series wants.
func (r *PriceRepository) Closes(ticker string, limit int) ([]float64, error) {
	prices, err := r.GetDailyPrices(ticker, limit)
	if err != nil {
		return nil, err
	}

	closes := make([]float64, len(prices))
	for i, p := range prices {
		closes[len(prices)-1-i] = p.Close
	}
	return closes, nil
}

// LatestClose returns the most recent closing price for a ticker, or
// ErrNoHistory.
func (r *PriceRepository) LatestClose(ticker string) (float64, error) {
	row := r.db.QueryRow(
		`SELECT close FROM daily_prices WHERE ticker = ? ORDER BY date DESC LIMIT 1`,
		ticker,
	)

	var close float64
	err := row.Scan(&close)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("latest close for %s: %w", ticker, ErrNoHistory)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get latest close: %w", err)
	}
	return close, nil
}

// CountBars returns how many bars are stored for a ticker.
func (r *PriceRepository) CountBars(ticker string) (int, error) {
	row := r.db.QueryRow(`SELECT COUNT(*) FROM daily_prices WHERE ticker = ?`, ticker)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count bars for %s: %w", ticker, err)
	}
	return n, nil
}
