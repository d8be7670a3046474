package portfolio

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HoldingRepository handles holding rows in portfolio.db.
type HoldingRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHoldingRepository creates a holding repository.
func NewHoldingRepository(db *sql.DB, log zerolog.Logger) *HoldingRepository {
	return &HoldingRepository{
		db:  db,
		log: log.With().Str("repo", "holding").Logger(),
	}
}

// Upsert inserts a holding or, when the portfolio already holds the ticker,
// replaces quantity and cost basis. Returns the stored holding.
func (r *HoldingRepository) Upsert(h Holding) (Holding, error) {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	if h.PurchaseDate.IsZero() {
		h.PurchaseDate = time.Now().UTC()
	}

	_, err := r.db.Exec(
		`INSERT INTO holdings (id, portfolio_id, ticker, quantity, purchase_price, current_price, purchase_date, sector)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (portfolio_id, ticker) DO UPDATE SET
			quantity = excluded.quantity,
			purchase_price = excluded.purchase_price,
			sector = excluded.sector`,
		h.ID, h.PortfolioID, h.Ticker, h.Quantity, h.PurchasePrice,
		h.CurrentPrice, h.PurchaseDate.Unix(), h.Sector,
	)
	if err != nil {
		return Holding{}, fmt.Errorf("failed to upsert holding: %w", err)
	}

	return r.GetByTicker(h.PortfolioID, h.Ticker)
}

const holdingColumns = `id, portfolio_id, ticker, quantity, purchase_price, current_price, purchase_date, sector`

// GetByPortfolio returns all holdings of a portfolio ordered by ticker.
func (r *HoldingRepository) GetByPortfolio(portfolioID string) ([]Holding, error) {
	rows, err := r.db.Query(
		`SELECT `+holdingColumns+` FROM holdings WHERE portfolio_id = ? ORDER BY ticker`,
		portfolioID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []Holding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}
	return holdings, nil
}

// GetByTicker returns one holding, or ErrNotFound.
func (r *HoldingRepository) GetByTicker(portfolioID, ticker string) (Holding, error) {
	row := r.db.QueryRow(
		`SELECT `+holdingColumns+` FROM holdings WHERE portfolio_id = ? AND ticker = ?`,
		portfolioID, ticker,
	)
	h, err := scanHolding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Holding{}, fmt.Errorf("holding %s/%s: %w", portfolioID, ticker, ErrNotFound)
	}
	if err != nil {
		return Holding{}, fmt.Errorf("failed to get holding: %w", err)
	}
	return h, nil
}

// Tickers returns the distinct tickers held across all portfolios. Used by
// the price sync job to know what to fetch.
func (r *HoldingRepository) Tickers() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT ticker FROM holdings ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickers: %w", err)
	}
	return tickers, nil
}

// UpdateCurrentPrice sets the latest quote on every holding of a ticker,
// across portfolios. Returns the number of holdings touched.
func (r *HoldingRepository) UpdateCurrentPrice(ticker string, price float64) (int64, error) {
	res, err := r.db.Exec(`UPDATE holdings SET current_price = ? WHERE ticker = ?`, price, ticker)
	if err != nil {
		return 0, fmt.Errorf("failed to update price for %s: %w", ticker, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Delete removes one holding.
func (r *HoldingRepository) Delete(portfolioID, ticker string) error {
	res, err := r.db.Exec(`DELETE FROM holdings WHERE portfolio_id = ? AND ticker = ?`, portfolioID, ticker)
	if err != nil {
		return fmt.Errorf("failed to delete holding: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("holding %s/%s: %w", portfolioID, ticker, ErrNotFound)
	}
	return nil
}

func scanHolding(row rowScanner) (Holding, error) {
	var h Holding
	var purchaseDate int64
	var sector sql.NullString
	err := row.Scan(
		&h.ID, &h.PortfolioID, &h.Ticker, &h.Quantity, &h.PurchasePrice,
		&h.CurrentPrice, &purchaseDate, &sector,
	)
	if err != nil {
		return Holding{}, err
	}
	h.PurchaseDate = time.Unix(purchaseDate, 0).UTC()
	h.Sector = sector.String
	return h, nil
}
