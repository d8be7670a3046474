package portfolio

import (
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

// setupPortfolioDB opens an in-memory database with the real portfolio
// schema applied. Single connection so every statement sees the same
// in-memory database.
func setupPortfolioDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)

	schema, err := os.ReadFile("../../database/schemas/portfolio_schema.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	return db
}

func TestPortfolioRepositoryCreateAndGet(t *testing.T) {
	db := setupPortfolioDB(t)
	repo := NewPortfolioRepository(db, zerolog.Nop())

	created, err := repo.Create("Sustainable Growth")
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := repo.GetByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sustainable Growth", got.Name)
	assert.Equal(t, 0.0, got.TotalValue)
	assert.Nil(t, got.ESGScoreOverall)
}

func TestPortfolioRepositoryGetMissing(t *testing.T) {
	db := setupPortfolioDB(t)
	repo := NewPortfolioRepository(db, zerolog.Nop())

	_, err := repo.GetByID("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPortfolioRepositoryUpdateESGSummary(t *testing.T) {
	db := setupPortfolioDB(t)
	repo := NewPortfolioRepository(db, zerolog.Nop())

	p, err := repo.Create("Main")
	require.NoError(t, err)

	err = repo.UpdateESGSummary(p.ID, ESGSummary{
		Overall:         71.5,
		Environmental:   68,
		Social:          74,
		Governance:      72.5,
		Rating:          "AA",
		CarbonIntensity: 42.1,
		CarbonFootprint: 10.5,
	})
	require.NoError(t, err)

	got, err := repo.GetByID(p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ESGScoreOverall)
	assert.Equal(t, 71.5, *got.ESGScoreOverall)
	require.NotNil(t, got.ESGRating)
	assert.Equal(t, "AA", *got.ESGRating)

	assert.ErrorIs(t, repo.UpdateESGSummary("missing", ESGSummary{}), ErrNotFound)
}

func TestPortfolioRepositoryList(t *testing.T) {
	db := setupPortfolioDB(t)
	repo := NewPortfolioRepository(db, zerolog.Nop())

	_, err := repo.Create("First")
	require.NoError(t, err)
	_, err = repo.Create("Second")
	require.NoError(t, err)

	all, err := repo.List()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestHoldingRepositoryUpsert(t *testing.T) {
	db := setupPortfolioDB(t)
	portfolios := NewPortfolioRepository(db, zerolog.Nop())
	holdings := NewHoldingRepository(db, zerolog.Nop())

	p, err := portfolios.Create("Main")
	require.NoError(t, err)

	h, err := holdings.Upsert(Holding{
		PortfolioID:   p.ID,
		Ticker:        "AAPL",
		Quantity:      10,
		PurchasePrice: 150,
		Sector:        "Technology",
		PurchaseDate:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, h.ID)
	assert.Nil(t, h.CurrentPrice)

	// Upserting the same ticker replaces quantity and cost basis
	h2, err := holdings.Upsert(Holding{
		PortfolioID:   p.ID,
		Ticker:        "AAPL",
		Quantity:      15,
		PurchasePrice: 155,
		Sector:        "Technology",
	})
	require.NoError(t, err)
	assert.Equal(t, h.ID, h2.ID, "conflict keeps the original row")
	assert.Equal(t, 15.0, h2.Quantity)
	assert.Equal(t, 155.0, h2.PurchasePrice)

	all, err := holdings.GetByPortfolio(p.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestHoldingRepositoryUpdateCurrentPrice(t *testing.T) {
	db := setupPortfolioDB(t)
	portfolios := NewPortfolioRepository(db, zerolog.Nop())
	holdings := NewHoldingRepository(db, zerolog.Nop())

	p1, err := portfolios.Create("One")
	require.NoError(t, err)
	p2, err := portfolios.Create("Two")
	require.NoError(t, err)

	for _, pid := range []string{p1.ID, p2.ID} {
		_, err = holdings.Upsert(Holding{PortfolioID: pid, Ticker: "MSFT", Quantity: 5, PurchasePrice: 300})
		require.NoError(t, err)
	}

	n, err := holdings.UpdateCurrentPrice("MSFT", 410.5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "price update touches the ticker in every portfolio")

	h, err := holdings.GetByTicker(p1.ID, "MSFT")
	require.NoError(t, err)
	require.NotNil(t, h.CurrentPrice)
	assert.Equal(t, 410.5, *h.CurrentPrice)
	assert.Equal(t, 410.5, h.PriceOrCost())
	assert.InDelta(t, 5*410.5, h.MarketValue(), 1e-9)
}

func TestHoldingRepositoryTickers(t *testing.T) {
	db := setupPortfolioDB(t)
	portfolios := NewPortfolioRepository(db, zerolog.Nop())
	holdings := NewHoldingRepository(db, zerolog.Nop())

	p, err := portfolios.Create("Main")
	require.NoError(t, err)
	for _, ticker := range []string{"MSFT", "AAPL", "MSFT"} {
		_, err = holdings.Upsert(Holding{PortfolioID: p.ID, Ticker: ticker, Quantity: 1, PurchasePrice: 100})
		require.NoError(t, err)
	}

	tickers, err := holdings.Tickers()
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, tickers)
}

func TestHoldingCascadeDelete(t *testing.T) {
	db := setupPortfolioDB(t)
	portfolios := NewPortfolioRepository(db, zerolog.Nop())
	holdings := NewHoldingRepository(db, zerolog.Nop())

	p, err := portfolios.Create("Doomed")
	require.NoError(t, err)
	_, err = holdings.Upsert(Holding{PortfolioID: p.ID, Ticker: "XOM", Quantity: 2, PurchasePrice: 90})
	require.NoError(t, err)

	require.NoError(t, portfolios.Delete(p.ID))

	remaining, err := holdings.GetByPortfolio(p.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestCompanyESGRepositoryUpsert(t *testing.T) {
	db := setupPortfolioDB(t)
	repo := NewCompanyESGRepository(db, zerolog.Nop())

	score := 72.4
	rating := "AA"
	c := CompanyESG{
		Ticker:          "AAPL",
		CompanyName:     "Apple Inc.",
		Sector:          "Technology",
		ESGScore:        &score,
		ESGRating:       &rating,
		Controversies:   1,
		RawMetrics:      []byte(`{"carbon_intensity":50}`),
		CarbonEmissions: 12.3,
	}
	require.NoError(t, repo.Upsert(c))

	got, err := repo.GetByTicker("AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", got.CompanyName)
	require.NotNil(t, got.ESGScore)
	assert.Equal(t, 72.4, *got.ESGScore)
	assert.JSONEq(t, `{"carbon_intensity":50}`, string(got.RawMetrics))

	// Second upsert replaces
	newScore := 80.0
	c.ESGScore = &newScore
	require.NoError(t, repo.Upsert(c))

	got, err = repo.GetByTicker("AAPL")
	require.NoError(t, err)
	assert.Equal(t, 80.0, *got.ESGScore)

	all, err := repo.GetAll()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = repo.GetByTicker("TSLA")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSnapshotRepositoryRisk(t *testing.T) {
	db := setupPortfolioDB(t)
	portfolios := NewPortfolioRepository(db, zerolog.Nop())
	snapshots := NewSnapshotRepository(db, zerolog.Nop())

	p, err := portfolios.Create("Main")
	require.NoError(t, err)

	_, err = snapshots.LatestRisk(p.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	beta := 1.2
	_, err = snapshots.SaveRisk(RiskSnapshot{
		PortfolioID:    p.ID,
		CalculatedAt:   time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC),
		VaR95Daily:     0.021,
		VaR95Monthly:   0.0962,
		SharpeRatio:    1.4,
		Beta:           &beta,
		StressTests:    map[string]float64{"market_crash_20pct": -20000},
		PortfolioValue: 100000,
	})
	require.NoError(t, err)

	second, err := snapshots.SaveRisk(RiskSnapshot{
		PortfolioID:    p.ID,
		CalculatedAt:   time.Date(2025, 8, 2, 12, 0, 0, 0, time.UTC),
		VaR95Daily:     0.025,
		PortfolioValue: 101000,
	})
	require.NoError(t, err)

	latest, err := snapshots.LatestRisk(p.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, 0.025, latest.VaR95Daily)
	assert.Nil(t, latest.Beta)
}

func TestSnapshotRepositoryRiskRoundTrip(t *testing.T) {
	db := setupPortfolioDB(t)
	portfolios := NewPortfolioRepository(db, zerolog.Nop())
	snapshots := NewSnapshotRepository(db, zerolog.Nop())

	p, err := portfolios.Create("Main")
	require.NoError(t, err)

	saved, err := snapshots.SaveRisk(RiskSnapshot{
		PortfolioID: p.ID,
		StressTests: map[string]float64{"flash_crash_10pct_1day": -10000, "black_swan_3sigma": -5900.5},
	})
	require.NoError(t, err)

	got, err := snapshots.LatestRisk(p.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, -10000.0, got.StressTests["flash_crash_10pct_1day"])
	assert.Equal(t, -5900.5, got.StressTests["black_swan_3sigma"])
}

func TestSnapshotRepositoryESG(t *testing.T) {
	db := setupPortfolioDB(t)
	portfolios := NewPortfolioRepository(db, zerolog.Nop())
	snapshots := NewSnapshotRepository(db, zerolog.Nop())

	p, err := portfolios.Create("Main")
	require.NoError(t, err)

	_, err = snapshots.LatestESG(p.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	saved, err := snapshots.SaveESG(ESGSnapshot{
		PortfolioID:        p.ID,
		PortfolioESGScore:  71.2,
		PortfolioRating:    "AA",
		EnvironmentalScore: 68,
		SocialScore:        73,
		GovernanceScore:    72.6,
		CarbonIntensity:    44,
		HoldingsCount:      5,
	})
	require.NoError(t, err)

	got, err := snapshots.LatestESG(p.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, 71.2, got.PortfolioESGScore)
	assert.Equal(t, "AA", got.PortfolioRating)
	assert.Equal(t, 5, got.HoldingsCount)
}
