// Package signals classifies portfolio holdings into BUY / HOLD / SELL
// recommendations by blending ESG quality with price momentum against cost
// basis. Classification is deterministic and order-independent; rows come
// back sorted by composite score, best first.
package signals

import (
	"sort"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"
)

// Signal is a trade recommendation bucket.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalHold Signal = "HOLD"
	SignalSell Signal = "SELL"

	// Composite thresholds, inclusive lower bounds: ties resolve upward.
	buyThreshold  = 64.0
	holdThreshold = 60.0

	// neutralESG is assumed for tickers without an ESG score.
	neutralESG = 50.0

	rsiPeriod = 14
	smaPeriod = 20
)

// Holding is one position entering signal computation. CurrentPrice of 0
// means no market quote yet; momentum then reads as flat against cost basis.
type Holding struct {
	Ticker        string  `json:"ticker"`
	Quantity      float64 `json:"quantity"`
	PurchasePrice float64 `json:"purchase_price"`
	CurrentPrice  float64 `json:"current_price"`
	Sector        string  `json:"sector"`
}

// Row is the classification output for one holding. RSI and SMA are optional
// trend context attached only when price history is available.
type Row struct {
	Ticker         string  `json:"ticker"`
	Sector         string  `json:"sector"`
	ESGScore       float64 `json:"esg_score"`
	MomentumPct    float64 `json:"momentum_pct"`
	CompositeScore float64 `json:"composite_score"`
	Signal         Signal  `json:"signal"`

	RSI14 *float64 `json:"rsi_14,omitempty"`
	SMA20 *float64 `json:"sma_20,omitempty"`
}

// Aggregator computes signal rows.
type Aggregator struct {
	log zerolog.Logger
}

// NewAggregator creates a signal aggregator.
func NewAggregator(log zerolog.Logger) *Aggregator {
	return &Aggregator{
		log: log.With().Str("component", "signal_aggregator").Logger(),
	}
}

// Momentum calculates the percentage gain over cost basis. A missing current
// price (zero) falls back to the purchase price, yielding zero momentum.
func Momentum(purchasePrice, currentPrice float64) float64 {
	if currentPrice == 0 {
		currentPrice = purchasePrice
	}
	return (currentPrice - purchasePrice) / purchasePrice * 100
}

// Composite blends ESG (40%) and momentum (40%) with a fixed position
// stability baseline of 20. Momentum maps [-20%, +20%] onto [0, 1], clamped.
func Composite(esgScore, momentumPct float64) float64 {
	momentumFactor := (momentumPct + 20) / 40
	if momentumFactor < 0 {
		momentumFactor = 0
	}
	if momentumFactor > 1 {
		momentumFactor = 1
	}
	return esgScore/100*40 + momentumFactor*40 + 20
}

// Classify maps a composite score to its signal bucket. Boundaries are
// inclusive: exactly 64 is a BUY, exactly 60 is a HOLD.
func Classify(composite float64) Signal {
	switch {
	case composite >= buyThreshold:
		return SignalBuy
	case composite >= holdThreshold:
		return SignalHold
	default:
		return SignalSell
	}
}

// Compute builds signal rows for a set of holdings. esgScores maps ticker to
// the company's adjusted ESG score; tickers without one score as a neutral 50.
// Rows are sorted by composite score descending, ties broken by ticker.
func (a *Aggregator) Compute(holdings []Holding, esgScores map[string]float64) []Row {
	rows := make([]Row, 0, len(holdings))
	for _, h := range holdings {
		esg, ok := esgScores[h.Ticker]
		if !ok {
			esg = neutralESG
		}

		momentum := Momentum(h.PurchasePrice, h.CurrentPrice)
		composite := Composite(esg, momentum)

		rows = append(rows, Row{
			Ticker:         h.Ticker,
			Sector:         h.Sector,
			ESGScore:       esg,
			MomentumPct:    momentum,
			CompositeScore: composite,
			Signal:         Classify(composite),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CompositeScore != rows[j].CompositeScore {
			return rows[i].CompositeScore > rows[j].CompositeScore
		}
		return rows[i].Ticker < rows[j].Ticker
	})

	a.log.Debug().Int("holdings", len(holdings)).Msg("Computed trade signals")
	return rows
}

// AttachTrend decorates rows with RSI(14) and SMA(20) computed from each
// ticker's close-price history. Tickers with too little history are skipped;
// the signal classification itself never depends on these indicators.
func (a *Aggregator) AttachTrend(rows []Row, closesByTicker map[string][]float64) {
	for i := range rows {
		closes := closesByTicker[rows[i].Ticker]

		if len(closes) > rsiPeriod {
			rsi := talib.Rsi(closes, rsiPeriod)
			v := rsi[len(rsi)-1]
			rows[i].RSI14 = &v
		}
		if len(closes) >= smaPeriod {
			sma := talib.Sma(closes, smaPeriod)
			v := sma[len(sma)-1]
			rows[i].SMA20 = &v
		}
	}
}
