package esg

// PillarWeights are sector materiality weights for combining pillar scores.
// Each row sums to 1.0.
type PillarWeights struct {
	E float64 `json:"E"`
	S float64 `json:"S"`
	G float64 `json:"G"`
}

// sectorWeights maps GICS-style sector labels to materiality weights.
var sectorWeights = map[string]PillarWeights{
	"Technology":             {E: 0.40, S: 0.30, G: 0.30},
	"Energy":                 {E: 0.50, S: 0.25, G: 0.25},
	"Healthcare":             {E: 0.20, S: 0.50, G: 0.30},
	"Financials":             {E: 0.15, S: 0.35, G: 0.50},
	"Consumer Discretionary": {E: 0.30, S: 0.40, G: 0.30},
	"Consumer Staples":       {E: 0.35, S: 0.35, G: 0.30},
	"Industrials":            {E: 0.40, S: 0.35, G: 0.25},
	"Materials":              {E: 0.50, S: 0.30, G: 0.20},
	"Utilities":              {E: 0.55, S: 0.25, G: 0.20},
	"Real Estate":            {E: 0.45, S: 0.30, G: 0.25},
	"Communication Services": {E: 0.25, S: 0.45, G: 0.30},
}

// defaultWeights is the fallback for sectors not in the table.
var defaultWeights = PillarWeights{E: 0.33, S: 0.33, G: 0.34}

// ratingScale maps score thresholds to letter ratings, ordered best-first.
// A score at or above a threshold takes that rating; anything below 30 is CCC,
// which also covers out-of-range values.
var ratingScale = []struct {
	min    float64
	rating string
}{
	{85, "AAA"},
	{70, "AA"},
	{60, "A"},
	{50, "BBB"},
	{40, "BB"},
	{30, "B"},
}

// ScoreToRating converts a 0-100 score to its letter rating. Boundaries are
// inclusive on the lower bound: 85.0 is AAA, 84.99 is AA.
func ScoreToRating(score float64) string {
	for _, tier := range ratingScale {
		if score >= tier.min {
			return tier.rating
		}
	}
	return "CCC"
}

// riskToLevel buckets an overall ESG risk score into five tiers.
func riskToLevel(risk float64) string {
	switch {
	case risk >= 75:
		return "Very High"
	case risk >= 60:
		return "High"
	case risk >= 40:
		return "Medium"
	case risk >= 20:
		return "Low"
	default:
		return "Very Low"
	}
}
