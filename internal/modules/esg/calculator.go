// Package esg scores companies on Environmental, Social and Governance
// pillars, combines the pillars with sector materiality weights, applies a
// controversy penalty, and maps scores to letter ratings. It also aggregates
// holding-level scores into a portfolio figure and derives an ESG risk
// decomposition.
//
// All calculations are pure functions of their inputs; the calculator holds
// no mutable state and is safe for concurrent use.
package esg

import (
	"math"

	"github.com/rs/zerolog"
)

// Calculator computes ESG scores. Construct with NewCalculator.
type Calculator struct {
	log zerolog.Logger
}

// NewCalculator creates an ESG calculator.
func NewCalculator(log zerolog.Logger) *Calculator {
	return &Calculator{
		log: log.With().Str("component", "esg_calculator").Logger(),
	}
}

// EnvironmentalScore blends five normalized environmental factors into a
// 0-100 pillar score. Carbon intensity scores against an assumed ~100-unit
// industry baseline; water usage normalizes inversely over [0, 1000].
func (c *Calculator) EnvironmentalScore(input CompanyInput) float64 {
	m := input.resolved()

	carbonScore := math.Max(0, 100-(m.carbonIntensity/100)*100)
	renewableScore := m.renewableEnergyPct
	waterScore := normalizeMetric(m.waterUsage, 0, 1000, true)
	wasteScore := m.wasteRecyclingPct
	innovationScore := math.Min(100, m.environmentalInnovations*10)

	score := carbonScore*0.35 +
		renewableScore*0.25 +
		waterScore*0.15 +
		wasteScore*0.15 +
		innovationScore*0.10

	return round2(clamp(score, 0, 100))
}

// SocialScore blends workforce and community factors into a 0-100 pillar
// score. Retention penalizes turnover at 3 points per percent; training caps
// at 50 hours; community investment normalizes over [0, 10M].
func (c *Calculator) SocialScore(input CompanyInput) float64 {
	m := input.resolved()

	satisfactionScore := m.employeeSatisfaction
	diversityTotal := m.diversityScore*0.7 + normalizeMetric(m.femaleEmployeesPct, 0, 50, false)*0.3
	retentionScore := math.Max(0, 100-m.employeeTurnoverRate*3)
	trainingScore := math.Min(100, m.trainingHoursPerEmployee*2)
	communityScore := normalizeMetric(m.communityInvestment, 0, 10_000_000, false)
	laborScore := m.laborPracticesScore
	rightsScore := m.humanRightsScore

	score := satisfactionScore*0.20 +
		diversityTotal*0.20 +
		retentionScore*0.15 +
		trainingScore*0.10 +
		communityScore*0.10 +
		laborScore*0.15 +
		rightsScore*0.10

	return round2(clamp(score, 0, 100))
}

// GovernanceScore blends board and shareholder factors into a 0-100 pillar
// score. Board independence targets 75%+; compensation ratios above 100:1
// lose a point per 10 units of ratio.
func (c *Calculator) GovernanceScore(input CompanyInput) float64 {
	m := input.resolved()

	independenceScore := math.Min(100, (m.boardIndependence/75)*100)
	diversityScore := m.boardDiversity*0.6 + normalizeMetric(m.femaleBoardMembers, 0, 50, false)*0.4

	compScore := 100.0
	if m.executiveCompensationRatio > 100 {
		compScore = math.Max(0, 100-(m.executiveCompensationRatio-100)/10)
	}

	score := independenceScore*0.20 +
		diversityScore*0.15 +
		compScore*0.15 +
		m.shareholderRightsScore*0.20 +
		m.antiCorruptionScore*0.20 +
		m.taxTransparencyScore*0.10

	return round2(clamp(score, 0, 100))
}

// Score computes the full ESG result for a company: pillar scores, the
// sector-weighted overall score, the controversy-adjusted score, and letter
// ratings for both. An unrecognized sector is not an error; it falls back to
// the default weights and is logged.
func (c *Calculator) Score(input CompanyInput, sector string) Result {
	eScore := c.EnvironmentalScore(input)
	sScore := c.SocialScore(input)
	gScore := c.GovernanceScore(input)

	weights, ok := sectorWeights[sector]
	if !ok {
		weights = defaultWeights
		c.log.Warn().Str("sector", sector).Msg("Unknown sector, using default pillar weights")
	}

	overall := eScore*weights.E + sScore*weights.S + gScore*weights.G

	penalty := math.Min(20, float64(input.Controversies)*5)
	adjusted := math.Max(0, overall-penalty)

	if sector == "" {
		sector = "Unknown"
	}

	return Result{
		EnvironmentalScore: eScore,
		SocialScore:        sScore,
		GovernanceScore:    gScore,
		OverallScore:       round2(overall),
		AdjustedScore:      round2(adjusted),
		Rating:             ScoreToRating(overall),
		AdjustedRating:     ScoreToRating(adjusted),
		Sector:             sector,
		Weights:            weights,
		Controversies:      input.Controversies,
		ControversyPenalty: penalty,
	}
}

// PortfolioScore value-weights holding-level pillar scores into a portfolio
// aggregate. Holdings without ESG data count as a neutral 50 per pillar. The
// portfolio score averages the three pillars unweighted; sector materiality
// applies per company, not at the portfolio level. A zero-value portfolio
// returns the documented "N/A" result instead of dividing by zero.
func (c *Calculator) PortfolioScore(holdings []PortfolioHolding) PortfolioResult {
	totalValue := 0.0
	for _, h := range holdings {
		totalValue += h.Value
	}

	if totalValue == 0 {
		return PortfolioResult{
			PortfolioRating: "N/A",
			HoldingsCount:   len(holdings),
		}
	}

	var weightedE, weightedS, weightedG, totalCarbon float64
	for _, h := range holdings {
		weight := h.Value / totalValue

		e, s, g, carbon := 50.0, 50.0, 50.0, 0.0
		if h.ESG != nil {
			e, s, g, carbon = h.ESG.Environmental, h.ESG.Social, h.ESG.Governance, h.ESG.CarbonEmissions
		}

		weightedE += e * weight
		weightedS += s * weight
		weightedG += g * weight
		totalCarbon += carbon * weight
	}

	portfolioScore := (weightedE + weightedS + weightedG) / 3

	// tons CO2 per $1M invested
	carbonIntensity := totalCarbon / totalValue * 1_000_000

	return PortfolioResult{
		PortfolioScore:     round2(portfolioScore),
		PortfolioRating:    ScoreToRating(portfolioScore),
		EnvironmentalScore: round2(weightedE),
		SocialScore:        round2(weightedS),
		GovernanceScore:    round2(weightedG),
		CarbonIntensity:    round2(carbonIntensity),
		CarbonFootprint:    round2(totalCarbon),
		HoldingsCount:      len(holdings),
		TotalValue:         totalValue,
	}
}

// Risk derives an ESG risk decomposition from an overall score and the
// controversy count. Regulatory risk is a three-tier step function of the
// score; stranded-assets risk models environmental transition exposure.
func (c *Calculator) Risk(esgScore float64, controversies int) RiskAssessment {
	baseRisk := 100 - esgScore
	controversyRisk := math.Min(50, float64(controversies)*10)

	var regulatoryRisk float64
	switch {
	case esgScore < 40:
		regulatoryRisk = 80
	case esgScore < 60:
		regulatoryRisk = 50
	default:
		regulatoryRisk = 20
	}

	reputationRisk := baseRisk*0.6 + controversyRisk*0.4
	strandedAssetsRisk := math.Max(0, 100-esgScore*1.5)

	overall := baseRisk*0.30 +
		controversyRisk*0.25 +
		regulatoryRisk*0.20 +
		reputationRisk*0.15 +
		strandedAssetsRisk*0.10

	return RiskAssessment{
		ESGRiskScore:      round2(overall),
		EnvironmentalRisk: round2(strandedAssetsRisk),
		SocialRisk:        round2(reputationRisk),
		GovernanceRisk:    round2(regulatoryRisk),
		ControversyRisk:   round2(controversyRisk),
		RiskLevel:         riskToLevel(overall),
	}
}

// normalizeMetric scales value onto [0, 100] over [min, max], clamping at the
// ends. Equal bounds return the midpoint 50 rather than dividing by zero.
func normalizeMetric(value, min, max float64, inverse bool) float64 {
	if max == min {
		return 50
	}
	normalized := clamp((value-min)/(max-min)*100, 0, 100)
	if inverse {
		return 100 - normalized
	}
	return normalized
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
