package esg

import (
	"hash/fnv"
	"math/rand/v2"
)

type pillarBaseline struct {
	E, S, G float64
}

// sectorBaselines seeds sample data generation with typical pillar levels per
// sector. Sectors not listed use a flat 60 baseline.
var sectorBaselines = map[string]pillarBaseline{
	"Technology":             {E: 65, S: 70, G: 75},
	"Energy":                 {E: 45, S: 55, G: 60},
	"Healthcare":             {E: 60, S: 75, G: 70},
	"Financials":             {E: 55, S: 65, G: 80},
	"Consumer Discretionary": {E: 60, S: 65, G: 65},
	"Industrials":            {E: 50, S: 60, G: 65},
	"Materials":              {E: 45, S: 55, G: 60},
	"Utilities":              {E: 50, S: 60, G: 70},
}

// GenerateSampleInput produces plausible ESG metrics for a ticker when no
// ESG data provider is configured. The generator is seeded from the ticker,
// so repeated calls for the same ticker return identical data. Stands in for
// provider integrations (MSCI, Sustainalytics, filings scrapers).
func GenerateSampleInput(ticker, sector string) CompanyInput {
	baseline, ok := sectorBaselines[sector]
	if !ok {
		baseline = pillarBaseline{E: 60, S: 60, G: 60}
	}

	h := fnv.New64a()
	h.Write([]byte(ticker))
	seed := h.Sum64()
	r := rand.New(rand.NewPCG(seed, seed))

	uniform := func(lo, hi float64) float64 {
		return lo + r.Float64()*(hi-lo)
	}
	clamped := func(v float64) *float64 {
		v = clamp(v, 0, 100)
		return &v
	}
	ptr := func(v float64) *float64 { return &v }

	// Rare controversies: five 10% trials
	controversies := 0
	for i := 0; i < 5; i++ {
		if r.Float64() < 0.1 {
			controversies++
		}
	}

	return CompanyInput{
		CarbonIntensity:          uniform(30, 150),
		RenewableEnergyPct:       clamp(baseline.E+uniform(-15, 15), 0, 100),
		WaterUsage:               uniform(200, 800),
		WasteRecyclingPct:        clamp(baseline.E+uniform(-10, 20), 0, 100),
		EnvironmentalInnovations: float64(int(uniform(0, 10))),

		EmployeeSatisfaction:     clamped(baseline.S + uniform(-10, 15)),
		DiversityScore:           clamped(baseline.S + uniform(-15, 10)),
		FemaleEmployeesPct:       ptr(uniform(25, 50)),
		EmployeeTurnoverRate:     ptr(uniform(5, 20)),
		TrainingHoursPerEmployee: ptr(uniform(20, 60)),
		CommunityInvestment:      uniform(1_000_000, 10_000_000),
		LaborPracticesScore:      clamped(baseline.S + uniform(-10, 10)),
		HumanRightsScore:         clamped(baseline.S + uniform(-5, 15)),

		BoardIndependence:          ptr(uniform(50, 85)),
		BoardDiversity:             ptr(uniform(30, 70)),
		FemaleBoardMembers:         ptr(uniform(15, 45)),
		ExecutiveCompensationRatio: ptr(uniform(50, 250)),
		ShareholderRightsScore:     clamped(baseline.G + uniform(-10, 10)),
		AntiCorruptionScore:        clamped(baseline.G + uniform(-5, 15)),
		TaxTransparencyScore:       clamped(baseline.G + uniform(-10, 10)),

		Controversies: controversies,
	}
}
