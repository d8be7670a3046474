package esg

// CompanyInput holds raw sustainability metrics for one company. Optional
// fields are pointers so that "absent" is distinguishable from an explicit
// zero; absent fields resolve to the documented defaults before any scoring
// runs. Environmental quantities and community investment default to 0 and
// stay plain floats.
type CompanyInput struct {
	// Environmental
	CarbonIntensity          float64 `json:"carbon_intensity"`
	RenewableEnergyPct       float64 `json:"renewable_energy_pct"`
	WaterUsage               float64 `json:"water_usage"`
	WasteRecyclingPct        float64 `json:"waste_recycling_pct"`
	EnvironmentalInnovations float64 `json:"environmental_innovations"`

	// Social (defaults: satisfaction 50, diversity 50, female 30%, turnover 15,
	// training 20h, labor 50, human rights 50)
	EmployeeSatisfaction     *float64 `json:"employee_satisfaction,omitempty"`
	DiversityScore           *float64 `json:"diversity_score,omitempty"`
	FemaleEmployeesPct       *float64 `json:"female_employees_pct,omitempty"`
	EmployeeTurnoverRate     *float64 `json:"employee_turnover_rate,omitempty"`
	TrainingHoursPerEmployee *float64 `json:"training_hours_per_employee,omitempty"`
	CommunityInvestment      float64  `json:"community_investment"`
	LaborPracticesScore      *float64 `json:"labor_practices_score,omitempty"`
	HumanRightsScore         *float64 `json:"human_rights_score,omitempty"`

	// Governance (defaults: independence 50, board diversity 30, female board
	// 20%, compensation ratio 200, remaining scores 50)
	BoardIndependence          *float64 `json:"board_independence,omitempty"`
	BoardDiversity             *float64 `json:"board_diversity,omitempty"`
	FemaleBoardMembers         *float64 `json:"female_board_members,omitempty"`
	ExecutiveCompensationRatio *float64 `json:"executive_compensation_ratio,omitempty"`
	ShareholderRightsScore     *float64 `json:"shareholder_rights_score,omitempty"`
	AntiCorruptionScore        *float64 `json:"anti_corruption_score,omitempty"`
	TaxTransparencyScore       *float64 `json:"tax_transparency_score,omitempty"`

	CarbonEmissions float64 `json:"carbon_emissions"`
	Controversies   int     `json:"esg_controversies"`
}

// metrics is a fully-resolved copy of CompanyInput: every optional field
// replaced by its value or its default. Scoring functions only ever see this.
type metrics struct {
	carbonIntensity          float64
	renewableEnergyPct       float64
	waterUsage               float64
	wasteRecyclingPct        float64
	environmentalInnovations float64

	employeeSatisfaction     float64
	diversityScore           float64
	femaleEmployeesPct       float64
	employeeTurnoverRate     float64
	trainingHoursPerEmployee float64
	communityInvestment      float64
	laborPracticesScore      float64
	humanRightsScore         float64

	boardIndependence          float64
	boardDiversity             float64
	femaleBoardMembers         float64
	executiveCompensationRatio float64
	shareholderRightsScore     float64
	antiCorruptionScore        float64
	taxTransparencyScore       float64

	controversies int
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func (in CompanyInput) resolved() metrics {
	return metrics{
		carbonIntensity:          in.CarbonIntensity,
		renewableEnergyPct:       in.RenewableEnergyPct,
		waterUsage:               in.WaterUsage,
		wasteRecyclingPct:        in.WasteRecyclingPct,
		environmentalInnovations: in.EnvironmentalInnovations,

		employeeSatisfaction:     orDefault(in.EmployeeSatisfaction, 50),
		diversityScore:           orDefault(in.DiversityScore, 50),
		femaleEmployeesPct:       orDefault(in.FemaleEmployeesPct, 30),
		employeeTurnoverRate:     orDefault(in.EmployeeTurnoverRate, 15),
		trainingHoursPerEmployee: orDefault(in.TrainingHoursPerEmployee, 20),
		communityInvestment:      in.CommunityInvestment,
		laborPracticesScore:      orDefault(in.LaborPracticesScore, 50),
		humanRightsScore:         orDefault(in.HumanRightsScore, 50),

		boardIndependence:          orDefault(in.BoardIndependence, 50),
		boardDiversity:             orDefault(in.BoardDiversity, 30),
		femaleBoardMembers:         orDefault(in.FemaleBoardMembers, 20),
		executiveCompensationRatio: orDefault(in.ExecutiveCompensationRatio, 200),
		shareholderRightsScore:     orDefault(in.ShareholderRightsScore, 50),
		antiCorruptionScore:        orDefault(in.AntiCorruptionScore, 50),
		taxTransparencyScore:       orDefault(in.TaxTransparencyScore, 50),

		controversies: in.Controversies,
	}
}

// Result is the immutable output of a company ESG calculation. Overall and
// adjusted scores are both present; the adjusted figure is overall minus the
// controversy penalty, never recomputed downstream.
type Result struct {
	EnvironmentalScore float64       `json:"environmental_score"`
	SocialScore        float64       `json:"social_score"`
	GovernanceScore    float64       `json:"governance_score"`
	OverallScore       float64       `json:"overall_score"`
	AdjustedScore      float64       `json:"adjusted_score"`
	Rating             string        `json:"rating"`
	AdjustedRating     string        `json:"adjusted_rating"`
	Sector             string        `json:"sector"`
	Weights            PillarWeights `json:"weights"`
	Controversies      int           `json:"controversies"`
	ControversyPenalty float64       `json:"controversy_penalty"`
}

// PillarScores carries a holding's pre-computed pillar scores into portfolio
// aggregation. Nil on a holding means no ESG data; each pillar then counts
// as the neutral 50.
type PillarScores struct {
	Environmental   float64 `json:"environmental_score"`
	Social          float64 `json:"social_score"`
	Governance      float64 `json:"governance_score"`
	CarbonEmissions float64 `json:"carbon_emissions"`
}

// PortfolioHolding is one position entering portfolio-level aggregation.
type PortfolioHolding struct {
	Ticker string        `json:"ticker"`
	Value  float64       `json:"value"`
	ESG    *PillarScores `json:"esg_data,omitempty"`
}

// PortfolioResult is the value-weighted portfolio ESG aggregate.
type PortfolioResult struct {
	PortfolioScore     float64 `json:"portfolio_esg_score"`
	PortfolioRating    string  `json:"portfolio_rating"`
	EnvironmentalScore float64 `json:"environmental_score"`
	SocialScore        float64 `json:"social_score"`
	GovernanceScore    float64 `json:"governance_score"`
	CarbonIntensity    float64 `json:"carbon_intensity"`
	CarbonFootprint    float64 `json:"carbon_footprint"`
	HoldingsCount      int     `json:"holdings_count"`
	TotalValue         float64 `json:"total_value"`
}

// RiskAssessment decomposes ESG-related risk into named components.
type RiskAssessment struct {
	ESGRiskScore      float64 `json:"esg_risk_score"`
	EnvironmentalRisk float64 `json:"environmental_risk"`
	SocialRisk        float64 `json:"social_risk"`
	GovernanceRisk    float64 `json:"governance_risk"`
	ControversyRisk   float64 `json:"controversy_risk"`
	RiskLevel         string  `json:"risk_level"`
}
