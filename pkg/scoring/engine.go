package scoring

import (
	"fmt"
	"strings"
)

// Metric sources recorded on results.
const (
	SourceDocument = "document"
	SourceMock     = "mock"
)

// Metrics are the four declared sustainability measurements driving the
// credit formula.
type Metrics struct {
	CarbonFootprint   float64 `json:"carbon_footprint"`
	EnergyConsumption float64 `json:"energy_consumption"`
	WasteReductionPct float64 `json:"waste_reduction_pct"`
	RenewablePct      float64 `json:"renewable_pct"`
}

// Result is the full outcome of scoring one document. Identical inputs always
// produce identical results.
type Result struct {
	Metrics
	DocumentCategory string  `json:"document_category"`
	FinalCredits     float64 `json:"final_credits"`
	ImpactScore      float64 `json:"impact_score"`
	ShouldMint       bool    `json:"should_mint"`
	Reasoning        string  `json:"reasoning"`
	MetricsSource    string  `json:"metrics_source"`
}

// Engine applies the credit rules. It performs no I/O and holds no mutable
// state, so a single instance is safe for concurrent use.
type Engine struct {
	rules Rules
}

func NewEngine(rules Rules) *Engine {
	return &Engine{rules: rules}
}

// Score computes credits, impact score and the mint decision for one set of
// metrics. The caller is responsible for setting MetricsSource.
func (e *Engine) Score(m Metrics, category string) Result {
	r := e.rules

	carbonCredits := capped(m.CarbonFootprint*r.CarbonRate, r.CarbonCap)

	energyEligible := m.RenewablePct >= r.RenewableThreshold
	energyBonus := 0.0
	if energyEligible {
		energyBonus = capped(m.EnergyConsumption*r.EnergyRate, r.EnergyCap)
	}

	wasteBonus := capped(m.WasteReductionPct*r.WasteRate, r.WasteCap)

	base := carbonCredits + energyBonus + wasteBonus

	multiplier, known := r.Multipliers[category]
	if !known {
		multiplier = r.DefaultMultiplier
	}

	finalCredits := base * multiplier
	impactScore := capped(finalCredits*r.ImpactRate, r.ImpactCap)
	shouldMint := finalCredits >= r.MintThreshold

	var b strings.Builder
	fmt.Fprintf(&b, "rule-based analysis: carbon credits %.1f", carbonCredits)
	if energyEligible {
		fmt.Fprintf(&b, ", energy bonus %.1f", energyBonus)
	} else {
		fmt.Fprintf(&b, ", energy bonus 0.0 (renewable %.1f%% below %.1f%% threshold)", m.RenewablePct, r.RenewableThreshold)
	}
	fmt.Fprintf(&b, ", waste bonus %.1f", wasteBonus)
	fmt.Fprintf(&b, ", multiplier %.1f (%s)", multiplier, category)
	fmt.Fprintf(&b, ", final credits %.1f", finalCredits)
	if !shouldMint {
		fmt.Fprintf(&b, "; below mint threshold (%.1f)", r.MintThreshold)
	}

	return Result{
		Metrics:          m,
		DocumentCategory: category,
		FinalCredits:     finalCredits,
		ImpactScore:      impactScore,
		ShouldMint:       shouldMint,
		Reasoning:        b.String(),
	}
}

// ScoreDocument extracts metrics from the document body and scores them. When
// the body cannot be parsed into metrics, the canned per-category table is
// used instead; scoring never fails the upload.
func (e *Engine) ScoreDocument(content []byte, contentType, category string) Result {
	metrics, err := ExtractMetrics(content, contentType)
	source := SourceDocument
	if err != nil {
		metrics = MockMetrics(category)
		source = SourceMock
	}

	result := e.Score(metrics, category)
	result.MetricsSource = source
	return result
}

func capped(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	return v
}
