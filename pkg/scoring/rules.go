package scoring

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Rules carries every constant of the credit formula so deployments can tune
// scoring without a rebuild. DefaultRules mirrors the shipped policy.
type Rules struct {
	CarbonRate         float64            `yaml:"carbon_rate" json:"carbon_rate"`
	CarbonCap          float64            `yaml:"carbon_cap" json:"carbon_cap"`
	EnergyRate         float64            `yaml:"energy_rate" json:"energy_rate"`
	EnergyCap          float64            `yaml:"energy_cap" json:"energy_cap"`
	RenewableThreshold float64            `yaml:"renewable_threshold" json:"renewable_threshold"`
	WasteRate          float64            `yaml:"waste_rate" json:"waste_rate"`
	WasteCap           float64            `yaml:"waste_cap" json:"waste_cap"`
	ImpactRate         float64            `yaml:"impact_rate" json:"impact_rate"`
	ImpactCap          float64            `yaml:"impact_cap" json:"impact_cap"`
	MintThreshold      float64            `yaml:"mint_threshold" json:"mint_threshold"`
	Multipliers        map[string]float64 `yaml:"multipliers" json:"multipliers"`
	DefaultMultiplier  float64            `yaml:"default_multiplier" json:"default_multiplier"`
}

func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultRules(), err
	}

	var rules Rules
	if err := yaml.Unmarshal(content, &rules); err != nil {
		return Rules{}, err
	}
	if err := rules.Validate(); err != nil {
		return Rules{}, err
	}

	return rules, nil
}

func (r Rules) Validate() error {
	if len(r.Multipliers) == 0 {
		return errors.New("no category multipliers configured")
	}
	if r.CarbonCap <= 0 || r.EnergyCap <= 0 || r.WasteCap <= 0 || r.ImpactCap <= 0 {
		return errors.New("score caps must be positive")
	}
	if r.MintThreshold <= 0 {
		return errors.New("mint threshold must be positive")
	}
	return nil
}

func DefaultRules() Rules {
	return Rules{
		CarbonRate:         0.1,
		CarbonCap:          100,
		EnergyRate:         0.01,
		EnergyCap:          50,
		RenewableThreshold: 50,
		WasteRate:          2,
		WasteCap:           30,
		ImpactRate:         5,
		ImpactCap:          100,
		MintThreshold:      10,
		Multipliers: map[string]float64{
			"sustainability_document": 1.0,
			"carbon_footprint":        1.2,
			"certification":           1.5,
			"proof_of_impact":         2.0,
		},
		DefaultMultiplier: 1.0,
	}
}
