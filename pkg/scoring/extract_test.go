package scoring

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExtractMetricsNestedJSON(t *testing.T) {
	doc := []byte(`{"report": "Q3", "sustainability_metrics": {"carbon_footprint": 42.5, "renewable_pct": "61.5"}}`)

	m, err := ExtractMetrics(doc, "application/json; charset=utf-8")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if m.CarbonFootprint != 42.5 {
		t.Fatalf("expected carbon 42.5, got %v", m.CarbonFootprint)
	}
	if m.RenewablePct != 61.5 {
		t.Fatalf("expected renewable 61.5 from string value, got %v", m.RenewablePct)
	}
}

func TestExtractMetricsCSV(t *testing.T) {
	doc := []byte("metric,value\ncarbon_footprint,120\nwaste_reduction,12.5\nnotes,ignored\n")

	m, err := ExtractMetrics(doc, "text/csv")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if m.CarbonFootprint != 120 {
		t.Fatalf("expected carbon 120, got %v", m.CarbonFootprint)
	}
	if m.WasteReductionPct != 12.5 {
		t.Fatalf("expected waste 12.5, got %v", m.WasteReductionPct)
	}
}

func TestExtractMetricsRejectsMetriclessDocuments(t *testing.T) {
	tests := []struct {
		name        string
		content     []byte
		contentType string
	}{
		{"binary", []byte{0xFF, 0xD8, 0xFF}, "image/jpeg"},
		{"json without metrics", []byte(`{"hello": "world"}`), "application/json"},
		{"broken json", []byte(`{`), "application/json"},
		{"csv without metrics", []byte("a,b\nc,d\n"), "text/csv"},
	}

	for _, tt := range tests {
		if _, err := ExtractMetrics(tt.content, tt.contentType); err == nil {
			t.Errorf("%s: expected extraction error", tt.name)
		}
	}
}

func TestMockMetricsUnknownCategory(t *testing.T) {
	m := MockMetrics("not_a_category")
	if m.CarbonFootprint != 150.5 {
		t.Fatalf("expected sustainability_document defaults for unknown category, got %v", m.CarbonFootprint)
	}
}

func TestLoadRulesFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := []byte(`
carbon_rate: 0.2
carbon_cap: 50
energy_rate: 0.01
energy_cap: 50
renewable_threshold: 40
waste_rate: 2
waste_cap: 30
impact_rate: 5
impact_cap: 100
mint_threshold: 20
default_multiplier: 1.0
multipliers:
  certification: 3.0
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	if rules.CarbonRate != 0.2 {
		t.Fatalf("expected carbon rate 0.2, got %v", rules.CarbonRate)
	}
	if rules.Multipliers["certification"] != 3.0 {
		t.Fatalf("expected certification multiplier 3.0, got %v", rules.Multipliers["certification"])
	}
}

func TestLoadRulesEmptyPathUsesDefaults(t *testing.T) {
	rules, err := LoadRules("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if rules.Multipliers["proof_of_impact"] != 2.0 {
		t.Fatalf("expected default proof_of_impact multiplier 2.0, got %v", rules.Multipliers["proof_of_impact"])
	}
}

func TestLoadRulesRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte("carbon_cap: 100\n"), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	if _, err := LoadRules(path); err == nil {
		t.Fatal("expected validation error for rules without multipliers")
	}
}
