package scoring

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

var errNoMetrics = errors.New("no sustainability metrics found in document")

// ExtractMetrics pulls the four metric values out of a document body.
// JSON documents may carry the metrics at the top level or nested under
// "sustainability_metrics"; CSV documents are read as key,value rows. Field
// aliases from older clients (waste_reduction, renewable_energy_percentage)
// are accepted. Binary document types are not parsed.
func ExtractMetrics(content []byte, contentType string) (Metrics, error) {
	switch normalizeContentType(contentType) {
	case "application/json":
		return extractJSON(content)
	case "text/csv":
		return extractCSV(content)
	default:
		return Metrics{}, errNoMetrics
	}
}

// MockMetrics returns the canned metric set for a document category, used
// when the document body yields nothing parseable. Unknown categories get the
// sustainability_document defaults.
func MockMetrics(category string) Metrics {
	switch category {
	case "carbon_footprint":
		return Metrics{CarbonFootprint: 200.0, EnergyConsumption: 3000, WasteReductionPct: 20.0, RenewablePct: 90.0}
	case "certification":
		return Metrics{CarbonFootprint: 300.0, EnergyConsumption: 4000, WasteReductionPct: 25.0, RenewablePct: 95.0}
	case "proof_of_impact":
		return Metrics{CarbonFootprint: 500.0, EnergyConsumption: 5000, WasteReductionPct: 30.0, RenewablePct: 100.0}
	default:
		return Metrics{CarbonFootprint: 150.5, EnergyConsumption: 2500, WasteReductionPct: 15.2, RenewablePct: 85.0}
	}
}

func extractJSON(content []byte) (Metrics, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(content, &doc); err != nil {
		return Metrics{}, err
	}

	if nested, ok := doc["sustainability_metrics"].(map[string]interface{}); ok {
		doc = nested
	}

	var m Metrics
	found := 0
	for key, value := range doc {
		v, ok := toFloat(value)
		if !ok {
			continue
		}
		if assignMetric(&m, key, v) {
			found++
		}
	}

	if found == 0 {
		return Metrics{}, errNoMetrics
	}
	return m, nil
}

func extractCSV(content []byte) (Metrics, error) {
	reader := csv.NewReader(strings.NewReader(string(content)))
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return Metrics{}, err
	}

	var m Metrics
	found := 0
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			continue
		}
		if assignMetric(&m, row[0], v) {
			found++
		}
	}

	if found == 0 {
		return Metrics{}, errNoMetrics
	}
	return m, nil
}

func assignMetric(m *Metrics, key string, value float64) bool {
	switch strings.TrimSpace(strings.ToLower(key)) {
	case "carbon_footprint":
		m.CarbonFootprint = value
	case "energy_consumption":
		m.EnergyConsumption = value
	case "waste_reduction_pct", "waste_reduction":
		m.WasteReductionPct = value
	case "renewable_pct", "renewable_energy_percentage":
		m.RenewablePct = value
	default:
		return false
	}
	return true
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func normalizeContentType(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	return strings.TrimSpace(strings.ToLower(contentType))
}
