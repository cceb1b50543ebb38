package financial

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Keys read from the structured data of the cost and value artifacts.
const (
	KeyTotalCost = "total_cost"
	KeyCurrency  = "currency"
	KeyScenarios = "scenarios"
	KeyName      = "name"
	KeyAmount    = "amount"
)

// FromArtifactData decodes the loosely typed data produced by the cost and
// value stages. Non-numeric or missing amounts are validation errors.
func FromArtifactData(costData, valueData map[string]any) (Money, []Scenario, error) {
	cost, err := CostFromData(costData)
	if err != nil {
		return Money{}, nil, err
	}

	scenarios, err := ScenariosFromData(valueData)
	if err != nil {
		return Money{}, nil, err
	}

	return cost, scenarios, nil
}

// CostFromData decodes and validates the data of a cost artifact.
func CostFromData(data map[string]any) (Money, error) {
	if data == nil {
		return Money{}, &ValidationError{Field: "cost", Message: "cost artifact carries no data"}
	}

	amount, err := number(data[KeyTotalCost], "cost."+KeyTotalCost)
	if err != nil {
		return Money{}, err
	}

	cost := Money{Amount: amount, Currency: normalizeCurrency(stringValue(data[KeyCurrency]))}
	if err := validateMoney("cost", cost); err != nil {
		return Money{}, err
	}

	return cost, nil
}

// ScenariosFromData decodes and validates the data of a value artifact.
// Scenarios without a currency take the artifact level one, or the cost
// currency once computed.
func ScenariosFromData(data map[string]any) ([]Scenario, error) {
	if data == nil {
		return nil, &ValidationError{Field: "value", Message: "value artifact carries no data"}
	}

	defaultCurrency := stringValue(data[KeyCurrency])

	rawScenarios, ok := data[KeyScenarios].([]any)
	if !ok {
		return nil, &ValidationError{Field: "value." + KeyScenarios, Message: "must be a list of scenarios"}
	}

	scenarios := make([]Scenario, 0, len(rawScenarios))

	for i, raw := range rawScenarios {
		field := fmt.Sprintf("value.%s[%d]", KeyScenarios, i)

		entry, ok := raw.(map[string]any)
		if !ok {
			return nil, &ValidationError{Field: field, Message: "must be an object"}
		}

		amount, err := number(entry[KeyAmount], field+"."+KeyAmount)
		if err != nil {
			return nil, err
		}

		currency := stringValue(entry[KeyCurrency])
		if currency == "" {
			currency = defaultCurrency
		}

		scenarios = append(scenarios, Scenario{
			Name:  stringValue(entry[KeyName]),
			Value: Money{Amount: amount, Currency: currency},
		})
	}

	if err := checkScenarios("value."+KeyScenarios, scenarios); err != nil {
		return nil, err
	}

	return scenarios, nil
}

// ToData converts the summary into the generic artifact data representation.
func (s *Summary) ToData() (map[string]any, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal financial summary: %w", err)
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal financial summary: %w", err)
	}

	return data, nil
}

// SummaryFromData is the inverse of ToData.
func SummaryFromData(data map[string]any) (*Summary, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal financial data: %w", err)
	}

	var summary Summary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, fmt.Errorf("failed to decode financial summary: %w", err)
	}

	return &summary, nil
}

// Render produces the plain-text rendition stored as the artifact content.
func (s *Summary) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Cost: %.2f %s\n", s.Cost.Amount, s.Currency)
	fmt.Fprintf(&b, "Primary scenario: %s\n", s.Primary)

	for _, r := range s.Scenarios {
		fmt.Fprintf(&b, "- %s: value %.2f %s, net %.2f, ROI %s%%, payback %s years, break-even ratio %s\n",
			r.Name, r.Value.Amount, r.Value.Currency, r.NetValue, r.ROIPercent, r.PaybackYears, r.BreakEvenRatio)
	}

	for _, note := range s.Notes {
		fmt.Fprintf(&b, "Note: %s\n", note)
	}

	for _, warning := range s.Warnings {
		fmt.Fprintf(&b, "Warning: %s\n", warning)
	}

	return b.String()
}

func number(raw any, field string) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, &ValidationError{Field: field, Message: fmt.Sprintf("non-numeric value %q", v.String())}
		}

		return f, nil
	case nil:
		return 0, &ValidationError{Field: field, Message: "is required"}
	default:
		return 0, &ValidationError{Field: field, Message: fmt.Sprintf("non-numeric value %v", v)}
	}
}

func stringValue(raw any) string {
	s, _ := raw.(string)

	return s
}
