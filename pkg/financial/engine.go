package financial

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
)

// primaryLabels are the scenario names recognised as the base case.
var primaryLabels = []string{"base", "base case", "base_case", "base-case"}

var validate = validator.New(validator.WithRequiredStructEnabled())

// placeholderCurrency stands in for a currency inherited from the cost figure.
const placeholderCurrency = "XXX"

// Compute derives net value, ROI, payback and break-even for every scenario.
// It is pure: equal inputs always give equal summaries.
func Compute(cost Money, scenarios []Scenario) (*Summary, error) {
	cost.Currency = normalizeCurrency(cost.Currency)

	if err := validateMoney("cost", cost); err != nil {
		return nil, err
	}

	normalized := make([]Scenario, len(scenarios))

	for i, scenario := range scenarios {
		scenario.Name = strings.TrimSpace(scenario.Name)
		scenario.Value.Currency = normalizeCurrency(scenario.Value.Currency)

		if scenario.Value.Currency == "" {
			scenario.Value.Currency = cost.Currency
		}

		normalized[i] = scenario
	}

	if err := checkScenarios("scenarios", normalized); err != nil {
		return nil, err
	}

	summary := &Summary{
		Cost:      cost,
		Currency:  cost.Currency,
		Scenarios: make([]ScenarioResult, 0, len(normalized)),
	}

	for _, scenario := range normalized {
		if scenario.Value.Currency != cost.Currency {
			summary.Warnings = append(summary.Warnings, fmt.Sprintf(
				"scenario %q is in %s but cost is in %s; no conversion applied, figures labelled %s",
				scenario.Name, scenario.Value.Currency, cost.Currency, cost.Currency,
			))
		}

		summary.Scenarios = append(summary.Scenarios, evaluate(cost, scenario))
	}

	summary.Primary = selectPrimary(normalized)
	if !isPrimaryLabel(summary.Primary) {
		summary.Notes = append(summary.Notes, fmt.Sprintf(
			"no base case scenario found; %q used as primary (first scenario)", summary.Primary,
		))
	}

	if cost.Amount == 0 {
		summary.Notes = append(summary.Notes, "cost is zero; ROI reported as "+NotApplicable)
	}

	return summary, nil
}

func evaluate(cost Money, scenario Scenario) ScenarioResult {
	net := scenario.Value.Amount - cost.Amount

	result := ScenarioResult{
		Name:     scenario.Name,
		Value:    scenario.Value,
		NetValue: round2(net),
	}

	if cost.Amount != 0 {
		result.ROIPercent = applicable(net / cost.Amount * 100)
	}

	// Value accrues uniformly over one year, so payback and break-even share the ratio.
	if scenario.Value.Amount != 0 {
		ratio := cost.Amount / scenario.Value.Amount
		result.PaybackYears = applicable(ratio)
		result.BreakEvenRatio = applicable(ratio)
	}

	return result
}

func selectPrimary(scenarios []Scenario) string {
	for _, scenario := range scenarios {
		if isPrimaryLabel(scenario.Name) {
			return scenario.Name
		}
	}

	return scenarios[0].Name
}

func isPrimaryLabel(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))

	for _, label := range primaryLabels {
		if name == label {
			return true
		}
	}

	return false
}

// checkScenarios requires at least one scenario, unique names and valid values.
// A value without a currency only has its amount checked.
func checkScenarios(field string, scenarios []Scenario) error {
	if len(scenarios) == 0 {
		return &ValidationError{Field: field, Message: "at least one scenario is required"}
	}

	seen := make(map[string]bool, len(scenarios))

	for i, scenario := range scenarios {
		itemField := fmt.Sprintf("%s[%d]", field, i)

		name := strings.TrimSpace(scenario.Name)
		if name == "" {
			return &ValidationError{Field: itemField + ".name", Message: "is required"}
		}

		if seen[name] {
			return &ValidationError{Field: itemField + ".name", Message: fmt.Sprintf("duplicate scenario %q", name)}
		}

		seen[name] = true

		value := scenario.Value
		value.Currency = normalizeCurrency(value.Currency)

		if value.Currency == "" {
			value.Currency = placeholderCurrency
		}

		if err := validateMoney(itemField+".value", value); err != nil {
			return err
		}
	}

	return nil
}

func normalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

func validateMoney(field string, money Money) error {
	if math.IsNaN(money.Amount) || math.IsInf(money.Amount, 0) {
		return &ValidationError{Field: field + ".amount", Message: "must be a finite number"}
	}

	err := validate.Struct(money)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		first := fieldErrors[0]

		return &ValidationError{
			Field:   field + "." + strings.ToLower(first.Field()),
			Message: fmt.Sprintf("failed %q constraint (value %v)", first.Tag(), first.Value()),
		}
	}

	return &ValidationError{Field: field, Message: err.Error()}
}
