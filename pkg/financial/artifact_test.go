package financial

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromArtifactData(t *testing.T) {
	cost, scenarios, err := FromArtifactData(
		map[string]any{"total_cost": 19825.0, "currency": "USD"},
		map[string]any{
			"currency": "USD",
			"scenarios": []any{
				map[string]any{"name": "Low", "amount": 75000.0},
				map[string]any{"name": "Base", "amount": json.Number("175000")},
				map[string]any{"name": "High", "amount": 350000, "currency": "EUR"},
			},
		},
	)
	require.NoError(t, err)

	assert.Equal(t, Money{Amount: 19825, Currency: "USD"}, cost)
	assert.Equal(t, []Scenario{
		{Name: "Low", Value: Money{Amount: 75000, Currency: "USD"}},
		{Name: "Base", Value: Money{Amount: 175000, Currency: "USD"}},
		{Name: "High", Value: Money{Amount: 350000, Currency: "EUR"}},
	}, scenarios)
}

func TestFromArtifactData_NonNumeric(t *testing.T) {
	tests := []struct {
		name  string
		cost  map[string]any
		value map[string]any
		field string
	}{
		{
			name:  "string cost",
			cost:  map[string]any{"total_cost": "a lot", "currency": "USD"},
			value: map[string]any{"scenarios": []any{}},
			field: "cost.total_cost",
		},
		{
			name:  "missing cost",
			cost:  map[string]any{"currency": "USD"},
			value: map[string]any{"scenarios": []any{}},
			field: "cost.total_cost",
		},
		{
			name:  "no cost data",
			value: map[string]any{"scenarios": []any{}},
			field: "cost",
		},
		{
			name:  "scenarios not a list",
			cost:  map[string]any{"total_cost": 10.0, "currency": "USD"},
			value: map[string]any{"scenarios": map[string]any{"Base": 10.0}},
			field: "value.scenarios",
		},
		{
			name:  "non-numeric scenario",
			cost:  map[string]any{"total_cost": 10.0, "currency": "USD"},
			value: map[string]any{"scenarios": []any{map[string]any{"name": "Base", "amount": true}}},
			field: "value.scenarios[0].amount",
		},
		{
			name:  "bad json number",
			cost:  map[string]any{"total_cost": json.Number("1e"), "currency": "USD"},
			value: map[string]any{"scenarios": []any{}},
			field: "cost.total_cost",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := FromArtifactData(tt.cost, tt.value)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}
}

func TestBranchDataChecks(t *testing.T) {
	cost, err := CostFromData(map[string]any{"total_cost": 19825, "currency": " usd "})
	require.NoError(t, err)
	assert.Equal(t, Money{Amount: 19825, Currency: "USD"}, cost)

	scenarios, err := ScenariosFromData(map[string]any{
		"scenarios": []any{map[string]any{"name": "Base", "amount": 10.0}},
	})
	require.NoError(t, err, "a scenario without currency inherits the cost one later")
	assert.Equal(t, "", scenarios[0].Value.Currency)

	scenario := func(name string, amount float64) map[string]any {
		return map[string]any{"name": name, "amount": amount}
	}

	tests := []struct {
		name  string
		cost  map[string]any
		value map[string]any
		field string
	}{
		{name: "cost without currency", cost: map[string]any{"total_cost": 10.0}, field: "cost.currency"},
		{name: "negative cost", cost: map[string]any{"total_cost": -1.0, "currency": "USD"}, field: "cost.amount"},
		{name: "no scenarios", value: map[string]any{"scenarios": []any{}}, field: "value.scenarios"},
		{
			name:  "negative scenario",
			value: map[string]any{"scenarios": []any{scenario("Base", -5)}},
			field: "value.scenarios[0].value.amount",
		},
		{
			name:  "duplicate scenario",
			value: map[string]any{"scenarios": []any{scenario("Base", 5), scenario("Base", 6)}},
			field: "value.scenarios[1].name",
		},
		{
			name:  "bad currency",
			value: map[string]any{"currency": "dollars", "scenarios": []any{scenario("Base", 5)}},
			field: "value.scenarios[0].value.currency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.cost != nil {
				_, err = CostFromData(tt.cost)
			} else {
				_, err = ScenariosFromData(tt.value)
			}

			require.Error(t, err)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}
}

func TestSummary_DataRoundTripAndRender(t *testing.T) {
	summary, err := Compute(usd(0), referenceScenarios())
	require.NoError(t, err)

	data, err := summary.ToData()
	require.NoError(t, err)
	assert.Equal(t, "Base", data["primary"])

	decoded, err := SummaryFromData(data)
	require.NoError(t, err)
	assert.Equal(t, summary, decoded)

	rendered := summary.Render()
	assert.Contains(t, rendered, "Primary scenario: Base")
	assert.Contains(t, rendered, "ROI N/A%")
	assert.Contains(t, rendered, "Note: cost is zero")
}
