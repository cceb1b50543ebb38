// Package financial computes the deterministic financial summary of a business case
// from an approved cost figure and a set of named value scenarios.
package financial

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrValidation marks malformed numeric input; nothing is computed when it is returned.
var ErrValidation = errors.New("invalid financial input")

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Money is an amount labelled with an ISO currency code.
type Money struct {
	Amount   float64 `json:"amount"   validate:"gte=0"`
	Currency string  `json:"currency" validate:"required,len=3,alpha,uppercase"`
}

// Scenario is one named value projection.
type Scenario struct {
	Name  string `json:"name"  validate:"required"`
	Value Money  `json:"value"`
}

// Metric is a computed figure that may be not applicable (division by zero).
type Metric struct {
	Value      float64
	Applicable bool
}

// NotApplicable is how an inapplicable metric is rendered.
const NotApplicable = "N/A"

func applicable(v float64) Metric {
	return Metric{Value: round2(v), Applicable: true}
}

func (m Metric) String() string {
	if !m.Applicable {
		return NotApplicable
	}

	return fmt.Sprintf("%.2f", m.Value)
}

func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Applicable {
		return json.Marshal(NotApplicable)
	}

	return json.Marshal(m.Value)
}

func (m *Metric) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case float64:
		*m = Metric{Value: v, Applicable: true}
	case string:
		if v != NotApplicable {
			return fmt.Errorf("unexpected metric value %q", v)
		}

		*m = Metric{}
	case nil:
		*m = Metric{}
	default:
		return fmt.Errorf("unexpected metric type %T", raw)
	}

	return nil
}

// ScenarioResult holds the metrics of one scenario against the cost.
type ScenarioResult struct {
	Name           string  `json:"name"`
	Value          Money   `json:"value"`
	NetValue       float64 `json:"net_value"`
	ROIPercent     Metric  `json:"roi_percent"`
	PaybackYears   Metric  `json:"payback_years"`
	BreakEvenRatio Metric  `json:"break_even_ratio"`
}

// Summary is the financial artifact produced at the join.
type Summary struct {
	Cost      Money            `json:"cost"`
	Currency  string           `json:"currency"`
	Primary   string           `json:"primary"`
	Scenarios []ScenarioResult `json:"scenarios"`
	Notes     []string         `json:"notes,omitempty"`
	Warnings  []string         `json:"warnings,omitempty"`
}

// Scenario returns the result named name, or nil.
func (s *Summary) Scenario(name string) *ScenarioResult {
	for i := range s.Scenarios {
		if s.Scenarios[i].Name == name {
			return &s.Scenarios[i]
		}
	}

	return nil
}

// PrimaryResult returns the result of the primary scenario.
func (s *Summary) PrimaryResult() *ScenarioResult {
	return s.Scenario(s.Primary)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
