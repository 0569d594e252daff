/*
Package factory provides JSON to Go rules conversion.

PURPOSE:
  Converts JSON scenario rule definitions into merit.Rules. This
  enables rule configuration without code changes - comp admins can
  define a scenario's parameters in JSON, stored alongside the
  scenario row, and the factory creates the proper Go struct with
  defaults filled in.

JSON SCHEMA:
  {
    "comp_basis": "BASE_SALARY",
    "budget_pct": 0.03,
    "step_factor": 0.005,
    "thresholds": [0.8, 1.0, 1.2],
    "standard_weekly_hours": 40
  }

  Every field is optional; omitted fields fall back to the engine
  defaults. Thresholds, when present, must be exactly three strictly
  ascending values.

KEY FEATURES:
  - Validates JSON structure with go-playground/validator tags
  - Sets engine defaults for omitted fields
  - Round-trips back to JSON for storage and UI display

USAGE:
  f := factory.NewRulesFactory()
  rules, err := f.ParseRules(jsonString)

SEE ALSO:
  - merit/types.go: Rules definition and Validate
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/warp/merit-engine/merit"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RulesJSON is the JSON representation of scenario rules. Pointer fields
// distinguish "omitted, use the default" from an explicit zero.
type RulesJSON struct {
	CompBasis           string    `json:"comp_basis,omitempty" validate:"omitempty,oneof=BASE_SALARY ANNUAL_TARGET_CASH TOTAL_GUARANTEED"`
	BudgetPct           *float64  `json:"budget_pct,omitempty" validate:"omitempty,gte=0,lte=1"`
	StepFactor          *float64  `json:"step_factor,omitempty" validate:"omitempty,gt=0"`
	Thresholds          []float64 `json:"thresholds,omitempty" validate:"omitempty,len=3"`
	StandardWeeklyHours *float64  `json:"standard_weekly_hours,omitempty" validate:"omitempty,gt=0,lte=168"`
}

// =============================================================================
// RULES FACTORY
// =============================================================================

// RulesFactory converts JSON rules to merit.Rules.
type RulesFactory struct {
	validate *validator.Validate
}

// NewRulesFactory creates a new rules factory.
func NewRulesFactory() *RulesFactory {
	return &RulesFactory{validate: validator.New()}
}

// ParseRules parses a JSON string into merit.Rules with defaults applied.
// An empty string yields the engine defaults.
func (f *RulesFactory) ParseRules(jsonStr string) (merit.Rules, error) {
	if jsonStr == "" {
		return merit.DefaultRules(), nil
	}
	var rj RulesJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return merit.Rules{}, fmt.Errorf("failed to parse rules JSON: %w", err)
	}
	return f.FromJSON(rj)
}

// FromJSON converts RulesJSON to merit.Rules, filling omitted fields with
// the engine defaults and validating the result.
func (f *RulesFactory) FromJSON(rj RulesJSON) (merit.Rules, error) {
	if err := f.validate.Struct(rj); err != nil {
		return merit.Rules{}, fmt.Errorf("invalid rules: %w", err)
	}

	rules := merit.DefaultRules()
	if rj.CompBasis != "" {
		rules.CompBasis = merit.CompBasis(rj.CompBasis)
	}
	if rj.BudgetPct != nil {
		rules.BudgetPct = decimal.NewFromFloat(*rj.BudgetPct)
	}
	if rj.StepFactor != nil {
		rules.StepFactor = decimal.NewFromFloat(*rj.StepFactor)
	}
	if len(rj.Thresholds) == 3 {
		rules.Threshold1 = decimal.NewFromFloat(rj.Thresholds[0])
		rules.Threshold2 = decimal.NewFromFloat(rj.Thresholds[1])
		rules.Threshold3 = decimal.NewFromFloat(rj.Thresholds[2])
	}
	if rj.StandardWeeklyHours != nil {
		rules.StandardWeeklyHours = decimal.NewFromFloat(*rj.StandardWeeklyHours)
	}

	if err := rules.Validate(); err != nil {
		return merit.Rules{}, err
	}
	return rules, nil
}

// ToJSON converts merit.Rules back to their JSON representation.
func (f *RulesFactory) ToJSON(rules merit.Rules) RulesJSON {
	budget, _ := rules.BudgetPct.Float64()
	step, _ := rules.StepFactor.Float64()
	t1, _ := rules.Threshold1.Float64()
	t2, _ := rules.Threshold2.Float64()
	t3, _ := rules.Threshold3.Float64()
	hours, _ := rules.StandardWeeklyHours.Float64()
	return RulesJSON{
		CompBasis:           string(rules.CompBasis),
		BudgetPct:           &budget,
		StepFactor:          &step,
		Thresholds:          []float64{t1, t2, t3},
		StandardWeeklyHours: &hours,
	}
}
