package factory_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/merit-engine/factory"
	"github.com/warp/merit-engine/merit"
)

func TestParseRules_EmptyMeansDefaults(t *testing.T) {
	f := factory.NewRulesFactory()

	rules, err := f.ParseRules("")
	require.NoError(t, err)
	assert.Equal(t, merit.DefaultRules(), rules)
}

func TestParseRules_PartialJSONFillsDefaults(t *testing.T) {
	// GIVEN: JSON setting only the budget and step
	// WHEN: Parsing
	// THEN: Unset parameters come from the defaults

	f := factory.NewRulesFactory()

	rules, err := f.ParseRules(`{"budget_pct": 0.05, "step_factor": 0.01}`)
	require.NoError(t, err)
	assert.True(t, rules.BudgetPct.Equal(decimal.NewFromFloat(0.05)))
	assert.True(t, rules.StepFactor.Equal(decimal.NewFromFloat(0.01)))
	assert.Equal(t, merit.BasisBaseSalary, rules.CompBasis)
	assert.True(t, rules.Threshold2.Equal(decimal.NewFromInt(1)))
}

func TestParseRules_FullDocument(t *testing.T) {
	f := factory.NewRulesFactory()

	rules, err := f.ParseRules(`{
		"comp_basis": "ANNUAL_TARGET_CASH",
		"budget_pct": 0.04,
		"step_factor": 0.0075,
		"thresholds": [0.85, 1.0, 1.15],
		"standard_weekly_hours": 37.5
	}`)
	require.NoError(t, err)
	assert.Equal(t, merit.BasisTargetCash, rules.CompBasis)
	assert.True(t, rules.Threshold1.Equal(decimal.NewFromFloat(0.85)))
	assert.True(t, rules.Threshold3.Equal(decimal.NewFromFloat(1.15)))
	assert.True(t, rules.StandardWeeklyHours.Equal(decimal.NewFromFloat(37.5)))
}

func TestParseRules_RejectsBadInput(t *testing.T) {
	f := factory.NewRulesFactory()

	cases := map[string]string{
		"unknown basis":        `{"comp_basis": "EQUITY"}`,
		"negative budget":      `{"budget_pct": -0.01}`,
		"budget above one":     `{"budget_pct": 1.5}`,
		"zero step":            `{"step_factor": 0}`,
		"two thresholds":       `{"thresholds": [0.8, 1.0]}`,
		"unordered thresholds": `{"thresholds": [1.0, 0.8, 1.2]}`,
		"impossible work week": `{"standard_weekly_hours": 200}`,
		"not json":             `{"budget_pct"`,
	}
	for name, doc := range cases {
		_, err := f.ParseRules(doc)
		assert.Error(t, err, name)
	}
}

func TestToJSON_RoundTrips(t *testing.T) {
	f := factory.NewRulesFactory()
	rules := merit.DefaultRules()
	rules.BudgetPct = decimal.NewFromFloat(0.025)

	back, err := f.FromJSON(f.ToJSON(rules))
	require.NoError(t, err)
	assert.True(t, back.BudgetPct.Equal(rules.BudgetPct))
	assert.Equal(t, rules.CompBasis, back.CompBasis)
	assert.True(t, back.Threshold3.Equal(rules.Threshold3))
}
