package recommendation

import (
	"testing"

	"github.com/reachplan/optimizer/internal/domain"
	"github.com/reachplan/optimizer/internal/modules/finance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArrangeResultsSummary(t *testing.T) {
	pp := NewPostprocessor(testLogger())
	result := pp.ArrangeResults(fixtureSets(), fixtureParams(), OptimizedValues(fixtureAssignment()))

	// Spend is a cost and is reported negated.
	assert.InDelta(t, -150.0, result.Summary.Incremental.Spend, 1e-9)
	assert.InDelta(t, 420.0, result.Summary.Incremental.SelloutValue, 1e-9)
	assert.InDelta(t, 42.0, result.Summary.Incremental.SelloutVolume, 1e-9)
	assert.InDelta(t, 210.0, result.Summary.Incremental.Margin, 1e-9)

	// Carryover comes from the brand baselines; spend has none.
	assert.Equal(t, 0.0, result.Summary.Carryover.Spend)
	assert.InDelta(t, 1500.0, result.Summary.Carryover.SelloutValue, 1e-9)
	assert.InDelta(t, 200.0, result.Summary.Carryover.SelloutVolume, 1e-9)

	assert.InDelta(t, 420.0+1500.0, result.Summary.Total.SelloutValue, 1e-9)
	assert.InDelta(t, 1500.0/1920.0, result.Summary.CarryoverPct.SelloutValue, 1e-9)
}

func TestArrangeResultsDetails(t *testing.T) {
	pp := NewPostprocessor(testLogger())
	result := pp.ArrangeResults(fixtureSets(), fixtureParams(), OptimizedValues(fixtureAssignment()))

	// Every hierarchy prefix depth gets a detail list.
	require.Len(t, result.Details, domain.NumScopeDims)

	regions := result.Details["region"]
	require.Len(t, regions, 1)
	assert.Equal(t, domain.Scope{"emea"}, regions[0].Scope)
	assert.InDelta(t, -150.0, regions[0].KPI.Spend, 1e-9)
	assert.InDelta(t, 420.0, regions[0].KPI.SelloutValue, 1e-9)

	brands := result.Details["region_market_brand"]
	require.Len(t, brands, 2)
	// Sorted by scope key: alpha before beta.
	assert.Equal(t, domain.Scope{"emea", "de", "alpha"}, brands[0].Scope)
	assert.InDelta(t, -100.0, brands[0].KPI.Spend, 1e-9)
	assert.InDelta(t, 300.0, brands[0].KPI.SelloutValue, 1e-9)
	assert.Equal(t, domain.Scope{"emea", "de", "beta"}, brands[1].Scope)
	assert.InDelta(t, 120.0, brands[1].KPI.SelloutValue, 1e-9)
}

func TestArrangeResultsIsIdempotent(t *testing.T) {
	pp := NewPostprocessor(testLogger())
	sets, params, assignment := fixtureSets(), fixtureParams(), fixtureAssignment()

	first := pp.ArrangeResults(sets, params, OptimizedValues(assignment))
	second := pp.ArrangeResults(sets, params, OptimizedValues(assignment))
	assert.Equal(t, first, second)
}

func TestApplyBudgetScaling(t *testing.T) {
	pp := NewPostprocessor(testLogger())
	assignment := fixtureAssignment()

	key := finance.BudgetKey{Market: "de", Brand: "alpha"}
	budgets := map[finance.BudgetKey]finance.Budget{
		key: {BudgetKey: key, TargetSpend: 50},
	}
	pp.ApplyBudgetScaling(assignment, fixtureParams(), budgets)

	// Alpha reference spend is 100, target 50: everything halves.
	assert.InDelta(t, 50.0, assignment.Value(VarSpend, alphaScope()), 1e-9)
	assert.InDelta(t, 150.0, assignment.Value(VarSelloutValue, alphaScope()), 1e-9)
	// Beta has no budget row and is untouched.
	assert.InDelta(t, 50.0, assignment.Value(VarSpend, betaScope()), 1e-9)
	assert.InDelta(t, 120.0, assignment.Value(VarSelloutValue, betaScope()), 1e-9)
}

func TestApplyBudgetScalingSkipsZeroReferenceSpend(t *testing.T) {
	pp := NewPostprocessor(testLogger())
	assignment := fixtureAssignment()

	key := finance.BudgetKey{Market: "de", Brand: "gamma"}
	budgets := map[finance.BudgetKey]finance.Budget{
		key: {BudgetKey: key, TargetSpend: 500},
	}
	pp.ApplyBudgetScaling(assignment, fixtureParams(), budgets)

	assert.InDelta(t, 100.0, assignment.Value(VarSpend, alphaScope()), 1e-9)
}

func TestArrangeCurves(t *testing.T) {
	pp := NewPostprocessor(testLogger())
	curvesOut := pp.ArrangeCurves(fixtureTable(), fixtureAssignment())
	require.Len(t, curvesOut, 2)

	alpha := curvesOut[0]
	assert.Equal(t, alphaScope(), alpha.Scope)
	require.Len(t, alpha.Points, 3)

	// Points ordered by uplift; the reference point is the selected one.
	assert.Equal(t, []int{0, 1, 2}, []int{alpha.Points[0].Uplift, alpha.Points[1].Uplift, alpha.Points[2].Uplift})
	assert.False(t, alpha.Points[0].Selected)
	assert.True(t, alpha.Points[1].Selected)
	assert.False(t, alpha.Points[2].Selected)

	// ROI is nil at zero spend.
	assert.Nil(t, alpha.Points[0].ROI)
	require.NotNil(t, alpha.Points[1].ROI)
	assert.InDelta(t, 3.0, *alpha.Points[1].ROI, 1e-9)

	// MROI is the forward difference; the last point has none.
	require.NotNil(t, alpha.Points[0].MROI)
	assert.InDelta(t, 3.0, *alpha.Points[0].MROI, 1e-9)
	require.NotNil(t, alpha.Points[1].MROI)
	assert.InDelta(t, 1.2, *alpha.Points[1].MROI, 1e-9)
	assert.Nil(t, alpha.Points[2].MROI)
}

func TestArrangeCurvesZeroSpendStepMROI(t *testing.T) {
	pp := NewPostprocessor(testLogger())
	table := fixtureTable()
	// Make the first step free: spend does not change between uplift 0 and 1.
	table.Points[1].Spend = 0

	curvesOut := pp.ArrangeCurves(table, fixtureAssignment())
	assert.Nil(t, curvesOut[0].Points[0].MROI)
}

func TestDelta(t *testing.T) {
	assert.Equal(t, 5.0, Delta(15, 10, true))
	assert.Equal(t, 0.5, Delta(15, 10, false))
	// Relative deltas against a zero baseline collapse to zero.
	assert.Equal(t, 0.0, Delta(15, 0, false))
	assert.Equal(t, 15.0, Delta(15, 0, true))
}

func TestDeltaPtrPropagatesNil(t *testing.T) {
	v := 2.0
	assert.Nil(t, DeltaPtr(nil, &v, true))
	assert.Nil(t, DeltaPtr(&v, nil, true))
	got := DeltaPtr(&v, &v, true)
	require.NotNil(t, got)
	assert.Equal(t, 0.0, *got)
}

func TestComputeDeltas(t *testing.T) {
	pp := NewPostprocessor(testLogger())
	sets, params := fixtureSets(), fixtureParams()

	optimized := pp.ArrangeResults(sets, params, OptimizedValues(fixtureAssignment()))
	historical := pp.ArrangeResults(sets, params, HistoricalValues(params))

	abs := pp.ComputeDeltas(optimized, historical, true)

	// The reference assignment reproduces historical spend and sell-out.
	assert.InDelta(t, 0.0, abs.Summary.Incremental.Spend, 1e-9)
	assert.InDelta(t, 0.0, abs.Summary.Incremental.SelloutValue, 1e-9)
	// Curve margin uses the table margin column, historical margin the
	// financial percentages, so the two differ.
	assert.InDelta(t, 210.0-228.0, abs.Summary.Incremental.Margin, 1e-9)

	rel := pp.ComputeDeltas(optimized, historical, false)
	assert.InDelta(t, (210.0-228.0)/228.0, rel.Summary.Incremental.Margin, 1e-9)

	// Detail rows pair by scope at every level.
	brands := abs.Details["region_market_brand"]
	require.Len(t, brands, 2)
	assert.InDelta(t, 0.0, brands[0].KPI.Spend, 1e-9)
}
