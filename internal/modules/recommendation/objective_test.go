package recommendation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectiveSelloutMaximizesWithBaselineOffset(t *testing.T) {
	m, sets := buildDeclaredModel(t)
	require.NoError(t, NewObjectiveBuilder(testLogger()).Build(m, sets, fixtureParams(), ObjectiveSellout))

	obj := m.Objective()
	require.NotNil(t, obj)
	assert.True(t, obj.Maximize)
	// Baseline sell-out across both brands.
	assert.InDelta(t, 1500.0, obj.Offset, 1e-9)

	alphaCol, _ := m.Column(VarSelloutValue, alphaScope())
	betaCol, _ := m.Column(VarSelloutValue, betaScope())
	assert.Equal(t, 1.0, obj.Costs[alphaCol])
	assert.Equal(t, 1.0, obj.Costs[betaCol])
	assert.Len(t, obj.Costs, 2)
}

func TestObjectiveSpendMinimizes(t *testing.T) {
	m, sets := buildDeclaredModel(t)
	require.NoError(t, NewObjectiveBuilder(testLogger()).Build(m, sets, fixtureParams(), ObjectiveSpend))

	obj := m.Objective()
	require.NotNil(t, obj)
	assert.False(t, obj.Maximize)
	assert.Equal(t, 0.0, obj.Offset)

	alphaCol, _ := m.Column(VarSpend, alphaScope())
	assert.Equal(t, 1.0, obj.Costs[alphaCol])
}

func TestObjectiveMarginMinusSpend(t *testing.T) {
	m, sets := buildDeclaredModel(t)
	params := fixtureParams()
	require.NoError(t, NewObjectiveBuilder(testLogger()).Build(m, sets, params, ObjectiveMarginMinusSpend))

	obj := m.Objective()
	require.NotNil(t, obj)
	assert.True(t, obj.Maximize)
	// Baseline margin: 1000·0.6 + 500·0.4.
	assert.InDelta(t, 800.0, obj.Offset, 1e-9)

	marginCol, _ := m.Column(VarMargin, alphaScope())
	spendCol, _ := m.Column(VarSpend, alphaScope())
	assert.Equal(t, 1.0, obj.Costs[marginCol])
	assert.Equal(t, -1.0, obj.Costs[spendCol])
}

func TestObjectiveUnknownCriterion(t *testing.T) {
	m, sets := buildDeclaredModel(t)
	err := NewObjectiveBuilder(testLogger()).Build(m, sets, fixtureParams(), "velocity")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown objective criterion")
}

func TestObjectiveCannotBeSetTwice(t *testing.T) {
	m, sets := buildDeclaredModel(t)
	ob := NewObjectiveBuilder(testLogger())
	require.NoError(t, ob.Build(m, sets, fixtureParams(), ObjectiveSellout))
	require.Error(t, ob.Build(m, sets, fixtureParams(), ObjectiveSpend))
}
