package recommendation

import (
	"math"
	"testing"

	"github.com/reachplan/optimizer/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDeclaredModel(t *testing.T) (*Model, *DomainSets) {
	t.Helper()
	sets := fixtureSets()
	m := NewModel()
	require.NoError(t, NewConstraintBuilder(testLogger()).DeclareVariables(m, sets))
	return m, sets
}

func TestDeclareVariables(t *testing.T) {
	m, _ := buildDeclaredModel(t)

	// 6 uplift selectors plus 4 continuous families on 2 curves.
	assert.Equal(t, 6+2*4, m.NumVars())

	col, ok := m.Column(VarUpliftSelect, domain.Scope{"emea", "de", "alpha", "f2f", "gp", "high", "1"})
	require.True(t, ok)
	assert.True(t, m.Vars()[col].Integer)
	assert.Equal(t, 1.0, m.Vars()[col].Upper)

	col, ok = m.Column(VarSpend, alphaScope())
	require.True(t, ok)
	assert.False(t, m.Vars()[col].Integer)
	assert.True(t, math.IsInf(m.Vars()[col].Upper, 1))
}

func TestBuildFoundationalRowCount(t *testing.T) {
	m, sets := buildDeclaredModel(t)
	require.NoError(t, NewConstraintBuilder(testLogger()).BuildFoundational(m, sets, fixtureTable()))

	// Per curve: one exactly-one row plus one linking row per continuous
	// family.
	assert.Equal(t, 2*(1+4), m.NumRows())
}

func TestBuildFoundationalLinkingCoefficients(t *testing.T) {
	m, sets := buildDeclaredModel(t)
	require.NoError(t, NewConstraintBuilder(testLogger()).BuildFoundational(m, sets, fixtureTable()))

	spendCol, ok := m.Column(VarSpend, alphaScope())
	require.True(t, ok)
	sel1, ok := m.Column(VarUpliftSelect, domain.Scope{"emea", "de", "alpha", "f2f", "gp", "high", "1"})
	require.True(t, ok)
	sel2, ok := m.Column(VarUpliftSelect, domain.Scope{"emea", "de", "alpha", "f2f", "gp", "high", "2"})
	require.True(t, ok)

	var linkRow *Row
	for i, row := range m.Rows() {
		if _, hasSpend := row.Coefs[spendCol]; hasSpend && row.Coefs[spendCol] == 1 {
			linkRow = &m.Rows()[i]
			break
		}
	}
	require.NotNil(t, linkRow, "spend linking row not found")

	// spend_sel - Σ spend(u)·select(u) == 0
	assert.Equal(t, 0.0, linkRow.Lower)
	assert.Equal(t, 0.0, linkRow.Upper)
	assert.Equal(t, -100.0, linkRow.Coefs[sel1])
	assert.Equal(t, -200.0, linkRow.Coefs[sel2])
}

func TestBuildFoundationalExactlyOneRow(t *testing.T) {
	m, sets := buildDeclaredModel(t)
	require.NoError(t, NewConstraintBuilder(testLogger()).BuildFoundational(m, sets, fixtureTable()))

	sel0, _ := m.Column(VarUpliftSelect, domain.Scope{"emea", "de", "alpha", "f2f", "gp", "high", "0"})
	sel1, _ := m.Column(VarUpliftSelect, domain.Scope{"emea", "de", "alpha", "f2f", "gp", "high", "1"})
	sel2, _ := m.Column(VarUpliftSelect, domain.Scope{"emea", "de", "alpha", "f2f", "gp", "high", "2"})

	found := false
	for _, row := range m.Rows() {
		if len(row.Coefs) == 3 && row.Coefs[sel0] == 1 && row.Coefs[sel1] == 1 && row.Coefs[sel2] == 1 {
			assert.Equal(t, 1.0, row.Lower)
			assert.Equal(t, 1.0, row.Upper)
			found = true
		}
	}
	assert.True(t, found, "exactly-one row not found")
}

func TestBuildUserConstraintScopeAggregation(t *testing.T) {
	m, sets := buildDeclaredModel(t)
	cb := NewConstraintBuilder(testLogger())
	require.NoError(t, cb.BuildFoundational(m, sets, fixtureTable()))
	rowsBefore := m.NumRows()

	specs := []ConstraintSpec{{
		Scope: domain.Scope{domain.Wildcard, "de", "alpha"},
		KPI:   "spend",
		Op:    OpLE,
		Bound: 120,
	}}
	require.NoError(t, cb.BuildUserConstraints(m, sets, specs))
	require.Equal(t, rowsBefore+1, m.NumRows())

	row := m.Rows()[m.NumRows()-1]
	alphaCol, _ := m.Column(VarSpend, alphaScope())
	betaCol, _ := m.Column(VarSpend, betaScope())

	// Only the matching brand's spend variable enters the sum.
	assert.Equal(t, 1.0, row.Coefs[alphaCol])
	assert.NotContains(t, row.Coefs, betaCol)
	assert.True(t, math.IsInf(row.Lower, -1))
	assert.Equal(t, 120.0, row.Upper)
}

func TestBuildUserConstraintOperators(t *testing.T) {
	m, sets := buildDeclaredModel(t)
	cb := NewConstraintBuilder(testLogger())

	specs := []ConstraintSpec{
		{Scope: domain.Scope{}, KPI: "sellout_value", Op: OpGE, Bound: 10},
		{Scope: domain.Scope{}, KPI: "margin", Op: OpEQ, Bound: 42},
	}
	require.NoError(t, cb.BuildUserConstraints(m, sets, specs))

	ge := m.Rows()[m.NumRows()-2]
	assert.Equal(t, 10.0, ge.Lower)
	assert.True(t, math.IsInf(ge.Upper, 1))

	eq := m.Rows()[m.NumRows()-1]
	assert.Equal(t, 42.0, eq.Lower)
	assert.Equal(t, 42.0, eq.Upper)
}

func TestBuildUserConstraintUnknownKPI(t *testing.T) {
	m, sets := buildDeclaredModel(t)
	err := NewConstraintBuilder(testLogger()).BuildUserConstraints(m, sets, []ConstraintSpec{
		{Scope: domain.Scope{}, KPI: "velocity", Op: OpLE, Bound: 1},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown KPI")
}

func TestBuildUserConstraintUnknownOperator(t *testing.T) {
	m, sets := buildDeclaredModel(t)
	err := NewConstraintBuilder(testLogger()).BuildUserConstraints(m, sets, []ConstraintSpec{
		{Scope: domain.Scope{}, KPI: "spend", Op: "<", Bound: 1},
	})
	require.Error(t, err)
}

func TestBuildUserConstraintVacuousScope(t *testing.T) {
	m, sets := buildDeclaredModel(t)

	// A scope matching no tuples yields an empty sum. That still builds; the
	// solver sees a row with no coefficients.
	err := NewConstraintBuilder(testLogger()).BuildUserConstraints(m, sets, []ConstraintSpec{
		{Scope: domain.Scope{domain.Wildcard, "fr"}, KPI: "spend", Op: OpLE, Bound: 100},
	})
	require.NoError(t, err)
}
