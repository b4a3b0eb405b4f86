package recommendation

import (
	"testing"

	"github.com/reachplan/optimizer/internal/domain"
	"github.com/reachplan/optimizer/internal/modules/curves"
	"github.com/reachplan/optimizer/internal/modules/finance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractReferenceDictionaries(t *testing.T) {
	params := fixtureParams()

	assert.Equal(t, 100.0, params.Spend.Get(alphaScope()))
	assert.Equal(t, 50.0, params.Spend.Get(betaScope()))
	assert.Equal(t, 300.0, params.IncrementalSellout.Get(alphaScope()))
	assert.Equal(t, 30.0, params.IncrementalVolume.Get(alphaScope()))

	// Margin applies each brand's gross-margin percentage to sell-out.
	assert.InDelta(t, 300*0.6, params.IncrementalMargin.Get(alphaScope()), 1e-9)
	assert.InDelta(t, 120*0.4, params.IncrementalMargin.Get(betaScope()), 1e-9)
}

func TestExtractBaselines(t *testing.T) {
	params := fixtureParams()

	alpha := domain.Scope{"emea", "de", "alpha"}
	assert.Equal(t, 1000.0, params.BaselineSellout.Get(alpha))
	assert.InDelta(t, 1000*0.6, params.BaselineMargin.Get(alpha), 1e-9)
	assert.InDelta(t, 1000.0/10, params.BaselineVolume.Get(alpha), 1e-9)
}

func TestExtractZeroPriceSkipsBaselineVolume(t *testing.T) {
	financials := fixtureFinancials()
	key := finance.BrandKey{Region: "emea", Market: "de", Brand: "alpha"}
	f := financials[key]
	f.PricePerUnit = 0
	financials[key] = f

	params, err := NewParameterExtractor(testLogger()).Extract(fixtureTable(), financials, fixtureBaselineSales())
	require.NoError(t, err)
	assert.Equal(t, 0.0, params.BaselineVolume.Get(domain.Scope{"emea", "de", "alpha"}))
}

func TestExtractWithoutUnitsYieldsZeroVolume(t *testing.T) {
	table := fixtureTable()
	table.HasUnits = false

	params, err := NewParameterExtractor(testLogger()).Extract(table, fixtureFinancials(), fixtureBaselineSales())
	require.NoError(t, err)
	assert.Equal(t, 0.0, params.IncrementalVolume.Get(alphaScope()))
}

func TestExtractRejectsDuplicateReferencePoint(t *testing.T) {
	table := fixtureTable()
	table.Points = append(table.Points, pt("alpha", "f2f", "high", 1, 110, 310))

	_, err := NewParameterExtractor(testLogger()).Extract(table, fixtureFinancials(), fixtureBaselineSales())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate reference point")
}

func TestExtractRejectsTableWithoutReferencePoints(t *testing.T) {
	table := curves.NewTable([]curves.Point{pt("alpha", "f2f", "high", 0, 0, 0)}, true)

	_, err := NewParameterExtractor(testLogger()).Extract(table, fixtureFinancials(), fixtureBaselineSales())
	require.Error(t, err)
}

func TestRefValuesZeroDefault(t *testing.T) {
	params := fixtureParams()
	assert.Equal(t, 0.0, params.Spend.Get(domain.Scope{"emea", "de", "gamma", "f2f", "gp", "high"}))
}

func TestRefValuesWildcardSum(t *testing.T) {
	params := fixtureParams()

	assert.Equal(t, 150.0, params.Spend.Sum(domain.Scope{}))
	assert.Equal(t, 100.0, params.Spend.Sum(domain.Scope{domain.Wildcard, "de", "alpha"}))
	assert.Equal(t, 0.0, params.Spend.Sum(domain.Scope{domain.Wildcard, "fr"}))
}
