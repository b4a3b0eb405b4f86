package recommendation

import (
	"github.com/reachplan/optimizer/internal/domain"
	"github.com/reachplan/optimizer/internal/modules/curves"
	"github.com/reachplan/optimizer/internal/modules/finance"
	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func pt(brand, channel, segment string, uplift int, spend, sellout float64) curves.Point {
	return curves.Point{
		Region:       "emea",
		Market:       "de",
		Brand:        brand,
		Channel:      channel,
		Specialty:    "gp",
		Segment:      segment,
		UpliftIdx:    uplift,
		Spend:        spend,
		SelloutValue: sellout,
		SelloutUnits: sellout / 10,
		MarginValue:  sellout * 0.5,
		IsReference:  uplift == curves.ReferenceUplift,
	}
}

// fixtureTable holds two three-point curves for distinct brands in one
// market. The reference points sit at uplift 1.
func fixtureTable() *curves.Table {
	points := []curves.Point{
		pt("alpha", "f2f", "high", 0, 0, 0),
		pt("alpha", "f2f", "high", 1, 100, 300),
		pt("alpha", "f2f", "high", 2, 200, 420),
		pt("beta", "digital", "low", 0, 0, 0),
		pt("beta", "digital", "low", 1, 50, 120),
		pt("beta", "digital", "low", 2, 150, 300),
	}
	return curves.NewTable(points, true)
}

func alphaScope() domain.Scope {
	return domain.Scope{"emea", "de", "alpha", "f2f", "gp", "high"}
}

func betaScope() domain.Scope {
	return domain.Scope{"emea", "de", "beta", "digital", "gp", "low"}
}

func fixtureFinancials() map[finance.BrandKey]finance.Financials {
	alpha := finance.BrandKey{Region: "emea", Market: "de", Brand: "alpha"}
	beta := finance.BrandKey{Region: "emea", Market: "de", Brand: "beta"}
	return map[finance.BrandKey]finance.Financials{
		alpha: {BrandKey: alpha, PricePerUnit: 10, GrossMarginPct: 0.6},
		beta:  {BrandKey: beta, PricePerUnit: 5, GrossMarginPct: 0.4},
	}
}

func fixtureBaselineSales() map[finance.BrandKey]float64 {
	return map[finance.BrandKey]float64{
		{Region: "emea", Market: "de", Brand: "alpha"}: 1000,
		{Region: "emea", Market: "de", Brand: "beta"}:  500,
	}
}

func fixtureParams() *RefParams {
	extractor := NewParameterExtractor(testLogger())
	params, err := extractor.Extract(fixtureTable(), fixtureFinancials(), fixtureBaselineSales())
	if err != nil {
		panic(err)
	}
	return params
}

func fixtureSets() *DomainSets {
	sets, err := NewDomainBuilder(testLogger()).Build(fixtureTable())
	if err != nil {
		panic(err)
	}
	return sets
}

// fixtureAssignment selects the reference point on both curves.
func fixtureAssignment() Assignment {
	table := fixtureTable()
	a := Assignment{
		VarUpliftSelect:  make(map[domain.Scope]float64),
		VarSpend:         make(map[domain.Scope]float64),
		VarSelloutValue:  make(map[domain.Scope]float64),
		VarSelloutVolume: make(map[domain.Scope]float64),
		VarMargin:        make(map[domain.Scope]float64),
	}
	for _, p := range table.Points {
		selected := 0.0
		if p.UpliftIdx == curves.ReferenceUplift {
			selected = 1.0
			scope := p.CurveScope()
			a[VarSpend][scope] = p.Spend
			a[VarSelloutValue][scope] = p.SelloutValue
			a[VarSelloutVolume][scope] = p.SelloutUnits
			a[VarMargin][scope] = p.MarginValue
		}
		a[VarUpliftSelect][p.Scope()] = selected
	}
	return a
}
