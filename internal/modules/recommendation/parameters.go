package recommendation

import (
	"fmt"

	"github.com/reachplan/optimizer/internal/domain"
	"github.com/reachplan/optimizer/internal/modules/curves"
	"github.com/reachplan/optimizer/internal/modules/finance"
	"github.com/rs/zerolog"
)

// RefValues maps scope tuples to a reference-year scalar. Lookups for
// missing tuples return zero: the domain sets are the union across all
// scopes and any one scope need not have data for every KPI.
type RefValues map[domain.Scope]float64

// Get returns the value for a scope, zero when absent.
func (v RefValues) Get(s domain.Scope) float64 {
	return v[s]
}

// Sum aggregates the values of every tuple matching the (possibly
// wildcarded) scope.
func (v RefValues) Sum(scope domain.Scope) float64 {
	total := 0.0
	for s, val := range v {
		if scope.Matches(s) {
			total += val
		}
	}
	return total
}

// RefParams holds every reference parameter dictionary for one run.
// Incremental values are keyed at full 6-dim granularity; baseline values at
// brand granularity, since baseline sales cannot be attributed below brand
// level. All dictionaries are read-only once built.
type RefParams struct {
	Spend              RefValues // 6-dim
	IncrementalSellout RefValues // 6-dim
	IncrementalVolume  RefValues // 6-dim
	IncrementalMargin  RefValues // 6-dim
	BaselineSellout    RefValues // brand (region, market, brand)
	BaselineVolume     RefValues // brand
	BaselineMargin     RefValues // brand
	GrossMarginPct     map[finance.BrandKey]float64
	PricePerUnit       map[finance.BrandKey]float64
}

// ParameterExtractor derives reference-year spend, sell-out and margin
// dictionaries from the uplift == 1 subset of the response-curve table.
// These serve both as optimization parameters and as the historical baseline
// for comparison.
type ParameterExtractor struct {
	log zerolog.Logger
}

// NewParameterExtractor creates a new parameter extractor.
func NewParameterExtractor(log zerolog.Logger) *ParameterExtractor {
	return &ParameterExtractor{
		log: log.With().Str("component", "parameter_extractor").Logger(),
	}
}

// Extract runs the three extraction passes. Baseline sell-out rows come from
// the finance inputs (price and margin percentage per brand); a table
// without unit columns yields constant-zero volume dictionaries rather than
// failing.
func (e *ParameterExtractor) Extract(
	table *curves.Table,
	financials map[finance.BrandKey]finance.Financials,
	baselineSales map[finance.BrandKey]float64,
) (*RefParams, error) {
	refPoints := table.ReferencePoints()
	if len(refPoints) == 0 {
		return nil, fmt.Errorf("no reference points (uplift=%d) in response-curve table", curves.ReferenceUplift)
	}

	params := &RefParams{
		Spend:              make(RefValues, len(refPoints)),
		IncrementalSellout: make(RefValues, len(refPoints)),
		IncrementalVolume:  make(RefValues, len(refPoints)),
		IncrementalMargin:  make(RefValues, len(refPoints)),
		BaselineSellout:    make(RefValues),
		BaselineVolume:     make(RefValues),
		BaselineMargin:     make(RefValues),
		GrossMarginPct:     make(map[finance.BrandKey]float64, len(financials)),
		PricePerUnit:       make(map[finance.BrandKey]float64, len(financials)),
	}

	for key, f := range financials {
		params.GrossMarginPct[key] = f.GrossMarginPct
		params.PricePerUnit[key] = f.PricePerUnit
	}

	// Pass 1: reference spend per full scope. Duplicate reference rows for
	// one scope are a data error; the source must carry exactly one point
	// at uplift 1 per curve.
	for _, p := range refPoints {
		scope := p.CurveScope()
		if _, exists := params.Spend[scope]; exists {
			return nil, fmt.Errorf("duplicate reference point for scope %s", scope)
		}
		params.Spend[scope] = p.Spend
	}

	// Pass 2: incremental sell-out per full scope; volume only when the
	// source reports units.
	for _, p := range refPoints {
		scope := p.CurveScope()
		params.IncrementalSellout[scope] = p.SelloutValue
		if table.HasUnits {
			params.IncrementalVolume[scope] = p.SelloutUnits
		}
	}

	// Pass 3: gross margin = sell-out value × margin percentage, looked up
	// per (region, market, brand). Scopes without financials contribute
	// zero margin.
	for _, p := range refPoints {
		scope := p.CurveScope()
		key := finance.BrandKey{Region: p.Region, Market: p.Market, Brand: p.Brand}
		params.IncrementalMargin[scope] = p.SelloutValue * params.GrossMarginPct[key]
	}

	// Baseline values at brand granularity.
	for key, sales := range baselineSales {
		scope := domain.Scope{key.Region, key.Market, key.Brand}
		params.BaselineSellout[scope] = sales
		params.BaselineMargin[scope] = sales * params.GrossMarginPct[key]
		if price := params.PricePerUnit[key]; price > 0 {
			params.BaselineVolume[scope] = sales / price
		}
	}

	e.log.Debug().
		Int("scopes", len(params.Spend)).
		Int("brands", len(params.BaselineSellout)).
		Bool("has_units", table.HasUnits).
		Msg("Extracted reference parameters")

	return params, nil
}
