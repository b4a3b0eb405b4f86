// Package finance holds the reference financial inputs: per-brand price and
// gross-margin figures, and per-(market, brand) budget targets.
package finance

// BrandKey identifies a brand at the (region, market, brand) granularity.
// Financial parameters cannot be attributed below brand level.
type BrandKey struct {
	Region string
	Market string
	Brand  string
}

// Financials holds reference-year financial parameters for one brand.
type Financials struct {
	BrandKey
	PricePerUnit   float64
	GrossMarginPct float64 // fraction, 0..1
}

// BudgetKey identifies a budget row at (market, brand) granularity.
type BudgetKey struct {
	Market string
	Brand  string
}

// Budget holds the planning targets for one (market, brand).
type Budget struct {
	BudgetKey
	TargetSpend float64
	TargetSales float64
	TargetOpex  float64
}
