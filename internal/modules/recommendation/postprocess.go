package recommendation

import (
	"sort"

	"github.com/reachplan/optimizer/internal/domain"
	"github.com/reachplan/optimizer/internal/modules/curves"
	"github.com/reachplan/optimizer/internal/modules/finance"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
)

// Postprocessor maps a raw solution back onto the hierarchy: it re-applies
// budget rescaling, aggregates each hierarchy level, derives ROI/MROI for
// curve display, and computes deltas against the historical baseline.
type Postprocessor struct {
	log zerolog.Logger
}

// NewPostprocessor creates a new postprocessor.
func NewPostprocessor(log zerolog.Logger) *Postprocessor {
	return &Postprocessor{
		log: log.With().Str("component", "postprocessor").Logger(),
	}
}

func sortScopes(set ScopeSet) []domain.Scope {
	out := make([]domain.Scope, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SortKey() < out[j].SortKey()
	})
	return out
}

// ApplyBudgetScaling rescales all selected continuous variables for each
// (market, brand) by (target budget / reference spend), keeping the
// displayed allocation consistent with a budget target without re-solving.
// Scopes whose reference spend is zero are left untouched.
func (pp *Postprocessor) ApplyBudgetScaling(
	assignment Assignment,
	params *RefParams,
	budgets map[finance.BudgetKey]finance.Budget,
) {
	for key, budget := range budgets {
		filter := domain.Scope{domain.Wildcard, key.Market, key.Brand}
		refSpend := params.Spend.Sum(filter)
		if refSpend == 0 || budget.TargetSpend == refSpend {
			continue
		}

		factor := budget.TargetSpend / refSpend
		for _, family := range ContinuousVars {
			for scope, value := range assignment[family] {
				if filter.Matches(scope) {
					assignment[family][scope] = value * factor
				}
			}
		}

		pp.log.Debug().
			Str("market", key.Market).
			Str("brand", key.Brand).
			Float64("factor", factor).
			Msg("Applied budget scaling")
	}
}

// scopeValues supplies the full-granularity KPI values of one run
// (optimized assignment or historical reference dictionaries).
type scopeValues func(scope domain.Scope) KPIBundle

// OptimizedValues adapts a solver assignment to a value source.
func OptimizedValues(assignment Assignment) func(domain.Scope) KPIBundle {
	return func(scope domain.Scope) KPIBundle {
		return KPIBundle{
			Spend:         assignment.Value(VarSpend, scope),
			SelloutValue:  assignment.Value(VarSelloutValue, scope),
			SelloutVolume: assignment.Value(VarSelloutVolume, scope),
			Margin:        assignment.Value(VarMargin, scope),
		}
	}
}

// HistoricalValues adapts the reference dictionaries to a value source.
func HistoricalValues(params *RefParams) func(domain.Scope) KPIBundle {
	return func(scope domain.Scope) KPIBundle {
		return KPIBundle{
			Spend:         params.Spend.Get(scope),
			SelloutValue:  params.IncrementalSellout.Get(scope),
			SelloutVolume: params.IncrementalVolume.Get(scope),
			Margin:        params.IncrementalMargin.Get(scope),
		}
	}
}

// ArrangeResults aggregates full-granularity values up every level of the
// hierarchy. It is a pure function of its inputs: arranging the same
// solution twice yields identical output. Spend is negated in the final
// output (summary and every detail row) because it is a cost.
func (pp *Postprocessor) ArrangeResults(sets *DomainSets, params *RefParams, values scopeValues) ResultSet {
	fullScopes := sets.FullScopes().Sorted()

	// Incremental summary: sum every modeled scope.
	spends := make([]float64, 0, len(fullScopes))
	sellouts := make([]float64, 0, len(fullScopes))
	volumes := make([]float64, 0, len(fullScopes))
	margins := make([]float64, 0, len(fullScopes))
	for _, scope := range fullScopes {
		v := values(scope)
		spends = append(spends, v.Spend)
		sellouts = append(sellouts, v.SelloutValue)
		volumes = append(volumes, v.SelloutVolume)
		margins = append(margins, v.Margin)
	}
	incremental := KPIBundle{
		Spend:         floats.Sum(spends),
		SelloutValue:  floats.Sum(sellouts),
		SelloutVolume: floats.Sum(volumes),
		Margin:        floats.Sum(margins),
	}

	// Baseline (carryover) is the portion of the total not attributable to
	// any modeled touchpoint. Spend has no baseline component.
	carryover := KPIBundle{
		SelloutValue:  params.BaselineSellout.Sum(domain.Scope{}),
		SelloutVolume: params.BaselineVolume.Sum(domain.Scope{}),
		Margin:        params.BaselineMargin.Sum(domain.Scope{}),
	}

	total := KPIBundle{
		Spend:         incremental.Spend,
		SelloutValue:  incremental.SelloutValue + carryover.SelloutValue,
		SelloutVolume: incremental.SelloutVolume + carryover.SelloutVolume,
		Margin:        incremental.Margin + carryover.Margin,
	}

	carryoverPct := KPIBundle{
		SelloutValue:  safeRatio(carryover.SelloutValue, total.SelloutValue),
		SelloutVolume: safeRatio(carryover.SelloutVolume, total.SelloutVolume),
		Margin:        safeRatio(carryover.Margin, total.Margin),
	}

	// Per-level detail lists: aggregate by projecting each full scope onto
	// every hierarchy prefix and summing matching tuples.
	details := make(map[string][]DetailRow)
	for depth := 1; depth <= domain.NumScopeDims; depth++ {
		dims := domain.Dimensions[:depth]
		level := domain.SetName(dims)

		byScope := make(map[domain.Scope]KPIBundle)
		for _, scope := range fullScopes {
			key, err := scope.Project(dims)
			if err != nil {
				continue
			}
			agg := byScope[key]
			v := values(scope)
			agg.Spend += v.Spend
			agg.SelloutValue += v.SelloutValue
			agg.SelloutVolume += v.SelloutVolume
			agg.Margin += v.Margin
			byScope[key] = agg
		}

		rows := make([]DetailRow, 0, len(byScope))
		for scope, kpi := range byScope {
			kpi.Spend = -kpi.Spend
			rows = append(rows, DetailRow{Scope: scope, KPI: kpi})
		}
		sort.Slice(rows, func(i, j int) bool {
			return rows[i].Scope.SortKey() < rows[j].Scope.SortKey()
		})
		details[level] = rows
	}

	summary := Summary{
		Incremental:  negateSpend(incremental),
		Total:        negateSpend(total),
		Carryover:    carryover,
		CarryoverPct: carryoverPct,
	}

	return ResultSet{Summary: summary, Details: details}
}

func negateSpend(b KPIBundle) KPIBundle {
	b.Spend = -b.Spend
	return b
}

func safeRatio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// ArrangeCurves reshapes the response curves for display: every uplift
// point, sorted ascending, tagged with whether the solver selected it, and
// annotated with ROI and marginal ROI. Division by zero yields nil, and the
// last point of a curve always has nil MROI.
func (pp *Postprocessor) ArrangeCurves(table *curves.Table, assignment Assignment) []Curve {
	byCurve := make(map[domain.Scope][]curves.Point)
	for _, p := range table.Points {
		byCurve[p.CurveScope()] = append(byCurve[p.CurveScope()], p)
	}

	scopes := make([]domain.Scope, 0, len(byCurve))
	for s := range byCurve {
		scopes = append(scopes, s)
	}
	sort.Slice(scopes, func(i, j int) bool {
		return scopes[i].SortKey() < scopes[j].SortKey()
	})

	out := make([]Curve, 0, len(scopes))
	for _, scope := range scopes {
		points := byCurve[scope]
		sort.Slice(points, func(i, j int) bool {
			return points[i].UpliftIdx < points[j].UpliftIdx
		})

		display := make([]CurvePoint, len(points))
		for i, p := range points {
			selected := assignment.Value(VarUpliftSelect, p.Scope()) > 0.5
			display[i] = CurvePoint{
				Uplift:       p.UpliftIdx,
				Spend:        p.Spend,
				SelloutValue: p.SelloutValue,
				Margin:       p.MarginValue,
				ROI:          ratioPtr(p.SelloutValue, p.Spend),
				Selected:     selected,
			}
		}
		// Marginal ROI: one-step-forward difference; the last point has no
		// successor and stays nil.
		for i := 0; i < len(points)-1; i++ {
			display[i].MROI = ratioPtr(
				points[i+1].SelloutValue-points[i].SelloutValue,
				points[i+1].Spend-points[i].Spend,
			)
		}

		out = append(out, Curve{Scope: scope, Points: display})
	}
	return out
}

func ratioPtr(num, den float64) *float64 {
	if den == 0 {
		return nil
	}
	v := num / den
	return &v
}

// Delta computes optimized − historical for one KPI value. In relative mode
// the difference is divided by the historical value, with 0 substituted
// when the historical value is 0 so the delta never raises a division
// error.
func Delta(optimized, historical float64, absolute bool) float64 {
	diff := optimized - historical
	if absolute {
		return diff
	}
	if historical == 0 {
		return 0
	}
	return diff / historical
}

// DeltaPtr applies Delta with nil propagation: a delta where either operand
// is missing is itself missing.
func DeltaPtr(optimized, historical *float64, absolute bool) *float64 {
	if optimized == nil || historical == nil {
		return nil
	}
	v := Delta(*optimized, *historical, absolute)
	return &v
}

func deltaBundle(opt, hist KPIBundle, absolute bool) KPIBundle {
	return KPIBundle{
		Spend:         Delta(opt.Spend, hist.Spend, absolute),
		SelloutValue:  Delta(opt.SelloutValue, hist.SelloutValue, absolute),
		SelloutVolume: Delta(opt.SelloutVolume, hist.SelloutVolume, absolute),
		Margin:        Delta(opt.Margin, hist.Margin, absolute),
	}
}

// ComputeDeltas pairs the optimized and historical result sets and computes
// per-KPI deltas for the summary and for every detail row. Detail lists are
// sorted by scope key on both sides before pairing; ordering is total
// because wildcards sort as empty strings.
func (pp *Postprocessor) ComputeDeltas(optimized, historical ResultSet, absolute bool) ResultSet {
	out := ResultSet{
		Summary: Summary{
			Incremental:  deltaBundle(optimized.Summary.Incremental, historical.Summary.Incremental, absolute),
			Total:        deltaBundle(optimized.Summary.Total, historical.Summary.Total, absolute),
			Carryover:    deltaBundle(optimized.Summary.Carryover, historical.Summary.Carryover, absolute),
			CarryoverPct: deltaBundle(optimized.Summary.CarryoverPct, historical.Summary.CarryoverPct, absolute),
		},
		Details: make(map[string][]DetailRow, len(optimized.Details)),
	}

	for level, optRows := range optimized.Details {
		histRows := historical.Details[level]
		histByScope := make(map[domain.Scope]KPIBundle, len(histRows))
		for _, row := range histRows {
			histByScope[row.Scope] = row.KPI
		}

		rows := make([]DetailRow, 0, len(optRows))
		for _, row := range optRows {
			hist, ok := histByScope[row.Scope]
			if !ok {
				continue
			}
			rows = append(rows, DetailRow{
				Scope: row.Scope,
				KPI:   deltaBundle(row.KPI, hist, absolute),
			})
		}
		sort.Slice(rows, func(i, j int) bool {
			return rows[i].Scope.SortKey() < rows[j].Scope.SortKey()
		})
		out.Details[level] = rows
	}

	return out
}
