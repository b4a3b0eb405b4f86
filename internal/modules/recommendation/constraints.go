package recommendation

import (
	"fmt"
	"math"
	"strconv"

	"github.com/reachplan/optimizer/internal/domain"
	"github.com/reachplan/optimizer/internal/modules/curves"
	"github.com/rs/zerolog"
)

// ConstraintBuilder translates foundational (structural) constraints and
// user-specified constraint specs into linear rows on the model context.
type ConstraintBuilder struct {
	log zerolog.Logger
}

// NewConstraintBuilder creates a new constraint builder.
func NewConstraintBuilder(log zerolog.Logger) *ConstraintBuilder {
	return &ConstraintBuilder{
		log: log.With().Str("component", "constraint_builder").Logger(),
	}
}

// DeclareVariables declares the full decision-variable set on the model:
// one boolean uplift selector per 7-dim tuple and the four continuous
// selected-value families per 6-dim tuple.
func (cb *ConstraintBuilder) DeclareVariables(m *Model, sets *DomainSets) error {
	for _, scope := range sets.Full().Sorted() {
		if _, err := m.AddBinary(VarUpliftSelect, scope); err != nil {
			return err
		}
	}
	for _, scope := range sets.FullScopes().Sorted() {
		for _, family := range ContinuousVars {
			if _, err := m.AddNonNegative(family, scope); err != nil {
				return err
			}
		}
	}

	cb.log.Debug().Int("vars", m.NumVars()).Msg("Declared decision variables")
	return nil
}

// BuildFoundational adds the structural constraints that make curve-point
// selection valid, independent of user configuration:
//
//	(a) Σ_u uplift_select[s,u] == 1           for every 6-dim scope s
//	(b) family_sel[s] == Σ_u value(s,u) · uplift_select[s,u]
//
// (b) linearizes "pick the row at the chosen uplift index" with the boolean
// indicator as a selector; it is exact because (a) forces exactly one
// indicator per scope to 1.
func (cb *ConstraintBuilder) BuildFoundational(m *Model, sets *DomainSets, table *curves.Table) error {
	// Group curve points by 6-dim scope so each curve is handled once.
	byCurve := make(map[domain.Scope][]curves.Point)
	for _, p := range table.Points {
		byCurve[p.CurveScope()] = append(byCurve[p.CurveScope()], p)
	}

	for _, scope := range sets.FullScopes().Sorted() {
		points := byCurve[scope]
		if len(points) == 0 {
			return fmt.Errorf("no uplift points for scope %s", scope)
		}

		selectorCoefs := make(map[int]float64, len(points))
		valueCoefs := map[string]map[int]float64{
			VarSpend:         make(map[int]float64, len(points)),
			VarSelloutValue:  make(map[int]float64, len(points)),
			VarSelloutVolume: make(map[int]float64, len(points)),
			VarMargin:        make(map[int]float64, len(points)),
		}

		for _, p := range points {
			col, ok := m.Column(VarUpliftSelect, p.Scope())
			if !ok {
				return fmt.Errorf("selector variable missing for %s", p.Scope())
			}
			selectorCoefs[col] = 1
			valueCoefs[VarSpend][col] = p.Spend
			valueCoefs[VarSelloutValue][col] = p.SelloutValue
			valueCoefs[VarSelloutVolume][col] = p.SelloutUnits
			valueCoefs[VarMargin][col] = p.MarginValue
		}

		// (a) exactly one point selected per curve.
		m.AddEquality("one_point_"+scope.SortKey(), selectorCoefs, 1)

		// (b) each continuous variable equals the selected curve value.
		for _, family := range ContinuousVars {
			col, ok := m.Column(family, scope)
			if !ok {
				return fmt.Errorf("variable %s missing for %s", family, scope)
			}
			coefs := make(map[int]float64, len(valueCoefs[family])+1)
			for c, v := range valueCoefs[family] {
				coefs[c] = -v
			}
			coefs[col] = 1
			m.AddEquality(family+"_link_"+scope.SortKey(), coefs, 0)
		}
	}

	cb.log.Debug().Int("rows", m.NumRows()).Msg("Built foundational constraints")
	return nil
}

// BuildUserConstraints translates each constraint spec into a row summing
// the named family over every full-granularity tuple matching the spec's
// scope. All specs are applied simultaneously; an infeasible combination
// surfaces as solver infeasibility, not a build error.
func (cb *ConstraintBuilder) BuildUserConstraints(m *Model, sets *DomainSets, specs []ConstraintSpec) error {
	for i, spec := range specs {
		family, err := VarForKPI(spec.KPI)
		if err != nil {
			return err
		}

		// The spec's dimension combination must name a declared domain set.
		dims := spec.Scope.Dims()
		if len(dims) > 0 {
			setName := domain.SetName(dims)
			if _, ok := sets.Get(setName); !ok {
				return fmt.Errorf("constraint %d references undeclared domain set %q", i, setName)
			}
		}

		coefs := make(map[int]float64)
		for _, scope := range sets.FullScopes().Sorted() {
			if !spec.Scope.Matches(scope) {
				continue
			}
			col, ok := m.Column(family, scope)
			if !ok {
				return fmt.Errorf("variable %s missing for %s", family, scope)
			}
			coefs[col] = 1
		}

		if len(coefs) == 0 {
			// Empty sum: the constraint binds nothing. Vacuously
			// satisfiable, likely a scope typo, so surface it in logs.
			cb.log.Warn().
				Str("scope", spec.Scope.String()).
				Str("kpi", spec.KPI).
				Msg("Constraint scope matches no tuples")
		}

		name := "user_" + strconv.Itoa(i)
		switch spec.Op {
		case OpLE:
			m.AddRow(Row{Name: name, Coefs: coefs, Lower: math.Inf(-1), Upper: spec.Bound})
		case OpGE:
			m.AddRow(Row{Name: name, Coefs: coefs, Lower: spec.Bound, Upper: math.Inf(1)})
		case OpEQ:
			m.AddEquality(name, coefs, spec.Bound)
		default:
			return fmt.Errorf("constraint %d has unknown operator %q", i, spec.Op)
		}
	}

	cb.log.Debug().Int("user_constraints", len(specs)).Msg("Built user constraints")
	return nil
}
