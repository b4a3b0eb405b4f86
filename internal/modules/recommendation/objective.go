package recommendation

import (
	"fmt"

	"github.com/reachplan/optimizer/internal/domain"
	"github.com/rs/zerolog"
)

// ObjectiveBuilder constructs the linear objective from the run settings.
// Four criteria are supported; all are linear sums of the continuous
// variables over the 6-dim domain, plus a baseline constant term that is
// additive but does not affect the optimum (kept so reported objective
// values line up with the summary figures).
type ObjectiveBuilder struct {
	log zerolog.Logger
}

// NewObjectiveBuilder creates a new objective builder.
func NewObjectiveBuilder(log zerolog.Logger) *ObjectiveBuilder {
	return &ObjectiveBuilder{
		log: log.With().Str("component", "objective_builder").Logger(),
	}
}

// Build installs the objective on the model. An unknown criterion is a
// configuration error reported before solving.
func (ob *ObjectiveBuilder) Build(m *Model, sets *DomainSets, params *RefParams, criterion string) error {
	costs := make(map[int]float64)

	sumFamily := func(family string, coef float64) error {
		for _, scope := range sets.FullScopes().Sorted() {
			col, ok := m.Column(family, scope)
			if !ok {
				return fmt.Errorf("variable %s missing for %s", family, scope)
			}
			costs[col] += coef
		}
		return nil
	}

	var obj Objective
	switch criterion {
	case ObjectiveSellout:
		if err := sumFamily(VarSelloutValue, 1); err != nil {
			return err
		}
		obj = Objective{Maximize: true, Costs: costs, Offset: params.BaselineSellout.Sum(domain.Scope{})}

	case ObjectiveSpend:
		if err := sumFamily(VarSpend, 1); err != nil {
			return err
		}
		obj = Objective{Maximize: false, Costs: costs}

	case ObjectiveMargin:
		if err := sumFamily(VarMargin, 1); err != nil {
			return err
		}
		obj = Objective{Maximize: true, Costs: costs, Offset: params.BaselineMargin.Sum(domain.Scope{})}

	case ObjectiveMarginMinusSpend:
		if err := sumFamily(VarMargin, 1); err != nil {
			return err
		}
		if err := sumFamily(VarSpend, -1); err != nil {
			return err
		}
		obj = Objective{Maximize: true, Costs: costs, Offset: params.BaselineMargin.Sum(domain.Scope{})}

	default:
		return fmt.Errorf("unknown objective criterion %q", criterion)
	}

	if err := m.SetObjective(obj); err != nil {
		return err
	}

	ob.log.Debug().
		Str("criterion", criterion).
		Bool("maximize", obj.Maximize).
		Float64("offset", obj.Offset).
		Msg("Built objective")

	return nil
}
