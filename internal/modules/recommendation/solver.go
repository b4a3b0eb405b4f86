package recommendation

import (
	"fmt"

	highs "github.com/bartolsthoorn/gohighs/highs"
	"github.com/reachplan/optimizer/internal/domain"
	"github.com/rs/zerolog"
)

// Solver hands an assembled model to an external solver and extracts the
// optimal assignment. Implementations map solver termination statuses onto
// the engine's failure taxonomy.
type Solver interface {
	Solve(m *Model, opts SolverOptions) (Assignment, error)
}

// HighsSolver solves the model with HiGHS. The solve step is the only
// long-running operation of a run; it is bounded by the configured time
// limit and optimality gap, and may use multiple threads internally.
type HighsSolver struct {
	log zerolog.Logger
}

// NewHighsSolver creates a new HiGHS solver adapter.
func NewHighsSolver(log zerolog.Logger) *HighsSolver {
	return &HighsSolver{
		log: log.With().Str("component", "solver").Logger(),
	}
}

// Solve assembles the HiGHS model from the context, runs it, and extracts
// every declared variable into a family → {tuple: value} assignment.
// Infeasible and infeasible-or-unbounded terminations map to ErrInfeasible;
// any other non-optimal status maps to ErrSolveFailed. No retry with relaxed
// constraints is attempted.
func (s *HighsSolver) Solve(m *Model, opts SolverOptions) (Assignment, error) {
	obj := m.Objective()
	if obj == nil {
		return nil, fmt.Errorf("model has no objective")
	}

	vars := m.Vars()
	model := &highs.Model{
		Maximize: obj.Maximize,
		Offset:   obj.Offset,
		ColCosts: make([]float64, len(vars)),
		ColLower: make([]float64, len(vars)),
		ColUpper: make([]float64, len(vars)),
		VarTypes: make([]highs.VariableType, len(vars)),
	}

	for col, v := range vars {
		model.ColLower[col] = v.Lower
		model.ColUpper[col] = v.Upper
		if v.Integer {
			model.VarTypes[col] = highs.Integer
		}
	}
	for col, cost := range obj.Costs {
		model.ColCosts[col] = cost
	}

	for rowIdx, row := range m.Rows() {
		for col, coef := range row.Coefs {
			model.ConstMatrix = append(model.ConstMatrix, highs.Nonzero{
				Row: rowIdx, Col: col, Val: coef,
			})
		}
		model.RowLower = append(model.RowLower, row.Lower)
		model.RowUpper = append(model.RowUpper, row.Upper)
	}

	solveOpts := []highs.SolveOption{highs.WithOutput(false)}
	if opts.MIPGap > 0 {
		solveOpts = append(solveOpts, highs.WithMIPRelGap(opts.MIPGap))
	}
	if opts.TimeLimitSeconds > 0 {
		solveOpts = append(solveOpts, highs.WithTimeLimit(opts.TimeLimitSeconds))
	}
	if opts.Threads > 0 {
		solveOpts = append(solveOpts, highs.WithThreads(opts.Threads))
	}

	s.log.Info().
		Int("vars", m.NumVars()).
		Int("rows", m.NumRows()).
		Float64("mip_gap", opts.MIPGap).
		Float64("time_limit_s", opts.TimeLimitSeconds).
		Msg("Solving model")

	solution, err := model.Solve(solveOpts...)
	if err != nil {
		return nil, fmt.Errorf("solver invocation failed: %w", err)
	}

	switch solution.Status {
	case highs.ModelStatusOptimal:
		// Extract below.
	case highs.ModelStatusInfeasible, highs.ModelStatusUnboundedOrInfeasible:
		return nil, fmt.Errorf("%w: solver status %v", ErrInfeasible, solution.Status)
	default:
		return nil, fmt.Errorf("%w: solver status %v", ErrSolveFailed, solution.Status)
	}

	assignment := make(Assignment)
	for col, v := range vars {
		byScope, ok := assignment[v.Family]
		if !ok {
			byScope = make(map[domain.Scope]float64)
			assignment[v.Family] = byScope
		}
		byScope[v.Scope] = solution.ColValues[col]
	}

	s.log.Info().Float64("objective", solution.Objective).Msg("Solve complete")
	return assignment, nil
}
