// Package recommendation implements the spend recommendation engine: it
// builds a mixed-integer program over the business hierarchy from response
// curves, solves it, and maps the solution back into aggregated,
// business-meaningful results with deltas against the historical baseline.
package recommendation

import (
	"errors"
	"fmt"

	"github.com/reachplan/optimizer/internal/domain"
)

// Objective criteria identifiers.
const (
	ObjectiveSellout          = "sellout"
	ObjectiveSpend            = "spend"
	ObjectiveMargin           = "margin"
	ObjectiveMarginMinusSpend = "margin_minus_spend"
)

// Decision-variable families. uplift_select is the boolean one-hot selector
// over the 7-dim domain; the four continuous families live on the 6-dim
// domain and equal the curve values at the selected point.
const (
	VarUpliftSelect  = "uplift_select"
	VarSpend         = "spend_sel"
	VarSelloutValue  = "sellout_value_sel"
	VarSelloutVolume = "sellout_volume_sel"
	VarMargin        = "margin_sel"
)

// ContinuousVars lists the continuous variable families in a stable order.
var ContinuousVars = []string{VarSpend, VarSelloutValue, VarSelloutVolume, VarMargin}

// KPI names accepted in user constraint specs, mapped onto variable families.
var kpiToVar = map[string]string{
	"spend":          VarSpend,
	"sellout_value":  VarSelloutValue,
	"sellout_volume": VarSelloutVolume,
	"margin":         VarMargin,
}

// Comparison operators for constraint specs.
const (
	OpLE = "<="
	OpGE = ">="
	OpEQ = "=="
)

// ConstraintSpec is one user-specified constraint: aggregate a KPI over every
// full-granularity tuple matching the (possibly wildcarded) scope and bound
// the sum.
type ConstraintSpec struct {
	Scope domain.Scope `json:"scope"`
	KPI   string       `json:"kpi"`
	Op    string       `json:"op"`
	Bound float64      `json:"bound"`
}

// SolverOptions configures the external solver.
type SolverOptions struct {
	Type             string  `json:"type"`               // solver name, "highs" by default
	MIPGap           float64 `json:"mip_gap"`            // relative optimality gap tolerance
	TimeLimitSeconds float64 `json:"time_limit_seconds"` // wall-clock limit
	Threads          int     `json:"threads"`
}

// RunSettings are the caller-supplied settings for one recommendation run.
type RunSettings struct {
	Market              string           `json:"market"` // optional scope selection
	Objective           string           `json:"objective"`
	Constraints         []ConstraintSpec `json:"constraints"`
	Solver              SolverOptions    `json:"solver"`
	NormalizationFactor float64          `json:"normalization_factor"` // curves pre-divided by this, 0 = no scaling
}

// RunState is one stage of the recommendation state machine.
type RunState string

// State machine: BUILD_DOMAIN → EXTRACT_PARAMETERS →
// BUILD_CONSTRAINTS_AND_OBJECTIVE → SOLVE → POSTPROCESS → DONE, with FAILED
// reachable from SOLVE (infeasible/solver error) or any earlier stage
// (configuration error). No stage retries.
const (
	StateBuildDomain      RunState = "BUILD_DOMAIN"
	StateExtractParams    RunState = "EXTRACT_PARAMETERS"
	StateBuildConstraints RunState = "BUILD_CONSTRAINTS_AND_OBJECTIVE"
	StateSolve            RunState = "SOLVE"
	StatePostprocess      RunState = "POSTPROCESS"
	StateDone             RunState = "DONE"
	StateFailed           RunState = "FAILED"
)

// Solver failure taxonomy. Infeasibility is terminal for the run and must be
// distinguishable from "solver broke"; callers relax constraints, they never
// get an automatic retry.
var (
	ErrInfeasible  = errors.New("model is infeasible")
	ErrSolveFailed = errors.New("solver did not reach an optimal solution")
)

// Assignment is the extracted solution: variable family → index tuple → value.
type Assignment map[string]map[domain.Scope]float64

// Value returns an assigned value, defaulting to zero for missing tuples.
func (a Assignment) Value(family string, scope domain.Scope) float64 {
	return a[family][scope]
}

// VarForKPI resolves a user-facing KPI name to its variable family.
func VarForKPI(kpi string) (string, error) {
	v, ok := kpiToVar[kpi]
	if !ok {
		return "", fmt.Errorf("unknown KPI %q in constraint spec", kpi)
	}
	return v, nil
}

// KPIBundle is one aggregate KPI vector. Spend is carried negated in final
// output (a cost), per the display sign convention.
type KPIBundle struct {
	Spend         float64 `json:"spend"`
	SelloutValue  float64 `json:"sellout_value"`
	SelloutVolume float64 `json:"sellout_volume"`
	Margin        float64 `json:"margin"`
}

// DetailRow is one per-scope breakdown row at some aggregation level.
type DetailRow struct {
	Scope domain.Scope `json:"scope"`
	KPI   KPIBundle    `json:"kpi"`
}

// Summary holds the top-level aggregate view of one arranged run.
type Summary struct {
	Incremental  KPIBundle `json:"incremental"`
	Total        KPIBundle `json:"total"`
	Carryover    KPIBundle `json:"carryover"`
	CarryoverPct KPIBundle `json:"carryover_pct"`
}

// ResultSet is the arranged output of one run (optimized or historical):
// summary plus per-level detail lists, keyed by the level's domain-set name.
type ResultSet struct {
	Summary Summary                `json:"summary"`
	Details map[string][]DetailRow `json:"details"`
}

// CurvePoint is one displayed uplift point with derived returns. ROI and
// MROI are nil where the denominator is zero; the last point of every curve
// has nil MROI.
type CurvePoint struct {
	Uplift       int      `json:"uplift"`
	Spend        float64  `json:"spend"`
	SelloutValue float64  `json:"sellout_value"`
	Margin       float64  `json:"margin"`
	ROI          *float64 `json:"roi"`
	MROI         *float64 `json:"mroi"`
	Selected     bool     `json:"selected"`
}

// Curve is one displayed response curve, all uplift points included.
type Curve struct {
	Scope  domain.Scope `json:"scope"`
	Points []CurvePoint `json:"points"`
}

// ScenarioResult is the full outcome of one recommendation run.
type ScenarioResult struct {
	RunID         string     `json:"run_id"`
	Objective     string     `json:"objective"`
	Optimized     ResultSet  `json:"optimized"`
	Historical    ResultSet  `json:"historical"`
	DeltaAbsolute ResultSet  `json:"delta_absolute"`
	DeltaRelative ResultSet  `json:"delta_relative"`
	Curves        []Curve    `json:"curves"`
	Solution      Assignment `json:"-"` // persisted separately for replay
}
