package recommendation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/reachplan/optimizer/internal/events"
	"github.com/reachplan/optimizer/internal/modules/curves"
	"github.com/reachplan/optimizer/internal/modules/finance"
	"github.com/reachplan/optimizer/internal/tracking"
	"github.com/rs/zerolog"
)

// RunStore persists run lifecycle and results. Satisfied by the results
// repository; kept as an interface here to avoid a package cycle.
type RunStore interface {
	CreateRun(runID, market, objective string) error
	UpdateState(runID string, state RunState) error
	SaveResult(result *ScenarioResult) error
	MarkFailed(runID string, runErr error) error
}

// Service orchestrates recommendation runs through the fixed state machine:
// BUILD_DOMAIN, EXTRACT_PARAMETERS, BUILD_CONSTRAINTS_AND_OBJECTIVE, SOLVE,
// POSTPROCESS, DONE. Any stage error moves the run to FAILED; stages are
// never retried.
type Service struct {
	curves     *curves.Repository
	finance    *finance.Repository
	store      RunStore
	solver     Solver
	bus        *events.Bus
	trackerCfg tracking.Config
	log        zerolog.Logger

	domainBuilder *DomainBuilder
	extractor     *ParameterExtractor
	constraints   *ConstraintBuilder
	objective     *ObjectiveBuilder
	postprocessor *Postprocessor

	defaultSolver SolverOptions
	defaultFactor float64

	wg sync.WaitGroup
}

// NewService creates a recommendation service.
func NewService(
	curvesRepo *curves.Repository,
	financeRepo *finance.Repository,
	store RunStore,
	solver Solver,
	bus *events.Bus,
	trackerCfg tracking.Config,
	log zerolog.Logger,
) *Service {
	svcLog := log.With().Str("service", "recommendation").Logger()
	return &Service{
		curves:        curvesRepo,
		finance:       financeRepo,
		store:         store,
		solver:        solver,
		bus:           bus,
		trackerCfg:    trackerCfg,
		log:           svcLog,
		domainBuilder: NewDomainBuilder(svcLog),
		extractor:     NewParameterExtractor(svcLog),
		constraints:   NewConstraintBuilder(svcLog),
		objective:     NewObjectiveBuilder(svcLog),
		postprocessor: NewPostprocessor(svcLog),
	}
}

// SetDefaults fixes the fallback solver options and normalization factor
// applied to runs whose settings leave them unset.
func (s *Service) SetDefaults(solver SolverOptions, normalizationFactor float64) {
	s.defaultSolver = solver
	s.defaultFactor = normalizationFactor
}

func (s *Service) applyDefaults(settings RunSettings) RunSettings {
	if settings.Solver == (SolverOptions{}) {
		settings.Solver = s.defaultSolver
	}
	if settings.NormalizationFactor == 0 {
		settings.NormalizationFactor = s.defaultFactor
	}
	return settings
}

// StartRun validates settings, registers a run, and executes it in the
// background. The run ID is returned immediately; progress is observable on
// the event bus and the final result lands in the run store.
func (s *Service) StartRun(ctx context.Context, settings RunSettings) (string, error) {
	settings = s.applyDefaults(settings)
	if err := validateSettings(settings); err != nil {
		return "", err
	}

	runID := uuid.New().String()
	if err := s.store.CreateRun(runID, settings.Market, settings.Objective); err != nil {
		return "", fmt.Errorf("failed to register run: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// The run outlives the HTTP request that triggered it.
		if _, err := s.execute(context.WithoutCancel(ctx), runID, settings); err != nil {
			s.log.Error().Err(err).Str("run_id", runID).Msg("Recommendation run failed")
		}
	}()

	return runID, nil
}

// Run executes a recommendation run synchronously and returns its result.
func (s *Service) Run(ctx context.Context, settings RunSettings) (*ScenarioResult, error) {
	settings = s.applyDefaults(settings)
	if err := validateSettings(settings); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	if err := s.store.CreateRun(runID, settings.Market, settings.Objective); err != nil {
		return nil, fmt.Errorf("failed to register run: %w", err)
	}
	return s.execute(ctx, runID, settings)
}

// Wait blocks until all background runs have finished. Used on shutdown.
func (s *Service) Wait() {
	s.wg.Wait()
}

func validateSettings(settings RunSettings) error {
	switch settings.Objective {
	case ObjectiveSellout, ObjectiveSpend, ObjectiveMargin, ObjectiveMarginMinusSpend:
	default:
		return fmt.Errorf("unknown objective criterion %q", settings.Objective)
	}
	if settings.NormalizationFactor < 0 {
		return fmt.Errorf("normalization factor must be non-negative, got %g", settings.NormalizationFactor)
	}
	for _, spec := range settings.Constraints {
		if _, err := VarForKPI(spec.KPI); err != nil {
			return err
		}
		switch spec.Op {
		case OpLE, OpGE, OpEQ:
		default:
			return fmt.Errorf("unknown constraint operator %q", spec.Op)
		}
	}
	return nil
}

func (s *Service) execute(ctx context.Context, runID string, settings RunSettings) (result *ScenarioResult, err error) {
	started := time.Now()
	log := s.log.With().Str("run_id", runID).Logger()
	tracker := tracking.New(ctx, s.trackerCfg, runID, log)

	state := StateBuildDomain
	defer func() {
		if err != nil {
			if storeErr := s.store.MarkFailed(runID, err); storeErr != nil {
				log.Error().Err(storeErr).Msg("Failed to persist run failure")
			}
			s.bus.Publish(events.RunFailed, events.RunFailedData{
				RunID:      runID,
				Stage:      string(state),
				Error:      err.Error(),
				Infeasible: errors.Is(err, ErrInfeasible),
			})
			_ = tracker.EndRun(tracking.StatusFailed)
			return
		}
		s.bus.Publish(events.RunCompleted, events.RunCompletedData{
			RunID:          runID,
			Objective:      settings.Objective,
			ElapsedSeconds: time.Since(started).Seconds(),
		})
		_ = tracker.EndRun(tracking.StatusFinished)
	}()

	s.bus.Publish(events.RunStarted, events.RunStartedData{
		RunID:     runID,
		Market:    settings.Market,
		Objective: settings.Objective,
	})
	_ = tracker.RecordParameters(map[string]string{
		"market":               settings.Market,
		"objective":            settings.Objective,
		"constraints":          strconv.Itoa(len(settings.Constraints)),
		"normalization_factor": strconv.FormatFloat(settings.NormalizationFactor, 'g', -1, 64),
	})

	advance := func(next RunState) error {
		state = next
		if storeErr := s.store.UpdateState(runID, next); storeErr != nil {
			return fmt.Errorf("failed to record state %s: %w", next, storeErr)
		}
		s.bus.Publish(events.RunStageChanged, events.RunStageChangedData{
			RunID: runID,
			Stage: string(next),
		})
		log.Info().Str("stage", string(next)).Msg("Run stage")
		return nil
	}

	// BUILD_DOMAIN: load the curve table and enumerate its subset domains.
	if err = advance(StateBuildDomain); err != nil {
		return nil, err
	}
	table, err := s.curves.Load(settings.Market)
	if err != nil {
		return nil, fmt.Errorf("failed to load response curves: %w", err)
	}

	// The model is built against a normalized copy for numerical
	// conditioning; all reporting stays in original units.
	factor := settings.NormalizationFactor
	normTable := table
	if factor > 0 && factor != 1 {
		normTable, err = curves.Normalize(table, factor)
		if err != nil {
			return nil, err
		}
	}

	sets, err := s.domainBuilder.Build(normTable)
	if err != nil {
		return nil, err
	}

	// EXTRACT_PARAMETERS: reference dictionaries in both unit systems.
	if err = advance(StateExtractParams); err != nil {
		return nil, err
	}
	financials, err := s.finance.GetFinancials()
	if err != nil {
		return nil, err
	}
	baselineSales, err := s.finance.GetBaselineSales()
	if err != nil {
		return nil, err
	}
	params, err := s.extractor.Extract(table, financials, baselineSales)
	if err != nil {
		return nil, err
	}
	normParams := params
	if normTable != table {
		normBaseline := make(map[finance.BrandKey]float64, len(baselineSales))
		for key, value := range baselineSales {
			normBaseline[key] = value / factor
		}
		normParams, err = s.extractor.Extract(normTable, financials, normBaseline)
		if err != nil {
			return nil, err
		}
	}

	// BUILD_CONSTRAINTS_AND_OBJECTIVE.
	if err = advance(StateBuildConstraints); err != nil {
		return nil, err
	}
	model := NewModel()
	if err = s.constraints.DeclareVariables(model, sets); err != nil {
		return nil, err
	}
	if err = s.constraints.BuildFoundational(model, sets, normTable); err != nil {
		return nil, err
	}
	specs := scaleConstraintBounds(settings.Constraints, factor)
	if err = s.constraints.BuildUserConstraints(model, sets, specs); err != nil {
		return nil, err
	}
	if err = s.objective.Build(model, sets, normParams, settings.Objective); err != nil {
		return nil, err
	}
	log.Info().Int("vars", model.NumVars()).Int("rows", model.NumRows()).Msg("Model assembled")

	// SOLVE.
	if err = advance(StateSolve); err != nil {
		return nil, err
	}
	assignment, err := s.solver.Solve(model, settings.Solver)
	if err != nil {
		return nil, err
	}
	denormalizeAssignment(assignment, factor)

	// POSTPROCESS: budget rescaling, aggregation, curves, deltas.
	if err = advance(StatePostprocess); err != nil {
		return nil, err
	}
	budgets, err := s.finance.GetBudgets()
	if err != nil {
		return nil, err
	}
	s.postprocessor.ApplyBudgetScaling(assignment, params, budgets)

	optimized := s.postprocessor.ArrangeResults(sets, params, OptimizedValues(assignment))
	historical := s.postprocessor.ArrangeResults(sets, params, HistoricalValues(params))

	result = &ScenarioResult{
		RunID:         runID,
		Objective:     settings.Objective,
		Optimized:     optimized,
		Historical:    historical,
		DeltaAbsolute: s.postprocessor.ComputeDeltas(optimized, historical, true),
		DeltaRelative: s.postprocessor.ComputeDeltas(optimized, historical, false),
		Curves:        s.postprocessor.ArrangeCurves(table, assignment),
		Solution:      assignment,
	}

	if err = s.store.SaveResult(result); err != nil {
		return nil, err
	}
	_ = tracker.RecordStructured(ctx, result, "scenario.json")
	_ = tracker.RecordMetrics(map[string]float64{
		"incremental_sellout": optimized.Summary.Incremental.SelloutValue,
		"incremental_spend":   optimized.Summary.Incremental.Spend,
		"incremental_margin":  optimized.Summary.Incremental.Margin,
	}, 0)

	if err = advance(StateDone); err != nil {
		return nil, err
	}
	log.Info().Dur("elapsed", time.Since(started)).Msg("Run complete")
	return result, nil
}

// scaleConstraintBounds rescales constraint bounds into normalized model
// units. Every numeric curve column is divided by the factor, so every bound
// is too.
func scaleConstraintBounds(specs []ConstraintSpec, factor float64) []ConstraintSpec {
	if factor <= 0 || factor == 1 {
		return specs
	}
	out := make([]ConstraintSpec, len(specs))
	for i, spec := range specs {
		spec.Bound /= factor
		out[i] = spec
	}
	return out
}

// denormalizeAssignment maps the solved continuous values back into original
// units. Selector indicators are unit-free.
func denormalizeAssignment(assignment Assignment, factor float64) {
	if factor <= 0 || factor == 1 {
		return
	}
	for _, family := range ContinuousVars {
		for scope, value := range assignment[family] {
			assignment[family][scope] = value * factor
		}
	}
}
