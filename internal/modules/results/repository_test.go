package results

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/reachplan/optimizer/internal/domain"
	"github.com/reachplan/optimizer/internal/modules/recommendation"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupTestRepo(t *testing.T) *Repository {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewRepository(db, zerolog.Nop())
	require.NoError(t, repo.InitSchema())
	return repo
}

func sampleResult(runID string) *recommendation.ScenarioResult {
	scope := domain.Scope{"emea", "de", "alpha", "f2f", "gp", "high"}
	return &recommendation.ScenarioResult{
		RunID:     runID,
		Objective: recommendation.ObjectiveSellout,
		Optimized: recommendation.ResultSet{
			Summary: recommendation.Summary{
				Incremental: recommendation.KPIBundle{Spend: -100, SelloutValue: 300},
			},
			Details: map[string][]recommendation.DetailRow{},
		},
		Solution: recommendation.Assignment{
			recommendation.VarSpend: {scope: 100},
			recommendation.VarUpliftSelect: {
				{"emea", "de", "alpha", "f2f", "gp", "high", "1"}: 1,
			},
		},
	}
}

func TestRunLifecycle(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.CreateRun("run-1", "de", "sellout"))
	require.NoError(t, repo.UpdateState("run-1", recommendation.StateSolve))

	rec, err := repo.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, "de", rec.Market)
	assert.Equal(t, string(recommendation.StateSolve), rec.State)
	assert.True(t, rec.FinishedAt.IsZero())
}

func TestSaveAndGetScenario(t *testing.T) {
	repo := setupTestRepo(t)
	require.NoError(t, repo.CreateRun("run-1", "de", "sellout"))
	require.NoError(t, repo.SaveResult(sampleResult("run-1")))

	rec, err := repo.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, string(recommendation.StateDone), rec.State)
	assert.False(t, rec.FinishedAt.IsZero())

	loaded, err := repo.GetScenario("run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", loaded.RunID)
	assert.Equal(t, -100.0, loaded.Optimized.Summary.Incremental.Spend)
	// The solution travels separately from the scenario document.
	assert.Nil(t, loaded.Solution)
}

func TestSolutionRoundTrip(t *testing.T) {
	repo := setupTestRepo(t)
	require.NoError(t, repo.CreateRun("run-1", "de", "sellout"))

	result := sampleResult("run-1")
	require.NoError(t, repo.SaveResult(result))

	solution, err := repo.GetSolution("run-1")
	require.NoError(t, err)
	assert.Equal(t, result.Solution, solution)
}

func TestMarkFailed(t *testing.T) {
	repo := setupTestRepo(t)
	require.NoError(t, repo.CreateRun("run-1", "de", "sellout"))
	require.NoError(t, repo.MarkFailed("run-1", errors.New("model is infeasible")))

	rec, err := repo.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, string(recommendation.StateFailed), rec.State)
	assert.Contains(t, rec.Error, "infeasible")

	_, err = repo.GetScenario("run-1")
	require.Error(t, err)
}

func TestGetRunNotFound(t *testing.T) {
	repo := setupTestRepo(t)
	_, err := repo.GetRun("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListRunsNewestFirst(t *testing.T) {
	repo := setupTestRepo(t)
	require.NoError(t, repo.CreateRun("run-1", "de", "sellout"))
	require.NoError(t, repo.CreateRun("run-2", "fr", "margin"))

	runs, err := repo.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
}

func TestDeleteOlderThan(t *testing.T) {
	repo := setupTestRepo(t)
	require.NoError(t, repo.CreateRun("run-1", "de", "sellout"))
	require.NoError(t, repo.SaveResult(sampleResult("run-1")))
	require.NoError(t, repo.CreateRun("run-2", "de", "sellout"))

	// Unfinished runs are never swept.
	n, err := repo.DeleteOlderThan(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	runs, err := repo.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-2", runs[0].RunID)
}

func TestScopeKeyCodec(t *testing.T) {
	scope := domain.Scope{"emea", "de", "alpha", "", "gp", "", "2"}
	decoded, err := splitScope(joinScope(scope))
	require.NoError(t, err)
	assert.Equal(t, scope, decoded)

	_, err = splitScope("too\x1ffew")
	require.Error(t, err)
}
