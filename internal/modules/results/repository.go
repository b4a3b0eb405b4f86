// Package results persists scenario results and solution dictionaries so
// runs can be served to the presentation layer and replayed later.
package results

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/reachplan/optimizer/internal/domain"
	"github.com/reachplan/optimizer/internal/modules/recommendation"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Repository handles scenario-result persistence.
// Database: results.db (scenario_runs table). The scenario document is
// stored as JSON for the presentation layer; the raw solution is stored as
// a msgpack blob for replay.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new results repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "results").Logger(),
	}
}

// InitSchema creates the scenario_runs table if it does not exist.
func (r *Repository) InitSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS scenario_runs (
			run_id TEXT PRIMARY KEY,
			market TEXT NOT NULL,
			objective TEXT NOT NULL,
			state TEXT NOT NULL,
			error TEXT,
			scenario_json TEXT,
			solution_blob BLOB,
			created_at INTEGER NOT NULL,
			finished_at INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_scenario_runs_created
			ON scenario_runs(created_at);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create results schema: %w", err)
	}
	return nil
}

// RunRecord is one persisted run row.
type RunRecord struct {
	RunID      string    `json:"run_id"`
	Market     string    `json:"market"`
	Objective  string    `json:"objective"`
	State      string    `json:"state"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// CreateRun inserts a new run in its initial state.
func (r *Repository) CreateRun(runID, market, objective string) error {
	_, err := r.db.Exec(`
		INSERT INTO scenario_runs (run_id, market, objective, state, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, runID, market, objective, string(recommendation.StateBuildDomain), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to create run %s: %w", runID, err)
	}
	return nil
}

// UpdateState records a state transition.
func (r *Repository) UpdateState(runID string, state recommendation.RunState) error {
	_, err := r.db.Exec(`UPDATE scenario_runs SET state = ? WHERE run_id = ?`, string(state), runID)
	if err != nil {
		return fmt.Errorf("failed to update state for run %s: %w", runID, err)
	}
	return nil
}

// SaveResult stores the finished scenario and its solution.
func (r *Repository) SaveResult(result *recommendation.ScenarioResult) error {
	scenarioJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal scenario for run %s: %w", result.RunID, err)
	}

	solutionBlob, err := encodeSolution(result.Solution)
	if err != nil {
		return fmt.Errorf("failed to encode solution for run %s: %w", result.RunID, err)
	}

	_, err = r.db.Exec(`
		UPDATE scenario_runs
		SET state = ?, scenario_json = ?, solution_blob = ?, finished_at = ?
		WHERE run_id = ?
	`, string(recommendation.StateDone), string(scenarioJSON), solutionBlob, time.Now().Unix(), result.RunID)
	if err != nil {
		return fmt.Errorf("failed to save result for run %s: %w", result.RunID, err)
	}

	r.log.Info().Str("run_id", result.RunID).Int("scenario_bytes", len(scenarioJSON)).Msg("Saved scenario result")
	return nil
}

// MarkFailed records a terminal failure.
func (r *Repository) MarkFailed(runID string, runErr error) error {
	_, err := r.db.Exec(`
		UPDATE scenario_runs SET state = ?, error = ?, finished_at = ? WHERE run_id = ?
	`, string(recommendation.StateFailed), runErr.Error(), time.Now().Unix(), runID)
	if err != nil {
		return fmt.Errorf("failed to mark run %s failed: %w", runID, err)
	}
	return nil
}

// GetRun returns the run row without its payloads.
func (r *Repository) GetRun(runID string) (*RunRecord, error) {
	var rec RunRecord
	var errStr sql.NullString
	var createdUnix int64
	var finishedUnix sql.NullInt64

	err := r.db.QueryRow(`
		SELECT run_id, market, objective, state, error, created_at, finished_at
		FROM scenario_runs WHERE run_id = ?
	`, runID).Scan(&rec.RunID, &rec.Market, &rec.Objective, &rec.State, &errStr, &createdUnix, &finishedUnix)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", runID, err)
	}

	rec.Error = errStr.String
	rec.CreatedAt = time.Unix(createdUnix, 0).UTC()
	if finishedUnix.Valid {
		rec.FinishedAt = time.Unix(finishedUnix.Int64, 0).UTC()
	}
	return &rec, nil
}

// GetScenario returns the persisted scenario document for a finished run.
func (r *Repository) GetScenario(runID string) (*recommendation.ScenarioResult, error) {
	var scenarioJSON sql.NullString
	err := r.db.QueryRow(`
		SELECT scenario_json FROM scenario_runs WHERE run_id = ?
	`, runID).Scan(&scenarioJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query scenario for run %s: %w", runID, err)
	}
	if !scenarioJSON.Valid {
		return nil, fmt.Errorf("run %s has no scenario result", runID)
	}

	var result recommendation.ScenarioResult
	if err := json.Unmarshal([]byte(scenarioJSON.String), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scenario for run %s: %w", runID, err)
	}
	return &result, nil
}

// GetSolution returns the persisted solution dictionary for replay.
func (r *Repository) GetSolution(runID string) (recommendation.Assignment, error) {
	var blob []byte
	err := r.db.QueryRow(`
		SELECT solution_blob FROM scenario_runs WHERE run_id = ?
	`, runID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query solution for run %s: %w", runID, err)
	}
	if len(blob) == 0 {
		return nil, fmt.Errorf("run %s has no solution", runID)
	}
	return decodeSolution(blob)
}

// ListRuns returns the most recent runs, newest first.
func (r *Repository) ListRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`
		SELECT run_id, market, objective, state, error, created_at, finished_at
		FROM scenario_runs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var errStr sql.NullString
		var createdUnix int64
		var finishedUnix sql.NullInt64
		if err := rows.Scan(&rec.RunID, &rec.Market, &rec.Objective, &rec.State, &errStr, &createdUnix, &finishedUnix); err != nil {
			return nil, fmt.Errorf("failed to scan run record: %w", err)
		}
		rec.Error = errStr.String
		rec.CreatedAt = time.Unix(createdUnix, 0).UTC()
		if finishedUnix.Valid {
			rec.FinishedAt = time.Unix(finishedUnix.Int64, 0).UTC()
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run records: %w", err)
	}
	return records, nil
}

// DeleteOlderThan removes runs finished before the cutoff, returning the
// number of rows deleted. Used by the scheduled cleanup job.
func (r *Repository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(`
		DELETE FROM scenario_runs
		WHERE finished_at IS NOT NULL AND finished_at < ?
	`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old runs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// solutionDoc flattens an Assignment for msgpack: map keys must be strings,
// so each scope tuple is joined into a single key.
type solutionDoc map[string]map[string]float64

const scopeSep = "\x1f"

func encodeSolution(a recommendation.Assignment) ([]byte, error) {
	doc := make(solutionDoc, len(a))
	for family, byScope := range a {
		flat := make(map[string]float64, len(byScope))
		for scope, value := range byScope {
			flat[joinScope(scope)] = value
		}
		doc[family] = flat
	}
	return msgpack.Marshal(doc)
}

func decodeSolution(blob []byte) (recommendation.Assignment, error) {
	var doc solutionDoc
	if err := msgpack.Unmarshal(blob, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode solution blob: %w", err)
	}

	out := make(recommendation.Assignment, len(doc))
	for family, flat := range doc {
		byScope := make(map[domain.Scope]float64, len(flat))
		for key, value := range flat {
			scope, err := splitScope(key)
			if err != nil {
				return nil, err
			}
			byScope[scope] = value
		}
		out[family] = byScope
	}
	return out, nil
}

func joinScope(s domain.Scope) string {
	return strings.Join(s[:], scopeSep)
}

func splitScope(key string) (domain.Scope, error) {
	parts := strings.Split(key, scopeSep)
	if len(parts) != domain.NumDims {
		return domain.Scope{}, fmt.Errorf("malformed solution scope key %q", key)
	}
	var s domain.Scope
	copy(s[:], parts)
	return s, nil
}
