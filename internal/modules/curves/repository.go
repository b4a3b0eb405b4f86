package curves

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Repository handles response-curve persistence.
// Database: inputs.db (response_curves table). Curves are computed upstream
// by the statistical model and loaded here as-is.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new response-curve repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "curves").Logger(),
	}
}

// InitSchema creates the response_curves table if it does not exist.
func (r *Repository) InitSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS response_curves (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			region TEXT NOT NULL,
			market TEXT NOT NULL,
			brand TEXT NOT NULL,
			channel TEXT NOT NULL,
			specialty TEXT NOT NULL,
			segment TEXT NOT NULL,
			upliftidx INTEGER NOT NULL,
			spend REAL NOT NULL,
			sellout_value REAL NOT NULL,
			sellout_units REAL,
			margin_value REAL NOT NULL,
			is_reference INTEGER NOT NULL DEFAULT 0,
			period_start INTEGER,
			period_end INTEGER,
			UNIQUE(region, market, brand, channel, specialty, segment, upliftidx)
		);
		CREATE INDEX IF NOT EXISTS idx_response_curves_scope
			ON response_curves(region, market, brand);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create response_curves schema: %w", err)
	}
	return nil
}

// Load returns the full response-curve table for a (possibly empty) market
// filter. An empty market loads everything.
func (r *Repository) Load(market string) (*Table, error) {
	query := `
		SELECT region, market, brand, channel, specialty, segment, upliftidx,
		       spend, sellout_value, sellout_units, margin_value, is_reference,
		       period_start, period_end
		FROM response_curves
	`
	args := []interface{}{}
	if market != "" {
		query += " WHERE market = ?"
		args = append(args, market)
	}
	query += " ORDER BY region, market, brand, channel, specialty, segment, upliftidx"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query response curves: %w", err)
	}
	defer rows.Close()

	var points []Point
	hasUnits := false
	for rows.Next() {
		var p Point
		var units sql.NullFloat64
		var isRef int
		var startUnix, endUnix sql.NullInt64

		if err := rows.Scan(
			&p.Region, &p.Market, &p.Brand, &p.Channel, &p.Specialty, &p.Segment,
			&p.UpliftIdx, &p.Spend, &p.SelloutValue, &units, &p.MarginValue,
			&isRef, &startUnix, &endUnix,
		); err != nil {
			return nil, fmt.Errorf("failed to scan response curve row: %w", err)
		}

		if units.Valid {
			p.SelloutUnits = units.Float64
			hasUnits = true
		}
		p.IsReference = isRef != 0
		if startUnix.Valid {
			p.PeriodStart = time.Unix(startUnix.Int64, 0).UTC()
		}
		if endUnix.Valid {
			p.PeriodEnd = time.Unix(endUnix.Int64, 0).UTC()
		}
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating response curves: %w", err)
	}

	r.log.Debug().Int("points", len(points)).Str("market", market).Msg("Loaded response curves")
	return NewTable(points, hasUnits), nil
}

// Save replaces the stored curves for the points' markets with the given
// table. Used by the upstream loader when fresh curves arrive.
func (r *Repository) Save(t *Table) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin curve save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	markets := make(map[string]struct{})
	for _, p := range t.Points {
		markets[p.Market] = struct{}{}
	}
	for market := range markets {
		if _, err := tx.Exec("DELETE FROM response_curves WHERE market = ?", market); err != nil {
			return fmt.Errorf("failed to clear curves for market %s: %w", market, err)
		}
	}

	stmt, err := tx.Prepare(`
		INSERT INTO response_curves
			(region, market, brand, channel, specialty, segment, upliftidx,
			 spend, sellout_value, sellout_units, margin_value, is_reference,
			 period_start, period_end)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare curve insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range t.Points {
		var units interface{}
		if t.HasUnits {
			units = p.SelloutUnits
		}
		var start, end interface{}
		if !p.PeriodStart.IsZero() {
			start = p.PeriodStart.Unix()
		}
		if !p.PeriodEnd.IsZero() {
			end = p.PeriodEnd.Unix()
		}

		isRef := 0
		if p.UpliftIdx == ReferenceUplift {
			isRef = 1
		}

		if _, err := stmt.Exec(
			p.Region, p.Market, p.Brand, p.Channel, p.Specialty, p.Segment,
			p.UpliftIdx, p.Spend, p.SelloutValue, units, p.MarginValue,
			isRef, start, end,
		); err != nil {
			return fmt.Errorf("failed to insert curve point %s: %w", p.Scope(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit curve save: %w", err)
	}

	r.log.Info().Int("points", len(t.Points)).Int("markets", len(markets)).Msg("Saved response curves")
	return nil
}
