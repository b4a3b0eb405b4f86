package finance

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// Repository handles financial and budget table persistence.
// Database: inputs.db (brand_financials, budgets tables).
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new finance repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "finance").Logger(),
	}
}

// InitSchema creates the finance tables if they do not exist.
func (r *Repository) InitSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS brand_financials (
			region TEXT NOT NULL,
			market TEXT NOT NULL,
			brand TEXT NOT NULL,
			price_per_unit REAL NOT NULL,
			gross_margin_pct REAL NOT NULL,
			PRIMARY KEY (region, market, brand)
		);
		CREATE TABLE IF NOT EXISTS budgets (
			market TEXT NOT NULL,
			brand TEXT NOT NULL,
			target_spend REAL NOT NULL,
			target_sales REAL NOT NULL DEFAULT 0,
			target_opex REAL NOT NULL DEFAULT 0,
			PRIMARY KEY (market, brand)
		);
		CREATE TABLE IF NOT EXISTS baseline_sales (
			region TEXT NOT NULL,
			market TEXT NOT NULL,
			brand TEXT NOT NULL,
			sales_value REAL NOT NULL,
			PRIMARY KEY (region, market, brand)
		);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create finance schema: %w", err)
	}
	return nil
}

// GetFinancials returns all brand financials keyed by (region, market, brand).
func (r *Repository) GetFinancials() (map[BrandKey]Financials, error) {
	rows, err := r.db.Query(`
		SELECT region, market, brand, price_per_unit, gross_margin_pct
		FROM brand_financials
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query brand financials: %w", err)
	}
	defer rows.Close()

	result := make(map[BrandKey]Financials)
	for rows.Next() {
		var f Financials
		if err := rows.Scan(&f.Region, &f.Market, &f.Brand, &f.PricePerUnit, &f.GrossMarginPct); err != nil {
			return nil, fmt.Errorf("failed to scan brand financials: %w", err)
		}
		result[f.BrandKey] = f
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating brand financials: %w", err)
	}

	return result, nil
}

// GetBudgets returns all budget targets keyed by (market, brand).
func (r *Repository) GetBudgets() (map[BudgetKey]Budget, error) {
	rows, err := r.db.Query(`
		SELECT market, brand, target_spend, target_sales, target_opex
		FROM budgets
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query budgets: %w", err)
	}
	defer rows.Close()

	result := make(map[BudgetKey]Budget)
	for rows.Next() {
		var b Budget
		if err := rows.Scan(&b.Market, &b.Brand, &b.TargetSpend, &b.TargetSales, &b.TargetOpex); err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		result[b.BudgetKey] = b
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating budgets: %w", err)
	}

	return result, nil
}

// GetBaselineSales returns reference-year baseline sell-out value per brand.
// Baseline sales are the non-promotional share of sales; they are measured at
// brand level because attribution below that is not available.
func (r *Repository) GetBaselineSales() (map[BrandKey]float64, error) {
	rows, err := r.db.Query(`
		SELECT region, market, brand, sales_value
		FROM baseline_sales
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query baseline sales: %w", err)
	}
	defer rows.Close()

	result := make(map[BrandKey]float64)
	for rows.Next() {
		var key BrandKey
		var value float64
		if err := rows.Scan(&key.Region, &key.Market, &key.Brand, &value); err != nil {
			return nil, fmt.Errorf("failed to scan baseline sales: %w", err)
		}
		result[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating baseline sales: %w", err)
	}

	return result, nil
}

// UpsertBaselineSales inserts or replaces baseline sales rows.
func (r *Repository) UpsertBaselineSales(sales map[BrandKey]float64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin baseline sales upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for key, value := range sales {
		if _, err := tx.Exec(`
			INSERT OR REPLACE INTO baseline_sales (region, market, brand, sales_value)
			VALUES (?, ?, ?, ?)
		`, key.Region, key.Market, key.Brand, value); err != nil {
			return fmt.Errorf("failed to upsert baseline sales for %s/%s/%s: %w", key.Region, key.Market, key.Brand, err)
		}
	}

	return tx.Commit()
}

// UpsertFinancials inserts or replaces brand financials.
func (r *Repository) UpsertFinancials(financials []Financials) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin financials upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, f := range financials {
		if _, err := tx.Exec(`
			INSERT OR REPLACE INTO brand_financials
				(region, market, brand, price_per_unit, gross_margin_pct)
			VALUES (?, ?, ?, ?, ?)
		`, f.Region, f.Market, f.Brand, f.PricePerUnit, f.GrossMarginPct); err != nil {
			return fmt.Errorf("failed to upsert financials for %s/%s/%s: %w", f.Region, f.Market, f.Brand, err)
		}
	}

	return tx.Commit()
}

// UpsertBudgets inserts or replaces budget targets.
func (r *Repository) UpsertBudgets(budgets []Budget) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin budgets upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, b := range budgets {
		if _, err := tx.Exec(`
			INSERT OR REPLACE INTO budgets
				(market, brand, target_spend, target_sales, target_opex)
			VALUES (?, ?, ?, ?, ?)
		`, b.Market, b.Brand, b.TargetSpend, b.TargetSales, b.TargetOpex); err != nil {
			return fmt.Errorf("failed to upsert budget for %s/%s: %w", b.Market, b.Brand, err)
		}
	}

	return tx.Commit()
}
