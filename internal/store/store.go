// Package store persists taxonomies, scenario sets and coverage reports in SQLite
// so runs can be compared and served later.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/policygap/internal/model"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// now is swapped in tests that need distinct timestamps
var now = func() time.Time { return time.Now().UTC() }

// timeLayout is fixed-width so created_at sorts lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// connPragmas are applied by the driver to each new connection
const connPragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"

// ErrNotFound is returned when a record id does not exist
var ErrNotFound = errors.New("not found")

// TaxonomyRecord is a stored taxonomy
type TaxonomyRecord struct {
	ID        string                    `json:"id"`
	Name      string                    `json:"name"`
	CreatedAt time.Time                 `json:"created_at"`
	Taxonomy  model.SubCategoryTaxonomy `json:"taxonomy"`
}

// ScenarioSetRecord is a stored set of (possibly tagged) scenarios
type ScenarioSetRecord struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	CreatedAt time.Time              `json:"created_at"`
	Scenarios []model.GoldenScenario `json:"scenarios"`
}

// ReportRecord is a stored coverage report with the inputs it was computed from
type ReportRecord struct {
	ID            string               `json:"id"`
	Label         string               `json:"label"`
	TaxonomyID    string               `json:"taxonomy_id,omitempty"`
	ScenarioSetID string               `json:"scenario_set_id,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	Report        model.CoverageReport `json:"report"`
}

// ReportSummary is the list view of a stored report
type ReportSummary struct {
	ID                     string    `json:"id"`
	Label                  string    `json:"label"`
	TaxonomyID             string    `json:"taxonomy_id,omitempty"`
	ScenarioSetID          string    `json:"scenario_set_id,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
	OverallCoveragePercent float64   `json:"overall_coverage_percent"`
	GapCount               int       `json:"gap_count"`
	TotalScenarios         int       `json:"total_scenarios"`
}

// SaveReportParams holds the input for storing a report
type SaveReportParams struct {
	Label         string
	TaxonomyID    string
	ScenarioSetID string
	Report        model.CoverageReport
}

// Store is the SQLite-backed run store
type Store struct {
	db *sql.DB
}

// Open creates the parent directory if needed, opens SQLite with WAL mode and runs migrations
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("store: create data dir: %w", err)
		}
	}

	// Pragmas go in the DSN so every pooled connection gets them
	db, err := openDB("sqlite", path+"?"+connPragmas)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS taxonomies (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			created_at TEXT NOT NULL,
			data_json  TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS scenario_sets (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			created_at TEXT NOT NULL,
			data_json  TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS reports (
			id              TEXT PRIMARY KEY,
			label           TEXT NOT NULL,
			taxonomy_id     TEXT,
			scenario_set_id TEXT,
			overall         REAL    NOT NULL,
			gap_count       INTEGER NOT NULL,
			total_scenarios INTEGER NOT NULL,
			created_at      TEXT    NOT NULL,
			data_json       TEXT    NOT NULL,
			FOREIGN KEY (taxonomy_id) REFERENCES taxonomies(id),
			FOREIGN KEY (scenario_set_id) REFERENCES scenario_sets(id)
		);

		CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveTaxonomy stores a taxonomy and returns its new id
func (s *Store) SaveTaxonomy(ctx context.Context, name string, tax model.SubCategoryTaxonomy) (string, error) {
	return s.insertDocument(ctx, "taxonomies", name, tax)
}

// GetTaxonomy loads a stored taxonomy
func (s *Store) GetTaxonomy(ctx context.Context, id string) (TaxonomyRecord, error) {
	var rec TaxonomyRecord
	created, err := s.getDocument(ctx, "taxonomies", id, &rec.Name, &rec.Taxonomy)
	if err != nil {
		return TaxonomyRecord{}, err
	}
	rec.ID, rec.CreatedAt = id, created
	return rec, nil
}

// SaveScenarioSet stores a scenario set and returns its new id
func (s *Store) SaveScenarioSet(ctx context.Context, name string, scenarios []model.GoldenScenario) (string, error) {
	if scenarios == nil {
		scenarios = []model.GoldenScenario{}
	}
	return s.insertDocument(ctx, "scenario_sets", name, scenarios)
}

// GetScenarioSet loads a stored scenario set
func (s *Store) GetScenarioSet(ctx context.Context, id string) (ScenarioSetRecord, error) {
	var rec ScenarioSetRecord
	created, err := s.getDocument(ctx, "scenario_sets", id, &rec.Name, &rec.Scenarios)
	if err != nil {
		return ScenarioSetRecord{}, err
	}
	rec.ID, rec.CreatedAt = id, created
	return rec, nil
}

// SaveReport stores a report. Referenced taxonomy and scenario set ids must exist.
func (s *Store) SaveReport(ctx context.Context, p SaveReportParams) (string, error) {
	data, err := json.Marshal(p.Report)
	if err != nil {
		return "", fmt.Errorf("store: marshal report: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (id, label, taxonomy_id, scenario_set_id, overall, gap_count, total_scenarios, created_at, data_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.Label, nullableString(p.TaxonomyID), nullableString(p.ScenarioSetID),
		p.Report.OverallCoveragePercent, len(p.Report.Gaps), p.Report.TotalScenarios,
		formatTime(now()), string(data),
	)
	if err != nil {
		return "", fmt.Errorf("store: insert report: %w", err)
	}
	return id, nil
}

// GetReport loads a stored report
func (s *Store) GetReport(ctx context.Context, id string) (ReportRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, label, taxonomy_id, scenario_set_id, created_at, data_json FROM reports WHERE id = ?`, id)
	return scanReport(row, id)
}

// LatestReport loads the most recently stored report
func (s *Store) LatestReport(ctx context.Context) (ReportRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, label, taxonomy_id, scenario_set_id, created_at, data_json
		 FROM reports ORDER BY created_at DESC, rowid DESC LIMIT 1`)
	return scanReport(row, "latest")
}

// ListReports returns up to limit report summaries, newest first
func (s *Store) ListReports(ctx context.Context, limit int) ([]ReportSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, taxonomy_id, scenario_set_id, created_at, overall, gap_count, total_scenarios
		 FROM reports ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list reports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []ReportSummary{}
	for rows.Next() {
		var (
			r             ReportSummary
			taxID, setID  sql.NullString
			createdAtText string
		)
		if err := rows.Scan(&r.ID, &r.Label, &taxID, &setID, &createdAtText, &r.OverallCoveragePercent, &r.GapCount, &r.TotalScenarios); err != nil {
			return nil, fmt.Errorf("store: scan report: %w", err)
		}
		r.TaxonomyID, r.ScenarioSetID = taxID.String, setID.String
		if r.CreatedAt, err = parseTime(createdAtText); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) insertDocument(ctx context.Context, table, name string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("store: marshal %s: %w", table, err)
	}

	id := uuid.NewString()
	query := fmt.Sprintf(`INSERT INTO %s (id, name, created_at, data_json) VALUES (?, ?, ?, ?)`, table)
	if _, err := s.db.ExecContext(ctx, query, id, name, formatTime(now()), string(data)); err != nil {
		return "", fmt.Errorf("store: insert %s: %w", table, err)
	}
	return id, nil
}

func (s *Store) getDocument(ctx context.Context, table, id string, name *string, out any) (time.Time, error) {
	query := fmt.Sprintf(`SELECT name, created_at, data_json FROM %s WHERE id = ?`, table)

	var createdAtText, data string
	err := s.db.QueryRowContext(ctx, query, id).Scan(name, &createdAtText, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("store: %s %s: %w", table, id, ErrNotFound)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("store: get %s: %w", table, err)
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return time.Time{}, fmt.Errorf("store: decode %s %s: %w", table, id, err)
	}
	return parseTime(createdAtText)
}

func scanReport(row *sql.Row, ref string) (ReportRecord, error) {
	var (
		rec                 ReportRecord
		taxID, setID        sql.NullString
		createdAtText, data string
	)
	err := row.Scan(&rec.ID, &rec.Label, &taxID, &setID, &createdAtText, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return ReportRecord{}, fmt.Errorf("store: report %s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return ReportRecord{}, fmt.Errorf("store: get report: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &rec.Report); err != nil {
		return ReportRecord{}, fmt.Errorf("store: decode report %s: %w", rec.ID, err)
	}
	rec.TaxonomyID, rec.ScenarioSetID = taxID.String, setID.String
	if rec.CreatedAt, err = parseTime(createdAtText); err != nil {
		return ReportRecord{}, err
	}
	return rec, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("store: parse timestamp %q: %w", s, err)
	}
	return t, nil
}
