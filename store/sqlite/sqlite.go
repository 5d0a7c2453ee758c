/*
Package sqlite provides a SQLite-backed implementation of the engine's
Store interface.

PURPOSE:
  Implements the read queries the engine needs (periods, facilities,
  projects, event mappings, execution records) plus the save helpers used
  by seeding and the data-entry side. In production the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  reporting_periods: Fiscal periods, ordered by end date per cadence
  facilities:        Display names for per-facility breakdowns
  projects:          One record per project type
  event_mappings:    Event code <-> financial activity code links
  execution_records: Activity rows with a JSON payload

EVENT-CODE JOINS:
  Activity balances live inside the payload JSON. Balance-by-event-code
  queries expand the activity map with json_each and join it against
  event_mappings. The numeric accumulation happens in Go with
  decimal.Decimal, because summing TEXT amounts as REAL in SQL would
  lose precision.

DECIMALS:
  All amounts are stored as TEXT decimal strings, never REAL.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/statement.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
  eng := engine.NewCarryforwardEngine(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - engine/store.go: Interface definition
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ledgerline/statement-engine/engine"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Store implements engine.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reporting_periods (
		id TEXT PRIMARY KEY,
		fiscal_year INTEGER NOT NULL,
		cadence TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL
	);

	-- Previous-period resolution is a top-1 scan over this index
	CREATE INDEX IF NOT EXISTS idx_periods_cadence_end
		ON reporting_periods(cadence, end_date DESC);

	CREATE TABLE IF NOT EXISTS facilities (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		project_type TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS event_mappings (
		event_code TEXT NOT NULL,
		activity_code TEXT NOT NULL,
		PRIMARY KEY (event_code, activity_code)
	);

	CREATE INDEX IF NOT EXISTS idx_event_mappings_activity
		ON event_mappings(activity_code);

	CREATE TABLE IF NOT EXISTS execution_records (
		id TEXT PRIMARY KEY,
		period_id TEXT NOT NULL,
		facility_id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		entity_type TEXT NOT NULL DEFAULT 'execution',
		payload_json TEXT NOT NULL,
		metadata_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_execution_records_triple
		ON execution_records(period_id, facility_id, project_id, entity_type);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PERIODS
// =============================================================================

func (s *Store) FindReportingPeriod(ctx context.Context, id engine.PeriodID) (*engine.ReportingPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, fiscal_year, cadence, start_date, end_date FROM reporting_periods WHERE id = ?",
		string(id),
	)
	return scanPeriod(row)
}

func (s *Store) FindLatestPeriodBefore(ctx context.Context, cadence engine.Cadence, before time.Time) (*engine.ReportingPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, fiscal_year, cadence, start_date, end_date
		FROM reporting_periods
		WHERE cadence = ? AND end_date < ?
		ORDER BY end_date DESC
		LIMIT 1`,
		string(cadence), before.UTC().Format(time.RFC3339),
	)
	return scanPeriod(row)
}

func scanPeriod(row *sql.Row) (*engine.ReportingPeriod, error) {
	var (
		p          engine.ReportingPeriod
		start, end string
	)
	err := row.Scan(&p.ID, &p.FiscalYear, &p.Cadence, &start, &end)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan reporting period: %w", err)
	}
	p.StartDate, _ = time.Parse(time.RFC3339, start)
	p.EndDate, _ = time.Parse(time.RFC3339, end)
	return &p, nil
}

// =============================================================================
// FACILITIES AND PROJECTS
// =============================================================================

func (s *Store) FindProjectByType(ctx context.Context, projectType string) (*engine.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p engine.Project
	err := s.db.QueryRowContext(ctx,
		"SELECT id, project_type FROM projects WHERE project_type = ? LIMIT 1",
		projectType,
	).Scan(&p.ID, &p.Type)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) FindFacilitiesByIDs(ctx context.Context, ids []engine.FacilityID) ([]engine.Facility, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, name FROM facilities WHERE id IN (" + placeholders(len(ids)) + ")"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = string(id)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[engine.FacilityID]engine.Facility, len(ids))
	for rows.Next() {
		var f engine.Facility
		if err := rows.Scan(&f.ID, &f.Name); err != nil {
			return nil, err
		}
		byID[f.ID] = f
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Preserve input order; unknown ids are omitted.
	out := make([]engine.Facility, 0, len(byID))
	for _, id := range ids {
		if f, ok := byID[id]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// =============================================================================
// EXECUTION RECORDS
// =============================================================================

// FindExecutionRecord returns the primary activity record for a
// period/facility/project triple: the earliest row wins, since manual
// opening-balance rows are appended after the execution entry itself.
func (s *Store) FindExecutionRecord(ctx context.Context, periodID engine.PeriodID, facilityID engine.FacilityID, projectID engine.ProjectID) (*engine.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payloadJSON string
	var metadataJSON sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT payload_json, metadata_json
		FROM execution_records
		WHERE period_id = ? AND facility_id = ? AND project_id = ? AND entity_type = ?
		ORDER BY created_at ASC, id ASC
		LIMIT 1`,
		string(periodID), string(facilityID), string(projectID), engine.EntityTypeExecution,
	).Scan(&payloadJSON, &metadataJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	payload, warnings := engine.ParseExecutionPayload([]byte(payloadJSON))
	for _, w := range warnings {
		zerolog.Ctx(ctx).Warn().
			Str("period", string(periodID)).
			Str("facility", string(facilityID)).
			Msg("execution payload: " + w)
	}

	rec := &engine.ExecutionRecord{
		PeriodID:       periodID,
		FacilityID:     facilityID,
		ProjectID:      projectID,
		EntityType:     engine.EntityTypeExecution,
		Activities:     payload.Activities,
		VATReceivables: payload.VATReceivables,
		FormData:       payload.FormData,
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		json.Unmarshal([]byte(metadataJSON.String), &rec.Metadata)
	}
	return rec, nil
}

func (s *Store) SumBalancesByEventCode(ctx context.Context, q engine.BalanceQuery) (map[string]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT em.event_code, json_extract(a.value, '$.cumulativeBalance')
		FROM execution_records er
		JOIN json_each(er.payload_json, '$.activities') AS a
		JOIN event_mappings em ON em.activity_code = a.key
		WHERE er.period_id = ? AND er.project_id = ? AND er.entity_type = ?
		  AND em.event_code IN (` + placeholders(len(q.EventCodes)) + `)`

	args := []any{string(q.PeriodID), string(q.ProjectID), engine.EntityTypeExecution}
	for _, ec := range q.EventCodes {
		args = append(args, ec)
	}
	if len(q.FacilityIDs) > 0 {
		query += " AND er.facility_id IN (" + placeholders(len(q.FacilityIDs)) + ")"
		for _, id := range q.FacilityIDs {
			args = append(args, string(id))
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sums := make(map[string]decimal.Decimal)
	for rows.Next() {
		var eventCode string
		var raw any
		if err := rows.Scan(&eventCode, &raw); err != nil {
			return nil, err
		}
		amount, ok := engine.CoerceDecimal(raw)
		if !ok {
			zerolog.Ctx(ctx).Warn().
				Str("event_code", eventCode).
				Str("period", string(q.PeriodID)).
				Msg("skipping non-numeric balance in event code sum")
			continue
		}
		sums[eventCode] = sums[eventCode].Add(amount)
	}
	return sums, rows.Err()
}

func (s *Store) FindOpeningBalanceRows(ctx context.Context, periodID engine.PeriodID, projectID engine.ProjectID, facilityID *engine.FacilityID) ([]engine.OverrideRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT json_extract(a.value, '$.cumulativeBalance'),
		       er.metadata_json,
		       json_extract(er.payload_json, '$.formData')
		FROM execution_records er
		JOIN json_each(er.payload_json, '$.activities') AS a
		JOIN event_mappings em ON em.activity_code = a.key
		WHERE em.event_code = ? AND er.period_id = ? AND er.project_id = ?`

	args := []any{engine.EventOpeningCash, string(periodID), string(projectID)}
	if facilityID != nil {
		query += " AND er.facility_id = ?"
		args = append(args, string(*facilityID))
	}
	query += " ORDER BY er.created_at ASC, er.id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.OverrideRow
	for rows.Next() {
		var raw any
		var metadataJSON, formJSON sql.NullString
		if err := rows.Scan(&raw, &metadataJSON, &formJSON); err != nil {
			return nil, err
		}

		row := engine.OverrideRow{RawAmount: rawString(raw)}
		if metadataJSON.Valid && metadataJSON.String != "" {
			json.Unmarshal([]byte(metadataJSON.String), &row.Metadata)
		}
		if formJSON.Valid && formJSON.String != "" {
			json.Unmarshal([]byte(formJSON.String), &row.FormData)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// =============================================================================
// SAVE HELPERS (seeding and the data-entry side)
// =============================================================================

func (s *Store) SavePeriod(ctx context.Context, p engine.ReportingPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reporting_periods (id, fiscal_year, cadence, start_date, end_date)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			fiscal_year = excluded.fiscal_year,
			cadence = excluded.cadence,
			start_date = excluded.start_date,
			end_date = excluded.end_date`,
		string(p.ID), p.FiscalYear, string(p.Cadence),
		p.StartDate.UTC().Format(time.RFC3339),
		p.EndDate.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) SaveFacility(ctx context.Context, f engine.Facility) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO facilities (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		string(f.ID), f.Name,
	)
	return err
}

func (s *Store) SaveProject(ctx context.Context, p engine.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, project_type) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET project_type = excluded.project_type`,
		string(p.ID), p.Type,
	)
	return err
}

func (s *Store) SaveEventMapping(ctx context.Context, m engine.EventMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO event_mappings (event_code, activity_code) VALUES (?, ?)
		ON CONFLICT(event_code, activity_code) DO NOTHING`,
		m.EventCode, string(m.ActivityCode),
	)
	return err
}

// SaveExecutionRecord persists a typed record in its JSON payload form.
// Amounts are serialized as decimal strings.
func (s *Store) SaveExecutionRecord(ctx context.Context, id string, rec engine.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payloadJSON, err := marshalPayload(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize execution payload: %w", err)
	}

	var metadataJSON []byte
	if rec.Metadata != nil {
		metadataJSON, _ = json.Marshal(rec.Metadata)
	}

	entityType := rec.EntityType
	if entityType == "" {
		entityType = engine.EntityTypeExecution
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO execution_records
		(id, period_id, facility_id, project_id, entity_type, payload_json, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload_json = excluded.payload_json,
			metadata_json = excluded.metadata_json`,
		id, string(rec.PeriodID), string(rec.FacilityID), string(rec.ProjectID),
		entityType, payloadJSON, nullString(string(metadataJSON)),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"execution_records", "event_mappings", "projects", "facilities", "reporting_periods"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func marshalPayload(rec engine.ExecutionRecord) (string, error) {
	activities := make(map[string]map[string]any, len(rec.Activities))
	for code, a := range rec.Activities {
		activities[string(code)] = map[string]any{
			"section":           a.Section,
			"cumulativeBalance": a.CumulativeBalance.String(),
		}
	}
	vat := make(map[string]map[string]any, len(rec.VATReceivables))
	for category, v := range rec.VATReceivables {
		vat[category] = map[string]any{
			"amount":  v.Amount.String(),
			"cleared": v.Cleared.String(),
		}
	}

	body := map[string]any{"activities": activities}
	if len(vat) > 0 {
		body["vatReceivables"] = vat
	}
	if rec.FormData != nil {
		body["formData"] = rec.FormData
	}

	raw, err := json.Marshal(body)
	return string(raw), err
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func rawString(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case []byte:
		return string(n)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(n, 10)
	default:
		return fmt.Sprint(n)
	}
}
