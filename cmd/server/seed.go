/*
seed.go - Demo dataset

PURPOSE:
  Loads a small, self-consistent dataset so the API can be exercised
  without a real reporting database: two quarterly periods plus the two
  surrounding fiscal years, two facilities, one malaria project, the
  event mappings, and execution records whose closing balances carry
  forward into the later period.

DATASET SHAPE:
  FY2026 Q1 (Jul-Sep 2025) -> FY2026 Q2 (Oct-Dec 2025)
  Facility F-001 closes Q1 at 5000.00, F-002 at 1200.00.
  F-001 also has a manual opening entry of 5200.00 in Q2, so the
  beginning-cash endpoint demonstrates the discrepancy warning.

SEE ALSO:
  - main.go: The -seed flag
*/
package main

import (
	"context"
	"time"

	"github.com/ledgerline/statement-engine/engine"
	"github.com/ledgerline/statement-engine/store/sqlite"
	"github.com/shopspring/decimal"
)

func seedDemoData(ctx context.Context, store *sqlite.Store) error {
	periods := []engine.ReportingPeriod{
		{ID: "FY2025-ANNUAL", FiscalYear: 2025, Cadence: engine.CadenceAnnual,
			StartDate: date(2024, time.July, 1), EndDate: date(2025, time.June, 30)},
		{ID: "FY2026-ANNUAL", FiscalYear: 2026, Cadence: engine.CadenceAnnual,
			StartDate: date(2025, time.July, 1), EndDate: date(2026, time.June, 30)},
		{ID: "FY2026-Q1", FiscalYear: 2026, Cadence: engine.CadenceQuarterly,
			StartDate: date(2025, time.July, 1), EndDate: date(2025, time.September, 30)},
		{ID: "FY2026-Q2", FiscalYear: 2026, Cadence: engine.CadenceQuarterly,
			StartDate: date(2025, time.October, 1), EndDate: date(2025, time.December, 31)},
	}
	for _, p := range periods {
		if err := store.SavePeriod(ctx, p); err != nil {
			return err
		}
	}

	facilities := []engine.Facility{
		{ID: "F-001", Name: "Central District Hospital"},
		{ID: "F-002", Name: "Northern Health Post"},
	}
	for _, f := range facilities {
		if err := store.SaveFacility(ctx, f); err != nil {
			return err
		}
	}

	project := engine.Project{ID: "P-MAL", Type: "MALARIA"}
	if err := store.SaveProject(ctx, project); err != nil {
		return err
	}

	mappings := []engine.EventMapping{
		{EventCode: engine.EventOpeningCash, ActivityCode: "A-00"},
		{EventCode: engine.EventReceivablesGoods, ActivityCode: "B-01"},
		{EventCode: engine.EventReceivablesVAT, ActivityCode: "B-02"},
		{EventCode: engine.EventReceivablesOther, ActivityCode: "B-03"},
		{EventCode: engine.EventPayablesSuppliers, ActivityCode: "C-01"},
	}
	for _, m := range mappings {
		if err := store.SaveEventMapping(ctx, m); err != nil {
			return err
		}
	}

	type seedRecord struct {
		id  string
		rec engine.ExecutionRecord
	}

	// Execution records first, manual entries last: the primary record for a
	// period/facility/project triple is the earliest row.
	records := []seedRecord{
		// Q1: closing slots plus working-capital balances.
		{"exec-q1-f001", engine.ExecutionRecord{
			PeriodID: "FY2026-Q1", FacilityID: "F-001", ProjectID: project.ID,
			Activities: map[engine.ActivityCode]engine.ActivityBalance{
				"G-01": {Section: engine.ClosingSection, CumulativeBalance: dec("3500.00")},
				"G-02": {Section: engine.ClosingSection, CumulativeBalance: dec("500.00")},
				"G-03": {Section: engine.ClosingSection, CumulativeBalance: dec("1000.00")},
				"B-01": {Section: "B", CumulativeBalance: dec("4000.00")},
				"B-02": {Section: "B", CumulativeBalance: dec("1000.00")},
				"C-01": {Section: "C", CumulativeBalance: dec("3000.00")},
			},
		}},
		{"exec-q1-f002", engine.ExecutionRecord{
			PeriodID: "FY2026-Q1", FacilityID: "F-002", ProjectID: project.ID,
			Activities: map[engine.ActivityCode]engine.ActivityBalance{
				"G-01": {Section: engine.ClosingSection, CumulativeBalance: dec("1200.00")},
				"B-01": {Section: "B", CumulativeBalance: dec("800.00")},
				"C-01": {Section: "C", CumulativeBalance: dec("600.00")},
			},
		}},
		// Q2: current working-capital balances.
		{"exec-q2-f001", engine.ExecutionRecord{
			PeriodID: "FY2026-Q2", FacilityID: "F-001", ProjectID: project.ID,
			Activities: map[engine.ActivityCode]engine.ActivityBalance{
				"B-01": {Section: "B", CumulativeBalance: dec("6500.00")},
				"B-02": {Section: "B", CumulativeBalance: dec("1500.00")},
				"C-01": {Section: "C", CumulativeBalance: dec("4000.00")},
			},
		}},
		{"exec-q2-f002", engine.ExecutionRecord{
			PeriodID: "FY2026-Q2", FacilityID: "F-002", ProjectID: project.ID,
			Activities: map[engine.ActivityCode]engine.ActivityBalance{
				"B-01": {Section: "B", CumulativeBalance: dec("900.00")},
				"C-01": {Section: "C", CumulativeBalance: dec("700.00")},
			},
		}},
		// A manual opening entry for F-001 that disagrees with the 5000.00
		// carryforward, to demonstrate the discrepancy warning.
		{"manual-q2-f001", engine.ExecutionRecord{
			PeriodID: "FY2026-Q2", FacilityID: "F-001", ProjectID: project.ID,
			Activities: map[engine.ActivityCode]engine.ActivityBalance{
				"A-00": {Section: "A", CumulativeBalance: dec("5200.00")},
			},
			Metadata: map[string]any{"overrideReason": "bank reconciliation adjustment"},
		}},
	}

	for _, r := range records {
		if err := store.SaveExecutionRecord(ctx, r.id, r.rec); err != nil {
			return err
		}
	}
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
