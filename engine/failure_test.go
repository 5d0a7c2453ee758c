/*
failure_test.go - Failure and deadline semantics

ORGANIZATION:
  1. Hard store failures: converted into fallback/failed results
  2. Timeouts: classified as absence, never as failures
  3. Panics: caught at the public entry points
  4. Expired overall deadline: fallback retries the manual read

READING THESE TESTS:
  The two public entry points never return an error and never panic
  outward. These tests drive them with stores that fail, time out, or
  panic, and assert the degraded-result shape users actually receive.
*/
package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ledgerline/statement-engine/engine"
	"github.com/shopspring/decimal"
)

// brokenStore fails every query with a fixed error.
type brokenStore struct {
	err error
}

func (s *brokenStore) FindReportingPeriod(ctx context.Context, id engine.PeriodID) (*engine.ReportingPeriod, error) {
	return nil, s.err
}

func (s *brokenStore) FindLatestPeriodBefore(ctx context.Context, cadence engine.Cadence, before time.Time) (*engine.ReportingPeriod, error) {
	return nil, s.err
}

func (s *brokenStore) FindProjectByType(ctx context.Context, projectType string) (*engine.Project, error) {
	return nil, s.err
}

func (s *brokenStore) FindFacilitiesByIDs(ctx context.Context, ids []engine.FacilityID) ([]engine.Facility, error) {
	return nil, s.err
}

func (s *brokenStore) FindExecutionRecord(ctx context.Context, periodID engine.PeriodID, facilityID engine.FacilityID, projectID engine.ProjectID) (*engine.ExecutionRecord, error) {
	return nil, s.err
}

func (s *brokenStore) SumBalancesByEventCode(ctx context.Context, q engine.BalanceQuery) (map[string]decimal.Decimal, error) {
	return nil, s.err
}

func (s *brokenStore) FindOpeningBalanceRows(ctx context.Context, periodID engine.PeriodID, projectID engine.ProjectID, facilityID *engine.FacilityID) ([]engine.OverrideRow, error) {
	return nil, s.err
}

// panickingStore blows up on first contact.
type panickingStore struct {
	brokenStore
}

func (s *panickingStore) FindProjectByType(ctx context.Context, projectType string) (*engine.Project, error) {
	panic("store connection state corrupted")
}

// =============================================================================
// 1. HARD STORE FAILURES
// =============================================================================

func TestGetBeginningCash_StoreFailureProducesFallbackNotError(t *testing.T) {
	// GIVEN: A store where every query fails hard
	// WHEN: Computing beginning cash
	// THEN: A zero FALLBACK result with the error recorded in metadata,
	//       not a raised error or panic

	eng := engine.NewCarryforwardEngine(&brokenStore{err: errors.New("connection refused")})
	res := eng.GetBeginningCash(context.Background(), engine.CarryforwardOptions{
		PeriodID:    "FY2026-Q2",
		FacilityID:  facility("F-001"),
		ProjectType: "MALARIA",
	})

	if res.Success {
		t.Error("expected an unsuccessful result")
	}
	if res.Source != engine.SourceFallback {
		t.Errorf("source = %s, want FALLBACK", res.Source)
	}
	if !res.BeginningCash.IsZero() {
		t.Errorf("beginning cash = %s, want 0", res.BeginningCash)
	}
	if !strings.Contains(res.Metadata.ErrorMessage, "connection refused") {
		t.Errorf("error message = %q, want the store error recorded", res.Metadata.ErrorMessage)
	}
	if !hasWarningContaining(res.Warnings, "manual opening balance lookup failed") {
		t.Errorf("expected the lookup-failed warning, got %v", res.Warnings)
	}
	if !hasWarningContaining(res.Warnings, "fallback manual entry lookup failed") {
		t.Errorf("expected the fallback-failed warning, got %v", res.Warnings)
	}
}

func TestCalculateChanges_StoreFailureProducesFailedResult(t *testing.T) {
	// GIVEN: A store where every query fails hard
	// THEN: A failed result with zero adjustments and the error in metadata

	calc := engine.NewWorkingCapitalCalculator(&brokenStore{err: errors.New("connection refused")})
	res := calc.CalculateChanges(context.Background(), engine.WorkingCapitalParams{
		PeriodID:    "FY2026-Q2",
		ProjectType: "MALARIA",
	})

	if res.Success {
		t.Error("expected an unsuccessful result")
	}
	if !strings.Contains(res.Metadata.ErrorMessage, "connection refused") {
		t.Errorf("error message = %q, want the store error recorded", res.Metadata.ErrorMessage)
	}
	if !res.ReceivablesChange.CashFlowAdjustment.IsZero() || !res.PayablesChange.CashFlowAdjustment.IsZero() {
		t.Errorf("adjustments should default to zero, got %+v", res)
	}
	if !hasWarningContaining(res.Warnings, "could not be calculated") {
		t.Errorf("expected the defaulted warning, got %v", res.Warnings)
	}
}

// =============================================================================
// 2. TIMEOUTS CLASSIFY AS ABSENCE
// =============================================================================

func TestGetBeginningCash_QueryTimeoutTreatedAsAbsence(t *testing.T) {
	// GIVEN: A store where every query reports a deadline expiry
	// THEN: The result degrades through the absence branches with no
	//       error message recorded; a timeout is missing data, not a failure

	eng := engine.NewCarryforwardEngine(&brokenStore{err: context.DeadlineExceeded})
	res := eng.GetBeginningCash(context.Background(), engine.CarryforwardOptions{
		PeriodID:    "FY2026-Q2",
		FacilityID:  facility("F-001"),
		ProjectType: "MALARIA",
	})

	if res.Success {
		t.Error("expected an unsuccessful result")
	}
	if res.Source != engine.SourceFallback {
		t.Errorf("source = %s, want FALLBACK", res.Source)
	}
	if res.Metadata.ErrorMessage != "" {
		t.Errorf("a timeout must not record a failure message, got %q", res.Metadata.ErrorMessage)
	}
	if !res.BeginningCash.IsZero() {
		t.Errorf("beginning cash = %s, want 0", res.BeginningCash)
	}
}

func TestCalculateChanges_QueryTimeoutTreatedAsAbsence(t *testing.T) {
	// Timed-out lookups read as absent data: the calculation succeeds
	// with zero balances and absence warnings, never a failed result.
	calc := engine.NewWorkingCapitalCalculator(&brokenStore{err: context.DeadlineExceeded})
	res := calc.CalculateChanges(context.Background(), engine.WorkingCapitalParams{
		PeriodID:    "FY2026-Q2",
		ProjectType: "MALARIA",
	})

	if !res.Success {
		t.Fatalf("timeouts must not fail the calculation, got %+v", res)
	}
	if res.Metadata.ErrorMessage != "" {
		t.Errorf("a timeout must not record a failure message, got %q", res.Metadata.ErrorMessage)
	}
	if !res.ReceivablesChange.CashFlowAdjustment.IsZero() || !res.PayablesChange.CashFlowAdjustment.IsZero() {
		t.Errorf("adjustments should read as zero, got %+v", res)
	}
	if !hasWarningContaining(res.Warnings, "no previous period") {
		t.Errorf("expected the absence warning, got %v", res.Warnings)
	}
}

// =============================================================================
// 3. PANICS ARE CAUGHT AT THE ENTRY POINTS
// =============================================================================

func TestGetBeginningCash_StorePanicIsCaught(t *testing.T) {
	eng := engine.NewCarryforwardEngine(&panickingStore{})
	res := eng.GetBeginningCash(context.Background(), engine.CarryforwardOptions{
		PeriodID:    "FY2026-Q2",
		FacilityID:  facility("F-001"),
		ProjectType: "MALARIA",
	})

	if res.Success {
		t.Error("expected an unsuccessful result")
	}
	if res.Source != engine.SourceFallback {
		t.Errorf("source = %s, want FALLBACK", res.Source)
	}
	if !strings.Contains(res.Metadata.ErrorMessage, "panic") {
		t.Errorf("error message = %q, want the panic recorded", res.Metadata.ErrorMessage)
	}
	if !hasWarningContaining(res.Warnings, "fallback failed unexpectedly") {
		t.Errorf("expected the fallback-panic warning, got %v", res.Warnings)
	}
}

func TestCalculateChanges_StorePanicIsCaught(t *testing.T) {
	calc := engine.NewWorkingCapitalCalculator(&panickingStore{})
	res := calc.CalculateChanges(context.Background(), engine.WorkingCapitalParams{
		PeriodID:    "FY2026-Q2",
		ProjectType: "MALARIA",
	})

	if res.Success {
		t.Error("expected an unsuccessful result")
	}
	if !strings.Contains(res.Metadata.ErrorMessage, "panic") {
		t.Errorf("error message = %q, want the panic recorded", res.Metadata.ErrorMessage)
	}
}

// =============================================================================
// 4. EXPIRED OVERALL DEADLINE
// =============================================================================

func TestGetBeginningCash_ExpiredDeadlineRetriesManualEntry(t *testing.T) {
	// GIVEN: A period with both a previous period and a manual entry, and
	//        a caller context that has already expired
	// WHEN: Computing beginning cash
	// THEN: The call does NOT misreport "no previous period"; it takes the
	//       fallback, whose fresh deadline still recovers the manual entry

	mem := carryFixture()
	addManualEntry(mem, "FY2026-Q2", "F-001", "5200", "bank reconciliation")

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	eng := engine.NewCarryforwardEngine(mem)
	res := eng.GetBeginningCash(ctx, engine.CarryforwardOptions{
		PeriodID:    "FY2026-Q2",
		FacilityID:  facility("F-001"),
		ProjectType: "MALARIA",
	})

	if !res.Success {
		t.Fatalf("expected the fallback to recover the manual entry, got %+v", res)
	}
	if !res.BeginningCash.Equal(dec("5200")) {
		t.Errorf("beginning cash = %s, want 5200", res.BeginningCash)
	}
	if res.Source != engine.SourceFallback {
		t.Errorf("source = %s, want FALLBACK", res.Source)
	}
	if !hasWarningContaining(res.Warnings, "exceeded its time budget") {
		t.Errorf("expected the deadline warning, got %v", res.Warnings)
	}
	if hasWarningContaining(res.Warnings, "no previous period") {
		t.Errorf("an expired deadline must not read as a missing previous period, got %v", res.Warnings)
	}
}
