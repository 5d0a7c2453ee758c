package engine_test

import (
	"strings"
	"testing"

	"github.com/ledgerline/statement-engine/engine"
)

func TestDetectDiscrepancy_SignedDifference(t *testing.T) {
	// Difference is manual minus carryforward, so a manual entry above
	// the carryforward reports a positive difference.
	d := engine.DetectDiscrepancy(dec("5000"), dec("5200"))

	if !d.HasDiscrepancy {
		t.Error("expected a discrepancy")
	}
	if !d.Difference.Equal(dec("200")) {
		t.Errorf("difference = %s, want 200", d.Difference)
	}
	if !d.ExceedsTolerance {
		t.Error("200 exceeds the 0.01 tolerance")
	}
	if !d.PercentageDifference.Equal(dec("4")) {
		t.Errorf("percentage = %s, want 4", d.PercentageDifference)
	}
}

func TestDetectDiscrepancy_ToleranceBoundary(t *testing.T) {
	// Exactly 0.01 apart is WITHIN tolerance; the comparison is strict.
	within := engine.DetectDiscrepancy(dec("100.00"), dec("100.01"))
	if within.ExceedsTolerance {
		t.Error("a 0.01 difference should be within tolerance")
	}
	if !within.HasDiscrepancy {
		t.Error("a 0.01 difference is still a discrepancy")
	}

	beyond := engine.DetectDiscrepancy(dec("100.00"), dec("100.02"))
	if !beyond.ExceedsTolerance {
		t.Error("a 0.02 difference should exceed tolerance")
	}
}

func TestDetectDiscrepancy_ZeroBase(t *testing.T) {
	// A zero carryforward base with any difference reports 100%, not a
	// division blowup.
	d := engine.DetectDiscrepancy(dec("0"), dec("50"))
	if !d.PercentageDifference.Equal(dec("100")) {
		t.Errorf("percentage = %s, want 100", d.PercentageDifference)
	}

	same := engine.DetectDiscrepancy(dec("0"), dec("0"))
	if same.HasDiscrepancy || !same.PercentageDifference.IsZero() {
		t.Errorf("identical zeros should report no discrepancy, got %+v", same)
	}
}

func TestValidateCarryforward_CleanResult(t *testing.T) {
	out := engine.ValidateCarryforward(dec("5000"), dec("0"), "FY2026-Q1", "")
	if !out.IsValid {
		t.Error("a plain positive carryforward is valid")
	}
	if len(out.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", out.Warnings)
	}
}

func TestValidateCarryforward_NoPreviousPeriod(t *testing.T) {
	out := engine.ValidateCarryforward(dec("0"), dec("0"), "", "")
	if len(out.Warnings) != 1 || !strings.Contains(out.Warnings[0].Message, "no previous period") {
		t.Errorf("expected an absence warning, got %v", out.Warnings)
	}
	if out.Warnings[0].Kind != engine.WarnNoPreviousPeriod {
		t.Errorf("kind = %s, want NO_PREVIOUS_PERIOD", out.Warnings[0].Kind)
	}
	if !out.IsValid {
		t.Error("absence alone does not invalidate the result")
	}
}

func TestValidateCarryforward_LargeBalanceIsWarningNotError(t *testing.T) {
	// GIVEN: An opening balance at the 1,000,000 threshold
	// THEN: A warning is raised but the result stays valid

	out := engine.ValidateCarryforward(dec("1000000"), dec("0"), "FY2026-Q1", "")
	if !out.IsValid {
		t.Error("a large balance must not invalidate the result")
	}
	found := false
	for _, w := range out.Warnings {
		if w.Kind == engine.WarnLargeBalance && strings.Contains(w.Message, "unusually large") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an unusually-large warning, got %v", out.Warnings)
	}

	below := engine.ValidateCarryforward(dec("999999.99"), dec("0"), "FY2026-Q1", "")
	if len(below.Warnings) != 0 {
		t.Errorf("just below the threshold should not warn, got %v", below.Warnings)
	}
}

func TestValidateCarryforward_NegativeBalanceInvalidates(t *testing.T) {
	out := engine.ValidateCarryforward(dec("-250"), dec("0"), "FY2026-Q1", "")
	if out.IsValid {
		t.Error("a negative opening balance is invalid")
	}
	if len(out.Warnings) != 1 || !strings.Contains(out.Warnings[0].Message, "possible data error") {
		t.Errorf("expected a data-error warning, got %v", out.Warnings)
	}
	if out.Warnings[0].Kind != engine.WarnNegativeBalance {
		t.Errorf("kind = %s, want NEGATIVE_BALANCE", out.Warnings[0].Kind)
	}
}

func TestValidateCarryforward_ManualEntryIsTheEffectiveBalance(t *testing.T) {
	// A positive manual amount replaces the carryforward for edge-case
	// classification: the large-balance test runs against it.
	out := engine.ValidateCarryforward(dec("5000"), dec("2000000"), "FY2026-Q1", "grant top-up")

	large := false
	for _, w := range out.Warnings {
		if w.Kind == engine.WarnLargeBalance && strings.Contains(w.Message, "2000000") {
			large = true
		}
	}
	if !large {
		t.Errorf("expected the manual amount to drive the large-balance warning, got %v", out.Warnings)
	}

	discrepancy := false
	for _, w := range out.Warnings {
		if w.Kind == engine.WarnDiscrepancy && strings.Contains(w.Message, "grant top-up") {
			discrepancy = true
		}
	}
	if !discrepancy {
		t.Errorf("expected a discrepancy warning quoting the reason, got %v", out.Warnings)
	}
}
