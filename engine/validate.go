/*
validate.go - Pure carryforward validation policy

PURPOSE:
  Classifies discrepancies and edge cases into warnings without touching any
  data source. The carryforward engine calls into this module, but the
  policy lives here so it can be tested and reasoned about without mocking
  I/O.

POLICY:
  - Discrepancy tolerance: 0.01 absolute between manual and carryforward
  - Large balance: >= 1,000,000 draws a warning, never an error
  - Negative effective balance: flagged as a possible data error

SEE ALSO:
  - carryforward.go: The only caller
*/
package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Discrepancy describes how a manual opening balance relates to the
// computed carryforward.
type Discrepancy struct {
	HasDiscrepancy       bool
	Difference           decimal.Decimal
	PercentageDifference decimal.Decimal
	ExceedsTolerance     bool
}

// DetectDiscrepancy compares a computed carryforward with a manual entry.
// Difference is signed (manual minus carryforward). The percentage is
// relative to the carryforward base; a zero base with a nonzero difference
// reports 100%.
func DetectDiscrepancy(carryforward, manual decimal.Decimal) Discrepancy {
	diff := manual.Sub(carryforward)
	d := Discrepancy{
		HasDiscrepancy:   !diff.IsZero(),
		Difference:       diff,
		ExceedsTolerance: diff.Abs().GreaterThan(DiscrepancyTolerance),
	}
	if !carryforward.IsZero() {
		d.PercentageDifference = diff.Div(carryforward).Mul(decimal.NewFromInt(100)).Abs()
	} else if !diff.IsZero() {
		d.PercentageDifference = decimal.NewFromInt(100)
	}
	return d
}

// ValidationWarningKind classifies a validator warning so callers can
// select warnings without matching message text.
type ValidationWarningKind string

const (
	WarnNoPreviousPeriod ValidationWarningKind = "NO_PREVIOUS_PERIOD"
	WarnDiscrepancy      ValidationWarningKind = "DISCREPANCY"
	WarnLargeBalance     ValidationWarningKind = "LARGE_BALANCE"
	WarnNegativeBalance  ValidationWarningKind = "NEGATIVE_BALANCE"
)

// ValidationWarning pairs a kind with the user-facing message.
type ValidationWarning struct {
	Kind    ValidationWarningKind
	Message string
}

// ValidationOutcome is the result of ValidateCarryforward.
type ValidationOutcome struct {
	IsValid  bool
	Warnings []ValidationWarning
}

// ValidateCarryforward classifies the edge cases of a resolved carryforward.
// previousPeriodID is empty when no previous period exists; overrideReason
// is quoted in the discrepancy warning when present. The outcome is invalid
// only when the effective opening balance is negative.
func ValidateCarryforward(carryforward, manual decimal.Decimal, previousPeriodID PeriodID, overrideReason string) ValidationOutcome {
	out := ValidationOutcome{IsValid: true}

	effective := carryforward
	if manual.IsPositive() {
		effective = manual
	}

	if previousPeriodID == "" {
		out.Warnings = append(out.Warnings, ValidationWarning{
			Kind:    WarnNoPreviousPeriod,
			Message: "no previous period exists; opening balance cannot be carried forward",
		})
	}

	if manual.IsPositive() {
		if d := DetectDiscrepancy(carryforward, manual); d.ExceedsTolerance {
			w := fmt.Sprintf("manual opening balance %s differs from carryforward %s by %s",
				manual.String(), carryforward.String(), d.Difference.String())
			if overrideReason != "" {
				w += fmt.Sprintf(" (reason: %s)", overrideReason)
			}
			out.Warnings = append(out.Warnings, ValidationWarning{Kind: WarnDiscrepancy, Message: w})
		}
	}

	if effective.GreaterThanOrEqual(LargeBalanceThreshold) {
		out.Warnings = append(out.Warnings, ValidationWarning{
			Kind:    WarnLargeBalance,
			Message: fmt.Sprintf("opening balance %s is unusually large; verify before publishing", effective.String()),
		})
	}

	if effective.IsNegative() {
		out.IsValid = false
		out.Warnings = append(out.Warnings, ValidationWarning{
			Kind:    WarnNegativeBalance,
			Message: fmt.Sprintf("opening balance %s is negative; possible data error", effective.String()),
		})
	}

	return out
}
