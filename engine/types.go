/*
Package engine computes the carryforward and working-capital figures used to
assemble an indirect-method Cash Flow Statement.

PURPOSE:
  This package contains the domain types and algorithms for cross-period
  balance carryforward and working-capital calculation. Given a reporting
  period, one or more facilities, and a project, it answers two questions:
  "what is the beginning cash for this period?" and "how did receivables and
  payables change since the previous period?"

KEY CONCEPTS IN THIS FILE (types.go):
  - ReportingPeriod/Cadence: Fiscal periods ordered by end date
  - ExecutionRecord slots:   Fixed activity codes holding cash balances
  - CarryforwardResult:      Beginning cash + provenance + warnings
  - WorkingCapitalChange:    Period-over-period receivable/payable movement

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Availability: Degraded conditions become warnings, never panics
  3. Type Safety: Strong typing for IDs prevents mixing period/facility IDs
  4. Provenance: Every result records where its figure came from

SEE ALSO:
  - carryforward.go: Beginning-cash orchestration
  - workingcapital.go: Receivables/payables change calculation
  - validate.go: Pure discrepancy/edge-case policy
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PeriodID string
type FacilityID string
type ProjectID string
type ActivityCode string

// =============================================================================
// REPORTING PERIODS
// =============================================================================

// Cadence is the period type. Periods of a given cadence are totally ordered
// by end date; "previous period" is always resolved by that ordering, never by
// arithmetic on year/quarter numbers.
type Cadence string

const (
	CadenceAnnual    Cadence = "ANNUAL"
	CadenceQuarterly Cadence = "QUARTERLY"
	CadenceMonthly   Cadence = "MONTHLY"
)

// ReportingPeriod is a fiscal period as persisted by the (out-of-scope)
// period administration workflow. Read-only here.
type ReportingPeriod struct {
	ID         PeriodID
	FiscalYear int
	Cadence    Cadence
	StartDate  time.Time
	EndDate    time.Time
}

// =============================================================================
// REFERENCE ENTITIES
// =============================================================================

// Facility is referenced only for display and per-facility breakdowns.
type Facility struct {
	ID   FacilityID
	Name string
}

// Project carries the categorical type (e.g. a disease program). Exactly one
// project record exists per type.
type Project struct {
	ID   ProjectID
	Type string
}

// EventMapping links an accounting event code to the activity whose balance
// supplies that event's value.
type EventMapping struct {
	EventCode    string
	ActivityCode ActivityCode
}

// =============================================================================
// FIXED CODES - Slot and event-code conventions
// =============================================================================

// Closing-balance activity slots. The ending-cash figure of a period is the
// sum of exactly three activities in the closing section, identified by a
// fixed code suffix, plus uncleared VAT receivables.
const (
	ClosingSection = "G"

	SuffixCashAtBank       = "-01"
	SuffixPettyCash        = "-02"
	SuffixOtherReceivables = "-03"
)

// Event codes resolved through event mappings.
const (
	EventOpeningCash = "OPENING_CASH"

	EventReceivablesGoods = "AR_GOODS"
	EventReceivablesVAT   = "AR_VAT"
	EventReceivablesOther = "AR_OTHER"

	EventPayablesSuppliers = "AP_SUPPLIERS"
)

// ReceivablesEventCodes are the event codes whose balances make up the
// receivables total.
var ReceivablesEventCodes = []string{
	EventReceivablesGoods,
	EventReceivablesVAT,
	EventReceivablesOther,
}

// PayablesEventCodes are the event codes whose balances make up the payables
// total.
var PayablesEventCodes = []string{EventPayablesSuppliers}

// =============================================================================
// THRESHOLDS AND DEADLINES
// =============================================================================

var (
	// DiscrepancyTolerance is the absolute difference between a manual
	// opening balance and the computed carryforward below which the two are
	// considered to agree.
	DiscrepancyTolerance = decimal.NewFromFloat(0.01)

	// LargeBalanceThreshold triggers a warning (not an error) when an
	// opening balance meets or exceeds it.
	LargeBalanceThreshold = decimal.NewFromInt(1_000_000)
)

const (
	// QueryTimeout bounds every individual store query. A timed-out query is
	// treated as absent data and is not re-issued.
	QueryTimeout = 5 * time.Second

	// OverallTimeout bounds a whole GetBeginningCash call. Exceeding it
	// short-circuits to the fallback path.
	OverallTimeout = 15 * time.Second
)

// =============================================================================
// CARRYFORWARD RESULT
// =============================================================================

// Source records where a beginning-cash figure came from.
type Source string

const (
	SourceCarryforward           Source = "CARRYFORWARD"
	SourceCarryforwardAggregated Source = "CARRYFORWARD_AGGREGATED"
	SourceManualEntry            Source = "MANUAL_ENTRY"
	SourceFallback               Source = "FALLBACK"
)

// CarryforwardOptions selects what to compute beginning cash for. Supply
// FacilityID for a single facility or FacilityIDs for an aggregated query;
// when FacilityIDs holds more than one id the result is aggregated across
// them in input order.
type CarryforwardOptions struct {
	PeriodID      PeriodID
	FacilityID    *FacilityID
	FacilityIDs   []FacilityID
	ProjectType   string
	StatementCode string
}

// FacilityEndingCash is one entry of an aggregated carryforward breakdown.
type FacilityEndingCash struct {
	FacilityID   FacilityID
	FacilityName string
	EndingCash   decimal.Decimal
}

// CarryforwardMetadata is diagnostic detail attached to a result. Zero-value
// fields simply did not apply to the branch taken.
type CarryforwardMetadata struct {
	PreviousPeriodID   PeriodID
	PreviousEndingCash decimal.Decimal
	ManualAmount       decimal.Decimal
	Discrepancy        decimal.Decimal
	OverrideReason     string
	Breakdown          []FacilityEndingCash
	ErrorMessage       string
	ComputedAt         time.Time
}

// CarryforwardResult is the structured answer to "what is beginning cash?".
// Degraded conditions are reported through Warnings; Success is false only
// when no figure could be determined at all (the caller should render the
// zero as "could not determine beginning cash").
type CarryforwardResult struct {
	Success       bool
	BeginningCash decimal.Decimal
	Source        Source
	Metadata      CarryforwardMetadata
	Warnings      []string
}

// =============================================================================
// MANUAL OVERRIDE
// =============================================================================

// ManualBalance is the aggregated manual opening-balance entry for a
// period/facility/project. Found distinguishes "rows existed but summed to
// zero" from "no rows at all"; only the latter triggers the fallback path
// when the carryforward is also zero.
type ManualBalance struct {
	Amount decimal.Decimal
	Reason string
	Found  bool
}

// =============================================================================
// WORKING CAPITAL
// =============================================================================

// AccountClass is a working-capital account class with a fixed cash-flow
// sign convention.
type AccountClass string

const (
	AccountReceivables AccountClass = "RECEIVABLES"
	AccountPayables    AccountClass = "PAYABLES"
)

// WorkingCapitalParams selects what to compute changes for. ProjectID wins
// over ProjectType when both are set.
type WorkingCapitalParams struct {
	PeriodID    PeriodID
	ProjectID   ProjectID
	ProjectType string
	FacilityID  *FacilityID
	FacilityIDs []FacilityID
}

// FacilityChange is one entry of a per-facility working-capital breakdown.
type FacilityChange struct {
	FacilityID      FacilityID
	FacilityName    string
	CurrentBalance  decimal.Decimal
	PreviousBalance decimal.Decimal
	Change          decimal.Decimal
}

// WorkingCapitalChange is the period-over-period movement of one account
// class, converted into a signed cash-flow adjustment.
type WorkingCapitalChange struct {
	AccountClass       AccountClass
	CurrentBalance     decimal.Decimal
	PreviousBalance    decimal.Decimal
	Change             decimal.Decimal
	CashFlowAdjustment decimal.Decimal
	EventCodes         []string
	Breakdown          []FacilityChange
}

// WorkingCapitalMetadata is diagnostic detail for a calculation.
type WorkingCapitalMetadata struct {
	PreviousPeriodID PeriodID
	ErrorMessage     string
	ComputedAt       time.Time
}

// WorkingCapitalResult bundles both account classes with warnings.
type WorkingCapitalResult struct {
	Success           bool
	ReceivablesChange WorkingCapitalChange
	PayablesChange    WorkingCapitalChange
	Metadata          WorkingCapitalMetadata
	Warnings          []string
}

// ApplyCashFlowSign converts a raw period-over-period change into its signed
// cash-flow adjustment: an increase in receivables is a cash outflow, an
// increase in payables is a cash inflow.
func ApplyCashFlowSign(class AccountClass, change decimal.Decimal) decimal.Decimal {
	if class == AccountReceivables {
		return change.Neg()
	}
	return change
}

// effectiveFacilityIDs normalizes the single/multi facility options into one
// list, preserving input order.
func effectiveFacilityIDs(single *FacilityID, many []FacilityID) []FacilityID {
	if len(many) > 0 {
		return many
	}
	if single != nil {
		return []FacilityID{*single}
	}
	return nil
}
