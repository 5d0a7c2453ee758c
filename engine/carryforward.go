/*
carryforward.go - Beginning-cash orchestration

PURPOSE:
  Produces the "beginning cash" figure for a reporting period by carrying
  forward the previous period's ending cash, reconciled against any manual
  opening-balance entry. Supports single-facility and aggregated
  multi-facility queries, records provenance, and degrades to a fallback
  path instead of failing.

ALGORITHM (GetBeginningCash):
  1. Read the manual override unconditionally
  2. Resolve the previous period; absence short-circuits to manual/fallback
  3. Read previous ending cash (per facility when aggregating)
  4. Zero carryforward with no manual rows at all falls back
  5. A positive manual amount wins; beyond the 0.01 tolerance the
     discrepancy is recorded and warned about
  6. Otherwise the carryforward amount stands, with an informational
     warning when it is zero

DEADLINES:
  The whole call runs under a 15s budget; every store query under 5s. A
  timed-out query reads as absent data; blowing the overall budget
  short-circuits to the fallback path. Nothing here retries.

FAILURE POLICY:
  GetBeginningCash never returns an error and never panics outward. Store
  failures and panics are converted into fallback results with the message
  recorded in metadata.

SEE ALSO:
  - validate.go: Discrepancy/edge-case classification
  - override.go: Manual entry aggregation
*/
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CarryforwardEngine orchestrates the period resolver and the two readers
// into beginning-cash results. Safe for concurrent use; it holds no mutable
// state between calls.
type CarryforwardEngine struct {
	Store      Store
	Resolver   *PeriodResolver
	Executions *ExecutionReader
	Overrides  *OverrideReader
}

// NewCarryforwardEngine wires an engine over a store.
func NewCarryforwardEngine(store Store) *CarryforwardEngine {
	return &CarryforwardEngine{
		Store:      store,
		Resolver:   &PeriodResolver{Store: store},
		Executions: &ExecutionReader{Store: store},
		Overrides:  &OverrideReader{Store: store},
	}
}

// GetBeginningCash computes the beginning cash for the options' period,
// facility set, and project type. The result always carries a figure (zero
// in the worst case), a provenance source, and ordered warnings; it never
// raises for degraded data conditions.
func (e *CarryforwardEngine) GetBeginningCash(ctx context.Context, opts CarryforwardOptions) (result CarryforwardResult) {
	logger := zerolog.Ctx(ctx)
	computedAt := time.Now().UTC()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).
				Str("period", string(opts.PeriodID)).
				Msg("beginning cash calculation panicked")
			result = e.fallbackToManualEntry(ctx, opts, computedAt,
				"beginning cash calculation failed unexpectedly",
				fmt.Sprintf("panic: %v", r))
		}
	}()

	octx, cancel := context.WithTimeout(ctx, OverallTimeout)
	defer cancel()

	// 1. Manual override first; it is needed regardless of branch.
	manual, err := e.Overrides.ReadManualOpeningBalance(octx, opts.PeriodID, singleFacility(opts), opts.ProjectType)
	if err != nil {
		return e.fallbackToManualEntry(ctx, opts, computedAt,
			"manual opening balance lookup failed", err.Error())
	}

	// 2. Previous period by end-date ordering.
	previous, err := e.Resolver.FindPrevious(octx, opts.PeriodID)
	if err != nil && !IsAbsence(err) {
		return e.fallbackToManualEntry(ctx, opts, computedAt,
			"previous period lookup failed", err.Error())
	}
	if previous == nil {
		// An expired overall deadline also reads as a nil previous; that is
		// not evidence the period is the first of its cadence. Take the
		// fallback, which re-attempts the manual read on a fresh deadline.
		if octx.Err() != nil {
			return e.fallbackToManualEntry(ctx, opts, computedAt,
				"beginning cash calculation exceeded its time budget", octx.Err().Error())
		}
		return e.noPreviousPeriodResult(opts, manual, computedAt)
	}

	// 3. Previous-period ending cash, aggregated when more than one
	// facility was supplied.
	project, err := e.findProject(octx, opts.ProjectType)
	if err != nil {
		return e.fallbackToManualEntry(ctx, opts, computedAt,
			"project lookup failed", err.Error())
	}

	facilities := effectiveFacilityIDs(opts.FacilityID, opts.FacilityIDs)
	aggregated := len(facilities) > 1

	var (
		carryforward = decimal.Zero
		breakdown    []FacilityEndingCash
		warnings     []string
	)

	if aggregated {
		var missing []FacilityID
		names := e.facilityNames(octx, facilities)

		for _, fid := range facilities {
			if octx.Err() != nil {
				return e.fallbackToManualEntry(ctx, opts, computedAt,
					"beginning cash calculation exceeded its time budget", octx.Err().Error())
			}
			ending, err := e.readEndingCash(octx, previous.ID, fid, project)
			if err != nil {
				return e.fallbackToManualEntry(ctx, opts, computedAt,
					fmt.Sprintf("ending cash lookup failed for facility %s", fid), err.Error())
			}
			carryforward = carryforward.Add(ending)
			breakdown = append(breakdown, FacilityEndingCash{
				FacilityID:   fid,
				FacilityName: names[fid],
				EndingCash:   ending,
			})
			if ending.IsZero() {
				missing = append(missing, fid)
			}
		}

		switch {
		case len(missing) == len(facilities):
			// Expected first-period shape; not worth a user warning.
			logger.Debug().
				Str("previous_period", string(previous.ID)).
				Int("facilities", len(facilities)).
				Msg("no facility has prior-period data; treating as first period")
		case len(missing) > 0:
			warnings = append(warnings, fmt.Sprintf(
				"no prior-period data for facilities: %s", joinFacilityIDs(missing)))
		}
	} else {
		var fid FacilityID
		if len(facilities) == 1 {
			fid = facilities[0]
		}
		ending, err := e.readEndingCash(octx, previous.ID, fid, project)
		if err != nil {
			return e.fallbackToManualEntry(ctx, opts, computedAt,
				"ending cash lookup failed", err.Error())
		}
		carryforward = ending
	}

	if octx.Err() != nil {
		return e.fallbackToManualEntry(ctx, opts, computedAt,
			"beginning cash calculation exceeded its time budget", octx.Err().Error())
	}

	// 4. Nothing carried forward and no manual rows at all: fall back.
	if carryforward.IsZero() && !manual.Found {
		return e.fallbackToManualEntry(ctx, opts, computedAt,
			fmt.Sprintf("no carryforward data for previous period %s", previous.ID), "")
	}

	result = CarryforwardResult{
		Success: true,
		Metadata: CarryforwardMetadata{
			PreviousPeriodID:   previous.ID,
			PreviousEndingCash: carryforward,
			Breakdown:          breakdown,
			ComputedAt:         computedAt,
		},
		Warnings: warnings,
	}

	// 5. A positive manual amount wins over the carryforward.
	if manual.Amount.IsPositive() {
		result.BeginningCash = manual.Amount
		result.Source = SourceManualEntry
		result.Metadata.ManualAmount = manual.Amount
		result.Metadata.OverrideReason = manual.Reason

		if d := DetectDiscrepancy(carryforward, manual.Amount); d.ExceedsTolerance {
			result.Metadata.Discrepancy = d.Difference
			w := fmt.Sprintf("manual opening balance %s overrides carryforward %s (difference %s)",
				manual.Amount.String(), carryforward.String(), d.Difference.String())
			if manual.Reason != "" {
				w += fmt.Sprintf("; reason: %s", manual.Reason)
			}
			result.Warnings = append(result.Warnings, w)
		}
	} else {
		// 6. The carryforward amount itself becomes beginning cash.
		result.BeginningCash = carryforward
		result.Source = SourceCarryforward
		if aggregated {
			result.Source = SourceCarryforwardAggregated
		}
		if carryforward.IsZero() {
			result.Warnings = append(result.Warnings,
				"previous period ending cash is zero; this may indicate missing data or a new account")
		}
	}

	// Stateless edge-case policy: large balance, negative balance.
	v := ValidateCarryforward(carryforward, manual.Amount, previous.ID, manual.Reason)
	result.Warnings = append(result.Warnings, edgeCaseWarnings(v)...)

	logger.Info().
		Str("period", string(opts.PeriodID)).
		Str("statement", opts.StatementCode).
		Str("source", string(result.Source)).
		Str("beginning_cash", result.BeginningCash.String()).
		Int("warnings", len(result.Warnings)).
		Msg("beginning cash resolved")

	return result
}

// noPreviousPeriodResult handles the first-period-ever branch: the manual
// entry is used when positive, otherwise the call fails to a zero fallback.
func (e *CarryforwardEngine) noPreviousPeriodResult(opts CarryforwardOptions, manual ManualBalance, computedAt time.Time) CarryforwardResult {
	absence := fmt.Sprintf("no previous period found for %s; opening balance cannot be carried forward", opts.PeriodID)

	if manual.Amount.IsPositive() {
		return CarryforwardResult{
			Success:       true,
			BeginningCash: manual.Amount,
			Source:        SourceManualEntry,
			Metadata: CarryforwardMetadata{
				ManualAmount:   manual.Amount,
				OverrideReason: manual.Reason,
				ComputedAt:     computedAt,
			},
			Warnings: []string{absence},
		}
	}

	return CarryforwardResult{
		Success:       false,
		BeginningCash: decimal.Zero,
		Source:        SourceFallback,
		Metadata:      CarryforwardMetadata{ComputedAt: computedAt},
		Warnings: []string{
			absence,
			"no manual opening balance entry found; beginning cash defaulted to 0",
		},
	}
}

// fallbackToManualEntry re-attempts the manual read in isolation. It runs
// on a fresh deadline so it still works after the overall budget expired,
// and it never raises: failures inside the fallback fold into the warning
// list.
func (e *CarryforwardEngine) fallbackToManualEntry(ctx context.Context, opts CarryforwardOptions, computedAt time.Time, reason, errMsg string) (result CarryforwardResult) {
	logger := zerolog.Ctx(ctx)

	result = CarryforwardResult{
		Success:       false,
		BeginningCash: decimal.Zero,
		Source:        SourceFallback,
		Metadata: CarryforwardMetadata{
			ErrorMessage: errMsg,
			ComputedAt:   computedAt,
		},
		Warnings: []string{reason},
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("fallback path panicked")
			result.Success = false
			result.BeginningCash = decimal.Zero
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("fallback failed unexpectedly: %v", r))
		}
	}()

	base := context.WithoutCancel(ctx)
	manual, err := e.Overrides.ReadManualOpeningBalance(base, opts.PeriodID, singleFacility(opts), opts.ProjectType)
	if err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("fallback manual entry lookup failed: %v", err))
		return result
	}

	if manual.Amount.IsPositive() {
		result.Success = true
		result.BeginningCash = manual.Amount
		result.Metadata.ManualAmount = manual.Amount
		result.Metadata.OverrideReason = manual.Reason
		if manual.Reason != "" {
			result.Warnings = append(result.Warnings, "override reason: "+manual.Reason)
		}
		return result
	}

	result.Warnings = append(result.Warnings,
		"no manual opening balance entry found; beginning cash defaulted to 0")
	return result
}

// readEndingCash reads one facility's previous-period ending cash. Absent
// records and timed-out queries read as zero.
func (e *CarryforwardEngine) readEndingCash(ctx context.Context, previousID PeriodID, facilityID FacilityID, project *Project) (decimal.Decimal, error) {
	if project == nil {
		return decimal.Zero, nil
	}
	rec, err := e.Executions.ReadExecution(ctx, previousID, facilityID, project.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return EndingCash(ctx, rec), nil
}

// findProject resolves the project for a type under the query deadline. A
// timeout or a missing project reads as nil, which downstream treats as
// "no data".
func (e *CarryforwardEngine) findProject(ctx context.Context, projectType string) (*Project, error) {
	qctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	project, err := e.Store.FindProjectByType(qctx, projectType)
	if err != nil {
		if IsTimeout(err) {
			zerolog.Ctx(ctx).Warn().Str("project_type", projectType).
				Msg("project lookup timed out; treating as absent")
			return nil, nil
		}
		return nil, fmt.Errorf("%w: project lookup: %v", ErrStoreFailure, err)
	}
	return project, nil
}

// facilityNames resolves display names for the breakdown. Failures degrade
// to empty names rather than aborting the aggregation.
func (e *CarryforwardEngine) facilityNames(ctx context.Context, ids []FacilityID) map[FacilityID]string {
	qctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	names := make(map[FacilityID]string, len(ids))
	facilities, err := e.Store.FindFacilitiesByIDs(qctx, ids)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("facility name lookup failed; breakdown will omit names")
		return names
	}
	for _, f := range facilities {
		names[f.ID] = f.Name
	}
	return names
}

func singleFacility(opts CarryforwardOptions) *FacilityID {
	if opts.FacilityID != nil {
		return opts.FacilityID
	}
	if len(opts.FacilityIDs) == 1 {
		return &opts.FacilityIDs[0]
	}
	return nil
}

// edgeCaseWarnings keeps only the validator warnings the engine has not
// already phrased itself (absence and discrepancy are engine-owned).
func edgeCaseWarnings(v ValidationOutcome) []string {
	var out []string
	for _, w := range v.Warnings {
		switch w.Kind {
		case WarnLargeBalance, WarnNegativeBalance:
			out = append(out, w.Message)
		}
	}
	return out
}

func joinFacilityIDs(ids []FacilityID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}
