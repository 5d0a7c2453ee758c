/*
workingcapital.go - Period-over-period receivables/payables changes

PURPOSE:
  Computes the working-capital adjustments of the indirect method: for each
  of two fixed account classes (receivables, payables) the period-over-
  period change in balance, converted into a signed cash-flow adjustment.

SIGN CONVENTION:
  receivables adjustment = -change  (growing receivables consume cash)
  payables    adjustment = +change  (growing payables free up cash)

WARNINGS:
  - absent previous period: tolerated, previous balances read as zero
  - facilities with zero balances in both periods: flagged, unless ALL
    facilities are missing (the expected first-period shape)
  - negative receivables total: data-quality flag
  - change beyond 100% of the prior-period base: variance flag, per class

SEE ALSO:
  - carryforward.go: The companion beginning-cash calculation
  - store.go: SumBalancesByEventCode, the only query this file needs
*/
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// WorkingCapitalCalculator computes receivables/payables changes. Safe for
// concurrent use.
type WorkingCapitalCalculator struct {
	Store    Store
	Resolver *PeriodResolver
}

// NewWorkingCapitalCalculator wires a calculator over a store.
func NewWorkingCapitalCalculator(store Store) *WorkingCapitalCalculator {
	return &WorkingCapitalCalculator{
		Store:    store,
		Resolver: &PeriodResolver{Store: store},
	}
}

// CalculateChanges computes both account classes for the params' period and
// facility set. Like GetBeginningCash it never raises: store failures and
// panics produce a failed result with the message recorded in metadata.
func (c *WorkingCapitalCalculator) CalculateChanges(ctx context.Context, params WorkingCapitalParams) (result WorkingCapitalResult) {
	logger := zerolog.Ctx(ctx)
	computedAt := time.Now().UTC()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).
				Str("period", string(params.PeriodID)).
				Msg("working capital calculation panicked")
			result = c.failedResult(computedAt, fmt.Sprintf("panic: %v", r))
		}
	}()

	result = WorkingCapitalResult{
		Success:  true,
		Metadata: WorkingCapitalMetadata{ComputedAt: computedAt},
	}

	projectID, err := c.resolveProject(ctx, params)
	if err != nil {
		return c.failedResult(computedAt, err.Error())
	}
	if projectID == "" {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"no project found for type %q; balances treated as zero", params.ProjectType))
	}

	previous, err := c.Resolver.FindPrevious(ctx, params.PeriodID)
	if err != nil && !IsAbsence(err) {
		return c.failedResult(computedAt, err.Error())
	}
	if previous == nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"no previous period found for %s; previous balances treated as zero", params.PeriodID))
	} else {
		result.Metadata.PreviousPeriodID = previous.ID
	}

	facilities := effectiveFacilityIDs(params.FacilityID, params.FacilityIDs)

	var names map[FacilityID]string
	if len(facilities) > 1 {
		names = c.facilityNames(ctx, facilities)
	}

	receivables, warnings, err := c.classChange(ctx, AccountReceivables, ReceivablesEventCodes,
		params.PeriodID, previous, projectID, facilities, names)
	if err != nil {
		return c.failedResult(computedAt, err.Error())
	}
	result.ReceivablesChange = receivables
	result.Warnings = append(result.Warnings, warnings...)

	payables, warnings, err := c.classChange(ctx, AccountPayables, PayablesEventCodes,
		params.PeriodID, previous, projectID, facilities, names)
	if err != nil {
		return c.failedResult(computedAt, err.Error())
	}
	result.PayablesChange = payables
	result.Warnings = append(result.Warnings, warnings...)

	result.Warnings = append(result.Warnings, validateChanges(receivables, payables)...)

	logger.Info().
		Str("period", string(params.PeriodID)).
		Str("receivables_adjustment", receivables.CashFlowAdjustment.String()).
		Str("payables_adjustment", payables.CashFlowAdjustment.String()).
		Int("warnings", len(result.Warnings)).
		Msg("working capital changes calculated")

	return result
}

// classChange computes one account class: current and previous totals over
// the facility set, the raw change, the signed adjustment, and (for
// multi-facility queries) a per-facility breakdown in input order.
func (c *WorkingCapitalCalculator) classChange(
	ctx context.Context,
	class AccountClass,
	eventCodes []string,
	currentID PeriodID,
	previous *ReportingPeriod,
	projectID ProjectID,
	facilities []FacilityID,
	names map[FacilityID]string,
) (WorkingCapitalChange, []string, error) {

	current, err := c.sumTotal(ctx, currentID, projectID, facilities, eventCodes)
	if err != nil {
		return WorkingCapitalChange{}, nil, err
	}

	previousTotal := decimal.Zero
	if previous != nil {
		previousTotal, err = c.sumTotal(ctx, previous.ID, projectID, facilities, eventCodes)
		if err != nil {
			return WorkingCapitalChange{}, nil, err
		}
	}

	change := current.Sub(previousTotal)
	out := WorkingCapitalChange{
		AccountClass:       class,
		CurrentBalance:     current,
		PreviousBalance:    previousTotal,
		Change:             change,
		CashFlowAdjustment: ApplyCashFlowSign(class, change),
		EventCodes:         eventCodes,
	}

	var warnings []string
	if len(facilities) > 1 {
		var missing []FacilityID
		for _, fid := range facilities {
			one := []FacilityID{fid}
			fcur, err := c.sumTotal(ctx, currentID, projectID, one, eventCodes)
			if err != nil {
				return WorkingCapitalChange{}, nil, err
			}
			fprev := decimal.Zero
			if previous != nil {
				fprev, err = c.sumTotal(ctx, previous.ID, projectID, one, eventCodes)
				if err != nil {
					return WorkingCapitalChange{}, nil, err
				}
			}
			out.Breakdown = append(out.Breakdown, FacilityChange{
				FacilityID:      fid,
				FacilityName:    names[fid],
				CurrentBalance:  fcur,
				PreviousBalance: fprev,
				Change:          fcur.Sub(fprev),
			})
			if fcur.IsZero() && fprev.IsZero() {
				missing = append(missing, fid)
			}
		}

		switch {
		case len(missing) == len(facilities):
			zerolog.Ctx(ctx).Debug().
				Str("class", string(class)).
				Msg("no facility has data in either period; treating as first period")
		case len(missing) > 0:
			warnings = append(warnings, fmt.Sprintf(
				"no %s data for facilities: %s", string(class), joinFacilityIDs(missing)))
		}
	}

	return out, warnings, nil
}

// sumTotal runs one balance-by-event-code query under the per-query
// deadline and folds the grouped sums into a single total. Timeouts read
// as zero.
func (c *WorkingCapitalCalculator) sumTotal(ctx context.Context, periodID PeriodID, projectID ProjectID, facilities []FacilityID, eventCodes []string) (decimal.Decimal, error) {
	if projectID == "" {
		return decimal.Zero, nil
	}

	qctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	sums, err := c.Store.SumBalancesByEventCode(qctx, BalanceQuery{
		PeriodID:    periodID,
		ProjectID:   projectID,
		FacilityIDs: facilities,
		EventCodes:  eventCodes,
	})
	if err != nil {
		if IsTimeout(err) {
			zerolog.Ctx(ctx).Warn().
				Str("period", string(periodID)).
				Msg("balance query timed out; treating balances as zero")
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("%w: balance query: %v", ErrStoreFailure, err)
	}

	total := decimal.Zero
	for _, amount := range sums {
		total = total.Add(amount)
	}
	return total, nil
}

// validateChanges emits the data-quality and variance flags. Both classes
// run the variance test independently.
func validateChanges(receivables, payables WorkingCapitalChange) []string {
	var warnings []string

	if receivables.CurrentBalance.IsNegative() {
		warnings = append(warnings, fmt.Sprintf(
			"receivables balance %s is negative; possible data error",
			receivables.CurrentBalance.String()))
	}

	for _, ch := range []WorkingCapitalChange{receivables, payables} {
		if ch.PreviousBalance.IsZero() {
			continue
		}
		if ch.Change.Abs().GreaterThan(ch.PreviousBalance.Abs()) {
			warnings = append(warnings, fmt.Sprintf(
				"%s changed by %s, more than 100%% of the prior-period base %s",
				string(ch.AccountClass), ch.Change.String(), ch.PreviousBalance.String()))
		}
	}

	return warnings
}

func (c *WorkingCapitalCalculator) resolveProject(ctx context.Context, params WorkingCapitalParams) (ProjectID, error) {
	if params.ProjectID != "" {
		return params.ProjectID, nil
	}

	qctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	project, err := c.Store.FindProjectByType(qctx, params.ProjectType)
	if err != nil {
		if IsTimeout(err) {
			zerolog.Ctx(ctx).Warn().Str("project_type", params.ProjectType).
				Msg("project lookup timed out; treating as absent")
			return "", nil
		}
		return "", fmt.Errorf("%w: project lookup: %v", ErrStoreFailure, err)
	}
	if project == nil {
		return "", nil
	}
	return project.ID, nil
}

func (c *WorkingCapitalCalculator) facilityNames(ctx context.Context, ids []FacilityID) map[FacilityID]string {
	qctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	names := make(map[FacilityID]string, len(ids))
	facilities, err := c.Store.FindFacilitiesByIDs(qctx, ids)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("facility name lookup failed; breakdown will omit names")
		return names
	}
	for _, f := range facilities {
		names[f.ID] = f.Name
	}
	return names
}

func (c *WorkingCapitalCalculator) failedResult(computedAt time.Time, message string) WorkingCapitalResult {
	return WorkingCapitalResult{
		Success: false,
		Metadata: WorkingCapitalMetadata{
			ErrorMessage: message,
			ComputedAt:   computedAt,
		},
		Warnings: []string{"working capital changes could not be calculated; values defaulted to zero"},
	}
}
