/*
period.go - Previous-period resolution

PURPOSE:
  Determines the chronologically preceding reporting period of the same
  cadence. The lookup is by END-DATE ORDERING, not by arithmetic on
  year/quarter numbers: the same-cadence period with the latest end date
  strictly before the current period's start date. Ordering handles the
  first-period-of-a-type case and gaps in the period table for free.

FISCAL CALENDAR:
  The fiscal year starts in month 7. Quarter and fiscal-month numbers are
  derived from the start date purely for diagnostic logging:
    Q1 Jul-Sep, Q2 Oct-Dec, Q3 Jan-Mar, Q4 Apr-Jun.

SEE ALSO:
  - carryforward.go, workingcapital.go: The two consumers of FindPrevious
*/
package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// FiscalYearStartMonth is the calendar month that opens the fiscal year.
const FiscalYearStartMonth = time.July

// FiscalQuarter returns the fiscal quarter (1-4) containing the given date.
func FiscalQuarter(d time.Time) int {
	return (FiscalMonth(d)-1)/3 + 1
}

// FiscalMonth returns the fiscal month number (1-12) of the given date;
// month 7 of the calendar year is fiscal month 1.
func FiscalMonth(d time.Time) int {
	return (int(d.Month())-int(FiscalYearStartMonth)+12)%12 + 1
}

// PeriodResolver finds the previous period of the same cadence.
type PeriodResolver struct {
	Store Store
}

// FindPrevious resolves the period preceding periodID. Returns (nil, nil)
// when no qualifying period exists, which is the expected first-period case
// and not an error. Returns ErrPeriodNotFound when periodID itself is
// unknown.
func (pr *PeriodResolver) FindPrevious(ctx context.Context, periodID PeriodID) (*ReportingPeriod, error) {
	logger := zerolog.Ctx(ctx)

	qctx, cancel := withQueryTimeout(ctx)
	current, err := pr.Store.FindReportingPeriod(qctx, periodID)
	cancel()
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrPeriodNotFound
	}

	switch current.Cadence {
	case CadenceQuarterly:
		logger.Debug().
			Str("period", string(current.ID)).
			Int("fiscal_year", current.FiscalYear).
			Int("quarter", FiscalQuarter(current.StartDate)).
			Msg("resolving previous quarterly period")
	case CadenceMonthly:
		logger.Debug().
			Str("period", string(current.ID)).
			Int("fiscal_year", current.FiscalYear).
			Int("fiscal_month", FiscalMonth(current.StartDate)).
			Msg("resolving previous monthly period")
	default:
		logger.Debug().
			Str("period", string(current.ID)).
			Int("fiscal_year", current.FiscalYear).
			Msg("resolving previous annual period")
	}

	qctx, cancel = withQueryTimeout(ctx)
	previous, err := pr.Store.FindLatestPeriodBefore(qctx, current.Cadence, current.StartDate)
	cancel()
	if err != nil {
		return nil, err
	}
	if previous == nil {
		logger.Debug().
			Str("period", string(current.ID)).
			Msg("no previous period of this cadence exists")
		return nil, nil
	}

	return previous, nil
}
