/*
store.go - Read-only persistence interface consumed by the engine

PURPOSE:
  Defines the query surface the engine needs from the persisted-data layer.
  The engine never writes application data; every method is a read. Misses
  are returned as (nil, nil)
  rather than errors, because absence is an expected condition here.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite store (json1-based event-code joins)
  - engine/store: In-memory store for testing and dev seeding

QUERY DEADLINES:
  Callers wrap every Store call in a per-query deadline (QueryTimeout).
  Implementations must honor context cancellation; a timed-out query is
  treated by the engine as absent data and is not retried.

SEE ALSO:
  - period.go, execution.go, override.go: The three readers built on Store
*/
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// BalanceQuery selects execution balances grouped by event code, restricted
// to one project, one period, entity-type "execution", and a set of
// facilities.
type BalanceQuery struct {
	PeriodID    PeriodID
	ProjectID   ProjectID
	FacilityIDs []FacilityID
	EventCodes  []string
}

// OverrideRow is one execution-shaped row whose activity maps to the
// opening-cash event code. RawAmount is kept unparsed so the reader can
// validate it per row and discard unparseable entries with a warning.
type OverrideRow struct {
	RawAmount string
	Metadata  map[string]any
	FormData  map[string]any
}

// Store is the persisted-data layer the engine reads from. All methods that
// look up a single entity return (nil, nil) on a miss.
type Store interface {
	// FindReportingPeriod loads a period by id.
	FindReportingPeriod(ctx context.Context, id PeriodID) (*ReportingPeriod, error)

	// FindLatestPeriodBefore returns the period of the given cadence with
	// the latest end date strictly before the cutoff, or nil if none exists.
	FindLatestPeriodBefore(ctx context.Context, cadence Cadence, before time.Time) (*ReportingPeriod, error)

	// FindProjectByType resolves the single project record for a project
	// type.
	FindProjectByType(ctx context.Context, projectType string) (*Project, error)

	// FindFacilitiesByIDs returns name records for the given facilities.
	// Unknown ids are simply omitted from the result.
	FindFacilitiesByIDs(ctx context.Context, ids []FacilityID) ([]Facility, error)

	// FindExecutionRecord loads the execution record for a
	// (period, facility, project) triple, entity-type "execution".
	FindExecutionRecord(ctx context.Context, periodID PeriodID, facilityID FacilityID, projectID ProjectID) (*ExecutionRecord, error)

	// SumBalancesByEventCode joins execution records to event mappings and
	// returns per-event-code balance sums for the query's restriction.
	// Event codes with no contributing rows are absent from the map.
	SumBalancesByEventCode(ctx context.Context, q BalanceQuery) (map[string]decimal.Decimal, error)

	// FindOpeningBalanceRows returns the rows whose activity maps to the
	// opening-cash event code, restricted by period/project and, when
	// facilityID is non-nil, by facility. Ordered by creation time so the
	// first row is stable.
	FindOpeningBalanceRows(ctx context.Context, periodID PeriodID, projectID ProjectID, facilityID *FacilityID) ([]OverrideRow, error)
}

// withQueryTimeout derives the per-query context. The parent may already
// carry the overall deadline; the shorter of the two applies.
func withQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, QueryTimeout)
}
