/*
override.go - Manual opening-balance reader

PURPOSE:
  Users may key a manual "opening balance" entry for a period/facility/
  project. Such entries are execution-shaped rows whose activity maps, via
  the event-mapping join, to the opening-cash event code. Zero, one, or many
  rows may exist; multiple rows are aggregated by summation (a known policy
  choice, see DESIGN.md). The override justification note is taken from the
  FIRST row only.

REASON EXTRACTION:
  The source payloads carry the justification under several possible field
  names across two shapes (entry metadata and raw form data). Extraction is
  an explicit ordered list of named strategies returning the first present
  value, so the lookup order is visible and unit-testable.

SEE ALSO:
  - carryforward.go: Consumes ManualBalance in both the main and fallback paths
*/
package engine

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// reasonStrategy extracts an override justification from one row shape.
type reasonStrategy struct {
	name    string
	extract func(OverrideRow) (string, bool)
}

// reasonStrategies is checked in order; metadata fields win over form data.
var reasonStrategies = []reasonStrategy{
	{"metadata.overrideReason", metadataField("overrideReason")},
	{"metadata.justification", metadataField("justification")},
	{"formData.override_reason", formField("override_reason")},
	{"formData.opening_balance_note", formField("opening_balance_note")},
}

func metadataField(key string) func(OverrideRow) (string, bool) {
	return func(row OverrideRow) (string, bool) {
		return stringField(row.Metadata, key)
	}
}

func formField(key string) func(OverrideRow) (string, bool) {
	return func(row OverrideRow) (string, bool) {
		return stringField(row.FormData, key)
	}
}

func stringField(m map[string]any, key string) (string, bool) {
	if m == nil {
		return "", false
	}
	s, ok := m[key].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return strings.TrimSpace(s), true
}

// extractOverrideReason runs the strategies in order and returns the first
// present value, or "".
func extractOverrideReason(row OverrideRow) string {
	for _, s := range reasonStrategies {
		if reason, ok := s.extract(row); ok {
			return reason
		}
	}
	return ""
}

// =============================================================================
// OVERRIDE READER
// =============================================================================

// OverrideReader fetches and aggregates manual opening-balance entries.
type OverrideReader struct {
	Store Store
}

// ReadManualOpeningBalance resolves the project for projectType and sums all
// opening-balance rows for the period (and facility, when given). An absent
// project or zero rows yields a zero, not-found balance. Unparseable row
// amounts are discarded with a logged warning.
func (or *OverrideReader) ReadManualOpeningBalance(ctx context.Context, periodID PeriodID, facilityID *FacilityID, projectType string) (ManualBalance, error) {
	logger := zerolog.Ctx(ctx)

	qctx, cancel := withQueryTimeout(ctx)
	project, err := or.Store.FindProjectByType(qctx, projectType)
	cancel()
	if err != nil {
		if IsTimeout(err) {
			logger.Warn().Str("project_type", projectType).
				Msg("project lookup timed out; treating manual entry as absent")
			return ManualBalance{Amount: decimal.Zero}, nil
		}
		return ManualBalance{Amount: decimal.Zero}, err
	}
	if project == nil {
		logger.Debug().Str("project_type", projectType).
			Msg("no project for type; manual opening balance absent")
		return ManualBalance{Amount: decimal.Zero}, nil
	}

	qctx, cancel = withQueryTimeout(ctx)
	rows, err := or.Store.FindOpeningBalanceRows(qctx, periodID, project.ID, facilityID)
	cancel()
	if err != nil {
		if IsTimeout(err) {
			logger.Warn().Str("period", string(periodID)).
				Msg("opening balance query timed out; treating manual entry as absent")
			return ManualBalance{Amount: decimal.Zero}, nil
		}
		return ManualBalance{Amount: decimal.Zero}, err
	}
	if len(rows) == 0 {
		return ManualBalance{Amount: decimal.Zero}, nil
	}

	// Multiple rows are summed, not rejected. The justification note comes
	// from the first row only.
	total := decimal.Zero
	for i, row := range rows {
		amount, ok := CoerceDecimal(row.RawAmount)
		if !ok {
			logger.Warn().
				Str("period", string(periodID)).
				Int("row", i).
				Str("raw_amount", row.RawAmount).
				Msg("discarding opening balance row with unparseable amount")
			continue
		}
		total = total.Add(amount)
	}

	return ManualBalance{
		Amount: total,
		Reason: extractOverrideReason(rows[0]),
		Found:  true,
	}, nil
}
