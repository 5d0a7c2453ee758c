/*
execution.go - Execution records: payload parsing and ending-cash extraction

PURPOSE:
  An execution record is persisted by the (out-of-scope) data-entry workflow
  as a loosely-typed nested JSON payload. This file gives it an explicit
  tagged structure and a dedicated parser that validates and reports
  malformed entries instead of trusting ambient JSON shape. A malformed
  value is logged and treated as zero, never propagated as NaN.

ENDING-CASH EXTRACTION:
  The ending cash of a period is the sum of exactly three activity slots in
  the closing section (cash-at-bank, petty cash, other receivables,
  identified by code suffix) plus, per VAT-receivables category,
  max(0, amount - cleared).

SEE ALSO:
  - store.go: Where records come from
  - carryforward.go: The consumer of EndingCash
*/
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// EntityTypeExecution is the entity type of financial-activity records read
// by this engine.
const EntityTypeExecution = "execution"

// ActivityBalance is one entry of the activity map.
type ActivityBalance struct {
	Section           string
	CumulativeBalance decimal.Decimal
}

// VATBalance is one VAT-receivables category: the quarterly amount and the
// amount already cleared against it.
type VATBalance struct {
	Amount  decimal.Decimal
	Cleared decimal.Decimal
}

// ExecutionRecord is the typed form of a persisted financial-activity
// record.
type ExecutionRecord struct {
	PeriodID   PeriodID
	FacilityID FacilityID
	ProjectID  ProjectID
	EntityType string

	Activities     map[ActivityCode]ActivityBalance
	VATReceivables map[string]VATBalance

	Metadata map[string]any
	FormData map[string]any
}

// ExecutionPayload is the parsed body of an execution record's JSON payload.
type ExecutionPayload struct {
	Activities     map[ActivityCode]ActivityBalance
	VATReceivables map[string]VATBalance
	FormData       map[string]any
}

// CoerceDecimal converts a loosely-typed JSON value into a decimal. Returns
// false for anything that does not cleanly parse as a finite number; the
// caller decides whether that means "zero" or "discard the row".
func CoerceDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return n, true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	case []byte:
		return CoerceDecimal(string(n))
	default:
		return decimal.Zero, false
	}
}

// ParseExecutionPayload decodes a raw execution payload into its tagged
// structure. Malformed entries are dropped and reported in the returned
// warning list; parsing never fails outright on a single bad entry.
func ParseExecutionPayload(raw []byte) (ExecutionPayload, []string) {
	payload := ExecutionPayload{
		Activities:     make(map[ActivityCode]ActivityBalance),
		VATReceivables: make(map[string]VATBalance),
	}
	var warnings []string

	if len(raw) == 0 {
		return payload, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return payload, []string{fmt.Sprintf("execution payload is not valid JSON: %v", err)}
	}

	if activities, ok := body["activities"]; ok {
		obj, ok := activities.(map[string]any)
		if !ok {
			warnings = append(warnings, "activities is not an object; ignored")
		} else {
			for code, entry := range obj {
				slot, ok := entry.(map[string]any)
				if !ok {
					warnings = append(warnings, fmt.Sprintf("activity %s is not an object; ignored", code))
					continue
				}
				section, _ := slot["section"].(string)
				balance, ok := CoerceDecimal(slot["cumulativeBalance"])
				if !ok {
					warnings = append(warnings, fmt.Sprintf("activity %s has a non-numeric cumulative balance; treated as 0", code))
					balance = decimal.Zero
				}
				payload.Activities[ActivityCode(code)] = ActivityBalance{
					Section:           section,
					CumulativeBalance: balance,
				}
			}
		}
	}

	if vat, ok := body["vatReceivables"]; ok {
		obj, ok := vat.(map[string]any)
		if !ok {
			warnings = append(warnings, "vatReceivables is not an object; ignored")
		} else {
			for category, entry := range obj {
				slot, ok := entry.(map[string]any)
				if !ok {
					warnings = append(warnings, fmt.Sprintf("vat category %s is not an object; ignored", category))
					continue
				}
				amount, ok := CoerceDecimal(slot["amount"])
				if !ok {
					warnings = append(warnings, fmt.Sprintf("vat category %s has a non-numeric amount; treated as 0", category))
					amount = decimal.Zero
				}
				cleared, ok := CoerceDecimal(slot["cleared"])
				if !ok {
					warnings = append(warnings, fmt.Sprintf("vat category %s has a non-numeric cleared amount; treated as 0", category))
					cleared = decimal.Zero
				}
				payload.VATReceivables[category] = VATBalance{Amount: amount, Cleared: cleared}
			}
		}
	}

	if formData, ok := body["formData"].(map[string]any); ok {
		payload.FormData = formData
	}

	return payload, warnings
}

// =============================================================================
// EXECUTION READER
// =============================================================================

// ExecutionReader fetches execution records under the per-query deadline.
type ExecutionReader struct {
	Store Store
}

// ReadExecution loads the record for a (period, facility, project) triple.
// A miss returns (nil, nil); a timed-out query is logged and also treated
// as a miss.
func (er *ExecutionReader) ReadExecution(ctx context.Context, periodID PeriodID, facilityID FacilityID, projectID ProjectID) (*ExecutionRecord, error) {
	qctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	rec, err := er.Store.FindExecutionRecord(qctx, periodID, facilityID, projectID)
	if err != nil {
		if IsTimeout(err) {
			zerolog.Ctx(ctx).Warn().
				Str("period", string(periodID)).
				Str("facility", string(facilityID)).
				Msg("execution record query timed out; treating as absent")
			return nil, nil
		}
		return nil, fmt.Errorf("%w: execution record lookup: %v", ErrStoreFailure, err)
	}
	return rec, nil
}

// EndingCash extracts the period's ending cash from a record: the three
// closing-section slots plus uncleared VAT receivables. A nil record yields
// zero.
func EndingCash(ctx context.Context, rec *ExecutionRecord) decimal.Decimal {
	if rec == nil {
		return decimal.Zero
	}
	logger := zerolog.Ctx(ctx)

	total := decimal.Zero
	for _, suffix := range []string{SuffixCashAtBank, SuffixPettyCash, SuffixOtherReceivables} {
		total = total.Add(slotBalance(rec, suffix))
	}

	for category, v := range rec.VATReceivables {
		outstanding := v.Amount.Sub(v.Cleared)
		if outstanding.IsNegative() {
			logger.Debug().
				Str("category", category).
				Str("outstanding", outstanding.String()).
				Msg("vat cleared exceeds amount; clamping to 0")
			continue
		}
		total = total.Add(outstanding)
	}

	return total
}

func slotBalance(rec *ExecutionRecord, suffix string) decimal.Decimal {
	sum := decimal.Zero
	for code, activity := range rec.Activities {
		if activity.Section == ClosingSection && strings.HasSuffix(string(code), suffix) {
			sum = sum.Add(activity.CumulativeBalance)
		}
	}
	return sum
}
