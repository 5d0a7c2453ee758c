package engine_test

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/ledgerline/statement-engine/engine"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCoerceDecimal(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
		ok   bool
	}{
		{"string", "1234.56", "1234.56", true},
		{"string with spaces", "  42 ", "42", true},
		{"empty string", "", "0", false},
		{"garbage string", "12abc", "0", false},
		{"json number", json.Number("99.9"), "99.9", true},
		{"float", 3.5, "3.5", true},
		{"nan", math.NaN(), "0", false},
		{"inf", math.Inf(1), "0", false},
		{"int", 7, "7", true},
		{"int64", int64(-12), "-12", true},
		{"bytes", []byte("10.25"), "10.25", true},
		{"nil", nil, "0", false},
		{"bool", true, "0", false},
	}

	for _, c := range cases {
		got, ok := engine.CoerceDecimal(c.in)
		if ok != c.ok {
			t.Errorf("%s: ok = %v, want %v", c.name, ok, c.ok)
			continue
		}
		if ok && !got.Equal(dec(c.want)) {
			t.Errorf("%s: got %s, want %s", c.name, got, c.want)
		}
	}
}

func TestParseExecutionPayload_MalformedEntriesBecomeWarnings(t *testing.T) {
	// GIVEN: A payload where one activity has a garbage balance and one
	//        is not even an object
	// WHEN: Parsing
	// THEN: Good entries survive, bad ones read as zero or are dropped,
	//       and each problem is reported; parsing never fails outright

	raw := []byte(`{
		"activities": {
			"G-01": {"section": "G", "cumulativeBalance": "3500.00"},
			"G-02": {"section": "G", "cumulativeBalance": "oops"},
			"G-03": "not an object"
		}
	}`)

	payload, warnings := engine.ParseExecutionPayload(raw)

	if got := payload.Activities["G-01"].CumulativeBalance; !got.Equal(dec("3500.00")) {
		t.Errorf("G-01 balance = %s, want 3500.00", got)
	}
	if got := payload.Activities["G-02"].CumulativeBalance; !got.IsZero() {
		t.Errorf("malformed balance should read as zero, got %s", got)
	}
	if _, ok := payload.Activities["G-03"]; ok {
		t.Error("non-object activity should be dropped")
	}
	if len(warnings) != 2 {
		t.Errorf("expected 2 warnings, got %d: %v", len(warnings), warnings)
	}
}

func TestParseExecutionPayload_NumbersKeepPrecision(t *testing.T) {
	// JSON numbers are decoded through json.Number, so a literal like
	// 0.10 does not pick up float64 noise.
	raw := []byte(`{"activities": {"G-01": {"section": "G", "cumulativeBalance": 0.10}}}`)

	payload, warnings := engine.ParseExecutionPayload(raw)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if got := payload.Activities["G-01"].CumulativeBalance; got.String() != "0.1" {
		t.Errorf("balance = %s, want 0.1", got)
	}
}

func TestParseExecutionPayload_InvalidJSON(t *testing.T) {
	payload, warnings := engine.ParseExecutionPayload([]byte("{nope"))
	if len(payload.Activities) != 0 {
		t.Error("invalid JSON should yield an empty payload")
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "not valid JSON") {
		t.Errorf("expected a not-valid-JSON warning, got %v", warnings)
	}
}

func TestEndingCash_SumsThreeClosingSlots(t *testing.T) {
	// GIVEN: Closing-section balances of 3500 (bank), 500 (petty cash)
	//        and 1000 (other receivables)
	// THEN: Ending cash is 5000

	rec := &engine.ExecutionRecord{
		Activities: map[engine.ActivityCode]engine.ActivityBalance{
			"G-01": {Section: engine.ClosingSection, CumulativeBalance: dec("3500")},
			"G-02": {Section: engine.ClosingSection, CumulativeBalance: dec("500")},
			"G-03": {Section: engine.ClosingSection, CumulativeBalance: dec("1000")},
		},
	}

	got := engine.EndingCash(context.Background(), rec)
	if !got.Equal(dec("5000")) {
		t.Errorf("ending cash = %s, want 5000", got)
	}
}

func TestEndingCash_IgnoresSlotsOutsideClosingSection(t *testing.T) {
	// A code with a matching suffix but the wrong section contributes
	// nothing; slot membership needs BOTH the section and the suffix.
	rec := &engine.ExecutionRecord{
		Activities: map[engine.ActivityCode]engine.ActivityBalance{
			"G-01": {Section: engine.ClosingSection, CumulativeBalance: dec("100")},
			"B-01": {Section: "B", CumulativeBalance: dec("999")},
			"G-09": {Section: engine.ClosingSection, CumulativeBalance: dec("999")},
		},
	}

	got := engine.EndingCash(context.Background(), rec)
	if !got.Equal(dec("100")) {
		t.Errorf("ending cash = %s, want 100", got)
	}
}

func TestEndingCash_AddsUnclearedVAT(t *testing.T) {
	// GIVEN: Cash of 100, one VAT category with 80 outstanding and one
	//        over-cleared category
	// THEN: The outstanding 80 is added and the over-cleared category is
	//       clamped to zero, not subtracted

	rec := &engine.ExecutionRecord{
		Activities: map[engine.ActivityCode]engine.ActivityBalance{
			"G-01": {Section: engine.ClosingSection, CumulativeBalance: dec("100")},
		},
		VATReceivables: map[string]engine.VATBalance{
			"imports":  {Amount: dec("200"), Cleared: dec("120")},
			"services": {Amount: dec("50"), Cleared: dec("75")},
		},
	}

	got := engine.EndingCash(context.Background(), rec)
	if !got.Equal(dec("180")) {
		t.Errorf("ending cash = %s, want 180", got)
	}
}

func TestEndingCash_NilRecordIsZero(t *testing.T) {
	if got := engine.EndingCash(context.Background(), nil); !got.IsZero() {
		t.Errorf("nil record should yield zero, got %s", got)
	}
}
