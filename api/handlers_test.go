/*
handlers_test.go - Unit tests for API handlers

Tests run against the in-memory store behind a real chi router, so they
cover routing, validation, and DTO serialization together.
*/
package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ledgerline/statement-engine/api"
	"github.com/ledgerline/statement-engine/engine"
	"github.com/ledgerline/statement-engine/engine/store"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// testServer seeds two quarters with F-001 closing Q1 at 5000 and returns
// a ready-to-hit router.
func testServer() *httptest.Server {
	mem := store.NewMemory()
	mem.AddPeriod(engine.ReportingPeriod{
		ID: "FY2026-Q1", FiscalYear: 2026, Cadence: engine.CadenceQuarterly,
		StartDate: date(2025, time.July, 1), EndDate: date(2025, time.September, 30),
	})
	mem.AddPeriod(engine.ReportingPeriod{
		ID: "FY2026-Q2", FiscalYear: 2026, Cadence: engine.CadenceQuarterly,
		StartDate: date(2025, time.October, 1), EndDate: date(2025, time.December, 31),
	})
	mem.AddFacility(engine.Facility{ID: "F-001", Name: "Central District Hospital"})
	mem.AddProject(engine.Project{ID: "P-MAL", Type: "MALARIA"})
	mem.MapEvent(engine.EventOpeningCash, "A-00")
	mem.MapEvent(engine.EventReceivablesGoods, "B-01")
	mem.MapEvent(engine.EventPayablesSuppliers, "C-01")

	mem.AddExecutionRecord(engine.ExecutionRecord{
		PeriodID: "FY2026-Q1", FacilityID: "F-001", ProjectID: "P-MAL",
		Activities: map[engine.ActivityCode]engine.ActivityBalance{
			"G-01": {Section: engine.ClosingSection, CumulativeBalance: dec("3500")},
			"G-02": {Section: engine.ClosingSection, CumulativeBalance: dec("500")},
			"G-03": {Section: engine.ClosingSection, CumulativeBalance: dec("1000")},
			"B-01": {Section: "B", CumulativeBalance: dec("4000")},
			"C-01": {Section: "C", CumulativeBalance: dec("2000")},
		},
	})
	mem.AddExecutionRecord(engine.ExecutionRecord{
		PeriodID: "FY2026-Q2", FacilityID: "F-001", ProjectID: "P-MAL",
		Activities: map[engine.ActivityCode]engine.ActivityBalance{
			"B-01": {Section: "B", CumulativeBalance: dec("5000")},
			"C-01": {Section: "C", CumulativeBalance: dec("2500")},
		},
	})

	logger := zerolog.Nop()
	return httptest.NewServer(api.NewRouter(api.NewHandler(mem), &logger))
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestBeginningCashEndpoint(t *testing.T) {
	srv := testServer()
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/statement/beginning-cash", map[string]any{
		"period_id":    "FY2026-Q2",
		"facility_id":  "F-001",
		"project_type": "MALARIA",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body api.BeginningCashResponse
	decodeInto(t, resp, &body)

	assert.True(t, body.Success)
	assert.Equal(t, "5000", body.BeginningCash)
	assert.Equal(t, "CARRYFORWARD", body.Source)
	assert.Equal(t, "FY2026-Q1", body.Metadata.PreviousPeriodID)
	assert.Empty(t, body.Warnings)
}

func TestBeginningCashEndpoint_Validation(t *testing.T) {
	srv := testServer()
	defer srv.Close()

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing period", map[string]any{"project_type": "MALARIA"}},
		{"missing project type", map[string]any{"period_id": "FY2026-Q2"}},
	}
	for _, c := range cases {
		resp := postJSON(t, srv.URL+"/api/statement/beginning-cash", c.body)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, c.name)
	}
}

func TestWorkingCapitalEndpoint(t *testing.T) {
	srv := testServer()
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/statement/working-capital", map[string]any{
		"period_id":    "FY2026-Q2",
		"project_type": "MALARIA",
		"facility_id":  "F-001",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body api.WorkingCapitalResponse
	decodeInto(t, resp, &body)

	assert.True(t, body.Success)
	// Receivables 4000 -> 5000: cash adjustment -1000.
	assert.Equal(t, "1000", body.ReceivablesChange.Change)
	assert.Equal(t, "-1000", body.ReceivablesChange.CashFlowAdjustment)
	// Payables 2000 -> 2500: cash adjustment +500.
	assert.Equal(t, "500", body.PayablesChange.CashFlowAdjustment)
	assert.Equal(t, "FY2026-Q1", body.PreviousPeriodID)
}

func TestStatementInputsEndpoint(t *testing.T) {
	srv := testServer()
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/statement/inputs", map[string]any{
		"period_id":    "FY2026-Q2",
		"facility_id":  "F-001",
		"project_type": "MALARIA",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body api.StatementInputsResponse
	decodeInto(t, resp, &body)

	assert.Equal(t, "5000", body.BeginningCash.BeginningCash)
	assert.True(t, body.WorkingCapital.Success)
	assert.NotNil(t, body.Warnings)
}

func TestPreviousPeriodEndpoint(t *testing.T) {
	srv := testServer()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/periods/FY2026-Q2/previous")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body api.PeriodDTO
	decodeInto(t, resp, &body)
	assert.Equal(t, "FY2026-Q1", body.ID)
	assert.Equal(t, "QUARTERLY", body.Cadence)
}

func TestPreviousPeriodEndpoint_Misses(t *testing.T) {
	srv := testServer()
	defer srv.Close()

	// The earliest period has no predecessor.
	resp, err := http.Get(srv.URL + "/api/periods/FY2026-Q1/previous")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// An unknown period is also a 404.
	resp, err = http.Get(srv.URL + "/api/periods/NOPE/previous")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
