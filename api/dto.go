/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

AMOUNTS:
  All monetary amounts cross the wire as decimal strings, never as JSON
  numbers. Clients that parse them as float64 lose precision; that is
  their choice, not ours.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - engine/types.go: Domain counterparts
*/
package api

import (
	"time"

	"github.com/ledgerline/statement-engine/engine"
)

// =============================================================================
// PERIODS
// =============================================================================

// PeriodDTO represents a reporting period in API responses.
type PeriodDTO struct {
	ID         string `json:"id"`
	FiscalYear int    `json:"fiscal_year"`
	Cadence    string `json:"cadence"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

func toPeriodDTO(p *engine.ReportingPeriod) PeriodDTO {
	return PeriodDTO{
		ID:         string(p.ID),
		FiscalYear: p.FiscalYear,
		Cadence:    string(p.Cadence),
		StartDate:  p.StartDate.UTC().Format(time.RFC3339),
		EndDate:    p.EndDate.UTC().Format(time.RFC3339),
	}
}

// =============================================================================
// BEGINNING CASH
// =============================================================================

// BeginningCashRequest selects what to compute beginning cash for. Supply
// facility_id for a single facility or facility_ids for an aggregation.
type BeginningCashRequest struct {
	PeriodID      string   `json:"period_id"`
	FacilityID    *string  `json:"facility_id,omitempty"`
	FacilityIDs   []string `json:"facility_ids,omitempty"`
	ProjectType   string   `json:"project_type"`
	StatementCode string   `json:"statement_code,omitempty"`
}

// FacilityEndingCashDTO is one entry of an aggregated breakdown.
type FacilityEndingCashDTO struct {
	FacilityID   string `json:"facility_id"`
	FacilityName string `json:"facility_name,omitempty"`
	EndingCash   string `json:"ending_cash"`
}

// CarryforwardMetadataDTO is the diagnostic detail of a beginning-cash
// response. Empty fields did not apply to the branch taken.
type CarryforwardMetadataDTO struct {
	PreviousPeriodID   string                  `json:"previous_period_id,omitempty"`
	PreviousEndingCash string                  `json:"previous_ending_cash,omitempty"`
	ManualAmount       string                  `json:"manual_amount,omitempty"`
	Discrepancy        string                  `json:"discrepancy,omitempty"`
	OverrideReason     string                  `json:"override_reason,omitempty"`
	Breakdown          []FacilityEndingCashDTO `json:"breakdown,omitempty"`
	ErrorMessage       string                  `json:"error_message,omitempty"`
	ComputedAt         string                  `json:"computed_at"`
}

// BeginningCashResponse is the API form of a carryforward result.
type BeginningCashResponse struct {
	Success       bool                    `json:"success"`
	BeginningCash string                  `json:"beginning_cash"`
	Source        string                  `json:"source"`
	Metadata      CarryforwardMetadataDTO `json:"metadata"`
	Warnings      []string                `json:"warnings"`
}

func toBeginningCashResponse(res engine.CarryforwardResult) BeginningCashResponse {
	md := CarryforwardMetadataDTO{
		PreviousPeriodID: string(res.Metadata.PreviousPeriodID),
		OverrideReason:   res.Metadata.OverrideReason,
		ErrorMessage:     res.Metadata.ErrorMessage,
		ComputedAt:       res.Metadata.ComputedAt.UTC().Format(time.RFC3339),
	}
	if res.Metadata.PreviousPeriodID != "" {
		md.PreviousEndingCash = res.Metadata.PreviousEndingCash.String()
	}
	if !res.Metadata.ManualAmount.IsZero() {
		md.ManualAmount = res.Metadata.ManualAmount.String()
	}
	if !res.Metadata.Discrepancy.IsZero() {
		md.Discrepancy = res.Metadata.Discrepancy.String()
	}
	for _, b := range res.Metadata.Breakdown {
		md.Breakdown = append(md.Breakdown, FacilityEndingCashDTO{
			FacilityID:   string(b.FacilityID),
			FacilityName: b.FacilityName,
			EndingCash:   b.EndingCash.String(),
		})
	}

	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return BeginningCashResponse{
		Success:       res.Success,
		BeginningCash: res.BeginningCash.String(),
		Source:        string(res.Source),
		Metadata:      md,
		Warnings:      warnings,
	}
}

// =============================================================================
// WORKING CAPITAL
// =============================================================================

// WorkingCapitalRequest selects what to compute changes for. project_id wins
// over project_type when both are set.
type WorkingCapitalRequest struct {
	PeriodID    string   `json:"period_id"`
	ProjectID   string   `json:"project_id,omitempty"`
	ProjectType string   `json:"project_type,omitempty"`
	FacilityID  *string  `json:"facility_id,omitempty"`
	FacilityIDs []string `json:"facility_ids,omitempty"`
}

// FacilityChangeDTO is one entry of a per-facility breakdown.
type FacilityChangeDTO struct {
	FacilityID      string `json:"facility_id"`
	FacilityName    string `json:"facility_name,omitempty"`
	CurrentBalance  string `json:"current_balance"`
	PreviousBalance string `json:"previous_balance"`
	Change          string `json:"change"`
}

// WorkingCapitalChangeDTO is the movement of one account class.
type WorkingCapitalChangeDTO struct {
	AccountClass       string              `json:"account_class"`
	CurrentBalance     string              `json:"current_balance"`
	PreviousBalance    string              `json:"previous_balance"`
	Change             string              `json:"change"`
	CashFlowAdjustment string              `json:"cash_flow_adjustment"`
	EventCodes         []string            `json:"event_codes"`
	Breakdown          []FacilityChangeDTO `json:"breakdown,omitempty"`
}

// WorkingCapitalResponse is the API form of a working-capital result.
type WorkingCapitalResponse struct {
	Success           bool                    `json:"success"`
	ReceivablesChange WorkingCapitalChangeDTO `json:"receivables_change"`
	PayablesChange    WorkingCapitalChangeDTO `json:"payables_change"`
	PreviousPeriodID  string                  `json:"previous_period_id,omitempty"`
	ErrorMessage      string                  `json:"error_message,omitempty"`
	ComputedAt        string                  `json:"computed_at"`
	Warnings          []string                `json:"warnings"`
}

func toWorkingCapitalChangeDTO(c engine.WorkingCapitalChange) WorkingCapitalChangeDTO {
	dto := WorkingCapitalChangeDTO{
		AccountClass:       string(c.AccountClass),
		CurrentBalance:     c.CurrentBalance.String(),
		PreviousBalance:    c.PreviousBalance.String(),
		Change:             c.Change.String(),
		CashFlowAdjustment: c.CashFlowAdjustment.String(),
		EventCodes:         c.EventCodes,
	}
	for _, b := range c.Breakdown {
		dto.Breakdown = append(dto.Breakdown, FacilityChangeDTO{
			FacilityID:      string(b.FacilityID),
			FacilityName:    b.FacilityName,
			CurrentBalance:  b.CurrentBalance.String(),
			PreviousBalance: b.PreviousBalance.String(),
			Change:          b.Change.String(),
		})
	}
	return dto
}

func toWorkingCapitalResponse(res engine.WorkingCapitalResult) WorkingCapitalResponse {
	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return WorkingCapitalResponse{
		Success:           res.Success,
		ReceivablesChange: toWorkingCapitalChangeDTO(res.ReceivablesChange),
		PayablesChange:    toWorkingCapitalChangeDTO(res.PayablesChange),
		PreviousPeriodID:  string(res.Metadata.PreviousPeriodID),
		ErrorMessage:      res.Metadata.ErrorMessage,
		ComputedAt:        res.Metadata.ComputedAt.UTC().Format(time.RFC3339),
		Warnings:          warnings,
	}
}

// =============================================================================
// STATEMENT INPUTS
// =============================================================================

// StatementInputsResponse bundles both calculations for one statement.
type StatementInputsResponse struct {
	BeginningCash  BeginningCashResponse  `json:"beginning_cash"`
	WorkingCapital WorkingCapitalResponse `json:"working_capital"`
	Warnings       []string               `json:"warnings"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
