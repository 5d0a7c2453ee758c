// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"time"

	"sync"

	"github.com/ledgerline/statement-engine/engine"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	periods    map[engine.PeriodID]engine.ReportingPeriod
	facilities map[engine.FacilityID]engine.Facility
	projects   map[string]engine.Project
	mappings   map[engine.ActivityCode]string
	records    []engine.ExecutionRecord

	// Extra opening-balance rows injected directly (e.g. rows with raw
	// amounts that would come from unvalidated form submissions).
	extraRows []seededRow
}

type seededRow struct {
	periodID   engine.PeriodID
	projectID  engine.ProjectID
	facilityID engine.FacilityID
	row        engine.OverrideRow
}

func NewMemory() *Memory {
	return &Memory{
		periods:    make(map[engine.PeriodID]engine.ReportingPeriod),
		facilities: make(map[engine.FacilityID]engine.Facility),
		projects:   make(map[string]engine.Project),
		mappings:   make(map[engine.ActivityCode]string),
	}
}

// =============================================================================
// SEEDING
// =============================================================================

func (m *Memory) AddPeriod(p engine.ReportingPeriod) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.periods[p.ID] = p
}

func (m *Memory) AddFacility(f engine.Facility) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.facilities[f.ID] = f
}

func (m *Memory) AddProject(p engine.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.Type] = p
}

// MapEvent links an event code to an activity code.
func (m *Memory) MapEvent(eventCode string, activityCode engine.ActivityCode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mappings[activityCode] = eventCode
}

func (m *Memory) AddExecutionRecord(rec engine.ExecutionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.EntityType == "" {
		rec.EntityType = engine.EntityTypeExecution
	}
	m.records = append(m.records, rec)
}

// AddOverrideRow injects an opening-balance row directly, bypassing the
// event-mapping derivation. Useful for exercising raw-amount validation.
func (m *Memory) AddOverrideRow(periodID engine.PeriodID, projectID engine.ProjectID, facilityID engine.FacilityID, row engine.OverrideRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extraRows = append(m.extraRows, seededRow{periodID, projectID, facilityID, row})
}

// =============================================================================
// STORE INTERFACE
// =============================================================================

func (m *Memory) FindReportingPeriod(ctx context.Context, id engine.PeriodID) (*engine.ReportingPeriod, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.periods[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) FindLatestPeriodBefore(ctx context.Context, cadence engine.Cadence, before time.Time) (*engine.ReportingPeriod, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *engine.ReportingPeriod
	for _, p := range m.periods {
		if p.Cadence != cadence || !p.EndDate.Before(before) {
			continue
		}
		if best == nil || p.EndDate.After(best.EndDate) {
			cp := p
			best = &cp
		}
	}
	return best, nil
}

func (m *Memory) FindProjectByType(ctx context.Context, projectType string) (*engine.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.projects[projectType]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) FindFacilitiesByIDs(ctx context.Context, ids []engine.FacilityID) ([]engine.Facility, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []engine.Facility
	for _, id := range ids {
		if f, ok := m.facilities[id]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *Memory) FindExecutionRecord(ctx context.Context, periodID engine.PeriodID, facilityID engine.FacilityID, projectID engine.ProjectID) (*engine.ExecutionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.records {
		rec := m.records[i]
		if rec.PeriodID == periodID && rec.FacilityID == facilityID &&
			rec.ProjectID == projectID && rec.EntityType == engine.EntityTypeExecution {
			cp := rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) SumBalancesByEventCode(ctx context.Context, q engine.BalanceQuery) (map[string]decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[string]bool, len(q.EventCodes))
	for _, ec := range q.EventCodes {
		wanted[ec] = true
	}
	inSet := make(map[engine.FacilityID]bool, len(q.FacilityIDs))
	for _, id := range q.FacilityIDs {
		inSet[id] = true
	}

	sums := make(map[string]decimal.Decimal)
	for _, rec := range m.records {
		if rec.PeriodID != q.PeriodID || rec.ProjectID != q.ProjectID ||
			rec.EntityType != engine.EntityTypeExecution {
			continue
		}
		if len(inSet) > 0 && !inSet[rec.FacilityID] {
			continue
		}
		for code, activity := range rec.Activities {
			ec, ok := m.mappings[code]
			if !ok || !wanted[ec] {
				continue
			}
			sums[ec] = sums[ec].Add(activity.CumulativeBalance)
		}
	}
	return sums, nil
}

func (m *Memory) FindOpeningBalanceRows(ctx context.Context, periodID engine.PeriodID, projectID engine.ProjectID, facilityID *engine.FacilityID) ([]engine.OverrideRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var rows []engine.OverrideRow
	for _, rec := range m.records {
		if rec.PeriodID != periodID || rec.ProjectID != projectID {
			continue
		}
		if facilityID != nil && rec.FacilityID != *facilityID {
			continue
		}
		// Sorted so the first row is stable when one record carries several
		// opening-cash-mapped activity codes.
		var codes []engine.ActivityCode
		for code := range rec.Activities {
			if m.mappings[code] == engine.EventOpeningCash {
				codes = append(codes, code)
			}
		}
		sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
		for _, code := range codes {
			rows = append(rows, engine.OverrideRow{
				RawAmount: rec.Activities[code].CumulativeBalance.String(),
				Metadata:  rec.Metadata,
				FormData:  rec.FormData,
			})
		}
	}
	for _, s := range m.extraRows {
		if s.periodID != periodID || s.projectID != projectID {
			continue
		}
		if facilityID != nil && s.facilityID != *facilityID {
			continue
		}
		rows = append(rows, s.row)
	}
	return rows, nil
}
