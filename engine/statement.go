/*
statement.go - Combined statement inputs

PURPOSE:
  Convenience for the statement-generation pipeline: one call producing
  both the beginning-cash figure and the working-capital changes for the
  same period/facility/project selection, with warnings concatenated in
  order (carryforward first).
*/
package engine

import "context"

// StatementInputs bundles the two engine results a cash flow statement
// needs from this package.
type StatementInputs struct {
	BeginningCash  CarryforwardResult
	WorkingCapital WorkingCapitalResult
	Warnings       []string
}

// ComputeStatementInputs runs both calculations for the same selection.
func ComputeStatementInputs(ctx context.Context, eng *CarryforwardEngine, calc *WorkingCapitalCalculator, opts CarryforwardOptions) StatementInputs {
	beginning := eng.GetBeginningCash(ctx, opts)
	working := calc.CalculateChanges(ctx, WorkingCapitalParams{
		PeriodID:    opts.PeriodID,
		ProjectType: opts.ProjectType,
		FacilityID:  opts.FacilityID,
		FacilityIDs: opts.FacilityIDs,
	})

	warnings := make([]string, 0, len(beginning.Warnings)+len(working.Warnings))
	warnings = append(warnings, beginning.Warnings...)
	warnings = append(warnings, working.Warnings...)

	return StatementInputs{
		BeginningCash:  beginning,
		WorkingCapital: working,
		Warnings:       warnings,
	}
}
