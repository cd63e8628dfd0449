// Package report aggregates scheduler output into the final execution
// summary and the position record handed to the storage collaborator.
package report

import (
	"fmt"
	"time"

	"execution-systemv1/internal/model"
)

// SuccessPolicy decides what counts as an overall successful execution.
type SuccessPolicy string

const (
	// PolicyAnyFillPerLeg: at least one successful fill on every leg kind.
	PolicyAnyFillPerLeg SuccessPolicy = "any_fill_per_leg"
	// PolicyAllLegsFilled: every leg of every batch succeeded.
	PolicyAllLegsFilled SuccessPolicy = "all_legs_filled"
)

// ParsePolicy validates a configured policy string.
func ParsePolicy(s string) (SuccessPolicy, error) {
	switch SuccessPolicy(s) {
	case PolicyAnyFillPerLeg, PolicyAllLegsFilled:
		return SuccessPolicy(s), nil
	}
	return "", fmt.Errorf("unknown success policy %q", s)
}

// Reporter assembles execution summaries under a configured policy.
type Reporter struct {
	policy SuccessPolicy
}

// New creates a reporter.
func New(policy SuccessPolicy) *Reporter {
	return &Reporter{policy: policy}
}

// Aggregate rolls up every batch into one summary: per-leg counts, the
// flattened result list in placement order, and the overall verdict.
// Partial failures never produce an error here; only an empty batch list
// does, since the scheduler always returns at least one batch for a valid
// plan.
func (r *Reporter) Aggregate(executionID string, batches []model.OrderBatch, totalLots, lotSize int, startedAt, finishedAt time.Time) (*model.ExecutionSummary, error) {
	if len(batches) == 0 {
		return nil, fmt.Errorf("report: no batches to aggregate")
	}

	counts := map[model.LegKind]model.LegCounts{}
	var results []model.LegResult
	for _, b := range batches {
		for _, res := range b.Results {
			c := counts[res.Kind]
			if res.Success {
				c.Success++
			} else {
				c.Failure++
			}
			counts[res.Kind] = c
			results = append(results, res)
		}
	}

	return &model.ExecutionSummary{
		ExecutionID:    executionID,
		TotalBatches:   len(batches),
		TotalLots:      totalLots,
		LotSize:        lotSize,
		Counts:         counts,
		Batches:        batches,
		Results:        results,
		OverallSuccess: r.overall(counts),
		StartedAt:      startedAt,
		FinishedAt:     finishedAt,
	}, nil
}

func (r *Reporter) overall(counts map[model.LegKind]model.LegCounts) bool {
	if len(counts) == 0 {
		return false
	}
	for _, c := range counts {
		switch r.policy {
		case PolicyAllLegsFilled:
			if c.Failure > 0 || c.Success == 0 {
				return false
			}
		default: // PolicyAnyFillPerLeg
			if c.Success == 0 {
				return false
			}
		}
	}
	return true
}

// BuildPosition derives the position record from a successful summary.
// entryPremium is the reference premium per unit at execution time; the
// order API does not echo fill prices, so reconciliation against the
// broker's trade book happens downstream with the summary reference.
func (r *Reporter) BuildPosition(summary *model.ExecutionSummary, legs []model.Leg, entryPremium, marginUsed float64) *model.Position {
	pos := &model.Position{
		ExecutionID:    summary.ExecutionID,
		FilledQuantity: summary.FilledQuantity(),
		AvgPrice:       entryPremium,
		MarginUsed:     marginUsed,
		OpenedAt:       summary.FinishedAt,
	}
	for _, leg := range legs {
		switch leg.Kind {
		case model.LegCall:
			pos.CallSymbol = leg.Instrument.TradingSymbol
		case model.LegPut:
			pos.PutSymbol = leg.Instrument.TradingSymbol
		}
		if pos.Underlying == "" {
			pos.Underlying = leg.Instrument.Spec.Underlying
		}
	}
	return pos
}
