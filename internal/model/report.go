package model

import "time"

// LegCounts tallies successes and failures for one leg kind across all
// batches of an execution.
type LegCounts struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
}

// ExecutionSummary is the reconcilable record of one multi-leg execution:
// every batch and every leg outcome, in placement order, plus roll-up
// counts. It is assembled once, after the last batch, and never mutated.
type ExecutionSummary struct {
	ExecutionID    string                `json:"execution_id"`
	TotalBatches   int                   `json:"total_batches"`
	TotalLots      int                   `json:"total_lots"`
	LotSize        int                   `json:"lot_size"`
	Counts         map[LegKind]LegCounts `json:"counts"`
	Batches        []OrderBatch          `json:"batches"`
	Results        []LegResult           `json:"results"` // flattened, batch order
	OverallSuccess bool                  `json:"overall_success"`
	StartedAt      time.Time             `json:"started_at"`
	FinishedAt     time.Time             `json:"finished_at"`
}

// FilledQuantity sums the quantity of every successful leg placement.
func (s *ExecutionSummary) FilledQuantity() int64 {
	var total int64
	for _, r := range s.Results {
		if r.Success {
			total += r.Quantity
		}
	}
	return total
}

// Position is the record handed to the storage collaborator once an
// execution reports overall success. Prices in rupees.
type Position struct {
	ExecutionID    string    `json:"execution_id"` // reference to the full summary for audit
	Underlying     string    `json:"underlying"`
	CallSymbol     string    `json:"call_symbol"`
	PutSymbol      string    `json:"put_symbol"`
	FilledQuantity int64     `json:"filled_quantity"`
	AvgPrice       float64   `json:"avg_price"`
	MarginUsed     float64   `json:"margin_used"`
	OpenedAt       time.Time `json:"opened_at"`
}
