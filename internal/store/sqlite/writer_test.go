package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"execution-systemv1/internal/model"
)

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	w, err := New(WriterConfig{DBPath: filepath.Join(t.TempDir(), "executions.db")})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func sampleSummary() *model.ExecutionSummary {
	started := time.Date(2026, time.August, 26, 10, 0, 0, 0, time.UTC)
	results := []model.LegResult{
		{Kind: model.LegCall, BatchIndex: 1, Quantity: 1500, OrderID: "OID-1", Success: true},
		{Kind: model.LegPut, BatchIndex: 1, Quantity: 1500, Success: false, ErrorCode: "AB1004", ErrorMessage: "insufficient margin"},
	}
	b := model.OrderBatch{Index: 1, Lots: 20, Quantity: 1500}
	b.Finalize(results)
	return &model.ExecutionSummary{
		ExecutionID:  "exec-test-1",
		TotalBatches: 1,
		TotalLots:    20,
		LotSize:      75,
		Counts: map[model.LegKind]model.LegCounts{
			model.LegCall: {Success: 1},
			model.LegPut:  {Failure: 1},
		},
		Batches:        []model.OrderBatch{b},
		Results:        results,
		OverallSuccess: false,
		StartedAt:      started,
		FinishedAt:     started.Add(time.Minute),
	}
}

func TestSaveAndReadExecution(t *testing.T) {
	w := newTestWriter(t)
	ctx := context.Background()

	if err := w.SaveExecution(ctx, sampleSummary()); err != nil {
		t.Fatalf("save execution: %v", err)
	}

	got, err := w.ReadExecution(ctx, "exec-test-1")
	if err != nil {
		t.Fatalf("read execution: %v", err)
	}
	if got == nil {
		t.Fatal("expected stored execution")
	}
	if got.TotalBatches != 1 || len(got.Results) != 2 {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
	if got.Results[1].ErrorCode != "AB1004" {
		t.Errorf("leg error lost in roundtrip: %+v", got.Results[1])
	}

	// Leg rows are queryable for reconciliation.
	var n int
	if err := w.DB().QueryRow(
		`SELECT COUNT(*) FROM leg_results WHERE execution_id = ?`, "exec-test-1").Scan(&n); err != nil {
		t.Fatalf("count legs: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 leg rows, got %d", n)
	}
}

func TestReadExecution_Unknown(t *testing.T) {
	w := newTestWriter(t)
	got, err := w.ReadExecution(context.Background(), "nope")
	if err != nil {
		t.Fatalf("read execution: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown execution, got %+v", got)
	}
}

func TestSavePosition(t *testing.T) {
	w := newTestWriter(t)
	ctx := context.Background()

	pos := &model.Position{
		ExecutionID:    "exec-test-1",
		Underlying:     "NIFTY",
		CallSymbol:     "NIFTY28AUG2524000CE",
		PutSymbol:      "NIFTY28AUG2523500PE",
		FilledQuantity: 1500,
		AvgPrice:       182.5,
		MarginUsed:     4_328_000,
		OpenedAt:       time.Now(),
	}
	if err := w.SavePosition(ctx, pos); err != nil {
		t.Fatalf("save position: %v", err)
	}

	var underlying string
	var qty int64
	if err := w.DB().QueryRow(
		`SELECT underlying, filled_qty FROM positions WHERE execution_id = ?`, "exec-test-1").
		Scan(&underlying, &qty); err != nil {
		t.Fatalf("query position: %v", err)
	}
	if underlying != "NIFTY" || qty != 1500 {
		t.Errorf("unexpected row: %s %d", underlying, qty)
	}
}
