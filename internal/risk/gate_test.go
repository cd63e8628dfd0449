package risk

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"execution-systemv1/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGate_AllowsWithinLimits(t *testing.T) {
	store := memory.NewRiskStore()
	g := NewGate(store, Limits{DailyLoss: 50_000, WeeklyLoss: 150_000}, testLogger())

	if err := g.RecordPnL(context.Background(), -10_000); err != nil {
		t.Fatalf("record pnl: %v", err)
	}
	d, err := g.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !d.Allowed {
		t.Errorf("expected allowed, denied with reason %q", d.Reason)
	}
}

func TestGate_TripsOnDailyBreachAndLatches(t *testing.T) {
	store := memory.NewRiskStore()
	g := NewGate(store, Limits{DailyLoss: 50_000, WeeklyLoss: 150_000}, testLogger())
	ctx := context.Background()

	if err := g.RecordPnL(ctx, -50_000); err != nil {
		t.Fatalf("record pnl: %v", err)
	}
	d, err := g.Evaluate(ctx)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected denial at the daily loss limit")
	}

	st, err := g.State(ctx)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if !st.CircuitBreakerActive {
		t.Error("expected circuit breaker latched after breach")
	}

	// P&L recovers, but the breaker stays latched: still denied.
	if err := g.RecordPnL(ctx, 200_000); err != nil {
		t.Fatalf("record pnl: %v", err)
	}
	d, err = g.Evaluate(ctx)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if d.Allowed {
		t.Error("breaker must not auto-reset on improved pnl")
	}
}

func TestGate_TripsOnWeeklyBreach(t *testing.T) {
	store := memory.NewRiskStore()
	g := NewGate(store, Limits{DailyLoss: 500_000, WeeklyLoss: 100_000}, testLogger())
	ctx := context.Background()

	if err := g.RecordPnL(ctx, -120_000); err != nil {
		t.Fatalf("record pnl: %v", err)
	}
	d, err := g.Evaluate(ctx)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if d.Allowed {
		t.Error("expected denial on weekly loss breach")
	}
}

func TestGate_ExplicitResetClearsBreaker(t *testing.T) {
	store := memory.NewRiskStore()
	g := NewGate(store, Limits{DailyLoss: 10_000, WeeklyLoss: 100_000}, testLogger())
	ctx := context.Background()

	if err := g.RecordPnL(ctx, -10_000); err != nil {
		t.Fatalf("record pnl: %v", err)
	}
	if d, _ := g.Evaluate(ctx); d.Allowed {
		t.Fatal("expected trip")
	}
	if err := g.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	// Still breached on thresholds, so it trips again; the reset only
	// clears the latch, it does not erase the loss.
	if d, _ := g.Evaluate(ctx); d.Allowed {
		t.Error("expected re-trip after reset while pnl still breaches")
	}

	if err := g.RecordPnL(ctx, 50_000); err != nil {
		t.Fatalf("record pnl: %v", err)
	}
	if err := g.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	d, err := g.Evaluate(ctx)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !d.Allowed {
		t.Errorf("expected allowed after reset and recovery, got %q", d.Reason)
	}
}

func TestGate_MarketHoursCheck(t *testing.T) {
	// Sunday, 2026-03-08 11:00 IST.
	sunday := time.Date(2026, time.March, 8, 11, 0, 0, 0, time.FixedZone("IST", 5*3600+30*60))
	store := memory.NewRiskStore()
	g := NewGate(store, Limits{DailyLoss: 50_000, WeeklyLoss: 150_000}, testLogger(),
		WithMarketHoursCheck(), WithClock(func() time.Time { return sunday }))

	ctx := context.Background()
	d, err := g.Evaluate(ctx)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if d.Allowed {
		t.Error("expected denial on a Sunday")
	}
	st, err := g.State(ctx)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.CircuitBreakerActive {
		t.Error("closed market must not trip the breaker")
	}
}
