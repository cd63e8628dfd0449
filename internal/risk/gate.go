// Package risk implements the pre-execution risk gate: account loss limits
// and a latched circuit breaker. The gate is evaluated exactly once per
// execution, before any order is scheduled; its verdict is final for that
// execution.
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"execution-systemv1/internal/markethours"
	"execution-systemv1/internal/model"
)

// Limits holds the configured loss thresholds in rupees. Both are positive
// numbers; a daily P&L of -DailyLoss or worse trips the breaker.
type Limits struct {
	DailyLoss  float64
	WeeklyLoss float64
}

// Decision is the gate's verdict for one execution.
type Decision struct {
	Allowed bool
	Reason  string
}

// Gate evaluates the account risk state against configured limits. The
// circuit breaker latches on breach and stays latched across evaluations
// (and restarts, with a persistent RiskStore) until Reset is called.
type Gate struct {
	mu    sync.Mutex
	store model.RiskStore
	lim   Limits
	log   *slog.Logger

	now             func() time.Time
	marketHoursOnly bool
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithMarketHoursCheck makes the gate deny executions outside NSE trading
// hours. A closed market denies without tripping the breaker.
func WithMarketHoursCheck() Option {
	return func(g *Gate) { g.marketHoursOnly = true }
}

// NewGate creates a risk gate backed by the given store.
func NewGate(store model.RiskStore, lim Limits, log *slog.Logger, opts ...Option) *Gate {
	g := &Gate{
		store: store,
		lim:   lim,
		log:   log,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate decides whether trading is allowed right now. When the breaker
// is already latched the gate denies unconditionally without re-checking
// thresholds. A fresh breach sets the breaker and persists it before the
// denial is returned.
func (g *Gate) Evaluate(ctx context.Context) (Decision, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.marketHoursOnly && !markethours.IsMarketOpen(g.now()) {
		return Decision{Allowed: false, Reason: "market closed"}, nil
	}

	st, err := g.load(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("risk state load: %w", err)
	}

	if st.CircuitBreakerActive {
		g.log.Warn("risk gate: circuit breaker latched",
			slog.String("reason", st.LastBreachReason))
		return Decision{Allowed: false, Reason: st.LastBreachReason}, nil
	}

	if st.DailyPnL <= -g.lim.DailyLoss {
		return g.trip(ctx, st, fmt.Sprintf("daily loss limit breached: pnl %.2f, limit %.2f",
			st.DailyPnL, g.lim.DailyLoss))
	}
	if st.WeeklyPnL <= -g.lim.WeeklyLoss {
		return g.trip(ctx, st, fmt.Sprintf("weekly loss limit breached: pnl %.2f, limit %.2f",
			st.WeeklyPnL, g.lim.WeeklyLoss))
	}

	return Decision{Allowed: true}, nil
}

// RecordPnL folds a realized P&L delta into the persisted state. It does
// not evaluate limits; the next Evaluate call does.
func (g *Gate) RecordPnL(ctx context.Context, delta float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, err := g.load(ctx)
	if err != nil {
		return fmt.Errorf("risk state load: %w", err)
	}
	st.DailyPnL += delta
	st.WeeklyPnL += delta
	return g.store.Save(ctx, st)
}

// Reset clears the circuit breaker. This is the explicit external reset
// required to resume trading after a breach; nothing else clears the flag.
func (g *Gate) Reset(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, err := g.load(ctx)
	if err != nil {
		return fmt.Errorf("risk state load: %w", err)
	}
	st.CircuitBreakerActive = false
	st.LastBreachReason = ""
	st.LastBreachAt = time.Time{}
	g.log.Info("risk gate: circuit breaker reset")
	return g.store.Save(ctx, st)
}

// State returns a copy of the current risk state.
func (g *Gate) State(ctx context.Context) (model.RiskState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, err := g.load(ctx)
	if err != nil {
		return model.RiskState{}, err
	}
	return *st, nil
}

func (g *Gate) trip(ctx context.Context, st *model.RiskState, reason string) (Decision, error) {
	st.CircuitBreakerActive = true
	st.LastBreachReason = reason
	st.LastBreachAt = g.now()
	if err := g.store.Save(ctx, st); err != nil {
		return Decision{}, fmt.Errorf("risk state save: %w", err)
	}
	g.log.Warn("risk gate: circuit breaker tripped", slog.String("reason", reason))
	return Decision{Allowed: false, Reason: reason}, nil
}

// load returns the stored state, or a fresh one carrying the configured
// limits when nothing has been persisted yet.
func (g *Gate) load(ctx context.Context) (*model.RiskState, error) {
	st, err := g.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if st == nil {
		st = &model.RiskState{}
	}
	st.DailyLossLimit = g.lim.DailyLoss
	st.WeeklyLossLimit = g.lim.WeeklyLoss
	return st, nil
}
