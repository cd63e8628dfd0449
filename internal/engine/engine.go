// Package engine orchestrates one multi-leg execution end to end:
// validate the request, consult the risk gate, acquire the broker session,
// resolve instruments, run the batch plan, aggregate the outcome, persist
// the audit trail and alert on anything short of a full fill.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"execution-systemv1/internal/gateway"
	"execution-systemv1/internal/instrument"
	"execution-systemv1/internal/logger"
	"execution-systemv1/internal/metrics"
	"execution-systemv1/internal/model"
	"execution-systemv1/internal/notification"
	"execution-systemv1/internal/report"
	"execution-systemv1/internal/risk"
	"execution-systemv1/internal/scheduler"
	"execution-systemv1/internal/session"
)

// LegSpec is one requested leg before broker resolution.
type LegSpec struct {
	Kind            model.LegKind        `json:"kind"`
	Spec            model.InstrumentSpec `json:"spec"`
	TransactionType string               `json:"transaction_type"`
	ProductType     string               `json:"product_type"`
}

// Request describes one multi-leg execution.
type Request struct {
	Underlying      string        `json:"underlying"`
	Legs            []LegSpec     `json:"legs"`
	TotalLots       int           `json:"total_lots"`
	MaxLotsPerOrder int           `json:"max_lots_per_order"`
	InterBatchDelay time.Duration `json:"inter_batch_delay"`
	OrderTimeout    time.Duration `json:"order_timeout"`
	// EntryPremium is the reference premium per unit at entry time, used
	// for the saved position; the order API does not echo fill prices.
	EntryPremium float64 `json:"entry_premium"`
	MarginUsed   float64 `json:"margin_used"`
}

// ValidationError reports a malformed request. It is returned before any
// broker call or state change.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Reason)
}

// RiskDeniedError reports that the risk gate refused the execution.
type RiskDeniedError struct {
	Reason string
}

func (e *RiskDeniedError) Error() string {
	return fmt.Sprintf("execution denied by risk gate: %s", e.Reason)
}

// Deps are the engine's collaborators. Writer, Hub, Notifier and Metrics
// may be nil; the corresponding step is skipped.
type Deps struct {
	Sessions *session.Manager
	Resolver *instrument.Resolver
	Gate     *risk.Gate
	Placer   model.OrderPlacer
	Delayer  scheduler.Delayer
	Reporter *report.Reporter
	Writer   model.ExecutionWriter
	Hub      *gateway.Hub
	Notifier notification.Notifier
	Metrics  *metrics.Metrics
	Log      *slog.Logger
}

// Engine runs multi-leg executions.
type Engine struct {
	deps Deps
	now  func() time.Time
}

// New creates an engine. The wall clock can be overridden for tests.
func New(deps Deps, opts ...Option) *Engine {
	if deps.Delayer == nil {
		deps.Delayer = scheduler.NewDelayer()
	}
	e := &Engine{deps: deps, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Execute runs one multi-leg execution. On a cancellation mid-plan the
// summary of the batches that did run is returned together with the
// context error. Denials and validation failures return typed errors
// before any order is placed.
func (e *Engine) Execute(ctx context.Context, req Request) (*model.ExecutionSummary, error) {
	if err := e.validate(req); err != nil {
		return nil, err
	}

	dec, err := e.deps.Gate.Evaluate(ctx)
	if err != nil {
		e.countExecution("error")
		return nil, fmt.Errorf("risk gate: %w", err)
	}
	e.updateBreakerGauge(ctx)
	if !dec.Allowed {
		if e.deps.Metrics != nil {
			e.deps.Metrics.RiskDenials.Inc()
		}
		e.countExecution("denied")
		return nil, &RiskDeniedError{Reason: dec.Reason}
	}

	sess, err := e.deps.Sessions.Acquire(ctx)
	if err != nil {
		e.countExecution("error")
		return nil, err
	}

	legs, lotSize, err := e.resolveLegs(ctx, req, sess)
	if err != nil {
		e.countExecution("error")
		return nil, err
	}

	executionID := logger.GenerateTraceID(req.Underlying, e.now())
	ctx = logger.WithTraceID(ctx, executionID)
	total := scheduler.NumBatches(req.TotalLots, req.MaxLotsPerOrder)

	e.deps.Log.Info("execution starting",
		slog.String("execution_id", executionID),
		slog.Int("total_lots", req.TotalLots),
		slog.Int("lot_size", lotSize),
		slog.Int("batches", total))
	if e.deps.Hub != nil {
		e.deps.Hub.ExecutionStarted(executionID, req.TotalLots, total)
	}

	// The sink carries the execution ID, so the scheduler is built per run.
	sink := &progressSink{engine: e, executionID: executionID}
	sched := scheduler.New(e.deps.Placer, e.deps.Delayer, sink, e.deps.Log)
	startedAt := e.now()
	batches, execErr := sched.Execute(ctx, scheduler.Config{
		MaxLotsPerOrder: req.MaxLotsPerOrder,
		InterBatchDelay: req.InterBatchDelay,
		OrderTimeout:    req.OrderTimeout,
	}, legs, req.TotalLots, lotSize, sess)
	finishedAt := e.now()

	if len(batches) == 0 {
		e.countExecution("error")
		return nil, execErr
	}

	summary, err := e.deps.Reporter.Aggregate(executionID, batches, req.TotalLots, lotSize, startedAt, finishedAt)
	if err != nil {
		e.countExecution("error")
		return nil, err
	}

	e.finish(ctx, req, legs, summary, finishedAt.Sub(startedAt))
	return summary, execErr
}

// finish records the terminal summary everywhere it needs to go. Failures
// here are logged, not propagated; the execution outcome is already fixed.
// The context is detached so a cancelled run still gets audited.
func (e *Engine) finish(ctx context.Context, req Request, legs []model.Leg, summary *model.ExecutionSummary, elapsed time.Duration) {
	ctx = context.WithoutCancel(ctx)
	if e.deps.Metrics != nil {
		e.deps.Metrics.ExecutionDuration.Observe(elapsed.Seconds())
	}
	e.countExecution(outcomeLabel(summary))

	if e.deps.Writer != nil {
		if err := e.deps.Writer.SaveExecution(ctx, summary); err != nil {
			e.deps.Log.Error("execution audit save failed",
				slog.String("execution_id", summary.ExecutionID),
				slog.String("error", err.Error()))
		}
		if summary.OverallSuccess {
			pos := e.deps.Reporter.BuildPosition(summary, legs, req.EntryPremium, req.MarginUsed)
			pos.Underlying = req.Underlying
			if err := e.deps.Writer.SavePosition(ctx, pos); err != nil {
				e.deps.Log.Error("position save failed",
					slog.String("execution_id", summary.ExecutionID),
					slog.String("error", err.Error()))
			}
		}
	}

	e.notify(ctx, summary)
	if e.deps.Hub != nil {
		e.deps.Hub.ExecutionFinished(summary)
	}
	e.deps.Log.Info("execution finished",
		slog.String("execution_id", summary.ExecutionID),
		slog.Bool("overall_success", summary.OverallSuccess),
		slog.Int64("filled_quantity", summary.FilledQuantity()),
		slog.Duration("elapsed", elapsed))
}

func (e *Engine) notify(ctx context.Context, summary *model.ExecutionSummary) {
	if e.deps.Notifier == nil {
		return
	}
	var failures int
	for _, c := range summary.Counts {
		failures += c.Failure
	}
	alert := notification.Alert{
		Level: notification.AlertInfo,
		Title: "Execution complete",
		Message: fmt.Sprintf("%s: %d batches, %d units filled",
			summary.ExecutionID, summary.TotalBatches, summary.FilledQuantity()),
	}
	switch {
	case !summary.OverallSuccess:
		alert.Level = notification.AlertCritical
		alert.Title = "Execution failed"
		alert.Message = fmt.Sprintf("%s: %d leg placements failed", summary.ExecutionID, failures)
	case failures > 0:
		alert.Level = notification.AlertWarning
		alert.Title = "Execution partially filled"
		alert.Message = fmt.Sprintf("%s: %d leg placements failed, position may be lopsided", summary.ExecutionID, failures)
	}
	if err := e.deps.Notifier.Send(ctx, alert); err != nil {
		e.deps.Log.Warn("alert send failed", slog.String("error", err.Error()))
	}
}

func (e *Engine) validate(req Request) error {
	switch {
	case req.Underlying == "":
		return &ValidationError{Field: "underlying", Reason: "must not be empty"}
	case len(req.Legs) == 0:
		return &ValidationError{Field: "legs", Reason: "at least one leg required"}
	case req.TotalLots <= 0:
		return &ValidationError{Field: "total_lots", Reason: "must be positive"}
	case req.MaxLotsPerOrder <= 0:
		return &ValidationError{Field: "max_lots_per_order", Reason: "must be positive"}
	case req.InterBatchDelay < 0:
		return &ValidationError{Field: "inter_batch_delay", Reason: "must not be negative"}
	}
	for i, l := range req.Legs {
		if l.TransactionType != model.TransactionBuy && l.TransactionType != model.TransactionSell {
			return &ValidationError{
				Field:  fmt.Sprintf("legs[%d].transaction_type", i),
				Reason: "must be BUY or SELL",
			}
		}
		if l.Spec.Underlying == "" || l.Spec.Exchange == "" {
			return &ValidationError{
				Field:  fmt.Sprintf("legs[%d].spec", i),
				Reason: "underlying and exchange required",
			}
		}
	}
	return nil
}

// resolveLegs resolves every leg spec against the broker and checks that
// all legs agree on lot size; mixed lot sizes would make a single
// totalLots plan meaningless.
func (e *Engine) resolveLegs(ctx context.Context, req Request, sess *model.Session) ([]model.Leg, int, error) {
	legs := make([]model.Leg, 0, len(req.Legs))
	lotSize := 0
	for _, ls := range req.Legs {
		inst := e.deps.Resolver.Resolve(ctx, ls.Spec, sess)
		if inst.Fallback && e.deps.Metrics != nil {
			e.deps.Metrics.InstrumentFallbacks.Inc()
		}
		if lotSize == 0 {
			lotSize = inst.LotSize
		} else if inst.LotSize != lotSize {
			return nil, 0, fmt.Errorf("lot size mismatch across legs: %s has %d, expected %d",
				inst.TradingSymbol, inst.LotSize, lotSize)
		}
		product := ls.ProductType
		if product == "" {
			product = model.ProductCarryForwd
		}
		legs = append(legs, model.Leg{
			Kind:            ls.Kind,
			Instrument:      inst,
			TransactionType: ls.TransactionType,
			ProductType:     product,
		})
	}
	if lotSize <= 0 {
		return nil, 0, fmt.Errorf("no usable lot size resolved for %s", req.Underlying)
	}
	return legs, lotSize, nil
}

func (e *Engine) countExecution(result string) {
	if e.deps.Metrics != nil {
		e.deps.Metrics.Executions.WithLabelValues(result).Inc()
	}
}

func (e *Engine) updateBreakerGauge(ctx context.Context) {
	if e.deps.Metrics == nil {
		return
	}
	st, err := e.deps.Gate.State(ctx)
	if err != nil {
		return
	}
	if st.CircuitBreakerActive {
		e.deps.Metrics.CircuitBreakerState.Set(1)
	} else {
		e.deps.Metrics.CircuitBreakerState.Set(0)
	}
}

func outcomeLabel(summary *model.ExecutionSummary) string {
	if summary.OverallSuccess {
		return "success"
	}
	for _, r := range summary.Results {
		if r.Success {
			return "partial"
		}
	}
	return "failed"
}

// progressSink bridges scheduler callbacks to the websocket hub and the
// metrics registry. Both legs of a batch run in parallel, so the elapsed
// time between start and finish approximates one broker round trip.
type progressSink struct {
	engine      *Engine
	executionID string
	batchStart  time.Time
}

func (p *progressSink) BatchStarted(index, total, lots int) {
	p.batchStart = time.Now()
	if p.engine.deps.Hub != nil {
		p.engine.deps.Hub.BatchStarted(p.executionID, index, total, lots)
	}
}

func (p *progressSink) BatchFinished(b model.OrderBatch) {
	m := p.engine.deps.Metrics
	if m != nil {
		m.BatchesTotal.Inc()
		if !p.batchStart.IsZero() {
			m.OrderDuration.Observe(time.Since(p.batchStart).Seconds())
		}
		for _, r := range b.Results {
			result := "failure"
			if r.Success {
				result = "success"
			}
			m.OrdersPlaced.WithLabelValues(string(r.Kind), result).Inc()
		}
	}
	if p.engine.deps.Hub != nil {
		p.engine.deps.Hub.BatchFinished(p.executionID, b)
	}
}
