// Package scheduler implements the batch order scheduler: it splits a
// total lot count into broker-compliant batches, places the legs of each
// batch concurrently under one shared session, waits out the mandated
// cool-down between batches, and records every leg outcome.
//
// Batches run strictly sequentially in increasing index order; the two
// legs inside a batch are the only concurrency, forked and joined per
// batch. A leg failure never aborts its sibling or later batches, so
// partial fills remain reconcilable.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"execution-systemv1/internal/broker"
	"execution-systemv1/internal/model"
)

// Delayer is the injectable inter-batch cool-down. The real implementation
// sleeps on a timer; tests substitute a fake so batch timing is testable
// without waiting.
type Delayer interface {
	// Delay blocks for d or until ctx is cancelled, whichever is first.
	Delay(ctx context.Context, d time.Duration) error
}

// NewDelayer returns the wall-clock Delayer.
func NewDelayer() Delayer { return realDelayer{} }

type realDelayer struct{}

func (realDelayer) Delay(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Sink receives progress callbacks while an execution runs. Implementations
// must not block; they are called from the batch loop.
type Sink interface {
	BatchStarted(index, total, lots int)
	BatchFinished(b model.OrderBatch)
}

// Config holds the broker-imposed limits for one execution.
type Config struct {
	MaxLotsPerOrder int           // broker cap on lots per order, e.g. 20
	InterBatchDelay time.Duration // mandated cool-down between orders, e.g. 20s
	OrderTimeout    time.Duration // per-leg network timeout; 0 disables
}

// Scheduler executes multi-leg batch plans.
type Scheduler struct {
	placer  model.OrderPlacer
	delayer Delayer
	sink    Sink
	log     *slog.Logger
}

// New creates a scheduler. sink may be nil.
func New(placer model.OrderPlacer, delayer Delayer, sink Sink, log *slog.Logger) *Scheduler {
	return &Scheduler{placer: placer, delayer: delayer, sink: sink, log: log}
}

// NumBatches returns ceil(totalLots / maxPerOrder).
func NumBatches(totalLots, maxPerOrder int) int {
	return (totalLots + maxPerOrder - 1) / maxPerOrder
}

// SplitLots slices totalLots into per-batch lot counts: full batches of
// maxPerOrder and a final remainder batch when the division is uneven.
func SplitLots(totalLots, maxPerOrder int) []int {
	out := make([]int, 0, NumBatches(totalLots, maxPerOrder))
	for remaining := totalLots; remaining > 0; {
		lots := maxPerOrder
		if remaining < lots {
			lots = remaining
		}
		out = append(out, lots)
		remaining -= lots
	}
	return out
}

// Execute runs the full batch plan: every leg of every batch is placed
// exactly once, regardless of earlier per-leg failures. The returned
// batches are terminal and immutable. A non-nil error means the plan was
// invalid or the execution was cancelled between batches; batches placed
// before the cancellation are still returned.
func (s *Scheduler) Execute(ctx context.Context, cfg Config, legs []model.Leg, totalLots, lotSize int, sess *model.Session) ([]model.OrderBatch, error) {
	if totalLots <= 0 {
		return nil, fmt.Errorf("scheduler: totalLots must be positive, got %d", totalLots)
	}
	if cfg.MaxLotsPerOrder <= 0 {
		return nil, fmt.Errorf("scheduler: maxLotsPerOrder must be positive, got %d", cfg.MaxLotsPerOrder)
	}
	if lotSize <= 0 {
		return nil, fmt.Errorf("scheduler: lotSize must be positive, got %d", lotSize)
	}
	if len(legs) == 0 {
		return nil, fmt.Errorf("scheduler: no legs to place")
	}

	split := SplitLots(totalLots, cfg.MaxLotsPerOrder)
	batches := make([]model.OrderBatch, 0, len(split))

	s.log.Info("execution plan",
		slog.Int("total_lots", totalLots),
		slog.Int("lot_size", lotSize),
		slog.Int("batches", len(split)),
		slog.Int("max_lots_per_order", cfg.MaxLotsPerOrder))

	for i, lots := range split {
		// Cooperative cancellation point before each batch.
		if err := ctx.Err(); err != nil {
			return batches, err
		}

		b := model.OrderBatch{
			Index:    i + 1,
			Lots:     lots,
			Quantity: int64(lots) * int64(lotSize),
			Status:   model.BatchPending,
		}
		if s.sink != nil {
			s.sink.BatchStarted(b.Index, len(split), lots)
		}

		b.Status = model.BatchInFlight
		b.Finalize(s.placeBatch(ctx, cfg, legs, b.Index, b.Quantity, sess))
		batches = append(batches, b)

		s.log.Info("batch finished",
			slog.Int("batch", b.Index),
			slog.String("status", string(b.Status)))
		if s.sink != nil {
			s.sink.BatchFinished(b)
		}

		if i < len(split)-1 {
			if err := s.delayer.Delay(ctx, cfg.InterBatchDelay); err != nil {
				return batches, err
			}
		}
	}
	return batches, nil
}

// placeBatch forks one placement per leg, joins both, and returns results
// in leg order. Errors are normalized per leg only after both legs have
// completed, so no in-flight call is ever orphaned.
func (s *Scheduler) placeBatch(ctx context.Context, cfg Config, legs []model.Leg, batchIndex int, quantity int64, sess *model.Session) []model.LegResult {
	results := make([]model.LegResult, len(legs))

	var wg sync.WaitGroup
	for i, leg := range legs {
		wg.Add(1)
		go func(i int, leg model.Leg) {
			defer wg.Done()
			results[i] = s.placeLeg(ctx, cfg, leg, batchIndex, quantity, sess)
		}(i, leg)
	}
	wg.Wait()
	return results
}

func (s *Scheduler) placeLeg(ctx context.Context, cfg Config, leg model.Leg, batchIndex int, quantity int64, sess *model.Session) model.LegResult {
	res := model.LegResult{
		Kind:       leg.Kind,
		BatchIndex: batchIndex,
		Quantity:   quantity,
	}

	legCtx := ctx
	if cfg.OrderTimeout > 0 {
		var cancel context.CancelFunc
		legCtx, cancel = context.WithTimeout(ctx, cfg.OrderTimeout)
		defer cancel()
	}

	orderID, err := s.placer.PlaceOrder(legCtx, model.OrderRequest{
		TradingSymbol:   leg.Instrument.TradingSymbol,
		SymbolToken:     leg.Instrument.SymbolToken,
		Exchange:        leg.Instrument.Exchange,
		TransactionType: leg.TransactionType,
		OrderType:       model.OrderTypeMarket,
		ProductType:     leg.ProductType,
		Variety:         model.VarietyNormal,
		Duration:        model.DurationDay,
		Quantity:        quantity,
	}, sess)
	if err != nil {
		oe := broker.NormalizeOrderError(err)
		res.ErrorCode = oe.Code
		res.ErrorMessage = oe.Message
		res.Network = oe.Network
		s.log.Warn("leg placement failed",
			slog.Int("batch", batchIndex),
			slog.String("leg", string(leg.Kind)),
			slog.String("code", oe.Code),
			slog.Bool("network", oe.Network))
		return res
	}

	res.Success = true
	res.OrderID = orderID
	s.log.Info("leg placed",
		slog.Int("batch", batchIndex),
		slog.String("leg", string(leg.Kind)),
		slog.String("order_id", orderID),
		slog.Int64("quantity", quantity))
	return res
}
