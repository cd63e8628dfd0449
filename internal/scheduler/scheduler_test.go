package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"execution-systemv1/internal/model"
	"execution-systemv1/pkg/smartconnect"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeDelayer records requested delays without sleeping.
type fakeDelayer struct {
	mu     sync.Mutex
	delays []time.Duration
	cancel context.CancelFunc // if set, cancels the execution mid-delay
}

func (f *fakeDelayer) Delay(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	f.delays = append(f.delays, d)
	f.mu.Unlock()
	if f.cancel != nil {
		f.cancel()
		return ctx.Err()
	}
	return nil
}

func (f *fakeDelayer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.delays)
}

// fakePlacer returns canned outcomes keyed by leg kind and call number.
type fakePlacer struct {
	mu    sync.Mutex
	calls []model.OrderRequest
	// failOn maps "SYMBOL:callIndex" (1-based per symbol) to an error.
	failOn map[string]error
	seen   map[string]int
}

func newFakePlacer() *fakePlacer {
	return &fakePlacer{failOn: map[string]error{}, seen: map[string]int{}}
}

func (f *fakePlacer) PlaceOrder(ctx context.Context, req model.OrderRequest, s *model.Session) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	f.seen[req.TradingSymbol]++
	key := req.TradingSymbol + ":" + itoa(f.seen[req.TradingSymbol])
	if err, ok := f.failOn[key]; ok {
		return "", err
	}
	return "OID-" + itoa(len(f.calls)), nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var b [8]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	return string(b[i:])
}

func strangleLegs() []model.Leg {
	return []model.Leg{
		{
			Kind:            model.LegCall,
			Instrument:      model.Instrument{TradingSymbol: "NIFTY28AUG2524000CE", SymbolToken: "43125", Exchange: "NFO", LotSize: 75},
			TransactionType: model.TransactionSell,
			ProductType:     model.ProductCarryForwd,
		},
		{
			Kind:            model.LegPut,
			Instrument:      model.Instrument{TradingSymbol: "NIFTY28AUG2523500PE", SymbolToken: "43126", Exchange: "NFO", LotSize: 75},
			TransactionType: model.TransactionSell,
			ProductType:     model.ProductCarryForwd,
		},
	}
}

func TestSplitLots_Properties(t *testing.T) {
	cases := []struct {
		total, max int
		want       []int
	}{
		{167, 20, []int{20, 20, 20, 20, 20, 20, 20, 20, 7}},
		{20, 20, []int{20}},
		{40, 20, []int{20, 20}},
		{1, 20, []int{1}},
	}
	for _, tc := range cases {
		got := SplitLots(tc.total, tc.max)
		if len(got) != NumBatches(tc.total, tc.max) {
			t.Errorf("SplitLots(%d,%d): %d batches, NumBatches says %d",
				tc.total, tc.max, len(got), NumBatches(tc.total, tc.max))
		}
		sum := 0
		for _, n := range got {
			sum += n
		}
		if sum != tc.total {
			t.Errorf("SplitLots(%d,%d): batches sum to %d", tc.total, tc.max, sum)
		}
		if len(got) != len(tc.want) {
			t.Errorf("SplitLots(%d,%d) = %v, want %v", tc.total, tc.max, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("SplitLots(%d,%d) = %v, want %v", tc.total, tc.max, got, tc.want)
				break
			}
		}
	}
}

func TestExecute_BatchAndDelayCounts(t *testing.T) {
	placer := newFakePlacer()
	delayer := &fakeDelayer{}
	s := New(placer, delayer, nil, testLogger())

	cfg := Config{MaxLotsPerOrder: 20, InterBatchDelay: 20 * time.Second}
	batches, err := s.Execute(context.Background(), cfg, strangleLegs(), 167, 75, &model.Session{AccessToken: "jwt"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(batches) != 9 {
		t.Errorf("expected 9 batches, got %d", len(batches))
	}
	if delayer.count() != 8 {
		t.Errorf("expected 8 inter-batch delays, got %d", delayer.count())
	}
	if got := batches[8].Quantity; got != 7*75 {
		t.Errorf("last batch quantity: expected %d, got %d", 7*75, got)
	}
	// Two legs per batch, every batch attempted.
	if len(placer.calls) != 18 {
		t.Errorf("expected 18 placements, got %d", len(placer.calls))
	}
	for i, b := range batches {
		if b.Index != i+1 {
			t.Errorf("batch order violated: index %d at position %d", b.Index, i)
		}
		if b.Status != model.BatchComplete {
			t.Errorf("batch %d: expected COMPLETE, got %s", b.Index, b.Status)
		}
	}
}

func TestExecute_SingleBatchNoDelay(t *testing.T) {
	placer := newFakePlacer()
	delayer := &fakeDelayer{}
	s := New(placer, delayer, nil, testLogger())

	cfg := Config{MaxLotsPerOrder: 20, InterBatchDelay: 20 * time.Second}
	batches, err := s.Execute(context.Background(), cfg, strangleLegs(), 20, 75, &model.Session{AccessToken: "jwt"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(batches) != 1 {
		t.Errorf("expected 1 batch, got %d", len(batches))
	}
	if delayer.count() != 0 {
		t.Errorf("expected no delays, got %d", delayer.count())
	}
}

func TestExecute_TwoBatchesOneDelay(t *testing.T) {
	placer := newFakePlacer()
	delayer := &fakeDelayer{}
	s := New(placer, delayer, nil, testLogger())

	cfg := Config{MaxLotsPerOrder: 20, InterBatchDelay: 20 * time.Second}
	batches, err := s.Execute(context.Background(), cfg, strangleLegs(), 40, 75, &model.Session{AccessToken: "jwt"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(batches) != 2 || delayer.count() != 1 {
		t.Errorf("expected 2 batches and 1 delay, got %d and %d", len(batches), delayer.count())
	}
}

func TestExecute_PartialLegFailureDoesNotAbort(t *testing.T) {
	placer := newFakePlacer()
	// PUT leg fails only on its second placement (batch 2 of 3).
	placer.failOn["NIFTY28AUG2523500PE:2"] = &smartconnect.APIError{Code: "AB1004", Message: "insufficient margin"}
	delayer := &fakeDelayer{}
	s := New(placer, delayer, nil, testLogger())

	cfg := Config{MaxLotsPerOrder: 20, InterBatchDelay: 20 * time.Second}
	batches, err := s.Execute(context.Background(), cfg, strangleLegs(), 60, 75, &model.Session{AccessToken: "jwt"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(batches) != 3 {
		t.Fatalf("batch 3 must still run after a batch 2 leg failure; got %d batches", len(batches))
	}

	counts := map[model.LegKind]map[bool]int{
		model.LegCall: {}, model.LegPut: {},
	}
	for _, b := range batches {
		for _, r := range b.Results {
			counts[r.Kind][r.Success]++
		}
	}
	if counts[model.LegCall][true] != 3 || counts[model.LegCall][false] != 0 {
		t.Errorf("call counts: %v", counts[model.LegCall])
	}
	if counts[model.LegPut][true] != 2 || counts[model.LegPut][false] != 1 {
		t.Errorf("put counts: %v", counts[model.LegPut])
	}

	if batches[1].Status != model.BatchPartial {
		t.Errorf("batch 2: expected PARTIAL, got %s", batches[1].Status)
	}
	if batches[0].Status != model.BatchComplete || batches[2].Status != model.BatchComplete {
		t.Errorf("batches 1 and 3 should be COMPLETE: %s, %s", batches[0].Status, batches[2].Status)
	}

	// The recorded failure carries the normalized broker code.
	var failed *model.LegResult
	for i := range batches[1].Results {
		if !batches[1].Results[i].Success {
			failed = &batches[1].Results[i]
		}
	}
	if failed == nil || failed.ErrorCode != "AB1004" {
		t.Errorf("expected recorded AB1004 failure, got %+v", failed)
	}
}

func TestExecute_AllLegsFailStillRunsToCompletion(t *testing.T) {
	placer := newFakePlacer()
	for i := 1; i <= 2; i++ {
		placer.failOn["NIFTY28AUG2524000CE:"+itoa(i)] = &smartconnect.APIError{Code: "AB1013", Message: "market closed"}
		placer.failOn["NIFTY28AUG2523500PE:"+itoa(i)] = &smartconnect.APIError{Code: "AB1013", Message: "market closed"}
	}
	s := New(placer, &fakeDelayer{}, nil, testLogger())

	cfg := Config{MaxLotsPerOrder: 20, InterBatchDelay: time.Second}
	batches, err := s.Execute(context.Background(), cfg, strangleLegs(), 40, 75, &model.Session{AccessToken: "jwt"})
	if err != nil {
		t.Fatalf("execute should not error on total order failure: %v", err)
	}
	for _, b := range batches {
		if b.Status != model.BatchFailed {
			t.Errorf("batch %d: expected FAILED, got %s", b.Index, b.Status)
		}
	}
}

func TestExecute_LegsRunConcurrently(t *testing.T) {
	// Each leg placement blocks until its sibling has also started; the
	// test only completes if the scheduler forks both legs per batch.
	placer := &rendezvousPlacer{gate: make(chan struct{})}
	s := New(placer, &fakeDelayer{}, nil, testLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		cfg := Config{MaxLotsPerOrder: 20, InterBatchDelay: time.Second}
		if _, err := s.Execute(context.Background(), cfg, strangleLegs(), 20, 75, &model.Session{AccessToken: "jwt"}); err != nil {
			t.Errorf("execute: %v", err)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("legs were not placed concurrently: rendezvous never met")
	}
}

type rendezvousPlacer struct {
	gate chan struct{} // unbuffered: a send pairs with the sibling's receive
}

func (p *rendezvousPlacer) PlaceOrder(ctx context.Context, req model.OrderRequest, s *model.Session) (string, error) {
	select {
	case p.gate <- struct{}{}:
	case <-p.gate:
	case <-time.After(3 * time.Second):
		return "", context.DeadlineExceeded
	}
	return "OID", nil
}

func TestExecute_CancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	placer := newFakePlacer()
	delayer := &fakeDelayer{cancel: cancel}
	s := New(placer, delayer, nil, testLogger())

	cfg := Config{MaxLotsPerOrder: 20, InterBatchDelay: 20 * time.Second}
	batches, err := s.Execute(ctx, cfg, strangleLegs(), 60, 75, &model.Session{AccessToken: "jwt"})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if len(batches) != 1 {
		t.Errorf("expected only the first batch before cancellation, got %d", len(batches))
	}
}

func TestExecute_InvalidInputs(t *testing.T) {
	s := New(newFakePlacer(), &fakeDelayer{}, nil, testLogger())
	cfg := Config{MaxLotsPerOrder: 20, InterBatchDelay: time.Second}
	sess := &model.Session{AccessToken: "jwt"}

	if _, err := s.Execute(context.Background(), cfg, strangleLegs(), 0, 75, sess); err == nil {
		t.Error("expected error for zero lots")
	}
	if _, err := s.Execute(context.Background(), Config{InterBatchDelay: time.Second}, strangleLegs(), 10, 75, sess); err == nil {
		t.Error("expected error for zero maxLotsPerOrder")
	}
	if _, err := s.Execute(context.Background(), cfg, nil, 10, 75, sess); err == nil {
		t.Error("expected error for empty legs")
	}
	if _, err := s.Execute(context.Background(), cfg, strangleLegs(), 10, 0, sess); err == nil {
		t.Error("expected error for zero lot size")
	}
}
