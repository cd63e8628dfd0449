package sizing

import (
	"math"
	"testing"
)

func TestInitialLots_DocumentedExample(t *testing.T) {
	// floor(72,402,621 × 0.5 / 216,400) = 167
	lots := InitialLots(72_402_621, 216_400, 0.5)
	if lots != 167 {
		t.Errorf("expected 167 lots, got %d", lots)
	}
}

func TestInitialLots_ClampedToMinimumOne(t *testing.T) {
	// Tiny risk fraction still recommends one lot as long as margin allows it.
	lots := InitialLots(1_000_000, 216_400, 0.0001)
	if lots != 1 {
		t.Errorf("expected clamp to 1 lot, got %d", lots)
	}
}

func TestInitialLots_HardCeiling(t *testing.T) {
	// riskFraction > 1 can never exceed what the full margin carries.
	lots := InitialLots(1_000_000, 216_400, 2.0)
	if lots != 4 {
		t.Errorf("expected hard max 4 lots, got %d", lots)
	}
}

func TestInitialLots_CannotAffordOneLot(t *testing.T) {
	if lots := InitialLots(100_000, 216_400, 0.5); lots != 0 {
		t.Errorf("expected 0 lots when margin < margin per lot, got %d", lots)
	}
	if lots := InitialLots(1_000_000, 0, 0.5); lots != 0 {
		t.Errorf("expected 0 lots for non-positive margin per lot, got %d", lots)
	}
}

func TestLadder_MarginNeverExceeded(t *testing.T) {
	const (
		availableMargin = 10_000_000.0
		marginPerLot    = 216_400.0
	)
	initial := InitialLots(availableMargin, marginPerLot, 0.5)
	levels := Ladder(initial, marginPerLot, 150.0, availableMargin, [3]float64{0.25, 0.50, 1.00})

	if len(levels) != 3 {
		t.Fatalf("expected 3 levels, got %d", len(levels))
	}
	for i, lv := range levels {
		if lv.LotsToAdd < 0 {
			t.Errorf("level %d: negative lotsToAdd %d", i+1, lv.LotsToAdd)
		}
		if lv.CumulativeMargin > availableMargin {
			t.Errorf("level %d: cumulative margin %.2f exceeds available %.2f",
				i+1, lv.CumulativeMargin, availableMargin)
		}
	}
}

func TestLadder_ExhaustedLevelIsExplicitZero(t *testing.T) {
	// Initial lots consume half the margin; level 1 doubles, levels 2 and 3
	// must still appear with zero lots added.
	levels := Ladder(10, 100_000, 150.0, 2_000_000, [3]float64{0.25, 0.50, 1.00})

	if len(levels) != 3 {
		t.Fatalf("expected 3 levels, got %d", len(levels))
	}
	if levels[0].LotsToAdd != 10 {
		t.Errorf("level 1: expected 10 lots, got %d", levels[0].LotsToAdd)
	}
	if levels[1].LotsToAdd != 0 || levels[2].LotsToAdd != 0 {
		t.Errorf("exhausted levels must report 0 lots, got %d and %d",
			levels[1].LotsToAdd, levels[2].LotsToAdd)
	}
	if levels[2].CumulativeLots != 20 {
		t.Errorf("cumulative lots should stay at 20, got %d", levels[2].CumulativeLots)
	}
}

func TestLadder_TriggerPricesIncrease(t *testing.T) {
	levels := Ladder(5, 216_400, 200.0, 10_000_000, [3]float64{0.25, 0.50, 1.00})
	for i := 1; i < len(levels); i++ {
		if levels[i].TriggerPrice <= levels[i-1].TriggerPrice {
			t.Errorf("trigger prices must be strictly increasing: level %d %.2f <= level %d %.2f",
				i+1, levels[i].TriggerPrice, i, levels[i-1].TriggerPrice)
		}
	}
	if got := levels[0].TriggerPrice; math.Abs(got-250.0) > 1e-9 {
		t.Errorf("level 1 trigger: expected 250, got %.4f", got)
	}
}

func TestPnLScenarios_ShortDirection(t *testing.T) {
	rows := PnLScenarios(100.0, 75, 10, -1, []float64{-0.10, 0, 0.10})
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	// -10% move on a short: profit of 10 × 75 × 10 = 7500
	if math.Abs(rows[0].PnL-7500) > 1e-9 {
		t.Errorf("expected +7500 on -10%% move, got %.2f", rows[0].PnL)
	}
	if rows[1].PnL != 0 {
		t.Errorf("expected 0 on flat move, got %.2f", rows[1].PnL)
	}
	if math.Abs(rows[2].PnL+7500) > 1e-9 {
		t.Errorf("expected -7500 on +10%% move, got %.2f", rows[2].PnL)
	}
	if math.Abs(rows[2].ExitPrice-110) > 1e-9 {
		t.Errorf("expected exit 110, got %.2f", rows[2].ExitPrice)
	}
}

func TestBuildPlan_Shape(t *testing.T) {
	plan := BuildPlan(72_402_621, 216_400, 150.0, 0.5, [3]float64{0.25, 0.50, 1.00})
	if plan.RecommendedLots != 167 {
		t.Errorf("expected 167 recommended lots, got %d", plan.RecommendedLots)
	}
	if len(plan.Levels) != 3 {
		t.Errorf("expected 3 ladder levels, got %d", len(plan.Levels))
	}
	for i, lv := range plan.Levels {
		if lv.CumulativeMargin > plan.AvailableMargin {
			t.Errorf("level %d breaches available margin", i+1)
		}
	}
}
