// Package sizing computes initial position size, the averaging ladder, and
// P&L scenario tables from account margin. Pure computation, no I/O; every
// function is deterministic in its arguments.
package sizing

import (
	"math"

	"execution-systemv1/internal/model"
)

// LadderLevels is the fixed shape of the averaging ladder. Downstream
// consumers rely on all three levels being present even when margin runs
// out before the last one.
const LadderLevels = 3

// DefaultOffsets are the adverse premium moves, as fractions of the entry
// premium, at which the three averaging levels trigger.
var DefaultOffsets = [LadderLevels]float64{0.25, 0.50, 1.00}

// InitialLots returns floor(availableMargin × riskFraction / marginPerLot),
// clamped to at least 1 and to the hard ceiling of what the full margin can
// carry. Returns 0 only when the account cannot carry a single lot.
func InitialLots(availableMargin, marginPerLot, riskFraction float64) int {
	if marginPerLot <= 0 || availableMargin <= 0 {
		return 0
	}
	hardMax := int(math.Floor(availableMargin / marginPerLot))
	lots := int(math.Floor(availableMargin * riskFraction / marginPerLot))
	if lots < 1 {
		lots = 1
	}
	if lots > hardMax {
		lots = hardMax
	}
	return lots
}

// Ladder builds the three-level averaging ladder. Each level triggers at
// premiumPerUnit scaled by its adverse offset and adds up to initialLots
// more lots, reduced so cumulative margin never exceeds availableMargin.
// A level past the margin ceiling contributes zero lots but is still
// emitted, keeping the ladder a fixed shape.
func Ladder(initialLots int, marginPerLot, premiumPerUnit, availableMargin float64, offsets [LadderLevels]float64) []model.AveragingLevel {
	levels := make([]model.AveragingLevel, 0, LadderLevels)

	cumLots := initialLots
	cumMargin := float64(initialLots) * marginPerLot

	for _, off := range offsets {
		add := initialLots
		if marginPerLot > 0 {
			headroom := int(math.Floor((availableMargin - cumMargin) / marginPerLot))
			if headroom < add {
				add = headroom
			}
		}
		if add < 0 {
			add = 0
		}
		cumLots += add
		cumMargin += float64(add) * marginPerLot

		levels = append(levels, model.AveragingLevel{
			TriggerPrice:     premiumPerUnit * (1 + off),
			LotsToAdd:        add,
			CumulativeLots:   cumLots,
			CumulativeMargin: cumMargin,
		})
	}
	return levels
}

// PnLScenarios tabulates P&L for each percentage move. directionSign is +1
// for long exposure and -1 for short (premium sellers profit when the
// price falls).
func PnLScenarios(entryPrice float64, lotSize, lots int, directionSign int, moves []float64) []model.PnLScenario {
	out := make([]model.PnLScenario, 0, len(moves))
	for _, move := range moves {
		exit := entryPrice * (1 + move)
		pnl := (exit - entryPrice) * float64(lotSize) * float64(lots) * float64(directionSign)
		out = append(out, model.PnLScenario{MovePct: move, ExitPrice: exit, PnL: pnl})
	}
	return out
}

// BuildPlan assembles a full sizing plan: recommended lots plus the ladder.
func BuildPlan(availableMargin, marginPerLot, premiumPerUnit, riskFraction float64, offsets [LadderLevels]float64) *model.SizingPlan {
	lots := InitialLots(availableMargin, marginPerLot, riskFraction)
	return &model.SizingPlan{
		RecommendedLots: lots,
		MarginPerLot:    marginPerLot,
		AvailableMargin: availableMargin,
		PremiumPerLot:   premiumPerUnit,
		Levels:          Ladder(lots, marginPerLot, premiumPerUnit, availableMargin, offsets),
	}
}
