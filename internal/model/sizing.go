package model

// AveragingLevel is one rung of the averaging ladder: at TriggerPrice the
// plan adds LotsToAdd lots. A level with LotsToAdd == 0 means margin was
// exhausted before it; the level is still present so consumers always see
// a fixed-shape ladder.
type AveragingLevel struct {
	TriggerPrice     float64 `json:"trigger_price"`
	LotsToAdd        int     `json:"lots_to_add"`
	CumulativeLots   int     `json:"cumulative_lots"`
	CumulativeMargin float64 `json:"cumulative_margin"`
}

// SizingPlan is the position sizing engine's output: how many lots to open
// initially and the averaging ladder behind it. All money values in rupees.
// Invariant: CumulativeMargin at every level ≤ AvailableMargin.
type SizingPlan struct {
	RecommendedLots int              `json:"recommended_lots"`
	MarginPerLot    float64          `json:"margin_per_lot"`
	AvailableMargin float64          `json:"available_margin"`
	PremiumPerLot   float64          `json:"premium_per_lot"`
	Levels          []AveragingLevel `json:"levels"` // always exactly 3
}

// PnLScenario is one row of a what-if table for a given percentage move.
type PnLScenario struct {
	MovePct   float64 `json:"move_pct"`
	ExitPrice float64 `json:"exit_price"`
	PnL       float64 `json:"pnl"`
}
