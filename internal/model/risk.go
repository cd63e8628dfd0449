package model

import "time"

// RiskState is the account-level loss picture the risk gate evaluates.
// Once CircuitBreakerActive is set it stays set until an explicit external
// reset; improved P&L alone never clears it.
type RiskState struct {
	DailyPnL             float64   `json:"daily_pnl"`
	WeeklyPnL            float64   `json:"weekly_pnl"`
	DailyLossLimit       float64   `json:"daily_loss_limit"`
	WeeklyLossLimit      float64   `json:"weekly_loss_limit"`
	CircuitBreakerActive bool      `json:"circuit_breaker_active"`
	LastBreachReason     string    `json:"last_breach_reason,omitempty"`
	LastBreachAt         time.Time `json:"last_breach_at,omitempty"`
}
