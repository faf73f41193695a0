package engine

import (
	"backtest-engine/services/performance"
)

// Trade is one executed fill annotated with the PnL it realized, if any.
type Trade struct {
	Fill     FillEvent `json:"fill"`
	Realized float64   `json:"realized"`
}

// RunResult is everything a completed run hands back: the finalized equity
// curve, the trade log, the recoverable-error logs and the computed metrics.
// Rendering and persistence are left to the caller.
type RunResult struct {
	RunID          string              `json:"run_id"`
	EquityCurve    []EquityPoint       `json:"equity_curve"`
	Trades         []Trade             `json:"trades"`
	RejectedOrders []RejectedOrder     `json:"rejected_orders"`
	DroppedOrders  []DroppedOrder      `json:"dropped_orders"`
	Signals        int                 `json:"signals"`
	Orders         int                 `json:"orders"`
	Fills          int                 `json:"fills"`
	FinalCash      float64             `json:"final_cash"`
	FinalEquity    float64             `json:"final_equity"`
	Metrics        performance.Metrics `json:"metrics"`
}
