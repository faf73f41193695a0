// Package strategies provides reference trading policies for the engine.
// A strategy only maps market events to signals; sizing and risk belong to
// the portfolio.
package strategies

import (
	"backtest-engine/services/engine"
)

// BuyAndHold emits a single LONG signal per symbol on its first bar and then
// stays silent.
type BuyAndHold struct {
	bought map[string]bool
}

func NewBuyAndHold() *BuyAndHold {
	return &BuyAndHold{bought: make(map[string]bool)}
}

func (s *BuyAndHold) OnMarket(ev engine.MarketEvent, _ *engine.History) []engine.SignalEvent {
	sym := ev.Bar.Symbol
	if s.bought[sym] {
		return nil
	}
	s.bought[sym] = true
	return []engine.SignalEvent{{
		Sym:       sym,
		At:        ev.Bar.Timestamp,
		Direction: engine.DirectionLong,
		Strength:  1.0,
	}}
}
