package strategies

import (
	"backtest-engine/services/data"
	"backtest-engine/services/engine"
)

// DonchianBreakout goes LONG when the close breaks above the highest high of
// the previous Window bars and exits when the close breaks below the lowest
// low of the previous Window bars. The breakout bar itself is excluded from
// the channel.
type DonchianBreakout struct {
	Window int

	inMarket map[string]bool
}

func NewDonchianBreakout(window int) *DonchianBreakout {
	if window <= 0 {
		window = 20
	}
	return &DonchianBreakout{
		Window:   window,
		inMarket: make(map[string]bool),
	}
}

func (s *DonchianBreakout) OnMarket(ev engine.MarketEvent, hist *engine.History) []engine.SignalEvent {
	sym := ev.Bar.Symbol
	bars := hist.Latest(sym, s.Window+1)
	if len(bars) < s.Window+1 {
		return nil
	}
	upper, lower := channel(bars[:len(bars)-1])

	switch {
	case ev.Bar.Close > upper && !s.inMarket[sym]:
		s.inMarket[sym] = true
		return []engine.SignalEvent{{
			Sym:       sym,
			At:        ev.Bar.Timestamp,
			Direction: engine.DirectionLong,
			Strength:  1.0,
		}}
	case ev.Bar.Close < lower && s.inMarket[sym]:
		s.inMarket[sym] = false
		return []engine.SignalEvent{{
			Sym:       sym,
			At:        ev.Bar.Timestamp,
			Direction: engine.DirectionExit,
			Strength:  1.0,
		}}
	}
	return nil
}

func channel(bars []data.Bar) (upper, lower float64) {
	upper, lower = bars[0].High, bars[0].Low
	for _, b := range bars[1:] {
		if b.High > upper {
			upper = b.High
		}
		if b.Low < lower {
			lower = b.Low
		}
	}
	return upper, lower
}
