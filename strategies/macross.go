package strategies

import (
	"backtest-engine/services/data"
	"backtest-engine/services/engine"
)

// MovingAverageCross goes LONG when the short SMA of adjusted closes crosses
// above the long SMA and exits when it crosses back below. Defaults to the
// classic 9/26 windows.
type MovingAverageCross struct {
	Short int
	Long  int

	inMarket map[string]bool
}

func NewMovingAverageCross(short, long int) *MovingAverageCross {
	if short <= 0 {
		short = 9
	}
	if long <= short {
		long = 26
	}
	return &MovingAverageCross{
		Short:    short,
		Long:     long,
		inMarket: make(map[string]bool),
	}
}

func (s *MovingAverageCross) OnMarket(ev engine.MarketEvent, hist *engine.History) []engine.SignalEvent {
	sym := ev.Bar.Symbol
	bars := hist.Latest(sym, s.Long)
	if len(bars) < s.Long {
		return nil
	}

	shortSMA := sma(bars[len(bars)-s.Short:])
	longSMA := sma(bars)

	switch {
	case shortSMA > longSMA && !s.inMarket[sym]:
		s.inMarket[sym] = true
		return []engine.SignalEvent{{
			Sym:       sym,
			At:        ev.Bar.Timestamp,
			Direction: engine.DirectionLong,
			Strength:  1.0,
		}}
	case shortSMA < longSMA && s.inMarket[sym]:
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

func sma(bars []data.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	var sum float64
	for _, b := range bars {
		sum += b.AdjClose
	}
	return sum / float64(len(bars))
}
