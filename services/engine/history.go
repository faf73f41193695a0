package engine

import (
	"backtest-engine/services/data"
)

// History gives strategies read-only access to bars up to and including the
// current event. The engine appends bars before routing the market event, so
// a strategy can never observe a future bar.
type History struct {
	bars map[string][]data.Bar
}

func newHistory(symbols []string) *History {
	return &History{bars: make(map[string][]data.Bar, len(symbols))}
}

func (h *History) append(b data.Bar) {
	h.bars[b.Symbol] = append(h.bars[b.Symbol], b)
}

// Latest returns the last n bars for the symbol, oldest first, or fewer if
// less history exists.
func (h *History) Latest(symbol string, n int) []data.Bar {
	bars := h.bars[symbol]
	if n <= 0 || n > len(bars) {
		n = len(bars)
	}
	return bars[len(bars)-n:]
}

// Len reports how many bars have been seen for the symbol.
func (h *History) Len(symbol string) int { return len(h.bars[symbol]) }
