package engine

// Position is a signed holding in one symbol. Quantity changes only through
// applyFill; a reduction realizes PnL against the volume-weighted average
// entry price, and a fill crossing through zero re-opens the remainder at the
// fill price.
type Position struct {
	Symbol      string
	Quantity    int64
	AvgPrice    float64
	RealizedPnL float64
}

// applyFill sums the signed fill quantity into the position and returns the
// PnL realized by this fill (zero when the fill only adds exposure).
func (p *Position) applyFill(qty int64, price float64) float64 {
	if qty == 0 {
		return 0
	}
	// Same direction or opening from flat: extend at the weighted average.
	if p.Quantity == 0 || sameSign(p.Quantity, qty) {
		p.AvgPrice = weightedAvg(p.AvgPrice, p.Quantity, price, qty)
		p.Quantity += qty
		return 0
	}

	closing := qty
	if abs64(qty) > abs64(p.Quantity) {
		closing = -p.Quantity
	}
	// A long reduced by a sell realizes (price - avg) per share; the short
	// case mirrors it via the sign of the closed quantity.
	realized := (price - p.AvgPrice) * float64(-closing)
	p.RealizedPnL += realized

	p.Quantity += qty
	if p.Quantity == 0 {
		p.AvgPrice = 0
	} else if qty != closing {
		// Crossed through zero: the leftover is a fresh position at the
		// fill price.
		p.AvgPrice = price
	}
	return realized
}

func sameSign(a, b int64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func weightedAvg(p1 float64, q1 int64, p2 float64, q2 int64) float64 {
	a, b := float64(abs64(q1)), float64(abs64(q2))
	if a+b == 0 {
		return 0
	}
	return (p1*a + p2*b) / (a + b)
}
