package engine

import (
	"sort"
	"time"

	"go.uber.org/zap"
)

// CommissionModel prices the commission for a fill of qty shares (magnitude)
// at the given price. Commission always reduces cash.
type CommissionModel interface {
	Commission(qty int64, price float64) float64
}

// CommissionNone charges nothing.
type CommissionNone struct{}

func (CommissionNone) Commission(int64, float64) float64 { return 0 }

// CommissionFlat charges a fixed fee per fill.
type CommissionFlat struct {
	Fee float64
}

func (m CommissionFlat) Commission(int64, float64) float64 { return m.Fee }

// CommissionPercent charges a fraction of notional.
type CommissionPercent struct {
	Rate float64
}

func (m CommissionPercent) Commission(qty int64, price float64) float64 {
	return float64(abs64(qty)) * price * m.Rate
}

// SlippageModel adjusts the reference price against the trade direction.
type SlippageModel interface {
	Apply(buy bool, price float64) float64
}

// SlippageNone fills at the reference price.
type SlippageNone struct{}

func (SlippageNone) Apply(_ bool, price float64) float64 { return price }

// SlippageFixed moves the price a fixed amount against the trade.
type SlippageFixed struct {
	Offset float64
}

func (s SlippageFixed) Apply(buy bool, price float64) float64 {
	if buy {
		return price + s.Offset
	}
	return price - s.Offset
}

// simulatedExecution converts orders into fills. Under FillNextOpen an order
// waits for the symbol's next bar and fills at its open; under FillSameClose
// it fills immediately at the close of the bar that triggered it. Either way
// the fill price can never predate the triggering bar.
type simulatedExecution struct {
	policy     FillPolicy
	commission CommissionModel
	slippage   SlippageModel

	lastClose map[string]float64
	pending   map[string][]OrderEvent
	dropped   []DroppedOrder
	logger    *zap.Logger
}

func newSimulatedExecution(cfg *RunConfig, logger *zap.Logger) *simulatedExecution {
	return &simulatedExecution{
		policy:     cfg.Fill,
		commission: cfg.Commission,
		slippage:   cfg.Slippage,
		lastClose:  make(map[string]float64),
		pending:    make(map[string][]OrderEvent),
		logger:     logger,
	}
}

// OnMarket fills any orders parked for the symbol at this bar's open, then
// records the close for same-close fills. Pending fills keep their queued
// order (FIFO per symbol).
func (x *simulatedExecution) OnMarket(ev MarketEvent) []FillEvent {
	sym := ev.Bar.Symbol
	var fills []FillEvent
	if waiting := x.pending[sym]; len(waiting) > 0 {
		for _, ord := range waiting {
			fills = append(fills, x.fill(ord, ev.Bar.Open, ev.Bar.Timestamp))
		}
		delete(x.pending, sym)
	}
	x.lastClose[sym] = ev.Bar.Close
	return fills
}

// OnOrder executes or parks the order per the fill policy.
func (x *simulatedExecution) OnOrder(ord OrderEvent) []FillEvent {
	switch x.policy {
	case FillSameClose:
		price, ok := x.lastClose[ord.Sym]
		if !ok {
			x.drop(ord, "no price seen for symbol")
			return nil
		}
		return []FillEvent{x.fill(ord, price, ord.At)}
	default:
		x.pending[ord.Sym] = append(x.pending[ord.Sym], ord)
		return nil
	}
}

// Flush drops orders still waiting when the data runs out and returns the
// drop log. Called once at the end of a run.
func (x *simulatedExecution) Flush() []DroppedOrder {
	syms := make([]string, 0, len(x.pending))
	for sym := range x.pending {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	for _, sym := range syms {
		for _, ord := range x.pending[sym] {
			x.drop(ord, "no further bars to fill against")
		}
	}
	x.pending = make(map[string][]OrderEvent)
	return x.dropped
}

// closeOut fills an order at the symbol's last known close. Used only for
// configured end-of-run liquidation.
func (x *simulatedExecution) closeOut(ord OrderEvent) (FillEvent, bool) {
	price, ok := x.lastClose[ord.Sym]
	if !ok {
		x.drop(ord, "no price seen for symbol")
		return FillEvent{}, false
	}
	return x.fill(ord, price, ord.At), true
}

func (x *simulatedExecution) fill(ord OrderEvent, refPrice float64, at time.Time) FillEvent {
	price := x.slippage.Apply(ord.Quantity > 0, refPrice)
	return FillEvent{
		Sym:        ord.Sym,
		At:         at,
		Direction:  ord.Direction,
		Quantity:   ord.Quantity,
		Price:      price,
		Commission: x.commission.Commission(ord.Quantity, price),
	}
}

func (x *simulatedExecution) drop(ord OrderEvent, reason string) {
	x.dropped = append(x.dropped, DroppedOrder{Order: ord, Reason: reason})
	x.logger.Debug("order dropped",
		zap.String("symbol", ord.Sym),
		zap.Int64("quantity", ord.Quantity),
		zap.String("reason", reason),
	)
}
