package engine

import (
	"time"

	"go.uber.org/zap"
)

// EquityPoint is one mark-to-market snapshot. The curve holds exactly one
// point per unique timestamp, appended after the dispatch queue drains for
// that timestamp, and is never mutated retroactively.
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Holdings  float64   `json:"holdings"`
	Cash      float64   `json:"cash"`
	Equity    float64   `json:"equity"`
}

// Portfolio is the only component that mutates positions, cash and the equity
// curve. Everything else talks to it through events.
type Portfolio struct {
	initial    float64
	cash       float64
	commission float64

	positions map[string]*Position
	lastPrice map[string]float64

	curve    []EquityPoint
	rejected []RejectedOrder

	sizer      Sizer
	feeModel   CommissionModel
	allowShort bool
	logger     *zap.Logger
}

func newPortfolio(cfg *RunConfig, logger *zap.Logger) *Portfolio {
	return &Portfolio{
		initial:    cfg.InitialCapital,
		cash:       cfg.InitialCapital,
		positions:  make(map[string]*Position, len(cfg.Symbols)),
		lastPrice:  make(map[string]float64, len(cfg.Symbols)),
		sizer:      cfg.Sizer,
		feeModel:   cfg.Commission,
		allowShort: cfg.AllowShort,
		logger:     logger,
	}
}

// OnMarket records the symbol's latest close for mark-to-market valuation.
func (p *Portfolio) OnMarket(ev MarketEvent) {
	p.lastPrice[ev.Bar.Symbol] = ev.Bar.Close
}

// Snapshot appends the equity point for ts: cash plus every position valued
// at its last known price, whether or not the symbol traded.
func (p *Portfolio) Snapshot(ts time.Time) {
	holdings := 0.0
	for sym, pos := range p.positions {
		holdings += float64(pos.Quantity) * p.lastPrice[sym]
	}
	p.curve = append(p.curve, EquityPoint{
		Timestamp: ts,
		Holdings:  holdings,
		Cash:      p.cash,
		Equity:    p.cash + holdings,
	})
}

// OnSignal sizes the signal into an order and applies the risk controls:
// buys are clipped so projected cost cannot take cash below zero, sells are
// clipped to the held quantity unless shorting is allowed. A clip never
// raises; it is recorded and the (possibly zero) order proceeds.
func (p *Portfolio) OnSignal(sig SignalEvent) *OrderEvent {
	price := p.lastPrice[sig.Sym]
	if price <= 0 {
		p.reject(sig, 0, 0, "no market price")
		return nil
	}
	pos := p.position(sig.Sym)
	view := PortfolioView{
		Cash:      p.cash,
		Equity:    p.Equity(),
		Quantity:  pos.Quantity,
		LastPrice: price,
	}

	var qty int64
	switch sig.Direction {
	case DirectionLong:
		qty = p.sizer.Size(sig, view)
	case DirectionShort:
		qty = -p.sizer.Size(sig, view)
	case DirectionExit:
		qty = -pos.Quantity
	}
	if qty == 0 {
		return nil
	}

	granted := p.clip(sig.Sym, qty, price, pos.Quantity)
	if granted != qty {
		reason := "insufficient cash"
		if qty < 0 {
			reason = "insufficient position"
		}
		p.reject(sig, qty, granted, reason)
	}
	if granted == 0 {
		return nil
	}

	return &OrderEvent{
		Sym:       sig.Sym,
		At:        sig.At,
		Direction: sig.Direction,
		Quantity:  granted,
		Type:      OrderMarket,
	}
}

// clip enforces the cash floor on buys and the no-naked-short rule on sells.
func (p *Portfolio) clip(sym string, qty int64, price float64, held int64) int64 {
	if qty > 0 {
		afford := qty
		if byPrice := int64(p.cash / price); byPrice < afford {
			afford = byPrice
		}
		for afford > 0 && float64(afford)*price+p.feeModel.Commission(afford, price) > p.cash {
			afford--
		}
		return afford
	}
	if p.allowShort {
		return qty
	}
	// Selling: cannot go below flat.
	if held <= 0 {
		return 0
	}
	if -qty > held {
		return -held
	}
	return qty
}

// OnFill sums the signed quantity into the position and moves cash by the
// signed notional plus commission. Returns the PnL realized by the fill.
func (p *Portfolio) OnFill(fill FillEvent) float64 {
	pos := p.position(fill.Sym)
	realized := pos.applyFill(fill.Quantity, fill.Price)

	p.cash -= float64(fill.Quantity) * fill.Price
	p.cash -= fill.Commission
	p.commission += fill.Commission

	if p.cash < 0 {
		p.logger.Warn("cash below zero after fill",
			zap.String("symbol", fill.Sym),
			zap.Int64("quantity", fill.Quantity),
			zap.Float64("cash", p.cash),
		)
	}
	return realized
}

func (p *Portfolio) position(sym string) *Position {
	pos, ok := p.positions[sym]
	if !ok {
		pos = &Position{Symbol: sym}
		p.positions[sym] = pos
	}
	return pos
}

func (p *Portfolio) reject(sig SignalEvent, requested, granted int64, reason string) {
	p.rejected = append(p.rejected, RejectedOrder{
		At:        sig.At,
		Symbol:    sig.Sym,
		Direction: sig.Direction,
		Requested: requested,
		Granted:   granted,
		Reason:    reason,
	})
	p.logger.Debug("order clipped",
		zap.String("symbol", sig.Sym),
		zap.Int64("requested", requested),
		zap.Int64("granted", granted),
		zap.String("reason", reason),
	)
}

// Equity is cash plus all positions marked at their last known prices.
func (p *Portfolio) Equity() float64 {
	eq := p.cash
	for sym, pos := range p.positions {
		eq += float64(pos.Quantity) * p.lastPrice[sym]
	}
	return eq
}

func (p *Portfolio) Cash() float64 { return p.cash }

// PositionFor returns a copy of the symbol's position state.
func (p *Portfolio) PositionFor(sym string) Position {
	if pos, ok := p.positions[sym]; ok {
		return *pos
	}
	return Position{Symbol: sym}
}

func (p *Portfolio) Curve() []EquityPoint       { return p.curve }
func (p *Portfolio) Rejected() []RejectedOrder  { return p.rejected }
func (p *Portfolio) TotalCommission() float64   { return p.commission }
func (p *Portfolio) LastPrice(sym string) float64 { return p.lastPrice[sym] }
