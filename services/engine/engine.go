// Package engine implements the event-driven backtest core: a single FIFO
// queue dispatched one event at a time, advancing simulated time bar by bar
// with no look-ahead.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"backtest-engine/services/data"
	"backtest-engine/services/performance"
)

// Strategy maps market events to zero or more signals. Implementations must
// be deterministic given identical history and must not mutate engine state;
// all effects flow through the returned signals.
type Strategy interface {
	OnMarket(ev MarketEvent, hist *History) []SignalEvent
}

// Engine owns one backtest run: the queue, the portfolio, the execution
// simulator and the bar history. Engines are single-use and single-threaded;
// run parameter sweeps by constructing one engine per run.
type Engine struct {
	cfg       *RunConfig
	source    data.BarSource
	strategy  Strategy
	portfolio *Portfolio
	execution *simulatedExecution
	history   *History
	queue     eventQueue
	logger    *zap.Logger

	trades  []Trade
	signals int
	orders  int
	fills   int
}

// Option customizes an engine.
type Option func(*Engine)

// WithLogger replaces the default no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New validates the configuration and assembles a run. Configuration
// problems fail here, before any bar is consumed.
func New(cfg *RunConfig, source data.BarSource, strategy Strategy, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, &ConfigError{Field: "source", Reason: "bar source is required"}
	}
	if strategy == nil {
		return nil, &ConfigError{Field: "strategy", Reason: "strategy is required"}
	}

	e := &Engine{
		cfg:      cfg,
		source:   source,
		strategy: strategy,
		history:  newHistory(cfg.Symbols),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.portfolio = newPortfolio(cfg, e.logger)
	e.execution = newSimulatedExecution(cfg, e.logger)
	return e, nil
}

// Run drains the bar source to exhaustion. Each unique timestamp's market
// events enter the queue in the source's symbol order and every induced
// signal, order and fill is resolved before the next timestamp begins. Data
// errors abort the run wholesale; rejected and unfillable orders are recorded
// and the run continues.
func (e *Engine) Run(ctx context.Context) (*RunResult, error) {
	started := time.Now()
	var lastTS time.Time

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bars, err := e.source.Next()
		if errors.Is(err, data.ErrExhausted) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bar source: %w", err)
		}
		if len(bars) == 0 {
			continue
		}

		ts := bars[0].Timestamp
		if !lastTS.IsZero() && !ts.After(lastTS) {
			return nil, &data.Error{Symbol: bars[0].Symbol, Timestamp: ts, Reason: "timestamp not advancing"}
		}
		lastTS = ts

		for _, b := range bars {
			e.history.append(b)
			e.queue.Push(MarketEvent{Bar: b})
		}
		for {
			ev, ok := e.queue.Pop()
			if !ok {
				break
			}
			e.dispatch(ev)
		}
		e.portfolio.Snapshot(ts)
	}

	e.finalize(lastTS)

	result := e.buildResult()
	e.logger.Info("backtest complete",
		zap.String("run_id", result.RunID),
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("bars", len(result.EquityCurve)),
		zap.Int("signals", result.Signals),
		zap.Int("orders", result.Orders),
		zap.Int("fills", result.Fills),
		zap.Float64("final_equity", result.FinalEquity),
	)
	return result, nil
}

// dispatch routes one event to its single consumer. Market events hit the
// execution simulator first so parked orders fill at this bar's open before
// the strategy sees the bar.
func (e *Engine) dispatch(ev Event) {
	switch ev := ev.(type) {
	case MarketEvent:
		for _, fill := range e.execution.OnMarket(ev) {
			e.queue.Push(fill)
		}
		for _, sig := range e.strategy.OnMarket(ev, e.history) {
			e.queue.Push(sig)
		}
		e.portfolio.OnMarket(ev)
	case SignalEvent:
		e.signals++
		if ord := e.portfolio.OnSignal(ev); ord != nil {
			e.queue.Push(*ord)
		}
	case OrderEvent:
		e.orders++
		for _, fill := range e.execution.OnOrder(ev) {
			e.queue.Push(fill)
		}
	case FillEvent:
		e.fills++
		realized := e.portfolio.OnFill(ev)
		e.trades = append(e.trades, Trade{Fill: ev, Realized: realized})
	}
}

// finalize optionally liquidates open positions at the last known close and
// re-marks the final equity point, then flushes unfillable orders.
func (e *Engine) finalize(lastTS time.Time) {
	if e.cfg.CloseOnFinish && !lastTS.IsZero() {
		for _, sym := range e.source.Symbols() {
			pos := e.portfolio.PositionFor(sym)
			if pos.Quantity == 0 {
				continue
			}
			ord := OrderEvent{
				Sym:       sym,
				At:        lastTS,
				Direction: DirectionExit,
				Quantity:  -pos.Quantity,
				Type:      OrderMarket,
			}
			e.orders++
			fill, ok := e.execution.closeOut(ord)
			if !ok {
				continue
			}
			e.fills++
			realized := e.portfolio.OnFill(fill)
			e.trades = append(e.trades, Trade{Fill: fill, Realized: realized})
		}
		// Replace the last snapshot so the curve reflects the liquidation.
		if n := len(e.portfolio.curve); n > 0 {
			e.portfolio.curve = e.portfolio.curve[:n-1]
			e.portfolio.Snapshot(lastTS)
		}
	}
	e.execution.Flush()
}

func (e *Engine) buildResult() *RunResult {
	curve := e.portfolio.Curve()
	points := make([]performance.Point, len(curve))
	for i, pt := range curve {
		points[i] = performance.Point{Timestamp: pt.Timestamp, Equity: pt.Equity}
	}
	pnls := make([]float64, 0, len(e.trades))
	for _, t := range e.trades {
		if t.Realized != 0 {
			pnls = append(pnls, t.Realized)
		}
	}

	return &RunResult{
		RunID:          uuid.New().String(),
		EquityCurve:    curve,
		Trades:         e.trades,
		RejectedOrders: e.portfolio.Rejected(),
		DroppedOrders:  e.execution.dropped,
		Signals:        e.signals,
		Orders:         e.orders,
		Fills:          e.fills,
		FinalCash:      e.portfolio.Cash(),
		FinalEquity:    e.portfolio.Equity(),
		Metrics:        performance.Summarize(points, pnls, e.cfg.PeriodsPerYear, e.cfg.RiskFreeRate),
	}
}
