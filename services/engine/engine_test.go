package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtest-engine/services/data"
)

// buyAndHold buys once per symbol on the first bar. Kept local so the engine
// tests do not depend on the strategies package.
type buyAndHold struct {
	bought map[string]bool
}

func (s *buyAndHold) OnMarket(ev MarketEvent, _ *History) []SignalEvent {
	if s.bought == nil {
		s.bought = make(map[string]bool)
	}
	if s.bought[ev.Bar.Symbol] {
		return nil
	}
	s.bought[ev.Bar.Symbol] = true
	return []SignalEvent{{
		Sym:       ev.Bar.Symbol,
		At:        ev.Bar.Timestamp,
		Direction: DirectionLong,
		Strength:  1,
	}}
}

func closesSource(t *testing.T, sym string, closes []float64) *data.MemorySource {
	t.Helper()
	base := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]data.Bar, len(closes))
	for i, c := range closes {
		bars[i] = data.Bar{
			Symbol:    sym,
			Timestamp: base.AddDate(0, 0, i),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			AdjClose:  c,
			Volume:    1000,
		}
	}
	src, err := data.NewMemorySource(map[string][]data.Bar{sym: bars})
	require.NoError(t, err)
	return src
}

func TestRunBuyAndHoldScenario(t *testing.T) {
	// 100000 initial, closes [100, 110, 105], 100 shares bought at the first
	// close, zero commission: final equity 100000 + 100*(105-100) = 100500.
	cfg := &RunConfig{
		Symbols:        []string{"AAPL"},
		InitialCapital: 100000,
		Sizer:          SizerFixed{Qty: 100},
		Fill:           FillSameClose,
	}
	eng, err := New(cfg, closesSource(t, "AAPL", []float64{100, 110, 105}), &buyAndHold{})
	require.NoError(t, err)

	result, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 100500, result.FinalEquity, 1e-9)
	assert.InDelta(t, 90000, result.FinalCash, 1e-9)
	require.Len(t, result.EquityCurve, 3)
	assert.InDelta(t, 100000, result.EquityCurve[0].Equity, 1e-9)
	assert.InDelta(t, 101000, result.EquityCurve[1].Equity, 1e-9)
	assert.InDelta(t, 100500, result.EquityCurve[2].Equity, 1e-9)

	assert.Equal(t, 1, result.Signals)
	assert.Equal(t, 1, result.Orders)
	assert.Equal(t, 1, result.Fills)
	assert.Empty(t, result.RejectedOrders)
	assert.Empty(t, result.DroppedOrders)
}

func TestRunNextOpenFillsAtFollowingBar(t *testing.T) {
	cfg := &RunConfig{
		Symbols:        []string{"AAPL"},
		InitialCapital: 100000,
		Sizer:          SizerFixed{Qty: 100},
		Fill:           FillNextOpen,
	}
	src := closesSource(t, "AAPL", []float64{100, 110, 105})
	eng, err := New(cfg, src, &buyAndHold{})
	require.NoError(t, err)

	result, err := eng.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	fill := result.Trades[0].Fill
	// The bar series uses close as the next open, so the fill is at 110 on
	// day two, strictly after the signal bar.
	assert.InDelta(t, 110, fill.Price, 1e-9)
	assert.Equal(t, result.EquityCurve[1].Timestamp, fill.At)
}

func TestRunNoLookAhead(t *testing.T) {
	cfg := &RunConfig{
		Symbols:        []string{"AAPL"},
		InitialCapital: 100000,
		Sizer:          SizerFixed{Qty: 10},
		Fill:           FillNextOpen,
	}
	eng, err := New(cfg, closesSource(t, "AAPL", []float64{100, 101, 102, 103}), &buyAndHold{})
	require.NoError(t, err)

	result, err := eng.Run(context.Background())
	require.NoError(t, err)

	firstBar := result.EquityCurve[0].Timestamp
	for _, trade := range result.Trades {
		assert.False(t, trade.Fill.At.Before(firstBar), "fill predates causal market event")
	}
	for _, rej := range result.RejectedOrders {
		assert.False(t, rej.At.Before(firstBar))
	}
}

func TestRunEquityCurveMonotonicTimestamps(t *testing.T) {
	cfg := &RunConfig{
		Symbols:        []string{"AAPL"},
		InitialCapital: 100000,
	}
	eng, err := New(cfg, closesSource(t, "AAPL", []float64{100, 101, 99, 102, 98}), &buyAndHold{})
	require.NoError(t, err)

	result, err := eng.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.EquityCurve, 5, "one snapshot per unique timestamp")
	for i := 1; i < len(result.EquityCurve); i++ {
		assert.True(t, result.EquityCurve[i].Timestamp.After(result.EquityCurve[i-1].Timestamp))
	}
}

func TestRunMultiSymbolLexicographicOrder(t *testing.T) {
	base := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	mkBars := func(sym string, closes ...float64) []data.Bar {
		bars := make([]data.Bar, len(closes))
		for i, c := range closes {
			bars[i] = data.Bar{
				Symbol: sym, Timestamp: base.AddDate(0, 0, i),
				Open: c, High: c, Low: c, Close: c, AdjClose: c,
			}
		}
		return bars
	}
	src, err := data.NewMemorySource(map[string][]data.Bar{
		"MSFT": mkBars("MSFT", 200, 210),
		"AAPL": mkBars("AAPL", 100, 105),
	})
	require.NoError(t, err)

	cfg := &RunConfig{
		Symbols:        []string{"AAPL", "MSFT"},
		InitialCapital: 100000,
		Sizer:          SizerFixed{Qty: 10},
		Fill:           FillSameClose,
	}
	eng, err := New(cfg, src, &buyAndHold{})
	require.NoError(t, err)

	result, err := eng.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Trades, 2)
	assert.Equal(t, "AAPL", result.Trades[0].Fill.Sym)
	assert.Equal(t, "MSFT", result.Trades[1].Fill.Sym)
	// One snapshot per unique timestamp even with two symbols trading.
	require.Len(t, result.EquityCurve, 2)
	// 10 AAPL gaining 5 plus 10 MSFT gaining 10.
	assert.InDelta(t, 100000+10*5+10*10, result.FinalEquity, 1e-9)
}

func TestRunCashConservationProperty(t *testing.T) {
	cfg := &RunConfig{
		Symbols:        []string{"AAPL"},
		InitialCapital: 100000,
		Sizer:          SizerFixedFraction{Fraction: 0.25},
		Commission:     CommissionPercent{Rate: 0.001},
		Fill:           FillNextOpen,
	}
	eng, err := New(cfg, closesSource(t, "AAPL", []float64{100, 104, 98, 103, 99, 107}), &buyAndHold{})
	require.NoError(t, err)

	result, err := eng.Run(context.Background())
	require.NoError(t, err)

	cash := 100000.0
	for _, trade := range result.Trades {
		cash -= float64(trade.Fill.Quantity) * trade.Fill.Price
		cash -= trade.Fill.Commission
	}
	assert.InDelta(t, cash, result.FinalCash, 1e-9, "final cash drifted from fill deltas")
}

func TestRunCloseOnFinishLiquidates(t *testing.T) {
	cfg := &RunConfig{
		Symbols:        []string{"AAPL"},
		InitialCapital: 100000,
		Sizer:          SizerFixed{Qty: 100},
		Fill:           FillSameClose,
		CloseOnFinish:  true,
	}
	eng, err := New(cfg, closesSource(t, "AAPL", []float64{100, 110, 105}), &buyAndHold{})
	require.NoError(t, err)

	result, err := eng.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Trades, 2)
	exit := result.Trades[1]
	assert.Equal(t, int64(-100), exit.Fill.Quantity)
	assert.InDelta(t, 105, exit.Fill.Price, 1e-9)
	assert.InDelta(t, 500, exit.Realized, 1e-9)
	assert.InDelta(t, 100500, result.FinalCash, 1e-9, "everything back in cash")
	assert.InDelta(t, result.FinalCash, result.FinalEquity, 1e-9)
}

func TestRunConfigValidation(t *testing.T) {
	src := closesSource(t, "AAPL", []float64{100})

	_, err := New(&RunConfig{Symbols: nil, InitialCapital: 1000}, src, &buyAndHold{})
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "Symbols", cfgErr.Field)

	_, err = New(&RunConfig{Symbols: []string{"AAPL"}, InitialCapital: 0}, src, &buyAndHold{})
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "InitialCapital", cfgErr.Field)

	_, err = New(&RunConfig{Symbols: []string{"AAPL"}, InitialCapital: 1000}, nil, &buyAndHold{})
	require.Error(t, err)

	_, err = New(&RunConfig{Symbols: []string{"AAPL"}, InitialCapital: 1000}, src, nil)
	require.Error(t, err)
}

func TestRunAbortsOnDataError(t *testing.T) {
	// A source whose timestamps do not advance is a fatal data error.
	base := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	src := &stuckSource{ts: base}
	cfg := &RunConfig{Symbols: []string{"AAPL"}, InitialCapital: 1000}
	eng, err := New(cfg, src, &buyAndHold{})
	require.NoError(t, err)

	_, err = eng.Run(context.Background())
	var dataErr *data.Error
	require.ErrorAs(t, err, &dataErr)
	assert.Equal(t, "timestamp not advancing", dataErr.Reason)
}

// stuckSource yields the same timestamp forever, violating the contract.
type stuckSource struct {
	ts    time.Time
	calls int
}

func (s *stuckSource) Symbols() []string { return []string{"AAPL"} }

func (s *stuckSource) Next() ([]data.Bar, error) {
	s.calls++
	if s.calls > 2 {
		return nil, data.ErrExhausted
	}
	return []data.Bar{{Symbol: "AAPL", Timestamp: s.ts, Close: 100}}, nil
}

func (s *stuckSource) Reset() error {
	s.calls = 0
	return nil
}
