package strategies

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtest-engine/services/data"
	"backtest-engine/services/engine"
)

func marketEvent(sym string, day int, close float64) engine.MarketEvent {
	return engine.MarketEvent{Bar: data.Bar{
		Symbol:    sym,
		Timestamp: time.Date(2020, 1, day, 0, 0, 0, 0, time.UTC),
		Open:      close,
		High:      close,
		Low:       close,
		Close:     close,
		AdjClose:  close,
	}}
}

func TestBuyAndHoldSignalsOncePerSymbol(t *testing.T) {
	s := NewBuyAndHold()

	sigs := s.OnMarket(marketEvent("AAPL", 2, 100), nil)
	require.Len(t, sigs, 1)
	assert.Equal(t, "AAPL", sigs[0].Sym)
	assert.Equal(t, engine.DirectionLong, sigs[0].Direction)

	assert.Empty(t, s.OnMarket(marketEvent("AAPL", 3, 101), nil))

	sigs = s.OnMarket(marketEvent("MSFT", 3, 200), nil)
	require.Len(t, sigs, 1)
	assert.Equal(t, "MSFT", sigs[0].Sym)
}

func TestMovingAverageCrossDefaults(t *testing.T) {
	s := NewMovingAverageCross(0, 0)
	assert.Equal(t, 9, s.Short)
	assert.Equal(t, 26, s.Long)

	s = NewMovingAverageCross(5, 5)
	assert.Equal(t, 5, s.Short)
	assert.Equal(t, 26, s.Long, "long window must exceed short")
}

func TestMovingAverageCrossRoundTrip(t *testing.T) {
	// 2/4 windows over a flat-rally-fade series. The short SMA crosses above
	// the long SMA on the first 12-close and back below on the first 8-close.
	closes := []float64{10, 10, 10, 10, 12, 12, 8, 8}
	bars := make([]data.Bar, len(closes))
	for i, c := range closes {
		bars[i] = data.Bar{
			Symbol:    "AAPL",
			Timestamp: time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			AdjClose:  c,
		}
	}
	src, err := data.NewMemorySource(map[string][]data.Bar{"AAPL": bars})
	require.NoError(t, err)

	cfg := &engine.RunConfig{
		Symbols:        []string{"AAPL"},
		InitialCapital: 100000,
		Sizer:          engine.SizerFixed{Qty: 100},
		Fill:           engine.FillSameClose,
	}
	eng, err := engine.New(cfg, src, NewMovingAverageCross(2, 4))
	require.NoError(t, err)

	result, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Signals, "one entry and one exit")
	require.Len(t, result.Trades, 2)

	entry, exit := result.Trades[0], result.Trades[1]
	assert.Equal(t, int64(100), entry.Fill.Quantity)
	assert.InDelta(t, 12, entry.Fill.Price, 1e-9)
	assert.Equal(t, int64(-100), exit.Fill.Quantity)
	assert.InDelta(t, 8, exit.Fill.Price, 1e-9)
	assert.InDelta(t, -400, exit.Realized, 1e-9)
}

func TestDonchianBreakoutRoundTrip(t *testing.T) {
	// 3-bar channel. The 12-close breaks the prior 10-high channel; the
	// 7-close breaks the prior 9-low channel.
	type ohlc struct{ o, h, l, c float64 }
	series := []ohlc{
		{10, 10, 9, 10},
		{10, 10, 9, 10},
		{10, 10, 9, 10},
		{10, 12, 10, 12},
		{12, 12, 11, 11},
		{11, 11, 7, 7},
	}
	bars := make([]data.Bar, len(series))
	for i, s := range series {
		bars[i] = data.Bar{
			Symbol:    "AAPL",
			Timestamp: time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Open:      s.o,
			High:      s.h,
			Low:       s.l,
			Close:     s.c,
			AdjClose:  s.c,
		}
	}
	src, err := data.NewMemorySource(map[string][]data.Bar{"AAPL": bars})
	require.NoError(t, err)

	cfg := &engine.RunConfig{
		Symbols:        []string{"AAPL"},
		InitialCapital: 100000,
		Sizer:          engine.SizerFixed{Qty: 100},
		Fill:           engine.FillSameClose,
	}
	eng, err := engine.New(cfg, src, NewDonchianBreakout(3))
	require.NoError(t, err)

	result, err := eng.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Trades, 2)
	assert.InDelta(t, 12, result.Trades[0].Fill.Price, 1e-9, "entry on the upper-channel break")
	assert.InDelta(t, 7, result.Trades[1].Fill.Price, 1e-9, "exit on the lower-channel break")
}

func TestDonchianBreakoutDefaultWindow(t *testing.T) {
	assert.Equal(t, 20, NewDonchianBreakout(0).Window)
}

func TestMovingAverageCrossSilentBeforeWarmup(t *testing.T) {
	closes := []float64{10, 11, 12}
	bars := make([]data.Bar, len(closes))
	for i, c := range closes {
		bars[i] = data.Bar{
			Symbol:    "AAPL",
			Timestamp: time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Close:     c,
			AdjClose:  c,
		}
	}
	src, err := data.NewMemorySource(map[string][]data.Bar{"AAPL": bars})
	require.NoError(t, err)

	cfg := &engine.RunConfig{Symbols: []string{"AAPL"}, InitialCapital: 100000}
	eng, err := engine.New(cfg, src, NewMovingAverageCross(2, 4))
	require.NoError(t, err)

	result, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Signals, "fewer bars than the long window")
}
