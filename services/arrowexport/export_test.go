package arrowexport

import (
	"bytes"
	"testing"
	"time"

	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtest-engine/services/engine"
)

func TestWriteEquityCurveRoundTrip(t *testing.T) {
	base := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	curve := []engine.EquityPoint{
		{Timestamp: base, Holdings: 0, Cash: 100000, Equity: 100000},
		{Timestamp: base.AddDate(0, 0, 1), Holdings: 11000, Cash: 90000, Equity: 101000},
		{Timestamp: base.AddDate(0, 0, 2), Holdings: 10500, Cash: 90000, Equity: 100500},
	}

	var buf bytes.Buffer
	require.NoError(t, NewExporter(nil).WriteEquityCurve(&buf, curve))

	r, err := ipc.NewReader(&buf)
	require.NoError(t, err)
	defer r.Release()

	require.True(t, r.Next())
	rec := r.Record()
	require.EqualValues(t, 3, rec.NumRows())
	require.EqualValues(t, 4, rec.NumCols())

	ts := rec.Column(0).(*array.Int64)
	equity := rec.Column(3).(*array.Float64)
	assert.Equal(t, base.UnixMilli(), ts.Value(0))
	assert.Equal(t, 100000.0, equity.Value(0))
	assert.Equal(t, 100500.0, equity.Value(2))

	assert.False(t, r.Next(), "single record batch expected")
}

func TestWriteTradesRoundTrip(t *testing.T) {
	at := time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC)
	trades := []engine.Trade{
		{
			Fill: engine.FillEvent{
				Sym:        "AAPL",
				At:         at,
				Direction:  engine.DirectionLong,
				Quantity:   100,
				Price:      101.5,
				Commission: 1.25,
			},
		},
		{
			Fill: engine.FillEvent{
				Sym:       "AAPL",
				At:        at.AddDate(0, 0, 1),
				Direction: engine.DirectionExit,
				Quantity:  -100,
				Price:     105,
			},
			Realized: 350,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, NewExporter(nil).WriteTrades(&buf, trades))

	r, err := ipc.NewReader(&buf)
	require.NoError(t, err)
	defer r.Release()

	require.True(t, r.Next())
	rec := r.Record()
	require.EqualValues(t, 2, rec.NumRows())

	sym := rec.Column(1).(*array.String)
	dir := rec.Column(2).(*array.String)
	qty := rec.Column(3).(*array.Int64)
	realized := rec.Column(6).(*array.Float64)
	assert.Equal(t, "AAPL", sym.Value(0))
	assert.Equal(t, engine.DirectionLong.String(), dir.Value(0))
	assert.Equal(t, engine.DirectionExit.String(), dir.Value(1))
	assert.Equal(t, int64(-100), qty.Value(1))
	assert.Equal(t, 350.0, realized.Value(1))
}

func TestWriteRejectsEmptyInput(t *testing.T) {
	var buf bytes.Buffer
	ex := NewExporter(nil)
	assert.Error(t, ex.WriteEquityCurve(&buf, nil))
	assert.Error(t, ex.WriteTrades(&buf, nil))
	assert.Zero(t, buf.Len(), "nothing written on error")
}
