// Package arrowexport serializes run artifacts — the equity curve and the
// trade log — to Arrow IPC streams for downstream analysis tools.
package arrowexport

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"go.uber.org/zap"

	"backtest-engine/services/engine"
)

var equitySchema = arrow.NewSchema([]arrow.Field{
	{Name: "timestamp_ms", Type: arrow.PrimitiveTypes.Int64},
	{Name: "holdings", Type: arrow.PrimitiveTypes.Float64},
	{Name: "cash", Type: arrow.PrimitiveTypes.Float64},
	{Name: "equity", Type: arrow.PrimitiveTypes.Float64},
}, nil)

var tradeSchema = arrow.NewSchema([]arrow.Field{
	{Name: "timestamp_ms", Type: arrow.PrimitiveTypes.Int64},
	{Name: "symbol", Type: arrow.BinaryTypes.String},
	{Name: "direction", Type: arrow.BinaryTypes.String},
	{Name: "quantity", Type: arrow.PrimitiveTypes.Int64},
	{Name: "price", Type: arrow.PrimitiveTypes.Float64},
	{Name: "commission", Type: arrow.PrimitiveTypes.Float64},
	{Name: "realized", Type: arrow.PrimitiveTypes.Float64},
}, nil)

// Exporter writes Arrow IPC streams from run results.
type Exporter struct {
	alloc  memory.Allocator
	logger *zap.Logger
}

func NewExporter(logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{alloc: memory.NewGoAllocator(), logger: logger}
}

// WriteEquityCurve streams the equity curve as a single record batch.
func (e *Exporter) WriteEquityCurve(w io.Writer, curve []engine.EquityPoint) error {
	if len(curve) == 0 {
		return fmt.Errorf("arrowexport: empty equity curve")
	}
	b := array.NewRecordBuilder(e.alloc, equitySchema)
	defer b.Release()

	for _, pt := range curve {
		b.Field(0).(*array.Int64Builder).Append(pt.Timestamp.UnixMilli())
		b.Field(1).(*array.Float64Builder).Append(pt.Holdings)
		b.Field(2).(*array.Float64Builder).Append(pt.Cash)
		b.Field(3).(*array.Float64Builder).Append(pt.Equity)
	}
	return e.writeRecord(w, equitySchema, b)
}

// WriteTrades streams the trade log as a single record batch.
func (e *Exporter) WriteTrades(w io.Writer, trades []engine.Trade) error {
	if len(trades) == 0 {
		return fmt.Errorf("arrowexport: empty trade log")
	}
	b := array.NewRecordBuilder(e.alloc, tradeSchema)
	defer b.Release()

	for _, t := range trades {
		b.Field(0).(*array.Int64Builder).Append(t.Fill.At.UnixMilli())
		b.Field(1).(*array.StringBuilder).Append(t.Fill.Sym)
		b.Field(2).(*array.StringBuilder).Append(t.Fill.Direction.String())
		b.Field(3).(*array.Int64Builder).Append(t.Fill.Quantity)
		b.Field(4).(*array.Float64Builder).Append(t.Fill.Price)
		b.Field(5).(*array.Float64Builder).Append(t.Fill.Commission)
		b.Field(6).(*array.Float64Builder).Append(t.Realized)
	}
	return e.writeRecord(w, tradeSchema, b)
}

func (e *Exporter) writeRecord(w io.Writer, schema *arrow.Schema, b *array.RecordBuilder) error {
	rec := b.NewRecord()
	defer rec.Release()

	writer := ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(e.alloc))
	if err := writer.Write(rec); err != nil {
		writer.Close()
		return fmt.Errorf("write arrow record: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close arrow writer: %w", err)
	}
	e.logger.Debug("arrow export written", zap.Int64("rows", rec.NumRows()))
	return nil
}
