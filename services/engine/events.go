package engine

import (
	"time"

	"backtest-engine/services/data"
)

// Direction is the intent carried by signals, orders and fills.
type Direction int

const (
	DirectionLong Direction = iota
	DirectionShort
	DirectionExit
)

func (d Direction) String() string {
	switch d {
	case DirectionLong:
		return "LONG"
	case DirectionShort:
		return "SHORT"
	case DirectionExit:
		return "EXIT"
	}
	return "UNKNOWN"
}

// OrderType enumerates supported order kinds. Only market orders exist in the
// base simulator.
type OrderType int

const (
	OrderMarket OrderType = iota
)

// Event is the closed union dispatched by the engine loop. The concrete kinds
// are MarketEvent, SignalEvent, OrderEvent and FillEvent; within a timestamp
// they are processed in emission order.
type Event interface {
	Timestamp() time.Time
	Symbol() string
}

// MarketEvent announces a new bar for one symbol.
type MarketEvent struct {
	Bar data.Bar
}

func (e MarketEvent) Timestamp() time.Time { return e.Bar.Timestamp }
func (e MarketEvent) Symbol() string       { return e.Bar.Symbol }

// SignalEvent is a strategy's directional opinion; strength is
// strategy-defined and unitless.
type SignalEvent struct {
	Sym       string
	At        time.Time
	Direction Direction
	Strength  float64
}

func (e SignalEvent) Timestamp() time.Time { return e.At }
func (e SignalEvent) Symbol() string       { return e.Sym }

// OrderEvent is a sized request for execution. Quantity is signed, positive
// means buy.
type OrderEvent struct {
	Sym       string
	At        time.Time
	Direction Direction
	Quantity  int64
	Type      OrderType
}

func (e OrderEvent) Timestamp() time.Time { return e.At }
func (e OrderEvent) Symbol() string       { return e.Sym }

// FillEvent records an executed order. Quantity keeps the order's sign and
// commission always reduces cash.
type FillEvent struct {
	Sym        string
	At         time.Time
	Direction  Direction
	Quantity   int64
	Price      float64
	Commission float64
}

func (e FillEvent) Timestamp() time.Time { return e.At }
func (e FillEvent) Symbol() string       { return e.Sym }
