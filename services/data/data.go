// Package data defines the bar feed contract consumed by the backtest engine.
package data

import (
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned by a BarSource once every bar has been served.
var ErrExhausted = errors.New("data: source exhausted")

// Bar is one OHLCV observation for a symbol at a given timestamp.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	AdjClose  float64
	Volume    float64
}

// Error reports a malformed bar series. It is fatal for the run that
// observes it.
type Error struct {
	Symbol    string
	Timestamp time.Time
	Reason    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("data error: %s at %s: %s", e.Symbol, e.Timestamp.UTC().Format(time.RFC3339), e.Reason)
}

// BarSource yields time-ordered bars for a fixed symbol set, one unique
// timestamp per call. Implementations validate per-symbol monotonicity and
// surface duplicates or out-of-order bars as *Error rather than dropping them.
type BarSource interface {
	// Symbols returns the symbol list in lexicographic order.
	Symbols() []string
	// Next returns every bar sharing the next unique timestamp, ordered by
	// symbol. It returns ErrExhausted once no bars remain.
	Next() ([]Bar, error)
	// Reset rewinds the source so another run can consume it from the start.
	Reset() error
}
