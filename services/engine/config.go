package engine

import (
	"time"
)

// FillPolicy selects which bar prices market orders.
type FillPolicy int

const (
	// FillNextOpen fills at the open of the symbol's next bar. This is the
	// default: an order triggered by bar T can never trade at a price known
	// before T+1.
	FillNextOpen FillPolicy = iota
	// FillSameClose fills immediately at the close of the bar that produced
	// the triggering signal. Slightly optimistic, kept as an explicit opt-in
	// for parity with close-based research.
	FillSameClose
)

func (p FillPolicy) String() string {
	switch p {
	case FillNextOpen:
		return "NEXT_OPEN"
	case FillSameClose:
		return "SAME_CLOSE"
	}
	return "UNKNOWN"
}

// RunConfig holds everything a single backtest run needs. All options are
// enumerated values, not free-form code.
type RunConfig struct {
	Symbols        []string
	InitialCapital float64
	Start          time.Time
	Sizer          Sizer
	Commission     CommissionModel
	Slippage       SlippageModel
	Fill           FillPolicy
	// AllowShort permits sells beyond the held quantity. Off by default:
	// oversells are clipped and recorded.
	AllowShort bool
	// CloseOnFinish liquidates open positions at the last known close when
	// the data runs out. Off by default; closing is a policy, not automatic.
	CloseOnFinish bool
	// PeriodsPerYear scales volatility, Sharpe and CAGR. Zero means 252
	// (daily bars).
	PeriodsPerYear float64
	// RiskFreeRate is the annual risk-free rate used for Sharpe/Sortino.
	RiskFreeRate float64
}

// Validate applies defaults and rejects configurations that cannot run.
func (c *RunConfig) Validate() error {
	if len(c.Symbols) == 0 {
		return &ConfigError{Field: "Symbols", Reason: "empty symbol list"}
	}
	if c.InitialCapital <= 0 {
		return &ConfigError{Field: "InitialCapital", Reason: "must be positive"}
	}
	if c.Fill != FillNextOpen && c.Fill != FillSameClose {
		return &ConfigError{Field: "Fill", Reason: "unknown fill policy"}
	}
	if c.PeriodsPerYear < 0 {
		return &ConfigError{Field: "PeriodsPerYear", Reason: "must not be negative"}
	}
	if c.Sizer == nil {
		c.Sizer = SizerFixed{Qty: 100}
	}
	if err := c.Sizer.Validate(); err != nil {
		return err
	}
	if c.Commission == nil {
		c.Commission = CommissionNone{}
	}
	if c.Slippage == nil {
		c.Slippage = SlippageNone{}
	}
	if c.PeriodsPerYear == 0 {
		c.PeriodsPerYear = 252
	}
	return nil
}
