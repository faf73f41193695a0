package engine

import (
	"math"
)

// PortfolioView is the read-only snapshot sizers decide from.
type PortfolioView struct {
	Cash      float64
	Equity    float64
	Quantity  int64
	LastPrice float64
}

// Sizer turns a signal into an unsigned share count. The portfolio applies
// direction and risk clipping afterwards.
type Sizer interface {
	Size(sig SignalEvent, view PortfolioView) int64
	Validate() error
}

// SizerFixed orders a constant quantity regardless of equity.
type SizerFixed struct {
	Qty int64
}

func (s SizerFixed) Size(SignalEvent, PortfolioView) int64 { return s.Qty }

func (s SizerFixed) Validate() error {
	if s.Qty <= 0 {
		return &ConfigError{Field: "Sizer", Reason: "fixed quantity must be positive"}
	}
	return nil
}

// SizerFixedFraction commits a fixed fraction of current equity per signal,
// floored to whole shares at the last known price.
type SizerFixedFraction struct {
	Fraction float64
}

func (s SizerFixedFraction) Size(_ SignalEvent, view PortfolioView) int64 {
	if view.LastPrice <= 0 {
		return 0
	}
	return int64(math.Floor(view.Equity * s.Fraction / view.LastPrice))
}

func (s SizerFixedFraction) Validate() error {
	if s.Fraction <= 0 || s.Fraction > 1 {
		return &ConfigError{Field: "Sizer", Reason: "fraction must be in (0, 1]"}
	}
	return nil
}

// SizerTargetPercent orders whatever delta moves the position toward a target
// percent-of-equity exposure.
type SizerTargetPercent struct {
	Percent float64
}

func (s SizerTargetPercent) Size(sig SignalEvent, view PortfolioView) int64 {
	if view.LastPrice <= 0 {
		return 0
	}
	target := int64(math.Floor(view.Equity * s.Percent / view.LastPrice))
	switch sig.Direction {
	case DirectionLong:
		if delta := target - view.Quantity; delta > 0 {
			return delta
		}
	case DirectionShort:
		if delta := view.Quantity + target; delta > 0 {
			return delta
		}
	}
	return 0
}

func (s SizerTargetPercent) Validate() error {
	if s.Percent <= 0 || s.Percent > 1 {
		return &ConfigError{Field: "Sizer", Reason: "target percent must be in (0, 1]"}
	}
	return nil
}
