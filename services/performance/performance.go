// Package performance computes risk/return metrics from a finalized equity
// curve. Everything here is a pure function of its inputs.
package performance

import (
	"math"
	"time"

	"github.com/montanaflynn/stats"
)

// Point is one (timestamp, equity) observation. The curve is assumed to hold
// exactly one point per compounding period.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
}

// Metrics is the computed summary for one run. Ratios whose denominator is
// zero (flat curve, no losing trades) are reported as zero rather than NaN.
type Metrics struct {
	TotalReturn      float64 `json:"total_return"`
	CAGR             float64 `json:"cagr"`
	AnnualVolatility float64 `json:"annual_volatility"`
	Sharpe           float64 `json:"sharpe"`
	Sortino          float64 `json:"sortino"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	Calmar           float64 `json:"calmar"`
	WinRatio         float64 `json:"win_ratio"`
	ProfitFactor     float64 `json:"profit_factor"`
	Expectancy       float64 `json:"expectancy"`
	Periods          int     `json:"periods"`
}

// Returns computes the periodic return series equity_t/equity_{t-1} - 1.
func Returns(points []Point) []float64 {
	if len(points) < 2 {
		return nil
	}
	rets := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		prev := points[i-1].Equity
		if prev == 0 {
			rets = append(rets, 0)
			continue
		}
		rets = append(rets, points[i].Equity/prev-1)
	}
	return rets
}

// TotalReturn is equity_final/equity_initial - 1.
func TotalReturn(points []Point) float64 {
	if len(points) == 0 || points[0].Equity == 0 {
		return 0
	}
	return points[len(points)-1].Equity/points[0].Equity - 1
}

// MaxDrawdown is the largest peak-to-trough decline as a fraction of the
// running peak; always in [0, 1] for non-negative equity.
func MaxDrawdown(points []Point) float64 {
	peak, maxDD := math.Inf(-1), 0.0
	for _, pt := range points {
		if pt.Equity > peak {
			peak = pt.Equity
		}
		if peak > 0 {
			if dd := (peak - pt.Equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// Sharpe is the annualized excess-return ratio. A zero-variance return
// series yields zero, not NaN.
func Sharpe(rets []float64, riskFreeRate, periodsPerYear float64) float64 {
	if len(rets) == 0 || periodsPerYear <= 0 {
		return 0
	}
	rf := riskFreeRate / periodsPerYear
	excess := make([]float64, len(rets))
	for i, r := range rets {
		excess[i] = r - rf
	}
	mean, err := stats.Mean(excess)
	if err != nil {
		return 0
	}
	sd, err := stats.StandardDeviationSample(excess)
	if err != nil || sd == 0 {
		return 0
	}
	return mean / sd * math.Sqrt(periodsPerYear)
}

// Sortino penalizes only downside volatility. Zero when no negative excess
// returns exist.
func Sortino(rets []float64, riskFreeRate, periodsPerYear float64) float64 {
	if len(rets) == 0 || periodsPerYear <= 0 {
		return 0
	}
	rf := riskFreeRate / periodsPerYear
	var downside []float64
	var sum float64
	for _, r := range rets {
		ex := r - rf
		sum += ex
		if ex < 0 {
			downside = append(downside, ex)
		}
	}
	if len(downside) == 0 {
		return 0
	}
	dd, err := stats.StandardDeviationSample(downside)
	if err != nil || dd == 0 {
		return 0
	}
	mean := sum / float64(len(rets))
	return mean / dd * math.Sqrt(periodsPerYear)
}

// CAGR compounds the total growth over periodsPerYear/periods.
func CAGR(points []Point, periodsPerYear float64) float64 {
	if len(points) < 2 || points[0].Equity <= 0 {
		return 0
	}
	growth := points[len(points)-1].Equity / points[0].Equity
	if growth <= 0 {
		return -1
	}
	periods := float64(len(points) - 1)
	return math.Pow(growth, periodsPerYear/periods) - 1
}

// AnnualVolatility is the sample standard deviation of periodic returns
// scaled by the square root of periodsPerYear.
func AnnualVolatility(rets []float64, periodsPerYear float64) float64 {
	if len(rets) < 2 {
		return 0
	}
	sd, err := stats.StandardDeviationSample(rets)
	if err != nil {
		return 0
	}
	return sd * math.Sqrt(periodsPerYear)
}

// Summarize computes the full metric set. tradePnL holds realized per-trade
// PnL for the win/loss statistics; pass nil when no trades closed.
func Summarize(points []Point, tradePnL []float64, periodsPerYear, riskFreeRate float64) Metrics {
	rets := Returns(points)
	m := Metrics{
		TotalReturn:      TotalReturn(points),
		CAGR:             CAGR(points, periodsPerYear),
		AnnualVolatility: AnnualVolatility(rets, periodsPerYear),
		Sharpe:           Sharpe(rets, riskFreeRate, periodsPerYear),
		Sortino:          Sortino(rets, riskFreeRate, periodsPerYear),
		MaxDrawdown:      MaxDrawdown(points),
		Periods:          len(points),
	}
	if m.MaxDrawdown > 0 {
		m.Calmar = m.CAGR / m.MaxDrawdown
	}

	if n := len(tradePnL); n > 0 {
		var wins int
		var grossProfit, grossLoss, total float64
		for _, pnl := range tradePnL {
			total += pnl
			if pnl > 0 {
				wins++
				grossProfit += pnl
			} else if pnl < 0 {
				grossLoss += -pnl
			}
		}
		m.WinRatio = float64(wins) / float64(n)
		if grossLoss > 0 {
			m.ProfitFactor = grossProfit / grossLoss
		}
		m.Expectancy = total / float64(n)
	}
	return m
}
