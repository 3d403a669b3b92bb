// Package analytics derives performance metrics from the daily equity curve.
package analytics

import (
	"errors"
	"math"
	"time"

	"paper_trading/internal/models"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualization factor.
const TradingDaysPerYear = 252

// ErrInsufficientData means the curve is too short for the requested metric.
var ErrInsufficientData = errors.New("insufficient data")

// Report holds the metrics of one equity curve. Volatility and SharpeRatio are
// only meaningful when HasRisk is true (three or more points).
type Report struct {
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Points        int       `json:"points"`
	InitialEquity float64   `json:"initial_equity"`
	FinalEquity   float64   `json:"final_equity"`
	TotalReturn   float64   `json:"total_return"`
	MaxDrawdown   float64   `json:"max_drawdown"`
	Volatility    float64   `json:"volatility"`
	SharpeRatio   float64   `json:"sharpe_ratio"`
	HasRisk       bool      `json:"has_risk"`
}

// Compute builds a Report from TOTAL points ordered by date.
func Compute(points []models.TotalPoint) (Report, error) {
	equity := make([]float64, len(points))
	for i, p := range points {
		equity[i] = p.TotalEquity.InexactFloat64()
	}

	total, err := TotalReturn(equity)
	if err != nil {
		return Report{}, err
	}

	r := Report{
		Start:         points[0].Date,
		End:           points[len(points)-1].Date,
		Points:        len(points),
		InitialEquity: equity[0],
		FinalEquity:   equity[len(equity)-1],
		TotalReturn:   total,
		MaxDrawdown:   MaxDrawdown(equity),
	}

	if vol, err := Volatility(equity); err == nil {
		r.Volatility = vol
		r.SharpeRatio = sharpe(DailyReturns(equity), vol)
		r.HasRisk = true
	}
	return r, nil
}

// TotalReturn is (last - first) / first.
func TotalReturn(equity []float64) (float64, error) {
	if len(equity) < 2 || equity[0] == 0 {
		return 0, ErrInsufficientData
	}
	return (equity[len(equity)-1] - equity[0]) / equity[0], nil
}

// DailyReturns returns E[i]/E[i-1] - 1. Steps from a zero equity are skipped.
func DailyReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		out = append(out, equity[i]/equity[i-1]-1)
	}
	return out
}

// Volatility is the sample standard deviation of daily returns scaled by sqrt(252).
// It needs at least two daily returns.
func Volatility(equity []float64) (float64, error) {
	returns := DailyReturns(equity)
	if len(returns) < 2 {
		return 0, ErrInsufficientData
	}
	return stat.StdDev(returns, nil) * math.Sqrt(TradingDaysPerYear), nil
}

// SharpeRatio is annualized mean return over volatility, 0 when volatility is 0.
func SharpeRatio(equity []float64) (float64, error) {
	vol, err := Volatility(equity)
	if err != nil {
		return 0, err
	}
	return sharpe(DailyReturns(equity), vol), nil
}

func sharpe(returns []float64, vol float64) float64 {
	if vol == 0 {
		return 0
	}
	return stat.Mean(returns, nil) * TradingDaysPerYear / vol
}

// MaxDrawdown is the most negative E[i]/max(E[0..i]) - 1; 0 means no drawdown.
func MaxDrawdown(equity []float64) float64 {
	var peak, worst float64
	for i, e := range equity {
		if i == 0 || e > peak {
			peak = e
		}
		if peak <= 0 {
			continue
		}
		if dd := e/peak - 1; dd < worst {
			worst = dd
		}
	}
	return worst
}
