package analytics

import (
	"math"
	"time"
)

// TrendEpsilon is the slope, in currency units per month, below which a
// series counts as flat.
const TrendEpsilon = 0.005

// Trend is the direction of a fitted series.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendFlat       Trend = "flat"
)

// MsgInsufficientData is set on a forecast built from fewer than two points.
const MsgInsufficientData = "insufficient data"

// SeriesPoint is one observation of a monthly series.
type SeriesPoint struct {
	Period time.Time `json:"period"`
	Amount float64   `json:"amount"`
}

// ForecastResult is the least-squares fit of a monthly series and its
// projection one month past the last point.
type ForecastResult struct {
	PredictedAmount   *float64 `json:"predicted_amount"`
	Trend             Trend    `json:"trend"`
	MonthlyGrowthRate float64  `json:"monthly_growth_rate"`
	Slope             float64  `json:"slope"`
	Intercept         float64  `json:"intercept"`
	RSquared          float64  `json:"r_squared"`
	Points            int      `json:"points"`
	Message           string   `json:"message,omitempty"`
}

// Forecast fits amount = slope*i + intercept over i = 0..n-1 and predicts i = n.
// The prediction is not clamped; a falling series may forecast a negative amount.
func Forecast(points []SeriesPoint) ForecastResult {
	n := len(points)
	if n < 2 {
		return ForecastResult{Trend: TrendFlat, Points: n, Message: MsgInsufficientData}
	}

	ys := make([]float64, n)
	for i, p := range points {
		ys[i] = p.Amount
	}
	slope, intercept, r2 := linearRegression(ys)

	mean := 0.0
	for _, y := range ys {
		mean += y
	}
	mean /= float64(n)

	growth := 0.0
	if mean != 0 {
		growth = slope / mean * 100
	}

	predicted := slope*float64(n) + intercept
	return ForecastResult{
		PredictedAmount:   &predicted,
		Trend:             classifyTrend(slope),
		MonthlyGrowthRate: growth,
		Slope:             slope,
		Intercept:         intercept,
		RSquared:          r2,
		Points:            n,
	}
}

// SpendSeries projects the spend column of a monthly series.
func SpendSeries(months []MonthlyPoint) []SeriesPoint {
	out := make([]SeriesPoint, len(months))
	for i, m := range months {
		out[i] = SeriesPoint{Period: m.Month, Amount: m.Spent.InexactFloat64()}
	}
	return out
}

func classifyTrend(slope float64) Trend {
	switch {
	case slope > TrendEpsilon:
		return TrendIncreasing
	case slope < -TrendEpsilon:
		return TrendDecreasing
	default:
		return TrendFlat
	}
}

// linearRegression computes slope, intercept and R-squared for ys where x is
// the index. A series with no variance fits perfectly.
func linearRegression(ys []float64) (slope, intercept, rSquared float64) {
	if constant(ys) {
		return 0, ys[0], 1
	}
	n := float64(len(ys))
	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range ys {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0, sumY / n, 1
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssTot, ssRes float64
	for i, y := range ys {
		fit := slope*float64(i) + intercept
		ssRes += (y - fit) * (y - fit)
		ssTot += (y - meanY) * (y - meanY)
	}
	if ssTot == 0 {
		return slope, intercept, 1
	}
	rSquared = 1 - ssRes/ssTot
	if math.IsNaN(rSquared) {
		rSquared = 0
	}
	return slope, intercept, rSquared
}

// constant reports whether every value equals the first. The normal
// equations leave a rounding residue in the slope for values like 0.1.
func constant(ys []float64) bool {
	for _, y := range ys[1:] {
		if y != ys[0] {
			return false
		}
	}
	return true
}
