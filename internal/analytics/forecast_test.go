package analytics

import (
	"math"
	"testing"
	"time"
)

func series(amounts ...float64) []SeriesPoint {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	out := make([]SeriesPoint, len(amounts))
	for i, a := range amounts {
		out[i] = SeriesPoint{Period: start.AddDate(0, i, 0), Amount: a}
	}
	return out
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestForecast_RisingSeries(t *testing.T) {
	got := Forecast(series(100, 120, 140))

	if got.PredictedAmount == nil || !approx(*got.PredictedAmount, 160) {
		t.Fatalf("predicted = %v, want 160", got.PredictedAmount)
	}
	if !approx(got.Slope, 20) || !approx(got.Intercept, 100) {
		t.Errorf("slope=%v intercept=%v, want 20 and 100", got.Slope, got.Intercept)
	}
	if got.Trend != TrendIncreasing {
		t.Errorf("trend = %s, want increasing", got.Trend)
	}
	if !approx(got.MonthlyGrowthRate, 20.0/120.0*100) {
		t.Errorf("growth = %v", got.MonthlyGrowthRate)
	}
	if !approx(got.RSquared, 1) {
		t.Errorf("r_squared = %v, want 1", got.RSquared)
	}
}

func TestForecast_Trends(t *testing.T) {
	tests := []struct {
		name   string
		points []SeriesPoint
		want   Trend
	}{
		{"constant", series(50, 50, 50, 50), TrendFlat},
		{"falling", series(300, 200, 100), TrendDecreasing},
		{"below epsilon", series(10, 10.004), TrendFlat},
		{"above epsilon", series(10, 10.01), TrendIncreasing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Forecast(tt.points).Trend; got != tt.want {
				t.Errorf("trend = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestForecast_ConstantSeries(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		n     int
	}{
		{name: "integer", value: 50, n: 3},
		{name: "one tenth", value: 0.1, n: 7},
		{name: "cents", value: 33.33, n: 7},
		{name: "larger cents", value: 123.45, n: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amounts := make([]float64, tt.n)
			for i := range amounts {
				amounts[i] = tt.value
			}
			got := Forecast(series(amounts...))
			if got.PredictedAmount == nil || *got.PredictedAmount != tt.value {
				t.Errorf("predicted = %v, want %v", got.PredictedAmount, tt.value)
			}
			if got.Slope != 0 || got.MonthlyGrowthRate != 0 {
				t.Errorf("slope=%v growth=%v, want zeros", got.Slope, got.MonthlyGrowthRate)
			}
			if got.Trend != TrendFlat || got.RSquared != 1 {
				t.Errorf("trend=%s r2=%v, want flat and 1", got.Trend, got.RSquared)
			}
		})
	}
}

func TestForecast_NegativePredictionIsNotClamped(t *testing.T) {
	got := Forecast(series(200, 100, 0))
	if got.PredictedAmount == nil || !approx(*got.PredictedAmount, -100) {
		t.Errorf("predicted = %v, want -100", got.PredictedAmount)
	}
}

func TestForecast_ZeroMeanGrowth(t *testing.T) {
	got := Forecast(series(-10, 10))
	if got.MonthlyGrowthRate != 0 {
		t.Errorf("growth = %v, want 0 for a zero-mean series", got.MonthlyGrowthRate)
	}
}

func TestForecast_InsufficientData(t *testing.T) {
	for _, pts := range [][]SeriesPoint{nil, series(42)} {
		got := Forecast(pts)
		if got.PredictedAmount != nil {
			t.Errorf("expected no prediction for %d points", len(pts))
		}
		if got.Message != MsgInsufficientData || got.Trend != TrendFlat || got.MonthlyGrowthRate != 0 {
			t.Errorf("unexpected result: %+v", got)
		}
	}
}

func TestForecast_Idempotent(t *testing.T) {
	pts := series(12.5, 99.1, 43.7, 61.2, 80)
	a, b := Forecast(pts), Forecast(pts)
	if *a.PredictedAmount != *b.PredictedAmount || a.Slope != b.Slope || a.RSquared != b.RSquared {
		t.Errorf("forecast is not deterministic: %+v vs %+v", a, b)
	}
}
