package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse-backend/models"
)

func barsFromCloses(closes ...float64) []models.HistoryPoint {
	points := make([]models.HistoryPoint, len(closes))
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		points[i] = models.HistoryPoint{
			Date:   base.AddDate(0, 0, i),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 1000,
		}
	}
	return points
}

func TestSMA(t *testing.T) {
	points := barsFromCloses(1, 2, 3, 4, 5)
	assert.InDelta(t, 4.0, SMA(points, 3), 1e-9)
	assert.InDelta(t, 3.0, SMA(points, 5), 1e-9)

	// Shorter than the period: mean of what is available
	assert.InDelta(t, 3.0, SMA(points, 10), 1e-9)
	assert.Zero(t, SMA(nil, 3))
}

func TestEMA(t *testing.T) {
	// Seeded with the first value, k = 2/(n+1) = 0.5 for n=3
	points := barsFromCloses(1, 2, 3)
	assert.InDelta(t, 2.25, EMA(points, 3), 1e-9)

	// A constant series has a constant EMA
	flat := barsFromCloses(10, 10, 10, 10)
	assert.InDelta(t, 10.0, EMA(flat, 3), 1e-9)

	assert.Zero(t, EMA(nil, 12))
}

func TestRSIAllGains(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	// Average loss is zero, so RSI is exactly 100
	assert.Equal(t, 100.0, RSI(barsFromCloses(closes...), RSIPeriod))
}

func TestRSIAllLosses(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 - float64(i)
	}
	// Average gain is zero, RS = 0, RSI = 0
	assert.InDelta(t, 0.0, RSI(barsFromCloses(closes...), RSIPeriod), 1e-9)
}

func TestRSIInsufficientHistory(t *testing.T) {
	points := barsFromCloses(100, 101, 102)
	assert.Equal(t, NeutralRSI, RSI(points, RSIPeriod))
}

func TestRSIBounds(t *testing.T) {
	closes := []float64{
		44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.10, 45.42,
		45.84, 46.08, 45.89, 46.03, 45.61, 46.28, 46.28, 46.00,
	}
	rsi := RSI(barsFromCloses(closes...), RSIPeriod)
	assert.GreaterOrEqual(t, rsi, 0.0)
	assert.LessOrEqual(t, rsi, 100.0)
}

func TestMACDHistogramRelation(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i%7) + float64(i)*0.3
	}
	result := MACD(barsFromCloses(closes...))
	assert.InDelta(t, result.MACD-result.Signal, result.Histogram, 1e-9)
}

func TestMACDFlatSeriesIsZero(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 50
	}
	result := MACD(barsFromCloses(closes...))
	assert.InDelta(t, 0.0, result.MACD, 1e-9)
	assert.InDelta(t, 0.0, result.Signal, 1e-9)
}

func TestBollingerConstantSeriesCollapses(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 50
	}
	bands := Bollinger(barsFromCloses(closes...), BollingerPeriod, BollingerMult)
	assert.InDelta(t, 50.0, bands.Upper, 1e-9)
	assert.InDelta(t, 50.0, bands.Middle, 1e-9)
	assert.InDelta(t, 50.0, bands.Lower, 1e-9)
}

func TestBollingerOrdering(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100 + float64(i%5)
	}
	bands := Bollinger(barsFromCloses(closes...), BollingerPeriod, BollingerMult)
	assert.Greater(t, bands.Upper, bands.Middle)
	assert.Less(t, bands.Lower, bands.Middle)
}

func TestATRConstantRange(t *testing.T) {
	points := make([]models.HistoryPoint, 20)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range points {
		points[i] = models.HistoryPoint{
			Date: base.AddDate(0, 0, i), High: 12, Low: 10, Close: 11,
		}
	}
	assert.InDelta(t, 2.0, ATR(points, ATRPeriod), 1e-9)
}

func TestATRInsufficientHistory(t *testing.T) {
	assert.Zero(t, ATR(barsFromCloses(1, 2, 3), ATRPeriod))
}

func TestStochasticCloseAtHigh(t *testing.T) {
	points := make([]models.HistoryPoint, 14)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range points {
		points[i] = models.HistoryPoint{
			Date: base.AddDate(0, 0, i), High: 110, Low: 90, Close: 100,
		}
	}
	points[13].Close = 110

	result := Stochastic(points, StochasticPeriod)
	assert.InDelta(t, 100.0, result.K, 1e-9)
}

func TestStochasticInsufficientHistory(t *testing.T) {
	result := Stochastic(barsFromCloses(1, 2, 3), StochasticPeriod)
	assert.Equal(t, NeutralStochastic, result.K)
	assert.Equal(t, NeutralStochastic, result.D)
}

func TestADXTrendingVsFlat(t *testing.T) {
	// Strong steady uptrend: every bar makes a higher high
	trending := make([]models.HistoryPoint, 40)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range trending {
		trending[i] = models.HistoryPoint{
			Date: base.AddDate(0, 0, i),
			High: float64(i) + 1, Low: float64(i), Close: float64(i) + 0.5,
		}
	}

	// Flat range: identical bars produce no directional movement
	flat := make([]models.HistoryPoint, 40)
	for i := range flat {
		flat[i] = models.HistoryPoint{
			Date: base.AddDate(0, 0, i), High: 101, Low: 99, Close: 100,
		}
	}

	trendADX := ADX(trending, ADXPeriod)
	flatADX := ADX(flat, ADXPeriod)

	assert.Greater(t, trendADX, 50.0, "steady uptrend should read as a strong trend")
	assert.InDelta(t, 0.0, flatADX, 1e-9)
}

func TestADXInsufficientHistory(t *testing.T) {
	assert.Zero(t, ADX(barsFromCloses(1, 2, 3, 4, 5), ADXPeriod))
}

func TestAvgVolumeExcludesCurrentBar(t *testing.T) {
	points := barsFromCloses(1, 2, 3, 4)
	points[0].Volume = 100
	points[1].Volume = 200
	points[2].Volume = 300
	points[3].Volume = 1000 // the spike must not inflate its own baseline

	assert.InDelta(t, 200.0, AvgVolume(points, 3), 1e-9)
}

func TestComputeSnapshotCarriesPreviousValues(t *testing.T) {
	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.8
	}
	snap := Compute(barsFromCloses(closes...))
	require.NotNil(t, snap)

	// In a steady uptrend the fast EMA sits above the slow one,
	// now and on the previous bar
	assert.Greater(t, snap.EMA12, snap.EMA26)
	assert.Greater(t, snap.PrevEMA12, snap.PrevEMA26)
	assert.Greater(t, snap.MACD.MACD, 0.0)
}

func TestComputeSnapshotCarriesLastBarVolume(t *testing.T) {
	points := barsFromCloses(1, 2, 3, 4)
	points[len(points)-1].Volume = 750000

	snap := Compute(points)
	require.NotNil(t, snap)
	assert.InDelta(t, 750000.0, snap.LastVolume, 1e-9)
}
