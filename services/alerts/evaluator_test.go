package alerts

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"marketpulse-backend/models"
	"marketpulse-backend/services/indicators"
)

func newAlert(condition models.AlertCondition, target float64) *models.Alert {
	return &models.Alert{
		ID:          1,
		Symbol:      "AAPL",
		Condition:   condition,
		TargetValue: decimal.NewFromFloat(target),
	}
}

func TestEvaluatePriceAbove(t *testing.T) {
	alert := newAlert(models.ConditionPriceAbove, 100)

	eval := Evaluate(alert, &models.Quote{Symbol: "AAPL", Price: 98}, nil)
	assert.False(t, eval.Triggered)
	assert.Equal(t, 98.0, eval.Observed)

	eval = Evaluate(alert, &models.Quote{Symbol: "AAPL", Price: 101}, nil)
	assert.True(t, eval.Triggered)

	// Reaching the target exactly counts
	eval = Evaluate(alert, &models.Quote{Symbol: "AAPL", Price: 100}, nil)
	assert.True(t, eval.Triggered)
}

func TestEvaluatePriceBelow(t *testing.T) {
	alert := newAlert(models.ConditionPriceBelow, 90)

	assert.False(t, Evaluate(alert, &models.Quote{Price: 95}, nil).Triggered)
	assert.True(t, Evaluate(alert, &models.Quote{Price: 89.5}, nil).Triggered)
}

func TestEvaluatePriceChangePercent(t *testing.T) {
	up := newAlert(models.ConditionPriceChangePercent, 5)
	assert.True(t, Evaluate(up, &models.Quote{Price: 105, ChangePercent: 5.2}, nil).Triggered)
	assert.False(t, Evaluate(up, &models.Quote{Price: 103, ChangePercent: 3.1}, nil).Triggered)

	// Negative target watches for drops
	down := newAlert(models.ConditionPriceChangePercent, -5)
	assert.True(t, Evaluate(down, &models.Quote{Price: 94, ChangePercent: -6.0}, nil).Triggered)
	assert.False(t, Evaluate(down, &models.Quote{Price: 98, ChangePercent: -2.0}, nil).Triggered)
}

func TestEvaluateRSI(t *testing.T) {
	overbought := newAlert(models.ConditionRSIOverbought, 70)
	assert.True(t, Evaluate(overbought, &models.Quote{Price: 100}, &indicators.Snapshot{RSI: 75}).Triggered)
	assert.False(t, Evaluate(overbought, &models.Quote{Price: 100}, &indicators.Snapshot{RSI: 60}).Triggered)

	oversold := newAlert(models.ConditionRSIOversold, 30)
	assert.True(t, Evaluate(oversold, &models.Quote{Price: 100}, &indicators.Snapshot{RSI: 25}).Triggered)
	assert.False(t, Evaluate(oversold, &models.Quote{Price: 100}, &indicators.Snapshot{RSI: 45}).Triggered)
}

func TestEvaluateMACDCrossover(t *testing.T) {
	alert := newAlert(models.ConditionMACDCrossover, 0)
	quote := &models.Quote{Price: 100}

	crossed := &indicators.Snapshot{
		MACD: indicators.MACDResult{PrevMACD: -0.5, PrevSignal: -0.2, MACD: 0.3, Signal: 0.1},
	}
	assert.True(t, Evaluate(alert, quote, crossed).Triggered)

	// Already above on the previous bar: no fresh crossover
	stillAbove := &indicators.Snapshot{
		MACD: indicators.MACDResult{PrevMACD: 0.2, PrevSignal: 0.1, MACD: 0.3, Signal: 0.1},
	}
	assert.False(t, Evaluate(alert, quote, stillAbove).Triggered)
}

func TestEvaluateMACDCrossunder(t *testing.T) {
	alert := newAlert(models.ConditionMACDCrossunder, 0)
	quote := &models.Quote{Price: 100}

	crossed := &indicators.Snapshot{
		MACD: indicators.MACDResult{PrevMACD: 0.3, PrevSignal: 0.1, MACD: -0.2, Signal: 0.0},
	}
	assert.True(t, Evaluate(alert, quote, crossed).Triggered)

	stillBelow := &indicators.Snapshot{
		MACD: indicators.MACDResult{PrevMACD: -0.3, PrevSignal: -0.1, MACD: -0.2, Signal: 0.0},
	}
	assert.False(t, Evaluate(alert, quote, stillBelow).Triggered)
}

func TestEvaluateEMACross(t *testing.T) {
	alert := newAlert(models.ConditionEMACross, 0)
	quote := &models.Quote{Price: 100}

	bullish := &indicators.Snapshot{PrevEMA12: 99, PrevEMA26: 100, EMA12: 101, EMA26: 100}
	assert.True(t, Evaluate(alert, quote, bullish).Triggered)

	bearish := &indicators.Snapshot{PrevEMA12: 101, PrevEMA26: 100, EMA12: 99, EMA26: 100}
	assert.True(t, Evaluate(alert, quote, bearish).Triggered)

	noCross := &indicators.Snapshot{PrevEMA12: 101, PrevEMA26: 100, EMA12: 102, EMA26: 100}
	assert.False(t, Evaluate(alert, quote, noCross).Triggered)
}

func TestEvaluateBollinger(t *testing.T) {
	bands := indicators.BollingerBands{Upper: 110, Middle: 100, Lower: 90}

	upper := newAlert(models.ConditionBollingerUpper, 0)
	assert.True(t, Evaluate(upper, &models.Quote{Price: 111}, &indicators.Snapshot{Bollinger: bands}).Triggered)
	assert.False(t, Evaluate(upper, &models.Quote{Price: 105}, &indicators.Snapshot{Bollinger: bands}).Triggered)

	lower := newAlert(models.ConditionBollingerLower, 0)
	assert.True(t, Evaluate(lower, &models.Quote{Price: 89}, &indicators.Snapshot{Bollinger: bands}).Triggered)
	assert.False(t, Evaluate(lower, &models.Quote{Price: 95}, &indicators.Snapshot{Bollinger: bands}).Triggered)
}

func TestEvaluateVolumeSpike(t *testing.T) {
	alert := newAlert(models.ConditionVolumeSpike, 2.0)

	// 500k on a 200k average is a 2.5x multiplier
	eval := Evaluate(alert, &models.Quote{Price: 100, Volume: 500000}, &indicators.Snapshot{AvgVolume20: 200000})
	assert.True(t, eval.Triggered)
	assert.InDelta(t, 2.5, eval.Observed, 1e-9)

	// 500k on a 300k average is only 1.67x
	eval = Evaluate(alert, &models.Quote{Price: 100, Volume: 500000}, &indicators.Snapshot{AvgVolume20: 300000})
	assert.False(t, eval.Triggered)
	assert.InDelta(t, 1.6667, eval.Observed, 1e-3)
}

func TestEvaluateVolumeSpikeQuoteWithoutVolume(t *testing.T) {
	alert := newAlert(models.ConditionVolumeSpike, 2.0)

	// Some quote endpoints carry no volume field; the latest history
	// bar's volume stands in so a genuine spike still fires
	snap := &indicators.Snapshot{AvgVolume20: 200000, LastVolume: 500000}
	eval := Evaluate(alert, &models.Quote{Price: 100, Volume: 0}, snap)
	assert.True(t, eval.Triggered)
	assert.InDelta(t, 2.5, eval.Observed, 1e-9)

	snap = &indicators.Snapshot{AvgVolume20: 300000, LastVolume: 500000}
	eval = Evaluate(alert, &models.Quote{Price: 100, Volume: 0}, snap)
	assert.False(t, eval.Triggered)
	assert.InDelta(t, 1.6667, eval.Observed, 1e-3)
}

func TestEvaluateVolumeSpikeNoBaseline(t *testing.T) {
	alert := newAlert(models.ConditionVolumeSpike, 2.0)
	eval := Evaluate(alert, &models.Quote{Price: 100, Volume: 500000}, &indicators.Snapshot{AvgVolume20: 0})
	assert.False(t, eval.Triggered)
	assert.Contains(t, eval.Message, "no volume baseline")
}

func TestEvaluateUnknownCondition(t *testing.T) {
	alert := newAlert(models.AlertCondition("moon_phase"), 1)
	eval := Evaluate(alert, &models.Quote{Price: 100}, nil)
	assert.False(t, eval.Triggered)
	assert.Contains(t, eval.Message, "unknown condition kind")
}

func TestEvaluateMissingIndicators(t *testing.T) {
	alert := newAlert(models.ConditionRSIOverbought, 70)
	eval := Evaluate(alert, &models.Quote{Symbol: "AAPL", Price: 100}, nil)
	assert.False(t, eval.Triggered)
	assert.Contains(t, eval.Message, "indicators unavailable")
}
