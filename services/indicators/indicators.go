// Package indicators computes technical indicators from an ordered
// (oldest to newest) series of daily OHLCV bars. All functions are pure
// and degrade to documented neutral values instead of erroring when the
// series is too short to be reliable.
package indicators

import (
	"math"

	"marketpulse-backend/models"
)

// Neutral fallbacks returned when the series is too short. RSI and the
// stochastic oscillator sit at the middle of their 0-100 range; ADX
// falls to 0, meaning no measurable trend.
const (
	NeutralRSI        = 50.0
	NeutralStochastic = 50.0
)

// Minimum series lengths below which a computation is unreliable and
// the neutral fallback is returned.
const (
	RSIPeriod        = 14
	ATRPeriod        = 14
	ADXPeriod        = 14
	StochasticPeriod = 14
	BollingerPeriod  = 20
	BollingerMult    = 2.0
	MACDFastPeriod   = 12
	MACDSlowPeriod   = 26
	MACDSignalPeriod = 9
	VolumeAvgPeriod  = 20
)

func closes(points []models.HistoryPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Close
	}
	return out
}

// SMA returns the arithmetic mean of the last period closes. With fewer
// points than the period, the mean of whatever is available is returned
// (unreliable below the full period); an empty series yields 0.
func SMA(points []models.HistoryPoint, period int) float64 {
	if len(points) == 0 || period <= 0 {
		return 0
	}
	start := len(points) - period
	if start < 0 {
		start = 0
	}
	sum := 0.0
	for _, p := range points[start:] {
		sum += p.Close
	}
	return sum / float64(len(points)-start)
}

// emaSeries applies exponential smoothing left to right, seeded with
// the first value, smoothing constant k = 2/(period+1).
func emaSeries(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	k := 2.0 / float64(period+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = (values[i]-out[i-1])*k + out[i-1]
	}
	return out
}

// EMA returns the exponential moving average of the closes. An empty
// series yields 0; values computed from fewer points than the period
// are unreliable.
func EMA(points []models.HistoryPoint, period int) float64 {
	series := emaSeries(closes(points), period)
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// RSI computes the Wilder-style relative strength index over the
// trailing period. Fewer than period+1 points returns the neutral 50
// fallback; an average loss of zero returns exactly 100.
func RSI(points []models.HistoryPoint, period int) float64 {
	if len(points) < period+1 {
		return NeutralRSI
	}

	window := points[len(points)-(period+1):]
	gains := 0.0
	losses := 0.0
	for i := 1; i < len(window); i++ {
		change := window[i].Close - window[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACDResult holds the MACD line, signal line, and histogram for the
// latest bar plus the previous bar's values for crossover detection.
type MACDResult struct {
	MACD       float64
	Signal     float64
	Histogram  float64
	PrevMACD   float64
	PrevSignal float64
}

// MACD computes EMA12-EMA26 with a true EMA9 signal line over the
// MACD-line series. Fewer than two points returns a zero result.
func MACD(points []models.HistoryPoint) MACDResult {
	values := closes(points)
	if len(values) < 2 {
		return MACDResult{}
	}

	fast := emaSeries(values, MACDFastPeriod)
	slow := emaSeries(values, MACDSlowPeriod)

	macdLine := make([]float64, len(values))
	for i := range values {
		macdLine[i] = fast[i] - slow[i]
	}
	signal := emaSeries(macdLine, MACDSignalPeriod)

	last := len(values) - 1
	return MACDResult{
		MACD:       macdLine[last],
		Signal:     signal[last],
		Histogram:  macdLine[last] - signal[last],
		PrevMACD:   macdLine[last-1],
		PrevSignal: signal[last-1],
	}
}

// BollingerBands holds the three band values
type BollingerBands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Bollinger computes the bands over the trailing period: middle is the
// SMA, upper/lower are middle +/- mult standard deviations. A series
// shorter than the period collapses all bands onto the middle.
func Bollinger(points []models.HistoryPoint, period int, mult float64) BollingerBands {
	middle := SMA(points, period)
	if len(points) < period {
		return BollingerBands{Upper: middle, Middle: middle, Lower: middle}
	}

	window := points[len(points)-period:]
	variance := 0.0
	for _, p := range window {
		diff := p.Close - middle
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(period))

	return BollingerBands{
		Upper:  middle + mult*stdDev,
		Middle: middle,
		Lower:  middle - mult*stdDev,
	}
}

func trueRange(current, previous models.HistoryPoint) float64 {
	hl := current.High - current.Low
	hc := math.Abs(current.High - previous.Close)
	lc := math.Abs(current.Low - previous.Close)
	return math.Max(hl, math.Max(hc, lc))
}

// ATR computes the Wilder average true range. Fewer than period+1
// points returns 0.
func ATR(points []models.HistoryPoint, period int) float64 {
	if len(points) < period+1 {
		return 0
	}

	trs := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		trs = append(trs, trueRange(points[i], points[i-1]))
	}

	// Seed with the simple mean of the first period, then smooth
	atr := 0.0
	for _, tr := range trs[:period] {
		atr += tr
	}
	atr /= float64(period)

	for _, tr := range trs[period:] {
		atr = (atr*float64(period-1) + tr) / float64(period)
	}
	return atr
}

// StochasticResult holds %K and %D
type StochasticResult struct {
	K float64
	D float64
}

// Stochastic computes %K over the trailing period window and %D as a
// 3-period SMA of the %K series (smoothed variant). A series shorter
// than the period returns the neutral 50/50 result.
func Stochastic(points []models.HistoryPoint, period int) StochasticResult {
	if len(points) < period {
		return StochasticResult{K: NeutralStochastic, D: NeutralStochastic}
	}

	kAt := func(end int) float64 {
		window := points[end-period+1 : end+1]
		highest := window[0].High
		lowest := window[0].Low
		for _, p := range window {
			if p.High > highest {
				highest = p.High
			}
			if p.Low < lowest {
				lowest = p.Low
			}
		}
		if highest == lowest {
			return NeutralStochastic
		}
		return (points[end].Close - lowest) / (highest - lowest) * 100
	}

	last := len(points) - 1
	k := kAt(last)

	// %D averages the last three %K values where the window allows
	dSum := k
	dCount := 1
	for back := 1; back <= 2 && last-back >= period-1; back++ {
		dSum += kAt(last - back)
		dCount++
	}

	return StochasticResult{K: k, D: dSum / float64(dCount)}
}

// ADX computes the average directional index from directional movement
// with Wilder smoothing. Fewer than 2*period+1 points returns 0 (no
// measurable trend).
func ADX(points []models.HistoryPoint, period int) float64 {
	if len(points) < 2*period+1 {
		return 0
	}

	var smTR, smPlusDM, smMinusDM float64
	dxs := make([]float64, 0, len(points)-period)

	for i := 1; i < len(points); i++ {
		upMove := points[i].High - points[i-1].High
		downMove := points[i-1].Low - points[i].Low

		plusDM := 0.0
		minusDM := 0.0
		if upMove > downMove && upMove > 0 {
			plusDM = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM = downMove
		}
		tr := trueRange(points[i], points[i-1])

		if i <= period {
			smTR += tr
			smPlusDM += plusDM
			smMinusDM += minusDM
			if i < period {
				continue
			}
		} else {
			// Wilder smoothing
			smTR = smTR - smTR/float64(period) + tr
			smPlusDM = smPlusDM - smPlusDM/float64(period) + plusDM
			smMinusDM = smMinusDM - smMinusDM/float64(period) + minusDM
		}

		if smTR == 0 {
			dxs = append(dxs, 0)
			continue
		}
		plusDI := 100 * smPlusDM / smTR
		minusDI := 100 * smMinusDM / smTR
		if plusDI+minusDI == 0 {
			dxs = append(dxs, 0)
			continue
		}
		dxs = append(dxs, 100*math.Abs(plusDI-minusDI)/(plusDI+minusDI))
	}

	if len(dxs) < period {
		return 0
	}

	adx := 0.0
	for _, dx := range dxs[:period] {
		adx += dx
	}
	adx /= float64(period)
	for _, dx := range dxs[period:] {
		adx = (adx*float64(period-1) + dx) / float64(period)
	}
	return adx
}

// AvgVolume returns the mean volume of up to period bars preceding the
// most recent bar, so a spike in the current bar does not inflate its
// own baseline. Fewer than two bars yields 0.
func AvgVolume(points []models.HistoryPoint, period int) float64 {
	if len(points) < 2 {
		return 0
	}
	prior := points[:len(points)-1]
	start := len(prior) - period
	if start < 0 {
		start = 0
	}
	sum := 0.0
	for _, p := range prior[start:] {
		sum += p.Volume
	}
	return sum / float64(len(prior)-start)
}

// Snapshot holds all computed indicators for one evaluation instant.
// Purely derived and never mutated; discarded after use.
type Snapshot struct {
	RSI         float64        `json:"rsi"`
	SMA20       float64        `json:"sma_20"`
	EMA12       float64        `json:"ema_12"`
	EMA26       float64        `json:"ema_26"`
	PrevEMA12   float64        `json:"prev_ema_12"`
	PrevEMA26   float64        `json:"prev_ema_26"`
	MACD        MACDResult     `json:"macd"`
	Bollinger   BollingerBands `json:"bollinger"`
	ATR         float64        `json:"atr"`
	ADX         float64        `json:"adx"`
	Stochastic  StochasticResult `json:"stochastic"`
	AvgVolume20 float64        `json:"avg_volume_20"`
	LastVolume  float64        `json:"last_volume"`
}

// Compute derives the full snapshot from a bar series (oldest first)
func Compute(points []models.HistoryPoint) *Snapshot {
	snap := &Snapshot{
		RSI:         RSI(points, RSIPeriod),
		SMA20:       SMA(points, BollingerPeriod),
		EMA12:       EMA(points, MACDFastPeriod),
		EMA26:       EMA(points, MACDSlowPeriod),
		MACD:        MACD(points),
		Bollinger:   Bollinger(points, BollingerPeriod, BollingerMult),
		ATR:         ATR(points, ATRPeriod),
		ADX:         ADX(points, ADXPeriod),
		Stochastic:  Stochastic(points, StochasticPeriod),
		AvgVolume20: AvgVolume(points, VolumeAvgPeriod),
	}
	if len(points) > 0 {
		snap.LastVolume = points[len(points)-1].Volume
	}

	if len(points) >= 2 {
		prev := points[:len(points)-1]
		snap.PrevEMA12 = EMA(prev, MACDFastPeriod)
		snap.PrevEMA26 = EMA(prev, MACDSlowPeriod)
	} else {
		snap.PrevEMA12 = snap.EMA12
		snap.PrevEMA26 = snap.EMA26
	}
	return snap
}
