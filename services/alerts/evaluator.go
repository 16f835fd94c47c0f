package alerts

import (
	"fmt"

	"marketpulse-backend/models"
	"marketpulse-backend/services/indicators"
)

// Evaluation is the outcome of checking one alert against one quote
type Evaluation struct {
	Triggered bool
	Observed  float64
	Message   string
}

// Evaluate applies an alert's condition to a fresh quote and, where the
// condition needs them, the indicator snapshot. Pure: no state is read
// or written beyond the arguments. An unknown condition kind evaluates
// to not-triggered with a diagnostic message.
func Evaluate(alert *models.Alert, quote *models.Quote, snap *indicators.Snapshot) Evaluation {
	target, _ := alert.TargetValue.Float64()

	if alert.Condition.NeedsIndicators() && snap == nil {
		return Evaluation{
			Observed: quote.Price,
			Message:  fmt.Sprintf("%s: indicators unavailable for %s", alert.Condition, alert.Symbol),
		}
	}

	switch alert.Condition {
	case models.ConditionPriceAbove:
		return Evaluation{
			Triggered: quote.Price >= target,
			Observed:  quote.Price,
			Message:   fmt.Sprintf("%s price %.4f vs target above %.4f", alert.Symbol, quote.Price, target),
		}

	case models.ConditionPriceBelow:
		return Evaluation{
			Triggered: quote.Price <= target,
			Observed:  quote.Price,
			Message:   fmt.Sprintf("%s price %.4f vs target below %.4f", alert.Symbol, quote.Price, target),
		}

	case models.ConditionPriceChangePercent:
		change := quote.ChangePercent
		triggered := change >= target
		if target < 0 {
			triggered = change <= target
		}
		return Evaluation{
			Triggered: triggered,
			Observed:  change,
			Message:   fmt.Sprintf("%s moved %.2f%% vs target %.2f%%", alert.Symbol, change, target),
		}

	case models.ConditionRSIOverbought:
		return Evaluation{
			Triggered: snap.RSI >= target,
			Observed:  snap.RSI,
			Message:   fmt.Sprintf("%s RSI %.2f vs overbought threshold %.2f", alert.Symbol, snap.RSI, target),
		}

	case models.ConditionRSIOversold:
		return Evaluation{
			Triggered: snap.RSI <= target,
			Observed:  snap.RSI,
			Message:   fmt.Sprintf("%s RSI %.2f vs oversold threshold %.2f", alert.Symbol, snap.RSI, target),
		}

	case models.ConditionMACDCrossover:
		crossed := snap.MACD.PrevMACD <= snap.MACD.PrevSignal && snap.MACD.MACD > snap.MACD.Signal
		return Evaluation{
			Triggered: crossed,
			Observed:  snap.MACD.MACD,
			Message:   fmt.Sprintf("%s MACD %.4f signal %.4f (bullish crossover)", alert.Symbol, snap.MACD.MACD, snap.MACD.Signal),
		}

	case models.ConditionMACDCrossunder:
		crossed := snap.MACD.PrevMACD >= snap.MACD.PrevSignal && snap.MACD.MACD < snap.MACD.Signal
		return Evaluation{
			Triggered: crossed,
			Observed:  snap.MACD.MACD,
			Message:   fmt.Sprintf("%s MACD %.4f signal %.4f (bearish crossunder)", alert.Symbol, snap.MACD.MACD, snap.MACD.Signal),
		}

	case models.ConditionEMACross:
		bullish := snap.PrevEMA12 <= snap.PrevEMA26 && snap.EMA12 > snap.EMA26
		bearish := snap.PrevEMA12 >= snap.PrevEMA26 && snap.EMA12 < snap.EMA26
		direction := "bullish"
		if bearish {
			direction = "bearish"
		}
		return Evaluation{
			Triggered: bullish || bearish,
			Observed:  snap.EMA12 - snap.EMA26,
			Message:   fmt.Sprintf("%s EMA12 %.4f EMA26 %.4f (%s cross)", alert.Symbol, snap.EMA12, snap.EMA26, direction),
		}

	case models.ConditionBollingerUpper:
		return Evaluation{
			Triggered: quote.Price >= snap.Bollinger.Upper,
			Observed:  quote.Price,
			Message:   fmt.Sprintf("%s price %.4f vs upper band %.4f", alert.Symbol, quote.Price, snap.Bollinger.Upper),
		}

	case models.ConditionBollingerLower:
		return Evaluation{
			Triggered: quote.Price <= snap.Bollinger.Lower,
			Observed:  quote.Price,
			Message:   fmt.Sprintf("%s price %.4f vs lower band %.4f", alert.Symbol, quote.Price, snap.Bollinger.Lower),
		}

	case models.ConditionVolumeSpike:
		// Quote endpoints without a volume field (e.g. Finnhub /quote)
		// fall back to the latest history bar's volume.
		volume := quote.Volume
		if volume == 0 {
			volume = snap.LastVolume
		}
		if snap.AvgVolume20 <= 0 {
			return Evaluation{
				Observed: volume,
				Message:  fmt.Sprintf("%s: no volume baseline available", alert.Symbol),
			}
		}
		ratio := volume / snap.AvgVolume20
		return Evaluation{
			Triggered: ratio >= target,
			Observed:  ratio,
			Message:   fmt.Sprintf("%s volume %.0f is %.2fx the 20-day average (target %.2fx)", alert.Symbol, volume, ratio, target),
		}
	}

	return Evaluation{
		Observed: quote.Price,
		Message:  fmt.Sprintf("unknown condition kind %q for %s", alert.Condition, alert.Symbol),
	}
}

// buildNotificationTitle renders the short headline for a triggered alert
func buildNotificationTitle(alert *models.Alert, eval Evaluation) string {
	switch alert.Condition {
	case models.ConditionPriceAbove:
		return fmt.Sprintf("%s rose above %s", alert.Symbol, alert.TargetValue.String())
	case models.ConditionPriceBelow:
		return fmt.Sprintf("%s fell below %s", alert.Symbol, alert.TargetValue.String())
	case models.ConditionPriceChangePercent:
		return fmt.Sprintf("%s moved %.2f%%", alert.Symbol, eval.Observed)
	case models.ConditionRSIOverbought:
		return fmt.Sprintf("%s RSI overbought at %.1f", alert.Symbol, eval.Observed)
	case models.ConditionRSIOversold:
		return fmt.Sprintf("%s RSI oversold at %.1f", alert.Symbol, eval.Observed)
	case models.ConditionMACDCrossover:
		return fmt.Sprintf("%s MACD bullish crossover", alert.Symbol)
	case models.ConditionMACDCrossunder:
		return fmt.Sprintf("%s MACD bearish crossunder", alert.Symbol)
	case models.ConditionEMACross:
		return fmt.Sprintf("%s EMA cross", alert.Symbol)
	case models.ConditionBollingerUpper:
		return fmt.Sprintf("%s touched upper Bollinger band", alert.Symbol)
	case models.ConditionBollingerLower:
		return fmt.Sprintf("%s touched lower Bollinger band", alert.Symbol)
	case models.ConditionVolumeSpike:
		return fmt.Sprintf("%s volume spike %.2fx", alert.Symbol, eval.Observed)
	}
	return fmt.Sprintf("%s alert triggered", alert.Symbol)
}
