package strategy

import (
	"fmt"

	"github.com/alanyoungcy/tradebot/internal/domain"
)

// RSI is a mean-reversion strategy: enter long when RSI crosses below the
// oversold line, exit long (and enter short) when it crosses above the
// overbought line.
//
// Params: period (default 14), oversold (default 30), overbought
// (default 70).
type RSI struct{}

// Name implements Strategy.
func (s *RSI) Name() string { return "rsi" }

// Evaluate implements Strategy.
func (s *RSI) Evaluate(candles []domain.Candle, params map[string]any) (domain.Signal, error) {
	period := intParam(params, "period", 14)
	oversold := floatParam(params, "oversold", 30)
	overbought := floatParam(params, "overbought", 70)

	if period < 2 {
		return domain.Signal{}, fmt.Errorf("strategy: rsi: invalid period %d", period)
	}
	if oversold >= overbought {
		return domain.Signal{}, fmt.Errorf("strategy: rsi: oversold %.0f must be below overbought %.0f", oversold, overbought)
	}

	// Need period bars to seed Wilder smoothing plus two RSI values.
	if len(candles) < period+2 {
		return domain.Signal{}, nil
	}

	rsi := wilderRSI(closes(candles), period)

	n := len(rsi) - 1
	crossedOversold := rsi[n] < oversold && rsi[n-1] >= oversold
	crossedOverbought := rsi[n] > overbought && rsi[n-1] <= overbought

	return domain.Signal{
		EnterLong:  crossedOversold,
		ExitLong:   crossedOverbought,
		EnterShort: crossedOverbought,
		ExitShort:  crossedOversold,
	}, nil
}

// wilderRSI computes the RSI series using Wilder's smoothing. The first
// period entries are zero while the averages seed.
func wilderRSI(prices []float64, period int) []float64 {
	out := make([]float64, len(prices))
	if len(prices) <= period {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		diff := prices[i] - prices[i-1]
		if diff > 0 {
			avgGain += diff
		} else {
			avgLoss -= diff
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(prices); i++ {
		diff := prices[i] - prices[i-1]
		var gain, loss float64
		if diff > 0 {
			gain = diff
		} else {
			loss = -diff
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// Compile-time interface check.
var _ Strategy = (*RSI)(nil)
