package strategy

import (
	"fmt"

	"github.com/alanyoungcy/tradebot/internal/domain"
)

// MACrossover signals on moving-average crossovers: golden cross enters long
// and exits short, death cross exits long and enters short.
//
// Params: fast_period (default 9), slow_period (default 21), ma_type
// ("SMA" or "EMA", default "EMA").
type MACrossover struct{}

// Name implements Strategy.
func (s *MACrossover) Name() string { return "ma_crossover" }

// Evaluate implements Strategy.
func (s *MACrossover) Evaluate(candles []domain.Candle, params map[string]any) (domain.Signal, error) {
	fastPeriod := intParam(params, "fast_period", 9)
	slowPeriod := intParam(params, "slow_period", 21)
	maType := stringParam(params, "ma_type", "EMA")

	if fastPeriod < 2 || slowPeriod <= fastPeriod {
		return domain.Signal{}, fmt.Errorf("strategy: ma_crossover: invalid periods fast=%d slow=%d", fastPeriod, slowPeriod)
	}

	// Need one bar beyond the slow period to compare against the previous bar.
	if len(candles) < slowPeriod+1 {
		return domain.Signal{}, nil
	}

	prices := closes(candles)

	var fast, slow []float64
	if maType == "SMA" {
		fast = sma(prices, fastPeriod)
		slow = sma(prices, slowPeriod)
	} else {
		fast = ema(prices, fastPeriod)
		slow = ema(prices, slowPeriod)
	}

	n := len(prices) - 1
	goldenCross := fast[n] > slow[n] && fast[n-1] <= slow[n-1]
	deathCross := fast[n] < slow[n] && fast[n-1] >= slow[n-1]

	return domain.Signal{
		EnterLong:  goldenCross,
		ExitLong:   deathCross,
		EnterShort: deathCross,
		ExitShort:  goldenCross,
	}, nil
}

// sma returns the simple moving average series. Positions before the window
// fills hold the running mean of the available bars.
func sma(prices []float64, period int) []float64 {
	out := make([]float64, len(prices))
	var sum float64
	for i, p := range prices {
		sum += p
		if i >= period {
			sum -= prices[i-period]
			out[i] = sum / float64(period)
		} else {
			out[i] = sum / float64(i+1)
		}
	}
	return out
}

// ema returns the exponential moving average series seeded with the first
// price.
func ema(prices []float64, period int) []float64 {
	out := make([]float64, len(prices))
	if len(prices) == 0 {
		return out
	}
	alpha := 2.0 / (float64(period) + 1)
	out[0] = prices[0]
	for i := 1; i < len(prices); i++ {
		out[i] = alpha*prices[i] + (1-alpha)*out[i-1]
	}
	return out
}

// Compile-time interface check.
var _ Strategy = (*MACrossover)(nil)
