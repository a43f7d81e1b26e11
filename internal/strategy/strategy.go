// Package strategy defines the trading-strategy contract, a runtime registry,
// and the builtin indicator strategies.
package strategy

import (
	"github.com/alanyoungcy/tradebot/internal/domain"
)

// Strategy evaluates a candle series and reports entry/exit flags for the
// latest closed bar. Implementations must be stateless with respect to the
// series; all state lives in the candles and params.
type Strategy interface {
	Name() string
	Evaluate(candles []domain.Candle, params map[string]any) (domain.Signal, error)
}

// --------------------------------------------------------------------------
// Param helpers shared by the builtin strategies.
// --------------------------------------------------------------------------

// intParam reads an integer parameter, accepting the numeric types JSON and
// TOML decoding produce. Falls back to def when absent or unusable.
func intParam(params map[string]any, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}

// floatParam reads a float parameter with the same tolerance as intParam.
func floatParam(params map[string]any, key string, def float64) float64 {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return def
	}
}

// stringParam reads a string parameter, falling back to def.
func stringParam(params map[string]any, key, def string) string {
	if v, ok := params[key].(string); ok && v != "" {
		return v
	}
	return def
}

// closes extracts the close series from candles.
func closes(candles []domain.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
