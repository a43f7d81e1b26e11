package domain

import (
	"fmt"
	"time"
)

// Candle is one OHLCV bar. Timestamp is the open time in Unix seconds.
type Candle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// timeframes maps the config timeframe strings to their period length.
var timeframes = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
}

// ParseTimeframe returns the period length for a timeframe string such as
// "5m" or "1h".
func ParseTimeframe(tf string) (time.Duration, error) {
	d, ok := timeframes[tf]
	if !ok {
		return 0, fmt.Errorf("domain: unknown timeframe %q", tf)
	}
	return d, nil
}

// MergeCandles merges fresh candles into series, replacing bars with matching
// timestamps and appending strictly newer ones. Both inputs must already be
// sorted ascending by timestamp; the result stays sorted.
func MergeCandles(series, fresh []Candle) []Candle {
	byTS := make(map[int64]int, len(series))
	for i, c := range series {
		byTS[c.Timestamp] = i
	}
	for _, c := range fresh {
		if i, ok := byTS[c.Timestamp]; ok {
			series[i] = c
			continue
		}
		if len(series) == 0 || c.Timestamp > series[len(series)-1].Timestamp {
			series = append(series, c)
			byTS[c.Timestamp] = len(series) - 1
		}
	}
	return series
}
