package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeframe(t *testing.T) {
	d, err := ParseTimeframe("5m")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, d)

	d, err = ParseTimeframe("1d")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, d)

	_, err = ParseTimeframe("3w")
	require.Error(t, err)
}

func TestMergeCandles(t *testing.T) {
	series := []Candle{
		{Timestamp: 100, Close: 1},
		{Timestamp: 200, Close: 2},
		{Timestamp: 300, Close: 3},
	}
	fresh := []Candle{
		{Timestamp: 300, Close: 3.5}, // replaces the still-open bar
		{Timestamp: 400, Close: 4},   // appends
	}

	merged := MergeCandles(series, fresh)
	require.Len(t, merged, 4)
	assert.Equal(t, 3.5, merged[2].Close)
	assert.Equal(t, int64(400), merged[3].Timestamp)
}

func TestMergeCandlesIgnoresOlder(t *testing.T) {
	series := []Candle{{Timestamp: 200, Close: 2}, {Timestamp: 300, Close: 3}}
	fresh := []Candle{{Timestamp: 100, Close: 1}}

	merged := MergeCandles(series, fresh)
	require.Len(t, merged, 2)
	assert.Equal(t, int64(200), merged[0].Timestamp)
}

func TestMergeCandlesEmptySeries(t *testing.T) {
	fresh := []Candle{{Timestamp: 100, Close: 1}, {Timestamp: 200, Close: 2}}
	merged := MergeCandles(nil, fresh)
	require.Len(t, merged, 2)
}
