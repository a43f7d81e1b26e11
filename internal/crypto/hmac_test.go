package crypto

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigningStringOrdersQueryKeys(t *testing.T) {
	q := url.Values{}
	q.Set("timestamp", "1700000000000")
	q.Set("symbol", "BTC_USDT")
	q.Set("interval", "60M")

	got := signingString("GET", "/api/v1/market/klines", q, "")
	assert.Equal(t,
		"GET/api/v1/market/klines?interval=60M&symbol=BTC_USDT&timestamp=1700000000000",
		got,
	)
}

func TestSigningStringAppendsBody(t *testing.T) {
	q := url.Values{}
	q.Set("timestamp", "1")

	got := signingString("POST", "/api/v1/trade/order", q, `{"symbol":"BTC_USDT"}`)
	assert.Equal(t,
		`POST/api/v1/trade/order?timestamp=1{"symbol":"BTC_USDT"}`,
		got,
	)
}

func TestSignedHeaders(t *testing.T) {
	auth := &HMACAuth{Key: "api-key", Secret: "api-secret"}
	q := url.Values{}
	q.Set("timestamp", "1700000000000")

	headers := auth.SignedHeaders("GET", "/api/v1/account/balances", q, "")
	assert.Equal(t, "api-key", headers["PIONEX-KEY"])
	require.Len(t, headers["PIONEX-SIGNATURE"], 64)

	// The signature is deterministic for identical inputs.
	again := auth.SignedHeaders("GET", "/api/v1/account/balances", q, "")
	assert.Equal(t, headers["PIONEX-SIGNATURE"], again["PIONEX-SIGNATURE"])

	// A different secret changes the signature.
	other := &HMACAuth{Key: "api-key", Secret: "other"}
	diff := other.SignedHeaders("GET", "/api/v1/account/balances", q, "")
	assert.NotEqual(t, headers["PIONEX-SIGNATURE"], diff["PIONEX-SIGNATURE"])
}

func TestHMACAuthStringRedacts(t *testing.T) {
	auth := &HMACAuth{Key: "abcdef", Secret: "topsecret"}
	s := auth.String()
	assert.NotContains(t, s, "topsecret")
	assert.Contains(t, s, "abcd****")
}
