package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// HMACAuth holds the credentials required for signed requests against the
// Pionex REST API.
type HMACAuth struct {
	Key    string // API key
	Secret string // API secret
}

// SignedHeaders returns the HTTP headers for an authenticated request.
// The signature is HMAC-SHA256(secret, METHOD+PATH+?+sortedQuery+body)
// encoded as lowercase hex. query must already include the timestamp
// parameter.
//
// Returned header keys:
//   - PIONEX-KEY
//   - PIONEX-SIGNATURE
func (h *HMACAuth) SignedHeaders(method, path string, query url.Values, body string) map[string]string {
	sig := hmacSHA256Hex([]byte(h.Secret), signingString(method, path, query, body))
	return map[string]string{
		"PIONEX-KEY":       h.Key,
		"PIONEX-SIGNATURE": sig,
	}
}

// signingString builds METHOD+PATH+?+query with the query parameters joined
// in ascending ASCII key order, followed by the raw body for write requests.
func signingString(method, path string, query url.Values, body string) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+query.Get(k))
	}

	return method + path + "?" + strings.Join(parts, "&") + body
}

// hmacSHA256Hex computes HMAC-SHA256 of message using key and returns the
// result as a lowercase hex string.
func hmacSHA256Hex(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// String returns a redacted representation suitable for logging.
func (h *HMACAuth) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("HMACAuth{key=%s, secret=%s}", redact(h.Key), redact(h.Secret))
}
