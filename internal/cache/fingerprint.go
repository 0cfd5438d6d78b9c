package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// Normalize lowercases and trims the query for fingerprinting. The
// fingerprint is intentionally coarse: no semantic equivalence is attempted
// at this layer.
func Normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Fingerprint returns the deterministic cache key for a (query, k, filter)
// triple. canonicalFilter is the filter's canonical rendering ("" for none).
func Fingerprint(query string, k int, canonicalFilter string) string {
	payload := fmt.Sprintf("q:%s|k:%d|f:%s", Normalize(query), k, canonicalFilter)
	sum := md5.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}
