package admission

import (
	"crypto/sha256"
	"encoding/hex"
)

// DeriveClientID composes a stable client identity from the network
// origin and a coarse request fingerprint (user agent plus accept
// language), so quota accounting and cache context keys survive across
// requests from the same caller without requiring authentication. The
// identity is derived on every request and never stored.
func DeriveClientID(ip, userAgent, acceptLanguage string) string {
	if ip == "" {
		ip = "unknown"
	}

	sum := sha256.Sum256([]byte(userAgent + "|" + acceptLanguage))
	return ip + "-" + hex.EncodeToString(sum[:])[:16]
}
