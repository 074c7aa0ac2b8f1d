package license

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// HandleLength is the number of hex characters kept from the key digest.
const HandleLength = 10

// NormalizeKey trims the key and drops every character outside
// [A-Za-z0-9_-]. Well-formed keys are returned unchanged.
func NormalizeKey(raw string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '-', r == '_':
			return r
		}
		return -1
	}, strings.TrimSpace(raw))
}

// Handle derives the cache handle of a normalized license key.
func Handle(key string) string {
	sum := blake2b.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:HandleLength]
}

// MaskLicenseKey masks a license key for logs (abcd****wxyz).
func MaskLicenseKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

func statusKey(handle string) string {
	return "license_status_" + handle
}

func tryKey(handle string) string {
	return "license_try_" + handle
}
