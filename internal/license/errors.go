package license

import "errors"

var (
	// ErrNoLicense is returned when the key is empty after normalization.
	// Callers render it as the "no license provided" state.
	ErrNoLicense = errors.New("no license key provided")

	// ErrNoCache is returned by NewValidator without a StatusCache.
	ErrNoCache = errors.New("license validator requires a status cache")

	// ErrIncompleteConfig is returned when the server or item name is missing.
	ErrIncompleteConfig = errors.New("license server and item name are required")
)
