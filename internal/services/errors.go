package services

import "errors"

// ErrResolverUnavailable is returned when a service has no validator to consult.
var ErrResolverUnavailable = errors.New("license validator not configured")
