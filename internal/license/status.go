package license

// Status is the state of a license as reported by the licensing server.
type Status string

const (
	StatusValid    Status = "valid"
	StatusInvalid  Status = "invalid"
	StatusInactive Status = "inactive"

	// StatusNoResponse means the server could not be reached or answered with
	// something unusable. It is never cached.
	StatusNoResponse Status = "no_response"
)

// IsAuthoritative reports whether s is a server verdict that may be cached.
func (s Status) IsAuthoritative() bool {
	return s != "" && s != StatusNoResponse
}

// IsKnown reports whether s is one of the statuses the service renders with a
// dedicated notice. The server may report others (expired, disabled, ...).
func (s Status) IsKnown() bool {
	switch s {
	case StatusValid, StatusInvalid, StatusInactive, StatusNoResponse:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}
