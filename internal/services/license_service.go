package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"eddlicense/internal/infrastructure"
	"eddlicense/internal/license"
)

// StateNoLicense is reported when no usable license key was supplied.
const StateNoLicense = "no_license"

// Notice messages shown next to the license field.
const (
	MessageNoLicense  = "Entering your license key is mandatory to get the product updates."
	MessageValid      = "Your license is valid and active."
	MessageInvalid    = "Your license is invalid."
	MessageInactive   = "Your license is valid but inactive."
	MessageNoResponse = "The remote server did not return a valid response. You can retry by hitting the Save button again."
)

// StatusResolver resolves the status of a license key.
type StatusResolver interface {
	ResolveStatus(ctx context.Context, license string) (license.Status, error)
}

// LicenseService turns license keys into status notices.
type LicenseService interface {
	GetStatus(ctx context.Context, key string) (*LicenseStatusResponse, error)
}

// LicenseStatusResponse is the notice for one license key
type LicenseStatusResponse struct {
	LicenseStatus string    `json:"license_status"` // valid|invalid|inactive|no_response|no_license|<vendor status>
	Message       string    `json:"message"`
	Retryable     bool      `json:"retryable"`
	Handle        string    `json:"handle,omitempty"`
	TraceID       string    `json:"trace_id"`
	Timestamp     time.Time `json:"timestamp"`
}

type licenseService struct {
	resolver StatusResolver
	logger   *slog.Logger
	now      func() time.Time
}

// NewLicenseService creates a LicenseService backed by resolver
func NewLicenseService(resolver StatusResolver, logger *slog.Logger) LicenseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &licenseService{
		resolver: resolver,
		logger:   logger.With(slog.String("service", "license")),
		now:      time.Now,
	}
}

// GetStatus resolves key and describes the result. A missing key is not an
// error; it produces the no_license notice without contacting the server.
func (s *licenseService) GetStatus(ctx context.Context, key string) (*LicenseStatusResponse, error) {
	ctx = infrastructure.EnsureTraceID(ctx)
	resp := &LicenseStatusResponse{
		TraceID:   infrastructure.GetTraceID(ctx),
		Timestamp: s.now().UTC(),
	}

	normalized := license.NormalizeKey(key)
	if normalized == "" {
		resp.LicenseStatus = StateNoLicense
		resp.Message = MessageNoLicense
		return resp, nil
	}
	if s.resolver == nil {
		return nil, ErrResolverUnavailable
	}

	status, err := s.resolver.ResolveStatus(ctx, normalized)
	if errors.Is(err, license.ErrNoLicense) {
		resp.LicenseStatus = StateNoLicense
		resp.Message = MessageNoLicense
		return resp, nil
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "license status resolution failed",
			slog.String("license_key", license.MaskLicenseKey(normalized)),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("resolve license status: %w", err)
	}

	resp.Handle = license.Handle(normalized)
	resp.LicenseStatus = status.String()
	resp.Message, resp.Retryable = notice(status)
	if !status.IsKnown() {
		s.logger.WarnContext(ctx, "licensing server reported an unrecognized status",
			slog.String("handle", resp.Handle),
			slog.String("status", resp.LicenseStatus),
		)
	}

	s.logger.InfoContext(ctx, "license status served",
		slog.String("handle", resp.Handle),
		slog.String("status", resp.LicenseStatus),
	)
	return resp, nil
}

func notice(status license.Status) (string, bool) {
	switch status {
	case license.StatusValid:
		return MessageValid, false
	case license.StatusInvalid:
		return MessageInvalid, false
	case license.StatusInactive:
		return MessageInactive, false
	case license.StatusNoResponse:
		return MessageNoResponse, true
	default:
		return fmt.Sprintf("Your license status is %s.", status), false
	}
}
