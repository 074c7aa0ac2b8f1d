// Package services holds the business logic between the HTTP handlers and
// the license validator.
//
// LicenseService turns a license key into a notice: a status, the message a
// site owner sees next to the license field, and whether retrying can help.
// HealthService reports liveness and probes the status cache for readiness.
//
// Services take their collaborators as interfaces so handlers and tests can
// substitute them:
//
//	validator, _ := license.NewValidator(cfg, cache, logger)
//	svc := services.NewLicenseService(validator, logger)
//	resp, err := svc.GetStatus(ctx, "ABCD-1234")
package services
