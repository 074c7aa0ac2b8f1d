// Package http implements the HTTP handlers of the license status service.
// Handlers stay thin: they parse and validate the request, call a service,
// and render either the service response or an RFC 7807 problem document.
//
// # Routes
//
//	GET  /api/license/status?license=<key>   license notice
//	POST /api/license/status                 same, key in {"license_key": "..."}
//	GET  /api/health                         liveness
//	GET  /api/health/ready                   readiness, probes the status cache
//
// A no_response status is a normal outcome and is served with 200 and
// "retryable": true.
package http
