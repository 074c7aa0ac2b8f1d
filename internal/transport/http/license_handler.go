package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"eddlicense/internal/infrastructure"
	"eddlicense/internal/middleware"
	"eddlicense/internal/services"
)

// maxRequestBody bounds POST /status payloads.
const maxRequestBody = 4 << 10

// LicenseHandler serves license status notices
type LicenseHandler struct {
	service   services.LicenseService
	validator *middleware.Validator
	logger    *slog.Logger
}

// NewLicenseHandler creates a new license handler
func NewLicenseHandler(service services.LicenseService, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		service:   service,
		validator: middleware.NewValidator(),
		logger:    logger.With(slog.String("handler", "license")),
	}
}

// StatusRequest is the payload of POST /api/license/status
type StatusRequest struct {
	LicenseKey string `json:"license_key" validate:"max=256"`
}

// Bind implements the render.Binder interface
func (s *StatusRequest) Bind(r *http.Request) error {
	return nil
}

// Routes returns a chi router for license endpoints
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/status", h.GetStatus)
	r.Post("/status", h.PostStatus)
	return r
}

// GetStatus handles GET /api/license/status?license=<key>
func (h *LicenseHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	h.serveStatus(w, r, StatusRequest{LicenseKey: r.URL.Query().Get("license")})
}

// PostStatus handles POST /api/license/status
func (h *LicenseHandler) PostStatus(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req StatusRequest
	if err := render.Bind(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "invalid license status request",
			slog.String("error", err.Error()))
		middleware.WriteProblem(w, r, middleware.ProblemFromStatus(http.StatusBadRequest,
			"Request body must be a JSON object with a license_key field", infrastructure.GetTraceID(r.Context())))
		return
	}
	h.serveStatus(w, r, req)
}

func (h *LicenseHandler) serveStatus(w http.ResponseWriter, r *http.Request, req StatusRequest) {
	ctx, span := otel.Tracer("license-handler").Start(r.Context(), "license_handler.get_status",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("component", "license_handler"),
		),
	)
	defer span.End()
	traceID := infrastructure.GetTraceID(ctx)

	if err := h.validator.Struct(req); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		problem := middleware.ProblemFromStatus(http.StatusUnprocessableEntity, err.Error(), traceID)
		var verr *middleware.ValidationError
		if errors.As(err, &verr) {
			problem.Errors = verr.Fields
		}
		middleware.WriteProblem(w, r, problem)
		return
	}

	resp, err := h.service.GetStatus(ctx, req.LicenseKey)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.logger.ErrorContext(ctx, "failed to get license status",
			slog.String("error", err.Error()))
		middleware.WriteProblem(w, r, middleware.ProblemFromStatus(http.StatusServiceUnavailable,
			"License status is temporarily unavailable", traceID))
		return
	}

	span.SetAttributes(
		attribute.String("license.status", resp.LicenseStatus),
		attribute.Bool("license.retryable", resp.Retryable),
	)
	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}
