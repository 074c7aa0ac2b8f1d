package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"eddlicense/internal/middleware"
	"eddlicense/internal/services"
)

// MockLicenseService implements the LicenseService interface for testing
type MockLicenseService struct {
	mock.Mock
}

func (m *MockLicenseService) GetStatus(ctx context.Context, key string) (*services.LicenseStatusResponse, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.LicenseStatusResponse), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newLicenseRouter(svc services.LicenseService) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Mount("/api/license", NewLicenseHandler(svc, discardLogger()).Routes())
	return r
}

func TestLicenseHandler_GetStatus(t *testing.T) {
	svc := &MockLicenseService{}
	svc.On("GetStatus", mock.Anything, "ABCD-1234").Return(&services.LicenseStatusResponse{
		LicenseStatus: "no_response",
		Message:       services.MessageNoResponse,
		Retryable:     true,
		Handle:        "0123456789",
	}, nil).Once()

	rec := httptest.NewRecorder()
	newLicenseRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/license/status?license=ABCD-1234", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body services.LicenseStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "no_response", body.LicenseStatus)
	assert.True(t, body.Retryable)
	assert.Equal(t, "0123456789", body.Handle)
	svc.AssertExpectations(t)
}

func TestLicenseHandler_GetStatusWithoutKey(t *testing.T) {
	svc := &MockLicenseService{}
	svc.On("GetStatus", mock.Anything, "").Return(&services.LicenseStatusResponse{
		LicenseStatus: services.StateNoLicense,
		Message:       services.MessageNoLicense,
	}, nil).Once()

	rec := httptest.NewRecorder()
	newLicenseRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/license/status", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), services.StateNoLicense)
}

func TestLicenseHandler_PostStatus(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		svc := &MockLicenseService{}
		svc.On("GetStatus", mock.Anything, "VALID-KEY").Return(&services.LicenseStatusResponse{
			LicenseStatus: "valid",
			Message:       services.MessageValid,
		}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/license/status", strings.NewReader(`{"license_key":"VALID-KEY"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		newLicenseRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"license_status":"valid"`)
		svc.AssertExpectations(t)
	})

	t.Run("malformed json", func(t *testing.T) {
		svc := &MockLicenseService{}
		req := httptest.NewRequest(http.MethodPost, "/api/license/status", strings.NewReader(`{"license_key":`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		newLicenseRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, middleware.ProblemContentType, rec.Header().Get("Content-Type"))
		svc.AssertNotCalled(t, "GetStatus", mock.Anything, mock.Anything)
	})

	t.Run("key too long", func(t *testing.T) {
		svc := &MockLicenseService{}
		payload := `{"license_key":"` + strings.Repeat("A", 300) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/api/license/status", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		newLicenseRouter(svc).ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		var problem middleware.Problem
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
		require.Len(t, problem.Errors, 1)
		assert.Equal(t, "license_key", problem.Errors[0].Field)
		assert.NotEmpty(t, problem.Trace)
		svc.AssertNotCalled(t, "GetStatus", mock.Anything, mock.Anything)
	})

	t.Run("oversized body", func(t *testing.T) {
		svc := &MockLicenseService{}
		payload := `{"license_key":"` + strings.Repeat("A", maxRequestBody) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/api/license/status", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		newLicenseRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLicenseHandler_ServiceError(t *testing.T) {
	svc := &MockLicenseService{}
	svc.On("GetStatus", mock.Anything, "KEY").Return(nil, errors.New("backend down")).Once()

	rec := httptest.NewRecorder()
	newLicenseRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/license/status?license=KEY", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var problem middleware.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "/errors/service-unavailable", problem.Type)
	assert.NotContains(t, rec.Body.String(), "backend down")
}
