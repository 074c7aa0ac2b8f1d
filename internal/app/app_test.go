package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"eddlicense/internal/config"
	"eddlicense/internal/infrastructure"
	"eddlicense/internal/license"
	"eddlicense/internal/services"
)

type mockRemote struct {
	mock.Mock
}

func (m *mockRemote) Do(ctx context.Context, action license.Action, key string) (license.Status, error) {
	args := m.Called(ctx, action, key)
	return args.Get(0).(license.Status), args.Error(1)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.License.Server = "https://shop.example.com"
	cfg.License.ItemName = "Plugin"
	cfg.License.SiteURL = "https://customer.example.org"
	cfg.Cache.SweepInterval = 0
	cfg.Server.ShutdownTimeout = 5 * time.Second
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, remote license.RemoteClient) *Application {
	t.Helper()
	application, err := NewApplication(context.Background(), cfg,
		WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))),
		WithRemoteClient(remote),
		WithTelemetryOptions(infrastructure.WithRegistry(promclient.NewRegistry())),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close(context.Background()) })
	return application
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestApplication_LicenseStatus(t *testing.T) {
	remote := &mockRemote{}
	remote.On("Do", mock.Anything, license.ActionActivate, "ABCD-1234").Return(license.StatusInvalid, nil).Once()

	application := newTestApp(t, testConfig(), remote)

	for i := 0; i < 3; i++ {
		rec := get(t, application.Router, "/api/license/status?license=ABCD-1234")
		require.Equal(t, http.StatusOK, rec.Code)

		var body services.LicenseStatusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "invalid", body.LicenseStatus)
		assert.Equal(t, services.MessageInvalid, body.Message)
		assert.NotEmpty(t, body.TraceID)
		assert.Equal(t, body.TraceID, rec.Header().Get("X-Request-ID"))
	}
	remote.AssertExpectations(t)

	rec := get(t, application.Router, "/api/license/status")
	assert.Contains(t, rec.Body.String(), services.StateNoLicense)
}

func TestApplication_NoResponseIsRetryable(t *testing.T) {
	remote := &mockRemote{}
	remote.On("Do", mock.Anything, license.ActionActivate, "VALID-KEY").
		Return(license.Status(""), license.ErrTransport).Once()
	remote.On("Do", mock.Anything, license.ActionActivate, "VALID-KEY").Return(license.StatusValid, nil).Once()
	remote.On("Do", mock.Anything, license.ActionCheck, "VALID-KEY").Return(license.StatusValid, nil).Once()

	application := newTestApp(t, testConfig(), remote)

	rec := get(t, application.Router, "/api/license/status?license=VALID-KEY")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"license_status":"no_response"`)
	assert.Contains(t, rec.Body.String(), `"retryable":true`)

	rec = get(t, application.Router, "/api/license/status?license=VALID-KEY")
	assert.Contains(t, rec.Body.String(), `"license_status":"valid"`)
	remote.AssertExpectations(t)
}

func TestApplication_Routes(t *testing.T) {
	remote := &mockRemote{}
	remote.On("Do", mock.Anything, license.ActionActivate, "KEY").Return(license.StatusInvalid, nil)
	application := newTestApp(t, testConfig(), remote)

	t.Run("health", func(t *testing.T) {
		rec := get(t, application.Router, "/api/health")
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = get(t, application.Router, "/api/health/ready")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"backend":"memory"`)
	})

	t.Run("metrics", func(t *testing.T) {
		get(t, application.Router, "/api/license/status?license=KEY")

		rec := get(t, application.Router, "/metrics")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "license_resolve_total")
		assert.Contains(t, rec.Body.String(), "license_remote_requests_total")
		assert.Contains(t, rec.Body.String(), "http_requests_total")
	})

	t.Run("unknown route", func(t *testing.T) {
		rec := get(t, application.Router, "/api/nope")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	})

	t.Run("server settings", func(t *testing.T) {
		assert.Equal(t, ":8080", application.Server.Addr)
		assert.Equal(t, 15*time.Second, application.Server.ReadTimeout)
	})
}

func TestApplication_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RateLimit.RPS = 0.001
	cfg.Security.RateLimit.Burst = 1

	application := newTestApp(t, cfg, &mockRemote{})

	assert.Equal(t, http.StatusOK, get(t, application.Router, "/api/health").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(t, application.Router, "/api/health").Code)
	assert.Equal(t, http.StatusOK, get(t, application.Router, "/metrics").Code)
}

func TestApplication_RedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig()
	cfg.Cache.Backend = "redis"
	cfg.Cache.Redis.Address = mr.Addr()

	remote := &mockRemote{}
	remote.On("Do", mock.Anything, license.ActionActivate, "ABCD-1234").Return(license.StatusInvalid, nil).Once()
	application := newTestApp(t, cfg, remote)

	rec := get(t, application.Router, "/api/license/status?license=ABCD-1234")
	require.Equal(t, http.StatusOK, rec.Code)

	handle := license.Handle("ABCD-1234")
	assert.True(t, mr.Exists("eddlicense:license_status_"+handle))
	assert.True(t, mr.Exists("eddlicense:license_try_"+handle))

	rec = get(t, application.Router, "/api/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"backend":"redis"`)

	mr.Close()
	rec = get(t, application.Router, "/api/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNewApplication_Errors(t *testing.T) {
	t.Run("redis unreachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		cfg := testConfig()
		cfg.Cache.Backend = "redis"
		cfg.Cache.Redis.Address = addr

		_, err := NewApplication(context.Background(), cfg,
			WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))),
			WithTelemetryOptions(infrastructure.WithRegistry(promclient.NewRegistry())))
		assert.Error(t, err)
	})

	t.Run("unsupported trace exporter", func(t *testing.T) {
		cfg := testConfig()
		cfg.Telemetry.EnableTracing = true
		cfg.Telemetry.TraceExporter = "zipkin"

		_, err := NewApplication(context.Background(), cfg,
			WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))))
		assert.Error(t, err)
	})

	t.Run("logger from config", func(t *testing.T) {
		cfg := testConfig()
		cfg.Logging.Output = "file"
		cfg.Logging.FilePath = t.TempDir() + "/logs/eddlicense.log"

		application, err := NewApplication(context.Background(), cfg,
			WithRemoteClient(&mockRemote{}),
			WithTelemetryOptions(infrastructure.WithRegistry(promclient.NewRegistry())))
		require.NoError(t, err)
		assert.NoError(t, application.Close(context.Background()))
		assert.FileExists(t, cfg.Logging.FilePath)
	})
}

func TestApplication_Serve(t *testing.T) {
	remote := &mockRemote{}
	remote.On("Do", mock.Anything, license.ActionActivate, "ABCD-1234").Return(license.StatusInvalid, nil).Once()
	application := newTestApp(t, testConfig(), remote)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Serve(ctx, ln) }()

	url := fmt.Sprintf("http://%s/api/license/status?license=ABCD-1234", ln.Addr())
	resp, err := http.Get(url)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"license_status":"invalid"`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}

	_, err = http.Get(url)
	assert.Error(t, err)
}
