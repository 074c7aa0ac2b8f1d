package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"eddlicense/internal/infrastructure"
	"eddlicense/internal/license"
)

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) ResolveStatus(ctx context.Context, key string) (license.Status, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(license.Status), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestLicenseService_GetStatus(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		status    license.Status
		message   string
		retryable bool
	}{
		{"valid", license.StatusValid, MessageValid, false},
		{"invalid", license.StatusInvalid, MessageInvalid, false},
		{"inactive", license.StatusInactive, MessageInactive, false},
		{"no response", license.StatusNoResponse, MessageNoResponse, true},
		{"vendor status", license.Status("expired"), "Your license status is expired.", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &mockResolver{}
			resolver.On("ResolveStatus", mock.Anything, "ABCD-1234").Return(tt.status, nil).Once()

			svc := NewLicenseService(resolver, discardLogger()).(*licenseService)
			svc.now = func() time.Time { return fixed }

			ctx := infrastructure.WithTraceID(context.Background(), "trace-1")
			resp, err := svc.GetStatus(ctx, "  ABCD-1234 ")
			require.NoError(t, err)

			assert.Equal(t, string(tt.status), resp.LicenseStatus)
			assert.Equal(t, tt.message, resp.Message)
			assert.Equal(t, tt.retryable, resp.Retryable)
			assert.Equal(t, license.Handle("ABCD-1234"), resp.Handle)
			assert.Equal(t, "trace-1", resp.TraceID)
			assert.Equal(t, fixed, resp.Timestamp)
			resolver.AssertExpectations(t)
		})
	}
}

func TestLicenseService_TraceID(t *testing.T) {
	t.Run("generated when absent", func(t *testing.T) {
		var seen string
		resolver := &mockResolver{}
		resolver.On("ResolveStatus", mock.MatchedBy(func(ctx context.Context) bool {
			seen = infrastructure.GetTraceID(ctx)
			return seen != ""
		}), "ABCD-1234").Return(license.StatusValid, nil).Once()

		resp, err := NewLicenseService(resolver, discardLogger()).GetStatus(context.Background(), "ABCD-1234")
		require.NoError(t, err)
		assert.NotEmpty(t, resp.TraceID)
		assert.Equal(t, seen, resp.TraceID)
		resolver.AssertExpectations(t)
	})

	t.Run("no license response carries one too", func(t *testing.T) {
		resp, err := NewLicenseService(&mockResolver{}, discardLogger()).GetStatus(context.Background(), "")
		require.NoError(t, err)
		assert.NotEmpty(t, resp.TraceID)
	})
}

func TestLicenseService_NoLicense(t *testing.T) {
	for _, key := range []string{"", "   ", "!!!"} {
		resolver := &mockResolver{}
		svc := NewLicenseService(resolver, discardLogger())

		resp, err := svc.GetStatus(context.Background(), key)
		require.NoError(t, err)
		assert.Equal(t, StateNoLicense, resp.LicenseStatus)
		assert.Equal(t, MessageNoLicense, resp.Message)
		assert.False(t, resp.Retryable)
		assert.Empty(t, resp.Handle)
		resolver.AssertNotCalled(t, "ResolveStatus", mock.Anything, mock.Anything)
	}
}

func TestLicenseService_ResolverErrors(t *testing.T) {
	t.Run("no license from resolver", func(t *testing.T) {
		resolver := &mockResolver{}
		resolver.On("ResolveStatus", mock.Anything, "KEY").Return(license.Status(""), license.ErrNoLicense)

		resp, err := NewLicenseService(resolver, discardLogger()).GetStatus(context.Background(), "KEY")
		require.NoError(t, err)
		assert.Equal(t, StateNoLicense, resp.LicenseStatus)
	})

	t.Run("unexpected error", func(t *testing.T) {
		boom := errors.New("boom")
		resolver := &mockResolver{}
		resolver.On("ResolveStatus", mock.Anything, "KEY").Return(license.Status(""), boom)

		_, err := NewLicenseService(resolver, discardLogger()).GetStatus(context.Background(), "KEY")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("no resolver", func(t *testing.T) {
		_, err := NewLicenseService(nil, nil).GetStatus(context.Background(), "KEY")
		assert.ErrorIs(t, err, ErrResolverUnavailable)
	})
}

func TestLicenseService_WithValidator(t *testing.T) {
	resolver := &mockRemote{}
	resolver.On("Do", mock.Anything, license.ActionActivate, "ABCD-1234").Return(license.StatusInvalid, nil).Once()

	cache := license.NewMemoryCache(license.WithSweepInterval(0))
	defer cache.Stop()

	v, err := license.NewValidator(license.Config{}, cache, discardLogger(), license.WithRemoteClient(resolver))
	require.NoError(t, err)
	svc := NewLicenseService(v, discardLogger())

	for i := 0; i < 2; i++ {
		resp, err := svc.GetStatus(context.Background(), "ABCD-1234")
		require.NoError(t, err)
		assert.Equal(t, "invalid", resp.LicenseStatus)
		assert.Equal(t, MessageInvalid, resp.Message)
	}
	resolver.AssertExpectations(t)
}

type mockRemote struct {
	mock.Mock
}

func (m *mockRemote) Do(ctx context.Context, action license.Action, key string) (license.Status, error) {
	args := m.Called(ctx, action, key)
	return args.Get(0).(license.Status), args.Error(1)
}
