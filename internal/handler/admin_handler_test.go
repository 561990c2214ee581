package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/nutrifact/console/internal/backend"
	"github.com/nutrifact/console/internal/models"
	"github.com/nutrifact/console/internal/service"
)

// mockAdminService is a mock implementation of AdminService for testing.
// Authorization decisions run through the real rules; only the backend
// reads are stubbed.
type mockAdminService struct {
	profile       *models.AdminProfile
	profileErr    error
	listUsersFunc func(ctx context.Context, accessToken string, skip, limit int) ([]models.User, backend.PageInfo, error)
}

func (m *mockAdminService) Profile(ctx context.Context, accessToken string) (*models.AdminProfile, error) {
	return m.profile, m.profileErr
}

func (m *mockAdminService) Authorize(profile *models.AdminProfile, authenticated bool, perm models.Permission) service.Decision {
	return service.NewAdminService(nil).Authorize(profile, authenticated, perm)
}

func (m *mockAdminService) ListUsers(ctx context.Context, accessToken string, skip, limit int) ([]models.User, backend.PageInfo, error) {
	if m.listUsersFunc != nil {
		return m.listUsersFunc(ctx, accessToken, skip, limit)
	}
	return []models.User{{ID: uuid.New()}}, backend.PageInfo{Total: 1, Limit: 25}, nil
}

func (m *mockAdminService) Analytics(ctx context.Context, accessToken string) (*service.AnalyticsSnapshot, error) {
	return &service.AnalyticsSnapshot{TotalUsers: 42}, nil
}

func (m *mockAdminService) Monitoring(ctx context.Context, accessToken string) (*service.MonitoringSnapshot, error) {
	return &service.MonitoringSnapshot{BackendHealthy: true}, nil
}

func (m *mockAdminService) GetSettings(ctx context.Context, accessToken string) (*service.AdminSettings, error) {
	return &service.AdminSettings{SignupsEnabled: true}, nil
}

func (m *mockAdminService) UpdateSettings(ctx context.Context, accessToken string, settings service.AdminSettings) (*service.AdminSettings, error) {
	return &settings, nil
}

func (m *mockAdminService) ExportUsage(ctx context.Context, accessToken string, w io.Writer) error {
	_, err := w.Write([]byte("gzip-bytes"))
	return err
}

func serveAdmin(t *testing.T, svc service.AdminService, target string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	handler := NewAdminHandler(svc)

	req, state := newSessionRequest(t, http.MethodGet, target, nil)
	if authed {
		state.SetTokens("at", "rt")
		state.SetUserID("user-1")
	}

	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)
	return rec
}

func TestAdminHandler_PermissionGating(t *testing.T) {
	usersOnly := &mockAdminService{
		profile: &models.AdminProfile{
			IsAdmin:     true,
			Permissions: []models.Permission{models.PermUsersRead},
		},
	}

	t.Run("anonymous callers get 401", func(t *testing.T) {
		rec := serveAdmin(t, usersOnly, "/users", false)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Status = %d, want 401", rec.Code)
		}
	})

	t.Run("non-admin users get 403", func(t *testing.T) {
		svc := &mockAdminService{profile: &models.AdminProfile{IsAdmin: false}}
		rec := serveAdmin(t, svc, "/users", true)
		if rec.Code != http.StatusForbidden {
			t.Errorf("Status = %d, want 403", rec.Code)
		}
	})

	t.Run("granted permission reaches the handler", func(t *testing.T) {
		rec := serveAdmin(t, usersOnly, "/users", true)
		if rec.Code != http.StatusOK {
			t.Errorf("Status = %d, want 200. Body: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("missing permission on another route gets 403", func(t *testing.T) {
		rec := serveAdmin(t, usersOnly, "/settings", true)
		if rec.Code != http.StatusForbidden {
			t.Errorf("Status = %d, want 403", rec.Code)
		}
	})

	t.Run("super admin passes every gate", func(t *testing.T) {
		super := &mockAdminService{
			profile: &models.AdminProfile{IsAdmin: true, IsSuperAdmin: true},
		}
		for _, target := range []string{"/me", "/users", "/analytics", "/monitoring", "/settings", "/usage/export"} {
			rec := serveAdmin(t, super, target, true)
			if rec.Code != http.StatusOK {
				t.Errorf("GET %s status = %d, want 200", target, rec.Code)
			}
		}
	})
}

func TestAdminHandler_ExportUsageHeaders(t *testing.T) {
	svc := &mockAdminService{
		profile: &models.AdminProfile{IsAdmin: true, IsSuperAdmin: true},
	}
	rec := serveAdmin(t, svc, "/usage/export", true)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/gzip" {
		t.Errorf("Content-Type = %q, want application/gzip", got)
	}
	if rec.Header().Get("Content-Disposition") == "" {
		t.Error("Content-Disposition header missing")
	}
}
