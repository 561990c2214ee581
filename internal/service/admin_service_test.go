package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/nutrifact/console/internal/models"
)

func TestAdminService_Authorize(t *testing.T) {
	svc := NewAdminService(nil)

	admin := &models.AdminProfile{
		IsAdmin:     true,
		Permissions: []models.Permission{models.PermUsersRead},
	}
	superAdmin := &models.AdminProfile{IsAdmin: true, IsSuperAdmin: true}

	tests := []struct {
		name          string
		profile       *models.AdminProfile
		authenticated bool
		perm          models.Permission
		wantAllowed   bool
		wantRedirect  string
	}{
		{
			name:          "anonymous goes to login",
			profile:       nil,
			authenticated: false,
			wantAllowed:   false,
			wantRedirect:  "/auth/login",
		},
		{
			name:          "authenticated non-admin goes to dashboard",
			profile:       &models.AdminProfile{IsAdmin: false},
			authenticated: true,
			wantAllowed:   false,
			wantRedirect:  "/dashboard",
		},
		{
			name:          "admin with the permission is allowed",
			profile:       admin,
			authenticated: true,
			perm:          models.PermUsersRead,
			wantAllowed:   true,
		},
		{
			name:          "admin without the permission goes to dashboard",
			profile:       admin,
			authenticated: true,
			perm:          models.PermSettingsWrite,
			wantAllowed:   false,
			wantRedirect:  "/dashboard",
		},
		{
			name:          "super admin holds every permission",
			profile:       superAdmin,
			authenticated: true,
			perm:          models.PermUsageExport,
			wantAllowed:   true,
		},
		{
			name:          "admin route without a specific permission",
			profile:       admin,
			authenticated: true,
			perm:          "",
			wantAllowed:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := svc.Authorize(tt.profile, tt.authenticated, tt.perm)
			if d.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", d.Allowed, tt.wantAllowed)
			}
			if d.RedirectTo != tt.wantRedirect {
				t.Errorf("RedirectTo = %q, want %q", d.RedirectTo, tt.wantRedirect)
			}
		})
	}
}

func TestAdminService_Profile(t *testing.T) {
	ctx := context.Background()

	api, _ := testBackendClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/admin/me" {
			http.NotFound(w, r)
			return
		}
		w.Write(envelope(map[string]any{
			"is_admin":    true,
			"permissions": []string{"admin:users:read", "admin:made-up:later", "admin:settings:write"},
		}))
	}))
	svc := NewAdminService(api)

	profile, err := svc.Profile(ctx, "token")
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if !profile.IsAdmin {
		t.Error("IsAdmin = false, want true")
	}
	if !profile.HasPermission(models.PermUsersRead) {
		t.Error("expected admin:users:read membership")
	}
	if !profile.HasPermission(models.PermSettingsWrite) {
		t.Error("expected admin:settings:write membership")
	}
	// Unknown strings are carried but never grant a known capability.
	if profile.HasPermission(models.PermUsageExport) {
		t.Error("unexpected admin:usage:export membership")
	}
}

func TestAdminService_ExportUsage(t *testing.T) {
	ctx := context.Background()

	api, _ := testBackendClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/admin/usage/export" {
			http.NotFound(w, r)
			return
		}
		w.Write(envelope([]usageExportRow{
			{UserID: "u1", Email: "a@example.com", Plan: "pro", Requests: 4200, Period: "2026-08"},
			{UserID: "u2", Email: "b@example.com", Plan: "free", Requests: 17, Period: "2026-08"},
		}))
	}))
	svc := NewAdminService(api)

	var buf bytes.Buffer
	if err := svc.ExportUsage(ctx, "token", &buf); err != nil {
		t.Fatalf("ExportUsage() error = %v", err)
	}

	gz, err := gzip.NewReader(&buf)
	if err != nil {
		t.Fatalf("output is not gzip: %v", err)
	}
	records, err := csv.NewReader(gz).ReadAll()
	if err != nil {
		t.Fatalf("output is not CSV: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(records))
	}
	if records[0][0] != "user_id" {
		t.Errorf("header = %v, want user_id first", records[0])
	}
	if records[1][3] != "4200" {
		t.Errorf("requests cell = %q, want 4200", records[1][3])
	}
}
