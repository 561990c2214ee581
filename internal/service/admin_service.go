package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/nutrifact/console/internal/backend"
	"github.com/nutrifact/console/internal/models"
)

// Decision is the outcome of an admin authorization check. The service
// only reports state; whether and where to redirect is the caller's call.
type Decision struct {
	Allowed    bool
	RedirectTo string
}

// AnalyticsSnapshot is the admin analytics read model.
type AnalyticsSnapshot struct {
	TotalUsers          int64                    `json:"total_users"`
	ActiveSubscriptions int64                    `json:"active_subscriptions"`
	RequestsToday       int64                    `json:"requests_today"`
	RevenueMonth        int64                    `json:"revenue_month"` // cents
	SignupsByDay        []models.TimeSeriesPoint `json:"signups_by_day"`
}

// MonitoringSnapshot is a point-in-time health read. Pages that poll it
// own their refresh interval; this is a plain snapshot endpoint.
type MonitoringSnapshot struct {
	BackendHealthy bool      `json:"backend_healthy"`
	ErrorRate      float64   `json:"error_rate"`
	P95LatencyMS   float64   `json:"p95_latency_ms"`
	QueueDepth     int64     `json:"queue_depth"`
	CheckedAt      time.Time `json:"checked_at"`
}

// AdminSettings is the mutable platform settings record.
type AdminSettings struct {
	SignupsEnabled     bool   `json:"signups_enabled"`
	MaintenanceMode    bool   `json:"maintenance_mode"`
	MaintenanceMessage string `json:"maintenance_message,omitempty"`
	DefaultPlanID      string `json:"default_plan_id,omitempty"`
}

// usageExportRow is one row of the admin usage export.
type usageExportRow struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Plan     string `json:"plan"`
	Requests int64  `json:"requests"`
	Period   string `json:"period"`
}

// AdminService gates and serves the admin console. All reads and writes
// are proxied under the backend's admin/* resources with the caller's
// bearer token; the backend remains the authority on admin status.
type AdminService interface {
	// Profile fetches the admin identity and capability set. Refetched on
	// every auth change; there is no invalidation beyond that.
	Profile(ctx context.Context, accessToken string) (*models.AdminProfile, error)

	// Authorize decides access for an admin route. It never navigates.
	Authorize(profile *models.AdminProfile, authenticated bool, perm models.Permission) Decision

	ListUsers(ctx context.Context, accessToken string, skip, limit int) ([]models.User, backend.PageInfo, error)
	Analytics(ctx context.Context, accessToken string) (*AnalyticsSnapshot, error)
	Monitoring(ctx context.Context, accessToken string) (*MonitoringSnapshot, error)
	GetSettings(ctx context.Context, accessToken string) (*AdminSettings, error)
	UpdateSettings(ctx context.Context, accessToken string, settings AdminSettings) (*AdminSettings, error)

	// ExportUsage streams the platform usage report as gzip-compressed CSV.
	ExportUsage(ctx context.Context, accessToken string, w io.Writer) error
}

type adminService struct {
	api *backend.Client
}

// NewAdminService creates an admin service over the backend client.
func NewAdminService(api *backend.Client) AdminService {
	return &adminService{api: api}
}

func (s *adminService) Profile(ctx context.Context, accessToken string) (*models.AdminProfile, error) {
	creds := backend.Credentials{AccessToken: accessToken}

	var raw struct {
		IsAdmin      bool     `json:"is_admin"`
		IsSuperAdmin bool     `json:"is_super_admin"`
		Permissions  []string `json:"permissions"`
	}
	if err := s.api.Get(ctx, creds, "admin/me", &raw); err != nil {
		return nil, err
	}

	profile := &models.AdminProfile{
		IsAdmin:      raw.IsAdmin,
		IsSuperAdmin: raw.IsSuperAdmin,
	}
	for _, p := range raw.Permissions {
		perm, _ := models.ParsePermission(p)
		profile.Permissions = append(profile.Permissions, perm)
	}
	return profile, nil
}

func (s *adminService) Authorize(profile *models.AdminProfile, authenticated bool, perm models.Permission) Decision {
	if !authenticated {
		return Decision{Allowed: false, RedirectTo: "/auth/login"}
	}
	if profile == nil || !profile.IsAdmin {
		return Decision{Allowed: false, RedirectTo: "/dashboard"}
	}
	if perm != "" && !profile.HasPermission(perm) {
		return Decision{Allowed: false, RedirectTo: "/dashboard"}
	}
	return Decision{Allowed: true}
}

func (s *adminService) ListUsers(ctx context.Context, accessToken string, skip, limit int) ([]models.User, backend.PageInfo, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	creds := backend.Credentials{AccessToken: accessToken}
	path := fmt.Sprintf("admin/users?skip=%d&limit=%d", skip, limit)

	var users []models.User
	info, err := s.api.GetPage(ctx, creds, path, &users)
	if err != nil {
		return nil, backend.PageInfo{}, err
	}
	return users, info, nil
}

func (s *adminService) Analytics(ctx context.Context, accessToken string) (*AnalyticsSnapshot, error) {
	creds := backend.Credentials{AccessToken: accessToken}
	var snap AnalyticsSnapshot
	if err := s.api.Get(ctx, creds, "admin/analytics", &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *adminService) Monitoring(ctx context.Context, accessToken string) (*MonitoringSnapshot, error) {
	creds := backend.Credentials{AccessToken: accessToken}
	var snap MonitoringSnapshot
	if err := s.api.Get(ctx, creds, "admin/monitoring", &snap); err != nil {
		return nil, err
	}
	if snap.CheckedAt.IsZero() {
		snap.CheckedAt = time.Now().UTC()
	}
	return &snap, nil
}

func (s *adminService) GetSettings(ctx context.Context, accessToken string) (*AdminSettings, error) {
	creds := backend.Credentials{AccessToken: accessToken}
	var settings AdminSettings
	if err := s.api.Get(ctx, creds, "admin/settings", &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (s *adminService) UpdateSettings(ctx context.Context, accessToken string, settings AdminSettings) (*AdminSettings, error) {
	creds := backend.Credentials{AccessToken: accessToken}
	var updated AdminSettings
	if err := s.api.Put(ctx, creds, "admin/settings", settings, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *adminService) ExportUsage(ctx context.Context, accessToken string, w io.Writer) error {
	creds := backend.Credentials{AccessToken: accessToken}

	var rows []usageExportRow
	if err := s.api.Get(ctx, creds, "admin/usage/export", &rows); err != nil {
		return err
	}

	gz := gzip.NewWriter(w)
	cw := csv.NewWriter(gz)

	if err := cw.Write([]string{"user_id", "email", "plan", "requests", "period"}); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{row.UserID, row.Email, row.Plan, strconv.FormatInt(row.Requests, 10), row.Period}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return gz.Close()
}
